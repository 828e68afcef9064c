// Package server is a dev/demo backend implementing the remote contract
// the client is written against: auth, tasks, and the directory listings.
// State is in-memory; it exists for local development and as the stub
// remote boundary in integration tests.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"cleanline/internal/domain"
)

const tokenTTL = 24 * time.Hour

// Config for the dev backend handler.
type Config struct {
	JWTSecret string
	Logger    *log.Logger
	Now       func() time.Time
	Seed      bool
	// State overrides the freshly built state; used by tests.
	State *State
}

// apiError models the error envelope the client parses: a flat message,
// which for validation failures is a list of field messages.
type apiError struct {
	status  int
	Message any `json:"message"`
}

func (e *apiError) Error() string  { return fmt.Sprint(e.Message) }
func (e *apiError) GetStatus() int { return e.status }

func newAPIError(status int, message any) huma.StatusError {
	return &apiError{status: status, Message: message}
}

func handleError(err error) huma.StatusError {
	switch {
	case errors.Is(err, errNotFound):
		return newAPIError(http.StatusNotFound, err.Error())
	case errors.Is(err, errForbidden):
		return newAPIError(http.StatusForbidden, err.Error())
	default:
		return newAPIError(http.StatusUnprocessableEntity, []string{err.Error()})
	}
}

// New builds the dev backend handler and returns its state for seeding
// and inspection.
func New(cfg Config) (http.Handler, *State, error) {
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "cleanline-dev-secret"
	}
	st := cfg.State
	if st == nil {
		st = NewState(cfg.Now)
		if cfg.Seed {
			st.Seed()
		}
	}

	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		if len(errs) > 0 {
			msgs := make([]string, 0, len(errs))
			for _, e := range errs {
				msgs = append(msgs, e.Error())
			}
			return newAPIError(status, msgs)
		}
		return newAPIError(status, msg)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(cfg.JWTSecret, st, cfg.Logger))

	hcfg := huma.DefaultConfig("Cleanline Dev API", "0.1.0")
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)

	registerHealth(api)
	registerAuth(api, st, cfg.JWTSecret)
	registerTasks(api, st)
	registerDirectory(api, st)

	return router, st, nil
}

func actorFromContext(ctx context.Context) (domain.User, huma.StatusError) {
	u, ok := principalFromContext(ctx)
	if !ok {
		return domain.User{}, newAPIError(http.StatusUnauthorized, "authentication required")
	}
	return u, nil
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerAuth(api huma.API, st *State, secret string) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Authenticate and obtain a bearer token",
	}, func(ctx context.Context, input *struct {
		Body LoginRequest `json:"body"`
	}) (*struct {
		Body LoginResponse `json:"body"`
	}, error) {
		user, ok := st.Authenticate(input.Body.Email, input.Body.Password)
		if !ok {
			return nil, newAPIError(http.StatusUnauthorized, "invalid credentials")
		}
		token, err := issueToken(secret, user, st.now(), tokenTTL)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "token signing failed")
		}
		return &struct {
			Body LoginResponse `json:"body"`
		}{Body: LoginResponse{AccessToken: token, User: user}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "profile",
		Method:      http.MethodGet,
		Path:        "/auth/profile",
		Summary:     "Current principal",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: actor}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "register",
		Method:        http.MethodPost,
		Path:          "/auth/register",
		Summary:       "Create an account",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body RegisterRequest `json:"body"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		user, err := st.RegisterUser(input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: user}, nil
	})
}

func registerTasks(api huma.API, st *State) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
	}, func(ctx context.Context, input *struct {
		RoomID     string `query:"roomId"`
		BuildingID string `query:"buildingId"`
		AssignedTo string `query:"assignedTo"`
		Status     string `query:"status"`
	}) (*struct {
		Body TaskListResponse `json:"body"`
	}, error) {
		tasks := st.ListTasks(TaskFilters{
			RoomID:     input.RoomID,
			BuildingID: input.BuildingID,
			AssignedTo: input.AssignedTo,
			Status:     input.Status,
		})
		return &struct {
			Body TaskListResponse `json:"body"`
		}{Body: TaskListResponse{Tasks: tasks}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task with details",
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.TaskWithDetails `json:"body"`
	}, error) {
		t, err := st.GetTask(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TaskWithDetails `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.TaskWithDetails `json:"body"`
	}, error) {
		t, err := st.CreateTask(input.Body.RoomID, input.Body.AssignedTo, input.Body.ScheduledDate, input.Body.Observations, input.Body.Urgent)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TaskWithDetails `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Partially update task",
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.TaskWithDetails `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := st.UpdateTask(input.ID, input.Body, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TaskWithDetails `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "start-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}/start",
		Summary:     "Start a pending task",
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.TaskWithDetails `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := st.StartTask(input.ID, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TaskWithDetails `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}/complete",
		Summary:     "Complete an in-progress task",
	}, func(ctx context.Context, input *struct {
		ID   string              `path:"id"`
		Body CompleteTaskRequest `json:"body"`
	}) (*struct {
		Body domain.TaskWithDetails `json:"body"`
	}, error) {
		t, err := st.CompleteTask(input.ID, input.Body.Observations, input.Body.Images)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TaskWithDetails `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-task",
		Method:        http.MethodDelete,
		Path:          "/tasks/{id}",
		Summary:       "Delete task",
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := st.DeleteTask(input.ID, actor); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerDirectory(api huma.API, st *State) {
	huma.Register(api, huma.Operation{
		OperationID: "list-companies",
		Method:      http.MethodGet,
		Path:        "/companies",
		Summary:     "List companies",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body CompanyListResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if actor.Role != domain.RoleSuperAdmin {
			return nil, newAPIError(http.StatusForbidden, "super admin only")
		}
		return &struct {
			Body CompanyListResponse `json:"body"`
		}{Body: CompanyListResponse{Companies: st.ListCompanies()}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-buildings",
		Method:      http.MethodGet,
		Path:        "/buildings",
		Summary:     "List buildings",
	}, func(ctx context.Context, input *struct {
		CompanyID string `query:"companyId"`
	}) (*struct {
		Body BuildingListResponse `json:"body"`
	}, error) {
		return &struct {
			Body BuildingListResponse `json:"body"`
		}{Body: BuildingListResponse{Buildings: st.ListBuildings(input.CompanyID)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-rooms",
		Method:      http.MethodGet,
		Path:        "/rooms",
		Summary:     "List rooms",
	}, func(ctx context.Context, input *struct {
		BuildingID string `query:"buildingId"`
	}) (*struct {
		Body RoomListResponse `json:"body"`
	}, error) {
		return &struct {
			Body RoomListResponse `json:"body"`
		}{Body: RoomListResponse{Rooms: st.ListRooms(input.BuildingID)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List users",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body UserListResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !actor.Role.IsAdminClass() {
			return nil, newAPIError(http.StatusForbidden, "admin only")
		}
		return &struct {
			Body UserListResponse `json:"body"`
		}{Body: UserListResponse{Users: st.ListUsers()}}, nil
	})
}
