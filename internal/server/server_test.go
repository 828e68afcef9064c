package server

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"cleanline/internal/api"
	"cleanline/internal/domain"
)

func newTestBackend(t *testing.T) *api.Client {
	t.Helper()
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	handler, _, err := New(Config{JWTSecret: "test-secret", Seed: true, Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return api.New(srv.URL)
}

func loginAs(t *testing.T, c *api.Client, email, password string) domain.User {
	t.Helper()
	resp, err := c.Login(context.Background(), api.Credentials{Email: email, Password: password})
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	c.SetToken(resp.AccessToken)
	return resp.User
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	c := newTestBackend(t)
	_, err := c.Login(context.Background(), api.Credentials{Email: "leo@cleanline.dev", Password: "wrong"})
	if !api.IsKind(err, api.KindAuthenticationRejected) {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestUnauthenticatedCallsRejected(t *testing.T) {
	c := newTestBackend(t)
	if _, err := c.ListTasks(context.Background(), api.TaskFilters{}); !api.IsKind(err, api.KindAuthenticationRejected) {
		t.Fatalf("expected 401 without token, got %v", err)
	}
}

func TestTaskLifecycleFlow(t *testing.T) {
	c := newTestBackend(t)
	ctx := context.Background()
	leo := loginAs(t, c, "leo@cleanline.dev", "leo")
	if leo.Role != domain.RoleCleaner {
		t.Fatalf("seed user role = %s", leo.Role)
	}

	tasks, err := c.ListTasks(ctx, api.TaskFilters{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("seed listing has %d tasks, want 3", len(tasks))
	}
	if tasks[0].Status != domain.StatusToCleanUrgent {
		t.Fatalf("urgent task not first: %s", tasks[0].Status)
	}

	started, err := c.StartTask(ctx, "t-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != domain.StatusInProgress {
		t.Fatalf("status after start = %s", started.Status)
	}

	done, err := c.CompleteTask(ctx, "t-1", "dusted and mopped", []string{"img-1"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != domain.StatusCompleted || done.CompletedAt == nil {
		t.Fatalf("after complete: status=%s completedAt=%v", done.Status, done.CompletedAt)
	}
	if done.Observations != "dusted and mopped" || len(done.Images) != 1 {
		t.Fatalf("closing details lost: %+v", done.Task)
	}

	// Verification is admin-only; the cleaner is refused.
	verified := domain.StatusVerified
	if _, err := c.UpdateTask(ctx, "t-1", api.UpdateTaskInput{Status: &verified}); !api.IsKind(err, api.KindAuthorizationDenied) {
		t.Fatalf("cleaner verify: expected 403, got %v", err)
	}

	loginAs(t, c, "ana@cleanline.dev", "ana")
	vt, err := c.UpdateTask(ctx, "t-1", api.UpdateTaskInput{Status: &verified})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if vt.Status != domain.StatusVerified || vt.VerifiedAt == nil {
		t.Fatalf("after verify: status=%s verifiedAt=%v", vt.Status, vt.VerifiedAt)
	}
}

func TestIllegalTransitionsRejected(t *testing.T) {
	c := newTestBackend(t)
	ctx := context.Background()
	loginAs(t, c, "ana@cleanline.dev", "ana")

	// to_clean -> verified skips two states.
	verified := domain.StatusVerified
	if _, err := c.UpdateTask(ctx, "t-1", api.UpdateTaskInput{Status: &verified}); !api.IsKind(err, api.KindValidationFailed) {
		t.Fatalf("skip to verified: expected 422, got %v", err)
	}
	// Completing a task that was never started.
	if _, err := c.CompleteTask(ctx, "t-1", "", nil); !api.IsKind(err, api.KindValidationFailed) {
		t.Fatalf("complete pending: expected 422, got %v", err)
	}
	if _, err := c.StartTask(ctx, "t-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Starting twice.
	if _, err := c.StartTask(ctx, "t-1"); !api.IsKind(err, api.KindValidationFailed) {
		t.Fatalf("double start: expected 422, got %v", err)
	}
}

func TestStartRespectsAssignee(t *testing.T) {
	c := newTestBackend(t)
	ctx := context.Background()
	loginAs(t, c, "leo@cleanline.dev", "leo")

	// t-2 belongs to mia, t-3 has no assignee.
	if _, err := c.StartTask(ctx, "t-2"); !api.IsKind(err, api.KindAuthorizationDenied) {
		t.Fatalf("foreign task: expected 403, got %v", err)
	}
	if _, err := c.StartTask(ctx, "t-3"); !api.IsKind(err, api.KindValidationFailed) {
		t.Fatalf("unassigned task: expected 422, got %v", err)
	}

	// Admins may start on behalf of the assignee.
	loginAs(t, c, "ana@cleanline.dev", "ana")
	if _, err := c.StartTask(ctx, "t-2"); err != nil {
		t.Fatalf("admin start: %v", err)
	}
}

func TestCreateUpdateDelete(t *testing.T) {
	c := newTestBackend(t)
	ctx := context.Background()
	loginAs(t, c, "ana@cleanline.dev", "ana")

	created, err := c.CreateTask(ctx, api.CreateTaskInput{
		RoomID:        "rm-1",
		ScheduledDate: "2026-09-01T09:00:00Z",
		Urgent:        true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != domain.StatusToCleanUrgent {
		t.Fatalf("urgent creation status = %s", created.Status)
	}
	if created.RoomName != "101" || created.BuildingName != "Harbor Hotel" {
		t.Fatalf("enrichment missing: %+v", created)
	}

	leo := "u-leo"
	updated, err := c.UpdateTask(ctx, created.ID, api.UpdateTaskInput{AssignedTo: &leo})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if updated.AssignedToName != "Leo" {
		t.Fatalf("assignee name = %q", updated.AssignedToName)
	}

	if _, err := c.CreateTask(ctx, api.CreateTaskInput{RoomID: "rm-404", ScheduledDate: "2026-09-01T09:00:00Z"}); !api.IsKind(err, api.KindNotFound) {
		t.Fatalf("unknown room: expected 404, got %v", err)
	}

	if err := c.DeleteTask(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.GetTask(ctx, created.ID); !api.IsKind(err, api.KindNotFound) {
		t.Fatalf("deleted task still served: %v", err)
	}

	// Cleaners cannot delete.
	loginAs(t, c, "leo@cleanline.dev", "leo")
	if err := c.DeleteTask(ctx, "t-1"); !api.IsKind(err, api.KindAuthorizationDenied) {
		t.Fatalf("cleaner delete: expected 403, got %v", err)
	}
}

func TestRegisterThenLogin(t *testing.T) {
	c := newTestBackend(t)
	ctx := context.Background()
	user, err := c.Register(ctx, api.RegisterData{
		Email:     "new@cleanline.dev",
		Password:  "secret",
		Name:      "Noa",
		Role:      domain.RoleCleaner,
		CompanyID: "co-riverside",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ID == "" || !user.IsActive {
		t.Fatalf("registered user = %+v", user)
	}
	loginAs(t, c, "new@cleanline.dev", "secret")
	profile, err := c.Profile(ctx)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.Email != "new@cleanline.dev" {
		t.Fatalf("profile = %+v", profile)
	}

	// Duplicate email is refused.
	if _, err := c.Register(ctx, api.RegisterData{Email: "new@cleanline.dev", Password: "x", Name: "Dup", Role: domain.RoleCleaner, CompanyID: "co-riverside"}); !api.IsKind(err, api.KindValidationFailed) {
		t.Fatalf("duplicate email: expected 422, got %v", err)
	}
}

func TestDirectoryVisibility(t *testing.T) {
	c := newTestBackend(t)
	ctx := context.Background()

	loginAs(t, c, "ana@cleanline.dev", "ana")
	if _, err := c.ListCompanies(ctx); !api.IsKind(err, api.KindAuthorizationDenied) {
		t.Fatalf("admin companies: expected 403, got %v", err)
	}
	users, err := c.ListUsers(ctx)
	if err != nil {
		t.Fatalf("users: %v", err)
	}
	if len(users) != 4 {
		t.Fatalf("seed users = %d, want 4", len(users))
	}
	buildings, err := c.ListBuildings(ctx, "co-riverside")
	if err != nil {
		t.Fatalf("buildings: %v", err)
	}
	if len(buildings) != 1 {
		t.Fatalf("buildings = %d", len(buildings))
	}
	rooms, err := c.ListRooms(ctx, "bl-harbor")
	if err != nil {
		t.Fatalf("rooms: %v", err)
	}
	if len(rooms) != 3 {
		t.Fatalf("rooms = %d", len(rooms))
	}

	loginAs(t, c, "root@cleanline.dev", "root")
	companies, err := c.ListCompanies(ctx)
	if err != nil {
		t.Fatalf("super admin companies: %v", err)
	}
	if len(companies) != 1 {
		t.Fatalf("companies = %d", len(companies))
	}

	loginAs(t, c, "leo@cleanline.dev", "leo")
	if _, err := c.ListUsers(ctx); !api.IsKind(err, api.KindAuthorizationDenied) {
		t.Fatalf("cleaner users: expected 403, got %v", err)
	}
}
