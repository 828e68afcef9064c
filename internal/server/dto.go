package server

import (
	"errors"
	"fmt"

	"cleanline/internal/domain"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	User        domain.User `json:"user"`
}

type RegisterRequest struct {
	Email     string      `json:"email"`
	Password  string      `json:"password"`
	Name      string      `json:"name"`
	Role      domain.Role `json:"role"`
	CompanyID string      `json:"companyId,omitempty"`
}

type CreateTaskRequest struct {
	RoomID        string `json:"roomId"`
	AssignedTo    string `json:"assignedTo,omitempty"`
	ScheduledDate string `json:"scheduledDate"`
	Observations  string `json:"observations,omitempty"`
	Urgent        bool   `json:"urgent,omitempty"`
}

type UpdateTaskRequest struct {
	Status        *domain.TaskStatus `json:"status,omitempty"`
	AssignedTo    *string            `json:"assignedTo,omitempty"`
	ScheduledDate *string            `json:"scheduledDate,omitempty"`
	Observations  *string            `json:"observations,omitempty"`
	Images        *[]string          `json:"images,omitempty"`
}

type CompleteTaskRequest struct {
	Observations string   `json:"observations"`
	Images       []string `json:"images"`
}

type TaskListResponse struct {
	Tasks []domain.TaskWithDetails `json:"tasks"`
}

type CompanyListResponse struct {
	Companies []domain.Company `json:"companies"`
}

type BuildingListResponse struct {
	Buildings []domain.Building `json:"buildings"`
}

type RoomListResponse struct {
	Rooms []domain.Room `json:"rooms"`
}

type UserListResponse struct {
	Users []domain.User `json:"users"`
}

// RegisterUser validates and stores a new account.
func (s *State) RegisterUser(req RegisterRequest) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return domain.User{}, errors.New("email, password and name are required")
	}
	if !req.Role.Valid() {
		return domain.User{}, fmt.Errorf("unknown role %q", req.Role)
	}
	if req.Role != domain.RoleSuperAdmin && req.CompanyID == "" {
		return domain.User{}, errors.New("companyId is required for admin and cleaner accounts")
	}
	if req.CompanyID != "" {
		if _, ok := s.companies[req.CompanyID]; !ok {
			return domain.User{}, fmt.Errorf("company %s: %w", req.CompanyID, errNotFound)
		}
	}
	for _, u := range s.users {
		if u.Email == req.Email {
			return domain.User{}, fmt.Errorf("email %s is already registered", req.Email)
		}
	}
	ts := s.timestamp()
	u := domain.User{
		ID:        newID("u"),
		Email:     req.Email,
		Name:      req.Name,
		Role:      req.Role,
		CompanyID: req.CompanyID,
		IsActive:  true,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	s.users[u.ID] = u
	s.passwords[u.Email] = req.Password
	return u, nil
}

// ListCompanies returns all companies.
func (s *State) ListCompanies() []domain.Company {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Company{}
	for _, c := range s.companies {
		out = append(out, c)
	}
	return out
}

// ListBuildings returns buildings, optionally scoped to a company.
func (s *State) ListBuildings(companyID string) []domain.Building {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Building{}
	for _, b := range s.buildings {
		if companyID != "" && b.CompanyID != companyID {
			continue
		}
		out = append(out, b)
	}
	return out
}

// ListRooms returns rooms, optionally scoped to a building.
func (s *State) ListRooms(buildingID string) []domain.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Room{}
	for _, r := range s.rooms {
		if buildingID != "" && r.BuildingID != buildingID {
			continue
		}
		out = append(out, r)
	}
	return out
}

// ListUsers returns all users.
func (s *State) ListUsers() []domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.User{}
	for _, u := range s.users {
		out = append(out, u)
	}
	return out
}
