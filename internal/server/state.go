package server

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"cleanline/internal/domain"
)

// State is the in-memory backing store for the dev backend. It stands in
// for the real persistence layer; everything is lost on shutdown.
type State struct {
	mu  sync.Mutex
	now func() time.Time

	users     map[string]domain.User
	passwords map[string]string // keyed by email
	companies map[string]domain.Company
	buildings map[string]domain.Building
	rooms     map[string]domain.Room
	tasks     map[string]domain.Task
}

// NewState creates empty dev-server state.
func NewState(now func() time.Time) *State {
	if now == nil {
		now = time.Now
	}
	return &State{
		now:       now,
		users:     map[string]domain.User{},
		passwords: map[string]string{},
		companies: map[string]domain.Company{},
		buildings: map[string]domain.Building{},
		rooms:     map[string]domain.Room{},
		tasks:     map[string]domain.Task{},
	}
}

func (s *State) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// UserByID looks up a user.
func (s *State) UserByID(id string) (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok
}

// UserByEmail looks up a user by email.
func (s *State) UserByEmail(email string) (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, true
		}
	}
	return domain.User{}, false
}

// enrich builds the read projection with denormalized names. Caller holds
// the lock.
func (s *State) enrich(t domain.Task) domain.TaskWithDetails {
	d := domain.TaskWithDetails{Task: t}
	if room, ok := s.rooms[t.RoomID]; ok {
		d.RoomName = room.Name
		if b, ok := s.buildings[room.BuildingID]; ok {
			d.BuildingName = b.Name
		}
	}
	if t.AssignedTo != nil {
		if u, ok := s.users[*t.AssignedTo]; ok {
			d.AssignedToName = u.Name
		}
	}
	return d
}

func sortedTasks(tasks []domain.TaskWithDetails) []domain.TaskWithDetails {
	sort.Slice(tasks, func(i, j int) bool {
		ui := tasks[i].Status == domain.StatusToCleanUrgent
		uj := tasks[j].Status == domain.StatusToCleanUrgent
		if ui != uj {
			return ui
		}
		if tasks[i].ScheduledDate != tasks[j].ScheduledDate {
			return tasks[i].ScheduledDate < tasks[j].ScheduledDate
		}
		return tasks[i].ID < tasks[j].ID
	})
	return tasks
}

// Seed loads a demo fixture: one company, one building, three rooms, an
// admin and two cleaners, and a handful of tasks across the lifecycle.
func (s *State) Seed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.timestamp()

	company := domain.Company{
		ID: "co-riverside", Name: "Riverside Cleaning Co.", Plan: "premium",
		MaxBuildings: 10, IsActive: true, CreatedAt: ts, UpdatedAt: ts,
	}
	s.companies[company.ID] = company

	building := domain.Building{
		ID: "bl-harbor", Name: "Harbor Hotel", Type: "hotel",
		Address: "12 Quay St", CompanyID: company.ID, IsActive: true,
		CreatedAt: ts, UpdatedAt: ts,
	}
	s.buildings[building.ID] = building

	for i, name := range []string{"101", "102", "201"} {
		room := domain.Room{
			ID: fmt.Sprintf("rm-%d", i+1), Name: name, BuildingID: building.ID,
			BedConfiguration: domain.BedConfiguration{KingBeds: 1, IndividualBeds: i},
			BedsSummary:      fmt.Sprintf("1 king, %d individual", i),
			IsActive:         true, CreatedAt: ts, UpdatedAt: ts,
		}
		s.rooms[room.ID] = room
	}

	seedUsers := []struct {
		user     domain.User
		password string
	}{
		{domain.User{ID: "u-root", Email: "root@cleanline.dev", Name: "Root", Role: domain.RoleSuperAdmin, IsActive: true, CreatedAt: ts, UpdatedAt: ts}, "root"},
		{domain.User{ID: "u-ana", Email: "ana@cleanline.dev", Name: "Ana", Role: domain.RoleAdmin, CompanyID: company.ID, IsActive: true, CreatedAt: ts, UpdatedAt: ts}, "ana"},
		{domain.User{ID: "u-leo", Email: "leo@cleanline.dev", Name: "Leo", Role: domain.RoleCleaner, CompanyID: company.ID, IsActive: true, CreatedAt: ts, UpdatedAt: ts}, "leo"},
		{domain.User{ID: "u-mia", Email: "mia@cleanline.dev", Name: "Mia", Role: domain.RoleCleaner, CompanyID: company.ID, IsActive: true, CreatedAt: ts, UpdatedAt: ts}, "mia"},
	}
	for _, su := range seedUsers {
		s.users[su.user.ID] = su.user
		s.passwords[su.user.Email] = su.password
	}

	leo := "u-leo"
	mia := "u-mia"
	seedTasks := []domain.Task{
		{ID: "t-1", RoomID: "rm-1", AssignedTo: &leo, Status: domain.StatusToClean, ScheduledDate: ts, CreatedAt: ts, UpdatedAt: ts},
		{ID: "t-2", RoomID: "rm-2", AssignedTo: &mia, Status: domain.StatusToCleanUrgent, ScheduledDate: ts, CreatedAt: ts, UpdatedAt: ts},
		{ID: "t-3", RoomID: "rm-3", Status: domain.StatusToClean, ScheduledDate: ts, CreatedAt: ts, UpdatedAt: ts},
	}
	for _, t := range seedTasks {
		s.tasks[t.ID] = t
	}
}

func newID(prefix string) string {
	return prefix + "-" + uuid.New().String()
}
