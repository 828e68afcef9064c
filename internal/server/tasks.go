package server

import (
	"errors"
	"fmt"

	"cleanline/internal/domain"
)

var (
	errNotFound  = errors.New("not found")
	errForbidden = errors.New("forbidden")
)

// ensureTransition is the server-side arbiter for the status machine.
// Urgency shares the exact transition set of to_clean.
func ensureTransition(oldStatus, newStatus domain.TaskStatus) error {
	switch oldStatus {
	case domain.StatusToClean, domain.StatusToCleanUrgent:
		if newStatus == domain.StatusInProgress {
			return nil
		}
	case domain.StatusInProgress:
		if newStatus == domain.StatusCompleted {
			return nil
		}
	case domain.StatusCompleted:
		if newStatus == domain.StatusVerified {
			return nil
		}
	}
	return fmt.Errorf("invalid task status transition %s -> %s", oldStatus, newStatus)
}

// TaskFilters narrow the dev-server task listing.
type TaskFilters struct {
	RoomID     string
	BuildingID string
	AssignedTo string
	Status     string
}

// ListTasks returns enriched tasks, urgent first.
func (s *State) ListTasks(f TaskFilters) []domain.TaskWithDetails {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.TaskWithDetails{}
	for _, t := range s.tasks {
		if f.RoomID != "" && t.RoomID != f.RoomID {
			continue
		}
		if f.BuildingID != "" {
			room, ok := s.rooms[t.RoomID]
			if !ok || room.BuildingID != f.BuildingID {
				continue
			}
		}
		if f.AssignedTo != "" && (t.AssignedTo == nil || *t.AssignedTo != f.AssignedTo) {
			continue
		}
		if f.Status != "" && string(t.Status) != f.Status {
			continue
		}
		out = append(out, s.enrich(t))
	}
	return sortedTasks(out)
}

// GetTask returns one enriched task.
func (s *State) GetTask(id string) (domain.TaskWithDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return domain.TaskWithDetails{}, fmt.Errorf("task %s: %w", id, errNotFound)
	}
	return s.enrich(t), nil
}

// CreateTask validates and stores a new task in its initial state.
func (s *State) CreateTask(roomID, assignedTo, scheduledDate, observations string, urgent bool) (domain.TaskWithDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if roomID == "" {
		return domain.TaskWithDetails{}, errors.New("roomId is required")
	}
	if _, ok := s.rooms[roomID]; !ok {
		return domain.TaskWithDetails{}, fmt.Errorf("room %s: %w", roomID, errNotFound)
	}
	if scheduledDate == "" {
		return domain.TaskWithDetails{}, errors.New("scheduledDate is required")
	}
	if assignedTo != "" {
		if _, ok := s.users[assignedTo]; !ok {
			return domain.TaskWithDetails{}, fmt.Errorf("user %s: %w", assignedTo, errNotFound)
		}
	}
	status := domain.StatusToClean
	if urgent {
		status = domain.StatusToCleanUrgent
	}
	ts := s.timestamp()
	t := domain.Task{
		ID:            newID("t"),
		RoomID:        roomID,
		Status:        status,
		ScheduledDate: scheduledDate,
		Observations:  observations,
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
	if assignedTo != "" {
		t.AssignedTo = &assignedTo
	}
	s.tasks[t.ID] = t
	return s.enrich(t), nil
}

// UpdateTask applies a generic partial update. A status change goes
// through the transition table; verification is admin-only and stamps
// verifiedAt server-side.
func (s *State) UpdateTask(id string, req UpdateTaskRequest, actor domain.User) (domain.TaskWithDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return domain.TaskWithDetails{}, fmt.Errorf("task %s: %w", id, errNotFound)
	}
	if req.AssignedTo != nil {
		if *req.AssignedTo == "" {
			if !t.Status.Pending() {
				return domain.TaskWithDetails{}, errors.New("assignee may be cleared only before the task starts")
			}
			t.AssignedTo = nil
		} else {
			if _, ok := s.users[*req.AssignedTo]; !ok {
				return domain.TaskWithDetails{}, fmt.Errorf("user %s: %w", *req.AssignedTo, errNotFound)
			}
			t.AssignedTo = req.AssignedTo
		}
	}
	if req.ScheduledDate != nil {
		if *req.ScheduledDate == "" {
			return domain.TaskWithDetails{}, errors.New("scheduledDate cannot be empty")
		}
		t.ScheduledDate = *req.ScheduledDate
	}
	if req.Observations != nil {
		t.Observations = *req.Observations
	}
	if req.Images != nil {
		t.Images = *req.Images
	}
	if req.Status != nil && *req.Status != t.Status {
		next := *req.Status
		if !next.Valid() {
			return domain.TaskWithDetails{}, fmt.Errorf("unknown status %s", next)
		}
		if err := ensureTransition(t.Status, next); err != nil {
			return domain.TaskWithDetails{}, err
		}
		ts := s.timestamp()
		switch next {
		case domain.StatusCompleted:
			t.CompletedAt = &ts
		case domain.StatusVerified:
			if !actor.Role.IsAdminClass() {
				return domain.TaskWithDetails{}, fmt.Errorf("only admins may verify: %w", errForbidden)
			}
			t.VerifiedAt = &ts
		}
		t.Status = next
	}
	t.UpdatedAt = s.timestamp()
	s.tasks[id] = t
	return s.enrich(t), nil
}

// StartTask moves a pending task to in_progress for its assignee or an
// admin-class actor.
func (s *State) StartTask(id string, actor domain.User) (domain.TaskWithDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return domain.TaskWithDetails{}, fmt.Errorf("task %s: %w", id, errNotFound)
	}
	if err := ensureTransition(t.Status, domain.StatusInProgress); err != nil {
		return domain.TaskWithDetails{}, err
	}
	if t.AssignedTo == nil || *t.AssignedTo == "" {
		return domain.TaskWithDetails{}, errors.New("task has no assignee")
	}
	if *t.AssignedTo != actor.ID && !actor.Role.IsAdminClass() {
		return domain.TaskWithDetails{}, fmt.Errorf("task is assigned to another cleaner: %w", errForbidden)
	}
	t.Status = domain.StatusInProgress
	t.UpdatedAt = s.timestamp()
	s.tasks[id] = t
	return s.enrich(t), nil
}

// CompleteTask moves an in_progress task to completed and stamps
// completedAt with the server clock.
func (s *State) CompleteTask(id, observations string, images []string) (domain.TaskWithDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return domain.TaskWithDetails{}, fmt.Errorf("task %s: %w", id, errNotFound)
	}
	if err := ensureTransition(t.Status, domain.StatusCompleted); err != nil {
		return domain.TaskWithDetails{}, err
	}
	ts := s.timestamp()
	t.Status = domain.StatusCompleted
	t.CompletedAt = &ts
	t.Observations = observations
	if images == nil {
		images = []string{}
	}
	t.Images = images
	t.UpdatedAt = ts
	s.tasks[id] = t
	return s.enrich(t), nil
}

// DeleteTask removes a task; admin-class actors only.
func (s *State) DeleteTask(id string, actor domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !actor.Role.IsAdminClass() {
		return fmt.Errorf("only admins may delete tasks: %w", errForbidden)
	}
	if _, ok := s.tasks[id]; !ok {
		return fmt.Errorf("task %s: %w", id, errNotFound)
	}
	delete(s.tasks, id)
	return nil
}
