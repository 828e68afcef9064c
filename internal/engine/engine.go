// Package engine enforces the task status machine and keeps the local
// cache consistent with the backend. Transitions are validated against
// the cached status before any remote call; the remote store remains the
// final arbiter and its representation is the only thing ever written
// back to the cache.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cleanline/internal/api"
	"cleanline/internal/domain"
	"cleanline/internal/store"
)

// PreconditionError is a locally detected illegal transition, rejected
// before any network call.
type PreconditionError struct {
	TaskID string
	Status domain.TaskStatus
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("task %s (status %s): %s", e.TaskID, e.Status, e.Reason)
}

// ConflictError rejects a mutation for a task that already has one in
// flight.
type ConflictError struct {
	TaskID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("task %s: a mutation is already in flight", e.TaskID)
}

// Engine drives the task lifecycle. One instance per client process.
type Engine struct {
	API   *api.Client
	Cache store.Store

	mu        sync.Mutex
	inFlight  map[string]struct{}
	currentID string
}

// New creates an engine over the remote boundary and the local cache.
func New(client *api.Client, cache store.Store) *Engine {
	return &Engine{
		API:      client,
		Cache:    cache,
		inFlight: make(map[string]struct{}),
	}
}

// acquire takes the per-id in-flight lock. A second mutating call for the
// same id while one is pending is rejected, not queued.
func (e *Engine) acquire(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inFlight[id]; busy {
		return &ConflictError{TaskID: id}
	}
	e.inFlight[id] = struct{}{}
	return nil
}

func (e *Engine) release(id string) {
	e.mu.Lock()
	delete(e.inFlight, id)
	e.mu.Unlock()
}

// FetchTasks refreshes the cache from the backend. The whole table is
// replaced with the server listing, so there is at most one entry per id.
func (e *Engine) FetchTasks(ctx context.Context, filters api.TaskFilters) ([]domain.TaskWithDetails, error) {
	tasks, err := e.API.ListTasks(ctx, filters)
	if err != nil {
		return nil, err
	}
	if err := e.Cache.ReplaceTasks(ctx, tasks); err != nil {
		return nil, fmt.Errorf("cache listing: %w", err)
	}
	return tasks, nil
}

// FetchTask refreshes one task and makes it the current focus.
func (e *Engine) FetchTask(ctx context.Context, id string) (domain.TaskWithDetails, error) {
	t, err := e.API.GetTask(ctx, id)
	if err != nil {
		return domain.TaskWithDetails{}, err
	}
	if err := e.Cache.UpsertTask(ctx, t); err != nil {
		return domain.TaskWithDetails{}, fmt.Errorf("cache task: %w", err)
	}
	e.setCurrent(id)
	return t, nil
}

// Create sends a new task to the backend and caches the returned
// representation. Never the submitted payload: the server normalizes and
// enriches fields.
func (e *Engine) Create(ctx context.Context, input api.CreateTaskInput) (domain.TaskWithDetails, error) {
	t, err := e.API.CreateTask(ctx, input)
	if err != nil {
		return domain.TaskWithDetails{}, err
	}
	if err := e.Cache.UpsertTask(ctx, t); err != nil {
		return t, fmt.Errorf("cache created task: %w", err)
	}
	return t, nil
}

// Update applies a generic partial update (reassignment, rescheduling,
// observation edits) remote-first.
func (e *Engine) Update(ctx context.Context, id string, input api.UpdateTaskInput) (domain.TaskWithDetails, error) {
	if err := e.acquire(id); err != nil {
		return domain.TaskWithDetails{}, err
	}
	defer e.release(id)

	t, err := e.API.UpdateTask(ctx, id, input)
	if err != nil {
		return domain.TaskWithDetails{}, err
	}
	if err := e.Cache.UpsertTask(ctx, t); err != nil {
		return t, fmt.Errorf("cache updated task: %w", err)
	}
	return t, nil
}

// Start moves a not-yet-started task to in_progress. Legal only from
// to_clean or to_clean_urgent, with a resolved assignee, and only for the
// assignee or an admin-class actor.
func (e *Engine) Start(ctx context.Context, id string, actor domain.User) (domain.TaskWithDetails, error) {
	cached, err := e.cached(ctx, id)
	if err != nil {
		return domain.TaskWithDetails{}, err
	}
	if !cached.Status.Pending() {
		return domain.TaskWithDetails{}, &PreconditionError{TaskID: id, Status: cached.Status, Reason: "only a pending task can be started"}
	}
	if cached.AssignedTo == nil || *cached.AssignedTo == "" {
		return domain.TaskWithDetails{}, &PreconditionError{TaskID: id, Status: cached.Status, Reason: "starting requires a resolved assignee"}
	}
	if *cached.AssignedTo != actor.ID && !actor.Role.IsAdminClass() {
		return domain.TaskWithDetails{}, &PreconditionError{TaskID: id, Status: cached.Status, Reason: "only the assignee or an admin can start this task"}
	}

	if err := e.acquire(id); err != nil {
		return domain.TaskWithDetails{}, err
	}
	defer e.release(id)

	t, err := e.API.StartTask(ctx, id)
	if err != nil {
		return domain.TaskWithDetails{}, err
	}
	if err := e.Cache.UpsertTask(ctx, t); err != nil {
		return t, fmt.Errorf("cache started task: %w", err)
	}
	return t, nil
}

// Complete moves an in_progress task to completed, attaching observations
// and evidence images. completedAt comes from the server response, never
// the local clock.
func (e *Engine) Complete(ctx context.Context, id, observations string, images []string) (domain.TaskWithDetails, error) {
	cached, err := e.cached(ctx, id)
	if err != nil {
		return domain.TaskWithDetails{}, err
	}
	if cached.Status != domain.StatusInProgress {
		return domain.TaskWithDetails{}, &PreconditionError{TaskID: id, Status: cached.Status, Reason: "only an in-progress task can be completed"}
	}

	if err := e.acquire(id); err != nil {
		return domain.TaskWithDetails{}, err
	}
	defer e.release(id)

	t, err := e.API.CompleteTask(ctx, id, observations, images)
	if err != nil {
		return domain.TaskWithDetails{}, err
	}
	if err := e.Cache.UpsertTask(ctx, t); err != nil {
		return t, fmt.Errorf("cache completed task: %w", err)
	}
	return t, nil
}

// Verify moves a completed task to verified. Admin-class actors only;
// expressed on the wire as the generic status update.
func (e *Engine) Verify(ctx context.Context, id string, actor domain.User) (domain.TaskWithDetails, error) {
	cached, err := e.cached(ctx, id)
	if err != nil {
		return domain.TaskWithDetails{}, err
	}
	if cached.Status != domain.StatusCompleted {
		return domain.TaskWithDetails{}, &PreconditionError{TaskID: id, Status: cached.Status, Reason: "only a completed task can be verified"}
	}
	if !actor.Role.IsAdminClass() {
		return domain.TaskWithDetails{}, &PreconditionError{TaskID: id, Status: cached.Status, Reason: "only an admin can verify a task"}
	}

	if err := e.acquire(id); err != nil {
		return domain.TaskWithDetails{}, err
	}
	defer e.release(id)

	verified := domain.StatusVerified
	t, err := e.API.UpdateTask(ctx, id, api.UpdateTaskInput{Status: &verified})
	if err != nil {
		return domain.TaskWithDetails{}, err
	}
	if err := e.Cache.UpsertTask(ctx, t); err != nil {
		return t, fmt.Errorf("cache verified task: %w", err)
	}
	return t, nil
}

// Delete removes a task remote-first. The cache entry goes only after the
// backend confirms, so a failed delete never makes an item vanish and
// reappear.
func (e *Engine) Delete(ctx context.Context, id string) error {
	if err := e.acquire(id); err != nil {
		return err
	}
	defer e.release(id)

	if err := e.API.DeleteTask(ctx, id); err != nil {
		return err
	}
	if err := e.Cache.DeleteTask(ctx, id); err != nil {
		return fmt.Errorf("drop cached task: %w", err)
	}
	e.mu.Lock()
	if e.currentID == id {
		e.currentID = ""
	}
	e.mu.Unlock()
	return nil
}

// Tasks returns the cached listing.
func (e *Engine) Tasks(ctx context.Context) ([]domain.TaskWithDetails, error) {
	return e.Cache.ListTasks(ctx)
}

// PendingTasks returns cached tasks not yet started, urgent first.
func (e *Engine) PendingTasks(ctx context.Context) ([]domain.TaskWithDetails, error) {
	all, err := e.Cache.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	var pending []domain.TaskWithDetails
	for _, t := range all {
		if t.Status.Pending() {
			pending = append(pending, t)
		}
	}
	return pending, nil
}

// TasksAssignedTo returns cached tasks assigned to a user.
func (e *Engine) TasksAssignedTo(ctx context.Context, userID string) ([]domain.TaskWithDetails, error) {
	all, err := e.Cache.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	var mine []domain.TaskWithDetails
	for _, t := range all {
		if t.AssignedTo != nil && *t.AssignedTo == userID {
			mine = append(mine, t)
		}
	}
	return mine, nil
}

// CurrentTask returns the focused task, read from the same cache row the
// listing uses, so the two views cannot diverge.
func (e *Engine) CurrentTask(ctx context.Context) (*domain.TaskWithDetails, error) {
	e.mu.Lock()
	id := e.currentID
	e.mu.Unlock()
	if id == "" {
		return nil, nil
	}
	t, err := e.Cache.GetTask(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (e *Engine) setCurrent(id string) {
	e.mu.Lock()
	e.currentID = id
	e.mu.Unlock()
}

// cached resolves the task the preconditions are checked against. A task
// missing from the cache is fetched once; that fetch is a read, not the
// transition call itself.
func (e *Engine) cached(ctx context.Context, id string) (domain.TaskWithDetails, error) {
	t, err := e.Cache.GetTask(ctx, id)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.TaskWithDetails{}, err
	}
	t, err = e.API.GetTask(ctx, id)
	if err != nil {
		return domain.TaskWithDetails{}, err
	}
	if err := e.Cache.UpsertTask(ctx, t); err != nil {
		return domain.TaskWithDetails{}, fmt.Errorf("cache task: %w", err)
	}
	return t, nil
}
