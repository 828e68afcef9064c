package store

import (
	"context"
	"errors"
	"testing"

	"cleanline/internal/domain"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleUser() domain.User {
	return domain.User{ID: "u-1", Email: "ana@example.com", Name: "Ana", Role: domain.RoleAdmin, IsActive: true}
}

func sampleTask(id string, status domain.TaskStatus) domain.TaskWithDetails {
	return domain.TaskWithDetails{
		Task: domain.Task{
			ID:            id,
			RoomID:        "rm-1",
			Status:        status,
			ScheduledDate: "2026-08-30T08:00:00Z",
			UpdatedAt:     "2026-08-30T08:00:00Z",
		},
		RoomName:     "101",
		BuildingName: "Harbor Hotel",
	}
}

func TestSessionRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, _, err := s.ReadSession(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty store: err = %v, want ErrNotFound", err)
	}

	if err := s.WriteSession(ctx, "tok-1", sampleUser()); err != nil {
		t.Fatalf("write session: %v", err)
	}
	token, user, err := s.ReadSession(ctx)
	if err != nil {
		t.Fatalf("read session: %v", err)
	}
	if token != "tok-1" || user.ID != "u-1" || user.Role != domain.RoleAdmin {
		t.Fatalf("read back token=%q user=%+v", token, user)
	}

	// Overwrite replaces the pair.
	u2 := sampleUser()
	u2.ID = "u-2"
	if err := s.WriteSession(ctx, "tok-2", u2); err != nil {
		t.Fatalf("rewrite session: %v", err)
	}
	token, user, err = s.ReadSession(ctx)
	if err != nil {
		t.Fatalf("reread session: %v", err)
	}
	if token != "tok-2" || user.ID != "u-2" {
		t.Fatalf("after rewrite token=%q user.ID=%q", token, user.ID)
	}
}

func TestClearSessionIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.WriteSession(ctx, "tok", sampleUser()); err != nil {
		t.Fatalf("write: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := s.ClearSession(ctx); err != nil {
			t.Fatalf("clear #%d: %v", i+1, err)
		}
	}
	if _, _, err := s.ReadSession(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("after clear: err = %v, want ErrNotFound", err)
	}
}

func TestReadSessionHalfPairIsAbsent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.DB.ExecContext(ctx, `INSERT INTO session(key,value) VALUES ('token','tok-orphan')`); err != nil {
		t.Fatalf("seed orphan token: %v", err)
	}
	if _, _, err := s.ReadSession(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("orphan token: err = %v, want ErrNotFound", err)
	}
}

func TestReadSessionMalformedPrincipal(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.DB.ExecContext(ctx, `INSERT INTO session(key,value) VALUES ('token','tok'),('user','{not json')`); err != nil {
		t.Fatalf("seed malformed: %v", err)
	}
	_, _, err := s.ReadSession(ctx)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("malformed principal: err = %v, want distinct error", err)
	}
}

func TestUpsertTaskReplacesRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.UpsertTask(ctx, sampleTask("t-1", domain.StatusToClean)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.UpsertTask(ctx, sampleTask("t-1", domain.StatusInProgress)); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	got, err := s.GetTask(ctx, "t-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusInProgress {
		t.Fatalf("status = %s, want in_progress", got.Status)
	}
	tasks, err := s.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("cache has %d rows for one id", len(tasks))
	}
}

func TestReplaceTasksSwapsListing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.UpsertTask(ctx, sampleTask("t-old", domain.StatusToClean)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	fresh := []domain.TaskWithDetails{
		sampleTask("t-1", domain.StatusToClean),
		sampleTask("t-2", domain.StatusToCleanUrgent),
	}
	if err := s.ReplaceTasks(ctx, fresh); err != nil {
		t.Fatalf("replace: %v", err)
	}
	tasks, err := s.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("listing has %d tasks, want 2", len(tasks))
	}
	if tasks[0].ID != "t-2" {
		t.Fatalf("urgent task not listed first: %s", tasks[0].ID)
	}
	if _, err := s.GetTask(ctx, "t-old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stale row survived replace: %v", err)
	}
}
