package taskstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func boolPtr(b bool) *bool       { return &b }
func strPtr(s string) *string    { return &s }

func TestMemoryCreateAssignsID(t *testing.T) {
	store := NewMemory()
	task := &Task{UserID: "u1", Kind: KindTodo, Title: "buy milk"}
	if err := store.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.ID == "" {
		t.Error("expected generated ID")
	}
	if task.CreatedAt.IsZero() || task.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestMemoryCreateNotIdempotent(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := store.CreateTask(ctx, &Task{UserID: "u1", Kind: KindTodo, Title: "buy milk"}); err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
	}
	got, err := store.QueryTasks(ctx, "u1", Query{Kind: KindTodo})
	if err != nil {
		t.Fatalf("QueryTasks: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d tasks, want 2 distinct rows for identical creates", len(got))
	}
}

func TestMemoryGetEnforcesOwnership(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	task := &Task{UserID: "u1", Kind: KindTodo, Title: "secret"}
	if err := store.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if _, err := store.GetTask(ctx, "u2", task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-user get: err = %v, want ErrNotFound", err)
	}
}

func TestMemoryUpdatePartial(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	task := &Task{UserID: "u1", Kind: KindTodo, Title: "buy milk", Priority: "low"}
	if err := store.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	got, err := store.UpdateTask(ctx, "u1", task.ID, Update{Completed: boolPtr(true)})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if !got.Completed {
		t.Error("Completed not applied")
	}
	if got.Title != "buy milk" || got.Priority != "low" {
		t.Errorf("untouched fields changed: %+v", got)
	}
}

func TestMemoryUpdateMissing(t *testing.T) {
	store := NewMemory()
	_, err := store.UpdateTask(context.Background(), "u1", "nope", Update{Title: strPtr("x")})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryDelete(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	task := &Task{UserID: "u1", Kind: KindReminder, Title: "call mom"}
	if err := store.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if err := store.DeleteTask(ctx, "u1", task.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if err := store.DeleteTask(ctx, "u1", task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
}

func TestMemoryQueryFilters(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	soon := time.Now().UTC().Add(time.Hour)
	later := time.Now().UTC().Add(48 * time.Hour)

	seed := []*Task{
		{UserID: "u1", Kind: KindTodo, Title: "todo open", Priority: "high"},
		{UserID: "u1", Kind: KindTodo, Title: "todo done", Completed: true},
		{UserID: "u1", Kind: KindReminder, Title: "soon", DueAt: &soon},
		{UserID: "u1", Kind: KindReminder, Title: "later", DueAt: &later},
		{UserID: "u2", Kind: KindTodo, Title: "someone else"},
	}
	for _, task := range seed {
		if err := store.CreateTask(ctx, task); err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
	}

	open, err := store.QueryTasks(ctx, "u1", Query{Kind: KindTodo, Completed: boolPtr(false)})
	if err != nil {
		t.Fatalf("QueryTasks: %v", err)
	}
	if len(open) != 1 || open[0].Title != "todo open" {
		t.Errorf("open todos = %+v", open)
	}

	cutoff := time.Now().UTC().Add(24 * time.Hour)
	due, err := store.QueryTasks(ctx, "u1", Query{Kind: KindReminder, DueBefore: &cutoff})
	if err != nil {
		t.Fatalf("QueryTasks: %v", err)
	}
	if len(due) != 1 || due[0].Title != "soon" {
		t.Errorf("due reminders = %+v", due)
	}

	all, err := store.QueryTasks(ctx, "u1", Query{})
	if err != nil {
		t.Fatalf("QueryTasks: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("got %d tasks for u1, want 4", len(all))
	}
}

func TestMemoryUserByPIN(t *testing.T) {
	store := NewMemory()
	store.AddUser(User{ID: "u1", Name: "Ada", VoicePIN: "1234"})

	u, err := store.UserByPIN(context.Background(), "1234")
	if err != nil {
		t.Fatalf("UserByPIN: %v", err)
	}
	if u.Name != "Ada" {
		t.Errorf("Name = %q", u.Name)
	}

	if _, err := store.UserByPIN(context.Background(), "0000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown pin: err = %v, want ErrNotFound", err)
	}
}
