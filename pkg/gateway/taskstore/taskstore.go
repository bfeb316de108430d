// Package taskstore is the durable store behind the assistant's tools:
// tasks of three kinds (todos, reminders, calendar events) plus the
// voice-PIN user directory.
package taskstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a task or user does not exist. Tool
// executors surface it as result data, not as a failed dispatch.
var ErrNotFound = errors.New("taskstore: not found")

// Kind discriminates the task variants stored in one table.
type Kind string

const (
	KindTodo          Kind = "todo"
	KindReminder      Kind = "reminder"
	KindCalendarEvent Kind = "calendar_event"
)

// ValidKind reports whether k is one of the known task kinds.
func ValidKind(k Kind) bool {
	switch k {
	case KindTodo, KindReminder, KindCalendarEvent:
		return true
	}
	return false
}

// Task is a single item owned by a user. Not every field applies to
// every kind: Priority is a todo concern, DueAt carries a reminder's
// fire time or an event's start, EndAt and Location are event fields.
type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Kind        Kind       `json:"kind"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	EndAt       *time.Time `json:"end_at,omitempty"`
	Location    string     `json:"location,omitempty"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Update carries partial field changes; nil means leave unchanged.
type Update struct {
	Title       *string
	Description *string
	Priority    *string
	DueAt       *time.Time
	EndAt       *time.Time
	Location    *string
	Completed   *bool
}

// Query filters a user's tasks. Zero-value fields match everything.
type Query struct {
	Kind      Kind
	Completed *bool
	Priority  string
	DueBefore *time.Time
	Limit     int
}

// User is a voice-PIN directory entry.
type User struct {
	ID       string
	Name     string
	VoicePIN string
}

// Store is the persistence contract used by the tool executors.
// Concurrent updates to the same row are last-write-wins.
type Store interface {
	CreateTask(ctx context.Context, t *Task) error
	GetTask(ctx context.Context, userID, id string) (*Task, error)
	UpdateTask(ctx context.Context, userID, id string, upd Update) (*Task, error)
	DeleteTask(ctx context.Context, userID, id string) error
	QueryTasks(ctx context.Context, userID string, q Query) ([]Task, error)
	UserByPIN(ctx context.Context, pin string) (*User, error)
}
