package taskstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Memory is an in-process Store for tests and degraded deployments.
type Memory struct {
	mu    sync.Mutex
	tasks map[string]Task
	users map[string]User // keyed by PIN
}

func NewMemory() *Memory {
	return &Memory{
		tasks: make(map[string]Task),
		users: make(map[string]User),
	}
}

// AddUser seeds a directory entry. Test helper and bootstrap hook.
func (s *Memory) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.VoicePIN] = u
}

func (s *Memory) CreateTask(_ context.Context, t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = ulid.Make().String()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	s.tasks[t.ID] = *t
	return nil
}

func (s *Memory) GetTask(_ context.Context, userID, id string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return nil, ErrNotFound
	}
	out := t
	return &out, nil
}

func (s *Memory) UpdateTask(_ context.Context, userID, id string, upd Update) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return nil, ErrNotFound
	}
	if upd.Title != nil {
		t.Title = *upd.Title
	}
	if upd.Description != nil {
		t.Description = *upd.Description
	}
	if upd.Priority != nil {
		t.Priority = *upd.Priority
	}
	if upd.DueAt != nil {
		due := *upd.DueAt
		t.DueAt = &due
	}
	if upd.EndAt != nil {
		end := *upd.EndAt
		t.EndAt = &end
	}
	if upd.Location != nil {
		t.Location = *upd.Location
	}
	if upd.Completed != nil {
		t.Completed = *upd.Completed
	}
	t.UpdatedAt = time.Now().UTC()
	s.tasks[id] = t
	out := t
	return &out, nil
}

func (s *Memory) DeleteTask(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *Memory) QueryTasks(_ context.Context, userID string, q Query) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Task
	for _, t := range s.tasks {
		if t.UserID != userID {
			continue
		}
		if q.Kind != "" && t.Kind != q.Kind {
			continue
		}
		if q.Completed != nil && t.Completed != *q.Completed {
			continue
		}
		if q.Priority != "" && t.Priority != q.Priority {
			continue
		}
		if q.DueBefore != nil && (t.DueAt == nil || t.DueAt.After(*q.DueBefore)) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Memory) UserByPIN(_ context.Context, pin string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[pin]
	if !ok {
		return nil, ErrNotFound
	}
	out := u
	return &out, nil
}
