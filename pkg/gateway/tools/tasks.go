package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/voicedesk-io/voicedesk/pkg/core"
	"github.com/voicedesk-io/voicedesk/pkg/core/types"
	"github.com/voicedesk-io/voicedesk/pkg/gateway/taskstore"
)

// kindSpec describes how one task kind surfaces as tools: the noun
// used in tool names and which optional fields its schema exposes.
type kindSpec struct {
	kind     taskstore.Kind
	singular string
	plural   string
	fields   map[string]*types.JSONSchema
}

var (
	todoSpec = kindSpec{
		kind:     taskstore.KindTodo,
		singular: "todo",
		plural:   "todos",
		fields: map[string]*types.JSONSchema{
			"description": {Type: "string", Description: "Longer free-form details"},
			"priority":    {Type: "string", Description: "Task priority", Enum: []string{"low", "medium", "high"}},
			"due_at":      {Type: "string", Description: "Due time, RFC 3339"},
		},
	}
	reminderSpec = kindSpec{
		kind:     taskstore.KindReminder,
		singular: "reminder",
		plural:   "reminders",
		fields: map[string]*types.JSONSchema{
			"description": {Type: "string", Description: "Longer free-form details"},
			"due_at":      {Type: "string", Description: "When the reminder should fire, RFC 3339"},
		},
	}
	calendarSpec = kindSpec{
		kind:     taskstore.KindCalendarEvent,
		singular: "calendar_event",
		plural:   "calendar_events",
		fields: map[string]*types.JSONSchema{
			"description": {Type: "string", Description: "Longer free-form details"},
			"due_at":      {Type: "string", Description: "Event start time, RFC 3339"},
			"end_at":      {Type: "string", Description: "Event end time, RFC 3339"},
			"location":    {Type: "string", Description: "Where the event takes place"},
		},
	}
)

// TaskExecutors returns the full task CRUD catalogue over store.
func TaskExecutors(store taskstore.Store) []Executor {
	var out []Executor
	for _, spec := range []kindSpec{todoSpec, reminderSpec, calendarSpec} {
		out = append(out,
			&createExecutor{spec: spec, store: store},
			&listExecutor{spec: spec, store: store},
			&updateExecutor{spec: spec, store: store},
			&deleteExecutor{spec: spec, store: store},
		)
	}
	out = append(out, &completeExecutor{store: store})
	out = append(out, &queryExecutor{store: store})
	return out
}

func storeError(op string, err error) *core.Error {
	if errors.Is(err, taskstore.ErrNotFound) {
		return core.NewNotFoundError(op + ": no such task")
	}
	return core.NewUnavailableError(fmt.Sprintf("%s: task store unavailable", op))
}

func taskPayload(t *taskstore.Task) map[string]any {
	out := map[string]any{
		"id":        t.ID,
		"kind":      string(t.Kind),
		"title":     t.Title,
		"completed": t.Completed,
	}
	if t.Description != "" {
		out["description"] = t.Description
	}
	if t.Priority != "" {
		out["priority"] = t.Priority
	}
	if t.DueAt != nil {
		out["due_at"] = t.DueAt.Format(time.RFC3339)
	}
	if t.EndAt != nil {
		out["end_at"] = t.EndAt.Format(time.RFC3339)
	}
	if t.Location != "" {
		out["location"] = t.Location
	}
	return out
}

func encodeResult(payload any) (Result, *core.Error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Result{}, core.NewAPIError("failed to encode tool result")
	}
	return Result{Content: string(raw)}, nil
}

type createExecutor struct {
	spec  kindSpec
	store taskstore.Store
}

func (e *createExecutor) Name() string { return "create_" + e.spec.singular }

func (e *createExecutor) Definition() types.Tool {
	props := map[string]*types.JSONSchema{
		"title": {Type: "string", Description: "Short title"},
	}
	for name, schema := range e.spec.fields {
		props[name] = schema
	}
	return types.Tool{
		Name:        e.Name(),
		Description: fmt.Sprintf("Create a new %s for the caller.", e.spec.singular),
		InputSchema: &types.JSONSchema{
			Type:       "object",
			Properties: props,
			Required:   []string{"title"},
		},
	}
}

func (e *createExecutor) Execute(ctx context.Context, userID string, input map[string]any) (Result, *core.Error) {
	title := stringArg(input, "title")
	if title == "" {
		return Result{}, core.NewInvalidRequestErrorWithParam("title is required", "title")
	}
	task := &taskstore.Task{
		UserID:      userID,
		Kind:        e.spec.kind,
		Title:       title,
		Description: stringArg(input, "description"),
		Priority:    stringArg(input, "priority"),
		Location:    stringArg(input, "location"),
	}
	if due, ok, err := timeArg(input, "due_at"); err != nil {
		return Result{}, core.NewInvalidRequestErrorWithParam("due_at must be RFC 3339", "due_at")
	} else if ok {
		task.DueAt = &due
	}
	if end, ok, err := timeArg(input, "end_at"); err != nil {
		return Result{}, core.NewInvalidRequestErrorWithParam("end_at must be RFC 3339", "end_at")
	} else if ok {
		task.EndAt = &end
	}
	if err := e.store.CreateTask(ctx, task); err != nil {
		return Result{}, storeError(e.Name(), err)
	}
	return encodeResult(map[string]any{"created": taskPayload(task)})
}

type listExecutor struct {
	spec  kindSpec
	store taskstore.Store
}

func (e *listExecutor) Name() string { return "get_" + e.spec.plural }

func (e *listExecutor) Definition() types.Tool {
	return types.Tool{
		Name:        e.Name(),
		Description: fmt.Sprintf("List the caller's %s.", e.spec.plural),
		InputSchema: &types.JSONSchema{
			Type: "object",
			Properties: map[string]*types.JSONSchema{
				"include_completed": {Type: "boolean", Description: "Include completed items (default false)"},
			},
		},
	}
}

func (e *listExecutor) Execute(ctx context.Context, userID string, input map[string]any) (Result, *core.Error) {
	q := taskstore.Query{Kind: e.spec.kind}
	if include, ok := boolArg(input, "include_completed"); !ok || !include {
		open := false
		q.Completed = &open
	}
	tasks, err := e.store.QueryTasks(ctx, userID, q)
	if err != nil {
		return Result{}, storeError(e.Name(), err)
	}
	items := make([]map[string]any, 0, len(tasks))
	for i := range tasks {
		items = append(items, taskPayload(&tasks[i]))
	}
	return encodeResult(map[string]any{"count": len(items), e.spec.plural: items})
}

type updateExecutor struct {
	spec  kindSpec
	store taskstore.Store
}

func (e *updateExecutor) Name() string { return "update_" + e.spec.singular }

func (e *updateExecutor) Definition() types.Tool {
	props := map[string]*types.JSONSchema{
		"id":    {Type: "string", Description: "ID of the item to change"},
		"title": {Type: "string", Description: "New title"},
	}
	for name, schema := range e.spec.fields {
		props[name] = schema
	}
	return types.Tool{
		Name:        e.Name(),
		Description: fmt.Sprintf("Change fields of an existing %s. Only provided fields change.", e.spec.singular),
		InputSchema: &types.JSONSchema{
			Type:       "object",
			Properties: props,
			Required:   []string{"id"},
		},
	}
}

func (e *updateExecutor) Execute(ctx context.Context, userID string, input map[string]any) (Result, *core.Error) {
	id := stringArg(input, "id")
	if id == "" {
		return Result{}, core.NewInvalidRequestErrorWithParam("id is required", "id")
	}
	var upd taskstore.Update
	if v, ok := input["title"].(string); ok {
		upd.Title = &v
	}
	if v, ok := input["description"].(string); ok {
		upd.Description = &v
	}
	if v, ok := input["priority"].(string); ok {
		upd.Priority = &v
	}
	if v, ok := input["location"].(string); ok {
		upd.Location = &v
	}
	if due, ok, err := timeArg(input, "due_at"); err != nil {
		return Result{}, core.NewInvalidRequestErrorWithParam("due_at must be RFC 3339", "due_at")
	} else if ok {
		upd.DueAt = &due
	}
	if end, ok, err := timeArg(input, "end_at"); err != nil {
		return Result{}, core.NewInvalidRequestErrorWithParam("end_at must be RFC 3339", "end_at")
	} else if ok {
		upd.EndAt = &end
	}
	task, err := e.store.UpdateTask(ctx, userID, id, upd)
	if err != nil {
		return Result{}, storeError(e.Name(), err)
	}
	return encodeResult(map[string]any{"updated": taskPayload(task)})
}

type deleteExecutor struct {
	spec  kindSpec
	store taskstore.Store
}

func (e *deleteExecutor) Name() string { return "delete_" + e.spec.singular }

func (e *deleteExecutor) Definition() types.Tool {
	return types.Tool{
		Name:        e.Name(),
		Description: fmt.Sprintf("Delete a %s permanently.", e.spec.singular),
		InputSchema: &types.JSONSchema{
			Type: "object",
			Properties: map[string]*types.JSONSchema{
				"id": {Type: "string", Description: "ID of the item to delete"},
			},
			Required: []string{"id"},
		},
	}
}

func (e *deleteExecutor) Execute(ctx context.Context, userID string, input map[string]any) (Result, *core.Error) {
	id := stringArg(input, "id")
	if id == "" {
		return Result{}, core.NewInvalidRequestErrorWithParam("id is required", "id")
	}
	if err := e.store.DeleteTask(ctx, userID, id); err != nil {
		return Result{}, storeError(e.Name(), err)
	}
	return encodeResult(map[string]any{"deleted": id})
}

type completeExecutor struct {
	store taskstore.Store
}

func (e *completeExecutor) Name() string { return "complete_todo" }

func (e *completeExecutor) Definition() types.Tool {
	return types.Tool{
		Name:        e.Name(),
		Description: "Mark a todo as completed.",
		InputSchema: &types.JSONSchema{
			Type: "object",
			Properties: map[string]*types.JSONSchema{
				"id": {Type: "string", Description: "ID of the todo to complete"},
			},
			Required: []string{"id"},
		},
	}
}

func (e *completeExecutor) Execute(ctx context.Context, userID string, input map[string]any) (Result, *core.Error) {
	id := stringArg(input, "id")
	if id == "" {
		return Result{}, core.NewInvalidRequestErrorWithParam("id is required", "id")
	}
	done := true
	task, err := e.store.UpdateTask(ctx, userID, id, taskstore.Update{Completed: &done})
	if err != nil {
		return Result{}, storeError(e.Name(), err)
	}
	return encodeResult(map[string]any{"completed": taskPayload(task)})
}

type queryExecutor struct {
	store taskstore.Store
}

func (e *queryExecutor) Name() string { return "query_tasks" }

func (e *queryExecutor) Definition() types.Tool {
	return types.Tool{
		Name:        e.Name(),
		Description: "Search the caller's tasks across all kinds with structured filters.",
		InputSchema: &types.JSONSchema{
			Type: "object",
			Properties: map[string]*types.JSONSchema{
				"kind":       {Type: "string", Description: "Restrict to one kind", Enum: []string{"todo", "reminder", "calendar_event"}},
				"completed":  {Type: "boolean", Description: "Filter by completion state"},
				"priority":   {Type: "string", Description: "Filter by priority", Enum: []string{"low", "medium", "high"}},
				"due_before": {Type: "string", Description: "Only items due at or before this time, RFC 3339"},
				"limit":      {Type: "integer", Description: "Maximum number of results"},
			},
		},
	}
}

func (e *queryExecutor) Execute(ctx context.Context, userID string, input map[string]any) (Result, *core.Error) {
	var q taskstore.Query
	if kind := stringArg(input, "kind"); kind != "" {
		if !taskstore.ValidKind(taskstore.Kind(kind)) {
			return Result{}, core.NewInvalidRequestErrorWithParam("unknown task kind", "kind")
		}
		q.Kind = taskstore.Kind(kind)
	}
	if completed, ok := boolArg(input, "completed"); ok {
		q.Completed = &completed
	}
	q.Priority = stringArg(input, "priority")
	if due, ok, err := timeArg(input, "due_before"); err != nil {
		return Result{}, core.NewInvalidRequestErrorWithParam("due_before must be RFC 3339", "due_before")
	} else if ok {
		q.DueBefore = &due
	}
	if limit, ok := intArg(input, "limit"); ok && limit > 0 {
		q.Limit = limit
	}
	tasks, err := e.store.QueryTasks(ctx, userID, q)
	if err != nil {
		return Result{}, storeError(e.Name(), err)
	}
	items := make([]map[string]any, 0, len(tasks))
	for i := range tasks {
		items = append(items, taskPayload(&tasks[i]))
	}
	return encodeResult(map[string]any{"count": len(items), "tasks": items})
}
