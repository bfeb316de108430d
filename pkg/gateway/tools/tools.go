// Package tools is the catalogue of operations the assistant may
// invoke during a turn. Executors are registered at startup; the
// orchestrator discovers definitions through the registry and
// dispatches calls by name.
//
// Executor failures are data: a non-nil *core.Error becomes an
// error-flagged tool result the model can read and recover from. It
// never aborts the turn.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/voicedesk-io/voicedesk/pkg/core"
	"github.com/voicedesk-io/voicedesk/pkg/core/types"
)

// TransferResult is the typed outcome of a transfer request. The
// orchestrator short-circuits the turn when a tool returns one; no
// string sentinel ever crosses a package boundary.
type TransferResult struct {
	Department string `json:"department"`
	Extension  string `json:"extension"`
	Reason     string `json:"reason"`
}

// Result is what a successful execute produces: a payload for the
// model, and optionally a transfer request.
type Result struct {
	Content  string
	Transfer *TransferResult
}

// Executor is a single callable tool. userID scopes every store
// access to the authenticated caller.
type Executor interface {
	Name() string
	Definition() types.Tool
	Execute(ctx context.Context, userID string, input map[string]any) (Result, *core.Error)
}

// Registry holds the configured executors.
type Registry struct {
	byName map[string]Executor
}

func NewRegistry(executors ...Executor) *Registry {
	registry := &Registry{byName: make(map[string]Executor, len(executors))}
	for _, ex := range executors {
		if ex == nil {
			continue
		}
		registry.byName[ex.Name()] = ex
	}
	return registry
}

func (r *Registry) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.byName[strings.TrimSpace(name)]
	return ok
}

func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the full catalogue in name order, ready to be
// attached to a model request.
func (r *Registry) Definitions() []types.Tool {
	if r == nil {
		return nil
	}
	defs := make([]types.Tool, 0, len(r.byName))
	for _, name := range r.Names() {
		defs = append(defs, r.byName[name].Definition())
	}
	return defs
}

func (r *Registry) Execute(ctx context.Context, name, userID string, input map[string]any) (Result, *core.Error) {
	if r == nil {
		return Result{}, core.NewAPIError("tool registry is not configured")
	}
	ex, ok := r.byName[strings.TrimSpace(name)]
	if !ok {
		return Result{}, &core.Error{
			Type:    core.ErrInvalidRequest,
			Message: fmt.Sprintf("unknown tool %q", name),
			Code:    "unknown_tool",
		}
	}
	return ex.Execute(ctx, userID, input)
}
