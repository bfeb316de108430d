package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/voicedesk-io/voicedesk/pkg/core"
	"github.com/voicedesk-io/voicedesk/pkg/core/types"
)

// TransferExecutor hands the caller to a human department. It
// performs no store mutation; its Result carries a TransferResult the
// orchestrator acts on.
type TransferExecutor struct {
	extensions map[string]string
	fallback   string
}

// NewTransferExecutor builds the transfer tool from the configured
// department→extension map. fallback is used when the requested
// department is unknown.
func NewTransferExecutor(extensions map[string]string, fallback string) *TransferExecutor {
	return &TransferExecutor{extensions: extensions, fallback: fallback}
}

func (e *TransferExecutor) Name() string { return "transfer_to_agent" }

func (e *TransferExecutor) departments() []string {
	out := make([]string, 0, len(e.extensions))
	for dept := range e.extensions {
		out = append(out, dept)
	}
	sort.Strings(out)
	return out
}

func (e *TransferExecutor) Definition() types.Tool {
	return types.Tool{
		Name:        e.Name(),
		Description: "Transfer the caller to a human agent. Use when the caller asks for a person or the request is beyond the available tools.",
		InputSchema: &types.JSONSchema{
			Type: "object",
			Properties: map[string]*types.JSONSchema{
				"department": {Type: "string", Description: "Destination department", Enum: e.departments()},
				"reason":     {Type: "string", Description: "Short reason for the transfer, repeated to the agent"},
			},
			Required: []string{"reason"},
		},
	}
}

func (e *TransferExecutor) Execute(_ context.Context, _ string, input map[string]any) (Result, *core.Error) {
	reason := stringArg(input, "reason")
	if reason == "" {
		return Result{}, core.NewInvalidRequestErrorWithParam("reason is required", "reason")
	}
	dept := strings.ToLower(stringArg(input, "department"))
	if dept == "" {
		dept = e.fallback
	}
	ext, ok := e.extensions[dept]
	if !ok {
		dept = e.fallback
		ext, ok = e.extensions[dept]
		if !ok {
			return Result{}, core.NewAPIError("no transfer extension configured")
		}
	}
	transfer := &TransferResult{Department: dept, Extension: ext, Reason: reason}
	result, cerr := encodeResult(map[string]any{
		"transfer":   true,
		"department": dept,
		"extension":  ext,
		"reason":     reason,
	})
	if cerr != nil {
		return Result{}, cerr
	}
	result.Transfer = transfer
	return result, nil
}

// DepartmentsExecutor lists the departments a caller can be
// transferred to.
type DepartmentsExecutor struct {
	extensions map[string]string
}

func NewDepartmentsExecutor(extensions map[string]string) *DepartmentsExecutor {
	return &DepartmentsExecutor{extensions: extensions}
}

func (e *DepartmentsExecutor) Name() string { return "get_available_departments" }

func (e *DepartmentsExecutor) Definition() types.Tool {
	return types.Tool{
		Name:        e.Name(),
		Description: "List the departments available for a transfer to a human agent.",
		InputSchema: &types.JSONSchema{Type: "object"},
	}
}

func (e *DepartmentsExecutor) Execute(_ context.Context, _ string, _ map[string]any) (Result, *core.Error) {
	depts := make([]string, 0, len(e.extensions))
	for dept := range e.extensions {
		depts = append(depts, dept)
	}
	sort.Strings(depts)
	return encodeResult(map[string]any{
		"departments": depts,
		"note":        fmt.Sprintf("%d departments accept transfers", len(depts)),
	})
}
