package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/voicedesk-io/voicedesk/pkg/core/types"
	"github.com/voicedesk-io/voicedesk/pkg/gateway/checkpoint"
	"github.com/voicedesk-io/voicedesk/pkg/gateway/taskstore"
	"github.com/voicedesk-io/voicedesk/pkg/gateway/tools"
)

// fakeProvider replays scripted responses and records the requests it
// received.
type fakeProvider struct {
	responses []*types.TurnResponse
	err       error
	delay     time.Duration
	requests  []*types.TurnRequest
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) CreateTurn(ctx context.Context, req *types.TurnRequest) (*types.TurnResponse, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return &types.TurnResponse{
			Content:    []types.ContentBlock{types.TextBlock{Type: "text", Text: "out of script"}},
			StopReason: types.StopReasonEndTurn,
		}, nil
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func textResponse(text string) *types.TurnResponse {
	return &types.TurnResponse{
		Content:    []types.ContentBlock{types.TextBlock{Type: "text", Text: text}},
		StopReason: types.StopReasonEndTurn,
	}
}

func toolResponse(uses ...types.ToolUseBlock) *types.TurnResponse {
	content := make([]types.ContentBlock, 0, len(uses))
	for _, use := range uses {
		content = append(content, use)
	}
	return &types.TurnResponse{Content: content, StopReason: types.StopReasonToolUse}
}

func newTestOrchestrator(t *testing.T, provider *fakeProvider) (*Orchestrator, *checkpoint.MemoryStore, *taskstore.Memory) {
	t.Helper()
	store := taskstore.NewMemory()
	executors := tools.TaskExecutors(store)
	extensions := map[string]string{"support": "2000", "sales": "2100"}
	executors = append(executors,
		tools.NewTransferExecutor(extensions, "support"),
		tools.NewDepartmentsExecutor(extensions),
	)
	checkpoints := checkpoint.NewMemoryStore()
	orch := New(Dependencies{
		Provider:    provider,
		Registry:    tools.NewRegistry(executors...),
		Checkpoints: checkpoints,
	}, Config{Model: "test-model"})
	return orch, checkpoints, store
}

func TestTurnPlainReply(t *testing.T) {
	provider := &fakeProvider{responses: []*types.TurnResponse{textResponse("Hello Ada!")}}
	orch, checkpoints, _ := newTestOrchestrator(t, provider)

	outcome := orch.Turn(context.Background(), "t1", "u1", "hello")
	if outcome.Spoken != "Hello Ada!" || outcome.Transfer != nil {
		t.Fatalf("outcome = %+v", outcome)
	}

	history, err := checkpoints.Load(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history has %d messages, want user+assistant", len(history))
	}
	if history[0].Role != "user" || history[0].TextContent() != "hello" {
		t.Errorf("history[0] = %+v", history[0])
	}
	if history[1].Role != "assistant" || history[1].TextContent() != "Hello Ada!" {
		t.Errorf("history[1] = %+v", history[1])
	}
}

func TestTurnSeedsSystemPromptAndTools(t *testing.T) {
	provider := &fakeProvider{responses: []*types.TurnResponse{textResponse("hi")}}
	orch, _, _ := newTestOrchestrator(t, provider)

	orch.Turn(context.Background(), "t1", "u1", "hello")

	if len(provider.requests) != 1 {
		t.Fatalf("provider saw %d requests", len(provider.requests))
	}
	req := provider.requests[0]
	if req.System == "" || !strings.Contains(req.System, "transfer_to_agent") {
		t.Errorf("System = %q", req.System)
	}
	if len(req.Tools) == 0 {
		t.Error("expected tool catalogue on request")
	}
	if req.Model != "test-model" {
		t.Errorf("Model = %q", req.Model)
	}
}

func TestTurnCreatesTodoViaTool(t *testing.T) {
	provider := &fakeProvider{responses: []*types.TurnResponse{
		toolResponse(types.ToolUseBlock{
			Type: "tool_use", ID: "call_1", Name: "create_todo",
			Input: map[string]any{"title": "buy milk"},
		}),
		textResponse("Done, I added buy milk to your list."),
	}}
	orch, checkpoints, store := newTestOrchestrator(t, provider)

	outcome := orch.Turn(context.Background(), "t1", "u1", "add milk to my list")
	if outcome.Spoken != "Done, I added buy milk to your list." {
		t.Fatalf("outcome = %+v", outcome)
	}

	tasks, err := store.QueryTasks(context.Background(), "u1", taskstore.Query{Kind: taskstore.KindTodo})
	if err != nil {
		t.Fatalf("QueryTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "buy milk" {
		t.Fatalf("tasks = %+v", tasks)
	}

	// user, assistant(tool_use), user(tool_result), assistant(text)
	history, _ := checkpoints.Load(context.Background(), "t1")
	if len(history) != 4 {
		t.Fatalf("history has %d messages, want 4", len(history))
	}
	results := history[2]
	if results.Role != "user" {
		t.Errorf("tool results carried in role %q", results.Role)
	}
	tr, ok := results.Content[0].(types.ToolResultBlock)
	if !ok || tr.ToolUseID != "call_1" || tr.IsError {
		t.Errorf("tool result = %+v", results.Content[0])
	}
}

func TestTurnExecutesToolsInRequestOrder(t *testing.T) {
	provider := &fakeProvider{responses: []*types.TurnResponse{
		toolResponse(
			types.ToolUseBlock{Type: "tool_use", ID: "call_1", Name: "create_todo",
				Input: map[string]any{"title": "first"}},
			types.ToolUseBlock{Type: "tool_use", ID: "call_2", Name: "create_todo",
				Input: map[string]any{"title": "second"}},
		),
		textResponse("Both added."),
	}}
	orch, _, store := newTestOrchestrator(t, provider)

	orch.Turn(context.Background(), "t1", "u1", "add two things")

	// Both tools must have run before the second generation.
	if len(provider.requests) != 2 {
		t.Fatalf("provider saw %d requests, want 2", len(provider.requests))
	}
	second := provider.requests[1]
	last := second.Messages[len(second.Messages)-1]
	if len(last.Content) != 2 {
		t.Fatalf("second generation saw %d tool results, want 2", len(last.Content))
	}

	tasks, _ := store.QueryTasks(context.Background(), "u1", taskstore.Query{Kind: taskstore.KindTodo})
	if len(tasks) != 2 || tasks[0].Title != "first" || tasks[1].Title != "second" {
		t.Errorf("tasks = %+v, want request order preserved", tasks)
	}
}

func TestTurnToolFailureIsDataNotAbort(t *testing.T) {
	provider := &fakeProvider{responses: []*types.TurnResponse{
		toolResponse(types.ToolUseBlock{
			Type: "tool_use", ID: "call_1", Name: "complete_todo",
			Input: map[string]any{"id": "does-not-exist"},
		}),
		textResponse("I couldn't find that todo."),
	}}
	orch, _, _ := newTestOrchestrator(t, provider)

	outcome := orch.Turn(context.Background(), "t1", "u1", "mark it done")
	if outcome.Spoken != "I couldn't find that todo." {
		t.Fatalf("outcome = %+v, turn should continue past a failed tool", outcome)
	}

	second := provider.requests[1]
	last := second.Messages[len(second.Messages)-1]
	tr, ok := last.Content[0].(types.ToolResultBlock)
	if !ok || !tr.IsError {
		t.Fatalf("tool result = %+v, want error-flagged result", last.Content[0])
	}
	if !strings.Contains(tr.Content, "not_found") {
		t.Errorf("result content = %q, want not_found taxonomy visible to the model", tr.Content)
	}
}

func TestTurnTransferShortCircuits(t *testing.T) {
	provider := &fakeProvider{responses: []*types.TurnResponse{
		toolResponse(types.ToolUseBlock{
			Type: "tool_use", ID: "call_1", Name: "transfer_to_agent",
			Input: map[string]any{"department": "support", "reason": "needs a human"},
		}),
	}}
	orch, _, _ := newTestOrchestrator(t, provider)

	outcome := orch.Turn(context.Background(), "t1", "u1", "let me talk to a person")
	if outcome.Transfer == nil {
		t.Fatal("expected transfer outcome")
	}
	if outcome.Transfer.Department != "support" || outcome.Transfer.Extension != "2000" {
		t.Errorf("Transfer = %+v", outcome.Transfer)
	}
	// No second generation after a transfer.
	if len(provider.requests) != 1 {
		t.Errorf("provider saw %d requests, want 1", len(provider.requests))
	}
}

func TestTurnTimeoutLeavesCheckpointUntouched(t *testing.T) {
	provider := &fakeProvider{
		responses: []*types.TurnResponse{textResponse("too late")},
		delay:     200 * time.Millisecond,
	}
	store := taskstore.NewMemory()
	checkpoints := checkpoint.NewMemoryStore()
	seeded := []types.Message{types.UserText("earlier"), {
		Role:    "assistant",
		Content: []types.ContentBlock{types.TextBlock{Type: "text", Text: "earlier reply"}},
	}}
	if err := checkpoints.Save(context.Background(), "t1", seeded); err != nil {
		t.Fatal(err)
	}

	orch := New(Dependencies{
		Provider:    provider,
		Registry:    tools.NewRegistry(tools.TaskExecutors(store)...),
		Checkpoints: checkpoints,
	}, Config{Model: "test-model", TurnTimeout: 20 * time.Millisecond})

	outcome := orch.Turn(context.Background(), "t1", "u1", "hello?")
	if outcome.Spoken != DefaultFallbackReply {
		t.Fatalf("outcome = %+v, want fallback reply", outcome)
	}

	history, err := checkpoints.Load(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(history) != 2 || history[0].TextContent() != "earlier" {
		t.Errorf("checkpoint changed by a timed-out turn: %+v", history)
	}
}

func TestTurnProviderErrorYieldsFallbackNoCommit(t *testing.T) {
	provider := &fakeProvider{err: errors.New("upstream down")}
	orch, checkpoints, _ := newTestOrchestrator(t, provider)

	outcome := orch.Turn(context.Background(), "t1", "u1", "hello")
	if outcome.Spoken != DefaultFallbackReply {
		t.Fatalf("outcome = %+v", outcome)
	}
	if _, err := checkpoints.Load(context.Background(), "t1"); !errors.Is(err, checkpoint.ErrNotFound) {
		t.Errorf("Load err = %v, want ErrNotFound after failed turn", err)
	}
}

func TestTurnModelCallBudget(t *testing.T) {
	// Provider always demands another tool call; the guard must cut
	// the loop off rather than spin forever.
	loop := toolResponse(types.ToolUseBlock{
		Type: "tool_use", ID: "call_x", Name: "get_todos", Input: map[string]any{},
	})
	provider := &fakeProvider{responses: []*types.TurnResponse{loop, loop, loop, loop, loop}}
	store := taskstore.NewMemory()
	orch := New(Dependencies{
		Provider:    provider,
		Registry:    tools.NewRegistry(tools.TaskExecutors(store)...),
		Checkpoints: checkpoint.NewMemoryStore(),
	}, Config{Model: "test-model", MaxModelCalls: 3})

	outcome := orch.Turn(context.Background(), "t1", "u1", "loop please")
	if outcome.Spoken != DefaultFallbackReply {
		t.Fatalf("outcome = %+v, want fallback after budget", outcome)
	}
	if len(provider.requests) != 3 {
		t.Errorf("provider saw %d requests, want 3", len(provider.requests))
	}
}

func TestTurnHistoryAccumulatesAcrossTurns(t *testing.T) {
	provider := &fakeProvider{responses: []*types.TurnResponse{
		textResponse("first reply"),
		textResponse("second reply"),
	}}
	orch, _, _ := newTestOrchestrator(t, provider)

	orch.Turn(context.Background(), "t1", "u1", "first")
	orch.Turn(context.Background(), "t1", "u1", "second")

	second := provider.requests[1]
	if len(second.Messages) != 3 {
		t.Fatalf("second turn saw %d messages, want prior round plus new utterance", len(second.Messages))
	}
	if second.Messages[0].TextContent() != "first" || second.Messages[2].TextContent() != "second" {
		t.Errorf("messages = %+v", second.Messages)
	}
}
