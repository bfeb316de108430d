// Package orchestrator runs one conversation turn: it feeds the
// caller's utterance plus checkpointed history to the model, executes
// requested tools in order, and loops until the model produces a
// spoken reply or a tool requests a transfer.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/voicedesk-io/voicedesk/pkg/core"
	"github.com/voicedesk-io/voicedesk/pkg/core/types"
	"github.com/voicedesk-io/voicedesk/pkg/gateway/checkpoint"
	"github.com/voicedesk-io/voicedesk/pkg/gateway/tools"
)

// state tags the turn loop. Transitions are explicit; there is no
// recursion between assistant and tool handling.
type state int

const (
	stateAssistant state = iota
	stateTools
	stateEnd
)

// DefaultSystemPrompt frames the assistant for voice output.
const DefaultSystemPrompt = "You are VoiceDesk, a helpful voice assistant for managing todos, " +
	"reminders and calendar events. You are speaking with an authenticated caller " +
	"over a phone or voice connection. Keep replies short and conversational; they " +
	"will be read aloud. Use the available tools to look up or change the caller's " +
	"tasks. If the caller asks for a human, or you cannot help with the tools you " +
	"have, use transfer_to_agent."

// DefaultFallbackReply is spoken when a turn cannot complete.
const DefaultFallbackReply = "I'm sorry, I'm having trouble processing that right now. Could you try again?"

// Outcome is the result of a completed turn. Transfer is non-nil when
// a tool requested a hand-off to a human; Spoken carries the reply
// text otherwise.
type Outcome struct {
	Spoken   string
	Transfer *tools.TransferResult
}

// Metrics receives turn-level observations. Implementations must be
// safe for concurrent use.
type Metrics interface {
	TurnCompleted(outcome string)
	ToolCalled(name string, failed bool)
}

type noopMetrics struct{}

func (noopMetrics) TurnCompleted(string)    {}
func (noopMetrics) ToolCalled(string, bool) {}

// Dependencies are the orchestrator's collaborators.
type Dependencies struct {
	Provider    core.Provider
	Registry    *tools.Registry
	Checkpoints checkpoint.Store
	Logger      *slog.Logger
	Metrics     Metrics
}

// Config tunes a single orchestrator instance.
type Config struct {
	Model         string
	SystemPrompt  string
	FallbackReply string
	TurnTimeout   time.Duration
	ToolTimeout   time.Duration
	MaxModelCalls int
}

type Orchestrator struct {
	provider    core.Provider
	registry    *tools.Registry
	checkpoints checkpoint.Store
	logger      *slog.Logger
	metrics     Metrics
	cfg         Config
}

func New(deps Dependencies, cfg Config) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.FallbackReply == "" {
		cfg.FallbackReply = DefaultFallbackReply
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = 25 * time.Second
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = 8 * time.Second
	}
	if cfg.MaxModelCalls <= 0 {
		cfg.MaxModelCalls = 8
	}
	return &Orchestrator{
		provider:    deps.Provider,
		registry:    deps.Registry,
		checkpoints: deps.Checkpoints,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		cfg:         cfg,
	}
}

// Turn processes one caller utterance for the given thread. The
// checkpoint is committed exactly once, after the turn reaches its
// end state; a turn that times out or fails commits nothing and
// yields the fallback reply, so the stored history never contains a
// half-finished round.
func (o *Orchestrator) Turn(ctx context.Context, threadID, userID, utterance string) Outcome {
	turnCtx, cancel := context.WithTimeout(ctx, o.cfg.TurnTimeout)
	defer cancel()

	history, err := o.checkpoints.Load(turnCtx, threadID)
	if err != nil && !errors.Is(err, checkpoint.ErrNotFound) {
		o.logger.Error("checkpoint load failed", "thread_id", threadID, "error", err)
		o.metrics.TurnCompleted("fallback")
		return Outcome{Spoken: o.cfg.FallbackReply}
	}
	history = append(history, types.UserText(utterance))

	var (
		outcome    Outcome
		generation *types.TurnResponse
		calls      int
	)

	current := stateAssistant
	for current != stateEnd {
		switch current {
		case stateAssistant:
			if calls >= o.cfg.MaxModelCalls {
				o.logger.Warn("model call budget exhausted", "thread_id", threadID, "calls", calls)
				outcome = Outcome{Spoken: o.cfg.FallbackReply}
				current = stateEnd
				continue
			}
			calls++
			resp, err := o.provider.CreateTurn(turnCtx, &types.TurnRequest{
				Model:    o.cfg.Model,
				System:   o.cfg.SystemPrompt,
				Messages: history,
				Tools:    o.registry.Definitions(),
			})
			if err != nil {
				o.logger.Error("generation failed", "thread_id", threadID, "calls", calls, "error", err)
				o.metrics.TurnCompleted("fallback")
				return Outcome{Spoken: o.cfg.FallbackReply}
			}
			generation = resp
			history = append(history, types.Message{Role: "assistant", Content: resp.Content})
			if len(resp.ToolUses()) > 0 {
				current = stateTools
			} else {
				outcome = Outcome{Spoken: resp.Text()}
				current = stateEnd
			}

		case stateTools:
			results, transfer := o.executeTools(turnCtx, userID, threadID, generation.ToolUses())
			history = append(history, types.Message{Role: "user", Content: results})
			if transfer != nil {
				outcome = Outcome{Transfer: transfer}
				current = stateEnd
			} else {
				current = stateAssistant
			}
		}
	}

	// Commit on a context detached from the turn deadline: a turn that
	// finished its work must not lose its history to a late timeout.
	commitCtx, commitCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer commitCancel()
	if err := o.checkpoints.Save(commitCtx, threadID, history); err != nil {
		o.logger.Error("checkpoint save failed", "thread_id", threadID, "error", err)
	}
	switch {
	case outcome.Transfer != nil:
		o.metrics.TurnCompleted("transfer")
	case outcome.Spoken == o.cfg.FallbackReply:
		o.metrics.TurnCompleted("fallback")
	default:
		o.metrics.TurnCompleted("spoken")
	}
	return outcome
}

// executeTools runs the requested calls strictly in request order and
// returns one tool_result block per call. A transfer stops execution;
// calls after it are answered with an error result so the history
// never carries an unanswered tool_use.
func (o *Orchestrator) executeTools(ctx context.Context, userID, threadID string, uses []types.ToolUseBlock) ([]types.ContentBlock, *tools.TransferResult) {
	results := make([]types.ContentBlock, 0, len(uses))
	var transfer *tools.TransferResult

	for _, use := range uses {
		if transfer != nil {
			results = append(results, types.ToolResultBlock{
				Type:      "tool_result",
				ToolUseID: use.ID,
				Content:   "not executed: call is being transferred",
				IsError:   true,
			})
			continue
		}

		// Mutations run detached from the turn deadline so a started
		// write always finishes; only the per-tool budget applies.
		toolCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.ToolTimeout)
		result, cerr := o.registry.Execute(toolCtx, use.Name, userID, use.Input)
		cancel()
		o.metrics.ToolCalled(use.Name, cerr != nil)

		if cerr != nil {
			o.logger.Warn("tool failed", "thread_id", threadID, "tool", use.Name,
				"error_type", cerr.Type, "error", cerr.Message)
			results = append(results, types.ToolResultBlock{
				Type:      "tool_result",
				ToolUseID: use.ID,
				Content:   encodeToolError(cerr),
				IsError:   true,
			})
			continue
		}

		results = append(results, types.ToolResultBlock{
			Type:      "tool_result",
			ToolUseID: use.ID,
			Content:   result.Content,
		})
		if result.Transfer != nil {
			transfer = result.Transfer
		}
	}
	return results, transfer
}

func encodeToolError(cerr *core.Error) string {
	raw, err := json.Marshal(map[string]string{
		"error":   string(cerr.Type),
		"message": cerr.Message,
	})
	if err != nil {
		return cerr.Message
	}
	return string(raw)
}
