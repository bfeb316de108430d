// Package ivr serves the telephony webhooks: a Twilio-compatible
// voice flow that authenticates callers by PIN, relays their speech
// through the orchestrator, and renders TwiML replies.
package ivr

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/voicedesk-io/voicedesk/pkg/gateway/orchestrator"
	"github.com/voicedesk-io/voicedesk/pkg/gateway/sessionstore"
	"github.com/voicedesk-io/voicedesk/pkg/gateway/taskstore"
)

// Webhook paths, also used by the server mux.
const (
	PathCall         = "/twilio/call"
	PathVerifyPIN    = "/twilio/verify_pin"
	PathProcessAudio = "/twilio/process_audio"
	PathWhisper      = "/twilio/whisper"
)

const (
	promptGreeting   = "Welcome to VoiceDesk, your personal assistant."
	promptAskPIN     = "Please say or enter your 4 to 6 digit PIN."
	promptBadPIN     = "That PIN doesn't match our records. Please try again."
	promptLockedOut  = "Too many failed attempts. Goodbye."
	promptStillThere = "Are you still there? Please tell me what you'd like to do."
	promptGoodbye    = "Goodbye! Have a great day."
)

// TurnRunner is the slice of the orchestrator the IVR needs.
type TurnRunner interface {
	Turn(ctx context.Context, threadID, userID, utterance string) orchestrator.Outcome
}

// Dependencies are the IVR's collaborators.
type Dependencies struct {
	Sessions  sessionstore.Store
	Directory taskstore.Store
	Runner    TurnRunner
	Logger    *slog.Logger
}

// Config tunes the call flow.
type Config struct {
	GatherTimeout  time.Duration
	ExitPhrases    []string
	MaxPINAttempts int
}

type Handler struct {
	sessions  sessionstore.Store
	directory taskstore.Store
	runner    TurnRunner
	logger    *slog.Logger
	cfg       Config
}

func NewHandler(deps Dependencies, cfg Config) *Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.GatherTimeout <= 0 {
		cfg.GatherTimeout = 10 * time.Second
	}
	if cfg.MaxPINAttempts <= 0 {
		cfg.MaxPINAttempts = 3
	}
	return &Handler{
		sessions:  deps.Sessions,
		directory: deps.Directory,
		runner:    deps.Runner,
		logger:    deps.Logger,
		cfg:       cfg,
	}
}

// Register mounts the webhook routes.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST "+PathCall, h.HandleCall)
	mux.HandleFunc("POST "+PathVerifyPIN, h.HandleVerifyPIN)
	mux.HandleFunc("POST "+PathProcessAudio, h.HandleProcessAudio)
	mux.HandleFunc("POST "+PathWhisper, h.HandleWhisper)
}

func (h *Handler) gatherSeconds() int { return int(h.cfg.GatherTimeout.Seconds()) }

// pinGather prompts for and collects a PIN by keypad or speech.
func (h *Handler) pinGather(prompt string) []any {
	return []any{
		Gather{
			Input:         "dtmf speech",
			Action:        PathVerifyPIN,
			Method:        "POST",
			Timeout:       h.gatherSeconds(),
			NumDigits:     6,
			SpeechTimeout: "auto",
			Verbs:         []any{Say{Text: prompt}},
		},
		// Gather fell through with nothing: start over.
		Say{Text: "I didn't catch that."},
		Redirect{Method: "POST", URL: PathCall},
	}
}

// speechGather speaks text inside a gather so the caller can barge in,
// then falls back to the silence path.
func (h *Handler) speechGather(text string) []any {
	return []any{
		Gather{
			Input:         "speech",
			Action:        PathProcessAudio,
			Method:        "POST",
			Timeout:       h.gatherSeconds(),
			SpeechTimeout: "auto",
			Verbs:         []any{Say{Text: text}},
		},
		Redirect{Method: "POST", URL: PathProcessAudio},
	}
}

func (h *Handler) render(w http.ResponseWriter, verbs ...any) {
	if err := writeTwiML(w, &Response{Verbs: verbs}); err != nil {
		h.logger.Error("twiml render failed", "error", err)
	}
}

// HandleCall is the entry webhook for an inbound call.
func (h *Handler) HandleCall(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	callSID := strings.TrimSpace(r.PostFormValue("CallSid"))
	if callSID == "" {
		http.Error(w, "CallSid is required", http.StatusBadRequest)
		return
	}

	sess := &sessionstore.Session{
		ID:           callSID,
		Channel:      sessionstore.ChannelPhone,
		CallSID:      callSID,
		CallerNumber: strings.TrimSpace(r.PostFormValue("From")),
		State:        string(StateCollecting),
	}
	if err := h.sessions.Create(r.Context(), sess); err != nil {
		h.logger.Error("call session create failed", "call_sid", callSID, "error", err)
		http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
		return
	}
	h.logger.Info("inbound call", "call_sid", callSID, "from", sess.CallerNumber)

	verbs := append([]any{Say{Text: promptGreeting}}, h.pinGather(promptAskPIN)...)
	h.render(w, verbs...)
}

// HandleVerifyPIN validates the gathered PIN against the directory.
func (h *Handler) HandleVerifyPIN(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	callSID := strings.TrimSpace(r.PostFormValue("CallSid"))
	sess, err := h.sessions.Get(r.Context(), callSID)
	if err != nil {
		h.render(w, Say{Text: "Let's start over."}, Redirect{Method: "POST", URL: PathCall})
		return
	}

	digits := strings.TrimSpace(r.PostFormValue("Digits"))
	if digits == "" {
		digits = normalizeDigits(r.PostFormValue("SpeechResult"))
	} else {
		digits = normalizeDigits(digits)
	}

	var user *taskstore.User
	if validPIN(digits) {
		user, err = h.directory.UserByPIN(r.Context(), digits)
		if err != nil && !errors.Is(err, taskstore.ErrNotFound) {
			h.logger.Error("pin lookup failed", "call_sid", callSID, "error", err)
			h.render(w, Say{Text: "Something went wrong on our end. Please call back later."}, Hangup{})
			return
		}
	}

	if user == nil {
		sess.PINAttempts++
		if sess.PINAttempts >= h.cfg.MaxPINAttempts {
			h.logger.Warn("caller locked out", "call_sid", callSID, "attempts", sess.PINAttempts)
			_ = h.sessions.Delete(r.Context(), callSID)
			h.render(w, Say{Text: promptLockedOut}, Hangup{})
			return
		}
		if err := h.sessions.Update(r.Context(), sess); err != nil {
			h.logger.Error("session update failed", "call_sid", callSID, "error", err)
		}
		h.render(w, h.pinGather(promptBadPIN)...)
		return
	}

	// The welcome plays inside a gather, so the call is already in the
	// responding state with barge-in open.
	sess.Authenticated = true
	sess.UserID = user.ID
	sess.PINAttempts = 0
	sess.State = string(StateResponding)
	if err := h.sessions.Update(r.Context(), sess); err != nil {
		h.logger.Error("session update failed", "call_sid", callSID, "error", err)
		h.render(w, Say{Text: "Something went wrong on our end. Please call back later."}, Hangup{})
		return
	}
	h.logger.Info("caller authenticated", "call_sid", callSID, "user_id", user.ID)

	welcome := "Welcome back, " + user.Name + "! How can I help you today?"
	h.render(w, h.speechGather(welcome)...)
}

// HandleProcessAudio handles one recognized utterance mid-call.
func (h *Handler) HandleProcessAudio(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	callSID := strings.TrimSpace(r.PostFormValue("CallSid"))
	sess, err := h.sessions.Get(r.Context(), callSID)
	if err != nil || !sess.Authenticated {
		h.render(w, Say{Text: "Let's start over."}, Redirect{Method: "POST", URL: PathCall})
		return
	}

	utterance := strings.TrimSpace(r.PostFormValue("SpeechResult"))
	if utterance == "" {
		// One reprompt from a played reply; a second silence in a row
		// ends the call.
		h.advance(r.Context(), sess, EventSilence)
		if State(sess.State) == StateEnded {
			_ = h.sessions.Delete(r.Context(), callSID)
			h.logger.Info("call ended by silence", "call_sid", callSID)
			h.render(w, Say{Text: promptGoodbye}, Hangup{})
			return
		}
		h.render(w, h.speechGather(promptStillThere)...)
		return
	}

	if isExitPhrase(utterance, h.cfg.ExitPhrases) {
		h.advance(r.Context(), sess, EventExit)
		_ = h.sessions.Delete(r.Context(), callSID)
		h.logger.Info("call ended by exit phrase", "call_sid", callSID)
		h.render(w, Say{Text: promptGoodbye}, Hangup{})
		return
	}

	h.advance(r.Context(), sess, EventUtterance)
	outcome := h.runner.Turn(r.Context(), callSID, sess.UserID, utterance)

	if outcome.Transfer != nil {
		h.advance(r.Context(), sess, EventTransfer)
		_ = h.sessions.Delete(r.Context(), callSID)
		h.logger.Info("call transferred", "call_sid", callSID,
			"department", outcome.Transfer.Department,
			"extension", outcome.Transfer.Extension,
			"reason", outcome.Transfer.Reason)
		h.render(w,
			Say{Text: "Please hold while I transfer you to " + outcome.Transfer.Department + "."},
			Dial{Verbs: []any{Number{
				URL:  whisperURL(outcome.Transfer.Department, outcome.Transfer.Reason),
				Text: outcome.Transfer.Extension,
			}}},
		)
		return
	}

	h.advance(r.Context(), sess, EventReply)
	h.render(w, h.speechGather(outcome.Spoken)...)
}

// whisperURL carries the transfer context to the operator leg as
// query parameters on the whisper endpoint.
func whisperURL(department, reason string) string {
	q := url.Values{}
	q.Set("department", department)
	if reason != "" {
		q.Set("reason", reason)
	}
	return PathWhisper + "?" + q.Encode()
}

// HandleWhisper is played to the operator who answers a transferred
// call, before the caller is bridged in.
func (h *Handler) HandleWhisper(w http.ResponseWriter, r *http.Request) {
	department := strings.TrimSpace(r.URL.Query().Get("department"))
	reason := strings.TrimSpace(r.URL.Query().Get("reason"))

	text := "Incoming transfer from the automated assistant"
	if department != "" {
		text += " for " + department
	}
	text += "."
	if reason != "" {
		text += " Reason: " + reason + "."
	}
	h.render(w, Say{Text: text})
}

// advance moves the stored call state through the machine, logging
// and keeping the old state when the event is not legal from there.
func (h *Handler) advance(ctx context.Context, sess *sessionstore.Session, event Event) {
	next, err := Transition(State(sess.State), event)
	if err != nil {
		h.logger.Warn("ignored call event", "call_sid", sess.CallSID,
			"state", sess.State, "event", event)
		return
	}
	sess.State = string(next)
	if next == StateEnded {
		return // session is deleted by the caller
	}
	if err := h.sessions.Update(ctx, sess); err != nil {
		h.logger.Error("session update failed", "call_sid", sess.CallSID, "error", err)
	}
}
