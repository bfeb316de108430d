// Package live serves the persistent browser voice channel: a
// websocket session that authenticates by PIN, accumulates recorded
// audio, and streams each turn's transcription, status, and spoken
// reply back as JSON events.
package live

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voicedesk-io/voicedesk/pkg/gateway/ivr"
	"github.com/voicedesk-io/voicedesk/pkg/gateway/sessionstore"
	"github.com/voicedesk-io/voicedesk/pkg/gateway/taskstore"
)

// Pipeline is the slice of the voice pipeline the channel needs.
type Pipeline interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Dependencies are the channel's collaborators.
type Dependencies struct {
	Sessions  sessionstore.Store
	Directory taskstore.Store
	Runner    ivr.TurnRunner
	Pipeline  Pipeline
	Tracker   *Tracker
	Logger    *slog.Logger
}

// Config tunes per-connection behavior.
type Config struct {
	MinAudioBytes       int
	MaxAudioBufferBytes int
	MaxJSONMessageBytes int64
	WriteTimeout        time.Duration
	ReadTimeout         time.Duration
	PingInterval        time.Duration
	MaxSessionDuration  time.Duration
}

type Handler struct {
	sessions  sessionstore.Store
	directory taskstore.Store
	runner    ivr.TurnRunner
	pipeline  Pipeline
	tracker   *Tracker
	logger    *slog.Logger
	cfg       Config
}

func NewHandler(deps Dependencies, cfg Config) *Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Tracker == nil {
		deps.Tracker = NewTracker()
	}
	if cfg.MinAudioBytes <= 0 {
		cfg.MinAudioBytes = 1000
	}
	if cfg.MaxAudioBufferBytes <= cfg.MinAudioBytes {
		cfg.MaxAudioBufferBytes = 10 << 20
	}
	if cfg.MaxJSONMessageBytes <= 0 {
		cfg.MaxJSONMessageBytes = 1 << 20
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 20 * time.Second
	}
	if cfg.MaxSessionDuration <= 0 {
		cfg.MaxSessionDuration = 2 * time.Hour
	}
	return &Handler{
		sessions:  deps.Sessions,
		directory: deps.Directory,
		runner:    deps.Runner,
		pipeline:  deps.Pipeline,
		tracker:   deps.Tracker,
		logger:    deps.Logger,
		cfg:       cfg,
	}
}

// liveConn is one connected client.
type liveConn struct {
	id string
	ws *websocket.Conn

	writeMu sync.Mutex

	stateMu       sync.Mutex
	authenticated bool
	userID        string
	userName      string

	recorder   *Recorder
	processing atomic.Bool
}

func (c *liveConn) auth() (bool, string) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.authenticated, c.userID
}

// ServeHTTP upgrades the connection and runs the session read loop.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()
	ws.SetReadLimit(h.cfg.MaxJSONMessageBytes)

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.MaxSessionDuration)
	defer cancel()

	conn := &liveConn{
		id:       uuid.NewString(),
		ws:       ws,
		recorder: NewRecorder(h.cfg.MinAudioBytes, h.cfg.MaxAudioBufferBytes),
	}

	if err := h.sessions.Create(ctx, &sessionstore.Session{
		ID:      conn.id,
		Channel: sessionstore.ChannelVoice,
	}); err != nil {
		h.logger.Error("live session create failed", "session_id", conn.id, "error", err)
		return
	}
	defer func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cleanupCancel()
		_ = h.sessions.Delete(cleanupCtx, conn.id)
	}()

	unregister := h.tracker.Register(conn.id, Handle{
		Cancel: func() { cancel(); _ = ws.Close() },
		Notify: func(message string) error {
			return h.send(conn, statusEvent{Type: EventStatus, Message: message})
		},
	})
	defer unregister()

	h.logger.Info("live session opened", "session_id", conn.id)
	defer h.logger.Info("live session closed", "session_id", conn.id)

	if err := h.send(conn, connectedEvent{Type: EventConnected, SessionID: conn.id}); err != nil {
		return
	}

	stopPings := h.startPings(ctx, conn)
	defer stopPings()

	for {
		if h.cfg.ReadTimeout > 0 {
			_ = ws.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
		}
		messageType, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			h.sendError(conn, "frames must be JSON text")
			continue
		}
		event, err := decodeClientEvent(raw)
		if err != nil {
			h.sendError(conn, "invalid event")
			continue
		}
		h.dispatch(ctx, conn, event)
	}
}

func (h *Handler) dispatch(ctx context.Context, conn *liveConn, event ClientEvent) {
	switch event.Type {
	case EventAuthenticate:
		h.handleAuthenticate(ctx, conn, event.PIN)
	case EventStartRecording:
		h.handleStartRecording(ctx, conn)
	case EventAudioChunk:
		h.handleAudioChunk(conn, event.Audio)
	case EventStopRecording:
		h.handleStopRecording(ctx, conn)
	default:
		h.sendError(conn, "unknown event type")
	}
}

func (h *Handler) handleAuthenticate(ctx context.Context, conn *liveConn, pin string) {
	pin = strings.TrimSpace(pin)
	user, err := h.directory.UserByPIN(ctx, pin)
	if errors.Is(err, taskstore.ErrNotFound) {
		_ = h.send(conn, authenticatedEvent{
			Type:    EventAuthenticated,
			Success: false,
			Message: "Invalid PIN. Please try again.",
		})
		return
	}
	if err != nil {
		h.logger.Error("pin lookup failed", "session_id", conn.id, "error", err)
		h.sendError(conn, "authentication is unavailable right now")
		return
	}

	conn.stateMu.Lock()
	conn.authenticated = true
	conn.userID = user.ID
	conn.userName = user.Name
	conn.stateMu.Unlock()

	if sess, err := h.sessions.Get(ctx, conn.id); err != nil {
		h.logger.Error("session lookup failed", "session_id", conn.id, "error", err)
	} else {
		sess.Authenticated = true
		sess.UserID = user.ID
		if err := h.sessions.Update(ctx, sess); err != nil {
			h.logger.Error("session update failed", "session_id", conn.id, "error", err)
		}
	}
	h.logger.Info("live session authenticated", "session_id", conn.id, "user_id", user.ID)

	welcome := "Welcome back, " + user.Name + "! How can I help you today?"
	var welcomeAudio string
	if audio, err := h.pipeline.Synthesize(ctx, welcome); err == nil && len(audio) > 0 {
		welcomeAudio = base64.StdEncoding.EncodeToString(audio)
	} else if err != nil {
		h.logger.Warn("welcome synthesis failed", "session_id", conn.id, "error", err)
	}

	_ = h.send(conn, authenticatedEvent{
		Type:         EventAuthenticated,
		Success:      true,
		UserName:     user.Name,
		Message:      welcome,
		WelcomeAudio: welcomeAudio,
	})
}

func (h *Handler) handleStartRecording(ctx context.Context, conn *liveConn) {
	if ok, _ := conn.auth(); !ok {
		h.sendError(conn, "authenticate before recording")
		return
	}
	conn.recorder.Start()
	if err := h.sessions.Extend(ctx, conn.id); err != nil {
		h.logger.Warn("session extend failed", "session_id", conn.id, "error", err)
	}
	_ = h.send(conn, recordingStartedEvent{Type: EventRecordingStarted})
}

func (h *Handler) handleAudioChunk(conn *liveConn, encoded string) {
	if ok, _ := conn.auth(); !ok {
		return
	}
	chunk, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		h.sendError(conn, "audio must be base64")
		return
	}
	conn.recorder.Append(chunk)
}

func (h *Handler) handleStopRecording(ctx context.Context, conn *liveConn) {
	ok, userID := conn.auth()
	if !ok {
		h.sendError(conn, "authenticate before recording")
		return
	}
	if conn.processing.Load() {
		h.sendError(conn, "still processing your previous request")
		return
	}

	audio, err := conn.recorder.Stop()
	switch {
	case errors.Is(err, ErrNotRecording):
		h.sendError(conn, "no recording in progress")
		return
	case errors.Is(err, ErrInsufficientAudio):
		_ = h.send(conn, transcriptionEvent{
			Type:    EventTranscription,
			Success: false,
			Message: "I didn't catch that. Please try speaking a bit longer.",
		})
		return
	}

	conn.processing.Store(true)
	go h.processTurn(ctx, conn, userID, audio)
}

// processTurn runs transcribe → orchestrate → synthesize off the read
// loop, pushing progress events as it goes.
func (h *Handler) processTurn(ctx context.Context, conn *liveConn, userID string, audio []byte) {
	defer conn.processing.Store(false)

	_ = h.send(conn, statusEvent{Type: EventStatus, Message: "Transcribing your audio..."})

	text, err := h.pipeline.Transcribe(ctx, audio)
	if err != nil {
		h.logger.Warn("transcription failed", "session_id", conn.id, "error", err)
		_ = h.send(conn, transcriptionEvent{
			Type:    EventTranscription,
			Success: false,
			Message: "I couldn't understand the audio. Please try again.",
		})
		return
	}
	if strings.TrimSpace(text) == "" {
		_ = h.send(conn, transcriptionEvent{
			Type:    EventTranscription,
			Success: false,
			Message: "I didn't hear anything. Please try again.",
		})
		return
	}
	_ = h.send(conn, transcriptionEvent{Type: EventTranscription, Success: true, Text: text})
	_ = h.send(conn, statusEvent{Type: EventStatus, Message: "Thinking..."})

	outcome := h.runner.Turn(ctx, conn.id, userID, text)

	reply := agentResponseEvent{Type: EventAgentResponse, Success: true}
	if outcome.Transfer != nil {
		reply.Text = "I'll connect you with our " + outcome.Transfer.Department +
			" team. On this channel I can't place the call, but you can reach them at extension " +
			outcome.Transfer.Extension + "."
		reply.Transfer = &transferInfo{
			Department: outcome.Transfer.Department,
			Extension:  outcome.Transfer.Extension,
			Reason:     outcome.Transfer.Reason,
		}
	} else {
		reply.Text = outcome.Spoken
	}

	if synth, err := h.pipeline.Synthesize(ctx, reply.Text); err == nil && len(synth) > 0 {
		reply.Audio = base64.StdEncoding.EncodeToString(synth)
	} else if err != nil {
		h.logger.Warn("reply synthesis failed", "session_id", conn.id, "error", err)
	}
	_ = h.send(conn, reply)

	if err := h.sessions.Extend(ctx, conn.id); err != nil {
		h.logger.Warn("session extend failed", "session_id", conn.id, "error", err)
	}
}

func (h *Handler) send(conn *liveConn, event any) error {
	conn.writeMu.Lock()
	defer conn.writeMu.Unlock()
	_ = conn.ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
	return conn.ws.WriteJSON(event)
}

func (h *Handler) sendError(conn *liveConn, message string) {
	_ = h.send(conn, errorEvent{Type: EventError, Message: message})
}

func (h *Handler) startPings(ctx context.Context, conn *liveConn) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(h.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.writeMu.Lock()
				_ = conn.ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
				err := conn.ws.WriteMessage(websocket.PingMessage, nil)
				conn.writeMu.Unlock()
				if err != nil {
					return
				}
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}
