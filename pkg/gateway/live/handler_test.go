package live

import (
	"context"
	"encoding/base64"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voicedesk-io/voicedesk/pkg/gateway/orchestrator"
	"github.com/voicedesk-io/voicedesk/pkg/gateway/sessionstore"
	"github.com/voicedesk-io/voicedesk/pkg/gateway/taskstore"
	"github.com/voicedesk-io/voicedesk/pkg/gateway/tools"
)

type fakePipeline struct {
	transcript string
	gotAudio   []byte
	synth      []byte
}

func (f *fakePipeline) Transcribe(_ context.Context, audio []byte) (string, error) {
	f.gotAudio = append([]byte(nil), audio...)
	return f.transcript, nil
}

func (f *fakePipeline) Synthesize(_ context.Context, _ string) ([]byte, error) {
	return f.synth, nil
}

type blockingRunner struct {
	outcome orchestrator.Outcome
	block   chan struct{} // nil means don't block
}

func (r *blockingRunner) Turn(ctx context.Context, _, _, _ string) orchestrator.Outcome {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
		}
	}
	return r.outcome
}

func newLiveServer(t *testing.T, pipeline *fakePipeline, runner *blockingRunner) (*websocket.Conn, *sessionstore.MemoryStore) {
	t.Helper()
	sessions := sessionstore.NewMemoryStore(time.Hour)
	directory := taskstore.NewMemory()
	directory.AddUser(taskstore.User{ID: "u1", Name: "Ada", VoicePIN: "1234"})

	handler := NewHandler(Dependencies{
		Sessions:  sessions,
		Directory: directory,
		Runner:    runner,
		Pipeline:  pipeline,
	}, Config{MinAudioBytes: 4, MaxAudioBufferBytes: 1 << 20})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws, sessions
}

// waitFor reads frames until one of the wanted type arrives.
func waitFor(t *testing.T, ws *websocket.Conn, eventType string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for i := 0; i < 20; i++ {
		_ = ws.SetReadDeadline(deadline)
		var frame map[string]any
		if err := ws.ReadJSON(&frame); err != nil {
			t.Fatalf("waiting for %q: %v", eventType, err)
		}
		if frame["type"] == eventType {
			return frame
		}
	}
	t.Fatalf("no %q event after 20 frames", eventType)
	return nil
}

func sendEvent(t *testing.T, ws *websocket.Conn, event ClientEvent) {
	t.Helper()
	if err := ws.WriteJSON(event); err != nil {
		t.Fatalf("write %q: %v", event.Type, err)
	}
}

func authenticateWS(t *testing.T, ws *websocket.Conn) {
	t.Helper()
	sendEvent(t, ws, ClientEvent{Type: EventAuthenticate, PIN: "1234"})
	frame := waitFor(t, ws, EventAuthenticated)
	if frame["success"] != true {
		t.Fatalf("authentication failed: %v", frame)
	}
}

func TestConnectedEventCarriesSessionID(t *testing.T) {
	ws, sessions := newLiveServer(t, &fakePipeline{}, &blockingRunner{})
	frame := waitFor(t, ws, EventConnected)
	id, _ := frame["session_id"].(string)
	if id == "" {
		t.Fatalf("frame = %v", frame)
	}
	if _, err := sessions.Get(context.Background(), id); err != nil {
		t.Errorf("session not mirrored into store: %v", err)
	}
}

func TestStartRecordingRequiresAuth(t *testing.T) {
	ws, _ := newLiveServer(t, &fakePipeline{}, &blockingRunner{})
	waitFor(t, ws, EventConnected)

	sendEvent(t, ws, ClientEvent{Type: EventStartRecording})
	frame := waitFor(t, ws, EventError)
	if msg, _ := frame["message"].(string); !strings.Contains(msg, "authenticate") {
		t.Errorf("frame = %v", frame)
	}
}

func TestAuthenticateBadPIN(t *testing.T) {
	ws, _ := newLiveServer(t, &fakePipeline{}, &blockingRunner{})
	waitFor(t, ws, EventConnected)

	sendEvent(t, ws, ClientEvent{Type: EventAuthenticate, PIN: "0000"})
	frame := waitFor(t, ws, EventAuthenticated)
	if frame["success"] != false {
		t.Errorf("frame = %v", frame)
	}
}

func TestAuthenticateSuccessWithWelcomeAudio(t *testing.T) {
	pipeline := &fakePipeline{synth: []byte("mp3-bytes")}
	ws, sessions := newLiveServer(t, pipeline, &blockingRunner{})
	connected := waitFor(t, ws, EventConnected)
	sessionID := connected["session_id"].(string)

	sendEvent(t, ws, ClientEvent{Type: EventAuthenticate, PIN: "1234"})
	frame := waitFor(t, ws, EventAuthenticated)
	if frame["success"] != true || frame["user_name"] != "Ada" {
		t.Fatalf("frame = %v", frame)
	}
	welcome, _ := frame["welcome_audio"].(string)
	decoded, err := base64.StdEncoding.DecodeString(welcome)
	if err != nil || string(decoded) != "mp3-bytes" {
		t.Errorf("welcome_audio = %q", welcome)
	}

	sess, err := sessions.Get(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !sess.Authenticated || sess.UserID != "u1" {
		t.Errorf("session = %+v", sess)
	}
	// Authentication updates the existing record in place.
	if sess.Channel != sessionstore.ChannelVoice || sess.CreatedAt.IsZero() {
		t.Errorf("session lost fields on update: %+v", sess)
	}
}

func TestFullVoiceTurn(t *testing.T) {
	pipeline := &fakePipeline{transcript: "add milk to my list", synth: []byte("reply-audio")}
	runner := &blockingRunner{outcome: orchestrator.Outcome{Spoken: "Added milk to your list."}}
	ws, _ := newLiveServer(t, pipeline, runner)
	waitFor(t, ws, EventConnected)
	authenticateWS(t, ws)

	sendEvent(t, ws, ClientEvent{Type: EventStartRecording})
	waitFor(t, ws, EventRecordingStarted)

	for _, chunk := range []string{"audio-one-", "audio-two"} {
		sendEvent(t, ws, ClientEvent{
			Type:  EventAudioChunk,
			Audio: base64.StdEncoding.EncodeToString([]byte(chunk)),
		})
	}
	sendEvent(t, ws, ClientEvent{Type: EventStopRecording})

	transcription := waitFor(t, ws, EventTranscription)
	if transcription["success"] != true || transcription["text"] != "add milk to my list" {
		t.Errorf("transcription = %v", transcription)
	}

	response := waitFor(t, ws, EventAgentResponse)
	if response["text"] != "Added milk to your list." {
		t.Errorf("response = %v", response)
	}
	audio, _ := response["audio"].(string)
	if decoded, err := base64.StdEncoding.DecodeString(audio); err != nil || string(decoded) != "reply-audio" {
		t.Errorf("audio = %q", audio)
	}

	if string(pipeline.gotAudio) != "audio-one-audio-two" {
		t.Errorf("pipeline saw %q, want chunks in order", pipeline.gotAudio)
	}
}

func TestStopRecordingInsufficientAudio(t *testing.T) {
	ws, _ := newLiveServer(t, &fakePipeline{}, &blockingRunner{})
	waitFor(t, ws, EventConnected)
	authenticateWS(t, ws)

	sendEvent(t, ws, ClientEvent{Type: EventStartRecording})
	waitFor(t, ws, EventRecordingStarted)
	sendEvent(t, ws, ClientEvent{
		Type:  EventAudioChunk,
		Audio: base64.StdEncoding.EncodeToString([]byte("x")),
	})
	sendEvent(t, ws, ClientEvent{Type: EventStopRecording})

	frame := waitFor(t, ws, EventTranscription)
	if frame["success"] != false {
		t.Errorf("frame = %v", frame)
	}
}

func TestSingleFlightPerSession(t *testing.T) {
	release := make(chan struct{})
	pipeline := &fakePipeline{transcript: "slow question", synth: nil}
	runner := &blockingRunner{
		outcome: orchestrator.Outcome{Spoken: "finally done"},
		block:   release,
	}
	ws, _ := newLiveServer(t, pipeline, runner)
	waitFor(t, ws, EventConnected)
	authenticateWS(t, ws)

	audio := base64.StdEncoding.EncodeToString([]byte("long enough audio"))

	sendEvent(t, ws, ClientEvent{Type: EventStartRecording})
	waitFor(t, ws, EventRecordingStarted)
	sendEvent(t, ws, ClientEvent{Type: EventAudioChunk, Audio: audio})
	sendEvent(t, ws, ClientEvent{Type: EventStopRecording})
	waitFor(t, ws, EventTranscription)

	// Second turn while the first is still inside the orchestrator.
	sendEvent(t, ws, ClientEvent{Type: EventStartRecording})
	waitFor(t, ws, EventRecordingStarted)
	sendEvent(t, ws, ClientEvent{Type: EventAudioChunk, Audio: audio})
	sendEvent(t, ws, ClientEvent{Type: EventStopRecording})

	frame := waitFor(t, ws, EventError)
	if msg, _ := frame["message"].(string); !strings.Contains(msg, "processing") {
		t.Errorf("frame = %v", frame)
	}

	close(release)
	response := waitFor(t, ws, EventAgentResponse)
	if response["text"] != "finally done" {
		t.Errorf("response = %v", response)
	}
}

func TestTransferOnLiveChannel(t *testing.T) {
	pipeline := &fakePipeline{transcript: "I want a human"}
	runner := &blockingRunner{outcome: orchestrator.Outcome{
		Transfer: &tools.TransferResult{Department: "support", Extension: "2000", Reason: "human requested"},
	}}
	ws, _ := newLiveServer(t, pipeline, runner)
	waitFor(t, ws, EventConnected)
	authenticateWS(t, ws)

	sendEvent(t, ws, ClientEvent{Type: EventStartRecording})
	waitFor(t, ws, EventRecordingStarted)
	sendEvent(t, ws, ClientEvent{
		Type:  EventAudioChunk,
		Audio: base64.StdEncoding.EncodeToString([]byte("enough audio here")),
	})
	sendEvent(t, ws, ClientEvent{Type: EventStopRecording})

	response := waitFor(t, ws, EventAgentResponse)
	transfer, _ := response["transfer"].(map[string]any)
	if transfer == nil || transfer["extension"] != "2000" || transfer["department"] != "support" {
		t.Errorf("response = %v", response)
	}
}
