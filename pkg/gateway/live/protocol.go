package live

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Client event types.
const (
	EventAuthenticate   = "authenticate"
	EventStartRecording = "start_recording"
	EventAudioChunk     = "audio_chunk"
	EventStopRecording  = "stop_recording"
)

// Server event types.
const (
	EventConnected        = "connected"
	EventAuthenticated    = "authenticated"
	EventRecordingStarted = "recording_started"
	EventTranscription    = "transcription"
	EventStatus           = "status"
	EventAgentResponse    = "agent_response"
	EventError            = "error"
)

// ClientEvent is any inbound frame. Audio travels base64-encoded in
// the Audio field of audio_chunk events.
type ClientEvent struct {
	Type  string `json:"type"`
	PIN   string `json:"pin,omitempty"`
	Audio string `json:"audio,omitempty"`
}

func decodeClientEvent(raw []byte) (ClientEvent, error) {
	var ev ClientEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return ClientEvent{}, fmt.Errorf("live: invalid frame: %w", err)
	}
	ev.Type = strings.TrimSpace(ev.Type)
	if ev.Type == "" {
		return ClientEvent{}, fmt.Errorf("live: frame missing type")
	}
	return ev, nil
}

// Outbound frames.

type connectedEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type authenticatedEvent struct {
	Type         string `json:"type"`
	Success      bool   `json:"success"`
	UserName     string `json:"user_name,omitempty"`
	Message      string `json:"message"`
	WelcomeAudio string `json:"welcome_audio,omitempty"`
}

type recordingStartedEvent struct {
	Type string `json:"type"`
}

type transcriptionEvent struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
}

type statusEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type transferInfo struct {
	Department string `json:"department"`
	Extension  string `json:"extension"`
	Reason     string `json:"reason,omitempty"`
}

type agentResponseEvent struct {
	Type     string        `json:"type"`
	Success  bool          `json:"success"`
	Text     string        `json:"text"`
	Audio    string        `json:"audio,omitempty"`
	Transfer *transferInfo `json:"transfer,omitempty"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
