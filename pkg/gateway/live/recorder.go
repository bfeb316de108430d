package live

import (
	"bytes"
	"errors"
	"sync"
)

var (
	// ErrNotRecording is returned by Stop when no recording is open.
	ErrNotRecording = errors.New("live: not recording")
	// ErrInsufficientAudio is returned by Stop when the buffer holds
	// too little audio to transcribe.
	ErrInsufficientAudio = errors.New("live: insufficient audio")
)

// Recorder accumulates audio chunks between start and stop events.
// Chunks arriving while no recording is open are dropped, so a late
// frame from the client cannot pollute the next utterance. The buffer
// is capped; excess audio past the cap is discarded.
type Recorder struct {
	mu        sync.Mutex
	recording bool
	buf       bytes.Buffer
	minBytes  int
	maxBytes  int
}

func NewRecorder(minBytes, maxBytes int) *Recorder {
	if minBytes <= 0 {
		minBytes = 1000
	}
	if maxBytes <= minBytes {
		maxBytes = 10 << 20
	}
	return &Recorder{minBytes: minBytes, maxBytes: maxBytes}
}

// Start opens a new recording, discarding any leftover audio.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = true
	r.buf.Reset()
}

func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Append adds a chunk to the open recording. No-op when not recording.
func (r *Recorder) Append(chunk []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return
	}
	room := r.maxBytes - r.buf.Len()
	if room <= 0 {
		return
	}
	if len(chunk) > room {
		chunk = chunk[:room]
	}
	r.buf.Write(chunk)
}

// Stop closes the recording and returns the accumulated audio in
// arrival order. The buffer is cleared either way.
func (r *Recorder) Stop() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return nil, ErrNotRecording
	}
	r.recording = false
	size := r.buf.Len()
	if size < r.minBytes {
		r.buf.Reset()
		return nil, ErrInsufficientAudio
	}
	audio := make([]byte, size)
	copy(audio, r.buf.Bytes())
	r.buf.Reset()
	return audio, nil
}
