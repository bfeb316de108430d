package live

import (
	"bytes"
	"errors"
	"testing"
)

func TestRecorderRoundTrip(t *testing.T) {
	r := NewRecorder(4, 1024)
	r.Start()
	r.Append([]byte("abc"))
	r.Append([]byte("def"))
	r.Append([]byte("ghi"))

	audio, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !bytes.Equal(audio, []byte("abcdefghi")) {
		t.Errorf("audio = %q, want chunks concatenated in arrival order", audio)
	}
}

func TestRecorderAppendWhileNotRecording(t *testing.T) {
	r := NewRecorder(4, 1024)
	r.Append([]byte("before start"))
	r.Start()
	r.Append([]byte("counted"))
	audio, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if string(audio) != "counted" {
		t.Errorf("audio = %q, append before start must be a no-op", audio)
	}

	r.Append([]byte("after stop"))
	if r.Recording() {
		t.Error("still recording after stop")
	}
}

func TestRecorderStopWithoutStart(t *testing.T) {
	r := NewRecorder(4, 1024)
	if _, err := r.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("err = %v, want ErrNotRecording", err)
	}
}

func TestRecorderInsufficientAudio(t *testing.T) {
	r := NewRecorder(1000, 1 << 20)
	r.Start()
	r.Append(make([]byte, 999))
	if _, err := r.Stop(); !errors.Is(err, ErrInsufficientAudio) {
		t.Errorf("err = %v, want ErrInsufficientAudio", err)
	}

	r.Start()
	r.Append(make([]byte, 1000))
	if _, err := r.Stop(); err != nil {
		t.Errorf("exactly min bytes should pass: %v", err)
	}
}

func TestRecorderStartResetsBuffer(t *testing.T) {
	r := NewRecorder(2, 1024)
	r.Start()
	r.Append([]byte("old audio"))
	r.Start()
	r.Append([]byte("new"))
	audio, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if string(audio) != "new" {
		t.Errorf("audio = %q, Start must discard the previous buffer", audio)
	}
}

func TestRecorderBufferCap(t *testing.T) {
	r := NewRecorder(2, 10)
	r.Start()
	r.Append([]byte("0123456789ABCDEF"))
	r.Append([]byte("more"))
	audio, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(audio) != 10 {
		t.Errorf("len(audio) = %d, want capped at 10", len(audio))
	}
}
