// Package voice provides the STT/TTS pipeline facade used by the transports.
package voice

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/voicedesk-io/voicedesk/pkg/core/voice/stt"
	"github.com/voicedesk-io/voicedesk/pkg/core/voice/tts"
)

// Pipeline handles STT and TTS for voice flows.
type Pipeline struct {
	sttProvider stt.Provider
	ttsProvider tts.Provider
	voice       string
	format      string
}

// Config customizes pipeline defaults.
type Config struct {
	Voice  string // TTS voice identifier
	Format string // audio format for input hint and output ("mp3", "webm", ...)
}

// NewPipeline creates a voice pipeline with OpenAI providers.
func NewPipeline(apiKey string, cfg Config) *Pipeline {
	return NewPipelineWithProviders(stt.NewWhisper(apiKey), tts.NewOpenAI(apiKey), cfg)
}

// NewPipelineWithProviders creates a voice pipeline with custom providers.
func NewPipelineWithProviders(sttProvider stt.Provider, ttsProvider tts.Provider, cfg Config) *Pipeline {
	return &Pipeline{
		sttProvider: sttProvider,
		ttsProvider: ttsProvider,
		voice:       cfg.Voice,
		format:      cfg.Format,
	}
}

// STTProvider returns the current STT provider.
func (p *Pipeline) STTProvider() stt.Provider { return p.sttProvider }

// TTSProvider returns the current TTS provider.
func (p *Pipeline) TTSProvider() tts.Provider { return p.ttsProvider }

// Transcribe converts an accumulated audio buffer to text.
func (p *Pipeline) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if p == nil || p.sttProvider == nil {
		return "", fmt.Errorf("stt provider is not configured")
	}
	trans, err := p.sttProvider.Transcribe(ctx, bytes.NewReader(audio), stt.TranscribeOptions{
		Format: p.inputFormat(),
	})
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return strings.TrimSpace(trans.Text), nil
}

// Synthesize converts reply text to audio. Empty text yields no audio.
func (p *Pipeline) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if p == nil || p.ttsProvider == nil {
		return nil, fmt.Errorf("tts provider is not configured")
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	synth, err := p.ttsProvider.Synthesize(ctx, text, tts.SynthesizeOptions{
		Voice:  p.voice,
		Format: "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	return synth.Audio, nil
}

func (p *Pipeline) inputFormat() string {
	if p.format != "" {
		return p.format
	}
	return "webm"
}
