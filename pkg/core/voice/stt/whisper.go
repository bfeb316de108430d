package stt

import (
	"context"
	"fmt"
	"io"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
)

// WhisperProvider implements the STT Provider interface using the OpenAI
// transcription API.
type WhisperProvider struct {
	client *goopenai.Client
}

// NewWhisper creates a new Whisper STT provider.
func NewWhisper(apiKey string) *WhisperProvider {
	return &WhisperProvider{client: goopenai.NewClient(apiKey)}
}

// NewWhisperWithClient creates a provider around an existing client.
func NewWhisperWithClient(client *goopenai.Client) *WhisperProvider {
	return &WhisperProvider{client: client}
}

// Name returns the provider identifier.
func (w *WhisperProvider) Name() string { return "whisper" }

// Transcribe converts audio to text.
func (w *WhisperProvider) Transcribe(ctx context.Context, audio io.Reader, opts TranscribeOptions) (*Transcript, error) {
	model := opts.Model
	if model == "" {
		model = goopenai.Whisper1
	}
	language := opts.Language
	if language == "" {
		language = "en"
	}
	format := strings.TrimSpace(opts.Format)
	if format == "" {
		format = "webm"
	}

	resp, err := w.client.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    model,
		Reader:   audio,
		FilePath: "audio." + format, // filename extension carries the format hint
		Language: language,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("whisper transcription: %w", err)
	}

	return &Transcript{
		Text:     resp.Text,
		Language: language,
		Duration: resp.Duration,
	}, nil
}
