package tts

import (
	"context"
	"fmt"
	"io"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
)

const defaultVoice = string(goopenai.VoiceNova)

// OpenAIProvider implements the TTS Provider interface using the OpenAI
// speech API.
type OpenAIProvider struct {
	client *goopenai.Client
}

// NewOpenAI creates a new OpenAI TTS provider.
func NewOpenAI(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{client: goopenai.NewClient(apiKey)}
}

// NewOpenAIWithClient creates a provider around an existing client.
func NewOpenAIWithClient(client *goopenai.Client) *OpenAIProvider {
	return &OpenAIProvider{client: client}
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string { return "openai" }

// Synthesize converts text to audio.
func (p *OpenAIProvider) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error) {
	voice := strings.TrimSpace(opts.Voice)
	if voice == "" {
		voice = defaultVoice
	}
	format := strings.TrimSpace(opts.Format)
	if format == "" {
		format = "mp3"
	}

	req := goopenai.CreateSpeechRequest{
		Model:          goopenai.TTSModel1,
		Input:          text,
		Voice:          goopenai.SpeechVoice(voice),
		ResponseFormat: goopenai.SpeechResponseFormat(format),
	}
	if opts.Speed > 0 {
		req.Speed = opts.Speed
	}

	resp, err := p.client.CreateSpeech(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("speech synthesis: %w", err)
	}
	defer func() { _ = resp.Close() }()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read synthesized audio: %w", err)
	}

	return &Synthesis{Audio: audio, Format: format}, nil
}
