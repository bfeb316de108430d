// Package tts provides text-to-speech functionality.
package tts

import (
	"context"
)

// Provider is the interface for text-to-speech services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts text to audio.
	Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error)
}

// SynthesizeOptions configures synthesis.
type SynthesizeOptions struct {
	Voice  string  // Voice identifier
	Speed  float64 // Speed multiplier
	Format string  // Output format: "mp3", "wav", "opus"
}

// Synthesis is the result of text-to-speech conversion.
type Synthesis struct {
	Audio  []byte // Raw audio bytes
	Format string // Audio format of the bytes
}
