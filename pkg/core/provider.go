// Package core defines the provider contract and error taxonomy shared by the
// gateway. The language model is consumed strictly as a black-box turn
// generator behind the Provider interface.
package core

import (
	"context"

	"github.com/voicedesk-io/voicedesk/pkg/core/types"
)

// Provider generates assistant turns.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// CreateTurn produces the next assistant generation for the request.
	CreateTurn(ctx context.Context, req *types.TurnRequest) (*types.TurnResponse, error)
}
