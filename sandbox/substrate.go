package sandbox

import (
	"context"

	jssandbox "github.com/wippyai/js-sandbox"
)

// Substrate creates isolated execution contexts.
type Substrate interface {
	// Load places image in a fresh context sized by limits and runs guest
	// startup.
	Load(ctx context.Context, image []byte, limits jssandbox.Limits) (Boundary, error)
	// Close releases resources shared by every context of the substrate.
	Close(ctx context.Context) error
}

// Boundary moves encoded envelopes into one guest and back.
type Boundary interface {
	// Call delivers an encoded call envelope and returns the encoded
	// response. Errors are boundary errors.
	Call(ctx context.Context, request []byte) ([]byte, error)
	// Close tears the context down.
	Close(ctx context.Context) error
}

// requestAlign is the alignment requested for inbound envelopes.
const requestAlign = 8
