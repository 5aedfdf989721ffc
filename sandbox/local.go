package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"

	jssandbox "github.com/wippyai/js-sandbox"
	"github.com/wippyai/js-sandbox/engine"
	"github.com/wippyai/js-sandbox/errors"
	"github.com/wippyai/js-sandbox/guest"
)

// LocalSubstrate runs guests in process. Calls still go through encoded
// envelopes and the guest exchange arena, but there is no memory isolation.
// The image passed to Load is ignored.
type LocalSubstrate struct {
	// Backend, when set, builds the script engine for each guest.
	Backend func() engine.Backend

	Stdout io.Writer
	Stderr io.Writer
}

var _ Substrate = (*LocalSubstrate)(nil)

// NewLocalSubstrate returns a substrate that runs the goja guest in process.
func NewLocalSubstrate() *LocalSubstrate {
	return &LocalSubstrate{}
}

// Load starts a fresh guest.
func (l *LocalSubstrate) Load(_ context.Context, _ []byte, limits jssandbox.Limits) (Boundary, error) {
	cfg := guest.Config{
		Limits: limits,
		Stdout: l.Stdout,
		Stderr: l.Stderr,
	}
	if l.Backend != nil {
		cfg.Backend = l.Backend()
	}
	g, err := guest.New(cfg)
	if err != nil {
		return nil, errors.Load("start local guest", err)
	}
	return &localBoundary{g: g}, nil
}

// Close implements Substrate.
func (l *LocalSubstrate) Close(context.Context) error {
	return nil
}

type localBoundary struct {
	g       *guest.Guest
	aborted error
	closed  bool
}

func (b *localBoundary) Call(ctx context.Context, request []byte) (resp []byte, err error) {
	switch {
	case b.closed:
		return nil, errors.Boundary(errors.KindClosed, "guest closed", nil)
	case b.aborted != nil:
		return nil, errors.Boundary(errors.KindClosed, "guest aborted by an earlier call", b.aborted)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, errors.Boundary(errors.KindCrashed, "call aborted: "+ctxErr.Error(), ctxErr)
	}

	block, err := b.g.Alloc(uint32(len(request)), requestAlign)
	if err != nil {
		return nil, errors.Boundary(errors.KindAllocation,
			fmt.Sprintf("guest could not allocate %d bytes for the request", len(request)), err)
	}
	copy(block, request)

	// A script stuck in a loop only returns once interrupted. The guest is
	// not reused afterwards, like a wazero module closed on context done.
	stop := context.AfterFunc(ctx, func() {
		b.g.Interrupt(context.Cause(ctx))
	})
	defer stop()

	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = errors.Boundary(errors.KindCrashed, fmt.Sprintf("guest crashed: %v", r), nil)
		}
	}()
	out := bytes.Clone(b.g.Handle(block))
	if ctxErr := ctx.Err(); ctxErr != nil {
		b.aborted = ctxErr
		return nil, errors.Boundary(errors.KindCrashed, "call aborted: "+ctxErr.Error(), ctxErr)
	}
	return out, nil
}

func (b *localBoundary) Close(context.Context) error {
	if !b.closed {
		b.closed = true
		b.g.Close()
	}
	return nil
}
