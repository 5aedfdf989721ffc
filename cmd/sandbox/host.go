package main

import (
	"context"
	"io"
	"os"

	"go.uber.org/zap"

	jssandbox "github.com/wippyai/js-sandbox"
	"github.com/wippyai/js-sandbox/errors"
	"github.com/wippyai/js-sandbox/sandbox"
)

// host opens sandboxes from one substrate so the compilation cache is
// shared between them.
type host struct {
	sub    sandbox.Substrate
	image  []byte
	limits jssandbox.Limits
	opts   []sandbox.Option
}

func newHost(ctx context.Context, s settings, stdout, stderr io.Writer, opts ...sandbox.Option) (*host, error) {
	h := &host{limits: s.limits()}
	if s.Timeout > 0 {
		opts = append(opts, sandbox.WithCallTimeout(s.Timeout))
	}
	h.opts = opts

	if s.Local || s.Guest == "" {
		sandbox.Logger().Info("running guest in process")
		h.sub = &sandbox.LocalSubstrate{Stdout: stdout, Stderr: stderr}
		return h, nil
	}

	image, err := os.ReadFile(s.Guest)
	if err != nil {
		return nil, errors.Load("read guest image "+s.Guest, err)
	}
	sub, err := sandbox.NewWazeroSubstrateWithConfig(ctx, &sandbox.WazeroConfig{Stdout: stdout, Stderr: stderr})
	if err != nil {
		return nil, err
	}
	sandbox.Logger().Info("guest image loaded", zap.String("path", s.Guest), zap.Int("bytes", len(image)))
	h.sub = sub
	h.image = image
	return h, nil
}

func (h *host) open(ctx context.Context) (*sandbox.Sandbox, error) {
	return sandbox.Create(ctx, h.sub, h.image, h.limits, h.opts...)
}

func (h *host) Close(ctx context.Context) error {
	return h.sub.Close(ctx)
}
