package sandbox

import (
	"context"
	"encoding/hex"
	"os"
	"sync"
	"time"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	jssandbox "github.com/wippyai/js-sandbox"
	"github.com/wippyai/js-sandbox/dispatch"
	"github.com/wippyai/js-sandbox/envelope"
	"github.com/wippyai/js-sandbox/errors"
)

// Sandbox is a handle to one guest.
type Sandbox struct {
	boundary Boundary
	broken   error
	log      *zap.Logger
	metrics  *Metrics
	limits   jssandbox.Limits
	timeout  time.Duration
	mu       sync.Mutex
	closed   bool
}

// Create loads image through sub. Limits are validated before anything is
// loaded.
func Create(ctx context.Context, sub Substrate, image []byte, limits jssandbox.Limits, opts ...Option) (*Sandbox, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	o := options{logger: Logger()}
	for _, opt := range opts {
		opt(&o)
	}

	digest := blake3.Sum256(image)
	log := o.logger.With(zap.String("image", hex.EncodeToString(digest[:8])))

	b, err := sub.Load(ctx, image, limits)
	if err != nil {
		log.Error("load guest failed", zap.Error(err))
		return nil, err
	}
	log.Info("sandbox created", zap.Stringer("limits", limits), zap.Int("image_bytes", len(image)))

	return &Sandbox{
		boundary: b,
		log:      log,
		metrics:  o.metrics,
		limits:   limits,
		timeout:  o.timeout,
	}, nil
}

// CreateFromFile reads the guest image at path and calls Create.
func CreateFromFile(ctx context.Context, sub Substrate, path string, limits jssandbox.Limits, opts ...Option) (*Sandbox, error) {
	image, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load("read guest image "+path, err)
	}
	return Create(ctx, sub, image, limits, opts...)
}

// Limits returns the limits the sandbox was created with.
func (s *Sandbox) Limits() jssandbox.Limits {
	return s.limits
}

// Call invokes the guest operation name with args and blocks until the
// guest responds.
func (s *Sandbox) Call(ctx context.Context, name string, args ...envelope.Value) (envelope.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	v, err := s.call(ctx, name, args)
	elapsed := time.Since(start)
	s.metrics.observe(name, err, elapsed)

	if err != nil {
		s.log.Debug("call failed", zap.String("name", name), zap.Duration("elapsed", elapsed), zap.Error(err))
	} else {
		s.log.Debug("call complete", zap.String("name", name), zap.Duration("elapsed", elapsed), zap.Stringer("value", v))
	}
	return v, err
}

func (s *Sandbox) call(ctx context.Context, name string, args []envelope.Value) (envelope.Value, error) {
	switch {
	case s.closed:
		return envelope.Value{}, errors.Boundary(errors.KindClosed, "sandbox closed", nil)
	case s.broken != nil:
		return envelope.Value{}, errors.Boundary(errors.KindClosed, "sandbox unusable after boundary failure", s.broken)
	}

	req, err := envelope.EncodeCall(envelope.NewCall(name, args...))
	if err != nil {
		return envelope.Value{}, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	raw, err := s.boundary.Call(ctx, req)
	if err != nil {
		if errors.KindOf(err) != errors.KindAllocation {
			s.poison(err)
		}
		return envelope.Value{}, err
	}

	resp, err := envelope.DecodeResponse(raw)
	if err != nil {
		be := errors.Boundary(errors.KindInvalidData, "undecodable response", err)
		s.poison(be)
		return envelope.Value{}, be
	}
	return resp.Result()
}

func (s *Sandbox) poison(err error) {
	s.broken = err
	s.log.Warn("sandbox poisoned", zap.Error(err))
}

// Init compiles source in the guest. A second Init is accepted and ignored
// by the guest.
func (s *Sandbox) Init(ctx context.Context, source string) error {
	_, err := s.Call(ctx, dispatch.OpInit.String(), envelope.String(source))
	return err
}

// Exec runs the compiled script and returns its result.
func (s *Sandbox) Exec(ctx context.Context) (int32, error) {
	v, err := s.Call(ctx, dispatch.OpExec.String())
	if err != nil {
		return 0, err
	}
	return v.AsInt32()
}

// Err returns the boundary failure that poisoned the sandbox, if any.
func (s *Sandbox) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.broken
}

// Close tears the guest down. It is safe to call more than once.
func (s *Sandbox) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.log.Debug("sandbox closed")
	return s.boundary.Close(ctx)
}
