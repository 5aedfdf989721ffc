package sandbox

import (
	"time"

	"go.uber.org/zap"
)

type options struct {
	logger  *zap.Logger
	metrics *Metrics
	timeout time.Duration
}

// Option configures a Sandbox.
type Option func(*options)

// WithLogger sets the logger of one sandbox. The package logger is used
// otherwise.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records every call in m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithCallTimeout bounds each call. When it expires the substrate tears the
// guest down, so the sandbox is unusable afterwards.
func WithCallTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}
