package vr

import (
	"log/slog"

	"github.com/roach88/vrtb/internal/trace"
)

type options struct {
	name     string
	capacity int
	sink     trace.Sink
	logger   *slog.Logger
	disabled bool
}

// Option configures an agent or monitor.
type Option func(*options)

// WithName overrides the agent name derived from the interface endpoint.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithCapacity bounds the agent queue. Zero (the default) is unbounded.
// A full consumer queue deasserts ready.
func WithCapacity(n int) Option {
	return func(o *options) {
		o.capacity = n
	}
}

// WithSink forwards every observed transfer to s.
func WithSink(s trace.Sink) Option {
	return func(o *options) {
		o.sink = s
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// StartDisabled creates the agent disabled; call Enable to begin driving.
func StartDisabled() Option {
	return func(o *options) {
		o.disabled = true
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
