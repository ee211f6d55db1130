package collection

import (
	"fmt"
	"io"
	"log/slog"

	"virgil/internal/observability"
)

// LoadPolicy decides what Load does with a stored value that cannot be decoded.
type LoadPolicy int

const (
	// SurfaceCorruption returns a DeserializationError to the caller.
	SurfaceCorruption LoadPolicy = iota
	// TreatCorruptionAsAbsent logs a warning and reports the collection as
	// absent. Update, Delete and Get still fail on corrupt data.
	TreatCorruptionAsAbsent
)

func (p LoadPolicy) String() string {
	switch p {
	case SurfaceCorruption:
		return "surface"
	case TreatCorruptionAsAbsent:
		return "absent"
	}
	return fmt.Sprintf("LoadPolicy(%d)", int(p))
}

// ParseLoadPolicy maps "surface" and "absent" to a LoadPolicy.
func ParseLoadPolicy(s string) (LoadPolicy, error) {
	switch s {
	case "", "surface":
		return SurfaceCorruption, nil
	case "absent":
		return TreatCorruptionAsAbsent, nil
	}
	return SurfaceCorruption, fmt.Errorf("unknown load policy %q", s)
}

type options struct {
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	tracer  observability.Tracer
	policy  LoadPolicy
}

func defaultOptions() options {
	return options{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: observability.NoopMetrics{},
		tracer:  observability.NoopTracer{},
		policy:  SurfaceCorruption,
	}
}

// Option configures a Store.
type Option func(*options)

// WithLogger sets the logger used for failure diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records the outcome and latency of every operation.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracer opens a span around every operation.
func WithTracer(t observability.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithLoadPolicy selects how Load treats corrupt stored data.
func WithLoadPolicy(p LoadPolicy) Option {
	return func(o *options) { o.policy = p }
}
