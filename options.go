package tenf

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/Redshadow31/tenf-v2-sub007/codec"
)

type options struct {
	codec            codec.Codec
	metricsCollector MetricsCollector
	logger           *Logger
	tracerProvider   trace.TracerProvider
	backendName      string
	streamThreshold  int
}

// DefaultStreamThreshold is the encoded size from which Write streams a
// record through the backend's Create instead of a single Put. It matches
// the default S3 multipart part size.
const DefaultStreamThreshold = 8 << 20

// Option configures New.
type Option func(*options)

// WithCodec configures the codec used to encode and decode records.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &tenf.BasicMetricsCollector{}
//	store := tenf.New(backend, tenf.WithMetricsCollector(metrics))
//	// ... use store ...
//	stats := metrics.GetStats()
//	fmt.Printf("Reads: %d, Avg latency: %dns\n", stats.ReadCount, stats.ReadAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := tenf.NewJSONLogger(slog.LevelInfo)
//	store := tenf.New(backend, tenf.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithTracerProvider configures the OpenTelemetry tracer provider used for
// per-operation spans. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithBackendName labels logs, spans and BackendErrors with the backend kind
// (e.g. "s3", "local").
func WithBackendName(name string) Option {
	return func(o *options) {
		o.backendName = name
	}
}

// WithStreamThreshold sets the encoded size from which Write streams a
// record through a WritableBlob (multipart upload on S3 and MinIO, chunked
// object on NATS). A value <= 0 always uses a single Put.
func WithStreamThreshold(n int) Option {
	return func(o *options) {
		o.streamThreshold = n
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            codec.Default,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		streamThreshold:  DefaultStreamThreshold,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}
	return o
}
