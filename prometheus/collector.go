// Package prometheus exports store operation metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	mc, err := tenfprom.New(reg)
//	store := tenf.New(backend, tenf.WithMetricsCollector(mc))
package prometheus

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	tenf "github.com/Redshadow31/tenf-v2-sub007"
)

// Status label values.
const (
	StatusOK              = "ok"
	StatusNotFound        = "not_found"
	StatusInvalidKey      = "invalid_key"
	StatusDeserialization = "deserialization"
	StatusBackend         = "backend"
	StatusError           = "error"
)

// Options configures New.
type Options struct {
	// Namespace and Subsystem prefix every metric name.
	// Default: "tenf" and "store".
	Namespace string
	Subsystem string

	// ConstLabels are attached to every series (e.g. {"backend": "s3"}).
	ConstLabels prometheus.Labels

	// Buckets for the duration histogram. Default: 0.5ms to 5s.
	Buckets []float64
}

// Collector implements tenf.MetricsCollector.
type Collector struct {
	duration *prometheus.HistogramVec
	total    *prometheus.CounterVec
	listed   prometheus.Counter
}

var _ tenf.MetricsCollector = (*Collector)(nil)

// New creates the metrics and registers them on reg. Metrics that are
// already registered (e.g. by a second store in the same process) are
// shared.
func New(reg prometheus.Registerer, optFns ...func(o *Options)) (*Collector, error) {
	opts := Options{
		Namespace: "tenf",
		Subsystem: "store",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	c := &Collector{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "operation_duration_seconds",
			Help:        "Store operation latency in seconds",
			ConstLabels: opts.ConstLabels,
			Buckets:     opts.Buckets,
		}, []string{"op", "status"}),

		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "operations_total",
			Help:        "Total number of store operations",
			ConstLabels: opts.ConstLabels,
		}, []string{"op", "status"}),

		listed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "listed_keys_total",
			Help:        "Total number of keys returned by list operations",
			ConstLabels: opts.ConstLabels,
		}),
	}

	if reg == nil {
		return c, nil
	}

	var err error
	if c.duration, err = register(reg, c.duration); err != nil {
		return nil, err
	}
	if c.total, err = register(reg, c.total); err != nil {
		return nil, err
	}
	if c.listed, err = register(reg, c.listed); err != nil {
		return nil, err
	}
	return c, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordRead implements tenf.MetricsCollector.
func (c *Collector) RecordRead(duration time.Duration, err error) {
	c.observe("read", duration, err)
}

// RecordWrite implements tenf.MetricsCollector.
func (c *Collector) RecordWrite(duration time.Duration, err error) {
	c.observe("write", duration, err)
}

// RecordList implements tenf.MetricsCollector.
func (c *Collector) RecordList(count int, duration time.Duration, err error) {
	c.observe("list", duration, err)
	c.listed.Add(float64(count))
}

// RecordDelete implements tenf.MetricsCollector.
func (c *Collector) RecordDelete(duration time.Duration, err error) {
	c.observe("delete", duration, err)
}

// RecordExists implements tenf.MetricsCollector.
func (c *Collector) RecordExists(_ bool, duration time.Duration, err error) {
	c.observe("exists", duration, err)
}

func (c *Collector) observe(op string, duration time.Duration, err error) {
	status := Status(err)
	c.total.WithLabelValues(op, status).Inc()
	c.duration.WithLabelValues(op, status).Observe(duration.Seconds())
}

// Status maps an operation error onto its status label.
func Status(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case tenf.IsNotFound(err):
		return StatusNotFound
	case tenf.IsInvalidKey(err):
		return StatusInvalidKey
	case tenf.IsDeserialization(err):
		return StatusDeserialization
	case tenf.IsBackend(err):
		return StatusBackend
	default:
		return StatusError
	}
}
