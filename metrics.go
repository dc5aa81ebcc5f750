package tenf

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the
// prometheus subpackage provides one.
type MetricsCollector interface {
	// RecordRead is called after each Read/ReadInto.
	// duration is the total time taken, err is nil if successful.
	RecordRead(duration time.Duration, err error)

	// RecordWrite is called after each Write.
	RecordWrite(duration time.Duration, err error)

	// RecordList is called after each List, and once per pass over Keys.
	// count is the number of keys returned.
	RecordList(count int, duration time.Duration, err error)

	// RecordDelete is called after each Delete.
	RecordDelete(duration time.Duration, err error)

	// RecordExists is called after each Exists. found is false on error.
	RecordExists(found bool, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordRead(time.Duration, error)      {}
func (NoopMetricsCollector) RecordWrite(time.Duration, error)     {}
func (NoopMetricsCollector) RecordList(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)    {}

func (NoopMetricsCollector) RecordExists(bool, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	ReadCount       atomic.Int64
	ReadErrors      atomic.Int64
	ReadNotFound    atomic.Int64
	ReadTotalNanos  atomic.Int64
	WriteCount      atomic.Int64
	WriteErrors     atomic.Int64
	WriteTotalNanos atomic.Int64
	ListCount       atomic.Int64
	ListErrors      atomic.Int64
	ListKeys        atomic.Int64
	DeleteCount     atomic.Int64
	DeleteErrors    atomic.Int64
	ExistsCount     atomic.Int64
	ExistsFound     atomic.Int64
	ExistsErrors    atomic.Int64
}

// RecordRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRead(duration time.Duration, err error) {
	b.ReadCount.Add(1)
	b.ReadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ReadErrors.Add(1)
		if IsNotFound(err) {
			b.ReadNotFound.Add(1)
		}
	}
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(duration time.Duration, err error) {
	b.WriteCount.Add(1)
	b.WriteTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.WriteErrors.Add(1)
	}
}

// RecordList implements MetricsCollector.
func (b *BasicMetricsCollector) RecordList(count int, _ time.Duration, err error) {
	b.ListCount.Add(1)
	b.ListKeys.Add(int64(count))
	if err != nil {
		b.ListErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(_ time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordExists implements MetricsCollector.
func (b *BasicMetricsCollector) RecordExists(found bool, _ time.Duration, err error) {
	b.ExistsCount.Add(1)
	if found {
		b.ExistsFound.Add(1)
	}
	if err != nil {
		b.ExistsErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		ReadCount:     b.ReadCount.Load(),
		ReadErrors:    b.ReadErrors.Load(),
		ReadNotFound:  b.ReadNotFound.Load(),
		ReadAvgNanos:  avgNanos(b.ReadTotalNanos.Load(), b.ReadCount.Load()),
		WriteCount:    b.WriteCount.Load(),
		WriteErrors:   b.WriteErrors.Load(),
		WriteAvgNanos: avgNanos(b.WriteTotalNanos.Load(), b.WriteCount.Load()),
		ListCount:     b.ListCount.Load(),
		ListErrors:    b.ListErrors.Load(),
		ListKeys:      b.ListKeys.Load(),
		DeleteCount:   b.DeleteCount.Load(),
		DeleteErrors:  b.DeleteErrors.Load(),
		ExistsCount:   b.ExistsCount.Load(),
		ExistsFound:   b.ExistsFound.Load(),
		ExistsErrors:  b.ExistsErrors.Load(),
	}
}

func avgNanos(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ReadCount     int64
	ReadErrors    int64
	ReadNotFound  int64
	ReadAvgNanos  int64
	WriteCount    int64
	WriteErrors   int64
	WriteAvgNanos int64
	ListCount     int64
	ListErrors    int64
	ListKeys      int64
	DeleteCount   int64
	DeleteErrors  int64
	ExistsCount   int64
	ExistsFound   int64
	ExistsErrors  int64
}
