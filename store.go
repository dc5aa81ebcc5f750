package tenf

import (
	"bytes"
	"context"
	"io"
	"iter"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Redshadow31/tenf-v2-sub007/blobstore"
	"github.com/Redshadow31/tenf-v2-sub007/codec"
)

const (
	opRead   = "read"
	opWrite  = "write"
	opList   = "list"
	opDelete = "delete"
	opExists = "exists"
)

const tracerName = "github.com/Redshadow31/tenf-v2-sub007"

// Store is the namespaced record store. It maps logical keys onto the
// injected backend and translates backend failures into the error taxonomy
// of this package.
//
// Every operation is a single round of backend calls: no retries, no locking
// and no caching. Remote backends may be eventually consistent, so a List
// issued right after a Write is not guaranteed to include the new key.
//
// A Store holds only immutable configuration and is safe for concurrent use.
type Store struct {
	backend     blobstore.BlobStore
	backendName string
	codec       codec.Codec
	logger      *Logger
	metrics     MetricsCollector
	tracer      trace.Tracer

	streamThreshold int
}

// New returns a Store over backend. The backend is resolved once by the
// caller (see the backend package) and never swapped afterwards.
//
// New panics if backend is nil.
func New(backend blobstore.BlobStore, optFns ...Option) *Store {
	if backend == nil {
		panic("tenf: nil backend")
	}

	o := applyOptions(optFns)

	logger := o.logger
	if o.backendName != "" {
		logger = logger.WithBackend(o.backendName)
	}

	return &Store{
		backend:     backend,
		backendName: o.backendName,
		codec:       o.codec,
		logger:      logger,
		metrics:     o.metricsCollector,
		tracer:      o.tracerProvider.Tracer(tracerName),

		streamThreshold: o.streamThreshold,
	}
}

// Backend returns the underlying blob store.
func (s *Store) Backend() blobstore.BlobStore { return s.backend }

// BackendName returns the label configured with WithBackendName.
func (s *Store) BackendName() string { return s.backendName }

// Codec returns the codec used for records.
func (s *Store) Codec() codec.Codec { return s.codec }

// Close releases the backend if it holds resources (e.g. a NATS connection).
func (s *Store) Close() error {
	if c, ok := s.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Read returns the record stored under key.
//
// It fails with NotFoundError when nothing is stored there, BackendError on
// I/O, network or permission failures, and DeserializationError when the
// stored content is not valid JSON.
func (s *Store) Read(ctx context.Context, key string) (Record, error) {
	var rec Record
	err := s.read(ctx, key, func(data []byte) error {
		r, err := parseRecord(s.codec, data)
		if err != nil {
			return err
		}
		rec = r
		return nil
	})
	return rec, err
}

// ReadInto decodes the record stored under key into v, which must be a
// pointer. Errors are the same as for Read.
func (s *Store) ReadInto(ctx context.Context, key string, v any) error {
	return s.read(ctx, key, func(data []byte) error {
		return s.codec.Unmarshal(data, v)
	})
}

func (s *Store) read(ctx context.Context, key string, decode func([]byte) error) (err error) {
	ctx, span := s.startSpan(ctx, opRead, attribute.String("tenf.key", key))
	start := time.Now()
	size := 0
	defer func() {
		s.metrics.RecordRead(time.Since(start), err)
		s.logger.LogRead(ctx, key, size, err)
		endSpan(span, err)
	}()

	if err := ValidateKey(key); err != nil {
		return err
	}

	data, err := blobstore.ReadAll(ctx, s.backend, key)
	if err != nil {
		return s.translateError(opRead, key, err)
	}
	size = len(data)

	if err := decode(data); err != nil {
		return &DeserializationError{Op: opRead, Key: key, Err: err}
	}
	return nil
}

// Write serializes v and stores it under key, replacing any previous record.
// Last write wins.
//
// A value that cannot be encoded fails with DeserializationError (Op
// "write"); nothing is written in that case. Records whose encoding reaches
// the stream threshold (see WithStreamThreshold) are written through the
// backend's Create; smaller ones with a single Put.
func (s *Store) Write(ctx context.Context, key string, v any) (err error) {
	ctx, span := s.startSpan(ctx, opWrite, attribute.String("tenf.key", key))
	start := time.Now()
	size := 0
	defer func() {
		s.metrics.RecordWrite(time.Since(start), err)
		s.logger.LogWrite(ctx, key, size, err)
		endSpan(span, err)
	}()

	if err := ValidateKey(key); err != nil {
		return err
	}

	data, err := s.codec.Marshal(v)
	if err != nil {
		return &DeserializationError{Op: opWrite, Key: key, Err: err}
	}
	size = len(data)

	if s.streamThreshold > 0 && size >= s.streamThreshold {
		span.SetAttributes(attribute.Bool("tenf.streamed", true))
		if _, err := blobstore.WriteFrom(ctx, s.backend, key, bytes.NewReader(data)); err != nil {
			return s.translateError(opWrite, key, err)
		}
		return nil
	}

	if err := s.backend.Put(ctx, key, data); err != nil {
		return s.translateError(opWrite, key, err)
	}
	return nil
}

// List returns every key starting with prefix, in lexicographic order.
// The empty prefix lists the whole namespace. Matching is a plain string
// prefix: "c/2024-06/" does not match "c/2024-060/x.json".
func (s *Store) List(ctx context.Context, prefix string) (keys []string, err error) {
	ctx, span := s.startSpan(ctx, opList, attribute.String("tenf.prefix", prefix))
	start := time.Now()
	defer func() {
		s.metrics.RecordList(len(keys), time.Since(start), err)
		s.logger.LogList(ctx, prefix, len(keys), err)
		endSpan(span, err)
	}()

	if err := ValidatePrefix(prefix); err != nil {
		return nil, err
	}

	keys, err = s.backend.List(ctx, prefix)
	if err != nil {
		return nil, s.translateError(opList, prefix, err)
	}
	if keys == nil {
		keys = []string{}
	}
	slices.Sort(keys)
	return keys, nil
}

// Keys returns a lazy sequence over the keys starting with prefix.
//
// The sequence is finite and restartable: every range re-queries the
// backend. Backends that can page through results stream them; others are
// listed once per pass. Iteration stops at the first error, which is yielded
// with an empty key.
func (s *Store) Keys(ctx context.Context, prefix string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, span := s.startSpan(ctx, opList, attribute.String("tenf.prefix", prefix))
		start := time.Now()
		count := 0
		var err error
		defer func() {
			s.metrics.RecordList(count, time.Since(start), err)
			s.logger.LogList(ctx, prefix, count, err)
			endSpan(span, err)
		}()

		if err = ValidatePrefix(prefix); err != nil {
			yield("", err)
			return
		}

		for key, kerr := range blobstore.Keys(ctx, s.backend, prefix) {
			if kerr != nil {
				err = s.translateError(opList, prefix, kerr)
				yield("", err)
				return
			}
			count++
			if !yield(key, nil) {
				return
			}
		}
	}
}

// Delete removes the record stored under key. It fails with NotFoundError
// when no record exists.
//
// The existence check and the removal are two backend calls; two concurrent
// deleters of the same key may both succeed.
func (s *Store) Delete(ctx context.Context, key string) (err error) {
	ctx, span := s.startSpan(ctx, opDelete, attribute.String("tenf.key", key))
	start := time.Now()
	defer func() {
		s.metrics.RecordDelete(time.Since(start), err)
		s.logger.LogDelete(ctx, key, err)
		endSpan(span, err)
	}()

	if err := ValidateKey(key); err != nil {
		return err
	}

	ok, err := blobstore.Exists(ctx, s.backend, key)
	if err != nil {
		return s.translateError(opDelete, key, err)
	}
	if !ok {
		return &NotFoundError{Op: opDelete, Key: key}
	}

	if err := s.backend.Delete(ctx, key); err != nil {
		return s.translateError(opDelete, key, err)
	}
	return nil
}

// Exists reports whether a record is stored under key.
func (s *Store) Exists(ctx context.Context, key string) (ok bool, err error) {
	ctx, span := s.startSpan(ctx, opExists, attribute.String("tenf.key", key))
	start := time.Now()
	defer func() {
		s.metrics.RecordExists(ok, time.Since(start), err)
		s.logger.LogExists(ctx, key, ok, err)
		endSpan(span, err)
	}()

	return s.exists(ctx, key)
}

func (s *Store) exists(ctx context.Context, key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	ok, err := blobstore.Exists(ctx, s.backend, key)
	if err != nil {
		return false, s.translateError(opExists, key, err)
	}
	return ok, nil
}

// translateError maps a backend failure onto the package taxonomy. A write
// is never "not found": a missing path during Write is a backend failure.
func (s *Store) translateError(op, key string, err error) error {
	if op != opWrite && blobstore.IsNotFound(err) {
		return &NotFoundError{Op: op, Key: key, Err: err}
	}
	return &BackendError{Op: op, Key: key, Backend: s.backendName, Err: err}
}

func (s *Store) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if s.backendName != "" {
		attrs = append(attrs, attribute.String("tenf.backend", s.backendName))
	}
	return s.tracer.Start(ctx, "tenf."+op, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil && !IsNotFound(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
