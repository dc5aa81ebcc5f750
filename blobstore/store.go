package blobstore

import (
	"context"
	"errors"
	"io"
	"iter"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// IsNotFound reports whether err signals a missing blob.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// BlobStore is an abstraction over a flat, slash-separated key namespace.
//
// Names are relative keys such as "tenf-follow-validations/2024-06/alice.json".
// Implementations must be safe for concurrent use.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Create starts a streaming write. The content becomes visible on Close.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Put writes a blob, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns all blob names with the given prefix in lexicographic order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	io.Closer
	// ReadRange returns a reader for length bytes starting at off.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
	// Size returns the size of the blob in bytes.
	Size() int64
}

// WritableBlob is a handle for streaming writes. Close publishes the content.
type WritableBlob interface {
	io.WriteCloser
}

// Aborter is implemented by writable blobs that can discard a partial write
// without publishing it.
type Aborter interface {
	Abort() error
}

// Getter is an optional interface for stores that can fetch a whole blob in a
// single round trip.
type Getter interface {
	Get(ctx context.Context, name string) ([]byte, error)
}

// KeyIterator is an optional interface for stores that can stream listings
// page by page instead of materializing them.
type KeyIterator interface {
	Keys(ctx context.Context, prefix string) iter.Seq2[string, error]
}

// ReadAll returns the full content of the named blob.
func ReadAll(ctx context.Context, s BlobStore, name string) ([]byte, error) {
	if g, ok := s.(Getter); ok {
		return g.Get(ctx, name)
	}

	b, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = b.Close() }()

	if b.Size() == 0 {
		return []byte{}, nil
	}

	rc, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	return io.ReadAll(rc)
}

// WriteFrom streams r into the named blob through Create. On a read or
// write failure the blob is aborted when it supports Aborter, so nothing is
// published.
func WriteFrom(ctx context.Context, s BlobStore, name string, r io.Reader) (int64, error) {
	w, err := s.Create(ctx, name)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(w, r)
	if err != nil {
		if a, ok := w.(Aborter); ok {
			_ = a.Abort()
		} else {
			_ = w.Close()
		}
		return n, err
	}
	return n, w.Close()
}

// Exists reports whether the named blob exists.
func Exists(ctx context.Context, s BlobStore, name string) (bool, error) {
	b, err := s.Open(ctx, name)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	_ = b.Close()
	return true, nil
}

// Keys returns a lazy sequence over all names with the given prefix.
//
// Each iteration queries the store again, so the sequence can be ranged over
// more than once. Stores implementing KeyIterator are streamed; all others are
// listed eagerly on first pull.
func Keys(ctx context.Context, s BlobStore, prefix string) iter.Seq2[string, error] {
	if ki, ok := s.(KeyIterator); ok {
		return ki.Keys(ctx, prefix)
	}
	return func(yield func(string, error) bool) {
		names, err := s.List(ctx, prefix)
		if err != nil {
			yield("", err)
			return
		}
		for _, name := range names {
			if !yield(name, nil) {
				return
			}
		}
	}
}
