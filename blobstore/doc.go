// Package blobstore provides the storage backends behind the TENF record store.
//
// BlobStore is the interface for reading and writing opaque byte payloads under
// slash-separated keys. Implementations must be safe for concurrent use and
// report missing blobs with an error matching ErrNotFound.
//
// # Built-in Implementations
//
//   - LocalStore: Local filesystem tree mirroring the key hierarchy (afero-backed)
//   - MemoryStore: In-memory store for tests and ephemeral runs
//   - s3.Store: Amazon S3 (or any S3 endpoint such as LocalStack)
//   - minio.Store: MinIO and other S3-compatible services
//   - dynamodb.Store: DynamoDB table holding one item per key
//   - nats.Store: NATS JetStream object store
//
// # Custom Implementations
//
// Implement the BlobStore interface to support custom storage backends:
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)            // Open for reading
//	    Create(ctx, name) (WritableBlob, error)  // Streaming write, published on Close
//	    Put(ctx, name, data) error               // Whole-object write
//	    Delete(ctx, name) error                  // Idempotent
//	    List(ctx, prefix) ([]string, error)      // Sorted
//	}
//
// Backends that can fetch a blob in one round trip implement Getter; backends
// with paginated listings implement KeyIterator so callers can stream keys.
// Writable blobs that can discard a partial write implement Aborter, which
// WriteFrom uses when its source fails.
//
// # Consistency
//
// Writes are last-write-wins. No backend offers compare-and-swap through this
// interface, and remote backends may be eventually consistent: a Put followed
// by a List on another client is not guaranteed to observe the new key.
package blobstore
