package nats

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Redshadow31/tenf-v2-sub007/blobstore"
)

// Bucket is the subset of jetstream.ObjectStore used by Store.
type Bucket interface {
	GetBytes(ctx context.Context, name string, opts ...jetstream.GetObjectOpt) ([]byte, error)
	PutBytes(ctx context.Context, name string, data []byte) (*jetstream.ObjectInfo, error)
	Put(ctx context.Context, obj jetstream.ObjectMeta, reader io.Reader) (*jetstream.ObjectInfo, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context, opts ...jetstream.ListObjectsOpt) ([]*jetstream.ObjectInfo, error)
}

var _ Bucket = (jetstream.ObjectStore)(nil)

var errWriteAborted = errors.New("nats: write aborted")

// Options configures Dial.
type Options struct {
	// Prefix is prepended to every key. Default: none.
	Prefix string

	// Name identifies the connection on the server.
	Name string

	// Timeout bounds the initial connection. Default: 5s.
	Timeout time.Duration

	// Replicas is used when the bucket has to be created. Default: 1.
	Replicas int
}

// Store implements blobstore.BlobStore on a JetStream object store.
type Store struct {
	bucket Bucket
	prefix string
	conn   *nats.Conn
}

var (
	_ blobstore.BlobStore = (*Store)(nil)
	_ blobstore.Getter    = (*Store)(nil)
	_ blobstore.Aborter   = (*objectWriter)(nil)
)

// Dial connects to url, opens (or creates) the object-store bucket and
// returns a Store that owns the connection. Close releases it.
func Dial(ctx context.Context, url, bucket string, optFns ...func(o *Options)) (*Store, error) {
	if bucket == "" {
		return nil, errors.New("nats: bucket is required")
	}

	opts := Options{
		Name:     "tenf-store",
		Timeout:  5 * time.Second,
		Replicas: 1,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	nc, err := nats.Connect(url, nats.Name(opts.Name), nats.Timeout(opts.Timeout))
	if err != nil {
		return nil, fmt.Errorf("nats: connect %s: %w", url, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("nats: jetstream: %w", err)
	}

	obs, err := openBucket(ctx, js, jetstream.ObjectStoreConfig{
		Bucket:   bucket,
		Replicas: opts.Replicas,
	})
	if err != nil {
		nc.Close()
		return nil, err
	}

	s := NewStore(obs, opts.Prefix)
	s.conn = nc
	return s, nil
}

func openBucket(ctx context.Context, js jetstream.JetStream, cfg jetstream.ObjectStoreConfig) (jetstream.ObjectStore, error) {
	obs, err := js.ObjectStore(ctx, cfg.Bucket)
	if err == nil {
		return obs, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, fmt.Errorf("nats: object store %s: %w", cfg.Bucket, err)
	}

	obs, err = js.CreateObjectStore(ctx, cfg)
	if err != nil {
		// Another client may have created it concurrently.
		if existing, getErr := js.ObjectStore(ctx, cfg.Bucket); getErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("nats: create object store %s: %w", cfg.Bucket, err)
	}
	return obs, nil
}

// NewStore wraps an existing object-store bucket. The caller keeps ownership
// of the underlying connection.
func NewStore(bucket Bucket, rootPrefix string) *Store {
	return &Store{
		bucket: bucket,
		prefix: strings.Trim(rootPrefix, "/"),
	}
}

// Close drains the connection opened by Dial. It is a no-op for stores
// created with NewStore.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}

func (s *Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func (s *Store) rel(key string) string {
	if s.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, s.prefix+"/")
}

// Get fetches the whole object.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := s.bucket.GetBytes(ctx, s.key(name))
	if err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, &os.PathError{Op: "get", Path: name, Err: blobstore.ErrNotFound}
		}
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// Open fetches the object and serves reads from memory.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	data, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return &objectBlob{data: data}, nil
}

// Put stores data as one object, replacing any previous version.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.bucket.PutBytes(ctx, s.key(name), data)
	return err
}

// Create streams writes into the object store. The object becomes visible
// on Close.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	pr, pw := io.Pipe()

	w := &objectWriter{
		pw:   pw,
		done: make(chan error, 1),
	}

	go func() {
		_, err := s.bucket.Put(ctx, jetstream.ObjectMeta{Name: s.key(name)}, pr)
		_ = pr.CloseWithError(err)
		w.done <- err
	}()

	return w, nil
}

// Delete removes an object. Deleting a missing object succeeds.
func (s *Store) Delete(ctx context.Context, name string) error {
	err := s.bucket.Delete(ctx, s.key(name))
	if err != nil && !errors.Is(err, jetstream.ErrObjectNotFound) {
		return err
	}
	return nil
}

// List returns the names of live objects with the given prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	infos, err := s.bucket.List(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoObjectsFound) {
			return []string{}, nil
		}
		return nil, err
	}

	full := s.key(prefix)
	names := []string{}
	for _, info := range infos {
		if info == nil || info.Deleted || !strings.HasPrefix(info.Name, full) {
			continue
		}
		names = append(names, s.rel(info.Name))
	}

	sort.Strings(names)
	return names, nil
}

type objectBlob struct {
	data []byte
}

func (b *objectBlob) Close() error { return nil }

func (b *objectBlob) Size() int64 { return int64(len(b.data)) }

func (b *objectBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	if off >= int64(len(b.data)) {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	end := min(off+length, int64(len(b.data)))
	return io.NopCloser(bytes.NewReader(b.data[off:end])), nil
}

type objectWriter struct {
	pw     *io.PipeWriter
	done   chan error
	closed atomic.Bool
}

func (w *objectWriter) Write(p []byte) (int, error) {
	if w.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	return w.pw.Write(p)
}

func (w *objectWriter) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return io.ErrClosedPipe
	}
	if err := w.pw.Close(); err != nil {
		return err
	}
	return <-w.done
}

// Abort fails the pending Put so no object is stored.
func (w *objectWriter) Abort() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = w.pw.CloseWithError(errWriteAborted)
	<-w.done
	return nil
}
