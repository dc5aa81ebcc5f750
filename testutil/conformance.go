package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/Redshadow31/tenf-v2-sub007/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// StoreFactory returns a fresh, empty store for one subtest.
type StoreFactory func(t *testing.T) blobstore.BlobStore

// RunConformance runs the blobstore.BlobStore contract against the stores
// produced by newStore.
func RunConformance(t *testing.T, newStore StoreFactory) {
	t.Helper()
	ctx := context.Background()

	t.Run("RoundTrip", func(t *testing.T) {
		s := newStore(t)
		data := []byte(`{"approved":true}`)

		require.NoError(t, s.Put(ctx, "tenf-follow-validations/2024-06/alice.json", data))

		got, err := blobstore.ReadAll(ctx, s, "tenf-follow-validations/2024-06/alice.json")
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("OpenMissing", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Open(ctx, "tenf-follow-validations/2024-06/nobody.json")
		require.Error(t, err)
		assert.True(t, blobstore.IsNotFound(err), "got %v", err)

		_, err = blobstore.ReadAll(ctx, s, "tenf-follow-validations/2024-06/nobody.json")
		assert.True(t, blobstore.IsNotFound(err), "got %v", err)

		ok, err := blobstore.Exists(ctx, s, "tenf-follow-validations/2024-06/nobody.json")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("LastWriteWins", func(t *testing.T) {
		s := newStore(t)
		key := "c/2024-06/bob.json"

		require.NoError(t, s.Put(ctx, key, []byte(`{"v":1}`)))
		require.NoError(t, s.Put(ctx, key, []byte(`{"v":2}`)))

		got, err := blobstore.ReadAll(ctx, s, key)
		require.NoError(t, err)
		assert.Equal(t, `{"v":2}`, string(got))

		keys, err := s.List(ctx, "c/")
		require.NoError(t, err)
		assert.Equal(t, []string{key}, keys)
	})

	t.Run("ListPrefix", func(t *testing.T) {
		s := newStore(t)
		rng := NewRNG(42)

		june := []string{
			"tenf-follow-validations/2024-06/.bob.tmp",
			"tenf-follow-validations/2024-06/alice.json",
			"tenf-follow-validations/2024-06/bob.json",
			"tenf-follow-validations/2024-06/carol.json",
		}
		others := []string{
			"tenf-follow-validations/2024-05/alice.json",
			"tenf-follow-validations/2024-060/mallory.json",
			"academy/2024-06/alice.json",
		}
		for _, k := range append(append([]string{}, june...), others...) {
			require.NoError(t, s.Put(ctx, k, []byte(rng.Slug(12))))
		}

		keys, err := s.List(ctx, "tenf-follow-validations/2024-06/")
		require.NoError(t, err)
		assert.Equal(t, june, keys)

		all, err := s.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, len(june)+len(others))
		assert.True(t, sort.StringsAreSorted(all))

		none, err := s.List(ctx, "nothing-here/")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("ListRandomWrites", func(t *testing.T) {
		s := newStore(t)
		rng := NewRNG(7)

		written := map[string][]string{}
		for _, k := range rng.Keys("tenf-follow-validations", 40) {
			require.NoError(t, s.Put(ctx, k, []byte("{}")))
			prefix := k[:strings.LastIndex(k, "/")+1]
			written[prefix] = append(written[prefix], k)
		}

		for prefix, want := range written {
			sort.Strings(want)
			got, err := s.List(ctx, prefix)
			require.NoError(t, err)
			assert.Equal(t, want, got, prefix)
		}
	})

	t.Run("KeysRestartable", func(t *testing.T) {
		s := newStore(t)
		for _, k := range []string{"k/2024-01/a.json", "k/2024-01/b.json", "k/2024-02/c.json"} {
			require.NoError(t, s.Put(ctx, k, []byte("1")))
		}

		seq := blobstore.Keys(ctx, s, "k/2024-01/")
		for range 2 {
			var got []string
			for k, err := range seq {
				require.NoError(t, err)
				got = append(got, k)
			}
			assert.Equal(t, []string{"k/2024-01/a.json", "k/2024-01/b.json"}, got)
		}

		// Early exit must not leak or panic.
		for k, err := range blobstore.Keys(ctx, s, "k/") {
			require.NoError(t, err)
			assert.Equal(t, "k/2024-01/a.json", k)
			break
		}
	})

	t.Run("DeleteIdempotent", func(t *testing.T) {
		s := newStore(t)
		key := "c/2024-06/dave.json"

		require.NoError(t, s.Put(ctx, key, []byte("{}")))
		require.NoError(t, s.Delete(ctx, key))

		_, err := s.Open(ctx, key)
		assert.True(t, blobstore.IsNotFound(err), "got %v", err)

		require.NoError(t, s.Delete(ctx, key))

		keys, err := s.List(ctx, "c/")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("CreateAndReadRange", func(t *testing.T) {
		s := newStore(t)
		key := "blobs/2024-06/stream.json"
		data := []byte(`{"hello":"world, this is a streamed record"}`)

		w, err := s.Create(ctx, key)
		require.NoError(t, err)
		n, err := w.Write(data[:10])
		require.NoError(t, err)
		require.Equal(t, 10, n)
		_, err = w.Write(data[10:])
		require.NoError(t, err)
		require.NoError(t, w.Close())

		b, err := s.Open(ctx, key)
		require.NoError(t, err)
		defer b.Close()
		require.Equal(t, int64(len(data)), b.Size())

		rc, err := b.ReadRange(ctx, 11, 5)
		require.NoError(t, err)
		defer rc.Close()
		part, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "world", string(part))
	})

	t.Run("WriteFrom", func(t *testing.T) {
		s := newStore(t)
		key := "blobs/2024-06/large.json"
		data := bytes.Repeat([]byte(`{"n":1},`), 4096)

		n, err := blobstore.WriteFrom(ctx, s, key, bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, int64(len(data)), n)

		got, err := blobstore.ReadAll(ctx, s, key)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("WriteFromFailedReaderPublishesNothing", func(t *testing.T) {
		s := newStore(t)
		key := "blobs/2024-06/partial.json"
		boom := errors.New("source failed")

		r := io.MultiReader(strings.NewReader(`{"partial":`), &failingReader{err: boom})
		_, err := blobstore.WriteFrom(ctx, s, key, r)
		require.ErrorIs(t, err, boom)

		ok, err := blobstore.Exists(ctx, s, key)
		require.NoError(t, err)
		assert.False(t, ok)

		keys, err := s.List(ctx, "blobs/")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("ConcurrentWriteDeleteSamePartition", func(t *testing.T) {
		s := newStore(t)
		const (
			workers = 4
			rounds  = 250
		)

		var g errgroup.Group
		for w := range workers {
			g.Go(func() error {
				key := fmt.Sprintf("c/2024-06/worker-%d.json", w)
				for i := range rounds {
					if err := s.Put(ctx, key, []byte("{}")); err != nil {
						return fmt.Errorf("put %s round %d: %w", key, i, err)
					}
					if err := s.Delete(ctx, key); err != nil {
						return fmt.Errorf("delete %s round %d: %w", key, i, err)
					}
				}
				return s.Put(ctx, key, []byte("{}"))
			})
		}
		require.NoError(t, g.Wait())

		keys, err := s.List(ctx, "c/2024-06/")
		require.NoError(t, err)
		assert.Len(t, keys, workers)
	})

	t.Run("EmptyBlob", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "e/2024-06/empty.json", []byte{}))

		got, err := blobstore.ReadAll(ctx, s, "e/2024-06/empty.json")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

type failingReader struct{ err error }

func (r *failingReader) Read([]byte) (int, error) { return 0, r.err }
