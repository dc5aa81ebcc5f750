package archive

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tenf "github.com/Redshadow31/tenf-v2-sub007"
	"github.com/Redshadow31/tenf-v2-sub007/blobstore"
	"github.com/Redshadow31/tenf-v2-sub007/internal/hash"
	"github.com/Redshadow31/tenf-v2-sub007/testutil"
)

func seed(t *testing.T, store *tenf.Store, n int) []string {
	t.Helper()
	ctx := context.Background()
	rng := testutil.NewRNG(7)

	keys := make([]string, 0, n)
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("%s/2024-06/staff-%03d.json", tenf.FollowValidations, i)
		require.NoError(t, store.Write(ctx, key, rng.Document()))
		keys = append(keys, key)
	}
	return keys
}

func decompressLines(t *testing.T, data []byte) []string {
	t.Helper()
	dec, err := zstd.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer dec.Close()

	var lines []string
	scanner := bufio.NewScanner(dec)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func crcOf(record string) string {
	return hash.CRC32CBase64([]byte(record))
}

func compress(t *testing.T, lines ...string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	for _, l := range lines {
		_, err := enc.Write([]byte(l + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, enc.Close())
	return &buf
}

func TestExportImport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := tenf.New(blobstore.NewMemoryStore())
	keys := seed(t, src, 100)
	require.NoError(t, src.Write(ctx, "other/2024-06/x.json", 1))

	var buf bytes.Buffer
	n, err := Export(ctx, src, tenf.CollectionPrefix(tenf.FollowValidations), &buf, WithConcurrency(4))
	require.NoError(t, err)
	assert.Equal(t, 100, n)

	dst := tenf.New(blobstore.NewLocalStore(t.TempDir()))
	n, err = Import(ctx, dst, bytes.NewReader(buf.Bytes()), WithConcurrency(3))
	require.NoError(t, err)
	assert.Equal(t, 100, n)

	got, err := dst.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, keys, got)

	for _, key := range keys {
		want, err := src.Read(ctx, key)
		require.NoError(t, err)
		have, err := dst.Read(ctx, key)
		require.NoError(t, err)
		assert.True(t, want.Equal(have), "key %s", key)
	}
}

func TestExport_KeyOrder(t *testing.T) {
	ctx := context.Background()
	store := tenf.New(blobstore.NewMemoryStore())
	keys := seed(t, store, 300)

	var buf bytes.Buffer
	_, err := Export(ctx, store, "", &buf, WithConcurrency(16))
	require.NoError(t, err)

	lines := decompressLines(t, buf.Bytes())
	require.Len(t, lines, len(keys))
	for i, l := range lines {
		assert.Contains(t, l, `"key":"`+keys[i]+`"`)
		assert.Contains(t, l, `"crc32c":"`)
	}
}

func TestExport_Empty(t *testing.T) {
	var buf bytes.Buffer
	n, err := Export(context.Background(), tenf.New(blobstore.NewMemoryStore()), "none/", &buf)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, decompressLines(t, buf.Bytes()))
}

func TestExport_InvalidPrefix(t *testing.T) {
	var buf bytes.Buffer
	_, err := Export(context.Background(), tenf.New(blobstore.NewMemoryStore()), "../", &buf)
	assert.True(t, tenf.IsInvalidKey(err))
}

func TestExport_UnreadableRecord(t *testing.T) {
	ctx := context.Background()
	backend := blobstore.NewMemoryStore()
	require.NoError(t, backend.Put(ctx, "c/2024-06/bad.json", []byte(`{`)))

	var buf bytes.Buffer
	_, err := Export(ctx, tenf.New(backend), "c/", &buf)
	assert.True(t, tenf.IsDeserialization(err))
}

func TestImport_HandWritten(t *testing.T) {
	ctx := context.Background()
	store := tenf.New(blobstore.NewMemoryStore())

	in := compress(t,
		`{"key":"c/2024-06/a.json","record":{"ok":true}}`,
		``,
		`{"key":"c/2024-06/b.json","record":[1,2,3],"crc32c":"`+crcOf(`[1,2,3]`)+`"}`,
	)
	n, err := Import(ctx, store, in)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rec, err := store.Read(ctx, "c/2024-06/b.json")
	require.NoError(t, err)
	assert.Equal(t, "[1,2,3]", rec.String())
}

func TestImport_Errors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		lines []string
		check func(t *testing.T, err error)
	}{
		{
			name:  "not json",
			lines: []string{`{"key":"c/2024-06/a.json","record":`},
			check: func(t *testing.T, err error) {
				assert.True(t, tenf.IsDeserialization(err))
				assert.Contains(t, err.Error(), "line 1")
			},
		},
		{
			name:  "missing record",
			lines: []string{`{"key":"c/2024-06/a.json"}`},
			check: func(t *testing.T, err error) {
				assert.True(t, tenf.IsDeserialization(err))
			},
		},
		{
			name:  "bad key",
			lines: []string{`{"key":"../etc/passwd","record":1}`},
			check: func(t *testing.T, err error) {
				assert.True(t, tenf.IsInvalidKey(err))
			},
		},
		{
			name:  "checksum",
			lines: []string{`{"key":"c/2024-06/a.json","record":{"ok":false},"crc32c":"` + crcOf(`{"ok":true}`) + `"}`},
			check: func(t *testing.T, err error) {
				assert.True(t, tenf.IsDeserialization(err))
				assert.ErrorIs(t, err, ErrChecksum)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := tenf.New(blobstore.NewMemoryStore())
			_, err := Import(ctx, store, compress(t, tt.lines...))
			require.Error(t, err)
			tt.check(t, err)

			keys, err := store.List(ctx, "")
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}

	_, err := Import(ctx, tenf.New(blobstore.NewMemoryStore()), bytes.NewReader([]byte("not an archive")))
	assert.True(t, tenf.IsDeserialization(err))
}

func TestImport_SkipExisting(t *testing.T) {
	ctx := context.Background()
	store := tenf.New(blobstore.NewMemoryStore())
	require.NoError(t, store.Write(ctx, "c/2024-06/a.json", "keep"))

	in := compress(t,
		`{"key":"c/2024-06/a.json","record":"replace"}`,
		`{"key":"c/2024-06/b.json","record":"new"}`,
	)
	n, err := Import(ctx, store, in, WithSkipExisting())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, err := store.Read(ctx, "c/2024-06/a.json")
	require.NoError(t, err)
	assert.Equal(t, `"keep"`, rec.String())
}

func TestImport_RateLimit(t *testing.T) {
	ctx := context.Background()
	src := tenf.New(blobstore.NewMemoryStore())
	seed(t, src, 10)

	var buf bytes.Buffer
	_, err := Export(ctx, src, "", &buf, WithRateLimit(1000), WithLevel(zstd.SpeedFastest))
	require.NoError(t, err)

	dst := tenf.New(blobstore.NewMemoryStore())
	n, err := Import(ctx, dst, &buf, WithRateLimit(1000), WithConcurrency(1))
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestImport_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := compress(t, `{"key":"c/2024-06/a.json","record":1}`)
	_, err := Import(ctx, tenf.New(blobstore.NewMemoryStore()), in, WithRateLimit(1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptions(t *testing.T) {
	o := applyOptions([]Option{WithConcurrency(0), nil, WithRateLimit(-1)})
	assert.Equal(t, 8, o.concurrency)
	assert.Equal(t, zstd.SpeedDefault, o.level)
	assert.Equal(t, CompressionZstd, o.compression)
	assert.False(t, o.skipExisting)
}

func TestExportImport_Compression(t *testing.T) {
	ctx := context.Background()
	src := tenf.New(blobstore.NewMemoryStore())
	keys := seed(t, src, 20)

	for _, c := range []Compression{CompressionZstd, CompressionLZ4, CompressionNone} {
		t.Run(c.String(), func(t *testing.T) {
			var buf bytes.Buffer
			n, err := Export(ctx, src, "", &buf, WithCompression(c))
			require.NoError(t, err)
			assert.Equal(t, len(keys), n)

			switch c {
			case CompressionZstd:
				assert.Equal(t, zstdMagic, buf.Bytes()[:4])
			case CompressionLZ4:
				assert.Equal(t, lz4Magic, buf.Bytes()[:4])
			case CompressionNone:
				assert.Equal(t, byte('{'), buf.Bytes()[0])
			}

			dst := tenf.New(blobstore.NewMemoryStore())
			n, err = Import(ctx, dst, &buf)
			require.NoError(t, err)
			assert.Equal(t, len(keys), n)

			got, err := dst.List(ctx, "")
			require.NoError(t, err)
			assert.Equal(t, keys, got)
		})
	}
}

func TestImport_EmptyStream(t *testing.T) {
	n, err := Import(context.Background(), tenf.New(blobstore.NewMemoryStore()), bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{CompressionZstd, CompressionLZ4, CompressionNone} {
		got, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	got, err := ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, CompressionZstd, got)

	_, err = ParseCompression("gzip")
	assert.Error(t, err)
	assert.Equal(t, "Compression(9)", Compression(9).String())
}
