package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tenf "github.com/Redshadow31/tenf-v2-sub007"
	"github.com/Redshadow31/tenf-v2-sub007/blobstore"
	"github.com/Redshadow31/tenf-v2-sub007/blobstore/dynamodb"
	"github.com/Redshadow31/tenf-v2-sub007/blobstore/minio"
	"github.com/Redshadow31/tenf-v2-sub007/blobstore/s3"
	"github.com/Redshadow31/tenf-v2-sub007/config"
)

func TestOpen_AutoFallsBackToLocal(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	store, kind, err := Open(context.Background(), config.Storage{BaseDir: dir})
	require.NoError(t, err)
	assert.Equal(t, config.KindLocal, kind)

	local, ok := store.(*blobstore.LocalStore)
	require.True(t, ok)
	assert.Equal(t, dir, local.Root())
	assert.DirExists(t, dir)
}

func TestOpen_Memory(t *testing.T) {
	store, kind, err := Open(context.Background(), config.Storage{Kind: config.KindMemory})
	require.NoError(t, err)
	assert.Equal(t, config.KindMemory, kind)
	assert.IsType(t, &blobstore.MemoryStore{}, store)
}

func TestOpen_RemoteKinds(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		storage config.Storage
		kind    config.BackendKind
		want    any
	}{
		{
			name: "s3",
			storage: config.Storage{S3: config.S3{
				Bucket:          "tenf",
				Region:          "eu-west-3",
				Endpoint:        "http://localhost:4566",
				UsePathStyle:    true,
				AccessKeyID:     "test",
				SecretAccessKey: "test",
			}},
			kind: config.KindS3,
			want: &s3.Store{},
		},
		{
			name: "minio",
			storage: config.Storage{MinIO: config.MinIO{
				Endpoint: "localhost:9000",
				Bucket:   "tenf",
			}},
			kind: config.KindMinIO,
			want: &minio.Store{},
		},
		{
			name: "dynamodb",
			storage: config.Storage{DynamoDB: config.DynamoDB{
				Table:           "tenf",
				Region:          "eu-west-3",
				Endpoint:        "http://localhost:8000",
				AccessKeyID:     "test",
				SecretAccessKey: "test",
			}},
			kind: config.KindDynamoDB,
			want: &dynamodb.Store{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, kind, err := Open(ctx, tt.storage)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, kind)
			assert.IsType(t, tt.want, store)
		})
	}
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	_, kind, err := Open(ctx, config.Storage{Kind: "ftp"})
	require.Error(t, err)
	assert.Equal(t, config.BackendKind("ftp"), kind)

	_, _, err = Open(ctx, config.Storage{Kind: config.KindS3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket is required")

	_, kind, err = Open(ctx, config.Storage{NATS: config.NATS{URL: "nats://127.0.0.1:1", Bucket: "tenf"}})
	require.Error(t, err)
	assert.Equal(t, config.KindNATS, kind)
}

// The same logical key lands on every backend unchanged.
func TestOpen_KeyFormatIsBackendIndependent(t *testing.T) {
	ctx := context.Background()
	key := tenf.NewKey(tenf.FollowValidations, "2024-06", "alice").String()

	for _, storage := range []config.Storage{
		{Kind: config.KindMemory},
		{Kind: config.KindLocal, BaseDir: t.TempDir()},
	} {
		backend, kind, err := Open(ctx, storage)
		require.NoError(t, err)

		store := tenf.New(backend, tenf.WithBackendName(string(kind)))
		require.NoError(t, store.Write(ctx, key, map[string]bool{"ok": true}))

		names, err := backend.List(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"tenf-follow-validations/2024-06/alice.json"}, names, "kind %s", kind)
	}
}
