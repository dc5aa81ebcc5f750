// Package backend resolves a storage configuration into exactly one
// blobstore.BlobStore.
//
// Resolution happens once, at process start; the result is injected into
// tenf.New. There is no package-level backend.
package backend

import (
	"context"
	"fmt"
	"os"

	"github.com/Redshadow31/tenf-v2-sub007/blobstore"
	"github.com/Redshadow31/tenf-v2-sub007/blobstore/dynamodb"
	"github.com/Redshadow31/tenf-v2-sub007/blobstore/minio"
	"github.com/Redshadow31/tenf-v2-sub007/blobstore/nats"
	"github.com/Redshadow31/tenf-v2-sub007/blobstore/s3"
	"github.com/Redshadow31/tenf-v2-sub007/config"
)

// Open builds the backend selected by cfg and reports which kind was chosen.
//
// With kind "auto" the first configured service wins, in the order S3,
// MinIO, DynamoDB, NATS; with none configured the local filesystem under
// cfg.BaseDir is used.
func Open(ctx context.Context, cfg config.Storage) (blobstore.BlobStore, config.BackendKind, error) {
	kind := cfg.ResolveKind()

	var (
		store blobstore.BlobStore
		err   error
	)
	switch kind {
	case config.KindLocal:
		store, err = openLocal(cfg)
	case config.KindMemory:
		store = blobstore.NewMemoryStore()
	case config.KindS3:
		store, err = openS3(ctx, cfg)
	case config.KindMinIO:
		store, err = openMinIO(ctx, cfg)
	case config.KindDynamoDB:
		store, err = openDynamoDB(ctx, cfg)
	case config.KindNATS:
		store, err = openNATS(ctx, cfg)
	default:
		err = fmt.Errorf("unknown backend kind %q", kind)
	}
	if err != nil {
		return nil, kind, fmt.Errorf("backend %s: %w", kind, err)
	}
	return store, kind, nil
}

func openLocal(cfg config.Storage) (blobstore.BlobStore, error) {
	dir := cfg.BaseDir
	if dir == "" {
		dir = config.DefaultBaseDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return blobstore.NewLocalStore(dir), nil
}

func openS3(ctx context.Context, cfg config.Storage) (blobstore.BlobStore, error) {
	c := cfg.S3
	store, err := s3.New(ctx, c.Bucket, func(o *s3.Options) {
		o.Prefix = cfg.Prefix
		o.Region = c.Region
		o.Endpoint = c.Endpoint
		o.UsePathStyle = c.UsePathStyle
		o.AccessKeyID = c.AccessKeyID
		o.SecretAccessKey = c.SecretAccessKey
	})
	if err != nil {
		return nil, err
	}
	if c.CreateBucket {
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure bucket %s: %w", c.Bucket, err)
		}
	}
	return store, nil
}

func openMinIO(ctx context.Context, cfg config.Storage) (blobstore.BlobStore, error) {
	c := cfg.MinIO
	store, err := minio.New(c.Endpoint, c.Bucket, func(o *minio.Options) {
		o.Prefix = cfg.Prefix
		o.AccessKey = c.AccessKey
		o.SecretKey = c.SecretKey
		o.Secure = c.Secure
		o.Region = c.Region
	})
	if err != nil {
		return nil, err
	}
	if c.CreateBucket {
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure bucket %s: %w", c.Bucket, err)
		}
	}
	return store, nil
}

func openDynamoDB(ctx context.Context, cfg config.Storage) (blobstore.BlobStore, error) {
	c := cfg.DynamoDB
	store, err := dynamodb.New(ctx, c.Table, func(o *dynamodb.Options) {
		o.Prefix = cfg.Prefix
		o.Region = c.Region
		o.Endpoint = c.Endpoint
		o.AccessKeyID = c.AccessKeyID
		o.SecretAccessKey = c.SecretAccessKey
	})
	if err != nil {
		return nil, err
	}
	if c.CreateTable {
		if err := store.EnsureTable(ctx); err != nil {
			return nil, fmt.Errorf("ensure table %s: %w", c.Table, err)
		}
	}
	return store, nil
}

func openNATS(ctx context.Context, cfg config.Storage) (blobstore.BlobStore, error) {
	c := cfg.NATS
	return nats.Dial(ctx, c.URL, c.Bucket, func(o *nats.Options) {
		o.Prefix = cfg.Prefix
		if c.Replicas > 0 {
			o.Replicas = c.Replicas
		}
	})
}
