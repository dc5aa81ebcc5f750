// Package minio provides a BlobStore implementation using the MinIO client.
//
// It works with MinIO and any other S3-compatible service (Ceph, Garage,
// SeaweedFS) without pulling in the AWS SDK configuration chain.
//
// # Basic Usage
//
//	store, err := minio.New("localhost:9000", "tenf-records", func(o *minio.Options) {
//	    o.AccessKey = "minioadmin"
//	    o.SecretKey = "minioadmin"
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	s := tenf.New(store)
//
// An existing *minio.Client can be wrapped with NewStore.
package minio
