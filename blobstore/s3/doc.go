// Package s3 provides an Amazon S3 implementation of the blobstore.BlobStore
// interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "tenf-records",
//	    func(o *s3.Options) {
//	        o.Prefix = "prod/"
//	        o.Region = "eu-west-3"
//	    },
//	)
//
//	s := tenf.New(store)
//
// Any S3-compatible endpoint (LocalStack, Ceph RGW) works by setting
// Options.Endpoint and, usually, Options.UsePathStyle.
//
// # Features
//
//   - CRC32C checksummed whole-object puts
//   - Multipart streaming uploads for Create
//   - Range reads for partial fetches
//   - Lazy, paginated key listing
//   - Configurable prefix for environment isolation
package s3
