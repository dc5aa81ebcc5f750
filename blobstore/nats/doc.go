// Package nats provides a NATS JetStream object-store implementation of the
// blobstore.BlobStore interface.
//
// Each key is stored as one object in a JetStream object-store bucket. Object
// names may contain slashes, so keys are used verbatim.
//
//	store, err := nats.Dial(ctx, "nats://localhost:4222", "tenf-records")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
// The object store has no range reads or server-side prefix filter: Open
// fetches the whole object and List filters the bucket listing client side.
package nats
