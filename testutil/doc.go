// Package testutil provides testing utilities for the record store.
//
// This package is intended for use in tests only.
//
// # Random Keys and Payloads
//
//	rng := testutil.NewRNG(seed)
//	key := rng.Key("tenf-follow-validations")   // "tenf-follow-validations/2023-04/staff-k3x9.json"
//	doc := rng.Document()                        // map[string]any with mixed JSON kinds
//
// # Backend Conformance
//
// RunConformance checks the blobstore.BlobStore contract against any backend:
//
//	func TestLocalStore_Conformance(t *testing.T) {
//	    testutil.RunConformance(t, func(t *testing.T) blobstore.BlobStore {
//	        return blobstore.NewLocalStore(t.TempDir())
//	    })
//	}
package testutil
