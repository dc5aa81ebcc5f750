// Package tenf is a namespaced JSON record store with pluggable backends.
//
// Records are opaque JSON documents addressed by logical keys of the form
//
//	<collection>/<YYYY-MM>/<entity>.json
//
// e.g. "tenf-follow-validations/2024-06/alice.json". The same key maps to
// the same record on every backend: a local directory tree mirroring the key
// hierarchy, or a managed service (S3, MinIO, DynamoDB, NATS JetStream).
//
// # Quick Start
//
// The backend is chosen once, at startup, and injected:
//
//	ctx := context.Background()
//	cfg, _ := config.Load(viper.New(), "")
//	backend, kind, _ := backend.Open(ctx, cfg.Storage)
//	store := tenf.New(backend, tenf.WithBackendName(string(kind)))
//	defer store.Close()
//
//	key := tenf.MonthKey(tenf.FollowValidations, time.Now(), "alice").String()
//	_ = store.Write(ctx, key, map[string]any{"ok": true})
//	rec, _ := store.Read(ctx, key)
//
// # Typed Collections
//
// Collection binds a collection name to a Go type:
//
//	follows := tenf.NewCollection[FollowValidation](store, tenf.FollowValidations)
//	_ = follows.Put(ctx, "2024-06", "alice", v)
//	v, err := follows.Get(ctx, "2024-06", "alice")
//	names, _ := follows.Entities(ctx, "2024-06")
//
// # Errors
//
// Operations fail with one of four error types, all matchable with
// errors.Is against a sentinel:
//
//	NotFoundError         ErrNotFound         nothing stored under the key
//	DeserializationError  ErrDeserialization  stored content is not JSON
//	BackendError          ErrBackend          I/O, network or permission failure
//	InvalidKeyError       ErrInvalidKey       malformed key, no backend call made
//
// # Consistency
//
// Every operation is single-shot: there is no retry, locking or caching in
// this package. Concurrent writers to one key race and the last write wins.
// Remote backends may be eventually consistent for List.
package tenf
