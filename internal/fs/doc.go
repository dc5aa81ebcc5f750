// Package fs provides fault injection for afero filesystems.
//
// [FaultyFs] wraps any afero.Fs and fails selected operations on paths that
// match a rule. Tests hand it to blobstore.LocalStore to exercise the error
// paths of the local backend without touching the real disk:
//
//	ffs := fs.NewFaultyFs(afero.NewMemMapFs())
//	ffs.AddRule("2024-06", fs.Fault{FailOnRename: true})
//	store := blobstore.NewLocalStore("/data", func(o *blobstore.LocalOptions) {
//	    o.Fs = ffs
//	})
//
// # Design Notes
//
// Operations are not context-aware. Local filesystem calls are short and
// not interruptible at the syscall level.
package fs
