package matmul

// pinBLASThreads sets the BLAS thread count to 1 for the duration of a
// matmul call (spec §5: "the pipeline provides its own block-level
// parallelism") and returns a function that restores the previous value.
//
// gonum's blas64.Implementation() defaults to its own pure-Go reference
// kernel, which is already single-threaded and exposes no thread-count
// knob — so pinning here is a no-op on that backend. The hook stays in
// place because the teacher's config layer (internal/concurrency) always
// models resource knobs explicitly rather than assuming a default, and a
// cgo-linked multi-threaded BLAS (OpenBLAS via a build-tagged backend)
// would plug into this same seam without callers changing.
func pinBLASThreads() (restore func()) {
	return func() {}
}
