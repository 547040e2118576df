// Package concurrency provides the block-parallel worker pool spec §5
// describes: the outer chunk loop of the evaluator and matmul pipelines
// stays sequential (the codec's append-only super-chunk isn't
// concurrent-safe), while the inner block loop across one chunk is
// trivially parallel and may be submitted here.
package concurrency

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
)

// BlockTask is one unit of block-parallel work: ChunkIndex/BlockIndex are
// carried for diagnostics only, Fn does the actual decompress-eval-write
// step and must write to a disjoint byte range of its chunk's staging
// buffer (spec §5's "no two workers touch the same output byte range").
type BlockTask struct {
	ID         string
	ChunkIndex int
	BlockIndex int
	Fn         func() error
}

// Pool runs a fixed number of workers consuming BlockTasks, adapted from
// the teacher's WorkerPool/Job/JobResult shape
// (internal/concurrency/concurrency.go) and trimmed to the one job kind
// the matmul pipeline needs.
type Pool struct {
	size    int
	jobs    chan BlockTask
	results chan error
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a pool of size workers. A size <= 0 defaults to
// runtime.NumCPU(), matching the teacher's CreateWorkerPool default.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		size:    size,
		jobs:    make(chan BlockTask, size),
		results: make(chan error, size),
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.runWorker()
	}
	return p
}

func (p *Pool) runWorker() {
	defer p.wg.Done()
	for {
		select {
		case task, ok := <-p.jobs:
			if !ok {
				return
			}
			err := task.Fn()
			select {
			case p.results <- err:
			case <-p.ctx.Done():
				return
			}
		case <-p.ctx.Done():
			return
		}
	}
}

// Submit tags fn with a uuid (matching the teacher's Job.ID tagging
// convention) and queues it. Blocks if every worker is busy and the
// buffer is full.
func (p *Pool) Submit(chunkIndex, blockIndex int, fn func() error) {
	p.jobs <- BlockTask{ID: uuid.New().String(), ChunkIndex: chunkIndex, BlockIndex: blockIndex, Fn: fn}
}

// RunBlocks submits n independent block tasks and waits for all of them,
// returning the first error encountered (if any). This is the call shape
// the matmul pipeline uses: one chunk's
// worth of blocks, fully independent, synchronized before the chunk is
// compressed and appended.
func RunBlocks(size, n int, fn func(blockIndex int) error) error {
	if n == 0 {
		return nil
	}
	p := New(min(size, n))
	defer p.Close()
	go func() {
		for i := 0; i < n; i++ {
			p.Submit(0, i, func() error { return fn(i) })
		}
	}()
	var firstErr error
	for i := 0; i < n; i++ {
		if err := <-p.results; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Close stops accepting new work and waits for in-flight tasks to drain.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
	p.cancel()
}

// Deadline wraps fn with a timeout, mirroring the teacher's per-job
// Job.Timeout field. Exceeding it returns a context.DeadlineExceeded
// wrapped error; the underlying goroutine is not forcibly killed (Go has
// no cooperative cancellation without the callee checking ctx).
func Deadline(d time.Duration, fn func() error) error {
	if d <= 0 {
		return fn()
	}
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-time.After(d):
		return context.DeadlineExceeded
	}
}
