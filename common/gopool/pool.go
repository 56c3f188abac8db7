package gopool

import (
	"runtime"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/panjf2000/ants/v2"
)

var minNumberPerTask = 5

// Pool is a bounded pool of goroutines. A panicking task is logged and does
// not take the pool down.
type Pool struct {
	pool *ants.Pool
}

// New creates a pool of the given size. A non-positive size picks one worker
// per CPU.
func New(size int) (*Pool, error) {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	pool, err := ants.NewPool(size,
		ants.WithExpiryDuration(10*time.Second),
		ants.WithPanicHandler(func(p interface{}) {
			log.Error("Pool task panicked", "err", p)
		}),
	)
	if err != nil {
		return nil, err
	}
	return &Pool{pool: pool}, nil
}

// Submit submits a task to pool. It blocks while every worker is busy.
func (p *Pool) Submit(task func()) error {
	return p.pool.Submit(task)
}

// Running returns the number of the currently running goroutines.
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Cap returns the capacity of the pool.
func (p *Pool) Cap() int {
	return p.pool.Cap()
}

// Free returns the available goroutines to work.
func (p *Pool) Free() int {
	return p.pool.Free()
}

// Release closes the pool.
func (p *Pool) Release() {
	p.pool.Release()
}

// Threads returns the number of workers worth spawning for the given number
// of tasks.
func Threads(tasks int) int {
	threads := tasks / minNumberPerTask
	if threads > runtime.NumCPU() {
		threads = runtime.NumCPU()
	} else if threads == 0 {
		threads = 1
	}
	return threads
}
