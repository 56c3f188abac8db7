package gopool

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolRunsTasks(t *testing.T) {
	pool, err := New(4)
	require.NoError(t, err)
	defer pool.Release()
	require.Equal(t, 4, pool.Cap())

	var (
		wg    sync.WaitGroup
		count atomic.Int32
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		require.NoError(t, pool.Submit(func() {
			defer wg.Done()
			count.Add(1)
		}))
	}
	wg.Wait()
	require.Equal(t, int32(100), count.Load())
}

func TestPoolSurvivesPanic(t *testing.T) {
	pool, err := New(1)
	require.NoError(t, err)
	defer pool.Release()

	done := make(chan struct{})
	require.NoError(t, pool.Submit(func() { panic("boom") }))
	require.NoError(t, pool.Submit(func() { close(done) }))
	<-done
}

func TestThreads(t *testing.T) {
	require.Equal(t, 1, Threads(0))
	require.Equal(t, 1, Threads(minNumberPerTask))
	require.Equal(t, runtime.NumCPU(), Threads(minNumberPerTask*runtime.NumCPU()*10))
}
