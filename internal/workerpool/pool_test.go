package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Do_ReturnsFnError(t *testing.T) {
	p := New(2)
	defer p.Close()

	boom := errors.New("boom")
	err := p.Do(context.Background(), func() error { return boom })
	assert.ErrorIs(t, err, boom)

	require.NoError(t, p.Do(context.Background(), func() error { return nil }))
}

func TestPool_Do_BoundsConcurrency(t *testing.T) {
	const size = 3
	p := New(size)
	defer p.Close()

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Do(context.Background(), func() error {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(size))
	assert.Greater(t, peak.Load(), int32(0))
}

func TestPool_Do_CancelledWhileWaiting(t *testing.T) {
	p := New(1)
	defer p.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = p.Do(context.Background(), func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ran := false
	err := p.Do(ctx, func() error { ran = true; return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, ran)

	close(release)
}

func TestPool_Go_ReportsErrorsAndCloseWaits(t *testing.T) {
	p := New(2)

	var mu sync.Mutex
	var got []error
	boom := errors.New("upload failed")

	for i := 0; i < 4; i++ {
		require.NoError(t, p.Go(context.Background(), func(context.Context) error {
			time.Sleep(time.Millisecond)
			return boom
		}, func(err error) {
			mu.Lock()
			got = append(got, err)
			mu.Unlock()
		}))
	}

	p.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 4)
	for _, err := range got {
		assert.ErrorIs(t, err, boom)
	}
}

func TestPool_RejectsAfterClose(t *testing.T) {
	p := New(1)
	p.Close()

	assert.ErrorIs(t, p.Do(context.Background(), func() error { return nil }), ErrClosed)
	assert.ErrorIs(t, p.Go(context.Background(), func(context.Context) error { return nil }, nil), ErrClosed)
}
