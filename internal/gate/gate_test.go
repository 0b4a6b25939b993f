package gate

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

func TestRunIsMutuallyExclusive(t *testing.T) {
	g := New()
	var active, maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.Run(context.Background(), "worker", func(ctx context.Context) error {
				n := atomic.AddInt32(&active, 1)
				for {
					m := atomic.LoadInt32(&maxActive)
					if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive)
}

func TestRunReleasesAfterError(t *testing.T) {
	g := New()
	boom := errors.New("boom")

	err := g.Run(context.Background(), "failing", func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	ran := false
	require.NoError(t, g.Run(context.Background(), "next", func(ctx context.Context) error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
}

func TestRunRecoversPanic(t *testing.T) {
	g := New()

	err := g.Run(context.Background(), "panicky", func(ctx context.Context) error {
		panic("kaboom")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPanic)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Equal(t, "", g.Holder())

	require.NoError(t, g.Run(context.Background(), "after", func(ctx context.Context) error { return nil }))
}

func TestCancelledWaitDoesNotHoldGate(t *testing.T) {
	g := New()
	release := make(chan struct{})
	holding := make(chan struct{})

	go func() {
		_ = g.Run(context.Background(), "holder", func(ctx context.Context) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding
	assert.Equal(t, "holder", g.Holder())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	called := false
	err := g.Run(ctx, "waiter", func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)

	close(release)

	done := make(chan error, 1)
	go func() {
		done <- g.Run(context.Background(), "after", func(ctx context.Context) error { return nil })
	}()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("gate stayed held after a cancelled waiter")
	}
}

func TestRunWithCancelledContextSkipsWork(t *testing.T) {
	g := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := g.Run(ctx, "late", func(ctx context.Context) error {
		t.Fatal("fn must not run")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
