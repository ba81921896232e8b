package tokengate

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// Concurrent presentations of the same refresh token must elect exactly one
// winner; every loser observes a replay or a revoked session, never a second
// rotation.
func TestConcurrentRefreshSingleWinner(t *testing.T) {
	env := newEngineTest(t)
	ctx := context.Background()

	result, err := env.engine.Login(ctx, "a@x.com", "hunter2")
	require.NoError(t, err)

	const workers = 16

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  int
		failures []error
	)

	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start

			_, err := env.engine.Refresh(ctx, result.RefreshToken)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners++
			} else {
				failures = append(failures, err)
			}
		}()
	}

	close(start)
	wg.Wait()

	require.Equal(t, 1, winners)
	require.Len(t, failures, workers-1)

	for _, err := range failures {
		if !errors.Is(err, ErrTokenReuseDetected) && !errors.Is(err, ErrSessionRevoked) {
			t.Fatalf("unexpected loser error: %v", err)
		}
	}
}
