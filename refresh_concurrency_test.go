package authengine

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// Concurrent refreshes of the same token must elect a single winner: the
// rotation is a compare-and-swap in the store, so every losing goroutine
// observes the token as already spent.
func TestConcurrentRefreshSingleWinner(t *testing.T) {
	engine, _, done := buildTestEngine(t, engineTestConfig(t))
	defer done()

	pair := registerTestUser(t, engine, "alice", "alice@example.com", "correct-horse")

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

			_, err := engine.Refresh(context.Background(), pair.RefreshToken)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners++
				return
			}
			failures = append(failures, err)
		}()
	}
	close(start)
	wg.Wait()

	if winners != 1 {
		t.Fatalf("expected exactly one successful rotation, got %d", winners)
	}
	for _, err := range failures {
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("loser saw unexpected error: %v", err)
		}
	}
}
