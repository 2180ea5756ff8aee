package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/queuectl/internal/clock"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(context.Background(), filepath.Join(dir, "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newJob(id string) Job {
	now := clock.Format(clock.Now())
	return Job{
		ID:          id,
		Command:     "true",
		State:       StatePending,
		MaxRetries:  3,
		CreatedAt:   now,
		UpdatedAt:   now,
		AvailableAt: now,
	}
}

func TestInsertAndGetJob(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertJob(ctx, newJob("j1")))

	got, found, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "j1", got.ID)
	assert.Equal(t, StatePending, got.State)
}

func TestInsertJobDuplicateID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertJob(ctx, newJob("dup")))
	err := s.InsertJob(ctx, newJob("dup"))
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestClaimNextFIFOAndExclusivity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.InsertJob(ctx, newJob(id)))
		time.Sleep(time.Millisecond)
	}

	job, found, err := s.ClaimNext(ctx, clock.Now())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "a", job.ID)
	assert.Equal(t, StateProcessing, job.State)

	again, found, err := s.GetJob(ctx, "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StateProcessing, again.State)
	require.NotNil(t, again.ProcessingStartedAt)
}

func TestClaimNextEmptyQueueDoesNotMutate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, found, err := s.ClaimNext(ctx, clock.Now())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClaimNextRespectsAvailableAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	j := newJob("future")
	j.State = StateFailed
	j.AvailableAt = clock.Format(clock.Now().Add(time.Hour))
	require.NoError(t, s.InsertJob(ctx, j))

	_, found, err := s.ClaimNext(ctx, clock.Now())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMarkCompleted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertJob(ctx, newJob("j1")))
	_, _, err := s.ClaimNext(ctx, clock.Now())
	require.NoError(t, err)

	require.NoError(t, s.MarkCompleted(ctx, "j1", 1, clock.Now()))

	got, _, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, got.State)
	assert.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.CompletedAt)
}

func TestMarkFailedRetryableSetsBackoffAvailability(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	j := newJob("j1")
	j.MaxRetries = 3
	require.NoError(t, s.InsertJob(ctx, j))
	_, _, err := s.ClaimNext(ctx, clock.Now())
	require.NoError(t, err)

	now := clock.Now()
	require.NoError(t, s.MarkFailed(ctx, "j1", 1, 3, "boom", now, 4))

	got, _, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, got.State)
	assert.Equal(t, 1, got.Attempts)
	require.Equal(t, "boom", *got.LastError)

	avail, err := clock.Parse(got.AvailableAt)
	require.NoError(t, err)
	// Stored timestamps carry microsecond precision, so compare at that
	// precision.
	assert.True(t, !avail.Before(now.Add(4*time.Second).Truncate(time.Microsecond)))
}

func TestMarkFailedExhaustedGoesDead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	j := newJob("j1")
	j.MaxRetries = 1
	require.NoError(t, s.InsertJob(ctx, j))

	require.NoError(t, s.MarkFailed(ctx, "j1", 2, 1, "still broken", clock.Now(), 0))

	got, _, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, StateDead, got.State)
	assert.Equal(t, 2, got.Attempts)
}

func TestMarkFailedTruncatesLastError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertJob(ctx, newJob("j1")))

	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	require.NoError(t, s.MarkFailed(ctx, "j1", 1, 3, string(long), clock.Now(), 1))

	got, _, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(*got.LastError), lastErrorMaxLen)
	assert.Contains(t, *got.LastError, "...[truncated]")
}

func TestResetJobIsIdempotentFromDead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	j := newJob("j1")
	j.MaxRetries = 0
	require.NoError(t, s.InsertJob(ctx, j))
	require.NoError(t, s.MarkFailed(ctx, "j1", 1, 0, "bad", clock.Now(), 0))

	require.NoError(t, s.ResetJob(ctx, "j1", clock.Now()))
	got, _, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, StatePending, got.State)
	assert.Equal(t, 0, got.Attempts)
	require.NotNil(t, got.LastError, "reset retains last_error for diagnostics")

	require.NoError(t, s.ResetJob(ctx, "j1", clock.Now()))
	got, _, err = s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, StatePending, got.State)
}

func TestDeleteJobIsNoOpWhenAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.DeleteJob(ctx, "never-existed"))

	require.NoError(t, s.InsertJob(ctx, newJob("j1")))
	require.NoError(t, s.DeleteJob(ctx, "j1"))
	_, found, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.DeleteJob(ctx, "j1"))
}

// TestClaimNextConcurrentStoresClaimEachJobOnce opens two independent
// Store handles on the same database file, standing in for two worker
// processes, and checks that concurrent claimants never hand out the same
// job twice.
func TestClaimNextConcurrentStoresClaimEachJobOnce(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "queue.db")
	ctx := context.Background()

	s1, err := Open(ctx, dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s1.Close() })
	s2, err := Open(ctx, dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s2.Close() })

	const jobCount = 10
	for i := 0; i < jobCount; i++ {
		require.NoError(t, s1.InsertJob(ctx, newJob(fmt.Sprintf("job-%02d", i))))
	}

	var mu sync.Mutex
	claimed := make(map[string]int)

	errCh := make(chan error, 2)
	var wg sync.WaitGroup
	for _, s := range []*Store{s1, s2} {
		wg.Add(1)
		go func(s *Store) {
			defer wg.Done()
			for {
				job, found, err := s.ClaimNext(ctx, clock.Now())
				if err != nil {
					errCh <- err
					return
				}
				if !found {
					return
				}
				mu.Lock()
				claimed[job.ID]++
				mu.Unlock()
			}
		}(s)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	assert.Len(t, claimed, jobCount)
	for id, n := range claimed {
		assert.Equal(t, 1, n, "job %s claimed more than once", id)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetConfig(ctx, "backoff_base", "3"))
	v, found, err := s.GetConfig(ctx, "backoff_base")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "3", v)

	entries, err := s.ListConfig(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestEnsureConfigDefaultDoesNotOverwrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetConfig(ctx, "backoff_base", "5"))
	require.NoError(t, s.EnsureConfigDefault(ctx, "backoff_base", "2"))

	v, _, err := s.GetConfig(ctx, "backoff_base")
	require.NoError(t, err)
	assert.Equal(t, "5", v)
}

func TestCountByState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertJob(ctx, newJob("a")))
	require.NoError(t, s.InsertJob(ctx, newJob("b")))
	_, _, err := s.ClaimNext(ctx, clock.Now())
	require.NoError(t, err)

	counts, err := s.CountByState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[StatePending])
	assert.Equal(t, 1, counts[StateProcessing])
}
