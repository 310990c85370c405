package pending

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testJob(id string, expiresAt time.Time) Job {
	return Job{
		JobID:          id,
		ConversationID: "15550001111",
		Intent:         IntentTranscribeThenReply,
		SourceEventID:  "wamid." + id,
		CreatedAt:      time.Now().UTC(),
		ExpiresAt:      expiresAt,
	}
}

func TestMemoryStorePutRejectsDuplicates(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ctx := context.Background()
	expires := time.Now().Add(time.Minute)

	if err := store.Put(ctx, testJob("job-1", expires)); err != nil {
		t.Fatalf("first put: %v", err)
	}
	err := store.Put(ctx, testJob("job-1", expires))
	if !errors.Is(err, ErrDuplicateJob) {
		t.Fatalf("want ErrDuplicateJob got %v", err)
	}
}

func TestMemoryStorePutValidation(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Put(ctx, testJob("", time.Now().Add(time.Minute))); err == nil {
		t.Fatal("want error for empty job id")
	}
	if err := store.Put(ctx, testJob("job-1", time.Time{})); err == nil {
		t.Fatal("want error for zero expiry")
	}
}

func TestMemoryStoreTakeAndDelete(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ctx := context.Background()
	want := testJob("job-1", time.Now().Add(time.Minute))
	if err := store.Put(ctx, want); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.TakeAndDelete(ctx, "job-1")
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if got.JobID != want.JobID || got.ConversationID != want.ConversationID || got.Intent != want.Intent {
		t.Fatalf("got %+v want %+v", got, want)
	}

	_, err = store.TakeAndDelete(ctx, "job-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("second take: want ErrNotFound got %v", err)
	}
}

// Concurrent callbacks for the same job id must yield the entry exactly once.
func TestMemoryStoreTakeAndDeleteAtMostOnce(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Put(ctx, testJob("job-1", time.Now().Add(time.Minute))); err != nil {
		t.Fatalf("put: %v", err)
	}

	const callers = 32
	var wins atomic.Int32
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			if _, err := store.TakeAndDelete(ctx, "job-1"); err == nil {
				wins.Add(1)
			} else if !errors.Is(err, ErrNotFound) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("want exactly one winner, got %d", wins.Load())
	}
}

func TestMemoryStoreExpireBefore(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.Put(ctx, testJob("old-1", now.Add(-2*time.Minute))); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, testJob("old-2", now.Add(-time.Minute))); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, testJob("fresh", now.Add(time.Hour))); err != nil {
		t.Fatalf("put: %v", err)
	}

	expired, err := store.ExpireBefore(ctx, now)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if len(expired) != 2 {
		t.Fatalf("want 2 expired got %d", len(expired))
	}
	if expired[0].JobID != "old-1" || expired[1].JobID != "old-2" {
		t.Fatalf("want oldest first, got %s then %s", expired[0].JobID, expired[1].JobID)
	}

	// The fresh entry survives and is still takeable.
	if _, err := store.TakeAndDelete(ctx, "fresh"); err != nil {
		t.Fatalf("fresh entry purged early: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("want empty store, have %d", store.Len())
	}
}
