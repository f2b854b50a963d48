package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
)

var testNow = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := NewStore(rdb, 30*time.Minute)
	store.now = func() time.Time { return testNow }
	return store, mr
}

func mustGet(t *testing.T, store *Store, jobID string) *Record {
	t.Helper()
	record, err := store.Get(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if record == nil {
		t.Fatalf("job %s not found", jobID)
	}
	return record
}

func TestStoreLifecycle(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, &Record{JobID: "job-1", Operation: "stitch", Status: StatusQueued}); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if err := store.UpdateProgress(ctx, "job-1", ProgressInfo{Stage: "process", Percent: 40}); err != nil {
		t.Fatalf("UpdateProgress returned error: %v", err)
	}
	if got := mustGet(t, store, "job-1").Progress; got != (ProgressInfo{Stage: "process", Percent: 40}) {
		t.Fatalf("progress = %+v", got)
	}

	meta := map[string]any{"totalPages": float64(3)}
	if err := store.MarkDone(ctx, "job-1", "/api/jobs/job-1/download", meta); err != nil {
		t.Fatalf("MarkDone returned error: %v", err)
	}

	want := &Record{
		JobID:       "job-1",
		Operation:   "stitch",
		Status:      StatusSucceeded,
		Progress:    ProgressInfo{Stage: "completed", Percent: 100},
		DownloadURL: "/api/jobs/job-1/download",
		Meta:        meta,
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
		ExpiresAt:   testNow.Add(30 * time.Minute),
	}
	if diff := cmp.Diff(want, mustGet(t, store, "job-1")); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
	if ttl := mr.TTL(jobKey("job-1")); ttl != 30*time.Minute {
		t.Fatalf("ttl = %v, want 30m", ttl)
	}
}

func TestStoreMarkFailed(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, &Record{JobID: "job-2", Status: StatusRunning}); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	info := &ErrorInfo{Code: "ENCRYPTED_PDF", Message: "locked"}
	if err := store.MarkFailed(ctx, "job-2", info); err != nil {
		t.Fatalf("MarkFailed returned error: %v", err)
	}

	record := mustGet(t, store, "job-2")
	if record.Status != StatusFailed {
		t.Fatalf("status = %s", record.Status)
	}
	if diff := cmp.Diff(info, record.Error); diff != "" {
		t.Fatalf("error info mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreUpdateMissingJob(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.UpdateProgress(context.Background(), "missing", ProgressInfo{Percent: 10})
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	record, err := store.Get(context.Background(), "missing")
	if err != nil || record != nil {
		t.Fatalf("update must not create a record: record=%+v err=%v", record, err)
	}
}

func TestStoreUpdateRetriesAfterConcurrentWrite(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, &Record{JobID: "job-3", Status: StatusRunning}); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	calls := 0
	err := store.updatePartial(ctx, "job-3", func(record *Record) {
		calls++
		if calls == 1 {
			// 読み込み後、EXEC 前に別の書き込みが入る
			if err := store.UpdateProgress(ctx, "job-3", ProgressInfo{Stage: "process", Percent: 50}); err != nil {
				t.Errorf("concurrent UpdateProgress returned error: %v", err)
			}
		}
		record.DownloadURL = "/api/jobs/job-3/download"
	})
	if err != nil {
		t.Fatalf("updatePartial returned error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("mutate called %d times, want 2", calls)
	}

	record := mustGet(t, store, "job-3")
	if record.Progress.Percent != 50 || record.DownloadURL != "/api/jobs/job-3/download" {
		t.Fatalf("both writes must survive, got %+v", record)
	}
}

func TestStoreUpdateGivesUpUnderContention(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, &Record{JobID: "job-4", Status: StatusRunning}); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	calls := 0
	err := store.updatePartial(ctx, "job-4", func(record *Record) {
		calls++
		if err := store.UpdateProgress(ctx, "job-4", ProgressInfo{Percent: calls}); err != nil {
			t.Errorf("concurrent UpdateProgress returned error: %v", err)
		}
		record.Status = StatusSucceeded
	})
	if err == nil {
		t.Fatal("expected an error after repeated conflicts")
	}
	if calls != maxUpdateRetries {
		t.Fatalf("mutate called %d times, want %d", calls, maxUpdateRetries)
	}
	if got := mustGet(t, store, "job-4").Status; got != StatusRunning {
		t.Fatalf("status = %s, conflicting update must not be applied", got)
	}
}
