package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hibiken/asynq"

	"github.com/yourusername/pdf-tailor/internal/config"
	"github.com/yourusername/pdf-tailor/internal/pdf"
	"github.com/yourusername/pdf-tailor/internal/tailor"
)

type stubRunner struct {
	run func(ctx context.Context, jobID string, reporter pdf.ProgressReporter) (*pdf.Result, error)
}

func (r *stubRunner) RunJob(ctx context.Context, jobID string, reporter pdf.ProgressReporter) (*pdf.Result, error) {
	return r.run(ctx, jobID, reporter)
}

func (r *stubRunner) DiscardJob(string) error { return nil }

func newTestManager(t *testing.T, runner pdf.JobRunner) (*Manager, *Store) {
	t.Helper()
	store, _ := newTestStore(t)
	return &Manager{
		cfg:    &config.Config{},
		store:  store,
		runner: runner,
		logger: log.New(io.Discard, "", 0),
	}, store
}

func pdfTask(t *testing.T, payload TaskPayload) *asynq.Task {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	return asynq.NewTask(taskTypePDF, body)
}

func TestHandlePDFTaskRecordsProgressAndResult(t *testing.T) {
	var seen []ProgressInfo
	var m *Manager
	runner := &stubRunner{run: func(ctx context.Context, jobID string, reporter pdf.ProgressReporter) (*pdf.Result, error) {
		for _, p := range []ProgressInfo{{Stage: "load", Percent: 20}, {Stage: "load", Percent: 20}, {Stage: "process", Percent: 50}} {
			reporter(p.Stage, p.Percent)
			record, err := m.store.Get(ctx, jobID)
			if err != nil || record == nil {
				t.Fatalf("Get during run: record=%v err=%v", record, err)
			}
			if record.Status != StatusRunning {
				t.Fatalf("status during run = %s", record.Status)
			}
			seen = append(seen, record.Progress)
		}
		return &pdf.Result{JobID: jobID, OutputFilename: "stitched.pdf", Meta: map[string]any{"totalPages": float64(2)}}, nil
	}}
	m, store := newTestManager(t, runner)

	if err := m.handlePDFTask(context.Background(), pdfTask(t, TaskPayload{JobID: "job-1", Operation: pdf.OperationStitch})); err != nil {
		t.Fatalf("handlePDFTask returned error: %v", err)
	}

	wantSeen := []ProgressInfo{{Stage: "load", Percent: 20}, {Stage: "load", Percent: 20}, {Stage: "process", Percent: 50}}
	if diff := cmp.Diff(wantSeen, seen); diff != "" {
		t.Fatalf("progress mismatch (-want +got):\n%s", diff)
	}

	record := mustGet(t, store, "job-1")
	if record.Status != StatusSucceeded || record.DownloadURL != "/api/jobs/job-1/download" || record.Operation != "stitch" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if diff := cmp.Diff(map[string]any{"totalPages": float64(2)}, record.Meta); diff != "" {
		t.Fatalf("meta mismatch (-want +got):\n%s", diff)
	}
}

func TestHandlePDFTaskRecordsFailure(t *testing.T) {
	runner := &stubRunner{run: func(context.Context, string, pdf.ProgressReporter) (*pdf.Result, error) {
		return nil, &pdf.Error{Code: pdf.CodeEncryptedPDF, Message: "暗号化されています", Err: tailor.ErrEncrypted}
	}}
	m, store := newTestManager(t, runner)

	if err := m.handlePDFTask(context.Background(), pdfTask(t, TaskPayload{JobID: "job-2", Operation: pdf.OperationUnstitch})); err != nil {
		t.Fatalf("handlePDFTask returned error: %v", err)
	}

	record := mustGet(t, store, "job-2")
	if record.Status != StatusFailed {
		t.Fatalf("status = %s", record.Status)
	}
	if diff := cmp.Diff(&ErrorInfo{Code: pdf.CodeEncryptedPDF, Message: "暗号化されています"}, record.Error); diff != "" {
		t.Fatalf("error info mismatch (-want +got):\n%s", diff)
	}
}

func TestHandlePDFTaskSkipsRetryForBadPayload(t *testing.T) {
	runner := &stubRunner{run: func(context.Context, string, pdf.ProgressReporter) (*pdf.Result, error) {
		t.Fatal("runner must not be called")
		return nil, nil
	}}
	m, _ := newTestManager(t, runner)

	tasks := []*asynq.Task{
		asynq.NewTask(taskTypePDF, []byte("{")),
		pdfTask(t, TaskPayload{JobID: "job-3", Operation: "merge"}),
	}
	for _, task := range tasks {
		if err := m.handlePDFTask(context.Background(), task); !errors.Is(err, asynq.SkipRetry) {
			t.Fatalf("payload %q: expected SkipRetry, got %v", task.Payload(), err)
		}
	}
}
