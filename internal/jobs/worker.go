package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/yourusername/pdf-tailor/internal/pdf"
)

func (m *Manager) handlePDFTask(ctx context.Context, task *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if err := payload.validate(); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	if err := m.store.Upsert(ctx, &Record{
		JobID:     payload.JobID,
		Operation: string(payload.Operation),
		Status:    StatusRunning,
		Progress: ProgressInfo{
			Percent: 0,
			Stage:   "load",
		},
	}); err != nil {
		return err
	}

	m.logger.Printf("running %s job %s", payload.Operation, payload.JobID)
	result, err := m.runner.RunJob(ctx, payload.JobID, m.progressReporter(ctx, payload.JobID))
	if err != nil {
		m.logger.Printf("%s job %s failed: %v", payload.Operation, payload.JobID, err)
		return m.failJob(ctx, payload.JobID, err)
	}
	return m.finishJob(ctx, payload.JobID, result)
}

// progressReporter は同じ段階・同じ割合の更新を間引いて Redis に保存します。
func (m *Manager) progressReporter(ctx context.Context, jobID string) pdf.ProgressReporter {
	last := ProgressInfo{Percent: -1}
	return func(stage string, percent int) {
		next := ProgressInfo{Stage: stage, Percent: percent}
		if next == last {
			return
		}
		last = next
		if err := m.store.UpdateProgress(ctx, jobID, next); err != nil {
			m.logger.Printf("failed to update progress job=%s: %v", jobID, err)
		}
	}
}

func (m *Manager) finishJob(ctx context.Context, jobID string, result *pdf.Result) error {
	if result == nil {
		return fmt.Errorf("result is nil")
	}
	return m.store.MarkDone(ctx, jobID, m.buildDownloadURL(result), result.Meta)
}

func (m *Manager) failJob(ctx context.Context, jobID string, err error) error {
	return m.store.MarkFailed(ctx, jobID, errorInfo(err))
}

func errorInfo(err error) *ErrorInfo {
	var apiErr *pdf.Error
	switch {
	case errors.As(err, &apiErr):
		return &ErrorInfo{Code: apiErr.Code, Message: apiErr.Message}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &ErrorInfo{Code: "JOB_CANCELED", Message: "ジョブが中断されました。"}
	default:
		return &ErrorInfo{Code: "INTERNAL_ERROR", Message: err.Error()}
	}
}

func (m *Manager) buildDownloadURL(result *pdf.Result) string {
	base := m.cfg.JobResultBaseURL
	if base == "" {
		return fmt.Sprintf("/api/jobs/%s/download", result.JobID)
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(base, "/"), result.JobID, url.PathEscape(result.OutputFilename))
}
