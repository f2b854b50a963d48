// Package jobs は asynq と Redis を使った stitch / unstitch の非同期実行を提供します。
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/yourusername/pdf-tailor/internal/config"
	"github.com/yourusername/pdf-tailor/internal/pdf"
)

const (
	taskTypePDF = "pdf:tailor"
	queueName   = "pdf"
)

// Manager はジョブの投入と状態管理を担います。
type Manager struct {
	cfg    *config.Config
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
	store  *Store
	runner pdf.JobRunner
	logger *log.Logger
}

// TaskPayload はPDF操作ジョブのペイロードです。
type TaskPayload struct {
	JobID     string            `json:"jobId"`
	Operation pdf.OperationType `json:"operation"`
}

func (p *TaskPayload) validate() error {
	if p == nil {
		return errors.New("payload is nil")
	}
	if p.JobID == "" {
		return errors.New("payload.JobID is required")
	}
	switch p.Operation {
	case pdf.OperationStitch, pdf.OperationUnstitch:
		return nil
	default:
		return fmt.Errorf("unsupported operation: %q", p.Operation)
	}
}

// NewManager は Manager を初期化します。
func NewManager(cfg *config.Config, runner pdf.JobRunner, store *Store, logger *log.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if runner == nil {
		return nil, errors.New("job runner is nil")
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	opt, err := asynq.ParseRedisURI(cfg.QueueRedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	concurrency := cfg.QueueConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	client := asynq.NewClient(opt)
	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				queueName: 1,
			},
			Logger: asynqLogger{logger},
		},
	)

	mux := asynq.NewServeMux()
	manager := &Manager{
		cfg:    cfg,
		client: client,
		server: server,
		mux:    mux,
		store:  store,
		runner: runner,
		logger: logger,
	}
	mux.HandleFunc(taskTypePDF, manager.handlePDFTask)
	return manager, nil
}

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() {
	go func() {
		if err := m.server.Run(m.mux); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
			m.logger.Printf("asynq server stopped with error: %v", err)
		}
	}()
}

// Shutdown はサーバーとクライアントを閉じます。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.server.Shutdown()
	return m.client.Close()
}

// Schedule は pdf.JobScheduler を満たします。
func (m *Manager) Schedule(ctx context.Context, op pdf.OperationType, jobID string) error {
	_, err := m.Enqueue(ctx, &TaskPayload{JobID: jobID, Operation: op})
	return err
}

// Enqueue はジョブをキューに投入します。
func (m *Manager) Enqueue(ctx context.Context, payload *TaskPayload) (string, error) {
	if err := payload.validate(); err != nil {
		return "", err
	}

	record := &Record{
		JobID:     payload.JobID,
		Operation: string(payload.Operation),
		Status:    StatusQueued,
		Progress: ProgressInfo{
			Percent: 0,
			Stage:   "queued",
		},
	}
	if err := m.store.Upsert(ctx, record); err != nil {
		return "", err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	// 失敗したジョブは作業ディレクトリが削除済みなので再試行しない
	task := asynq.NewTask(taskTypePDF, body, asynq.Queue(queueName), asynq.MaxRetry(0), asynq.Timeout(m.jobTimeout()))
	info, err := m.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", err
	}
	m.logger.Printf("enqueued %s job %s (task %s)", payload.Operation, payload.JobID, info.ID)
	return info.ID, nil
}

// GetRecord はジョブ情報を取得します。
func (m *Manager) GetRecord(ctx context.Context, jobID string) (*Record, error) {
	return m.store.Get(ctx, jobID)
}

func (m *Manager) jobTimeout() time.Duration {
	minutes := m.cfg.JobExpireMinutes
	if minutes <= 0 {
		minutes = 10
	}
	return time.Duration(minutes) * time.Minute
}

// asynqLogger は asynq のログを標準ロガーに流します。
type asynqLogger struct {
	l *log.Logger
}

func (a asynqLogger) Debug(args ...any) {}
func (a asynqLogger) Info(args ...any)  { a.l.Print(append([]any{"asynq: "}, args...)...) }
func (a asynqLogger) Warn(args ...any)  { a.l.Print(append([]any{"asynq warn: "}, args...)...) }
func (a asynqLogger) Error(args ...any) { a.l.Print(append([]any{"asynq error: "}, args...)...) }
func (a asynqLogger) Fatal(args ...any) { a.l.Fatal(append([]any{"asynq fatal: "}, args...)...) }
