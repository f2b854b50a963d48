package pdf

import (
	"context"
	"fmt"
)

// RunJob はジョブIDに対応するPDF処理を実行します。失敗した場合は作業ディレクトリを削除します。
func (s *Service) RunJob(ctx context.Context, jobID string, reporter ProgressReporter) (*Result, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID is required")
	}
	ws, err := s.workspaceFor(jobID)
	if err != nil {
		return nil, err
	}
	manifest, err := loadManifest(ws.Dir)
	if err != nil {
		_ = s.removeWorkspace(ws)
		return nil, err
	}

	stored := storedFilesFromManifest(ws.InDir, manifest)
	if len(stored) == 0 {
		_ = s.removeWorkspace(ws)
		return nil, fmt.Errorf("manifest has no input files")
	}

	var (
		result *Result
		runErr error
	)

	switch manifest.Operation {
	case OperationStitch:
		result, runErr = s.executeStitch(ctx, &stitchState{ws: ws, storedFiles: stored}, reporter)
	case OperationUnstitch:
		template := manifest.Template
		if template == "" {
			template = defaultTemplate(stored[0].originalName)
		}
		result, runErr = s.executeUnstitch(ctx, &unstitchState{ws: ws, file: stored[0], template: template}, reporter)
	default:
		_ = s.removeWorkspace(ws)
		return nil, fmt.Errorf("unsupported operation: %q", manifest.Operation)
	}

	if runErr != nil {
		if cleanupErr := s.removeWorkspace(ws); cleanupErr != nil {
			runErr = fmt.Errorf("%w (ワークスペースの削除にも失敗しました: %v)", runErr, cleanupErr)
		}
		return nil, runErr
	}

	return result, nil
}
