package pdf

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"time"

	"github.com/yourusername/pdf-tailor/internal/storage"
	"github.com/yourusername/pdf-tailor/internal/tailor"
)

const stitchedFilename = "stitched.pdf"

type stitchState struct {
	ws          storage.Workspace
	storedFiles []storedFile
}

// StitchMultipart はアップロード順にPDFを連結し、結果を同期で返します。
func (s *Service) StitchMultipart(ctx context.Context, files []*multipart.FileHeader) (_ *Result, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	state, _, err := s.prepareStitch(ctx, files)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = s.removeWorkspace(state.ws)
		}
	}()

	return s.executeStitch(ctx, state, nil)
}

// PrepareStitchJob はアップロード順に入力を保存し、ジョブマニフェストを作成します。
func (s *Service) PrepareStitchJob(ctx context.Context, files []*multipart.FileHeader) (*JobManifest, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	_, manifest, err := s.prepareStitch(ctx, files)
	if err != nil {
		return nil, err
	}
	return manifest, nil
}

func (s *Service) prepareStitch(ctx context.Context, files []*multipart.FileHeader) (*stitchState, *JobManifest, error) {
	if len(files) == 0 {
		return nil, nil, newError(CodeInvalidInput, "PDFファイルを1つ以上選択してください。", nil)
	}
	if len(files) > s.cfg.MaxFiles {
		return nil, nil, newError(CodeLimitExceeded, fmt.Sprintf("一度に連結できるファイルは%d件までです。", s.cfg.MaxFiles), nil)
	}

	ws, err := s.createWorkspace()
	if err != nil {
		return nil, nil, err
	}

	stored := make([]storedFile, 0, len(files))
	for i, file := range files {
		sf, err := s.storeMultipartFile(ctx, file, ws.InDir, i)
		if err != nil {
			_ = s.removeWorkspace(ws)
			return nil, nil, err
		}
		stored = append(stored, sf)
	}

	manifest := &JobManifest{
		JobID:     ws.JobID,
		Operation: OperationStitch,
		Files:     toJobFiles(stored),
		CreatedAt: s.now().UTC(),
	}
	if err := writeManifest(ws.Dir, manifest); err != nil {
		_ = s.removeWorkspace(ws)
		return nil, nil, fmt.Errorf("ジョブマニフェストの保存に失敗しました: %w", err)
	}

	return &stitchState{ws: ws, storedFiles: stored}, manifest, nil
}

func (s *Service) executeStitch(ctx context.Context, state *stitchState, progress ProgressReporter) (*Result, error) {
	ws := state.ws
	inputs := make([]string, len(state.storedFiles))
	for i, sf := range state.storedFiles {
		inputs[i] = sf.path
	}

	reportProgress(progress, "load", 20)

	outputPath := filepath.Join(ws.OutDir, stitchedFilename)
	report, err := s.stitcher.Stitch(ctx, tailor.StitchRequest{
		Inputs:   inputs,
		Output:   outputPath,
		Progress: processProgress(progress, 20, 80),
	})
	if err != nil {
		return nil, translateError(err, failingSourceName(err, state.storedFiles))
	}
	reportProgress(progress, "write", 90)

	outInfo, err := os.Stat(outputPath)
	if err != nil {
		return nil, fmt.Errorf("出力ファイルの確認に失敗しました: %w", err)
	}

	sources := sourceMetas(state.storedFiles)
	meta := struct {
		Type       OperationType    `json:"type"`
		CreatedAt  string           `json:"createdAt"`
		Sources    []SourceFileMeta `json:"sources"`
		TotalPages int              `json:"totalPages"`
		Output     string           `json:"output"`
	}{
		Type:       OperationStitch,
		CreatedAt:  s.now().UTC().Format(time.RFC3339),
		Sources:    sources,
		TotalPages: report.Pages,
		Output:     stitchedFilename,
	}
	if err := writeJSON(filepath.Join(ws.Dir, metaFilename), meta); err != nil {
		return nil, fmt.Errorf("メタデータの保存に失敗しました: %w", err)
	}

	s.expireWorkspace(ws.JobID)
	reportProgress(progress, "completed", 100)

	return &Result{
		JobID:          ws.JobID,
		Operation:      OperationStitch,
		OutputPath:     outputPath,
		OutputFilename: stitchedFilename,
		OutputSize:     outInfo.Size(),
		ResultKind:     ResultKindPDF,
		Meta: &StitchMeta{
			TotalPages: report.Pages,
			Sources:    sources,
		},
		cleanup: func() error { return s.removeWorkspace(ws) },
	}, nil
}

// failingSourceName はエラーが指すファイルのアップロード時の名前を返します。
func failingSourceName(err error, stored []storedFile) string {
	var pathErr *tailor.PathError
	if errors.As(err, &pathErr) {
		for _, sf := range stored {
			if sf.path == pathErr.Path {
				return sf.originalName
			}
		}
	}
	return "PDF"
}
