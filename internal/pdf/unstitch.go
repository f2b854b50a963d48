package pdf

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yourusername/pdf-tailor/internal/storage"
	"github.com/yourusername/pdf-tailor/internal/tailor"
)

const (
	unstitchedFilename = "unstitched.zip"
	pagesDirname       = "pages"
	fallbackBaseName   = "page"
)

type unstitchState struct {
	ws       storage.Workspace
	file     storedFile
	template string
}

// UnstitchMultipart は1つのPDFをページごとのPDFに分解し、zip にまとめて返します。
func (s *Service) UnstitchMultipart(ctx context.Context, file *multipart.FileHeader, template string) (_ *Result, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	state, _, err := s.prepareUnstitch(ctx, file, template)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = s.removeWorkspace(state.ws)
		}
	}()

	return s.executeUnstitch(ctx, state, nil)
}

// PrepareUnstitchJob は非同期ジョブ用に入力を保存します。
func (s *Service) PrepareUnstitchJob(ctx context.Context, file *multipart.FileHeader, template string) (*JobManifest, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	_, manifest, err := s.prepareUnstitch(ctx, file, template)
	if err != nil {
		return nil, err
	}
	return manifest, nil
}

func (s *Service) prepareUnstitch(ctx context.Context, file *multipart.FileHeader, template string) (*unstitchState, *JobManifest, error) {
	if file == nil {
		return nil, nil, newError(CodeInvalidInput, "PDFファイルを選択してください。", nil)
	}
	template = strings.TrimSpace(template)
	if template != "" {
		if err := checkTemplateName(template); err != nil {
			return nil, nil, err
		}
	}

	ws, err := s.createWorkspace()
	if err != nil {
		return nil, nil, err
	}
	stored, err := s.storeMultipartFile(ctx, file, ws.InDir, 0)
	if err != nil {
		_ = s.removeWorkspace(ws)
		return nil, nil, err
	}

	if template == "" {
		template = defaultTemplate(stored.originalName)
	}

	manifest := &JobManifest{
		JobID:     ws.JobID,
		Operation: OperationUnstitch,
		Files:     toJobFiles([]storedFile{stored}),
		Template:  template,
		CreatedAt: s.now().UTC(),
	}
	if err := writeManifest(ws.Dir, manifest); err != nil {
		_ = s.removeWorkspace(ws)
		return nil, nil, fmt.Errorf("ジョブマニフェストの保存に失敗しました: %w", err)
	}

	return &unstitchState{ws: ws, file: stored, template: template}, manifest, nil
}

// checkTemplateName はディレクトリを含まない出力名であることを確認します。
func checkTemplateName(template string) error {
	if strings.ContainsAny(template, `/\`) || template == "." || template == ".." {
		return newError(CodeInvalidInput, "出力ファイル名にディレクトリは指定できません。", nil)
	}
	return translateError(tailor.ValidateTemplate(template), template)
}

// defaultTemplate はアップロード時のファイル名を基準名にします。使えない名前なら "page" にします。
func defaultTemplate(originalName string) string {
	if originalName == "" || strings.ContainsAny(originalName, `/\`) || tailor.ValidateTemplate(originalName) != nil {
		return fallbackBaseName
	}
	return originalName
}

func (s *Service) executeUnstitch(ctx context.Context, state *unstitchState, progress ProgressReporter) (*Result, error) {
	ws := state.ws
	stored := state.file

	pagesDir := filepath.Join(ws.OutDir, pagesDirname)
	if err := os.MkdirAll(pagesDir, 0o750); err != nil {
		return nil, fmt.Errorf("出力ディレクトリの作成に失敗しました: %w", err)
	}

	reportProgress(progress, "load", 20)

	report, err := s.unstitcher.Unstitch(ctx, tailor.UnstitchRequest{
		Input:    stored.path,
		Template: state.template,
		Dir:      pagesDir,
		Progress: processProgress(progress, 20, 80),
	})
	if err != nil {
		if report != nil && len(report.Outputs) > 0 {
			s.logger.Printf("unstitch job %s stopped after %d of %d pages: %v", ws.JobID, len(report.Outputs), report.Pages, err)
		}
		return nil, translateError(err, stored.originalName)
	}

	parts := make([]UnstitchPart, 0, len(report.Outputs))
	for i, path := range report.Outputs {
		info, statErr := os.Stat(path)
		if statErr != nil {
			return nil, fmt.Errorf("ページファイルの確認に失敗しました: %w", statErr)
		}
		parts = append(parts, UnstitchPart{
			Filename: filepath.Base(path),
			Page:     i + 1,
			Size:     info.Size(),
		})
	}

	outputPath := filepath.Join(ws.OutDir, unstitchedFilename)
	if err := createZip(outputPath, report.Outputs); err != nil {
		return nil, err
	}
	reportProgress(progress, "write", 90)

	outInfo, err := os.Stat(outputPath)
	if err != nil {
		return nil, fmt.Errorf("zipファイルの確認に失敗しました: %w", err)
	}

	source := stored.meta()
	meta := struct {
		Type      OperationType  `json:"type"`
		CreatedAt string         `json:"createdAt"`
		Source    SourceFileMeta `json:"source"`
		Template  string         `json:"template"`
		Parts     []UnstitchPart `json:"parts"`
	}{
		Type:      OperationUnstitch,
		CreatedAt: s.now().UTC().Format(time.RFC3339),
		Source:    source,
		Template:  state.template,
		Parts:     parts,
	}
	if err := writeJSON(filepath.Join(ws.Dir, metaFilename), meta); err != nil {
		return nil, fmt.Errorf("メタデータの保存に失敗しました: %w", err)
	}

	s.expireWorkspace(ws.JobID)
	reportProgress(progress, "completed", 100)

	return &Result{
		JobID:          ws.JobID,
		Operation:      OperationUnstitch,
		OutputPath:     outputPath,
		OutputFilename: unstitchedFilename,
		OutputSize:     outInfo.Size(),
		ResultKind:     ResultKindZIP,
		Meta: &UnstitchMeta{
			Original: source,
			Template: state.template,
			Parts:    parts,
		},
		cleanup: func() error { return s.removeWorkspace(ws) },
	}, nil
}

// createZip は files を渡された順序のまま zip に格納します。
func createZip(outputPath string, files []string) (err error) {
	outFile, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("zipファイルの作成に失敗しました: %w", err)
	}
	defer func() {
		if cerr := outFile.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("zipファイルのクローズに失敗しました: %w", cerr)
		}
	}()

	zipWriter := zip.NewWriter(outFile)
	for _, path := range files {
		if err := addZipEntry(zipWriter, path); err != nil {
			_ = zipWriter.Close()
			return err
		}
	}
	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("zipの書き込みに失敗しました: %w", err)
	}
	return nil
}

func addZipEntry(zw *zip.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("zip入力ファイルのオープンに失敗しました: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("zip入力ファイルの情報取得に失敗しました: %w", err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("zipヘッダーの生成に失敗しました: %w", err)
	}
	header.Name = filepath.Base(path)
	header.Method = zip.Deflate

	writer, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("zipヘッダーの書き込みに失敗しました: %w", err)
	}
	if _, err := io.Copy(writer, file); err != nil {
		return fmt.Errorf("zipへの書き込みに失敗しました: %w", err)
	}
	return nil
}
