package pdf

import (
	"context"
	"mime/multipart"
)

// InspectResult はアップロードされたPDFの基本メタデータを表します。
type InspectResult struct {
	Source SourceFileMeta `json:"source"`
}

// InspectMultipart は単一PDFファイルを受け取り、ページ数などのメタデータを返します。
func (s *Service) InspectMultipart(ctx context.Context, file *multipart.FileHeader) (*InspectResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if file == nil {
		return nil, newError(CodeInvalidInput, "PDFファイルを選択してください。", nil)
	}

	ws, err := s.createWorkspace()
	if err != nil {
		return nil, err
	}
	defer func() {
		if rmErr := s.removeWorkspace(ws); rmErr != nil {
			s.logger.Printf("failed to remove inspect workspace %s: %v", ws.JobID, rmErr)
		}
	}()

	stored, err := s.storeMultipartFile(ctx, file, ws.InDir, 0)
	if err != nil {
		return nil, err
	}

	return &InspectResult{Source: stored.meta()}, nil
}
