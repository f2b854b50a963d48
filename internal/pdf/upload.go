package pdf

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/unicode/norm"
)

const pdfMIME = "application/pdf"

// SourceFileMeta は入力ファイルのメタデータです。
type SourceFileMeta struct {
	Name  string `json:"name"`
	Size  int64  `json:"size"`
	Pages int    `json:"pages"`
}

type storedFile struct {
	path         string
	originalName string
	size         int64
	pages        int
}

func (f storedFile) meta() SourceFileMeta {
	return SourceFileMeta{Name: f.originalName, Size: f.size, Pages: f.pages}
}

// storeMultipartFile はアップロードされたファイルを dir に保存し、PDFとして開けることを確認します。
func (s *Service) storeMultipartFile(ctx context.Context, file *multipart.FileHeader, dir string, index int) (storedFile, error) {
	if err := ctx.Err(); err != nil {
		return storedFile{}, err
	}
	originalName := normalizeFilename(file.Filename)

	if s.cfg.MaxFileSize > 0 && file.Size > s.cfg.MaxFileSize {
		return storedFile{}, newError(CodeLimitExceeded, fmt.Sprintf("%s がサイズ上限（%dMB）を超えています。", originalName, s.cfg.MaxFileSize/1024/1024), nil)
	}

	src, err := file.Open()
	if err != nil {
		return storedFile{}, fmt.Errorf("アップロードファイルのオープンに失敗しました: %w", err)
	}
	defer src.Close()

	dstPath := filepath.Join(dir, fmt.Sprintf("%03d.pdf", index+1))
	size, err := copyLimited(dstPath, src, s.cfg.MaxFileSize)
	if err != nil {
		return storedFile{}, err
	}
	if s.cfg.MaxFileSize > 0 && size > s.cfg.MaxFileSize {
		return storedFile{}, newError(CodeLimitExceeded, fmt.Sprintf("%s がサイズ上限（%dMB）を超えています。", originalName, s.cfg.MaxFileSize/1024/1024), nil)
	}

	mtype, err := mimetype.DetectFile(dstPath)
	if err != nil {
		return storedFile{}, fmt.Errorf("ファイル形式の判定に失敗しました: %w", err)
	}
	if !mtype.Is(pdfMIME) {
		return storedFile{}, newError(CodeInvalidInput, fmt.Sprintf("%s はPDFファイルではありません（%s）。", originalName, mtype.String()), nil)
	}

	doc, err := s.lib.Open(dstPath)
	if err != nil {
		return storedFile{}, translateError(err, originalName)
	}
	pages := doc.PageCount()
	if err := doc.Close(); err != nil {
		return storedFile{}, translateError(err, originalName)
	}

	if s.cfg.MaxPages > 0 && pages > s.cfg.MaxPages {
		return storedFile{}, newError(CodeLimitExceeded, fmt.Sprintf("%s のページ数（%d）が上限（%d）を超えています。", originalName, pages, s.cfg.MaxPages), nil)
	}

	return storedFile{
		path:         dstPath,
		originalName: originalName,
		size:         size,
		pages:        pages,
	}, nil
}

// copyLimited は最大 limit+1 バイトまでコピーし、上限超過を呼び出し側で判定できるようにします。
func copyLimited(dstPath string, src io.Reader, limit int64) (int64, error) {
	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return 0, fmt.Errorf("入力ファイルの保存に失敗しました: %w", err)
	}
	defer dst.Close()

	if limit > 0 {
		src = io.LimitReader(src, limit+1)
	}
	n, err := io.Copy(dst, src)
	if err != nil {
		return n, fmt.Errorf("入力ファイルの保存に失敗しました: %w", err)
	}
	return n, nil
}

// normalizeFilename はアップロード元のパスを取り除き、NFC に正規化します（macOS は NFD で送ってくる）。
func normalizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" || name == "." || name == "/" {
		return "document.pdf"
	}
	return name
}
