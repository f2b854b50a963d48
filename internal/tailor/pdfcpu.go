package tailor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const spoolPattern = ".pdftailor-*"

// PdfcpuLibrary は pdfcpu を使った Library 実装です。
//
// 出力セッションは取り込んだページを出力先と同じディレクトリの一時領域に1ページずつ書き出し、
// Close の時点で1つのPDFにまとめて出力先へリネームします。
// そのため Close されなかった出力は出力先に現れません。
type PdfcpuLibrary struct {
	mode int

	mu     sync.Mutex
	active map[string]struct{}
}

// NewPdfcpuLibrary は検証モード（"relaxed" または "strict"）を指定して作成します。
func NewPdfcpuLibrary(validationMode string) (*PdfcpuLibrary, error) {
	mode, err := parseValidationMode(validationMode)
	if err != nil {
		return nil, err
	}
	// pdfcpu はデフォルトでユーザー設定ディレクトリを作成するため無効化する
	pdfapi.DisableConfigDir()
	return &PdfcpuLibrary{
		mode:   mode,
		active: make(map[string]struct{}),
	}, nil
}

func parseValidationMode(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "relaxed":
		return model.ValidationRelaxed, nil
	case "strict":
		return model.ValidationStrict, nil
	default:
		return model.ValidationRelaxed, fmt.Errorf("unknown PDF validation mode %q (expected relaxed or strict)", s)
	}
}

// configuration は呼び出しごとに新しい設定を返す（pdfcpu の API は設定を書き換えるため共有しない）。
func (l *PdfcpuLibrary) configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = l.mode
	return conf
}

// Open はPDF全体を読み込んで検証します。ファイルハンドルは読み込み後すぐに閉じます。
func (l *PdfcpuLibrary) Open(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, pathError("open", path, ErrInputNotFound, err)
		}
		return nil, pathError("open", path, ErrInputUnreadable, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, pathError("open", path, ErrInputUnreadable, err)
	}
	if info.IsDir() {
		return nil, pathError("open", path, ErrInputUnreadable, errors.New("is a directory"))
	}

	ctx, err := pdfapi.ReadContext(f, l.configuration())
	if err != nil {
		return nil, classifyReadError(path, err)
	}
	if ctx.Encrypt != nil {
		return nil, pathError("open", path, ErrEncrypted, nil)
	}
	if err := pdfapi.ValidateContext(ctx); err != nil {
		return nil, classifyReadError(path, err)
	}
	if ctx.PageCount < 1 {
		return nil, pathError("open", path, ErrInputUnreadable, errors.New("document has no pages"))
	}

	return &pdfcpuDocument{path: path, ctx: ctx}, nil
}

func classifyReadError(path string, err error) error {
	if strings.Contains(strings.ToLower(err.Error()), "password") {
		return pathError("open", path, ErrEncrypted, err)
	}
	return pathError("open", path, ErrInputUnreadable, err)
}

// Create は出力先ディレクトリに一時領域を作り、書き込みセッションを開始します。
func (l *PdfcpuLibrary) Create(path string) (Session, error) {
	if strings.TrimSpace(path) == "" {
		return nil, pathError("create", path, ErrOutputUnwritable, errors.New("output path is empty"))
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return nil, pathError("create", path, ErrOutputUnwritable, errors.New("is a directory"))
	}

	key, err := filepath.Abs(path)
	if err != nil {
		return nil, pathError("create", path, ErrOutputUnwritable, err)
	}
	if err := l.acquire(key); err != nil {
		return nil, pathError("create", path, ErrOutputBusy, err)
	}

	spoolDir, err := os.MkdirTemp(filepath.Dir(path), spoolPattern)
	if err != nil {
		l.release(key)
		return nil, pathError("create", path, ErrOutputUnwritable, err)
	}

	return &pdfcpuSession{lib: l, key: key, path: path, spoolDir: spoolDir}, nil
}

func (l *PdfcpuLibrary) acquire(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.active[key]; busy {
		return errors.New("another session is open for this path")
	}
	l.active[key] = struct{}{}
	return nil
}

func (l *PdfcpuLibrary) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, key)
}

type pdfcpuDocument struct {
	path string
	ctx  *model.Context
}

func (d *pdfcpuDocument) Path() string { return d.path }

func (d *pdfcpuDocument) PageCount() int {
	if d.ctx == nil {
		return 0
	}
	return d.ctx.PageCount
}

// Close は読み込んだオブジェクトへの参照を捨てます。二度目以降の呼び出しは何もしません。
func (d *pdfcpuDocument) Close() error {
	d.ctx = nil
	return nil
}

type pdfcpuSession struct {
	lib      *PdfcpuLibrary
	key      string
	path     string
	spoolDir string
	pages    []string
	finished bool
}

func (s *pdfcpuSession) Path() string { return s.path }

// ImportPage は ref のページだけを含むPDFを一時領域に書き出します。
func (s *pdfcpuSession) ImportPage(ref PageRef) error {
	if s.finished {
		return pathError("import", s.path, ErrOutputUnwritable, errors.New("session already finished"))
	}
	doc, ok := ref.Document().(*pdfcpuDocument)
	if !ok || doc == nil {
		return fmt.Errorf("import into %s: page reference does not belong to this library", s.path)
	}
	if doc.ctx == nil {
		return pathError("import", doc.path, ErrInputUnreadable, errors.New("document already released"))
	}

	pageCtx, err := pdfcpu.ExtractPages(doc.ctx, []int{ref.Page()}, false)
	if err != nil {
		return pathError("import", doc.path, ErrInputUnreadable, fmt.Errorf("page %d: %w", ref.Page(), err))
	}

	name := filepath.Join(s.spoolDir, fmt.Sprintf("page-%06d.pdf", len(s.pages)+1))
	if err := writeContextFile(pageCtx, name); err != nil {
		return pathError("import", s.path, ErrOutputUnwritable, err)
	}
	s.pages = append(s.pages, name)
	return nil
}

func writeContextFile(ctx *model.Context, name string) (err error) {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	return pdfapi.WriteContext(ctx, f)
}

// Close は一時領域のページを結合して出力先に確定させます。
func (s *pdfcpuSession) Close() error {
	if s.finished {
		return pathError("close", s.path, ErrOutputUnwritable, errors.New("session already finished"))
	}
	s.finished = true
	defer s.cleanup()

	if len(s.pages) == 0 {
		return pathError("close", s.path, ErrOutputUnwritable, errors.New("no pages were imported"))
	}

	assembled := s.pages[0]
	if len(s.pages) > 1 {
		assembled = filepath.Join(s.spoolDir, "assembled.pdf")
		if err := pdfapi.MergeCreateFile(s.pages, assembled, false, s.lib.configuration()); err != nil {
			return pathError("close", s.path, ErrOutputUnwritable, err)
		}
	}

	if err := os.Chmod(assembled, 0o644); err != nil {
		return pathError("close", s.path, ErrOutputUnwritable, err)
	}
	if err := os.Rename(assembled, s.path); err != nil {
		return pathError("close", s.path, ErrOutputUnwritable, err)
	}
	return nil
}

// Abort は書きかけの出力を破棄します。出力先には何も書き込みません。
func (s *pdfcpuSession) Abort() error {
	if s.finished {
		return nil
	}
	s.finished = true
	return s.cleanup()
}

func (s *pdfcpuSession) cleanup() error {
	defer s.lib.release(s.key)
	s.pages = nil
	return os.RemoveAll(s.spoolDir)
}
