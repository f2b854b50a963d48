package tailor

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
)

// UnstitchRequest は分解処理の入力です。Template が空の場合は Input のパスを基準名にします。
// Dir を指定すると、Template から求めたパスを Dir の下に置きます。Dir 自体はテンプレートとして解釈しません。
type UnstitchRequest struct {
	Input    string
	Template string
	Dir      string
	Progress ProgressFunc
}

// UnstitchReport は分解結果です。途中で失敗した場合も、それまでに書き出したファイルを含みます。
type UnstitchReport struct {
	Input   string   `json:"input"`
	Pages   int      `json:"pages"`
	Outputs []string `json:"outputs"`
}

// Unstitcher は1つのPDFをページごとのPDFに分解します。
type Unstitcher struct {
	lib    Library
	logger *log.Logger
}

// NewUnstitcher は lib を使う Unstitcher を作成します。
func NewUnstitcher(lib Library, logger *log.Logger) *Unstitcher {
	return &Unstitcher{lib: lib, logger: discardLogger(logger)}
}

// Unstitch は req.Input の各ページを OutputPath で決まるパスに1ページずつ書き出します。
//
// 入力を開けない場合（暗号化を含む）は何も書き出さずに失敗します。
// k ページ目の書き込みに失敗した場合、1..k-1 ページ目のファイルは確定済みのまま残り、
// 返却される report.Outputs に列挙されます。
func (u *Unstitcher) Unstitch(ctx context.Context, req UnstitchRequest) (*UnstitchReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(req.Input) == "" {
		return nil, ErrNoInputs
	}
	baseName := req.Template
	if baseName == "" {
		baseName = req.Input
	}
	if err := ValidateTemplate(baseName); err != nil {
		return nil, err
	}

	report := &UnstitchReport{Input: req.Input}

	err := withDocument(u.lib, req.Input, func(doc Document) error {
		report.Pages = doc.PageCount()

		paths, err := outputPaths(req.Input, req.Dir, baseName, doc.PageCount())
		if err != nil {
			return err
		}

		for i, path := range paths {
			if err := ctx.Err(); err != nil {
				return err
			}
			ref, err := NewPageRef(doc, i+1)
			if err != nil {
				return err
			}
			err = withSession(u.lib, path, func(session Session) error {
				return session.ImportPage(ref)
			})
			if err != nil {
				return err
			}
			report.Outputs = append(report.Outputs, path)
			u.logger.Printf("wrote page %d/%d to %s", i+1, len(paths), path)
			reportProgress(req.Progress, i+1, len(paths))
		}
		return nil
	})
	if err != nil {
		if len(report.Outputs) == 0 {
			return nil, err
		}
		return report, err
	}
	return report, nil
}

// outputPaths は全ページ分の出力パスを先に求め、入力ファイル自身を上書きしないことを確認します。
func outputPaths(input, dir, baseName string, pageCount int) ([]string, error) {
	inputAbs, err := filepath.Abs(input)
	if err != nil {
		inputAbs = filepath.Clean(input)
	}

	paths := make([]string, pageCount)
	for page := 1; page <= pageCount; page++ {
		path, err := OutputPath(baseName, page)
		if err != nil {
			return nil, err
		}
		if dir != "" {
			path = filepath.Join(dir, path)
		}
		if abs, err := filepath.Abs(path); err == nil && abs == inputAbs {
			return nil, pathError("unstitch", path, ErrOutputUnwritable, fmt.Errorf("page %d would overwrite the input file", page))
		}
		paths[page-1] = path
	}
	return paths, nil
}
