package tailor

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// StitchRequest は連結処理の入力です。Inputs の順序がそのまま出力のページ順になります。
type StitchRequest struct {
	Inputs   []string
	Output   string
	Progress ProgressFunc
}

// SourceReport は1つの入力文書から取り込んだページ数です。
type SourceReport struct {
	Path  string `json:"path"`
	Pages int    `json:"pages"`
}

// StitchReport は連結結果のまとめです。
type StitchReport struct {
	Output  string         `json:"output"`
	Pages   int            `json:"pages"`
	Sources []SourceReport `json:"sources"`
}

// Stitcher は複数のPDFを1つに連結します。
type Stitcher struct {
	lib    Library
	logger *log.Logger
}

// NewStitcher は lib を使う Stitcher を作成します。logger が nil の場合は出力しません。
func NewStitcher(lib Library, logger *log.Logger) *Stitcher {
	return &Stitcher{lib: lib, logger: discardLogger(logger)}
}

// Stitch は req.Inputs の全ページを入力順に req.Output へ書き出します。
//
// ソース文書は1つずつ開き、取り込みが終わった時点で解放するため、
// 同時に開いている入力は常に1つだけです。途中で失敗した場合は出力セッションを破棄します。
func (s *Stitcher) Stitch(ctx context.Context, req StitchRequest) (*StitchReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(req.Inputs) == 0 {
		return nil, ErrNoInputs
	}
	if strings.TrimSpace(req.Output) == "" {
		return nil, pathError("stitch", req.Output, ErrOutputUnwritable, fmt.Errorf("output path is empty"))
	}

	report := &StitchReport{
		Output:  req.Output,
		Sources: make([]SourceReport, 0, len(req.Inputs)),
	}

	err := withSession(s.lib, req.Output, func(session Session) error {
		for i, input := range req.Inputs {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := withDocument(s.lib, input, func(doc Document) error {
				if err := importAll(ctx, session, doc); err != nil {
					return err
				}
				report.Sources = append(report.Sources, SourceReport{Path: input, Pages: doc.PageCount()})
				report.Pages += doc.PageCount()
				return nil
			})
			if err != nil {
				return err
			}
			s.logger.Printf("stitched %s (%d/%d)", input, i+1, len(req.Inputs))
			reportProgress(req.Progress, i+1, len(req.Inputs))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Printf("wrote %s: %d pages from %d files", req.Output, report.Pages, len(report.Sources))
	return report, nil
}
