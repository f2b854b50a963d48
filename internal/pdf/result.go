package pdf

import (
	"sync"
)

// OperationType はPDF処理の種別を表します。
type OperationType string

const (
	OperationStitch   OperationType = "stitch"
	OperationUnstitch OperationType = "unstitch"
)

// ResultKind は生成される成果物の種別を表します。
type ResultKind string

const (
	ResultKindPDF ResultKind = "pdf"
	ResultKindZIP ResultKind = "zip"
)

// Result はPDF処理の成果を表します。
type Result struct {
	JobID          string        `json:"jobId"`
	Operation      OperationType `json:"operation"`
	OutputPath     string        `json:"outputPath"`
	OutputFilename string        `json:"outputFilename"`
	OutputSize     int64         `json:"outputSize"`
	ResultKind     ResultKind    `json:"resultKind"`
	Meta           any           `json:"meta,omitempty"`

	cleanup     func() error
	cleanupOnce sync.Once
	cleanupErr  error
}

// Cleanup は作業ディレクトリを削除します。
func (r *Result) Cleanup() error {
	if r == nil || r.cleanup == nil {
		return nil
	}
	r.cleanupOnce.Do(func() {
		r.cleanupErr = r.cleanup()
	})
	return r.cleanupErr
}

// StitchMeta は連結処理のメタデータです。
type StitchMeta struct {
	TotalPages int              `json:"totalPages"`
	Sources    []SourceFileMeta `json:"sources"`
}

// UnstitchMeta は分解処理のメタデータです。
type UnstitchMeta struct {
	Original SourceFileMeta `json:"original"`
	Template string         `json:"template"`
	Parts    []UnstitchPart `json:"parts"`
}

// UnstitchPart は分解で生成された各PDFの情報です。
type UnstitchPart struct {
	Filename string `json:"filename"`
	Page     int    `json:"page"`
	Size     int64  `json:"size"`
}
