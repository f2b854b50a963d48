package tailor

import (
	"errors"
	"fmt"
)

// 呼び出し側がエラー種別を判定するための番兵エラーです。
var (
	ErrNoInputs         = errors.New("no input files")
	ErrInputNotFound    = errors.New("input file not found")
	ErrInputUnreadable  = errors.New("input file is not a readable PDF")
	ErrEncrypted        = errors.New("encrypted PDF")
	ErrOutputUnwritable = errors.New("output path is not writable")
	ErrOutputBusy       = errors.New("output path is already being written")
	ErrInvalidTemplate  = errors.New("invalid output template")
	ErrPageOutOfRange   = errors.New("page number out of range")
)

// PathError は失敗した操作と対象パス、エラー種別、原因をまとめたものです。
// errors.Is は Kind と Err の両方を辿ります。
type PathError struct {
	Op   string
	Path string
	Kind error
	Err  error
}

func (e *PathError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PathError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func pathError(op, path string, kind, err error) error {
	return &PathError{Op: op, Path: path, Kind: kind, Err: err}
}
