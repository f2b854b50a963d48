package pdf

import (
	"context"
	"errors"
	"fmt"

	"github.com/yourusername/pdf-tailor/internal/tailor"
)

// APIエラーコード
const (
	CodeInvalidInput   = "INVALID_INPUT"
	CodeLimitExceeded  = "LIMIT_EXCEEDED"
	CodeEncryptedPDF   = "ENCRYPTED_PDF"
	CodeUnsupportedPDF = "UNSUPPORTED_PDF"
	CodeOutputFailed   = "OUTPUT_FAILED"
)

// Error は利用者に返すエラーコードとメッセージを保持します。
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// translateError は tailor のエラー種別をAPIエラーに変換します。
// 分類できないエラーとキャンセルはそのまま返します。
func translateError(err error, name string) error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, tailor.ErrEncrypted):
		return newError(CodeEncryptedPDF, fmt.Sprintf("%s は暗号化されているため処理できません。", name), err)
	case errors.Is(err, tailor.ErrInputNotFound), errors.Is(err, tailor.ErrInputUnreadable):
		return newError(CodeUnsupportedPDF, fmt.Sprintf("%s を読み込めませんでした。ファイルが破損していないか確認してください。", name), err)
	case errors.Is(err, tailor.ErrInvalidTemplate):
		return newError(CodeInvalidInput, "出力ファイル名のテンプレートが正しくありません。%d は1つまで指定できます。", err)
	case errors.Is(err, tailor.ErrOutputUnwritable), errors.Is(err, tailor.ErrOutputBusy):
		return newError(CodeOutputFailed, "出力ファイルの書き込みに失敗しました。", err)
	default:
		return err
	}
}
