package pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

// JobRunner はジョブを実行できるサービスが実装します。
type JobRunner interface {
	RunJob(ctx context.Context, jobID string, reporter ProgressReporter) (*Result, error)
	DiscardJob(jobID string) error
}

// StitchService は連結ジョブの準備と実行を提供します。
type StitchService interface {
	JobRunner
	PrepareStitchJob(ctx context.Context, files []*multipart.FileHeader) (*JobManifest, error)
}

// UnstitchService は分解ジョブの準備と実行を提供します。
type UnstitchService interface {
	JobRunner
	PrepareUnstitchJob(ctx context.Context, file *multipart.FileHeader, template string) (*JobManifest, error)
}

// InspectService はPDFのメタデータ取得を提供します。
type InspectService interface {
	InspectMultipart(ctx context.Context, file *multipart.FileHeader) (*InspectResult, error)
}

// JobScheduler はジョブを非同期キューに投入するためのインターフェースです。
type JobScheduler interface {
	Schedule(ctx context.Context, op OperationType, jobID string) error
}

// HandlerOptions は同期/非同期切り替えのための設定です。
type HandlerOptions struct {
	Scheduler           JobScheduler
	AsyncThresholdBytes int64
	AsyncThresholdPages int
}

// StitchHandler は POST /api/pdf/stitch のハンドラーを返します。
// files[] の送信順がそのまま連結順になります。
func StitchHandler(svc StitchService, opts HandlerOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, ok := parseForm(c)
		if !ok {
			return
		}
		defer form.RemoveAll()

		files := form.File["files[]"]
		if len(files) == 0 {
			files = form.File["files"]
		}
		if len(files) == 0 {
			respondInvalid(c, "アップロードされたPDFファイルが見つかりません。")
			return
		}

		manifest, err := svc.PrepareStitchJob(c.Request.Context(), files)
		if err != nil {
			respondWithError(c, err)
			return
		}
		runOrSchedule(c, svc, manifest, opts, "連結結果の読み込みに失敗しました")
	}
}

// UnstitchHandler は POST /api/pdf/unstitch のハンドラーを返します。
// 出力名は output（旧名 template）で受け取り、省略時はアップロード時のファイル名を基準名にします。
func UnstitchHandler(svc UnstitchService, opts HandlerOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, ok := parseForm(c)
		if !ok {
			return
		}
		defer form.RemoveAll()

		file, err := extractSingleFile(form)
		if err != nil {
			respondInvalid(c, err.Error())
			return
		}

		template := strings.TrimSpace(c.PostForm("output"))
		if template == "" {
			template = strings.TrimSpace(c.PostForm("template"))
		}
		manifest, err := svc.PrepareUnstitchJob(c.Request.Context(), file, template)
		if err != nil {
			respondWithError(c, err)
			return
		}
		runOrSchedule(c, svc, manifest, opts, "分解結果の読み込みに失敗しました")
	}
}

// InspectHandler は POST /api/pdf/inspect のハンドラーを返します。
func InspectHandler(svc InspectService) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, ok := parseForm(c)
		if !ok {
			return
		}
		defer form.RemoveAll()

		file, err := extractSingleFile(form)
		if err != nil {
			respondInvalid(c, err.Error())
			return
		}

		result, err := svc.InspectMultipart(c.Request.Context(), file)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func parseForm(c *gin.Context) (*multipart.Form, bool) {
	form, err := c.MultipartForm()
	if err != nil {
		respondInvalid(c, "multipart/form-data でPDFファイルを送信してください。")
		return nil, false
	}
	return form, true
}

// runOrSchedule は閾値を超えたジョブをキューに投入し、それ以外はその場で実行して成果物を返します。
func runOrSchedule(c *gin.Context, svc JobRunner, manifest *JobManifest, opts HandlerOptions, readErrMsg string) {
	if shouldProcessAsync(manifest, opts) {
		if err := opts.Scheduler.Schedule(c.Request.Context(), manifest.Operation, manifest.JobID); err != nil {
			if cleanupErr := svc.DiscardJob(manifest.JobID); cleanupErr != nil {
				err = fmt.Errorf("%w (cleanup failed: %v)", err, cleanupErr)
			}
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"jobId": manifest.JobID})
		return
	}

	result, err := svc.RunJob(c.Request.Context(), manifest.JobID, nil)
	if err != nil {
		respondWithError(c, err)
		return
	}
	defer result.Cleanup()

	file, err := os.Open(result.OutputPath)
	if err != nil {
		respondWithError(c, fmt.Errorf("%s: %w", readErrMsg, err))
		return
	}
	defer file.Close()
	StreamResult(c, result, file)
}

func shouldProcessAsync(manifest *JobManifest, opts HandlerOptions) bool {
	if manifest == nil || opts.Scheduler == nil {
		return false
	}
	if opts.AsyncThresholdBytes > 0 && manifest.TotalSize() > opts.AsyncThresholdBytes {
		return true
	}
	if opts.AsyncThresholdPages > 0 && manifest.TotalPages() > opts.AsyncThresholdPages {
		return true
	}
	return false
}

func respondInvalid(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"code":    CodeInvalidInput,
		"message": message,
	})
}

func respondWithError(c *gin.Context, err error) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		c.JSON(statusForCode(apiErr.Code), gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusRequestTimeout, gin.H{
			"code":    "REQUEST_CANCELED",
			"message": "リクエストがキャンセルされました。",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "サーバー内部でエラーが発生しました。",
		})
	}
}

func statusForCode(code string) int {
	switch code {
	case CodeLimitExceeded:
		return http.StatusRequestEntityTooLarge
	case CodeEncryptedPDF, CodeUnsupportedPDF:
		return http.StatusUnprocessableEntity
	case CodeOutputFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func extractSingleFile(form *multipart.Form) (*multipart.FileHeader, error) {
	if form == nil {
		return nil, errors.New("PDFファイルを選択してください。")
	}
	for _, key := range []string{"file", "file[]", "files", "files[]"} {
		if files := form.File[key]; len(files) > 0 {
			return files[0], nil
		}
	}
	return nil, errors.New("PDFファイルを選択してください。")
}

// StreamResult は成果物をダウンロード用ヘッダー付きで返します。
func StreamResult(c *gin.Context, result *Result, body io.Reader) {
	contentType := "application/octet-stream"
	switch result.ResultKind {
	case ResultKindPDF:
		contentType = "application/pdf"
	case ResultKindZIP:
		contentType = "application/zip"
	}

	encodedName := url.PathEscape(result.OutputFilename)
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", result.OutputFilename, encodedName))
	c.Header("Cache-Control", "no-store")
	c.Header("X-Job-Id", result.JobID)
	c.DataFromReader(http.StatusOK, result.OutputSize, contentType, body, nil)
}
