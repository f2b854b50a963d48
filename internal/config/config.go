// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// アプリケーション設定
	AppUsername     string // ログイン用ユーザー名
	AppPasswordHash string // bcryptでハッシュ化されたパスワード
	SessionSecret   string // セッション署名用の秘密鍵

	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// ファイル制限
	MaxFileSize      int64 // 単一ファイルの最大サイズ（バイト）
	MaxPages         int   // 単一ファイルの最大ページ数
	MaxFiles         int   // stitch で受け付ける最大ファイル数
	JobExpireMinutes int   // ジョブの有効期限（分）

	// ジョブ/キュー設定
	QueueRedisURL       string // Asynq用Redis接続URL（空なら常に同期処理）
	QueueConcurrency    int    // ワーカーの同時実行数
	AsyncThresholdBytes int64  // 同期処理から非同期へ切り替えるサイズ閾値
	AsyncThresholdPages int    // 同期処理から非同期へ切り替えるページ閾値
	JobResultBaseURL    string // 結果ファイル取得用のベースURL

	// PDF処理設定
	WorkDir           string // ジョブ作業ディレクトリのルート
	PDFValidationMode string // pdfcpu の検証モード (relaxed, strict)
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{
		AppUsername:     getEnv("APP_USERNAME", ""),
		AppPasswordHash: getEnv("APP_PASSWORD_HASH", ""),
		SessionSecret:   getEnv("SESSION_SECRET", ""),

		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),

		MaxFileSize:      getEnvAsInt64("MAX_FILE_SIZE", 104857600), // 100MB
		MaxPages:         getEnvAsInt("MAX_PAGES", 200),
		MaxFiles:         getEnvAsInt("MAX_FILES", 20),
		JobExpireMinutes: getEnvAsInt("JOB_EXPIRE_MINUTES", 10),

		QueueRedisURL:       getEnv("QUEUE_REDIS_URL", "redis://127.0.0.1:6379/0"),
		QueueConcurrency:    getEnvAsInt("QUEUE_CONCURRENCY", 4),
		AsyncThresholdBytes: getEnvAsInt64("ASYNC_THRESHOLD_BYTES", 50*1024*1024), // 50MB
		AsyncThresholdPages: getEnvAsInt("ASYNC_THRESHOLD_PAGES", 120),
		JobResultBaseURL:    getEnv("JOB_RESULT_BASE_URL", ""),

		WorkDir:           getEnv("WORK_DIR", filepath.Join(os.TempDir(), "pdf-tailor")),
		PDFValidationMode: strings.ToLower(getEnv("PDF_VALIDATION_MODE", "relaxed")),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// ValidationMode は CLI 向けに PDF_VALIDATION_MODE だけを読み込みます。
// サーバー用の必須項目は検証しません。不正な値は NewPdfcpuLibrary がエラーにします。
func ValidationMode() string {
	loadEnvFile()
	return strings.ToLower(getEnv("PDF_VALIDATION_MODE", "relaxed"))
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	switch c.PDFValidationMode {
	case "relaxed", "strict":
	default:
		return fmt.Errorf("PDF_VALIDATION_MODE must be relaxed or strict (got %q)", c.PDFValidationMode)
	}
	if c.WorkDir == "" {
		return fmt.Errorf("WORK_DIR must not be empty")
	}
	if c.MaxFiles < 1 {
		return fmt.Errorf("MAX_FILES must be at least 1")
	}

	// ローカル開発では認証設定は任意
	if c.GinMode == "release" {
		if c.AppUsername == "" {
			return fmt.Errorf("APP_USERNAME is required in release mode")
		}
		if c.AppPasswordHash == "" {
			return fmt.Errorf("APP_PASSWORD_HASH is required in release mode")
		}
		if c.SessionSecret == "" {
			return fmt.Errorf("SESSION_SECRET is required in release mode")
		}
		if c.QueueRedisURL == "" {
			return fmt.Errorf("QUEUE_REDIS_URL is required in release mode")
		}
	}

	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 は環境変数を64ビット整数として取得します。
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
