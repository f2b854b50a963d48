// Package main は pdf-tailor APIサーバーのエントリーポイントです。
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/pdf-tailor/internal/auth"
	"github.com/yourusername/pdf-tailor/internal/config"
	"github.com/yourusername/pdf-tailor/internal/jobs"
	"github.com/yourusername/pdf-tailor/internal/pdf"
	"github.com/yourusername/pdf-tailor/internal/storage"
	"github.com/yourusername/pdf-tailor/internal/tailor"
)

const serviceVersion = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := log.Default()

	gin.SetMode(cfg.GinMode)

	store, err := storage.NewLocal(cfg.WorkDir)
	if err != nil {
		log.Fatalf("Failed to prepare work dir: %v", err)
	}
	lib, err := tailor.NewPdfcpuLibrary(cfg.PDFValidationMode)
	if err != nil {
		log.Fatalf("Failed to initialise pdf library: %v", err)
	}
	pdfService, err := pdf.NewService(cfg, store, lib, logger)
	if err != nil {
		log.Fatalf("Failed to create pdf service: %v", err)
	}

	var manager *jobs.Manager
	if cfg.QueueRedisURL != "" {
		manager, err = setupJobs(cfg, pdfService, logger)
		if err != nil {
			log.Fatalf("Failed to set up job queue: %v", err)
		}
		manager.StartWorkers()
	} else {
		logger.Printf("QUEUE_REDIS_URL is empty; all jobs run synchronously")
	}

	router := gin.Default()

	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   auth.SessionMaxAgeSeconds(),
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteStrictMode,
	})
	router.Use(sessions.Sessions(auth.SessionCookieName, sessionStore))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"Authorization",
		"X-CSRF-Token",
	}
	// フロントエンドがレスポンスヘッダーから CSRF トークンとジョブIDを読めるようにする
	corsConfig.ExposeHeaders = []string{"X-CSRF-Token", "X-Job-Id", "Content-Disposition"}
	router.Use(cors.New(corsConfig))

	setupRoutes(router, cfg, pdfService, manager, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Printf("Starting API server on %s (mode: %s)", srv.Addr, cfg.GinMode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Printf("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("server shutdown: %v", err)
	}
	if manager != nil {
		if err := manager.Shutdown(shutdownCtx); err != nil {
			logger.Printf("job manager shutdown: %v", err)
		}
	}
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "pdf-tailor-api",
		"version": serviceVersion,
	})
}

// setupRoutes は API グループと認証周りの配線を行います。manager が nil の場合はジョブ API を登録しません。
func setupRoutes(router *gin.Engine, cfg *config.Config, pdfService *pdf.Service, manager *jobs.Manager, logger *log.Logger) {
	router.GET("/health", handleHealth)

	authManager := auth.NewManager(cfg, logger)

	opts := pdf.HandlerOptions{
		AsyncThresholdBytes: cfg.AsyncThresholdBytes,
		AsyncThresholdPages: cfg.AsyncThresholdPages,
	}
	if manager != nil {
		opts.Scheduler = manager
	}

	api := router.Group("/api")
	{
		authRoutes := api.Group("/auth")
		{
			// ログイン時はセッション未生成なので CSRF 検証は不要
			authRoutes.POST("/login", authManager.Login)
			authRoutes.POST("/logout",
				authManager.RequireLogin(),
				authManager.VerifyCSRF(),
				authManager.Logout,
			)
		}

		protected := api.Group("")
		protected.Use(authManager.RequireLogin(), authManager.VerifyCSRF())
		{
			protected.POST("/pdf/inspect", pdf.InspectHandler(pdfService))
			protected.POST("/pdf/stitch", pdf.StitchHandler(pdfService, opts))
			protected.POST("/pdf/unstitch", pdf.UnstitchHandler(pdfService, opts))

			if manager != nil {
				protected.GET("/jobs/:id", jobStatusHandler(manager))
				protected.GET("/jobs/:id/download", jobDownloadHandler(pdfService))
			}
		}
	}
}
