package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/project_billing/config"
	"github.com/mmdatafocus/project_billing/middlewares"
	"github.com/mmdatafocus/project_billing/models"
	"github.com/mmdatafocus/project_billing/utils"
	"github.com/mmdatafocus/project_billing/workflow"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func corsConfig() cors.Config {
	corsConfig := cors.DefaultConfig()
	// Production-safe CORS:
	// - In production, require explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	// - In non-production, allow all (developer convenience).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if config.IsProduction() {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", middlewares.CorrelationHeader)
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition", middlewares.CorrelationHeader)
	corsConfig.AllowCredentials = true
	return corsConfig
}

// newRouter wires middlewares and routes. Until the database is connected every
// route except /healthz answers 503.
func newRouter(logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(func(c *gin.Context) {
		// Always allow Cloud Run startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.Use(cors.New(corsConfig()))
	r.Use(middlewares.SessionMiddleware())
	r.Use(middlewares.AuthMiddleware())
	r.Use(middlewares.LoaderMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/auth/login", loginHandler())

	approvers := middlewares.RequireRoles(models.UserRoleSalesFinance, models.UserRoleAdmin)
	adminOnly := middlewares.RequireRoles(models.UserRoleAdmin)

	api := r.Group("/", middlewares.RequireAuth())
	api.POST("/auth/logout", logoutHandler())
	api.GET("/me", meHandler())
	api.POST("/users", adminOnly, createUserHandler())

	billing := api.Group("/billing")
	billing.GET("/pending-approvals", approvers, pendingApprovalsHandler())
	billing.GET("/pending-approvals/export", approvers, exportPendingApprovalsHandler())
	billing.GET("/approval-stats", approvers, approvalStatsHandler())
	billing.POST("/:kind", createDocumentHandler())
	billing.GET("/:kind", listDocumentsHandler())
	billing.GET("/:kind/:id", getDocumentHandler())
	billing.PUT("/:kind/:id", updateDocumentHandler())
	billing.DELETE("/:kind/:id", deleteDocumentHandler())
	// approve/reject are gated by the transition engine itself
	billing.POST("/:kind/:id/approve", approveDocumentHandler())
	billing.POST("/:kind/:id/reject", rejectDocumentHandler())
	billing.POST("/:kind/:id/payment-status", approvers, paymentStatusHandler())
	billing.GET("/:kind/:id/history", documentHistoryHandler())
	billing.POST("/:kind/:id/attachments", uploadAttachmentHandler())
	billing.GET("/:kind/:id/attachments", listAttachmentsHandler())
	api.DELETE("/attachments/:id", deleteAttachmentHandler())

	api.POST("/projects", middlewares.RequireRoles(models.UserRoleAdmin, models.UserRoleProjectManager), createProjectHandler())
	api.GET("/projects", listProjectsHandler())
	api.GET("/projects/:id", getProjectHandler())
	api.POST("/projects/:id/financials/rebuild", adminOnly, rebuildFinancialsHandler())

	// Ops tooling (admin only): replay notifications that were marked DEAD/FAILED.
	api.POST("/internal/notifications/replay", adminOnly, notificationReplayHandler())
	api.GET("/internal/notifications/:id", adminOnly, getNotificationHandler())

	r.NoRoute(customNotFoundHandler)
	return r
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := newRouter(logger)

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Redis is optional: sessions, stats cache and locks degrade without it.
	if os.Getenv("REDIS_ADDRESS") != "" {
		go config.ConnectRedisWithRetry()
	} else {
		logger.WithFields(logrus.Fields{"field": "redis"}).Warn("REDIS_ADDRESS not set; running without sessions, cache and locks")
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// IMPORTANT: AutoMigrate can run DDL that blocks tables and causes 504/502 timeouts.
	// Allow disabling migrations on startup (run them as a separate job instead).
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		if err := models.MigrateTable(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Fatal("AutoMigrate failed: " + err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	if os.Getenv("GCS_BUCKET") != "" {
		store, err := utils.NewGCSStore()
		if err != nil {
			logger.WithFields(logrus.Fields{"field": "storage"}).Error("attachments disabled: " + err.Error())
		} else {
			attachmentStore = store
		}
	}

	notifier, err := workflow.NewNotifierFromEnv(logger)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "notifications"}).Error("falling back to log notifier: " + err.Error())
		notifier = &workflow.LogNotifier{Logger: logger}
	}

	// Background workers deliver notifications after commit and reconcile project financials.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	go workflow.NewNotificationDispatcher(db, logger, notifier).Run(workerCtx)
	go workflow.NewFinancialReconciler(db, logger).Run(workerCtx)

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on :", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while we're draining.
	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	config.ClosePubSub()
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
