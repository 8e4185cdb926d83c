package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Flabba2018/elkontroll-alver/config"
	"github.com/Flabba2018/elkontroll-alver/middlewares"
	"github.com/Flabba2018/elkontroll-alver/models"
	"github.com/Flabba2018/elkontroll-alver/pendingsync"
	"github.com/Flabba2018/elkontroll-alver/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func envInt(name string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

// customErrorLogger logs request failures only; happy-path requests stay out
// of the log stream.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		for _, ginErr := range c.Errors {
			cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
			logger.WithFields(logrus.Fields{
				"path":          c.Request.URL.Path,
				"status":        c.Writer.Status(),
				"correlationId": cid,
			}).Error(ginErr.Error())
		}
	}
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.NewLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Redis sits on the same box and backs all local durability; without it
	// the service cannot honor "never lose a submitted record", so this blocks.
	rdb, locker := config.ConnectRedisWithRetry()
	blobs := config.NewRedisBlobStore(rdb)

	notices := &noticeBoard{}
	store := models.NewStore(logger, blobs)
	queue := pendingsync.NewDurableQueue[*models.InspectionRecord](sigCtx, blobs, logger, "pendingSync", 50)
	auditQueue := pendingsync.NewDurableQueue[*models.AuditEntry](sigCtx, blobs, logger, "auditQueue", 200)

	app := &application{
		logger:  logger,
		drafts:  models.NewDraftManager(),
		store:   store,
		queue:   queue,
		notices: notices,
		baseCtx: sigCtx,
	}
	app.audit = pendingsync.NewAuditSyncer(logger, auditQueue, store, func() bool { return app.monitor.Online() })
	app.engine = pendingsync.NewEngine(logger, queue, store,
		func() bool { return app.monitor.Online() },
		pendingsync.NotifierFunc(func(msg string) {
			logger.WithFields(logrus.Fields{"field": "sync"}).Info(msg)
			notices.Notify(msg)
		}),
		locker,
		func(ctx context.Context) {
			if _, err := store.RefreshInspections(ctx); err != nil {
				config.LogError(logger, "server.go", "onSynced", "RefreshInspections", nil, err)
			}
		},
	)

	probeURL := strings.TrimSpace(os.Getenv("CONNECTIVITY_PROBE_URL"))
	if probeURL == "" {
		probeURL = "https://www.gstatic.com/generate_204"
	}
	app.monitor = pendingsync.NewMonitor(logger,
		pendingsync.NewHTTPProber(probeURL, 5*time.Second),
		func(ctx context.Context) {
			// back online: flush whatever piled up while offline
			if err := app.engine.Trigger(ctx, false); err != nil {
				logger.WithFields(logrus.Fields{"field": "sync"}).Warn("synk ved tilkopling: " + err.Error())
			}
			app.audit.Flush(ctx)
		},
		nil, // going offline only changes the reported status
	)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})

	corsConfig := cors.DefaultConfig()
	// Production-safe CORS: explicit allowlist via CORS_ALLOWED_ORIGINS, deny
	// all when unset; allow-all outside production for developer convenience.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "X-User-Id", "X-User-Name", "X-User-Role")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(middlewares.IdentityMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	app.registerRoutes(r)

	// Listen before dialing the remote database: the whole point of the local
	// queue is that the service works with no uplink at all.
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()
	logger.WithFields(logrus.Fields{"port": port}).Info("elkontroll-tenesta starta")

	go func() {
		db := config.ConnectDatabaseWithRetry()
		// IMPORTANT: AutoMigrate can run DDL that blocks tables; allow running
		// migrations as a separate job instead.
		if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
			models.MigrateTable(db, logger)
		} else {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
		}
		store.Bind(db)
		logger.WithFields(logrus.Fields{"field": "database"}).Info("fjernlager klart")
	}()

	pollInterval := time.Duration(envInt("CONNECTIVITY_POLL_SECONDS", 10)) * time.Second
	go app.monitor.Run(sigCtx, pollInterval)

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// a drain pass mid-flight finishes its current record and stops at the
	// boundary; everything unconfirmed stays in the queue for next boot
	app.engine.Cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	_ = rdb.Close()
}
