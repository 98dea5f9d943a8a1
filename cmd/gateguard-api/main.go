package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gateguard/gateguard-api/internal/api/handler"
	"github.com/gateguard/gateguard-api/internal/auditlog/repository"
	"github.com/gateguard/gateguard-api/internal/auditlog/service"
	"github.com/gateguard/gateguard-api/internal/auth"
	"github.com/gateguard/gateguard-api/internal/config"
	"github.com/gateguard/gateguard-api/internal/faultinject"
	"github.com/gateguard/gateguard-api/internal/geo"
	"github.com/gateguard/gateguard-api/internal/scoring"
	"github.com/gateguard/gateguard-api/internal/store"
)

func main() {
	cfg, err := config.Load(config.DefaultOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, _ := zap.NewProduction()
	if cfg.Log.Development {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("gateguard-api exited with error", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	if cfg.Scoring.APIToken == "changeme-token" {
		logger.Warn("API token is the built-in default; set API_TOKEN before exposing this service")
	}

	// ── Datastore ─────────────────────────────────────────────────────────────
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("open datastore: %w", err)
	}
	defer st.Close()
	logger.Info("datastore connected", zap.String("driver", st.Driver))

	// ── Services ──────────────────────────────────────────────────────────────
	engine := scoring.NewEngine(cfg.Scoring.Threshold, cfg.Scoring.ModelVersion)
	faults := faultinject.New(cfg.Scoring.FaultDelay, faultinject.WithHitRecorder(handler.RecordFault))
	gate := auth.NewGate(cfg.Scoring.APIToken)

	logRepo := repository.NewLogRepository(st.DB)
	logSvc := service.NewLogService(logRepo, logger)

	if cfg.GeoIP.CityDB != "" {
		locator, err := geo.Open(cfg.GeoIP.CityDB)
		if err != nil {
			logger.Warn("GeoIP disabled", zap.String("path", cfg.GeoIP.CityDB), zap.Error(err))
		} else {
			defer locator.Close()
			logSvc.SetGeoLocator(locator)
			logger.Info("GeoIP enabled", zap.String("path", cfg.GeoIP.CityDB))
		}
	}

	healthHandler := handler.NewHealthHandler(config.ServiceName, engine.ModelVersion(), logRepo, logger)
	scoreHandler := handler.NewScoreHandler(engine, faults, gate, logger)
	logHandler := handler.NewLogHandler(logSvc, logger)

	// ── HTTP Router ───────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return fmt.Errorf("server.trusted_proxies: %w", err)
	}
	router.Use(gin.Recovery())

	// CORS
	corsOrigins := cfg.Server.CORSOrigins
	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(corsOrigins),
		MaxAge:           12 * time.Hour,
	}))

	// Security headers
	router.Use(func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	// Request body size limit (64 KB)
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 64<<10)
		c.Next()
	})

	router.Use(handler.PrometheusMiddleware())
	router.Use(requestLogger(logger))

	healthHandler.Register(router)
	router.GET("/metrics", handler.MetricsHandler())

	v1 := router.Group("/v1")
	scoreHandler.Register(v1)

	// Per-IP rate limiting on the log browser; the engine's scoring path is never throttled.
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	var logsMW []gin.HandlerFunc
	if rps := cfg.Server.LogsRateLimit; rps > 0 {
		limiter := handler.NewIPRateLimiter(rps, rps*2)
		go limiter.RunSweeper(bgCtx, 5*time.Minute, 10*time.Minute)
		logsMW = append(logsMW, limiter.Middleware())
	}
	logHandler.Register(v1, logsMW...)

	// ── Serve ─────────────────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("gateguard-api listening",
			zap.Int("port", cfg.Server.Port),
			zap.String("model_version", engine.ModelVersion()),
			zap.Float64("threshold", engine.Threshold()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP listen error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ──────────────────────────────────────────────────────
	<-quit
	logger.Info("shutting down gateguard-api...")
	stopBackground()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("gateguard-api stopped")
	return nil
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

// requestLogger returns a Gin middleware that logs each request with zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
