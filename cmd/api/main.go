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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	goahttp "goa.design/goa/v3/http"
	"goa.design/goa/v3/http/middleware"
	goamiddleware "goa.design/goa/v3/middleware"

	"contactform/internal/config"
	"contactform/internal/metrics"
	"contactform/internal/services"
	"contactform/internal/submission"
)

const (
	shutdownTimeout = 30 * time.Second
	readTimeout     = 15 * time.Second
	idleTimeout     = 60 * time.Second

	// otherRoute labels requests that match no known route
	otherRoute = "other"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.App.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting",
		zap.String("name", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.Bool("debug", cfg.App.Debug),
		zap.String("host", cfg.App.Host),
		zap.String("port", cfg.App.Port))

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("server shutdown complete")
}

func newLogger(debug bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if debug {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zcfg.Build()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create service instances
	endpoint := submission.NewClient(cfg.Form.EndpointURL,
		submission.WithTimeout(cfg.Form.RequestTimeout),
		submission.WithLogger(logger.Named("submission")))
	formSvc := services.NewFormService(cfg.Form, endpoint, logger)
	healthSvc := services.NewHealthService(cfg.App.Name, formSvc)
	pageSvc := services.NewPageService(formSvc, logger)

	// Mount HTTP handlers
	mux := goahttp.NewMuxer()
	formSvc.MountRoutes(mux)
	healthSvc.MountRoutes(mux)
	pageSvc.MountRoutes(mux)

	// Route /metrics to Prometheus and everything else to the Goa mux
	rootHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			promhttp.Handler().ServeHTTP(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	})

	// Middleware chain: Security -> CORS -> RequestID -> Logging -> Prometheus -> Handler
	httpLogger := logger.Named("http")
	handler := setupSecurityHeaders(
		setupCORS(
			middleware.RequestID()(
				requestLogging(httpLogger,
					metrics.PrometheusMiddleware(routeOf, rootHandler))), cfg), cfg)

	addr := fmt.Sprintf("%s:%s", cfg.App.Host, cfg.App.Port)
	httpServer := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: readTimeout,
		// no WriteTimeout: submit holds the response open until the endpoint answers
		IdleTimeout: idleTimeout,
		ErrorLog:    zap.NewStdLog(httpLogger),
	}

	// Sweep idle form sessions until shutdown
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		formSvc.Run(ctx, cfg.Session.SweepInterval, cfg.Session.IdleTimeout)
	}()

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		stop()
		<-sweepDone
		return err
	case <-ctx.Done():
		logger.Info("received shutdown signal, starting graceful shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error during graceful shutdown", zap.Error(err))
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("shutdown timeout exceeded, forcing close")
			_ = httpServer.Close()
		}
	}
	<-sweepDone
	return nil
}

// routeOf labels a request path by route pattern for metrics.
// Paths outside the known routes share one label.
func routeOf(r *http.Request) string {
	path := r.URL.Path
	switch path {
	case "/", "/health", "/metrics", services.SessionsPath:
		return path
	}
	rest, ok := strings.CutPrefix(path, services.SessionsPath+"/")
	if !ok || rest == "" {
		return otherRoute
	}
	id, action, nested := strings.Cut(rest, "/")
	if id == "" {
		return otherRoute
	}
	if !nested {
		return services.SessionsPath + "/{id}"
	}
	switch action {
	case "change", "blur", "challenge", "submit":
		return services.SessionsPath + "/{id}/" + action
	}
	return otherRoute
}

// setupSecurityHeaders adds security headers to responses
func setupSecurityHeaders(handler http.Handler, cfg *config.Config) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		// HSTS (only in production with HTTPS)
		if !cfg.App.Debug && r.TLS != nil {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		handler.ServeHTTP(w, r)
	})
}

// setupCORS configures CORS based on environment
func setupCORS(handler http.Handler, cfg *config.Config) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// In production, validate against allowed origins
		if !cfg.App.Debug && len(cfg.CORS.AllowedOrigins) > 0 && cfg.CORS.AllowedOrigins[0] != "*" {
			allowed := false
			for _, allowedOrigin := range cfg.CORS.AllowedOrigins {
				if origin == allowedOrigin {
					allowed = true
					break
				}
			}
			if !allowed && origin != "" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
		}

		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if cfg.App.Debug {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		w.Header().Set("Access-Control-Allow-Methods", strings.Join(cfg.CORS.AllowedMethods, ", "))
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(cfg.CORS.AllowedHeaders, ", "))
		w.Header().Set("Access-Control-Expose-Headers", "Content-Type, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", cfg.CORS.MaxAge))

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		handler.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// requestLogging logs all incoming requests and their responses
func requestLogging(logger *zap.Logger, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Skip logging for health checks to reduce noise
		if r.URL.Path == "/health" {
			handler.ServeHTTP(w, r)
			return
		}

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler.ServeHTTP(wrapped, r)

		reqID, _ := r.Context().Value(goamiddleware.RequestIDKey).(string)
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", r.RemoteAddr),
			zap.String("request_id", reqID),
		}
		if wrapped.statusCode >= 500 {
			logger.Warn("request completed", fields...)
			return
		}
		logger.Info("request completed", fields...)
	})
}
