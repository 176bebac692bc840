package main

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"bugbounty-tracker/internal/api"
	"bugbounty-tracker/internal/config"
	"bugbounty-tracker/internal/metrics"
	"bugbounty-tracker/internal/middleware"
	"bugbounty-tracker/internal/report"
	"bugbounty-tracker/internal/storage"
	"bugbounty-tracker/internal/ui"
)

const maxBodyBytes = 10 << 20

// buildHandler 创建所有服务并集中注册路由, 返回包装好中间件的根 handler
func buildHandler(cfg *config.Config, logger *zap.Logger, db *storage.DB, m *metrics.Metrics) (http.Handler, error) {
	reportService, err := report.NewService(db.DB, logger.Named("report"))
	if err != nil {
		return nil, err
	}
	reportHandler := report.NewHandler(reportService, logger.Named("api"), m, cfg.Development())

	uiHandler, err := ui.NewHandler(reportService, logger.Named("ui"), m)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	reportHandler.Register(mux)
	uiHandler.Register(mux)
	mux.HandleFunc("GET /health", healthHandler(db, cfg.Env))
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		api.Error(w, http.StatusNotFound, "Route not found")
	})

	apiLimiter := middleware.NewRateLimiter("api", cfg.RateLimitMax, cfg.RateLimitWindow,
		"Too many requests from this IP, please try again later.")
	apiLimiter.Skip = func(r *http.Request) bool {
		return !strings.HasPrefix(r.URL.Path, "/api/")
	}

	writeLimiter := middleware.NewRateLimiter("write", cfg.RateLimitWriteMax, cfg.RateLimitWindow,
		"Too many bug submissions, please try again later.")
	writeLimiter.Skip = func(r *http.Request) bool {
		return !isReportWrite(r)
	}

	for _, l := range []*middleware.RateLimiter{apiLimiter, writeLimiter} {
		l.TrustProxy = cfg.TrustProxy
		l.Logger = logger.Named("ratelimit")
		l.Metrics = m
	}

	return middleware.Chain(mux,
		middleware.Observe(logger.Named("http"), m, cfg.TrustProxy),
		middleware.Recover(logger, cfg.Development()),
		middleware.SecurityHeaders,
		middleware.CORS(cfg.CORSOrigin),
		apiLimiter.Middleware,
		writeLimiter.Middleware,
		middleware.BodyLimit(maxBodyBytes),
	), nil
}

// isReportWrite 匹配会创建、修改或删除报告的请求 (API 和页面表单)
func isReportWrite(r *http.Request) bool {
	if !middleware.IsWrite(r) {
		return false
	}
	p := r.URL.Path
	return p == "/api/bugs" || strings.HasPrefix(p, "/api/bugs/") || p == "/reports"
}

// healthHandler handles GET /health
func healthHandler(db *storage.DB, env string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := "disconnected"
		if db.Connected(r.Context()) {
			state = "connected"
		}
		api.JSON(w, http.StatusOK, map[string]interface{}{
			"success":     true,
			"message":     "Bug Bounty API is running",
			"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
			"database":    state,
			"environment": env,
		})
	}
}
