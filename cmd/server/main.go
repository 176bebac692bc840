package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"bugbounty-tracker/internal/config"
	"bugbounty-tracker/internal/logging"
	"bugbounty-tracker/internal/metrics"
	"bugbounty-tracker/internal/storage"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %+v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// 1. 加载配置
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Development())
	if err != nil {
		return errors.Wrap(err, "init logger")
	}
	defer func() { _ = logger.Sync() }()
	defer zap.ReplaceGlobals(logger)()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. 打开数据库 (启动时初始化一次)
	dsn := cfg.DSN
	if dsn == "" {
		if dsn, err = storage.DefaultDSN(cfg.DataDir); err != nil {
			return err
		}
	}
	db, err := storage.Open(ctx, dsn, logger.Named("storage"))
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("关闭数据库连接时出错", zap.Error(err))
		}
	}()

	// 3. 创建服务并注册路由
	handler, err := buildHandler(cfg, logger, db, metrics.New())
	if err != nil {
		return err
	}

	// 4. 配置并启动服务器
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	logger.Info("server running",
		zap.Int("port", cfg.Port),
		zap.String("environment", cfg.Env),
		zap.String("cors_origin", cfg.CORSOrigin))

	select {
	case err := <-errCh:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	// 5. 收到终止信号后优雅退出
	logger.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}
