package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hoangvanthinh/ses-110kv-thermal-mea/common/logger"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/config"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/fetch"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/service"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// .env 可选
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Failed to load .env: %v", err)
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	lg, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, service.ServiceName)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer lg.Sync()

	fallback, err := logger.NewFallbackLogger(cfg.Gateway.FallbackLogPath)
	if err != nil {
		lg.Fatal("Failed to initialize fallback logger", zap.Error(err))
	}
	defer fallback.Sync()

	lg.Info("Starting thermal-gateway service",
		zap.String("camera_source", cfg.Cameras.Source),
		zap.Bool("transport_enabled", cfg.Transport.Enabled),
		zap.String("transport_kind", cfg.Transport.Kind),
		zap.String("telemetry_topic", cfg.Transport.TelemetryTopic),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cameras, err := service.LoadCameras(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("Failed to load cameras", zap.Error(err))
	}

	// 创建服务
	gateway := service.NewGatewayService(cfg, cameras, fetch.NewClient(lg), lg, fallback)

	// 启动服务
	if err := gateway.Start(ctx); err != nil {
		lg.Fatal("Failed to start gateway service", zap.Error(err))
	}

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	lg.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭
	if err := gateway.Stop(context.Background()); err != nil {
		lg.Error("Error during shutdown", zap.Error(err))
	}

	lg.Info("Service stopped")
}
