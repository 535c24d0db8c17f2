package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/meridian-commerce/meridian-chain/internal/app"
	"github.com/meridian-commerce/meridian-chain/internal/config"
	"github.com/meridian-commerce/meridian-chain/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: cfg.Service.Name,
		Environment: cfg.Service.Env,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	application, err := app.NewApp(cfg)
	if err != nil {
		logger.Fatal("初始化失败", zap.Error(err))
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("收到退出信号", zap.String("signal", sig.String()))
		application.Shutdown()
	}()

	if err := application.Run(); err != nil {
		logger.Fatal("服务运行失败", zap.Error(err))
	}
}
