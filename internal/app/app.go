package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"github.com/meridian-commerce/meridian-chain/internal/blockchain"
	"github.com/meridian-commerce/meridian-chain/internal/config"
	"github.com/meridian-commerce/meridian-chain/internal/contract"
	"github.com/meridian-commerce/meridian-chain/internal/kafka"
	"github.com/meridian-commerce/meridian-chain/internal/metrics"
	"github.com/meridian-commerce/meridian-chain/internal/model"
	"github.com/meridian-commerce/meridian-chain/internal/repository"
	"github.com/meridian-commerce/meridian-chain/internal/service"
	"github.com/meridian-commerce/meridian-chain/pkg/logger"
)

// App 服务生命周期容器
type App struct {
	cfg *config.Config

	db  *gorm.DB
	rdb *redis.Client

	registry *blockchain.Registry
	gateway  *contract.Gateway

	networkRepo *repository.NetworkRepository

	settlement *service.SettlementService
	ingest     *service.IngestService

	producer  *kafka.Producer
	consumer  *kafka.Consumer
	listeners []*service.Listener

	grpcServer    *grpc.Server
	healthServer  *health.Server
	metricsServer *http.Server

	stopCh chan struct{}
}

// NewApp 按依赖顺序初始化全部组件
func NewApp(cfg *config.Config) (*App, error) {
	a := &App{
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}

	if err := a.initInfrastructure(); err != nil {
		return nil, err
	}
	if err := a.initBlockchain(); err != nil {
		return nil, err
	}
	a.initServices()
	if err := a.initKafka(); err != nil {
		return nil, err
	}
	a.initGRPC()
	return a, nil
}

// initInfrastructure 初始化数据库与 Redis
func (a *App) initInfrastructure() error {
	pg := a.cfg.Postgres
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		pg.Host, pg.Port, pg.User, pg.Password, pg.Database)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         glogger.Default.LogMode(glogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(pg.MaxConnections)
	sqlDB.SetMaxIdleConns(pg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(pg.ConnMaxLifetime) * time.Second)
	a.db = db

	if err := a.migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	a.rdb = redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addresses[0],
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
		PoolSize: a.cfg.Redis.PoolSize,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	logger.Info("基础设施初始化完成")
	return nil
}

// initBlockchain 初始化链客户端注册表并同步网络配置到数据库
func (a *App) initBlockchain() error {
	nonces := blockchain.NewNonceManager(a.rdb)
	registry, err := blockchain.NewRegistry(a.cfg.Networks, nonces)
	if err != nil {
		return err
	}
	a.registry = registry

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	registry.ConnectAll(ctx)

	base := repository.NewRepository(a.db)
	a.networkRepo = repository.NewNetworkRepository(base)
	for _, nc := range a.cfg.Networks {
		err := a.networkRepo.Upsert(ctx, &model.BlockchainNetwork{
			Name:         nc.Name,
			ChainID:      nc.ChainID,
			RPCURL:       nc.RPCURL,
			NativeSymbol: nc.NativeSymbol,
			Enabled:      true,
		})
		if err != nil {
			return fmt.Errorf("sync network %s: %w", nc.Name, err)
		}
	}

	logger.Info("链客户端初始化完成", zap.Strings("networks", registry.Networks()))
	return nil
}

// initServices 初始化仓储与业务服务
func (a *App) initServices() {
	base := repository.NewRepository(a.db)
	cashbackRepo := repository.NewCashbackRepository(base)
	walletRepo := repository.NewUserWalletRepository(base)
	contractRepo := repository.NewContractRepository(base)
	txRepo := repository.NewTransactionRepository(base)
	eventRepo := repository.NewEventRepository(base)

	confirmations := uint64(a.cfg.Settlement.Confirmations)
	a.gateway = contract.NewGateway(gatewayRegistry{a.registry}, contractRepo, txRepo, confirmations)

	a.settlement = service.NewSettlementService(
		cashbackRepo, walletRepo, txRepo, base,
		chainRegistry{a.registry}, a.gateway, deferredProducer{a},
		service.SettlementOptions{
			BatchSize:     a.cfg.Settlement.BatchSize,
			MaxRetries:    a.cfg.Settlement.MaxRetries,
			Confirmations: confirmations,
		},
	)
	a.ingest = service.NewIngestService(
		eventRepo, contractRepo, txRepo, a.settlement,
		subscriberRegistry{a.registry},
		service.IngestOptions{SweepLimit: a.cfg.Ingest.SweepLimit},
	)
}

// initKafka 初始化生产者与消费者
func (a *App) initKafka() error {
	producer, err := kafka.NewProducer(a.cfg.Kafka.Brokers)
	if err != nil {
		return err
	}
	a.producer = producer

	groupID := a.cfg.Kafka.GroupID
	if groupID == "" {
		groupID = a.cfg.Service.Name
	}
	consumer, err := kafka.NewConsumer(a.cfg.Kafka.Brokers, groupID, a.settlement)
	if err != nil {
		return err
	}
	a.consumer = consumer
	return nil
}

// initGRPC 初始化 gRPC 健康检查服务
func (a *App) initGRPC() {
	a.grpcServer = grpc.NewServer()
	a.healthServer = health.NewServer()
	healthpb.RegisterHealthServer(a.grpcServer, a.healthServer)
	a.healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
}

// Run 启动后台任务并阻塞直到 Shutdown
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-a.stopCh
		cancel()
	}()

	// gRPC 健康检查
	grpcAddr := fmt.Sprintf(":%d", a.cfg.Service.GRPCPort)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", grpcAddr, err)
	}
	go func() {
		if err := a.grpcServer.Serve(lis); err != nil {
			logger.Error("grpc 服务退出", zap.Error(err))
		}
	}()

	// Prometheus 指标
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.metricsServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.Service.MetricsPort),
		Handler: mux,
	}
	go func() {
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("指标服务退出", zap.Error(err))
		}
	}()

	a.consumer.Start(ctx)

	// 配置了管理合约的网络启动事件订阅
	for _, name := range a.registry.Networks() {
		if a.registry.ManagerContract(name) == "" {
			continue
		}
		l, err := a.ingest.Listen(ctx, name)
		if err != nil {
			logger.Warn("事件订阅启动失败", zap.String("network", name), zap.Error(err))
			continue
		}
		a.listeners = append(a.listeners, l)
	}

	a.startTickers(ctx)

	logger.Info("服务启动完成",
		zap.String("grpc", grpcAddr),
		zap.Int("metrics_port", a.cfg.Service.MetricsPort))
	<-ctx.Done()
	return nil
}

// startTickers 启动周期任务
func (a *App) startTickers(ctx context.Context) {
	go a.loop(ctx, time.Duration(a.cfg.Settlement.ProcessInterval)*time.Second, "结算扫描", func(ctx context.Context) error {
		result, err := a.settlement.ProcessPending(ctx)
		if err == nil && result.Processed > 0 {
			logger.Info("结算扫描完成", zap.Any("result", result))
		}
		return err
	})

	go a.loop(ctx, time.Duration(a.cfg.Settlement.RetryBackoff)*time.Second, "失败重试", func(ctx context.Context) error {
		result, err := a.settlement.RetryFailed(ctx)
		if err == nil && result.Processed > 0 {
			logger.Info("失败重试完成", zap.Any("result", result))
		}
		return err
	})

	go a.loop(ctx, time.Duration(a.cfg.Settlement.MonitorInterval)*time.Second, "交易监控", func(ctx context.Context) error {
		_, err := a.settlement.MonitorInFlight(ctx)
		return err
	})

	go a.loop(ctx, time.Duration(a.cfg.Settlement.ExpirySweepInterval)*time.Second, "过期取消", func(ctx context.Context) error {
		result, err := a.settlement.CancelExpired(ctx)
		if err == nil && result.Succeeded > 0 {
			logger.Info("过期取消完成", zap.Any("result", result))
		}
		return err
	})

	go a.loop(ctx, time.Duration(a.cfg.Ingest.SweepInterval)*time.Second, "事件处理", func(ctx context.Context) error {
		_, err := a.ingest.SweepPending(ctx)
		return err
	})

	go a.loop(ctx, time.Minute, "网络健康检查", func(ctx context.Context) error {
		for network, err := range a.registry.HealthCheck(ctx) {
			if err != nil {
				metrics.NetworkUp.WithLabelValues(network).Set(0)
				metrics.RPCErrors.WithLabelValues(network).Inc()
				logger.Warn("网络不健康", zap.String("network", network), zap.Error(err))
			} else {
				metrics.NetworkUp.WithLabelValues(network).Set(1)
			}
		}
		return nil
	})
}

func (a *App) loop(ctx context.Context, interval time.Duration, name string, fn func(ctx context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				logger.Error(name+"执行失败", zap.Error(err))
			}
		}
	}
}

// Shutdown 优雅停机
func (a *App) Shutdown() {
	logger.Info("开始停机")
	a.healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	close(a.stopCh)

	for _, l := range a.listeners {
		l.Close()
	}
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			logger.Error("关闭消费者失败", zap.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			logger.Error("关闭生产者失败", zap.Error(err))
		}
	}
	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.metricsServer.Shutdown(ctx)
	}
	a.grpcServer.GracefulStop()
	a.registry.Close()
	if a.rdb != nil {
		a.rdb.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
	logger.Info("停机完成")
}

// chainRegistry 适配结算服务的网络解析接口
type chainRegistry struct {
	registry *blockchain.Registry
}

func (r chainRegistry) Get(network string) (service.ChainClient, error) {
	return r.registry.Get(network)
}

func (r chainRegistry) TokenContract(network string) string {
	return r.registry.TokenContract(network)
}

func (r chainRegistry) ManagerContract(network string) string {
	return r.registry.ManagerContract(network)
}

// gatewayRegistry 适配合约网关的客户端解析接口
type gatewayRegistry struct {
	registry *blockchain.Registry
}

func (r gatewayRegistry) Get(network string) (contract.ChainCaller, error) {
	return r.registry.Get(network)
}

// subscriberRegistry 适配事件接入的订阅接口
type subscriberRegistry struct {
	registry *blockchain.Registry
}

func (r subscriberRegistry) Get(network string) (service.LogSubscriber, error) {
	return r.registry.Get(network)
}

func (r subscriberRegistry) ManagerContract(network string) string {
	return r.registry.ManagerContract(network)
}

// deferredProducer 延迟解析生产者，结算服务先于 Kafka 初始化
type deferredProducer struct {
	app *App
}

func (p deferredProducer) SendCashbackSettled(event *model.CashbackSettled) error {
	if p.app.producer == nil {
		return nil
	}
	return p.app.producer.SendCashbackSettled(event)
}

func (p deferredProducer) SendCashbackFailed(event *model.CashbackSettled) error {
	if p.app.producer == nil {
		return nil
	}
	return p.app.producer.SendCashbackFailed(event)
}
