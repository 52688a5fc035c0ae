package svc

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aetherflow/quantumrft/internal/gateway/breaker"
	"github.com/aetherflow/quantumrft/internal/gateway/config"
	"github.com/aetherflow/quantumrft/internal/gateway/discovery"
	"github.com/aetherflow/quantumrft/internal/gateway/grpcclient"
	"github.com/aetherflow/quantumrft/internal/gateway/jwt"
	"github.com/aetherflow/quantumrft/internal/gateway/metrics"
	"github.com/aetherflow/quantumrft/internal/gateway/tracing"
	"github.com/aetherflow/quantumrft/internal/gateway/websocket"
	"github.com/aetherflow/quantumrft/internal/rft/checkpoint"
	"github.com/aetherflow/quantumrft/internal/rft/registry"
)

// ServiceContext 服务上下文
type ServiceContext struct {
	Config           config.Config
	Logger           *zap.Logger
	WSServer         *websocket.Server
	JWTManager       *jwt.JWTManager
	Tracer           *tracing.Tracer
	Metrics          *metrics.Metrics
	MetricsCollector *metrics.Collector

	// 传输任务控制面
	Registry   *registry.Manager
	Checkpoint *checkpoint.Manager

	// gRPC客户端（派发到rft工作节点）
	GRPCManager  *grpcclient.Manager
	WorkerClient *grpcclient.BreakerWorkerClient

	// 服务发现
	EtcdClient      *discovery.EtcdClient
	ServiceResolver *discovery.ServiceResolver

	// 熔断器
	BreakerManager *breaker.Manager
}

// NewServiceContext 创建服务上下文
func NewServiceContext(c config.Config) *ServiceContext {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}

	wsServer := websocket.NewServer(logger)

	jwtManager := jwt.NewJWTManager(
		c.JWT.Secret,
		c.JWT.Expire,
		c.JWT.RefreshExpire,
		c.JWT.Issuer,
	)

	tracingConfig := &tracing.Config{
		Enable:       c.Tracing.Enable,
		ServiceName:  c.Tracing.ServiceName,
		Endpoint:     c.Tracing.Endpoint,
		Exporter:     c.Tracing.Exporter,
		SampleRate:   c.Tracing.SampleRate,
		Environment:  c.Tracing.Environment,
		BatchTimeout: c.Tracing.BatchTimeout,
		MaxQueueSize: c.Tracing.MaxQueueSize,
	}
	tracer, err := tracing.NewTracer(tracingConfig, logger)
	if err != nil {
		logger.Error("Failed to create tracer", zap.Error(err))
		panic(fmt.Sprintf("Tracing initialization failed: %v", err))
	}

	metricsCollector := metrics.NewMetrics("aetherflow", "gateway")
	collector := metrics.NewCollector(metricsCollector, logger)
	collector.Start()
	logger.Info("Metrics collector started")

	var etcdClient *discovery.EtcdClient
	var serviceResolver *discovery.ServiceResolver

	if c.Etcd.Enable {
		etcdConfig := &discovery.Config{
			Endpoints:   c.Etcd.Endpoints,
			DialTimeout: time.Duration(c.Etcd.DialTimeout) * time.Second,
			Username:    c.Etcd.Username,
			Password:    c.Etcd.Password,
		}

		var err error
		etcdClient, err = discovery.NewEtcdClient(etcdConfig, logger)
		if err != nil {
			logger.Error("Failed to create Etcd client", zap.Error(err))
			panic(fmt.Sprintf("Etcd initialization failed: %v", err))
		}

		serviceKey := fmt.Sprintf("/services/%s/%s", c.Etcd.ServiceName, c.Etcd.ServiceAddr)
		if err := etcdClient.Register(serviceKey, c.Etcd.ServiceAddr, c.Etcd.ServiceTTL); err != nil {
			logger.Error("Failed to register service", zap.Error(err))
			panic(fmt.Sprintf("Service registration failed: %v", err))
		}

		serviceResolver = discovery.NewServiceResolver(etcdClient, logger)
		logger.Info("Etcd service discovery initialized",
			zap.Strings("endpoints", c.Etcd.Endpoints),
			zap.String("service", c.Etcd.ServiceName),
		)
	}

	var breakerManager *breaker.Manager
	if c.Breaker.Enable {
		breakerManager = breaker.NewManager(logger)
		logger.Info("Circuit breaker enabled",
			zap.Float64("threshold", c.Breaker.Threshold),
			zap.Uint32("min_requests", c.Breaker.MinRequests),
		)
	}

	grpcManager := grpcclient.NewManager(logger)

	workerDialOpts := grpcclient.GetTracingDialOptions(tracer)
	grpcManager.RegisterPool(
		"worker",
		c.GRPC.Worker.Target,
		c.GRPC.Pool.MaxIdle,
		c.GRPC.Pool.MaxActive,
		time.Duration(c.GRPC.Pool.IdleTimeout)*time.Second,
		workerDialOpts...,
	)

	if c.GRPC.Worker.UseDiscovery && serviceResolver != nil {
		serviceName := c.GRPC.Worker.DiscoveryName
		if serviceName == "" {
			serviceName = "worker"
		}
		if err := serviceResolver.Discover(serviceName); err != nil {
			logger.Error("Failed to discover worker nodes", zap.Error(err))
		} else if workerPool := grpcManager.GetPool("worker"); workerPool != nil {
			serviceResolver.AddUpdateListener(serviceName, func(svcName string, addresses []string) {
				logger.Info("Worker node addresses updated",
					zap.String("service", svcName),
					zap.Strings("addresses", addresses),
				)
				workerPool.UpdateAddresses(addresses)
			})
		}
	}

	rawWorkerClient := grpcclient.NewWorkerClient(
		grpcManager,
		"worker",
		time.Duration(c.GRPC.Worker.Timeout)*time.Millisecond,
		logger,
	)

	workerBreakerConfig := breaker.Config{
		MaxRequests: c.Breaker.HalfOpenRequests,
		Interval:    10 * time.Second,
		Timeout:     time.Duration(c.Breaker.Timeout) * time.Second,
		ReadyToTrip: func(counts breaker.Counts) bool {
			return counts.Requests >= c.Breaker.MinRequests &&
				(counts.ErrorRate() >= c.Breaker.Threshold ||
					counts.ConsecutiveFailures >= c.Breaker.ConsecutiveFailures)
		},
	}
	var workerBreaker *breaker.CircuitBreaker
	if breakerManager != nil {
		workerBreaker = breakerManager.GetOrCreate("worker", workerBreakerConfig)
	} else {
		workerBreaker = breaker.NewCircuitBreaker("worker", workerBreakerConfig, logger)
	}
	workerClient := grpcclient.NewBreakerWorkerClient(rawWorkerClient, workerBreaker)

	registryManager, err := newRegistryManager(c, logger)
	if err != nil {
		panic(fmt.Sprintf("registry store initialization failed: %v", err))
	}
	checkpointManager := newCheckpointManager(c, logger)

	return &ServiceContext{
		Config:           c,
		Logger:           logger,
		WSServer:         wsServer,
		JWTManager:       jwtManager,
		Tracer:           tracer,
		Metrics:          metricsCollector,
		MetricsCollector: collector,
		Registry:         registryManager,
		Checkpoint:       checkpointManager,
		GRPCManager:      grpcManager,
		WorkerClient:     workerClient,
		EtcdClient:       etcdClient,
		ServiceResolver:  serviceResolver,
		BreakerManager:   breakerManager,
	}
}

func newRegistryManager(c config.Config, logger *zap.Logger) (*registry.Manager, error) {
	var store registry.Store
	switch c.Registry.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: c.Registry.RedisAddr})
		redisStore, err := registry.NewRedisStore(&registry.RedisStoreConfig{Client: rdb, Logger: logger})
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		store = registry.NewMemoryStore()
	}
	return registry.NewManager(&registry.ManagerConfig{Store: store, Logger: logger}), nil
}

func newCheckpointManager(c config.Config, logger *zap.Logger) *checkpoint.Manager {
	var store checkpoint.Store
	switch c.Checkpoint.Backend {
	case "postgres":
		db, err := sql.Open("postgres", c.Checkpoint.DSN)
		if err != nil {
			logger.Error("Failed to open checkpoint database", zap.Error(err))
			panic(fmt.Sprintf("checkpoint database initialization failed: %v", err))
		}
		pgStore, err := checkpoint.NewPostgresStore(&checkpoint.PostgresStoreConfig{DB: db, Logger: logger})
		if err != nil {
			panic(fmt.Sprintf("checkpoint store initialization failed: %v", err))
		}
		store = pgStore
	default:
		store = checkpoint.NewMemoryStore()
	}
	return checkpoint.NewManager(store, logger)
}

// Close 关闭服务上下文
func (ctx *ServiceContext) Close() {
	if ctx.MetricsCollector != nil {
		ctx.MetricsCollector.Stop()
	}

	if ctx.Tracer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ctx.Tracer.Shutdown(shutdownCtx); err != nil {
			ctx.Logger.Error("Failed to shutdown tracer", zap.Error(err))
		}
	}

	if ctx.Registry != nil {
		ctx.Registry.Close()
	}

	if ctx.EtcdClient != nil {
		if err := ctx.EtcdClient.Unregister(); err != nil {
			ctx.Logger.Error("Failed to unregister service", zap.Error(err))
		}
		if err := ctx.EtcdClient.Close(); err != nil {
			ctx.Logger.Error("Failed to close Etcd client", zap.Error(err))
		}
	}

	if ctx.WSServer != nil {
		ctx.WSServer.Close()
	}

	if ctx.GRPCManager != nil {
		if err := ctx.GRPCManager.Close(); err != nil {
			ctx.Logger.Error("Failed to close gRPC manager", zap.Error(err))
		}
	}

	if ctx.Logger != nil {
		_ = ctx.Logger.Sync()
	}
}
