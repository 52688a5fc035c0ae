package grpcclient

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/aetherflow/quantumrft/internal/gateway/breaker"
)

// WorkerClient 通过gRPC健康检查探测一个rft-sender/rft-receiver工作节点的存活状态。
// 网关用它在派发一次传输之前确认目标节点可达，并为连接池/熔断器提供信号。
type WorkerClient struct {
	manager  *Manager
	poolName string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewWorkerClient 创建一个工作节点客户端，复用manager管理的连接池。
func NewWorkerClient(manager *Manager, poolName string, timeout time.Duration, logger *zap.Logger) *WorkerClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerClient{manager: manager, poolName: poolName, timeout: timeout, logger: logger}
}

// Check 查询工作节点上某个服务的健康状态（service为空字符串查询整体状态）。
func (c *WorkerClient) Check(ctx context.Context, service string) (grpc_health_v1.HealthCheckResponse_ServingStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.manager.GetConnection(ctx, c.poolName)
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN, fmt.Errorf("worker client: %w", err)
	}
	defer c.manager.PutConnection(c.poolName, conn)

	client := grpc_health_v1.NewHealthClient(conn)
	resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN, err
	}
	return resp.Status, nil
}

// BreakerWorkerClient wraps WorkerClient with circuit-breaker protection,
// tripping after repeated failed health checks so the gateway stops
// dispatching transfers to a worker pool that is down.
type BreakerWorkerClient struct {
	client  *WorkerClient
	breaker *breaker.CircuitBreaker
}

// NewBreakerWorkerClient constructs a breaker-protected WorkerClient.
func NewBreakerWorkerClient(client *WorkerClient, cb *breaker.CircuitBreaker) *BreakerWorkerClient {
	return &BreakerWorkerClient{client: client, breaker: cb}
}

// Check performs a breaker-protected health check.
func (c *BreakerWorkerClient) Check(ctx context.Context, service string) (grpc_health_v1.HealthCheckResponse_ServingStatus, error) {
	var status grpc_health_v1.HealthCheckResponse_ServingStatus
	var checkErr error

	breakerErr := c.breaker.ExecuteContext(ctx, func(ctx context.Context) error {
		status, checkErr = c.client.Check(ctx, service)
		return checkErr
	})
	if breakerErr != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN, breakerErr
	}
	return status, checkErr
}
