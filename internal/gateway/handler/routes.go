package handler

import (
	"github.com/aetherflow/quantumrft/internal/gateway/svc"
	"github.com/zeromicro/go-zero/rest"
)

// RegisterHandlers 注册所有路由
func RegisterHandlers(server *rest.Server, svcCtx *svc.ServiceContext) {
	// 健康检查和监控
	server.AddRoutes(
		[]rest.Route{
			{
				Method:  "GET",
				Path:    "/health",
				Handler: HealthCheckHandler(svcCtx),
			},
			{
				Method:  "GET",
				Path:    "/ping",
				Handler: PingHandler(svcCtx),
			},
			{
				Method:  "GET",
				Path:    "/version",
				Handler: VersionHandler(svcCtx),
			},
			{
				Method:  "GET",
				Path:    "/ws",
				Handler: WebSocketHandler(svcCtx),
			},
			{
				Method:  "GET",
				Path:    "/ws/stats",
				Handler: WebSocketStatsHandler(svcCtx),
			},
		},
	)

	// 传输任务路由
	server.AddRoutes(
		[]rest.Route{
			{
				Method:  "POST",
				Path:    "/transfers",
				Handler: SubmitTransferHandler(svcCtx),
			},
			{
				Method:  "GET",
				Path:    "/transfers",
				Handler: ListTransfersHandler(svcCtx),
			},
			{
				Method:  "GET",
				Path:    "/transfers/get",
				Handler: GetTransferHandler(svcCtx),
			},
			{
				Method:  "POST",
				Path:    "/transfers/cancel",
				Handler: CancelTransferHandler(svcCtx),
			},
		},
		rest.WithPrefix("/api/v1"),
	)

	// 断点续传路由
	server.AddRoutes(
		[]rest.Route{
			{
				Method:  "GET",
				Path:    "/checkpoints/get",
				Handler: GetCheckpointHandler(svcCtx),
			},
			{
				Method:  "POST",
				Path:    "/checkpoints/delete",
				Handler: DeleteCheckpointHandler(svcCtx),
			},
		},
		rest.WithPrefix("/api/v1"),
	)

	// 认证路由
	server.AddRoutes(
		[]rest.Route{
			{
				Method:  "POST",
				Path:    "/auth/login",
				Handler: LoginHandler(svcCtx),
			},
			{
				Method:  "POST",
				Path:    "/auth/refresh",
				Handler: RefreshTokenHandler(svcCtx),
			},
			{
				Method:  "GET",
				Path:    "/auth/me",
				Handler: MeHandler(svcCtx),
			},
		},
		rest.WithPrefix("/api/v1"),
	)

	// 熔断器状态路由
	server.AddRoutes(
		[]rest.Route{
			{
				Method:  "GET",
				Path:    "/breaker/stats",
				Handler: BreakerStatsHandler(svcCtx),
			},
			{
				Method:  "POST",
				Path:    "/breaker/reset",
				Handler: BreakerResetHandler(svcCtx),
			},
		},
		rest.WithPrefix("/api/v1"),
	)
}
