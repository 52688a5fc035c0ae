package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/aetherflow/quantumrft/internal/gateway/middleware"
	"github.com/aetherflow/quantumrft/internal/gateway/svc"
	"github.com/aetherflow/quantumrft/internal/gateway/websocket"
	"github.com/aetherflow/quantumrft/internal/rft/registry"
	"github.com/aetherflow/quantumrft/pkg/guuid"
)

// SubmitTransferHandler 提交一个新的传输任务
func SubmitTransferHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.RequestIDFromContext(r.Context())

		var req struct {
			Filename     string `json:"filename"`
			TotalChunks  uint32 `json:"total_chunks"`
			ChunkSize    int    `json:"chunk_size"`
			SenderAddr   string `json:"sender_addr"`
			ReceiverAddr string `json:"receiver_addr"`
		}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			BadRequestResponse(w, "Invalid request body", requestID)
			return
		}
		if req.Filename == "" || req.TotalChunks == 0 {
			BadRequestResponse(w, "filename and total_chunks are required", requestID)
			return
		}

		receiverAddr, err := resolveReceiverAddr(r.Context(), svcCtx, req.ReceiverAddr)
		if err != nil {
			BadRequestResponse(w, "Failed to resolve a receiver: "+err.Error(), requestID)
			return
		}

		job, err := svcCtx.Registry.Submit(r.Context(), req.Filename, req.TotalChunks, req.ChunkSize, req.SenderAddr, receiverAddr)
		if err != nil {
			InternalServerErrorResponse(w, "Failed to submit transfer: "+err.Error(), requestID)
			return
		}

		if svcCtx.Tracer != nil {
			_, span := svcCtx.Tracer.StartTransferSpan(r.Context(), job.TransferID.String(), job.Filename)
			span.End()
		}

		SuccessResponse(w, job, requestID)
	}
}

// resolveReceiverAddr picks the receiver endpoint a new transfer job
// dispatches to. When discovery is enabled it ignores any
// client-supplied address and instead resolves a live receiver via the
// service resolver, choosing the instance with the fewest in-flight
// (non-terminal) transfers currently assigned to it. With discovery
// disabled, the caller-supplied address is trusted as before.
func resolveReceiverAddr(ctx context.Context, svcCtx *svc.ServiceContext, requested string) (string, error) {
	if svcCtx.ServiceResolver == nil || !svcCtx.Config.GRPC.Worker.UseDiscovery {
		if requested == "" {
			return "", fmt.Errorf("receiver_addr is required: discovery is disabled")
		}
		return requested, nil
	}

	serviceName := svcCtx.Config.GRPC.Worker.DiscoveryName
	jobs, _, err := svcCtx.Registry.List(ctx, &registry.Filter{})
	if err != nil {
		return "", fmt.Errorf("failed to list in-flight transfers: %w", err)
	}

	inFlight := make(map[string]int)
	for _, job := range jobs {
		if !job.IsTerminal() {
			inFlight[job.ReceiverAddr]++
		}
	}

	return svcCtx.ServiceResolver.PickLeastLoaded(serviceName, inFlight)
}

// GetTransferHandler 查询单个传输任务
func GetTransferHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.RequestIDFromContext(r.Context())

		id, ok := parseTransferID(w, r, requestID)
		if !ok {
			return
		}

		job, err := svcCtx.Registry.Get(r.Context(), id)
		if err != nil {
			NotFoundResponse(w, "Transfer not found", requestID)
			return
		}

		SuccessResponse(w, job, requestID)
	}
}

// ListTransfersHandler 列出传输任务，可按状态过滤
func ListTransfersHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.RequestIDFromContext(r.Context())

		filter := &registry.Filter{}
		if s := r.URL.Query().Get("state"); s != "" {
			if state, ok := parseState(s); ok {
				filter.State = &state
			}
		}
		if l := r.URL.Query().Get("limit"); l != "" {
			if n, err := strconv.Atoi(l); err == nil {
				filter.Limit = n
			}
		}
		if o := r.URL.Query().Get("offset"); o != "" {
			if n, err := strconv.Atoi(o); err == nil {
				filter.Offset = n
			}
		}

		jobs, total, err := svcCtx.Registry.List(r.Context(), filter)
		if err != nil {
			InternalServerErrorResponse(w, "Failed to list transfers: "+err.Error(), requestID)
			return
		}

		SuccessResponse(w, map[string]interface{}{
			"transfers": jobs,
			"total":     total,
		}, requestID)
	}
}

// CancelTransferHandler 取消一个传输任务
func CancelTransferHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.RequestIDFromContext(r.Context())

		id, ok := parseTransferID(w, r, requestID)
		if !ok {
			return
		}

		job, err := svcCtx.Registry.Cancel(r.Context(), id)
		if err != nil {
			InternalServerErrorResponse(w, "Failed to cancel transfer: "+err.Error(), requestID)
			return
		}

		svcCtx.WSServer.Broadcast(websocket.NewMessage(websocket.MessageTypeNotify, websocket.NotifyData{
			Channel: "transfers",
			Event:   "cancelled",
			Data:    job,
		}))
		SuccessResponse(w, job, requestID)
	}
}

func parseState(s string) (registry.State, bool) {
	for _, st := range []registry.State{
		registry.StatePending, registry.StateActive, registry.StateCompleted,
		registry.StateFailed, registry.StateCancelled,
	} {
		if st.String() == s {
			return st, true
		}
	}
	return 0, false
}

func parseTransferID(w http.ResponseWriter, r *http.Request, requestID string) (guuid.GUUID, bool) {
	idStr := r.URL.Query().Get("transfer_id")
	if idStr == "" {
		BadRequestResponse(w, "transfer_id is required", requestID)
		return guuid.GUUID{}, false
	}
	id, err := guuid.FromString(idStr)
	if err != nil {
		BadRequestResponse(w, "Invalid transfer_id", requestID)
		return guuid.GUUID{}, false
	}
	return id, true
}
