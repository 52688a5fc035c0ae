package handler

import (
	"net/http"

	"github.com/aetherflow/quantumrft/internal/gateway/middleware"
	"github.com/aetherflow/quantumrft/internal/gateway/svc"
	"github.com/aetherflow/quantumrft/internal/rft/checkpoint"
)

// GetCheckpointHandler 查询一个传输任务的断点位置
func GetCheckpointHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.RequestIDFromContext(r.Context())

		id, ok := parseTransferID(w, r, requestID)
		if !ok {
			return
		}

		resumeFrom, err := svcCtx.Checkpoint.Resume(r.Context(), id)
		if err != nil {
			if err == checkpoint.ErrNoCheckpoint {
				SuccessResponse(w, map[string]interface{}{
					"transfer_id": id.String(),
					"resume_from": uint32(1),
					"has_checkpoint": false,
				}, requestID)
				return
			}
			InternalServerErrorResponse(w, "Failed to resume checkpoint: "+err.Error(), requestID)
			return
		}

		SuccessResponse(w, map[string]interface{}{
			"transfer_id":    id.String(),
			"resume_from":    resumeFrom,
			"has_checkpoint": true,
		}, requestID)
	}
}

// DeleteCheckpointHandler 删除一个传输任务的断点记录
func DeleteCheckpointHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.RequestIDFromContext(r.Context())

		id, ok := parseTransferID(w, r, requestID)
		if !ok {
			return
		}

		if err := svcCtx.Checkpoint.Forget(r.Context(), id); err != nil {
			InternalServerErrorResponse(w, "Failed to forget checkpoint: "+err.Error(), requestID)
			return
		}

		SuccessResponse(w, map[string]interface{}{"success": true}, requestID)
	}
}
