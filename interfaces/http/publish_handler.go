package http

import (
	"net/http"
	"strconv"

	"social-publisher/domain/model"
	"social-publisher/infrastructure/logger"
	"social-publisher/usecase"

	"github.com/gin-gonic/gin"
)

type IPublishHandler interface {
	Publish(ctx *gin.Context)
	Resume(ctx *gin.Context)
	ListAttempts(ctx *gin.Context)
	ProcessJobs(ctx *gin.Context)
}

type PublishHandler struct {
	publishUsecase usecase.IPublishUsecase
}

func NewPublishHandler(uc usecase.IPublishUsecase) IPublishHandler {
	return &PublishHandler{publishUsecase: uc}
}

type publishRequest struct {
	Platform  string `json:"platform" binding:"required"`
	MediaURL  string `json:"media_url" binding:"required"`
	Caption   string `json:"caption"`
	MediaType string `json:"media_type"`
	Async     bool   `json:"async"`
}

type resumeRequest struct {
	Platform  string `json:"platform" binding:"required"`
	Caption   string `json:"caption"`
	AttemptID string `json:"attempt_id"`
}

func (h *PublishHandler) Publish(ctx *gin.Context) {
	var req publishRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		logger.GetLogger().WithField("error", err).Error(ErrorUnmarshal)
		badRequest(ctx, "invalid request body")
		return
	}
	ref, ok := accountRef(ctx, req.Platform)
	if !ok {
		return
	}
	in := model.PublishRequest{Account: ref, MediaURL: req.MediaURL, Caption: req.Caption}
	switch req.MediaType {
	case "":
	case string(model.MediaKindImage), string(model.MediaKindVideo):
		in.Kind = model.MediaKind(req.MediaType)
	default:
		badRequest(ctx, "media_type must be image or video")
		return
	}

	if req.Async {
		job, err := h.publishUsecase.Enqueue(ctx.Request.Context(), in)
		if err != nil {
			respondError(ctx, err, nil)
			return
		}
		ctx.JSON(http.StatusAccepted, gin.H{"queued": true, "job": job})
		return
	}

	res, err := h.publishUsecase.Publish(ctx.Request.Context(), in)
	if err != nil {
		respondError(ctx, err, resultOrNil(res))
		return
	}
	ctx.JSON(http.StatusOK, res)
}

func (h *PublishHandler) Resume(ctx *gin.Context) {
	var req resumeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "invalid request body")
		return
	}
	ref, ok := accountRef(ctx, req.Platform)
	if !ok {
		return
	}
	res, err := h.publishUsecase.Resume(ctx.Request.Context(), model.ResumeRequest{
		Account:     ref,
		ContainerID: ctx.Param("containerId"),
		Caption:     req.Caption,
		AttemptID:   req.AttemptID,
	})
	if err != nil {
		respondError(ctx, err, resultOrNil(res))
		return
	}
	ctx.JSON(http.StatusOK, res)
}

func (h *PublishHandler) ListAttempts(ctx *gin.Context) {
	userID := ctx.GetString("user_id")
	if userID == "" {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized: missing user_id"})
		return
	}
	limit := 20
	if v := ctx.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	list, err := h.publishUsecase.ListAttempts(ctx.Request.Context(), userID, limit)
	if err != nil {
		respondError(ctx, err, nil)
		return
	}
	if list == nil {
		list = []*model.PublishAttempt{}
	}
	ctx.JSON(http.StatusOK, gin.H{"attempts": list})
}

// ProcessJobs allows manual triggering of pending publish job processing (admin/dev utility)
func (h *PublishHandler) ProcessJobs(ctx *gin.Context) {
	batchSize := 10
	if v := ctx.Query("batch"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			batchSize = n
		}
	}
	summary, err := h.publishUsecase.ProcessPending(ctx.Request.Context(), batchSize)
	if err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"processed": false, "error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"processed": true, "batch": batchSize, "summary": summary})
}

func resultOrNil(res *model.PublishResult) interface{} {
	if res == nil {
		return nil
	}
	return res
}
