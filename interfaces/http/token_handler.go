package http

import (
	"net/http"

	"social-publisher/usecase"

	"github.com/gin-gonic/gin"
)

type ITokenHandler interface {
	Status(ctx *gin.Context)
	Refresh(ctx *gin.Context)
}

type TokenHandler struct {
	tokenUsecase usecase.ITokenUsecase
}

func NewTokenHandler(uc usecase.ITokenUsecase) ITokenHandler {
	return &TokenHandler{tokenUsecase: uc}
}

// Status reports the refresh decision and expiry. The secret is never returned.
func (h *TokenHandler) Status(ctx *gin.Context) {
	ref, ok := accountRef(ctx, ctx.Param("platform"))
	if !ok {
		return
	}
	status, err := h.tokenUsecase.Status(ctx.Request.Context(), ref)
	if err != nil {
		respondError(ctx, err, nil)
		return
	}
	ctx.JSON(http.StatusOK, status)
}

func (h *TokenHandler) Refresh(ctx *gin.Context) {
	ref, ok := accountRef(ctx, ctx.Param("platform"))
	if !ok {
		return
	}
	if _, err := h.tokenUsecase.ForceRefresh(ctx.Request.Context(), ref); err != nil {
		respondError(ctx, err, nil)
		return
	}
	status, err := h.tokenUsecase.Status(ctx.Request.Context(), ref)
	if err != nil {
		respondError(ctx, err, nil)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"refreshed": true, "token": status})
}
