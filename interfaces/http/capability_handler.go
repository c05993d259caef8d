package http

import (
	"net/http"

	"social-publisher/usecase"

	"github.com/gin-gonic/gin"
)

type ICapabilityHandler interface {
	Check(ctx *gin.Context)
}

type CapabilityHandler struct {
	tokenUsecase      usecase.ITokenUsecase
	capabilityUsecase usecase.ICapabilityUsecase
}

func NewCapabilityHandler(tokens usecase.ITokenUsecase, capabilities usecase.ICapabilityUsecase) ICapabilityHandler {
	return &CapabilityHandler{tokenUsecase: tokens, capabilityUsecase: capabilities}
}

// Check runs a live capability check. With ?cached=true the last stored snapshot is returned instead.
func (h *CapabilityHandler) Check(ctx *gin.Context) {
	ref, ok := accountRef(ctx, ctx.Param("platform"))
	if !ok {
		return
	}
	if ctx.Query("cached") == "true" {
		diag, err := h.capabilityUsecase.Latest(ctx.Request.Context(), ref)
		if err != nil {
			respondError(ctx, err, nil)
			return
		}
		if diag == nil {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "no diagnostics recorded"})
			return
		}
		ctx.JSON(http.StatusOK, diag)
		return
	}

	tok, err := h.tokenUsecase.GetValidToken(ctx.Request.Context(), ref)
	if err != nil {
		respondError(ctx, err, nil)
		return
	}
	diag, err := h.capabilityUsecase.AssertReady(ctx.Request.Context(), tok, tok.ProviderAccountID(), nil)
	if err != nil {
		respondError(ctx, err, diag)
		return
	}
	ctx.JSON(http.StatusOK, diag)
}
