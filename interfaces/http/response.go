package http

import (
	"net/http"

	"social-publisher/domain/apperror"
	"social-publisher/domain/model"
	"social-publisher/infrastructure/logger"

	"github.com/gin-gonic/gin"
)

const (
	ErrorUnmarshal       = "Error while unmarshal"
	ErrorUnknownPlatform = "unknown platform"
)

// errorBody is the JSON shape of every failed API call.
type errorBody struct {
	Error          *apperror.StructuredError `json:"error"`
	RequiresReauth bool                      `json:"requires_reauth"`
	Retryable      bool                      `json:"retryable"`
	Result         interface{}               `json:"result,omitempty"`
}

func respondError(c *gin.Context, err error, result interface{}) {
	se, ok := apperror.As(err)
	if !ok {
		se = apperror.Internal("", err.Error(), err)
	}
	status := apperror.HTTPStatus(se)
	lg := logger.GetLogger().WithField("path", c.FullPath()).WithField("kind", se.Kind).WithField("step", se.Step)
	if status >= http.StatusInternalServerError {
		lg.WithField("error", err).Error("Request failed")
	} else {
		lg.WithField("error", se.Message).Info("Request rejected")
	}
	c.JSON(status, errorBody{Error: se, RequiresReauth: se.RequiresReauth(), Retryable: se.Retryable(), Result: result})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// accountRef resolves the caller and platform; it writes the rejection itself.
func accountRef(c *gin.Context, platform string) (model.AccountRef, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized: missing user_id"})
		return model.AccountRef{}, false
	}
	p, ok := model.ParsePlatform(platform)
	if !ok {
		badRequest(c, ErrorUnknownPlatform)
		return model.AccountRef{}, false
	}
	return model.AccountRef{UserID: userID, Platform: p}, true
}
