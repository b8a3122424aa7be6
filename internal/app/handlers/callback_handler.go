package handlers

import (
	"context"
	"net/http"

	"idp-node/internal/app/callback"
	"idp-node/pkg/logger"

	"github.com/gin-gonic/gin"
)

type CallbackURLs interface {
	Update(ctx context.Context, patch callback.URLPatch) error
	Snapshot() callback.URLPatch
}

type CallbackHandler struct {
	URLs CallbackURLs
	log  *logger.Logger
}

func NewCallbackHandler(urls CallbackURLs, log *logger.Logger) *CallbackHandler {
	return &CallbackHandler{URLs: urls, log: log.WithStr("handler", "callback")}
}

// SetCallbackURLs updates the URLs present in the body. An empty string
// clears a URL.
func (h *CallbackHandler) SetCallbackURLs(c *gin.Context) {
	var req callback.URLPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	if err := h.URLs.Update(c.Request.Context(), req); err != nil {
		h.log.Error(err, "Could not save callback urls")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not save callback urls"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CallbackHandler) GetCallbackURLs(c *gin.Context) {
	c.JSON(http.StatusOK, h.URLs.Snapshot())
}
