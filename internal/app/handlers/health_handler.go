package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthTimeout = 3 * time.Second

type HeightReader interface {
	LatestBlockHeight(ctx context.Context) (int64, error)
}

type HealthHandler struct {
	nodeID  string
	heights HeightReader
}

func NewHealthHandler(nodeID string, heights HeightReader) *HealthHandler {
	return &HealthHandler{nodeID: nodeID, heights: heights}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	height, err := h.heights.LatestBlockHeight(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "degraded",
			"node_id": h.nodeID,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"node_id":      h.nodeID,
		"block_height": height,
	})
}
