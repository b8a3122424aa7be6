package handlers

import (
	"context"
	"net/http"

	"idp-node/internal/app/chain"
	"idp-node/internal/app/idp"
	"idp-node/internal/app/model"
	"idp-node/pkg/logger"

	"github.com/gin-gonic/gin"
)

type ResponseCreator interface {
	CreateIdpResponse(ctx context.Context, in idp.ResponseInput) (chain.TxResult, error)
}

type ResponseHandler struct {
	Responder ResponseCreator
	log       *logger.Logger
}

func NewResponseHandler(responder ResponseCreator, log *logger.Logger) *ResponseHandler {
	return &ResponseHandler{Responder: responder, log: log.WithStr("handler", "response")}
}

type createResponseRequest struct {
	RequestID      string               `json:"request_id" binding:"required"`
	Ial            float64              `json:"ial" binding:"required"`
	Aal            float64              `json:"aal" binding:"required"`
	Status         model.ResponseStatus `json:"status" binding:"required,oneof=accept reject"`
	Signature      string               `json:"signature"`
	AccessorID     string               `json:"accessor_id" binding:"required"`
	Secret         string               `json:"secret"`
	RequestMessage string               `json:"request_message"`
}

func (h *ResponseHandler) CreateIdpResponse(c *gin.Context) {
	var req createResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	result, err := h.Responder.CreateIdpResponse(c.Request.Context(), idp.ResponseInput{
		RequestID:      req.RequestID,
		Ial:            req.Ial,
		Aal:            req.Aal,
		Status:         req.Status,
		Signature:      req.Signature,
		AccessorID:     req.AccessorID,
		Secret:         req.Secret,
		RequestMessage: req.RequestMessage,
	})
	if err != nil {
		h.log.Errorf(err, "Could not create response to %s", req.RequestID)
		abortWithError(c, err)
		return
	}
	if result.TemporarilyUnavailable {
		unavailable(c)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"request_id": req.RequestID,
		"height":     result.Height,
	})
}
