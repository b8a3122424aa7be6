package handlers

import (
	"context"
	"net/http"

	"idp-node/internal/app/idp"
	"idp-node/internal/app/keys"
	"idp-node/internal/app/model"
	"idp-node/internal/app/onboarding"
	"idp-node/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const addAccessorType = "AddAccessor"

type IdentityCreator interface {
	CreateIdentity(ctx context.Context, in idp.IdentityInput) (idp.CreatedIdentity, error)
}

type OnboardingStarter interface {
	Begin(ctx context.Context, in onboarding.BeginInput) error
}

type IdentityHandler struct {
	Identities IdentityCreator
	Onboarding OnboardingStarter
	log        *logger.Logger
}

func NewIdentityHandler(identities IdentityCreator, onboarding OnboardingStarter, log *logger.Logger) *IdentityHandler {
	return &IdentityHandler{
		Identities: identities,
		Onboarding: onboarding,
		log:        log.WithStr("handler", "identity"),
	}
}

type createIdentityRequest struct {
	Namespace          string  `json:"namespace" binding:"required"`
	Identifier         string  `json:"identifier" binding:"required"`
	AccessorType       string  `json:"accessor_type" binding:"required"`
	AccessorPublicKey  string  `json:"accessor_public_key" binding:"required"`
	AccessorID         string  `json:"accessor_id"`
	ReferenceGroupCode string  `json:"reference_group_code"`
	Ial                float64 `json:"ial"`
}

func (h *IdentityHandler) CreateIdentity(c *gin.Context) {
	var req createIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if req.AccessorID == "" {
		req.AccessorID = uuid.NewString()
	}

	created, err := h.Identities.CreateIdentity(c.Request.Context(), idp.IdentityInput{
		Namespace:          req.Namespace,
		Identifier:         req.Identifier,
		AccessorType:       req.AccessorType,
		AccessorPublicKey:  req.AccessorPublicKey,
		AccessorID:         req.AccessorID,
		ReferenceGroupCode: req.ReferenceGroupCode,
		Ial:                req.Ial,
	})
	if err != nil {
		h.log.Errorf(err, "Could not create identity %s:%s", req.Namespace, req.Identifier)
		abortWithError(c, err)
		return
	}
	if created.Result.TemporarilyUnavailable {
		unavailable(c)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"hash_id":              created.HashID,
		"reference_group_code": created.ReferenceGroupCode,
		"accessor_id":          created.AccessorID,
		"height":               created.Result.Height,
	})
}

type addAccessorRequest struct {
	Namespace         string `json:"namespace" binding:"required"`
	Identifier        string `json:"identifier" binding:"required"`
	ReferenceID       string `json:"reference_id" binding:"required"`
	CallbackURL       string `json:"callback_url" binding:"omitempty,url"`
	AccessorType      string `json:"accessor_type" binding:"required"`
	AccessorPublicKey string `json:"accessor_public_key" binding:"required"`
	AccessorID        string `json:"accessor_id"`
}

// AddAccessor opens an onboarding session. The outcome is posted to the
// request's callback_url once consent is evaluated, or announced as
// onboard_consent_request on the incoming request URL when there is none.
func (h *IdentityHandler) AddAccessor(c *gin.Context) {
	var req addAccessorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if _, err := keys.ParseAndValidate([]byte(req.AccessorPublicKey), req.AccessorType); err != nil {
		abortWithError(c, err)
		return
	}
	if req.AccessorID == "" {
		req.AccessorID = uuid.NewString()
	}

	requestID := uuid.NewString()
	continuation, err := resultContinuation(requestID, req)
	if err != nil {
		abortWithError(c, err)
		return
	}

	err = h.Onboarding.Begin(c.Request.Context(), onboarding.BeginInput{
		RequestID: requestID,
		Identity: model.PendingIdentity{
			Type:              addAccessorType,
			Namespace:         req.Namespace,
			Identifier:        req.Identifier,
			AccessorID:        req.AccessorID,
			AccessorPublicKey: req.AccessorPublicKey,
			AccessorType:      req.AccessorType,
		},
		Challenge:    uuid.NewString(),
		Continuation: continuation,
	})
	if err != nil {
		h.log.Errorf(err, "Could not start onboarding for %s:%s", req.Namespace, req.Identifier)
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"request_id":  requestID,
		"accessor_id": req.AccessorID,
	})
}

func resultContinuation(requestID string, req addAccessorRequest) (model.Continuation, error) {
	if req.CallbackURL == "" {
		return onboarding.NewContinuation(onboarding.NotifyOnboardResultFn, onboarding.OnboardResultArgs{
			RequestID: requestID,
		})
	}
	return onboarding.NewContinuation(onboarding.NotifyAddAccessorResultFn, onboarding.AddAccessorResultArgs{
		RequestID:   requestID,
		ReferenceID: req.ReferenceID,
		CallbackURL: req.CallbackURL,
	})
}
