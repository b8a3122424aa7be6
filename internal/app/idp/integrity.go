package idp

import (
	"context"

	"idp-node/internal/app/model"
	"idp-node/internal/app/proof"
	"idp-node/pkg/logger"
	reasoncodes "idp-node/pkg/reason_codes"
)

type RequestReader interface {
	GetRequest(ctx context.Context, requestID string) (model.Request, bool, error)
}

// RequestIntegrity checks a consent request received over the queue against
// the hash its requester committed on chain.
type RequestIntegrity struct {
	ledger RequestReader
	log    *logger.Logger
}

func NewRequestIntegrity(ledger RequestReader, log *logger.Logger) *RequestIntegrity {
	return &RequestIntegrity{ledger: ledger, log: log}
}

func (ri *RequestIntegrity) Check(ctx context.Context, msg model.QueueMessage) (bool, error) {
	request, found, err := ri.ledger.GetRequest(ctx, msg.RequestID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, reasoncodes.New(reasoncodes.ErrRequestNotFound).
			WithContext(map[string]any{"request_id": msg.RequestID})
	}

	if request.RequestMessageHash != proof.Hash(msg.RequestMessage) {
		ri.log.WithFields(map[string]any{
			"request_id":    msg.RequestID,
			"on_chain_hash": request.RequestMessageHash,
		}).Warn("Request message hash mismatch, request was tampered with")
		return false, nil
	}
	return true, nil
}
