package idp

import (
	"context"
	"errors"

	"idp-node/internal/app/chain"
	"idp-node/internal/app/model"
	"idp-node/internal/app/proof"
	"idp-node/internal/app/store"
	"idp-node/pkg/logger"
	"idp-node/pkg/rabbitmq"
	reasoncodes "idp-node/pkg/reason_codes"
)

type ResponseLedger interface {
	GetRequest(ctx context.Context, requestID string) (model.Request, bool, error)
	GetAccessorKey(ctx context.Context, accessorID string) (string, bool, error)
	CreateIdpResponse(ctx context.Context, tx model.IdpResponseTx) (chain.TxResult, error)
}

type Signer interface {
	Sign(ctx context.Context, req proof.SignRequest) (proof.SignResult, error)
}

// ResponseInput is the client's answer to a consent request. Signature is
// only used in zero knowledge mode, other modes are signed with the node key.
type ResponseInput struct {
	RequestID      string
	Ial            float64
	Aal            float64
	Status         model.ResponseStatus
	Signature      string
	AccessorID     string
	Secret         string
	RequestMessage string
}

// Responder commits this node's response to a request and hands the private
// proof to the node that asked.
type Responder struct {
	nodeID string
	store  store.MessageStore
	ledger ResponseLedger
	signer Signer
	relay  rabbitmq.IRabbitmqPublisher
	log    *logger.Logger
}

func NewResponder(
	nodeID string,
	s store.MessageStore,
	ledger ResponseLedger,
	signer Signer,
	relay rabbitmq.IRabbitmqPublisher,
	log *logger.Logger,
) *Responder {
	return &Responder{
		nodeID: nodeID,
		store:  s,
		ledger: ledger,
		signer: signer,
		relay:  relay,
		log:    log.WithStr("component", "idp-responder"),
	}
}

func (r *Responder) CreateIdpResponse(ctx context.Context, in ResponseInput) (chain.TxResult, error) {
	errContext := map[string]any{
		"request_id":  in.RequestID,
		"accessor_id": in.AccessorID,
		"status":      string(in.Status),
	}

	request, found, err := r.ledger.GetRequest(ctx, in.RequestID)
	if err != nil {
		return chain.TxResult{}, reasoncodes.Wrap(reasoncodes.ErrSolana, err).WithContext(errContext)
	}
	if !found {
		return chain.TxResult{}, reasoncodes.New(reasoncodes.ErrRequestNotFound).WithContext(errContext)
	}

	if _, found, err := r.ledger.GetAccessorKey(ctx, in.AccessorID); err != nil {
		return chain.TxResult{}, reasoncodes.Wrap(reasoncodes.ErrSolana, err).WithContext(errContext)
	} else if !found {
		return chain.TxResult{}, reasoncodes.New(reasoncodes.ErrAccessorPublicKeyNotFound).WithContext(errContext)
	}

	requestMessage := in.RequestMessage
	if requestMessage == "" {
		if msg, found, err := r.store.GetQueueMessage(ctx, in.RequestID); err != nil {
			return chain.TxResult{}, err
		} else if found {
			requestMessage = msg.RequestMessage
		}
	}

	signed, err := r.signer.Sign(ctx, proof.SignRequest{
		Mode:            request.Mode,
		RequestID:       in.RequestID,
		RequestMessage:  requestMessage,
		AccessorID:      in.AccessorID,
		Secret:          in.Secret,
		NodeID:          r.nodeID,
		ClientSignature: in.Signature,
	})
	if err != nil {
		var rcErr *reasoncodes.Error
		if errors.As(err, &rcErr) {
			rcErr.WithContext(errContext)
		}
		return chain.TxResult{}, err
	}

	result, err := r.ledger.CreateIdpResponse(ctx, model.IdpResponseTx{
		RequestID:        in.RequestID,
		Aal:              in.Aal,
		Ial:              in.Ial,
		Status:           in.Status,
		Signature:        signed.Signature,
		IdentityProof:    signed.IdentityProof,
		PrivateProofHash: signed.PrivateProofHash,
	})
	if err != nil {
		return chain.TxResult{}, reasoncodes.Wrap(reasoncodes.ErrSolana, err).WithContext(errContext)
	}
	if result.TemporarilyUnavailable {
		r.log.Warnf("Chain unavailable, response for %s was not submitted", in.RequestID)
		return result, nil
	}

	if err := r.store.RemoveQueueMessage(ctx, in.RequestID); err != nil {
		r.log.Errorf(err, "Cannot remove message for request %s", in.RequestID)
	}

	r.relayPrivateProof(ctx, in.RequestID, signed.PrivateProof, result.Height)
	return result, nil
}

// relayPrivateProof sends the private proof to the requester, keyed by its
// node id. Non zero knowledge responses relay an empty proof so the requester
// still learns the commit height.
func (r *Responder) relayPrivateProof(ctx context.Context, requestID string, privateProof model.PrivateProofObject, height int64) {
	counterparty, found, err := r.store.GetCounterparty(ctx, requestID)
	if err != nil {
		r.log.Errorf(err, "Cannot read requester of %s", requestID)
		return
	}
	if !found {
		r.log.Warnf("No requester known for %s, private proof not relayed", requestID)
		return
	}

	relay := model.PrivateProofRelay{
		RequestID:          requestID,
		PrivateProofObject: privateProof,
		Height:             height,
		IdpID:              r.nodeID,
	}
	if err := r.relay.PublishTo(ctx, counterparty, relay); err != nil {
		r.log.ErrorWithFields(err, map[string]any{
			"request_id":   requestID,
			"counterparty": counterparty,
			"height":       height,
		}, "Cannot relay private proof")
		return
	}

	if err := r.store.RemoveCounterparty(ctx, requestID); err != nil {
		r.log.Errorf(err, "Cannot remove requester of %s", requestID)
	}
}
