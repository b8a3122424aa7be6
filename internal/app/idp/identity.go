package idp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"idp-node/internal/app/chain"
	"idp-node/internal/app/keys"
	"idp-node/internal/app/model"
	"idp-node/internal/app/proof"
	"idp-node/pkg/logger"
	reasoncodes "idp-node/pkg/reason_codes"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
)

// defaultIal is registered for identities this node creates.
const defaultIal = 3

type IdentityLedger interface {
	CheckExistingIdentity(ctx context.Context, hashID string) (bool, error)
	CreateIdentity(ctx context.Context, tx model.CreateIdentityTx) (chain.TxResult, error)
	RegisterMsqDestination(ctx context.Context, tx model.RegisterMqDestinationTx) (chain.TxResult, error)
	RegisterMsqAddress(ctx context.Context, tx model.RegisterMqAddressTx) (chain.TxResult, error)
}

type IdentityInput struct {
	Namespace          string
	Identifier         string
	AccessorType       string
	AccessorPublicKey  string
	AccessorID         string
	ReferenceGroupCode string
	Ial                float64
}

type CreatedIdentity struct {
	HashID             string         `json:"hash_id"`
	ReferenceGroupCode string         `json:"reference_group_code"`
	AccessorID         string         `json:"accessor_id"`
	Result             chain.TxResult `json:"-"`
}

type CreateIdentityResultEvent struct {
	Type               model.CallbackEventType `json:"type"`
	HashID             string                  `json:"hash_id"`
	ReferenceGroupCode string                  `json:"reference_group_code"`
	AccessorID         string                  `json:"accessor_id"`
	Height             int64                   `json:"height"`
	Success            bool                    `json:"success"`
}

type IdentityService struct {
	nodeID   string
	ledger   IdentityLedger
	notifier Notifier
	log      *logger.Logger
}

func NewIdentityService(nodeID string, ledger IdentityLedger, notifier Notifier, log *logger.Logger) *IdentityService {
	return &IdentityService{
		nodeID:   nodeID,
		ledger:   ledger,
		notifier: notifier,
		log:      log.WithStr("component", "identity"),
	}
}

// CreateIdentity registers a new identity with its first accessor and makes
// this node its message queue destination. Both transactions are submitted
// together.
func (is *IdentityService) CreateIdentity(ctx context.Context, in IdentityInput) (CreatedIdentity, error) {
	errContext := map[string]any{
		"namespace":   in.Namespace,
		"identifier":  in.Identifier,
		"accessor_id": in.AccessorID,
	}

	if _, err := keys.ParseAndValidate([]byte(in.AccessorPublicKey), in.AccessorType); err != nil {
		var rcErr *reasoncodes.Error
		if errors.As(err, &rcErr) {
			rcErr.WithContext(errContext)
		}
		return CreatedIdentity{}, err
	}

	hashID := proof.Hash(proof.Sid(in.Namespace, in.Identifier))
	exists, err := is.ledger.CheckExistingIdentity(ctx, hashID)
	if err != nil {
		return CreatedIdentity{}, reasoncodes.Wrap(reasoncodes.ErrSolana, err).WithContext(errContext)
	}
	if exists {
		return CreatedIdentity{}, reasoncodes.New(reasoncodes.ErrIdentityAlreadyExists).WithContext(errContext)
	}

	created := CreatedIdentity{
		HashID:             hashID,
		ReferenceGroupCode: in.ReferenceGroupCode,
		AccessorID:         in.AccessorID,
	}
	if created.ReferenceGroupCode == "" {
		created.ReferenceGroupCode = uuid.NewString()
	}
	ial := in.Ial
	if ial == 0 {
		ial = defaultIal
	}

	submissions := pool.NewWithResults[chain.TxResult]().WithErrors().WithContext(ctx)
	submissions.Go(func(ctx context.Context) (chain.TxResult, error) {
		return is.ledger.CreateIdentity(ctx, model.CreateIdentityTx{
			HashID:             hashID,
			ReferenceGroupCode: created.ReferenceGroupCode,
			AccessorID:         in.AccessorID,
			AccessorPublicKey:  in.AccessorPublicKey,
			AccessorType:       in.AccessorType,
		})
	})
	submissions.Go(func(ctx context.Context) (chain.TxResult, error) {
		return is.ledger.RegisterMsqDestination(ctx, model.RegisterMqDestinationTx{
			Users:  []model.MqDestinationUser{{HashID: hashID, Ial: ial}},
			NodeID: is.nodeID,
		})
	})
	results, err := submissions.Wait()
	if err != nil {
		return CreatedIdentity{}, reasoncodes.Wrap(reasoncodes.ErrSolana, err).WithContext(errContext)
	}

	created.Result = chain.Committed(0)
	for _, result := range results {
		if result.TemporarilyUnavailable {
			created.Result = chain.Unavailable()
			is.log.Warnf("Chain unavailable while creating identity %s", hashID)
			return created, nil
		}
		created.Result.Height = max(created.Result.Height, result.Height)
	}

	is.log.Infof("Identity %s created at height %d", hashID, created.Result.Height)
	is.notifier.Notify(ctx, model.IdentityResultURL, CreateIdentityResultEvent{
		Type:               model.EventCreateIdentityResult,
		HashID:             hashID,
		ReferenceGroupCode: created.ReferenceGroupCode,
		AccessorID:         in.AccessorID,
		Height:             created.Result.Height,
		Success:            true,
	})
	return created, nil
}

var errChainUnavailable = errors.New("chain temporarily unavailable")

// RegisterNode publishes where this node's message queue listens. It retries
// while the chain is unavailable, up to maxWait.
func (is *IdentityService) RegisterNode(ctx context.Context, ip string, port uint16, maxWait time.Duration) (int64, error) {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = maxWait

	var height int64
	err := backoff.Retry(func() error {
		result, err := is.ledger.RegisterMsqAddress(ctx, model.RegisterMqAddressTx{
			NodeID: is.nodeID,
			IP:     ip,
			Port:   port,
		})
		if err != nil {
			return backoff.Permanent(err)
		}
		if result.TemporarilyUnavailable {
			return errChainUnavailable
		}
		height = result.Height
		return nil
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return 0, fmt.Errorf("register message queue address of %s: %w", is.nodeID, err)
	}

	is.log.Infof("Registered message queue address %s:%d at height %d", ip, port, height)
	return height, nil
}
