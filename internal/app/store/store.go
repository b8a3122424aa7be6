package store

import (
	"context"

	"idp-node/internal/app/model"
)

// MessageStore buffers queue messages until the block that confirms them
// has been observed.
type MessageStore interface {
	SaveQueueMessage(ctx context.Context, msg model.QueueMessage) error
	GetQueueMessage(ctx context.Context, requestID string) (model.QueueMessage, bool, error)
	RemoveQueueMessage(ctx context.Context, requestID string) error

	AddExpectedRequest(ctx context.Context, height int64, requestID string) error
	// ExpectedRequestsInRange returns the distinct request ids registered at
	// heights in [from, to], lowest height first.
	ExpectedRequestsInRange(ctx context.Context, from, to int64) ([]string, error)
	RemoveExpectedRequestsInRange(ctx context.Context, from, to int64) error

	SetCounterparty(ctx context.Context, requestID, nodeID string) error
	GetCounterparty(ctx context.Context, requestID string) (string, bool, error)
	RemoveCounterparty(ctx context.Context, requestID string) error

	// AppendProofContribution must not lose a concurrent append for the same
	// request. A second contribution from the same IdP is ignored, so a
	// redelivered message is not counted twice.
	AppendProofContribution(ctx context.Context, requestID string, contribution model.ProofContribution) error
	ProofContributions(ctx context.Context, requestID string) ([]model.ProofContribution, error)
	RemoveProofContributions(ctx context.Context, requestID string) error

	// MarkDispatchPending records that a message was accepted for dispatch,
	// so a restart can replay it if the dispatch never finished.
	MarkDispatchPending(ctx context.Context, requestID string) error
	PendingDispatches(ctx context.Context) ([]string, error)
	RemoveDispatchPending(ctx context.Context, requestID string) error
}

type OnboardingStore interface {
	SaveChallenge(ctx context.Context, requestID, challenge string) error
	GetChallenge(ctx context.Context, requestID string) (string, bool, error)
	RemoveChallenge(ctx context.Context, requestID string) error

	SavePendingIdentity(ctx context.Context, requestID string, identity model.PendingIdentity) error
	GetPendingIdentity(ctx context.Context, requestID string) (model.PendingIdentity, bool, error)
	RemovePendingIdentity(ctx context.Context, requestID string) error

	SaveSession(ctx context.Context, session model.OnboardingSession) error
	GetSession(ctx context.Context, requestID string) (model.OnboardingSession, bool, error)
	DeleteSession(ctx context.Context, requestID string) error
	SessionsInPhases(ctx context.Context, phases ...model.OnboardingPhase) ([]model.OnboardingSession, error)
}

type CallbackURLStore interface {
	SetCallbackURL(ctx context.Context, nodeID string, purpose model.CallbackPurpose, url string) error
	GetCallbackURL(ctx context.Context, nodeID string, purpose model.CallbackPurpose) (string, bool, error)
}

type Store interface {
	MessageStore
	OnboardingStore
	CallbackURLStore
}
