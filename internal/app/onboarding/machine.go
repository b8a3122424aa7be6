package onboarding

import (
	"context"
	"fmt"
	"time"

	"idp-node/internal/app/chain"
	"idp-node/internal/app/model"
	"idp-node/internal/app/proof"
	"idp-node/internal/app/store"
	"idp-node/pkg/logger"
	reasoncodes "idp-node/pkg/reason_codes"
)

const (
	ReasonInvalidResponse = "Invalid response"
	ReasonUserRejected    = "User rejected"
)

type Verifier interface {
	Verify(ctx context.Context, requestID, idpID string, msg model.QueueMessage) (bool, error)
}

type Ledger interface {
	GetRequestDetail(ctx context.Context, requestID string) (model.Request, bool, error)
	GetReferenceGroupCode(ctx context.Context, namespace, identifier string) (string, bool, error)
	CheckExistingAccessor(ctx context.Context, accessorID string) (bool, error)
	AddAccessor(ctx context.Context, tx model.AddAccessorTx) (chain.TxResult, error)
}

// SessionStore holds onboarding sessions and the private proofs received
// for them.
type SessionStore interface {
	store.OnboardingStore
	RemoveProofContributions(ctx context.Context, requestID string) error
}

type BeginInput struct {
	RequestID    string
	Identity     model.PendingIdentity
	Challenge    string
	Continuation model.Continuation
}

// Machine drives add-accessor-after-consent sessions. Every phase is
// persisted before the side effect it guards, and transitions for the same
// request id never interleave.
type Machine struct {
	nodeID        string
	store         SessionStore
	verifier      Verifier
	ledger        Ledger
	notifier      Notifier
	continuations *Continuations
	log           *logger.Logger

	locks *keyedMutex
	now   func() time.Time
}

func NewMachine(
	nodeID string,
	s SessionStore,
	verifier Verifier,
	ledger Ledger,
	notifier Notifier,
	continuations *Continuations,
	log *logger.Logger,
) *Machine {
	return &Machine{
		nodeID:        nodeID,
		store:         s,
		verifier:      verifier,
		ledger:        ledger,
		notifier:      notifier,
		continuations: continuations,
		log:           log.WithStr("component", "onboarding"),
		locks:         newKeyedMutex(),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (m *Machine) save(ctx context.Context, session *model.OnboardingSession, phase model.OnboardingPhase) error {
	session.Phase = phase
	session.UpdatedAt = m.now()
	return m.store.SaveSession(ctx, *session)
}

func (m *Machine) Begin(ctx context.Context, in BeginInput) error {
	unlock := m.locks.Lock(in.RequestID)
	defer unlock()

	if existing, found, err := m.store.GetSession(ctx, in.RequestID); err != nil {
		return err
	} else if found && !existing.Phase.Terminal() {
		return fmt.Errorf("onboarding %s is already in progress", in.RequestID)
	}

	now := m.now()
	session := model.OnboardingSession{
		RequestID:    in.RequestID,
		NodeID:       m.nodeID,
		Identity:     in.Identity,
		Continuation: in.Continuation,
		CreatedAt:    now,
	}
	if err := m.save(ctx, &session, model.PhaseRequested); err != nil {
		return err
	}

	if err := m.store.SavePendingIdentity(ctx, in.RequestID, in.Identity); err != nil {
		return err
	}
	if err := m.store.SaveChallenge(ctx, in.RequestID, in.Challenge); err != nil {
		return err
	}

	if err := m.save(ctx, &session, model.PhaseAwaitingConsent); err != nil {
		return err
	}
	m.log.Infof("Onboarding %s awaiting consent", in.RequestID)
	return nil
}

// HandleConsentResponse evaluates the consenting IdP's answer for a session
// awaiting consent. Responses for unknown or already evaluated sessions are ignored.
func (m *Machine) HandleConsentResponse(ctx context.Context, msg model.QueueMessage) error {
	unlock := m.locks.Lock(msg.RequestID)
	defer unlock()

	session, found, err := m.store.GetSession(ctx, msg.RequestID)
	if err != nil {
		return err
	}
	if !found {
		m.log.Warnf("No onboarding session for %s", msg.RequestID)
		return nil
	}
	if session.Phase != model.PhaseAwaitingConsent {
		m.log.Debugf("Onboarding %s is %s, ignoring consent response", msg.RequestID, session.Phase)
		return nil
	}

	valid, err := m.verifier.Verify(ctx, msg.RequestID, msg.IdpID, msg)
	if err != nil {
		m.fail(ctx, &session, err)
		return nil
	}
	if !valid {
		m.reject(ctx, &session, ReasonInvalidResponse)
		return nil
	}

	request, found, err := m.ledger.GetRequestDetail(ctx, msg.RequestID)
	if err != nil {
		m.fail(ctx, &session, err)
		return nil
	}
	if !found || len(request.ResponseList) == 0 {
		m.fail(ctx, &session, reasoncodes.New(reasoncodes.ErrRequestNotFound).
			WithContext(map[string]any{"request_id": msg.RequestID}))
		return nil
	}
	if request.ResponseList[0].Status != model.StatusAccept {
		m.reject(ctx, &session, ReasonUserRejected)
		return nil
	}

	if err := m.store.RemoveChallenge(ctx, msg.RequestID); err != nil {
		m.fail(ctx, &session, err)
		return nil
	}
	if err := m.save(ctx, &session, model.PhaseConsentEvaluated); err != nil {
		return err
	}

	m.submit(ctx, &session)
	return nil
}

// submit registers the accessor on chain. A temporarily unavailable chain
// leaves the session in BLOCKCHAIN_SUBMITTING for the recovery worker.
func (m *Machine) submit(ctx context.Context, session *model.OnboardingSession) {
	identity := session.Identity

	code, found, err := m.ledger.GetReferenceGroupCode(ctx, identity.Namespace, identity.Identifier)
	if err != nil {
		m.fail(ctx, session, err)
		return
	}
	if !found {
		m.fail(ctx, session, reasoncodes.New(reasoncodes.ErrIdentityNotFound).
			WithContext(map[string]any{"namespace": identity.Namespace, "identifier": identity.Identifier}))
		return
	}

	session.Identity.ReferenceGroupCode = code
	session.Attempts++
	if err := m.save(ctx, session, model.PhaseBlockchainSubmitting); err != nil {
		m.log.Error(err, "Cannot persist onboarding session")
		return
	}

	result, err := m.ledger.AddAccessor(ctx, model.AddAccessorTx{
		ReferenceGroupCode: code,
		AccessorID:         identity.AccessorID,
		AccessorPublicKey:  identity.AccessorPublicKey,
		AccessorType:       identity.AccessorType,
		RequestID:          session.RequestID,
	})
	if err != nil {
		m.fail(ctx, session, err)
		return
	}
	if result.TemporarilyUnavailable {
		m.log.Infof("Chain unavailable, onboarding %s will be retried", session.RequestID)
		return
	}

	m.confirm(ctx, session, result.Height)
}

func (m *Machine) confirm(ctx context.Context, session *model.OnboardingSession, height int64) {
	session.TxHeight = height
	if err := m.save(ctx, session, model.PhaseConfirmed); err != nil {
		m.log.Error(err, "Cannot persist onboarding session")
		return
	}
	m.deliverSuccess(ctx, session)
}

// deliverSuccess runs from CONFIRMED, both right after commit and on recovery.
// The accessor is already on chain, so nothing here may turn the session into
// FAILED: a store error leaves it CONFIRMED for the recovery worker.
func (m *Machine) deliverSuccess(ctx context.Context, session *model.OnboardingSession) {
	if err := m.store.RemovePendingIdentity(ctx, session.RequestID); err != nil {
		m.log.Errorf(err, "Cannot remove pending identity for %s, completion will be retried", session.RequestID)
		return
	}

	if session.Outcome == nil {
		outcome := model.OnboardingOutcome{Success: true, Type: session.Identity.Type}
		if m.notifier.HasURL(model.AccessorSignURL) {
			secret, err := m.accessorSecret(ctx, session.Identity)
			if err != nil {
				m.log.ErrorWithFields(err, map[string]any{
					"request_id":  session.RequestID,
					"accessor_id": session.Identity.AccessorID,
				}, "Accessor sign failed, reporting success without secret")
			} else {
				outcome.Secret = secret
			}
		}
		session.Outcome = &outcome
		if err := m.save(ctx, session, model.PhaseConfirmed); err != nil {
			m.log.Error(err, "Cannot persist onboarding outcome")
			return
		}
	}

	m.invoke(ctx, session, *session.Outcome)

	if err := m.save(ctx, session, model.PhaseCallbackSent); err != nil {
		m.log.Error(err, "Cannot persist onboarding session")
		return
	}
	m.discardProofs(ctx, session.RequestID)
	m.log.Infof("Onboarding %s completed at height %d", session.RequestID, session.TxHeight)
}

func (m *Machine) accessorSecret(ctx context.Context, identity model.PendingIdentity) (string, error) {
	return m.notifier.RequestExternalSignature(ctx, model.AccessorSignRequest{
		Sid:        proof.Sid(identity.Namespace, identity.Identifier),
		SidHash:    proof.SidHash(identity.Namespace, identity.Identifier),
		HashMethod: "SHA256",
		KeyType:    "RSA",
		SignMethod: "RSA",
		AccessorID: identity.AccessorID,
	})
}

func (m *Machine) reject(ctx context.Context, session *model.OnboardingSession, reason string) {
	m.log.Infof("Onboarding %s rejected: %s", session.RequestID, reason)
	m.terminate(ctx, session, model.OnboardingOutcome{Success: false, Reason: reason})
}

func (m *Machine) fail(ctx context.Context, session *model.OnboardingSession, err error) {
	fields := reasoncodes.ContextOf(err)
	fields["request_id"] = session.RequestID
	fields["phase"] = string(session.Phase)
	m.log.ErrorWithFields(err, fields, "Onboarding failed")

	outcome := model.OnboardingOutcome{Success: false, Error: err.Error()}
	if code, ok := reasoncodes.CodeOf(err); ok {
		outcome.Code = code.String()
	}
	m.terminate(ctx, session, outcome)
}

// terminate persists FAILED with its outcome before the continuation runs, so
// recovery can redeliver it.
func (m *Machine) terminate(ctx context.Context, session *model.OnboardingSession, outcome model.OnboardingOutcome) {
	session.Outcome = &outcome
	if err := m.save(ctx, session, model.PhaseFailed); err != nil {
		m.log.Error(err, "Cannot persist failed onboarding session")
		return
	}
	m.finishFailed(ctx, session)
}

func (m *Machine) finishFailed(ctx context.Context, session *model.OnboardingSession) {
	if err := m.store.RemoveChallenge(ctx, session.RequestID); err != nil {
		m.log.Error(err, "Cannot remove challenge")
	}
	if err := m.store.RemovePendingIdentity(ctx, session.RequestID); err != nil {
		m.log.Error(err, "Cannot remove pending identity")
	}
	// A responder may send a corrected proof for a new attempt.
	m.discardProofs(ctx, session.RequestID)

	m.invoke(ctx, session, *session.Outcome)

	if err := m.store.DeleteSession(ctx, session.RequestID); err != nil {
		m.log.Error(err, "Cannot delete onboarding session")
	}
}

func (m *Machine) invoke(ctx context.Context, session *model.OnboardingSession, outcome model.OnboardingOutcome) {
	if !session.Continuation.IsSet() {
		m.log.Warnf("No continuation for onboarding %s, outcome: %+v", session.RequestID, outcome)
		return
	}
	if err := m.continuations.Invoke(ctx, session.Continuation, outcome); err != nil {
		m.log.Errorf(err, "Continuation %s for %s failed", session.Continuation.FnName, session.RequestID)
	}
}

func (m *Machine) discardProofs(ctx context.Context, requestID string) {
	if err := m.store.RemoveProofContributions(ctx, requestID); err != nil {
		m.log.Errorf(err, "Cannot remove private proofs of %s", requestID)
	}
}
