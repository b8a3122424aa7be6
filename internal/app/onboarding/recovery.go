package onboarding

import (
	"context"
	"time"

	"idp-node/internal/app/model"
)

// Recover resumes sessions interrupted by a restart or by an unavailable
// chain and purges completed sessions older than retention.
func (m *Machine) Recover(ctx context.Context, retention time.Duration) error {
	sessions, err := m.store.SessionsInPhases(ctx,
		model.PhaseConsentEvaluated,
		model.PhaseBlockchainSubmitting,
		model.PhaseConfirmed,
		model.PhaseFailed,
		model.PhaseCallbackSent,
	)
	if err != nil {
		return err
	}

	cutoff := m.now().Add(-retention)
	for _, s := range sessions {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.Phase == model.PhaseCallbackSent {
			if s.UpdatedAt.Before(cutoff) {
				if err := m.store.DeleteSession(ctx, s.RequestID); err != nil {
					m.log.Errorf(err, "Cannot purge onboarding session %s", s.RequestID)
				}
				m.discardProofs(ctx, s.RequestID)
			}
			continue
		}
		m.resume(ctx, s.RequestID)
	}
	return nil
}

func (m *Machine) resume(ctx context.Context, requestID string) {
	unlock := m.locks.Lock(requestID)
	defer unlock()

	session, found, err := m.store.GetSession(ctx, requestID)
	if err != nil {
		m.log.Errorf(err, "Cannot load onboarding session %s", requestID)
		return
	}
	if !found {
		return
	}

	m.log.Infof("Resuming onboarding %s from %s", requestID, session.Phase)

	switch session.Phase {
	case model.PhaseConsentEvaluated:
		m.submit(ctx, &session)
	case model.PhaseBlockchainSubmitting:
		exists, err := m.ledger.CheckExistingAccessor(ctx, session.Identity.AccessorID)
		if err != nil {
			m.log.Errorf(err, "Cannot check accessor for onboarding %s", requestID)
			return
		}
		if exists {
			m.confirm(ctx, &session, session.TxHeight)
			return
		}
		m.submit(ctx, &session)
	case model.PhaseConfirmed:
		m.deliverSuccess(ctx, &session)
	case model.PhaseFailed:
		if session.Outcome == nil {
			session.Outcome = &model.OnboardingOutcome{Success: false, Error: "onboarding failed"}
		}
		m.finishFailed(ctx, &session)
	}
}
