package model

import (
	"encoding/json"
	"time"
)

type OnboardingPhase string

const (
	PhaseRequested            OnboardingPhase = "REQUESTED"
	PhaseAwaitingConsent      OnboardingPhase = "AWAITING_CONSENT"
	PhaseConsentEvaluated     OnboardingPhase = "CONSENT_EVALUATED"
	PhaseBlockchainSubmitting OnboardingPhase = "BLOCKCHAIN_SUBMITTING"
	PhaseConfirmed            OnboardingPhase = "CONFIRMED"
	PhaseCallbackSent         OnboardingPhase = "CALLBACK_SENT"
	PhaseFailed               OnboardingPhase = "FAILED"
)

// Terminal reports whether no further transition can start from the phase.
func (op OnboardingPhase) Terminal() bool {
	return op == PhaseCallbackSent || op == PhaseFailed
}

// Continuation names the registered function invoked with the terminal outcome.
type Continuation struct {
	FnName string          `json:"fn_name"`
	Args   json.RawMessage `json:"args,omitempty"`
}

func (c Continuation) IsSet() bool {
	return c.FnName != ""
}

// OnboardingOutcome is what a continuation receives when the session ends.
type OnboardingOutcome struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Type    string `json:"type,omitempty"`
	Secret  string `json:"secret,omitempty"`
}

type OnboardingSession struct {
	RequestID    string             `json:"request_id"`
	NodeID       string             `json:"node_id"`
	Phase        OnboardingPhase    `json:"phase"`
	Identity     PendingIdentity    `json:"identity"`
	Continuation Continuation       `json:"continuation"`
	TxHeight     int64              `json:"tx_height,omitempty"`
	Outcome      *OnboardingOutcome `json:"outcome,omitempty"`
	Attempts     int                `json:"attempts"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}
