package onboarding

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"idp-node/internal/app/model"
)

const (
	NotifyOnboardResultFn     = "idp.notifyOnboardResult"
	NotifyAddAccessorResultFn = "identity.notifyAddAccessorResult"
)

type ContinuationFunc func(ctx context.Context, outcome model.OnboardingOutcome, args json.RawMessage) error

// Continuations maps the names persisted in sessions to functions, so a
// session restored after a restart can still deliver its result.
type Continuations struct {
	mu  sync.RWMutex
	fns map[string]ContinuationFunc
}

func NewContinuations() *Continuations {
	return &Continuations{fns: make(map[string]ContinuationFunc)}
}

func (c *Continuations) Register(name string, fn ContinuationFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fns[name] = fn
}

func (c *Continuations) Invoke(ctx context.Context, continuation model.Continuation, outcome model.OnboardingOutcome) error {
	c.mu.RLock()
	fn, ok := c.fns[continuation.FnName]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("continuation %q is not registered", continuation.FnName)
	}
	return fn(ctx, outcome, continuation.Args)
}

type Notifier interface {
	Notify(ctx context.Context, purpose model.CallbackPurpose, payload any)
	NotifyURL(ctx context.Context, url string, payload any)
	HasURL(purpose model.CallbackPurpose) bool
	RequestExternalSignature(ctx context.Context, req model.AccessorSignRequest) (string, error)
}

type OnboardResultArgs struct {
	RequestID string `json:"request_id"`
}

// AddAccessorResultArgs are persisted for clients that asked over REST.
type AddAccessorResultArgs struct {
	RequestID   string `json:"request_id"`
	ReferenceID string `json:"reference_id"`
	CallbackURL string `json:"callback_url"`
}

type AddAccessorResultEvent struct {
	Type        model.CallbackEventType `json:"type"`
	RequestID   string                  `json:"request_id"`
	ReferenceID string                  `json:"reference_id,omitempty"`
	Success     bool                    `json:"success"`
	Secret      string                  `json:"secret,omitempty"`
	Reason      string                  `json:"reason,omitempty"`
	Error       string                  `json:"error,omitempty"`
}

func NewContinuation(fnName string, args any) (model.Continuation, error) {
	encoded, err := json.Marshal(args)
	if err != nil {
		return model.Continuation{}, err
	}
	return model.Continuation{FnName: fnName, Args: encoded}, nil
}

// RegisterDefaults installs the continuations used by this node.
func RegisterDefaults(c *Continuations, notifier Notifier) {
	c.Register(NotifyOnboardResultFn, func(ctx context.Context, outcome model.OnboardingOutcome, raw json.RawMessage) error {
		var args OnboardResultArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		notifier.Notify(ctx, model.IncomingRequestURL, model.OnboardConsentEvent{
			Type:      model.EventOnboardConsentRequest,
			RequestID: args.RequestID,
			Success:   outcome.Success,
			Secret:    outcome.Secret,
			Reason:    outcome.Reason,
			Error:     outcome.Error,
		})
		return nil
	})

	c.Register(NotifyAddAccessorResultFn, func(ctx context.Context, outcome model.OnboardingOutcome, raw json.RawMessage) error {
		var args AddAccessorResultArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		if args.CallbackURL == "" {
			return fmt.Errorf("no callback url for request %s", args.RequestID)
		}
		notifier.NotifyURL(ctx, args.CallbackURL, AddAccessorResultEvent{
			Type:        model.EventAddAccessorResult,
			RequestID:   args.RequestID,
			ReferenceID: args.ReferenceID,
			Success:     outcome.Success,
			Secret:      outcome.Secret,
			Reason:      outcome.Reason,
			Error:       outcome.Error,
		})
		return nil
	})
}
