package idp

import (
	"context"
	"encoding/json"
	"sync"

	"idp-node/internal/app/model"
	"idp-node/internal/app/proof"
	"idp-node/internal/app/store"
	"idp-node/pkg/logger"
	reasoncodes "idp-node/pkg/reason_codes"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
)

type HeightSource interface {
	LatestBlockHeight(ctx context.Context) (int64, error)
}

type IntegrityChecker interface {
	Check(ctx context.Context, msg model.QueueMessage) (bool, error)
}

type OnboardingHandler interface {
	HandleConsentResponse(ctx context.Context, msg model.QueueMessage) error
}

type Notifier interface {
	Notify(ctx context.Context, purpose model.CallbackPurpose, payload any)
}

// Pipeline holds queue messages back until the chain has confirmed the
// height they announce, then dispatches each of them exactly once.
type Pipeline struct {
	store      store.MessageStore
	heights    HeightSource
	integrity  IntegrityChecker
	onboarding OnboardingHandler
	notifier   Notifier
	cfg        SyncConfig
	log        *logger.Logger

	// frontier is held for reading while a message compares its height with
	// the chain and registers itself, and for writing while a block event
	// fetches the ids to reconcile.
	frontier sync.RWMutex

	blockMu        sync.Mutex
	lastReconciled int64

	// dispatchers runs fast path dispatches off the queue consumer.
	dispatchers *pool.Pool
	inflight    sync.WaitGroup
}

func NewPipeline(
	s store.MessageStore,
	heights HeightSource,
	integrity IntegrityChecker,
	onboarding OnboardingHandler,
	notifier Notifier,
	cfg SyncConfig,
	log *logger.Logger,
) *Pipeline {
	if cfg.ReconcileConcurrency < 1 {
		cfg.ReconcileConcurrency = 1
	}
	if cfg.DispatchConcurrency < 1 {
		cfg.DispatchConcurrency = 1
	}
	return &Pipeline{
		store:       s,
		heights:     heights,
		integrity:   integrity,
		onboarding:  onboarding,
		notifier:    notifier,
		cfg:         cfg,
		log:         log.WithStr("component", "idp-pipeline"),
		dispatchers: pool.New().WithMaxGoroutines(cfg.DispatchConcurrency),
	}
}

// OnQueueMessage stores a message received from another node and either
// hands it to a dispatcher or leaves it for the block event that confirms its
// height. It returns once the message and the dispatch it is owed are stored;
// a returned error means they were not. When every dispatcher is busy it
// waits for one to free up.
func (p *Pipeline) OnQueueMessage(ctx context.Context, raw []byte) error {
	var msg model.QueueMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return reasoncodes.Wrap(reasoncodes.ErrUnmarshal, err)
	}
	if msg.RequestID == "" {
		return reasoncodes.New(reasoncodes.ErrInvalidMessage).
			WithContext(map[string]any{"reason": "missing request_id"})
	}

	p.log.Infof("Received message from MQ for request %s", msg.RequestID)

	if err := p.store.SaveQueueMessage(ctx, msg); err != nil {
		return err
	}
	if counterparty := msg.CounterpartyID(); counterparty != "" {
		if err := p.store.SetCounterparty(ctx, msg.RequestID, counterparty); err != nil {
			return err
		}
	}
	if msg.IsOnboardingResponse() {
		contribution := model.ProofContribution{IdpID: msg.IdpID, PrivateProof: msg.PrivateProof()}
		if err := p.store.AppendProofContribution(ctx, msg.RequestID, contribution); err != nil {
			return err
		}
	}

	buffered, err := p.bufferUntilConfirmed(ctx, msg)
	if err != nil || buffered {
		return err
	}

	if err := p.store.MarkDispatchPending(ctx, msg.RequestID); err != nil {
		return err
	}
	p.startDispatch(ctx, msg)
	return nil
}

// ResumeDispatches restarts the dispatches accepted by OnQueueMessage that
// had not finished when the node stopped.
func (p *Pipeline) ResumeDispatches(ctx context.Context) error {
	requestIDs, err := p.store.PendingDispatches(ctx)
	if err != nil {
		return err
	}

	for _, requestID := range requestIDs {
		msg, found, err := p.store.GetQueueMessage(ctx, requestID)
		if err != nil {
			return err
		}
		if !found {
			p.log.Warnf("Message for pending dispatch %s is gone", requestID)
			if err := p.store.RemoveDispatchPending(ctx, requestID); err != nil {
				return err
			}
			continue
		}

		p.log.Infof("Resuming dispatch of request %s", requestID)
		p.startDispatch(ctx, msg)
	}
	return nil
}

// startDispatch runs msg on the dispatcher pool and clears its pending mark
// once done. The dispatch is detached from ctx cancellation so Drain can
// finish it during shutdown.
func (p *Pipeline) startDispatch(ctx context.Context, msg model.QueueMessage) {
	ctx = context.WithoutCancel(ctx)

	p.inflight.Add(1)
	p.dispatchers.Go(func() {
		defer p.inflight.Done()
		p.guard(ctx, msg, func() { p.dispatch(ctx, msg) })

		if err := p.store.RemoveDispatchPending(ctx, msg.RequestID); err != nil {
			p.log.Errorf(err, "Cannot clear pending dispatch of request %s", msg.RequestID)
		}
	})
}

// Drain waits for the dispatches started by OnQueueMessage and
// ResumeDispatches to finish.
func (p *Pipeline) Drain() {
	p.inflight.Wait()
}

func (p *Pipeline) bufferUntilConfirmed(ctx context.Context, msg model.QueueMessage) (bool, error) {
	p.frontier.RLock()
	defer p.frontier.RUnlock()

	latest, err := p.heights.LatestBlockHeight(ctx)
	if err != nil {
		return false, err
	}
	if msg.Height <= latest-p.cfg.BlockLag {
		return false, nil
	}

	p.log.Debugf("Saving message for request %s until height %d is confirmed, latest height %d",
		msg.RequestID, msg.Height, latest)
	return true, p.store.AddExpectedRequest(ctx, msg.Height, msg.RequestID)
}

// OnNewBlockHeader reconciles every message expected in the heights this
// block confirms. missed is nil for the first block observed.
func (p *Pipeline) OnNewBlockHeader(ctx context.Context, height int64, missed *int64) {
	p.blockMu.Lock()
	defer p.blockMu.Unlock()

	fromHeight, toHeight := p.window(height, missed)
	if toHeight < fromHeight {
		return
	}

	p.frontier.Lock()
	requestIDs, err := p.store.ExpectedRequestsInRange(ctx, fromHeight, toHeight)
	p.frontier.Unlock()
	if err != nil {
		p.log.Errorf(err, "Cannot read requests expected in blocks %d-%d", fromHeight, toHeight)
		return
	}

	p.log.Debugf("Processing %d requests expected in blocks %d-%d", len(requestIDs), fromHeight, toHeight)

	workers := pool.New().WithMaxGoroutines(p.cfg.ReconcileConcurrency)
	for _, requestID := range requestIDs {
		workers.Go(func() {
			p.reconcile(ctx, requestID)
		})
	}
	workers.Wait()

	if err := p.store.RemoveExpectedRequestsInRange(ctx, fromHeight, toHeight); err != nil {
		p.log.Errorf(err, "Cannot remove requests expected in blocks %d-%d", fromHeight, toHeight)
	}
	p.lastReconciled = toHeight
}

func (p *Pipeline) window(height int64, missed *int64) (int64, int64) {
	toHeight := height - p.cfg.BlockLag

	var fromHeight int64
	switch {
	case missed == nil:
		fromHeight = 1
	case *missed == 0:
		fromHeight = height - p.cfg.BlockLag
	default:
		fromHeight = height - *missed
	}

	if p.lastReconciled > 0 && fromHeight > p.lastReconciled+1 {
		fromHeight = p.lastReconciled + 1
	}
	if fromHeight < 1 {
		fromHeight = 1
	}
	return fromHeight, toHeight
}

func (p *Pipeline) reconcile(ctx context.Context, requestID string) {
	p.guard(ctx, model.QueueMessage{RequestID: requestID}, func() {
		msg, found, err := p.store.GetQueueMessage(ctx, requestID)
		if err != nil {
			p.reportError(ctx, model.QueueMessage{RequestID: requestID}, err)
			return
		}
		if !found {
			p.log.Warnf("Message for request %s expected in block is gone", requestID)
			return
		}
		p.dispatch(ctx, msg)
	})
}

// guard reports a panic in fn as a dispatch error for msg.
func (p *Pipeline) guard(ctx context.Context, msg model.QueueMessage, fn func()) {
	var catcher panics.Catcher
	catcher.Try(fn)
	if recovered := catcher.Recovered(); recovered != nil {
		p.reportError(ctx, msg, recovered.AsError())
	}
}

func (p *Pipeline) dispatch(ctx context.Context, msg model.QueueMessage) {
	p.log.Debugf("Processing request %s", msg.RequestID)

	if msg.IsOnboardingResponse() {
		if err := p.onboarding.HandleConsentResponse(ctx, msg); err != nil {
			p.reportError(ctx, msg, err)
			return
		}
		if err := p.store.RemoveQueueMessage(ctx, msg.RequestID); err != nil {
			p.log.Errorf(err, "Cannot remove message for request %s", msg.RequestID)
		}
		return
	}

	if err := p.notifyConsentRequest(ctx, msg); err != nil {
		p.reportError(ctx, msg, err)
	}
}

func (p *Pipeline) notifyConsentRequest(ctx context.Context, msg model.QueueMessage) error {
	valid, err := p.integrity.Check(ctx, msg)
	if err != nil || !valid {
		return err
	}

	p.notifier.Notify(ctx, model.IncomingRequestURL, model.ConsentRequestEvent{
		Type:               model.EventConsentRequest,
		RequestID:          msg.RequestID,
		Namespace:          msg.Namespace,
		Identifier:         msg.Identifier,
		RequestMessage:     msg.RequestMessage,
		RequestMessageHash: proof.Hash(msg.RequestMessage),
		RequesterNodeID:    msg.RpID,
		MinIal:             msg.MinIal,
		MinAal:             msg.MinAal,
		DataRequestList:    msg.DataRequestList,
	})
	return nil
}

// reportError logs a dispatch failure with the message it was working on and
// tells the client through the error callback.
func (p *Pipeline) reportError(ctx context.Context, msg model.QueueMessage, err error) {
	fields := reasoncodes.ContextOf(err)
	fields["request_id"] = msg.RequestID
	fields["height"] = msg.Height
	fields["counterparty"] = msg.CounterpartyID()
	p.log.ErrorWithFields(err, fields, "Cannot process request")

	event := model.ErrorEvent{
		Type:      model.EventError,
		RequestID: msg.RequestID,
		Message:   err.Error(),
	}
	if code, ok := reasoncodes.CodeOf(err); ok {
		event.Code = code.String()
	}
	p.notifier.Notify(ctx, model.ErrorURL, event)
}
