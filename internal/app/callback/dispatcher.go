package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"idp-node/internal/app/model"
	"idp-node/pkg/logger"
	reasoncodes "idp-node/pkg/reason_codes"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

const callbackIDHeader = "X-Callback-Id"

// Dispatcher delivers callbacks to the client application. Deliveries run in
// the background and their outcome is only logged.
type Dispatcher struct {
	urls   *URLs
	cfg    CallbackConfig
	client *http.Client
	log    *logger.Logger

	inflight sync.WaitGroup
}

func NewDispatcher(urls *URLs, cfg CallbackConfig, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		urls:   urls,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log.WithStr("component", "callback"),
	}
}

func (d *Dispatcher) HasURL(purpose model.CallbackPurpose) bool {
	_, ok := d.urls.Get(purpose)
	return ok
}

// Notify sends payload to the URL configured for purpose, or drops it when
// none is configured.
func (d *Dispatcher) Notify(ctx context.Context, purpose model.CallbackPurpose, payload any) {
	url, ok := d.urls.Get(purpose)
	if !ok {
		d.log.Warnf("Callback url for %s is not set, dropping callback", purpose)
		return
	}
	d.NotifyURL(ctx, url, payload)
}

func (d *Dispatcher) NotifyURL(ctx context.Context, url string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		d.log.Error(err, "Cannot serialize callback payload")
		return
	}

	callbackID := uuid.NewString()
	deliveryCtx := context.WithoutCancel(ctx)

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()

		log := d.log.WithFields(map[string]any{"callback_id": callbackID, "url": url})
		if err := d.deliver(deliveryCtx, url, callbackID, body); err != nil {
			log.Error(err, "Callback delivery failed")
			return
		}
		log.Debug("Callback delivered")
	}()
}

func (d *Dispatcher) deliver(ctx context.Context, url, callbackID string, body []byte) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(d.cfg.RetryInterval), d.cfg.MaxRetries),
		ctx,
	)

	return backoff.Retry(func() error {
		resp, err := d.post(ctx, url, callbackID, body)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("callback returned status %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("callback rejected with status %d", resp.StatusCode))
		}
		return nil
	}, policy)
}

func (d *Dispatcher) post(ctx context.Context, url, callbackID string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if callbackID != "" {
		req.Header.Set(callbackIDHeader, callbackID)
	}
	return d.client.Do(req)
}

// RequestExternalSignature asks the client to sign the sid hash with the
// accessor's private key and returns the base64 signature.
func (d *Dispatcher) RequestExternalSignature(ctx context.Context, signRequest model.AccessorSignRequest) (string, error) {
	errContext := map[string]any{"accessor_id": signRequest.AccessorID, "sid": signRequest.Sid}

	url, ok := d.urls.Get(model.AccessorSignURL)
	if !ok {
		return "", reasoncodes.New(reasoncodes.ErrSignWithAccessorKeyUrlNotSet).WithContext(errContext)
	}

	body, err := json.Marshal(signRequest)
	if err != nil {
		return "", err
	}

	resp, err := d.post(ctx, url, "", body)
	if err != nil {
		return "", reasoncodes.Wrap(reasoncodes.ErrSignWithAccessorKeyFailed, err).WithContext(errContext)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", reasoncodes.Wrap(
			reasoncodes.ErrSignWithAccessorKeyFailed,
			fmt.Errorf("sign callback returned status %d", resp.StatusCode),
		).WithContext(errContext)
	}

	var signResponse model.AccessorSignResponse
	if err := json.NewDecoder(resp.Body).Decode(&signResponse); err != nil {
		return "", reasoncodes.Wrap(reasoncodes.ErrSignWithAccessorKeyFailed, err).WithContext(errContext)
	}
	if signResponse.Signature == "" {
		return "", reasoncodes.Wrap(reasoncodes.ErrSignWithAccessorKeyFailed, fmt.Errorf("empty signature")).WithContext(errContext)
	}
	return signResponse.Signature, nil
}

// Drain waits for every delivery started so far.
func (d *Dispatcher) Drain() {
	d.inflight.Wait()
}
