package callback

import (
	"context"
	"fmt"
	"sync"

	"idp-node/internal/app/model"
	"idp-node/internal/app/store"
)

// URLPatch sets the URLs that are non-nil and leaves the rest untouched.
type URLPatch struct {
	IncomingRequestURL *string `json:"incoming_request_url,omitempty"`
	IdentityResultURL  *string `json:"identity_result_url,omitempty"`
	AccessorSignURL    *string `json:"accessor_sign_url,omitempty"`
	ErrorURL           *string `json:"error_url,omitempty"`
}

func (up URLPatch) entries() map[model.CallbackPurpose]*string {
	return map[model.CallbackPurpose]*string{
		model.IncomingRequestURL: up.IncomingRequestURL,
		model.IdentityResultURL:  up.IdentityResultURL,
		model.AccessorSignURL:    up.AccessorSignURL,
		model.ErrorURL:           up.ErrorURL,
	}
}

// URLs is the node's callback configuration, one persisted record per purpose.
type URLs struct {
	store  store.CallbackURLStore
	nodeID string

	mu   sync.RWMutex
	urls map[model.CallbackPurpose]string
}

func NewURLs(s store.CallbackURLStore, nodeID string) *URLs {
	return &URLs{
		store:  s,
		nodeID: nodeID,
		urls:   make(map[model.CallbackPurpose]string),
	}
}

func (u *URLs) Load(ctx context.Context) error {
	loaded := make(map[model.CallbackPurpose]string, len(model.CallbackPurposes))
	for _, purpose := range model.CallbackPurposes {
		url, found, err := u.store.GetCallbackURL(ctx, u.nodeID, purpose)
		if err != nil {
			return fmt.Errorf("load %s callback url: %w", purpose, err)
		}
		if found && url != "" {
			loaded[purpose] = url
		}
	}

	u.mu.Lock()
	u.urls = loaded
	u.mu.Unlock()
	return nil
}

func (u *URLs) Update(ctx context.Context, patch URLPatch) error {
	for purpose, url := range patch.entries() {
		if url == nil {
			continue
		}
		if err := u.store.SetCallbackURL(ctx, u.nodeID, purpose, *url); err != nil {
			return fmt.Errorf("save %s callback url: %w", purpose, err)
		}

		u.mu.Lock()
		if *url == "" {
			delete(u.urls, purpose)
		} else {
			u.urls[purpose] = *url
		}
		u.mu.Unlock()
	}
	return nil
}

func (u *URLs) Get(purpose model.CallbackPurpose) (string, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	url, ok := u.urls[purpose]
	return url, ok
}

func (u *URLs) Snapshot() URLPatch {
	u.mu.RLock()
	defer u.mu.RUnlock()

	var patch URLPatch
	ref := func(purpose model.CallbackPurpose) *string {
		if url, ok := u.urls[purpose]; ok {
			return &url
		}
		return nil
	}
	patch.IncomingRequestURL = ref(model.IncomingRequestURL)
	patch.IdentityResultURL = ref(model.IdentityResultURL)
	patch.AccessorSignURL = ref(model.AccessorSignURL)
	patch.ErrorURL = ref(model.ErrorURL)
	return patch
}
