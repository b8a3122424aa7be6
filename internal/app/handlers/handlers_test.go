package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"idp-node/internal/app/callback"
	"idp-node/internal/app/chain"
	"idp-node/internal/app/idp"
	"idp-node/internal/app/keys/keystest"
	"idp-node/internal/app/model"
	"idp-node/internal/app/onboarding"
	"idp-node/internal/app/store"
	"idp-node/pkg/logger"
	reasoncodes "idp-node/pkg/reason_codes"
	"idp-node/pkg/rest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResponder struct {
	result chain.TxResult
	err    error
	got    idp.ResponseInput
}

func (fr *fakeResponder) CreateIdpResponse(_ context.Context, in idp.ResponseInput) (chain.TxResult, error) {
	fr.got = in
	return fr.result, fr.err
}

type fakeIdentities struct {
	created idp.CreatedIdentity
	err     error
	got     idp.IdentityInput
}

func (fi *fakeIdentities) CreateIdentity(_ context.Context, in idp.IdentityInput) (idp.CreatedIdentity, error) {
	fi.got = in
	return fi.created, fi.err
}

type fakeOnboarding struct {
	begun []onboarding.BeginInput
	err   error
}

func (fo *fakeOnboarding) Begin(_ context.Context, in onboarding.BeginInput) error {
	fo.begun = append(fo.begun, in)
	return fo.err
}

type fakeHeights struct {
	height int64
	err    error
}

func (fh fakeHeights) LatestBlockHeight(context.Context) (int64, error) {
	return fh.height, fh.err
}

type handlersFixture struct {
	router     *gin.Engine
	urls       *callback.URLs
	responder  *fakeResponder
	identities *fakeIdentities
	onboarding *fakeOnboarding
}

func newHandlersFixture(t *testing.T, heights HeightReader) *handlersFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &handlersFixture{
		urls:       callback.NewURLs(store.NewMemoryStore(), "idp1"),
		responder:  &fakeResponder{result: chain.Committed(42)},
		identities: &fakeIdentities{},
		onboarding: &fakeOnboarding{},
	}
	h := Handlers{
		Callback: NewCallbackHandler(f.urls, logger.Nop()),
		Response: NewResponseHandler(f.responder, logger.Nop()),
		Identity: NewIdentityHandler(f.identities, f.onboarding, logger.Nop()),
		Health:   NewHealthHandler("idp1", heights),
	}

	f.router = gin.New()
	require.NoError(t, rest.Register(f.router, nil, h.Routes()))
	return f
}

func (f *handlersFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	switch b := body.(type) {
	case nil:
	case string:
		payload = []byte(b)
	default:
		var err error
		payload, err = json.Marshal(b)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCallbackURLs(t *testing.T) {
	f := newHandlersFixture(t, fakeHeights{})

	rec := f.do(t, http.MethodPost, "/idp/callback", map[string]string{
		"incoming_request_url": "http://client/incoming",
		"error_url":            "http://client/error",
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	url, ok := f.urls.Get(model.IncomingRequestURL)
	assert.True(t, ok)
	assert.Equal(t, "http://client/incoming", url)

	rec = f.do(t, http.MethodGet, "/idp/callback", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"incoming_request_url":"http://client/incoming","error_url":"http://client/error"}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/idp/callback", map[string]string{"error_url": ""})
	require.Equal(t, http.StatusNoContent, rec.Code)
	_, ok = f.urls.Get(model.ErrorURL)
	assert.False(t, ok)

	rec = f.do(t, http.MethodPost, "/idp/callback", "{broken")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func validResponse() map[string]any {
	return map[string]any{
		"request_id":  "req-1",
		"ial":         2.3,
		"aal":         3,
		"status":      "accept",
		"signature":   "client-signature",
		"accessor_id": "acc-1",
		"secret":      "c2VjcmV0",
	}
}

func TestCreateIdpResponse(t *testing.T) {
	t.Run("committed", func(t *testing.T) {
		f := newHandlersFixture(t, fakeHeights{})

		rec := f.do(t, http.MethodPost, "/idp/response", validResponse())
		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, float64(42), decode(t, rec)["height"])
		assert.Equal(t, idp.ResponseInput{
			RequestID:  "req-1",
			Ial:        2.3,
			Aal:        3,
			Status:     model.StatusAccept,
			Signature:  "client-signature",
			AccessorID: "acc-1",
			Secret:     "c2VjcmV0",
		}, f.responder.got)
	})

	t.Run("chain unavailable", func(t *testing.T) {
		f := newHandlersFixture(t, fakeHeights{})
		f.responder.result = chain.Unavailable()

		rec := f.do(t, http.MethodPost, "/idp/response", validResponse())
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("request not found", func(t *testing.T) {
		f := newHandlersFixture(t, fakeHeights{})
		f.responder.err = reasoncodes.New(reasoncodes.ErrRequestNotFound)

		rec := f.do(t, http.MethodPost, "/idp/response", validResponse())
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "REQUEST_NOT_FOUND", decode(t, rec)["code"])
	})

	t.Run("invalid status", func(t *testing.T) {
		f := newHandlersFixture(t, fakeHeights{})
		body := validResponse()
		body["status"] = "maybe"

		rec := f.do(t, http.MethodPost, "/idp/response", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, f.responder.got.RequestID)
	})
}

func TestCreateIdentity(t *testing.T) {
	body := map[string]any{
		"namespace":           "citizen_id",
		"identifier":          "123",
		"accessor_type":       "RSA",
		"accessor_public_key": "pem",
	}

	t.Run("created", func(t *testing.T) {
		f := newHandlersFixture(t, fakeHeights{})
		f.identities.created = idp.CreatedIdentity{
			HashID:             "hash",
			ReferenceGroupCode: "rgc",
			AccessorID:         "acc",
			Result:             chain.Committed(9),
		}

		rec := f.do(t, http.MethodPost, "/identity", body)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "rgc", decode(t, rec)["reference_group_code"])
		assert.NotEmpty(t, f.identities.got.AccessorID)
	})

	t.Run("already exists", func(t *testing.T) {
		f := newHandlersFixture(t, fakeHeights{})
		f.identities.err = reasoncodes.New(reasoncodes.ErrIdentityAlreadyExists)

		rec := f.do(t, http.MethodPost, "/identity", body)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("short key", func(t *testing.T) {
		f := newHandlersFixture(t, fakeHeights{})
		f.identities.err = reasoncodes.New(reasoncodes.ErrRsaKeyLengthTooShort)

		rec := f.do(t, http.MethodPost, "/identity", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing identifier", func(t *testing.T) {
		f := newHandlersFixture(t, fakeHeights{})

		rec := f.do(t, http.MethodPost, "/identity", map[string]any{"namespace": "citizen_id"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAddAccessorBeginsOnboarding(t *testing.T) {
	f := newHandlersFixture(t, fakeHeights{})
	key := keystest.RSAKey(t, 2048)

	rec := f.do(t, http.MethodPost, "/identity/accessors", map[string]any{
		"namespace":           "citizen_id",
		"identifier":          "123",
		"reference_id":        "ref-1",
		"callback_url":        "http://client/accessor",
		"accessor_type":       "RSA",
		"accessor_public_key": string(keystest.PublicPEM(t, &key.PublicKey)),
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, f.onboarding.begun, 1)
	begun := f.onboarding.begun[0]
	assert.Equal(t, decode(t, rec)["request_id"], begun.RequestID)
	assert.Equal(t, addAccessorType, begun.Identity.Type)
	assert.NotEmpty(t, begun.Identity.AccessorID)
	assert.NotEmpty(t, begun.Challenge)
	assert.Equal(t, onboarding.NotifyAddAccessorResultFn, begun.Continuation.FnName)

	var args onboarding.AddAccessorResultArgs
	require.NoError(t, json.Unmarshal(begun.Continuation.Args, &args))
	assert.Equal(t, onboarding.AddAccessorResultArgs{
		RequestID:   begun.RequestID,
		ReferenceID: "ref-1",
		CallbackURL: "http://client/accessor",
	}, args)
}

func TestAddAccessorWithoutCallbackURLAnnouncesOnIncomingRequestURL(t *testing.T) {
	f := newHandlersFixture(t, fakeHeights{})
	key := keystest.RSAKey(t, 2048)

	rec := f.do(t, http.MethodPost, "/identity/accessors", map[string]any{
		"namespace":           "citizen_id",
		"identifier":          "123",
		"reference_id":        "ref-1",
		"accessor_type":       "RSA",
		"accessor_public_key": string(keystest.PublicPEM(t, &key.PublicKey)),
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, f.onboarding.begun, 1)
	begun := f.onboarding.begun[0]
	assert.Equal(t, onboarding.NotifyOnboardResultFn, begun.Continuation.FnName)

	var args onboarding.OnboardResultArgs
	require.NoError(t, json.Unmarshal(begun.Continuation.Args, &args))
	assert.Equal(t, onboarding.OnboardResultArgs{RequestID: begun.RequestID}, args)
}

func TestAddAccessorRejectsInvalidCallbackURL(t *testing.T) {
	f := newHandlersFixture(t, fakeHeights{})
	key := keystest.RSAKey(t, 2048)

	rec := f.do(t, http.MethodPost, "/identity/accessors", map[string]any{
		"namespace":           "citizen_id",
		"identifier":          "123",
		"reference_id":        "ref-1",
		"callback_url":        "not a url",
		"accessor_type":       "RSA",
		"accessor_public_key": string(keystest.PublicPEM(t, &key.PublicKey)),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.onboarding.begun)
}

func TestAddAccessorRejectsBadKey(t *testing.T) {
	f := newHandlersFixture(t, fakeHeights{})
	short := keystest.RSAKey(t, 1024)

	rec := f.do(t, http.MethodPost, "/identity/accessors", map[string]any{
		"namespace":           "citizen_id",
		"identifier":          "123",
		"reference_id":        "ref-1",
		"callback_url":        "http://client/accessor",
		"accessor_type":       "RSA",
		"accessor_public_key": string(keystest.PublicPEM(t, &short.PublicKey)),
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "RSA_KEY_LENGTH_TOO_SHORT", decode(t, rec)["code"])
	assert.Empty(t, f.onboarding.begun)
}

func TestHealth(t *testing.T) {
	f := newHandlersFixture(t, fakeHeights{height: 1234})
	rec := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1234), decode(t, rec)["block_height"])

	f = newHandlersFixture(t, fakeHeights{err: errors.New("rpc down")})
	rec = f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
