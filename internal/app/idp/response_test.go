package idp

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"idp-node/internal/app/chain"
	"idp-node/internal/app/chain/chaintest"
	"idp-node/internal/app/keys"
	"idp-node/internal/app/keys/keystest"
	"idp-node/internal/app/model"
	"idp-node/internal/app/proof"
	"idp-node/internal/app/store"
	"idp-node/pkg/logger"
	reasoncodes "idp-node/pkg/reason_codes"
	"idp-node/pkg/utilities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	nodeID     = "idp1"
	accessorID = "acc-1"
	requestID  = "req-1"
)

type published struct {
	routingKey string
	body       []byte
}

type fakePublisher struct {
	mu        sync.Mutex
	published []published
}

func (fp *fakePublisher) Publish(ctx context.Context, body utilities.Serializable) error {
	return fp.PublishTo(ctx, "", body)
}

func (fp *fakePublisher) PublishTo(_ context.Context, routingKey string, body utilities.Serializable) error {
	data, err := body.Serialize()
	if err != nil {
		return err
	}
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.published = append(fp.published, published{routingKey: routingKey, body: data})
	return nil
}

type responderFixture struct {
	responder   *Responder
	store       *store.MemoryStore
	gateway     *chaintest.FakeGateway
	relay       *fakePublisher
	nodeKey     *rsa.PrivateKey
	accessorKey *rsa.PrivateKey
}

func newResponderFixture(t *testing.T, mode int) *responderFixture {
	t.Helper()

	nodeKey := keystest.RSAKey(t, 2048)
	accessorKey := keystest.RSAKey(t, 2048)

	provider := keys.NewFileProvider(keys.KeysConfig{}, nodeID, logger.Nop())
	require.NoError(t, provider.Update(nodeID, keystest.PrivatePEM(nodeKey)))

	gateway := chaintest.NewFakeGateway()
	gateway.SetCommitHeight(321)
	gateway.Returns(chain.MethodGetRequest, model.Request{RequestID: requestID, Mode: mode})
	gateway.Returns(chain.MethodGetAccessorKey, map[string]string{
		"accessor_public_key": string(keystest.PublicPEM(t, &accessorKey.PublicKey)),
	})

	ledger, err := chain.NewLedger(gateway, chain.NewNonceSource())
	require.NoError(t, err)
	t.Cleanup(ledger.Close)

	s := store.NewMemoryStore()
	engine := proof.NewEngine(provider, s, ledger, logger.Nop())
	relay := &fakePublisher{}

	ctx := context.Background()
	require.NoError(t, s.SaveQueueMessage(ctx, model.QueueMessage{
		RequestID:      requestID,
		RpID:           "rp1",
		Challenge:      "challenge-abc",
		RequestMessage: "please consent",
	}))
	require.NoError(t, s.SetCounterparty(ctx, requestID, "rp1"))

	return &responderFixture{
		responder:   NewResponder(nodeID, s, ledger, engine, relay, logger.Nop()),
		store:       s,
		gateway:     gateway,
		relay:       relay,
		nodeKey:     nodeKey,
		accessorKey: accessorKey,
	}
}

func (f *responderFixture) secret(t *testing.T) string {
	t.Helper()
	digest := sha256.Sum256([]byte(proof.Sid("citizen_id", "123")))
	signature, err := rsa.SignPKCS1v15(rand.Reader, f.accessorKey, crypto.SHA256, digest[:])
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(signature)
}

func (f *responderFixture) input(t *testing.T) ResponseInput {
	return ResponseInput{
		RequestID:  requestID,
		Ial:        2.3,
		Aal:        3,
		Status:     model.StatusAccept,
		Signature:  "client-signature",
		AccessorID: accessorID,
		Secret:     f.secret(t),
	}
}

func TestZeroKnowledgeResponseKeepsPrivateProofOffChain(t *testing.T) {
	f := newResponderFixture(t, model.ZeroKnowledgeMode)
	ctx := context.Background()

	result, err := f.responder.CreateIdpResponse(ctx, f.input(t))
	require.NoError(t, err)
	assert.Equal(t, chain.Committed(321), result)

	require.Len(t, f.relay.published, 1)
	assert.Equal(t, "rp1", f.relay.published[0].routingKey)
	var relayed model.PrivateProofRelay
	require.NoError(t, json.Unmarshal(f.relay.published[0].body, &relayed))
	assert.Equal(t, requestID, relayed.RequestID)
	assert.Equal(t, int64(321), relayed.Height)
	assert.Equal(t, nodeID, relayed.IdpID)
	assert.Equal(t, accessorID, relayed.AccessorID)
	require.NotEmpty(t, relayed.PrivateProofValue)
	require.NotEmpty(t, relayed.Padding)

	txs := f.gateway.Transactions("")
	require.Len(t, txs, 1)
	assert.Equal(t, chain.MethodCreateIdpResponse, txs[0].Method)
	assert.NotContains(t, string(txs[0].Params), relayed.PrivateProofValue)
	assert.False(t, strings.Contains(string(txs[0].Params), "privateProofValue"))

	var tx model.IdpResponseTx
	require.NoError(t, txs[0].Decode(&tx))
	assert.Equal(t, proof.Hash(relayed.PrivateProofValue), tx.PrivateProofHash)
	assert.NotEmpty(t, tx.IdentityProof)
	assert.Equal(t, "client-signature", tx.Signature)
	assert.Equal(t, model.StatusAccept, tx.Status)

	_, found, err := f.store.GetQueueMessage(ctx, requestID)
	require.NoError(t, err)
	assert.False(t, found)
	_, found, err = f.store.GetCounterparty(ctx, requestID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDirectSignatureResponse(t *testing.T) {
	f := newResponderFixture(t, 1)
	in := f.input(t)
	in.Secret = ""

	_, err := f.responder.CreateIdpResponse(context.Background(), in)
	require.NoError(t, err)

	txs := f.gateway.Transactions(chain.MethodCreateIdpResponse)
	require.Len(t, txs, 1)
	var tx model.IdpResponseTx
	require.NoError(t, txs[0].Decode(&tx))
	assert.Empty(t, tx.IdentityProof)
	assert.Empty(t, tx.PrivateProofHash)

	payload, err := keys.VerifySignature(&f.nodeKey.PublicKey, tx.Signature)
	require.NoError(t, err)
	assert.Equal(t, "please consent", string(payload))

	require.Len(t, f.relay.published, 1)
	var relayed model.PrivateProofRelay
	require.NoError(t, json.Unmarshal(f.relay.published[0].body, &relayed))
	assert.True(t, relayed.IsEmpty())
	assert.Equal(t, int64(321), relayed.Height)
}

func TestResponseLookupErrors(t *testing.T) {
	t.Run("request not found", func(t *testing.T) {
		f := newResponderFixture(t, model.ZeroKnowledgeMode)
		f.gateway.OnQuery(chain.MethodGetRequest, func(json.RawMessage) (any, bool, error) {
			return nil, false, nil
		})

		_, err := f.responder.CreateIdpResponse(context.Background(), f.input(t))
		assert.ErrorIs(t, err, reasoncodes.New(reasoncodes.ErrRequestNotFound))
		assert.Equal(t, requestID, reasoncodes.ContextOf(err)["request_id"])
		assert.Empty(t, f.gateway.Transactions(""))
	})

	t.Run("accessor key not found", func(t *testing.T) {
		f := newResponderFixture(t, model.ZeroKnowledgeMode)
		f.gateway.OnQuery(chain.MethodGetAccessorKey, func(json.RawMessage) (any, bool, error) {
			return nil, false, nil
		})

		_, err := f.responder.CreateIdpResponse(context.Background(), f.input(t))
		assert.ErrorIs(t, err, reasoncodes.New(reasoncodes.ErrAccessorPublicKeyNotFound))
		assert.Empty(t, f.gateway.Transactions(""))
	})

	t.Run("challenge missing", func(t *testing.T) {
		f := newResponderFixture(t, model.ZeroKnowledgeMode)
		require.NoError(t, f.store.RemoveQueueMessage(context.Background(), requestID))

		_, err := f.responder.CreateIdpResponse(context.Background(), f.input(t))
		assert.ErrorIs(t, err, reasoncodes.New(reasoncodes.ErrRequestNotFound))
		assert.Empty(t, f.gateway.Transactions(""))
	})
}

func TestResponseWhileChainUnavailable(t *testing.T) {
	f := newResponderFixture(t, model.ZeroKnowledgeMode)
	f.gateway.SetUnavailable(true)
	ctx := context.Background()

	result, err := f.responder.CreateIdpResponse(ctx, f.input(t))
	require.NoError(t, err)
	assert.True(t, result.TemporarilyUnavailable)
	assert.Empty(t, f.relay.published)

	_, found, err := f.store.GetQueueMessage(ctx, requestID)
	require.NoError(t, err)
	assert.True(t, found)
}
