package proof

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"io"
	"math/big"

	"idp-node/internal/app/keys"
	"idp-node/internal/app/model"
	"idp-node/internal/app/store"
	"idp-node/pkg/logger"
	reasoncodes "idp-node/pkg/reason_codes"
)

type NodeSigner interface {
	Sign(nodeID string, payload []byte) (string, error)
}

type LedgerReader interface {
	GetAccessorKey(ctx context.Context, accessorID string) (string, bool, error)
	GetRequestDetail(ctx context.Context, requestID string) (model.Request, bool, error)
	GetIdentityProof(ctx context.Context, requestID, idpID string) (string, bool, error)
}

// SignRequest carries what a response needs. ClientSignature, when set, is
// used as the response signature in zero knowledge mode.
type SignRequest struct {
	Mode            int
	RequestID       string
	RequestMessage  string
	AccessorID      string
	Secret          string
	NodeID          string
	ClientSignature string
}

// SignResult separates what goes on chain from the private proof that is
// only ever sent over the queue.
type SignResult struct {
	Signature        string
	IdentityProof    string
	PrivateProofHash string
	PrivateProof     model.PrivateProofObject
}

type Engine struct {
	signer NodeSigner
	store  store.Store
	ledger LedgerReader
	log    *logger.Logger
	random io.Reader
}

func NewEngine(signer NodeSigner, s store.Store, ledger LedgerReader, log *logger.Logger) *Engine {
	return &Engine{
		signer: signer,
		store:  s,
		ledger: ledger,
		log:    log.WithStr("component", "proof-engine"),
		random: rand.Reader,
	}
}

func (e *Engine) Sign(ctx context.Context, req SignRequest) (SignResult, error) {
	if req.Mode != model.ZeroKnowledgeMode || req.ClientSignature == "" {
		signature, err := e.signer.Sign(req.NodeID, []byte(req.RequestMessage))
		if err != nil {
			return SignResult{}, err
		}
		req.ClientSignature = signature
	}

	result := SignResult{Signature: req.ClientSignature}
	if req.Mode != model.ZeroKnowledgeMode {
		return result, nil
	}

	msg, found, err := e.store.GetQueueMessage(ctx, req.RequestID)
	if err != nil {
		return SignResult{}, err
	}
	if !found {
		return SignResult{}, reasoncodes.New(reasoncodes.ErrRequestNotFound).
			WithContext(map[string]any{"request_id": req.RequestID})
	}

	publicKey, err := e.accessorPublicKey(ctx, req.AccessorID)
	if err != nil {
		return SignResult{}, err
	}

	secret, ok := decodeInt(req.Secret)
	if !ok || secret.Cmp(publicKey.N) >= 0 {
		return SignResult{}, reasoncodes.New(reasoncodes.ErrInvalidMessage).
			WithContext(map[string]any{"request_id": req.RequestID, "reason": "invalid accessor secret"})
	}

	padding, err := e.newPadding()
	if err != nil {
		return SignResult{}, err
	}

	blockchainProof, privateProofValue, err := e.prove(publicKey, secret, msg.Challenge, padding)
	if err != nil {
		return SignResult{}, err
	}

	result.IdentityProof = encodeInt(blockchainProof)
	result.PrivateProof = model.PrivateProofObject{
		PrivateProofValue: encodeInt(privateProofValue),
		AccessorID:        req.AccessorID,
		Padding:           padding,
	}
	result.PrivateProofHash = Hash(result.PrivateProof.PrivateProofValue)
	return result, nil
}

func (e *Engine) prove(publicKey *rsa.PublicKey, secret *big.Int, challenge, padding string) (*big.Int, *big.Int, error) {
	n := publicKey.N
	exponent := big.NewInt(int64(publicKey.E))

	k, err := rand.Int(e.random, n)
	if err != nil {
		return nil, nil, fmt.Errorf("draw proof nonce: %w", err)
	}

	blockchainProof := new(big.Int).Exp(k, exponent, n)
	c := challengeHash(challenge, blockchainProof, padding)

	privateProofValue := new(big.Int).Exp(secret, c, n)
	privateProofValue.Mul(privateProofValue, k).Mod(privateProofValue, n)

	return blockchainProof, privateProofValue, nil
}

func (e *Engine) newPadding() (string, error) {
	raw := make([]byte, 32)
	if _, err := io.ReadFull(e.random, raw); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func (e *Engine) accessorPublicKey(ctx context.Context, accessorID string) (*rsa.PublicKey, error) {
	pemKey, found, err := e.ledger.GetAccessorKey(ctx, accessorID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, reasoncodes.New(reasoncodes.ErrAccessorPublicKeyNotFound).
			WithContext(map[string]any{"accessor_id": accessorID})
	}
	return keys.RSAPublicKey([]byte(pemKey))
}

// Verify checks the private proof idpID sent for requestID against what it
// committed on chain. A proof that does not hold is reported as false, errors
// are reserved for lookups that could not be made.
func (e *Engine) Verify(ctx context.Context, requestID, idpID string, msg model.QueueMessage) (bool, error) {
	log := e.log.WithFields(map[string]any{"request_id": requestID, "idp_id": idpID})

	request, found, err := e.ledger.GetRequestDetail(ctx, requestID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, reasoncodes.New(reasoncodes.ErrRequestNotFound).WithContext(map[string]any{"request_id": requestID})
	}

	response, ok := request.ResponseFrom(idpID)
	if !ok {
		log.Warn("No response from idp on chain")
		return false, nil
	}

	privateProof, err := e.privateProofOf(ctx, requestID, idpID, msg)
	if err != nil {
		return false, err
	}

	if Hash(privateProof.PrivateProofValue) != response.PrivateProofHash {
		log.Warn("Private proof hash mismatch")
		return false, nil
	}

	identityProof := response.IdentityProof
	if identityProof == "" {
		identityProof, found, err = e.ledger.GetIdentityProof(ctx, requestID, idpID)
		if err != nil {
			return false, err
		}
		if !found {
			log.Warn("No identity proof on chain")
			return false, nil
		}
	}

	challenge, found, err := e.store.GetChallenge(ctx, requestID)
	if err != nil {
		return false, err
	}
	if !found {
		challenge = msg.Challenge
	}

	namespace, identifier := request.Namespace, request.Identifier
	if identity, found, err := e.store.GetPendingIdentity(ctx, requestID); err != nil {
		return false, err
	} else if found {
		namespace, identifier = identity.Namespace, identity.Identifier
	}

	publicKey, err := e.accessorPublicKey(ctx, privateProof.AccessorID)
	if err != nil {
		return false, err
	}

	blockchainProof, ok := decodeInt(identityProof)
	if !ok {
		return false, nil
	}
	privateProofValue, ok := decodeInt(privateProof.PrivateProofValue)
	if !ok {
		return false, nil
	}

	n := publicKey.N
	exponent := big.NewInt(int64(publicKey.E))
	c := challengeHash(challenge, blockchainProof, privateProof.Padding)
	sidEncoding := pkcs1Encode(Sid(namespace, identifier), (n.BitLen()+7)/8)

	lhs := new(big.Int).Exp(privateProofValue, exponent, n)
	rhs := new(big.Int).Exp(sidEncoding, c, n)
	rhs.Mul(rhs, blockchainProof).Mod(rhs, n)

	valid := lhs.Cmp(rhs) == 0
	if !valid {
		log.Warn("Zero knowledge proof does not hold")
	}
	return valid, nil
}

// privateProofOf returns the contribution recorded when idpID's message was
// received. The buffered message holds only the latest sender's proof, so it
// is used only when nothing was recorded.
func (e *Engine) privateProofOf(ctx context.Context, requestID, idpID string, msg model.QueueMessage) (model.PrivateProofObject, error) {
	contributions, err := e.store.ProofContributions(ctx, requestID)
	if err != nil {
		return model.PrivateProofObject{}, err
	}
	for _, contribution := range contributions {
		if contribution.IdpID == idpID {
			return contribution.PrivateProof, nil
		}
	}
	return msg.PrivateProof(), nil
}
