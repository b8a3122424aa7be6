package chain

import (
	"context"
	"fmt"
	"time"

	"idp-node/internal/app/model"
)

const (
	MethodGetRequest             = "GetRequest"
	MethodGetRequestDetail       = "GetRequestDetail"
	MethodGetAccessorKey         = "GetAccessorKey"
	MethodGetReferenceGroupCode  = "GetReferenceGroupCode"
	MethodGetIdentityProof       = "GetIdentityProof"
	MethodCheckExistingIdentity  = "CheckExistingIdentity"
	MethodCheckExistingAccessor  = "CheckExistingAccessor"
	MethodGetNodePublicKey       = "GetNodePublicKey"
	MethodAddAccessor            = "AddAccessor"
	MethodCreateIdpResponse      = "CreateIdpResponse"
	MethodCreateIdentity         = "CreateIdentity"
	MethodRegisterMsqDestination = "RegisterMsqDestination"
	MethodRegisterMsqAddress     = "RegisterMsqAddress"
)

const defaultCacheTTL = 10 * time.Minute

// Ledger exposes the registry program's methods with typed parameters.
type Ledger struct {
	gateway Gateway
	nonces  NonceSource
	cache   *lookupCache
}

func NewLedger(gateway Gateway, nonces NonceSource) (*Ledger, error) {
	cache, err := newLookupCache(defaultCacheTTL)
	if err != nil {
		return nil, err
	}
	return &Ledger{gateway: gateway, nonces: nonces, cache: cache}, nil
}

func (l *Ledger) Close() {
	l.cache.Close()
}

func (l *Ledger) transact(ctx context.Context, method string, params any) (TxResult, error) {
	nonce, err := l.nonces.Next()
	if err != nil {
		return TxResult{}, fmt.Errorf("nonce for %s: %w", method, err)
	}
	return l.gateway.Transact(ctx, method, params, nonce)
}

func (l *Ledger) GetRequest(ctx context.Context, requestID string) (model.Request, bool, error) {
	var request model.Request
	found, err := l.gateway.Query(ctx, MethodGetRequest, map[string]string{"request_id": requestID}, &request)
	return request, found, err
}

// GetRequestDetail includes the response list and the data requests.
func (l *Ledger) GetRequestDetail(ctx context.Context, requestID string) (model.Request, bool, error) {
	var request model.Request
	found, err := l.gateway.Query(ctx, MethodGetRequestDetail, map[string]string{"request_id": requestID}, &request)
	return request, found, err
}

type accessorKeyResult struct {
	AccessorPublicKey string `json:"accessor_public_key"`
	AccessorType      string `json:"accessor_type"`
}

func (l *Ledger) GetAccessorKey(ctx context.Context, accessorID string) (string, bool, error) {
	return l.cache.getOrLoad("accessor:"+accessorID, func() (string, bool, error) {
		var result accessorKeyResult
		found, err := l.gateway.Query(ctx, MethodGetAccessorKey, map[string]string{"accessor_id": accessorID}, &result)
		if err != nil || !found || result.AccessorPublicKey == "" {
			return "", false, err
		}
		return result.AccessorPublicKey, true, nil
	})
}

type referenceGroupResult struct {
	ReferenceGroupCode string `json:"reference_group_code"`
}

func (l *Ledger) GetReferenceGroupCode(ctx context.Context, namespace, identifier string) (string, bool, error) {
	return l.cache.getOrLoad("rgc:"+namespace+":"+identifier, func() (string, bool, error) {
		var result referenceGroupResult
		params := map[string]string{"namespace": namespace, "identifier": identifier}
		found, err := l.gateway.Query(ctx, MethodGetReferenceGroupCode, params, &result)
		if err != nil || !found || result.ReferenceGroupCode == "" {
			return "", false, err
		}
		return result.ReferenceGroupCode, true, nil
	})
}

type identityProofResult struct {
	IdentityProof string `json:"identity_proof"`
}

func (l *Ledger) GetIdentityProof(ctx context.Context, requestID, idpID string) (string, bool, error) {
	var result identityProofResult
	params := map[string]string{"request_id": requestID, "idp_id": idpID}
	found, err := l.gateway.Query(ctx, MethodGetIdentityProof, params, &result)
	if err != nil || !found || result.IdentityProof == "" {
		return "", false, err
	}
	return result.IdentityProof, true, nil
}

type existResult struct {
	Exist bool `json:"exist"`
}

func (l *Ledger) CheckExistingIdentity(ctx context.Context, hashID string) (bool, error) {
	var result existResult
	_, err := l.gateway.Query(ctx, MethodCheckExistingIdentity, map[string]string{"hash_id": hashID}, &result)
	return result.Exist, err
}

func (l *Ledger) CheckExistingAccessor(ctx context.Context, accessorID string) (bool, error) {
	var result existResult
	_, err := l.gateway.Query(ctx, MethodCheckExistingAccessor, map[string]string{"accessor_id": accessorID}, &result)
	return result.Exist, err
}

type nodeKeyResult struct {
	PublicKey string `json:"public_key"`
}

// GetNodePublicKey returns the public key a node registered on chain.
func (l *Ledger) GetNodePublicKey(ctx context.Context, nodeID string) (string, bool, error) {
	var result nodeKeyResult
	found, err := l.gateway.Query(ctx, MethodGetNodePublicKey, map[string]string{"node_id": nodeID}, &result)
	if err != nil || !found || result.PublicKey == "" {
		return "", false, err
	}
	return result.PublicKey, true, nil
}

func (l *Ledger) AddAccessor(ctx context.Context, tx model.AddAccessorTx) (TxResult, error) {
	return l.transact(ctx, MethodAddAccessor, tx)
}

func (l *Ledger) CreateIdpResponse(ctx context.Context, tx model.IdpResponseTx) (TxResult, error) {
	return l.transact(ctx, MethodCreateIdpResponse, tx)
}

func (l *Ledger) CreateIdentity(ctx context.Context, tx model.CreateIdentityTx) (TxResult, error) {
	return l.transact(ctx, MethodCreateIdentity, tx)
}

func (l *Ledger) RegisterMsqDestination(ctx context.Context, tx model.RegisterMqDestinationTx) (TxResult, error) {
	return l.transact(ctx, MethodRegisterMsqDestination, tx)
}

func (l *Ledger) RegisterMsqAddress(ctx context.Context, tx model.RegisterMqAddressTx) (TxResult, error) {
	return l.transact(ctx, MethodRegisterMsqAddress, tx)
}
