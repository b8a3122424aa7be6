package model

import "encoding/json"

// PrivateProofObject is never written to the chain; only the hash of
// PrivateProofValue is committed as private_proof_hash.
type PrivateProofObject struct {
	PrivateProofValue string `json:"privateProofValue"`
	AccessorID        string `json:"accessor_id"`
	Padding           string `json:"padding"`
}

// ProofContribution is one responder's private proof accumulated for a request.
type ProofContribution struct {
	IdpID        string             `json:"idp_id"`
	PrivateProof PrivateProofObject `json:"privateProofObject"`
}

// PrivateProofRelay is what this node sends to the requester after its response is committed.
type PrivateProofRelay struct {
	RequestID string `json:"request_id"`
	PrivateProofObject
	Height int64  `json:"height"`
	IdpID  string `json:"idp_id"`
}

func (ppr PrivateProofRelay) IsEmpty() bool {
	return ppr.PrivateProofValue == ""
}

func (ppr PrivateProofRelay) Serialize() ([]byte, error) {
	return json.Marshal(ppr)
}
