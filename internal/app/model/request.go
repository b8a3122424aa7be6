package model

const ZeroKnowledgeMode = 3

type ResponseStatus string

const (
	StatusAccept ResponseStatus = "accept"
	StatusReject ResponseStatus = "reject"
)

// Request is the on-chain view of a consent request.
type Request struct {
	RequestID          string        `json:"request_id"`
	Mode               int           `json:"mode"`
	MinIal             float64       `json:"min_ial"`
	MinAal             float64       `json:"min_aal"`
	RequestMessageHash string        `json:"request_message_hash"`
	Namespace          string        `json:"namespace,omitempty"`
	Identifier         string        `json:"identifier,omitempty"`
	DataRequestList    []DataRequest `json:"data_request_list"`
	ResponseList       []Response    `json:"response_list"`
	Closed             bool          `json:"closed"`
	TimedOut           bool          `json:"timed_out"`
}

func (r Request) IsZeroKnowledge() bool {
	return r.Mode == ZeroKnowledgeMode
}

// ResponseFrom returns the response submitted by idpID, if any.
func (r Request) ResponseFrom(idpID string) (Response, bool) {
	for _, response := range r.ResponseList {
		if response.IdpID == idpID {
			return response, true
		}
	}
	return Response{}, false
}

type Response struct {
	IdpID            string         `json:"idp_id"`
	Ial              float64        `json:"ial"`
	Aal              float64        `json:"aal"`
	Status           ResponseStatus `json:"status"`
	Signature        string         `json:"signature"`
	IdentityProof    string         `json:"identity_proof,omitempty"`
	PrivateProofHash string         `json:"private_proof_hash,omitempty"`
}

// IdpResponseTx is the CreateIdpResponse transaction body. It never carries
// the raw private proof value.
type IdpResponseTx struct {
	RequestID        string         `json:"request_id"`
	Aal              float64        `json:"aal"`
	Ial              float64        `json:"ial"`
	Status           ResponseStatus `json:"status"`
	Signature        string         `json:"signature"`
	IdentityProof    string         `json:"identity_proof,omitempty"`
	PrivateProofHash string         `json:"private_proof_hash,omitempty"`
}
