package model

import "encoding/json"

// QueueMessage is the payload exchanged between nodes over the message queue.
// Consent requests carry the namespace/identifier fields, onboarding proof
// responses carry accessor_id and the private proof fields.
type QueueMessage struct {
	RequestID string `json:"request_id"`
	Height    int64  `json:"height"`
	RpID      string `json:"rp_id,omitempty"`
	IdpID     string `json:"idp_id,omitempty"`

	Namespace       string        `json:"namespace,omitempty"`
	Identifier      string        `json:"identifier,omitempty"`
	RequestMessage  string        `json:"request_message,omitempty"`
	MinIal          float64       `json:"min_ial,omitempty"`
	MinAal          float64       `json:"min_aal,omitempty"`
	DataRequestList []DataRequest `json:"data_request_list,omitempty"`

	AccessorID        string `json:"accessor_id,omitempty"`
	Challenge         string `json:"challenge,omitempty"`
	PrivateProofValue string `json:"privateProofValue,omitempty"`
	Padding           string `json:"padding,omitempty"`
}

func (qm QueueMessage) Serialize() ([]byte, error) {
	return json.Marshal(qm)
}

// CounterpartyID is the node that sent the message.
func (qm QueueMessage) CounterpartyID() string {
	if qm.RpID != "" {
		return qm.RpID
	}
	return qm.IdpID
}

// IsOnboardingResponse reports whether the message answers an add-accessor consent.
func (qm QueueMessage) IsOnboardingResponse() bool {
	return qm.AccessorID != ""
}

func (qm QueueMessage) PrivateProof() PrivateProofObject {
	return PrivateProofObject{
		PrivateProofValue: qm.PrivateProofValue,
		AccessorID:        qm.AccessorID,
		Padding:           qm.Padding,
	}
}

type DataRequest struct {
	ServiceID         string   `json:"service_id"`
	AsIDList          []string `json:"as_id_list"`
	MinAs             int      `json:"min_as"`
	RequestParamsHash string   `json:"request_params_hash,omitempty"`
}
