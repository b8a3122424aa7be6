package model

type CallbackPurpose string

const (
	IncomingRequestURL CallbackPurpose = "incoming_request"
	IdentityResultURL  CallbackPurpose = "identity_result"
	AccessorSignURL    CallbackPurpose = "accessor_sign"
	ErrorURL           CallbackPurpose = "error"
)

var CallbackPurposes = []CallbackPurpose{
	IncomingRequestURL,
	IdentityResultURL,
	AccessorSignURL,
	ErrorURL,
}

type CallbackEventType string

const (
	EventConsentRequest        CallbackEventType = "consent_request"
	EventOnboardConsentRequest CallbackEventType = "onboard_consent_request"
	EventAddAccessorResult     CallbackEventType = "add_accessor_result"
	EventCreateIdentityResult  CallbackEventType = "create_identity_result"
	EventError                 CallbackEventType = "error"
)

type ConsentRequestEvent struct {
	Type               CallbackEventType `json:"type"`
	RequestID          string            `json:"request_id"`
	Namespace          string            `json:"namespace"`
	Identifier         string            `json:"identifier"`
	RequestMessage     string            `json:"request_message"`
	RequestMessageHash string            `json:"request_message_hash"`
	RequesterNodeID    string            `json:"requester_node_id"`
	MinIal             float64           `json:"min_ial"`
	MinAal             float64           `json:"min_aal"`
	DataRequestList    []DataRequest     `json:"data_request_list"`
}

type OnboardConsentEvent struct {
	Type      CallbackEventType `json:"type"`
	RequestID string            `json:"request_id"`
	Success   bool              `json:"success"`
	Secret    string            `json:"secret,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Error     string            `json:"error,omitempty"`
}

type ErrorEvent struct {
	Type      CallbackEventType `json:"type"`
	RequestID string            `json:"request_id,omitempty"`
	Code      string            `json:"code,omitempty"`
	Message   string            `json:"message"`
}

// AccessorSignRequest is posted to the accessor-sign callback URL.
type AccessorSignRequest struct {
	Sid        string `json:"sid"`
	SidHash    string `json:"sid_hash"`
	HashMethod string `json:"hash_method"`
	KeyType    string `json:"key_type"`
	SignMethod string `json:"sign_method"`
	AccessorID string `json:"accessor_id"`
}

type AccessorSignResponse struct {
	Signature string `json:"signature"`
}
