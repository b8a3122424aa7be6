package reasoncodes

type ReasonCode string

const (
	ErrUnmarshal      ReasonCode = "UnmarshalError"
	ErrInvalidMessage ReasonCode = "INVALID_MESSAGE"
	ErrSolana         ReasonCode = "SolanaBlockchainError"

	ErrRequestNotFound              ReasonCode = "REQUEST_NOT_FOUND"
	ErrAccessorPublicKeyNotFound    ReasonCode = "ACCESSOR_PUBLIC_KEY_NOT_FOUND"
	ErrSignWithAccessorKeyUrlNotSet ReasonCode = "SIGN_WITH_ACCESSOR_KEY_URL_NOT_SET"
	ErrSignWithAccessorKeyFailed    ReasonCode = "SIGN_WITH_ACCESSOR_KEY_FAILED"
	ErrIdentityNotFound             ReasonCode = "IDENTITY_NOT_FOUND"
	ErrIdentityAlreadyExists        ReasonCode = "IDENTITY_ALREADY_EXISTS"
	ErrInvalidKeyFormat             ReasonCode = "INVALID_KEY_FORMAT"
	ErrMismatchedKeyType            ReasonCode = "MISMATCHED_KEY_TYPE"
	ErrUnsupportedKeyType           ReasonCode = "UNSUPPORTED_KEY_TYPE"
	ErrRsaKeyLengthTooShort         ReasonCode = "RSA_KEY_LENGTH_TOO_SHORT"
	ErrNodeKeyNotFound              ReasonCode = "NODE_KEY_NOT_FOUND"
)

var messages = map[ReasonCode]string{
	ErrUnmarshal:                    "Cannot parse message",
	ErrInvalidMessage:               "Invalid message",
	ErrSolana:                       "Blockchain error",
	ErrRequestNotFound:              "Request not found",
	ErrAccessorPublicKeyNotFound:    "Accessor public key not found",
	ErrSignWithAccessorKeyUrlNotSet: "Sign with accessor key callback URL has not been set",
	ErrSignWithAccessorKeyFailed:    "Sign with accessor key failed",
	ErrIdentityNotFound:             "Identity not found",
	ErrIdentityAlreadyExists:        "Identity already exists",
	ErrInvalidKeyFormat:             "Invalid key format",
	ErrMismatchedKeyType:            "Mismatched key type",
	ErrUnsupportedKeyType:           "Unsupported key type",
	ErrRsaKeyLengthTooShort:         "RSA key length is too short. Must be at least 2048-bit",
	ErrNodeKeyNotFound:              "Node key not found",
}

func (rc ReasonCode) String() string {
	return string(rc)
}

func (rc ReasonCode) Message() string {
	if msg, ok := messages[rc]; ok {
		return msg
	}
	return string(rc)
}
