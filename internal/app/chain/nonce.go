package chain

import "github.com/google/uuid"

// NonceSource yields unique, time ordered transaction nonces.
type NonceSource interface {
	Next() (string, error)
}

type uuidNonceSource struct{}

func NewNonceSource() NonceSource {
	return uuidNonceSource{}
}

func (uuidNonceSource) Next() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
