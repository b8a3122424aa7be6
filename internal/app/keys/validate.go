package keys

import (
	"crypto/rsa"
	"fmt"

	reasoncodes "idp-node/pkg/reason_codes"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

const (
	KeyTypeRSA       = "RSA"
	MinRSAKeyBitSize = 2048
)

// ParseAndValidate parses a PEM encoded key and checks it is an RSA key of
// acceptable size. An empty declaredType means RSA is assumed.
func ParseAndValidate(pemData []byte, declaredType string) (jwk.Key, error) {
	key, err := jwk.ParseKey(pemData, jwk.WithPEM(true))
	if err != nil {
		return nil, reasoncodes.Wrap(reasoncodes.ErrInvalidKeyFormat, err)
	}

	switch {
	case declaredType == KeyTypeRSA && key.KeyType() != jwa.RSA:
		return nil, reasoncodes.New(reasoncodes.ErrMismatchedKeyType).
			WithContext(map[string]any{"declared": declaredType, "actual": key.KeyType().String()})
	case declaredType != "" && declaredType != KeyTypeRSA:
		return nil, reasoncodes.New(reasoncodes.ErrUnsupportedKeyType).
			WithContext(map[string]any{"declared": declaredType})
	case key.KeyType() != jwa.RSA:
		return nil, reasoncodes.New(reasoncodes.ErrUnsupportedKeyType).
			WithContext(map[string]any{"actual": key.KeyType().String()})
	}

	raw, err := jwk.PublicRawKeyOf(key)
	if err != nil {
		return nil, reasoncodes.Wrap(reasoncodes.ErrInvalidKeyFormat, err)
	}
	publicKey, ok := raw.(*rsa.PublicKey)
	if !ok {
		return nil, reasoncodes.Wrap(reasoncodes.ErrInvalidKeyFormat, fmt.Errorf("unexpected raw key %T", raw))
	}
	if publicKey.N.BitLen() < MinRSAKeyBitSize {
		return nil, reasoncodes.New(reasoncodes.ErrRsaKeyLengthTooShort).
			WithContext(map[string]any{"bits": publicKey.N.BitLen()})
	}

	return key, nil
}

// RSAPublicKey parses a PEM public (or private) key and returns its RSA public half.
func RSAPublicKey(pemData []byte) (*rsa.PublicKey, error) {
	key, err := ParseAndValidate(pemData, KeyTypeRSA)
	if err != nil {
		return nil, err
	}
	raw, err := jwk.PublicRawKeyOf(key)
	if err != nil {
		return nil, err
	}
	return raw.(*rsa.PublicKey), nil
}
