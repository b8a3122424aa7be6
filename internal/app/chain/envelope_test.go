package chain

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeBorshEncoding(t *testing.T) {
	envelope, err := NewEnvelope(MethodAddAccessor, map[string]string{"accessor_id": "acc1"}, "nonce-1")
	require.NoError(t, err)

	data, err := envelope.SerializeBorsh()
	require.NoError(t, err)

	decoded, err := DeserializeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, MethodAddAccessor, decoded.Method)
	assert.JSONEq(t, `{"accessor_id":"acc1"}`, string(decoded.Params))
	assert.Equal(t, "nonce-1", decoded.Nonce)
}

func TestParseReturnData(t *testing.T) {
	const programID = "Prog1111111111111111111111111111111111111111"
	payload := base64.StdEncoding.EncodeToString([]byte(`{"exist":true}`))

	tests := []struct {
		name      string
		logs      []string
		wantFound bool
		wantData  string
		wantErr   bool
	}{
		{
			name: "return from program",
			logs: []string{
				"Program " + programID + " invoke [1]",
				"Program return: " + programID + " " + payload,
				"Program " + programID + " success",
			},
			wantFound: true,
			wantData:  `{"exist":true}`,
		},
		{
			name: "return from another program is ignored",
			logs: []string{"Program return: Other111 " + payload},
		},
		{
			name: "no return",
			logs: []string{"Program " + programID + " success"},
		},
		{
			name:    "corrupt payload",
			logs:    []string{"Program return: " + programID + " !!!"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, found, err := parseReturnData(tt.logs, programID)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFound, found)
			if tt.wantFound {
				assert.Equal(t, tt.wantData, string(data))
			}
		})
	}
}

func TestDecodeResultNull(t *testing.T) {
	var out map[string]any
	found, err := decodeResult([]byte("null"), &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNoncesAreUnique(t *testing.T) {
	source := NewNonceSource()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		nonce, err := source.Next()
		require.NoError(t, err)
		assert.False(t, seen[nonce])
		seen[nonce] = true
	}
}
