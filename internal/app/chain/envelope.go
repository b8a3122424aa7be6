package chain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/near/borsh-go"
)

// Envelope is the instruction data understood by the registry program.
type Envelope struct {
	Method string
	Params []byte
	Nonce  string
}

func NewEnvelope(method string, params any, nonce string) (Envelope, error) {
	encoded, err := json.Marshal(params)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode params for %s: %w", method, err)
	}
	return Envelope{Method: method, Params: encoded, Nonce: nonce}, nil
}

func (e Envelope) SerializeBorsh() ([]byte, error) {
	return borsh.Serialize(e)
}

func DeserializeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	if err := borsh.Deserialize(&e, data); err != nil {
		return Envelope{}, err
	}
	return e, nil
}

const programReturnPrefix = "Program return: "

// parseReturnData finds the value returned by programID in simulation logs.
func parseReturnData(logs []string, programID string) ([]byte, bool, error) {
	prefix := programReturnPrefix + programID + " "
	for i := len(logs) - 1; i >= 0; i-- {
		if !strings.HasPrefix(logs[i], prefix) {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(logs[i], prefix))
		if err != nil {
			return nil, false, fmt.Errorf("decode program return data: %w", err)
		}
		return data, true, nil
	}
	return nil, false, nil
}
