package model

// Accessor is the public half of a key allowed to act for an identity.
type Accessor struct {
	AccessorID         string `json:"accessor_id"`
	AccessorPublicKey  string `json:"accessor_public_key"`
	AccessorType       string `json:"accessor_type"`
	ReferenceGroupCode string `json:"reference_group_code,omitempty"`
}

// PendingIdentity is the identity change a request_id is waiting consent for.
type PendingIdentity struct {
	Type               string `json:"type"`
	Namespace          string `json:"namespace"`
	Identifier         string `json:"identifier"`
	AccessorID         string `json:"accessor_id"`
	AccessorPublicKey  string `json:"accessor_public_key"`
	AccessorType       string `json:"accessor_type"`
	ReferenceGroupCode string `json:"reference_group_code,omitempty"`
}

func (pi PendingIdentity) Accessor() Accessor {
	return Accessor{
		AccessorID:         pi.AccessorID,
		AccessorPublicKey:  pi.AccessorPublicKey,
		AccessorType:       pi.AccessorType,
		ReferenceGroupCode: pi.ReferenceGroupCode,
	}
}

// AddAccessorTx is the AddAccessor transaction body.
type AddAccessorTx struct {
	ReferenceGroupCode string `json:"reference_group_code"`
	AccessorID         string `json:"accessor_id"`
	AccessorPublicKey  string `json:"accessor_public_key"`
	AccessorType       string `json:"accessor_type"`
	RequestID          string `json:"request_id"`
}

type CreateIdentityTx struct {
	HashID             string `json:"hash_id"`
	ReferenceGroupCode string `json:"reference_group_code"`
	AccessorID         string `json:"accessor_id"`
	AccessorPublicKey  string `json:"accessor_public_key"`
	AccessorType       string `json:"accessor_type"`
}

type MqDestinationUser struct {
	HashID string  `json:"hash_id"`
	Ial    float64 `json:"ial"`
}

type RegisterMqDestinationTx struct {
	Users  []MqDestinationUser `json:"users"`
	NodeID string              `json:"node_id"`
}

type RegisterMqAddressTx struct {
	NodeID string `json:"node_id"`
	IP     string `json:"ip"`
	Port   uint16 `json:"port"`
}
