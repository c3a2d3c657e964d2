package serializer

import (
	"encoding/json"

	"github.com/ValentinKolb/rws/rpc/common"
)

// IRPCSerializer is the interface for all Envelope serializers.
// Every implementation produces JSON text, one envelope per frame.
type IRPCSerializer interface {
	// Serialize serializes an Envelope into a JSON object
	Serialize(env common.Envelope) ([]byte, error)
	// Deserialize parses a JSON object into an Envelope
	Deserialize(b []byte, env *common.Envelope) error
	// Encode converts an arbitrary value into the envelope's data field
	Encode(v any) (json.RawMessage, error)
	// Decode unmarshals the envelope's data field into v
	Decode(raw json.RawMessage, v any) error
	// GetName returns the name of the serializer (e.g. "json")
	GetName() string
}
