package serializer

import (
	"encoding/json"

	"github.com/ValentinKolb/rws/rpc/common"
)

// NewJSONSerializer creates a new serializer using the standard library json encoding
func NewJSONSerializer() IRPCSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the IRPCSerializer interface using encoding/json
type jsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Serialize(env common.Envelope) ([]byte, error) {
	return json.Marshal(normalize(env))
}

func (j jsonSerializerImpl) Deserialize(b []byte, env *common.Envelope) error {
	return json.Unmarshal(b, env)
}

func (j jsonSerializerImpl) Encode(v any) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}

func (j jsonSerializerImpl) Decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	return json.Unmarshal(raw, v)
}

func (j jsonSerializerImpl) GetName() string {
	return "json"
}
