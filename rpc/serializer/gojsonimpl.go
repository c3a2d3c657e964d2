package serializer

import (
	"encoding/json"

	"github.com/ValentinKolb/rws/rpc/common"
	gojson "github.com/goccy/go-json"
)

// NewGoJSONSerializer creates a new serializer using github.com/goccy/go-json.
// The wire format is identical to NewJSONSerializer.
func NewGoJSONSerializer() IRPCSerializer {
	return &goJSONSerializerImpl{}
}

// goJSONSerializerImpl implements the IRPCSerializer interface using goccy/go-json
type goJSONSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (g goJSONSerializerImpl) Serialize(env common.Envelope) ([]byte, error) {
	return gojson.Marshal(normalize(env))
}

func (g goJSONSerializerImpl) Deserialize(b []byte, env *common.Envelope) error {
	return gojson.Unmarshal(b, env)
}

func (g goJSONSerializerImpl) Encode(v any) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := gojson.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}

func (g goJSONSerializerImpl) Decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	return gojson.Unmarshal(raw, v)
}

func (g goJSONSerializerImpl) GetName() string {
	return "gojson"
}
