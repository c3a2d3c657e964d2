package serializer

import (
	"fmt"

	"github.com/ValentinKolb/rws/rpc/common"
)

// normalize replaces an absent payload by null, so "data" is always present on the wire
func normalize(env common.Envelope) common.Envelope {
	env.Data = env.Payload()
	return env
}

// ByName returns the serializer registered under name ("json" or "gojson")
func ByName(name string) (IRPCSerializer, error) {
	switch name {
	case "json", "":
		return NewJSONSerializer(), nil
	case "gojson", "go-json":
		return NewGoJSONSerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s (must be one of json, gojson)", name)
	}
}
