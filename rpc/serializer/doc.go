// Package serializer provides envelope serialization for the rws RPC system.
// All implementations produce the same JSON text wire format, one envelope
// object per frame, so client and server may use different implementations.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must
//     satisfy. Besides whole envelopes it encodes and decodes the data field,
//     so callers never touch the JSON library directly.
//
//   - jsonSerializerImpl: Implementation using encoding/json.
//
//   - goJSONSerializerImpl: Implementation using github.com/goccy/go-json, a
//     drop-in replacement with lower allocation counts for large payloads.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	s, _ := serializer.ByName("gojson")
//	data, err := s.Encode(map[string]string{"token": token})
//	frame, err := s.Serialize(common.NewRequest("SetSession", data))
package serializer
