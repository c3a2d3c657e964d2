package serializer

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/ValentinKolb/rws/rpc/common"
)

// benchmarkEnvelopes returns a set of envelopes for targeted benchmarking
func benchmarkEnvelopes() map[string]common.Envelope {
	errText := "Lorem ipsum dolor sit amet, consectetur adipiscing elit."
	return map[string]common.Envelope{
		"Event": {
			Subject: "Logout",
		},
		"SmallRequest": {
			ID:      "8b1c2f5e-4b9e-4e0c-9a55-7b0fef7fd1a1",
			Subject: "Ping",
			Data:    json.RawMessage(`{}`),
		},
		"MediumRequest": {
			ID:      "8b1c2f5e-4b9e-4e0c-9a55-7b0fef7fd1a1",
			Subject: "ReadUser",
			Data:    json.RawMessage(`{"id":"user-1","name":"medium length value for testing serialization"}`),
		},
		"LargeRequest": {
			ID:      "8b1c2f5e-4b9e-4e0c-9a55-7b0fef7fd1a1",
			Subject: "Echo",
			Data:    json.RawMessage(`"` + strings.Repeat("x", 16*1024) + `"`),
		},
		"ErrorReply": {
			ID:      "8b1c2f5e-4b9e-4e0c-9a55-7b0fef7fd1a1",
			Subject: "SetSession",
			Error:   &errText,
		},
	}
}

// BenchmarkSerialize benchmarks serialization for all implementations with various envelopes
func BenchmarkSerialize(b *testing.B) {
	envelopes := benchmarkEnvelopes()

	for name, factory := range testSerializers {
		for envName, env := range envelopes {
			b.Run(name+"_"+envName, func(b *testing.B) {
				serializer := factory()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					if _, err := serializer.Serialize(env); err != nil {
						b.Fatalf("Failed to serialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkDeserialize benchmarks deserialization for all implementations with various envelopes
func BenchmarkDeserialize(b *testing.B) {
	envelopes := benchmarkEnvelopes()

	for name, factory := range testSerializers {
		for envName, env := range envelopes {
			b.Run(name+"_"+envName, func(b *testing.B) {
				serializer := factory()
				data, err := serializer.Serialize(env)
				if err != nil {
					b.Fatalf("Failed to serialize: %v", err)
				}
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					var result common.Envelope
					if err := serializer.Deserialize(data, &result); err != nil {
						b.Fatalf("Failed to deserialize: %v", err)
					}
				}
			})
		}
	}
}
