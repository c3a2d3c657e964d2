package serializer

import (
	"encoding/json"
	"testing"

	"github.com/ValentinKolb/rws/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GoJSON": NewGoJSONSerializer,
}

func strPtr(s string) *string { return &s }

// TestSerializeWireFormat tests the exact text produced for typical envelopes
func TestSerializeWireFormat(t *testing.T) {
	testCases := []struct {
		name string
		env  common.Envelope
		want string
	}{
		{
			name: "Request",
			env:  common.Envelope{ID: "id1", Subject: "Ping", Data: json.RawMessage(`{}`)},
			want: `{"id":"id1","subject":"Ping","data":{}}`,
		},
		{
			name: "AbsentData",
			env:  common.Envelope{Subject: "Logout"},
			want: `{"subject":"Logout","data":null}`,
		},
		{
			name: "ErrorReply",
			env:  common.Envelope{ID: "id2", Subject: "X", Data: json.RawMessage(`null`), Error: strPtr("boom")},
			want: `{"id":"id2","subject":"X","data":null,"error":"boom"}`,
		},
	}

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			s := factory()
			for _, tc := range testCases {
				got, err := s.Serialize(tc.env)
				if err != nil {
					t.Fatalf("%s: failed to serialize: %v", tc.name, err)
				}
				if string(got) != tc.want {
					t.Errorf("%s: expected %s, got %s", tc.name, tc.want, got)
				}
			}
		})
	}
}

// TestDeserializeErrorDiscriminant tests that absent and null errors both signal success
func TestDeserializeErrorDiscriminant(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		wantError bool
		wantText  string
		wantData  string
	}{
		{"NullError", `{"id":"abc123","subject":"X","data":42,"error":null}`, false, "", "42"},
		{"AbsentError", `{"id":"abc123","subject":"X","data":"ok"}`, false, "", `"ok"`},
		{"ErrorText", `{"id":"abc123","subject":"X","data":null,"error":"denied"}`, true, "denied", "null"},
		{"AbsentData", `{"subject":"X"}`, false, "", "null"},
	}

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			s := factory()
			for _, tc := range testCases {
				var env common.Envelope
				if err := s.Deserialize([]byte(tc.input), &env); err != nil {
					t.Fatalf("%s: failed to deserialize: %v", tc.name, err)
				}
				if env.HasError() != tc.wantError {
					t.Errorf("%s: HasError() = %v, want %v", tc.name, env.HasError(), tc.wantError)
				}
				if env.ErrorText() != tc.wantText {
					t.Errorf("%s: ErrorText() = %q, want %q", tc.name, env.ErrorText(), tc.wantText)
				}
				if string(env.Payload()) != tc.wantData {
					t.Errorf("%s: Payload() = %s, want %s", tc.name, env.Payload(), tc.wantData)
				}
			}
		})
	}
}

// TestDeserializeInvalid tests that malformed input is reported
func TestDeserializeInvalid(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			s := factory()
			for _, input := range []string{`not-json`, `{"id":`, `[1,2]`} {
				var env common.Envelope
				if err := s.Deserialize([]byte(input), &env); err == nil {
					t.Errorf("expected error for %q", input)
				}
			}
		})
	}
}

// TestEncodeDecode tests the data helpers
func TestEncodeDecode(t *testing.T) {
	type payload struct {
		Token string `json:"token"`
	}

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			s := factory()

			raw, err := s.Encode(payload{Token: "t1"})
			if err != nil {
				t.Fatalf("failed to encode: %v", err)
			}
			if string(raw) != `{"token":"t1"}` {
				t.Fatalf("unexpected encoding %s", raw)
			}

			var p payload
			if err := s.Decode(raw, &p); err != nil || p.Token != "t1" {
				t.Fatalf("failed to decode: %v %+v", err, p)
			}

			// raw messages pass through unchanged
			passed, _ := s.Encode(json.RawMessage(`[1]`))
			if string(passed) != `[1]` {
				t.Fatalf("raw message changed: %s", passed)
			}

			// absent data decodes as null
			var ptr *payload
			if err := s.Decode(nil, &ptr); err != nil || ptr != nil {
				t.Fatalf("expected nil pointer, got %v %v", ptr, err)
			}
		})
	}
}

// TestByName tests the serializer lookup
func TestByName(t *testing.T) {
	for _, name := range []string{"json", "gojson"} {
		s, err := ByName(name)
		if err != nil {
			t.Fatalf("ByName(%s) failed: %v", name, err)
		}
		if s.GetName() != name {
			t.Errorf("expected %s, got %s", name, s.GetName())
		}
	}
	if _, err := ByName("gob"); err == nil {
		t.Errorf("expected error for unknown serializer")
	}
}
