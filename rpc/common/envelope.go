package common

import (
	"encoding/json"
	"fmt"

	uuid "github.com/satori/go.uuid"
)

// Envelope is the unit of application communication. On the wire it is a
// single JSON object per frame: {id?, subject?, data, error?}.
//
// For a response exactly one of Data and Error is meaningful. A nil Error
// (field absent or null) signals success.
type Envelope struct {
	ID      string          `json:"id,omitempty"`
	Subject string          `json:"subject,omitempty"`
	Data    json.RawMessage `json:"data"`
	Error   *string         `json:"error,omitempty"`
}

// nullData is the encoding of an absent payload
var nullData = json.RawMessage("null")

// NewID returns a fresh correlation identifier (random UUIDv4)
func NewID() string {
	return uuid.NewV4().String()
}

// --------------------------------------------------------------------------
// Factory functions
// --------------------------------------------------------------------------

// NewRequest creates a request envelope with a fresh identifier
func NewRequest(subject string, data json.RawMessage) Envelope {
	return Envelope{
		ID:      NewID(),
		Subject: subject,
		Data:    data,
	}
}

// NewEvent creates an envelope without identifier. Events are not correlated
// to any request (server push, fire-and-forget publish).
func NewEvent(subject string, data json.RawMessage) Envelope {
	return Envelope{
		Subject: subject,
		Data:    data,
	}
}

// NewResponse creates a success reply for req
func NewResponse(req Envelope, data json.RawMessage) Envelope {
	return Envelope{
		ID:      req.ID,
		Subject: req.Subject,
		Data:    data,
	}
}

// NewErrorResponse creates an error reply for req. The data of an error reply is null.
func NewErrorResponse(req Envelope, errText string) Envelope {
	return Envelope{
		ID:      req.ID,
		Subject: req.Subject,
		Data:    nullData,
		Error:   &errText,
	}
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// HasError reports whether the envelope carries a non-null error
func (e Envelope) HasError() bool {
	return e.Error != nil
}

// ErrorText returns the error text or "" for a success envelope
func (e Envelope) ErrorText() string {
	if e.Error == nil {
		return ""
	}
	return *e.Error
}

// Payload returns the raw data, substituting null for an absent payload
func (e Envelope) Payload() json.RawMessage {
	if len(e.Data) == 0 {
		return nullData
	}
	return e.Data
}

// DecodeData unmarshals the envelope's data into v with encoding/json.
// Code holding a serializer should decode with it instead
// (RPCClient.DecodeEnvelope, IRPCSerializer.Decode).
func (e Envelope) DecodeData(v any) error {
	if err := json.Unmarshal(e.Payload(), v); err != nil {
		return fmt.Errorf("failed to decode data of %q: %w", e.Subject, err)
	}
	return nil
}

func (e Envelope) String() string {
	if e.HasError() {
		return fmt.Sprintf("Envelope{id=%s subject=%s error=%q}", e.ID, e.Subject, *e.Error)
	}
	return fmt.Sprintf("Envelope{id=%s subject=%s data=%s}", e.ID, e.Subject, e.Payload())
}
