package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ValentinKolb/rws/rpc/common"
)

// RegisterBuiltins registers the handlers served by `rws serve`:
//
//   - Ping: replies with the request's data
//   - Echo: replies with the data and the id of the calling peer
//   - Time: replies with the server time
//   - Broadcast: pushes {"subject", "data"} to every peer, replies with the peer count
func RegisterBuiltins(s *RPCServer) {
	s.Handle("Ping", handlePing)
	s.Handle("Echo", handleEcho)
	s.Handle("Time", handleTime)
	s.Handle("Broadcast", func(ctx context.Context, peer *Peer, req common.Envelope) (any, error) {
		return handleBroadcast(s, req)
	})
}

// EchoResult is the reply of the Echo handler
type EchoResult struct {
	Peer string          `json:"peer"`
	Data json.RawMessage `json:"data"`
}

// TimeResult is the reply of the Time handler
type TimeResult struct {
	Time   string `json:"time"`
	UnixMs int64  `json:"unixMs"`
}

// BroadcastRequest is the data of a Broadcast request
type BroadcastRequest struct {
	Subject string          `json:"subject"`
	Data    json.RawMessage `json:"data"`
}

func handlePing(_ context.Context, _ *Peer, req common.Envelope) (any, error) {
	return req.Payload(), nil
}

func handleEcho(_ context.Context, peer *Peer, req common.Envelope) (any, error) {
	return EchoResult{Peer: peer.ID, Data: req.Payload()}, nil
}

func handleTime(_ context.Context, _ *Peer, _ common.Envelope) (any, error) {
	now := time.Now()
	return TimeResult{Time: now.Format(time.RFC3339Nano), UnixMs: now.UnixMilli()}, nil
}

func handleBroadcast(s *RPCServer, req common.Envelope) (any, error) {
	var b BroadcastRequest
	if err := s.serializer.Decode(req.Payload(), &b); err != nil {
		return nil, fmt.Errorf("invalid broadcast request: %w", err)
	}
	if b.Subject == "" {
		return nil, fmt.Errorf("broadcast needs a subject")
	}
	data := b.Data
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	n, err := s.Broadcast(b.Subject, data)
	if err != nil {
		return nil, err
	}
	return map[string]int{"peers": n}, nil
}
