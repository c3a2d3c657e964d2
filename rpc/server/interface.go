package server

import (
	"context"

	"github.com/ValentinKolb/rws/rpc/common"
)

// HandlerFunc handles one inbound envelope of a registered subject.
// The returned value becomes the data of the reply, a returned error its
// error text. Returning NoReply sends nothing. Envelopes without identifier
// are never answered.
type HandlerFunc func(ctx context.Context, peer *Peer, req common.Envelope) (any, error)

type noReply struct{}

// NoReply can be returned by a handler to suppress the reply
var NoReply any = noReply{}
