package client

import (
	"sync"

	"github.com/ValentinKolb/rws/lib/broadcast"
	"github.com/ValentinKolb/rws/rpc/common"
)

// Subscription is a live feed of the envelopes of one subject. The feed is
// unbounded: envelopes wait in the subscription's mailbox until C is read.
type Subscription struct {
	C <-chan common.Envelope

	client  *RPCClient
	raw     chan interface{}
	mailbox *broadcast.Mailbox[common.Envelope]
	once    sync.Once
}

func (c *RPCClient) subscribe(topic string) *Subscription {
	mailbox := broadcast.NewMailbox[common.Envelope]()
	s := &Subscription{C: mailbox.C(), client: c, mailbox: mailbox}

	c.psMu.RLock()
	defer c.psMu.RUnlock()
	if c.shut {
		mailbox.Close()
		return s
	}
	s.raw = c.ps.Sub(topic)
	go s.forward()
	return s
}

// Unsubscribe detaches the subscription and closes C. Envelopes not read
// yet are dropped. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.mailbox.Discard()
		if s.raw == nil {
			return
		}
		s.client.psMu.RLock()
		defer s.client.psMu.RUnlock()
		if !s.client.shut {
			s.client.ps.Unsub(s.raw)
		}
	})
}

// forward moves every envelope of the pubsub channel into the mailbox. It
// drains the channel until pubsub closes it (Unsub or Shutdown), so a
// publisher is never left waiting on a subscription that went away.
func (s *Subscription) forward() {
	defer s.mailbox.Close()
	for raw := range s.raw {
		if env, ok := raw.(common.Envelope); ok {
			// fails silently once the subscription was discarded
			s.mailbox.Push(env)
		}
	}
}
