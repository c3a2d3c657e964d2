package server

import (
	"fmt"
	"sync"

	"github.com/ValentinKolb/rws/rpc/common"
	"github.com/ValentinKolb/rws/rpc/serializer"
	"github.com/ValentinKolb/rws/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
)

// Peer is one connected client
type Peer struct {
	ID         string
	RemoteAddr string

	conn       transport.IConn
	serializer serializer.IRPCSerializer
	writeMu    sync.Mutex
	values     *xsync.MapOf[string, any]
}

func newPeer(conn transport.IConn, remoteAddr string, s serializer.IRPCSerializer) *Peer {
	return &Peer{
		ID:         common.NewID(),
		RemoteAddr: remoteAddr,
		conn:       conn,
		serializer: s,
		values:     xsync.NewMapOf[string, any](),
	}
}

// Push sends an event (envelope without identifier) to the peer
func (p *Peer) Push(subject string, data any) error {
	raw, err := p.serializer.Encode(data)
	if err != nil {
		return fmt.Errorf("failed to encode data for %s: %w", subject, err)
	}
	return p.send(common.NewEvent(subject, raw))
}

// Set stores a value for the lifetime of the connection
func (p *Peer) Set(key string, value any) {
	p.values.Store(key, value)
}

// Get returns a value stored with Set
func (p *Peer) Get(key string) (any, bool) {
	return p.values.Load(key)
}

// Delete removes a value stored with Set
func (p *Peer) Delete(key string) {
	p.values.Delete(key)
}

func (p *Peer) send(env common.Envelope) error {
	frame, err := p.serializer.Serialize(env)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", env.Subject, err)
	}
	return p.write(string(frame))
}

func (p *Peer) write(frame string) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := p.conn.WriteMessage(frame); err != nil {
		return fmt.Errorf("write to peer %s failed: %w", p.RemoteAddr, err)
	}
	return nil
}
