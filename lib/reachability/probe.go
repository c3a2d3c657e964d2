package reachability

import (
	"net"
	"sync"
	"time"

	"github.com/ValentinKolb/rws/lib/broadcast"
)

// Dialer is the function used by a probe to test the network path.
// It matches net.DialTimeout.
type Dialer func(network, address string, timeout time.Duration) (net.Conn, error)

// Probe is a reachability signal that periodically dials a TCP address.
// A successful dial marks the network online, a failed dial offline.
type Probe struct {
	address  string
	interval time.Duration
	timeout  time.Duration
	dial     Dialer

	signal    *broadcast.Value[bool]
	stopCh    chan struct{}
	stopOnce  sync.Once
	stoppedCh chan struct{}
}

// NewProbe creates and starts a probe. The signal starts online and the
// first check runs immediately.
//
// Usage:
//
//	probe := reachability.NewProbe("example.com:443", 5*time.Second, time.Second)
//	defer probe.Close()
//	t := ws.NewWSClientTransport(config, probe)
func NewProbe(address string, interval, timeout time.Duration) *Probe {
	return newProbe(address, interval, timeout, net.DialTimeout)
}

func newProbe(address string, interval, timeout time.Duration, dial Dialer) *Probe {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	p := &Probe{
		address:   address,
		interval:  interval,
		timeout:   timeout,
		dial:      dial,
		signal:    broadcast.NewValue(true),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Probe) Online() bool {
	return p.signal.Get()
}

func (p *Probe) Subscribe() *broadcast.Subscription[bool] {
	return p.signal.Subscribe()
}

// Close stops probing and ends all subscriptions
func (p *Probe) Close() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		<-p.stoppedCh
		p.signal.Close()
	})
}

// run checks the address every interval until Close is called
func (p *Probe) run() {
	defer close(p.stoppedCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.check()
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
		}
	}
}

// check performs a single dial and updates the signal
func (p *Probe) check() {
	conn, err := p.dial("tcp", p.address, p.timeout)
	online := err == nil
	if conn != nil {
		_ = conn.Close()
	}

	if setIfChanged(p.signal, online) {
		if online {
			Logger.Infof("probe %s succeeded, network is reachable", p.address)
		} else {
			Logger.Warningf("probe %s failed, network is unreachable: %v", p.address, err)
		}
	}
}
