package pool

import (
	"sync"

	"github.com/clara-msg/clara/msg"
	"github.com/clara-msg/clara/registrar"
)

// Pool caches idle connections in two per-address FIFO queues: proxy
// Connections keyed by ProxyAddress and registrar Drivers keyed by
// RegAddress. A Pool is meant to be confined to a single goroutine;
// Go has no thread-local storage, so construct one Pool per goroutine
// that publishes. Sharing one Pool across goroutines is a caller bug:
// the sockets a Connection wraps are not safe for concurrent senders.
type Pool struct {
	maxIdle int

	mu      sync.Mutex
	setup   Setup
	idle    map[msg.ProxyAddress][]*Connection
	regIdle map[msg.RegAddress][]*registrar.Driver
}

// New returns an empty Pool. maxIdle bounds how many idle connections per
// address are retained before the oldest is closed outright.
func New(maxIdle int) *Pool {
	if maxIdle <= 0 {
		maxIdle = 8
	}
	return &Pool{
		maxIdle: maxIdle,
		idle:    make(map[msg.ProxyAddress][]*Connection),
		regIdle: make(map[msg.RegAddress][]*registrar.Driver),
	}
}

// SetDefaultSetup replaces the connection options applied to every
// Connection created after this call. Existing connections, idle or
// leased, are unaffected.
func (p *Pool) SetDefaultSetup(setup Setup) {
	p.mu.Lock()
	p.setup = setup
	p.mu.Unlock()
}

// Lease is a move-only handle on a pooled Connection. Calling Return
// re-queues the Connection for reuse; calling Discard closes it instead.
// Exactly one of Return/Discard should be called once per Lease.
type Lease struct {
	pool *Pool
	addr msg.ProxyAddress
	conn *Connection
	done bool
}

// Conn exposes the underlying Connection for publish/subscribe/receive calls.
func (l *Lease) Conn() *Connection {
	return l.conn
}

// Return re-inserts the Connection into its address's idle queue. If the
// queue is already at capacity, the least-recently-idle connection is
// closed to make room, and this one becomes the newest. A connection that
// has ever been subscribed is closed instead: the proxy's sub socket
// registration is one-shot for the connection's lifetime, so it cannot be
// handed to a future caller that may want a different topic.
func (l *Lease) Return() {
	if l.done {
		return
	}
	l.done = true
	if l.conn.EverSubscribed() {
		l.conn.Close()
		return
	}
	l.pool.put(l.addr, l.conn)
}

// Discard closes the Connection instead of recycling it, for callers
// that know it's no longer usable.
func (l *Lease) Discard() {
	if l.done {
		return
	}
	l.done = true
	l.conn.Close()
}

// Get pops the oldest idle Connection for addr if one exists, else dials
// and hands back a fresh one.
func (p *Pool) Get(addr msg.ProxyAddress) (*Lease, error) {
	p.mu.Lock()
	setup := p.setup
	queue := p.idle[addr]
	if len(queue) > 0 {
		conn := queue[0]
		p.idle[addr] = queue[1:]
		p.mu.Unlock()
		return &Lease{pool: p, addr: addr, conn: conn}, nil
	}
	p.mu.Unlock()

	conn, err := DialWithSetup(addr, setup)
	if err != nil {
		return nil, err
	}
	return &Lease{pool: p, addr: addr, conn: conn}, nil
}

func (p *Pool) put(addr msg.ProxyAddress, conn *Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()

	queue := p.idle[addr]
	if len(queue) >= p.maxIdle {
		oldest := queue[0]
		queue = queue[1:]
		oldest.Close()
	}
	p.idle[addr] = append(queue, conn)
}

// RegLease is the registrar-side counterpart of Lease: a move-only
// handle on a pooled registrar Driver.
type RegLease struct {
	pool *Pool
	addr msg.RegAddress
	drv  *registrar.Driver
	done bool
}

// Driver exposes the underlying registrar Driver for add/remove/find calls.
func (l *RegLease) Driver() *registrar.Driver {
	return l.drv
}

// Return re-inserts the Driver into its address's idle queue.
func (l *RegLease) Return() {
	if l.done {
		return
	}
	l.done = true
	l.pool.putReg(l.addr, l.drv)
}

// Discard closes the Driver instead of recycling it. Callers do this
// after any request error: a timed-out request may leave its response
// in flight, and a later lease would read it as the answer to a
// different question.
func (l *RegLease) Discard() {
	if l.done {
		return
	}
	l.done = true
	l.drv.Close()
}

// GetRegistrar pops the oldest idle Driver for addr if one exists, else
// dials a fresh one.
func (p *Pool) GetRegistrar(addr msg.RegAddress) (*RegLease, error) {
	p.mu.Lock()
	queue := p.regIdle[addr]
	if len(queue) > 0 {
		drv := queue[0]
		p.regIdle[addr] = queue[1:]
		p.mu.Unlock()
		return &RegLease{pool: p, addr: addr, drv: drv}, nil
	}
	p.mu.Unlock()

	drv, err := registrar.Dial(addr)
	if err != nil {
		return nil, err
	}
	return &RegLease{pool: p, addr: addr, drv: drv}, nil
}

func (p *Pool) putReg(addr msg.RegAddress, drv *registrar.Driver) {
	p.mu.Lock()
	defer p.mu.Unlock()

	queue := p.regIdle[addr]
	if len(queue) >= p.maxIdle {
		oldest := queue[0]
		queue = queue[1:]
		oldest.Close()
	}
	p.regIdle[addr] = append(queue, drv)
}

// Len reports the number of idle connections currently cached for addr,
// primarily for tests exercising reuse behavior.
func (p *Pool) Len(addr msg.ProxyAddress) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle[addr])
}

// RegLen reports the number of idle registrar drivers cached for addr.
func (p *Pool) RegLen(addr msg.RegAddress) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.regIdle[addr])
}

// CloseAll closes every idle connection and driver in the pool.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for addr, queue := range p.idle {
		for _, c := range queue {
			c.Close()
		}
		delete(p.idle, addr)
	}
	for addr, queue := range p.regIdle {
		for _, d := range queue {
			d.Close()
		}
		delete(p.regIdle, addr)
	}
}
