// Package proxy implements the broker every Connection attaches to: a
// forwarder that fans published messages out to prefix-matching
// subscribers, plus a control plane that acknowledges pub/sub/rep
// attachment. Three net.Conn accept loops serve the three-port layout
// (pub, sub, control), one goroutine per connection, with the
// subscriber registry behind a mutex.
package proxy

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/clara-msg/clara/logging"
	"github.com/clara-msg/clara/msg"
	"github.com/clara-msg/clara/wireframe"
)

// ControlTopic is the reserved topic the control plane listens for
// attachment pings on.
const ControlTopic = "clara:msg:control"

// subscribeAckTimeout and subscribeAckPoll bound how long serveControl
// waits for a matching subscriberConn to show up in the registry before
// giving up on a single "sub" handshake attempt and letting the caller's
// own retry loop send another one.
const (
	subscribeAckTimeout = 80 * time.Millisecond
	subscribeAckPoll    = 2 * time.Millisecond
)

// Proxy is a running broker: a forwarder accepting publisher connections
// on PubPort, a subscriber registry accepting subscriber connections on
// SubPort, and a control plane on CtrlPort acknowledging attachment.
type Proxy struct {
	addr msg.ProxyAddress
	log  *logging.Logger

	mu          sync.Mutex
	subscribers map[*subscriberConn]struct{}

	pubListener  net.Listener
	subListener  net.Listener
	ctrlListener net.Listener
}

// subscriberConn is one subscriber's live registration: the framed
// connection to write matching messages to, and its subscribed topic.
// id is a process-local bookkeeping key for log correlation only; it
// never appears on the wire.
type subscriberConn struct {
	id    string
	conn  *wireframe.Conn
	topic msg.Topic
	mu    sync.Mutex // serializes writes to conn
}

// New constructs a Proxy bound to addr, not yet listening.
func New(addr msg.ProxyAddress, log *logging.Logger) *Proxy {
	return &Proxy{addr: addr, log: log, subscribers: make(map[*subscriberConn]struct{})}
}

// Run listens on all three ports and serves until ctx is cancelled.
// The three accept loops are joined with an errgroup so that a fatal
// listen error on any one of them tears down the others.
func (p *Proxy) Run(ctx context.Context) error {
	var err error
	p.pubListener, err = net.Listen("tcp", fmt.Sprintf(":%d", p.addr.PubPort))
	if err != nil {
		return fmt.Errorf("proxy: listening on pub port: %w", err)
	}
	p.subListener, err = net.Listen("tcp", fmt.Sprintf(":%d", p.addr.SubPort))
	if err != nil {
		return fmt.Errorf("proxy: listening on sub port: %w", err)
	}
	p.ctrlListener, err = net.Listen("tcp", fmt.Sprintf(":%d", p.addr.CtrlPort()))
	if err != nil {
		return fmt.Errorf("proxy: listening on control port: %w", err)
	}

	p.log.Info("proxy listening pub=%d sub=%d ctrl=%d", p.addr.PubPort, p.addr.SubPort, p.addr.CtrlPort())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.acceptLoop(gctx, p.pubListener, p.servePublisher) })
	g.Go(func() error { return p.acceptLoop(gctx, p.subListener, p.serveSubscriber) })
	g.Go(func() error { return p.acceptLoop(gctx, p.ctrlListener, p.serveControl) })

	g.Go(func() error {
		<-gctx.Done()
		p.pubListener.Close()
		p.subListener.Close()
		p.ctrlListener.Close()
		return nil
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// acceptLoop accepts connections on l and dispatches each to handle in
// its own goroutine. It returns nil once ctx is cancelled; any other
// accept error is logged and returned, which ends Run's errgroup.
func (p *Proxy) acceptLoop(ctx context.Context, l net.Listener, handle func(net.Conn)) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.log.Warn("proxy: accept error: %v", err)
			return fmt.Errorf("proxy: accept: %w", err)
		}
		go handle(conn)
	}
}

// servePublisher reads Message frames from a publisher and fans each one
// out to every subscriber whose topic prefix-matches, resolved with
// msg.Topic.IsParent against the live subscriber registry.
func (p *Proxy) servePublisher(conn net.Conn) {
	defer conn.Close()
	fc := wireframe.NewConn(conn)
	for {
		frames, err := fc.ReadFrames()
		if err != nil {
			return
		}
		topic := msg.Raw(string(frames[0]))
		p.fanOut(topic, frames)
	}
}

func (p *Proxy) fanOut(topic msg.Topic, frames [][]byte) {
	p.mu.Lock()
	targets := make([]*subscriberConn, 0, len(p.subscribers))
	for sc := range p.subscribers {
		if sc.topic.IsParent(topic) {
			targets = append(targets, sc)
		}
	}
	p.mu.Unlock()

	for _, sc := range targets {
		sc.mu.Lock()
		if err := sc.conn.WriteFrames(frames); err != nil {
			p.log.Debug("proxy: write to subscriber %s failed: %v", sc.id, err)
		}
		sc.mu.Unlock()
	}
}

// serveSubscriber reads one subscribe-topic frame to register the
// connection's interest, then holds the connection open as a fan-out
// target until it errors or closes.
func (p *Proxy) serveSubscriber(conn net.Conn) {
	fc := wireframe.NewConn(conn)
	frames, err := fc.ReadFrames()
	if err != nil || len(frames) != 1 {
		conn.Close()
		return
	}
	sc := &subscriberConn{id: uuid.NewString(), conn: fc, topic: msg.Raw(string(frames[0]))}

	p.mu.Lock()
	p.subscribers[sc] = struct{}{}
	p.mu.Unlock()
	p.log.Debug("proxy: subscriber %s attached on topic %s", sc.id, sc.topic)

	defer func() {
		p.mu.Lock()
		delete(p.subscribers, sc)
		p.mu.Unlock()
		p.log.Debug("proxy: subscriber %s detached", sc.id)
		conn.Close()
	}()

	// Block on reads purely to detect the peer closing the connection;
	// a subscriber never sends more after its initial topic frame.
	buf := make([]byte, 1)
	for {
		if _, err := conn.Read(buf); err != nil {
			return
		}
	}
}

// serveControl implements the attachment handshake: a three-frame
// [topic, ctrl_type, identity] request gets a two-frame
// [identity, ctrl_type] reply on the same connection. For ctrl_type "sub"
// the third frame is the subscribed topic (not a connection identity),
// and the reply is withheld until some subscriberConn registered on
// exactly that topic is found in the registry. Any connection's
// registration on the topic satisfies this check; the reply does not
// show that the requester's own sub-socket registration landed. A
// "pub"/"rep" ack has no registration step to wait on and is sent at
// once.
func (p *Proxy) serveControl(conn net.Conn) {
	defer conn.Close()
	fc := wireframe.NewConn(conn)
	for {
		frames, err := fc.ReadFrames()
		if err != nil {
			return
		}
		if len(frames) != 3 {
			p.log.Debug("proxy: control frame count %d, want 3", len(frames))
			continue
		}
		ctrlType := string(frames[1])
		identity := frames[2]
		switch ctrlType {
		case "pub", "rep":
			if err := fc.WriteFrames([][]byte{identity, []byte(ctrlType)}); err != nil {
				return
			}
		case "sub":
			if !p.awaitSubscriberForTopic(string(identity)) {
				p.log.Debug("proxy: sub handshake for %q timed out waiting for attachment", identity)
				continue
			}
			if err := fc.WriteFrames([][]byte{identity, []byte(ctrlType)}); err != nil {
				return
			}
		default:
			p.log.Debug("proxy: unknown control type %q", ctrlType)
		}
	}
}

// awaitSubscriberForTopic polls the subscriber registry until some
// subscriberConn is registered on exactly topic, or subscribeAckTimeout
// elapses.
func (p *Proxy) awaitSubscriberForTopic(topic string) bool {
	deadline := time.Now().Add(subscribeAckTimeout)
	for {
		if p.hasSubscriberForTopic(topic) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(subscribeAckPoll)
	}
}

func (p *Proxy) hasSubscriberForTopic(topic string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for sc := range p.subscribers {
		if sc.topic.String() == topic {
			return true
		}
	}
	return false
}
