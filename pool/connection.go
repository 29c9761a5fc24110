// Package pool implements the per-proxy Connection (the pub/sub/ctrl
// socket bundle plus its connect and subscribe handshakes) and the
// goroutine-confined Pool that caches and leases connections by
// address.
package pool

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/clara-msg/clara/msg"
	"github.com/clara-msg/clara/proxy"
	"github.com/clara-msg/clara/wireframe"
)

const (
	defaultConnectAttempts = 10
	defaultConnectPoll     = 100 * time.Millisecond
)

// Setup carries the user-provided connection options a Pool applies to
// every Connection it creates: a pre-connection hook run on each raw
// socket before the handshake, a post-connection hook run after the
// handshake succeeds, and the handshake retry knobs. The zero value
// means "defaults only".
type Setup struct {
	// PreConnect is applied to each of the three raw sockets right
	// after dialing, before any handshake traffic.
	PreConnect func(nc net.Conn) error
	// PostConnect runs once after the connect handshake succeeds.
	PostConnect func(c *Connection) error
	// ConnectAttempts bounds the handshake retry loop; 0 means the
	// default of 10.
	ConnectAttempts int
	// ConnectPoll bounds how long each handshake attempt waits for the
	// proxy's acknowledgment; 0 means the default of 100ms.
	ConnectPoll time.Duration
}

func (s Setup) attempts() int {
	if s.ConnectAttempts <= 0 {
		return defaultConnectAttempts
	}
	return s.ConnectAttempts
}

func (s Setup) poll() time.Duration {
	if s.ConnectPoll <= 0 {
		return defaultConnectPoll
	}
	return s.ConnectPoll
}

// Connection bundles the pub, sub, and control sockets bound to one
// proxy address, plus the local control identity used to correlate the
// proxy's acknowledgments.
type Connection struct {
	Addr    msg.ProxyAddress
	LocalID string

	pub  *wireframe.Conn
	sub  *wireframe.Conn
	ctrl *wireframe.Conn

	setup Setup

	mu             sync.Mutex
	subscribed     map[string]struct{}
	subscribedOnce bool
}

// Dial opens a Connection to addr with default options and runs the
// connect handshake: send a control ping up to 10 times, polling the
// control socket up to 100ms each time, succeeding on the first reply.
func Dial(addr msg.ProxyAddress) (*Connection, error) {
	return DialWithSetup(addr, Setup{})
}

// DialWithSetup opens a Connection to addr applying setup's
// pre-connection options before the handshake and its post-connection
// hook after.
func DialWithSetup(addr msg.ProxyAddress, setup Setup) (*Connection, error) {
	localID, err := msg.NewControlID(addr.Host)
	if err != nil {
		return nil, err
	}

	pubNC, err := net.Dial("tcp", addr.PubAddr())
	if err != nil {
		return nil, fmt.Errorf("pool: dialing pub socket: %w: %w", err, msg.ErrConnectionError)
	}
	subNC, err := net.Dial("tcp", addr.SubAddr())
	if err != nil {
		pubNC.Close()
		return nil, fmt.Errorf("pool: dialing sub socket: %w: %w", err, msg.ErrConnectionError)
	}
	ctrlNC, err := net.Dial("tcp", addr.CtrlAddr())
	if err != nil {
		pubNC.Close()
		subNC.Close()
		return nil, fmt.Errorf("pool: dialing control socket: %w: %w", err, msg.ErrConnectionError)
	}

	if setup.PreConnect != nil {
		for _, nc := range []net.Conn{pubNC, subNC, ctrlNC} {
			if err := setup.PreConnect(nc); err != nil {
				pubNC.Close()
				subNC.Close()
				ctrlNC.Close()
				return nil, fmt.Errorf("pool: pre-connection setup: %w", err)
			}
		}
	}

	c := &Connection{
		Addr:       addr,
		LocalID:    localID,
		pub:        wireframe.NewConn(pubNC),
		sub:        wireframe.NewConn(subNC),
		ctrl:       wireframe.NewConn(ctrlNC),
		setup:      setup,
		subscribed: make(map[string]struct{}),
	}

	if err := c.handshake("pub", localID); err != nil {
		c.Close()
		return nil, err
	}
	if setup.PostConnect != nil {
		if err := setup.PostConnect(c); err != nil {
			c.Close()
			return nil, fmt.Errorf("pool: post-connection setup: %w", err)
		}
	}
	return c, nil
}

// handshake performs the control round-trip: send
// [ControlTopic, ctrlType, identity] on ctrl, poll for the 2-frame
// reply, retrying up to the configured attempt count.
func (c *Connection) handshake(ctrlType, identity string) error {
	var lastErr error
	for i := 0; i < c.setup.attempts(); i++ {
		if err := c.ctrl.WriteFrames([][]byte{[]byte(proxy.ControlTopic), []byte(ctrlType), []byte(identity)}); err != nil {
			lastErr = err
			continue
		}
		reply, err := c.ctrl.PollFrames(c.setup.poll())
		if err == nil && len(reply) == 2 {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("pool: control handshake %q exhausted %d attempts: %v: %w", ctrlType, c.setup.attempts(), lastErr, msg.ErrConnectionError)
}

// Publish sends a message's three frames on the pub socket as one
// multipart write.
func (c *Connection) Publish(m *msg.Message) error {
	return c.pub.WriteFrames(m.Frames())
}

// Subscribe registers topic on the sub socket and runs the subscribe
// handshake, which succeeds once the proxy has a subscriber registered
// on topic. The proxy's reply does not show that this registration is
// the connection's own: another connection registered on the same topic
// also satisfies it.
func (c *Connection) Subscribe(topic msg.Topic) error {
	c.mu.Lock()
	if _, ok := c.subscribed[topic.String()]; ok {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.sub.WriteFrames([][]byte{[]byte(topic.String())}); err != nil {
		return err
	}
	if err := c.handshake("sub", topic.String()); err != nil {
		return err
	}

	c.mu.Lock()
	c.subscribed[topic.String()] = struct{}{}
	c.subscribedOnce = true
	c.mu.Unlock()
	return nil
}

// Receive blocks for one multipart read on the sub socket and parses it
// into a Message. Callers needing a poll-tick cancellation boundary use
// ReceiveTimeout instead.
func (c *Connection) Receive() (*msg.Message, error) {
	return c.parseReceived(c.sub.ReadFrames())
}

// ReceiveTimeout waits up to timeout for a message on the sub socket. A
// timeout with no message pending surfaces as a net.Error with
// Timeout() == true and leaves the stream untouched, so it is safe to
// call in a poll loop.
func (c *Connection) ReceiveTimeout(timeout time.Duration) (*msg.Message, error) {
	return c.parseReceived(c.sub.PollFrames(timeout))
}

func (c *Connection) parseReceived(frames [][]byte, err error) (*msg.Message, error) {
	if err != nil {
		return nil, err
	}
	if len(frames) != 3 {
		return nil, fmt.Errorf("pool: received %d frames, want 3: %w", len(frames), msg.ErrProtocolViolation)
	}
	return msg.ParseMessage(frames)
}

// Unsubscribe drops topic from the local bookkeeping set that Subscribe
// consults to skip a repeated subscription of the same topic. It sends
// nothing to the proxy: this transport registers a subscriber
// connection's interest once, on its first Subscribe, rather than
// exposing a live per-topic filter table, so actually detaching from
// topic requires closing the connection.
func (c *Connection) Unsubscribe(topic msg.Topic) {
	c.mu.Lock()
	delete(c.subscribed, topic.String())
	c.mu.Unlock()
}

// EverSubscribed reports whether Subscribe has ever succeeded on this
// connection, even if every topic has since been locally unsubscribed.
// The proxy's sub socket registers exactly one topic for the connection's
// entire lifetime (it reads one registration frame and then only drains
// bytes to detect disconnects), so a connection that has been subscribed
// even once can never pick up a different topic later. Callers that lease
// a Connection for a scoped subscribe must Discard it instead of
// Return-ing it to the pool once this is true.
func (c *Connection) EverSubscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribedOnce
}

// Close tears down all three sockets.
func (c *Connection) Close() error {
	var firstErr error
	for _, conn := range []*wireframe.Conn{c.pub, c.sub, c.ctrl} {
		if conn == nil {
			continue
		}
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
