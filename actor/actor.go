// Package actor is the user-facing façade composing the connection
// pool, the registrar driver, and Subscription workers into the
// publish, sync-publish, subscribe, and register operations an
// application calls.
package actor

import (
	"fmt"
	"time"

	"github.com/clara-msg/clara/logging"
	"github.com/clara-msg/clara/msg"
	"github.com/clara-msg/clara/pool"
	"github.com/clara-msg/clara/registrar"
	"github.com/clara-msg/clara/subscription"
)

// DefaultSyncPublishTimeout and DefaultRegistrarTimeout apply when the
// caller does not override them.
const (
	DefaultSyncPublishTimeout = 3000 * time.Millisecond
	DefaultRegistrarTimeout   = 3000 * time.Millisecond
	syncPublishPollInterval   = 10 * time.Millisecond
)

// replySequence is the process-wide reply-to counter every Actor draws
// its sync-publish sequence numbers from.
var replySequence = msg.NewReplySequence()

// Actor is one named participant: it owns a goroutine-confined
// connection pool (callers must not share one Actor across goroutines
// that publish concurrently) and a registrar address, and draws reply-to
// sequence numbers from the process-wide counter.
type Actor struct {
	Name       string
	Identity   string
	ProxyHost  string
	ProxyPort  uint16
	RegAddr    msg.RegAddress
	log        *logging.Logger
	pool       *pool.Pool
	seq        *msg.ReplySequence
	subs       map[*subscription.Subscription]*pool.Lease
}

// New constructs an Actor named name, with an identity derived from
// proxyAddr's host, its pub/sub traffic routed through proxyAddr and
// registration requests routed through regAddr.
func New(name string, proxyAddr msg.ProxyAddress, regAddr msg.RegAddress, log *logging.Logger) (*Actor, error) {
	identity, err := msg.NewActorIdentity(proxyAddr.Host, name)
	if err != nil {
		return nil, err
	}
	return &Actor{
		Name:      name,
		Identity:  identity,
		ProxyHost: proxyAddr.Host,
		ProxyPort: proxyAddr.PubPort,
		RegAddr:   regAddr,
		log:       log,
		pool:      pool.New(8),
		seq:       replySequence,
		subs:      make(map[*subscription.Subscription]*pool.Lease),
	}, nil
}

func (a *Actor) proxyAddress() (msg.ProxyAddress, error) {
	return msg.NewProxyAddress(a.ProxyHost, a.ProxyPort)
}

// Publish sends m on a leased connection to the actor's proxy and
// returns immediately; order on that connection is FIFO.
func (a *Actor) Publish(m *msg.Message) error {
	addr, err := a.proxyAddress()
	if err != nil {
		return err
	}
	lease, err := a.pool.Get(addr)
	if err != nil {
		return err
	}
	if err := lease.Conn().Publish(m); err != nil {
		lease.Discard()
		return err
	}
	lease.Return()
	return nil
}

// SyncPublish sends a request and waits for its correlated reply: a
// fresh unique reply-to topic, a scoped subscribe on it, the request
// publish, then a 10ms-increment poll for the first valid reply up to
// timeout, always removing the scoped subscription before returning.
//
// The leased connection is always discarded rather than returned to the
// pool: its sub socket registers the reply-to topic once with the proxy
// for its whole lifetime (see Connection.EverSubscribed), so recycling it
// would hand a later caller a connection that can never pick up their own
// reply-to topic.
func (a *Actor) SyncPublish(m *msg.Message, timeout time.Duration) (*msg.Message, error) {
	if timeout <= 0 {
		timeout = DefaultSyncPublishTimeout
	}
	addr, err := a.proxyAddress()
	if err != nil {
		return nil, err
	}
	lease, err := a.pool.Get(addr)
	if err != nil {
		return nil, err
	}
	defer lease.Discard()
	conn := lease.Conn()

	replyTo := msg.NewReplyTo(a.Identity, a.seq)
	replyTopic := msg.Raw(replyTo)
	if err := conn.Subscribe(replyTopic); err != nil {
		return nil, err
	}
	defer conn.Unsubscribe(replyTopic)

	m.Meta.ReplyTo = replyTo
	if err := conn.Publish(m); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		reply, err := conn.ReceiveTimeout(syncPublishPollInterval)
		if err == nil {
			return reply, nil
		}
		if !isTimeout(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("actor: sync publish to %s timed out after %s: %w", m.Topic, timeout, msg.ErrTimeout)
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	te, ok := err.(timeouter)
	return ok && te.Timeout()
}

// Subscribe leases a connection, runs the subscribe handshake, and
// starts a Subscription worker dispatching matching messages to
// callback. The returned Subscription must be passed to Unsubscribe to
// stop the worker and discard its connection.
func (a *Actor) Subscribe(topic msg.Topic, callback subscription.Callback) (*subscription.Subscription, error) {
	addr, err := a.proxyAddress()
	if err != nil {
		return nil, err
	}
	lease, err := a.pool.Get(addr)
	if err != nil {
		return nil, err
	}
	if err := lease.Conn().Subscribe(topic); err != nil {
		lease.Discard()
		return nil, err
	}

	sub := subscription.Start(topic, lease.Conn(), callback, a.log)
	a.subs[sub] = lease
	return sub, nil
}

// Unsubscribe stops sub's worker, joins it, unsubscribes the underlying
// topic, and discards the connection rather than recycling it: its sub
// socket is permanently registered for sub.Topic as far as the proxy is
// concerned, so handing it to a later Subscribe for a different topic
// would silently never receive anything on that topic.
func (a *Actor) Unsubscribe(sub *subscription.Subscription) {
	lease, ok := a.subs[sub]
	if !ok {
		return
	}
	delete(a.subs, sub)

	sub.Stop()
	lease.Conn().Unsubscribe(sub.Topic)
	lease.Discard()
}

// withDriver runs fn against a pooled registrar driver. The lease is
// recycled on success and discarded after any request error: a timed-out
// request may leave its response in flight on the connection, and a
// later lease would read it as the answer to a different request.
func (a *Actor) withDriver(fn func(d *registrar.Driver) error) error {
	lease, err := a.pool.GetRegistrar(a.RegAddr)
	if err != nil {
		return err
	}
	d := lease.Driver()
	d.SetTimeout(DefaultRegistrarTimeout)
	if err := fn(d); err != nil {
		lease.Discard()
		return err
	}
	lease.Return()
	return nil
}

// RegisterAsPublisher advertises the actor as a publisher on topic.
func (a *Actor) RegisterAsPublisher(topic msg.Topic, description string) error {
	reg := msg.NewRegistration(a.Name, description, a.ProxyHost, int32(a.ProxyPort), topic, msg.OwnerPublisher)
	return a.withDriver(func(d *registrar.Driver) error {
		return d.AddPublisher(a.Identity, reg)
	})
}

// RegisterAsSubscriber advertises the actor as a subscriber on topic.
func (a *Actor) RegisterAsSubscriber(topic msg.Topic, description string) error {
	reg := msg.NewRegistration(a.Name, description, a.ProxyHost, int32(a.ProxyPort), topic, msg.OwnerSubscriber)
	return a.withDriver(func(d *registrar.Driver) error {
		return d.AddSubscriber(a.Identity, reg)
	})
}

// DeregisterAsPublisher withdraws the actor's publisher advertisement on topic.
func (a *Actor) DeregisterAsPublisher(topic msg.Topic, description string) error {
	reg := msg.NewRegistration(a.Name, description, a.ProxyHost, int32(a.ProxyPort), topic, msg.OwnerPublisher)
	return a.withDriver(func(d *registrar.Driver) error {
		return d.RemovePublisher(a.Identity, reg)
	})
}

// DeregisterAsSubscriber withdraws the actor's subscriber advertisement on topic.
func (a *Actor) DeregisterAsSubscriber(topic msg.Topic, description string) error {
	reg := msg.NewRegistration(a.Name, description, a.ProxyHost, int32(a.ProxyPort), topic, msg.OwnerSubscriber)
	return a.withDriver(func(d *registrar.Driver) error {
		return d.RemoveSubscriber(a.Identity, reg)
	})
}

// FindPublishers returns every publisher registered against topic.
func (a *Actor) FindPublishers(topic msg.Topic) ([]msg.Registration, error) {
	var found []msg.Registration
	err := a.withDriver(func(d *registrar.Driver) error {
		var ferr error
		found, ferr = d.FindPublishers(a.Identity, topic)
		return ferr
	})
	return found, err
}

// FindSubscribers returns every subscriber registered against topic.
func (a *Actor) FindSubscribers(topic msg.Topic) ([]msg.Registration, error) {
	var found []msg.Registration
	err := a.withDriver(func(d *registrar.Driver) error {
		var ferr error
		found, ferr = d.FindSubscribers(a.Identity, topic)
		return ferr
	})
	return found, err
}

// Close tears down every idle pooled connection. Live Subscriptions must
// be individually unsubscribed first.
func (a *Actor) Close() {
	a.pool.CloseAll()
}
