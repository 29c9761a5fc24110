// Package subscription implements the background receiver loop bound to
// one Connection and one topic: a poll-ticked worker that catches and
// logs every per-message failure, keeps going, and can be cancelled
// within one tick.
package subscription

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/clara-msg/clara/logging"
	"github.com/clara-msg/clara/msg"
)

// PollInterval bounds how long a worker blocks on a single receive
// attempt before checking the alive flag again, giving Stop a latency
// of at most one tick.
const PollInterval = 100 * time.Millisecond

// Conn is the subset of pool.Connection a Subscription needs; narrowed to
// an interface so tests can drive it without a real proxy.
type Conn interface {
	ReceiveTimeout(timeout time.Duration) (*msg.Message, error)
}

// Callback is invoked once per delivered message, on the Subscription's
// own worker. It must be safe to call from that worker alone; distinct
// Subscriptions always run their callbacks on distinct goroutines.
type Callback func(*msg.Message)

// Subscription is a running receiver bound to one topic, one connection,
// and one callback.
type Subscription struct {
	Topic msg.Topic

	conn     Conn
	callback Callback
	log      *logging.Logger

	alive atomic.Bool
	done  chan struct{}
}

// Start spawns the worker goroutine and returns a running Subscription.
// The caller is responsible for having already run Connection.Subscribe
// for topic; Start does not perform the subscribe handshake itself.
func Start(topic msg.Topic, conn Conn, callback Callback, log *logging.Logger) *Subscription {
	s := &Subscription{
		Topic:    topic,
		conn:     conn,
		callback: callback,
		log:      log,
		done:     make(chan struct{}),
	}
	s.alive.Store(true)
	go s.run()
	return s
}

// run is the worker loop: poll-receive, parse, dispatch, with every
// per-message failure caught and logged rather than ending the loop.
func (s *Subscription) run() {
	defer close(s.done)
	for s.alive.Load() {
		m, err := s.conn.ReceiveTimeout(PollInterval)
		if err != nil {
			if isPollTimeout(err) {
				continue
			}
			if errors.Is(err, msg.ErrTransportTerminated) {
				s.log.Info("subscription %s: transport terminated, stopping", s.Topic)
				return
			}
			if errors.Is(err, msg.ErrProtocolViolation) || errors.Is(err, msg.ErrSerializationError) {
				s.log.Warn("subscription %s: dropping malformed message: %v", s.Topic, err)
				continue
			}
			s.log.Warn("subscription %s: receive error: %v", s.Topic, err)
			// A persistent failure (peer gone, socket in an error state)
			// would otherwise spin this loop hot; wait out one tick.
			time.Sleep(PollInterval)
			continue
		}

		s.dispatch(m)
	}
}

func (s *Subscription) dispatch(m *msg.Message) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("subscription %s: callback panic: %v", s.Topic, r)
		}
	}()
	s.callback(m)
}

// isPollTimeout reports whether err is the expected net.Error timeout
// from a poll tick finding nothing ready, as opposed to a real failure.
func isPollTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	te, ok := err.(timeouter)
	return ok && te.Timeout()
}

// Stop flips the alive flag and blocks until the worker has observed it
// and exited, at most one poll tick later plus scheduling slack.
func (s *Subscription) Stop() {
	s.alive.Store(false)
	<-s.done
}
