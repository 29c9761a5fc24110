// Package registrar implements the in-memory registration service and
// its client driver: a mutex-guarded msg.RegDataSet behind a
// request/response protocol with 3 request frames and >=3 response
// frames per call.
package registrar

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/clara-msg/clara/logging"
	"github.com/clara-msg/clara/msg"
	"github.com/clara-msg/clara/wireframe"
)

// Action names understood by the registrar wire protocol.
const (
	ActionRegisterPublisher  = "registerPublisher"
	ActionRegisterSubscriber = "registerSubscriber"
	ActionRemovePublisher    = "removePublisherRegistration"
	ActionRemoveSubscriber   = "removeSubscriberRegistration"
	ActionRemoveAll          = "removeAllRegistration"
	ActionFindPublisher      = "findPublisher"
	ActionFindSubscriber     = "findSubscriber"

	statusSuccess = "success"
)

// Service is the registrar: one shared, mutex-guarded RegDataSet served
// over a TCP accept loop.
type Service struct {
	addr msg.RegAddress
	log  *logging.Logger

	mu   sync.Mutex
	data *msg.RegDataSet
}

// New constructs a Service bound to addr, not yet listening.
func New(addr msg.RegAddress, log *logging.Logger) *Service {
	return &Service{addr: addr, log: log, data: msg.NewRegDataSet()}
}

// Run listens on addr and serves registrar requests until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", s.addr.Addr())
	if err != nil {
		return fmt.Errorf("registrar: listening: %w", err)
	}
	s.log.Info("registrar listening on %s", s.addr.Addr())

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warn("registrar: accept error: %v", err)
			continue
		}
		go s.handleConnection(conn)
	}
}

func (s *Service) handleConnection(conn net.Conn) {
	connID := uuid.NewString()
	s.log.Debug("registrar: connection %s opened from %s", connID, conn.RemoteAddr())
	defer func() {
		s.log.Debug("registrar: connection %s closed", connID)
		conn.Close()
	}()

	fc := wireframe.NewConn(conn)
	for {
		frames, err := fc.ReadFrames()
		if err != nil {
			return
		}
		resp := s.handleRequest(frames)
		if err := fc.WriteFrames(resp); err != nil {
			return
		}
	}
}

// handleRequest dispatches one [action, sender, reg_bytes] request to the
// matching action handler and returns the [action, sender, status, ...]
// response frames.
func (s *Service) handleRequest(frames [][]byte) [][]byte {
	if len(frames) != 3 {
		return errorResponse("", "", fmt.Sprintf("expected 3 request frames, got %d", len(frames)))
	}
	action := string(frames[0])
	sender := string(frames[1])

	reg, err := msg.UnmarshalRegistration(frames[2])
	if err != nil {
		return errorResponse(action, sender, err.Error())
	}

	switch action {
	case ActionRegisterPublisher, ActionRegisterSubscriber:
		s.mu.Lock()
		s.data.Add(reg)
		s.mu.Unlock()
		return okResponse(action, sender)

	case ActionRemovePublisher, ActionRemoveSubscriber:
		s.mu.Lock()
		s.data.Remove(reg)
		s.mu.Unlock()
		return okResponse(action, sender)

	case ActionRemoveAll:
		s.mu.Lock()
		s.data.RemoveAll(reg.Host, reg.OwnerType)
		s.mu.Unlock()
		return okResponse(action, sender)

	case ActionFindPublisher:
		s.mu.Lock()
		results := s.data.FindPublishers(reg.AsTopic())
		s.mu.Unlock()
		return resultsResponse(action, sender, results)

	case ActionFindSubscriber:
		s.mu.Lock()
		results := s.data.FindSubscribers(reg.AsTopic())
		s.mu.Unlock()
		return resultsResponse(action, sender, results)

	default:
		return errorResponse(action, sender, fmt.Sprintf("unknown action %q", action))
	}
}

func okResponse(action, sender string) [][]byte {
	return [][]byte{[]byte(action), []byte(sender), []byte(statusSuccess)}
}

func errorResponse(action, sender, message string) [][]byte {
	return [][]byte{[]byte(action), []byte(sender), []byte(message)}
}

func resultsResponse(action, sender string, results []msg.Registration) [][]byte {
	out := make([][]byte, 0, 3+len(results))
	out = append(out, []byte(action), []byte(sender), []byte(statusSuccess))
	for _, r := range results {
		out = append(out, r.Marshal())
	}
	return out
}
