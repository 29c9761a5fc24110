package registrar

import (
	"fmt"
	"net"
	"time"

	"github.com/clara-msg/clara/msg"
	"github.com/clara-msg/clara/wireframe"
)

// DefaultTimeout is the default request deadline for add/remove/find
// calls.
const DefaultTimeout = 3000 * time.Millisecond

// Driver is a client stub speaking the registrar's request/response
// protocol. One Driver owns one persistent connection to the registrar;
// it is not safe for concurrent use by multiple goroutines, mirroring
// Connection's single-owner discipline.
type Driver struct {
	addr    msg.RegAddress
	conn    *wireframe.Conn
	timeout time.Duration
}

// Dial connects to the registrar at addr.
func Dial(addr msg.RegAddress) (*Driver, error) {
	nc, err := net.Dial("tcp", addr.Addr())
	if err != nil {
		return nil, fmt.Errorf("registrar: dialing %s: %w: %w", addr, err, msg.ErrConnectionError)
	}
	return &Driver{addr: addr, conn: wireframe.NewConn(nc), timeout: DefaultTimeout}, nil
}

// SetTimeout overrides the default 3000ms request timeout.
func (d *Driver) SetTimeout(timeout time.Duration) {
	d.timeout = timeout
}

// Close closes the underlying connection.
func (d *Driver) Close() error {
	return d.conn.Close()
}

func (d *Driver) call(action, sender string, reg msg.Registration) ([][]byte, error) {
	if err := d.conn.SetDeadline(time.Now().Add(d.timeout)); err != nil {
		return nil, err
	}
	defer d.conn.SetDeadline(time.Time{})

	req := [][]byte{[]byte(action), []byte(sender), reg.Marshal()}
	if err := d.conn.WriteFrames(req); err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, fmt.Errorf("registrar: %s timed out: %w", action, msg.ErrTimeout)
		}
		return nil, err
	}

	resp, err := d.conn.ReadFrames()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, fmt.Errorf("registrar: %s timed out: %w", action, msg.ErrTimeout)
		}
		return nil, err
	}
	if len(resp) < 3 {
		return nil, fmt.Errorf("registrar: response had %d frames, want >=3: %w", len(resp), msg.ErrProtocolViolation)
	}
	if string(resp[2]) != statusSuccess {
		return nil, fmt.Errorf("registrar: %s failed: %s: %w", action, resp[2], msg.ErrProtocolViolation)
	}
	return resp, nil
}

// AddPublisher registers reg as a publisher.
func (d *Driver) AddPublisher(sender string, reg msg.Registration) error {
	_, err := d.call(ActionRegisterPublisher, sender, reg)
	return err
}

// AddSubscriber registers reg as a subscriber.
func (d *Driver) AddSubscriber(sender string, reg msg.Registration) error {
	_, err := d.call(ActionRegisterSubscriber, sender, reg)
	return err
}

// RemovePublisher removes reg from the publisher set.
func (d *Driver) RemovePublisher(sender string, reg msg.Registration) error {
	_, err := d.call(ActionRemovePublisher, sender, reg)
	return err
}

// RemoveSubscriber removes reg from the subscriber set.
func (d *Driver) RemoveSubscriber(sender string, reg msg.Registration) error {
	_, err := d.call(ActionRemoveSubscriber, sender, reg)
	return err
}

// RemoveAll removes every registration matching host and owner.
func (d *Driver) RemoveAll(sender, host string, owner msg.OwnerType) error {
	reg := msg.Registration{Host: host, OwnerType: owner}
	_, err := d.call(ActionRemoveAll, sender, reg)
	return err
}

// FindPublishers returns every publisher whose topic the query is a
// parent of.
func (d *Driver) FindPublishers(sender string, query msg.Topic) ([]msg.Registration, error) {
	reg := msg.NewRegistration("", "", "", 0, query, msg.OwnerPublisher)
	resp, err := d.call(ActionFindPublisher, sender, reg)
	if err != nil {
		return nil, err
	}
	return decodeRegistrations(resp[3:])
}

// FindSubscribers returns every subscriber matching query.
func (d *Driver) FindSubscribers(sender string, query msg.Topic) ([]msg.Registration, error) {
	reg := msg.NewRegistration("", "", "", 0, query, msg.OwnerSubscriber)
	resp, err := d.call(ActionFindSubscriber, sender, reg)
	if err != nil {
		return nil, err
	}
	return decodeRegistrations(resp[3:])
}

func decodeRegistrations(frames [][]byte) ([]msg.Registration, error) {
	out := make([]msg.Registration, 0, len(frames))
	for _, f := range frames {
		r, err := msg.UnmarshalRegistration(f)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
