package registrar

import (
	"errors"
	"testing"
	"time"

	"github.com/clara-msg/clara/msg"
)

func TestDriverRemoveSubscriberRoundTrip(t *testing.T) {
	addr := startTestRegistrar(t)
	d, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer d.Close()

	topic := msg.Raw("heinlein:mobile:infantry")
	reg := msg.NewRegistration("trooper", "", "10.4.4.4", 7771, topic, msg.OwnerSubscriber)

	if err := d.AddSubscriber("sender1", reg); err != nil {
		t.Fatalf("AddSubscriber: %v", err)
	}
	if err := d.RemoveSubscriber("sender1", reg); err != nil {
		t.Fatalf("RemoveSubscriber: %v", err)
	}

	found, err := d.FindSubscribers("sender1", msg.Raw("heinlein"))
	if err != nil {
		t.Fatalf("FindSubscribers: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("FindSubscribers after removal returned %d results, want 0", len(found))
	}
}

func TestDriverSetTimeoutAppliesToSubsequentCalls(t *testing.T) {
	addr := startTestRegistrar(t)
	d, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer d.Close()
	d.SetTimeout(500 * time.Millisecond)

	reg := msg.NewRegistration("x", "", "10.5.5.5", 7771, msg.Raw("x"), msg.OwnerPublisher)
	if err := d.AddPublisher("sender1", reg); err != nil {
		t.Fatalf("AddPublisher with custom timeout: %v", err)
	}
}

func TestDriverSurfacesConnectionErrorOnDialFailure(t *testing.T) {
	bogus, err := msg.NewRegAddress("127.0.0.1", 18888)
	if err != nil {
		t.Fatalf("NewRegAddress: %v", err)
	}
	_, err = dialClosedPort(bogus)
	if err == nil {
		t.Fatalf("expected an error dialing a closed port")
	}
	if !errors.Is(err, msg.ErrConnectionError) {
		t.Errorf("error = %v, want wrapping ErrConnectionError", err)
	}
}

func dialClosedPort(addr msg.RegAddress) (*Driver, error) {
	return Dial(addr)
}
