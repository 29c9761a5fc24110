package registrar

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/clara-msg/clara/logging"
	"github.com/clara-msg/clara/msg"
)

func startTestRegistrar(t *testing.T) msg.RegAddress {
	t.Helper()
	l, err := logging.New("registrar-test", "", true)
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}

	freeL, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding free port: %v", err)
	}
	port := uint16(freeL.Addr().(*net.TCPAddr).Port)
	freeL.Close()

	addr, err := msg.NewRegAddress("127.0.0.1", port)
	if err != nil {
		t.Fatalf("NewRegAddress: %v", err)
	}

	s := New(addr, l)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("tcp", addr.Addr())
		if err == nil {
			conn.Close()
			return addr
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("test registrar never came up")
	return msg.RegAddress{}
}

func TestRegisterThenFindPublisher(t *testing.T) {
	addr := startTestRegistrar(t)
	d, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer d.Close()

	topic := msg.Raw("asimov:robots:report")
	reg := msg.NewRegistration("asimov_writer", "writes robot reports", "10.1.1.1", 7771, topic, msg.OwnerPublisher)

	if err := d.AddPublisher("sender1", reg); err != nil {
		t.Fatalf("AddPublisher: %v", err)
	}

	found, err := d.FindPublishers("sender1", msg.Raw("asimov"))
	if err != nil {
		t.Fatalf("FindPublishers: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("FindPublishers returned %d results, want 1", len(found))
	}
	if found[0].Name != "asimov_writer" {
		t.Errorf("found[0].Name = %q, want asimov_writer", found[0].Name)
	}
}

func TestRemoveAllByHostAndOwner(t *testing.T) {
	addr := startTestRegistrar(t)
	d, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer d.Close()

	topicA := msg.Raw("bradbury:mars:colony")
	topicB := msg.Raw("bradbury:mars:rocket")
	regA := msg.NewRegistration("a", "", "10.2.2.2", 7771, topicA, msg.OwnerPublisher)
	regB := msg.NewRegistration("b", "", "10.2.2.2", 7771, topicB, msg.OwnerPublisher)

	if err := d.AddPublisher("sender1", regA); err != nil {
		t.Fatalf("AddPublisher a: %v", err)
	}
	if err := d.AddPublisher("sender1", regB); err != nil {
		t.Fatalf("AddPublisher b: %v", err)
	}

	if err := d.RemoveAll("sender1", "10.2.2.2", msg.OwnerPublisher); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}

	found, err := d.FindPublishers("sender1", msg.Raw("bradbury"))
	if err != nil {
		t.Fatalf("FindPublishers: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("FindPublishers after RemoveAll returned %d results, want 0", len(found))
	}
}

func TestFindSubscriberAsymmetricPrefix(t *testing.T) {
	addr := startTestRegistrar(t)
	d, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer d.Close()

	// A subscriber interested in the broad "clara:msg" prefix should be
	// found by a more specific query.
	sub := msg.NewRegistration("listener", "", "10.3.3.3", 7771, msg.Raw("clara:msg"), msg.OwnerSubscriber)
	if err := d.AddSubscriber("sender1", sub); err != nil {
		t.Fatalf("AddSubscriber: %v", err)
	}

	found, err := d.FindSubscribers("sender1", msg.Raw("clara:msg:control"))
	if err != nil {
		t.Fatalf("FindSubscribers: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("FindSubscribers returned %d results, want 1", len(found))
	}
}
