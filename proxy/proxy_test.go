package proxy

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/clara-msg/clara/logging"
	"github.com/clara-msg/clara/msg"
	"github.com/clara-msg/clara/wireframe"
)

func newTestProxy(t *testing.T) (*Proxy, msg.ProxyAddress) {
	t.Helper()
	l, err := logging.New("proxy-test", "", true)
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}

	// Port 0 on net.Listen would pick a free port, but Proxy.Run needs to
	// know the port up front to compute sub/ctrl offsets, so pick one free
	// TCP port and derive the trio from it.
	base := freePort(t)
	addr, err := msg.NewProxyAddress("127.0.0.1", base)
	if err != nil {
		t.Fatalf("NewProxyAddress: %v", err)
	}

	p := New(addr, l)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	waitForListener(t, addr.PubAddr())
	waitForListener(t, addr.SubAddr())
	waitForListener(t, addr.CtrlAddr())

	return p, addr
}

func freePort(t *testing.T) uint16 {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding free port: %v", err)
	}
	defer l.Close()
	return uint16(l.Addr().(*net.TCPAddr).Port)
}

func waitForListener(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("listener at %s never came up", addr)
}

func TestControlHandshakeEchoesIdentity(t *testing.T) {
	_, addr := newTestProxy(t)

	conn, err := net.Dial("tcp", addr.CtrlAddr())
	if err != nil {
		t.Fatalf("dial control: %v", err)
	}
	defer conn.Close()
	fc := wireframe.NewConn(conn)

	if err := fc.WriteFrames([][]byte{[]byte(ControlTopic), []byte("pub"), []byte("deadbeef")}); err != nil {
		t.Fatalf("WriteFrames: %v", err)
	}
	reply, err := fc.ReadFrames()
	if err != nil {
		t.Fatalf("ReadFrames: %v", err)
	}
	if len(reply) != 2 || string(reply[0]) != "deadbeef" || string(reply[1]) != "pub" {
		t.Errorf("reply = %v, want [deadbeef pub]", reply)
	}
}

func TestPublishFansOutToMatchingSubscriber(t *testing.T) {
	_, addr := newTestProxy(t)

	subConn, err := net.Dial("tcp", addr.SubAddr())
	if err != nil {
		t.Fatalf("dial sub: %v", err)
	}
	defer subConn.Close()
	subFC := wireframe.NewConn(subConn)
	if err := subFC.WriteFrames([][]byte{[]byte("rock:metal")}); err != nil {
		t.Fatalf("subscribing: %v", err)
	}

	// Give the server a moment to register the subscriber before publishing.
	time.Sleep(20 * time.Millisecond)

	pubConn, err := net.Dial("tcp", addr.PubAddr())
	if err != nil {
		t.Fatalf("dial pub: %v", err)
	}
	defer pubConn.Close()
	pubFC := wireframe.NewConn(pubConn)

	topic, _ := msg.Build("rock", "metal", "metallica")
	meta := msg.NewMetadata("text/string")
	m, err := msg.NewMessage(topic, &meta, []byte("hello"))
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if err := pubFC.WriteFrames(m.Frames()); err != nil {
		t.Fatalf("publishing: %v", err)
	}

	subConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	got, err := subFC.ReadFrames()
	if err != nil {
		t.Fatalf("reading fanned-out message: %v", err)
	}
	parsed, err := msg.ParseMessage(got)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if string(parsed.Data) != "hello" {
		t.Errorf("Data = %q, want %q", parsed.Data, "hello")
	}
}

func TestPublishDoesNotReachNonMatchingSubscriber(t *testing.T) {
	_, addr := newTestProxy(t)

	subConn, err := net.Dial("tcp", addr.SubAddr())
	if err != nil {
		t.Fatalf("dial sub: %v", err)
	}
	defer subConn.Close()
	subFC := wireframe.NewConn(subConn)
	if err := subFC.WriteFrames([][]byte{[]byte("jazz")}); err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	pubConn, err := net.Dial("tcp", addr.PubAddr())
	if err != nil {
		t.Fatalf("dial pub: %v", err)
	}
	defer pubConn.Close()
	pubFC := wireframe.NewConn(pubConn)

	topic, _ := msg.Build("rock")
	meta := msg.NewMetadata("text/string")
	m, _ := msg.NewMessage(topic, &meta, []byte("nope"))
	if err := pubFC.WriteFrames(m.Frames()); err != nil {
		t.Fatalf("publishing: %v", err)
	}

	subConn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, err = subFC.ReadFrames()
	if err == nil {
		t.Errorf("expected a read-deadline error, got a message instead")
	}
}

func TestProxyStopsOnContextCancel(t *testing.T) {
	l, err := logging.New("proxy-test", "", true)
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	base := freePort(t)
	addr, err := msg.NewProxyAddress("127.0.0.1", base)
	if err != nil {
		t.Fatalf("NewProxyAddress: %v", err)
	}
	p := New(addr, l)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()
	waitForListener(t, addr.PubAddr())

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() returned error after cancel: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run() did not return within 2s of context cancel")
	}

	if _, err := net.Dial("tcp", addr.PubAddr()); err == nil {
		t.Errorf("expected pub listener to be closed after shutdown")
	}
}
