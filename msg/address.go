package msg

import (
	"fmt"
	"net"
)

// DefaultProxyPubPort is the default port a proxy's XSUB-equivalent
// forwarder socket binds to; the XPUB-equivalent subscriber socket binds
// to DefaultProxyPubPort+1, and the control-plane ROUTER binds to
// DefaultProxyPubPort+2.
const DefaultProxyPubPort = 7771

// DefaultRegistrarPort is the default port the registrar service binds to.
const DefaultRegistrarPort = 8888

const (
	minValidPort = 1024
	maxValidPort = 65535
)

// ProxyAddress identifies a proxy broker: a resolved IPv4 host plus the
// publish port (the subscribe port is always pub+1, the control port
// always pub+2).
type ProxyAddress struct {
	Host    string
	PubPort uint16
	SubPort uint16
}

// NewProxyAddress resolves host to an IPv4 address and builds a
// ProxyAddress with subPort = pubPort+1. Ports outside [1024, 65535]
// are rejected.
func NewProxyAddress(host string, pubPort uint16) (ProxyAddress, error) {
	resolved, err := resolveIPv4(host)
	if err != nil {
		return ProxyAddress{}, fmt.Errorf("msg: resolving proxy host %q: %w", host, err)
	}
	if err := validatePort(pubPort); err != nil {
		return ProxyAddress{}, fmt.Errorf("msg: proxy pub_port: %w", err)
	}
	return ProxyAddress{Host: resolved, PubPort: pubPort, SubPort: pubPort + 1}, nil
}

// DefaultProxyAddress resolves host against the default pub port.
func DefaultProxyAddress(host string) (ProxyAddress, error) {
	return NewProxyAddress(host, DefaultProxyPubPort)
}

// CtrlPort returns the control-plane port: SubPort+1.
func (a ProxyAddress) CtrlPort() uint16 {
	return a.SubPort + 1
}

// PubAddr returns the "host:port" dial string for the publish socket.
func (a ProxyAddress) PubAddr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.PubPort)
}

// SubAddr returns the "host:port" dial string for the subscribe socket.
func (a ProxyAddress) SubAddr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.SubPort)
}

// CtrlAddr returns the "host:port" dial string for the control socket.
func (a ProxyAddress) CtrlAddr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.CtrlPort())
}

// String renders the address as "host:pubPort" for logging and map keys.
func (a ProxyAddress) String() string {
	return a.PubAddr()
}

// RegAddress identifies a registrar service: a resolved IPv4 host plus port.
type RegAddress struct {
	Host string
	Port uint16
}

// NewRegAddress resolves host to an IPv4 address and validates port.
func NewRegAddress(host string, port uint16) (RegAddress, error) {
	resolved, err := resolveIPv4(host)
	if err != nil {
		return RegAddress{}, fmt.Errorf("msg: resolving registrar host %q: %w", host, err)
	}
	if err := validatePort(port); err != nil {
		return RegAddress{}, fmt.Errorf("msg: registrar port: %w", err)
	}
	return RegAddress{Host: resolved, Port: port}, nil
}

// DefaultRegAddress resolves host against the default registrar port.
func DefaultRegAddress(host string) (RegAddress, error) {
	return NewRegAddress(host, DefaultRegistrarPort)
}

// Addr returns the "host:port" dial string.
func (a RegAddress) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

func (a RegAddress) String() string {
	return a.Addr()
}

func validatePort(port uint16) error {
	if port < minValidPort {
		return fmt.Errorf("port %d is privileged (<%d): %w", port, minValidPort, ErrInvalidArgument)
	}
	// uint16 max is 65535 == maxValidPort, so only the lower bound can
	// actually be violated; the upper check is kept to document the
	// intended range.
	if port > maxValidPort {
		return fmt.Errorf("port %d exceeds %d: %w", port, maxValidPort, ErrInvalidArgument)
	}
	return nil
}

// resolveIPv4 turns a hostname or literal IPv4 address into a dotted-quad
// string. "localhost" is never stored verbatim; it is always resolved.
func resolveIPv4(host string) (string, error) {
	if host == "" {
		return "", fmt.Errorf("empty host: %w", ErrInvalidArgument)
	}
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4.String(), nil
		}
		return "", fmt.Errorf("host %q is not an IPv4 address: %w", host, ErrInvalidArgument)
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return "", err
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	return "", fmt.Errorf("no IPv4 address found for host %q", host)
}
