// Package addr implements the tagged-union address model shared by every
// transport layer: a literal socket address, a hostname to be resolved at
// connect time, or a Unix domain socket path.
package addr

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Kind tags which variant an Addr holds.
type Kind int

const (
	// Socket is a literal IP:port, resolved already.
	Socket Kind = iota
	// Domain is a hostname:port, resolved at connect time.
	Domain
	// Unix is a filesystem path to a Unix domain socket.
	Unix
)

// Addr is a sum type over {socket address, domain:port, unix path}.
// The zero value is not valid; construct with Parse, NewSocket, NewDomain
// or NewUnix.
type Addr struct {
	kind Kind
	ip   net.IP
	host string
	port int
	path string
}

// NewSocket builds a literal-IP address.
func NewSocket(ip net.IP, port int) Addr {
	return Addr{kind: Socket, ip: ip, port: port}
}

// NewDomain builds a hostname address, resolved on every connect.
func NewDomain(host string, port int) Addr {
	return Addr{kind: Domain, host: host, port: port}
}

// NewUnix builds a Unix domain socket path address.
func NewUnix(path string) Addr {
	return Addr{kind: Unix, path: path}
}

// Parse accepts "host:port", "ip:port", or a bare filesystem path (treated
// as a Unix socket when it starts with "/" or "./").
func Parse(s string) (Addr, error) {
	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, "./") {
		return NewUnix(s), nil
	}

	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Addr{}, fmt.Errorf("addr: invalid address %q: %w", s, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Addr{}, fmt.Errorf("addr: invalid port in %q: %w", s, err)
	}
	if ip := net.ParseIP(host); ip != nil {
		return NewSocket(ip, port), nil
	}
	return NewDomain(host, port), nil
}

// Kind reports which variant the address holds.
func (a Addr) Kind() Kind { return a.kind }

// Port returns the port for Socket/Domain variants, or 0 for Unix.
func (a Addr) Port() int { return a.port }

// Host returns the hostname for a Domain address, or "" otherwise.
func (a Addr) Host() string { return a.host }

// IP returns the literal IP for a Socket address, or nil otherwise.
func (a Addr) IP() net.IP { return a.ip }

// Path returns the socket path for a Unix address, or "" otherwise.
func (a Addr) Path() string { return a.path }

// IsLiteral reports whether the address is already a concrete endpoint
// (Socket or Unix) that requires no DNS resolution to bind or dial.
func (a Addr) IsLiteral() bool { return a.kind != Domain }

// String renders "host:port", "ip:port", or the unix path.
func (a Addr) String() string {
	switch a.kind {
	case Socket:
		return net.JoinHostPort(a.ip.String(), strconv.Itoa(a.port))
	case Domain:
		return net.JoinHostPort(a.host, strconv.Itoa(a.port))
	case Unix:
		return a.path
	default:
		return "<invalid addr>"
	}
}

// SNI returns the server name that TLS client hello should present for
// this address, and whether SNI should be sent at all. A Domain address
// uses its hostname; a Socket or Unix address carries no name to
// authenticate against, so ok is false (the TLS layer then sets the
// placeholder ServerName "localhost", which crypto/tls still sends as SNI;
// see tlslayer.BuildClientConfig).
func (a Addr) SNI() (name string, ok bool) {
	if a.kind == Domain {
		return a.host, true
	}
	return "", false
}

// Network returns "tcp", "udp" or "unix" appropriate for use with the
// standard library dialers, given the net kind configured alongside this
// address (the Addr itself does not encode network family).
func Network(netKind string) string {
	switch netKind {
	case "udp":
		return "udp"
	case "uds":
		return "unix"
	default:
		return "tcp"
	}
}
