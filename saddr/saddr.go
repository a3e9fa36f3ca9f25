// Package saddr contains the addressing types shared by the transport
// and the protocol payloads:
// a 4-octet IP address with a port,
// a bounded display identifier,
// and the ConnectionInfo that ties them to one end of the link.
package saddr

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"unicode/utf8"
)

// MaxIdentifierLen is the maximum length in bytes of an [Identifier].
// The host stores identifiers in a fixed 32-byte string.
const MaxIdentifierLen = 32

// Identifier is a human-readable endpoint name,
// at most [MaxIdentifierLen] bytes long.
// Use [NewIdentifier] to build one from arbitrary input.
type Identifier string

// NewIdentifier returns s as an Identifier,
// truncated to MaxIdentifierLen bytes without splitting a UTF-8 sequence.
func NewIdentifier(s string) Identifier {
	if len(s) <= MaxIdentifierLen {
		return Identifier(s)
	}

	n := MaxIdentifierLen
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return Identifier(s[:n])
}

// ConnectionEnd says which side of the link a [ConnectionInfo] describes.
type ConnectionEnd uint8

const (
	// Not using iota here, to avoid possibility of values changing across the wire.

	LocalEnd  ConnectionEnd = 0
	RemoteEnd ConnectionEnd = 1
)

func (e ConnectionEnd) String() string {
	switch e {
	case LocalEnd:
		return "local"
	case RemoteEnd:
		return "remote"
	default:
		return "ConnectionEnd(" + strconv.Itoa(int(e)) + ")"
	}
}

// IPAddress is an IPv4 address and UDP port.
type IPAddress struct {
	Addr [4]byte
	Port uint16
}

// ParseIPAddress parses s in the form "a.b.c.d:port".
// Host names are not resolved.
func ParseIPAddress(s string) (IPAddress, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return IPAddress{}, fmt.Errorf("failed to parse address %q: %w", s, err)
	}
	return FromAddrPort(ap)
}

// FromAddrPort converts ap to an IPAddress.
// IPv4-mapped IPv6 addresses are accepted;
// any other IPv6 address is an error.
func FromAddrPort(ap netip.AddrPort) (IPAddress, error) {
	a := ap.Addr().Unmap()
	if !a.Is4() {
		return IPAddress{}, fmt.Errorf("address %s is not IPv4", ap)
	}
	return IPAddress{Addr: a.As4(), Port: ap.Port()}, nil
}

// FromNetAddr converts a [*net.UDPAddr] to an IPAddress.
func FromNetAddr(addr net.Addr) (IPAddress, error) {
	ua, ok := addr.(*net.UDPAddr)
	if !ok {
		return IPAddress{}, fmt.Errorf("address %v is %T, not *net.UDPAddr", addr, addr)
	}
	return FromAddrPort(ua.AddrPort())
}

// AddrPort returns a as a [netip.AddrPort].
func (a IPAddress) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(netip.AddrFrom4(a.Addr), a.Port)
}

// IsUnspecified reports whether a has the 0.0.0.0 address.
func (a IPAddress) IsUnspecified() bool {
	return a.Addr == [4]byte{}
}

func (a IPAddress) String() string {
	return a.AddrPort().String()
}

// Validate reports whether a is usable as a remote peer address.
func (a IPAddress) Validate() error {
	var err error
	if a.IsUnspecified() {
		err = errors.Join(err, errors.New("address must not be 0.0.0.0"))
	}
	if a.Port == 0 {
		err = errors.Join(err, errors.New("port must not be zero"))
	}
	return err
}

// ConnectionInfo identifies one endpoint of the link.
type ConnectionInfo struct {
	End        ConnectionEnd
	Address    IPAddress
	Identifier Identifier
}

func (ci ConnectionInfo) String() string {
	if ci.Identifier == "" {
		return ci.End.String() + " " + ci.Address.String()
	}
	return fmt.Sprintf("%s %s (%s)", ci.End, ci.Address, ci.Identifier)
}
