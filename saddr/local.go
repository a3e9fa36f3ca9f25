package saddr

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
)

// probeAddr is only used to ask the kernel which source address
// it would pick for outbound traffic.
// Dialing UDP sends no packets.
var probeAddr = netip.MustParseAddrPort("192.0.2.1:9")

// LocalIP returns the IPv4 address of the interface
// that carries the default route.
//
// If there is no default route,
// the first non-loopback IPv4 interface address is used instead.
func LocalIP() (netip.Addr, error) {
	conn, err := net.DialUDP("udp4", nil, net.UDPAddrFromAddrPort(probeAddr))
	if err == nil {
		defer conn.Close()
		a := conn.LocalAddr().(*net.UDPAddr).AddrPort().Addr().Unmap()
		if a.Is4() && !a.IsUnspecified() {
			return a, nil
		}
	}

	addrs, ifErr := net.InterfaceAddrs()
	if ifErr != nil {
		return netip.Addr{}, fmt.Errorf(
			"failed to determine local address: %w",
			errors.Join(err, ifErr),
		)
	}

	for _, ia := range addrs {
		ipn, ok := ia.(*net.IPNet)
		if !ok {
			continue
		}
		a, ok := netip.AddrFromSlice(ipn.IP)
		if !ok {
			continue
		}
		a = a.Unmap()
		if a.Is4() && !a.IsLoopback() && !a.IsLinkLocalUnicast() {
			return a, nil
		}
	}

	return netip.Addr{}, errors.New("no usable IPv4 interface address")
}

// DeviceName returns the host name as an Identifier,
// or "stagehand" if the host name cannot be read.
func DeviceName() Identifier {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "stagehand"
	}
	return NewIdentifier(h)
}
