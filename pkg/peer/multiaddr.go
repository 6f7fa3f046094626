package peer

import (
	"fmt"
	"net/netip"

	ma "github.com/multiformats/go-multiaddr"
)

// Multiaddrs returns the address's reachable endpoints as multiaddrs,
// so libp2p-based transports can dial peers decoded from the wire. UDP
// sockets map to /ipX/../udp/port; the sibling TCP port, when present,
// yields an additional /tcp component per IP.
func (a Address) Multiaddrs() ([]ma.Multiaddr, error) {
	var out []ma.Multiaddr
	add := func(format string, args ...any) error {
		m, err := ma.NewMultiaddr(fmt.Sprintf(format, args...))
		if err != nil {
			return err
		}
		out = append(out, m)
		return nil
	}
	for _, s := range []Socket{a.V4, a.V6} {
		if !s.IsValid() {
			continue
		}
		proto := "ip4"
		if s.IsV6() {
			proto = "ip6"
		}
		if err := add("/%s/%s/udp/%d", proto, s.Addr, s.Port); err != nil {
			return nil, err
		}
		if a.TCPPort != 0 {
			if err := add("/%s/%s/tcp/%d", proto, s.Addr, a.TCPPort); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// SocketFromMultiaddr extracts an IP socket from a /ipX/../udp or
// /ipX/../tcp multiaddr.
func SocketFromMultiaddr(addr ma.Multiaddr) (Socket, error) {
	var ip string
	if v, err := addr.ValueForProtocol(ma.P_IP4); err == nil {
		ip = v
	} else if v, err := addr.ValueForProtocol(ma.P_IP6); err == nil {
		ip = v
	} else {
		return Socket{}, fmt.Errorf("%w: no ip component in %s", ErrMalformedAddress, addr)
	}
	parsed, err := netip.ParseAddr(ip)
	if err != nil {
		return Socket{}, fmt.Errorf("%w: %v", ErrMalformedAddress, err)
	}

	var port string
	if v, err := addr.ValueForProtocol(ma.P_UDP); err == nil {
		port = v
	} else if v, err := addr.ValueForProtocol(ma.P_TCP); err == nil {
		port = v
	} else {
		return Socket{}, fmt.Errorf("%w: no port component in %s", ErrMalformedAddress, addr)
	}
	var portNum uint16
	if _, err := fmt.Sscanf(port, "%d", &portNum); err != nil {
		return Socket{}, fmt.Errorf("%w: port %q", ErrMalformedAddress, port)
	}
	return NewSocket(parsed, portNum), nil
}
