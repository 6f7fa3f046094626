package peer

import (
	"fmt"
	"net/netip"

	"github.com/ZentaChain/kadwire/pkg/wire"
)

// Socket is a single network endpoint: an IPv4 or IPv6 address plus a
// port. The zero value is "absent".
type Socket struct {
	Addr netip.Addr
	Port uint16
}

// NewSocket creates a socket endpoint.
func NewSocket(addr netip.Addr, port uint16) Socket {
	return Socket{Addr: addr.Unmap(), Port: port}
}

// SocketFromAddrPort converts a transport-observed endpoint.
func SocketFromAddrPort(ap netip.AddrPort) Socket {
	return NewSocket(ap.Addr(), ap.Port())
}

// MustParseSocket parses "ip:port" and panics on failure. Test helper.
func MustParseSocket(s string) Socket {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		panic(err)
	}
	return SocketFromAddrPort(ap)
}

// IsValid reports whether the socket holds an address.
func (s Socket) IsValid() bool {
	return s.Addr.IsValid()
}

// IsV6 reports whether the socket is an IPv6 endpoint.
func (s Socket) IsV6() bool {
	return s.Addr.Is6() && !s.Addr.Is4In6()
}

// AddrPort returns the endpoint as a netip.AddrPort.
func (s Socket) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(s.Addr, s.Port)
}

// EncodedSize returns the untagged wire size: 4 or 16 address bytes
// plus 2 port bytes.
func (s Socket) EncodedSize() int {
	if s.IsV6() {
		return 18
	}
	return 6
}

func (s Socket) String() string {
	return s.AddrPort().String()
}

// appendTo emits address bytes then the port, family implied by the
// caller's flag bits.
func (s Socket) appendTo(dst []byte) []byte {
	raw := s.Addr.As16()
	if s.IsV6() {
		dst = append(dst, raw[:]...)
	} else {
		v4 := s.Addr.As4()
		dst = append(dst, v4[:]...)
	}
	return append(dst, byte(s.Port>>8), byte(s.Port))
}

// decodeSocket consumes an untagged socket of the given family. The
// caller has already checked that enough bytes are readable.
func decodeSocket(b *wire.Buffer, v6 bool) Socket {
	var addr netip.Addr
	if v6 {
		var raw [16]byte
		b.ReadInto(raw[:])
		addr = netip.AddrFrom16(raw)
	} else {
		var raw [4]byte
		b.ReadInto(raw[:])
		addr = netip.AddrFrom4(raw)
	}
	return Socket{Addr: addr, Port: b.ReadUint16()}
}

const (
	familyV4 = 4
	familyV6 = 6
)

// EncodeTagged returns the self-describing socket form used by the
// SET_PEER_SOCKET payload: a family byte, address bytes, then the port.
func (s Socket) EncodeTagged() []byte {
	dst := make([]byte, 0, 1+s.EncodedSize())
	if s.IsV6() {
		dst = append(dst, familyV6)
	} else {
		dst = append(dst, familyV4)
	}
	return s.appendTo(dst)
}

// DecodeTaggedSocket consumes one family-tagged socket. It returns
// wire.ErrShortBuffer without consuming anything when the entry is not
// fully available yet.
func DecodeTaggedSocket(b *wire.Buffer) (Socket, error) {
	if b.Readable() < 1 {
		return Socket{}, wire.ErrShortBuffer
	}
	mark := b.Position()
	family := b.ReadUint8()
	var v6 bool
	switch family {
	case familyV4:
	case familyV6:
		v6 = true
	default:
		return Socket{}, fmt.Errorf("%w: socket family %d", ErrMalformedAddress, family)
	}
	size := 6
	if v6 {
		size = 18
	}
	if b.Readable() < size {
		b.Rewind(mark)
		return Socket{}, wire.ErrShortBuffer
	}
	return decodeSocket(b, v6), nil
}
