package peer

import (
	"errors"
	"fmt"
	"net/netip"
	"slices"

	"github.com/ZentaChain/kadwire/pkg/kad"
	"github.com/ZentaChain/kadwire/pkg/wire"
)

var ErrMalformedAddress = errors.New("peer: malformed address")

// MaxRelays is the maximum number of relay sockets an address carries;
// the relay count must fit the 3-bit field of the relay flag byte.
const MaxRelays = 5

// Address flag bits. The flag byte makes the encoding self-describing:
// the decoder knows exactly how many bytes follow without a length
// prefix on the whole address.
const (
	flagHasV4         = 1 << 0
	flagHasV6         = 1 << 1
	flagHasTCP        = 1 << 2
	flagSkipIP        = 1 << 3
	flagFirewalledUDP = 1 << 4
	flagFirewalledTCP = 1 << 5
	flagHasRelays     = 1 << 6
)

// Address identifies a peer and how to reach it: the 160-bit peer ID,
// an IPv4 and/or IPv6 UDP socket, an optional sibling TCP port,
// reachability flags, and up to MaxRelays relay sockets for peers that
// are not directly reachable.
//
// When SkipIP is set the encoding carries the identifier and flags
// only; the decoder reconstructs the primary socket from the endpoint
// the transport observed.
type Address struct {
	ID kad.ID

	V4 Socket
	V6 Socket

	// TCPPort is the sibling TCP port when it differs from the UDP
	// port; zero means none.
	TCPPort uint16

	FirewalledUDP bool
	FirewalledTCP bool
	SkipIP        bool

	Relays []Socket
}

// NewAddress creates a directly reachable peer address.
func NewAddress(id kad.ID, socket Socket) Address {
	a := Address{ID: id}
	if socket.IsV6() {
		a.V6 = socket
	} else {
		a.V4 = socket
	}
	return a
}

// WithSkipIP returns a copy with the IP-skip flag set or cleared.
func (a Address) WithSkipIP(skip bool) Address {
	a.SkipIP = skip
	return a
}

// WithRelays returns a copy carrying the given relay sockets.
func (a Address) WithRelays(relays []Socket) Address {
	a.Relays = slices.Clone(relays)
	return a
}

// WithObservedEndpoint fills the primary socket from a
// transport-observed endpoint. The decoder applies this to IP-skipped
// addresses; the skip flag stays set so both sides compare equal after
// the caller normalizes.
func (a Address) WithObservedEndpoint(ap netip.AddrPort) Address {
	s := SocketFromAddrPort(ap)
	if s.IsV6() {
		a.V6 = s
	} else {
		a.V4 = s
	}
	return a
}

func (a Address) flags() uint8 {
	var f uint8
	if a.FirewalledUDP {
		f |= flagFirewalledUDP
	}
	if a.FirewalledTCP {
		f |= flagFirewalledTCP
	}
	if a.SkipIP {
		return f | flagSkipIP
	}
	if a.V4.IsValid() {
		f |= flagHasV4
	}
	if a.V6.IsValid() {
		f |= flagHasV6
	}
	if a.TCPPort != 0 {
		f |= flagHasTCP
	}
	if len(a.Relays) > 0 {
		f |= flagHasRelays
	}
	return f
}

// EncodedSize returns the exact wire size of the address.
func (a Address) EncodedSize() int {
	size := 1 + kad.IDBytes
	if a.SkipIP {
		return size
	}
	if a.V4.IsValid() {
		size += 6
	}
	if a.V6.IsValid() {
		size += 18
	}
	if a.TCPPort != 0 {
		size += 2
	}
	if len(a.Relays) > 0 {
		size++
		for _, r := range a.Relays {
			size += r.EncodedSize()
		}
	}
	return size
}

// Encode returns the wire form of the address.
func (a Address) Encode() ([]byte, error) {
	if len(a.Relays) > MaxRelays {
		return nil, fmt.Errorf("%w: %d relays", ErrMalformedAddress, len(a.Relays))
	}
	if !a.SkipIP && !a.V4.IsValid() && !a.V6.IsValid() {
		return nil, fmt.Errorf("%w: no socket", ErrMalformedAddress)
	}
	dst := make([]byte, 0, a.EncodedSize())
	dst = append(dst, a.flags())
	dst = append(dst, a.ID[:]...)
	if a.SkipIP {
		return dst, nil
	}
	if a.V4.IsValid() {
		dst = a.V4.appendTo(dst)
	}
	if a.V6.IsValid() {
		dst = a.V6.appendTo(dst)
	}
	if a.TCPPort != 0 {
		dst = append(dst, byte(a.TCPPort>>8), byte(a.TCPPort))
	}
	if len(a.Relays) > 0 {
		relayByte := uint8(len(a.Relays))
		for i, r := range a.Relays {
			if r.IsV6() {
				relayByte |= 1 << (3 + i)
			}
		}
		dst = append(dst, relayByte)
		for _, r := range a.Relays {
			dst = r.appendTo(dst)
		}
	}
	return dst, nil
}

// DecodeAddress consumes one address from the buffer, driven entirely
// by the flag bytes. It returns wire.ErrShortBuffer with the reader
// rewound when the address is not fully available yet, and
// ErrMalformedAddress on structurally invalid flags.
func DecodeAddress(b *wire.Buffer) (Address, error) {
	mark := b.Position()
	if b.Readable() < 1+kad.IDBytes {
		return Address{}, wire.ErrShortBuffer
	}
	flags := b.ReadUint8()
	if flags&(1<<7) != 0 {
		return Address{}, fmt.Errorf("%w: reserved flag bit set", ErrMalformedAddress)
	}

	var a Address
	b.ReadInto(a.ID[:])
	a.FirewalledUDP = flags&flagFirewalledUDP != 0
	a.FirewalledTCP = flags&flagFirewalledTCP != 0

	if flags&flagSkipIP != 0 {
		if flags&(flagHasV4|flagHasV6|flagHasTCP|flagHasRelays) != 0 {
			return Address{}, fmt.Errorf("%w: skip-IP with socket flags", ErrMalformedAddress)
		}
		a.SkipIP = true
		return a, nil
	}
	if flags&(flagHasV4|flagHasV6) == 0 {
		return Address{}, fmt.Errorf("%w: no socket", ErrMalformedAddress)
	}

	need := 0
	if flags&flagHasV4 != 0 {
		need += 6
	}
	if flags&flagHasV6 != 0 {
		need += 18
	}
	if flags&flagHasTCP != 0 {
		need += 2
	}
	if b.Readable() < need {
		b.Rewind(mark)
		return Address{}, wire.ErrShortBuffer
	}
	if flags&flagHasV4 != 0 {
		a.V4 = decodeSocket(b, false)
	}
	if flags&flagHasV6 != 0 {
		a.V6 = decodeSocket(b, true)
	}
	if flags&flagHasTCP != 0 {
		a.TCPPort = b.ReadUint16()
	}

	if flags&flagHasRelays != 0 {
		if b.Readable() < 1 {
			b.Rewind(mark)
			return Address{}, wire.ErrShortBuffer
		}
		relayByte := b.ReadUint8()
		count := int(relayByte & 0x07)
		if count == 0 || count > MaxRelays {
			return Address{}, fmt.Errorf("%w: relay count %d", ErrMalformedAddress, count)
		}
		relayNeed := 0
		for i := 0; i < count; i++ {
			if relayByte&(1<<(3+i)) != 0 {
				relayNeed += 18
			} else {
				relayNeed += 6
			}
		}
		if b.Readable() < relayNeed {
			b.Rewind(mark)
			return Address{}, wire.ErrShortBuffer
		}
		a.Relays = make([]Socket, count)
		for i := 0; i < count; i++ {
			a.Relays[i] = decodeSocket(b, relayByte&(1<<(3+i)) != 0)
		}
	}
	return a, nil
}

// Equal compares every structural field; round-trip tests rely on this.
// Routing layers compare by ID alone.
func (a Address) Equal(o Address) bool {
	return a.ID == o.ID &&
		a.V4 == o.V4 &&
		a.V6 == o.V6 &&
		a.TCPPort == o.TCPPort &&
		a.FirewalledUDP == o.FirewalledUDP &&
		a.FirewalledTCP == o.FirewalledTCP &&
		a.SkipIP == o.SkipIP &&
		slices.Equal(a.Relays, o.Relays)
}

func (a Address) String() string {
	if a.SkipIP {
		return fmt.Sprintf("peer %s (ip skipped)", a.ID)
	}
	primary := a.V4
	if !primary.IsValid() {
		primary = a.V6
	}
	return fmt.Sprintf("peer %s @ %s (%d relays)", a.ID, primary, len(a.Relays))
}
