package message

import (
	"crypto"
	"errors"
	"fmt"
	"net/netip"

	"github.com/ZentaChain/kadwire/pkg/kad"
	"github.com/ZentaChain/kadwire/pkg/peer"
	"github.com/ZentaChain/kadwire/pkg/sig"
	"github.com/ZentaChain/kadwire/pkg/wire"
)

type decodeState uint8

const (
	stateHeader decodeState = iota
	statePayload
	stateDone
)

// dataStage tracks the sub-format position inside one DataMap entry.
const (
	dataStageKeyMeta uint8 = iota
	dataStagePayload
	dataStageSignature
)

// slotProgress is the decoder's position inside the current slot's
// sub-format, so a partially delivered container resumes exactly where
// it left off.
type slotProgress struct {
	started    bool
	count      int
	read       int
	shared     bool
	prefixRead bool
	location   kad.ID
	domain     kad.ID

	keyList   []kad.Key
	dataMap   *DataMap
	keyMap    *KeyMap
	neighbors []peer.Address
	sockets   []peer.Socket

	// in-flight blob: a BYTE_BUFFER body or the current Data payload,
	// consumed incrementally so huge entries never require the whole
	// message in the accumulator at once
	blob    []byte
	blobOff int

	data      *Data
	dataKey   kad.Key
	dataFlags uint8
	dataStage uint8
}

// Decoder rebuilds a message from a byte stream, tolerating partial
// delivery: whenever the buffer does not yet hold enough bytes for the
// current field, decoding reports "need more input" instead of
// failing, and the next call resumes at the same position. One decoder
// carries the state of one in-flight message; concurrent messages each
// need their own.
type Decoder struct {
	state decodeState
	msg   *Message
	types [SlotCount]Content
	slot  int

	payloadStart int
	prog         slotProgress

	sigAlg sig.Algorithm
	sigPub crypto.PublicKey
}

// NewDecoder creates a decoder for one message.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Message returns the message decoded so far; nil before the header
// has been consumed.
func (d *Decoder) Message() *Message { return d.msg }

// Done reports whether the whole message has been decoded.
func (d *Decoder) Done() bool { return d.state == stateDone }

// Decode runs DecodeHeader and DecodePayload in one step for callers
// that have the whole datagram in hand.
func (d *Decoder) Decode(b *wire.Buffer, remote, local netip.AddrPort) (bool, error) {
	done, err := d.DecodeHeader(b, remote, local)
	if err != nil || !done {
		return false, err
	}
	return d.DecodePayload(b)
}

// DecodeHeader consumes the fixed prefix and both addresses. The
// transport passes the endpoints it observed; they reconstruct
// IP-skipped addresses. Returns (false, nil) when more bytes are
// needed, with nothing consumed.
func (d *Decoder) DecodeHeader(b *wire.Buffer, remote, local netip.AddrPort) (bool, error) {
	if d.state != stateHeader {
		return true, nil
	}
	mark := b.Position()
	if b.Readable() < headerFixedSize {
		return false, nil
	}

	id := b.ReadUint16()
	version := b.ReadUint8()
	if version != Version {
		return false, fmt.Errorf("%w: protocol version %d", ErrMalformedMessage, version)
	}

	var slotBytes [4]byte
	b.ReadInto(slotBytes[:])
	types := unpackSlots(slotBytes)
	filled := true
	for i, t := range types {
		if !t.valid() {
			return false, fmt.Errorf("%w: slot %d tag %d", ErrUnsupportedContentType, i, t)
		}
		if t == ContentEmpty {
			filled = false
		} else if !filled {
			return false, fmt.Errorf("%w: slot %d filled after empty slot", ErrMalformedMessage, i)
		}
	}

	command := b.ReadUint8()
	mtype := Type(b.ReadUint8())
	if mtype >= typeLimit {
		return false, fmt.Errorf("%w: message type %d", ErrMalformedMessage, mtype)
	}

	sender, err := peer.DecodeAddress(b)
	if errors.Is(err, wire.ErrShortBuffer) {
		b.Rewind(mark)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: sender: %w", ErrMalformedMessage, err)
	}
	recipient, err := peer.DecodeAddress(b)
	if errors.Is(err, wire.ErrShortBuffer) {
		b.Rewind(mark)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: recipient: %w", ErrMalformedMessage, err)
	}
	if sender.SkipIP {
		sender = sender.WithObservedEndpoint(remote)
	}
	if recipient.SkipIP {
		recipient = recipient.WithObservedEndpoint(local)
	}

	signHint := false
	for _, t := range types {
		if t == ContentPublicKeySignature {
			signHint = true
		}
	}

	d.msg = &Message{
		id:        id,
		version:   version,
		command:   command,
		mtype:     mtype,
		sender:    sender,
		recipient: recipient,
		signHint:  signHint,
	}
	d.types = types
	d.payloadStart = b.Position()
	d.state = statePayload
	return true, nil
}

// DecodePayload consumes payload items one slot at a time, then the
// signature trailer when the sign hint is set. Safe to call again
// after a (false, nil) result once more bytes arrived.
func (d *Decoder) DecodePayload(b *wire.Buffer) (bool, error) {
	switch d.state {
	case stateHeader:
		return false, ErrHeaderRequired
	case stateDone:
		return true, nil
	}

	for d.slot < SlotCount && d.types[d.slot] != ContentEmpty {
		done, err := d.decodeSlot(b, d.types[d.slot])
		if err != nil {
			if errors.Is(err, ErrUnsupportedContentType) {
				return false, err
			}
			return false, fmt.Errorf("%w: slot %d (%s): %w", ErrMalformedMessage, d.slot, d.types[d.slot], err)
		}
		if !done {
			return false, nil
		}
		d.prog = slotProgress{}
		d.slot++
	}

	if d.msg.signHint {
		done, err := d.decodeSignature(b)
		if err != nil || !done {
			return false, err
		}
	}
	d.state = stateDone
	return true, nil
}

// decodeSignature reads the trailer and verifies it against the exact
// payload byte range. A mismatch leaves Verified false; it is not a
// decode failure.
func (d *Decoder) decodeSignature(b *wire.Buffer) (bool, error) {
	if b.Readable() < 2 {
		return false, nil
	}
	payloadEnd := b.Position()
	n := int(b.ReadUint16())
	if b.Readable() < n {
		b.Rewind(payloadEnd)
		return false, nil
	}
	signature := b.ReadBytes(n)

	d.msg.verified = d.verify(b, payloadEnd, signature)
	return true, nil
}

func (d *Decoder) verify(b *wire.Buffer, payloadEnd int, signature []byte) bool {
	if d.sigPub == nil {
		return false
	}
	f, err := sig.Lookup(d.sigAlg)
	if err != nil {
		return false
	}
	v, err := f.NewVerifier(d.sigPub)
	if err != nil {
		return false
	}
	payload, err := b.Range(d.payloadStart, payloadEnd)
	if err != nil {
		return false
	}
	if _, err := v.Write(payload); err != nil {
		return false
	}
	return v.Verify(signature)
}

func (d *Decoder) decodeSlot(b *wire.Buffer, tag Content) (bool, error) {
	switch tag {
	case ContentKey:
		if b.Readable() < kad.IDBytes {
			return false, nil
		}
		var id kad.ID
		b.ReadInto(id[:])
		return true, d.msg.append(payloadItem{content: ContentKey, key: id})

	case ContentInteger:
		if b.Readable() < 4 {
			return false, nil
		}
		return true, d.msg.append(payloadItem{content: ContentInteger, intValue: int32(b.ReadUint32())})

	case ContentLong:
		if b.Readable() < 8 {
			return false, nil
		}
		return true, d.msg.append(payloadItem{content: ContentLong, longValue: int64(b.ReadUint64())})

	case ContentByteBuffer:
		return d.decodeByteBuffer(b)

	case ContentBloomFilter:
		return d.decodeBloom(b)

	case ContentPublicKey, ContentPublicKeySignature:
		return d.decodePublicKey(b, tag)

	case ContentSetPeerSocket:
		return d.decodePeerSockets(b)

	case ContentSetNeighbors:
		return d.decodeNeighbors(b)

	case ContentSetKeys640:
		return d.decodeKeyCollection(b)

	case ContentMapKey640Keys:
		return d.decodeKeyMap(b)

	case ContentMapKey640Data:
		return d.decodeDataMap(b)
	}
	return false, fmt.Errorf("%w: %s", ErrUnsupportedContentType, tag)
}

func (d *Decoder) decodeByteBuffer(b *wire.Buffer) (bool, error) {
	p := &d.prog
	if !p.started {
		if b.Readable() < 4 {
			return false, nil
		}
		n := b.ReadUint32()
		if n > maxBlobLen {
			return false, fmt.Errorf("buffer length %d", n)
		}
		p.blob = make([]byte, n)
		p.started = true
	}
	d.fillBlob(b)
	if p.blobOff < len(p.blob) {
		return false, nil
	}
	return true, d.msg.append(payloadItem{content: ContentByteBuffer, buffer: p.blob})
}

// fillBlob consumes whatever part of the in-flight blob is available.
func (d *Decoder) fillBlob(b *wire.Buffer) {
	p := &d.prog
	n := len(p.blob) - p.blobOff
	if avail := b.Readable(); avail < n {
		n = avail
	}
	if n > 0 {
		b.ReadInto(p.blob[p.blobOff : p.blobOff+n])
		p.blobOff += n
	}
}

func (d *Decoder) decodeBloom(b *wire.Buffer) (bool, error) {
	if b.Readable() < 2 {
		return false, nil
	}
	mark := b.Position()
	n := int(b.ReadUint16())
	if b.Readable() < n {
		b.Rewind(mark)
		return false, nil
	}
	f, ok := decodeBloomFilter(b.ReadBytes(n))
	if !ok {
		return false, errors.New("invalid bloom filter block")
	}
	return true, d.msg.append(payloadItem{content: ContentBloomFilter, bloom: f})
}

// readPublicKey consumes [alg:1][len:2][key]; returns wire.ErrShortBuffer
// with the reader rewound when incomplete.
func readPublicKey(b *wire.Buffer) (sig.Algorithm, crypto.PublicKey, error) {
	mark := b.Position()
	if b.Readable() < 3 {
		return 0, nil, wire.ErrShortBuffer
	}
	alg := sig.Algorithm(b.ReadUint8())
	n := int(b.ReadUint16())
	if b.Readable() < n {
		b.Rewind(mark)
		return 0, nil, wire.ErrShortBuffer
	}
	raw := b.ReadBytes(n)
	f, err := sig.Lookup(alg)
	if err != nil {
		return 0, nil, err
	}
	pub, err := f.DecodePublicKey(raw)
	if err != nil {
		return 0, nil, err
	}
	return alg, pub, nil
}

func (d *Decoder) decodePublicKey(b *wire.Buffer, tag Content) (bool, error) {
	alg, pub, err := readPublicKey(b)
	if errors.Is(err, wire.ErrShortBuffer) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if tag == ContentPublicKeySignature {
		d.sigAlg = alg
		d.sigPub = pub
	}
	return true, d.msg.append(payloadItem{content: tag, pubAlg: alg, pubKey: pub})
}

func (d *Decoder) decodePeerSockets(b *wire.Buffer) (bool, error) {
	p := &d.prog
	if !p.started {
		if b.Readable() < 1 {
			return false, nil
		}
		p.count = int(b.ReadUint8())
		p.sockets = make([]peer.Socket, 0, p.count)
		p.started = true
	}
	for p.read < p.count {
		s, err := peer.DecodeTaggedSocket(b)
		if errors.Is(err, wire.ErrShortBuffer) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		p.sockets = append(p.sockets, s)
		p.read++
	}
	return true, d.msg.append(payloadItem{content: ContentSetPeerSocket, sockets: p.sockets})
}

func (d *Decoder) decodeNeighbors(b *wire.Buffer) (bool, error) {
	p := &d.prog
	if !p.started {
		if b.Readable() < 1 {
			return false, nil
		}
		p.count = int(b.ReadUint8())
		p.neighbors = make([]peer.Address, 0, p.count)
		p.started = true
	}
	for p.read < p.count {
		a, err := peer.DecodeAddress(b)
		if errors.Is(err, wire.ErrShortBuffer) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		p.neighbors = append(p.neighbors, a)
		p.read++
	}
	ns := NewNeighborSet(-1, p.neighbors)
	return true, d.msg.append(payloadItem{content: ContentSetNeighbors, neighbors: ns})
}

// decodeContainerHead consumes [count:4][meta:1] and, for the shared
// form, the location/domain prefix.
func (d *Decoder) decodeContainerHead(b *wire.Buffer) (bool, error) {
	p := &d.prog
	if !p.started {
		if b.Readable() < 5 {
			return false, nil
		}
		count := b.ReadUint32()
		if count > maxEntries {
			return false, fmt.Errorf("entry count %d", count)
		}
		meta := b.ReadUint8()
		if meta&^uint8(1) != 0 {
			return false, fmt.Errorf("container meta byte %#x", meta)
		}
		p.count = int(count)
		p.shared = meta&1 == 0
		p.prefixRead = !p.shared
		p.started = true
	}
	if !p.prefixRead {
		if b.Readable() < 2*kad.IDBytes {
			return false, nil
		}
		b.ReadInto(p.location[:])
		b.ReadInto(p.domain[:])
		p.prefixRead = true
	}
	return true, nil
}

// readEntryKey consumes one entry key: the full 80 bytes, or
// content+version completed with the shared prefix.
func (p *slotProgress) readEntryKey(b *wire.Buffer) kad.Key {
	var k kad.Key
	if p.shared {
		k.Location = p.location
		k.Domain = p.domain
		b.ReadInto(k.Content[:])
		b.ReadInto(k.Version[:])
	} else {
		b.ReadInto(k.Location[:])
		b.ReadInto(k.Domain[:])
		b.ReadInto(k.Content[:])
		b.ReadInto(k.Version[:])
	}
	return k
}

func (p *slotProgress) entryKeySize() int {
	if p.shared {
		return 2 * kad.IDBytes
	}
	return kad.KeyBytes
}

func (d *Decoder) decodeKeyCollection(b *wire.Buffer) (bool, error) {
	p := &d.prog
	if ok, err := d.decodeContainerHead(b); !ok {
		return false, err
	}
	if p.keyList == nil {
		p.keyList = make([]kad.Key, 0, p.count)
	}
	for p.read < p.count {
		if b.Readable() < p.entryKeySize() {
			return false, nil
		}
		p.keyList = append(p.keyList, p.readEntryKey(b))
		p.read++
	}
	var c *KeyCollection
	if p.shared {
		var err error
		c, err = NewSharedKeyCollection(p.location, p.domain, p.keyList)
		if err != nil {
			return false, err
		}
	} else {
		c = NewKeyCollection(p.keyList)
	}
	return true, d.msg.append(payloadItem{content: ContentSetKeys640, keys: c})
}

func (d *Decoder) decodeKeyMap(b *wire.Buffer) (bool, error) {
	p := &d.prog
	if !p.started {
		if b.Readable() < 4 {
			return false, nil
		}
		count := b.ReadUint32()
		if count > maxEntries {
			return false, fmt.Errorf("entry count %d", count)
		}
		p.count = int(count)
		p.keyMap = NewKeyMap()
		p.started = true
	}
	for p.read < p.count {
		mark := b.Position()
		if b.Readable() < kad.KeyBytes+1 {
			return false, nil
		}
		var k kad.Key
		b.ReadInto(k.Location[:])
		b.ReadInto(k.Domain[:])
		b.ReadInto(k.Content[:])
		b.ReadInto(k.Version[:])
		n := int(b.ReadUint8())
		if b.Readable() < n*kad.IDBytes {
			b.Rewind(mark)
			return false, nil
		}
		ids := make([]kad.ID, n)
		for i := range ids {
			b.ReadInto(ids[i][:])
		}
		if err := p.keyMap.Put(k, ids...); err != nil {
			return false, err
		}
		p.read++
	}
	return true, d.msg.append(payloadItem{content: ContentMapKey640Keys, keyMap: p.keyMap})
}

func (d *Decoder) decodeDataMap(b *wire.Buffer) (bool, error) {
	p := &d.prog
	if ok, err := d.decodeContainerHead(b); !ok {
		return false, err
	}
	if p.dataMap == nil {
		if p.shared {
			dm, err := NewSharedDataMap(p.location, p.domain, nil)
			if err != nil {
				return false, err
			}
			p.dataMap = dm
		} else {
			p.dataMap = NewDataMap(nil)
		}
	}
	for p.read < p.count {
		done, err := d.decodeDataEntry(b)
		if err != nil {
			return false, err
		}
		if !done {
			return false, nil
		}
		p.read++
		p.dataStage = dataStageKeyMeta
		p.data = nil
		p.blob = nil
		p.blobOff = 0
	}
	return true, d.msg.append(payloadItem{content: ContentMapKey640Data, dataMap: p.dataMap})
}

// decodeDataEntry walks one DataMap entry through its stages: key and
// metadata, then payload bytes (consumed incrementally), then the
// optional per-entry signature block.
func (d *Decoder) decodeDataEntry(b *wire.Buffer) (bool, error) {
	p := &d.prog
	if p.dataStage == dataStageKeyMeta {
		if b.Readable() < p.entryKeySize()+13 {
			return false, nil
		}
		p.dataKey = p.readEntryKey(b)
		flags := b.ReadUint8()
		if flags&^uint8(dataFlagSigned) != 0 {
			return false, fmt.Errorf("data entry flags %#x", flags)
		}
		validFor := b.ReadUint32()
		version := b.ReadUint32()
		n := b.ReadUint32()
		if n > maxBlobLen {
			return false, fmt.Errorf("data length %d", n)
		}
		p.dataFlags = flags
		p.data = &Data{validFor: validFor, version: version}
		p.blob = make([]byte, n)
		p.blobOff = 0
		p.dataStage = dataStagePayload
	}
	if p.dataStage == dataStagePayload {
		d.fillBlob(b)
		if p.blobOff < len(p.blob) {
			return false, nil
		}
		p.data.payload = p.blob
		if p.dataFlags&dataFlagSigned == 0 {
			return true, p.dataMap.Put(p.dataKey, p.data)
		}
		p.dataStage = dataStageSignature
	}

	// signature block, consumed atomically
	mark := b.Position()
	alg, pub, err := readPublicKey(b)
	if errors.Is(err, wire.ErrShortBuffer) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if b.Readable() < 2 {
		b.Rewind(mark)
		return false, nil
	}
	n := int(b.ReadUint16())
	if b.Readable() < n {
		b.Rewind(mark)
		return false, nil
	}
	p.data.alg = alg
	p.data.publicKey = pub
	p.data.signature = b.ReadBytes(n)
	return true, p.dataMap.Put(p.dataKey, p.data)
}
