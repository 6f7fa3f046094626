package message

import (
	"crypto"

	"github.com/ZentaChain/kadwire/pkg/kad"
	"github.com/ZentaChain/kadwire/pkg/peer"
	"github.com/ZentaChain/kadwire/pkg/sig"
)

// payloadItem is the closed union over the content-type enumeration.
// Exactly one value field is meaningful, selected by content.
type payloadItem struct {
	content Content

	key       kad.ID
	keys      *KeyCollection
	dataMap   *DataMap
	keyMap    *KeyMap
	neighbors *NeighborSet
	intValue  int32
	longValue int64
	buffer    []byte
	bloom     *BloomFilter
	sockets   []peer.Socket

	// public key items (PUBLIC_KEY and PUBLIC_KEY_SIGNATURE)
	pubAlg sig.Algorithm
	pubKey crypto.PublicKey
}

// Message is the top-level envelope: header fields plus an ordered,
// append-only table of typed content items, capacity 8. Callers build
// a message incrementally, hand it to the Encoder exactly once, and
// never mutate it after encoding begins. The Decoder produces the
// same shape on the receiving side.
type Message struct {
	id        uint16
	version   uint8
	command   uint8
	mtype     Type
	sender    peer.Address
	recipient peer.Address

	payloads []payloadItem

	signHint bool
	signAlg  sig.Algorithm
	signKey  crypto.PrivateKey
	verified bool
}

// New creates an empty message with a random id and the current
// protocol version.
func New() *Message {
	return &Message{id: randomMessageID(), version: Version}
}

// ID returns the 16-bit message id.
func (m *Message) ID() uint16 { return m.id }

// SetID overrides the random message id.
func (m *Message) SetID(id uint16) *Message {
	m.id = id
	return m
}

// ProtocolVersion returns the message's wire protocol version.
func (m *Message) ProtocolVersion() uint8 { return m.version }

// Command returns the DHT operation selector.
func (m *Message) Command() uint8 { return m.command }

// SetCommand selects the DHT operation.
func (m *Message) SetCommand(cmd uint8) *Message {
	m.command = cmd
	return m
}

// Type returns the request variant or reply outcome.
func (m *Message) Type() Type { return m.mtype }

// SetType sets the request variant or reply outcome.
func (m *Message) SetType(t Type) *Message {
	m.mtype = t
	return m
}

// Sender returns the sender address.
func (m *Message) Sender() peer.Address { return m.sender }

// SetSender sets the sender address.
func (m *Message) SetSender(a peer.Address) *Message {
	m.sender = a
	return m
}

// Recipient returns the recipient address.
func (m *Message) Recipient() peer.Address { return m.recipient }

// SetRecipient sets the recipient address.
func (m *Message) SetRecipient(a peer.Address) *Message {
	m.recipient = a
	return m
}

// SignHint reports whether the payload is to be signed (encode) or
// carries a signature (decode).
func (m *Message) SignHint() bool { return m.signHint }

// Verified reports whether the decoder checked the payload signature
// successfully. Policy on unverified messages belongs to the caller.
func (m *Message) Verified() bool { return m.verified }

// ContentTypes returns the slot table derived from the filled slots.
func (m *Message) ContentTypes() [SlotCount]Content {
	var out [SlotCount]Content
	for i, p := range m.payloads {
		out[i] = p.content
	}
	return out
}

// SlotsFilled returns the number of filled content slots.
func (m *Message) SlotsFilled() int { return len(m.payloads) }

func (m *Message) append(p payloadItem) error {
	if len(m.payloads) >= SlotCount {
		return ErrSlotsFull
	}
	m.payloads = append(m.payloads, p)
	return nil
}

// AppendKey fills the next slot with a single 160-bit key.
func (m *Message) AppendKey(k kad.ID) error {
	return m.append(payloadItem{content: ContentKey, key: k})
}

// AppendKeyCollection fills the next slot with a key collection.
func (m *Message) AppendKeyCollection(c *KeyCollection) error {
	return m.append(payloadItem{content: ContentSetKeys640, keys: c})
}

// AppendDataMap fills the next slot with a data map.
func (m *Message) AppendDataMap(dm *DataMap) error {
	return m.append(payloadItem{content: ContentMapKey640Data, dataMap: dm})
}

// AppendKeyMap fills the next slot with a key-to-version map.
func (m *Message) AppendKeyMap(km *KeyMap) error {
	return m.append(payloadItem{content: ContentMapKey640Keys, keyMap: km})
}

// AppendNeighborSet fills the next slot with a neighbor set.
func (m *Message) AppendNeighborSet(ns *NeighborSet) error {
	return m.append(payloadItem{content: ContentSetNeighbors, neighbors: ns})
}

// AppendInt fills the next slot with a 32-bit integer.
func (m *Message) AppendInt(v int32) error {
	return m.append(payloadItem{content: ContentInteger, intValue: v})
}

// AppendLong fills the next slot with a 64-bit integer.
func (m *Message) AppendLong(v int64) error {
	return m.append(payloadItem{content: ContentLong, longValue: v})
}

// AppendBuffer fills the next slot with an opaque byte block. Large
// blocks are streamed through the sink in chunks at encode time.
func (m *Message) AppendBuffer(b []byte) error {
	return m.append(payloadItem{content: ContentByteBuffer, buffer: b})
}

// AppendBloomFilter fills the next slot with a bloom filter.
func (m *Message) AppendBloomFilter(f *BloomFilter) error {
	return m.append(payloadItem{content: ContentBloomFilter, bloom: f})
}

// AppendPeerSockets fills the next slot with a list of socket
// endpoints.
func (m *Message) AppendPeerSockets(sockets []peer.Socket) error {
	return m.append(payloadItem{content: ContentSetPeerSocket, sockets: sockets})
}

// AppendPublicKey fills the next slot with a bare public key (no
// signature request).
func (m *Message) AppendPublicKey(alg sig.Algorithm, pub crypto.PublicKey) error {
	if _, err := sig.Lookup(alg); err != nil {
		return err
	}
	return m.append(payloadItem{content: ContentPublicKey, pubAlg: alg, pubKey: pub})
}

// Sign requests a payload signature: it fills the next slot with the
// public key and records the private key for the encoder. On the
// wire, the PUBLIC_KEY_SIGNATURE slot tag is the sign hint.
func (m *Message) Sign(alg sig.Algorithm, priv crypto.PrivateKey, pub crypto.PublicKey) error {
	f, err := sig.Lookup(alg)
	if err != nil {
		return err
	}
	if _, err := f.EncodePublicKey(pub); err != nil {
		return err
	}
	if err := m.append(payloadItem{content: ContentPublicKeySignature, pubAlg: alg, pubKey: pub}); err != nil {
		return err
	}
	m.signHint = true
	m.signAlg = alg
	m.signKey = priv
	return nil
}

func (m *Message) items(c Content) []payloadItem {
	var out []payloadItem
	for _, p := range m.payloads {
		if p.content == c {
			out = append(out, p)
		}
	}
	return out
}

func (m *Message) item(c Content, i int) (payloadItem, bool) {
	for _, p := range m.payloads {
		if p.content != c {
			continue
		}
		if i == 0 {
			return p, true
		}
		i--
	}
	return payloadItem{}, false
}

// Key returns the i-th KEY item.
func (m *Message) Key(i int) (kad.ID, bool) {
	p, ok := m.item(ContentKey, i)
	return p.key, ok
}

// KeyList returns all KEY items in slot order.
func (m *Message) KeyList() []kad.ID {
	var out []kad.ID
	for _, p := range m.items(ContentKey) {
		out = append(out, p.key)
	}
	return out
}

// KeyCollection returns the i-th SET_KEYS640 item.
func (m *Message) KeyCollection(i int) *KeyCollection {
	p, _ := m.item(ContentSetKeys640, i)
	return p.keys
}

// KeyCollectionList returns all SET_KEYS640 items in slot order.
func (m *Message) KeyCollectionList() []*KeyCollection {
	var out []*KeyCollection
	for _, p := range m.items(ContentSetKeys640) {
		out = append(out, p.keys)
	}
	return out
}

// DataMap returns the i-th MAP_KEY640_DATA item.
func (m *Message) DataMap(i int) *DataMap {
	p, _ := m.item(ContentMapKey640Data, i)
	return p.dataMap
}

// DataMapList returns all MAP_KEY640_DATA items in slot order.
func (m *Message) DataMapList() []*DataMap {
	var out []*DataMap
	for _, p := range m.items(ContentMapKey640Data) {
		out = append(out, p.dataMap)
	}
	return out
}

// KeyMap returns the i-th MAP_KEY640_KEYS item.
func (m *Message) KeyMap(i int) *KeyMap {
	p, _ := m.item(ContentMapKey640Keys, i)
	return p.keyMap
}

// KeyMapList returns all MAP_KEY640_KEYS items in slot order.
func (m *Message) KeyMapList() []*KeyMap {
	var out []*KeyMap
	for _, p := range m.items(ContentMapKey640Keys) {
		out = append(out, p.keyMap)
	}
	return out
}

// NeighborSet returns the i-th SET_NEIGHBORS item.
func (m *Message) NeighborSet(i int) *NeighborSet {
	p, _ := m.item(ContentSetNeighbors, i)
	return p.neighbors
}

// NeighborSetList returns all SET_NEIGHBORS items in slot order.
func (m *Message) NeighborSetList() []*NeighborSet {
	var out []*NeighborSet
	for _, p := range m.items(ContentSetNeighbors) {
		out = append(out, p.neighbors)
	}
	return out
}

// Int returns the i-th INTEGER item.
func (m *Message) Int(i int) (int32, bool) {
	p, ok := m.item(ContentInteger, i)
	return p.intValue, ok
}

// IntList returns all INTEGER items in slot order.
func (m *Message) IntList() []int32 {
	var out []int32
	for _, p := range m.items(ContentInteger) {
		out = append(out, p.intValue)
	}
	return out
}

// Long returns the i-th LONG item.
func (m *Message) Long(i int) (int64, bool) {
	p, ok := m.item(ContentLong, i)
	return p.longValue, ok
}

// LongList returns all LONG items in slot order.
func (m *Message) LongList() []int64 {
	var out []int64
	for _, p := range m.items(ContentLong) {
		out = append(out, p.longValue)
	}
	return out
}

// Buffer returns the i-th BYTE_BUFFER item; the bool distinguishes a
// present empty buffer from a missing one.
func (m *Message) Buffer(i int) ([]byte, bool) {
	p, ok := m.item(ContentByteBuffer, i)
	return p.buffer, ok
}

// BufferList returns all BYTE_BUFFER items in slot order.
func (m *Message) BufferList() [][]byte {
	var out [][]byte
	for _, p := range m.items(ContentByteBuffer) {
		out = append(out, p.buffer)
	}
	return out
}

// BloomFilter returns the i-th BLOOM_FILTER item.
func (m *Message) BloomFilter(i int) *BloomFilter {
	p, _ := m.item(ContentBloomFilter, i)
	return p.bloom
}

// BloomFilterList returns all BLOOM_FILTER items in slot order.
func (m *Message) BloomFilterList() []*BloomFilter {
	var out []*BloomFilter
	for _, p := range m.items(ContentBloomFilter) {
		out = append(out, p.bloom)
	}
	return out
}

// PeerSockets returns the i-th SET_PEER_SOCKET item.
func (m *Message) PeerSockets(i int) ([]peer.Socket, bool) {
	p, ok := m.item(ContentSetPeerSocket, i)
	return p.sockets, ok
}

// PublicKey returns the i-th public key item, counting both
// PUBLIC_KEY and PUBLIC_KEY_SIGNATURE slots in slot order.
func (m *Message) PublicKey(i int) crypto.PublicKey {
	for _, p := range m.payloads {
		if p.content != ContentPublicKey && p.content != ContentPublicKeySignature {
			continue
		}
		if i == 0 {
			return p.pubKey
		}
		i--
	}
	return nil
}
