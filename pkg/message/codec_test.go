package message

import (
	"bytes"
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"net/netip"
	"testing"

	lcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ZentaChain/kadwire/pkg/kad"
	"github.com/ZentaChain/kadwire/pkg/peer"
	"github.com/ZentaChain/kadwire/pkg/sig"
	"github.com/ZentaChain/kadwire/pkg/wire"
)

var (
	testRemote = netip.MustParseAddrPort("198.51.100.9:7000")
	testLocal  = netip.MustParseAddrPort("203.0.113.4:7001")
)

func testEnvelope() *Message {
	sender := peer.NewAddress(kad.RandomID(), peer.SocketFromAddrPort(testRemote))
	recipient := peer.NewAddress(kad.RandomID(), peer.SocketFromAddrPort(testLocal))
	return New().SetCommand(1).SetType(TypeRequest1).SetSender(sender).SetRecipient(recipient)
}

func encodeToBytes(t *testing.T, e *Encoder, m *Message) []byte {
	t.Helper()
	sink := wire.NewBuffer()
	defer sink.Release()
	require.NoError(t, e.Write(sink, m))
	return append([]byte(nil), sink.Bytes()...)
}

func decodeBytes(t *testing.T, raw []byte) *Message {
	t.Helper()
	buf := wire.NewBufferBytes(raw)
	defer buf.Release()
	d := NewDecoder()
	done, err := d.Decode(buf, testRemote, testLocal)
	require.NoError(t, err)
	require.True(t, done, "message should decode in one pass")
	require.Zero(t, buf.Readable(), "trailing bytes after message")
	return d.Message()
}

func roundTrip(t *testing.T, m *Message) *Message {
	t.Helper()
	return decodeBytes(t, encodeToBytes(t, NewEncoder(), m))
}

func TestRoundTripHeader(t *testing.T) {
	m := testEnvelope().SetID(0xbeef).SetCommand(5).SetType(TypePartiallyOK)
	got := roundTrip(t, m)

	assert.Equal(t, uint16(0xbeef), got.ID())
	assert.Equal(t, uint8(Version), got.ProtocolVersion())
	assert.Equal(t, uint8(5), got.Command())
	assert.Equal(t, TypePartiallyOK, got.Type())

	// the sender travels without sockets; the observed endpoint fills
	// them back in, so both sides agree after skip normalization
	assert.True(t, got.Sender().Equal(m.Sender().WithSkipIP(true)))
	assert.True(t, got.Recipient().Equal(m.Recipient()))
}

func TestRoundTripSenderKeepIP(t *testing.T) {
	m := testEnvelope()
	m.SetSender(peer.Address{
		ID:      kad.RandomID(),
		V4:      peer.MustParseSocket("10.9.8.7:1234"),
		V6:      peer.MustParseSocket("[2001:db8::9]:1234"),
		TCPPort: 1235,
	})
	e := &Encoder{SkipSenderIP: false}
	got := decodeBytes(t, encodeToBytes(t, e, m))
	assert.True(t, got.Sender().Equal(m.Sender()), "full sender should survive untouched")
}

func TestRoundTripScalars(t *testing.T) {
	m := testEnvelope()
	id := kad.RandomID()
	require.NoError(t, m.AppendKey(id))
	require.NoError(t, m.AppendInt(-7))
	require.NoError(t, m.AppendLong(1<<40))
	require.NoError(t, m.AppendBuffer([]byte("opaque bytes")))

	got := roundTrip(t, m)
	gotKey, ok := got.Key(0)
	require.True(t, ok)
	assert.True(t, gotKey.Equals(id))
	gotInt, ok := got.Int(0)
	require.True(t, ok)
	assert.Equal(t, int32(-7), gotInt)
	gotLong, ok := got.Long(0)
	require.True(t, ok)
	assert.Equal(t, int64(1<<40), gotLong)
	gotBuf, ok := got.Buffer(0)
	require.True(t, ok)
	assert.Equal(t, []byte("opaque bytes"), gotBuf)
}

func TestRoundTripEmptyBuffer(t *testing.T) {
	m := testEnvelope()
	require.NoError(t, m.AppendBuffer(nil))
	got := roundTrip(t, m)
	b, ok := got.Buffer(0)
	require.True(t, ok, "an empty buffer is present, not missing")
	assert.Empty(t, b)
}

func TestRoundTripKeyCollections(t *testing.T) {
	m := testEnvelope()
	full := NewKeyCollection([]kad.Key{kad.RandomKey(), kad.RandomKey(), kad.RandomKey()})
	require.NoError(t, m.AppendKeyCollection(full))

	location, domain := kad.RandomID(), kad.RandomID()
	shared, err := NewSharedKeyCollection(location, domain, []kad.Key{
		keyWithPrefix(location, domain),
		keyWithPrefix(location, domain),
	})
	require.NoError(t, err)
	require.NoError(t, m.AppendKeyCollection(shared))

	got := roundTrip(t, m)
	assert.True(t, got.KeyCollection(0).Equal(full))
	assert.True(t, got.KeyCollection(1).Equal(shared))
}

func TestRoundTripDataMap(t *testing.T) {
	m := testEnvelope()
	dm := NewDataMap(nil)
	for i := 0; i < 5; i++ {
		d := NewData(bytes.Repeat([]byte{byte(i)}, 100+i)).SetValidFor(60).SetDataVersion(uint32(i))
		require.NoError(t, dm.Put(kad.RandomKey(), d))
	}
	require.NoError(t, m.AppendDataMap(dm))

	location, domain := kad.RandomID(), kad.RandomID()
	sharedEntries := map[kad.Key]*Data{
		keyWithPrefix(location, domain): NewData([]byte("a")),
		keyWithPrefix(location, domain): NewData([]byte("b")),
	}
	sharedDM, err := NewSharedDataMap(location, domain, sharedEntries)
	require.NoError(t, err)
	require.NoError(t, m.AppendDataMap(sharedDM))

	got := roundTrip(t, m)
	assert.True(t, got.DataMap(0).Equal(dm))
	assert.True(t, got.DataMap(1).Equal(sharedDM))
}

func TestRoundTripSignedDataEntry(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	d := NewData([]byte("signed value")).SetValidFor(120)
	require.NoError(t, d.SignNow(sig.AlgorithmEd25519, priv, pub))
	dm := NewDataMap(nil)
	k := kad.RandomKey()
	require.NoError(t, dm.Put(k, d))

	m := testEnvelope()
	require.NoError(t, m.AppendDataMap(dm))

	got := roundTrip(t, m).DataMap(0).Get(k)
	require.NotNil(t, got)
	assert.True(t, got.Signed())
	assert.True(t, got.VerifySignature(), "entry signature should verify with the inline key")
}

func TestRoundTripKeyMap(t *testing.T) {
	m := testEnvelope()
	km := NewKeyMap()
	for i := 0; i < 10; i++ {
		require.NoError(t, km.Put(kad.RandomKey(), kad.RandomID(), kad.RandomID()))
	}
	require.NoError(t, m.AppendKeyMap(km))
	assert.True(t, roundTrip(t, m).KeyMap(0).Equal(km))
}

func TestRoundTripNeighborSets(t *testing.T) {
	neighbors := make([]peer.Address, 10)
	for i := range neighbors {
		neighbors[i] = peer.NewAddress(kad.RandomID(), peer.MustParseSocket("10.0.0.1:4000"))
	}

	t.Run("unlimited hint", func(t *testing.T) {
		m := testEnvelope()
		require.NoError(t, m.AppendNeighborSet(NewNeighborSet(-1, neighbors)))
		got := roundTrip(t, m).NeighborSet(0)
		assert.Equal(t, 10, got.Len())
	})

	t.Run("byte budget truncates", func(t *testing.T) {
		m := testEnvelope()
		require.NoError(t, m.AppendNeighborSet(NewNeighborSet(152, neighbors)))
		got := roundTrip(t, m).NeighborSet(0)
		require.Equal(t, 5, got.Len(), "budget holds five 27-byte addresses")
		for i, a := range got.Neighbors() {
			assert.True(t, a.Equal(neighbors[i]), "truncation keeps the list prefix")
		}
	})
}

func TestRoundTripBloomFilter(t *testing.T) {
	f := NewBloomFilter(2048, 3)
	ids := make([]kad.ID, 40)
	for i := range ids {
		ids[i] = kad.RandomID()
		f.Add(ids[i])
	}
	m := testEnvelope()
	require.NoError(t, m.AppendBloomFilter(f))

	got := roundTrip(t, m).BloomFilter(0)
	require.NotNil(t, got)
	assert.True(t, got.Equal(f))
	for _, id := range ids {
		assert.True(t, got.Contains(id))
	}
}

func TestRoundTripPeerSockets(t *testing.T) {
	sockets := []peer.Socket{
		peer.MustParseSocket("10.0.0.1:1"),
		peer.MustParseSocket("[2001:db8::1]:2"),
		peer.MustParseSocket("10.0.0.2:3"),
	}
	m := testEnvelope()
	require.NoError(t, m.AppendPeerSockets(sockets))

	got, ok := roundTrip(t, m).PeerSockets(0)
	require.True(t, ok)
	assert.Equal(t, sockets, got)
}

func TestRoundTripBarePublicKey(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	m := testEnvelope()
	require.NoError(t, m.AppendPublicKey(sig.AlgorithmEd25519, pub))

	got := roundTrip(t, m)
	assert.False(t, got.SignHint(), "a bare public key is not a sign hint")
	assert.Equal(t, crypto.PublicKey(pub), got.PublicKey(0))
}

func TestDeniedReplyScenario(t *testing.T) {
	// a reply that refuses a store request: two keys naming what was
	// refused plus the collection the requester sent
	refused := kad.RandomID()
	m := testEnvelope().SetCommand(3).SetType(TypeDenied)
	require.NoError(t, m.AppendKey(refused))
	require.NoError(t, m.AppendKey(refused))
	collection := NewKeyCollection([]kad.Key{kad.RandomKey(), kad.RandomKey()})
	require.NoError(t, m.AppendKeyCollection(collection))

	got := roundTrip(t, m)
	assert.Equal(t, TypeDenied, got.Type())
	assert.Equal(t, uint8(3), got.Command())
	require.Len(t, got.KeyList(), 2, "same-tag slots stay distinguishable")
	for i, k := range got.KeyList() {
		assert.True(t, k.Equals(refused), "key slot %d", i)
	}
	assert.True(t, got.KeyCollection(0).Equal(collection))
}

func signersUnderTest(t *testing.T) map[string]struct {
	alg  sig.Algorithm
	priv crypto.PrivateKey
	pub  crypto.PublicKey
} {
	t.Helper()
	edPub, edPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	rsaPriv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	lpPriv, lpPub, err := lcrypto.GenerateEd25519Key(rand.Reader)
	require.NoError(t, err)
	return map[string]struct {
		alg  sig.Algorithm
		priv crypto.PrivateKey
		pub  crypto.PublicKey
	}{
		"ed25519": {alg: sig.AlgorithmEd25519, priv: edPriv, pub: edPub},
		"rsa":     {alg: sig.AlgorithmRSA, priv: rsaPriv, pub: &rsaPriv.PublicKey},
		"libp2p":  {alg: sig.AlgorithmLibp2p, priv: lpPriv, pub: lpPub},
	}
}

func TestSignedMessageVerifies(t *testing.T) {
	for name, kp := range signersUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			m := testEnvelope()
			require.NoError(t, m.AppendBuffer([]byte("authenticated payload")))
			require.NoError(t, m.Sign(kp.alg, kp.priv, kp.pub))

			got := roundTrip(t, m)
			assert.True(t, got.SignHint())
			assert.True(t, got.Verified(), "intact signature should verify")
		})
	}
}

func TestTamperedMessageDoesNotVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	payload := []byte("authenticated payload")
	m := testEnvelope()
	require.NoError(t, m.AppendBuffer(payload))
	require.NoError(t, m.Sign(sig.AlgorithmEd25519, priv, pub))

	raw := encodeToBytes(t, NewEncoder(), m)
	i := bytes.Index(raw, payload)
	require.GreaterOrEqual(t, i, 0)
	raw[i] ^= 0x01

	got := decodeBytes(t, raw)
	assert.True(t, got.SignHint())
	assert.False(t, got.Verified(), "tampered payload must not verify")
	b, ok := got.Buffer(0)
	require.True(t, ok)
	assert.NotEqual(t, payload, b, "the tampered bytes still decode structurally")
}

func TestSignWithoutPrivateKeyFails(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	m := testEnvelope()
	require.NoError(t, m.Sign(sig.AlgorithmEd25519, nil, pub))
	m.signKey = nil

	sink := wire.NewBuffer()
	defer sink.Release()
	assert.ErrorIs(t, NewEncoder().Write(sink, m), ErrNoPrivateKey)
}

func TestPartialDeliveryByteAtATime(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	m := testEnvelope()
	require.NoError(t, m.AppendKey(kad.RandomID()))
	dm := NewDataMap(nil)
	require.NoError(t, dm.Put(kad.RandomKey(), NewData(bytes.Repeat([]byte{0x5a}, 300))))
	require.NoError(t, m.AppendDataMap(dm))
	require.NoError(t, m.AppendNeighborSet(NewNeighborSet(-1, []peer.Address{
		peer.NewAddress(kad.RandomID(), peer.MustParseSocket("10.0.0.1:1")),
	})))
	require.NoError(t, m.Sign(sig.AlgorithmEd25519, priv, pub))

	raw := encodeToBytes(t, NewEncoder(), m)

	buf := wire.NewBuffer()
	defer buf.Release()
	d := NewDecoder()
	headerDone, done := false, false
	for i := 0; i < len(raw); i++ {
		buf.Append(raw[i : i+1])
		if !headerDone {
			headerDone, err = d.DecodeHeader(buf, testRemote, testLocal)
			require.NoError(t, err, "byte %d", i)
			if !headerDone {
				continue
			}
		}
		done, err = d.DecodePayload(buf)
		require.NoError(t, err, "byte %d", i)
		if done {
			require.Equal(t, len(raw)-1, i, "decode finished before the last byte")
		}
	}
	require.True(t, done)

	got := d.Message()
	assert.True(t, got.Verified())
	assert.True(t, got.DataMap(0).Equal(dm))
}

func TestLargeDataStreams(t *testing.T) {
	if testing.Short() {
		t.Skip("50MB payload")
	}
	payload := bytes.Repeat([]byte{0xd1}, 50<<20)
	dm := NewDataMap(nil)
	k := kad.RandomKey()
	require.NoError(t, dm.Put(k, NewData(payload)))
	m := testEnvelope()
	require.NoError(t, m.AppendDataMap(dm))

	raw := encodeToBytes(t, NewEncoder(), m)
	require.Greater(t, len(raw), len(payload))

	// feed in transport-sized chunks, trimming consumed bytes as we go
	buf := wire.NewBuffer()
	defer buf.Release()
	d := NewDecoder()
	headerDone, done := false, false
	var err error
	const chunk = 64 << 10
	for off := 0; off < len(raw); off += chunk {
		end := off + chunk
		if end > len(raw) {
			end = len(raw)
		}
		buf.Append(raw[off:end])
		if !headerDone {
			headerDone, err = d.DecodeHeader(buf, testRemote, testLocal)
			require.NoError(t, err)
			if !headerDone {
				continue
			}
		}
		done, err = d.DecodePayload(buf)
		require.NoError(t, err)
		buf.DiscardReadBytes()
	}
	require.True(t, done)

	got := d.Message().DataMap(0).Get(k)
	require.NotNil(t, got)
	assert.True(t, bytes.Equal(payload, got.Bytes()))
}

func TestDecodeMalformedHeaders(t *testing.T) {
	valid := encodeToBytes(t, NewEncoder(), testEnvelope())

	t.Run("wrong version", func(t *testing.T) {
		raw := append([]byte(nil), valid...)
		raw[2] = 99
		buf := wire.NewBufferBytes(raw)
		defer buf.Release()
		_, err := NewDecoder().Decode(buf, testRemote, testLocal)
		assert.ErrorIs(t, err, ErrMalformedMessage)
	})

	t.Run("unknown content tag", func(t *testing.T) {
		raw := append([]byte(nil), valid...)
		raw[3] = 0xd0 // tag 13 in slot 0
		buf := wire.NewBufferBytes(raw)
		defer buf.Release()
		_, err := NewDecoder().Decode(buf, testRemote, testLocal)
		assert.ErrorIs(t, err, ErrUnsupportedContentType)
	})

	t.Run("filled slot after empty", func(t *testing.T) {
		raw := append([]byte(nil), valid...)
		raw[3] = 0x01 // slot 0 empty, slot 1 KEY
		buf := wire.NewBufferBytes(raw)
		defer buf.Release()
		_, err := NewDecoder().Decode(buf, testRemote, testLocal)
		assert.ErrorIs(t, err, ErrMalformedMessage)
	})
}

func TestDecodeRejectsHugeEntryCount(t *testing.T) {
	m := testEnvelope()
	require.NoError(t, m.AppendDataMap(NewDataMap(nil)))
	raw := encodeToBytes(t, NewEncoder(), m)

	// the empty map's count field is the 4 bytes before the meta byte
	copy(raw[len(raw)-5:len(raw)-1], []byte{0x7f, 0xff, 0xff, 0xff})
	buf := wire.NewBufferBytes(raw)
	defer buf.Release()
	_, err := NewDecoder().Decode(buf, testRemote, testLocal)
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestDecodePayloadBeforeHeader(t *testing.T) {
	buf := wire.NewBufferBytes([]byte{1, 2, 3})
	defer buf.Release()
	_, err := NewDecoder().DecodePayload(buf)
	assert.ErrorIs(t, err, ErrHeaderRequired)
}

func TestConcurrentCodecs(t *testing.T) {
	var g errgroup.Group
	for w := 0; w < 8; w++ {
		g.Go(func() error {
			for i := 0; i < 25; i++ {
				m := testEnvelope()
				if err := m.AppendKey(kad.RandomID()); err != nil {
					return err
				}
				if err := m.AppendBuffer(bytes.Repeat([]byte{byte(i)}, 1000)); err != nil {
					return err
				}

				sink := wire.NewBuffer()
				if err := NewEncoder().Write(sink, m); err != nil {
					return err
				}
				d := NewDecoder()
				if _, err := d.Decode(sink, testRemote, testLocal); err != nil {
					return err
				}
				sink.Release()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}
