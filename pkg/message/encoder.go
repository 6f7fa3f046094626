package message

import (
	"crypto"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ZentaChain/kadwire/pkg/sig"
	"github.com/ZentaChain/kadwire/pkg/wire"
)

// Encoder turns a message into a byte stream. Encoding is read-only
// over the message and never fails on payload shape; errors come only
// from the sink or from a missing signing key. One encoder may be
// reused, but a single Write owns the sink for its duration.
type Encoder struct {
	// SkipSenderIP elides the sender's sockets on the wire; the
	// receiving transport observes the source endpoint anyway. On by
	// default.
	SkipSenderIP bool
}

// NewEncoder creates an encoder with IP-skip enabled for the sender.
func NewEncoder() *Encoder {
	return &Encoder{SkipSenderIP: true}
}

// Write emits the header, payload items in slot order, and, when the
// message requests signing, a signature over exactly the payload
// bytes. Large payload blocks stream through w in bounded chunks.
func (e *Encoder) Write(w io.Writer, m *Message) error {
	if err := e.writeHeader(w, m); err != nil {
		return err
	}

	payloadSink := w
	var signer sig.Signer
	if m.signHint {
		if m.signKey == nil {
			return ErrNoPrivateKey
		}
		f, err := sig.Lookup(m.signAlg)
		if err != nil {
			return err
		}
		signer, err = f.NewSigner(m.signKey)
		if err != nil {
			return err
		}
		payloadSink = io.MultiWriter(w, signer)
	}

	for i := range m.payloads {
		if err := e.writePayload(payloadSink, &m.payloads[i]); err != nil {
			return fmt.Errorf("slot %d: %w", i, err)
		}
	}

	if signer != nil {
		signature, err := signer.Sign()
		if err != nil {
			return err
		}
		if err := wire.WriteUint16(w, uint16(len(signature))); err != nil {
			return err
		}
		if _, err := w.Write(signature); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeHeader(w io.Writer, m *Message) error {
	head := make([]byte, 0, headerFixedSize)
	head = binary.BigEndian.AppendUint16(head, m.id)
	head = append(head, m.version)
	slots := packSlots(m.ContentTypes())
	head = append(head, slots[:]...)
	head = append(head, m.command, byte(m.mtype))
	if _, err := w.Write(head); err != nil {
		return err
	}

	sender := m.sender
	if e.SkipSenderIP {
		sender = sender.WithSkipIP(true)
	}
	raw, err := sender.Encode()
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	raw, err = m.recipient.Encode()
	if err != nil {
		return err
	}
	_, err = w.Write(raw)
	return err
}

func (e *Encoder) writePayload(w io.Writer, p *payloadItem) error {
	switch p.content {
	case ContentKey:
		_, err := w.Write(p.key[:])
		return err

	case ContentSetKeys640:
		return e.writeKeyCollection(w, p.keys)

	case ContentMapKey640Data:
		return e.writeDataMap(w, p.dataMap)

	case ContentMapKey640Keys:
		return e.writeKeyMap(w, p.keyMap)

	case ContentSetNeighbors:
		return e.writeNeighborSet(w, p.neighbors)

	case ContentInteger:
		return wire.WriteUint32(w, uint32(p.intValue))

	case ContentLong:
		return wire.WriteUint64(w, uint64(p.longValue))

	case ContentByteBuffer:
		if err := wire.WriteUint32(w, uint32(len(p.buffer))); err != nil {
			return err
		}
		return wire.WriteChunked(w, p.buffer)

	case ContentBloomFilter:
		_, err := w.Write(p.bloom.encode())
		return err

	case ContentPublicKey, ContentPublicKeySignature:
		return writePublicKey(w, p.pubAlg, p.pubKey)

	case ContentSetPeerSocket:
		if err := wire.WriteUint8(w, uint8(len(p.sockets))); err != nil {
			return err
		}
		for _, s := range p.sockets {
			if _, err := w.Write(s.EncodeTagged()); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedContentType, p.content)
}

func (e *Encoder) writeKeyCollection(w io.Writer, c *KeyCollection) error {
	head := make([]byte, 0, 5+2*20)
	head = binary.BigEndian.AppendUint32(head, uint32(c.Len()))
	if c.Shared() {
		head = append(head, 0)
		location, domain := c.SharedPrefix()
		head = append(head, location[:]...)
		head = append(head, domain[:]...)
	} else {
		head = append(head, 1)
	}
	if _, err := w.Write(head); err != nil {
		return err
	}
	for _, k := range c.Keys() {
		var err error
		if c.Shared() {
			_, err = w.Write(append(k.Content[:], k.Version[:]...))
		} else {
			_, err = w.Write(k.Bytes())
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeDataMap(w io.Writer, dm *DataMap) error {
	head := make([]byte, 0, 5+2*20)
	head = binary.BigEndian.AppendUint32(head, uint32(dm.Len()))
	if dm.Shared() {
		head = append(head, 0)
		location, domain := dm.SharedPrefix()
		head = append(head, location[:]...)
		head = append(head, domain[:]...)
	} else {
		head = append(head, 1)
	}
	if _, err := w.Write(head); err != nil {
		return err
	}
	for _, k := range dm.SortedKeys() {
		var err error
		if dm.Shared() {
			_, err = w.Write(append(k.Content[:], k.Version[:]...))
		} else {
			_, err = w.Write(k.Bytes())
		}
		if err != nil {
			return err
		}
		if err := e.writeData(w, dm.Get(k)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeData(w io.Writer, d *Data) error {
	head := make([]byte, 0, 13)
	head = append(head, d.flags())
	head = binary.BigEndian.AppendUint32(head, d.validFor)
	head = binary.BigEndian.AppendUint32(head, d.version)
	head = binary.BigEndian.AppendUint32(head, uint32(d.Len()))
	if _, err := w.Write(head); err != nil {
		return err
	}
	if err := wire.WriteChunked(w, d.payload); err != nil {
		return err
	}
	if !d.Signed() {
		return nil
	}
	if err := writePublicKey(w, d.alg, d.publicKey); err != nil {
		return err
	}
	if err := wire.WriteUint16(w, uint16(len(d.signature))); err != nil {
		return err
	}
	_, err := w.Write(d.signature)
	return err
}

func (e *Encoder) writeKeyMap(w io.Writer, km *KeyMap) error {
	if err := wire.WriteUint32(w, uint32(km.Len())); err != nil {
		return err
	}
	for _, k := range km.SortedKeys() {
		ids := km.Get(k)
		entry := make([]byte, 0, 81+20*len(ids))
		entry = append(entry, k.Bytes()...)
		entry = append(entry, uint8(len(ids)))
		for _, id := range ids {
			entry = append(entry, id[:]...)
		}
		if _, err := w.Write(entry); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeNeighborSet(w io.Writer, ns *NeighborSet) error {
	neighbors := ns.wireNeighbors()
	if err := wire.WriteUint8(w, uint8(len(neighbors))); err != nil {
		return err
	}
	for _, a := range neighbors {
		raw, err := a.Encode()
		if err != nil {
			return err
		}
		if _, err := w.Write(raw); err != nil {
			return err
		}
	}
	return nil
}

// writePublicKey emits [alg:1][len:2][key bytes].
func writePublicKey(w io.Writer, alg sig.Algorithm, pub crypto.PublicKey) error {
	f, err := sig.Lookup(alg)
	if err != nil {
		return err
	}
	raw, err := f.EncodePublicKey(pub)
	if err != nil {
		return err
	}
	head := make([]byte, 0, 3+len(raw))
	head = append(head, byte(alg))
	head = binary.BigEndian.AppendUint16(head, uint16(len(raw)))
	head = append(head, raw...)
	_, err = w.Write(head)
	return err
}
