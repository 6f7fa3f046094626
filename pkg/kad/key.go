package kad

import "fmt"

// KeyBytes is the serialized width of a composite key.
const KeyBytes = 4 * IDBytes

// Key addresses a single unit of stored DHT data as an ordered tuple of
// four 160-bit identifiers. It serializes as four fixed 20-byte blocks
// with no length field; container codecs may omit a shared prefix when
// the call provides one.
type Key struct {
	Location ID
	Domain   ID
	Content  ID
	Version  ID
}

// NewKey creates a composite key from its four identifiers.
func NewKey(location, domain, content, version ID) Key {
	return Key{Location: location, Domain: domain, Content: content, Version: version}
}

// RandomKey generates a composite key with four random identifiers.
func RandomKey() Key {
	return Key{
		Location: RandomID(),
		Domain:   RandomID(),
		Content:  RandomID(),
		Version:  RandomID(),
	}
}

// DecodeKey reads exactly 80 bytes from the front of buf.
func DecodeKey(buf []byte) (Key, error) {
	if len(buf) < KeyBytes {
		return Key{}, ErrMalformedID
	}
	var k Key
	ids := []*ID{&k.Location, &k.Domain, &k.Content, &k.Version}
	for i, id := range ids {
		copy(id[:], buf[i*IDBytes:(i+1)*IDBytes])
	}
	return k, nil
}

// Bytes returns the 80-byte concatenation of the four identifiers.
func (k Key) Bytes() []byte {
	out := make([]byte, 0, KeyBytes)
	out = append(out, k.Location[:]...)
	out = append(out, k.Domain[:]...)
	out = append(out, k.Content[:]...)
	return append(out, k.Version[:]...)
}

// String returns a compact representation for diagnostics.
func (k Key) String() string {
	return fmt.Sprintf("[loc=%s dom=%s con=%s ver=%s]", k.Location, k.Domain, k.Content, k.Version)
}

// Equals checks if two keys are equal.
func (k Key) Equals(other Key) bool {
	return k == other
}

// Compare orders keys by location, then domain, content and version.
func (k Key) Compare(other Key) int {
	if c := k.Location.Compare(other.Location); c != 0 {
		return c
	}
	if c := k.Domain.Compare(other.Domain); c != 0 {
		return c
	}
	if c := k.Content.Compare(other.Content); c != 0 {
		return c
	}
	return k.Version.Compare(other.Version)
}

// Less reports whether k sorts before other.
func (k Key) Less(other Key) bool {
	return k.Compare(other) < 0
}

// HasPrefix reports whether the key's location and domain match the
// given shared prefix. Container codecs use this to decide whether the
// compact form is applicable.
func (k Key) HasPrefix(location, domain ID) bool {
	return k.Location == location && k.Domain == domain
}
