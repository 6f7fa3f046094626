package message

import (
	"fmt"
	"slices"

	"github.com/ZentaChain/kadwire/pkg/kad"
)

// KeyCollection is an ordered sequence of composite keys, used for
// key-only requests and responses. Duplicates are allowed on the wire;
// set semantics belong to the application layer. Like DataMap it has a
// compact shared-prefix form.
type KeyCollection struct {
	keys []kad.Key

	shared   bool
	location kad.ID
	domain   kad.ID
}

// NewKeyCollection creates a full-key collection.
func NewKeyCollection(keys []kad.Key) *KeyCollection {
	return &KeyCollection{keys: slices.Clone(keys)}
}

// NewSharedKeyCollection creates a collection whose keys all share the
// given location and domain prefix.
func NewSharedKeyCollection(location, domain kad.ID, keys []kad.Key) (*KeyCollection, error) {
	c := &KeyCollection{shared: true, location: location, domain: domain}
	for _, k := range keys {
		if err := c.Append(k); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Append adds one key at the end. Shared-form collections reject keys
// outside their prefix.
func (c *KeyCollection) Append(k kad.Key) error {
	if c.shared && !k.HasPrefix(c.location, c.domain) {
		return fmt.Errorf("key %s outside shared prefix", k)
	}
	c.keys = append(c.keys, k)
	return nil
}

// Len returns the number of keys.
func (c *KeyCollection) Len() int { return len(c.keys) }

// Keys returns the keys in wire order.
func (c *KeyCollection) Keys() []kad.Key { return c.keys }

// Shared reports whether the collection serializes in the compact
// shared-prefix form.
func (c *KeyCollection) Shared() bool { return c.shared }

// SharedPrefix returns the common location and domain of a shared
// collection.
func (c *KeyCollection) SharedPrefix() (location, domain kad.ID) {
	return c.location, c.domain
}

// Equal compares form, prefix and key sequence.
func (c *KeyCollection) Equal(o *KeyCollection) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.shared == o.shared &&
		c.location == o.location &&
		c.domain == o.domain &&
		slices.Equal(c.keys, o.keys)
}
