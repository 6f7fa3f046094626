package message

import (
	"fmt"
	"slices"
	"sort"

	"github.com/ZentaChain/kadwire/pkg/kad"
)

// maxKeyMapIDs bounds the identifiers per entry; the wire count is one
// byte.
const maxKeyMapIDs = 255

// KeyMap maps composite keys to sets of 160-bit identifiers, reporting
// which version or replica identifiers are known per stored item. The
// identifier sets are kept sorted and deduplicated.
type KeyMap struct {
	m map[kad.Key][]kad.ID
}

// NewKeyMap creates an empty key map.
func NewKeyMap() *KeyMap {
	return &KeyMap{m: make(map[kad.Key][]kad.ID)}
}

// Put merges identifiers into the set for k.
func (km *KeyMap) Put(k kad.Key, ids ...kad.ID) error {
	set := km.m[k]
	for _, id := range ids {
		i, found := slices.BinarySearchFunc(set, id, kad.ID.Compare)
		if found {
			continue
		}
		set = slices.Insert(set, i, id)
	}
	if len(set) > maxKeyMapIDs {
		return fmt.Errorf("key map entry exceeds %d identifiers", maxKeyMapIDs)
	}
	km.m[k] = set
	return nil
}

// Get returns the sorted identifier set for k, nil when absent.
func (km *KeyMap) Get(k kad.Key) []kad.ID { return km.m[k] }

// Len returns the number of entries.
func (km *KeyMap) Len() int { return len(km.m) }

// SortedKeys returns the keys in natural order, the wire iteration
// order.
func (km *KeyMap) SortedKeys() []kad.Key {
	keys := make([]kad.Key, 0, len(km.m))
	for k := range km.m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Equal compares every entry.
func (km *KeyMap) Equal(o *KeyMap) bool {
	if km == nil || o == nil {
		return km == o
	}
	if len(km.m) != len(o.m) {
		return false
	}
	for k, ids := range km.m {
		if !slices.Equal(ids, o.m[k]) {
			return false
		}
	}
	return true
}
