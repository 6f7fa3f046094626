package message

import (
	"fmt"
	"sort"

	"github.com/ZentaChain/kadwire/pkg/kad"
)

// DataMap maps composite keys to data entries. Iteration order on the
// wire is the key's natural ordering. A shared-form map records a
// common location/domain prefix once and serializes only the content
// and version identifiers per entry.
type DataMap struct {
	entries map[kad.Key]*Data

	shared   bool
	location kad.ID
	domain   kad.ID
}

// NewDataMap creates a full-key data map; a nil entries map starts
// empty.
func NewDataMap(entries map[kad.Key]*Data) *DataMap {
	if entries == nil {
		entries = make(map[kad.Key]*Data)
	}
	return &DataMap{entries: entries}
}

// NewSharedDataMap creates a data map whose keys all share the given
// location and domain prefix.
func NewSharedDataMap(location, domain kad.ID, entries map[kad.Key]*Data) (*DataMap, error) {
	dm := &DataMap{
		entries:  make(map[kad.Key]*Data, len(entries)),
		shared:   true,
		location: location,
		domain:   domain,
	}
	for k, d := range entries {
		if err := dm.Put(k, d); err != nil {
			return nil, err
		}
	}
	return dm, nil
}

// Put adds one entry. Shared-form maps reject keys outside their
// prefix.
func (dm *DataMap) Put(k kad.Key, d *Data) error {
	if dm.shared && !k.HasPrefix(dm.location, dm.domain) {
		return fmt.Errorf("key %s outside shared prefix", k)
	}
	dm.entries[k] = d
	return nil
}

// Get returns the entry for k, nil when absent.
func (dm *DataMap) Get(k kad.Key) *Data {
	return dm.entries[k]
}

// Len returns the number of entries.
func (dm *DataMap) Len() int { return len(dm.entries) }

// Shared reports whether the map serializes in the compact
// shared-prefix form.
func (dm *DataMap) Shared() bool { return dm.shared }

// SharedPrefix returns the common location and domain of a shared map.
func (dm *DataMap) SharedPrefix() (location, domain kad.ID) {
	return dm.location, dm.domain
}

// SortedKeys returns the keys in natural order, the wire iteration
// order.
func (dm *DataMap) SortedKeys() []kad.Key {
	keys := make([]kad.Key, 0, len(dm.entries))
	for k := range dm.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Entries returns the underlying map. Callers must not mutate it while
// an encode is in flight.
func (dm *DataMap) Entries() map[kad.Key]*Data { return dm.entries }

// Equal compares form, prefix and every entry.
func (dm *DataMap) Equal(o *DataMap) bool {
	if dm == nil || o == nil {
		return dm == o
	}
	if dm.shared != o.shared || dm.location != o.location || dm.domain != o.domain {
		return false
	}
	if len(dm.entries) != len(o.entries) {
		return false
	}
	for k, d := range dm.entries {
		if !d.Equal(o.entries[k]) {
			return false
		}
	}
	return true
}
