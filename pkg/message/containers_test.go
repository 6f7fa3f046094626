package message

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/ZentaChain/kadwire/pkg/kad"
	"github.com/ZentaChain/kadwire/pkg/sig"
)

func keyWithPrefix(location, domain kad.ID) kad.Key {
	return kad.NewKey(location, domain, kad.RandomID(), kad.RandomID())
}

func TestSharedDataMapRejectsForeignKey(t *testing.T) {
	location, domain := kad.RandomID(), kad.RandomID()
	dm, err := NewSharedDataMap(location, domain, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := dm.Put(keyWithPrefix(location, domain), NewData([]byte("ok"))); err != nil {
		t.Errorf("matching prefix rejected: %v", err)
	}
	if err := dm.Put(kad.RandomKey(), NewData([]byte("no"))); err == nil {
		t.Error("foreign prefix accepted")
	}
	if dm.Len() != 1 {
		t.Errorf("Len() = %d", dm.Len())
	}
}

func TestDataMapSortedKeys(t *testing.T) {
	dm := NewDataMap(nil)
	for i := 0; i < 20; i++ {
		if err := dm.Put(kad.RandomKey(), NewData([]byte{byte(i)})); err != nil {
			t.Fatal(err)
		}
	}
	keys := dm.SortedKeys()
	for i := 1; i < len(keys); i++ {
		if !keys[i-1].Less(keys[i]) {
			t.Fatal("keys not in natural order")
		}
	}
}

func TestSharedKeyCollectionRejectsForeignKey(t *testing.T) {
	location, domain := kad.RandomID(), kad.RandomID()
	c, err := NewSharedKeyCollection(location, domain, []kad.Key{keyWithPrefix(location, domain)})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Append(kad.RandomKey()); err == nil {
		t.Error("foreign prefix accepted")
	}
	if _, err := NewSharedKeyCollection(location, domain, []kad.Key{kad.RandomKey()}); err == nil {
		t.Error("constructor accepted a foreign key")
	}
}

func TestKeyCollectionKeepsDuplicates(t *testing.T) {
	k := kad.RandomKey()
	c := NewKeyCollection([]kad.Key{k, k, k})
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want duplicates preserved", c.Len())
	}
}

func TestKeyMapSortsAndDeduplicates(t *testing.T) {
	km := NewKeyMap()
	k := kad.RandomKey()
	a := kad.NewIDFromInt(3)
	b := kad.NewIDFromInt(1)
	if err := km.Put(k, a, b, a); err != nil {
		t.Fatal(err)
	}
	if err := km.Put(k, b); err != nil {
		t.Fatal(err)
	}
	ids := km.Get(k)
	if len(ids) != 2 {
		t.Fatalf("got %d identifiers, want 2", len(ids))
	}
	if !ids[0].Equals(b) || !ids[1].Equals(a) {
		t.Error("identifiers not sorted")
	}
}

func TestKeyMapEntryLimit(t *testing.T) {
	km := NewKeyMap()
	k := kad.RandomKey()
	ids := make([]kad.ID, maxKeyMapIDs+1)
	for i := range ids {
		ids[i] = kad.NewIDFromInt(int64(i))
	}
	if err := km.Put(k, ids...); err == nil {
		t.Error("oversized identifier set accepted")
	}
}

func TestDataSignVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	d := NewData([]byte("stored value")).SetValidFor(3600).SetDataVersion(2)
	if d.VerifySignature() {
		t.Error("unsigned entry should not verify")
	}
	if err := d.SignNow(sig.AlgorithmEd25519, priv, pub); err != nil {
		t.Fatalf("SignNow() error = %v", err)
	}
	if !d.VerifySignature() {
		t.Error("signed entry should verify")
	}

	// the signature covers metadata, not just the payload
	d.SetDataVersion(3)
	if d.VerifySignature() {
		t.Error("metadata change should break the signature")
	}
}
