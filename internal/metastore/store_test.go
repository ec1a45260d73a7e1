package metastore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/AvengeMedia/dankquery/internal/errdefs"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "index.bleve"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_PutGet(t *testing.T) {
	s := openStore(t)
	now := time.Unix(1700000000, 42)

	if err := s.Put("package", MappingMeta{Version: "3", Fingerprint: "abc", UpdatedAt: now}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, found, err := s.Get("package")
	if err != nil || !found {
		t.Fatalf("Get() = %v, %v", found, err)
	}
	if got.Version != "3" || got.Fingerprint != "abc" || !got.UpdatedAt.Equal(now) {
		t.Errorf("Get() = %+v", got)
	}

	if _, found, _ := s.Get("missing"); found {
		t.Error("Get(missing) found an entry")
	}
}

func TestStore_Check(t *testing.T) {
	s := openStore(t)

	if err := s.Check("package", "1", "aaa"); err != nil {
		t.Fatalf("first Check() error = %v", err)
	}
	if err := s.Check("package", "1", "aaa"); err != nil {
		t.Errorf("unchanged Check() error = %v", err)
	}

	err := s.Check("package", "2", "bbb")
	if !errdefs.Is(err, errdefs.ErrTypeMappingDrift) {
		t.Errorf("Check() error = %v, want mapping drift", err)
	}
}

func TestStore_ForEachClear(t *testing.T) {
	s := openStore(t)
	for _, name := range []string{"c", "a", "b"} {
		if err := s.Put(name, MappingMeta{Fingerprint: name}); err != nil {
			t.Fatal(err)
		}
	}

	var seen []string
	collect := func(name string, meta MappingMeta) error {
		seen = append(seen, name+"="+meta.Fingerprint)
		return nil
	}
	if err := s.ForEach(collect); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 3 || seen[0] != "a=a" || seen[1] != "b=b" || seen[2] != "c=c" {
		t.Errorf("ForEach() saw %v", seen)
	}

	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	seen = nil
	if err := s.ForEach(collect); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 0 {
		t.Errorf("ForEach() after Clear saw %v", seen)
	}
}

func TestDecodeMeta_Short(t *testing.T) {
	if got := decodeMeta([]byte{1, 2}); got != (MappingMeta{}) {
		t.Errorf("decodeMeta(short) = %+v", got)
	}
}
