package cache

import (
	"bytes"
	"testing"
)

func TestHashDeterministic(t *testing.T) {
	link := "https://host.example.com/embed/abc123"
	first := Hash(link)
	second := Hash(link)
	if first != second {
		t.Errorf("Hash not stable: %q vs %q", first, second)
	}
	if len(first) != 16 {
		t.Errorf("Expected 16 hex chars, got %q", first)
	}
	if Hash("a different link") == first {
		t.Error("Different links should not collide in this test set")
	}
}

func TestPutGet(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	key := Hash("some link") + "/" + MetadataFile
	if _, ok := store.Get(key); ok {
		t.Error("Expected miss before Put")
	}
	if store.Exists(key) {
		t.Error("Exists should be false before Put")
	}

	content := []byte("#EXTM3U\n#EXTINF:10,\n/media?hash=x&url=y\n")
	if err := store.Put(key, content); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok := store.Get(key)
	if !ok {
		t.Fatal("Expected hit after Put")
	}
	if !bytes.Equal(got, content) {
		t.Errorf("Content mismatch: %q", got)
	}
	if !store.Exists(key) {
		t.Error("Exists should be true after Put")
	}
}
