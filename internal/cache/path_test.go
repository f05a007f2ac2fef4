package cache

import (
	"path/filepath"
	"testing"
)

func TestEntryPathSharding(t *testing.T) {
	hash := HashKey("http://a")
	base := entryPath("/cache", hash)

	want := filepath.Join("/cache", hash[:2], hash)
	if base != want {
		t.Fatalf("entryPath = %s, want %s", base, want)
	}
	if dataPath(base) != want+".data" {
		t.Fatalf("unexpected data path: %s", dataPath(base))
	}
	if metaPath(base) != want+".meta" {
		t.Fatalf("unexpected meta path: %s", metaPath(base))
	}
}
