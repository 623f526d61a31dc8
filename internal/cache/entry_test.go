package cache

import (
	"path/filepath"
	"testing"
	"time"
)

func TestRegistryGetOrCreate(t *testing.T) {
	registry := NewRegistry("/tmp/cache", 24*time.Hour)

	entry := registry.GetOrCreate("http://example.com/a", 0)
	if entry.ID != DeriveID("http://example.com/a") {
		t.Fatalf("unexpected id: %s", entry.ID)
	}
	if entry.TTL != 24*time.Hour {
		t.Fatalf("expected default ttl, got %v", entry.TTL)
	}
	wantPath := filepath.Join("/tmp/cache", entry.ID+"-86400.cache")
	if entry.Path != wantPath {
		t.Fatalf("unexpected path: %s", entry.Path)
	}

	again := registry.GetOrCreate("http://example.com/a", 0)
	if again != entry {
		t.Fatal("expected the same entry on hit")
	}
}

func TestRegistryTTLOverrideFirstWins(t *testing.T) {
	registry := NewRegistry(t.TempDir(), 24*time.Hour)

	entry := registry.GetOrCreate("http://example.com/a", time.Hour)
	if entry.TTL != time.Hour {
		t.Fatalf("override ignored on miss: %v", entry.TTL)
	}

	// 命中已注册条目时覆盖值被忽略。
	again := registry.GetOrCreate("http://example.com/a", 5*time.Minute)
	if again.TTL != time.Hour {
		t.Fatalf("ttl changed on hit: %v", again.TTL)
	}
}

func TestRegistryRemove(t *testing.T) {
	registry := NewRegistry(t.TempDir(), time.Hour)
	registry.GetOrCreate("http://example.com/a", 0)

	if removed := registry.Remove("http://example.com/a"); removed == nil {
		t.Fatal("expected removed entry")
	}
	if registry.Len() != 0 {
		t.Fatalf("registry not empty: %d", registry.Len())
	}
	if removed := registry.Remove("http://example.com/a"); removed != nil {
		t.Fatal("expected nil for unknown key")
	}
}

func TestRegistryRemoveDropsAllAliases(t *testing.T) {
	storage, dir := newTestStorage(t)
	registry := NewRegistry(dir, time.Hour)

	key := "http://example.com/aliased"
	id := DeriveID(key)
	if err := storage.Write(filepath.Join(dir, id+"-3600.cache"), []byte("aliased body"), time.Time{}); err != nil {
		t.Fatalf("write error: %v", err)
	}
	registry.Load(storage)

	// Load 以 ID 登记，按原始 key 访问时补上别名，两者指向同一条目。
	loaded := registry.GetOrCreate(key, 0)
	if registry.GetOrCreate(id, 0) != loaded {
		t.Fatal("key and id resolved to different entries")
	}
	if registry.Len() != 1 {
		t.Fatalf("alias double-counted, len=%d", registry.Len())
	}

	if registry.Remove(key) != loaded {
		t.Fatal("expected the loaded entry to be removed")
	}
	if registry.Len() != 0 {
		t.Fatalf("alias left behind after remove, len=%d", registry.Len())
	}
	// 两个入口此后都应生成全新条目，而不是命中残留引用。
	if registry.GetOrCreate(id, 0) == loaded {
		t.Fatal("id alias still resolves to the removed entry")
	}
}

func TestRegistryLoad(t *testing.T) {
	storage, dir := newTestStorage(t)
	registry := NewRegistry(dir, 24*time.Hour)

	withTTL := DeriveID("http://example.com/ttl")
	legacy := DeriveID("http://example.com/legacy")
	if err := storage.Write(filepath.Join(dir, withTTL+"-3600.cache"), []byte("with-ttl body"), time.Time{}); err != nil {
		t.Fatalf("write error: %v", err)
	}
	if err := storage.Write(filepath.Join(dir, legacy+".cache"), []byte("legacy body"), time.Time{}); err != nil {
		t.Fatalf("write error: %v", err)
	}

	registry.Load(storage)
	if registry.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", registry.Len())
	}

	entry := registry.GetOrCreate(withTTL, 0)
	if entry.TTL != time.Hour {
		t.Fatalf("ttl suffix not restored: %v", entry.TTL)
	}
	if entry.Path != filepath.Join(dir, withTTL+"-3600.cache") {
		t.Fatalf("path not restored: %s", entry.Path)
	}

	// 无 TTL 后缀的遗留文件按当前默认 TTL 登记。
	if registry.GetOrCreate(legacy, 0).TTL != 24*time.Hour {
		t.Fatal("legacy entry did not inherit the default ttl")
	}
}

func TestParseEntryFileName(t *testing.T) {
	id := DeriveID("http://example.com/a")
	defaultTTL := 24 * time.Hour

	cases := []struct {
		name    string
		wantID  string
		wantTTL time.Duration
		ok      bool
	}{
		{id + "-3600.cache", id, time.Hour, true},
		{id + "-0.cache", id, 0, true},
		{id + ".cache", id, defaultTTL, true},
		{id + "-garbage.cache", id, defaultTTL, true},
		{"short-3600.cache", "", 0, false},
		{id + "-3600.bin", "", 0, false},
		{".cache", "", 0, false},
	}
	for _, tc := range cases {
		gotID, gotTTL, ok := parseEntryFileName(tc.name, defaultTTL)
		if ok != tc.ok {
			t.Fatalf("%s: ok=%v want %v", tc.name, ok, tc.ok)
		}
		if !ok {
			continue
		}
		if gotID != tc.wantID || gotTTL != tc.wantTTL {
			t.Fatalf("%s: got (%s, %v) want (%s, %v)", tc.name, gotID, gotTTL, tc.wantID, tc.wantTTL)
		}
	}
}
