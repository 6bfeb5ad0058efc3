package storage

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"
)

// ============= 模块级集成测试 =============

func TestStorage_NewAndReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "store.db")

	eng, err := New(dbPath)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := eng.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := eng.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Reopen and verify persistence
	eng2, err := New(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer eng2.Close()

	got, err := eng2.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if !bytes.Equal(got, []byte("v")) {
		t.Errorf("Get returned %q, want %q", got, "v")
	}
}

func TestStorage_NewInMemory(t *testing.T) {
	eng, err := NewInMemory()
	if err != nil {
		t.Fatalf("NewInMemory failed: %v", err)
	}
	defer eng.Close()

	if err := eng.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := eng.Get([]byte("k")); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
}

func TestStorage_KVStoreKeyspace(t *testing.T) {
	eng, err := NewInMemory()
	if err != nil {
		t.Fatalf("NewInMemory failed: %v", err)
	}
	defer eng.Close()

	// Corestore keyspace layout: log data under c/, store state under s/
	logs := NewKVStore(eng, []byte("c/"))
	state := NewKVStore(eng, []byte("s/"))

	blocks := logs.SubStore([]byte("b/"))
	meta := logs.SubStore([]byte("m/"))

	for i := 0; i < 3; i++ {
		if err := blocks.Put([]byte(fmt.Sprintf("dk/%d", i)), []byte("block")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if err := meta.Put([]byte("dk"), []byte("meta")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := state.Put([]byte("primary-key"), []byte("secret")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Scans stay within their namespace
	count, err := logs.Count([]byte("b/"))
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("block count = %d, want 3", count)
	}

	count, err = state.Count(nil)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("state count = %d, want 1", count)
	}
}

func TestStorage_ConfigValidate(t *testing.T) {
	// Persistent mode without a path is invalid
	cfg := DefaultConfig()
	cfg.Path = ""
	if err := cfg.Validate(); err != ErrInvalidConfig {
		t.Errorf("Validate returned %v, want ErrInvalidConfig", err)
	}

	// Memory mode does not need a path
	memCfg := MemoryConfig()
	if err := memCfg.Validate(); err != nil {
		t.Errorf("Validate returned error for memory config: %v", err)
	}

	// Out-of-range GC values are normalized
	cfg = DefaultConfig()
	cfg.Path = t.TempDir()
	cfg.GCDiscardRatio = 2.0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.GCDiscardRatio != 0.5 {
		t.Errorf("GCDiscardRatio = %v, want 0.5", cfg.GCDiscardRatio)
	}
}
