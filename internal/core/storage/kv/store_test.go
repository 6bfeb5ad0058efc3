package kv

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/dep2p/go-corestore/internal/core/storage/engine"
	"github.com/dep2p/go-corestore/internal/core/storage/engine/badger"
)

// testStore 创建测试用 Store
// 使用 t.TempDir() 创建临时目录，测试结束后自动清理
func testStore(t *testing.T, prefix string) *Store {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	cfg := engine.DefaultConfig(dbPath)
	eng, err := badger.New(cfg)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	t.Cleanup(func() {
		if err := eng.Close(); err != nil {
			t.Errorf("failed to close engine: %v", err)
		}
	})

	return New(eng, []byte(prefix))
}

// ============= 基础操作测试 =============

func TestStore_PutGet(t *testing.T) {
	s := testStore(t, "test/")

	key := []byte("key1")
	value := []byte("value1")

	if err := s.Put(key, value); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if !bytes.Equal(got, value) {
		t.Errorf("Get returned %q, want %q", got, value)
	}
}

func TestStore_Delete(t *testing.T) {
	s := testStore(t, "test/")

	key := []byte("delete-key")

	if err := s.Put(key, []byte("value")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := s.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, err := s.Get(key)
	if !engine.IsNotFound(err) {
		t.Errorf("Get after Delete returned %v, want ErrNotFound", err)
	}
}

func TestStore_Has(t *testing.T) {
	s := testStore(t, "test/")

	key := []byte("has-key")

	exists, err := s.Has(key)
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if exists {
		t.Error("Has returned true for nonexistent key")
	}

	if err := s.Put(key, []byte("value")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	exists, err = s.Has(key)
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if !exists {
		t.Error("Has returned false for existing key")
	}
}

// ============= 前缀隔离测试 =============

func TestStore_PrefixIsolation(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "isolation.db")

	cfg := engine.DefaultConfig(dbPath)
	eng, err := badger.New(cfg)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	t.Cleanup(func() { eng.Close() })

	// Two stores with different prefixes over the same engine
	logs := New(eng, []byte("c/"))
	state := New(eng, []byte("s/"))

	key := []byte("same-key")
	if err := logs.Put(key, []byte("logs-value")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := state.Put(key, []byte("state-value")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Same key resolves to different values per prefix
	got, err := logs.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, []byte("logs-value")) {
		t.Errorf("logs Get returned %q, want %q", got, "logs-value")
	}

	got, err = state.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, []byte("state-value")) {
		t.Errorf("state Get returned %q, want %q", got, "state-value")
	}

	// Deleting in one namespace does not affect the other
	if err := logs.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := state.Get(key); err != nil {
		t.Errorf("state Get after logs Delete returned error: %v", err)
	}
}

func TestStore_SubStore(t *testing.T) {
	s := testStore(t, "c/")

	meta := s.SubStore([]byte("m/"))
	if string(meta.Prefix()) != "c/m/" {
		t.Errorf("SubStore prefix = %q, want %q", meta.Prefix(), "c/m/")
	}

	if err := meta.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Visible through the parent with the sub prefix
	got, err := s.Get([]byte("m/k"))
	if err != nil {
		t.Fatalf("Get through parent failed: %v", err)
	}
	if !bytes.Equal(got, []byte("v")) {
		t.Errorf("Get returned %q, want %q", got, "v")
	}
}

// ============= JSON 便捷方法测试 =============

func TestStore_JSON(t *testing.T) {
	s := testStore(t, "test/")

	type record struct {
		Name   string `json:"name"`
		Length uint64 `json:"length"`
	}

	want := record{Name: "main", Length: 42}
	if err := s.PutJSON([]byte("rec"), &want); err != nil {
		t.Fatalf("PutJSON failed: %v", err)
	}

	var got record
	if err := s.GetJSON([]byte("rec"), &got); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}

	if got != want {
		t.Errorf("GetJSON returned %+v, want %+v", got, want)
	}
}

func TestStore_GetJSONNotFound(t *testing.T) {
	s := testStore(t, "test/")

	var v struct{}
	err := s.GetJSON([]byte("missing"), &v)
	if !engine.IsNotFound(err) {
		t.Errorf("GetJSON for missing key returned %v, want ErrNotFound", err)
	}
}

// ============= 前缀扫描测试 =============

func TestStore_PrefixScan(t *testing.T) {
	s := testStore(t, "c/")

	for i := 0; i < 5; i++ {
		key := []byte(fmt.Sprintf("m/key-%d", i))
		if err := s.Put(key, []byte("meta")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if err := s.Put([]byte("b/key-0"), []byte("block")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var scanned [][]byte
	err := s.PrefixScan([]byte("m/"), func(key, value []byte) bool {
		if !bytes.Equal(value, []byte("meta")) {
			t.Errorf("scan returned value %q, want %q", value, "meta")
		}
		keyCopy := make([]byte, len(key))
		copy(keyCopy, key)
		scanned = append(scanned, keyCopy)
		return true
	})
	if err != nil {
		t.Fatalf("PrefixScan failed: %v", err)
	}

	if len(scanned) != 5 {
		t.Fatalf("PrefixScan returned %d keys, want 5", len(scanned))
	}
	// Keys keep the sub prefix but not the store prefix
	for _, key := range scanned {
		if !bytes.HasPrefix(key, []byte("m/")) {
			t.Errorf("scanned key %q does not keep sub prefix", key)
		}
	}
}

func TestStore_PrefixScanStop(t *testing.T) {
	s := testStore(t, "test/")

	for i := 0; i < 10; i++ {
		if err := s.Put([]byte(fmt.Sprintf("k-%d", i)), []byte("v")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	var count int
	err := s.PrefixScan(nil, func(_, _ []byte) bool {
		count++
		return count < 3
	})
	if err != nil {
		t.Fatalf("PrefixScan failed: %v", err)
	}

	if count != 3 {
		t.Errorf("scan visited %d keys after early stop, want 3", count)
	}
}

func TestStore_KeysAndCount(t *testing.T) {
	s := testStore(t, "test/")

	for i := 0; i < 7; i++ {
		if err := s.Put([]byte(fmt.Sprintf("n/%d", i)), []byte("v")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	keys, err := s.Keys([]byte("n/"))
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 7 {
		t.Errorf("Keys returned %d keys, want 7", len(keys))
	}

	count, err := s.Count([]byte("n/"))
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 7 {
		t.Errorf("Count returned %d, want 7", count)
	}
}

func TestStore_DeletePrefix(t *testing.T) {
	s := testStore(t, "test/")

	for i := 0; i < 5; i++ {
		if err := s.Put([]byte(fmt.Sprintf("del/%d", i)), []byte("v")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if err := s.Put([]byte("keep/0"), []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := s.DeletePrefix([]byte("del/")); err != nil {
		t.Fatalf("DeletePrefix failed: %v", err)
	}

	count, err := s.Count([]byte("del/"))
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Count after DeletePrefix returned %d, want 0", count)
	}

	// Other prefixes untouched
	if _, err := s.Get([]byte("keep/0")); err != nil {
		t.Errorf("Get untouched key returned error: %v", err)
	}
}

// ============= 批量操作测试 =============

func TestStore_Batch(t *testing.T) {
	s := testStore(t, "c/")

	batch := s.NewBatch()
	batch.Put([]byte("b/0"), []byte("block-0"))
	batch.Put([]byte("b/1"), []byte("block-1"))
	if err := batch.PutJSON([]byte("m/meta"), map[string]uint64{"length": 2}); err != nil {
		t.Fatalf("PutJSON failed: %v", err)
	}

	if batch.Size() != 3 {
		t.Errorf("Size returned %d, want 3", batch.Size())
	}

	if err := batch.Write(); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// All entries visible and prefixed
	got, err := s.Get([]byte("b/0"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, []byte("block-0")) {
		t.Errorf("Get returned %q, want %q", got, "block-0")
	}

	var meta map[string]uint64
	if err := s.GetJSON([]byte("m/meta"), &meta); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if meta["length"] != 2 {
		t.Errorf("meta length = %d, want 2", meta["length"])
	}
}
