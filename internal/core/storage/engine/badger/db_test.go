package badger

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dep2p/go-corestore/internal/core/storage/engine"
)

// testEngine 创建测试用引擎
// 使用 t.TempDir() 创建临时目录，测试结束后自动清理
func testEngine(t *testing.T) *Engine {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	cfg := engine.DefaultConfig(dbPath)
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	t.Cleanup(func() {
		if err := e.Close(); err != nil {
			t.Errorf("failed to close engine: %v", err)
		}
	})

	return e
}

// testMemoryEngine 创建测试用内存引擎
func testMemoryEngine(t *testing.T) *Engine {
	t.Helper()

	e, err := New(engine.MemoryConfig())
	if err != nil {
		t.Fatalf("failed to create in-memory engine: %v", err)
	}

	t.Cleanup(func() {
		if err := e.Close(); err != nil {
			t.Errorf("failed to close engine: %v", err)
		}
	})

	return e
}

// ============= 基础 CRUD 测试 =============

func TestEngine_PutGet(t *testing.T) {
	e := testEngine(t)

	key := []byte("test-key")
	value := []byte("test-value")

	// Put
	if err := e.Put(key, value); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Get
	got, err := e.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if !bytes.Equal(got, value) {
		t.Errorf("Get returned %q, want %q", got, value)
	}
}

func TestEngine_GetNotFound(t *testing.T) {
	e := testEngine(t)

	_, err := e.Get([]byte("nonexistent"))
	if err != engine.ErrNotFound {
		t.Errorf("Get returned error %v, want ErrNotFound", err)
	}
}

func TestEngine_Delete(t *testing.T) {
	e := testEngine(t)

	key := []byte("delete-key")
	value := []byte("delete-value")

	// Put then Delete
	if err := e.Put(key, value); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := e.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	// Verify deleted
	_, err := e.Get(key)
	if err != engine.ErrNotFound {
		t.Errorf("Get after Delete returned error %v, want ErrNotFound", err)
	}
}

func TestEngine_Has(t *testing.T) {
	e := testEngine(t)

	key := []byte("has-key")

	// Has before Put
	exists, err := e.Has(key)
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if exists {
		t.Error("Has returned true for nonexistent key")
	}

	// Put
	if err := e.Put(key, []byte("value")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Has after Put
	exists, err = e.Has(key)
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if !exists {
		t.Error("Has returned false for existing key")
	}
}

func TestEngine_EmptyKey(t *testing.T) {
	e := testEngine(t)

	if err := e.Put([]byte{}, []byte("value")); err != engine.ErrEmptyKey {
		t.Errorf("Put with empty key returned %v, want ErrEmptyKey", err)
	}

	if _, err := e.Get([]byte{}); err != engine.ErrEmptyKey {
		t.Errorf("Get with empty key returned %v, want ErrEmptyKey", err)
	}

	if err := e.Delete([]byte{}); err != engine.ErrEmptyKey {
		t.Errorf("Delete with empty key returned %v, want ErrEmptyKey", err)
	}

	if _, err := e.Has([]byte{}); err != engine.ErrEmptyKey {
		t.Errorf("Has with empty key returned %v, want ErrEmptyKey", err)
	}
}

// ============= 内存模式测试 =============

func TestEngine_InMemory(t *testing.T) {
	e := testMemoryEngine(t)

	key := []byte("mem-key")
	value := []byte("mem-value")

	if err := e.Put(key, value); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := e.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Errorf("Get returned %q, want %q", got, value)
	}

	// Sync is a no-op in memory mode
	if err := e.Sync(); err != nil {
		t.Errorf("Sync in memory mode returned error: %v", err)
	}
}

func TestEngine_InMemoryReadOnlyRejected(t *testing.T) {
	cfg := engine.MemoryConfig()
	cfg.ReadOnly = true

	_, err := New(cfg)
	if err != engine.ErrInvalidConfig {
		t.Errorf("New with in-memory read-only config returned %v, want ErrInvalidConfig", err)
	}
}

// ============= 批量写入测试 =============

func TestEngine_Batch(t *testing.T) {
	e := testEngine(t)

	batch := e.NewBatch()

	// Queue several writes
	for i := 0; i < 10; i++ {
		key := []byte(fmt.Sprintf("batch-key-%d", i))
		value := []byte(fmt.Sprintf("batch-value-%d", i))
		batch.Put(key, value)
	}

	if batch.Size() != 10 {
		t.Errorf("Size returned %d, want 10", batch.Size())
	}

	// Nothing visible before Write
	if _, err := e.Get([]byte("batch-key-0")); err != engine.ErrNotFound {
		t.Errorf("Get before Write returned %v, want ErrNotFound", err)
	}

	if err := e.Write(batch); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// All visible after Write
	for i := 0; i < 10; i++ {
		key := []byte(fmt.Sprintf("batch-key-%d", i))
		want := []byte(fmt.Sprintf("batch-value-%d", i))

		got, err := e.Get(key)
		if err != nil {
			t.Fatalf("Get %q failed: %v", key, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Get %q returned %q, want %q", key, got, want)
		}
	}
}

func TestEngine_BatchDelete(t *testing.T) {
	e := testEngine(t)

	if err := e.Put([]byte("key-a"), []byte("a")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := e.Put([]byte("key-b"), []byte("b")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	batch := e.NewBatch()
	batch.Delete([]byte("key-a"))
	batch.Put([]byte("key-c"), []byte("c"))

	if err := batch.Write(); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if _, err := e.Get([]byte("key-a")); err != engine.ErrNotFound {
		t.Errorf("Get deleted key returned %v, want ErrNotFound", err)
	}
	if _, err := e.Get([]byte("key-b")); err != nil {
		t.Errorf("Get untouched key returned error: %v", err)
	}
	if _, err := e.Get([]byte("key-c")); err != nil {
		t.Errorf("Get new key returned error: %v", err)
	}
}

func TestEngine_BatchClosed(t *testing.T) {
	e := testEngine(t)

	batch := e.NewBatch()
	batch.Put([]byte("key"), []byte("value"))

	if err := batch.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Write after Close fails
	if err := batch.Write(); err != engine.ErrBatchClosed {
		t.Errorf("Write after Close returned %v, want ErrBatchClosed", err)
	}

	// Double Close is a no-op
	if err := batch.Close(); err != nil {
		t.Errorf("double Close returned error: %v", err)
	}
}

// ============= 前缀迭代测试 =============

func TestEngine_PrefixIterator(t *testing.T) {
	e := testEngine(t)

	// Keys inside and outside the prefix
	for i := 0; i < 5; i++ {
		key := []byte(fmt.Sprintf("a/key-%d", i))
		if err := e.Put(key, []byte("in")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if err := e.Put([]byte("b/other"), []byte("out")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	iter := e.NewPrefixIterator([]byte("a/"))
	defer iter.Close()

	var count int
	for iter.First(); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), []byte("a/")) {
			t.Errorf("iterator returned key %q outside prefix", iter.Key())
		}
		count++
	}

	if err := iter.Error(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	if count != 5 {
		t.Errorf("iterator returned %d keys, want 5", count)
	}
}

func TestEngine_PrefixIteratorEmpty(t *testing.T) {
	e := testEngine(t)

	iter := e.NewPrefixIterator([]byte("empty/"))
	defer iter.Close()

	if iter.First() {
		t.Error("First returned true for empty prefix")
	}
	if iter.Valid() {
		t.Error("Valid returned true for empty prefix")
	}
}

// ============= 生命周期测试 =============

func TestEngine_Closed(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := engine.DefaultConfig(filepath.Join(tmpDir, "closed.db"))

	e, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// All operations fail after Close
	if _, err := e.Get([]byte("key")); err != engine.ErrClosed {
		t.Errorf("Get after Close returned %v, want ErrClosed", err)
	}
	if err := e.Put([]byte("key"), []byte("value")); err != engine.ErrClosed {
		t.Errorf("Put after Close returned %v, want ErrClosed", err)
	}
	if err := e.Start(); err != engine.ErrClosed {
		t.Errorf("Start after Close returned %v, want ErrClosed", err)
	}

	// Double Close is a no-op
	if err := e.Close(); err != nil {
		t.Errorf("double Close returned error: %v", err)
	}
}

func TestEngine_ReopenPersistence(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "reopen.db")

	// First open: write and close
	e1, err := New(engine.DefaultConfig(dbPath))
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	if err := e1.Put([]byte("persistent"), []byte("survives")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := e1.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Second open: data survives
	e2, err := New(engine.DefaultConfig(dbPath))
	if err != nil {
		t.Fatalf("failed to reopen engine: %v", err)
	}
	defer e2.Close()

	got, err := e2.Get([]byte("persistent"))
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if !bytes.Equal(got, []byte("survives")) {
		t.Errorf("Get after reopen returned %q, want %q", got, "survives")
	}
}

// ============= 并发测试 =============

func TestEngine_ConcurrentAccess(t *testing.T) {
	e := testEngine(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				key := []byte(fmt.Sprintf("conc-%d-%d", n, j))
				if err := e.Put(key, []byte("v")); err != nil {
					t.Errorf("Put failed: %v", err)
					return
				}
				if _, err := e.Get(key); err != nil {
					t.Errorf("Get failed: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}

// ============= 统计信息测试 =============

func TestEngine_Stats(t *testing.T) {
	e := testEngine(t)

	for i := 0; i < 20; i++ {
		key := []byte(fmt.Sprintf("stats-%d", i))
		if err := e.Put(key, []byte("value")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if _, err := e.Get([]byte("stats-0")); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	stats := e.Stats()
	if stats.NumWrites < 20 {
		t.Errorf("NumWrites = %d, want >= 20", stats.NumWrites)
	}
	if stats.NumReads < 1 {
		t.Errorf("NumReads = %d, want >= 1", stats.NumReads)
	}
	if stats.KeyCount < 20 {
		t.Errorf("KeyCount = %d, want >= 20", stats.KeyCount)
	}
}
