package testing

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ValentinKolb/hKV/lib/db"
)

// EngineFactory is a function that creates a new instance of an Engine implementation
type EngineFactory func() db.Engine

// RunEngineTests runs a comprehensive test suite for an Engine implementation.
// Every test works on its own database below t.TempDir().
func RunEngineTests(t *testing.T, name string, factory EngineFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("OpenMissing", func(t *testing.T) {
			testOpenMissing(t, factory())
		})

		t.Run("ErrorIfExists", func(t *testing.T) {
			testErrorIfExists(t, factory())
		})

		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("KeyMayExist", func(t *testing.T) {
			testKeyMayExist(t, factory())
		})

		t.Run("WriteBatch", func(t *testing.T) {
			testWriteBatch(t, factory())
		})

		t.Run("Iterator", func(t *testing.T) {
			testIterator(t, factory())
		})

		t.Run("Snapshot", func(t *testing.T) {
			testSnapshot(t, factory())
		})

		t.Run("ForeignSnapshot", func(t *testing.T) {
			testForeignSnapshot(t, factory())
		})

		t.Run("ReadOnly", func(t *testing.T) {
			testReadOnly(t, factory())
		})

		t.Run("Persistence", func(t *testing.T) {
			testPersistence(t, factory())
		})

		t.Run("CloseReleasesDependents", func(t *testing.T) {
			testCloseReleasesDependents(t, factory())
		})

		t.Run("SizesAndProperties", func(t *testing.T) {
			testSizesAndProperties(t, factory())
		})

		t.Run("RepairDestroy", func(t *testing.T) {
			testRepairDestroy(t, factory())
		})

		t.Run("Version", func(t *testing.T) {
			testVersion(t, factory())
		})

		t.Run("ConcurrentWrites", func(t *testing.T) {
			testConcurrentWrites(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// openNew creates a fresh database in a temporary directory
func openNew(t testing.TB, engine db.Engine) (db.DB, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "db")
	database, err := engine.Open(path, db.Options{CreateIfMissing: true})
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	return database, path
}

func mustPut(t testing.TB, database db.DB, key, value string) {
	t.Helper()

	if err := database.Put([]byte(key), []byte(value), db.WriteOptions{}); err != nil {
		t.Fatalf("Put(%s) failed: %v", key, err)
	}
}

// expectValue checks that key reads as want, or is missing if want is nil
func expectValue(t testing.TB, database db.DB, opts db.ReadOptions, key string, want []byte) {
	t.Helper()

	got, err := database.Get([]byte(key), opts)
	if want == nil {
		if !errors.Is(err, db.ErrNotFound) {
			t.Errorf("Expected key %s to be missing, got value %q and error %v", key, got, err)
		}
		return
	}
	if err != nil {
		t.Errorf("Get(%s) failed: %v", key, err)
		return
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Expected value %q for key %s, got %q", want, key, got)
	}
}

// collect returns all keys of a full forward scan
func collect(t testing.TB, it db.Iterator) []string {
	t.Helper()

	var keys []string
	for it.SeekToFirst(); it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
	}
	if err := it.Error(); err != nil {
		t.Errorf("Iterator error: %v", err)
	}
	return keys
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testOpenMissing(t *testing.T, engine db.Engine) {
	path := filepath.Join(t.TempDir(), "missing")

	if database, err := engine.Open(path, db.Options{}); err == nil {
		database.Close()
		t.Fatalf("Expected open of missing database without create_if_missing to fail")
	}

	database, err := engine.Open(path, db.Options{CreateIfMissing: true})
	if err != nil {
		t.Fatalf("Expected open with create_if_missing to succeed, got %v", err)
	}
	defer database.Close()

	if database.Name() != path {
		t.Errorf("Expected Name() to return %s, got %s", path, database.Name())
	}
}

func testErrorIfExists(t *testing.T, engine db.Engine) {
	database, path := openNew(t, engine)
	if err := database.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if database, err := engine.Open(path, db.Options{CreateIfMissing: true, ErrorIfExists: true}); err == nil {
		database.Close()
		t.Errorf("Expected open of existing database with error_if_exists to fail")
	}

	if _, err := engine.Open(path, db.Options{ReadOnly: true, ErrorIfExists: true}); err == nil {
		t.Errorf("Expected readonly together with error_if_exists to be rejected")
	}
}

func testPutGet(t *testing.T, engine db.Engine) {
	database, _ := openNew(t, engine)
	defer database.Close()

	mustPut(t, database, "test-key", "test-value1")
	expectValue(t, database, db.ReadOptions{}, "test-key", []byte("test-value1"))

	mustPut(t, database, "test-key", "test-value2")
	expectValue(t, database, db.ReadOptions{}, "test-key", []byte("test-value2"))

	expectValue(t, database, db.ReadOptions{}, "nonexistent-key", nil)

	// sync writes and fill_cache reads behave the same
	if err := database.Put([]byte("synced"), []byte("v"), db.WriteOptions{Sync: true}); err != nil {
		t.Errorf("Sync put failed: %v", err)
	}
	expectValue(t, database, db.ReadOptions{FillCache: true}, "synced", []byte("v"))

	// values are copies
	retrieved, _ := database.Get([]byte("test-key"), db.ReadOptions{})
	retrieved[0] = 'X'
	expectValue(t, database, db.ReadOptions{}, "test-key", []byte("test-value2"))

	// binary keys and values
	binKey := []byte{0x00, 0xff, 0x10}
	binValue := []byte{0x00, 0x00, 0x01}
	if err := database.Put(binKey, binValue, db.WriteOptions{}); err != nil {
		t.Fatalf("Binary put failed: %v", err)
	}
	got, err := database.Get(binKey, db.ReadOptions{})
	if err != nil || !bytes.Equal(got, binValue) {
		t.Errorf("Expected binary value %v, got %v (%v)", binValue, got, err)
	}
}

func testDelete(t *testing.T, engine db.Engine) {
	database, _ := openNew(t, engine)
	defer database.Close()

	mustPut(t, database, "k", "v")
	if err := database.Delete([]byte("k"), db.WriteOptions{}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	expectValue(t, database, db.ReadOptions{}, "k", nil)

	// deleting a missing key is not an error
	if err := database.Delete([]byte("never-there"), db.WriteOptions{Sync: true}); err != nil {
		t.Errorf("Expected delete of missing key to succeed, got %v", err)
	}
}

func testKeyMayExist(t *testing.T, engine db.Engine) {
	database, _ := openNew(t, engine)
	defer database.Close()

	mustPut(t, database, "present", "v")
	if !database.KeyMayExist([]byte("present")) {
		t.Errorf("KeyMayExist must never be false for a present key")
	}
}

func testWriteBatch(t *testing.T, engine db.Engine) {
	database, _ := openNew(t, engine)
	defer database.Close()

	mustPut(t, database, "a", "old")

	batch := db.NewBatch()
	defer batch.Close()
	for _, op := range []func() error{
		func() error { return batch.Put([]byte("a"), []byte("1")) },
		func() error { return batch.Put([]byte("b"), []byte("2")) },
		func() error { return batch.Delete([]byte("a")) },
	} {
		if err := op(); err != nil {
			t.Fatalf("Batch operation failed: %v", err)
		}
	}

	// nothing is visible before the write
	expectValue(t, database, db.ReadOptions{}, "a", []byte("old"))
	expectValue(t, database, db.ReadOptions{}, "b", nil)

	if err := database.Write(batch, db.WriteOptions{}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	expectValue(t, database, db.ReadOptions{}, "a", nil)
	expectValue(t, database, db.ReadOptions{}, "b", []byte("2"))

	// the batch survives the write and can be applied again
	if batch.Count() != 3 {
		t.Errorf("Expected batch to still hold 3 operations, got %d", batch.Count())
	}
	mustPut(t, database, "a", "again")
	if err := database.Write(batch, db.WriteOptions{Sync: true}); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}
	expectValue(t, database, db.ReadOptions{}, "a", nil)

	// an empty batch is a no-op
	empty := db.NewBatch()
	if err := database.Write(empty, db.WriteOptions{}); err != nil {
		t.Errorf("Expected empty batch write to succeed, got %v", err)
	}

	// a closed batch cannot be written
	empty.Close()
	if err := database.Write(empty, db.WriteOptions{}); !errors.Is(err, db.ErrBatchClosed) {
		t.Errorf("Expected ErrBatchClosed, got %v", err)
	}
}

func testIterator(t *testing.T, engine db.Engine) {
	database, _ := openNew(t, engine)
	defer database.Close()

	for _, k := range []string{"c", "a", "b"} {
		mustPut(t, database, k, "value-"+k)
	}

	it, err := database.NewIterator(db.ReadOptions{})
	if err != nil {
		t.Fatalf("NewIterator failed: %v", err)
	}
	defer it.Close()

	if it.Valid() {
		t.Errorf("A new iterator must not be positioned")
	}
	if it.Key() != nil || it.Value() != nil {
		t.Errorf("Key and Value of an unpositioned iterator must be nil")
	}

	if keys := collect(t, it); !equalKeys(keys, []string{"a", "b", "c"}) {
		t.Errorf("Expected ascending keys [a b c], got %v", keys)
	}

	it.SeekToLast()
	if !it.Valid() || string(it.Key()) != "c" || string(it.Value()) != "value-c" {
		t.Errorf("Expected SeekToLast to land on c, got %q", it.Key())
	}
	it.Prev()
	if !it.Valid() || string(it.Key()) != "b" {
		t.Errorf("Expected Prev to land on b, got %q", it.Key())
	}

	it.Seek([]byte("bb"))
	if !it.Valid() || string(it.Key()) != "c" {
		t.Errorf("Expected Seek(bb) to land on c, got %q", it.Key())
	}
	it.Next()
	if it.Valid() {
		t.Errorf("Expected iterator to be exhausted after c")
	}
	// stepping an exhausted iterator keeps it exhausted
	it.Next()
	it.Prev()
	if it.Valid() {
		t.Errorf("Expected iterator to stay exhausted")
	}

	it.Seek([]byte("zzz"))
	if it.Valid() {
		t.Errorf("Expected Seek past the last key to be invalid")
	}
	if err := it.Error(); err != nil {
		t.Errorf("Unexpected iterator error: %v", err)
	}

	if err := it.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if it.Valid() {
		t.Errorf("A closed iterator must not be valid")
	}
	if err := it.Error(); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Expected ErrClosed from a closed iterator, got %v", err)
	}
}

func testSnapshot(t *testing.T, engine db.Engine) {
	database, _ := openNew(t, engine)
	defer database.Close()

	mustPut(t, database, "k", "v1")
	mustPut(t, database, "gone", "x")

	snap, err := database.NewSnapshot()
	if err != nil {
		t.Fatalf("NewSnapshot failed: %v", err)
	}

	mustPut(t, database, "k", "v2")
	mustPut(t, database, "new", "y")
	if err := database.Delete([]byte("gone"), db.WriteOptions{}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	at := db.ReadOptions{Snapshot: snap}
	expectValue(t, database, at, "k", []byte("v1"))
	expectValue(t, database, at, "gone", []byte("x"))
	expectValue(t, database, at, "new", nil)
	expectValue(t, database, db.ReadOptions{}, "k", []byte("v2"))

	it, err := database.NewIterator(at)
	if err != nil {
		t.Fatalf("NewIterator on snapshot failed: %v", err)
	}
	if keys := collect(t, it); !equalKeys(keys, []string{"gone", "k"}) {
		t.Errorf("Expected snapshot keys [gone k], got %v", keys)
	}
	it.Close()

	if err := snap.Close(); err != nil {
		t.Errorf("Snapshot close failed: %v", err)
	}
	if _, err := database.Get([]byte("k"), at); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Expected read through a closed snapshot to fail with ErrClosed, got %v", err)
	}
}

func testForeignSnapshot(t *testing.T, engine db.Engine) {
	first, _ := openNew(t, engine)
	defer first.Close()
	second, _ := openNew(t, engine)
	defer second.Close()

	snap, err := first.NewSnapshot()
	if err != nil {
		t.Fatalf("NewSnapshot failed: %v", err)
	}
	defer snap.Close()

	if _, err := second.Get([]byte("k"), db.ReadOptions{Snapshot: snap}); err == nil {
		t.Errorf("Expected read through a snapshot of another database to fail")
	}
	if _, err := second.NewIterator(db.ReadOptions{Snapshot: snap}); err == nil {
		t.Errorf("Expected iterator on a snapshot of another database to fail")
	}
}

func testReadOnly(t *testing.T, engine db.Engine) {
	database, path := openNew(t, engine)
	mustPut(t, database, "k", "v")
	if err := database.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	ro, err := engine.Open(path, db.Options{ReadOnly: true})
	if err != nil {
		t.Fatalf("Readonly open failed: %v", err)
	}
	defer ro.Close()

	expectValue(t, ro, db.ReadOptions{}, "k", []byte("v"))
	if err := ro.Put([]byte("k"), []byte("w"), db.WriteOptions{}); !errors.Is(err, db.ErrReadOnly) {
		t.Errorf("Expected ErrReadOnly on put, got %v", err)
	}
	if err := ro.Delete([]byte("k"), db.WriteOptions{}); !errors.Is(err, db.ErrReadOnly) {
		t.Errorf("Expected ErrReadOnly on delete, got %v", err)
	}
	batch := db.NewBatch()
	_ = batch.Put([]byte("x"), []byte("y"))
	if err := ro.Write(batch, db.WriteOptions{}); !errors.Is(err, db.ErrReadOnly) {
		t.Errorf("Expected ErrReadOnly on write, got %v", err)
	}
}

func testPersistence(t *testing.T, engine db.Engine) {
	database, path := openNew(t, engine)

	for i := 0; i < 100; i++ {
		mustPut(t, database, fmt.Sprintf("key-%03d", i), fmt.Sprintf("value-%d", i))
	}
	if err := database.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := engine.Open(path, db.Options{ParanoidChecks: true, UseFsync: true, Compression: db.CompressionZlib})
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	for i := 0; i < 100; i++ {
		expectValue(t, reopened, db.ReadOptions{}, fmt.Sprintf("key-%03d", i), []byte(fmt.Sprintf("value-%d", i)))
	}
}

func testCloseReleasesDependents(t *testing.T, engine db.Engine) {
	database, _ := openNew(t, engine)
	mustPut(t, database, "k", "v")

	snap, err := database.NewSnapshot()
	if err != nil {
		t.Fatalf("NewSnapshot failed: %v", err)
	}
	it, err := database.NewIterator(db.ReadOptions{Snapshot: snap})
	if err != nil {
		t.Fatalf("NewIterator failed: %v", err)
	}
	it.SeekToFirst()

	if err := database.Close(); err != nil {
		t.Fatalf("Close with open dependents failed: %v", err)
	}

	// everything created from the database is unusable, but safe to touch
	if it.Valid() {
		t.Errorf("Iterator of a closed database must not be valid")
	}
	if err := it.Close(); err != nil {
		t.Errorf("Closing an iterator of a closed database failed: %v", err)
	}
	if err := snap.Close(); err != nil {
		t.Errorf("Closing a snapshot of a closed database failed: %v", err)
	}
	if _, err := database.Get([]byte("k"), db.ReadOptions{}); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Expected ErrClosed from Get, got %v", err)
	}
	if err := database.Put([]byte("k"), []byte("v"), db.WriteOptions{}); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Expected ErrClosed from Put, got %v", err)
	}
	if _, err := database.NewSnapshot(); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Expected ErrClosed from NewSnapshot, got %v", err)
	}
	if err := database.Close(); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Expected ErrClosed from second Close, got %v", err)
	}
}

func testSizesAndProperties(t *testing.T, engine db.Engine) {
	database, _ := openNew(t, engine)
	defer database.Close()

	for i := 0; i < 50; i++ {
		mustPut(t, database, fmt.Sprintf("k%02d", i), "some value")
	}

	if _, err := database.ApproximateSize([]byte("k00"), []byte("k49")); err != nil {
		t.Errorf("ApproximateSize failed: %v", err)
	}
	if _, ok := database.Property("no.such.property"); ok {
		t.Errorf("Expected unknown property to be reported as unknown")
	}
}

func testRepairDestroy(t *testing.T, engine db.Engine) {
	database, path := openNew(t, engine)
	mustPut(t, database, "k", "v")

	if err := engine.Destroy(path); err == nil {
		t.Errorf("Expected destroy of an open database to fail")
	}

	if err := database.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := engine.Repair(path); err != nil {
		t.Errorf("Repair of a healthy database failed: %v", err)
	}

	if err := engine.Destroy(path); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if database, err := engine.Open(path, db.Options{}); err == nil {
		database.Close()
		t.Errorf("Expected destroyed database to be gone")
	}

	if err := engine.Destroy(filepath.Join(t.TempDir(), "never-created")); err != nil {
		t.Errorf("Expected destroy of a missing path to succeed, got %v", err)
	}
	if err := engine.Repair(filepath.Join(t.TempDir(), "never-created")); err == nil {
		t.Errorf("Expected repair of a missing path to fail")
	}

	// a directory without a database is left alone
	plain := t.TempDir()
	userFile := filepath.Join(plain, "userdata", "thesis.txt")
	if err := os.MkdirAll(filepath.Dir(userFile), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(userFile, []byte("keep me"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := engine.Destroy(plain); err == nil {
		t.Errorf("Expected destroy of a directory without a database to fail")
	}
	if _, err := os.Stat(userFile); err != nil {
		t.Errorf("Expected %s to survive destroy, got %v", userFile, err)
	}

	// foreign files next to a database survive together with the directory
	database, path = openNew(t, engine)
	mustPut(t, database, "k", "v")
	if err := database.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	notes := filepath.Join(path, "NOTES.md")
	if err := os.WriteFile(notes, []byte("notes"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := engine.Destroy(path); err != nil {
		t.Fatalf("Destroy of a database with foreign files failed: %v", err)
	}
	if _, err := os.Stat(notes); err != nil {
		t.Errorf("Expected %s to survive destroy, got %v", notes, err)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected only NOTES.md to remain, got %d entries", len(entries))
	}
	if database, err := engine.Open(path, db.Options{}); err == nil {
		database.Close()
		t.Errorf("Expected destroyed database to be gone")
	}
}

func testVersion(t *testing.T, engine db.Engine) {
	v := engine.Version()
	if v.Major == 0 && v.Minor == 0 && v.Patch == 0 {
		t.Errorf("Expected a non-zero engine version, got %s", v)
	}
	if engine.Implementation() == "" {
		t.Errorf("Expected a non-empty implementation name")
	}
}

func testConcurrentWrites(t *testing.T, engine db.Engine) {
	database, _ := openNew(t, engine)
	defer database.Close()

	const workers, perWorker = 8, 100

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := []byte(fmt.Sprintf("w%d-k%03d", w, i))
				if err := database.Put(key, key, db.WriteOptions{}); err != nil {
					t.Errorf("Concurrent put failed: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	it, err := database.NewIterator(db.ReadOptions{})
	if err != nil {
		t.Fatalf("NewIterator failed: %v", err)
	}
	defer it.Close()

	if keys := collect(t, it); len(keys) != workers*perWorker {
		t.Errorf("Expected %d keys, got %d", workers*perWorker, len(keys))
	}
}
