package testing

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/hKV/lib/db"
)

// RunEngineBenchmarks runs all benchmarks for an Engine implementation
func RunEngineBenchmarks(b *testing.B, name string, factory EngineFactory) {

	b.Run("Put", func(b *testing.B) {
		benchmarkPut(b, factory())
	})

	b.Run("PutExisting", func(b *testing.B) {
		benchmarkPutExisting(b, factory())
	})

	b.Run("PutLargeValue", func(b *testing.B) {
		benchmarkPutLargeValue(b, factory())
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})

	b.Run("Delete", func(b *testing.B) {
		benchmarkDelete(b, factory())
	})

	b.Run("WriteBatch", func(b *testing.B) {
		benchmarkWriteBatch(b, factory())
	})

	b.Run("Scan", func(b *testing.B) {
		benchmarkScan(b, factory())
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, factory())
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// openBench opens a fresh database that is closed when the benchmark ends
func openBench(b *testing.B, engine db.Engine) db.DB {
	database, _ := openNew(b, engine)
	b.Cleanup(func() {
		database.Close()
	})
	return database
}

// fill writes n keys test-key-<i>
func fill(b *testing.B, database db.DB, n int) {
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("test-key-%d", i))
		value := []byte(fmt.Sprintf("test-value-%d", i))
		if err := database.Put(key, value, db.WriteOptions{}); err != nil {
			b.Fatalf("Prepare failed: %v", err)
		}
	}
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for Put operation
func benchmarkPut(b *testing.B, engine db.Engine) {
	database := openBench(b, engine)

	var counter atomic.Int64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			key := []byte(fmt.Sprintf("test-key-%d", i))
			value := []byte(fmt.Sprintf("test-value-%d", i))
			database.Put(key, value, db.WriteOptions{})
		}
	})
}

// Benchmark for Put operation with existing keys
func benchmarkPutExisting(b *testing.B, engine db.Engine) {
	database := openBench(b, engine)

	numKeys := 10000
	fill(b, database, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := []byte(fmt.Sprintf("test-key-%d", counter%numKeys))
			value := []byte(fmt.Sprintf("test-value-%d", counter))
			database.Put(key, value, db.WriteOptions{})
			counter++
		}
	})
}

// Benchmark for Put operation with large values
func benchmarkPutLargeValue(b *testing.B, engine db.Engine) {
	database := openBench(b, engine)

	largeValue := make([]byte, 1*1024*1024) // 1MB
	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			key := []byte(fmt.Sprintf("test-key-%d", counter.Add(1)))
			database.Put(key, largeValue, db.WriteOptions{})
		}
	})
}

// Parallel benchmarking for Get operation
func benchmarkGet(b *testing.B, engine db.Engine) {
	database := openBench(b, engine)

	numKeys := 10000
	fill(b, database, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := []byte(fmt.Sprintf("test-key-%d", counter%numKeys))
			database.Get(key, db.ReadOptions{})
			counter++
		}
	})
}

// Parallel benchmarking for Delete operation
func benchmarkDelete(b *testing.B, engine db.Engine) {
	database := openBench(b, engine)

	numKeys := 100000
	if b.N < numKeys {
		numKeys = b.N
	}
	fill(b, database, numKeys)

	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1) % int64(numKeys)
			database.Delete([]byte(fmt.Sprintf("test-key-%d", i)), db.WriteOptions{})
		}
	})
}

// Benchmark for applying batches of 100 operations
func benchmarkWriteBatch(b *testing.B, engine db.Engine) {
	database := openBench(b, engine)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		batch := db.NewBatch()
		for j := 0; j < 100; j++ {
			key := []byte(fmt.Sprintf("batch-%d-key-%d", i, j))
			batch.Put(key, key)
		}
		if err := database.Write(batch, db.WriteOptions{}); err != nil {
			b.Fatalf("Write failed: %v", err)
		}
		batch.Close()
	}
}

// Benchmark for full forward scans over 10000 keys
func benchmarkScan(b *testing.B, engine db.Engine) {
	database := openBench(b, engine)
	fill(b, database, 10000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		it, err := database.NewIterator(db.ReadOptions{})
		if err != nil {
			b.Fatalf("NewIterator failed: %v", err)
		}
		for it.SeekToFirst(); it.Valid(); it.Next() {
			_ = it.Value()
		}
		it.Close()
	}
}

// Benchmark a mix of operations: 70% reads, 20% writes, 10% deletes
func benchmarkMixedUsage(b *testing.B, engine db.Engine) {
	database := openBench(b, engine)

	numKeys := 10000
	fill(b, database, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			key := []byte(fmt.Sprintf("test-key-%d", r.Intn(numKeys)))
			switch op := r.Intn(10); {
			case op < 7:
				database.Get(key, db.ReadOptions{})
			case op < 9:
				database.Put(key, []byte("updated"), db.WriteOptions{})
			default:
				database.Delete(key, db.WriteOptions{})
			}
		}
	})
}
