package pebble

import (
	"testing"

	"github.com/ValentinKolb/hKV/lib/db"
	dbtesting "github.com/ValentinKolb/hKV/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunEngineTests(t, "Pebble", func() db.Engine {
		return NewEngine(&EngineOptions{CacheSize: 8 << 20})
	})
}

func Benchmark(b *testing.B) {
	dbtesting.RunEngineBenchmarks(b, "Pebble", func() db.Engine {
		return NewEngine(nil)
	})
}
