package pebble

import (
	"fmt"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/ValentinKolb/hKV/lib/db"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in   string
		want db.Version
		ok   bool
	}{
		{"v1.1.5", db.Version{Major: 1, Minor: 1, Patch: 5}, true},
		{"v2.0.0-pre.1", db.Version{Major: 2}, true},
		{"v0.0.0-20240618143154-6a1623140f27", db.Version{}, true},
		{"v1.2", db.Version{}, false},
		{"(devel)", db.Version{}, false},
		{"v1.x.3", db.Version{}, false},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := parseVersion(tc.in)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestCompressionMapping(t *testing.T) {
	tests := []struct {
		in   db.Compression
		want pebble.Compression
	}{
		{db.CompressionDefault, pebble.DefaultCompression},
		{db.CompressionNone, pebble.NoCompression},
		{db.CompressionSnappy, pebble.SnappyCompression},
		{db.CompressionZlib, pebble.ZstdCompression},
		{db.CompressionBzip2, pebble.ZstdCompression},
		{db.CompressionLZ4, pebble.ZstdCompression},
		{db.CompressionLZ4HC, pebble.ZstdCompression},
		{db.CompressionZstd, pebble.ZstdCompression},
	}

	for _, tc := range tests {
		t.Run(string(tc.in), func(t *testing.T) {
			assert.Equal(t, tc.want, compressionFor(tc.in))
		})
	}
}

func TestOptionMapping(t *testing.T) {
	e := NewEngine(nil).(*pebbleEngine)

	popts := e.pebbleOptions(db.Options{
		CreateIfMissing:      true,
		ErrorIfExists:        true,
		WriteBufferSize:      8 << 20,
		MaxWriteBufferNumber: 3,
		TargetFileSizeBase:   4 << 20,
		MaxOpenFiles:         500,
		Compression:          db.CompressionNone,
	})

	assert.False(t, popts.ErrorIfNotExists)
	assert.True(t, popts.ErrorIfExists)
	assert.False(t, popts.ReadOnly)
	assert.Equal(t, uint64(8<<20), popts.MemTableSize)
	assert.Equal(t, 3, popts.MemTableStopWritesThreshold)
	assert.Equal(t, 500, popts.MaxOpenFiles)
	require.Len(t, popts.Levels, numLevels)
	for i, l := range popts.Levels {
		assert.Equal(t, pebble.NoCompression, l.Compression)
		assert.Equal(t, int64(4<<20)<<i, l.TargetFileSize, "level %d", i)
	}

	// non-positive sizes keep the engine defaults
	popts = e.pebbleOptions(db.Options{MaxOpenFiles: -1})
	assert.True(t, popts.ErrorIfNotExists)
	assert.Zero(t, popts.MemTableSize)
	assert.Zero(t, popts.MemTableStopWritesThreshold)
	assert.Zero(t, popts.MaxOpenFiles)
	assert.Zero(t, popts.Levels[0].TargetFileSize)
}

func TestSharedBlockCache(t *testing.T) {
	e := NewEngine(&EngineOptions{CacheSize: 4 << 20}).(*pebbleEngine)
	require.NotNil(t, e.cache)
	assert.Equal(t, int64(4<<20), e.cache.MaxSize())

	// every database gets the same cache
	assert.Same(t, e.cache, e.pebbleOptions(db.Options{}).Cache)
	assert.Same(t, e.cache, e.pebbleOptions(db.Options{ReadOnly: true}).Cache)

	dir := t.TempDir()
	a, err := e.Open(filepath.Join(dir, "a"), db.Options{CreateIfMissing: true})
	require.NoError(t, err)
	b, err := e.Open(filepath.Join(dir, "b"), db.Options{CreateIfMissing: true})
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, b.Close())

	// the engine keeps its reference after the databases are closed
	c, err := e.Open(filepath.Join(dir, "a"), db.Options{})
	require.NoError(t, err)
	require.NoError(t, c.Close())

	assert.Nil(t, NewEngine(nil).(*pebbleEngine).pebbleOptions(db.Options{}).Cache)
}

func TestOpenValidatesOptions(t *testing.T) {
	e := NewEngine(nil)

	_, err := e.Open("", db.Options{CreateIfMissing: true})
	assert.Error(t, err)

	_, err = e.Open(filepath.Join(t.TempDir(), "db"), db.Options{CreateIfMissing: true, Compression: "brotli"})
	assert.Error(t, err)
}

func TestInMemoryFS(t *testing.T) {
	e := NewEngine(&EngineOptions{FS: vfs.NewMem()})

	d, err := e.Open("mem-db", db.Options{CreateIfMissing: true})
	require.NoError(t, err)
	require.NoError(t, d.Put([]byte("k"), []byte("v"), db.WriteOptions{}))
	require.NoError(t, d.Close())

	require.NoError(t, e.Destroy("mem-db"))
	_, err = e.Open("mem-db", db.Options{})
	assert.Error(t, err)
}

func TestOwnedFiles(t *testing.T) {
	owned := []string{"CURRENT", "LOCK", "MANIFEST-000001", "OPTIONS-000003", "000004.log",
		"000005.sst", "marker.format-version.000001.013", "marker.manifest.000001.MANIFEST-000001",
		"CURRENT.000002.dbtmp", "temporary.000006.dbtmp"}
	for _, name := range owned {
		assert.True(t, ownedFile(name), name)
	}

	foreign := []string{"NOTES.md", "thesis.txt", "backup.sst", "server.log", "userdata", "current"}
	for _, name := range foreign {
		assert.False(t, ownedFile(name), name)
	}

	assert.True(t, hasManifest([]string{"NOTES.md", "MANIFEST-000001"}))
	assert.True(t, hasManifest([]string{"marker.manifest.000001.MANIFEST-000001"}))
	assert.False(t, hasManifest([]string{"NOTES.md", "000005.sst"}))
}

func TestDestroyKeepsForeignFiles(t *testing.T) {
	fs := vfs.NewMem()
	e := NewEngine(&EngineOptions{FS: fs})

	require.NoError(t, fs.MkdirAll("plain", 0o755))
	f, err := fs.Create("plain/thesis.txt")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Error(t, e.Destroy("plain"))
	_, err = fs.Stat("plain/thesis.txt")
	assert.NoError(t, err)

	d, err := e.Open("mixed", db.Options{CreateIfMissing: true})
	require.NoError(t, err)
	require.NoError(t, d.Close())
	f, err = fs.Create("mixed/NOTES.md")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, e.Destroy("mixed"))
	names, err := fs.List("mixed")
	require.NoError(t, err)
	assert.Equal(t, []string{"NOTES.md"}, names)
}

func TestProperties(t *testing.T) {
	e := NewEngine(&EngineOptions{CacheSize: 1 << 20})
	d, err := e.Open(filepath.Join(t.TempDir(), "db"), db.Options{CreateIfMissing: true})
	require.NoError(t, err)
	defer d.Close()

	for i := 0; i < 10; i++ {
		require.NoError(t, d.Put([]byte(fmt.Sprintf("k%d", i)), []byte("v"), db.WriteOptions{}))
	}

	stats, ok := d.Property("pebble.stats")
	require.True(t, ok)
	assert.NotEmpty(t, stats)

	for _, name := range []string{
		"pebble.num-files-at-level0",
		"pebble.num-files-at-level6",
		"rocksdb.num-files-at-level1",
		"pebble.cur-size-all-mem-tables",
		"pebble.num-immutable-mem-table",
		"pebble.total-disk-usage",
		"pebble.num-compactions",
		"pebble.num-flushes",
		"pebble.block-cache-usage",
		"pebble.block-cache-hits",
		"pebble.block-cache-misses",
	} {
		v, ok := d.Property(name)
		if assert.True(t, ok, name) {
			_, err := strconv.ParseUint(v, 10, 64)
			assert.NoError(t, err, "%s = %q", name, v)
		}
	}

	snap, err := d.NewSnapshot()
	require.NoError(t, err)
	v, ok := d.Property("pebble.num-snapshots")
	require.True(t, ok)
	assert.Equal(t, "1", v)
	require.NoError(t, snap.Close())

	for _, name := range []string{
		"pebble.num-files-at-level7",
		"pebble.num-files-at-level-1",
		"pebble.num-files-at-levelx",
		"pebble.unknown",
		"leveldb.stats",
		"stats",
	} {
		_, ok := d.Property(name)
		assert.False(t, ok, name)
	}
}

func TestSnapshotDetachesOnClose(t *testing.T) {
	e := NewEngine(nil)
	d, err := e.Open(filepath.Join(t.TempDir(), "db"), db.Options{CreateIfMissing: true})
	require.NoError(t, err)
	defer d.Close()

	pdb := d.(*pebbleDB)

	snap, err := d.NewSnapshot()
	require.NoError(t, err)
	it, err := d.NewIterator(db.ReadOptions{Snapshot: snap})
	require.NoError(t, err)
	assert.Len(t, pdb.snaps, 1)
	assert.Len(t, pdb.iters, 1)

	// the iterator outlives the snapshot it reads through
	require.NoError(t, snap.Close())
	it.SeekToFirst()
	assert.NoError(t, it.Error())
	require.NoError(t, it.Close())

	assert.Empty(t, pdb.snaps)
	assert.Empty(t, pdb.iters)

	// closing twice is harmless
	assert.NoError(t, snap.Close())
	assert.NoError(t, it.Close())
}
