package pebble

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/ValentinKolb/hKV/lib/common"
	"github.com/ValentinKolb/hKV/lib/db"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger(common.LoggerEngine)

const (
	modulePath = "github.com/cockroachdb/pebble"
	numLevels  = 7
)

// fallbackVersion is reported when the binary carries no module build info (tests)
var fallbackVersion = db.Version{Major: 1, Minor: 1, Patch: 5}

// --------------------------------------------------------------------------
// Engine
// --------------------------------------------------------------------------

// EngineOptions configure the engine. They apply to every database it opens.
type EngineOptions struct {
	// CacheSize is the size in bytes of the block cache shared by every
	// database the engine opens. 0 gives each database the pebble default.
	CacheSize int64
	// FS is the filesystem databases live on, nil means the OS filesystem.
	FS vfs.FS
}

type pebbleEngine struct {
	// held for the lifetime of the engine, open databases add their own reference
	cache *pebble.Cache
	fs    vfs.FS
}

// NewEngine creates a db.Engine backed by pebble
func NewEngine(opts *EngineOptions) db.Engine {
	e := &pebbleEngine{fs: vfs.Default}
	if opts != nil {
		if opts.CacheSize > 0 {
			e.cache = pebble.NewCache(opts.CacheSize)
		}
		if opts.FS != nil {
			e.fs = opts.FS
		}
	}
	return e
}

func (e *pebbleEngine) Implementation() db.Implementation {
	return db.ImplPebble
}

// Open opens the database at path
func (e *pebbleEngine) Open(path string, opts db.Options) (db.DB, error) {
	if path == "" {
		return nil, errors.New("pebble: empty database path")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	pdb, err := pebble.Open(path, e.pebbleOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if opts.ParanoidChecks {
		if err := pdb.CheckLevels(nil); err != nil {
			_ = pdb.Close()
			return nil, fmt.Errorf("consistency check of %s failed: %w", path, err)
		}
	}

	Logger.Infof("opened database %s (readonly=%t)", path, opts.ReadOnly)
	return newDB(path, pdb, opts), nil
}

// Repair opens the database at path, verifies all levels and closes it
// again. pebble recovers its WAL on open, so a database that passes the
// check is consistent.
func (e *pebbleEngine) Repair(path string) error {
	if path == "" {
		return errors.New("pebble: empty database path")
	}

	popts := e.pebbleOptions(db.Options{})
	pdb, err := pebble.Open(path, popts)
	if err != nil {
		return fmt.Errorf("repair %s: %w", path, err)
	}

	var stats pebble.CheckLevelsStats
	checkErr := pdb.CheckLevels(&stats)
	closeErr := pdb.Close()
	if checkErr != nil {
		return fmt.Errorf("repair %s: %w", path, checkErr)
	}
	if closeErr != nil {
		return fmt.Errorf("repair %s: %w", path, closeErr)
	}

	Logger.Infof("repaired database %s: %d points, %d tombstones checked", path, stats.NumPoints, stats.NumTombstones)
	return nil
}

// Destroy removes the files of the database at path and then the directory
// itself if nothing else is left in it. Files pebble does not own are kept.
// It fails while the database is open, in this or any other process, and
// for directories that hold no database.
func (e *pebbleEngine) Destroy(path string) error {
	if path == "" {
		return errors.New("pebble: empty database path")
	}

	names, err := e.fs.List(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("destroy %s: %w", path, err)
	}
	if !hasManifest(names) {
		return fmt.Errorf("destroy %s: not a pebble database", path)
	}

	lock, err := e.fs.Lock(e.fs.PathJoin(path, "LOCK"))
	if err != nil {
		return fmt.Errorf("destroy %s: database is in use: %w", path, err)
	}
	if err := lock.Close(); err != nil {
		return fmt.Errorf("destroy %s: %w", path, err)
	}

	removed := 0
	for _, name := range names {
		if !ownedFile(name) {
			continue
		}
		if err := e.fs.Remove(e.fs.PathJoin(path, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("destroy %s: %w", path, err)
		}
		removed++
	}
	// LOCK may have been created by the lock above
	if err := e.fs.Remove(e.fs.PathJoin(path, "LOCK")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("destroy %s: %w", path, err)
	}

	if err := e.fs.Remove(path); err != nil {
		// foreign files keep the directory alive
		Logger.Infof("destroyed database %s, kept directory: %v", path, err)
		return nil
	}
	Logger.Infof("destroyed database %s (%d files)", path, removed)
	return nil
}

// hasManifest reports whether a directory listing contains the files that
// mark a pebble database
func hasManifest(names []string) bool {
	for _, name := range names {
		if name == "CURRENT" || strings.HasPrefix(name, "MANIFEST-") || strings.HasPrefix(name, "marker.manifest.") {
			return true
		}
	}
	return false
}

// ownedFile reports whether name is a file pebble creates in a database directory
func ownedFile(name string) bool {
	switch {
	case name == "CURRENT", name == "LOCK":
		return true
	case strings.HasPrefix(name, "MANIFEST-"), strings.HasPrefix(name, "OPTIONS-"), strings.HasPrefix(name, "marker."):
		return true
	case strings.HasSuffix(name, ".dbtmp"):
		return true
	case strings.HasSuffix(name, ".sst"), strings.HasSuffix(name, ".log"):
		// table and WAL files are named by their file number
		stem := name[:strings.LastIndexByte(name, '.')]
		_, err := strconv.ParseUint(stem, 10, 64)
		return err == nil
	}
	return false
}

// Version returns the version of the linked pebble module
func (e *pebbleEngine) Version() db.Version {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return fallbackVersion
	}
	for _, dep := range info.Deps {
		if dep.Path != modulePath {
			continue
		}
		if dep.Replace != nil {
			dep = dep.Replace
		}
		if v, ok := parseVersion(dep.Version); ok {
			return v
		}
	}
	return fallbackVersion
}

// parseVersion parses a module version like v1.1.5 or v1.1.5-pre.
// Pseudo versions yield their base release.
func parseVersion(s string) (db.Version, bool) {
	s = strings.TrimPrefix(s, "v")
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		s = s[:i]
	}
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return db.Version{}, false
	}

	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return db.Version{}, false
		}
		nums[i] = n
	}
	return db.Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, true
}

// --------------------------------------------------------------------------
// Option mapping
// --------------------------------------------------------------------------

// pebbleOptions translates the engine independent options
func (e *pebbleEngine) pebbleOptions(o db.Options) *pebble.Options {
	popts := &pebble.Options{
		FS:               e.fs,
		Logger:           pebbleLogger{},
		ErrorIfExists:    o.ErrorIfExists,
		ErrorIfNotExists: !o.CreateIfMissing,
		ReadOnly:         o.ReadOnly,
		Cache:            e.cache,
	}

	if o.WriteBufferSize > 0 {
		popts.MemTableSize = uint64(o.WriteBufferSize)
	}
	if o.MaxWriteBufferNumber > 0 {
		popts.MemTableStopWritesThreshold = o.MaxWriteBufferNumber
	}
	if o.MaxOpenFiles > 0 {
		popts.MaxOpenFiles = o.MaxOpenFiles
	}

	compression := compressionFor(o.Compression)
	target := o.TargetFileSizeBase
	popts.Levels = make([]pebble.LevelOptions, numLevels)
	for i := range popts.Levels {
		popts.Levels[i].Compression = compression
		// every level gets twice the file size of the one above
		if target > 0 {
			popts.Levels[i].TargetFileSize = target
			target *= 2
		}
	}
	return popts
}

// compressionFor maps a codec name to the pebble codec.
// Codecs pebble does not ship fall back to zstd.
func compressionFor(c db.Compression) pebble.Compression {
	switch c {
	case db.CompressionNone:
		return pebble.NoCompression
	case db.CompressionSnappy:
		return pebble.SnappyCompression
	case db.CompressionZlib, db.CompressionBzip2, db.CompressionLZ4, db.CompressionLZ4HC, db.CompressionZstd:
		return pebble.ZstdCompression
	default:
		return pebble.DefaultCompression
	}
}
