// Package pebble implements db.Engine on top of CockroachDB's Pebble, an
// LSM key-value store written in Go.
//
// The package focuses on:
//   - Mapping the engine independent db.Options onto pebble.Options
//   - Making every native object safe to use after its database was closed
//   - Exposing pebble metrics as database properties
//
// Key Components:
//
//   - pebbleEngine: The db.Engine. It opens databases, optionally with one
//     block cache shared by all of them, and implements the path based
//     operations:
//     Repair opens the database (recovering the WAL) and runs a full level
//     check, Destroy takes the database lock and removes the files pebble
//     owns, the directory only when nothing else is left in it.
//     The reported version is the one of the linked pebble module.
//
//   - pebbleDB: An open database. Writes with use_fsync set are always
//     synced. Batches recorded with db.Batch are replayed into a pebble
//     batch and applied atomically. The database keeps track of the
//     iterators and snapshots it created and closes them before itself,
//     pebble would otherwise panic on their next use.
//
//   - iterator, snapshot: Thin wrappers that copy keys and values out of
//     pebble's buffers and report db.ErrClosed once released.
//
// Option mapping:
//
//	create_if_missing=false  -> ErrorIfNotExists
//	error_if_exists          -> ErrorIfExists
//	readonly                 -> ReadOnly
//	write_buffer_size        -> MemTableSize
//	max_write_buffer_number  -> MemTableStopWritesThreshold
//	target_file_size_base    -> Levels[i].TargetFileSize (doubling per level)
//	max_open_files           -> MaxOpenFiles
//	compression              -> Levels[i].Compression (zlib, bzip2, lz4, lz4hc use zstd)
//	paranoid_checks          -> CheckLevels after open
//	use_fsync                -> pebble.Sync for every write
//
// Properties are available under the "pebble." prefix and, for
// compatibility, under "rocksdb.": stats, num-files-at-level<N>,
// cur-size-all-mem-tables, num-immutable-mem-table, num-snapshots,
// total-disk-usage, num-compactions, num-flushes, block-cache-usage,
// block-cache-hits and block-cache-misses.
package pebble
