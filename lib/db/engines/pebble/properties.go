package pebble

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/pebble"
)

// Property prefixes. The rocksdb prefix is accepted for the properties both
// engines share so existing scripts keep working.
const (
	propPrefix       = "pebble."
	rocksPropPrefix  = "rocksdb."
	propFilesAtLevel = "num-files-at-level"
)

// properties maps property names (without prefix) to their metric
var properties = map[string]func(m *pebble.Metrics) string{
	"stats": func(m *pebble.Metrics) string {
		return m.String()
	},
	"cur-size-all-mem-tables": func(m *pebble.Metrics) string {
		return strconv.FormatUint(m.MemTable.Size, 10)
	},
	"num-immutable-mem-table": func(m *pebble.Metrics) string {
		// the mutable memtable is part of the count
		return strconv.FormatInt(max(m.MemTable.Count-1, 0), 10)
	},
	"num-snapshots": func(m *pebble.Metrics) string {
		return strconv.Itoa(m.Snapshots.Count)
	},
	"total-disk-usage": func(m *pebble.Metrics) string {
		return strconv.FormatUint(m.DiskSpaceUsage(), 10)
	},
	"num-compactions": func(m *pebble.Metrics) string {
		return strconv.FormatInt(m.Compact.Count, 10)
	},
	"num-flushes": func(m *pebble.Metrics) string {
		return strconv.FormatInt(m.Flush.Count, 10)
	},
	"block-cache-usage": func(m *pebble.Metrics) string {
		return strconv.FormatInt(m.BlockCache.Size, 10)
	},
	"block-cache-hits": func(m *pebble.Metrics) string {
		return strconv.FormatInt(m.BlockCache.Hits, 10)
	},
	"block-cache-misses": func(m *pebble.Metrics) string {
		return strconv.FormatInt(m.BlockCache.Misses, 10)
	},
}

// Property returns a database property.
// Known names are listed in properties plus num-files-at-level<N>.
func (d *pebbleDB) Property(name string) (string, bool) {
	prop, ok := strings.CutPrefix(name, propPrefix)
	if !ok {
		if prop, ok = strings.CutPrefix(name, rocksPropPrefix); !ok {
			return "", false
		}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return "", false
	}

	if level, ok := strings.CutPrefix(prop, propFilesAtLevel); ok {
		n, err := strconv.Atoi(level)
		if err != nil || n < 0 || n >= numLevels {
			return "", false
		}
		m := d.db.Metrics()
		return strconv.FormatInt(m.Levels[n].NumFiles, 10), true
	}

	fn, ok := properties[prop]
	if !ok {
		return "", false
	}
	return fn(d.db.Metrics()), true
}
