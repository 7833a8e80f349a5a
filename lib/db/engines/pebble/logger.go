package pebble

// pebbleLogger routes pebble's event log into the engine logger.
// Pebble reports routine events (flushes, compactions, WAL recycling) on
// Infof, those are debug output for us.
type pebbleLogger struct{}

func (pebbleLogger) Infof(format string, args ...interface{}) {
	Logger.Debugf(format, args...)
}

func (pebbleLogger) Errorf(format string, args ...interface{}) {
	Logger.Errorf(format, args...)
}

func (pebbleLogger) Fatalf(format string, args ...interface{}) {
	Logger.Panicf(format, args...)
}
