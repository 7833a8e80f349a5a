package common

import (
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Configuration struct
// --------------------------------------------------------------------------

// Config holds all configuration parameters of an hKV process
type Config struct {
	// Logging configuration
	LogLevel string

	// Engine settings
	CacheSizeMB int64

	// Handle settings: refuse to close a database while iterators or
	// snapshots created from it are still open
	StrictDependents bool

	// Shell settings
	ExitOnError bool
	PrintMetrics bool
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() Config {
	return Config{
		LogLevel:         "warn",
		CacheSizeMB:      8,
		StrictDependents: true,
	}
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	addSection("Engine")
	addField("Block Cache", fmt.Sprintf("%d MB", c.CacheSizeMB))

	addSection("Handles")
	addField("Strict Dependents", fmt.Sprintf("%t", c.StrictDependents))

	addSection("Shell")
	addField("Exit On Error", fmt.Sprintf("%t", c.ExitOnError))
	addField("Print Metrics", fmt.Sprintf("%t", c.PrintMetrics))

	return sb.String()
}
