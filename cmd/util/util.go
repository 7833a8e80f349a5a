package util

import (
	"strings"

	"github.com/ValentinKolb/hKV/lib/common"
	"github.com/ValentinKolb/hKV/lib/db"
	"github.com/ValentinKolb/hKV/lib/db/engines/pebble"
	"github.com/ValentinKolb/hKV/lib/handle"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var line strings.Builder

	for _, word := range strings.Fields(text) {
		if line.Len() > 0 && line.Len()+1+len(word) > Wrap {
			wrappedLines = append(wrappedLines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		wrappedLines = append(wrappedLines, line.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads .env files and makes viper read HKV_* environment variables
func InitConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("hkv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetConfig reads the process configuration from viper
func GetConfig() common.Config {
	config := common.DefaultConfig()
	if viper.IsSet("log-level") {
		config.LogLevel = viper.GetString("log-level")
	}
	if viper.IsSet("cache-size") {
		config.CacheSizeMB = viper.GetInt64("cache-size")
	}
	if viper.IsSet("strict-dependents") {
		config.StrictDependents = viper.GetBool("strict-dependents")
	}
	config.ExitOnError = viper.GetBool("exit-on-error")
	config.PrintMetrics = viper.GetBool("metrics")
	return config
}

// NewEngine creates the storage engine described by config
func NewEngine(config common.Config) db.Engine {
	return pebble.NewEngine(&pebble.EngineOptions{
		CacheSize: config.CacheSizeMB << 20,
	})
}

// ContextOptions derives the handle context options from config
func ContextOptions(config common.Config) *handle.ContextOptions {
	return &handle.ContextOptions{
		AllowOrphans: !config.StrictDependents,
	}
}
