package common

import (
	"bytes"
	"os"
	"testing"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })

	l := CreateLogger("test")
	l.Infof("hidden")
	l.Warningf("disk %s is full", "a")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Regexp(t, `WARN  \| test +\| disk a is full\n$`, buf.String())

	l.SetLevel(logger.DEBUG)
	l.Debugf("visible")
	assert.Contains(t, buf.String(), "DEBUG | test")
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]logger.LogLevel{
		"debug": logger.DEBUG,
		"INFO":  logger.INFO,
		"warn":  logger.WARNING,
		"error": logger.ERROR,
	} {
		level, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, level, in)
	}

	_, err := ParseLogLevel("loud")
	assert.Error(t, err)
}
