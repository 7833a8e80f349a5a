package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsSet(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		check   func(t *testing.T, o Options)
		wantErr bool
	}{
		{name: OptCreateIfMissing, value: "1", check: func(t *testing.T, o Options) { assert.True(t, o.CreateIfMissing) }},
		{name: OptCreateIfMissing, value: "yes", check: func(t *testing.T, o Options) { assert.True(t, o.CreateIfMissing) }},
		{name: OptErrorIfExists, value: "true", check: func(t *testing.T, o Options) { assert.True(t, o.ErrorIfExists) }},
		{name: OptParanoidChecks, value: "on", check: func(t *testing.T, o Options) { assert.True(t, o.ParanoidChecks) }},
		{name: OptUseFsync, value: "off", check: func(t *testing.T, o Options) { assert.False(t, o.UseFsync) }},
		{name: OptReadOnly, value: "False", check: func(t *testing.T, o Options) { assert.False(t, o.ReadOnly) }},
		{name: OptWriteBufferSize, value: "4194304", check: func(t *testing.T, o Options) { assert.Equal(t, int64(4194304), o.WriteBufferSize) }},
		{name: OptWriteBufferSize, value: "-5", check: func(t *testing.T, o Options) { assert.Zero(t, o.WriteBufferSize) }},
		{name: OptMaxWriteBufferNumber, value: "3", check: func(t *testing.T, o Options) { assert.Equal(t, 3, o.MaxWriteBufferNumber) }},
		{name: OptTargetFileSizeBase, value: "1048576", check: func(t *testing.T, o Options) { assert.Equal(t, int64(1048576), o.TargetFileSizeBase) }},
		{name: OptMaxOpenFiles, value: "-1", check: func(t *testing.T, o Options) { assert.Equal(t, -1, o.MaxOpenFiles) }},
		{name: OptCompression, value: "no", check: func(t *testing.T, o Options) { assert.Equal(t, CompressionNone, o.Compression) }},
		{name: OptCompression, value: "LZ4HC", check: func(t *testing.T, o Options) { assert.Equal(t, CompressionLZ4HC, o.Compression) }},
		{name: OptCompression, value: "brotli", wantErr: true},
		{name: OptCreateIfMissing, value: "maybe", wantErr: true},
		{name: OptWriteBufferSize, value: "big", wantErr: true},
		{name: "block_size", value: "4096", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name+"="+tc.value, func(t *testing.T) {
			var o Options
			err := o.Set(tc.name, tc.value)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tc.check(t, o)
		})
	}
}

func TestOptionsValidate(t *testing.T) {
	valid := Options{CreateIfMissing: true, WriteBufferSize: 1 << 20, MaxOpenFiles: -1, Compression: CompressionSnappy}
	assert.NoError(t, valid.Validate())

	assert.NoError(t, (&Options{}).Validate())

	negative := Options{WriteBufferSize: -1}
	assert.Error(t, negative.Validate())

	badOpenFiles := Options{MaxOpenFiles: -2}
	assert.Error(t, badOpenFiles.Validate())

	badCompression := Options{Compression: "gzip"}
	assert.Error(t, badCompression.Validate())

	conflicting := Options{ReadOnly: true, ErrorIfExists: true}
	assert.Error(t, conflicting.Validate())
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"1", "true", "TRUE", "yes", "on", " t "} {
		b, err := ParseBool(s)
		require.NoError(t, err, s)
		assert.True(t, b, s)
	}
	for _, s := range []string{"0", "false", "no", "Off", "f"} {
		b, err := ParseBool(s)
		require.NoError(t, err, s)
		assert.False(t, b, s)
	}
	_, err := ParseBool("")
	assert.Error(t, err)
}
