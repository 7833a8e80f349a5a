package db

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
)

// Compression names a block compression codec.
// Engines map the names they do not implement to the closest codec they have.
type Compression string

const (
	CompressionDefault Compression = ""
	CompressionNone    Compression = "none"
	CompressionSnappy  Compression = "snappy"
	CompressionZlib    Compression = "zlib"
	CompressionBzip2   Compression = "bzip2"
	CompressionLZ4     Compression = "lz4"
	CompressionLZ4HC   Compression = "lz4hc"
	CompressionZstd    Compression = "zstd"
)

// Option names accepted by Options.Set
const (
	OptCreateIfMissing      = "create_if_missing"
	OptErrorIfExists        = "error_if_exists"
	OptParanoidChecks       = "paranoid_checks"
	OptUseFsync             = "use_fsync"
	OptWriteBufferSize      = "write_buffer_size"
	OptMaxWriteBufferNumber = "max_write_buffer_number"
	OptTargetFileSizeBase   = "target_file_size_base"
	OptMaxOpenFiles         = "max_open_files"
	OptCompression          = "compression"
	OptReadOnly             = "readonly"
)

// Options configure how a database is opened.
// Zero values keep the engine defaults. Numeric sizes <= 0 are ignored.
type Options struct {
	CreateIfMissing      bool        `json:"create_if_missing"`
	ErrorIfExists        bool        `json:"error_if_exists"`
	ParanoidChecks       bool        `json:"paranoid_checks"`
	UseFsync             bool        `json:"use_fsync"`
	WriteBufferSize      int64       `json:"write_buffer_size" validate:"gte=0"`
	MaxWriteBufferNumber int         `json:"max_write_buffer_number" validate:"gte=0"`
	TargetFileSizeBase   int64       `json:"target_file_size_base" validate:"gte=0"`
	MaxOpenFiles         int         `json:"max_open_files" validate:"gte=-1"`
	Compression          Compression `json:"compression" validate:"omitempty,oneof=none snappy zlib bzip2 lz4 lz4hc zstd"`
	ReadOnly             bool        `json:"readonly"`
}

// validate is shared, creating a validator is expensive
var validate = validator.New()

// Validate checks the option values.
func (o *Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	if o.ReadOnly && o.ErrorIfExists {
		return fmt.Errorf("invalid options: %s and %s are mutually exclusive", OptReadOnly, OptErrorIfExists)
	}
	return nil
}

// Set assigns a single option from its textual form.
// Size options that are not positive are accepted but ignored, like the
// engine defaults they would replace.
func (o *Options) Set(name, value string) error {
	var err error
	switch name {
	case OptCreateIfMissing:
		o.CreateIfMissing, err = ParseBool(value)
	case OptErrorIfExists:
		o.ErrorIfExists, err = ParseBool(value)
	case OptParanoidChecks:
		o.ParanoidChecks, err = ParseBool(value)
	case OptUseFsync:
		o.UseFsync, err = ParseBool(value)
	case OptReadOnly:
		o.ReadOnly, err = ParseBool(value)
	case OptWriteBufferSize:
		o.WriteBufferSize, err = parsePositive64(value)
	case OptTargetFileSizeBase:
		o.TargetFileSizeBase, err = parsePositive64(value)
	case OptMaxWriteBufferNumber:
		var n int64
		n, err = parsePositive64(value)
		o.MaxWriteBufferNumber = int(n)
	case OptMaxOpenFiles:
		o.MaxOpenFiles, err = cast.ToIntE(strings.TrimSpace(value))
	case OptCompression:
		o.Compression, err = ParseCompression(value)
	default:
		return fmt.Errorf("unknown option: %s", name)
	}
	if err != nil {
		return fmt.Errorf("option %s: %w", name, err)
	}
	return nil
}

// ParseCompression converts a codec name. "no" is accepted as an alias of "none".
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(strings.TrimSpace(s))); c {
	case "no", CompressionNone:
		return CompressionNone, nil
	case CompressionSnappy, CompressionZlib, CompressionBzip2, CompressionLZ4, CompressionLZ4HC, CompressionZstd:
		return c, nil
	default:
		return CompressionDefault, fmt.Errorf("unknown compression type %q", s)
	}
}

// ParseBool accepts the usual spellings of a boolean:
// 1/0, true/false, yes/no, on/off (case-insensitive).
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	b, err := cast.ToBoolE(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return false, fmt.Errorf("expected boolean but got %q", s)
	}
	return b, nil
}

// parsePositive64 parses an integer; values <= 0 collapse to 0 (engine default)
func parsePositive64(s string) (int64, error) {
	n, err := cast.ToInt64E(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("expected integer but got %q", s)
	}
	if n < 0 {
		n = 0
	}
	return n, nil
}
