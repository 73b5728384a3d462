// Package responseformat writes run reports as JSON or MessagePack.
package responseformat

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Supported output formats
const (
	JSON    = "json"
	MsgPack = "msgpack"
)

// Formatter encodes values in one output format
type Formatter struct {
	format string
	indent bool
}

// NewFormatter creates a formatter for format, which must be "json" or
// "msgpack". An empty format means JSON.
func NewFormatter(format string) (*Formatter, error) {
	switch format {
	case "", JSON:
		return &Formatter{format: JSON, indent: true}, nil
	case MsgPack:
		return &Formatter{format: MsgPack}, nil
	}
	return nil, fmt.Errorf("unsupported output format %q. Use 'json' or 'msgpack'", format)
}

// Format returns the name of the output format
func (f *Formatter) Format() string {
	return f.format
}

// Write encodes data to w. MessagePack output uses the json struct tags so
// both formats carry the same field names.
func (f *Formatter) Write(w io.Writer, data any) error {
	if f.format == MsgPack {
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		return enc.Encode(data)
	}
	enc := json.NewEncoder(w)
	if f.indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(data)
}
