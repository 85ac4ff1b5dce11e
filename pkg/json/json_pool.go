// Package json provides pooled JSON encoding and decoding backed by goccy/go-json.
//
// Decoders are configured with UseNumber so numeric values from the CRM pass
// through to the warehouse with their original text representation.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

// Number is a JSON number literal kept as text
type Number = gojson.Number

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetEncoder creates an encoder for w with HTML escaping disabled
func GetEncoder(w io.Writer) *gojson.Encoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}

// GetDecoder creates a decoder for r that keeps numbers as Number
func GetDecoder(r io.Reader) *gojson.Decoder {
	dec := gojson.NewDecoder(r)
	dec.UseNumber()
	return dec
}

// GetBuffer gets a pooled bytes.Buffer
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > 1024*1024 { // Don't pool very large buffers
		return
	}
	bufferPool.Put(buf)
}

// Marshal is a drop-in replacement for json.Marshal
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a drop-in replacement for json.Unmarshal
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// Decode reads a single JSON value from r into v, keeping numbers as Number
func Decode(r io.Reader, v interface{}) error {
	return GetDecoder(r).Decode(v)
}

// MarshalString marshals v and returns the compact JSON text
func MarshalString(v interface{}) (string, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)

	if err := GetEncoder(buf).Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// LineEncoder writes newline-delimited JSON, one value per line
type LineEncoder struct {
	encoder *gojson.Encoder
	count   int
}

// NewLineEncoder creates a line-delimited encoder over w
func NewLineEncoder(w io.Writer) *LineEncoder {
	return &LineEncoder{encoder: GetEncoder(w)}
}

// Encode writes v followed by a newline
func (le *LineEncoder) Encode(v interface{}) error {
	if err := le.encoder.Encode(v); err != nil {
		return err
	}
	le.count++
	return nil
}

// Count returns the number of values written so far
func (le *LineEncoder) Count() int {
	return le.count
}

// MarshalLines marshals rows as newline-delimited JSON
func MarshalLines(rows []map[string]interface{}) ([]byte, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)

	le := NewLineEncoder(buf)
	for _, row := range rows {
		if err := le.Encode(row); err != nil {
			return nil, err
		}
	}

	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}
