// Package strings provides pooled string building for sfbridge: request URLs,
// form bodies, SOQL statements and formatted messages.
package strings

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unsafe"
)

// bytesToString converts a byte slice to a string without allocation. The
// result shares memory with b.
func bytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// Builder provides efficient string building over a reusable buffer
type Builder struct {
	buf []byte
}

func newBuilder(capacity int) *Builder {
	return &Builder{
		buf: make([]byte, 0, capacity),
	}
}

// WriteString appends a string to the builder
func (b *Builder) WriteString(s string) {
	b.buf = append(b.buf, s...)
}

// WriteByte appends a single byte
func (b *Builder) WriteByte(c byte) {
	b.buf = append(b.buf, c)
}

// Write implements io.Writer interface
func (b *Builder) Write(p []byte) (n int, err error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// String returns the built string using zero-copy conversion.
// The result is only valid until the builder is reset.
func (b *Builder) String() string {
	return bytesToString(b.buf)
}

// Len returns the length of the built string
func (b *Builder) Len() int {
	return len(b.buf)
}

// Reset resets the builder for reuse
func (b *Builder) Reset() {
	b.buf = b.buf[:0]
}

// Clone creates a copy of a string that does not share memory with the input
func Clone(s string) string {
	return strings.Clone(s)
}

var (
	// Small strings (< 1KB): URLs, messages, short queries
	smallBuilderPool = &sync.Pool{
		New: func() interface{} {
			return newBuilder(1024)
		},
	}

	// Medium strings (1KB - 16KB): custom object projections
	mediumBuilderPool = &sync.Pool{
		New: func() interface{} {
			return newBuilder(16 * 1024)
		},
	}

	// Large strings (16KB+): very wide objects
	largeBuilderPool = &sync.Pool{
		New: func() interface{} {
			return newBuilder(64 * 1024)
		},
	}
)

// BuilderSize represents different builder sizes
type BuilderSize int

const (
	Small  BuilderSize = iota // < 1KB
	Medium                    // 1KB - 16KB
	Large                     // 16KB+
)

func poolFor(size BuilderSize) *sync.Pool {
	switch size {
	case Medium:
		return mediumBuilderPool
	case Large:
		return largeBuilderPool
	default:
		return smallBuilderPool
	}
}

// sizeFor picks the pool bucket for an estimated output length
func sizeFor(estimated int) BuilderSize {
	switch {
	case estimated > 16*1024:
		return Large
	case estimated > 1024:
		return Medium
	default:
		return Small
	}
}

// GetBuilder retrieves a pooled builder of the specified size
func GetBuilder(size BuilderSize) *Builder {
	builder := poolFor(size).Get().(*Builder)
	builder.Reset()
	return builder
}

// PutBuilder returns a builder to the appropriate pool
func PutBuilder(builder *Builder, size BuilderSize) {
	if builder == nil {
		return
	}
	builder.Reset()
	poolFor(size).Put(builder)
}

// Concat efficiently concatenates strings using pooled builder
func Concat(parts ...string) string {
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}

	totalLen := 0
	for _, s := range parts {
		totalLen += len(s)
	}

	size := sizeFor(totalLen)
	builder := GetBuilder(size)
	defer PutBuilder(builder, size)

	for _, s := range parts {
		builder.WriteString(s)
	}

	return Clone(builder.String())
}

// Sprintf provides a pooled alternative to fmt.Sprintf
func Sprintf(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}

	size := sizeFor(len(format) + len(args)*16)
	builder := GetBuilder(size)
	defer PutBuilder(builder, size)

	fmt.Fprintf(builder, format, args...)

	return Clone(builder.String())
}

// JoinPooled efficiently joins strings using pooled builder
func JoinPooled(parts []string, delimiter string) string {
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}

	totalLen := (len(parts) - 1) * len(delimiter)
	for _, s := range parts {
		totalLen += len(s)
	}

	size := sizeFor(totalLen)
	builder := GetBuilder(size)
	defer PutBuilder(builder, size)

	builder.WriteString(parts[0])
	for i := 1; i < len(parts); i++ {
		builder.WriteString(delimiter)
		builder.WriteString(parts[i])
	}

	return Clone(builder.String())
}

// URLBuilder provides pooled URL and form body building
type URLBuilder struct {
	builder   *Builder
	size      BuilderSize
	hasParams bool
}

// NewURLBuilder creates a new URL builder
func NewURLBuilder(baseURL string) *URLBuilder {
	size := sizeFor(len(baseURL))
	builder := GetBuilder(size)
	builder.WriteString(strings.TrimRight(baseURL, "/"))

	return &URLBuilder{
		builder:   builder,
		size:      size,
		hasParams: strings.Contains(baseURL, "?"),
	}
}

// AddPath adds escaped path segments to the URL
func (ub *URLBuilder) AddPath(segments ...string) *URLBuilder {
	for _, segment := range segments {
		if segment != "" {
			ub.builder.WriteByte('/')
			ub.builder.WriteString(urlPathEscape(segment))
		}
	}
	return ub
}

// AddRawPath appends an already-escaped path as is
func (ub *URLBuilder) AddRawPath(path string) *URLBuilder {
	ub.builder.WriteString(path)
	return ub
}

// AddParam adds a URL parameter (with proper encoding)
func (ub *URLBuilder) AddParam(key, value string) *URLBuilder {
	if ub.hasParams {
		ub.builder.WriteByte('&')
	} else {
		ub.builder.WriteByte('?')
		ub.hasParams = true
	}

	ub.builder.WriteString(urlQueryEscape(key))
	ub.builder.WriteByte('=')
	ub.builder.WriteString(urlQueryEscape(value))

	return ub
}

// String returns the built URL
func (ub *URLBuilder) String() string {
	return Clone(ub.builder.String())
}

// Close releases the builder back to the pool
func (ub *URLBuilder) Close() {
	if ub.builder != nil {
		PutBuilder(ub.builder, ub.size)
		ub.builder = nil
	}
}

// urlQueryEscape escapes a string for use in URL query parameters
func urlQueryEscape(s string) string {
	needEscape := false
	for i := 0; i < len(s); i++ {
		if !isURLSafe(s[i]) {
			needEscape = true
			break
		}
	}

	if !needEscape {
		return s
	}

	builder := GetBuilder(Small)
	defer PutBuilder(builder, Small)

	for i := 0; i < len(s); i++ {
		c := s[i]
		if isURLSafe(c) {
			builder.WriteByte(c)
		} else if c == ' ' {
			builder.WriteByte('+')
		} else {
			builder.WriteByte('%')
			builder.WriteByte("0123456789ABCDEF"[c>>4])
			builder.WriteByte("0123456789ABCDEF"[c&15])
		}
	}

	return Clone(builder.String())
}

// urlPathEscape escapes a string for use in a single URL path segment
func urlPathEscape(s string) string {
	needEscape := false
	for i := 0; i < len(s); i++ {
		if !isURLPathSafe(s[i]) {
			needEscape = true
			break
		}
	}

	if !needEscape {
		return s
	}

	builder := GetBuilder(Small)
	defer PutBuilder(builder, Small)

	for i := 0; i < len(s); i++ {
		c := s[i]
		if isURLPathSafe(c) {
			builder.WriteByte(c)
		} else {
			builder.WriteByte('%')
			builder.WriteByte("0123456789ABCDEF"[c>>4])
			builder.WriteByte("0123456789ABCDEF"[c&15])
		}
	}

	return Clone(builder.String())
}

func isURLSafe(c byte) bool {
	return (c >= 'A' && c <= 'Z') ||
		(c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.' || c == '~'
}

// isURLPathSafe excludes '/' so a segment cannot introduce extra path levels
func isURLPathSafe(c byte) bool {
	return isURLSafe(c) ||
		c == ':' || c == '@' || c == '!' ||
		c == '$' || c == '&' || c == '\'' || c == '(' ||
		c == ')' || c == '*' || c == '+' || c == ',' ||
		c == ';' || c == '='
}

// QueryBuilder provides pooled building of SOQL statements
type QueryBuilder struct {
	builder *Builder
	size    BuilderSize
}

// NewQueryBuilder creates a new query builder sized for the estimated length
func NewQueryBuilder(estimatedLength int) *QueryBuilder {
	size := sizeFor(estimatedLength)
	return &QueryBuilder{
		builder: GetBuilder(size),
		size:    size,
	}
}

// WriteQuery writes a query fragment verbatim
func (qb *QueryBuilder) WriteQuery(fragment string) *QueryBuilder {
	qb.builder.WriteString(fragment)
	return qb
}

// WriteSpace adds a space
func (qb *QueryBuilder) WriteSpace() *QueryBuilder {
	qb.builder.WriteByte(' ')
	return qb
}

// WriteList writes items separated by delimiter
func (qb *QueryBuilder) WriteList(items []string, delimiter string) *QueryBuilder {
	for i, item := range items {
		if i > 0 {
			qb.builder.WriteString(delimiter)
		}
		qb.builder.WriteString(item)
	}
	return qb
}

// String returns the built statement
func (qb *QueryBuilder) String() string {
	return Clone(qb.builder.String())
}

// Close releases the builder back to the pool
func (qb *QueryBuilder) Close() {
	if qb.builder != nil {
		PutBuilder(qb.builder, qb.size)
		qb.builder = nil
	}
}

// ValueToString converts scalar values to strings without going through fmt
func ValueToString(value interface{}) string {
	if value == nil {
		return ""
	}

	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return Sprintf("%v", value)
	}
}
