package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/schema"
)

// sniffLen is how much of a file is inspected before deciding whether it is
// worth reading in full.
const sniffLen = 3072

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Kind tags the outcome of classifying a file.
type Kind int

const (
	KindText Kind = iota
	KindBinary
	KindUnreadable
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBinary:
		return "binary"
	default:
		return "unreadable"
	}
}

// Classification is the tagged result of inspecting one file. Contents is
// set only for KindText and Reason only for KindUnreadable.
type Classification struct {
	Kind     Kind
	Path     string
	Contents string
	MIME     string
	Size     int64
	Reason   string
}

// Builder reads candidate files and produces Documents.
type Builder struct {
	schema           *schema.Schema
	pathField        string
	contentField     string
	maxFileSize      int64
	indexBinaryNames bool
	logger           *slog.Logger
}

type Option func(*Builder)

// WithMaxFileSize bounds the bytes read per file. Zero means unbounded.
func WithMaxFileSize(n int64) Option {
	return func(b *Builder) {
		b.maxFileSize = n
	}
}

// WithBinaryNames makes binary files produce name-only documents instead
// of being skipped.
func WithBinaryNames(enabled bool) Option {
	return func(b *Builder) {
		b.indexBinaryNames = enabled
	}
}

// WithFields chooses which schema fields receive the canonical path and the
// file contents.
func WithFields(pathField, contentField string) Option {
	return func(b *Builder) {
		b.pathField = pathField
		b.contentField = contentField
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

func NewBuilder(s *schema.Schema, opts ...Option) *Builder {
	b := &Builder{
		schema:       s,
		pathField:    schema.TitleField,
		contentField: schema.BodyField,
		logger:       slog.Default().With("component", "document-builder"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// PathField is the schema field that receives the canonical path.
func (b *Builder) PathField() string {
	return b.pathField
}

// Classify decides whether path holds valid UTF-8 text. Failures are
// reported in the result, never returned.
func (b *Builder) Classify(path string) Classification {
	c := Classification{Path: path}
	abs, err := filepath.Abs(path)
	if err != nil {
		return unreadable(c, err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return unreadable(c, err)
	}
	c.Path = canonical

	f, err := os.Open(canonical)
	if err != nil {
		return unreadable(c, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return unreadable(c, err)
	}
	if !info.Mode().IsRegular() {
		return unreadable(c, fmt.Errorf("not a regular file"))
	}
	c.Size = info.Size()
	if b.maxFileSize > 0 && c.Size > b.maxFileSize {
		return unreadable(c, fmt.Errorf("size %d exceeds max file size %d", c.Size, b.maxFileSize))
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return unreadable(c, err)
	}
	head = head[:n]
	detected := mimetype.Detect(head)
	c.MIME = detected.String()

	prefix := head
	if n == sniffLen {
		prefix = trimPartialRune(head)
	}
	if !isTextMIME(detected) && !utf8.Valid(prefix) {
		c.Kind = KindBinary
		return c
	}

	var rest io.Reader = f
	if b.maxFileSize > 0 {
		rest = io.LimitReader(f, b.maxFileSize-int64(n)+1)
	}
	tail, err := io.ReadAll(rest)
	if err != nil {
		return unreadable(c, err)
	}
	data := append(head, tail...)
	if b.maxFileSize > 0 && int64(len(data)) > b.maxFileSize {
		return unreadable(c, fmt.Errorf("file grew past max file size %d", b.maxFileSize))
	}
	if !utf8.Valid(data) {
		c.Kind = KindBinary
		return c
	}
	c.Kind = KindText
	c.Contents = string(bytes.TrimPrefix(data, utf8BOM))
	return c
}

// Build classifies path and returns the document to index. ok is false when
// the file is skipped.
func (b *Builder) Build(path string) (Document, Classification, bool) {
	c := b.Classify(path)
	switch c.Kind {
	case KindText:
		return b.document(c.Path, c.Contents), c, true
	case KindBinary:
		if b.indexBinaryNames {
			return b.document(c.Path, ""), c, true
		}
		b.logger.Debug("skipping binary file", "path", c.Path, "mime", c.MIME)
		return nil, c, false
	default:
		b.logger.Warn("skipping unreadable file", "path", c.Path, "reason", c.Reason)
		return nil, c, false
	}
}

// document fills every indexed field so the result always conforms to the
// schema; fields the builder has no value for are empty.
func (b *Builder) document(path, contents string) Document {
	doc := make(Document, b.schema.Len())
	for _, f := range b.schema.Fields() {
		if f.Options.Has(schema.Indexed) {
			doc[f.Name] = ""
		}
	}
	if _, ok := b.schema.Field(b.pathField); ok {
		doc[b.pathField] = path
	}
	if _, ok := b.schema.Field(b.contentField); ok {
		doc[b.contentField] = contents
	}
	return doc
}

func unreadable(c Classification, err error) Classification {
	c.Kind = KindUnreadable
	c.Reason = err.Error()
	return c
}

func isTextMIME(m *mimetype.MIME) bool {
	for mime := m; mime != nil; mime = mime.Parent() {
		if mime.Is("text/plain") {
			return true
		}
	}
	return false
}

// trimPartialRune drops a multi-byte sequence cut off at the end of b.
func trimPartialRune(b []byte) []byte {
	for i := 1; i <= utf8.UTFMax && i <= len(b); i++ {
		if utf8.RuneStart(b[len(b)-i]) {
			if !utf8.FullRune(b[len(b)-i:]) {
				return b[:len(b)-i]
			}
			return b
		}
	}
	return b
}
