// Package wasm decodes and rewrites the WebAssembly binary container at the
// section level. Function bodies are never decoded.
package wasm

import (
	"encoding/binary"
	"fmt"

	"github.com/treasurydao/storagecost/internal/wasm/leb128"
	"github.com/treasurydao/storagecost/types"
)

const (
	Magic   uint32 = 0x6d736100
	Version uint32 = 0x1

	headerLen = 8
)

// SectionID is a 1-byte code that encodes the section code of both known and custom sections.
type SectionID uint8

const (
	SectionIDCustom    SectionID = 0
	SectionIDType      SectionID = 1
	SectionIDImport    SectionID = 2
	SectionIDFunction  SectionID = 3
	SectionIDTable     SectionID = 4
	SectionIDMemory    SectionID = 5
	SectionIDGlobal    SectionID = 6
	SectionIDExport    SectionID = 7
	SectionIDStart     SectionID = 8
	SectionIDElement   SectionID = 9
	SectionIDCode      SectionID = 10
	SectionIDData      SectionID = 11
	SectionIDDataCount SectionID = 12
)

var sectionNames = map[SectionID]string{
	SectionIDCustom:    "custom",
	SectionIDType:      "type",
	SectionIDImport:    "import",
	SectionIDFunction:  "function",
	SectionIDTable:     "table",
	SectionIDMemory:    "memory",
	SectionIDGlobal:    "global",
	SectionIDExport:    "export",
	SectionIDStart:     "start",
	SectionIDElement:   "element",
	SectionIDCode:      "code",
	SectionIDData:      "data",
	SectionIDDataCount: "datacount",
}

func (s SectionID) String() string {
	n, ok := sectionNames[s]
	if !ok {
		return "unknown"
	}
	return n
}

// order returns the position of the section in the canonical ordering, or 0
// for sections that may appear anywhere.
func (s SectionID) order() int {
	switch s {
	case SectionIDType, SectionIDImport, SectionIDFunction, SectionIDTable,
		SectionIDMemory, SectionIDGlobal, SectionIDExport, SectionIDStart, SectionIDElement:
		return int(s)
	case SectionIDDataCount:
		return 10
	case SectionIDCode:
		return 11
	case SectionIDData:
		return 12
	}
	return 0
}

// RawSection is a declared section in a WASM module.
type RawSection struct {
	ID SectionID
	// HeaderStart is the offset of the section id byte.
	HeaderStart int
	// Start and End delimit the section payload within the module bytes.
	Start int
	End   int
	// Bytes is the payload, without the id byte and the size prefix.
	Bytes []byte
}

// readHeader validates the magic number and version.
func readHeader(code []byte) error {
	if len(code) < headerLen {
		return malformed(0, "module is %d bytes, shorter than the %d byte header", len(code), headerLen)
	}
	if magic := binary.LittleEndian.Uint32(code[0:4]); magic != Magic {
		return malformed(0, "magic header not detected (got %#08x)", magic)
	}
	if version := binary.LittleEndian.Uint32(code[4:8]); version != Version {
		return malformed(4, "unknown binary version %d", version)
	}
	return nil
}

// readSections splits the module body into its sections. The payload slices
// alias code.
func readSections(code []byte) ([]RawSection, error) {
	if err := readHeader(code); err != nil {
		return nil, err
	}
	var sections []RawSection
	pos := headerLen
	for pos < len(code) {
		id := SectionID(code[pos])
		size, n, err := leb128.DecodeUint32(code[pos+1:])
		if err != nil {
			return nil, malformed(pos+1, "section %s size: %v", id, err)
		}
		start := pos + 1 + n
		end := start + int(size)
		if end > len(code) || end < start {
			return nil, malformed(pos, "section %s declares %d bytes but only %d remain", id, size, len(code)-start)
		}
		sections = append(sections, RawSection{ID: id, HeaderStart: pos, Start: start, End: end, Bytes: code[start:end]})
		pos = end
	}
	return sections, nil
}

// appendSection appends a section with a freshly computed size prefix.
func appendSection(out []byte, id SectionID, payload []byte) []byte {
	out = append(out, byte(id))
	out = leb128.AppendUint32(out, uint32(len(payload)))
	return append(out, payload...)
}

func header() []byte {
	b := make([]byte, headerLen)
	binary.LittleEndian.PutUint32(b[0:4], Magic)
	binary.LittleEndian.PutUint32(b[4:8], Version)
	return b
}

func malformed(offset int, format string, args ...interface{}) *types.MalformedModuleError {
	return &types.MalformedModuleError{Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

// cursor reads entries out of one section payload and reports errors at
// absolute module offsets.
type cursor struct {
	buf  []byte
	pos  int
	base int
}

func newCursor(s RawSection) *cursor {
	return &cursor{buf: s.Bytes, base: s.Start}
}

func (c *cursor) offset() int {
	return c.base + c.pos
}

func (c *cursor) done() bool {
	return c.pos >= len(c.buf)
}

func (c *cursor) u32(what string) (uint32, error) {
	v, n, err := leb128.DecodeUint32(c.buf[c.pos:])
	if err != nil {
		return 0, malformed(c.offset(), "%s: %v", what, err)
	}
	c.pos += n
	return v, nil
}

func (c *cursor) u64(what string) (uint64, error) {
	v, n, err := leb128.DecodeUint64(c.buf[c.pos:], 64)
	if err != nil {
		return 0, malformed(c.offset(), "%s: %v", what, err)
	}
	c.pos += n
	return v, nil
}

func (c *cursor) byte(what string) (byte, error) {
	if c.pos >= len(c.buf) {
		return 0, malformed(c.offset(), "%s: unexpected end of section", what)
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

func (c *cursor) name(what string) (string, error) {
	n, err := c.u32(what + " length")
	if err != nil {
		return "", err
	}
	if int(n) > len(c.buf)-c.pos {
		return "", malformed(c.offset(), "%s: %d bytes declared, %d remain", what, n, len(c.buf)-c.pos)
	}
	s := string(c.buf[c.pos : c.pos+int(n)])
	c.pos += int(n)
	return s, nil
}

// since returns the bytes consumed from mark up to the current position.
func (c *cursor) since(mark int) []byte {
	return c.buf[mark:c.pos]
}

func appendName(b []byte, s string) []byte {
	b = leb128.AppendUint32(b, uint32(len(s)))
	return append(b, s...)
}
