package wasm

import (
	"fmt"

	"github.com/treasurydao/storagecost/internal/wasm/leb128"
)

// External is the kind of an imported or exported entity.
type External uint8

const (
	ExternalFunction External = 0
	ExternalTable    External = 1
	ExternalMemory   External = 2
	ExternalGlobal   External = 3
	ExternalTag      External = 4
)

func (e External) String() string {
	switch e {
	case ExternalFunction:
		return "function"
	case ExternalTable:
		return "table"
	case ExternalMemory:
		return "memory"
	case ExternalGlobal:
		return "global"
	case ExternalTag:
		return "tag"
	}
	return fmt.Sprintf("external(%d)", uint8(e))
}

// Limits is a table or memory size descriptor, in elements or pages.
type Limits struct {
	Flags byte
	Min   uint64
	Max   *uint64
}

func (l Limits) String() string {
	if l.Max == nil {
		return fmt.Sprintf("min=%d", l.Min)
	}
	return fmt.Sprintf("min=%d max=%d", l.Min, *l.Max)
}

// ImportEntry describes an import statement in a Wasm module.
type ImportEntry struct {
	ModuleName string
	FieldName  string
	Kind       External

	// TypeIndex is set for function and tag imports.
	TypeIndex uint32
	// Limits is set for table and memory imports.
	Limits Limits

	// Raw is the entry exactly as it was encoded in the input.
	Raw []byte
}

// ExportEntry represents an exported entry by the module
type ExportEntry struct {
	FieldStr string
	Kind     External
	Index    uint32

	Raw []byte
}

func readLimits(c *cursor) (Limits, error) {
	var l Limits
	flags, err := c.byte("limits flags")
	if err != nil {
		return l, err
	}
	if flags > 0x07 {
		return l, malformed(c.offset()-1, "invalid limits flags %#x", flags)
	}
	l.Flags = flags
	if l.Min, err = c.u64("limits minimum"); err != nil {
		return l, err
	}
	if flags&0x01 != 0 {
		max, err := c.u64("limits maximum")
		if err != nil {
			return l, err
		}
		l.Max = &max
	}
	return l, nil
}

func readImportEntry(c *cursor) (ImportEntry, error) {
	var (
		e   ImportEntry
		err error
	)
	mark := c.pos
	if e.ModuleName, err = c.name("import module name"); err != nil {
		return e, err
	}
	if e.FieldName, err = c.name("import field name"); err != nil {
		return e, err
	}
	kind, err := c.byte("import kind")
	if err != nil {
		return e, err
	}
	e.Kind = External(kind)

	switch e.Kind {
	case ExternalFunction:
		e.TypeIndex, err = c.u32("function import type index")
	case ExternalTable:
		if _, err = c.byte("table import element type"); err == nil {
			e.Limits, err = readLimits(c)
		}
	case ExternalMemory:
		e.Limits, err = readLimits(c)
	case ExternalGlobal:
		if _, err = c.byte("global import value type"); err == nil {
			_, err = c.byte("global import mutability")
		}
	case ExternalTag:
		if _, err = c.byte("tag import attribute"); err == nil {
			e.TypeIndex, err = c.u32("tag import type index")
		}
	default:
		return e, malformed(c.offset()-1, "import %s.%s has invalid external kind %d", e.ModuleName, e.FieldName, kind)
	}
	if err != nil {
		return e, err
	}
	e.Raw = c.since(mark)
	return e, nil
}

func readExportEntry(c *cursor) (ExportEntry, error) {
	var (
		e   ExportEntry
		err error
	)
	mark := c.pos
	if e.FieldStr, err = c.name("export name"); err != nil {
		return e, err
	}
	kind, err := c.byte("export kind")
	if err != nil {
		return e, err
	}
	e.Kind = External(kind)
	if e.Kind > ExternalTag {
		return e, malformed(c.offset()-1, "export %s has invalid external kind %d", e.FieldStr, kind)
	}
	if e.Index, err = c.u32("export index"); err != nil {
		return e, err
	}
	e.Raw = c.since(mark)
	return e, nil
}

// decodeImports parses every entry of an import section payload.
func decodeImports(s RawSection) ([]ImportEntry, error) {
	c := newCursor(s)
	count, err := c.u32("import count")
	if err != nil {
		return nil, err
	}
	entries := make([]ImportEntry, 0, initialCap(count))
	for i := uint32(0); i < count; i++ {
		e, err := readImportEntry(c)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if !c.done() {
		return nil, malformed(c.offset(), "%d trailing bytes in import section", len(c.buf)-c.pos)
	}
	return entries, nil
}

// decodeExports parses every entry of an export section payload.
func decodeExports(s RawSection) ([]ExportEntry, error) {
	c := newCursor(s)
	count, err := c.u32("export count")
	if err != nil {
		return nil, err
	}
	entries := make([]ExportEntry, 0, initialCap(count))
	for i := uint32(0); i < count; i++ {
		e, err := readExportEntry(c)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if !c.done() {
		return nil, malformed(c.offset(), "%d trailing bytes in export section", len(c.buf)-c.pos)
	}
	return entries, nil
}

// initialCap bounds preallocation so a corrupt count cannot exhaust memory.
func initialCap(count uint32) uint32 {
	if count > 1024 {
		return 1024
	}
	return count
}

// AppendTo encodes the entry. Entries read from a module are re-emitted
// from Raw unchanged.
func (e ImportEntry) AppendTo(b []byte) []byte {
	if e.Raw != nil {
		return append(b, e.Raw...)
	}
	b = appendName(b, e.ModuleName)
	b = appendName(b, e.FieldName)
	b = append(b, byte(e.Kind))
	switch e.Kind {
	case ExternalFunction:
		b = leb128.AppendUint32(b, e.TypeIndex)
	case ExternalMemory:
		b = e.Limits.appendTo(b)
	}
	return b
}

// AppendTo encodes the entry.
func (e ExportEntry) AppendTo(b []byte) []byte {
	if e.Raw != nil {
		return append(b, e.Raw...)
	}
	b = appendName(b, e.FieldStr)
	b = append(b, byte(e.Kind))
	return leb128.AppendUint32(b, e.Index)
}

func (l Limits) appendTo(b []byte) []byte {
	if l.Max == nil {
		b = append(b, l.Flags&^0x01)
		return leb128.AppendUint64(b, l.Min)
	}
	b = append(b, l.Flags|0x01)
	b = leb128.AppendUint64(b, l.Min)
	return leb128.AppendUint64(b, *l.Max)
}
