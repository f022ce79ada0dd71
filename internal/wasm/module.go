package wasm

// Module is the section-level view of a decoded module.
type Module struct {
	Sections []RawSection
	Imports  []ImportEntry
	Exports  []ExportEntry
	// Memories lists the memories defined by the module itself.
	Memories []Limits
}

// Inspect decodes the section table of code together with its import,
// export and memory entries. Function bodies are not decoded.
func Inspect(code []byte) (*Module, error) {
	sections, err := readSections(code)
	if err != nil {
		return nil, err
	}
	m := &Module{Sections: sections}
	for _, s := range sections {
		switch s.ID {
		case SectionIDImport:
			if m.Imports, err = decodeImports(s); err != nil {
				return nil, err
			}
		case SectionIDExport:
			if m.Exports, err = decodeExports(s); err != nil {
				return nil, err
			}
		case SectionIDMemory:
			if m.Memories, err = decodeMemories(s); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// SectionsOf returns every section with the given id, in module order.
func (m *Module) SectionsOf(id SectionID) []RawSection {
	var out []RawSection
	for _, s := range m.Sections {
		if s.ID == id {
			out = append(out, s)
		}
	}
	return out
}

// ImportsOf returns the imports of the given kind.
func (m *Module) ImportsOf(kind External) []ImportEntry {
	var out []ImportEntry
	for _, e := range m.Imports {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// ExportsOf returns the exports of the given kind.
func (m *Module) ExportsOf(kind External) []ExportEntry {
	var out []ExportEntry
	for _, e := range m.Exports {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func decodeMemories(s RawSection) ([]Limits, error) {
	c := newCursor(s)
	count, err := c.u32("memory count")
	if err != nil {
		return nil, err
	}
	out := make([]Limits, 0, initialCap(count))
	for i := uint32(0); i < count; i++ {
		l, err := readLimits(c)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if !c.done() {
		return nil, malformed(c.offset(), "%d trailing bytes in memory section", len(c.buf)-c.pos)
	}
	return out, nil
}
