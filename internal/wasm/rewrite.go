package wasm

import (
	"github.com/treasurydao/storagecost/internal/wasm/leb128"
)

const (
	// HostModule is the import namespace the host satisfies.
	HostModule = "env"
	// HostMemory is the field name of the host-provided linear memory.
	HostMemory = "memory"
)

// MemoryImport is the synthetic import entry appended by Rewrite: env.memory
// with an initial size of one page and no declared maximum.
var MemoryImport = ImportEntry{
	ModuleName: HostModule,
	FieldName:  HostMemory,
	Kind:       ExternalMemory,
	Limits:     Limits{Min: 1},
}

// Rewrite returns a copy of code in which the module's own memory definition
// is removed, memory exports are dropped, and the memory is instead imported
// as env.memory. Every other section is copied through byte for byte.
//
// If code has no import or memory section, one is synthesized at its
// canonical position so that the output always declares the memory import
// and an empty memory section.
func Rewrite(code []byte) ([]byte, error) {
	sections, err := readSections(code)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(code)+32)
	out = append(out, header()...)

	var sawImport, sawMemory bool
	emitPending := func(next SectionID) {
		order := next.order()
		if order == 0 {
			return
		}
		if !sawImport && order > SectionIDImport.order() {
			out = appendSection(out, SectionIDImport, importPayload(nil))
			sawImport = true
		}
		if !sawMemory && order > SectionIDMemory.order() {
			out = appendSection(out, SectionIDMemory, memoryPayload())
			sawMemory = true
		}
	}

	for _, s := range sections {
		emitPending(s.ID)
		switch s.ID {
		case SectionIDMemory:
			out = appendSection(out, SectionIDMemory, memoryPayload())
			sawMemory = true
		case SectionIDImport:
			imports, err := decodeImports(s)
			if err != nil {
				return nil, err
			}
			out = appendSection(out, SectionIDImport, importPayload(imports))
			sawImport = true
		case SectionIDExport:
			exports, err := decodeExports(s)
			if err != nil {
				return nil, err
			}
			out = appendSection(out, SectionIDExport, exportPayload(exports))
		default:
			out = append(out, code[s.HeaderStart:s.End]...)
		}
	}
	if !sawImport {
		out = appendSection(out, SectionIDImport, importPayload(nil))
	}
	if !sawMemory {
		out = appendSection(out, SectionIDMemory, memoryPayload())
	}
	return out, nil
}

// importPayload keeps every non-memory import in order, then appends the
// synthetic memory import.
func importPayload(entries []ImportEntry) []byte {
	kept := make([]ImportEntry, 0, len(entries)+1)
	for _, e := range entries {
		if e.Kind == ExternalMemory {
			continue
		}
		kept = append(kept, e)
	}
	kept = append(kept, MemoryImport)

	b := leb128.AppendUint32(nil, uint32(len(kept)))
	for _, e := range kept {
		b = e.AppendTo(b)
	}
	return b
}

// exportPayload drops every memory export.
func exportPayload(entries []ExportEntry) []byte {
	kept := make([]ExportEntry, 0, len(entries))
	for _, e := range entries {
		if e.Kind == ExternalMemory {
			continue
		}
		kept = append(kept, e)
	}
	b := leb128.AppendUint32(nil, uint32(len(kept)))
	for _, e := range kept {
		b = e.AppendTo(b)
	}
	return b
}

// memoryPayload declares zero local memories.
func memoryPayload() []byte {
	return []byte{0x00}
}
