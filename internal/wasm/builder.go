package wasm

import (
	"fmt"

	"github.com/treasurydao/storagecost/internal/wasm/leb128"
)

// ValueType is a WebAssembly number type.
type ValueType byte

const (
	ValueTypeI32 ValueType = 0x7f
	ValueTypeI64 ValueType = 0x7e
	ValueTypeF32 ValueType = 0x7d
	ValueTypeF64 ValueType = 0x7c
)

// FuncType is a function signature.
type FuncType struct {
	Params  []ValueType
	Results []ValueType
}

func (f FuncType) equal(o FuncType) bool {
	if len(f.Params) != len(o.Params) || len(f.Results) != len(o.Results) {
		return false
	}
	for i := range f.Params {
		if f.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range f.Results {
		if f.Results[i] != o.Results[i] {
			return false
		}
	}
	return true
}

func (f FuncType) appendTo(b []byte) []byte {
	b = append(b, 0x60)
	b = leb128.AppendUint32(b, uint32(len(f.Params)))
	for _, p := range f.Params {
		b = append(b, byte(p))
	}
	b = leb128.AppendUint32(b, uint32(len(f.Results)))
	for _, r := range f.Results {
		b = append(b, byte(r))
	}
	return b
}

type function struct {
	typeIndex uint32
	locals    []ValueType
	body      []byte
}

type dataSegment struct {
	offset uint32
	data   []byte
}

type customSection struct {
	name string
	data []byte
}

// ModuleBuilder assembles a module from typed parts. Function imports must be
// added before any function is defined so that indices stay stable.
type ModuleBuilder struct {
	types     []FuncType
	imports   []ImportEntry
	funcs     []function
	memory    *Limits
	exports   []ExportEntry
	data      []dataSegment
	customs   []customSection
	importFns uint32
}

// NewModuleBuilder returns an empty builder.
func NewModuleBuilder() *ModuleBuilder {
	return &ModuleBuilder{}
}

// AddType returns the index of ft in the type section, adding it if needed.
func (b *ModuleBuilder) AddType(ft FuncType) uint32 {
	for i, t := range b.types {
		if t.equal(ft) {
			return uint32(i)
		}
	}
	b.types = append(b.types, ft)
	return uint32(len(b.types) - 1)
}

// ImportFunction declares a function import and returns its function index.
func (b *ModuleBuilder) ImportFunction(module, field string, ft FuncType) uint32 {
	if len(b.funcs) > 0 {
		panic(fmt.Errorf("wasm: function import %s.%s added after a function definition", module, field))
	}
	b.imports = append(b.imports, ImportEntry{
		ModuleName: module,
		FieldName:  field,
		Kind:       ExternalFunction,
		TypeIndex:  b.AddType(ft),
	})
	b.importFns++
	return b.importFns - 1
}

// ImportMemory declares a memory import.
func (b *ModuleBuilder) ImportMemory(module, field string, limits Limits) {
	b.imports = append(b.imports, ImportEntry{
		ModuleName: module,
		FieldName:  field,
		Kind:       ExternalMemory,
		Limits:     limits,
	})
}

// DefineMemory gives the module its own memory. max may be nil.
func (b *ModuleBuilder) DefineMemory(min uint32, max *uint32) {
	l := Limits{Min: uint64(min)}
	if max != nil {
		m := uint64(*max)
		l.Max = &m
	}
	b.memory = &l
}

// AddFunction defines a function and returns its function index. body is the
// instruction sequence without the final end opcode.
func (b *ModuleBuilder) AddFunction(ft FuncType, locals []ValueType, body []byte) uint32 {
	b.funcs = append(b.funcs, function{typeIndex: b.AddType(ft), locals: locals, body: body})
	return b.importFns + uint32(len(b.funcs)-1)
}

// Export exports the entity of the given kind and index under name.
func (b *ModuleBuilder) Export(name string, kind External, index uint32) {
	b.exports = append(b.exports, ExportEntry{FieldStr: name, Kind: kind, Index: index})
}

// AddData places data at offset in memory 0 when the module is instantiated.
func (b *ModuleBuilder) AddData(offset uint32, data []byte) {
	b.data = append(b.data, dataSegment{offset: offset, data: data})
}

// AddCustom appends a custom section.
func (b *ModuleBuilder) AddCustom(name string, data []byte) {
	b.customs = append(b.customs, customSection{name: name, data: data})
}

// Build encodes the module. Empty sections are omitted.
func (b *ModuleBuilder) Build() []byte {
	out := header()

	if len(b.types) > 0 {
		p := leb128.AppendUint32(nil, uint32(len(b.types)))
		for _, t := range b.types {
			p = t.appendTo(p)
		}
		out = appendSection(out, SectionIDType, p)
	}
	if len(b.imports) > 0 {
		p := leb128.AppendUint32(nil, uint32(len(b.imports)))
		for _, e := range b.imports {
			p = e.AppendTo(p)
		}
		out = appendSection(out, SectionIDImport, p)
	}
	if len(b.funcs) > 0 {
		p := leb128.AppendUint32(nil, uint32(len(b.funcs)))
		for _, f := range b.funcs {
			p = leb128.AppendUint32(p, f.typeIndex)
		}
		out = appendSection(out, SectionIDFunction, p)
	}
	if b.memory != nil {
		p := leb128.AppendUint32(nil, 1)
		p = b.memory.appendTo(p)
		out = appendSection(out, SectionIDMemory, p)
	}
	if len(b.exports) > 0 {
		p := leb128.AppendUint32(nil, uint32(len(b.exports)))
		for _, e := range b.exports {
			p = e.AppendTo(p)
		}
		out = appendSection(out, SectionIDExport, p)
	}
	if len(b.funcs) > 0 {
		p := leb128.AppendUint32(nil, uint32(len(b.funcs)))
		for _, f := range b.funcs {
			entry := leb128.AppendUint32(nil, uint32(len(f.locals)))
			for _, l := range f.locals {
				entry = leb128.AppendUint32(entry, 1)
				entry = append(entry, byte(l))
			}
			entry = append(entry, f.body...)
			entry = append(entry, 0x0b)
			p = leb128.AppendUint32(p, uint32(len(entry)))
			p = append(p, entry...)
		}
		out = appendSection(out, SectionIDCode, p)
	}
	if len(b.data) > 0 {
		p := leb128.AppendUint32(nil, uint32(len(b.data)))
		for _, d := range b.data {
			p = append(p, 0x00, 0x41)
			p = leb128.AppendInt64(p, int64(int32(d.offset)))
			p = append(p, 0x0b)
			p = leb128.AppendUint32(p, uint32(len(d.data)))
			p = append(p, d.data...)
		}
		out = appendSection(out, SectionIDData, p)
	}
	for _, c := range b.customs {
		out = appendSection(out, SectionIDCustom, append(appendName(nil, c.name), c.data...))
	}
	return out
}
