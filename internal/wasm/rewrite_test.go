package wasm

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"

	"github.com/treasurydao/storagecost/internal/wasm/leb128"
	"github.com/treasurydao/storagecost/types"
)

var (
	voidType = FuncType{}
	logType  = FuncType{Params: []ValueType{ValueTypeI64, ValueTypeI64}}
)

// sampleModule imports one function, defines and exports its own memory,
// and carries data and custom sections.
func sampleModule() []byte {
	b := NewModuleBuilder()
	logFn := b.ImportFunction(HostModule, "log_utf8", logType)
	body := []byte{0x42, 0x05, 0x42, 0x00, 0x10}
	body = leb128.AppendUint32(body, logFn)
	main := b.AddFunction(voidType, []ValueType{ValueTypeI32}, body)
	max := uint32(4)
	b.DefineMemory(2, &max)
	b.Export("main", ExternalFunction, main)
	b.Export("memory", ExternalMemory, 0)
	b.AddData(0, []byte("hello"))
	b.AddCustom("producers", []byte{0x00})
	return b.Build()
}

func assertRewritten(t *testing.T, out []byte) *Module {
	t.Helper()
	m, err := Inspect(out)
	require.NoError(t, err)

	mems := m.ImportsOf(ExternalMemory)
	require.Len(t, mems, 1)
	assert.Equal(t, HostModule, mems[0].ModuleName)
	assert.Equal(t, HostMemory, mems[0].FieldName)
	assert.Empty(t, m.ExportsOf(ExternalMemory))
	assert.Empty(t, m.Memories)
	require.Len(t, m.SectionsOf(SectionIDMemory), 1)

	last := 0
	for _, s := range m.Sections {
		if o := s.ID.order(); o != 0 {
			assert.Greater(t, o, last, "section %s out of order", s.ID)
			last = o
		}
	}

	_, err = wazero.NewRuntime(context.Background()).CompileModule(context.Background(), out)
	require.NoError(t, err)
	return m
}

func TestRewritePreservesOtherSections(t *testing.T) {
	in := sampleModule()
	out, err := Rewrite(in)
	require.NoError(t, err)
	m := assertRewritten(t, out)

	orig, err := Inspect(in)
	require.NoError(t, err)
	var kept []RawSection
	for _, s := range orig.Sections {
		switch s.ID {
		case SectionIDMemory, SectionIDImport, SectionIDExport:
			continue
		}
		kept = append(kept, s)
	}
	var got []RawSection
	for _, s := range m.Sections {
		switch s.ID {
		case SectionIDMemory, SectionIDImport, SectionIDExport:
			continue
		}
		got = append(got, s)
	}
	require.Len(t, got, len(kept))
	for i := range kept {
		assert.Equal(t, kept[i].ID, got[i].ID)
		assert.True(t, bytes.Equal(kept[i].Bytes, got[i].Bytes), "section %s changed", kept[i].ID)
	}

	// the function import survives ahead of the memory import
	require.Len(t, m.Imports, 2)
	assert.Equal(t, "log_utf8", m.Imports[0].FieldName)
	assert.Equal(t, ExternalFunction, m.Imports[0].Kind)
	exports := m.ExportsOf(ExternalFunction)
	require.Len(t, exports, 1)
	assert.Equal(t, "main", exports[0].FieldStr)
}

func TestRewriteMovesInterleavedMemoryImport(t *testing.T) {
	b := NewModuleBuilder()
	b.ImportFunction(HostModule, "log_utf8", logType)
	max := uint64(8)
	b.ImportMemory("other", "mem", Limits{Flags: 0x01, Min: 1, Max: &max})
	b.ImportFunction(HostModule, "value_return", logType)
	b.Export("mem", ExternalMemory, 0)
	in := b.Build()

	orig, err := Inspect(in)
	require.NoError(t, err)
	require.Len(t, orig.Imports, 3)
	require.Equal(t, ExternalMemory, orig.Imports[1].Kind)

	out, err := Rewrite(in)
	require.NoError(t, err)
	m := assertRewritten(t, out)

	require.Len(t, m.Imports, 3)
	assert.Equal(t, "log_utf8", m.Imports[0].FieldName)
	assert.Equal(t, "value_return", m.Imports[1].FieldName)
	assert.Equal(t, MemoryImport.FieldName, m.Imports[2].FieldName)
	assert.Equal(t, HostModule, m.Imports[2].ModuleName)
	// function imports keep their encoding
	assert.Equal(t, orig.Imports[0].Raw, m.Imports[0].Raw)
	assert.Equal(t, orig.Imports[2].Raw, m.Imports[1].Raw)
	assert.Empty(t, m.Exports)
}

func TestRewriteIsIdempotent(t *testing.T) {
	once, err := Rewrite(sampleModule())
	require.NoError(t, err)
	twice, err := Rewrite(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestRewriteSynthesizesSections(t *testing.T) {
	b := NewModuleBuilder()
	fn := b.AddFunction(voidType, nil, nil)
	b.Export("noop", ExternalFunction, fn)
	in := b.Build()

	orig, err := Inspect(in)
	require.NoError(t, err)
	require.Empty(t, orig.SectionsOf(SectionIDImport))
	require.Empty(t, orig.SectionsOf(SectionIDMemory))

	out, err := Rewrite(in)
	require.NoError(t, err)
	m := assertRewritten(t, out)
	require.Len(t, m.Imports, 1)

	ids := make([]SectionID, len(m.Sections))
	for i, s := range m.Sections {
		ids[i] = s.ID
	}
	assert.Equal(t, []SectionID{SectionIDType, SectionIDImport, SectionIDFunction, SectionIDMemory, SectionIDExport, SectionIDCode}, ids)
}

func TestRewriteHeaderOnly(t *testing.T) {
	out, err := Rewrite(header())
	require.NoError(t, err)
	m := assertRewritten(t, out)
	assert.Len(t, m.Sections, 2)
}

func TestRewriteKeepsPaddedSectionSize(t *testing.T) {
	// a custom section whose size uses a redundant 5-byte LEB128 encoding
	in := append(header(), 0x00, 0x83, 0x80, 0x80, 0x80, 0x00, 0x01, 'n', 0xff)
	out, err := Rewrite(in)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(out, in[headerLen:]))
}

func TestRewriteMalformed(t *testing.T) {
	valid := sampleModule()
	for name, tc := range map[string]struct {
		code   []byte
		offset int
	}{
		"empty":       {nil, 0},
		"bad magic":   {[]byte("\x00wasm\x01\x00\x00\x00"), 0},
		"bad version": {[]byte("\x00asm\x02\x00\x00\x00"), 4},
		"size past end": {
			append(header(), byte(SectionIDType), 0x10, 0x00), 8,
		},
		"truncated size": {
			append(header(), byte(SectionIDType), 0x80), 9,
		},
		"truncated module": {valid[:len(valid)-3], -1},
		"bad import kind": {
			append(header(), byte(SectionIDImport), 0x07, 0x01, 0x01, 'a', 0x01, 'b', 0x09, 0x00), -1,
		},
		"trailing export bytes": {
			append(header(), byte(SectionIDExport), 0x02, 0x00, 0x00), -1,
		},
		"bad limits flags": {
			append(header(), byte(SectionIDImport), 0x08, 0x01, 0x01, 'a', 0x01, 'b', 0x02, 0x09, 0x00), -1,
		},
	} {
		_, err := Rewrite(tc.code)
		var me *types.MalformedModuleError
		require.ErrorAs(t, err, &me, name)
		if tc.offset >= 0 {
			assert.Equal(t, tc.offset, me.Offset, name)
		}
	}
}

func TestInspectRoundTripsEntries(t *testing.T) {
	m, err := Inspect(sampleModule())
	require.NoError(t, err)
	require.Len(t, m.Memories, 1)
	assert.Equal(t, uint64(2), m.Memories[0].Min)
	require.NotNil(t, m.Memories[0].Max)
	assert.Equal(t, uint64(4), *m.Memories[0].Max)

	s := m.SectionsOf(SectionIDImport)[0]
	assert.Equal(t, s.Bytes, importEntriesPayload(m.Imports))
}

func importEntriesPayload(entries []ImportEntry) []byte {
	b := leb128.AppendUint32(nil, uint32(len(entries)))
	for _, e := range entries {
		b = e.AppendTo(b)
	}
	return b
}
