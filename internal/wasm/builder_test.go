package wasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderTypesAreShared(t *testing.T) {
	b := NewModuleBuilder()
	a := b.AddType(logType)
	assert.Equal(t, a, b.AddType(FuncType{Params: []ValueType{ValueTypeI64, ValueTypeI64}}))
	assert.NotEqual(t, a, b.AddType(voidType))
}

func TestBuilderIndices(t *testing.T) {
	b := NewModuleBuilder()
	assert.Equal(t, uint32(0), b.ImportFunction("env", "a", voidType))
	assert.Equal(t, uint32(1), b.ImportFunction("env", "b", logType))
	b.ImportMemory("env", "memory", Limits{Min: 1})
	assert.Equal(t, uint32(2), b.AddFunction(voidType, nil, nil))
	assert.Equal(t, uint32(3), b.AddFunction(voidType, nil, nil))

	assert.Panics(t, func() { b.ImportFunction("env", "c", voidType) })

	m, err := Inspect(b.Build())
	require.NoError(t, err)
	require.Len(t, m.Imports, 3)
	assert.Equal(t, ExternalMemory, m.Imports[2].Kind)
	assert.Equal(t, uint64(1), m.Imports[2].Limits.Min)
	assert.Nil(t, m.Imports[2].Limits.Max)
}

func TestSectionIDString(t *testing.T) {
	assert.Equal(t, "datacount", SectionIDDataCount.String())
	assert.Equal(t, "unknown", SectionID(42).String())
	assert.Equal(t, "memory", ExternalMemory.String())
}
