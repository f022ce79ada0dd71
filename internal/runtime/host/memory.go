package host

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"unicode/utf16"

	"github.com/tetratelabs/wazero/api"

	"github.com/treasurydao/storagecost/types"
)

// nulTerminated is the length value meaning "scan up to the terminator".
const nulTerminated = math.MaxUint64

func (e *Environment) memory(fn string) api.Memory {
	if e.mem == nil {
		panic(types.NewInternalError(fn, "linear memory is not bound"))
	}
	return e.mem
}

// read copies length bytes at ptr out of linear memory.
func (e *Environment) read(fn string, ptr, length uint64) []byte {
	mem := e.memory(fn)
	if ptr > math.MaxUint32 || length > math.MaxUint32 {
		panic(types.NewInternalError(fn, "memory range %d+%d does not fit in 32 bits", ptr, length))
	}
	data, ok := mem.Read(uint32(ptr), uint32(length))
	if !ok {
		panic(types.NewInternalError(fn, "read of %d bytes at %d is out of bounds (memory size %d)", length, ptr, mem.Size()))
	}
	return append([]byte{}, data...)
}

func (e *Environment) write(fn string, ptr uint64, data []byte) {
	mem := e.memory(fn)
	if ptr > math.MaxUint32 || !mem.Write(uint32(ptr), data) {
		panic(types.NewInternalError(fn, "write of %d bytes at %d is out of bounds (memory size %d)", len(data), ptr, mem.Size()))
	}
}

// writeU128 stores b as two little-endian 64-bit words at ptr and ptr+8.
func (e *Environment) writeU128(fn string, ptr uint64, b types.Balance) {
	lo, hi := b.Halves()
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], lo)
	binary.LittleEndian.PutUint64(buf[8:], hi)
	e.write(fn, ptr, buf[:])
}

// tail returns the view of memory from ptr to the end.
func (e *Environment) tail(fn string, ptr uint64) []byte {
	mem := e.memory(fn)
	size := uint64(mem.Size())
	if ptr >= size {
		panic(types.NewInternalError(fn, "pointer %d is out of bounds (memory size %d)", ptr, size))
	}
	data, _ := mem.Read(uint32(ptr), uint32(size-ptr))
	return data
}

// readUTF8 reads a UTF-8 string. Invalid sequences are replaced.
func (e *Environment) readUTF8(fn string, length, ptr uint64) string {
	var data []byte
	if length == nulTerminated {
		rest := e.tail(fn, ptr)
		end := bytes.IndexByte(rest, 0)
		if end < 0 {
			panic(types.NewInternalError(fn, "string at %d is not NUL-terminated", ptr))
		}
		data = rest[:end]
	} else {
		data = e.read(fn, ptr, length)
	}
	return strings.ToValidUTF8(string(data), "�")
}

// readUTF16 reads a UTF-16LE string; length is in bytes.
func (e *Environment) readUTF16(fn string, length, ptr uint64) string {
	var data []byte
	if length == nulTerminated {
		rest := e.tail(fn, ptr)
		end := -1
		for i := 0; i+1 < len(rest); i += 2 {
			if rest[i] == 0 && rest[i+1] == 0 {
				end = i
				break
			}
		}
		if end < 0 {
			panic(types.NewInternalError(fn, "UTF-16 string at %d is not NUL-terminated", ptr))
		}
		data = rest[:end]
	} else {
		if length%2 != 0 {
			panic(types.NewInternalError(fn, "UTF-16 string at %d has odd byte length %d", ptr, length))
		}
		data = e.read(fn, ptr, length)
	}
	return decodeUTF16(data)
}

// readPrefixedUTF16 reads a string whose byte length is stored as a
// little-endian u32 immediately before ptr.
func (e *Environment) readPrefixedUTF16(fn string, ptr uint32) string {
	mem := e.memory(fn)
	if ptr < 4 {
		panic(types.NewInternalError(fn, "string pointer %d has no length prefix", ptr))
	}
	length, ok := mem.ReadUint32Le(ptr - 4)
	if !ok {
		panic(types.NewInternalError(fn, "length prefix at %d is out of bounds", ptr-4))
	}
	return decodeUTF16(e.read(fn, uint64(ptr), uint64(length&^1)))
}

func decodeUTF16(data []byte) string {
	units := make([]uint16, len(data)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(data[2*i:])
	}
	return string(utf16.Decode(units))
}
