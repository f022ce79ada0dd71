package load

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treasurydao/storagecost/internal/testcontract"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	code := testcontract.DAO()

	plain := filepath.Join(dir, "dao.wasm")
	require.NoError(t, os.WriteFile(plain, code, 0o600))
	got, err := LoadFile(plain)
	require.NoError(t, err)
	assert.Equal(t, code, got)

	compressed, err := Compress(code)
	require.NoError(t, err)
	assert.NotEqual(t, code, compressed)

	for _, name := range []string{"dao.wasm.zst", "dao-compressed.wasm"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, compressed, 0o600))
		got, err = LoadFile(path)
		require.NoError(t, err, name)
		assert.Equal(t, code, got, name)
	}

	bad := filepath.Join(dir, "bad.wasm.zst")
	require.NoError(t, os.WriteFile(bad, code, 0o600))
	_, err = LoadFile(bad)
	require.Error(t, err)

	_, err = LoadFile(filepath.Join(dir, "missing.wasm"))
	require.Error(t, err)
}
