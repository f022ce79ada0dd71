package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treasurydao/storagecost"
	"github.com/treasurydao/storagecost/internal/load"
	"github.com/treasurydao/storagecost/internal/testcontract"
	"github.com/treasurydao/storagecost/internal/wasm"
	"github.com/treasurydao/storagecost/types"
)

const testConfigYAML = `
host:
  initial_memory_pages: 2
  max_memory_pages: 16
parallelism: 1
`

type fixture struct {
	dir    string
	module string
	config string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:    dir,
		module: filepath.Join(dir, "dao.wasm"),
		config: filepath.Join(dir, "config.yaml"),
	}
	require.NoError(t, os.WriteFile(f.module, testcontract.DAO(), 0o600))
	require.NoError(t, os.WriteFile(f.config, []byte(testConfigYAML), 0o600))
	return f
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := configureCLI(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestEstimateCommand(t *testing.T) {
	f := newFixture(t)

	out, err := run(t, "estimate", "--config", f.config, f.module, "approve", "reject")
	require.NoError(t, err)
	assert.Equal(t, "approve\t45\nreject\t44\n", out)

	out, err = run(t, "estimate", "--config", f.config, "--dump-storage", f.module, "poll")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "baseline: 1 entries, 141 bytes\n"), out)
	assert.Contains(t, out, `"cfg" = `)

	_, err = run(t, "estimate", "--config", f.config, f.module, "mint")
	require.ErrorContains(t, err, `unknown operation "mint"`)

	_, err = run(t, "estimate", "--config", f.config, "--crypto", "quantum", f.module, "poll")
	require.ErrorContains(t, err, "host.crypto")

	_, err = run(t, "estimate", "--log-level", "chatty", "--config", f.config, f.module, "poll")
	require.ErrorContains(t, err, "--log-level")
}

func TestReportCommand(t *testing.T) {
	f := newFixture(t)
	labels := make([]string, 0)
	for _, d := range storagecost.DefaultMenu(types.DefaultEstimatorConfig()) {
		labels = append(labels, d.Description)
	}

	out, err := run(t, "report", "--config", f.config, "--format", "json", f.module)
	require.NoError(t, err)
	var report types.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report, len(labels))
	for i, row := range report {
		assert.Equal(t, labels[i], row.Operation)
		assert.NotZero(t, row.Bytes, row.Operation)
	}
	approve, ok := report.Get(storagecost.LabelVoteApprove)
	require.True(t, ok)
	assert.EqualValues(t, 45, approve)

	parallel, err := run(t, "report", "--config", f.config, "--parallelism", "3", "--format", "json", f.module)
	require.NoError(t, err)
	assert.JSONEq(t, out, parallel)

	out, err = run(t, "report", "--config", f.config, "--format", "csv", f.module)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, len(labels)+1)
	assert.Equal(t, "operation,method,bytes", lines[0])
	assert.Equal(t, storagecost.LabelVoteApprove+",act_proposal,45", lines[len(lines)-3])

	out, err = run(t, "report", "--config", f.config, f.module)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "OPERATION"), out)
	assert.Contains(t, out, storagecost.LabelPoll)

	_, err = run(t, "report", "--config", f.config, "--format", "xml", f.module)
	require.ErrorContains(t, err, "unknown format")
}

func TestRewriteCommand(t *testing.T) {
	f := newFixture(t)
	out := filepath.Join(f.dir, "rewritten.wasm")

	_, err := run(t, "rewrite", "-o", out, f.module)
	require.NoError(t, err)
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, testcontract.Rewritten(), got)

	stdout, err := run(t, "rewrite", f.module)
	require.NoError(t, err)
	assert.Equal(t, string(testcontract.Rewritten()), stdout)

	compressed := filepath.Join(f.dir, "rewritten.wasm.zst")
	_, err = run(t, "rewrite", "--zstd", "-o", compressed, f.module)
	require.NoError(t, err)
	got, err = load.LoadFile(compressed)
	require.NoError(t, err)
	assert.Equal(t, testcontract.Rewritten(), got)

	// Compressed modules are accepted as input.
	stdout, err = run(t, "rewrite", compressed)
	require.NoError(t, err)
	assert.Equal(t, string(testcontract.Rewritten()), stdout)

	bad := filepath.Join(f.dir, "bad.wasm")
	require.NoError(t, os.WriteFile(bad, []byte("not a module"), 0o600))
	_, err = run(t, "rewrite", bad)
	var malformed *types.MalformedModuleError
	require.ErrorAs(t, err, &malformed)
}

func TestInspectCommand(t *testing.T) {
	f := newFixture(t)

	out, err := run(t, "inspect", f.module)
	require.NoError(t, err)
	assert.Contains(t, out, "memories:")
	assert.Contains(t, out, "add_proposal function")
	assert.Contains(t, out, "memory memory 0")

	out, err = run(t, "inspect", "--rewritten", f.module)
	require.NoError(t, err)
	assert.Contains(t, out, wasm.HostModule+"."+wasm.HostMemory+" memory")
	assert.NotContains(t, out, "memories:")
	assert.NotContains(t, out, "\n  memory memory")
}
