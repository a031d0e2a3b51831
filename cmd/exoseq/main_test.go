package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/exoseq/internal/partition"
	"github.com/ajitpratap0/exoseq/pkg/seqfile"
	"github.com/ajitpratap0/exoseq/pkg/testutil"
	"github.com/ajitpratap0/exoseq/pkg/typedbytes"
)

// execute runs the command line and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root, a := newRootCmd(&stdout, &stderr)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	require.NoError(t, a.teardown(context.Background()))
	return stdout.String(), stderr.String(), err
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteExodus(t, dir, "heat.e", testutil.Cube(25, "TEMP", "PRESSURE"))
	out := t.TempDir()

	stdout, _, err := execute(t, "convert", "10", input, out, "--variables", "TEMP,PRESSURE", "--compression", "lz4")
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote 3 partitions of 25 time steps")

	entries, total, err := partition.ReadIndex(filepath.Join(out, partition.IndexName))
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	assert.Equal(t, "heat_part0.seq", entries[0].Name)

	stdout, _, err = execute(t, "inspect", "--max-records", "4", filepath.Join(out, partition.IndexName))
	require.NoError(t, err)
	assert.Contains(t, stdout, "compression: lz4")
	assert.Contains(t, stdout, "total")
	assert.Contains(t, stdout, "records: 4")
	assert.Contains(t, stdout, "index: 3 partitions, 25 time steps")

	stdout, _, err = execute(t, "inspect", filepath.Join(out, "heat_part2.seq"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "compression: lz4")
	assert.Contains(t, stdout, "coord_z")
	assert.Contains(t, stdout, "records: 8")
}

func TestInspectRejectsBadIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), partition.IndexName)
	w, err := seqfile.Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(typedbytes.String("heat_part0.seq"), typedbytes.Int(10)))
	require.NoError(t, w.Append(typedbytes.String("heat_part1.seq"), typedbytes.Int(10)))
	require.NoError(t, w.Append(typedbytes.String(partition.SummaryName), typedbytes.Int(25)))
	require.NoError(t, w.Close())

	stdout, _, err := execute(t, "inspect", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
	assert.Contains(t, stdout, "records: 3")
}

func TestConvertSkip(t *testing.T) {
	input := testutil.WriteExodus(t, t.TempDir(), "short.e", testutil.Cube(5, "TEMP"))
	out := t.TempDir()

	stdout, stderr, err := execute(t, "convert", "10", input, out)
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "nothing to do")

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestConvertUsage(t *testing.T) {
	stdout, stderr, err := execute(t, "convert", "10", "only-input.e")
	require.Error(t, err)
	assert.Contains(t, stdout+stderr, "Usage:")

	_, _, err = execute(t, "convert", "zero", "in.e", t.TempDir())
	require.Error(t, err)

	_, _, err = execute(t, "convert", "10", "in.e", filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}

func TestConvertEnvironment(t *testing.T) {
	input := testutil.WriteExodus(t, t.TempDir(), "heat.e", testutil.Cube(10, "PRESSURE"))
	out := t.TempDir()

	_, _, err := execute(t, "convert", "10", input, out)
	require.Error(t, err, "TEMP is the default variable")

	t.Setenv("EXOSEQ_CONVERSION_VARIABLES", "PRESSURE")
	_, _, err = execute(t, "convert", "10", input, out)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(out, "heat_part0.seq"))
}

func TestBatchCommand(t *testing.T) {
	dir := t.TempDir()
	heat := testutil.WriteExodus(t, dir, "heat.e", testutil.Cube(12, "TEMP"))
	short := testutil.WriteExodus(t, dir, "short.e", testutil.Cube(4, "TEMP"))
	list := filepath.Join(dir, "inputs.txt")
	require.NoError(t, os.WriteFile(list, []byte("0\t"+heat+"\n\n20\t"+short+"\n"), 0o644))
	out := t.TempDir()

	stdout, _, err := execute(t, "batch",
		"--timesteps", "10",
		"--outdir", out,
		"--work-dir", filepath.Join(t.TempDir(), "work"),
		"--workers", "2",
		"--variables", "TEMP",
		list)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	assert.Equal(t, []string{heat + "\t0", short + "\t0", "failures\t0"}, lines)
	assert.FileExists(t, filepath.Join(out, "heat", "heat_part1.seq"))
	assert.NoDirExists(t, filepath.Join(out, "short"))
}

func TestBatchFailures(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.e")
	list := filepath.Join(dir, "inputs.txt")
	require.NoError(t, os.WriteFile(list, []byte(missing+"\n"), 0o644))

	stdout, _, err := execute(t, "batch", "--timesteps", "10", "--outdir", t.TempDir(),
		"--variables", "TEMP", "--work-dir", filepath.Join(t.TempDir(), "work"), list)
	require.Error(t, err)
	assert.Contains(t, stdout, missing+"\t1")
	assert.Contains(t, stdout, "failures\t1")
}

func TestBatchRequiredSettings(t *testing.T) {
	dir := t.TempDir()
	heat := testutil.WriteExodus(t, dir, "heat.e", testutil.Cube(10, "TEMP"))
	list := filepath.Join(dir, "inputs.txt")
	require.NoError(t, os.WriteFile(list, []byte(heat+"\n"), 0o644))
	work := filepath.Join(t.TempDir(), "work")

	stdout, stderr, err := execute(t, "batch", "--work-dir", work, list)
	require.Error(t, err)
	assert.Contains(t, stdout+stderr, "Usage:")
	for _, flag := range []string{"--timesteps", "--outdir", "--variables"} {
		assert.Contains(t, err.Error(), flag)
	}

	out := t.TempDir()
	_, _, err = execute(t, "batch", "--timesteps", "10", "--outdir", out, "--work-dir", work, list)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--variables")
	assert.NoDirExists(t, filepath.Join(out, "heat"))

	t.Setenv("EXOSEQ_CONVERSION_VARIABLES", "TEMP")
	stdout, _, err = execute(t, "batch", "--timesteps", "10", "--outdir", out, "--work-dir", work, list)
	require.NoError(t, err)
	assert.Contains(t, stdout, "failures\t0")
}

func TestBatchSettingsFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	heat := testutil.WriteExodus(t, dir, "heat.e", testutil.Cube(10, "TEMP"))
	list := filepath.Join(dir, "inputs.txt")
	require.NoError(t, os.WriteFile(list, []byte(heat+"\n"), 0o644))
	out := t.TempDir()

	cfg := filepath.Join(dir, "exoseq.yaml")
	yaml := "conversion:\n  window_size: 5\n  variables: [TEMP]\njob:\n  output_dir: " + out + "\n"
	require.NoError(t, os.WriteFile(cfg, []byte(yaml), 0o644))

	stdout, _, err := execute(t, "--config", cfg, "batch", "--work-dir", filepath.Join(t.TempDir(), "work"), list)
	require.NoError(t, err)
	assert.Contains(t, stdout, heat+"\t0")
	assert.FileExists(t, filepath.Join(out, "heat", "heat_part1.seq"))
}

func TestConvertTrimsVariableNames(t *testing.T) {
	input := testutil.WriteExodus(t, t.TempDir(), "heat.e", testutil.Cube(10, "TEMP", "PRESSURE"))
	out := t.TempDir()

	_, _, err := execute(t, "convert", "10", input, out, "--variables", "TEMP, PRESSURE")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(out, "heat_part0.seq"))
}

func TestInfoCommand(t *testing.T) {
	input := testutil.WriteExodus(t, t.TempDir(), "heat.e", testutil.Cube(3, "TEMP"))

	stdout, _, err := execute(t, "info", "--json", input)
	require.NoError(t, err)
	assert.Contains(t, stdout, `"num_time_steps": 3`)
	assert.Contains(t, stdout, `"num_nodes": 27`)
}

func TestSynthCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gen.e")
	stdout, _, err := execute(t, "synth", "--steps", "4", "--nz", "0", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "3x3x1 nodes, 4 time steps")

	stdout, _, err = execute(t, "info", path)
	require.NoError(t, err)
	assert.NotEmpty(t, stdout)
}
