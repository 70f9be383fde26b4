package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/segalloc/internal/trace"
)

const shortTrace = `0
3
7
1
a 0 100
a 1 2000
r 0 300
a 2 8
f 1
f 0
f 2
`

// runCLI executes the command tree with args and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeTrace(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "segalloc dev")
	assert.Contains(t, out, "commit: none")
}

func TestReplayCommand(t *testing.T) {
	path := writeTrace(t, "short.rep", shortTrace)

	out, err := runCLI(t, "replay", path)
	require.NoError(t, err)
	assert.Contains(t, out, "TRACE")
	assert.Contains(t, out, "short.rep")
	assert.NotContains(t, out, "FAILED")
}

func TestReplayCommand_JSON(t *testing.T) {
	path := writeTrace(t, "short.rep", shortTrace)

	out, err := runCLI(t, "replay", "--json", "--chunk", "4KiB", path)
	require.NoError(t, err)

	var reports []replayReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	r := reports[0]
	assert.Equal(t, 7, r.Ops)
	assert.EqualValues(t, 2308, r.PeakPayload)
	assert.Greater(t, r.Utilization, 0.0)
	assert.Equal(t, 2, r.GrowCalls, "prologue plus one 4KiB chunk")
	assert.Empty(t, r.Error)
}

func TestReplayCommand_Failures(t *testing.T) {
	good := writeTrace(t, "good.rep", shortTrace)
	missing := filepath.Join(t.TempDir(), "missing.rep")

	out, err := runCLI(t, "replay", good, missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 traces failed")
	assert.Contains(t, out, "missing.rep")
	assert.Contains(t, out, "FAILED")
}

func TestReplayCommand_OutOfMemory(t *testing.T) {
	path := writeTrace(t, "big.rep", "0\n1\n2\n1\na 0 100000\nf 0\n")
	out, err := runCLI(t, "replay", "--max-heap", "64KiB", path)
	require.Error(t, err)
	assert.Contains(t, out, "out of memory")
}

func TestReplayCommand_BadFlags(t *testing.T) {
	path := writeTrace(t, "short.rep", shortTrace)

	_, err := runCLI(t, "replay", "--backend", "tape", path)
	require.Error(t, err)

	_, err = runCLI(t, "replay", "--chunk", "12", path)
	require.Error(t, err)

	_, err = runCLI(t, "replay", "--backend", "file", path)
	require.Error(t, err, "file backend needs --path")

	_, err = runCLI(t, "replay")
	require.Error(t, err)
}

func TestCheckCommand(t *testing.T) {
	path := writeTrace(t, "short.rep", shortTrace)
	out, err := runCLI(t, "check", "-q", path)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestGenCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gen.rep")

	_, err := runCLI(t, "gen", "--seed", "5", "--ops", "300", "--max-size", "512", "-o", path)
	require.NoError(t, err)

	out, err := runCLI(t, "check", path)
	require.NoError(t, err)
	assert.Contains(t, out, "gen.rep")

	stdout, err := runCLI(t, "gen", "--seed", "5", "--ops", "10")
	require.NoError(t, err)
	tr, err := trace.Parse(strings.NewReader(stdout))
	require.NoError(t, err)
	assert.NotEmpty(t, tr.Ops)
}

func TestFileBackendAndInspect(t *testing.T) {
	dir := t.TempDir()
	heapPath := filepath.Join(dir, "heap.bin")
	tr := writeTrace(t, "short.rep", shortTrace)

	_, err := runCLI(t, "replay", "--backend", "file", "--path", heapPath, "--max-heap", "1MiB", tr)
	require.NoError(t, err)

	st, err := os.Stat(heapPath)
	require.NoError(t, err)
	assert.Positive(t, st.Size())

	out, err := runCLI(t, "inspect", "--max-heap", "1MiB", heapPath)
	require.NoError(t, err)
	assert.Contains(t, out, "heap.bin: ok")
	assert.Contains(t, out, "live:   0 blocks")

	out, err = runCLI(t, "inspect", "--json", "--max-heap", "1MiB", heapPath)
	require.NoError(t, err)
	var rep inspectReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, int(st.Size()), rep.HeapSize)
	assert.Equal(t, 1, rep.FreeBlocks)

	// A second replay refuses to clobber the persisted heap.
	_, err = runCLI(t, "replay", "--backend", "file", "--path", heapPath, "--max-heap", "1MiB", tr)
	require.Error(t, err)
}

func TestInspectCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := runCLI(t, "inspect", filepath.Join(dir, "none.bin"))
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "none.bin"))

	junk := filepath.Join(dir, "junk.bin")
	require.NoError(t, os.WriteFile(junk, bytes.Repeat([]byte{0xAB}, 256), 0o644))
	out, err := runCLI(t, "inspect", junk)
	require.Error(t, err)
	assert.Contains(t, out, "CORRUPT")
}

func TestConfigFile(t *testing.T) {
	cfgPath := writeTrace(t, "segalloc.yaml", "alloc:\n  chunk_size: 1KiB\n")
	tr := writeTrace(t, "short.rep", shortTrace)

	out, err := runCLI(t, "--config", cfgPath, "replay", "--json", tr)
	require.NoError(t, err)
	var reports []replayReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	// 2000-byte block outgrows the first 1KiB chunk.
	assert.Equal(t, 3, reports[0].GrowCalls)

	bad := writeTrace(t, "bad.yaml", "region:\n  backend: tape\n")
	_, err = runCLI(t, "--config", bad, "replay", tr)
	require.Error(t, err)
}

func TestLogLevelFlag(t *testing.T) {
	tr := writeTrace(t, "short.rep", shortTrace)
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs([]string{"--log-level", "info", "replay", tr})
	require.NoError(t, root.Execute())
	assert.Contains(t, errOut.String(), "replay done")
}

func TestCloseHeap_ReportsCloseError(t *testing.T) {
	boom := errors.New("unmap failed")
	h := &heap{closer: func() error { return boom }}

	var err error
	closeHeap(context.Background(), h, &err)
	require.ErrorIs(t, err, boom)

	// An earlier error wins over the close error.
	first := errors.New("walk failed")
	err = first
	closeHeap(context.Background(), h, &err)
	require.ErrorIs(t, err, first)
	assert.NotErrorIs(t, err, boom)
}
