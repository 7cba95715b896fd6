package loaders

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OR-Dept-Environmental-Quality/soar/internal/core"
)

func sampleFrame() *core.Frame {
	return &core.Frame{
		Columns: []string{"parameter_code", "value"},
		Rows:    [][]string{{"88101", "12.4"}, {"44201", "0.031"}},
	}
}

func TestAppendCSVHeaderOnlyWhenNew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw", "aqs_sample_pm25_2019.csv")

	require.NoError(t, AppendCSV(sampleFrame(), path))
	require.NoError(t, AppendCSV(sampleFrame(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 5)
	assert.Equal(t, "parameter_code,value", lines[0])
	assert.Equal(t, 1, strings.Count(string(data), "parameter_code,value"))
}

func TestAppendCSVSkipsEmptyFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, AppendCSV(&core.Frame{}, path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestWriteCSVReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteCSV(sampleFrame(), path))
	require.NoError(t, WriteCSV(&core.Frame{
		Columns: []string{"a"},
		Rows:    [][]string{{"1"}},
	}, path))

	f, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, f.Columns)
	assert.Equal(t, 1, f.NumRows())
}

func TestReadCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteCSV(sampleFrame(), path))

	f, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"parameter_code", "value"}, f.Columns)
	assert.Equal(t, "12.4", f.Value(0, "value"))
}

func TestConcurrentAppendsSamePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, AppendCSV(sampleFrame(), path))
		}()
	}
	wg.Wait()

	f, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, 16, f.NumRows())
	for i := 0; i < f.NumRows(); i++ {
		assert.NotEqual(t, "parameter_code", f.Value(i, "parameter_code"))
	}
}

func TestAtomicWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctl", "breaker.json")
	require.NoError(t, AtomicWriteJSON(path, map[string]any{
		"consecutive_failures": 3,
	}))

	var out map[string]any
	require.NoError(t, ReadJSON(path, &out))
	assert.EqualValues(t, 3, out["consecutive_failures"])

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReadJSONMissing(t *testing.T) {
	err := ReadJSON(filepath.Join(t.TempDir(), "missing.json"), &struct{}{})
	assert.True(t, os.IsNotExist(err))
}

func TestReadJSONCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	var out json.RawMessage
	assert.Error(t, ReadJSON(path, &out))
}
