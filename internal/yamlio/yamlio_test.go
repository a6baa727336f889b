package yamlio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string   `yaml:"name"`
	Items []string `yaml:"items"`
}

func TestAtomicWriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.yaml")

	in := doc{Name: "errands", Items: []string{"a", "b"}}
	require.NoError(t, AtomicWrite(path, in))

	var out doc
	require.NoError(t, Read(path, &out))
	assert.Equal(t, in, out)
}

func TestAtomicWrite_ReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.yaml")
	require.NoError(t, AtomicWrite(path, doc{Name: "old"}))
	require.NoError(t, AtomicWrite(path, doc{Name: "new"}))

	var out doc
	require.NoError(t, Read(path, &out))
	assert.Equal(t, "new", out.Name)
}

func TestAtomicWrite_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, AtomicWrite(filepath.Join(dir, "doc.yaml"), doc{Name: "x"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "doc.yaml", entries[0].Name())
}

func TestRead_MissingFile(t *testing.T) {
	var out doc
	err := Read(filepath.Join(t.TempDir(), "absent.yaml"), &out)
	assert.Error(t, err)
}

func TestRead_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: [unclosed"), 0644))

	var out doc
	assert.Error(t, Read(path, &out))
}
