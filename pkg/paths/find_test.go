package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(name), 0o755))
	require.NoError(t, os.WriteFile(name, make([]byte, size), 0o644))
}

func TestInFolder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mp4"), 10)
	writeFile(t, filepath.Join(root, "sub", "b.mp4"), 5)

	all, size := InFolder(root, true, true, nil)
	assert.Len(t, all, 3)
	assert.Equal(t, uint64(15), size-dirSizes(all))

	files, _ := InFolder(root, true, false, nil)
	names := make([]string, 0, len(files))
	for _, p := range files {
		assert.False(t, p.IsDir)
		names = append(names, p.FileName)
	}
	assert.ElementsMatch(t, []string{"a.mp4", "b.mp4"}, names)

	rejected, _ := InFolder(root, true, false, func(p string) *string {
		if filepath.Base(p) == "a.mp4" {
			return nil
		}
		return &p
	})
	require.Len(t, rejected, 1)
	assert.Equal(t, "b.mp4", rejected[0].FileName)
}

func dirSizes(paths []Path) uint64 {
	var n uint64
	for _, p := range paths {
		if p.IsDir {
			n += uint64(p.Size)
		}
	}
	return n
}

func TestListDirSorted(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.mp4"), 1)
	writeFile(t, filepath.Join(root, "a.mp4"), 1)
	writeFile(t, filepath.Join(root, "2. Second", "x.mp4"), 1)
	writeFile(t, filepath.Join(root, "1. First", "y.mp4"), 1)

	dirs, files, err := ListDir(root)
	require.NoError(t, err)

	require.Len(t, dirs, 2)
	assert.Equal(t, "1. First", dirs[0].FileName)
	assert.Equal(t, "2. Second", dirs[1].FileName)

	require.Len(t, files, 2)
	assert.Equal(t, "a.mp4", files[0].FileName)
	assert.Equal(t, "b.mp4", files[1].FileName)

	_, _, err = ListDir(filepath.Join(root, "missing"))
	assert.Error(t, err)
}

func TestIsDirEmpty(t *testing.T) {
	root := t.TempDir()

	empty, err := IsDirEmpty(root)
	require.NoError(t, err)
	assert.True(t, empty)

	writeFile(t, filepath.Join(root, "f"), 1)
	empty, err = IsDirEmpty(root)
	require.NoError(t, err)
	assert.False(t, empty)
}

func TestIsIgnored(t *testing.T) {
	assert.True(t, IsIgnored("/content/keep/a.mp4", []string{"/content/keep"}))
	assert.False(t, IsIgnored("/content/a.mp4", []string{"/content/keep", ""}))
}
