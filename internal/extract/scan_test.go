package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanDir(t *testing.T) {
	root := t.TempDir()
	files := []string{
		"a.docx",
		"b.PDF",
		"notes.md",
		"image.png",
		"~$a.docx",
		".hidden.txt",
		".git/config.txt",
		"sub/c.txt",
	}
	for _, f := range files {
		p := filepath.Join(root, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}

	paths, stats, err := ScanDir(root, true)
	require.NoError(t, err)

	var rel []string
	for _, p := range paths {
		r, err := filepath.Rel(root, p)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
	}
	assert.Equal(t, []string{"a.docx", "b.PDF", "notes.md", "sub/c.txt"}, rel)
	assert.Equal(t, 4, stats.Matched)
	assert.Equal(t, 2, stats.Skipped)

	all, _, err := ScanDir(root, false)
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestScanDir_Errors(t *testing.T) {
	_, _, err := ScanDir(" ", true)
	require.Error(t, err)

	_, _, err = ScanDir(filepath.Join(t.TempDir(), "missing"), true)
	require.Error(t, err)
}
