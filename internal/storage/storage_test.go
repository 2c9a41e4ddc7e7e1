package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndRemove(t *testing.T) {
	root := t.TempDir()
	d := New(root)

	path, err := d.Save(KindPlaylist, "abc", "playlist.m3u", []byte("#EXTM3U\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "playlist", "abc", "playlist.m3u"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n", string(data))

	// overwrite in place
	_, err = d.Save(KindPlaylist, "abc", "playlist.m3u", []byte("#EXTM3U\nnew"))
	require.NoError(t, err)
	data, _ = os.ReadFile(path)
	assert.Equal(t, "#EXTM3U\nnew", string(data))

	require.NoError(t, d.Remove(KindPlaylist, "abc"))
	_, err = os.Stat(filepath.Dir(path))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, d.Remove(KindPlaylist, "abc"), "missing folder")
}

func TestFolderPath_rejectsTraversal(t *testing.T) {
	d := New(t.TempDir())
	for _, id := range []string{"", "..", "a/b", `a\b`} {
		_, err := d.FolderPath(KindEpg, id)
		assert.Error(t, err, id)
	}
}
