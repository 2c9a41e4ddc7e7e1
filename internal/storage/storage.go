// Package storage keeps the raw documents downloaded for playlists and EPGs,
// one folder per record under a data directory.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Record kinds used as the first path segment.
const (
	KindPlaylist = "playlist"
	KindEpg      = "epg"
)

// Dir is a data directory root.
type Dir struct {
	root string
}

// New returns a Dir rooted at root. The directory is created on first write.
func New(root string) *Dir {
	return &Dir{root: root}
}

// FolderPath returns the folder for a record, e.g. data/playlist/<uuid>.
func (d *Dir) FolderPath(kind, uuid string) (string, error) {
	if kind == "" || uuid == "" || strings.ContainsAny(uuid, `/\`) || uuid == "." || uuid == ".." {
		return "", fmt.Errorf("storage: invalid record %s/%q", kind, uuid)
	}
	return filepath.Join(d.root, kind, uuid), nil
}

// Save writes data to name inside the record folder using a temp-file-then-rename
// so readers never see a partial file. Returns the written path.
func (d *Dir) Save(kind, uuid, name string, data []byte) (string, error) {
	dir, err := d.FolderPath(kind, uuid)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage save: mkdir: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(name))
	tmp, err := os.CreateTemp(dir, ".raw-*.tmp")
	if err != nil {
		return "", fmt.Errorf("storage save: create temp: %w", err)
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return "", fmt.Errorf("storage save: write: %w", writeErr)
		}
		return "", fmt.Errorf("storage save: close: %w", closeErr)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("storage save: rename: %w", err)
	}
	return path, nil
}

// Remove deletes a record folder and everything in it. A missing folder is not an error.
func (d *Dir) Remove(kind, uuid string) error {
	dir, err := d.FolderPath(kind, uuid)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("storage remove: %w", err)
	}
	return nil
}
