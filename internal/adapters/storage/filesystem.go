// Package storage provides the two ports.Storage implementations: the real
// filesystem backend used in production, and a byte-vector in-memory fake
// used by deterministic tests.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tysonmote/gommap"

	"github.com/telemetrydev/bufferline/internal/core/ports"
)

// Filesystem is the production storage backend, rooted at a directory that
// is owned exclusively by one buffer instance.
type Filesystem struct {
	root string
}

// NewFilesystem creates the root directory if needed and returns a backend
// scoped to it.
func NewFilesystem(root string) (*Filesystem, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("error creating buffer directory : %w", err)
	}
	return &Filesystem{root: root}, nil
}

func (f *Filesystem) path(name string) string {
	return filepath.Join(f.root, name)
}

func (f *Filesystem) OpenAppend(name string) (ports.AppendFile, error) {
	file, err := os.OpenFile(f.path(name), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("error opening %s for append : %w", name, err)
	}
	return file, nil
}

func (f *Filesystem) OpenRead(name string) (ports.ReadFile, error) {
	file, err := os.Open(f.path(name))
	if err != nil {
		return nil, fmt.Errorf("error opening %s for read : %w", name, err)
	}
	return file, nil
}

func (f *Filesystem) OpenMap(name string, size int64, writable bool) (ports.MappedFile, error) {
	file, err := os.OpenFile(f.path(name), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("error opening %s for mapping : %w", name, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if stat.Size() != size {
		if err := file.Truncate(size); err != nil {
			file.Close()
			return nil, fmt.Errorf("error sizing %s to %d bytes : %w", name, size, err)
		}
	}

	prot := gommap.PROT_READ
	if writable {
		prot |= gommap.PROT_WRITE
	}

	mapped, err := gommap.Map(file.Fd(), prot, gommap.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("error mapping %s : %w", name, err)
	}

	return &fsMap{file: file, mmap: mapped}, nil
}

func (f *Filesystem) Delete(name string) error {
	if err := os.Remove(f.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (f *Filesystem) List() ([]string, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

func (f *Filesystem) Size(name string) (int64, error) {
	stat, err := os.Stat(f.path(name))
	if err != nil {
		return 0, err
	}
	return stat.Size(), nil
}

func (f *Filesystem) Exists(name string) (bool, error) {
	if _, err := os.Stat(f.path(name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// fsMap couples the mapped region with its backing file handle so Close
// tears both down.
type fsMap struct {
	file *os.File
	mmap gommap.MMap
}

func (m *fsMap) Bytes() []byte {
	return m.mmap
}

func (m *fsMap) Sync() error {
	return m.mmap.Sync(gommap.MS_SYNC)
}

func (m *fsMap) Close() error {
	if err := m.mmap.Sync(gommap.MS_SYNC); err != nil {
		return err
	}
	if err := m.mmap.UnsafeUnmap(); err != nil {
		return err
	}
	return m.file.Close()
}
