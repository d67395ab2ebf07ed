package storage

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/telemetrydev/bufferline/internal/core/ports"
)

// Memory is the in-memory storage fake. It mirrors the filesystem semantics
// the engine relies on (append-only growth, ReadAt past-end EOF, truncation,
// fixed-size maps) against plain byte slices, so engine tests run
// deterministically and without OS flakiness. Access is mutex-guarded per
// file; the engine itself never shares a file between more than one writer
// and one reader.
type Memory struct {
	mu    sync.Mutex
	files map[string]*memFile
}

func NewMemory() *Memory {
	return &Memory{files: make(map[string]*memFile)}
}

func (m *Memory) get(name string, create bool) (*memFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, ok := m.files[name]
	if !ok {
		if !create {
			return nil, fmt.Errorf("open %s : %w", name, os.ErrNotExist)
		}
		file = &memFile{}
		m.files[name] = file
	}
	return file, nil
}

func (m *Memory) OpenAppend(name string) (ports.AppendFile, error) {
	file, err := m.get(name, true)
	if err != nil {
		return nil, err
	}
	return &memAppend{file: file}, nil
}

func (m *Memory) OpenRead(name string) (ports.ReadFile, error) {
	file, err := m.get(name, false)
	if err != nil {
		return nil, err
	}
	return &memRead{file: file}, nil
}

func (m *Memory) OpenMap(name string, size int64, writable bool) (ports.MappedFile, error) {
	file, err := m.get(name, true)
	if err != nil {
		return nil, err
	}

	file.mu.Lock()
	defer file.mu.Unlock()
	if int64(len(file.data)) < size {
		file.data = append(file.data, make([]byte, size-int64(len(file.data)))...)
	}
	return &memMap{data: file.data[:size]}, nil
}

func (m *Memory) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, name)
	return nil
}

func (m *Memory) List() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) Size(name string) (int64, error) {
	file, err := m.get(name, false)
	if err != nil {
		return 0, err
	}

	file.mu.Lock()
	defer file.mu.Unlock()
	return int64(len(file.data)), nil
}

func (m *Memory) Exists(name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[name]
	return ok, nil
}

type memFile struct {
	mu   sync.Mutex
	data []byte
}

type memAppend struct {
	file *memFile
}

func (a *memAppend) Write(p []byte) (int, error) {
	a.file.mu.Lock()
	defer a.file.mu.Unlock()
	a.file.data = append(a.file.data, p...)
	return len(p), nil
}

func (a *memAppend) Sync() error { return nil }

func (a *memAppend) Truncate(size int64) error {
	a.file.mu.Lock()
	defer a.file.mu.Unlock()
	if size < int64(len(a.file.data)) {
		a.file.data = a.file.data[:size]
	}
	return nil
}

func (a *memAppend) Close() error { return nil }

type memRead struct {
	file *memFile
}

func (r *memRead) ReadAt(p []byte, off int64) (int, error) {
	r.file.mu.Lock()
	defer r.file.mu.Unlock()

	if off >= int64(len(r.file.data)) {
		return 0, io.EOF
	}

	n := copy(p, r.file.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (r *memRead) Close() error { return nil }

type memMap struct {
	data []byte
}

func (m *memMap) Bytes() []byte { return m.data }
func (m *memMap) Sync() error   { return nil }
func (m *memMap) Close() error  { return nil }
