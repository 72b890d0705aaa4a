package client

import (
	"encoding/json"
	"os"
	"sync"
)

// KV is the session's key-value persistence, the stand-in for browser local
// storage. Reads of missing or corrupt state come back as absent; writes do
// not surface persistence failures to the caller.
type KV interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Delete(key string)
}

type MemoryKV struct {
	mu     sync.Mutex
	values map[string][]byte
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string][]byte)}
}

func (m *MemoryKV) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryKV) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
}

func (m *MemoryKV) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
}

// FileKV persists the store as a single JSON file, so a session survives
// process restarts the way a browser profile does.
type FileKV struct {
	mu   sync.Mutex
	path string
}

func NewFileKV(path string) *FileKV {
	return &FileKV{path: path}
}

func (f *FileKV) Get(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.load()[key]
	return []byte(v), ok
}

func (f *FileKV) Set(key string, value []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values := f.load()
	values[key] = string(value)
	f.store(values)
}

func (f *FileKV) Delete(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values := f.load()
	delete(values, key)
	f.store(values)
}

func (f *FileKV) load() map[string]string {
	values := map[string]string{}
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return values
	}
	// a corrupt file reads as empty state
	_ = json.Unmarshal(raw, &values)
	return values
}

func (f *FileKV) store(values map[string]string) {
	raw, err := json.Marshal(values)
	if err != nil {
		return
	}
	_ = os.WriteFile(f.path, raw, 0o600)
}
