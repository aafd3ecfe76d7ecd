// Package store is the client-local key/value storage. Values are JSON
// documents addressed by fixed keys, mirroring browser local storage.
package store

import (
	"encoding/json"
	"fmt"
	"sync"
)

const (
	KeyHostnames         = "hostnames"
	KeyShowDetailedStats = "showDetailedStats"

	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Storage persists raw JSON values by key. Writes are synchronous.
//
// Update is a read-modify-write of one key that is atomic with respect to
// every other handle on the same backing store, including handles held by
// other processes. fn receives the current value (ok is false when the key is
// unset); an error from fn aborts the write and is returned as is.
type Storage interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Update(key string, fn func(old []byte, ok bool) ([]byte, error)) error
	Close() error
}

// Open returns the backend named by kind rooted at path.
func Open(kind, path string) (Storage, error) {
	switch kind {
	case BackendFile, "":
		return OpenFile(path)
	case BackendSQLite:
		return OpenSQLite(path)
	}
	return nil, fmt.Errorf("unknown storage backend %q", kind)
}

// GetJSON decodes the value under key into v. It reports false when the key
// has never been written.
func GetJSON(s Storage, key string, v any) (bool, error) {
	data, ok, err := s.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(s Storage, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(key, data)
}

// Memory is an in-process Storage, used by tests and dry runs.
type Memory struct {
	mu     sync.Mutex
	values map[string][]byte
	// FailWrites makes Set return an error.
	FailWrites error
}

func NewMemory() *Memory {
	return &Memory{values: map[string][]byte{}}
}

func (m *Memory) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *Memory) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Update(key string, fn func(old []byte, ok bool) ([]byte, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.values[key]
	value, err := fn(append([]byte(nil), old...), ok)
	if err != nil {
		return err
	}
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Close() error { return nil }
