package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// document is the on-disk layout of the file backend. Each entry holds the
// JSON text of one key so values round-trip byte for byte.
type document struct {
	UpdatedAt time.Time         `yaml:"updated_at"`
	Entries   map[string]string `yaml:"entries"`
}

// File keeps every key in a single YAML document. Every call re-reads the
// document under an exclusive lock on path+".lock", so several processes can
// share one file without losing each other's keys.
type File struct {
	path string
	mu   sync.Mutex
}

// OpenFile checks that the document at path parses. If the file is missing,
// storage starts empty.
func OpenFile(path string) (*File, error) {
	f := &File{path: path}
	if _, err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) Get(key string) ([]byte, bool, error) {
	var (
		v  string
		ok bool
	)
	err := f.locked(func() error {
		doc, err := f.load()
		if err != nil {
			return err
		}
		v, ok = doc.Entries[key]
		return nil
	})
	if err != nil || !ok {
		return nil, false, err
	}
	return []byte(v), true, nil
}

func (f *File) Set(key string, value []byte) error {
	return f.Update(key, func([]byte, bool) ([]byte, error) { return value, nil })
}

// Update merges the new value of key into the latest document on disk.
func (f *File) Update(key string, fn func(old []byte, ok bool) ([]byte, error)) error {
	return f.locked(func() error {
		doc, err := f.load()
		if err != nil {
			return err
		}
		old, ok := doc.Entries[key]
		var prev []byte
		if ok {
			prev = []byte(old)
		}
		value, err := fn(prev, ok)
		if err != nil {
			return err
		}
		doc.Entries[key] = string(value)
		return f.save(doc)
	})
}

func (f *File) Close() error { return nil }

// locked runs fn holding both the in-process mutex and the lock file.
func (f *File) locked(fn func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	unlock, err := lockFile(f.path + ".lock")
	if err != nil {
		return fmt.Errorf("lock %s: %w", f.path, err)
	}
	defer unlock()
	return fn()
}

func (f *File) load() (document, error) {
	doc := document{Entries: map[string]string{}}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, err
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", f.path, err)
	}
	if doc.Entries == nil {
		doc.Entries = map[string]string{}
	}
	return doc, nil
}

func (f *File) save(doc document) error {
	doc.UpdatedAt = time.Now().UTC()
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
