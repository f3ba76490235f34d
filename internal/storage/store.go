/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Collection names shared by the registries.
const (
	CollectionCanvasSettings = "canvas-settings"
	CollectionCustomFields   = "custom-fields"
	CollectionTemplates      = "invoice-templates"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Store reads and writes whole collection blobs. Read reports ok=false when the collection has
// never been written.
type Store interface {
	Read(name string) (data []byte, ok bool, err error)
	Write(name string, data []byte) error
}

// Open returns the Store for backend rooted at dir. The returned close func releases any handle
// the backend holds and is never nil.
func Open(backend, dir string) (Store, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendFile:
		fs, err := NewFileStore(dir)
		if err != nil {
			return nil, noop, err
		}
		return fs, noop, nil
	case BackendSQLite:
		ss, err := OpenSQLite(dir)
		if err != nil {
			return nil, noop, err
		}
		return ss, ss.Close, nil
	case BackendMemory:
		return NewMemoryStore(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage backend %q", backend)
	}
}

func validName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("collection name is required")
	}
	if strings.ContainsAny(name, `/\:`) || strings.Contains(name, "..") {
		return fmt.Errorf("invalid collection name %q", name)
	}
	return nil
}

// MemoryStore keeps blobs in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: map[string][]byte{}}
}

func (m *MemoryStore) Read(name string) ([]byte, bool, error) {
	if err := validName(name); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[name]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), b...), true, nil
}

func (m *MemoryStore) Write(name string, data []byte) error {
	if err := validName(name); err != nil {
		return err
	}
	m.mu.Lock()
	m.blobs[name] = append([]byte(nil), data...)
	m.mu.Unlock()
	return nil
}
