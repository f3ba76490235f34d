/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package templates

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"invoicedesigner/internal/canvas"
	applog "invoicedesigner/internal/log"
	"invoicedesigner/internal/settings"
	"invoicedesigner/internal/storage"
)

// Manager persists templates as one collection blob.
type Manager struct {
	st    storage.Store
	now   func() time.Time
	newID func() string
	log   *slog.Logger

	mu sync.Mutex
}

func NewManager(st storage.Store) *Manager {
	return &Manager{
		st:    st,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return "template-" + uuid.NewString() },
		log:   applog.WithComponent("templates"),
	}
}

func (m *Manager) load() ([]Template, error) {
	b, ok, err := m.st.Read(storage.CollectionTemplates)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	if !ok {
		return []Template{}, nil
	}
	var out []Template
	if err := json.Unmarshal(b, &out); err != nil {
		m.log.Warn("templates blob unreadable, starting empty", slog.Any("err", err))
		return []Template{}, nil
	}
	return out, nil
}

func (m *Manager) persist(list []Template) error {
	b, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshal templates: %w", err)
	}
	if err := m.st.Write(storage.CollectionTemplates, b); err != nil {
		m.log.Error("write templates failed", slog.Any("err", err))
		return fmt.Errorf("write templates: %w", err)
	}
	return nil
}

func (m *Manager) List() ([]Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load()
}

func (m *Manager) Get(id string) (Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list, err := m.load()
	if err != nil {
		return Template{}, err
	}
	if i := index(list, id); i >= 0 {
		return list[i], nil
	}
	return Template{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Default returns the template flagged as default, if any.
func (m *Manager) Default() (Template, bool, error) {
	list, err := m.List()
	if err != nil {
		return Template{}, false, err
	}
	for _, t := range list {
		if t.IsDefault {
			return t, true, nil
		}
	}
	return Template{}, false, nil
}

// Save fills defaults and upserts by id. createdAt is kept when the caller provides it.
func (m *Manager) Save(t Template) (Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list, err := m.load()
	if err != nil {
		return Template{}, err
	}
	t = withDefaults(t, m.now(), m.newID)
	list = upsert(list, t)
	if err := m.persist(list); err != nil {
		return Template{}, err
	}
	m.log.Info("template saved", slog.String("id", t.ID), slog.Int("components", len(t.Components)))
	return t, nil
}

// SaveCanvas stores the live layout under name.
func (m *Manager) SaveCanvas(name, description string, cs []canvas.PlacedComponent, s settings.CanvasSettings) (Template, error) {
	return m.Save(Template{Name: name, Description: description, Components: cs, Settings: FromCanvas(s)})
}

func (m *Manager) Update(id string, p Patch) (Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list, err := m.load()
	if err != nil {
		return Template{}, err
	}
	i := index(list, id)
	if i < 0 {
		return Template{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	t := list[i]
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Components != nil {
		t.Components = *p.Components
	}
	if p.Settings != nil {
		t.Settings = *p.Settings
	}
	if p.IsDefault != nil {
		t.IsDefault = *p.IsDefault
	}
	t = withDefaults(t, m.now(), m.newID)
	list = upsert(list, t)
	if err := m.persist(list); err != nil {
		return Template{}, err
	}
	return t, nil
}

// Delete removes id. Deleting an unknown id is not an error.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list, err := m.load()
	if err != nil {
		return err
	}
	i := index(list, id)
	if i < 0 {
		return nil
	}
	return m.persist(append(list[:i], list[i+1:]...))
}

// Export renders one template as an indented JSON document.
func (m *Manager) Export(id string) ([]byte, error) {
	t, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(t, "", "  ")
}

// Import saves a template document under a fresh id. A missing name becomes ImportedName.
// Nothing is written when the document is refused.
func (m *Manager) Import(doc []byte) (Template, error) {
	t, err := parse(doc)
	if err != nil {
		return Template{}, err
	}
	t.ID = ""
	if t.Name == "" {
		t.Name = ImportedName
	}
	return m.Save(t)
}

// parse validates doc and decodes it. Timestamps that do not parse are dropped.
func parse(doc []byte) (Template, error) {
	if !json.Valid(doc) {
		return Template{}, &ImportError{Problems: []string{"document is not valid JSON"}}
	}
	if err := check(templateValidator, doc); err != nil {
		return Template{}, err
	}
	type plain Template
	var raw struct {
		plain
		CreatedAt string `json:"createdAt"`
		UpdatedAt string `json:"updatedAt"`
	}
	if err := json.Unmarshal(doc, &raw); err != nil {
		return Template{}, &ImportError{Problems: []string{err.Error()}}
	}
	t := Template(raw.plain)
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, raw.CreatedAt)
	t.UpdatedAt, _ = time.Parse(time.RFC3339Nano, raw.UpdatedAt)
	return t, nil
}

// upsert replaces the entry with t's id or appends t. A default template clears the flag on the
// others.
func upsert(list []Template, t Template) []Template {
	if t.IsDefault {
		for i := range list {
			list[i].IsDefault = false
		}
	}
	if i := index(list, t.ID); i >= 0 {
		list[i] = t
		return list
	}
	return append(list, t)
}

func index(list []Template, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}
