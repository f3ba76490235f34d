/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package fields

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	applog "invoicedesigner/internal/log"
	"invoicedesigner/internal/storage"
)

// Registry persists custom fields as one collection blob.
type Registry struct {
	st    storage.Store
	now   func() time.Time
	newID func() string
	log   *slog.Logger

	mu sync.Mutex
}

func NewRegistry(st storage.Store) *Registry {
	return &Registry{
		st:    st,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return "field-" + uuid.NewString() },
		log:   applog.WithComponent("fields"),
	}
}

func (r *Registry) load() ([]CustomField, error) {
	b, ok, err := r.st.Read(storage.CollectionCustomFields)
	if err != nil {
		return nil, fmt.Errorf("read custom fields: %w", err)
	}
	if !ok {
		return seeds(r.now()), nil
	}
	var out []CustomField
	if err := json.Unmarshal(b, &out); err != nil {
		r.log.Warn("custom fields blob unreadable, using built-in fields", slog.Any("err", err))
		return seeds(r.now()), nil
	}
	return out, nil
}

func (r *Registry) persist(list []CustomField) error {
	b, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal custom fields: %w", err)
	}
	if err := r.st.Write(storage.CollectionCustomFields, b); err != nil {
		r.log.Error("write custom fields failed", slog.Any("err", err))
		return fmt.Errorf("write custom fields: %w", err)
	}
	return nil
}

func (r *Registry) List() ([]CustomField, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

func (r *Registry) Get(id string) (CustomField, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list, err := r.load()
	if err != nil {
		return CustomField{}, err
	}
	for _, f := range list {
		if f.ID == id {
			return f, nil
		}
	}
	return CustomField{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func nameTaken(list []CustomField, name, exceptID string) bool {
	for _, f := range list {
		if f.Name == name && f.ID != exceptID {
			return true
		}
	}
	return false
}

// Create assigns an id and timestamps, strips type-irrelevant properties, appends and persists.
func (r *Registry) Create(in FieldInput) (CustomField, error) {
	if in.Category == "" {
		in.Category = CategoryCustom
	}
	now := r.now()
	f := CustomField{
		ID:          r.newID(),
		Name:        in.Name,
		Label:       in.Label,
		Type:        in.Type,
		Category:    in.Category,
		Icon:        in.Icon,
		Description: in.Description,
		Properties:  Strip(in.Type, in.Properties),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := validate(f); err != nil {
		return CustomField{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	list, err := r.load()
	if err != nil {
		return CustomField{}, err
	}
	if nameTaken(list, f.Name, "") {
		return CustomField{}, &ValidationError{Field: "name", Reason: fmt.Sprintf("%q is already used", f.Name)}
	}
	if err := r.persist(append(list, f)); err != nil {
		return CustomField{}, err
	}
	r.log.Info("custom field created", slog.String("id", f.ID), slog.String("name", f.Name))
	return f, nil
}

func (r *Registry) Update(id string, p FieldPatch) (CustomField, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list, err := r.load()
	if err != nil {
		return CustomField{}, err
	}
	idx := -1
	for i := range list {
		if list[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return CustomField{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	f := list[idx]
	if p.Name != nil {
		f.Name = *p.Name
	}
	if p.Label != nil {
		f.Label = *p.Label
	}
	if p.Type != nil {
		f.Type = *p.Type
	}
	if p.Category != nil {
		f.Category = *p.Category
	}
	if p.Icon != nil {
		f.Icon = *p.Icon
	}
	if p.Description != nil {
		f.Description = *p.Description
	}
	if p.Properties != nil {
		f.Properties = *p.Properties
	}
	f.Properties = Strip(f.Type, f.Properties)
	if err := validate(f); err != nil {
		return CustomField{}, err
	}
	if nameTaken(list, f.Name, id) {
		return CustomField{}, &ValidationError{Field: "name", Reason: fmt.Sprintf("%q is already used", f.Name)}
	}
	f.UpdatedAt = r.now()
	list[idx] = f
	if err := r.persist(list); err != nil {
		return CustomField{}, err
	}
	return f, nil
}

// Delete removes the definition. Components that captured it keep their copy.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list, err := r.load()
	if err != nil {
		return err
	}
	out := list[:0:0]
	for _, f := range list {
		if f.ID != id {
			out = append(out, f)
		}
	}
	if len(out) == len(list) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := r.persist(out); err != nil {
		return err
	}
	r.log.Info("custom field deleted", slog.String("id", id))
	return nil
}
