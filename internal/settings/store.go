/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package settings

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	applog "invoicedesigner/internal/log"
	"invoicedesigner/internal/storage"
)

// Store is the current canvas settings record backed by a storage collection.
type Store struct {
	st  storage.Store
	now func() time.Time
	log *slog.Logger

	mu sync.Mutex
	// guard sees every validated record before it is written and can refuse it.
	guard func(CanvasSettings) error
}

func NewStore(st storage.Store) *Store {
	return &Store{
		st:  st,
		now: func() time.Time { return time.Now().UTC() },
		log: applog.WithComponent("settings"),
	}
}

// Guard registers fn to approve each record before it is persisted. When the write fails after
// fn approved, fn is called again with the record that stays stored.
func (s *Store) Guard(fn func(CanvasSettings) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guard = fn
}

// Load returns the stored settings, or Default when nothing is stored or the blob is unreadable.
func (s *Store) Load() CanvasSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() CanvasSettings {
	b, ok, err := s.st.Read(storage.CollectionCanvasSettings)
	if err != nil {
		s.log.Warn("load canvas settings failed, using defaults", slog.Any("err", err))
		return Default()
	}
	if !ok {
		return Default()
	}
	// Missing keys fall back to defaults.
	cs := Default()
	if err := json.Unmarshal(b, &cs); err != nil {
		s.log.Warn("parse canvas settings failed, using defaults", slog.Any("err", err))
		return Default()
	}
	return cs
}

// Save merges p into the latest stored record, validates, stamps UpdatedAt and persists.
func (s *Store) Save(p Patch) (CanvasSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(p)
}

func (s *Store) save(p Patch) (CanvasSettings, error) {
	next, err := s.preview(p)
	if err != nil {
		return CanvasSettings{}, err
	}
	next.UpdatedAt = s.now()
	if err := s.commit(next, "save canvas settings"); err != nil {
		return CanvasSettings{}, err
	}
	return next, nil
}

// Preview returns the record Save(p) would store without storing it.
func (s *Store) Preview(p Patch) (CanvasSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview(p)
}

func (s *Store) preview(p Patch) (CanvasSettings, error) {
	next := s.load().Apply(p)
	if err := Validate(next); err != nil {
		s.log.Info("canvas settings rejected", slog.Any("err", err))
		return CanvasSettings{}, err
	}
	return next, nil
}

func (s *Store) commit(next CanvasSettings, op string) error {
	prev := s.load()
	if s.guard != nil {
		if err := s.guard(next); err != nil {
			s.log.Info("canvas settings refused", slog.Any("err", err))
			return err
		}
	}
	b, err := json.MarshalIndent(next, "", "  ")
	if err == nil {
		err = s.st.Write(storage.CollectionCanvasSettings, b)
	}
	if err != nil {
		s.log.Error(op+" failed", slog.Any("err", err))
		if s.guard != nil {
			if gerr := s.guard(prev); gerr != nil {
				s.log.Warn("guard rollback failed", slog.Any("err", gerr))
			}
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// PresetPatch returns the patch that applies the preset registered under key.
func PresetPatch(key string) (Patch, error) {
	p, ok := LookupPreset(key)
	if !ok {
		return Patch{}, invalid("preset", fmt.Sprintf("%q is unknown", key))
	}
	custom := key == PresetCustom
	return Patch{
		Name:        &p.Name,
		Width:       &p.Width,
		Height:      &p.Height,
		Orientation: &p.Orientation,
		IsCustom:    &custom,
	}, nil
}

// ApplyPreset sets name, size and orientation from the preset table and persists the result.
func (s *Store) ApplyPreset(key string) (CanvasSettings, error) {
	p, err := PresetPatch(key)
	if err != nil {
		return CanvasSettings{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(p)
}

// Reset stores the defaults.
func (s *Store) Reset() (CanvasSettings, error) {
	d := Default()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.commit(d, "reset canvas settings"); err != nil {
		return CanvasSettings{}, err
	}
	return d, nil
}
