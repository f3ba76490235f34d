/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package templates stores named invoice layouts and moves them in and out of the designer as JSON
// documents, canvas snapshots and zip packs.
package templates

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"invoicedesigner/internal/canvas"
	"invoicedesigner/internal/settings"
)

const (
	DefaultName  = "Untitled Template"
	ImportedName = "Imported Template"
)

// Page sizes a template may declare.
const (
	PageA4     = "A4"
	PageLetter = "Letter"
	PageLegal  = "Legal"
	PageCustom = "Custom"
)

var (
	ErrNotFound      = errors.New("template not found")
	ErrInvalidImport = errors.New("invalid template document")
)

// ImportError lists why a document was refused.
type ImportError struct {
	Problems []string
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInvalidImport, strings.Join(e.Problems, "; "))
}

func (e *ImportError) Unwrap() error { return ErrInvalidImport }

type Branding struct {
	PrimaryColor   string `json:"primaryColor"`
	SecondaryColor string `json:"secondaryColor"`
	FontFamily     string `json:"fontFamily"`
}

type Settings struct {
	PageSize    string           `json:"pageSize"`
	Orientation string           `json:"orientation"`
	Margins     settings.Margins `json:"margins"`
	Branding    Branding         `json:"branding"`
}

// Template is a saved layout.
type Template struct {
	ID          string                   `json:"id"`
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Components  []canvas.PlacedComponent `json:"components"`
	Settings    Settings                 `json:"settings"`
	IsDefault   bool                     `json:"isDefault"`
	CreatedAt   time.Time                `json:"createdAt"`
	UpdatedAt   time.Time                `json:"updatedAt"`
}

// Patch is a partial update; nil fields keep the stored value.
type Patch struct {
	Name        *string                   `json:"name,omitempty"`
	Description *string                   `json:"description,omitempty"`
	Components  *[]canvas.PlacedComponent `json:"components,omitempty"`
	Settings    *Settings                 `json:"settings,omitempty"`
	IsDefault   *bool                     `json:"isDefault,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{
		PageSize:    PageA4,
		Orientation: settings.Portrait,
		Margins:     settings.Margins{Top: 20, Right: 20, Bottom: 20, Left: 20},
		Branding: Branding{
			PrimaryColor:   "#000000",
			SecondaryColor: "#666666",
			FontFamily:     "Inter",
		},
	}
}

// FromCanvas derives template page settings from the live canvas settings.
func FromCanvas(cs settings.CanvasSettings) Settings {
	s := DefaultSettings()
	s.Orientation = cs.Orientation
	s.Margins = cs.Margins
	switch {
	case cs.IsCustom:
		s.PageSize = PageCustom
	case strings.HasPrefix(cs.ID, "letter"):
		s.PageSize = PageLetter
	case strings.HasPrefix(cs.ID, "legal"):
		s.PageSize = PageLegal
	}
	return s
}

// withDefaults fills what a caller left empty.
func withDefaults(t Template, now time.Time, newID func() string) Template {
	if t.ID == "" {
		t.ID = newID()
	}
	if strings.TrimSpace(t.Name) == "" {
		t.Name = DefaultName
	}
	if t.Components == nil {
		t.Components = []canvas.PlacedComponent{}
	}
	if t.Settings == (Settings{}) {
		t.Settings = DefaultSettings()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	return t
}
