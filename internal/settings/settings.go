/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package settings holds the canvas page description (size in millimetres, margins, grid, zoom
// bounds) and converts between millimetres and screen pixels at 96 DPI.
package settings

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// PixelsPerMM is 96 DPI expressed per millimetre.
const PixelsPerMM = 3.7795275591

const (
	Portrait  = "portrait"
	Landscape = "landscape"

	DefaultID    = "default-canvas"
	PresetCustom = "custom"

	MinCustomMM = 50
	MaxCustomMM = 1000
)

type Margins struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

type Zoom struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
}

// CanvasSettings describes the current page. Width and Height are millimetres, GridSize is pixels.
type CanvasSettings struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Width           float64   `json:"width"`
	Height          float64   `json:"height"`
	Orientation     string    `json:"orientation"`
	Margins         Margins   `json:"margins"`
	GridSize        float64   `json:"gridSize"`
	SnapToGrid      bool      `json:"snapToGrid"`
	BackgroundColor string    `json:"backgroundColor"`
	ShowRulers      bool      `json:"showRulers"`
	ShowGuides      bool      `json:"showGuides"`
	Zoom            Zoom      `json:"zoom"`
	IsCustom        bool      `json:"isCustom"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Patch is a partial update; nil fields keep the stored value. Margins and Zoom replace the whole
// sub-record.
type Patch struct {
	Name            *string  `json:"name,omitempty"`
	Width           *float64 `json:"width,omitempty"`
	Height          *float64 `json:"height,omitempty"`
	Orientation     *string  `json:"orientation,omitempty"`
	Margins         *Margins `json:"margins,omitempty"`
	GridSize        *float64 `json:"gridSize,omitempty"`
	SnapToGrid      *bool    `json:"snapToGrid,omitempty"`
	BackgroundColor *string  `json:"backgroundColor,omitempty"`
	ShowRulers      *bool    `json:"showRulers,omitempty"`
	ShowGuides      *bool    `json:"showGuides,omitempty"`
	Zoom            *Zoom    `json:"zoom,omitempty"`
	IsCustom        *bool    `json:"isCustom,omitempty"`
}

// PatchFrom returns a patch that overwrites every user-editable field with the values of s.
func PatchFrom(s CanvasSettings) Patch {
	return Patch{
		Name:            &s.Name,
		Width:           &s.Width,
		Height:          &s.Height,
		Orientation:     &s.Orientation,
		Margins:         &s.Margins,
		GridSize:        &s.GridSize,
		SnapToGrid:      &s.SnapToGrid,
		BackgroundColor: &s.BackgroundColor,
		ShowRulers:      &s.ShowRulers,
		ShowGuides:      &s.ShowGuides,
		Zoom:            &s.Zoom,
		IsCustom:        &s.IsCustom,
	}
}

// Preset is a named paper size.
type Preset struct {
	Key         string  `json:"key"`
	Name        string  `json:"name"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Orientation string  `json:"orientation"`
}

var presets = map[string]Preset{
	"a4-portrait":      {Name: "A4 Portrait", Width: 210, Height: 297, Orientation: Portrait},
	"a4-landscape":     {Name: "A4 Landscape", Width: 297, Height: 210, Orientation: Landscape},
	"letter-portrait":  {Name: "Letter Portrait", Width: 216, Height: 279, Orientation: Portrait},
	"letter-landscape": {Name: "Letter Landscape", Width: 279, Height: 216, Orientation: Landscape},
	"legal-portrait":   {Name: "Legal Portrait", Width: 216, Height: 356, Orientation: Portrait},
	"legal-landscape":  {Name: "Legal Landscape", Width: 356, Height: 216, Orientation: Landscape},
	PresetCustom:       {Name: "Custom Size", Width: 210, Height: 297, Orientation: Portrait},
}

// LookupPreset returns the preset registered under key.
func LookupPreset(key string) (Preset, bool) {
	p, ok := presets[key]
	p.Key = key
	return p, ok
}

// Presets lists every preset ordered by key.
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for k := range presets {
		p, _ := LookupPreset(k)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Default returns A4 portrait with 20mm margins and a 10px snapping grid.
func Default() CanvasSettings {
	now := time.Now().UTC()
	return CanvasSettings{
		ID:              DefaultID,
		Name:            "A4 Portrait",
		Width:           210,
		Height:          297,
		Orientation:     Portrait,
		Margins:         Margins{Top: 20, Right: 20, Bottom: 20, Left: 20},
		GridSize:        10,
		SnapToGrid:      true,
		BackgroundColor: "#ffffff",
		ShowRulers:      true,
		ShowGuides:      true,
		Zoom:            Zoom{Min: 0.25, Max: 3, Default: 1},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// MMToPixels converts millimetres to whole pixels at 96 DPI.
func MMToPixels(mm float64) float64 { return math.Round(mm * PixelsPerMM) }

// PixelsToMM converts pixels to whole millimetres at 96 DPI.
func PixelsToMM(px float64) float64 { return math.Round(px / PixelsPerMM) }

// PixelSize is the canvas size in pixels, the container the engine clamps against.
func PixelSize(s CanvasSettings) (w, h float64) {
	return MMToPixels(s.Width), MMToPixels(s.Height)
}

// Area is the printable region in millimetres.
type Area struct {
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
}

// PrintableArea is the page minus its margins.
func PrintableArea(s CanvasSettings) Area {
	return Area{
		Width:   s.Width - s.Margins.Left - s.Margins.Right,
		Height:  s.Height - s.Margins.Top - s.Margins.Bottom,
		OffsetX: s.Margins.Left,
		OffsetY: s.Margins.Top,
	}
}

// ValidationError reports a settings value outside its allowed range.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid canvas settings: %s %s", e.Field, e.Reason)
}

func invalid(field, reason string) error { return &ValidationError{Field: field, Reason: reason} }

// Validate checks zoom ordering, custom page bounds, the grid pitch and the margins.
func Validate(s CanvasSettings) error {
	for name, v := range map[string]float64{
		"width": s.Width, "height": s.Height, "gridSize": s.GridSize,
		"zoom.min": s.Zoom.Min, "zoom.max": s.Zoom.Max, "zoom.default": s.Zoom.Default,
		"margins.top": s.Margins.Top, "margins.right": s.Margins.Right,
		"margins.bottom": s.Margins.Bottom, "margins.left": s.Margins.Left,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalid(name, "must be a finite number")
		}
	}
	if s.Zoom.Min <= 0 {
		return invalid("zoom.min", "must be positive")
	}
	if s.Zoom.Min > s.Zoom.Default || s.Zoom.Default > s.Zoom.Max {
		return invalid("zoom", "must satisfy min <= default <= max")
	}
	if s.Width <= 0 || s.Height <= 0 {
		return invalid("size", "must be positive")
	}
	if s.IsCustom {
		if s.Width < MinCustomMM || s.Width > MaxCustomMM {
			return invalid("width", fmt.Sprintf("must be within [%d, %d] mm", MinCustomMM, MaxCustomMM))
		}
		if s.Height < MinCustomMM || s.Height > MaxCustomMM {
			return invalid("height", fmt.Sprintf("must be within [%d, %d] mm", MinCustomMM, MaxCustomMM))
		}
	}
	if s.GridSize <= 0 {
		return invalid("gridSize", "must be positive")
	}
	m := s.Margins
	if m.Top < 0 || m.Right < 0 || m.Bottom < 0 || m.Left < 0 {
		return invalid("margins", "must not be negative")
	}
	if m.Left+m.Right >= s.Width || m.Top+m.Bottom >= s.Height {
		return invalid("margins", "must leave a printable area")
	}
	switch s.Orientation {
	case Portrait, Landscape:
	default:
		return invalid("orientation", "must be portrait or landscape")
	}
	return nil
}

// Apply merges p into s.
func (s CanvasSettings) Apply(p Patch) CanvasSettings {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Width != nil {
		s.Width = *p.Width
	}
	if p.Height != nil {
		s.Height = *p.Height
	}
	if p.Orientation != nil {
		s.Orientation = *p.Orientation
	}
	if p.Margins != nil {
		s.Margins = *p.Margins
	}
	if p.GridSize != nil {
		s.GridSize = *p.GridSize
	}
	if p.SnapToGrid != nil {
		s.SnapToGrid = *p.SnapToGrid
	}
	if p.BackgroundColor != nil {
		s.BackgroundColor = *p.BackgroundColor
	}
	if p.ShowRulers != nil {
		s.ShowRulers = *p.ShowRulers
	}
	if p.ShowGuides != nil {
		s.ShowGuides = *p.ShowGuides
	}
	if p.Zoom != nil {
		s.Zoom = *p.Zoom
	}
	if p.IsCustom != nil {
		s.IsCustom = *p.IsCustom
	}
	return s
}
