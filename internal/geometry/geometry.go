/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package geometry holds the pure box arithmetic behind the canvas: overlap tests with a
// buffer, clamping into the page, grid snapping and alignment guides. Units are canvas
// pixels. Nothing here keeps state.
package geometry

import (
	"math"
	"strconv"
	"strings"
)

// Pt is a 2D point.
type Pt struct{ X, Y float64 }

// Rect is an axis-aligned box defined by its top-left corner and size.
type Rect struct {
	X, Y float64
	W, H float64
}

func R(x, y, w, h float64) Rect { return Rect{X: x, Y: y, W: w, H: h} }

func (r Rect) Min() Pt { return Pt{r.X, r.Y} }
func (r Rect) Max() Pt { return Pt{r.X + r.W, r.Y + r.H} }

func (r Rect) Contains(p Pt) bool {
	return p.X >= r.X && p.Y >= r.Y && p.X <= r.X+r.W && p.Y <= r.Y+r.H
}

// Inset returns a rectangle inset by dx,dy on all sides (negative grows).
func (r Rect) Inset(dx, dy float64) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, W: r.W - 2*dx, H: r.H - 2*dy}
}

// Union returns the minimal rect containing both.
func (r Rect) Union(o Rect) Rect {
	minX := math.Min(r.X, o.X)
	minY := math.Min(r.Y, o.Y)
	maxX := math.Max(r.X+r.W, o.X+o.W)
	maxY := math.Max(r.Y+r.H, o.Y+o.H)
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Within reports whether r lies fully inside a w×h container anchored at the origin.
func (r Rect) Within(w, h float64) bool {
	page := R(0, 0, w, h)
	return page.Contains(r.Min()) && page.Contains(r.Max())
}

// Overlaps reports whether a and b come closer than buffer on both axes.
// Boxes separated along x or y by at least buffer do not overlap. Symmetric;
// callers exclude a box from being tested against itself.
func Overlaps(a, b Rect, buffer float64) bool {
	g := a.Inset(-buffer, -buffer)
	if g.Max().X <= b.X || b.Max().X <= g.X {
		return false
	}
	if g.Max().Y <= b.Y || b.Max().Y <= g.Y {
		return false
	}
	return true
}

// ClampBox shifts box so that it lies in [0,cw-w]×[0,ch-h]. Width and height are kept;
// a box larger than the container is pinned to the origin on that axis.
func ClampBox(box Rect, cw, ch float64) Rect {
	box.X = clamp(box.X, 0, math.Max(0, cw-box.W))
	box.Y = clamp(box.Y, 0, math.Max(0, ch-box.H))
	return box
}

// Snap rounds v to the nearest multiple of grid when enabled and grid > 0.
func Snap(v, grid float64, enabled bool) float64 {
	if !enabled || grid <= 0 {
		return v
	}
	return math.Round(v/grid) * grid
}

// Finite maps NaN and ±Inf to 0 so malformed input cannot reach the collision math.
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ParseNumber parses user-typed numeric input; anything unparsable yields 0.
func ParseNumber(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return Finite(f)
}

// FloatRound rounds v to n decimal places deterministically.
func FloatRound(v float64, places int) float64 {
	if places < 0 {
		return v
	}
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
