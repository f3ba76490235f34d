/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package geometry

// Alignment guides for drag previews. A moving box is pulled onto the edges or
// centres of nearby anchors (other components, the printable area) when it comes
// within Threshold, independently on x and y.

import "math"

// GuideOptions controls which guide candidates are considered and the threshold.
type GuideOptions struct {
	// Threshold is the maximum distance in pixels at which snapping occurs.
	Threshold float64
	// SnapToEdges aligns left/right/top/bottom edges, including abutting edges.
	SnapToEdges bool
	// SnapToCenters aligns horizontal and vertical centres.
	SnapToCenters bool
}

// Anchor is a static reference box. Higher Weight wins when distances tie.
type Anchor struct {
	Rect   Rect
	Weight float64
}

// GuideLine describes a visual guide produced by an alignment.
// Orientation is "vertical" or "horizontal"; Kind is "edge" or "center".
// Position is the x (vertical) or y (horizontal) coordinate of the guide.
type GuideLine struct {
	Orientation string  `json:"orientation"`
	Kind        string  `json:"kind"`
	Position    float64 `json:"position"`
	From        Pt      `json:"from"`
	To          Pt      `json:"to"`
}

type axisBest struct {
	delta float64
	dist  float64
	guide GuideLine
}

// ComputeGuides returns moving adjusted onto the closest anchor features together
// with the guides to draw. Values are rounded to 3 decimal places.
func ComputeGuides(moving Rect, anchors []Anchor, opts GuideOptions) (Rect, []GuideLine) {
	if opts.Threshold <= 0 {
		opts.Threshold = 6
	}
	bx := axisBest{dist: math.Inf(1)}
	by := axisBest{dist: math.Inf(1)}

	mL, mR, mT, mB := moving.X, moving.X+moving.W, moving.Y, moving.Y+moving.H
	mCX, mCY := moving.X+moving.W/2, moving.Y+moving.H/2

	for _, a := range anchors {
		aL, aR, aT, aB := a.Rect.X, a.Rect.X+a.Rect.W, a.Rect.Y, a.Rect.Y+a.Rect.H
		aCX, aCY := a.Rect.X+a.Rect.W/2, a.Rect.Y+a.Rect.H/2
		if opts.SnapToEdges {
			for _, c := range [][2]float64{{mL, aL}, {mR, aR}, {mL, aR}, {mR, aL}} {
				consider(&bx, c[0]-c[1], opts.Threshold, a.Weight, vertical(c[1], moving, a.Rect, "edge"))
			}
			for _, c := range [][2]float64{{mT, aT}, {mB, aB}, {mT, aB}, {mB, aT}} {
				consider(&by, c[0]-c[1], opts.Threshold, a.Weight, horizontal(c[1], moving, a.Rect, "edge"))
			}
		}
		if opts.SnapToCenters {
			consider(&bx, mCX-aCX, opts.Threshold, a.Weight, vertical(aCX, moving, a.Rect, "center"))
			consider(&by, mCY-aCY, opts.Threshold, a.Weight, horizontal(aCY, moving, a.Rect, "center"))
		}
	}

	var guides []GuideLine
	snapped := moving
	if bx.dist <= opts.Threshold {
		snapped.X = FloatRound(moving.X-bx.delta, 3)
		guides = append(guides, bx.guide)
	}
	if by.dist <= opts.Threshold {
		snapped.Y = FloatRound(moving.Y-by.delta, 3)
		guides = append(guides, by.guide)
	}
	return snapped, guides
}

func consider(best *axisBest, delta, threshold, weight float64, g GuideLine) {
	dist := math.Abs(delta)
	if dist > threshold {
		return
	}
	score := dist / math.Max(1, weight)
	if score < best.dist {
		best.dist = dist
		best.delta = delta
		best.guide = g
	}
}

func vertical(x float64, a, b Rect, kind string) GuideLine {
	x = FloatRound(x, 3)
	span := a.Union(b)
	return GuideLine{
		Orientation: "vertical",
		Kind:        kind,
		Position:    x,
		From:        Pt{x, span.Min().Y},
		To:          Pt{x, span.Max().Y},
	}
}

func horizontal(y float64, a, b Rect, kind string) GuideLine {
	y = FloatRound(y, 3)
	span := a.Union(b)
	return GuideLine{
		Orientation: "horizontal",
		Kind:        kind,
		Position:    y,
		From:        Pt{span.Min().X, y},
		To:          Pt{span.Max().X, y},
	}
}
