/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"invoicedesigner/internal/fields"
	"invoicedesigner/internal/geometry"
	applog "invoicedesigner/internal/log"
	"invoicedesigner/internal/settings"
	"invoicedesigner/internal/undo"
)

var (
	ErrCollision     = errors.New("placement collides with another component")
	ErrOutOfBounds   = errors.New("component does not fit on the canvas")
	ErrNotFound      = errors.New("component not found")
	ErrInvalid       = errors.New("invalid component")
	ErrGestureActive = errors.New("another gesture is in progress")
	ErrNoGesture     = errors.New("no matching gesture in progress")
)

// PlacementError reports a rejected mutation. With names the component that blocked it.
type PlacementError struct {
	Op   string
	ID   string
	With string
	Err  error
}

func (e *PlacementError) Error() string {
	if e.With != "" {
		return fmt.Sprintf("%s %s: %v (%s)", e.Op, e.ID, e.Err, e.With)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

func (e *PlacementError) Unwrap() error { return e.Err }

// DefaultBuffer is the minimum gap in pixels between two components.
const DefaultBuffer = 5

// Page is the pixel geometry the engine places components on.
type Page struct {
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	GridSize   float64 `json:"gridSize"`
	SnapToGrid bool    `json:"snapToGrid"`
}

func PageFromSettings(s settings.CanvasSettings) Page {
	w, h := settings.PixelSize(s)
	return Page{Width: w, Height: h, GridSize: s.GridSize, SnapToGrid: s.SnapToGrid}
}

type Options struct {
	Buffer    float64
	UndoDepth int
	// UndoCoalesce merges repeated nudges within the window into one undo step.
	UndoCoalesce time.Duration
}

// GestureState is the pointer interaction the engine is tracking.
type GestureState string

const (
	Idle     GestureState = "idle"
	Dragging GestureState = "dragging"
	Resizing GestureState = "resizing"
)

// Outcome of the last finished gesture.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeCommitted Outcome = "committed"
	OutcomeRejected  Outcome = "rejected"
)

// InsertRequest describes a palette drop. Zero Width or Height selects the type's default size and
// nil Properties selects the type's default properties.
type InsertRequest struct {
	Type       ComponentType
	Label      string
	X, Y       float64
	Width      float64
	Height     float64
	Properties Properties
}

// Preview is the non-committing evaluation of an in-flight drag.
type Preview struct {
	Rect      geometry.Rect        `json:"rect"`
	Guides    []geometry.GuideLine `json:"guides"`
	Collides  bool                 `json:"collides"`
	BlockedBy string               `json:"blockedBy,omitempty"`
}

// Direction of a keyboard nudge.
type Direction int

const (
	Left Direction = iota
	Right
	Up
	Down
)

// KeyResult tells the caller what a key press did.
type KeyResult struct {
	Handled   bool             `json:"handled"`
	Action    string           `json:"action,omitempty"`
	Component *PlacedComponent `json:"component,omitempty"`
	Selected  string           `json:"selected,omitempty"`
}

// Engine owns the component list of one canvas. All methods are safe for concurrent use; every
// mutation either commits fully or leaves the state untouched.
type Engine struct {
	mu         sync.Mutex
	page       Page
	buffer     float64
	components []PlacedComponent
	selected   string
	gesture    GestureState
	gestureID  string
	last       Outcome
	history    *undo.Manager
	now        func() time.Time
	newID      func() string
	log        *slog.Logger
}

func NewEngine(page Page, opts Options) *Engine {
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	if opts.UndoDepth <= 0 {
		opts.UndoDepth = 100
	}
	if opts.UndoCoalesce <= 0 {
		opts.UndoCoalesce = 500 * time.Millisecond
	}
	return &Engine{
		page:    page,
		buffer:  opts.Buffer,
		gesture: Idle,
		history: undo.NewManager(undo.Config{MaxDepth: opts.UndoDepth, MinInterval: opts.UndoCoalesce}),
		now:     time.Now,
		newID:   uuid.NewString,
		log:     applog.WithComponent("engine"),
	}
}

// SetPage changes the canvas geometry. Existing components are not moved; a page that would
// leave one of them outside is refused.
func (e *Engine) SetPage(p Page) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range e.components {
		if !c.Rect().Within(p.Width, p.Height) {
			e.log.Info("page change refused", slog.String("id", c.ID))
			return &PlacementError{Op: "page", ID: c.ID, Err: ErrOutOfBounds}
		}
	}
	e.page = p
	return nil
}

func (e *Engine) Page() Page {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.page
}

// Components returns a copy of the list in insertion order.
func (e *Engine) Components() []PlacedComponent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.copyLocked()
}

// Sorted returns a copy in draw order.
func (e *Engine) Sorted() []PlacedComponent {
	return Sorted(e.Components())
}

func (e *Engine) Get(id string) (PlacedComponent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexLocked(id)
	if i < 0 {
		return PlacedComponent{}, ErrNotFound
	}
	return e.components[i].clone(), nil
}

func (e *Engine) Selected() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected
}

// Select marks id as the keyboard target. An empty id clears the selection.
func (e *Engine) Select(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id != "" && e.indexLocked(id) < 0 {
		return ErrNotFound
	}
	e.selected = id
	return nil
}

// Insert places a new component from the palette. The box is clamped into the page, snapped and
// tested against every existing component.
func (e *Engine) Insert(req InsertRequest) (PlacedComponent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !req.Type.Valid() {
		return PlacedComponent{}, fmt.Errorf("%w: unknown type %q", ErrInvalid, req.Type)
	}
	props := req.Properties
	if props == nil {
		props = DefaultProperties(req.Type)
	} else if !propsMatch(req.Type, props) {
		return PlacedComponent{}, fmt.Errorf("%w: properties do not match type %q", ErrInvalid, req.Type)
	}
	w, h := geometry.Finite(req.Width), geometry.Finite(req.Height)
	if w <= 0 || h <= 0 {
		dw, dh := DefaultSize(req.Type)
		if w <= 0 {
			w = dw
		}
		if h <= 0 {
			h = dh
		}
	}
	w = math.Min(math.Max(w, MinWidth), e.page.Width)
	h = math.Min(math.Max(h, MinHeight), e.page.Height)
	c := PlacedComponent{
		ID:         e.newID(),
		Type:       req.Type,
		Label:      cleanText(req.Label),
		X:          e.settle(geometry.Finite(req.X), w, e.page.Width),
		Y:          e.settle(geometry.Finite(req.Y), h, e.page.Height),
		Width:      w,
		Height:     h,
		ZIndex:     len(e.components) + 1,
		Properties: sanitize(cloneProps(props)),
	}
	if err := e.admitLocked("insert", c); err != nil {
		return PlacedComponent{}, err
	}
	e.recordLocked("insert")
	e.components = append(e.components, c)
	e.log.Debug("component inserted", slog.String("id", c.ID), slog.String("type", string(c.Type)))
	return c.clone(), nil
}

// InsertField drops a custom field. Its width and height come from the field's properties when set.
func (e *Engine) InsertField(f fields.CustomField, x, y float64) (PlacedComponent, error) {
	def := f
	def.Properties.Options = append([]string(nil), f.Properties.Options...)
	return e.Insert(InsertRequest{
		Type:   TypeCustomField,
		Label:  f.Label,
		X:      x,
		Y:      y,
		Width:  f.Properties.Width,
		Height: f.Properties.Height,
		Properties: CustomFieldProps{
			FieldDefinition: &def,
			Values:          fields.ComponentProperties(f),
		},
	})
}

// Move repositions id: clamp, then snap, then collision test against the others.
func (e *Engine) Move(id string, x, y float64) (PlacedComponent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.moveLocked("move", id, x, y)
}

func (e *Engine) moveLocked(op, id string, x, y float64) (PlacedComponent, error) {
	i := e.indexLocked(id)
	if i < 0 {
		return PlacedComponent{}, ErrNotFound
	}
	c := e.components[i]
	next := c
	next.X = e.settle(geometry.Finite(x), c.Width, e.page.Width)
	next.Y = e.settle(geometry.Finite(y), c.Height, e.page.Height)
	if next.X == c.X && next.Y == c.Y {
		return c.clone(), nil
	}
	if err := e.admitLocked(op, next); err != nil {
		return PlacedComponent{}, err
	}
	e.recordLocked(op)
	e.components[i] = next
	return next.clone(), nil
}

// Resize sets the size of id, clamped to [MinWidth, page-x] × [MinHeight, page-y]. The position
// is kept.
func (e *Engine) Resize(id string, w, h float64) (PlacedComponent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resizeLocked(id, w, h)
}

func (e *Engine) resizeLocked(id string, w, h float64) (PlacedComponent, error) {
	i := e.indexLocked(id)
	if i < 0 {
		return PlacedComponent{}, ErrNotFound
	}
	c := e.components[i]
	next := c
	next.Width = math.Max(MinWidth, math.Min(geometry.Finite(w), e.page.Width-c.X))
	next.Height = math.Max(MinHeight, math.Min(geometry.Finite(h), e.page.Height-c.Y))
	if !next.Rect().Within(e.page.Width, e.page.Height) {
		return PlacedComponent{}, &PlacementError{Op: "resize", ID: id, Err: ErrOutOfBounds}
	}
	if next.Width == c.Width && next.Height == c.Height {
		return c.clone(), nil
	}
	if err := e.admitLocked("resize", next); err != nil {
		return PlacedComponent{}, err
	}
	e.recordLocked("resize")
	e.components[i] = next
	return next.clone(), nil
}

// Delete removes id and clears the selection when it pointed at id.
func (e *Engine) Delete(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deleteLocked(id)
}

func (e *Engine) deleteLocked(id string) error {
	i := e.indexLocked(id)
	if i < 0 {
		return ErrNotFound
	}
	e.recordLocked("delete")
	e.components = append(e.components[:i], e.components[i+1:]...)
	if e.selected == id {
		e.selected = ""
	}
	if e.gestureID == id {
		e.gesture, e.gestureID = Idle, ""
	}
	return nil
}

// Clear removes every component.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.components) == 0 {
		return
	}
	e.recordLocked("clear")
	e.components = nil
	e.selected = ""
	e.gesture, e.gestureID = Idle, ""
}

// Nudge moves id by 1px, or 10px with modifier, then applies the move contract.
func (e *Engine) Nudge(id string, dir Direction, modifier bool) (PlacedComponent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nudgeLocked(id, dir, modifier)
}

func (e *Engine) nudgeLocked(id string, dir Direction, modifier bool) (PlacedComponent, error) {
	i := e.indexLocked(id)
	if i < 0 {
		return PlacedComponent{}, ErrNotFound
	}
	c := e.components[i]
	step := 1.0
	if modifier {
		step = 10
	}
	x, y := c.X, c.Y
	switch dir {
	case Left:
		x = math.Max(0, x-step)
	case Right:
		x = math.Min(e.page.Width-c.Width, x+step)
	case Up:
		y = math.Max(0, y-step)
	case Down:
		y = math.Min(e.page.Height-c.Height, y+step)
	default:
		return PlacedComponent{}, fmt.Errorf("%w: direction %d", ErrInvalid, dir)
	}
	return e.moveLocked("nudge", id, x, y)
}

// HandleKey applies a key press to the selected component. Arrow keys nudge, Delete and
// Backspace remove, Escape keeps the selection. Without a selection nothing happens.
func (e *Engine) HandleKey(key string, shift bool) (KeyResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selected == "" {
		return KeyResult{}, nil
	}
	id := e.selected
	var dir Direction
	switch key {
	case "ArrowLeft":
		dir = Left
	case "ArrowRight":
		dir = Right
	case "ArrowUp":
		dir = Up
	case "ArrowDown":
		dir = Down
	case "Delete", "Backspace":
		if err := e.deleteLocked(id); err != nil {
			return KeyResult{}, err
		}
		return KeyResult{Handled: true, Action: "delete"}, nil
	case "Escape":
		return KeyResult{Handled: true, Action: "select", Selected: id}, nil
	default:
		return KeyResult{Selected: id}, nil
	}
	c, err := e.nudgeLocked(id, dir, shift)
	if err != nil {
		return KeyResult{Handled: true, Action: "nudge", Selected: id}, err
	}
	return KeyResult{Handled: true, Action: "nudge", Component: &c, Selected: id}, nil
}

// UpdateProperties replaces the property record of id. The record must match the component type.
func (e *Engine) UpdateProperties(id string, props Properties) (PlacedComponent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexLocked(id)
	if i < 0 {
		return PlacedComponent{}, ErrNotFound
	}
	c := e.components[i]
	if props == nil || !propsMatch(c.Type, props) {
		return PlacedComponent{}, fmt.Errorf("%w: properties do not match type %q", ErrInvalid, c.Type)
	}
	e.recordLocked("properties")
	c.Properties = sanitize(cloneProps(props))
	e.components[i] = c
	return c.clone(), nil
}

// Change is a partial update of one component. Nil fields keep their current value.
type Change struct {
	X, Y          *float64
	Width, Height *float64
	Properties    Properties
}

// Apply updates position, size and properties of id as one step. Axes with a new coordinate
// follow the move contract using the new size; the others keep their coordinate and follow the
// resize contract. The candidate is collision tested once and either committed whole or
// rejected with nothing changed.
func (e *Engine) Apply(id string, ch Change) (PlacedComponent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexLocked(id)
	if i < 0 {
		return PlacedComponent{}, ErrNotFound
	}
	c := e.components[i]
	if ch.Properties != nil && !propsMatch(c.Type, ch.Properties) {
		return PlacedComponent{}, fmt.Errorf("%w: properties do not match type %q", ErrInvalid, c.Type)
	}
	next := c
	next.X, next.Width = e.fitAxis(c.X, c.Width, ch.X, ch.Width, MinWidth, e.page.Width)
	next.Y, next.Height = e.fitAxis(c.Y, c.Height, ch.Y, ch.Height, MinHeight, e.page.Height)
	if !next.Rect().Within(e.page.Width, e.page.Height) {
		return PlacedComponent{}, &PlacementError{Op: "update", ID: id, Err: ErrOutOfBounds}
	}
	moved := next.Rect() != c.Rect()
	if !moved && ch.Properties == nil {
		return c.clone(), nil
	}
	if moved {
		if err := e.admitLocked("update", next); err != nil {
			return PlacedComponent{}, err
		}
	}
	if ch.Properties != nil {
		next.Properties = sanitize(cloneProps(ch.Properties))
	}
	e.recordLocked("update")
	e.components[i] = next
	return next.clone(), nil
}

// fitAxis returns the coordinate and size of one axis after a partial update.
func (e *Engine) fitAxis(pos, size float64, newPos, newSize *float64, minSize, limit float64) (float64, float64) {
	if newSize != nil {
		size = math.Max(minSize, math.Min(geometry.Finite(*newSize), limit))
	}
	if newPos != nil {
		return e.settle(geometry.Finite(*newPos), size, limit), size
	}
	if newSize != nil {
		size = math.Max(minSize, math.Min(size, limit-pos))
	}
	return pos, size
}

// BeginDrag starts a move gesture on id.
func (e *Engine) BeginDrag(id string) error { return e.begin(Dragging, id) }

// BeginResize starts a resize gesture on id.
func (e *Engine) BeginResize(id string) error { return e.begin(Resizing, id) }

func (e *Engine) begin(s GestureState, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gesture != Idle {
		return ErrGestureActive
	}
	if e.indexLocked(id) < 0 {
		return ErrNotFound
	}
	e.gesture, e.gestureID, e.last = s, id, OutcomeNone
	e.selected = id
	return nil
}

// PreviewDrag evaluates a drag position without committing it. The snapped box is further aligned
// to the edges and centres of the other components and the page.
func (e *Engine) PreviewDrag(x, y float64) (Preview, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gesture != Dragging {
		return Preview{}, ErrNoGesture
	}
	c := e.components[e.indexLocked(e.gestureID)]
	box := geometry.R(e.settle(geometry.Finite(x), c.Width, e.page.Width), e.settle(geometry.Finite(y), c.Height, e.page.Height), c.Width, c.Height)
	anchors := []geometry.Anchor{{Rect: geometry.R(0, 0, e.page.Width, e.page.Height), Weight: 1}}
	for _, o := range e.components {
		if o.ID != c.ID {
			anchors = append(anchors, geometry.Anchor{Rect: o.Rect(), Weight: 2})
		}
	}
	aligned, guides := geometry.ComputeGuides(box, anchors, geometry.GuideOptions{SnapToEdges: true, SnapToCenters: true})
	aligned = geometry.ClampBox(aligned, e.page.Width, e.page.Height)
	p := Preview{Rect: aligned, Guides: guides}
	candidate := c
	candidate.X, candidate.Y = aligned.X, aligned.Y
	if blocker := e.blockerLocked(candidate); blocker != "" {
		p.Collides, p.BlockedBy = true, blocker
	}
	return p, nil
}

// EndDrag finishes a drag at (x,y) through the move contract.
func (e *Engine) EndDrag(x, y float64) (PlacedComponent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gesture != Dragging {
		return PlacedComponent{}, ErrNoGesture
	}
	c, err := e.moveLocked("move", e.gestureID, x, y)
	e.finishLocked(err)
	return c, err
}

// EndResize finishes a resize gesture with the final size.
func (e *Engine) EndResize(w, h float64) (PlacedComponent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gesture != Resizing {
		return PlacedComponent{}, ErrNoGesture
	}
	c, err := e.resizeLocked(e.gestureID, w, h)
	e.finishLocked(err)
	return c, err
}

// CancelGesture abandons the current gesture without touching the components.
func (e *Engine) CancelGesture() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gesture, e.gestureID = Idle, ""
}

// Gesture reports the current gesture and the outcome of the last finished one.
func (e *Engine) Gesture() (GestureState, Outcome) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gesture, e.last
}

func (e *Engine) finishLocked(err error) {
	e.gesture, e.gestureID = Idle, ""
	if err != nil {
		e.last = OutcomeRejected
		return
	}
	e.last = OutcomeCommitted
}

// Undo reverts the last accepted mutation. It reports false when there is nothing to undo.
func (e *Engine) Undo() (bool, error) {
	return e.step(e.history.Undo)
}

// Redo re-applies the last undone mutation.
func (e *Engine) Redo() (bool, error) {
	return e.step(e.history.Redo)
}

func (e *Engine) step(pop func(undo.Snapshot) (undo.Snapshot, bool)) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur, err := encodeComponents(e.components)
	if err != nil {
		return false, err
	}
	s, ok := pop(undo.Snapshot{Blob: cur, TS: e.now()})
	if !ok {
		return false, nil
	}
	cs, err := decodeComponents(s.Blob)
	if err != nil {
		return false, err
	}
	e.components = cs
	if e.selected != "" && e.indexLocked(e.selected) < 0 {
		e.selected = ""
	}
	e.gesture, e.gestureID = Idle, ""
	return true, nil
}

// History reports the undo and redo depth.
func (e *Engine) History() (undoDepth, redoDepth int) {
	_, u, r := e.history.Stats()
	return u, r
}

// Restore replaces the page and the component list, for instance when a template is loaded.
// Components are validated individually and must lie on page; pairwise overlap in stored layouts
// is tolerated. On error nothing changes.
func (e *Engine) Restore(page Page, cs []PlacedComponent) error {
	if err := Validate(cs); err != nil {
		return err
	}
	next := make([]PlacedComponent, 0, len(cs))
	for _, c := range cs {
		if !c.Rect().Within(page.Width, page.Height) {
			return &PlacementError{Op: "restore", ID: c.ID, Err: ErrOutOfBounds}
		}
		c = c.clone()
		c.Properties = sanitize(c.Properties)
		next = append(next, c)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recordLocked("restore")
	e.page = page
	e.components = next
	e.selected = ""
	e.gesture, e.gestureID = Idle, ""
	return nil
}

// Validate checks a stored component list: known types, matching properties, finite boxes of at
// least the minimum size and unique ids.
func Validate(cs []PlacedComponent) error {
	seen := make(map[string]bool, len(cs))
	for _, c := range cs {
		if err := validateComponent(c); err != nil {
			return err
		}
		if seen[c.ID] {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalid, c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}

func validateComponent(c PlacedComponent) error {
	switch {
	case c.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalid)
	case !c.Type.Valid():
		return fmt.Errorf("%w: unknown type %q", ErrInvalid, c.Type)
	case c.Properties == nil || !propsMatch(c.Type, c.Properties):
		return fmt.Errorf("%w: %s properties do not match type %q", ErrInvalid, c.ID, c.Type)
	}
	for _, v := range []float64{c.X, c.Y, c.Width, c.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s has a non-finite coordinate", ErrInvalid, c.ID)
		}
	}
	if c.X < 0 || c.Y < 0 || c.Width < MinWidth || c.Height < MinHeight {
		return fmt.Errorf("%w: %s has an invalid box", ErrInvalid, c.ID)
	}
	return nil
}

// settle clamps v into [0, limit-size] and snaps it, stepping back one grid cell when the snapped
// value would push the box past the page edge.
func (e *Engine) settle(v, size, limit float64) float64 {
	hi := math.Max(0, limit-size)
	v = math.Min(math.Max(v, 0), hi)
	s := geometry.Snap(v, e.page.GridSize, e.page.SnapToGrid)
	if s > hi && e.page.SnapToGrid && e.page.GridSize > 0 {
		s = math.Floor(hi/e.page.GridSize) * e.page.GridSize
	}
	return math.Max(0, s)
}

func (e *Engine) admitLocked(op string, c PlacedComponent) error {
	if blocker := e.blockerLocked(c); blocker != "" {
		e.log.Info("placement rejected", slog.String("op", op), slog.String("id", c.ID), slog.String("with", blocker))
		return &PlacementError{Op: op, ID: c.ID, With: blocker, Err: ErrCollision}
	}
	return nil
}

func (e *Engine) blockerLocked(c PlacedComponent) string {
	r := c.Rect()
	for _, o := range e.components {
		if o.ID != c.ID && geometry.Overlaps(r, o.Rect(), e.buffer) {
			return o.ID
		}
	}
	return ""
}

// recordLocked pushes the pre-mutation state. Only nudges carry a label, so only bursts of nudges
// coalesce into one undo step.
func (e *Engine) recordLocked(op string) {
	blob, err := encodeComponents(e.components)
	if err != nil {
		e.log.Warn("undo snapshot failed", slog.String("op", op), slog.Any("err", err))
		return
	}
	s := undo.Snapshot{Blob: blob, TS: e.now()}
	if op == "nudge" {
		s.Label = op
	}
	e.history.Push(s)
}

func (e *Engine) indexLocked(id string) int {
	for i := range e.components {
		if e.components[i].ID == id {
			return i
		}
	}
	return -1
}

func (e *Engine) copyLocked() []PlacedComponent {
	out := make([]PlacedComponent, len(e.components))
	for i, c := range e.components {
		out[i] = c.clone()
	}
	return out
}
