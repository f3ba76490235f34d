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
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"time"

	"invoicedesigner/internal/fields"
	"invoicedesigner/internal/geometry"
	"invoicedesigner/internal/settings"
)

func newTestEngine(t *testing.T, snap bool) *Engine {
	t.Helper()
	e := NewEngine(Page{Width: 800, Height: 1000, GridSize: 10, SnapToGrid: snap}, Options{})
	n := 0
	e.newID = func() string { n++; return fmt.Sprintf("c%d", n) }
	return e
}

func TestInsertRejectsOverlap(t *testing.T) {
	e := newTestEngine(t, true)
	c, err := e.Insert(InsertRequest{Type: TypeText, X: 50, Y: 50})
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if c.X != 50 || c.Y != 50 || c.Width != 200 || c.Height != 30 || c.ZIndex != 1 {
		t.Fatalf("unexpected component %+v", c)
	}
	_, err = e.Insert(InsertRequest{Type: TypeText, X: 60, Y: 60})
	if !errors.Is(err, ErrCollision) {
		t.Fatalf("expected collision, got %v", err)
	}
	var pe *PlacementError
	if !errors.As(err, &pe) || pe.With != c.ID {
		t.Fatalf("expected placement error naming %s, got %v", c.ID, err)
	}
	if n := len(e.Components()); n != 1 {
		t.Fatalf("expected 1 component, got %d", n)
	}
}

func TestMoveSnapsToGrid(t *testing.T) {
	e := newTestEngine(t, true)
	c, _ := e.Insert(InsertRequest{Type: TypeText, X: 300, Y: 300})
	m, err := e.Move(c.ID, 57, 23)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if m.X != 60 || m.Y != 20 {
		t.Fatalf("expected (60,20), got (%v,%v)", m.X, m.Y)
	}
}

func TestRejectedMoveLeavesStateUntouched(t *testing.T) {
	e := newTestEngine(t, true)
	a, _ := e.Insert(InsertRequest{Type: TypeText, X: 0, Y: 0})
	b, _ := e.Insert(InsertRequest{Type: TypeText, X: 0, Y: 100})
	if err := e.Select(b.ID); err != nil {
		t.Fatal(err)
	}
	before := e.Components()
	u0, _ := e.History()
	if _, err := e.Move(b.ID, a.X+10, a.Y+10); !errors.Is(err, ErrCollision) {
		t.Fatalf("expected collision, got %v", err)
	}
	if !reflect.DeepEqual(before, e.Components()) {
		t.Fatalf("state changed after rejected move")
	}
	if u1, _ := e.History(); u1 != u0 {
		t.Fatalf("rejected move recorded an undo step")
	}
	if e.Selected() != b.ID {
		t.Fatalf("selection changed")
	}
}

func TestBufferBoundary(t *testing.T) {
	e := newTestEngine(t, false)
	a, _ := e.Insert(InsertRequest{Type: TypeText, X: 0, Y: 0, Width: 100, Height: 30})
	// exactly the buffer apart is allowed
	if _, err := e.Insert(InsertRequest{Type: TypeText, X: 105, Y: 0, Width: 100, Height: 30}); err != nil {
		t.Fatalf("insert at buffer distance: %v", err)
	}
	if _, err := e.Insert(InsertRequest{Type: TypeText, X: a.X, Y: 34, Width: 100, Height: 30}); !errors.Is(err, ErrCollision) {
		t.Fatalf("expected collision inside buffer, got %v", err)
	}
}

func TestInsertClampsIntoPage(t *testing.T) {
	e := newTestEngine(t, true)
	c, err := e.Insert(InsertRequest{Type: TypeTable, X: 790, Y: 995})
	if err != nil {
		t.Fatal(err)
	}
	if c.X+c.Width > 800 || c.Y+c.Height > 1000 {
		t.Fatalf("component escaped the page: %+v", c.Rect())
	}
	if c.X != 400 || c.Y != 880 {
		t.Fatalf("expected (400,880), got (%v,%v)", c.X, c.Y)
	}
}

func TestSnapStaysInsidePage(t *testing.T) {
	e := NewEngine(Page{Width: 805, Height: 1000, GridSize: 10, SnapToGrid: true}, Options{})
	c, err := e.Insert(InsertRequest{Type: TypeText, X: 700, Y: 0, Width: 200, Height: 30})
	if err != nil {
		t.Fatal(err)
	}
	// clamp gives 605, snapping rounds to 610 which would overflow
	if c.X != 600 {
		t.Fatalf("expected x=600, got %v", c.X)
	}
}

func TestNonFiniteInputIsZero(t *testing.T) {
	e := newTestEngine(t, true)
	c, err := e.Insert(InsertRequest{Type: TypeText, X: geometryNaN(), Y: 40})
	if err != nil {
		t.Fatal(err)
	}
	if c.X != 0 {
		t.Fatalf("expected NaN to map to 0, got %v", c.X)
	}
}

func geometryNaN() float64 {
	var zero float64
	return zero / zero
}

func TestResizeClamps(t *testing.T) {
	e := newTestEngine(t, true)
	c, _ := e.Insert(InsertRequest{Type: TypeText, X: 700, Y: 900})
	r, err := e.Resize(c.ID, 10, 500)
	if err != nil {
		t.Fatal(err)
	}
	if r.Width != MinWidth {
		t.Fatalf("expected min width, got %v", r.Width)
	}
	if r.Y+r.Height != 1000 {
		t.Fatalf("expected height clamped to page, got %v", r.Height)
	}
	r, _ = e.Resize(c.ID, 1000, 1)
	if r.X+r.Width != 800 || r.Height != MinHeight {
		t.Fatalf("unexpected clamp %+v", r.Rect())
	}
}

func TestResizeRejectsCollision(t *testing.T) {
	e := newTestEngine(t, false)
	a, _ := e.Insert(InsertRequest{Type: TypeText, X: 0, Y: 0, Width: 100, Height: 30})
	_, _ = e.Insert(InsertRequest{Type: TypeText, X: 200, Y: 0, Width: 100, Height: 30})
	// a right edge at 198 leaves 2px to the neighbour at 200, inside the 5px buffer
	if _, err := e.Resize(a.ID, 198, 30); !errors.Is(err, ErrCollision) {
		t.Fatalf("expected collision, got %v", err)
	}
	got, _ := e.Get(a.ID)
	if got.Width != 100 {
		t.Fatalf("width changed to %v", got.Width)
	}
}

func TestInvariantsUnderRandomOperations(t *testing.T) {
	e := newTestEngine(t, true)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		cs := e.Components()
		switch op := rng.Intn(4); {
		case op == 0 || len(cs) == 0:
			_, _ = e.Insert(InsertRequest{Type: Types[rng.Intn(len(Types)-1)], X: rng.Float64()*900 - 50, Y: rng.Float64()*1100 - 50})
		case op == 1:
			c := cs[rng.Intn(len(cs))]
			_, _ = e.Move(c.ID, rng.Float64()*900-50, rng.Float64()*1100-50)
		case op == 2:
			c := cs[rng.Intn(len(cs))]
			_, _ = e.Resize(c.ID, rng.Float64()*500, rng.Float64()*300)
		default:
			c := cs[rng.Intn(len(cs))]
			_, _ = e.Nudge(c.ID, Direction(rng.Intn(4)), rng.Intn(2) == 0)
		}
		cs = e.Components()
		for a := range cs {
			if !cs[a].Rect().Within(800, 1000) {
				t.Fatalf("step %d: %s out of bounds: %+v", i, cs[a].ID, cs[a].Rect())
			}
			for b := a + 1; b < len(cs); b++ {
				if geometry.Overlaps(cs[a].Rect(), cs[b].Rect(), DefaultBuffer) {
					t.Fatalf("step %d: %s overlaps %s", i, cs[a].ID, cs[b].ID)
				}
			}
		}
	}
}

func TestHandleKey(t *testing.T) {
	e := newTestEngine(t, true)
	c, _ := e.Insert(InsertRequest{Type: TypeText, X: 50, Y: 50})
	if res, _ := e.HandleKey("ArrowRight", true); res.Handled {
		t.Fatalf("key handled without selection")
	}
	_ = e.Select(c.ID)
	res, err := e.HandleKey("ArrowRight", true)
	if err != nil || !res.Handled || res.Component == nil || res.Component.X != 60 {
		t.Fatalf("unexpected nudge result %+v, %v", res, err)
	}
	res, _ = e.HandleKey("ArrowUp", true)
	if res.Component.Y != 40 {
		t.Fatalf("expected y=40, got %v", res.Component.Y)
	}
	if res, _ = e.HandleKey("Escape", false); res.Selected != c.ID {
		t.Fatalf("escape dropped selection")
	}
	if res, _ = e.HandleKey("a", false); res.Handled {
		t.Fatalf("plain key handled")
	}
	if res, _ = e.HandleKey("Backspace", false); !res.Handled || res.Action != "delete" {
		t.Fatalf("unexpected delete result %+v", res)
	}
	if len(e.Components()) != 0 || e.Selected() != "" {
		t.Fatalf("component or selection survived delete")
	}
}

func TestNudgeClampsAtEdge(t *testing.T) {
	e := newTestEngine(t, false)
	c, _ := e.Insert(InsertRequest{Type: TypeText, X: 3, Y: 0})
	m, err := e.Nudge(c.ID, Left, true)
	if err != nil {
		t.Fatal(err)
	}
	if m.X != 0 {
		t.Fatalf("expected x=0, got %v", m.X)
	}
}

func TestUndoRedo(t *testing.T) {
	e := newTestEngine(t, true)
	c, _ := e.Insert(InsertRequest{Type: TypeText, X: 50, Y: 50})
	if _, err := e.Move(c.ID, 300, 300); err != nil {
		t.Fatal(err)
	}
	ok, err := e.Undo()
	if err != nil || !ok {
		t.Fatalf("undo: %v %v", ok, err)
	}
	got, _ := e.Get(c.ID)
	if got.X != 50 || got.Y != 50 {
		t.Fatalf("undo did not restore position: %+v", got.Rect())
	}
	if p, ok := got.Properties.(TextProps); !ok || p.Content != "Sample Text" {
		t.Fatalf("properties lost in snapshot: %#v", got.Properties)
	}
	if ok, _ := e.Redo(); !ok {
		t.Fatalf("redo failed")
	}
	got, _ = e.Get(c.ID)
	if got.X != 300 {
		t.Fatalf("redo did not reapply move")
	}
	_, _ = e.Undo()
	_, _ = e.Undo()
	if len(e.Components()) != 0 {
		t.Fatalf("expected empty canvas after undoing insert")
	}
	if ok, _ := e.Undo(); ok {
		t.Fatalf("undo past the beginning")
	}
}

func TestNudgeBurstIsOneUndoStep(t *testing.T) {
	e := newTestEngine(t, false)
	now := time.Unix(1000, 0)
	e.now = func() time.Time { return now }
	c, _ := e.Insert(InsertRequest{Type: TypeText, X: 50, Y: 50})
	for i := 0; i < 5; i++ {
		now = now.Add(100 * time.Millisecond)
		if _, err := e.Nudge(c.ID, Right, false); err != nil {
			t.Fatal(err)
		}
	}
	_, _ = e.Undo()
	got, _ := e.Get(c.ID)
	if got.X != 50 {
		t.Fatalf("expected one undo to revert the burst, x=%v", got.X)
	}
}

func TestGestures(t *testing.T) {
	e := newTestEngine(t, true)
	a, _ := e.Insert(InsertRequest{Type: TypeText, X: 0, Y: 0})
	b, _ := e.Insert(InsertRequest{Type: TypeText, X: 0, Y: 200})
	if err := e.BeginDrag(b.ID); err != nil {
		t.Fatal(err)
	}
	if err := e.BeginResize(a.ID); !errors.Is(err, ErrGestureActive) {
		t.Fatalf("expected gesture conflict, got %v", err)
	}
	p, err := e.PreviewDrag(10, 10)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Collides || p.BlockedBy != a.ID {
		t.Fatalf("preview should report collision with %s: %+v", a.ID, p)
	}
	if _, err := e.EndDrag(10, 10); !errors.Is(err, ErrCollision) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if s, o := e.Gesture(); s != Idle || o != OutcomeRejected {
		t.Fatalf("unexpected gesture state %s/%s", s, o)
	}
	_ = e.BeginResize(b.ID)
	r, err := e.EndResize(300, 60)
	if err != nil || r.Width != 300 || r.Height != 60 {
		t.Fatalf("resize gesture: %+v %v", r, err)
	}
	if _, o := e.Gesture(); o != OutcomeCommitted {
		t.Fatalf("expected committed outcome, got %s", o)
	}
	if _, err := e.EndDrag(0, 0); !errors.Is(err, ErrNoGesture) {
		t.Fatalf("expected no gesture, got %v", err)
	}
}

func TestPreviewAlignsToNeighbour(t *testing.T) {
	e := newTestEngine(t, false)
	_, _ = e.Insert(InsertRequest{Type: TypeText, X: 100, Y: 100, Width: 200, Height: 30})
	b, _ := e.Insert(InsertRequest{Type: TypeText, X: 100, Y: 300, Width: 200, Height: 30})
	_ = e.BeginDrag(b.ID)
	p, err := e.PreviewDrag(103, 400)
	if err != nil {
		t.Fatal(err)
	}
	if p.Rect.X != 100 || len(p.Guides) == 0 {
		t.Fatalf("expected alignment to x=100 with guides, got %+v", p)
	}
	e.CancelGesture()
	got, _ := e.Get(b.ID)
	if got.Y != 300 {
		t.Fatalf("preview mutated the component")
	}
}

func TestInsertFieldUsesFieldSize(t *testing.T) {
	e := newTestEngine(t, true)
	f := fields.CustomField{
		ID:    "field-1",
		Name:  "po_number",
		Label: "PO Number",
		Type:  fields.TypeText,
		Properties: fields.Properties{
			Width:       180,
			Height:      50,
			Placeholder: "<b>PO</b>",
		},
	}
	c, err := e.InsertField(f, 20, 20)
	if err != nil {
		t.Fatal(err)
	}
	if c.Width != 180 || c.Height != 50 || c.Type != TypeCustomField {
		t.Fatalf("unexpected component %+v", c)
	}
	p := c.Properties.(CustomFieldProps)
	if p.FieldDefinition == nil || p.FieldDefinition.ID != "field-1" {
		t.Fatalf("field definition missing")
	}
	if p.Values["placeholder"] != "PO" || p.Values["customField"] != true {
		t.Fatalf("unexpected values %v", p.Values)
	}
}

func TestUpdatePropertiesSanitises(t *testing.T) {
	e := newTestEngine(t, true)
	c, _ := e.Insert(InsertRequest{Type: TypeText, X: 0, Y: 0})
	up, err := e.UpdateProperties(c.ID, TextProps{Content: `R&D <script>alert(1)</script><b>Ltd</b>`, FontSize: 12})
	if err != nil {
		t.Fatal(err)
	}
	if got := up.Properties.(TextProps).Content; got != "R&D Ltd" {
		t.Fatalf("unexpected content %q", got)
	}
	if _, err := e.UpdateProperties(c.ID, GSTProps{}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected type mismatch, got %v", err)
	}
}

func TestCleanTextIsStable(t *testing.T) {
	for _, s := range []string{"R&D", "a < b", "Company Address\nCity", "&lt;script&gt;x&lt;/script&gt;"} {
		once := cleanText(s)
		if twice := cleanText(once); twice != once {
			t.Fatalf("cleanText not idempotent for %q: %q then %q", s, once, twice)
		}
		if strings.Contains(once, "<script") {
			t.Fatalf("script survived in %q", once)
		}
	}
}

func TestComponentJSON(t *testing.T) {
	raw := `{"id":"x","type":"gst","x":10,"y":20,"width":200,"height":60,"zIndex":3,"properties":{"rate":12}}`
	var c PlacedComponent
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatal(err)
	}
	p, ok := c.Properties.(GSTProps)
	if !ok || p.Rate != 12 || p.HSN != "9983" || !p.ShowBreakdown {
		t.Fatalf("expected defaults merged under rate 12, got %#v", c.Properties)
	}
	out, _ := json.Marshal(c)
	if !strings.Contains(string(out), `"properties":{"rate":12,"hsn":"9983","showBreakdown":true}`) {
		t.Fatalf("unexpected encoding %s", out)
	}
	if err := json.Unmarshal([]byte(`{"id":"y","type":"banner","properties":{}}`), &c); err == nil {
		t.Fatalf("expected unknown type to fail")
	}
}

func TestCustomFieldPropsMerge(t *testing.T) {
	base := CustomFieldProps{Values: map[string]any{"label": "PO", "fontSize": 12.0}}
	p, err := MergeProperties(TypeCustomField, base, json.RawMessage(`{"fontSize":16,"fieldDefinition":{"id":"f","name":"po","label":"PO","type":"text","category":"custom"}}`))
	if err != nil {
		t.Fatal(err)
	}
	cp := p.(CustomFieldProps)
	if cp.Values["label"] != "PO" || cp.Values["fontSize"] != 16.0 || cp.FieldDefinition == nil {
		t.Fatalf("unexpected merge %#v", cp)
	}
	if base.Values["fontSize"] != 12.0 {
		t.Fatalf("merge mutated the base record")
	}
}

func TestSortedTiesKeepInsertionOrder(t *testing.T) {
	cs := []PlacedComponent{{ID: "a", ZIndex: 2}, {ID: "b", ZIndex: 1}, {ID: "c", ZIndex: 2}, {ID: "d", ZIndex: 1}}
	var ids []string
	for _, c := range Sorted(cs) {
		ids = append(ids, c.ID)
	}
	if strings.Join(ids, "") != "bdac" {
		t.Fatalf("unexpected order %v", ids)
	}
}

func TestRestoreValidates(t *testing.T) {
	e := newTestEngine(t, true)
	good := PlacedComponent{ID: "a", Type: TypeDate, X: 0, Y: 0, Width: 120, Height: 30, ZIndex: 1, Properties: DefaultProperties(TypeDate)}
	if err := e.Restore(e.Page(), []PlacedComponent{good, good}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected duplicate id rejection, got %v", err)
	}
	bad := good
	bad.ID = "b"
	bad.Properties = TextProps{}
	if err := e.Restore(e.Page(), []PlacedComponent{good, bad}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected mismatched properties rejection, got %v", err)
	}
	if err := e.Restore(e.Page(), []PlacedComponent{good}); err != nil {
		t.Fatal(err)
	}
	if len(e.Components()) != 1 {
		t.Fatalf("restore did not apply")
	}
}

func TestPageFromSettings(t *testing.T) {
	p := PageFromSettings(settings.Default())
	if p.Width <= 0 || p.Height <= p.Width || p.GridSize != 10 || !p.SnapToGrid {
		t.Fatalf("unexpected page %+v", p)
	}
}

func TestRestoreRejectsComponentsOffPage(t *testing.T) {
	e := newTestEngine(t, true)
	keep, _ := e.Insert(InsertRequest{Type: TypeText, X: 0, Y: 0})
	far := PlacedComponent{ID: "far", Type: TypeText, X: 5000, Y: 9000, Width: 200, Height: 30, Properties: DefaultProperties(TypeText)}
	if err := e.Restore(e.Page(), []PlacedComponent{far}); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected out-of-bounds rejection, got %v", err)
	}
	if cs := e.Components(); len(cs) != 1 || cs[0].ID != keep.ID {
		t.Fatalf("rejected restore changed the canvas: %+v", cs)
	}

	wide := Page{Width: 6000, Height: 10000, GridSize: 10, SnapToGrid: true}
	if err := e.Restore(wide, []PlacedComponent{far}); err != nil {
		t.Fatalf("restore on a page that fits: %v", err)
	}
	if e.Page() != wide {
		t.Fatalf("restore must adopt the page, got %+v", e.Page())
	}
}

func TestSetPageRefusesStrandedComponents(t *testing.T) {
	e := newTestEngine(t, false)
	c, _ := e.Insert(InsertRequest{Type: TypeText, X: 500, Y: 900})
	before := e.Page()
	err := e.SetPage(Page{Width: 600, Height: 800})
	var pe *PlacementError
	if !errors.Is(err, ErrOutOfBounds) || !errors.As(err, &pe) || pe.ID != c.ID {
		t.Fatalf("expected out-of-bounds naming %s, got %v", c.ID, err)
	}
	if e.Page() != before {
		t.Fatalf("refused page was applied: %+v", e.Page())
	}
	if err := e.SetPage(Page{Width: 700, Height: 930}); err != nil {
		t.Fatalf("page that still fits: %v", err)
	}
}

func TestApplyIsAllOrNothing(t *testing.T) {
	e := newTestEngine(t, true)
	_, _ = e.Insert(InsertRequest{Type: TypeText, X: 50, Y: 300})
	b, _ := e.Insert(InsertRequest{Type: TypeText, X: 50, Y: 50})
	before := e.Components()
	undoBefore, _ := e.History()

	x, y, h := 50.0, 150.0, 200.0
	_, err := e.Apply(b.ID, Change{X: &x, Y: &y, Height: &h, Properties: TextProps{Content: "moved", FontSize: 20}})
	if !errors.Is(err, ErrCollision) {
		t.Fatalf("expected collision, got %v", err)
	}
	if after := e.Components(); !reflect.DeepEqual(before, after) {
		t.Fatalf("rejected update changed state:\n%+v\n%+v", before, after)
	}
	if u, _ := e.History(); u != undoBefore {
		t.Fatalf("rejected update recorded undo: %d -> %d", undoBefore, u)
	}
}

func TestApplyMovesResizesAndUpdatesTogether(t *testing.T) {
	e := newTestEngine(t, true)
	b, _ := e.Insert(InsertRequest{Type: TypeText, X: 50, Y: 50})
	undoBefore, _ := e.History()

	x, y, w, h := 403.0, 597.0, 300.0, 100.0
	got, err := e.Apply(b.ID, Change{X: &x, Y: &y, Width: &w, Height: &h, Properties: TextProps{Content: "<b>Total</b>", FontSize: 18}})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got.X != 400 || got.Y != 600 || got.Width != 300 || got.Height != 100 {
		t.Fatalf("unexpected box %+v", got.Rect())
	}
	if p := got.Properties.(TextProps); p.Content != "Total" || p.FontSize != 18 {
		t.Fatalf("unexpected properties %+v", p)
	}
	if u, _ := e.History(); u != undoBefore+1 {
		t.Fatalf("expected one undo step, got %d -> %d", undoBefore, u)
	}

	// only a size: the position stays and the size is clamped to the page edge
	w = 1000
	got, err = e.Apply(b.ID, Change{Width: &w})
	if err != nil || got.X != 400 || got.X+got.Width != 800 {
		t.Fatalf("resize-only update: %+v %v", got.Rect(), err)
	}

	if _, err := e.Apply(b.ID, Change{Properties: GSTProps{}}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected mismatched properties rejection, got %v", err)
	}
}
