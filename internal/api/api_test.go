/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicedesigner/internal/canvas"
	"invoicedesigner/internal/datasource"
	"invoicedesigner/internal/fields"
	"invoicedesigner/internal/settings"
	"invoicedesigner/internal/storage"
	"invoicedesigner/internal/templates"
)

func newTestServer(t *testing.T, token string) *Server {
	t.Helper()
	st := storage.NewMemoryStore()
	ss := settings.NewStore(st)
	sources := datasource.NewRegistry(datasource.Options{})
	t.Cleanup(sources.Close)
	return New(Deps{
		Settings:  ss,
		Fields:    fields.NewRegistry(st),
		Sources:   sources,
		Templates: templates.NewManager(st),
		Engine:    canvas.NewEngine(canvas.PageFromSettings(ss.Load()), canvas.Options{}),
		Token:     token,
	})
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, r)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndVersion(t *testing.T) {
	s := newTestServer(t, "")
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/healthz", "").Code)
	rec := do(t, s, http.MethodGet, "/version", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version"`)
}

func TestBearerAuth(t *testing.T) {
	s := newTestServer(t, "s3cret")
	rec := do(t, s, http.MethodGet, "/api/settings", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decode[APIError](t, rec).Code)

	r := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	r.Header.Set("Authorization", "Bearer s3cret")
	ok := httptest.NewRecorder()
	s.ServeHTTP(ok, r)
	assert.Equal(t, http.StatusOK, ok.Code)

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/healthz", "").Code)
}

func TestInsertThenCollide(t *testing.T) {
	s := newTestServer(t, "")
	rec := do(t, s, http.MethodPost, "/api/canvas/components", `{"type":"text","x":50,"y":50}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[canvas.PlacedComponent](t, rec)
	assert.Equal(t, 1, first.ZIndex)

	rec = do(t, s, http.MethodPost, "/api/canvas/components", `{"type":"text","x":60,"y":60}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	e := decode[APIError](t, rec)
	assert.Equal(t, "collision", e.Code)

	st := decode[canvasState](t, do(t, s, http.MethodGet, "/api/canvas", ""))
	assert.Len(t, st.Components, 1)
	assert.Equal(t, 1, st.UndoDepth)
}

func TestPatchComponent(t *testing.T) {
	s := newTestServer(t, "")
	c := decode[canvas.PlacedComponent](t, do(t, s, http.MethodPost, "/api/canvas/components", `{"type":"gst","x":0,"y":0}`))

	rec := do(t, s, http.MethodPatch, "/api/canvas/components/"+c.ID, `{"x":57,"y":23,"properties":{"rate":12}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[canvas.PlacedComponent](t, rec)
	assert.Equal(t, 60.0, got.X)
	assert.Equal(t, 20.0, got.Y)
	assert.Contains(t, rec.Body.String(), `"rate":12,"hsn":"9983"`)

	rec = do(t, s, http.MethodPatch, "/api/canvas/components/"+c.ID, `{"properties":{"hsn":7}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodPatch, "/api/canvas/components/nope", `{"x":1}`).Code)
}

func TestRejectedPatchChangesNothing(t *testing.T) {
	s := newTestServer(t, "")
	do(t, s, http.MethodPost, "/api/canvas/components", `{"type":"text","x":50,"y":300}`)
	b := decode[canvas.PlacedComponent](t, do(t, s, http.MethodPost, "/api/canvas/components", `{"type":"text","x":50,"y":50}`))
	before := decode[canvasState](t, do(t, s, http.MethodGet, "/api/canvas", ""))

	rec := do(t, s, http.MethodPatch, "/api/canvas/components/"+b.ID, `{"x":50,"y":150,"height":200,"properties":{"content":"Total"}}`)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, "collision", decode[APIError](t, rec).Code)

	after := decode[canvasState](t, do(t, s, http.MethodGet, "/api/canvas", ""))
	assert.Equal(t, before.Components, after.Components)
	assert.Equal(t, before.UndoDepth, after.UndoDepth)
}

func TestMalformedNumbersBecomeZero(t *testing.T) {
	s := newTestServer(t, "")
	rec := do(t, s, http.MethodPost, "/api/canvas/components", `{"type":"text","x":"abc","y":"40"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c := decode[canvas.PlacedComponent](t, rec)
	assert.Equal(t, 0.0, c.X)
	assert.Equal(t, 40.0, c.Y)

	rec = do(t, s, http.MethodPatch, "/api/canvas/components/"+c.ID, `{"width":"wide","properties":{"fontSize":"abc"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[canvas.PlacedComponent](t, rec)
	assert.Equal(t, float64(canvas.MinWidth), got.Width)
	assert.Contains(t, rec.Body.String(), `"fontSize":0`)
}

func TestKeysAndUndo(t *testing.T) {
	s := newTestServer(t, "")
	c := decode[canvas.PlacedComponent](t, do(t, s, http.MethodPost, "/api/canvas/components", `{"type":"date","x":100,"y":100}`))
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/canvas/select", `{"id":"`+c.ID+`"}`).Code)

	res := decode[canvas.KeyResult](t, do(t, s, http.MethodPost, "/api/canvas/keys", `{"key":"ArrowDown","shift":true}`))
	require.NotNil(t, res.Component)
	assert.Equal(t, 110.0, res.Component.Y)

	res = decode[canvas.KeyResult](t, do(t, s, http.MethodPost, "/api/canvas/keys", `{"key":"Delete"}`))
	assert.Equal(t, "delete", res.Action)

	st := decode[canvasState](t, do(t, s, http.MethodPost, "/api/canvas/undo", ""))
	require.Len(t, st.Components, 1)
	assert.Equal(t, 110.0, st.Components[0].Y)
}

func TestDragGesture(t *testing.T) {
	s := newTestServer(t, "")
	a := decode[canvas.PlacedComponent](t, do(t, s, http.MethodPost, "/api/canvas/components", `{"type":"text","x":0,"y":0}`))
	b := decode[canvas.PlacedComponent](t, do(t, s, http.MethodPost, "/api/canvas/components", `{"type":"text","x":0,"y":200}`))

	assert.Equal(t, http.StatusNoContent, do(t, s, http.MethodPost, "/api/canvas/drag", `{"id":"`+b.ID+`"}`).Code)
	assert.Equal(t, http.StatusConflict, do(t, s, http.MethodPost, "/api/canvas/resize", `{"id":"`+a.ID+`"}`).Code)
	p := decode[canvas.Preview](t, do(t, s, http.MethodPost, "/api/canvas/drag/preview", `{"x":10,"y":10}`))
	assert.True(t, p.Collides)
	assert.Equal(t, http.StatusConflict, do(t, s, http.MethodPost, "/api/canvas/drag/end", `{"x":10,"y":10}`).Code)
	st := decode[canvasState](t, do(t, s, http.MethodGet, "/api/canvas", ""))
	assert.Equal(t, canvas.Idle, st.Gesture)
	assert.Equal(t, canvas.OutcomeRejected, st.LastResult)
}

func TestSettingsSyncPage(t *testing.T) {
	s := newTestServer(t, "")
	rec := do(t, s, http.MethodPost, "/api/settings/preset/a4-landscape", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decode[canvasState](t, do(t, s, http.MethodGet, "/api/canvas", ""))
	assert.Greater(t, st.Page.Width, st.Page.Height)

	rec = do(t, s, http.MethodPatch, "/api/settings", `{"gridSize":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	e := decode[APIError](t, rec)
	assert.Equal(t, "invalid", e.Code)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/settings/preset/a5", "").Code)
}

func TestSettingsRefusePageThatStrandsComponents(t *testing.T) {
	s := newTestServer(t, "")
	c := decode[canvas.PlacedComponent](t, do(t, s, http.MethodPost, "/api/canvas/components", `{"type":"text","x":500,"y":1000}`))

	rec := do(t, s, http.MethodPost, "/api/settings/preset/a4-landscape", "")
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, "out_of_bounds", decode[APIError](t, rec).Code)

	cs := decode[settings.CanvasSettings](t, do(t, s, http.MethodGet, "/api/settings", ""))
	assert.Equal(t, settings.Portrait, cs.Orientation)
	st := decode[canvasState](t, do(t, s, http.MethodGet, "/api/canvas", ""))
	assert.Less(t, st.Page.Width, st.Page.Height)
	require.Len(t, st.Components, 1)
	assert.Equal(t, c, st.Components[0])
}

func TestImportRejectsComponentOffPage(t *testing.T) {
	s := newTestServer(t, "")
	do(t, s, http.MethodPost, "/api/canvas/components", `{"type":"email","x":40,"y":40}`)
	before := decode[canvasState](t, do(t, s, http.MethodGet, "/api/canvas", ""))

	cs, err := json.Marshal(settings.Default())
	require.NoError(t, err)
	doc := `{"components":[{"id":"c1","type":"text","x":5000,"y":9000,"width":200,"height":30,"zIndex":1,"properties":{"content":"far"}}],"canvasSettings":` + string(cs) + `}`
	rec := do(t, s, http.MethodPost, "/api/canvas/import", doc)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, "out_of_bounds", decode[APIError](t, rec).Code)

	after := decode[canvasState](t, do(t, s, http.MethodGet, "/api/canvas", ""))
	assert.Equal(t, before.Components, after.Components)
}

func TestFieldsCRUDAndInsert(t *testing.T) {
	s := newTestServer(t, "")
	rec := do(t, s, http.MethodPost, "/api/fields", `{"name":"po_number","label":"PO Number","type":"text","properties":{"width":180,"height":40}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	f := decode[fields.CustomField](t, rec)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/fields", `{"name":"bad name","label":"x","type":"text"}`).Code)

	rec = do(t, s, http.MethodPost, "/api/canvas/components", `{"fieldId":"`+f.ID+`","x":10,"y":10}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	pc := decode[canvas.PlacedComponent](t, rec)
	assert.Equal(t, canvas.TypeCustomField, pc.Type)
	assert.Equal(t, 180.0, pc.Width)

	assert.Equal(t, http.StatusNoContent, do(t, s, http.MethodDelete, "/api/fields/"+f.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/fields/"+f.ID, "").Code)
}

func TestDataSourceLifecycle(t *testing.T) {
	s := newTestServer(t, "")
	rec := do(t, s, http.MethodPost, "/api/datasources", `{"name":"Items","type":"json","config":{"fileContent":"[{\"sku\":\"A1\",\"qty\":2,\"paid\":true}]"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	src := decode[struct {
		ID     string                 `json:"id"`
		Status datasource.Status      `json:"status"`
		Fields []datasource.DataField `json:"fields"`
	}](t, rec)
	assert.Equal(t, datasource.StatusConnected, src.Status)
	require.Len(t, src.Fields, 3)
	assert.Equal(t, "number", src.Fields[1].Type)

	rows := decode[[]map[string]any](t, do(t, s, http.MethodGet, "/api/datasources/"+src.ID+"/data", ""))
	require.Len(t, rows, 1)
	assert.Equal(t, "A1", rows[0]["sku"])

	rec = do(t, s, http.MethodPut, "/api/mappings/table-1", `[{"sourceId":"`+src.ID+`","sourceField":"sku","targetField":"Item"}]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	mapped := decode[[]map[string]any](t, do(t, s, http.MethodGet, "/api/mappings/table-1/rows?source="+src.ID, ""))
	require.Len(t, mapped, 1)
	assert.Equal(t, "A1", mapped[0]["Item"])

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/datasources", `{"name":"x","type":"ftp","config":{}}`).Code)
	assert.Equal(t, http.StatusNoContent, do(t, s, http.MethodDelete, "/api/datasources/"+src.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/datasources/"+src.ID, "").Code)
}

func TestTemplatesFromCanvasExportImport(t *testing.T) {
	s := newTestServer(t, "")
	do(t, s, http.MethodPost, "/api/canvas/components", `{"type":"logo","x":20,"y":20}`)
	rec := do(t, s, http.MethodPost, "/api/templates/from-canvas", `{"name":"Retail"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tpl := decode[templates.Template](t, rec)
	require.Len(t, tpl.Components, 1)

	exp := do(t, s, http.MethodGet, "/api/templates/"+tpl.ID+"/export", "")
	require.Equal(t, http.StatusOK, exp.Code)
	assert.Contains(t, exp.Header().Get("Content-Disposition"), tpl.ID)

	rec = do(t, s, http.MethodPost, "/api/templates/import", exp.Body.String())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	imp := decode[templates.Template](t, rec)
	assert.NotEqual(t, tpl.ID, imp.ID)
	assert.Equal(t, tpl.Components, imp.Components)

	rec = do(t, s, http.MethodPost, "/api/templates/import", `{"components":[{"id":"x"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_import", decode[APIError](t, rec).Code)

	do(t, s, http.MethodDelete, "/api/canvas", "")
	st := decode[canvasState](t, do(t, s, http.MethodPost, "/api/templates/"+tpl.ID+"/load", ""))
	assert.Len(t, st.Components, 1)
}

func TestCanvasExportImport(t *testing.T) {
	s := newTestServer(t, "")
	do(t, s, http.MethodPost, "/api/canvas/components", `{"type":"email","x":40,"y":40}`)
	exp := do(t, s, http.MethodGet, "/api/canvas/export", "")
	require.Equal(t, http.StatusOK, exp.Code)
	do(t, s, http.MethodDelete, "/api/canvas", "")

	rec := do(t, s, http.MethodPost, "/api/canvas/import", exp.Body.String())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[canvasState](t, rec).Components, 1)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/canvas/import", `{"components":[]}`).Code)
}

func TestTemplatePackRoundTrip(t *testing.T) {
	s := newTestServer(t, "")
	do(t, s, http.MethodPost, "/api/templates", `{"name":"A"}`)
	pack := do(t, s, http.MethodGet, "/api/templates/pack", "")
	require.Equal(t, http.StatusOK, pack.Code)

	other := newTestServer(t, "")
	r := httptest.NewRequest(http.MethodPost, "/api/templates/pack", bytes.NewReader(pack.Body.Bytes()))
	rec := httptest.NewRecorder()
	other.ServeHTTP(rec, r)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[map[string]int](t, rec)["installed"])
}

func TestCalc(t *testing.T) {
	s := newTestServer(t, "")
	rec := do(t, s, http.MethodPost, "/api/calc", `{"orderValue":50000,"commissionRate":5,"commissionType":"percentage","gstRate":18,"tdsRate":5,"vendorPAN":"ABCDE1234F"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[calcResponse](t, rec)
	assert.Equal(t, 47175.0, res.FinalPayout)
	assert.Equal(t, "₹47,175.00", res.Formatted["finalPayout"])

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/invoices/generate", `{"orderValue":10}`).Code)
}

func TestPreviewHandoffIsSingleUse(t *testing.T) {
	s := newTestServer(t, "")
	do(t, s, http.MethodPost, "/api/canvas/components", `{"type":"invoice-number","x":0,"y":0}`)
	rec := do(t, s, http.MethodPost, "/api/preview", `{"name":"Draft"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	tk := decode[previewTicket](t, rec)

	rec = do(t, s, http.MethodGet, tk.URL, "")
	require.Equal(t, http.StatusOK, rec.Code)
	pl := decode[PreviewPayload](t, rec)
	assert.Equal(t, "Draft", pl.Name)
	assert.Len(t, pl.Components, 1)

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, tk.URL, "").Code)
}
