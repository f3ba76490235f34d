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
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"invoicedesigner/internal/assets"
	"invoicedesigner/internal/canvas"
	"invoicedesigner/internal/geometry"
	"invoicedesigner/internal/settings"
	"invoicedesigner/internal/templates"
)

type canvasState struct {
	Components []canvas.PlacedComponent `json:"components"`
	Selected   string                   `json:"selected,omitempty"`
	Page       canvas.Page              `json:"page"`
	Gesture    canvas.GestureState      `json:"gesture"`
	LastResult canvas.Outcome           `json:"lastResult,omitempty"`
	UndoDepth  int                      `json:"undoDepth"`
	RedoDepth  int                      `json:"redoDepth"`
}

func (s *Server) state() canvasState {
	g, o := s.engine.Gesture()
	u, r := s.engine.History()
	return canvasState{
		Components: s.engine.Sorted(),
		Selected:   s.engine.Selected(),
		Page:       s.engine.Page(),
		Gesture:    g,
		LastResult: o,
		UndoDepth:  u,
		RedoDepth:  r,
	}
}

func (s *Server) getCanvas(c echo.Context) error {
	return c.JSON(http.StatusOK, s.state())
}

func (s *Server) clearCanvas(c echo.Context) error {
	s.engine.Clear()
	return c.JSON(http.StatusOK, s.state())
}

type insertBody struct {
	Type       canvas.ComponentType `json:"type"`
	FieldID    string               `json:"fieldId"`
	Label      string               `json:"label"`
	X          geometry.Number      `json:"x"`
	Y          geometry.Number      `json:"y"`
	Width      geometry.Number      `json:"width"`
	Height     geometry.Number      `json:"height"`
	Properties json.RawMessage      `json:"properties"`
}

func (s *Server) insertComponent(c echo.Context) error {
	var b insertBody
	if err := c.Bind(&b); err != nil {
		return badRequest(err)
	}
	if b.FieldID != "" {
		f, err := s.fields.Get(b.FieldID)
		if err != nil {
			return err
		}
		pc, err := s.engine.InsertField(f, b.X.Float(), b.Y.Float())
		if err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, pc)
	}
	req := canvas.InsertRequest{Type: b.Type, Label: b.Label, X: b.X.Float(), Y: b.Y.Float(), Width: b.Width.Float(), Height: b.Height.Float()}
	if len(b.Properties) > 0 {
		props, err := canvas.DecodeProperties(b.Type, b.Properties)
		if err != nil {
			return fmt.Errorf("%w: %v", canvas.ErrInvalid, err)
		}
		req.Properties = props
	}
	pc, err := s.engine.Insert(req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, pc)
}

type patchBody struct {
	X          *geometry.Number `json:"x"`
	Y          *geometry.Number `json:"y"`
	Width      *geometry.Number `json:"width"`
	Height     *geometry.Number `json:"height"`
	Properties json.RawMessage  `json:"properties"`
}

func floatPtr(n *geometry.Number) *float64 {
	if n == nil {
		return nil
	}
	v := n.Float()
	return &v
}

// patchComponent applies position, size and properties as one update: either all of it is
// committed or nothing is.
func (s *Server) patchComponent(c echo.Context) error {
	id := c.Param("id")
	cur, err := s.engine.Get(id)
	if err != nil {
		return err
	}
	var b patchBody
	if err := c.Bind(&b); err != nil {
		return badRequest(err)
	}
	ch := canvas.Change{X: floatPtr(b.X), Y: floatPtr(b.Y), Width: floatPtr(b.Width), Height: floatPtr(b.Height)}
	if len(b.Properties) > 0 {
		if ch.Properties, err = canvas.MergeProperties(cur.Type, cur.Properties, b.Properties); err != nil {
			return fmt.Errorf("%w: %v", canvas.ErrInvalid, err)
		}
	}
	pc, err := s.engine.Apply(id, ch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pc)
}

func (s *Server) deleteComponent(c echo.Context) error {
	if err := s.engine.Delete(c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type idBody struct {
	ID string `json:"id"`
}

func (s *Server) selectComponent(c echo.Context) error {
	var b idBody
	if err := c.Bind(&b); err != nil {
		return badRequest(err)
	}
	if err := s.engine.Select(b.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"selected": b.ID})
}

type keyBody struct {
	Key   string `json:"key"`
	Shift bool   `json:"shift"`
}

func (s *Server) handleKey(c echo.Context) error {
	var b keyBody
	if err := c.Bind(&b); err != nil {
		return badRequest(err)
	}
	res, err := s.engine.HandleKey(b.Key, b.Shift)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

type pointBody struct {
	X      geometry.Number `json:"x"`
	Y      geometry.Number `json:"y"`
	Width  geometry.Number `json:"width"`
	Height geometry.Number `json:"height"`
}

func (s *Server) beginDrag(c echo.Context) error {
	var b idBody
	if err := c.Bind(&b); err != nil {
		return badRequest(err)
	}
	if err := s.engine.BeginDrag(b.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) previewDrag(c echo.Context) error {
	var b pointBody
	if err := c.Bind(&b); err != nil {
		return badRequest(err)
	}
	p, err := s.engine.PreviewDrag(b.X.Float(), b.Y.Float())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) endDrag(c echo.Context) error {
	var b pointBody
	if err := c.Bind(&b); err != nil {
		return badRequest(err)
	}
	pc, err := s.engine.EndDrag(b.X.Float(), b.Y.Float())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pc)
}

func (s *Server) beginResize(c echo.Context) error {
	var b idBody
	if err := c.Bind(&b); err != nil {
		return badRequest(err)
	}
	if err := s.engine.BeginResize(b.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) endResize(c echo.Context) error {
	var b pointBody
	if err := c.Bind(&b); err != nil {
		return badRequest(err)
	}
	pc, err := s.engine.EndResize(b.Width.Float(), b.Height.Float())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pc)
}

func (s *Server) cancelGesture(c echo.Context) error {
	s.engine.CancelGesture()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) undo(c echo.Context) error {
	if _, err := s.engine.Undo(); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.state())
}

func (s *Server) redo(c echo.Context) error {
	if _, err := s.engine.Redo(); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.state())
}

func (s *Server) exportCanvas(c echo.Context) error {
	doc, err := templates.ExportSnapshot(s.engine.Components(), s.settings.Load(), s.now())
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="invoice-canvas.json"`)
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, doc)
}

// importCanvas replaces settings and components from a snapshot. Nothing is written unless every
// component is valid and fits the imported page.
func (s *Server) importCanvas(c echo.Context) error {
	doc, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return badRequest(err)
	}
	snap, err := templates.ImportSnapshot(doc)
	if err != nil {
		return err
	}
	if err := s.replaceCanvas(settings.PatchFrom(snap.CanvasSettings), snap.Components); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.state())
}

// uploadLogo fits the multipart "file" into the logo component's box and stores it as its source.
func (s *Server) uploadLogo(c echo.Context) error {
	id := c.Param("id")
	cur, err := s.engine.Get(id)
	if err != nil {
		return err
	}
	props, ok := cur.Properties.(canvas.LogoProps)
	if !ok {
		return fmt.Errorf("%w: %s is not a logo", canvas.ErrInvalid, id)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required").SetInternal(err)
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(io.LimitReader(f, assets.MaxUploadBytes+1))
	if err != nil {
		return err
	}
	logo, err := assets.FitLogo(data, int(cur.Width), int(cur.Height))
	if err != nil {
		return err
	}
	props.Src = logo.DataURL
	if props.Alt == "" {
		props.Alt = fh.Filename
	}
	pc, err := s.engine.UpdateProperties(id, props)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pc)
}
