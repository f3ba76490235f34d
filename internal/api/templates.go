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
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"invoicedesigner/internal/settings"
	"invoicedesigner/internal/templates"
)

func (s *Server) listTemplates(c echo.Context) error {
	list, err := s.templates.List()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) saveTemplate(c echo.Context) error {
	var t templates.Template
	if err := c.Bind(&t); err != nil {
		return badRequest(err)
	}
	saved, err := s.templates.Save(t)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, saved)
}

type canvasTemplateBody struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) saveCanvasTemplate(c echo.Context) error {
	var b canvasTemplateBody
	if err := c.Bind(&b); err != nil {
		return badRequest(err)
	}
	saved, err := s.templates.SaveCanvas(b.Name, b.Description, s.engine.Components(), s.settings.Load())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, saved)
}

func (s *Server) getTemplate(c echo.Context) error {
	t, err := s.templates.Get(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) updateTemplate(c echo.Context) error {
	var p templates.Patch
	if err := c.Bind(&p); err != nil {
		return badRequest(err)
	}
	t, err := s.templates.Update(c.Param("id"), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) deleteTemplate(c echo.Context) error {
	if err := s.templates.Delete(c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) exportTemplate(c echo.Context) error {
	doc, err := s.templates.Export(c.Param("id"))
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.json"`, c.Param("id")))
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, doc)
}

func (s *Server) importTemplate(c echo.Context) error {
	doc, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return badRequest(err)
	}
	t, err := s.templates.Import(doc)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

func (s *Server) exportPack(c echo.Context) error {
	var buf bytes.Buffer
	if _, err := s.templates.ExportPack(&buf); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="templates.zip"`)
	return c.Blob(http.StatusOK, "application/zip", buf.Bytes())
}

func (s *Server) installPack(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return badRequest(err)
	}
	n, err := s.templates.InstallPack(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid template pack").SetInternal(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"installed": n})
}

// loadTemplate puts a template on the canvas together with its page preset and margins.
func (s *Server) loadTemplate(c echo.Context) error {
	t, err := s.templates.Get(c.Param("id"))
	if err != nil {
		return err
	}
	var p settings.Patch
	if t.Settings.PageSize != "" && t.Settings.PageSize != templates.PageCustom {
		key := strings.ToLower(t.Settings.PageSize) + "-" + t.Settings.Orientation
		if _, ok := settings.LookupPreset(key); ok {
			if p, err = settings.PresetPatch(key); err != nil {
				return err
			}
		}
	}
	m := t.Settings.Margins
	p.Margins = &m
	if err := s.replaceCanvas(p, t.Components); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.state())
}
