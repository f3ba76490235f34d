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
	"net/http"

	"github.com/labstack/echo/v4"

	"invoicedesigner/internal/fields"
	"invoicedesigner/internal/settings"
)

func (s *Server) getSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, s.settings.Load())
}

func (s *Server) patchSettings(c echo.Context) error {
	var p settings.Patch
	if err := c.Bind(&p); err != nil {
		return badRequest(err)
	}
	cs, err := s.settings.Save(p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cs)
}

func (s *Server) listPresets(c echo.Context) error {
	return c.JSON(http.StatusOK, settings.Presets())
}

func (s *Server) applyPreset(c echo.Context) error {
	cs, err := s.settings.ApplyPreset(c.Param("key"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cs)
}

func (s *Server) resetSettings(c echo.Context) error {
	cs, err := s.settings.Reset()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cs)
}

func (s *Server) listFields(c echo.Context) error {
	list, err := s.fields.List()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) createField(c echo.Context) error {
	var in fields.FieldInput
	if err := c.Bind(&in); err != nil {
		return badRequest(err)
	}
	f, err := s.fields.Create(in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, f)
}

func (s *Server) getField(c echo.Context) error {
	f, err := s.fields.Get(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, f)
}

func (s *Server) updateField(c echo.Context) error {
	var p fields.FieldPatch
	if err := c.Bind(&p); err != nil {
		return badRequest(err)
	}
	f, err := s.fields.Update(c.Param("id"), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, f)
}

func (s *Server) deleteField(c echo.Context) error {
	if err := s.fields.Delete(c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
