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
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"invoicedesigner/internal/datasource"
)

func (s *Server) listSources(c echo.Context) error {
	return c.JSON(http.StatusOK, s.sources.List())
}

func (s *Server) createSource(c echo.Context) error {
	var in datasource.Input
	if err := c.Bind(&in); err != nil {
		return err
	}
	src, err := s.sources.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, src)
}

func (s *Server) getSource(c echo.Context) error {
	src, err := s.sources.Get(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, src)
}

type sourcePatch struct {
	Name   *string         `json:"name"`
	Config json.RawMessage `json:"config"`
}

// updateSource decodes config with the stored type; a source never changes type.
func (s *Server) updateSource(c echo.Context) error {
	id := c.Param("id")
	cur, err := s.sources.Get(id)
	if err != nil {
		return err
	}
	var body sourcePatch
	if err := c.Bind(&body); err != nil {
		return badRequest(err)
	}
	p := datasource.Patch{Name: body.Name}
	if len(body.Config) > 0 && string(body.Config) != "null" {
		cfg, err := datasource.DecodeConfig(cur.Type, body.Config)
		if err != nil {
			return err
		}
		p.Config = cfg
	}
	src, err := s.sources.Update(c.Request().Context(), id, p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, src)
}

func (s *Server) deleteSource(c echo.Context) error {
	if err := s.sources.Delete(c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) testSource(c echo.Context) error {
	err := s.sources.TestConnection(c.Request().Context(), c.Param("id"))
	if err != nil {
		if _, gerr := s.sources.Get(c.Param("id")); gerr != nil {
			return gerr
		}
		return c.JSON(http.StatusOK, map[string]any{"ok": false, "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) refreshSource(c echo.Context) error {
	src, err := s.sources.Refresh(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, src)
}

func (s *Server) sourceFields(c echo.Context) error {
	fs, err := s.sources.DiscoverFields(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, fs)
}

// sourceData fetches rows; ?cache=false bypasses the cache.
func (s *Server) sourceData(c echo.Context) error {
	useCache := true
	if v := c.QueryParam("cache"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "cache must be a boolean")
		}
		useCache = b
	}
	rows, err := s.sources.FetchData(c.Request().Context(), c.Param("id"), useCache)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

func (s *Server) getMapping(c echo.Context) error {
	ms := s.sources.GetMapping(c.Param("table"))
	if ms == nil {
		ms = []datasource.Mapping{}
	}
	return c.JSON(http.StatusOK, ms)
}

func (s *Server) setMapping(c echo.Context) error {
	var ms []datasource.Mapping
	if err := c.Bind(&ms); err != nil {
		return badRequest(err)
	}
	if err := s.sources.SetMapping(c.Param("table"), ms); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ms)
}

func (s *Server) mappedRows(c echo.Context) error {
	source := c.QueryParam("source")
	if source == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "source is required")
	}
	rows, err := s.sources.ApplyMapping(c.Request().Context(), c.Param("table"), source)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}
