/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package api exposes the designer engine over HTTP with JSON bodies.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"invoicedesigner/internal/canvas"
	"invoicedesigner/internal/datasource"
	"invoicedesigner/internal/fields"
	applog "invoicedesigner/internal/log"
	"invoicedesigner/internal/settings"
	"invoicedesigner/internal/templates"
)

// Deps are the collaborators the server routes to.
type Deps struct {
	Settings  *settings.Store
	Fields    *fields.Registry
	Sources   *datasource.Registry
	Templates *templates.Manager
	Engine    *canvas.Engine

	// Token enables bearer authentication on /api when non-empty.
	Token       string
	CORSOrigins []string
}

type Server struct {
	e         *echo.Echo
	settings  *settings.Store
	fields    *fields.Registry
	sources   *datasource.Registry
	templates *templates.Manager
	engine    *canvas.Engine
	previews  *previewStore
	now       func() time.Time
	log       *slog.Logger
}

func New(d Deps) *Server {
	s := &Server{
		e:         echo.New(),
		settings:  d.Settings,
		fields:    d.Fields,
		sources:   d.Sources,
		templates: d.Templates,
		engine:    d.Engine,
		previews:  newPreviewStore(PreviewTTL),
		now:       func() time.Time { return time.Now().UTC() },
		log:       applog.WithComponent("api"),
	}
	if s.settings != nil && s.engine != nil {
		s.settings.Guard(s.pageGuard)
	}
	e := s.e
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError
	e.Use(echomw.Recover())
	e.Use(requestLogger(s.log))
	e.Use(echomw.BodyLimit("12M"))
	if len(d.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: d.CORSOrigins}))
	}

	e.GET("/healthz", s.healthz)
	e.GET("/version", s.versionInfo)
	// preview pages are opened by the browser without the API token
	e.GET("/preview/:token", s.takePreview)

	g := e.Group("/api")
	if d.Token != "" {
		g.Use(bearerAuth(d.Token))
	}
	s.routes(g)
	return s
}

func (s *Server) routes(g *echo.Group) {
	g.GET("/settings", s.getSettings)
	g.PATCH("/settings", s.patchSettings)
	g.GET("/settings/presets", s.listPresets)
	g.POST("/settings/preset/:key", s.applyPreset)
	g.POST("/settings/reset", s.resetSettings)

	g.GET("/fields", s.listFields)
	g.POST("/fields", s.createField)
	g.GET("/fields/:id", s.getField)
	g.PATCH("/fields/:id", s.updateField)
	g.DELETE("/fields/:id", s.deleteField)

	g.GET("/datasources", s.listSources)
	g.POST("/datasources", s.createSource)
	g.GET("/datasources/:id", s.getSource)
	g.PATCH("/datasources/:id", s.updateSource)
	g.DELETE("/datasources/:id", s.deleteSource)
	g.POST("/datasources/:id/test", s.testSource)
	g.POST("/datasources/:id/refresh", s.refreshSource)
	g.GET("/datasources/:id/fields", s.sourceFields)
	g.GET("/datasources/:id/data", s.sourceData)
	g.GET("/mappings/:table", s.getMapping)
	g.PUT("/mappings/:table", s.setMapping)
	g.GET("/mappings/:table/rows", s.mappedRows)

	g.GET("/canvas", s.getCanvas)
	g.DELETE("/canvas", s.clearCanvas)
	g.POST("/canvas/components", s.insertComponent)
	g.PATCH("/canvas/components/:id", s.patchComponent)
	g.DELETE("/canvas/components/:id", s.deleteComponent)
	g.POST("/canvas/select", s.selectComponent)
	g.POST("/canvas/keys", s.handleKey)
	g.POST("/canvas/drag", s.beginDrag)
	g.POST("/canvas/drag/preview", s.previewDrag)
	g.POST("/canvas/drag/end", s.endDrag)
	g.POST("/canvas/resize", s.beginResize)
	g.POST("/canvas/resize/end", s.endResize)
	g.DELETE("/canvas/gesture", s.cancelGesture)
	g.POST("/canvas/undo", s.undo)
	g.POST("/canvas/redo", s.redo)
	g.GET("/canvas/export", s.exportCanvas)
	g.POST("/canvas/import", s.importCanvas)
	g.POST("/canvas/logo/:id", s.uploadLogo)

	g.GET("/templates", s.listTemplates)
	g.POST("/templates", s.saveTemplate)
	g.POST("/templates/from-canvas", s.saveCanvasTemplate)
	g.POST("/templates/import", s.importTemplate)
	g.GET("/templates/pack", s.exportPack)
	g.POST("/templates/pack", s.installPack)
	g.GET("/templates/:id", s.getTemplate)
	g.PATCH("/templates/:id", s.updateTemplate)
	g.DELETE("/templates/:id", s.deleteTemplate)
	g.GET("/templates/:id/export", s.exportTemplate)
	g.POST("/templates/:id/load", s.loadTemplate)

	g.POST("/calc", s.calculate)
	g.POST("/invoices/generate", s.generateInvoice)
	g.POST("/preview", s.putPreview)
}

// ServeHTTP lets the server be mounted or driven by httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.e.ServeHTTP(w, r) }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", slog.String("addr", addr))
		if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("shutting down")
	return s.e.Shutdown(shutdownCtx)
}

// pageGuard keeps the engine page in step with stored settings and refuses settings whose page
// would leave a component outside it.
func (s *Server) pageGuard(cs settings.CanvasSettings) error {
	return s.engine.SetPage(canvas.PageFromSettings(cs))
}

// replaceCanvas swaps in cs on the page p would produce, then persists p. Nothing changes when
// p is invalid or a component does not fit.
func (s *Server) replaceCanvas(p settings.Patch, cs []canvas.PlacedComponent) error {
	next, err := s.settings.Preview(p)
	if err != nil {
		return err
	}
	if err := s.engine.Restore(canvas.PageFromSettings(next), cs); err != nil {
		return err
	}
	_, err = s.settings.Save(p)
	return err
}
