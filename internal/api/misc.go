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
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"invoicedesigner/internal/calc"
	"invoicedesigner/internal/canvas"
	"invoicedesigner/internal/version"
)

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) versionInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"version": version.Version, "commit": version.Commit, "display": version.String()})
}

type calcResponse struct {
	calc.Result
	Formatted map[string]string `json:"formatted"`
}

func (s *Server) calculate(c echo.Context) error {
	var in calc.Input
	if err := c.Bind(&in); err != nil {
		return badRequest(err)
	}
	if in.CommissionType == "" {
		in.CommissionType = calc.Percentage
	}
	r := calc.Calculate(in)
	return c.JSON(http.StatusOK, calcResponse{
		Result: r,
		Formatted: map[string]string{
			"orderTotal":       calc.FormatCurrency(r.OrderTotal),
			"commissionAmount": calc.FormatCurrency(r.CommissionAmount),
			"gstAmount":        calc.FormatCurrency(r.GSTAmount),
			"tdsAmount":        calc.FormatCurrency(r.TDSAmount),
			"finalPayout":      calc.FormatCurrency(r.FinalPayout),
		},
	})
}

func (s *Server) generateInvoice(c echo.Context) error {
	var req calc.GenerateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	inv, err := calc.Generate(req, s.now(), rand.IntN)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "invoice": inv})
}

type previewBody struct {
	Name       string                   `json:"name"`
	Components []canvas.PlacedComponent `json:"components"`
}

type previewTicket struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// putPreview stores a layout for the print preview page. Without components the live canvas is
// handed off.
func (s *Server) putPreview(c echo.Context) error {
	var b previewBody
	if err := c.Bind(&b); err != nil {
		return badRequest(err)
	}
	if b.Components == nil {
		b.Components = s.engine.Sorted()
	} else if err := canvas.Validate(b.Components); err != nil {
		return err
	}
	if b.Name == "" {
		b.Name = "Invoice Preview"
	}
	tok, exp := s.previews.put(PreviewPayload{Name: b.Name, Components: canvas.Sorted(b.Components), Settings: s.settings.Load()})
	return c.JSON(http.StatusCreated, previewTicket{Token: tok, URL: "/preview/" + tok, ExpiresAt: exp.UTC()})
}

func (s *Server) takePreview(c echo.Context) error {
	pl, err := s.previews.take(c.Param("token"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pl)
}
