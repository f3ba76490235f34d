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
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"invoicedesigner/internal/assets"
	"invoicedesigner/internal/calc"
	"invoicedesigner/internal/canvas"
	"invoicedesigner/internal/datasource"
	"invoicedesigner/internal/fields"
	"invoicedesigner/internal/settings"
	"invoicedesigner/internal/templates"
)

// APIError is the body of every failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

var errPreviewGone = errors.New("preview not found or expired")

func classify(err error) (int, APIError) {
	var (
		sv *settings.ValidationError
		fv *fields.ValidationError
		pe *canvas.PlacementError
		ie *templates.ImportError
		he *echo.HTTPError
	)
	switch {
	case errors.As(err, &pe) && errors.Is(err, canvas.ErrCollision):
		return http.StatusConflict, APIError{Code: "collision", Message: err.Error(), Details: map[string]string{"id": pe.ID, "with": pe.With}}
	case errors.Is(err, canvas.ErrOutOfBounds):
		return http.StatusConflict, APIError{Code: "out_of_bounds", Message: err.Error()}
	case errors.Is(err, canvas.ErrGestureActive), errors.Is(err, canvas.ErrNoGesture):
		return http.StatusConflict, APIError{Code: "gesture", Message: err.Error()}
	case errors.As(err, &sv):
		return http.StatusBadRequest, APIError{Code: "invalid", Message: err.Error(), Details: map[string]string{"field": sv.Field}}
	case errors.As(err, &fv):
		return http.StatusBadRequest, APIError{Code: "invalid", Message: err.Error(), Details: map[string]string{"field": fv.Field}}
	case errors.As(err, &ie):
		return http.StatusBadRequest, APIError{Code: "invalid_import", Message: ie.Error(), Details: ie.Problems}
	case errors.Is(err, datasource.ErrInvalid), errors.Is(err, canvas.ErrInvalid),
		errors.Is(err, calc.ErrMissingFields), errors.Is(err, assets.ErrDecode):
		return http.StatusBadRequest, APIError{Code: "invalid", Message: err.Error()}
	case errors.Is(err, assets.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, APIError{Code: "too_large", Message: err.Error()}
	case errors.Is(err, fields.ErrNotFound), errors.Is(err, datasource.ErrNotFound),
		errors.Is(err, canvas.ErrNotFound), errors.Is(err, templates.ErrNotFound), errors.Is(err, errPreviewGone):
		return http.StatusNotFound, APIError{Code: "not_found", Message: err.Error()}
	case errors.As(err, &he):
		msg := fmt.Sprint(he.Message)
		if he.Internal != nil {
			msg = fmt.Sprintf("%s: %v", msg, he.Internal)
		}
		return he.Code, APIError{Code: codeFor(he.Code), Message: msg}
	default:
		return http.StatusInternalServerError, APIError{Code: "internal", Message: "internal error"}
	}
}

func codeFor(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	}
	if status >= 500 {
		return "internal"
	}
	return "bad_request"
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", slog.String("path", c.Path()), slog.Any("err", err))
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, body)
}

func badRequest(err error) error {
	return echo.NewHTTPError(http.StatusBadRequest, "malformed request body").SetInternal(err)
}
