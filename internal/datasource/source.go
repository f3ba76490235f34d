/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package datasource registers external origins of tabular data (HTTP APIs, databases, pasted CSV
// or JSON, manual rows), discovers their field shapes by sampling, caches fetched rows for a short
// TTL and optionally refreshes them on a per-source ticker.
package datasource

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Type string

const (
	TypeAPI      Type = "api"
	TypeDatabase Type = "database"
	TypeCSV      Type = "csv"
	TypeJSON     Type = "json"
	TypeManual   Type = "manual"
)

type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
	StatusLoading      Status = "loading"
)

var (
	ErrNotFound = errors.New("data source not found")
	ErrInvalid  = errors.New("invalid data source")
)

// Row is one fetched record keyed by field name.
type Row = map[string]any

// Refresh is the auto-refresh policy shared by every config variant. RefreshInterval is seconds.
type Refresh struct {
	AutoRefresh     bool `json:"autoRefresh,omitempty"`
	RefreshInterval int  `json:"refreshInterval,omitempty"`
}

func (r Refresh) RefreshPolicy() Refresh { return r }

// Config is one of APIConfig, DatabaseConfig, CSVConfig, JSONConfig or ManualConfig.
type Config interface {
	Kind() Type
	RefreshPolicy() Refresh
}

type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthBearer AuthType = "bearer"
	AuthBasic  AuthType = "basic"
	AuthAPIKey AuthType = "apikey"
)

const DefaultAPIKeyHeader = "X-API-Key"

type Auth struct {
	Type         AuthType `json:"type"`
	Token        string   `json:"token,omitempty"`
	Username     string   `json:"username,omitempty"`
	Password     string   `json:"password,omitempty"`
	APIKey       string   `json:"apiKey,omitempty"`
	APIKeyHeader string   `json:"apiKeyHeader,omitempty"`
}

type APIConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Auth    *Auth             `json:"auth,omitempty"`
	Refresh
}

type DatabaseConfig struct {
	ConnectionString string `json:"connectionString"`
	Query            string `json:"query,omitempty"`
	Refresh
}

type CSVConfig struct {
	FileContent string `json:"fileContent"`
	Refresh
}

type JSONConfig struct {
	FileContent string `json:"fileContent"`
	Refresh
}

// ManualConfig holds rows typed in by the user. Columns fixes the field order; when empty the
// keys of the first row are used in sorted order.
type ManualConfig struct {
	Columns []string `json:"columns,omitempty"`
	Rows    []Row    `json:"rows,omitempty"`
	Refresh
}

func (APIConfig) Kind() Type      { return TypeAPI }
func (DatabaseConfig) Kind() Type { return TypeDatabase }
func (CSVConfig) Kind() Type      { return TypeCSV }
func (JSONConfig) Kind() Type     { return TypeJSON }
func (ManualConfig) Kind() Type   { return TypeManual }

// DecodeConfig parses raw into the config variant for t.
func DecodeConfig(t Type, raw json.RawMessage) (Config, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	var (
		cfg Config
		err error
	)
	switch t {
	case TypeAPI:
		var c APIConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	case TypeDatabase:
		var c DatabaseConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	case TypeCSV:
		var c CSVConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	case TypeJSON:
		var c JSONConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	case TypeManual:
		var c ManualConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	default:
		return nil, fmt.Errorf("%w: unsupported type %q", ErrInvalid, t)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s config: %v", ErrInvalid, t, err)
	}
	return cfg, nil
}

func validateConfig(c Config) error {
	if c == nil {
		return fmt.Errorf("%w: config is required", ErrInvalid)
	}
	if p := c.RefreshPolicy(); p.AutoRefresh && p.RefreshInterval <= 0 {
		return fmt.Errorf("%w: refreshInterval must be positive when autoRefresh is set", ErrInvalid)
	}
	if a, ok := c.(APIConfig); ok {
		if strings.TrimSpace(a.URL) == "" {
			return fmt.Errorf("%w: API URL is required", ErrInvalid)
		}
		switch strings.ToUpper(a.Method) {
		case "", "GET", "POST", "PUT", "DELETE":
		default:
			return fmt.Errorf("%w: unsupported method %q", ErrInvalid, a.Method)
		}
	}
	return nil
}

type DataField struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Example any    `json:"example,omitempty"`
}

type DataSource struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Type      Type        `json:"type"`
	Config    Config      `json:"config"`
	Status    Status      `json:"status"`
	LastError string      `json:"lastError,omitempty"`
	LastSync  *time.Time  `json:"lastSync,omitempty"`
	Fields    []DataField `json:"fields"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Input creates a source. Config must be the variant matching Type.
type Input struct {
	Name   string `json:"name"`
	Type   Type   `json:"type"`
	Config Config `json:"-"`
}

// UnmarshalJSON decodes config according to type.
func (in *Input) UnmarshalJSON(b []byte) error {
	var raw struct {
		Name   string          `json:"name"`
		Type   Type            `json:"type"`
		Config json.RawMessage `json:"config"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	cfg, err := DecodeConfig(raw.Type, raw.Config)
	if err != nil {
		return err
	}
	*in = Input{Name: raw.Name, Type: raw.Type, Config: cfg}
	return nil
}

// Patch updates a source. A non-nil Config is tested and re-discovered.
type Patch struct {
	Name   *string
	Config Config
}

// TransformType names a mapping transform. Format and calculate pass values through unchanged.
type TransformType string

const (
	TransformFormat    TransformType = "format"
	TransformCalculate TransformType = "calculate"
)

type Transform struct {
	Type   TransformType  `json:"type"`
	Config map[string]any `json:"config,omitempty"`
}

// Mapping copies SourceField of a fetched row into TargetField of a table row.
type Mapping struct {
	SourceID    string     `json:"sourceId,omitempty"`
	SourceField string     `json:"sourceField"`
	TargetField string     `json:"targetField"`
	Transform   *Transform `json:"transform,omitempty"`
}

func applyTransform(v any, t *Transform) any {
	if t == nil {
		return v
	}
	switch t.Type {
	case TransformFormat, TransformCalculate:
		// TODO: implement number/date formatting and arithmetic once table cells carry formats.
		return v
	default:
		return v
	}
}
