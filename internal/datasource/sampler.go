/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package datasource

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

// maxBodyBytes bounds API responses read for sampling.
const maxBodyBytes = 10 << 20

// sample is a fetched row set plus the column order of its first record.
type sample struct {
	cols []string
	rows []Row
}

// authHeaders merges configured headers with the one produced by the auth variant.
func authHeaders(c APIConfig) http.Header {
	h := http.Header{}
	for k, v := range c.Headers {
		h.Set(k, v)
	}
	if c.Auth == nil {
		return h
	}
	switch c.Auth.Type {
	case AuthBearer:
		h.Set("Authorization", "Bearer "+c.Auth.Token)
	case AuthBasic:
		cred := base64.StdEncoding.EncodeToString([]byte(c.Auth.Username + ":" + c.Auth.Password))
		h.Set("Authorization", "Basic "+cred)
	case AuthAPIKey:
		name := c.Auth.APIKeyHeader
		if name == "" {
			name = DefaultAPIKeyHeader
		}
		h.Set(name, c.Auth.APIKey)
	}
	return h
}

func (r *Registry) doAPI(ctx context.Context, c APIConfig) (*http.Response, error) {
	method := strings.ToUpper(c.Method)
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, c.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header = authHeaders(c)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("API request failed: %s", resp.Status)
	}
	return resp, nil
}

// test checks reachability without sampling rows.
func (r *Registry) test(ctx context.Context, c Config) error {
	switch c := c.(type) {
	case APIConfig:
		resp, err := r.doAPI(ctx, c)
		if err != nil {
			return err
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return resp.Body.Close()
	case DatabaseConfig:
		return r.db.Test(ctx, c)
	case CSVConfig:
		if strings.TrimSpace(c.FileContent) == "" {
			return errors.New("CSV content is empty")
		}
		return nil
	case JSONConfig:
		if strings.TrimSpace(c.FileContent) == "" {
			return errors.New("JSON content is empty")
		}
		return nil
	case ManualConfig:
		return nil
	default:
		return fmt.Errorf("%w: unsupported config %T", ErrInvalid, c)
	}
}

// fetch samples rows using the type-specific reader.
func (r *Registry) fetch(ctx context.Context, c Config) (sample, error) {
	switch c := c.(type) {
	case APIConfig:
		resp, err := r.doAPI(ctx, c)
		if err != nil {
			return sample{}, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return sample{}, fmt.Errorf("read API response: %w", err)
		}
		return parseJSON(body)
	case DatabaseConfig:
		rows, cols, err := r.db.Sample(ctx, c)
		if err != nil {
			return sample{}, err
		}
		return sample{cols: cols, rows: rows}, nil
	case CSVConfig:
		return parseCSV(c.FileContent)
	case JSONConfig:
		if strings.TrimSpace(c.FileContent) == "" {
			return sample{}, nil
		}
		return parseJSON([]byte(c.FileContent))
	case ManualConfig:
		s := sample{cols: append([]string(nil), c.Columns...)}
		for _, row := range c.Rows {
			s.rows = append(s.rows, cloneRow(row))
		}
		if len(s.cols) == 0 && len(s.rows) > 0 {
			for k := range s.rows[0] {
				s.cols = append(s.cols, k)
			}
			sort.Strings(s.cols)
		}
		return s, nil
	default:
		return sample{}, fmt.Errorf("%w: unsupported config %T", ErrInvalid, c)
	}
}

// parseCSV treats the first non-blank line as headers. Quotes are stripped from headers and
// values; missing trailing values become "".
func parseCSV(content string) (sample, error) {
	if strings.TrimSpace(content) == "" {
		return sample{}, nil
	}
	cr := csv.NewReader(strings.NewReader(content))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return sample{}, fmt.Errorf("parse CSV: %w", err)
	}
	var lines [][]string
	for _, rec := range records {
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		lines = append(lines, rec)
	}
	if len(lines) == 0 {
		return sample{}, nil
	}
	clean := func(s string) string { return strings.ReplaceAll(strings.TrimSpace(s), `"`, "") }
	var s sample
	for _, h := range lines[0] {
		s.cols = append(s.cols, clean(h))
	}
	for _, rec := range lines[1:] {
		row := make(Row, len(s.cols))
		for i, h := range s.cols {
			v := ""
			if i < len(rec) {
				v = clean(rec[i])
			}
			row[h] = v
		}
		s.rows = append(s.rows, row)
	}
	return s, nil
}

// parseJSON accepts an array of records or a single record. Non-object array elements are wrapped
// as {"value": v}.
func parseJSON(b []byte) (sample, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return sample{}, nil
	}
	var items []json.RawMessage
	if b[0] == '[' {
		if err := json.Unmarshal(b, &items); err != nil {
			return sample{}, fmt.Errorf("invalid JSON format: %w", err)
		}
	} else {
		if !json.Valid(b) {
			return sample{}, errors.New("invalid JSON format")
		}
		items = []json.RawMessage{b}
	}
	var s sample
	for i, raw := range items {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return sample{}, fmt.Errorf("invalid JSON format: %w", err)
		}
		row, ok := v.(map[string]any)
		if !ok {
			row = Row{"value": v}
		}
		if i == 0 {
			if ok {
				s.cols = objectKeys(raw)
			} else {
				s.cols = []string{"value"}
			}
		}
		s.rows = append(s.rows, row)
	}
	return s, nil
}

// objectKeys returns the keys of a JSON object in document order.
func objectKeys(raw []byte) []string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return keys
		}
		k, _ := tok.(string)
		keys = append(keys, k)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return keys
		}
	}
	return keys
}

func cloneRow(in Row) Row {
	out := make(Row, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneRows(in []Row) []Row {
	out := make([]Row, len(in))
	for i, r := range in {
		out[i] = cloneRow(r)
	}
	return out
}
