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
	"time"

	"github.com/google/uuid"
)

// dateLayouts are the string forms classified as "date".
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"Jan 2, 2006",
	time.RFC1123,
}

// InferType classifies a decoded value: boolean, number, array and object structurally; strings
// are "date" when they parse with a known layout; nil is "string".
func InferType(v any) string {
	switch x := v.(type) {
	case nil:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case string:
		if looksLikeDate(x) {
			return "date"
		}
		return "string"
	case time.Time:
		return "date"
	default:
		return "string"
	}
}

func looksLikeDate(s string) bool {
	for _, l := range dateLayouts {
		if _, err := time.Parse(l, s); err == nil {
			return true
		}
	}
	return false
}

// discover describes the first record of s, in column order.
func discover(s sample) []DataField {
	if len(s.rows) == 0 {
		return []DataField{}
	}
	first := s.rows[0]
	fields := make([]DataField, 0, len(s.cols))
	for _, name := range s.cols {
		v, ok := first[name]
		if !ok {
			continue
		}
		fields = append(fields, DataField{
			ID:      uuid.NewString(),
			Name:    name,
			Type:    InferType(v),
			Example: v,
		})
	}
	return fields
}
