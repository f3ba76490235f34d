/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package geometry

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Number is a float64 that decodes leniently from JSON: numbers and numeric strings parse,
// anything else becomes 0. A JSON null leaves the value unchanged.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	if v, ok := lenient(b); ok {
		*n = Number(v)
	}
	return nil
}

// Float returns n as a finite float64.
func (n Number) Float() float64 { return Finite(float64(n)) }

// Count is the integer counterpart of Number; fractions are truncated.
type Count int

func (c *Count) UnmarshalJSON(b []byte) error {
	if v, ok := lenient(b); ok {
		*c = Count(math.Trunc(v))
	}
	return nil
}

func lenient(b []byte) (float64, bool) {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		return Finite(f), true
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return ParseNumber(s), true
	}
	if v, err := strconv.ParseFloat(string(b), 64); err == nil {
		return Finite(v), true
	}
	return 0, true
}
