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
	"encoding/json"
	"testing"
)

func TestNumberDecodesLeniently(t *testing.T) {
	cases := map[string]float64{
		`12.5`:    12.5,
		`"40"`:    40,
		`" 7 "`:   7,
		`"abc"`:   0,
		`true`:    0,
		`{"a":1}`: 0,
		`""`:      0,
	}
	for in, want := range cases {
		var n Number
		if err := json.Unmarshal([]byte(in), &n); err != nil {
			t.Fatalf("unmarshal %s: %v", in, err)
		}
		if n.Float() != want {
			t.Fatalf("%s decoded to %v, want %v", in, n, want)
		}
	}
}

func TestNumberNullKeepsValue(t *testing.T) {
	v := struct {
		N Number `json:"n"`
		C Count  `json:"c"`
	}{N: 3, C: 4}
	if err := json.Unmarshal([]byte(`{"n":null,"c":null}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.N != 3 || v.C != 4 {
		t.Fatalf("null changed values: %+v", v)
	}
}

func TestCountTruncates(t *testing.T) {
	var c Count
	if err := json.Unmarshal([]byte(`"3.9"`), &c); err != nil || c != 3 {
		t.Fatalf("expected 3, got %v (%v)", c, err)
	}
	if err := json.Unmarshal([]byte(`"rows"`), &c); err != nil || c != 0 {
		t.Fatalf("expected 0, got %v (%v)", c, err)
	}
}

func TestNumberMarshalsAsPlainNumber(t *testing.T) {
	b, err := json.Marshal(struct {
		N Number `json:"n"`
		C Count  `json:"c"`
	}{N: 14, C: 3})
	if err != nil || string(b) != `{"n":14,"c":3}` {
		t.Fatalf("unexpected encoding %s (%v)", b, err)
	}
}
