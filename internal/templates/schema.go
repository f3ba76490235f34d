/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package templates

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

const templateSchema = `{
  "type": "object",
  "properties": {
    "id": {"type": "string"},
    "name": {"type": "string"},
    "description": {"type": "string"},
    "isDefault": {"type": "boolean"},
    "createdAt": {"type": "string"},
    "updatedAt": {"type": "string"},
    "components": {"type": "array", "items": {"$ref": "#/definitions/component"}},
    "settings": {
      "type": "object",
      "properties": {
        "pageSize": {"enum": ["A4", "Letter", "Legal", "Custom"]},
        "orientation": {"enum": ["portrait", "landscape"]},
        "margins": {"$ref": "#/definitions/margins"},
        "branding": {"type": "object"}
      }
    }
  },
  "definitions": {
    "component": {
      "type": "object",
      "required": ["id", "type", "x", "y", "width", "height"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "type": {"type": "string"},
        "x": {"type": "number"},
        "y": {"type": "number"},
        "width": {"type": "number", "minimum": 0},
        "height": {"type": "number", "minimum": 0},
        "zIndex": {"type": "integer"},
        "properties": {"type": "object"}
      }
    },
    "margins": {
      "type": "object",
      "properties": {
        "top": {"type": "number"},
        "right": {"type": "number"},
        "bottom": {"type": "number"},
        "left": {"type": "number"}
      }
    }
  }
}`

const snapshotSchema = `{
  "type": "object",
  "required": ["components", "canvasSettings"],
  "properties": {
    "components": {"type": "array", "items": {"type": "object", "required": ["id", "type"]}},
    "canvasSettings": {"type": "object"},
    "exportedAt": {"type": "string"}
  }
}`

var (
	templateValidator = mustSchema(templateSchema)
	snapshotValidator = mustSchema(snapshotSchema)
)

func mustSchema(s string) *gojsonschema.Schema {
	sc, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("templates: bad schema: %v", err))
	}
	return sc
}

// check validates doc against sc and returns an *ImportError describing every violation.
func check(sc *gojsonschema.Schema, doc []byte) error {
	res, err := sc.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return &ImportError{Problems: []string{err.Error()}}
	}
	if res.Valid() {
		return nil
	}
	var problems []string
	for _, e := range res.Errors() {
		problems = append(problems, e.String())
	}
	return &ImportError{Problems: problems}
}
