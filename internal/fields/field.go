/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package fields is the registry of reusable custom field definitions that can be dropped onto the
// canvas as custom-field components.
package fields

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

type FieldType string

const (
	TypeText       FieldType = "text"
	TypeTextarea   FieldType = "textarea"
	TypeNumber     FieldType = "number"
	TypeCurrency   FieldType = "currency"
	TypePercentage FieldType = "percentage"
	TypeDate       FieldType = "date"
	TypeEmail      FieldType = "email"
	TypePhone      FieldType = "phone"
	TypeSelect     FieldType = "select"
	TypeCheckbox   FieldType = "checkbox"
	TypeImage      FieldType = "image"
)

var knownTypes = map[FieldType]bool{
	TypeText: true, TypeTextarea: true, TypeNumber: true, TypeCurrency: true, TypePercentage: true,
	TypeDate: true, TypeEmail: true, TypePhone: true, TypeSelect: true, TypeCheckbox: true, TypeImage: true,
}

// Numeric reports whether the type holds a number (min/max validation applies).
func (t FieldType) Numeric() bool {
	return t == TypeNumber || t == TypeCurrency || t == TypePercentage
}

func (t FieldType) textual() bool {
	return t == TypeText || t == TypeTextarea || t == TypeEmail || t == TypePhone
}

type Category string

const (
	CategoryBasic     Category = "basic"
	CategoryFinancial Category = "financial"
	CategoryContact   Category = "contact"
	CategoryCustom    Category = "custom"
)

type Validation struct {
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Pattern string   `json:"pattern,omitempty"`
	Message string   `json:"message,omitempty"`
}

func (v *Validation) empty() bool {
	return v == nil || (v.Min == nil && v.Max == nil && v.Pattern == "" && v.Message == "")
}

// Properties is the typed property bag of a field. Type-specific entries are stripped on save.
type Properties struct {
	Placeholder     string      `json:"placeholder,omitempty"`
	DefaultValue    any         `json:"defaultValue,omitempty"`
	Required        bool        `json:"required,omitempty"`
	Validation      *Validation `json:"validation,omitempty"`
	Options         []string    `json:"options,omitempty"`
	Format          string      `json:"format,omitempty"`
	Prefix          string      `json:"prefix,omitempty"`
	Suffix          string      `json:"suffix,omitempty"`
	Multiline       bool        `json:"multiline,omitempty"`
	Rows            int         `json:"rows,omitempty"`
	Width           float64     `json:"width,omitempty"`
	Height          float64     `json:"height,omitempty"`
	FontSize        float64     `json:"fontSize,omitempty"`
	FontWeight      string      `json:"fontWeight,omitempty"`
	Color           string      `json:"color,omitempty"`
	BackgroundColor string      `json:"backgroundColor,omitempty"`
	BorderColor     string      `json:"borderColor,omitempty"`
	BorderWidth     float64     `json:"borderWidth,omitempty"`
	BorderRadius    float64     `json:"borderRadius,omitempty"`
	Padding         float64     `json:"padding,omitempty"`
	TextAlign       string      `json:"textAlign,omitempty"`
	DataBinding     string      `json:"dataBinding,omitempty"`
}

type CustomField struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Label       string     `json:"label"`
	Type        FieldType  `json:"type"`
	Category    Category   `json:"category"`
	Icon        string     `json:"icon,omitempty"`
	Description string     `json:"description,omitempty"`
	Properties  Properties `json:"properties"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// FieldInput is a field without its id and timestamps.
type FieldInput struct {
	Name        string     `json:"name"`
	Label       string     `json:"label"`
	Type        FieldType  `json:"type"`
	Category    Category   `json:"category"`
	Icon        string     `json:"icon,omitempty"`
	Description string     `json:"description,omitempty"`
	Properties  Properties `json:"properties"`
}

// FieldPatch updates the non-nil members. Properties replaces the whole bag.
type FieldPatch struct {
	Name        *string     `json:"name,omitempty"`
	Label       *string     `json:"label,omitempty"`
	Type        *FieldType  `json:"type,omitempty"`
	Category    *Category   `json:"category,omitempty"`
	Icon        *string     `json:"icon,omitempty"`
	Description *string     `json:"description,omitempty"`
	Properties  *Properties `json:"properties,omitempty"`
}

var ErrNotFound = errors.New("custom field not found")

// ValidationError is returned before anything is written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid custom field: %s %s", e.Field, e.Reason)
}

func validate(f CustomField) error {
	if strings.TrimSpace(f.Name) == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if strings.IndexFunc(f.Name, unicode.IsSpace) >= 0 {
		return &ValidationError{Field: "name", Reason: "must not contain spaces"}
	}
	if strings.TrimSpace(f.Label) == "" {
		return &ValidationError{Field: "label", Reason: "is required"}
	}
	if !knownTypes[f.Type] {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("%q is not a field type", f.Type)}
	}
	switch f.Category {
	case CategoryBasic, CategoryFinancial, CategoryContact, CategoryCustom:
	default:
		return &ValidationError{Field: "category", Reason: fmt.Sprintf("%q is not a category", f.Category)}
	}
	if f.Type == TypeSelect && len(f.Properties.Options) == 0 {
		return &ValidationError{Field: "options", Reason: "are required for select fields"}
	}
	if v := f.Properties.Validation; v != nil && v.Min != nil && v.Max != nil && *v.Min > *v.Max {
		return &ValidationError{Field: "validation", Reason: "min must not exceed max"}
	}
	return nil
}

// Strip removes properties that do not apply to t.
func Strip(t FieldType, p Properties) Properties {
	if t != TypeSelect {
		p.Options = nil
	}
	if t != TypeTextarea {
		p.Multiline = false
		p.Rows = 0
	}
	if t != TypeCurrency && t != TypeNumber {
		p.Prefix = ""
	}
	if t != TypePercentage && t != TypeNumber {
		p.Suffix = ""
	}
	if p.Validation != nil {
		v := *p.Validation
		if !t.Numeric() {
			v.Min, v.Max = nil, nil
		}
		if !t.textual() {
			v.Pattern = ""
		}
		if v.empty() {
			p.Validation = nil
		} else {
			p.Validation = &v
		}
	}
	return p
}

// ComponentProperties is the property bag a custom-field component captures when the field is
// dropped on the canvas. The definition is copied, so later edits or deletion of the field do not
// reach placed components.
func ComponentProperties(f CustomField) map[string]any {
	p := f.Properties
	bag := map[string]any{
		"customField": true,
		"fieldType":   string(f.Type),
		"fieldId":     f.ID,
		"label":       f.Label,
		"name":        f.Name,
	}
	put := func(k string, v any, ok bool) {
		if ok {
			bag[k] = v
		}
	}
	put("placeholder", p.Placeholder, p.Placeholder != "")
	put("defaultValue", p.DefaultValue, p.DefaultValue != nil)
	put("required", p.Required, p.Required)
	put("options", append([]string(nil), p.Options...), len(p.Options) > 0)
	put("format", p.Format, p.Format != "")
	put("prefix", p.Prefix, p.Prefix != "")
	put("suffix", p.Suffix, p.Suffix != "")
	put("multiline", p.Multiline, p.Multiline)
	put("rows", p.Rows, p.Rows > 0)
	put("fontSize", p.FontSize, p.FontSize > 0)
	put("fontWeight", p.FontWeight, p.FontWeight != "")
	put("color", p.Color, p.Color != "")
	put("backgroundColor", p.BackgroundColor, p.BackgroundColor != "")
	put("borderColor", p.BorderColor, p.BorderColor != "")
	put("borderWidth", p.BorderWidth, p.BorderWidth > 0)
	put("borderRadius", p.BorderRadius, p.BorderRadius > 0)
	put("padding", p.Padding, p.Padding > 0)
	put("textAlign", p.TextAlign, p.TextAlign != "")
	put("dataBinding", p.DataBinding, p.DataBinding != "")
	return bag
}

func ptr[T any](v T) *T { return &v }

// seeds are returned until the first write so the palette is never empty.
func seeds(now time.Time) []CustomField {
	return []CustomField{
		{
			ID:          "field-company-name",
			Name:        "companyName",
			Label:       "Company Name",
			Type:        TypeText,
			Category:    CategoryBasic,
			Description: "Company or business name",
			Properties: Properties{
				Placeholder: "Enter company name",
				Required:    true,
				FontSize:    18,
				FontWeight:  "bold",
				TextAlign:   "left",
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:          "field-invoice-total",
			Name:        "invoiceTotal",
			Label:       "Invoice Total",
			Type:        TypeCurrency,
			Category:    CategoryFinancial,
			Description: "Total invoice amount",
			Properties: Properties{
				Prefix:          "₹",
				Required:        true,
				FontSize:        16,
				FontWeight:      "bold",
				TextAlign:       "right",
				BackgroundColor: "#f3f4f6",
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:          "field-tax-rate",
			Name:        "taxRate",
			Label:       "Tax Rate",
			Type:        TypePercentage,
			Category:    CategoryFinancial,
			Description: "Tax percentage rate",
			Properties: Properties{
				Suffix:       "%",
				DefaultValue: 18,
				FontSize:     14,
				Validation:   &Validation{Min: ptr(0.0), Max: ptr(100.0)},
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}
