/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package canvas holds the placed components of an invoice layout and the interaction engine that
// inserts, moves, resizes and deletes them under grid snapping, bounds clamping and collision
// rejection.
package canvas

import (
	"encoding/json"
	"fmt"
	"sort"

	"invoicedesigner/internal/fields"
	"invoicedesigner/internal/geometry"
)

type ComponentType string

const (
	TypeText          ComponentType = "text"
	TypeLogo          ComponentType = "logo"
	TypeTable         ComponentType = "table"
	TypeCommission    ComponentType = "commission"
	TypeGST           ComponentType = "gst"
	TypeAddress       ComponentType = "address"
	TypePhone         ComponentType = "phone"
	TypeEmail         ComponentType = "email"
	TypeDate          ComponentType = "date"
	TypeInvoiceNumber ComponentType = "invoice-number"
	TypeCustomField   ComponentType = "custom-field"
)

// Types lists the palette vocabulary in display order.
var Types = []ComponentType{
	TypeText, TypeLogo, TypeTable, TypeCommission, TypeGST, TypeAddress,
	TypePhone, TypeEmail, TypeDate, TypeInvoiceNumber, TypeCustomField,
}

func (t ComponentType) Valid() bool {
	for _, k := range Types {
		if k == t {
			return true
		}
	}
	return false
}

const (
	MinWidth  = 50
	MinHeight = 20
)

// Properties is the type-specific property record of a component. The concrete type is fixed by
// the component's Type; see DefaultProperties.
type Properties interface {
	isProperties()
}

type TextProps struct {
	Content    string          `json:"content"`
	FontSize   geometry.Number `json:"fontSize"`
	Color      string          `json:"color,omitempty"`
	FontWeight string          `json:"fontWeight,omitempty"`
	TextAlign  string          `json:"textAlign,omitempty"`
}

type LogoProps struct {
	Src       string `json:"src"`
	Alt       string `json:"alt,omitempty"`
	ObjectFit string `json:"objectFit,omitempty"`
}

// TableProps describes a grid; DataSourceID binds it to live rows through the table's mappings.
type TableProps struct {
	Rows         geometry.Count `json:"rows"`
	Columns      geometry.Count `json:"columns"`
	Headers      []string       `json:"headers"`
	BorderStyle  string         `json:"borderStyle,omitempty"`
	BorderColor  string         `json:"borderColor,omitempty"`
	HeaderBg     string         `json:"headerBg,omitempty"`
	Cells        [][]string     `json:"cells,omitempty"`
	DataSourceID string         `json:"dataSourceId,omitempty"`
}

type CommissionProps struct {
	Rate            geometry.Number `json:"rate"`
	Type            string          `json:"type"`
	ShowCalculation bool            `json:"showCalculation"`
}

type GSTProps struct {
	Rate          geometry.Number `json:"rate"`
	HSN           string          `json:"hsn"`
	ShowBreakdown bool            `json:"showBreakdown"`
}

// ContactProps serves address, phone and email components.
type ContactProps struct {
	Content    string          `json:"content"`
	FontSize   geometry.Number `json:"fontSize"`
	LineHeight geometry.Number `json:"lineHeight,omitempty"`
}

type DateProps struct {
	Format   string          `json:"format"`
	FontSize geometry.Number `json:"fontSize"`
}

type InvoiceNumberProps struct {
	Prefix     string          `json:"prefix"`
	Format     string          `json:"format"`
	FontSize   geometry.Number `json:"fontSize"`
	FontWeight string          `json:"fontWeight,omitempty"`
}

// CustomFieldProps is the data-driven bag of a custom-field component plus the copy of the field
// definition captured when it was dropped.
type CustomFieldProps struct {
	FieldDefinition *fields.CustomField
	Values          map[string]any
}

func (TextProps) isProperties()          {}
func (LogoProps) isProperties()          {}
func (TableProps) isProperties()         {}
func (CommissionProps) isProperties()    {}
func (GSTProps) isProperties()           {}
func (ContactProps) isProperties()       {}
func (DateProps) isProperties()          {}
func (InvoiceNumberProps) isProperties() {}
func (CustomFieldProps) isProperties()   {}

// MarshalJSON flattens Values next to fieldDefinition.
func (p CustomFieldProps) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(p.Values)+1)
	for k, v := range p.Values {
		m[k] = v
	}
	if p.FieldDefinition != nil {
		m["fieldDefinition"] = p.FieldDefinition
	}
	return json.Marshal(m)
}

// UnmarshalJSON merges keys into Values, so decoding onto an existing record acts as a patch.
func (p *CustomFieldProps) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if fd, ok := raw["fieldDefinition"]; ok {
		delete(raw, "fieldDefinition")
		if string(fd) != "null" {
			var f fields.CustomField
			if err := json.Unmarshal(fd, &f); err != nil {
				return fmt.Errorf("fieldDefinition: %w", err)
			}
			p.FieldDefinition = &f
		}
	}
	if p.Values == nil {
		p.Values = make(map[string]any, len(raw))
	}
	for k, v := range raw {
		var x any
		if err := json.Unmarshal(v, &x); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		p.Values[k] = x
	}
	return nil
}

// PlacedComponent is one element on the canvas. X, Y, Width and Height are pixels.
type PlacedComponent struct {
	ID         string        `json:"id"`
	Type       ComponentType `json:"type"`
	Label      string        `json:"label,omitempty"`
	X          float64       `json:"x"`
	Y          float64       `json:"y"`
	Width      float64       `json:"width"`
	Height     float64       `json:"height"`
	ZIndex     int           `json:"zIndex"`
	Properties Properties    `json:"properties"`
}

func (c PlacedComponent) Rect() geometry.Rect { return geometry.R(c.X, c.Y, c.Width, c.Height) }

// UnmarshalJSON decodes properties into the record for the component's type.
func (c *PlacedComponent) UnmarshalJSON(b []byte) error {
	type plain PlacedComponent
	var raw struct {
		plain
		Properties json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	props, err := DecodeProperties(raw.Type, raw.Properties)
	if err != nil {
		return err
	}
	*c = PlacedComponent(raw.plain)
	c.Properties = props
	return nil
}

// DecodeProperties decodes raw over the type's defaults.
func DecodeProperties(t ComponentType, raw json.RawMessage) (Properties, error) {
	return MergeProperties(t, DefaultProperties(t), raw)
}

// MergeProperties applies the keys present in patch onto base. Keys absent from patch keep the
// base value.
func MergeProperties(t ComponentType, base Properties, patch json.RawMessage) (Properties, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown component type %q", t)
	}
	base = cloneProps(base)
	if len(patch) == 0 || string(patch) == "null" {
		if base == nil {
			return DefaultProperties(t), nil
		}
		return base, nil
	}
	var err error
	var out Properties
	switch t {
	case TypeText:
		v, _ := base.(TextProps)
		err = json.Unmarshal(patch, &v)
		out = v
	case TypeLogo:
		v, _ := base.(LogoProps)
		err = json.Unmarshal(patch, &v)
		out = v
	case TypeTable:
		v, _ := base.(TableProps)
		err = json.Unmarshal(patch, &v)
		out = v
	case TypeCommission:
		v, _ := base.(CommissionProps)
		err = json.Unmarshal(patch, &v)
		out = v
	case TypeGST:
		v, _ := base.(GSTProps)
		err = json.Unmarshal(patch, &v)
		out = v
	case TypeAddress, TypePhone, TypeEmail:
		v, _ := base.(ContactProps)
		err = json.Unmarshal(patch, &v)
		out = v
	case TypeDate:
		v, _ := base.(DateProps)
		err = json.Unmarshal(patch, &v)
		out = v
	case TypeInvoiceNumber:
		v, _ := base.(InvoiceNumberProps)
		err = json.Unmarshal(patch, &v)
		out = v
	case TypeCustomField:
		v, _ := base.(CustomFieldProps)
		err = json.Unmarshal(patch, &v)
		out = v
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s properties: %w", t, err)
	}
	return out, nil
}

// propsMatch reports whether p is the record type for t.
func propsMatch(t ComponentType, p Properties) bool {
	switch p.(type) {
	case TextProps:
		return t == TypeText
	case LogoProps:
		return t == TypeLogo
	case TableProps:
		return t == TypeTable
	case CommissionProps:
		return t == TypeCommission
	case GSTProps:
		return t == TypeGST
	case ContactProps:
		return t == TypeAddress || t == TypePhone || t == TypeEmail
	case DateProps:
		return t == TypeDate
	case InvoiceNumberProps:
		return t == TypeInvoiceNumber
	case CustomFieldProps:
		return t == TypeCustomField
	}
	return false
}

func cloneProps(p Properties) Properties {
	switch v := p.(type) {
	case TableProps:
		v.Headers = append([]string(nil), v.Headers...)
		if v.Cells != nil {
			cells := make([][]string, len(v.Cells))
			for i, row := range v.Cells {
				cells[i] = append([]string(nil), row...)
			}
			v.Cells = cells
		}
		return v
	case CustomFieldProps:
		if v.FieldDefinition != nil {
			fd := *v.FieldDefinition
			fd.Properties.Options = append([]string(nil), fd.Properties.Options...)
			v.FieldDefinition = &fd
		}
		vals := make(map[string]any, len(v.Values))
		for k, x := range v.Values {
			vals[k] = x
		}
		v.Values = vals
		return v
	default:
		return p
	}
}

func (c PlacedComponent) clone() PlacedComponent {
	c.Properties = cloneProps(c.Properties)
	return c
}

// DefaultSize is the palette size of a freshly dropped component.
func DefaultSize(t ComponentType) (w, h float64) {
	switch t {
	case TypeText:
		return 200, 30
	case TypeLogo:
		return 120, 60
	case TypeTable:
		return 400, 120
	case TypeCommission:
		return 250, 80
	case TypeGST:
		return 200, 60
	case TypeAddress:
		return 200, 80
	case TypePhone:
		return 150, 30
	case TypeEmail:
		return 200, 30
	case TypeDate:
		return 120, 30
	case TypeInvoiceNumber:
		return 150, 30
	default:
		return 200, 40
	}
}

// DefaultProperties returns a fresh record for t.
func DefaultProperties(t ComponentType) Properties {
	switch t {
	case TypeText:
		return TextProps{Content: "Sample Text", FontSize: 14, Color: "#000000", FontWeight: "normal", TextAlign: "left"}
	case TypeLogo:
		return LogoProps{Src: "/placeholder.svg?height=60&width=120", Alt: "Company Logo", ObjectFit: "contain"}
	case TypeTable:
		return TableProps{
			Rows:        3,
			Columns:     4,
			Headers:     []string{"Item", "Qty", "Rate", "Amount"},
			BorderStyle: "solid",
			BorderColor: "#000000",
			HeaderBg:    "#f3f4f6",
		}
	case TypeCommission:
		return CommissionProps{Rate: 5, Type: "percentage", ShowCalculation: true}
	case TypeGST:
		return GSTProps{Rate: 18, HSN: "9983", ShowBreakdown: true}
	case TypeAddress:
		return ContactProps{Content: "Company Address\nCity, State - PIN\nCountry", FontSize: 12, LineHeight: 1.4}
	case TypePhone:
		return ContactProps{Content: "+91 9876543210", FontSize: 12}
	case TypeEmail:
		return ContactProps{Content: "contact@company.com", FontSize: 12}
	case TypeDate:
		return DateProps{Format: "DD/MM/YYYY", FontSize: 12}
	case TypeInvoiceNumber:
		return InvoiceNumberProps{Prefix: "INV-", Format: "auto", FontSize: 14, FontWeight: "bold"}
	case TypeCustomField:
		return CustomFieldProps{Values: map[string]any{}}
	default:
		return nil
	}
}

// Sorted returns components in draw order: ascending zIndex, ties by insertion order.
func Sorted(cs []PlacedComponent) []PlacedComponent {
	out := make([]PlacedComponent, len(cs))
	copy(out, cs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ZIndex < out[j].ZIndex })
	return out
}
