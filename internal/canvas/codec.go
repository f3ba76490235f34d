/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// EncodeMsgpack writes the component as a fixed sequence followed by its property record.
func (c PlacedComponent) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeMulti(c.ID, string(c.Type), c.Label, c.X, c.Y, c.Width, c.Height, c.ZIndex, c.Properties)
}

// DecodeMsgpack reads what EncodeMsgpack wrote, choosing the property record by type.
func (c *PlacedComponent) DecodeMsgpack(dec *msgpack.Decoder) error {
	var typ string
	if err := dec.DecodeMulti(&c.ID, &typ, &c.Label, &c.X, &c.Y, &c.Width, &c.Height, &c.ZIndex); err != nil {
		return err
	}
	c.Type = ComponentType(typ)
	var err error
	switch c.Type {
	case TypeText:
		c.Properties, err = decodeAs[TextProps](dec)
	case TypeLogo:
		c.Properties, err = decodeAs[LogoProps](dec)
	case TypeTable:
		c.Properties, err = decodeAs[TableProps](dec)
	case TypeCommission:
		c.Properties, err = decodeAs[CommissionProps](dec)
	case TypeGST:
		c.Properties, err = decodeAs[GSTProps](dec)
	case TypeAddress, TypePhone, TypeEmail:
		c.Properties, err = decodeAs[ContactProps](dec)
	case TypeDate:
		c.Properties, err = decodeAs[DateProps](dec)
	case TypeInvoiceNumber:
		c.Properties, err = decodeAs[InvoiceNumberProps](dec)
	case TypeCustomField:
		c.Properties, err = decodeAs[CustomFieldProps](dec)
	default:
		return fmt.Errorf("unknown component type %q", typ)
	}
	return err
}

func decodeAs[T Properties](dec *msgpack.Decoder) (Properties, error) {
	var v T
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func encodeComponents(cs []PlacedComponent) ([]byte, error) {
	return msgpack.Marshal(cs)
}

func decodeComponents(b []byte) ([]PlacedComponent, error) {
	var cs []PlacedComponent
	if err := msgpack.Unmarshal(b, &cs); err != nil {
		return nil, fmt.Errorf("decode canvas snapshot: %w", err)
	}
	return cs, nil
}
