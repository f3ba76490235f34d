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
	"html"

	"github.com/microcosm-cc/bluemonday"
)

var textPolicy = bluemonday.StrictPolicy()

// cleanText strips markup from user-entered text. The policy escapes entities on output, so the
// result is unescaped and re-checked until stable; the fixpoint keeps plain text such as "R&D"
// intact across repeated edits.
func cleanText(s string) string {
	for i := 0; i < 3; i++ {
		out := html.UnescapeString(textPolicy.Sanitize(s))
		if out == s {
			return out
		}
		s = out
	}
	return s
}

// sanitize returns p with every free-text field cleaned.
func sanitize(p Properties) Properties {
	switch v := p.(type) {
	case TextProps:
		v.Content = cleanText(v.Content)
		return v
	case ContactProps:
		v.Content = cleanText(v.Content)
		return v
	case LogoProps:
		v.Alt = cleanText(v.Alt)
		return v
	case TableProps:
		for i, h := range v.Headers {
			v.Headers[i] = cleanText(h)
		}
		for _, row := range v.Cells {
			for j, c := range row {
				row[j] = cleanText(c)
			}
		}
		return v
	case CustomFieldProps:
		for k, x := range v.Values {
			if s, ok := x.(string); ok {
				v.Values[k] = cleanText(s)
			}
		}
		return v
	default:
		return p
	}
}
