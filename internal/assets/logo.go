/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package assets prepares uploaded images for logo components.
package assets

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// MaxUploadBytes bounds what FitLogo accepts.
const MaxUploadBytes = 5 << 20

var (
	ErrTooLarge = errors.New("image exceeds upload limit")
	ErrDecode   = errors.New("unsupported or corrupt image")
)

// Logo is a fitted image ready to be stored as a logo source.
type Logo struct {
	DataURL string `json:"src"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Format  string `json:"format"`
}

// FitLogo decodes data, applies EXIF orientation and scales it down to fit a w×h box keeping the
// aspect ratio. Smaller images are not enlarged. The result is a PNG data URL.
func FitLogo(data []byte, w, h int) (Logo, error) {
	if len(data) > MaxUploadBytes {
		return Logo{}, ErrTooLarge
	}
	if w <= 0 || h <= 0 {
		return Logo{}, fmt.Errorf("invalid box %dx%d", w, h)
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Logo{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Logo{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	fitted := imaging.Fit(img, w, h, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.PNG); err != nil {
		return Logo{}, fmt.Errorf("encode png: %w", err)
	}
	b := fitted.Bounds()
	return Logo{
		DataURL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		Width:   b.Dx(),
		Height:  b.Dy(),
		Format:  format,
	}, nil
}

// DecodeDataURL returns the payload of a base64 data URL.
func DecodeDataURL(s string) ([]byte, error) {
	const marker = ";base64,"
	if !strings.HasPrefix(s, "data:") {
		return nil, errors.New("not a data URL")
	}
	i := strings.Index(s, marker)
	if i < 0 {
		return nil, errors.New("data URL is not base64")
	}
	return base64.StdEncoding.DecodeString(s[i+len(marker):])
}
