// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Attachment limits.
const (
	MaxImagesPerMessage = 4
	MaxImageBytes       = 5 << 20 // 5 MiB per file
)

var (
	ErrTooManyImages    = fmt.Errorf("at most %d images per message", MaxImagesPerMessage)
	ErrImageTooLarge    = errors.New("image exceeds the 5 MiB limit")
	ErrUnsupportedImage = errors.New("unsupported image format")
)

// Attachment is one image attached to a message. InlineData is the
// base64-encoded file content, the form the chat endpoint expects.
type Attachment struct {
	Filename   string `json:"filename"`
	MimeType   string `json:"mimeType"`
	InlineData string `json:"inlineData"`
}

var imageMimeTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// LoadImage reads and encodes one image file, enforcing the per-file size
// cap and the supported-format list.
func LoadImage(path string) (Attachment, error) {
	ext := strings.ToLower(filepath.Ext(path))
	mimeType, ok := imageMimeTypes[ext]
	if !ok {
		return Attachment{}, fmt.Errorf("%w: %s", ErrUnsupportedImage, ext)
	}

	info, err := os.Stat(path)
	if err != nil {
		return Attachment{}, err
	}
	if info.Size() > MaxImageBytes {
		return Attachment{}, fmt.Errorf("%w: %s", ErrImageTooLarge, filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Attachment{}, err
	}

	return Attachment{
		Filename:   filepath.Base(path),
		MimeType:   mimeType,
		InlineData: base64.StdEncoding.EncodeToString(data),
	}, nil
}

// LoadImages loads several image files, enforcing the per-message count cap.
func LoadImages(paths []string) ([]Attachment, error) {
	if len(paths) > MaxImagesPerMessage {
		return nil, ErrTooManyImages
	}

	out := make([]Attachment, 0, len(paths))
	for _, p := range paths {
		att, err := LoadImage(p)
		if err != nil {
			return nil, err
		}
		out = append(out, att)
	}
	return out, nil
}
