// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadImage(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G'}
	path := writeImage(t, "shot.png", payload)

	att, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, "shot.png", att.Filename)
	assert.Equal(t, "image/png", att.MimeType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(payload), att.InlineData)
}

func TestLoadImageUnsupportedFormat(t *testing.T) {
	path := writeImage(t, "notes.txt", []byte("text"))
	_, err := LoadImage(path)
	require.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestLoadImageTooLarge(t *testing.T) {
	path := writeImage(t, "huge.jpg", make([]byte, MaxImageBytes+1))
	_, err := LoadImage(path)
	require.ErrorIs(t, err, ErrImageTooLarge)
}

func TestLoadImagesCountCap(t *testing.T) {
	paths := make([]string, MaxImagesPerMessage+1)
	for i := range paths {
		paths[i] = writeImage(t, "a.png", []byte{1})
	}
	_, err := LoadImages(paths)
	require.ErrorIs(t, err, ErrTooManyImages)
}
