// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register decoder
	"io"

	"golang.org/x/image/draw"
)

const (
	// MaxUploadBytes is the largest accepted source file.
	MaxUploadBytes = 2 << 20
	// OutputSize is the edge of the square output image.
	OutputSize = 600
	// JPEGQuality of the re-encoded image.
	JPEGQuality = 90
)

// ErrInvalidImage is returned for unsupported, oversized or undecodable input.
var ErrInvalidImage = errors.New("invalid image")

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Normalize checks the declared content type and size, then center-crops the
// image to a square, scales it to OutputSize and re-encodes it as JPEG.
func Normalize(r io.Reader, contentType string, size int64) ([]byte, error) {
	if !allowedTypes[contentType] {
		return nil, fmt.Errorf("%w: unsupported type %q", ErrInvalidImage, contentType)
	}
	if size > MaxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidImage, size, MaxUploadBytes)
	}

	// Read one byte past the limit to catch lying Content-Length headers.
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrInvalidImage, MaxUploadBytes)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, OutputSize, OutputSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, squareCrop(src.Bounds()), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// squareCrop returns the largest centered square inside b.
func squareCrop(b image.Rectangle) image.Rectangle {
	w, h := b.Dx(), b.Dy()
	side := min(w, h)
	x := b.Min.X + (w-side)/2
	y := b.Min.Y + (h-side)/2
	return image.Rect(x, y, x+side, y+side)
}
