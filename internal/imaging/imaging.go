// Package imaging post-processes device screenshots before they cross the
// tunnel.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// Downscale bounds an image's largest dimension to maxDim, preserving the
// aspect ratio. Input already within bounds (or maxDim <= 0) is returned
// unchanged with its detected mime type; resized output is re-encoded as
// PNG. PNG and JPEG input are supported.
func Downscale(data []byte, maxDim int) ([]byte, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return data, "image/" + format, nil
	}

	outW, outH := fitWithin(w, h, maxDim)

	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, "", fmt.Errorf("encode png: %w", err)
	}

	return buf.Bytes(), "image/png", nil
}

// EncodeJPEG re-encodes an image as JPEG at the given quality (1-100).
// Out-of-range quality falls back to jpeg.DefaultQuality.
func EncodeJPEG(data []byte, quality int) ([]byte, string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, "", fmt.Errorf("encode jpeg: %w", err)
	}

	return buf.Bytes(), "image/jpeg", nil
}

// fitWithin scales (w, h) proportionally so the larger side equals maxDim.
// Either output side is at least 1.
func fitWithin(w, h, maxDim int) (int, int) {
	if w >= h {
		outH := h * maxDim / w
		if outH < 1 {
			outH = 1
		}

		return maxDim, outH
	}

	outW := w * maxDim / h
	if outW < 1 {
		outW = 1
	}

	return outW, maxDim
}
