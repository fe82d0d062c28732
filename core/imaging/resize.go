// Package imaging normalizes the image payloads of a built document: images
// wider than a limit are scaled down and re-encoded, on a bounded worker pool.
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// ErrUnsupportedFormat is returned for payloads that are not PNG, JPEG or GIF.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 85

// Resizer scales one encoded image so it is at most maxWidth pixels wide.
// Images already narrow enough are returned unchanged.
type Resizer interface {
	Resize(ctx context.Context, data []byte, maxWidth, quality int) ([]byte, error)
}

// DrawResizer is the default Resizer, scaling with Catmull-Rom resampling
// and re-encoding in the source format.
type DrawResizer struct{}

// Resize implements Resizer.
func (DrawResizer) Resize(ctx context.Context, data []byte, maxWidth, quality int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if maxWidth <= 0 || cfg.Width <= maxWidth {
		return data, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", format, err)
	}
	b := src.Bounds()
	height := b.Dy() * maxWidth / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	var out bytes.Buffer
	switch format {
	case "png":
		err = png.Encode(&out, dst)
	case "jpeg":
		err = jpeg.Encode(&out, dst, &jpeg.Options{Quality: quality})
	case "gif":
		err = gif.Encode(&out, dst, nil)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", format, err)
	}
	return out.Bytes(), nil
}
