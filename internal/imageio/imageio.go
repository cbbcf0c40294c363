// Package imageio decodes image bytes into in-memory images for the
// inference stages.
package imageio

import (
	"bytes"
	"fmt"
	"image"

	"picfinder/internal/logging"

	// Stdlib format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // BMP format support
	_ "golang.org/x/image/tiff" // TIFF format support
	_ "golang.org/x/image/webp" // WebP format support
)

const (
	// MaxDimension is the maximum width or height passed to inference.
	// Larger images are downscaled first.
	MaxDimension = 4096

	// MaxPixels bounds the total decoded size. A decoded RGBA pixel costs
	// four bytes, so 20MP is roughly 80MB per image.
	MaxPixels = 20_000_000
)

// Decode decodes data into an image, applying EXIF auto-orientation and
// downscaling anything that exceeds the size limits. The whole batch of
// decoded images is held in memory at once, so the limits directly bound the
// pipeline's peak memory.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if width <= MaxDimension && height <= MaxDimension && width*height <= MaxPixels {
		return img, nil
	}

	targetWidth, targetHeight := constrain(width, height)
	logging.Debug("Downscaling oversized image from %dx%d to %dx%d", width, height, targetWidth, targetHeight)

	return imaging.Resize(img, targetWidth, targetHeight, imaging.Lanczos), nil
}

// constrain computes target dimensions within MaxDimension and MaxPixels,
// preserving aspect ratio.
func constrain(width, height int) (int, int) {
	if width > MaxDimension || height > MaxDimension {
		if width > height {
			height = height * MaxDimension / width
			width = MaxDimension
		} else {
			width = width * MaxDimension / height
			height = MaxDimension
		}
	}

	if pixels := width * height; pixels > MaxPixels {
		scale := float64(MaxPixels) / float64(pixels)
		width = int(float64(width) * scale)
		height = int(float64(height) * scale)
	}

	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return width, height
}
