package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"time"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/saturnino-fabrica-de-software/patientid/internal/domain"
)

// jpegQuality is used when re-encoding for the face backends.
const jpegQuality = 90

type decodeFunc func(r io.Reader) (image.Image, string, error)

var errTooManyPixels = errors.New("image has too many pixels")

// boundedDecode reads the image header first and refuses to decode images
// whose pixel count exceeds maxPixels. maxPixels <= 0 disables the check.
func boundedDecode(maxPixels int) decodeFunc {
	return func(r io.Reader) (image.Image, string, error) {
		var header bytes.Buffer
		cfg, format, err := image.DecodeConfig(io.TeeReader(r, &header))
		if err != nil {
			return nil, format, err
		}
		if maxPixels > 0 && cfg.Width*cfg.Height > maxPixels {
			return nil, format, fmt.Errorf("%w: %dx%d over %d", errTooManyPixels, cfg.Width, cfg.Height, maxPixels)
		}
		return image.Decode(io.MultiReader(&header, r))
	}
}

type decodeResult struct {
	img image.Image
	err error
}

// decodeWithTimeout runs decode in its own goroutine. If the timeout (or ctx)
// fires first the goroutine is abandoned and finishes on its own; the
// buffered channel keeps it from blocking.
func decodeWithTimeout(ctx context.Context, decode decodeFunc, data []byte, timeout time.Duration) (image.Image, error) {
	if len(data) == 0 {
		return nil, domain.ErrDecodeFailure.WithError(fmt.Errorf("empty image"))
	}

	done := make(chan decodeResult, 1)
	go func() {
		img, _, err := decode(bytes.NewReader(data))
		done <- decodeResult{img: img, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, domain.ErrDecodeFailure.WithError(res.err)
		}
		return res.img, nil
	case <-timer.C:
		return nil, domain.ErrDecodeTimeout.WithError(fmt.Errorf("decode exceeded %s", timeout))
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// downscale fits img inside maxDimension x maxDimension keeping the aspect
// ratio. Images already small enough are returned unchanged.
func downscale(img image.Image, maxDimension int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if maxDimension <= 0 || (width <= maxDimension && height <= maxDimension) {
		return img
	}

	var newWidth, newHeight int
	if width >= height {
		newWidth = maxDimension
		newHeight = int(float64(height) * float64(maxDimension) / float64(width))
	} else {
		newHeight = maxDimension
		newWidth = int(float64(width) * float64(maxDimension) / float64(height))
	}
	newWidth = max(newWidth, 1)
	newHeight = max(newHeight, 1)

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.ApproxBiLinear.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
	return resized
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
