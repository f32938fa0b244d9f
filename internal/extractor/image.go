package extractor

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/errs"
)

// Supported upload types.
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEWebP = "image/webp"
	MIMEBMP  = "image/bmp"
)

// DetectMIMEType detects the MIME type from image magic bytes.
func DetectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return MIMEJPEG
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return MIMEPNG
	}
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	// WebP: 52 49 46 46 ... 57 45 42 50
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return MIMEWebP
	}
	// BMP: 42 4D
	if data[0] == 0x42 && data[1] == 0x4D {
		return MIMEBMP
	}
	return "application/octet-stream"
}

// IsSupported reports whether the data looks like an image type the pipeline accepts.
func IsSupported(data []byte) bool {
	switch DetectMIMEType(data) {
	case MIMEJPEG, MIMEPNG, MIMEWebP, MIMEBMP:
		return true
	default:
		return false
	}
}

// Prepare makes an upload ready for the embedding service. JPEG and PNG
// within maxSize pass through untouched; everything else is decoded, scaled
// to fit maxSize (0 disables scaling) and re-encoded as JPEG.
func Prepare(data []byte, maxSize int) ([]byte, string, error) {
	mimeType := DetectMIMEType(data)
	if !IsSupported(data) {
		return nil, "", errs.Newf(errs.KindInvalidRequest, "unsupported image type %s", mimeType)
	}

	if mimeType == MIMEJPEG || mimeType == MIMEPNG {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, "", errs.Wrap(errs.KindInvalidRequest, err, "failed to decode image")
		}
		if maxSize <= 0 || (cfg.Width <= maxSize && cfg.Height <= maxSize) {
			return data, mimeType, nil
		}
	}

	out, err := ResizeImage(data, maxSize)
	if err != nil {
		return nil, "", errs.Wrap(errs.KindInvalidRequest, err, "failed to prepare image")
	}
	return out, MIMEJPEG, nil
}

// ResizeImage resizes an image to fit within maxSize (width or height) while keeping aspect ratio.
// The result is always JPEG.
func ResizeImage(data []byte, maxSize int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	// Check if resizing is needed.
	if maxSize <= 0 || (width <= maxSize && height <= maxSize) {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: constants.JPEGQuality}); err != nil {
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}
		return buf.Bytes(), nil
	}

	// Calculate new dimensions.
	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = max(1, int(float64(height)*float64(maxSize)/float64(width)))
	} else {
		newHeight = maxSize
		newWidth = max(1, int(float64(width)*float64(maxSize)/float64(height)))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: constants.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}

	return buf.Bytes(), nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case MIMEPNG:
		return ".png"
	case MIMEWebP:
		return ".webp"
	case MIMEBMP:
		return ".bmp"
	default:
		return ".jpg"
	}
}
