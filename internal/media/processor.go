package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// MaxAvatarDimension caps the stored size of a profile picture; anything
// larger is downscaled before upload.
const MaxAvatarDimension = 1024

type Upload struct {
	Reader      io.Reader
	Size        int64
	FileName    string
	ContentType string
}

type Result struct {
	Bytes       []byte
	ContentType string
	Resized     bool
}

// ProcessAvatar validates that the upload is a decodable image and downscales
// it when a side exceeds maxDimension. Downscaled output is re-encoded as
// PNG for png input and JPEG for everything else (webp has no Go encoder).
func ProcessAvatar(upload Upload, maxDimension int) (*Result, error) {
	if upload.Reader == nil {
		return nil, fmt.Errorf("media: empty reader")
	}
	data, err := io.ReadAll(upload.Reader)
	if err != nil {
		return nil, fmt.Errorf("media: read image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("media: empty image data")
	}
	if maxDimension <= 0 {
		maxDimension = MaxAvatarDimension
	}

	contentType := NormalizeContentType(upload.ContentType, upload.FileName)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("media: decode dimensions: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("media: invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Width <= maxDimension && cfg.Height <= maxDimension {
		return &Result{Bytes: data, ContentType: contentType, Resized: false}, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("media: decode image: %w", err)
	}

	targetW, targetH := scaleToFit(cfg.Width, cfg.Height, maxDimension)
	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	outType := contentType
	switch contentType {
	case "image/png":
		err = png.Encode(&buf, dst)
	default:
		outType = "image/jpeg"
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		return nil, fmt.Errorf("media: encode image: %w", err)
	}

	return &Result{Bytes: buf.Bytes(), ContentType: outType, Resized: true}, nil
}

func scaleToFit(width, height, maxDim int) (int, int) {
	if width >= height {
		newW := maxDim
		newH := int(math.Round(float64(height) * float64(maxDim) / float64(width)))
		return ensureMin(newW), ensureMin(newH)
	}
	newH := maxDim
	newW := int(math.Round(float64(width) * float64(maxDim) / float64(height)))
	return ensureMin(newW), ensureMin(newH)
}

func ensureMin(value int) int {
	if value < 1 {
		return 1
	}
	return value
}

func NormalizeContentType(value, fileName string) string {
	ct := strings.ToLower(strings.TrimSpace(value))
	if ct != "" {
		if ct == "image/jpg" {
			return "image/jpeg"
		}
		return ct
	}
	switch strings.ToLower(strings.TrimSpace(filepath.Ext(fileName))) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	}
	return "image/jpeg"
}
