package media

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

const captionJpegQuality = 85

// PrepareCaptionInput downsizes an image so its longest side is at most
// maxSize and re-encodes it as JPEG. Caption backends charge by resolution,
// and the full-resolution original adds nothing to caption quality.
func PrepareCaptionInput(imageData []byte, maxSize int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(imageData), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image for caption input: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxSize || bounds.Dy() > maxSize {
		img = imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(captionJpegQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode caption input: %w", err)
	}
	return buf.Bytes(), nil
}
