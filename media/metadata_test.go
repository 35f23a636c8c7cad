package media

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// Helper functions for creating test images

func createTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("failed to encode JPEG: %v", err)
	}
	return buf.Bytes()
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

func TestExtractMetadata_Dimensions(t *testing.T) {
	data := encodeJPEG(t, createTestImage(320, 240, color.White))

	meta, err := ExtractMetadata(data)
	if err != nil {
		t.Fatalf("ExtractMetadata failed: %v", err)
	}

	if meta.Width != 320 || meta.Height != 240 {
		t.Errorf("expected 320x240, got %dx%d", meta.Width, meta.Height)
	}
	// a synthetic JPEG has no EXIF; those fields stay unset, not errors
	if meta.TakenAt != nil {
		t.Errorf("expected nil TakenAt without EXIF, got %v", *meta.TakenAt)
	}
	if meta.Latitude != nil || meta.Longitude != nil {
		t.Error("expected nil geolocation without EXIF GPS data")
	}
}

func TestExtractMetadata_PNG(t *testing.T) {
	data := encodePNG(t, createTestImage(64, 48, color.Black))

	meta, err := ExtractMetadata(data)
	if err != nil {
		t.Fatalf("ExtractMetadata failed for PNG: %v", err)
	}
	if meta.Width != 64 || meta.Height != 48 {
		t.Errorf("expected 64x48, got %dx%d", meta.Width, meta.Height)
	}
}

func TestExtractMetadata_Corrupt(t *testing.T) {
	if _, err := ExtractMetadata([]byte("not an image at all")); err == nil {
		t.Error("expected error for undecodable bytes")
	}
	if _, err := ExtractMetadata(nil); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestPrepareCaptionInput_Downscales(t *testing.T) {
	data := encodeJPEG(t, createTestImage(2000, 1000, color.White))

	resized, err := PrepareCaptionInput(data, 500)
	if err != nil {
		t.Fatalf("PrepareCaptionInput failed: %v", err)
	}

	decoded, format, err := image.Decode(bytes.NewReader(resized))
	if err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("expected jpeg output, got %s", format)
	}

	bounds := decoded.Bounds()
	if bounds.Dx() != 500 {
		t.Errorf("expected width 500, got %d", bounds.Dx())
	}
	if bounds.Dy() != 250 {
		t.Errorf("expected height 250, got %d", bounds.Dy())
	}
}

func TestPrepareCaptionInput_NoUpscale(t *testing.T) {
	data := encodeJPEG(t, createTestImage(100, 100, color.White))

	resized, err := PrepareCaptionInput(data, 800)
	if err != nil {
		t.Fatalf("PrepareCaptionInput failed: %v", err)
	}

	decoded, _, err := image.Decode(bytes.NewReader(resized))
	if err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if decoded.Bounds().Dx() != 100 || decoded.Bounds().Dy() != 100 {
		t.Errorf("small image must not be upscaled, got %dx%d",
			decoded.Bounds().Dx(), decoded.Bounds().Dy())
	}
}
