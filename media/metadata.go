package media

import (
	"bytes"
	"fmt"
	"image"
	"log"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rwcarlsen/goexif/exif"
)

// Metadata holds the pure per-file information extracted before any model
// inference runs: pixel dimensions, capture date and geolocation.
type Metadata struct {
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	TakenAt   *int64   `json:"taken_at,omitempty"`   // Nullable, Unix timestamp
	Latitude  *float64 `json:"latitude,omitempty"`   // Nullable
	Longitude *float64 `json:"longitude,omitempty"`  // Nullable
}

// ExtractMetadata decodes dimensions and EXIF data from raw image bytes.
// A file that cannot be decoded at all returns an error; missing EXIF data
// does not, since plenty of valid images simply lack it.
func ExtractMetadata(imageData []byte) (*Metadata, error) {
	config, format, err := image.DecodeConfig(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to decode image config: %w", err)
	}

	meta := &Metadata{
		Width:  config.Width,
		Height: config.Height,
	}

	exifData, err := exif.Decode(bytes.NewReader(imageData))
	if err != nil {
		// not necessarily a problem, file might just lack EXIF data
		log.Printf("metadata: no EXIF data found (format: %s): %v", format, err)
		return meta, nil
	}

	if dt, err := exifData.DateTime(); err == nil {
		ts := dt.Unix()
		meta.TakenAt = &ts
	}

	if lat, long, err := exifData.LatLong(); err == nil {
		meta.Latitude = &lat
		meta.Longitude = &long
	}

	return meta, nil
}
