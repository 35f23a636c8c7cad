package models

import "math"

// Image represents one ingested photo in the database using GORM.
// It corresponds to the 'images' table.
type Image struct {
	FilePath string `gorm:"primaryKey" json:"file_path"` // absolute path on disk
	ModTime  int64  `gorm:"not null" json:"mod_time"`
	FileSize int64  `gorm:"not null" json:"file_size"`

	Width     *int     `gorm:"" json:"width,omitempty"`         // Nullable
	Height    *int     `gorm:"" json:"height,omitempty"`        // Nullable
	TakenAt   *int64   `gorm:"index" json:"taken_at,omitempty"` // Nullable, Unix timestamp
	Latitude  *float64 `gorm:"" json:"latitude,omitempty"`      // Nullable, decimal degrees
	Longitude *float64 `gorm:"" json:"longitude,omitempty"`     // Nullable, decimal degrees

	ShortCaption    *string `gorm:"" json:"short_caption,omitempty"`    // Nullable
	DetailedCaption *string `gorm:"" json:"detailed_caption,omitempty"` // Nullable
	Embedding       []byte  `gorm:"" json:"-"`                          // caption embedding as BLOB

	// per-stage outcome so a missing caption can be told apart from a
	// caption that was never attempted
	MetadataStatus  string `gorm:"not null;default:pending" json:"metadata_status"`
	DetectionStatus string `gorm:"not null;default:pending" json:"detection_status"`
	CaptionStatus   string `gorm:"not null;default:pending" json:"caption_status"`
	EmbeddingStatus string `gorm:"not null;default:pending" json:"embedding_status"`

	MetadataError  *string `gorm:"" json:"metadata_error,omitempty"`  // Nullable
	DetectionError *string `gorm:"" json:"detection_error,omitempty"` // Nullable
	CaptionError   *string `gorm:"" json:"caption_error,omitempty"`   // Nullable
	EmbeddingError *string `gorm:"" json:"embedding_error,omitempty"` // Nullable

	IngestedAt int64 `gorm:"not null" json:"ingested_at"` // Unix timestamp

	// Relationships
	Faces []Face `gorm:"foreignKey:ImagePath;references:FilePath;constraint:OnDelete:CASCADE" json:"faces,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Image) TableName() string {
	return "images"
}

// GetEmbedding converts the BLOB data to []float32
func (img *Image) GetEmbedding() []float32 {
	return DecodeEmbedding(img.Embedding)
}

// SetEmbedding converts []float32 to BLOB data
func (img *Image) SetEmbedding(embedding []float32) {
	img.Embedding = EncodeEmbedding(embedding)
}

// DecodeEmbedding converts little-endian BLOB data to []float32
func DecodeEmbedding(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}

	embedding := make([]float32, len(data)/4) // 4 bytes per float32
	for i := 0; i < len(embedding); i++ {
		offset := i * 4
		bits := uint32(data[offset]) |
			uint32(data[offset+1])<<8 |
			uint32(data[offset+2])<<16 |
			uint32(data[offset+3])<<24
		embedding[i] = math.Float32frombits(bits)
	}
	return embedding
}

// EncodeEmbedding converts []float32 to little-endian BLOB data
func EncodeEmbedding(embedding []float32) []byte {
	if len(embedding) == 0 {
		return nil
	}

	data := make([]byte, len(embedding)*4) // 4 bytes per float32
	for i, val := range embedding {
		offset := i * 4
		bits := math.Float32bits(val)
		data[offset] = byte(bits)
		data[offset+1] = byte(bits >> 8)
		data[offset+2] = byte(bits >> 16)
		data[offset+3] = byte(bits >> 24)
	}
	return data
}
