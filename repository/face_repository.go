package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mkardel/photoscope/media"
	"github.com/mkardel/photoscope/models"
)

// ErrFaceNotFound is returned when a tag operation references a face box
// that was never detected for the image. Tagging never creates face rows.
var ErrFaceNotFound = errors.New("face not found for given image path and box")

// FaceRepository handles database operations for Face entities
type FaceRepository struct {
	DB *gorm.DB
}

// NewFaceRepository creates a new instance of FaceRepository
func NewFaceRepository(db *gorm.DB) *FaceRepository {
	return &FaceRepository{DB: db}
}

// ListByImagePath returns all faces for an image in a stable order
func (r *FaceRepository) ListByImagePath(imagePath string) ([]models.Face, error) {
	var faces []models.Face
	err := r.DB.Where("image_path = ?", imagePath).
		Order("`top` ASC, `left` ASC, id ASC").
		Find(&faces).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list faces for %s: %w", imagePath, err)
	}
	return faces, nil
}

// TagFace assigns a name to the face with the exact bounding box. A single
// UPDATE keyed on the full box makes concurrent tags on the same face
// last-write-wins and tags on different faces independent.
func (r *FaceRepository) TagFace(imagePath string, box media.Box, name string) error {
	result := r.DB.Model(&models.Face{}).
		Where("image_path = ? AND `top` = ? AND `right` = ? AND `bottom` = ? AND `left` = ?",
			imagePath, box.Top, box.Right, box.Bottom, box.Left).
		Updates(map[string]interface{}{
			"name":       name,
			"updated_at": time.Now().Unix(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to tag face on %s: %w", imagePath, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrFaceNotFound
	}
	return nil
}
