package repository

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/facette/natsort"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mkardel/photoscope/database"
	"github.com/mkardel/photoscope/models"
)

// ImageRepository handles database operations for Image entities
type ImageRepository struct {
	DB *gorm.DB
}

// NewImageRepository creates a new instance of ImageRepository
func NewImageRepository(db *gorm.DB) *ImageRepository {
	return &ImageRepository{DB: db}
}

// GetByPath retrieves full image info by its file path
func (r *ImageRepository) GetByPath(filePath string) (*models.Image, error) {
	var image models.Image
	err := r.DB.Where("file_path = ?", filePath).First(&image).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get image by path %s: %w", filePath, err)
	}
	return &image, nil
}

// Exists reports whether an image row is present for the given path
func (r *ImageRepository) Exists(filePath string) (bool, error) {
	var count int64
	err := r.DB.Model(&models.Image{}).Where("file_path = ?", filePath).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check image existence for %s: %w", filePath, err)
	}
	return count > 0, nil
}

// SaveIngestResult writes the image row plus its detected faces atomically.
// The image row is upserted; face rows for a box that already exists are
// left untouched so re-detection never overwrites an assigned name.
func (r *ImageRepository) SaveIngestResult(image *models.Image, faces []models.Face) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "file_path"}},
			UpdateAll: true,
		}).Create(image).Error; err != nil {
			return fmt.Errorf("failed to upsert image %s: %w", image.FilePath, err)
		}

		for i := range faces {
			faces[i].ImagePath = image.FilePath
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&faces[i]).Error; err != nil {
				return fmt.Errorf("failed to insert face for %s: %w", image.FilePath, err)
			}
		}
		return nil
	})
}

// ListImages returns all images ordered by the given sort key. Sorting is a
// read-side projection only; nothing about the order is stored.
func (r *ImageRepository) ListImages(sortKey string) ([]models.Image, error) {
	var images []models.Image
	if err := r.DB.Find(&images).Error; err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}

	switch sortKey {
	case database.SortSize:
		sort.SliceStable(images, func(i, j int) bool {
			return images[i].FileSize > images[j].FileSize
		})
	case database.SortName:
		sort.SliceStable(images, func(i, j int) bool {
			return natsort.Compare(
				strings.ToLower(filepath.Base(images[i].FilePath)),
				strings.ToLower(filepath.Base(images[j].FilePath)),
			)
		})
	default: // database.SortDate
		sort.SliceStable(images, func(i, j int) bool {
			return imageDate(&images[i]) > imageDate(&images[j])
		})
	}

	return images, nil
}

// imageDate prefers the EXIF capture date and falls back to the file
// modification time, which every row has.
func imageDate(img *models.Image) int64 {
	if img.TakenAt != nil {
		return *img.TakenAt
	}
	return img.ModTime
}

// Delete removes an image row; its faces go with it in the same transaction
func (r *ImageRepository) Delete(filePath string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("image_path = ?", filePath).Delete(&models.Face{}).Error; err != nil {
			return fmt.Errorf("failed to delete faces for %s: %w", filePath, err)
		}
		if err := tx.Where("file_path = ?", filePath).Delete(&models.Image{}).Error; err != nil {
			return fmt.Errorf("failed to delete image %s: %w", filePath, err)
		}
		return nil
	})
}
