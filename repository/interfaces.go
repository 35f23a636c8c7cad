package repository

import (
	"github.com/mkardel/photoscope/media"
	"github.com/mkardel/photoscope/models"
)

// ImageRepositoryInterface defines the methods for image data operations
type ImageRepositoryInterface interface {
	GetByPath(filePath string) (*models.Image, error)
	Exists(filePath string) (bool, error)
	// SaveIngestResult commits the image row and all of its face rows in a
	// single transaction; a reader never observes one without the other.
	SaveIngestResult(image *models.Image, faces []models.Face) error
	ListImages(sortKey string) ([]models.Image, error)
	Delete(filePath string) error
}

// FaceRepositoryInterface defines the methods for face data operations
type FaceRepositoryInterface interface {
	ListByImagePath(imagePath string) ([]models.Face, error)
	// TagFace sets the name of the face with the exact bounding box, and is
	// the only writer of the name field. Returns ErrFaceNotFound when no
	// such face row exists.
	TagFace(imagePath string, box media.Box, name string) error
}
