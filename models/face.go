package models

// Face represents a detected face in an image using GORM.
// It corresponds to the 'faces' table. A face is identified by its image
// path plus its exact bounding box; re-detection must not create a second
// row for the same box.
type Face struct {
	ID        uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	ImagePath string  `gorm:"not null;index;uniqueIndex:idx_faces_image_box" json:"image_path"`
	Top       int     `gorm:"not null;uniqueIndex:idx_faces_image_box" json:"top"`
	Right     int     `gorm:"not null;uniqueIndex:idx_faces_image_box" json:"right"`
	Bottom    int     `gorm:"not null;uniqueIndex:idx_faces_image_box" json:"bottom"`
	Left      int     `gorm:"not null;uniqueIndex:idx_faces_image_box" json:"left"`
	Name      *string `gorm:"" json:"name,omitempty"`     // Nullable, set only by tagging
	CreatedAt int64   `gorm:"not null" json:"created_at"` // Unix timestamp
	UpdatedAt int64   `gorm:"not null" json:"updated_at"` // Unix timestamp
}

// TableName explicitly sets the table name for GORM.
func (Face) TableName() string {
	return "faces"
}
