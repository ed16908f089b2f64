package db

// Tag is a free-form label on posts.
type Tag struct {
	Base
	Name        string `gorm:"type:varchar(255);uniqueIndex;not null"`
	Slug        string `gorm:"type:varchar(255);uniqueIndex;not null"`
	Description string `gorm:"type:text"`
	Color       string
	PostCount   int64 `gorm:"not null;default:0"`
	IsActive    bool  `gorm:"not null"`
}
