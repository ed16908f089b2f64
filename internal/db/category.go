package db

// CategoryStatus controls whether a category is offered to readers.
type CategoryStatus string

const (
	CategoryStatusActive   CategoryStatus = "active"
	CategoryStatusInactive CategoryStatus = "inactive"
)

// Category groups posts. PostCount is derived from post_categories.
type Category struct {
	Base
	Name        string         `gorm:"type:varchar(255);uniqueIndex;not null"`
	Slug        string         `gorm:"type:varchar(255);uniqueIndex;not null"`
	Description string         `gorm:"type:text"`
	Image       string
	Status      CategoryStatus `gorm:"type:varchar(16);not null"`
	PostCount   int64          `gorm:"not null;default:0"`
	SortOrder   int            `gorm:"not null;default:0"`
	ParentID    *string        `gorm:"type:varchar(36);index"`
}
