package models

import (
	"time"

	"github.com/google/uuid"
)

// Tutor is the tutor profile attached to a user account. AvgRating is a
// denormalized mean over every review of every session this tutor owns;
// it is written only by the rating recompute in services.
type Tutor struct {
	UserID   uuid.UUID `gorm:"primaryKey" json:"user_id"`
	Headline *string   `gorm:"size:255" json:"headline"`
	Bio      *string   `gorm:"type:text" json:"bio"`

	AvgRating float64 `gorm:"default:0" json:"avg_rating"`

	User User `gorm:"foreignKey:UserID" json:"user"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
