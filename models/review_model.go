package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Review is a student's rating of one completed session. The unique index on
// (student_id, session_id) backs the at-most-one-review-per-pair rule;
// resubmissions update the existing row in place.
type Review struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID uuid.UUID `gorm:"not null;uniqueIndex:idx_reviews_student_session" json:"student_id"`
	SessionID uuid.UUID `gorm:"not null;uniqueIndex:idx_reviews_student_session" json:"session_id"`
	Rating    int       `gorm:"not null;check:rating >= 1 AND rating <= 5" json:"rating"`
	Comment   string    `gorm:"type:text" json:"comment"`

	Student User    `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Session Session `gorm:"foreignKey:SessionID" json:"session,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
