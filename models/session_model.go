package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Session statuses. Completed and canceled are terminal.
const (
	SessionScheduled = "scheduled"
	SessionOngoing   = "ongoing"
	SessionCompleted = "completed"
	SessionCanceled  = "canceled"
)

// Session is one bookable, priced block of tutoring time between a student
// and a tutor. Slots are start-of-hour instants; the slot count encodes the
// duration in whole hours. Materials holds encoded material strings (see the
// materials package). Sessions are never deleted; terminal rows are kept for
// history.
type Session struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID *uuid.UUID `gorm:"index" json:"student_id"`
	TutorID   uuid.UUID  `gorm:"not null;index" json:"tutor_id"`
	Status    string     `gorm:"size:20;not null;default:'scheduled'" json:"status"`

	Date  time.Time                      `gorm:"not null" json:"date"`
	Slots datatypes.JSONSlice[time.Time] `json:"slots"`
	Price float64                        `gorm:"type:numeric(10,2);not null" json:"price"`

	MeetingURLs datatypes.JSONSlice[string] `json:"meeting_urls"`
	Materials   datatypes.JSONSlice[string] `json:"materials"`

	CancelReason *string `gorm:"type:text" json:"cancel_reason,omitempty"`
	RefundRef    *string `gorm:"size:255" json:"refund_ref,omitempty"`

	Student *User `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Tutor   User  `gorm:"foreignKey:TutorID" json:"tutor,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Terminal reports whether no further status transition is permitted.
func (s *Session) Terminal() bool {
	return s.Status == SessionCompleted || s.Status == SessionCanceled
}
