package services

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tutorhive/tutorhive/models"
)

// ReviewService enforces at-most-one review per (student, session) pair and
// keeps the tutor rating aggregate in step with review writes. Review write
// and rating recompute share one transaction so partial success cannot occur.
type ReviewService struct {
	db *gorm.DB
}

func NewReviewService(db *gorm.DB) *ReviewService {
	return &ReviewService{db: db}
}

// Submit records a student's rating of a completed session. A resubmission
// for the same pair updates the existing review in place. The owning tutor's
// aggregate is recomputed before Submit returns.
func (r *ReviewService) Submit(studentID, sessionID uuid.UUID, rating int, comment string) (*models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, validation("rating must be an integer between 1 and 5")
	}

	var review models.Review
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var sess models.Session
		if err := loadSession(tx, sessionID, &sess); err != nil {
			return err
		}
		if sess.Status != models.SessionCompleted {
			return invalidTransition("reviews are only accepted for completed sessions")
		}
		if sess.StudentID == nil || *sess.StudentID != studentID {
			return unauthorized("this is not your session")
		}

		err := tx.Where("student_id = ? AND session_id = ?", studentID, sessionID).
			First(&review).Error
		switch {
		case err == nil:
			review.Rating = rating
			review.Comment = comment
			if err := tx.Save(&review).Error; err != nil {
				return storageError("update review", err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			review = models.Review{
				StudentID: studentID,
				SessionID: sessionID,
				Rating:    rating,
				Comment:   comment,
			}
			if err := tx.Create(&review).Error; err != nil {
				return storageError("create review", err)
			}
		default:
			return storageError("find review", err)
		}

		return recomputeRating(tx, sess.TutorID)
	})
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// Recompute recalculates and persists the tutor's mean rating, returning the
// new value. Normally the submit path keeps the aggregate current; this is
// the repair entry point.
func (r *ReviewService) Recompute(tutorID uuid.UUID) (float64, error) {
	var rating float64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := recomputeRating(tx, tutorID); err != nil {
			return err
		}
		var tutor models.Tutor
		if err := tx.First(&tutor, "user_id = ?", tutorID).Error; err != nil {
			return storageError("load tutor", err)
		}
		rating = tutor.AvgRating
		return nil
	})
	return rating, err
}

// TutorRating reads the maintained aggregate. It never recomputes.
func (r *ReviewService) TutorRating(tutorID uuid.UUID) (float64, error) {
	var tutor models.Tutor
	if err := r.db.First(&tutor, "user_id = ?", tutorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, notFound("tutor")
		}
		return 0, storageError("load tutor", err)
	}
	return tutor.AvgRating, nil
}

// ForTutor lists every review across the tutor's sessions, newest first, with
// the student and session attached for display.
func (r *ReviewService) ForTutor(tutorID uuid.UUID) ([]models.Review, error) {
	var reviews []models.Review
	err := r.db.Preload("Student").Preload("Session").
		Joins("JOIN sessions ON sessions.id = reviews.session_id").
		Where("sessions.tutor_id = ?", tutorID).
		Order("reviews.created_at desc").
		Find(&reviews).Error
	if err != nil {
		return nil, storageError("list reviews", err)
	}
	return reviews, nil
}

// recomputeRating rewrites the tutor's mean in a single statement: the
// average over all reviews of all the tutor's sessions, 0 when there are
// none. Computing the aggregate inside the UPDATE keeps two concurrent
// submissions for the same tutor from overwriting each other with a stale
// mean: the second writer blocks on the row and re-evaluates.
func recomputeRating(tx *gorm.DB, tutorID uuid.UUID) error {
	res := tx.Model(&models.Tutor{}).Where("user_id = ?", tutorID).
		Update("avg_rating", gorm.Expr(
			"(SELECT COALESCE(AVG(reviews.rating), 0) FROM reviews "+
				"JOIN sessions ON sessions.id = reviews.session_id "+
				"WHERE sessions.tutor_id = ?)", tutorID))
	if res.Error != nil {
		return storageError("recompute tutor rating", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("tutor")
	}
	return nil
}
