package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhive/tutorhive/models"
)

func TestSubmitRequiresCompletedOwnedSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.reviews.Submit(f.student, uuid.New(), 5, "great")
	assert.ErrorIs(t, err, ErrNotFound)

	sess := f.book(t, 14)
	_, err = f.reviews.Submit(f.student, sess.ID, 5, "great")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	done := f.completed(t, 9)
	stranger := createStudent(t, f.db)
	_, err = f.reviews.Submit(stranger, done.ID, 5, "great")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestSubmitRejectsOutOfRangeRating(t *testing.T) {
	f := newFixture(t)
	done := f.completed(t)

	for _, rating := range []int{0, 6, -3} {
		_, err := f.reviews.Submit(f.student, done.ID, rating, "")
		assert.ErrorIs(t, err, ErrValidation)
	}

	var count int64
	f.db.Model(&models.Review{}).Count(&count)
	assert.Zero(t, count)
}

func TestSubmitTwiceUpdatesInPlace(t *testing.T) {
	f := newFixture(t)
	done := f.completed(t)

	first, err := f.reviews.Submit(f.student, done.ID, 2, "rough start")
	require.NoError(t, err)

	second, err := f.reviews.Submit(f.student, done.ID, 5, "much better on reflection")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var all []models.Review
	require.NoError(t, f.db.Find(&all).Error)
	require.Len(t, all, 1)
	assert.Equal(t, 5, all[0].Rating)
	assert.Equal(t, "much better on reflection", all[0].Comment)
}

func TestRatingAggregateAveragesAcrossSessions(t *testing.T) {
	f := newFixture(t)

	s1 := f.completed(t, 7)
	s2 := f.completed(t, 8)
	f.completed(t, 9) // no reviews; contributes nothing

	other := createStudent(t, f.db)
	require.NoError(t, f.db.Model(&models.Session{}).
		Where("id = ?", s1.ID).Update("student_id", other).Error)

	_, err := f.reviews.Submit(f.student, s2.ID, 5, "")
	require.NoError(t, err)
	_, err = f.reviews.Submit(other, s1.ID, 3, "")
	require.NoError(t, err)

	// second review on another session of the same tutor
	s4 := f.completed(t, 6)
	_, err = f.reviews.Submit(f.student, s4.ID, 4, "")
	require.NoError(t, err)

	rating, err := f.reviews.TutorRating(f.tutor)
	require.NoError(t, err)
	// mean over 3 reviews, not over 4 sessions
	assert.InDelta(t, 4.0, rating, 1e-9)
}

func TestRatingAggregateZeroWithoutReviews(t *testing.T) {
	f := newFixture(t)
	f.completed(t)

	rating, err := f.reviews.Recompute(f.tutor)
	require.NoError(t, err)
	assert.Zero(t, rating)

	_, err = f.reviews.Recompute(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTutorRatingReadDoesNotRecompute(t *testing.T) {
	f := newFixture(t)
	done := f.completed(t)
	_, err := f.reviews.Submit(f.student, done.ID, 4, "")
	require.NoError(t, err)

	// skew the stored aggregate behind the resolver's back; a plain read
	// must surface the stored value untouched
	require.NoError(t, f.db.Model(&models.Tutor{}).
		Where("user_id = ?", f.tutor).Update("avg_rating", 1.5).Error)

	rating, err := f.reviews.TutorRating(f.tutor)
	require.NoError(t, err)
	assert.Equal(t, 1.5, rating)

	_, err = f.reviews.TutorRating(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestForTutorJoinsStudentAndSession(t *testing.T) {
	f := newFixture(t)
	done := f.completed(t)
	_, err := f.reviews.Submit(f.student, done.ID, 5, "clear explanations")
	require.NoError(t, err)

	reviews, err := f.reviews.ForTutor(f.tutor)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, "clear explanations", reviews[0].Comment)
	assert.Equal(t, "Test Student", reviews[0].Student.FullName)
	assert.Equal(t, done.ID, reviews[0].Session.ID)
}
