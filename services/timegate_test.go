package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/tutorhive/tutorhive/models"
)

func sessionOn(date time.Time, slotHours ...int) *models.Session {
	slots := make([]time.Time, len(slotHours))
	for i, h := range slotHours {
		slots[i] = time.Date(2000, 1, 1, h, 0, 0, 0, time.UTC)
	}
	return &models.Session{
		ID:     uuid.New(),
		Status: models.SessionScheduled,
		Date:   date,
		Slots:  datatypes.JSONSlice[time.Time](slots),
	}
}

func TestCanStartBoundary(t *testing.T) {
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	sess := sessionOn(day, 14, 15)

	assert.False(t, CanStart(sess, time.Date(2026, 3, 9, 13, 59, 0, 0, time.UTC)))
	assert.True(t, CanStart(sess, time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC)))
	assert.True(t, CanStart(sess, time.Date(2026, 3, 9, 14, 0, 1, 0, time.UTC)))
}

func TestCanStartByDate(t *testing.T) {
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	sess := sessionOn(day, 14)

	// a past date opens the gate regardless of time of day
	assert.True(t, CanStart(sess, time.Date(2026, 3, 10, 0, 5, 0, 0, time.UTC)))
	// a future date keeps it closed even past the slot hour
	assert.False(t, CanStart(sess, time.Date(2026, 3, 8, 23, 0, 0, 0, time.UTC)))
}

func TestTimeUntilStart(t *testing.T) {
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	sess := sessionOn(day, 14)

	d := TimeUntilStart(sess, time.Date(2026, 3, 9, 13, 59, 0, 0, time.UTC))
	require.NotNil(t, d)
	assert.Equal(t, time.Minute, *d)

	assert.Nil(t, TimeUntilStart(sess, time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC)))
	assert.Nil(t, TimeUntilStart(sess, time.Date(2026, 3, 8, 13, 59, 0, 0, time.UTC)))
	assert.Nil(t, TimeUntilStart(sess, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)))
}

func TestCanStartWithoutSlotsOpensAtMidnight(t *testing.T) {
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	sess := sessionOn(day)

	assert.True(t, CanStart(sess, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)))
}
