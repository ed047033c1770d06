package services

import (
	"time"

	"github.com/tutorhive/tutorhive/models"
)

// The time gate decides when a scheduled session may be started. It is pure:
// callers may poll it as often as they like.
//
// A session dated before today is always startable (late starts are allowed,
// see Cancel/expiry for the cleanup path). A session dated after today never
// is. On the day itself the gate opens at the session's start instant: the
// session date combined with the hour and minute of its first slot. Slots are
// stored independent of day, so only their time-of-day is taken.

// CanStart reports whether the session's start boundary has been reached at
// the given instant. The comparison is boundary-inclusive.
func CanStart(sess *models.Session, now time.Time) bool {
	switch compareDates(sess.Date, now) {
	case -1:
		return true
	case 1:
		return false
	}
	return !now.Before(startInstant(sess, now.Location()))
}

// TimeUntilStart returns the remaining wait when the session is scheduled for
// today and the gate is still closed, nil otherwise.
func TimeUntilStart(sess *models.Session, now time.Time) *time.Duration {
	if compareDates(sess.Date, now) != 0 {
		return nil
	}
	start := startInstant(sess, now.Location())
	if !now.Before(start) {
		return nil
	}
	d := start.Sub(now)
	return &d
}

func compareDates(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	switch {
	case da.Before(db):
		return -1
	case da.After(db):
		return 1
	}
	return 0
}

func startInstant(sess *models.Session, loc *time.Location) time.Time {
	y, m, d := sess.Date.Date()
	if len(sess.Slots) == 0 {
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
	first := sess.Slots[0]
	return time.Date(y, m, d, first.Hour(), first.Minute(), 0, 0, loc)
}
