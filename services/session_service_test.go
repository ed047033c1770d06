package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhive/tutorhive/materials"
	"github.com/tutorhive/tutorhive/models"
)

func TestBookCreatesScheduledSession(t *testing.T) {
	f := newFixture(t)

	sess := f.book(t, 14, 15)
	assert.Equal(t, models.SessionScheduled, sess.Status)
	assert.Equal(t, 1500.0, sess.Price)
	require.NotNil(t, sess.StudentID)
	assert.Equal(t, f.student, *sess.StudentID)
	assert.Len(t, sess.Slots, 2)
}

func TestBookValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.sessions.Book(f.student, f.tutor, testDay(), []time.Time{slotAt(14)}, -1)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.sessions.Book(f.student, f.tutor, testDay(), nil, 1500)
	assert.ErrorIs(t, err, ErrValidation)

	// out of order
	_, err = f.sessions.Book(f.student, f.tutor, testDay(), []time.Time{slotAt(15), slotAt(14)}, 1500)
	assert.ErrorIs(t, err, ErrValidation)

	// not on the hour
	_, err = f.sessions.Book(f.student, f.tutor, testDay(),
		[]time.Time{time.Date(2026, 3, 9, 14, 30, 0, 0, time.UTC)}, 1500)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.sessions.Book(f.student, uuid.New(), testDay(), []time.Time{slotAt(14)}, 1500)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBookRejectsSlotCollision(t *testing.T) {
	f := newFixture(t)
	f.book(t, 14, 15)

	_, err := f.sessions.Book(f.student, f.tutor, testDay(), []time.Time{slotAt(15)}, 1500)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCancelReleasesSlots(t *testing.T) {
	f := newFixture(t)
	sess := f.book(t, 14)

	_, err := f.sessions.Cancel(sess.ID, f.student, nil)
	require.NoError(t, err)

	// the canceled session no longer blocks the slot
	_, err = f.sessions.Book(f.student, f.tutor, testDay(), []time.Time{slotAt(14)}, 1500)
	assert.NoError(t, err)
}

func TestStartRespectsTimeGate(t *testing.T) {
	f := newFixture(t)
	sess := f.book(t, 14)

	// 10:00, gate opens at 14:00
	_, err := f.sessions.Start(sess.ID, f.tutor)
	assert.ErrorIs(t, err, ErrGateNotOpen)

	f.sessions.Now = func() time.Time { return time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC) }
	started, err := f.sessions.Start(sess.ID, f.tutor)
	require.NoError(t, err)
	assert.Equal(t, models.SessionOngoing, started.Status)
}

func TestStartAttachesMeetingURL(t *testing.T) {
	f := newFixture(t)
	sess := f.book(t, 9)

	started, err := f.sessions.Start(sess.ID, f.tutor)
	require.NoError(t, err)
	require.Len(t, started.MeetingURLs, 1)
	assert.Contains(t, started.MeetingURLs[0], "/j/")
	assert.Equal(t, 1, f.meetings.created)
}

func TestStartMeetingFailureAborts(t *testing.T) {
	f := newFixture(t)
	sess := f.book(t, 9)
	f.meetings.fail = true

	_, err := f.sessions.Start(sess.ID, f.tutor)
	assert.ErrorIs(t, err, ErrDependencyFailure)

	reloaded, err := f.sessions.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionScheduled, reloaded.Status)
}

func TestStartAuthorization(t *testing.T) {
	f := newFixture(t)
	sess := f.book(t, 9)

	_, err := f.sessions.Start(sess.ID, f.student)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.sessions.Start(uuid.New(), f.tutor)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompleteRequiresOngoing(t *testing.T) {
	f := newFixture(t)
	sess := f.book(t, 9)

	// scheduled → completed is not a permitted shortcut
	_, err := f.sessions.Complete(sess.ID, f.tutor)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.sessions.Start(sess.ID, f.tutor)
	require.NoError(t, err)

	_, err = f.sessions.Complete(sess.ID, f.student)
	assert.ErrorIs(t, err, ErrUnauthorized)

	done, err := f.sessions.Complete(sess.ID, f.tutor)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, done.Status)
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	f := newFixture(t)
	done := f.completed(t, 9)

	_, err := f.sessions.Start(done.ID, f.tutor)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.sessions.Complete(done.ID, f.tutor)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.sessions.Cancel(done.ID, f.tutor, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, f.payments.requests)

	canceled := f.book(t, 14)
	_, err = f.sessions.Cancel(canceled.ID, f.student, nil)
	require.NoError(t, err)
	_, err = f.sessions.Cancel(canceled.ID, f.student, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Len(t, f.payments.requests, 1)
}

func TestCancelRequestsRefundForPrice(t *testing.T) {
	f := newFixture(t)
	sess := f.book(t, 14)

	reason := "student is sick"
	canceled, err := f.sessions.Cancel(sess.ID, f.student, &reason)
	require.NoError(t, err)

	assert.Equal(t, models.SessionCanceled, canceled.Status)
	require.NotNil(t, canceled.CancelReason)
	assert.Equal(t, reason, *canceled.CancelReason)
	assert.NotNil(t, canceled.RefundRef)

	require.Len(t, f.payments.requests, 1)
	assert.Equal(t, sess.ID, f.payments.requests[0].SessionID)
	assert.Equal(t, 1500.0, f.payments.requests[0].Amount)
}

func TestCancelOngoingSession(t *testing.T) {
	f := newFixture(t)
	sess := f.book(t, 9)
	_, err := f.sessions.Start(sess.ID, f.tutor)
	require.NoError(t, err)

	canceled, err := f.sessions.Cancel(sess.ID, f.tutor, nil)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCanceled, canceled.Status)
	assert.Len(t, f.payments.requests, 1)
}

func TestCancelRollsBackWhenRefundRejected(t *testing.T) {
	f := newFixture(t)
	sess := f.book(t, 14)
	f.payments.fail = true

	_, err := f.sessions.Cancel(sess.ID, f.student, nil)
	assert.ErrorIs(t, err, ErrDependencyFailure)

	reloaded, err := f.sessions.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionScheduled, reloaded.Status)
	assert.Nil(t, reloaded.RefundRef)

	// retrying the whole cancellation succeeds once the collaborator recovers
	f.payments.fail = false
	_, err = f.sessions.Cancel(sess.ID, f.student, nil)
	assert.NoError(t, err)
}

func TestCancelAuthorization(t *testing.T) {
	f := newFixture(t)
	sess := f.book(t, 14)

	_, err := f.sessions.Cancel(sess.ID, uuid.New(), nil)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// the zero uuid is what a garbled token claim parses to; it must never
	// pass as an internal actor
	_, err = f.sessions.Cancel(sess.ID, uuid.Nil, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Empty(t, f.payments.requests)

	// the tutor is part of the session too
	_, err = f.sessions.Cancel(sess.ID, f.tutor, nil)
	assert.NoError(t, err)
}

func TestCancelLostRaceRequestsNoRefund(t *testing.T) {
	f := newFixture(t)
	sess := f.book(t, 14)

	// another writer flips the row between the load and the guarded write
	mutateRowBeforeUpdate(t, f.db, "UPDATE sessions SET status = ? WHERE id = ?",
		models.SessionCanceled, sess.ID.String())

	_, err := f.sessions.Cancel(sess.ID, f.student, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, f.payments.requests)

	// the losing attempt rolled back whole; a retry goes through cleanly
	_, err = f.sessions.Cancel(sess.ID, f.student, nil)
	require.NoError(t, err)
	assert.Len(t, f.payments.requests, 1)
}

func TestStartLostRaceProvisionsNoRoom(t *testing.T) {
	f := newFixture(t)
	sess := f.book(t, 9)

	mutateRowBeforeUpdate(t, f.db, "UPDATE sessions SET status = ? WHERE id = ?",
		models.SessionCanceled, sess.ID.String())

	_, err := f.sessions.Start(sess.ID, f.tutor)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 0, f.meetings.created)
}

func TestCompleteLostRace(t *testing.T) {
	f := newFixture(t)
	sess := f.book(t, 9)
	_, err := f.sessions.Start(sess.ID, f.tutor)
	require.NoError(t, err)

	mutateRowBeforeUpdate(t, f.db, "UPDATE sessions SET status = ? WHERE id = ?",
		models.SessionCanceled, sess.ID.String())

	_, err = f.sessions.Complete(sess.ID, f.tutor)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMaterialWriteLostRace(t *testing.T) {
	f := newFixture(t)
	sess := f.book(t, 14)

	mutateRowBeforeUpdate(t, f.db, "UPDATE sessions SET updated_at = ? WHERE id = ?",
		fixedClock.Add(time.Hour), sess.ID.String())

	_, err := f.sessions.AddMaterial(sess.ID, f.tutor, materials.Legacy("warm-up sheet"))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	reloaded, err := f.sessions.Get(sess.ID)
	require.NoError(t, err)
	assert.Empty(t, reloaded.Materials)
}

func TestTransitionEventsEmitted(t *testing.T) {
	f := newFixture(t)
	var seen []string
	f.sessions.Events = func(sess *models.Session) { seen = append(seen, sess.Status) }

	sess := f.book(t, 9)
	_, err := f.sessions.Start(sess.ID, f.tutor)
	require.NoError(t, err)
	_, err = f.sessions.Complete(sess.ID, f.tutor)
	require.NoError(t, err)

	assert.Equal(t, []string{models.SessionOngoing, models.SessionCompleted}, seen)
}

func TestAddAndRemoveMaterial(t *testing.T) {
	f := newFixture(t)
	sess := f.book(t, 14)

	_, err := f.sessions.AddMaterial(sess.ID, f.tutor, materials.Legacy("warm-up sheet"))
	require.NoError(t, err)
	updated, err := f.sessions.AddMaterial(sess.ID, f.tutor, materials.FromStructured(materials.Structured{
		Name:     "Fractions deck",
		Kind:     materials.KindPresentation,
		Location: "https://cdn.example.com/fractions.pptx",
		Visible:  true,
	}))
	require.NoError(t, err)
	require.Len(t, updated.Materials, 2)

	decoded := materials.DecodeAll(updated.Materials)
	assert.True(t, decoded[0].IsLegacy())
	assert.False(t, decoded[1].IsLegacy())

	after, err := f.sessions.RemoveMaterial(sess.ID, f.tutor, 0)
	require.NoError(t, err)
	require.Len(t, after.Materials, 1)
	assert.Equal(t, updated.Materials[1], after.Materials[0])
}

func TestMaterialGuards(t *testing.T) {
	f := newFixture(t)
	sess := f.book(t, 14)

	_, err := f.sessions.AddMaterial(sess.ID, f.student, materials.Legacy("nope"))
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.sessions.AddMaterial(sess.ID, f.tutor, materials.FromStructured(materials.Structured{
		Name: "broken", Kind: materials.Kind("weird"),
	}))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.sessions.RemoveMaterial(sess.ID, f.tutor, 3)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestExpireStaleCancelsOldScheduledSessions(t *testing.T) {
	f := newFixture(t)

	old, err := f.sessions.Book(f.student, f.tutor,
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		[]time.Time{time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}, 2000)
	require.NoError(t, err)
	fresh := f.book(t, 14)

	expired, err := f.sessions.ExpireStale(time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	reloaded, err := f.sessions.Get(old.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCanceled, reloaded.Status)
	require.Len(t, f.payments.requests, 1)
	assert.Equal(t, 2000.0, f.payments.requests[0].Amount)

	kept, err := f.sessions.Get(fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionScheduled, kept.Status)
}
