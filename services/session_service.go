package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tutorhive/tutorhive/materials"
	"github.com/tutorhive/tutorhive/models"
)

// RefundHandle is the payment collaborator's acknowledgement of a refund
// request. It references the request, not its settlement.
type RefundHandle struct {
	Reference string `json:"reference"`
}

// PaymentClient requests refunds from the payment collaborator. A synchronous
// error means the request itself was rejected and aborts the cancellation.
type PaymentClient interface {
	RequestRefund(sessionID uuid.UUID, amount float64) (*RefundHandle, error)
}

// Meeting is a provisioned meeting room. Only the join URL is ever persisted
// on a session; host URLs are derived at use time.
type Meeting struct {
	HostURL string `json:"host_url"`
	JoinURL string `json:"join_url"`
}

// MeetingClient provisions meeting rooms with the video collaborator.
type MeetingClient interface {
	CreateMeeting(sessionID uuid.UUID) (*Meeting, error)
	GetHostURL(joinURL string) (string, error)
}

// EventSink receives a session after each committed status transition.
type EventSink func(sess *models.Session)

// transitions is the full lifecycle graph. Anything absent is rejected, which
// also covers the terminal states and the scheduled→completed shortcut: a
// session has to pass through ongoing so the time gate fires exactly once and
// a meeting URL is in place before a tutor can complete it.
var transitions = map[string][]string{
	models.SessionScheduled: {models.SessionOngoing, models.SessionCanceled},
	models.SessionOngoing:   {models.SessionCompleted, models.SessionCanceled},
}

func canTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SessionService owns the session lifecycle: booking, the status state
// machine and material management. Every mutation runs in one transaction;
// status writes are compare-and-swapped against the previous status so two
// racing transitions cannot both succeed.
type SessionService struct {
	db       *gorm.DB
	payments PaymentClient
	meetings MeetingClient

	// Events, when set, is invoked after each committed transition.
	Events EventSink
	// Now is swappable for tests.
	Now func() time.Time
}

func NewSessionService(db *gorm.DB, payments PaymentClient, meetings MeetingClient) *SessionService {
	return &SessionService{
		db:       db,
		payments: payments,
		meetings: meetings,
		Now:      time.Now,
	}
}

// Book creates a session in the scheduled state. Slots must be start-of-hour
// instants in strictly ascending, non-overlapping order, and must not collide
// with another active session of the same tutor on that date. Canceled
// sessions do not count as collisions, which is what releases their slots
// for re-booking.
func (s *SessionService) Book(studentID, tutorID uuid.UUID, date time.Time, slots []time.Time, price float64) (*models.Session, error) {
	if price < 0 {
		return nil, validation("price cannot be negative")
	}
	if len(slots) == 0 {
		return nil, validation("at least one time slot is required")
	}
	for i, slot := range slots {
		if !slot.Equal(slot.Truncate(time.Hour)) {
			return nil, validation("slots must start on the hour")
		}
		if i > 0 && slot.Sub(slots[i-1]) < time.Hour {
			return nil, validation("slots must be ordered and non-overlapping")
		}
	}

	sess := models.Session{
		StudentID: &studentID,
		TutorID:   tutorID,
		Status:    models.SessionScheduled,
		Date:      date,
		Slots:     datatypes.JSONSlice[time.Time](slots),
		Price:     price,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var tutor models.Tutor
		if err := tx.First(&tutor, "user_id = ?", tutorID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("tutor")
			}
			return storageError("load tutor", err)
		}

		var active []models.Session
		if err := tx.Where("tutor_id = ? AND status IN ?", tutorID,
			[]string{models.SessionScheduled, models.SessionOngoing}).Find(&active).Error; err != nil {
			return storageError("scan tutor calendar", err)
		}
		for i := range active {
			if sameDate(active[i].Date, date) && slotsOverlap(active[i].Slots, slots) {
				return validation("one or more slots are already booked for this tutor")
			}
		}

		if err := tx.Create(&sess).Error; err != nil {
			return storageError("create session", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Start moves a scheduled session to ongoing once the time gate is open. The
// actor must be the owning tutor. A meeting room is provisioned if the
// session has no join URL yet.
func (s *SessionService) Start(sessionID, actorID uuid.UUID) (*models.Session, error) {
	var sess models.Session
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := loadSession(tx, sessionID, &sess); err != nil {
			return err
		}
		if sess.TutorID != actorID {
			return unauthorized("only the session's tutor can start it")
		}
		if !canTransition(sess.Status, models.SessionOngoing) {
			return invalidTransition("session is not scheduled")
		}
		if !CanStart(&sess, s.Now()) {
			return ErrGateNotOpen
		}

		res := tx.Model(&models.Session{}).
			Where("id = ? AND status = ?", sess.ID, models.SessionScheduled).
			Update("status", models.SessionOngoing)
		if res.Error != nil {
			return storageError("start session", res.Error)
		}
		if res.RowsAffected == 0 {
			return invalidTransition("session is no longer scheduled")
		}

		// the room is provisioned only after the swap succeeded, so a losing
		// race never leaks one at the video collaborator
		urls := sess.MeetingURLs
		if len(urls) == 0 && s.meetings != nil {
			meeting, err := s.meetings.CreateMeeting(sess.ID)
			if err != nil {
				return dependency("meeting room could not be created")
			}
			urls = append(urls, meeting.JoinURL)
			if err := tx.Model(&models.Session{}).Where("id = ?", sess.ID).
				Update("meeting_urls", urls).Error; err != nil {
				return storageError("record meeting room", err)
			}
		}
		sess.Status = models.SessionOngoing
		sess.MeetingURLs = urls
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(&sess)
	return &sess, nil
}

// Complete moves an ongoing session to completed. The actor must be the
// owning tutor. There is deliberately no minimum elapsed duration.
func (s *SessionService) Complete(sessionID, actorID uuid.UUID) (*models.Session, error) {
	var sess models.Session
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := loadSession(tx, sessionID, &sess); err != nil {
			return err
		}
		if sess.TutorID != actorID {
			return unauthorized("only the session's tutor can complete it")
		}
		if !canTransition(sess.Status, models.SessionCompleted) {
			return invalidTransition("only ongoing sessions can be completed")
		}

		res := tx.Model(&models.Session{}).
			Where("id = ? AND status = ?", sess.ID, models.SessionOngoing).
			Update("status", models.SessionCompleted)
		if res.Error != nil {
			return storageError("complete session", res.Error)
		}
		if res.RowsAffected == 0 {
			return invalidTransition("session is no longer ongoing")
		}
		sess.Status = models.SessionCompleted
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(&sess)
	return &sess, nil
}

// Cancel moves a scheduled or ongoing session to canceled and requests a
// refund of the session price. The refund request runs inside the same
// transaction: if the payment collaborator rejects it synchronously, the
// status change rolls back and the caller can retry the whole cancellation.
// The zero uuid is never a valid actor; platform-originated cancellations go
// through ExpireStale instead.
func (s *SessionService) Cancel(sessionID, actorID uuid.UUID, reason *string) (*models.Session, error) {
	if actorID == uuid.Nil {
		return nil, unauthorized("you are not part of this session")
	}
	return s.cancel(sessionID, actorID, reason, false)
}

func (s *SessionService) cancel(sessionID, actorID uuid.UUID, reason *string, system bool) (*models.Session, error) {
	var sess models.Session
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := loadSession(tx, sessionID, &sess); err != nil {
			return err
		}
		if !system && actorID != sess.TutorID &&
			(sess.StudentID == nil || *sess.StudentID != actorID) {
			return unauthorized("you are not part of this session")
		}
		if sess.Terminal() {
			return invalidTransition("session is already " + sess.Status)
		}

		res := tx.Model(&models.Session{}).
			Where("id = ? AND status = ?", sess.ID, sess.Status).
			Updates(map[string]interface{}{"status": models.SessionCanceled, "cancel_reason": reason})
		if res.Error != nil {
			return storageError("cancel session", res.Error)
		}
		if res.RowsAffected == 0 {
			return invalidTransition("session state changed, please retry")
		}

		if s.payments != nil {
			handle, err := s.payments.RequestRefund(sess.ID, sess.Price)
			if err != nil {
				return dependency("refund request was rejected")
			}
			if err := tx.Model(&models.Session{}).Where("id = ?", sess.ID).
				Update("refund_ref", handle.Reference).Error; err != nil {
				return storageError("record refund reference", err)
			}
			sess.RefundRef = &handle.Reference
		}
		sess.Status = models.SessionCanceled
		sess.CancelReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(&sess)
	return &sess, nil
}

// AddMaterial appends a material to the session's list. Only the owning tutor
// may attach materials. The write is guarded by the row's updated_at so it
// cannot race a concurrent transition or material edit on the same session.
func (s *SessionService) AddMaterial(sessionID, actorID uuid.UUID, m materials.Material) (*models.Session, error) {
	if m.Structured != nil {
		if err := m.Structured.Validate(); err != nil {
			return nil, validation(err.Error())
		}
	}
	var sess models.Session
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := loadSession(tx, sessionID, &sess); err != nil {
			return err
		}
		if sess.TutorID != actorID {
			return unauthorized("only the session's tutor can manage materials")
		}
		updated := append([]string(sess.Materials), m.Encode())
		return writeMaterials(tx, &sess, updated)
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// RemoveMaterial removes the material at the given index of the decoded list
// view, leaving the encoding of every other entry untouched.
func (s *SessionService) RemoveMaterial(sessionID, actorID uuid.UUID, index int) (*models.Session, error) {
	var sess models.Session
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := loadSession(tx, sessionID, &sess); err != nil {
			return err
		}
		if sess.TutorID != actorID {
			return unauthorized("only the session's tutor can manage materials")
		}
		updated, err := materials.RemoveIndex(sess.Materials, index)
		if err != nil {
			return validation(err.Error())
		}
		return writeMaterials(tx, &sess, updated)
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Get loads a single session. Used by handlers for read paths.
func (s *SessionService) Get(sessionID uuid.UUID) (*models.Session, error) {
	var sess models.Session
	if err := loadSession(s.db, sessionID, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// ExpireStale cancels scheduled sessions whose date is before the cutoff via
// the regular cancellation path, acting as the system. It returns how many
// sessions were canceled.
func (s *SessionService) ExpireStale(cutoff time.Time) (int, error) {
	var stale []models.Session
	if err := s.db.Where("status = ? AND date < ?", models.SessionScheduled, cutoff).
		Find(&stale).Error; err != nil {
		return 0, storageError("scan stale sessions", err)
	}

	reason := "automatically canceled: session was never started"
	expired := 0
	for i := range stale {
		if _, err := s.cancel(stale[i].ID, uuid.Nil, &reason, true); err != nil {
			// a losing race or a rejected refund just leaves this one for
			// the next sweep
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *SessionService) emit(sess *models.Session) {
	if s.Events != nil {
		s.Events(sess)
	}
}

func loadSession(tx *gorm.DB, id uuid.UUID, dst *models.Session) error {
	if err := tx.First(dst, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("session")
		}
		return storageError("load session", err)
	}
	return nil
}

func writeMaterials(tx *gorm.DB, sess *models.Session, updated []string) error {
	res := tx.Model(&models.Session{}).
		Where("id = ? AND updated_at = ?", sess.ID, sess.UpdatedAt).
		Update("materials", datatypes.JSONSlice[string](updated))
	if res.Error != nil {
		return storageError("write materials", res.Error)
	}
	if res.RowsAffected == 0 {
		return invalidTransition("session was modified concurrently, please retry")
	}
	sess.Materials = datatypes.JSONSlice[string](updated)
	return nil
}

func sameDate(a, b time.Time) bool {
	return compareDates(a, b) == 0
}

// slotsOverlap compares slots by hour of day; slots are stored independent of
// their calendar day.
func slotsOverlap(a []time.Time, b []time.Time) bool {
	hours := make(map[int]bool, len(a))
	for _, slot := range a {
		hours[slot.Hour()] = true
	}
	for _, slot := range b {
		if hours[slot.Hour()] {
			return true
		}
	}
	return false
}
