package services

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tutorhive/tutorhive/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Tutor{},
		&models.Session{},
		&models.Review{},
	))
	return db
}

func createStudent(t *testing.T, db *gorm.DB) uuid.UUID {
	t.Helper()
	u := models.User{FullName: "Test Student", Email: uuid.NewString() + "@example.com", Password: "x", Role: "student"}
	require.NoError(t, db.Create(&u).Error)
	return u.ID
}

func createTutor(t *testing.T, db *gorm.DB) uuid.UUID {
	t.Helper()
	u := models.User{FullName: "Test Tutor", Email: uuid.NewString() + "@example.com", Password: "x", Role: "tutor"}
	require.NoError(t, db.Create(&u).Error)
	require.NoError(t, db.Create(&models.Tutor{UserID: u.ID}).Error)
	return u.ID
}

// mutateRowBeforeUpdate arms a one-shot hook that runs the given statement on
// the connection of the next UPDATE, between a service's read and its guarded
// write. It stands in for a concurrent writer that commits first.
func mutateRowBeforeUpdate(t *testing.T, db *gorm.DB, sql string, args ...interface{}) {
	t.Helper()
	const name = "test:concurrent_writer"
	fired := false
	err := db.Callback().Update().Before("gorm:update").Register(name, func(d *gorm.DB) {
		if fired {
			return
		}
		fired = true
		if _, err := d.Statement.ConnPool.ExecContext(d.Statement.Context, sql, args...); err != nil {
			t.Errorf("concurrent write: %v", err)
		}
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Callback().Update().Remove(name) })
}

type refundRequest struct {
	SessionID uuid.UUID
	Amount    float64
}

type fakePayments struct {
	requests []refundRequest
	fail     bool
}

func (f *fakePayments) RequestRefund(sessionID uuid.UUID, amount float64) (*RefundHandle, error) {
	if f.fail {
		return nil, errors.New("refund declined")
	}
	f.requests = append(f.requests, refundRequest{SessionID: sessionID, Amount: amount})
	return &RefundHandle{Reference: "re_" + sessionID.String()[:8]}, nil
}

type fakeMeetings struct {
	created int
	fail    bool
}

func (f *fakeMeetings) CreateMeeting(sessionID uuid.UUID) (*Meeting, error) {
	if f.fail {
		return nil, errors.New("provider down")
	}
	f.created++
	return &Meeting{
		HostURL: "https://meet.example.com/h/" + sessionID.String(),
		JoinURL: "https://meet.example.com/j/" + sessionID.String(),
	}, nil
}

func (f *fakeMeetings) GetHostURL(joinURL string) (string, error) {
	return joinURL, nil
}

// fixedClock is 10:00 UTC on an arbitrary weekday; sessions booked with
// slotAt relate to the same day.
var fixedClock = time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

func slotAt(hour int) time.Time {
	return time.Date(2026, 3, 9, hour, 0, 0, 0, time.UTC)
}

func testDay() time.Time {
	return time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	db       *gorm.DB
	sessions *SessionService
	reviews  *ReviewService
	payments *fakePayments
	meetings *fakeMeetings
	student  uuid.UUID
	tutor    uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	pay := &fakePayments{}
	meet := &fakeMeetings{}
	svc := NewSessionService(db, pay, meet)
	svc.Now = func() time.Time { return fixedClock }
	return &fixture{
		db:       db,
		sessions: svc,
		reviews:  NewReviewService(db),
		payments: pay,
		meetings: meet,
		student:  createStudent(t, db),
		tutor:    createTutor(t, db),
	}
}

func (f *fixture) book(t *testing.T, hours ...int) *models.Session {
	t.Helper()
	slots := make([]time.Time, len(hours))
	for i, h := range hours {
		slots[i] = slotAt(h)
	}
	sess, err := f.sessions.Book(f.student, f.tutor, testDay(), slots, 1500)
	require.NoError(t, err)
	return sess
}

// completed books a morning session and walks it through the full path.
func (f *fixture) completed(t *testing.T, hours ...int) *models.Session {
	t.Helper()
	if len(hours) == 0 {
		hours = []int{9}
	}
	sess := f.book(t, hours...)
	_, err := f.sessions.Start(sess.ID, f.tutor)
	require.NoError(t, err)
	sess, err = f.sessions.Complete(sess.ID, f.tutor)
	require.NoError(t, err)
	return sess
}
