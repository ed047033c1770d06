package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/tutorhive/tutorhive/database"
	"github.com/tutorhive/tutorhive/models"
	"github.com/tutorhive/tutorhive/notifications"
	"github.com/tutorhive/tutorhive/services"
)

type BookSessionRequest struct {
	TutorID string   `json:"tutor_id" validate:"required,uuid"`
	Date    string   `json:"date" validate:"required,datetime=2006-01-02"`
	Slots   []string `json:"slots" validate:"required,min=1,dive,datetime=2006-01-02T15:04:05Z07:00"`
	Price   float64  `json:"price" validate:"min=0"`
}

func BookSession(c *fiber.Ctx) error {
	studentID, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req BookSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	tutorID, _ := uuid.Parse(req.TutorID)
	date, _ := time.Parse("2006-01-02", req.Date)
	slots := make([]time.Time, len(req.Slots))
	for i, raw := range req.Slots {
		slots[i], _ = time.Parse(time.RFC3339, raw)
	}

	sess, err := sessionSvc.Book(studentID, tutorID, date, slots, req.Price)
	if err != nil {
		return serviceError(c, err)
	}

	go notifySessionBooked(sess)

	return c.Status(fiber.StatusCreated).JSON(sess)
}

func StartSession(c *fiber.Ctx) error {
	tutorID, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := uuid.Parse(c.Params("sessionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	sess, err := sessionSvc.Start(sessionID, tutorID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(sess)
}

func CompleteSession(c *fiber.Ctx) error {
	tutorID, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := uuid.Parse(c.Params("sessionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	sess, err := sessionSvc.Complete(sessionID, tutorID)
	if err != nil {
		return serviceError(c, err)
	}

	go notifySessionCompleted(sess)

	return c.JSON(sess)
}

type CancelSessionRequest struct {
	Reason *string `json:"reason,omitempty"`
}

func CancelSession(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := uuid.Parse(c.Params("sessionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req CancelSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
		}
	}

	sess, err := sessionSvc.Cancel(sessionID, actor, req.Reason)
	if err != nil {
		return serviceError(c, err)
	}

	go notifySessionCanceled(sess)

	return c.JSON(sess)
}

// GetSessionGate reports whether a session may be started right now and, when
// it is today's session still waiting, how long until the gate opens.
func GetSessionGate(c *fiber.Ctx) error {
	sessionID, err := uuid.Parse(c.Params("sessionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	sess, err := sessionSvc.Get(sessionID)
	if err != nil {
		return serviceError(c, err)
	}

	now := time.Now()
	resp := fiber.Map{"can_start": services.CanStart(sess, now)}
	if wait := services.TimeUntilStart(sess, now); wait != nil {
		resp["seconds_until_start"] = int64(wait.Seconds())
	}
	return c.JSON(resp)
}

// GetSessionHostURL hands the owning tutor the host URL for the session's
// meeting room. Host URLs are never stored; the meeting collaborator derives
// them from the persisted join URL.
func GetSessionHostURL(c *fiber.Ctx) error {
	tutorID, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := uuid.Parse(c.Params("sessionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	sess, err := sessionSvc.Get(sessionID)
	if err != nil {
		return serviceError(c, err)
	}
	if sess.TutorID != tutorID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You are not the tutor for this session"})
	}
	if len(sess.MeetingURLs) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session has no meeting room yet"})
	}

	hostURL, err := meetingSvc.GetHostURL(sess.MeetingURLs[0])
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Could not resolve the meeting host URL"})
	}
	return c.JSON(fiber.Map{"host_url": hostURL})
}

func GetMySessions(c *fiber.Ctx) error {
	studentID, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var sessions []models.Session
	database.DB.Preload("Tutor").
		Where("student_id = ?", studentID).
		Order("date desc").
		Find(&sessions)

	return c.JSON(sessions)
}

func GetMyTutorSessions(c *fiber.Ctx) error {
	tutorID, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var sessions []models.Session
	database.DB.Preload("Student").
		Where("tutor_id = ?", tutorID).
		Order("date desc").
		Find(&sessions)

	return c.JSON(sessions)
}

func notifySessionBooked(sess *models.Session) {
	student, tutor, ok := sessionParties(sess)
	if !ok {
		return
	}
	notifications.SendEmail(student.FullName, student.Email, "Your Session is Booked!",
		"<h1>Session Booked</h1><p>Your tutoring session has been scheduled.</p>")
	notifications.SendEmail(tutor.FullName, tutor.Email, "You Have a New Booking!",
		"<h1>New Booking</h1><p>A student has booked a session with you.</p>")
}

func notifySessionCompleted(sess *models.Session) {
	student, _, ok := sessionParties(sess)
	if !ok {
		return
	}
	notifications.SendEmail(student.FullName, student.Email, "How Was Your Session?",
		"<h1>Session Complete</h1><p>Your session is complete. Leave your tutor a review!</p>")
}

func notifySessionCanceled(sess *models.Session) {
	student, tutor, ok := sessionParties(sess)
	if !ok {
		return
	}
	notifications.SendEmail(student.FullName, student.Email, "Session Canceled",
		"<h1>Session Canceled</h1><p>Your session was canceled and a refund has been requested.</p>")
	notifications.SendEmail(tutor.FullName, tutor.Email, "Session Canceled",
		"<h1>Session Canceled</h1><p>One of your sessions was canceled.</p>")
}

func sessionParties(sess *models.Session) (student models.User, tutor models.User, ok bool) {
	if sess.StudentID == nil {
		return student, tutor, false
	}
	if err := database.DB.First(&student, "id = ?", *sess.StudentID).Error; err != nil {
		return student, tutor, false
	}
	if err := database.DB.First(&tutor, "id = ?", sess.TutorID).Error; err != nil {
		return student, tutor, false
	}
	return student, tutor, true
}
