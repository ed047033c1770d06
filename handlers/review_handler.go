package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

func SubmitReview(c *fiber.Ctx) error {
	studentID, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := uuid.Parse(c.Params("sessionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req ReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	review, err := reviewSvc.Submit(studentID, sessionID, req.Rating, req.Comment)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(review)
}

func GetTutorRating(c *fiber.Ctx) error {
	tutorID, err := uuid.Parse(c.Params("tutorId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid tutor id"})
	}

	rating, err := reviewSvc.TutorRating(tutorID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"tutor_id": tutorID, "avg_rating": rating})
}

type tutorReviewResponse struct {
	ID          uuid.UUID `json:"id"`
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment"`
	StudentName string    `json:"student_name"`
	SessionDate time.Time `json:"session_date"`
	CreatedAt   time.Time `json:"created_at"`
}

func GetTutorReviews(c *fiber.Ctx) error {
	tutorID, err := uuid.Parse(c.Params("tutorId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid tutor id"})
	}

	reviews, err := reviewSvc.ForTutor(tutorID)
	if err != nil {
		return serviceError(c, err)
	}

	out := make([]tutorReviewResponse, 0, len(reviews))
	for _, r := range reviews {
		out = append(out, tutorReviewResponse{
			ID:          r.ID,
			Rating:      r.Rating,
			Comment:     r.Comment,
			StudentName: r.Student.FullName,
			SessionDate: r.Session.Date,
			CreatedAt:   r.CreatedAt,
		})
	}
	return c.JSON(out)
}

func GetMyReviews(c *fiber.Ctx) error {
	tutorID, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	reviews, err := reviewSvc.ForTutor(tutorID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(reviews)
}
