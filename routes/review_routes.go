package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tutorhive/tutorhive/handlers"
	"github.com/tutorhive/tutorhive/middleware"
)

func ReviewRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	// public read-only projections for profile pages
	api.Get("/tutors/:tutorId/rating", handlers.GetTutorRating)
	api.Get("/tutors/:tutorId/reviews", handlers.GetTutorReviews)

	api.Get("/tutor/reviews/me", middleware.Protected(), middleware.TutorRequired(), handlers.GetMyReviews)
}
