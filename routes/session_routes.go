package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tutorhive/tutorhive/handlers"
	"github.com/tutorhive/tutorhive/middleware"
)

func SessionRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	sessions := api.Group("/sessions", middleware.Protected())
	sessions.Get("/me", handlers.GetMySessions)
	sessions.Post("", handlers.BookSession)
	sessions.Post("/:sessionId/cancel", handlers.CancelSession)
	sessions.Get("/:sessionId/gate", handlers.GetSessionGate)
	sessions.Get("/:sessionId/materials", handlers.GetSessionMaterials)
	sessions.Post("/:sessionId/review", handlers.SubmitReview)

	tutorSessions := api.Group("/tutor/sessions", middleware.Protected(), middleware.TutorRequired())
	tutorSessions.Get("/me", handlers.GetMyTutorSessions)
	tutorSessions.Post("/:sessionId/start", handlers.StartSession)
	tutorSessions.Post("/:sessionId/complete", handlers.CompleteSession)
	tutorSessions.Get("/:sessionId/host-url", handlers.GetSessionHostURL)
	tutorSessions.Post("/:sessionId/materials", handlers.AddMaterial)
	tutorSessions.Post("/:sessionId/materials/upload", handlers.UploadMaterial)
	tutorSessions.Delete("/:sessionId/materials/:index", handlers.RemoveMaterial)
}
