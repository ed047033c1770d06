package main

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"

	"github.com/tutorhive/tutorhive/database"
	"github.com/tutorhive/tutorhive/handlers"
	"github.com/tutorhive/tutorhive/jobs"
	"github.com/tutorhive/tutorhive/meetings"
	"github.com/tutorhive/tutorhive/notifications"
	"github.com/tutorhive/tutorhive/payments"
	"github.com/tutorhive/tutorhive/routes"
	"github.com/tutorhive/tutorhive/services"
	"github.com/tutorhive/tutorhive/websocket"
)

func main() {
	database.ConnectDB()
	database.Migrate()
	database.SeedAdmin()
	notifications.InitEmailService()

	paymentClient := payments.NewClient()
	meetingClient := meetings.NewClient()

	sessionSvc := services.NewSessionService(database.DB, paymentClient, meetingClient)
	sessionSvc.Events = websocket.Publish
	reviewSvc := services.NewReviewService(database.DB)

	handlers.InitServices(sessionSvc, reviewSvc, meetingClient)
	jobs.Init(sessionSvc)

	c := cron.New()
	c.AddFunc("*/15 * * * *", jobs.ExpireStaleSessions)
	go c.Start()
	log.Println("✅ Cron job for stale sessions scheduled successfully.")

	app := fiber.New(fiber.Config{
		AppName:       "TutorHive",
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			log.Printf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.AuthRoutes(app)
	routes.SessionRoutes(app)
	routes.ReviewRoutes(app)
	routes.EventFeedRoutes(app)

	go websocket.RunHub()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	log.Println("✅ Server is running on port 8080")
	if err := app.Listen(":8080"); err != nil {
		log.Fatalf("🔥 Server failed to start: %v", err)
	}
}
