package handlers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/tutorhive/tutorhive/services"
)

var validate = validator.New()

var (
	sessionSvc *services.SessionService
	reviewSvc  *services.ReviewService
	meetingSvc services.MeetingClient
)

// InitServices wires the engine and collaborators into the handler package.
// Call once from main before registering routes.
func InitServices(sessions *services.SessionService, reviews *services.ReviewService, meetings services.MeetingClient) {
	sessionSvc = sessions
	reviewSvc = reviews
	meetingSvc = meetings
}

// actorID extracts the authenticated user's id from the request token. A
// malformed or zero user_id claim is rejected here so it can never stand in
// for an internal actor downstream.
func actorID(c *fiber.Ctx) (uuid.UUID, error) {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	raw, _ := claims["user_id"].(string)
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, errors.New("invalid token subject")
	}
	return id, nil
}

// serviceError maps the engine's error kinds onto HTTP statuses. Messages
// are the stable ones the services produce; nothing internal leaks here.
func serviceError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrUnauthorized):
		status = fiber.StatusForbidden
	case errors.Is(err, services.ErrValidation):
		status = fiber.StatusBadRequest
	case errors.Is(err, services.ErrInvalidTransition), errors.Is(err, services.ErrGateNotOpen):
		status = fiber.StatusConflict
	case errors.Is(err, services.ErrDependencyFailure):
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
