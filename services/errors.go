package services

import (
	"errors"
	"fmt"
	"log"
)

// Error kinds surfaced by the lifecycle engine. Handlers match on these with
// errors.Is to pick a status code; the wrapped messages are stable and never
// carry storage internals.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrGateNotOpen       = errors.New("session start time not reached")
	ErrUnauthorized      = errors.New("not authorized")
	ErrValidation        = errors.New("validation failed")
	ErrDependencyFailure = errors.New("dependency failure")
)

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, ErrNotFound)
}

func invalidTransition(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrInvalidTransition)
}

func unauthorized(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrUnauthorized)
}

func validation(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrValidation)
}

func dependency(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrDependencyFailure)
}

// storageError logs the real cause and returns a generic dependency error so
// database internals never reach a client.
func storageError(op string, err error) error {
	log.Printf("🔥 storage error during %s: %v", op, err)
	return dependency("storage operation failed")
}
