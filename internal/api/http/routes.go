package httpapi

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-data-generator/internal/weather"
)

var validate = validator.New()

// Controller is the lifecycle surface of the generation loop.
type Controller interface {
	Start(ctx context.Context) error
	Stop() error
	Status() weather.Status
}

const (
	statusSuccess = "success"
	statusError   = "error"
	statusRunning = "running"
	statusStopped = "stopped"

	msgStarted        = "Data generation started."
	msgStopped        = "Data generation stopped."
	msgAlreadyRunning = "Data generation is already running."
	msgNotRunning     = "Data generation is not running."
	msgNoMessage      = "No message provided."
	msgInvalidMessage = "Invalid message."
)

// toggleRequest is the body of the toggle endpoint.
type toggleRequest struct {
	Message string `json:"message" validate:"required,oneof=start stop"`
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, ctl Controller) {
	v1 := app.Group("/api/v1/generator")

	v1.Get("/status", func(c *fiber.Ctx) error {
		st := ctl.Status()
		status := statusStopped
		if st.Running {
			status = statusRunning
		}
		return c.JSON(fiber.Map{
			"status":  status,
			"details": st,
		})
	})

	v1.Post("/toggle", func(c *fiber.Ctx) error {
		var req toggleRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return reply(c, fiber.StatusBadRequest, statusError, "invalid request body")
			}
		}

		if err := validate.Struct(req); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && verrs[0].Tag() == "required" {
				return reply(c, fiber.StatusBadRequest, statusError, msgNoMessage)
			}
			return reply(c, fiber.StatusBadRequest, statusError, msgInvalidMessage)
		}

		if req.Message == "start" {
			return start(c, ctl)
		}
		return stop(c, ctl)
	})

	v1.Post("/start", func(c *fiber.Ctx) error {
		return start(c, ctl)
	})

	v1.Post("/stop", func(c *fiber.Ctx) error {
		return stop(c, ctl)
	})
}

func start(c *fiber.Ctx, ctl Controller) error {
	err := ctl.Start(c.UserContext())
	switch {
	case err == nil:
		return reply(c, fiber.StatusOK, statusSuccess, msgStarted)
	case errors.Is(err, weather.ErrAlreadyRunning):
		return reply(c, fiber.StatusBadRequest, statusError, msgAlreadyRunning)
	default:
		return reply(c, fiber.StatusInternalServerError, statusError, "failed to start data generation: "+err.Error())
	}
}

func stop(c *fiber.Ctx, ctl Controller) error {
	err := ctl.Stop()
	switch {
	case err == nil:
		return reply(c, fiber.StatusOK, statusSuccess, msgStopped)
	case errors.Is(err, weather.ErrNotRunning):
		return reply(c, fiber.StatusBadRequest, statusError, msgNotRunning)
	default:
		return reply(c, fiber.StatusInternalServerError, statusError, "failed to stop data generation: "+err.Error())
	}
}

func reply(c *fiber.Ctx, code int, status, message string) error {
	return c.Status(code).JSON(fiber.Map{
		"status":  status,
		"message": message,
	})
}
