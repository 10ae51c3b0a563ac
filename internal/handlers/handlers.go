package handlers

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"zephyr-router/internal/engine"
	"zephyr-router/internal/types"
)

var validatorInstance = validator.New()

type Handlers struct {
	Engine *engine.Engine
}

// TransactionHandler routes and executes one transaction. Malformed input
// is rejected here, before any routing or health side effect.
func (h *Handlers) TransactionHandler(c *fiber.Ctx) error {
	request := new(types.TransactionRequest)
	if err := c.BodyParser(request); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "malformed request body",
		})
	}
	if err := validatorInstance.Struct(request); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	result, err := h.Engine.Process(c.Context(), *request)
	if err != nil {
		return c.SendStatus(http.StatusInternalServerError)
	}
	return c.Status(http.StatusOK).JSON(result)
}

// HealthHandler reports every processor's current health snapshot.
func (h *Handlers) HealthHandler(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(h.Engine.HealthReport())
}

// SimulateOutageHandler forces a processor into a simulated outage. An
// optional body overrides the default 10% success probability.
func (h *Handlers) SimulateOutageHandler(c *fiber.Ctx) error {
	rate := 0.10
	if len(c.Body()) > 0 {
		var body struct {
			SuccessRate *float64 `json:"success_rate"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{
				"error": "malformed request body",
			})
		}
		if body.SuccessRate != nil {
			rate = *body.SuccessRate
		}
	}

	response, err := h.Engine.OverrideProbability(c.Params("id"), rate)
	if err != nil {
		return notFoundOrError(c, err)
	}
	return c.Status(http.StatusOK).JSON(response)
}

// SimulateRecoverHandler restores a processor's baseline probability.
func (h *Handlers) SimulateRecoverHandler(c *fiber.Ctx) error {
	response, err := h.Engine.RestoreProbability(c.Params("id"))
	if err != nil {
		return notFoundOrError(c, err)
	}
	return c.Status(http.StatusOK).JSON(response)
}

// SimulateResetHandler clears all health windows, idempotency entries and
// probability overrides.
func (h *Handlers) SimulateResetHandler(c *fiber.Ctx) error {
	if err := h.Engine.Reset(c.Context()); err != nil {
		return c.SendStatus(http.StatusInternalServerError)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "All processors and health data reset",
	})
}

func notFoundOrError(c *fiber.Ctx, err error) error {
	if errors.Is(err, engine.ErrUnknownProcessor) {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.SendStatus(http.StatusInternalServerError)
}
