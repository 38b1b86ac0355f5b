package handlers

import (
	"github.com/chainsplit/chainsplit-backend/internal/httpx"
	"github.com/chainsplit/chainsplit-backend/internal/models"
	"github.com/chainsplit/chainsplit-backend/internal/service"
	"github.com/gofiber/fiber/v2"
)

type SubscriptionHandler struct {
	subscriptionService *service.SubscriptionService
}

func NewSubscriptionHandler(subscriptionService *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptionService: subscriptionService}
}

func (h *SubscriptionHandler) List(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	subs, err := h.subscriptionService.List(userID)
	if err != nil {
		return httpx.FromError(c, err, "list_subscriptions_failed")
	}

	responses := make([]models.SubscriptionResponse, 0, len(subs))
	for i := range subs {
		responses = append(responses, subs[i].ToResponse())
	}
	return c.JSON(fiber.Map{
		"subscriptions": responses,
	})
}

func (h *SubscriptionHandler) Create(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var input service.CreateSubscriptionInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	sub, err := h.subscriptionService.Create(userID, input)
	if err != nil {
		return httpx.FromError(c, err, "create_subscription_failed")
	}
	return c.Status(fiber.StatusCreated).JSON(sub.ToResponse())
}

func (h *SubscriptionHandler) Update(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	id, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.BadRequest(c, "invalid_subscription_id", "Invalid subscription ID")
	}

	var input service.UpdateSubscriptionInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	sub, err := h.subscriptionService.Update(id, userID, input)
	if err != nil {
		return httpx.FromError(c, err, "update_subscription_failed")
	}
	return c.JSON(sub.ToResponse())
}

func (h *SubscriptionHandler) Delete(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	id, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.BadRequest(c, "invalid_subscription_id", "Invalid subscription ID")
	}

	if err := h.subscriptionService.Delete(id, userID); err != nil {
		return httpx.FromError(c, err, "delete_subscription_failed")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
