package handlers

import (
	"github.com/chainsplit/chainsplit-backend/internal/httpx"
	"github.com/chainsplit/chainsplit-backend/internal/models"
	"github.com/chainsplit/chainsplit-backend/internal/service"
	"github.com/gofiber/fiber/v2"
)

type ChainHandler struct {
	chainService *service.ChainService
}

func NewChainHandler(chainService *service.ChainService) *ChainHandler {
	return &ChainHandler{chainService: chainService}
}

type inviteRequest struct {
	UserIDs []uint `json:"user_ids"`
}

type attachSubscriptionRequest struct {
	SubscriptionID uint `json:"subscription_id"`
}

// ListChains returns every chain the caller created or was invited to.
func (h *ChainHandler) ListChains(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	chains, err := h.chainService.ListChains(userID)
	if err != nil {
		return httpx.FromError(c, err, "list_chains_failed")
	}

	responses := make([]models.ChainResponse, 0, len(chains))
	for i := range chains {
		responses = append(responses, chains[i].ToResponse())
	}
	return c.JSON(fiber.Map{
		"chains": responses,
	})
}

func (h *ChainHandler) CreateChain(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var input service.CreateChainInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	chain, err := h.chainService.CreateChain(userID, input)
	if err != nil {
		return httpx.FromError(c, err, "create_chain_failed")
	}
	return c.Status(fiber.StatusCreated).JSON(chain.ToResponse())
}

func (h *ChainHandler) GetChain(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	chainID, err := httpx.ParamUint(c, "chainId")
	if err != nil {
		return httpx.BadRequest(c, "invalid_chain_id", "Invalid chain ID")
	}

	chain, err := h.chainService.GetChain(chainID, userID)
	if err != nil {
		return httpx.FromError(c, err, "get_chain_failed")
	}
	return c.JSON(chain)
}

func (h *ChainHandler) InviteMembers(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	chainID, err := httpx.ParamUint(c, "chainId")
	if err != nil {
		return httpx.BadRequest(c, "invalid_chain_id", "Invalid chain ID")
	}

	var req inviteRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	chain, err := h.chainService.InviteMembers(chainID, userID, req.UserIDs)
	if err != nil {
		return httpx.FromError(c, err, "invite_failed")
	}
	return c.JSON(chain.ToResponse())
}

func (h *ChainHandler) AcceptInvitation(c *fiber.Ctx) error {
	return h.respond(c, h.chainService.AcceptInvitation, "accept_failed")
}

func (h *ChainHandler) RejectInvitation(c *fiber.Ctx) error {
	return h.respond(c, h.chainService.RejectInvitation, "reject_failed")
}

// respond runs a membership transition of the caller on the chain in the path.
func (h *ChainHandler) respond(c *fiber.Ctx, transition func(chainID, userID uint) (*models.Chain, error), code string) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	chainID, err := httpx.ParamUint(c, "chainId")
	if err != nil {
		return httpx.BadRequest(c, "invalid_chain_id", "Invalid chain ID")
	}

	chain, err := transition(chainID, userID)
	if err != nil {
		return httpx.FromError(c, err, code)
	}
	return c.JSON(chain.ToResponse())
}

func (h *ChainHandler) AddSubscription(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	chainID, err := httpx.ParamUint(c, "chainId")
	if err != nil {
		return httpx.BadRequest(c, "invalid_chain_id", "Invalid chain ID")
	}

	var req attachSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}
	if req.SubscriptionID == 0 {
		return httpx.BadRequest(c, "missing_subscription", "subscription_id is required")
	}

	chain, err := h.chainService.AddSubscriptionToChain(chainID, userID, req.SubscriptionID)
	if err != nil {
		return httpx.FromError(c, err, "add_subscription_failed")
	}
	return c.JSON(chain.ToResponse())
}
