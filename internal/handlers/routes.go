package handlers

import (
	"strconv"
	"time"

	"github.com/chainsplit/chainsplit-backend/internal/httpx"
	"github.com/chainsplit/chainsplit-backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/websocket/v2"
)

// Set groups the handlers mounted by Register.
type Set struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Chains        *ChainHandler
	Subscriptions *SubscriptionHandler
	Messages      *MessageHandler
	Attachments   *AttachmentHandler
	WebSocket     *WebSocketHandler
}

type RouteConfig struct {
	JWTSecret      string
	AllowedOrigins string
	CSRFMode       string
	// AuthRateLimit is the per-minute request cap on /auth; 0 disables it.
	AuthRateLimit int
}

// Register mounts the REST API under /api/v1 and the websocket at /ws.
func Register(app *fiber.App, h Set, cfg RouteConfig) {
	auth := middleware.AuthRequired(cfg.JWTSecret)

	api := app.Group("/api/v1", middleware.OriginAllowed(cfg.AllowedOrigins))

	authRoutes := api.Group("/auth")
	if cfg.AuthRateLimit > 0 {
		authRoutes.Use(limiter.New(limiter.Config{
			Max:        cfg.AuthRateLimit,
			Expiration: time.Minute,
		}))
	}
	authRoutes.Get("/csrf", h.Auth.CSRF)
	authRoutes.Post("/register", h.Auth.Register)
	authRoutes.Post("/login", h.Auth.Login)
	api.Get("/users/check-username", h.Users.CheckUsername)

	protected := api.Group("/", auth, middleware.CSRFRequired(cfg.CSRFMode, cfg.AllowedOrigins))
	protected.Get("/users/me", h.Users.GetCurrentUser)
	protected.Put("/users/me", h.Users.UpdateProfile)

	protected.Get("/chains", h.Chains.ListChains)
	protected.Post("/chains", h.Chains.CreateChain)
	protected.Get("/chains/:chainId", h.Chains.GetChain)
	protected.Post("/chains/:chainId/invite", h.Chains.InviteMembers)
	protected.Post("/chains/:chainId/accept", h.Chains.AcceptInvitation)
	protected.Post("/chains/:chainId/reject", h.Chains.RejectInvitation)
	protected.Post("/chains/:chainId/subscriptions", h.Chains.AddSubscription)
	protected.Get("/chains/:chainId/messages", h.Messages.GetChainMessages)

	protected.Get("/subscriptions", h.Subscriptions.List)
	protected.Post("/subscriptions", h.Subscriptions.Create)
	protected.Put("/subscriptions/:id", h.Subscriptions.Update)
	protected.Delete("/subscriptions/:id", h.Subscriptions.Delete)

	protected.Post("/messages", h.Messages.SendMessage)
	protected.Get("/messages/unread", h.Messages.UnreadCount)
	protected.Get("/messages/direct/:peerId", h.Messages.GetDirectMessages)
	protected.Put("/messages/:messageId/read", h.Messages.MarkAsRead)

	protected.Post(
		"/attachments",
		limiter.New(limiter.Config{
			Max:        30,
			Expiration: 10 * time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				if uid, err := httpx.LocalUint(c, "userID"); err == nil {
					return "attachment:" + strconv.FormatUint(uint64(uid), 10)
				}
				return c.IP()
			},
		}),
		h.Attachments.Upload,
	)
	protected.Get("/attachments/*", h.Attachments.Get)

	if h.WebSocket != nil {
		app.Use(
			"/ws",
			middleware.OriginAllowed(cfg.AllowedOrigins),
			auth,
			func(c *fiber.Ctx) error {
				if websocket.IsWebSocketUpgrade(c) {
					return c.Next()
				}
				return fiber.ErrUpgradeRequired
			},
		)
		app.Get("/ws", websocket.New(h.WebSocket.HandleWebSocket))
	}
}
