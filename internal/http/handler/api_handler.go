package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PayLink/internal/app/service"
	"github.com/sifan077/PayLink/internal/http/middleware"
	"go.uber.org/zap"
)

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger    *zap.Logger
	Auth      service.AuthService
	Payments  service.PaymentService
	URLs      service.URLService
	Analytics service.AnalyticsService
}

// APIHandler implements the JSON API endpoints.
type APIHandler struct {
	logger    *zap.Logger
	auth      service.AuthService
	payments  service.PaymentService
	urls      service.URLService
	analytics service.AnalyticsService
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:    logger,
		auth:      deps.Auth,
		payments:  deps.Payments,
		urls:      deps.URLs,
		analytics: deps.Analytics,
	}
}

// Register wires API routes onto the provided router.
func (h *APIHandler) Register(router fiber.Router) {
	requireUser := middleware.Auth(h.auth, h.logger)

	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.Post("/signup", h.Signup)
			auth.Post("/login", h.Login)
			auth.Get("/me", requireUser, h.Me)
		}

		payment := api.Group("/payment", requireUser)
		{
			payment.Post("/generate-qr", h.GenerateQR)
			payment.Post("/confirm", h.ConfirmPayment)
			payment.Get("/:reference", h.GetPayment)
		}

		url := api.Group("/url", requireUser)
		{
			url.Post("/shorten", h.Shorten)
			url.Get("/user", h.ListURLs)
			url.Post("/:shortCode/deactivate", h.Deactivate)
		}

		// Static user routes precede the :shortCode wildcard.
		analytics := api.Group("/analytics", requireUser)
		{
			analytics.Get("/user", h.UserAnalytics)
			analytics.Get("/user/export", h.ExportUserAnalytics)
			analytics.Get("/:shortCode", h.URLAnalytics)
		}
	}
}

// currentUserID returns the authenticated user's ID. Routes using it sit
// behind middleware.Auth.
func currentUserID(c *fiber.Ctx) uint {
	user, _ := middleware.CurrentUser(c)
	if user == nil {
		return 0
	}
	return user.ID
}
