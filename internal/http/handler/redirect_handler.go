package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PayLink/internal/app/service"
	httpUtil "github.com/sifan077/PayLink/internal/http/util"
	"github.com/sifan077/PayLink/internal/http/view"
	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

// RedirectDeps groups dependencies required by redirect handlers.
type RedirectDeps struct {
	Logger  *zap.Logger
	URLs    service.URLService
	Clicks  service.ClickRecorder
	BaseURL string
	Checks  map[string]HealthCheck
}

// RedirectHandler resolves short codes and serves the health endpoint.
type RedirectHandler struct {
	logger  *zap.Logger
	urls    service.URLService
	clicks  service.ClickRecorder
	baseURL string
	checks  map[string]HealthCheck
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectHandler{
		logger:  logger,
		urls:    deps.URLs,
		clicks:  deps.Clicks,
		baseURL: deps.BaseURL,
		checks:  deps.Checks,
	}
}

// Register wires redirect routes onto the provided router. It must run after
// every other route so /:shortCode does not shadow them.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/", h.Health)
	router.Get("/health", h.Health)
	router.Get("/:shortCode", h.Resolve)
}

// Health reports liveness plus the state of each configured dependency.
func (h *RedirectHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthCheckTimeout)
	defer cancel()

	status := "ok"
	checks := make(fiber.Map, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = "down"
			status = "degraded"
			continue
		}
		checks[name] = "up"
	}

	code := fiber.StatusOK
	if status != "ok" {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"service": "PayLink",
		"status":  status,
		"checks":  checks,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Resolve handles GET /:shortCode: records the click and redirects.
func (h *RedirectHandler) Resolve(c *fiber.Ctx) error {
	code := c.Params("shortCode")
	ctx := c.UserContext()

	url, err := h.urls.Resolve(ctx, code)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return h.unavailable(c, code, err)
		}
		return respondError(c, h.logger, "resolve short url", err)
	}

	if h.clicks != nil {
		click := service.ClickInput{
			URLID:     url.ID,
			IP:        httpUtil.ClientIP(c),
			UserAgent: c.Get(fiber.HeaderUserAgent),
			Referrer:  c.Get(fiber.HeaderReferer),
			At:        time.Now().UTC(),
		}
		// A lost click never blocks the redirect.
		if err := h.clicks.RecordClick(ctx, click); err != nil {
			h.logger.Error("failed to record click", zap.String("code", code), zap.Error(err))
		}
	}

	h.logger.Debug("redirecting short link", zap.String("code", code), zap.String("target", url.OriginalURL))
	return c.Redirect(url.OriginalURL, fiber.StatusFound)
}

// unavailable answers browsers with an HTML page and API clients with JSON.
func (h *RedirectHandler) unavailable(c *fiber.Ctx, code string, err error) error {
	message := "short url not found"
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		message = svcErr.Message
	}

	if !wantsHTML(c) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": message,
		})
	}

	html, renderErr := view.RenderUnavailablePage(view.UnavailablePageData{
		Code:    code,
		Message: strings.ToUpper(message[:1]) + message[1:] + ".",
		HomeURL: h.baseURL,
	})
	if renderErr != nil {
		h.logger.Error("failed to render unavailable page", zap.Error(renderErr))
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": message,
		})
	}
	return c.Status(fiber.StatusNotFound).Type("html", "utf-8").SendString(html)
}

func wantsHTML(c *fiber.Ctx) bool {
	return strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMETextHTML)
}
