package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PayLink/internal/app/service"
)

// ShortenRequest represents the request body for shortening a URL.
type ShortenRequest struct {
	OriginalURL        string `json:"originalUrl" validate:"required"`
	PaymentReferenceID string `json:"paymentReferenceId" validate:"required"`
}

// URLResponse describes one short URL.
type URLResponse struct {
	ID          uint      `json:"id"`
	OriginalURL string    `json:"originalUrl"`
	ShortCode   string    `json:"shortCode"`
	ShortURL    string    `json:"shortUrl"`
	TotalClicks int64     `json:"totalClicks"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Shorten handles POST /api/url/shorten
func (h *APIHandler) Shorten(c *fiber.Ctx) error {
	var req ShortenRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err)
	}

	short, err := h.urls.Shorten(c.UserContext(), service.ShortenInput{
		UserID:           currentUserID(c),
		OriginalURL:      req.OriginalURL,
		PaymentReference: req.PaymentReferenceID,
	})
	if err != nil {
		return respondError(c, h.logger, "shorten url", err)
	}
	return c.JSON(urlResponse(short))
}

// ListURLs handles GET /api/url/user
func (h *APIHandler) ListURLs(c *fiber.Ctx) error {
	urls, err := h.urls.ListForUser(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, h.logger, "list urls", err)
	}

	response := make([]URLResponse, len(urls))
	for i := range urls {
		response[i] = urlResponse(&urls[i])
	}
	return c.JSON(response)
}

// Deactivate handles POST /api/url/:shortCode/deactivate
func (h *APIHandler) Deactivate(c *fiber.Ctx) error {
	code := c.Params("shortCode")
	if err := h.urls.Deactivate(c.UserContext(), currentUserID(c), code); err != nil {
		return respondError(c, h.logger, "deactivate url", err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Short URL deactivated",
	})
}

func urlResponse(u *service.ShortURL) URLResponse {
	return URLResponse{
		ID:          u.ID,
		OriginalURL: u.OriginalURL,
		ShortCode:   u.ShortCode,
		ShortURL:    u.Link,
		TotalClicks: u.TotalClicks,
		Active:      u.Active,
		CreatedAt:   u.CreatedAt,
	}
}
