package handler

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PayLink/internal/app/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AnalyticsResponse summarises one short URL's clicks.
type AnalyticsResponse struct {
	URLID        uint                `json:"urlId"`
	ShortCode    string              `json:"shortCode"`
	TotalClicks  int64               `json:"totalClicks"`
	ClicksByDate service.DailyClicks `json:"clicksByDate"`
}

// URLAnalytics handles GET /api/analytics/:shortCode. Only the owner may
// read it; everyone else gets 404.
func (h *APIHandler) URLAnalytics(c *fiber.Ctx) error {
	stats, err := h.analytics.ForURL(c.UserContext(), c.Params("shortCode"))
	if err != nil {
		return respondError(c, h.logger, "url analytics", err)
	}
	if stats.UserID != currentUserID(c) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "short url not found",
		})
	}
	return c.JSON(AnalyticsResponse{
		URLID:        stats.URLID,
		ShortCode:    stats.ShortCode,
		TotalClicks:  stats.TotalClicks,
		ClicksByDate: stats.ClicksByDate,
	})
}

// UserAnalytics handles GET /api/analytics/user
func (h *APIHandler) UserAnalytics(c *fiber.Ctx) error {
	daily, err := h.analytics.ForUser(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, h.logger, "user analytics", err)
	}
	return c.JSON(daily)
}

// ExportUserAnalytics handles GET /api/analytics/user/export
func (h *APIHandler) ExportUserAnalytics(c *fiber.Ctx) error {
	data, err := h.analytics.ExportUser(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, h.logger, "export analytics", err)
	}

	filename := fmt.Sprintf("paylink-analytics-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Send(data)
}
