package handler

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PayLink/internal/app/model"
)

// QRCodeResponse is returned when a payment request is generated.
type QRCodeResponse struct {
	QRCodeBase64       string `json:"qrCodeBase64"`
	PaymentReferenceID string `json:"paymentReferenceId"`
	Amount             int    `json:"amount"`
	UPIID              string `json:"upiId"`
	MerchantName       string `json:"merchantName"`
}

// PaymentResponse describes a stored payment.
type PaymentResponse struct {
	PaymentReferenceID string     `json:"paymentReferenceId"`
	Amount             int        `json:"amount"`
	Currency           string     `json:"currency"`
	Status             string     `json:"status"`
	CreatedAt          time.Time  `json:"createdAt"`
	ConfirmedAt        *time.Time `json:"confirmedAt"`
}

// GenerateQR handles POST /api/payment/generate-qr
func (h *APIHandler) GenerateQR(c *fiber.Ctx) error {
	req, err := h.payments.GeneratePaymentRequest(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, h.logger, "generate payment request", err)
	}
	return c.JSON(QRCodeResponse{
		QRCodeBase64:       req.QRCodeBase64,
		PaymentReferenceID: req.Reference,
		Amount:             req.Amount,
		UPIID:              req.UPIID,
		MerchantName:       req.MerchantName,
	})
}

// ConfirmPayment handles POST /api/payment/confirm?paymentReferenceId=...
func (h *APIHandler) ConfirmPayment(c *fiber.Ctx) error {
	reference := strings.TrimSpace(c.Query("paymentReferenceId"))
	if reference == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "paymentReferenceId is required",
		})
	}

	if _, err := h.payments.ConfirmPayment(c.UserContext(), reference, currentUserID(c)); err != nil {
		return respondError(c, h.logger, "confirm payment", err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Payment confirmed successfully",
	})
}

// GetPayment handles GET /api/payment/:reference. Other users' payments are
// reported as missing.
func (h *APIHandler) GetPayment(c *fiber.Ctx) error {
	payment, err := h.payments.GetByReference(c.UserContext(), c.Params("reference"))
	if err != nil {
		return respondError(c, h.logger, "get payment", err)
	}
	if payment.UserID != currentUserID(c) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "payment not found",
		})
	}
	return c.JSON(paymentResponse(payment))
}

func paymentResponse(p *model.Payment) PaymentResponse {
	return PaymentResponse{
		PaymentReferenceID: p.Reference,
		Amount:             p.Amount,
		Currency:           p.Currency,
		Status:             string(p.Status),
		CreatedAt:          p.CreatedAt,
		ConfirmedAt:        p.ConfirmedAt,
	}
}
