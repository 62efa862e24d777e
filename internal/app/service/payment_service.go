package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sifan077/PayLink/config"
	"github.com/sifan077/PayLink/internal/app/model"
	"github.com/sifan077/PayLink/internal/app/repository"
	metrics "github.com/sifan077/PayLink/internal/infra/prometheus"
)

// QREncoder renders text as a base64 PNG QR code.
type QREncoder interface {
	Base64PNG(content string) (string, error)
}

// PaymentService issues and confirms the fixed-fee payments that unlock short URLs.
type PaymentService interface {
	GeneratePaymentRequest(ctx context.Context, userID uint) (*PaymentRequest, error)
	ConfirmPayment(ctx context.Context, reference string, userID uint) (*model.Payment, error)
	GetByReference(ctx context.Context, reference string) (*model.Payment, error)
}

// PaymentRequest is what the payer needs to complete a pending payment.
type PaymentRequest struct {
	Reference    string
	QRCodeBase64 string
	Intent       string
	Amount       int
	Currency     string
	UPIID        string
	MerchantName string
}

type paymentService struct {
	payments     repository.PaymentRepository
	qr           QREncoder
	cfg          config.PaymentConfig
	newReference func() string
	now          func() time.Time
}

// NewPaymentService returns a PaymentService charging cfg.Amount per payment.
func NewPaymentService(payments repository.PaymentRepository, qr QREncoder, cfg config.PaymentConfig) PaymentService {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	return &paymentService{
		payments:     payments,
		qr:           qr,
		cfg:          cfg,
		newReference: newPaymentReference,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func newPaymentReference() string {
	return "PAY-" + strings.ToUpper(uuid.NewString()[:8])
}

// paymentIntent builds the upi:// URI scanned by the payer's app. Amount is
// stored in minor units and rendered with two decimals.
func paymentIntent(cfg config.PaymentConfig, reference string) string {
	return fmt.Sprintf("upi://pay?pa=%s&pn=%s&am=%.2f&cu=%s&tn=Payment_%s",
		cfg.UPIID,
		strings.ReplaceAll(cfg.MerchantName, " ", "_"),
		float64(cfg.Amount)/100,
		cfg.Currency,
		reference,
	)
}

func (s *paymentService) GeneratePaymentRequest(ctx context.Context, userID uint) (*PaymentRequest, error) {
	reference := s.newReference()
	intent := paymentIntent(s.cfg, reference)

	// Encode before persisting so a failed render leaves no orphan row.
	qr, err := s.qr.Base64PNG(intent)
	if err != nil {
		return nil, newError(ErrEncoding, "failed to render payment QR code", err)
	}

	payment := &model.Payment{
		UserID:    userID,
		Reference: reference,
		Amount:    s.cfg.Amount,
		Currency:  s.cfg.Currency,
		Status:    model.PaymentStatusPending,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	metrics.PaymentsCreated.Inc()

	return &PaymentRequest{
		Reference:    reference,
		QRCodeBase64: qr,
		Intent:       intent,
		Amount:       s.cfg.Amount,
		Currency:     s.cfg.Currency,
		UPIID:        s.cfg.UPIID,
		MerchantName: s.cfg.MerchantName,
	}, nil
}

func (s *paymentService) ConfirmPayment(ctx context.Context, reference string, userID uint) (*model.Payment, error) {
	payment, err := s.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if payment.UserID != userID {
		return nil, newError(ErrForbidden, "payment belongs to another user", nil)
	}
	if payment.Confirmed() {
		return nil, newError(ErrConflict, "payment already confirmed", nil)
	}

	at := s.now()
	if err := s.payments.MarkConfirmed(ctx, payment.ID, at); err != nil {
		if errors.Is(err, repository.ErrPaymentNotPending) {
			return nil, newError(ErrConflict, "payment already confirmed", nil)
		}
		return nil, fmt.Errorf("confirm payment: %w", err)
	}
	metrics.PaymentsConfirmed.Inc()

	payment.Status = model.PaymentStatusConfirmed
	payment.ConfirmedAt = &at
	return payment, nil
}

func (s *paymentService) GetByReference(ctx context.Context, reference string) (*model.Payment, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, newError(ErrValidation, "payment reference is required", nil)
	}

	payment, err := s.payments.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return nil, newError(ErrNotFound, "payment not found", nil)
		}
		return nil, fmt.Errorf("load payment: %w", err)
	}
	return payment, nil
}
