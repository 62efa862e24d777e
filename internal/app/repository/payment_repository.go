package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sifan077/PayLink/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrPaymentNotFound signals that no payment has the given reference.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrPaymentNotPending signals that a confirm lost to an earlier confirm.
	ErrPaymentNotPending = errors.New("payment is not pending")
)

// PaymentRepository defines the data access contract for payments.
type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	GetByReference(ctx context.Context, reference string) (*model.Payment, error)
	// MarkConfirmed flips a PENDING payment to CONFIRMED. It returns
	// ErrPaymentNotPending when the row is no longer pending.
	MarkConfirmed(ctx context.Context, id uint, at time.Time) error
}

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository returns a GORM-backed PaymentRepository.
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	return translateWriteError(r.db.WithContext(ctx).Create(payment).Error)
}

func (r *paymentRepository) GetByReference(ctx context.Context, reference string) (*model.Payment, error) {
	var payment model.Payment
	if err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) MarkConfirmed(ctx context.Context, id uint, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, model.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":       model.PaymentStatusConfirmed,
			"confirmed_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPaymentNotPending
	}
	return nil
}
