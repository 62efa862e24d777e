package model

import "time"

// PaymentStatus is the lifecycle state of a payment. PENDING moves to
// CONFIRMED exactly once.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusConfirmed PaymentStatus = "CONFIRMED"
)

// Payment records one QR payment attempt. Amount is in minor units.
type Payment struct {
	ID          uint          `gorm:"primaryKey"`
	UserID      uint          `gorm:"not null;index"`
	Reference   string        `gorm:"size:64;not null;uniqueIndex"`
	Amount      int           `gorm:"not null"`
	Currency    string        `gorm:"size:8;not null"`
	Status      PaymentStatus `gorm:"size:16;not null;default:'PENDING'"`
	CreatedAt   time.Time     `gorm:"autoCreateTime"`
	ConfirmedAt *time.Time
}

// Confirmed reports whether the payment has been confirmed.
func (p *Payment) Confirmed() bool {
	return p.Status == PaymentStatusConfirmed
}
