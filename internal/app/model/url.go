package model

import "time"

// URL maps a short code to the original URL it redirects to.
type URL struct {
	ID          uint      `gorm:"primaryKey"`
	UserID      uint      `gorm:"not null;index"`
	PaymentID   uint      `gorm:"not null;uniqueIndex"`
	OriginalURL string    `gorm:"type:text;not null"`
	ShortCode   string    `gorm:"size:32;not null;uniqueIndex"`
	TotalClicks int64     `gorm:"not null;default:0"`
	Active      bool      `gorm:"not null;default:true"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (URL) TableName() string { return "urls" }
