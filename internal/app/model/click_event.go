package model

import "time"

// ClickEvent is one append-only record of a redirect.
type ClickEvent struct {
	ID        uint      `gorm:"primaryKey"`
	EventID   string    `gorm:"size:64;not null;uniqueIndex"`
	URLID     uint      `gorm:"not null;index"`
	ClickedAt time.Time `gorm:"not null;index"`
	IP        string    `gorm:"size:64"`
	UserAgent string    `gorm:"type:text"`
	Referrer  string    `gorm:"type:text"`
}

// ClickMessage is the JetStream payload for an asynchronously recorded click.
type ClickMessage struct {
	ID        string    `json:"id"`
	URLID     uint      `json:"url_id"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Referrer  string    `json:"referrer"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	ClickStreamName     = "CLICKS"
	ClickStreamSubject  = "clicks.events"
	ClickConsumerName   = "click-recorder"
	ClickStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)

// All returns every model that takes part in schema migration.
func All() []interface{} {
	return []interface{}{&User{}, &Payment{}, &URL{}, &ClickEvent{}}
}
