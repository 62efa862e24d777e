package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sifan077/PayLink/internal/app/model"
	"gorm.io/gorm"
)

// ErrClickAlreadyRecorded signals that an event with the same EventID exists.
var ErrClickAlreadyRecorded = errors.New("click already recorded")

// DailyCount is the number of clicks recorded on one calendar day (UTC).
type DailyCount struct {
	Day    string
	Clicks int64
}

// ClickEventRepository defines the data access contract for click events.
type ClickEventRepository interface {
	// Record appends the event and bumps the owning URL's counter in a single
	// transaction. It returns ErrURLNotFound, and writes nothing, when the URL
	// does not exist, and ErrClickAlreadyRecorded when EventID was stored before.
	Record(ctx context.Context, event *model.ClickEvent) error
	CountByURL(ctx context.Context, urlID uint) (int64, error)
	DailyCountsByURL(ctx context.Context, urlID uint) ([]DailyCount, error)
	DailyCountsByUser(ctx context.Context, userID uint) ([]DailyCount, error)
}

type clickEventRepository struct {
	db *gorm.DB
}

// NewClickEventRepository returns a GORM-backed ClickEventRepository.
func NewClickEventRepository(db *gorm.DB) ClickEventRepository {
	return &clickEventRepository{db: db}
}

func (r *clickEventRepository) Record(ctx context.Context, event *model.ClickEvent) error {
	if event.ClickedAt.IsZero() {
		event.ClickedAt = time.Now()
	}
	event.ClickedAt = event.ClickedAt.UTC()
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(event).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrClickAlreadyRecorded
			}
			return fmt.Errorf("insert click event: %w", err)
		}
		return incrementClicks(tx, event.URLID)
	})
}

func (r *clickEventRepository) CountByURL(ctx context.Context, urlID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.ClickEvent{}).Where("url_id = ?", urlID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *clickEventRepository) DailyCountsByURL(ctx context.Context, urlID uint) ([]DailyCount, error) {
	var rows []DailyCount
	err := r.db.WithContext(ctx).
		Model(&model.ClickEvent{}).
		Select(dayExpr(r.db, "clicked_at")+" AS day, COUNT(*) AS clicks").
		Where("url_id = ?", urlID).
		Group(dayExpr(r.db, "clicked_at")).
		Order("day").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return normalizeDays(rows), nil
}

func (r *clickEventRepository) DailyCountsByUser(ctx context.Context, userID uint) ([]DailyCount, error) {
	var rows []DailyCount
	err := r.db.WithContext(ctx).
		Table("click_events AS c").
		Select(dayExpr(r.db, "c.clicked_at")+" AS day, COUNT(*) AS clicks").
		Joins("JOIN urls u ON u.id = c.url_id").
		Where("u.user_id = ?", userID).
		Group(dayExpr(r.db, "c.clicked_at")).
		Order("day").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return normalizeDays(rows), nil
}

// dayExpr renders the UTC calendar day of column. Record stores UTC, but
// Postgres converts timestamptz with the session zone before DATE().
func dayExpr(db *gorm.DB, column string) string {
	if db.Dialector.Name() == "postgres" {
		return fmt.Sprintf("DATE(%s AT TIME ZONE 'UTC')", column)
	}
	return fmt.Sprintf("DATE(%s)", column)
}

// normalizeDays trims driver-specific date renderings (a Postgres DATE scans
// as an RFC 3339 timestamp) down to YYYY-MM-DD.
func normalizeDays(rows []DailyCount) []DailyCount {
	for i := range rows {
		if len(rows[i].Day) > len("2006-01-02") {
			rows[i].Day = rows[i].Day[:len("2006-01-02")]
		}
	}
	return rows
}
