package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sifan077/PayLink/internal/app/model"
	"github.com/sifan077/PayLink/internal/app/repository"
	metrics "github.com/sifan077/PayLink/internal/infra/prometheus"
)

// ClickRecorder accepts one redirect's click for recording.
type ClickRecorder interface {
	RecordClick(ctx context.Context, click ClickInput) error
}

// ClickInput describes one redirect.
type ClickInput struct {
	// EventID makes recording idempotent; empty means a fresh event.
	EventID   string
	URLID     uint
	IP        string
	UserAgent string
	Referrer  string
	At        time.Time
}

// AnalyticsService records clicks and aggregates them per day.
type AnalyticsService interface {
	ClickRecorder
	ForURL(ctx context.Context, shortCode string) (*URLAnalytics, error)
	ForURLID(ctx context.Context, urlID uint) (*URLAnalytics, error)
	ForUser(ctx context.Context, userID uint) (DailyClicks, error)
	ExportUser(ctx context.Context, userID uint) ([]byte, error)
}

// URLAnalytics summarises the clicks of one short URL.
type URLAnalytics struct {
	URLID        uint
	UserID       uint
	ShortCode    string
	TotalClicks  int64
	ClicksByDate DailyClicks
}

// DailyClicks is a date-ascending series that encodes as a JSON object
// keyed by YYYY-MM-DD.
type DailyClicks []repository.DailyCount

func (d DailyClicks) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, row := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(row.Day)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		fmt.Fprintf(&buf, ":%d", row.Clicks)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Total sums the series.
func (d DailyClicks) Total() int64 {
	var n int64
	for _, row := range d {
		n += row.Clicks
	}
	return n
}

type analyticsService struct {
	clicks repository.ClickEventRepository
	urls   repository.URLRepository
}

// NewAnalyticsService returns an AnalyticsService backed by the click event store.
func NewAnalyticsService(clicks repository.ClickEventRepository, urls repository.URLRepository) AnalyticsService {
	return &analyticsService{clicks: clicks, urls: urls}
}

func (s *analyticsService) RecordClick(ctx context.Context, click ClickInput) error {
	event := &model.ClickEvent{
		EventID:   click.EventID,
		URLID:     click.URLID,
		ClickedAt: click.At.UTC(),
		IP:        click.IP,
		UserAgent: click.UserAgent,
		Referrer:  click.Referrer,
	}

	if err := s.clicks.Record(ctx, event); err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			return newError(ErrNotFound, "short url not found", nil)
		}
		if errors.Is(err, repository.ErrClickAlreadyRecorded) {
			return nil
		}
		return fmt.Errorf("record click: %w", err)
	}
	metrics.ClicksRecorded.Inc()
	return nil
}

func (s *analyticsService) ForURL(ctx context.Context, shortCode string) (*URLAnalytics, error) {
	record, err := s.urls.GetByCode(ctx, shortCode)
	if err != nil {
		return nil, urlLookupError(err)
	}
	return s.summarise(ctx, record)
}

func (s *analyticsService) ForURLID(ctx context.Context, urlID uint) (*URLAnalytics, error) {
	record, err := s.urls.GetByID(ctx, urlID)
	if err != nil {
		return nil, urlLookupError(err)
	}
	return s.summarise(ctx, record)
}

func (s *analyticsService) summarise(ctx context.Context, record *model.URL) (*URLAnalytics, error) {
	total, err := s.clicks.CountByURL(ctx, record.ID)
	if err != nil {
		return nil, fmt.Errorf("count clicks: %w", err)
	}
	daily, err := s.clicks.DailyCountsByURL(ctx, record.ID)
	if err != nil {
		return nil, fmt.Errorf("daily clicks: %w", err)
	}
	return &URLAnalytics{
		URLID:        record.ID,
		UserID:       record.UserID,
		ShortCode:    record.ShortCode,
		TotalClicks:  total,
		ClicksByDate: DailyClicks(daily),
	}, nil
}

func (s *analyticsService) ForUser(ctx context.Context, userID uint) (DailyClicks, error) {
	daily, err := s.clicks.DailyCountsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("daily clicks: %w", err)
	}
	return DailyClicks(daily), nil
}

func urlLookupError(err error) error {
	if errors.Is(err, repository.ErrURLNotFound) {
		return newError(ErrNotFound, "short url not found", nil)
	}
	return fmt.Errorf("load url: %w", err)
}
