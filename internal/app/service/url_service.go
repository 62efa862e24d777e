package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sifan077/PayLink/internal/app/model"
	"github.com/sifan077/PayLink/internal/app/repository"
	metrics "github.com/sifan077/PayLink/internal/infra/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// URLCache is an optional read-through cache for short code lookups.
type URLCache interface {
	Get(ctx context.Context, code string) (*model.URL, bool, error)
	Set(ctx context.Context, url *model.URL) error
	Delete(ctx context.Context, code string) error
}

// URLService mints, resolves and manages paywalled short URLs.
type URLService interface {
	Shorten(ctx context.Context, input ShortenInput) (*ShortURL, error)
	CreateShortURL(ctx context.Context, originalURL string, userID, paymentID uint) (*ShortURL, error)
	Resolve(ctx context.Context, code string) (*model.URL, error)
	ListForUser(ctx context.Context, userID uint) ([]ShortURL, error)
	IncrementClicks(ctx context.Context, urlID uint) error
	Deactivate(ctx context.Context, userID uint, code string) error
}

// ShortenInput captures the data required to shorten a URL.
type ShortenInput struct {
	UserID           uint
	OriginalURL      string
	PaymentReference string
}

// ShortURL is a stored URL plus its fully qualified short link.
type ShortURL struct {
	model.URL
	Link string
}

// URLOptions tunes short URL creation.
type URLOptions struct {
	BaseURL     string
	MaxAttempts int
}

type urlService struct {
	urls     repository.URLRepository
	payments PaymentService
	codes    *ShortCodeGenerator
	cache    URLCache
	logger   *zap.Logger
	opts     URLOptions
	group    singleflight.Group
}

// NewURLService returns a URLService. cache may be nil.
func NewURLService(urls repository.URLRepository, payments PaymentService, codes *ShortCodeGenerator, cache URLCache, logger *zap.Logger, opts URLOptions) URLService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if codes == nil {
		codes = NewShortCodeGenerator(defaultShortCodeLength, nil)
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 10
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &urlService{
		urls:     urls,
		payments: payments,
		codes:    codes,
		cache:    cache,
		logger:   logger,
		opts:     opts,
	}
}

func (s *urlService) Shorten(ctx context.Context, input ShortenInput) (*ShortURL, error) {
	target, err := normalizeTarget(input.OriginalURL)
	if err != nil {
		return nil, err
	}

	payment, err := s.payments.GetByReference(ctx, input.PaymentReference)
	if err != nil {
		return nil, err
	}
	if payment.UserID != input.UserID {
		return nil, newError(ErrForbidden, "payment belongs to another user", nil)
	}
	if !payment.Confirmed() {
		return nil, newError(ErrPaymentRequired, "payment not confirmed", nil)
	}

	used, err := s.urls.ExistsByPaymentID(ctx, payment.ID)
	if err != nil {
		return nil, fmt.Errorf("check payment usage: %w", err)
	}
	if used {
		return nil, newError(ErrConflict, "payment already used", nil)
	}

	return s.CreateShortURL(ctx, target, input.UserID, payment.ID)
}

func (s *urlService) CreateShortURL(ctx context.Context, originalURL string, userID, paymentID uint) (*ShortURL, error) {
	originalURL, err := normalizeTarget(originalURL)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		code, err := s.codes.Next()
		if err != nil {
			return nil, err
		}

		record := &model.URL{
			UserID:      userID,
			PaymentID:   paymentID,
			OriginalURL: originalURL,
			ShortCode:   code,
			Active:      true,
		}
		err = s.urls.Create(ctx, record)
		if err == nil {
			s.codes.Taken(code)
			metrics.URLsCreated.Inc()
			s.logger.Info("short url created",
				zap.String("code", code),
				zap.Uint("user_id", userID),
				zap.Int("attempt", attempt),
			)
			return s.view(record), nil
		}

		switch {
		case errors.Is(err, repository.ErrShortCodeTaken):
		case errors.Is(err, repository.ErrPaymentAlreadyUsed):
			return nil, newError(ErrConflict, "payment already used", nil)
		case errors.Is(err, repository.ErrDuplicate):
			// Constraint could not be identified from the driver error.
			used, checkErr := s.urls.ExistsByPaymentID(ctx, paymentID)
			if checkErr != nil {
				return nil, fmt.Errorf("check payment usage: %w", checkErr)
			}
			if used {
				return nil, newError(ErrConflict, "payment already used", nil)
			}
		default:
			return nil, fmt.Errorf("create url: %w", err)
		}

		s.codes.Taken(code)
		metrics.ShortCodeCollisions.WithLabelValues("database").Inc()
		s.logger.Debug("short code collision", zap.String("code", code), zap.Int("attempt", attempt))
	}

	return nil, fmt.Errorf("create url: no free short code after %d attempts", s.opts.MaxAttempts)
}

func (s *urlService) Resolve(ctx context.Context, code string) (*model.URL, error) {
	if code == "" {
		return nil, newError(ErrNotFound, "short url not found", nil)
	}

	record, err := s.lookup(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			return nil, newError(ErrNotFound, "short url not found", nil)
		}
		return nil, fmt.Errorf("resolve url: %w", err)
	}
	if !record.Active {
		return nil, newError(ErrNotFound, "short url is no longer active", nil)
	}
	return record, nil
}

func (s *urlService) lookup(ctx context.Context, code string) (*model.URL, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, code)
		switch {
		case err != nil:
			metrics.ResolveCacheResults.WithLabelValues("error").Inc()
			s.logger.Warn("url cache get failed", zap.String("code", code), zap.Error(err))
		case ok:
			metrics.ResolveCacheResults.WithLabelValues("hit").Inc()
			return cached, nil
		default:
			metrics.ResolveCacheResults.WithLabelValues("miss").Inc()
		}
	}

	v, err, _ := s.group.Do(code, func() (interface{}, error) {
		record, err := s.urls.GetByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, record); err != nil {
				s.logger.Warn("url cache set failed", zap.String("code", code), zap.Error(err))
			}
		}
		return record, nil
	})
	if err != nil {
		return nil, err
	}
	record := *v.(*model.URL)
	return &record, nil
}

func (s *urlService) ListForUser(ctx context.Context, userID uint) ([]ShortURL, error) {
	records, err := s.urls.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list urls: %w", err)
	}
	out := make([]ShortURL, 0, len(records))
	for i := range records {
		out = append(out, *s.view(&records[i]))
	}
	return out, nil
}

func (s *urlService) IncrementClicks(ctx context.Context, urlID uint) error {
	if err := s.urls.IncrementClicks(ctx, urlID); err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			return newError(ErrNotFound, "short url not found", nil)
		}
		return fmt.Errorf("increment clicks: %w", err)
	}
	return nil
}

func (s *urlService) Deactivate(ctx context.Context, userID uint, code string) error {
	record, err := s.urls.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			return newError(ErrNotFound, "short url not found", nil)
		}
		return fmt.Errorf("load url: %w", err)
	}
	if record.UserID != userID {
		return newError(ErrNotFound, "short url not found", nil)
	}

	if err := s.urls.SetActive(ctx, record.ID, false); err != nil {
		return fmt.Errorf("deactivate url: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, code); err != nil {
			s.logger.Warn("url cache delete failed", zap.String("code", code), zap.Error(err))
		}
	}
	return nil
}

func (s *urlService) view(record *model.URL) *ShortURL {
	return &ShortURL{URL: *record, Link: s.opts.BaseURL + "/" + record.ShortCode}
}

// normalizeTarget only rejects blank targets; anything else is redirected as given.
func normalizeTarget(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", newError(ErrValidation, "originalUrl is required", nil)
	}
	return raw, nil
}
