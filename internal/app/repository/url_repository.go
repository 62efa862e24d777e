package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sifan077/PayLink/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrURLNotFound signals that the requested short URL does not exist.
	ErrURLNotFound = errors.New("url not found")
	// ErrShortCodeTaken signals a collision on the short code column.
	ErrShortCodeTaken = errors.New("short code already taken")
	// ErrPaymentAlreadyUsed signals that the payment already unlocked a URL.
	ErrPaymentAlreadyUsed = errors.New("payment already used")
)

// URLRepository defines the data access contract for short URLs.
type URLRepository interface {
	Create(ctx context.Context, url *model.URL) error
	GetByID(ctx context.Context, id uint) (*model.URL, error)
	GetByCode(ctx context.Context, code string) (*model.URL, error)
	ListByUser(ctx context.Context, userID uint) ([]model.URL, error)
	ExistsByPaymentID(ctx context.Context, paymentID uint) (bool, error)
	SetActive(ctx context.Context, id uint, active bool) error
	IncrementClicks(ctx context.Context, id uint) error
	// EachCode streams every stored short code to fn.
	EachCode(ctx context.Context, fn func(code string)) error
}

type urlRepository struct {
	db *gorm.DB
}

// NewURLRepository returns a GORM-backed URLRepository.
func NewURLRepository(db *gorm.DB) URLRepository {
	return &urlRepository{db: db}
}

func (r *urlRepository) Create(ctx context.Context, url *model.URL) error {
	err := r.db.WithContext(ctx).Create(url).Error
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err) {
		return err
	}
	return classifyURLConflict(err)
}

// classifyURLConflict tells a short code collision apart from payment reuse.
func classifyURLConflict(err error) error {
	detail := err.Error()
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		detail = pgErr.ConstraintName + " " + pgErr.Detail
	}
	switch {
	case strings.Contains(detail, "short_code"):
		return ErrShortCodeTaken
	case strings.Contains(detail, "payment_id"):
		return ErrPaymentAlreadyUsed
	default:
		return ErrDuplicate
	}
}

func (r *urlRepository) GetByID(ctx context.Context, id uint) (*model.URL, error) {
	var url model.URL
	if err := r.db.WithContext(ctx).First(&url, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrURLNotFound
		}
		return nil, err
	}
	return &url, nil
}

func (r *urlRepository) GetByCode(ctx context.Context, code string) (*model.URL, error) {
	var url model.URL
	if err := r.db.WithContext(ctx).Where("short_code = ?", code).First(&url).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrURLNotFound
		}
		return nil, err
	}
	return &url, nil
}

func (r *urlRepository) ListByUser(ctx context.Context, userID uint) ([]model.URL, error) {
	var result []model.URL
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (r *urlRepository) ExistsByPaymentID(ctx context.Context, paymentID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.URL{}).Where("payment_id = ?", paymentID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *urlRepository) SetActive(ctx context.Context, id uint, active bool) error {
	result := r.db.WithContext(ctx).Model(&model.URL{}).Where("id = ?", id).Update("active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrURLNotFound
	}
	return nil
}

func (r *urlRepository) IncrementClicks(ctx context.Context, id uint) error {
	return incrementClicks(r.db.WithContext(ctx), id)
}

func incrementClicks(db *gorm.DB, id uint) error {
	result := db.Model(&model.URL{}).
		Where("id = ?", id).
		UpdateColumn("total_clicks", gorm.Expr("total_clicks + ?", 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrURLNotFound
	}
	return nil
}

func (r *urlRepository) EachCode(ctx context.Context, fn func(code string)) error {
	rows, err := r.db.WithContext(ctx).Model(&model.URL{}).Select("short_code").Rows()
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return err
		}
		fn(code)
	}
	return rows.Err()
}
