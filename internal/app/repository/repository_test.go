package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sifan077/PayLink/internal/app/model"
	"github.com/sifan077/PayLink/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newURL(userID, paymentID uint, code string) *model.URL {
	return &model.URL{
		UserID:      userID,
		PaymentID:   paymentID,
		OriginalURL: "https://example.com/" + code,
		ShortCode:   code,
		Active:      true,
	}
}

func TestUserRepository(t *testing.T) {
	repo := NewUserRepository(testutil.NewDB(t))
	ctx := context.Background()

	user := &model.User{Name: "Alice", Email: "a@x.com", PasswordHash: "hash"}
	require.NoError(t, repo.Create(ctx, user))
	assert.NotZero(t, user.ID)

	err := repo.Create(ctx, &model.User{Name: "Dup", Email: "a@x.com", PasswordHash: "hash"})
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := repo.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = repo.GetByID(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = repo.GetByEmail(ctx, "b@x.com")
	assert.ErrorIs(t, err, ErrUserNotFound)

	exists, err := repo.ExistsByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPaymentRepository_MarkConfirmedOnce(t *testing.T) {
	repo := NewPaymentRepository(testutil.NewDB(t))
	ctx := context.Background()

	payment := &model.Payment{UserID: 1, Reference: "PAY-AAAA0001", Amount: 100, Currency: "INR", Status: model.PaymentStatusPending}
	require.NoError(t, repo.Create(ctx, payment))

	err := repo.Create(ctx, &model.Payment{UserID: 1, Reference: "PAY-AAAA0001", Amount: 100, Currency: "INR"})
	assert.ErrorIs(t, err, ErrDuplicate)

	at := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.MarkConfirmed(ctx, payment.ID, at))
	assert.ErrorIs(t, repo.MarkConfirmed(ctx, payment.ID, at.Add(time.Minute)), ErrPaymentNotPending)

	got, err := repo.GetByReference(ctx, "PAY-AAAA0001")
	require.NoError(t, err)
	assert.True(t, got.Confirmed())
	require.NotNil(t, got.ConfirmedAt)
	assert.True(t, got.ConfirmedAt.Equal(at))

	_, err = repo.GetByReference(ctx, "PAY-MISSING0")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestURLRepository_Conflicts(t *testing.T) {
	repo := NewURLRepository(testutil.NewDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newURL(1, 1, "abc123")))
	assert.ErrorIs(t, repo.Create(ctx, newURL(1, 2, "abc123")), ErrShortCodeTaken)
	assert.ErrorIs(t, repo.Create(ctx, newURL(1, 1, "zzz999")), ErrPaymentAlreadyUsed)

	used, err := repo.ExistsByPaymentID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, used)
	used, err = repo.ExistsByPaymentID(ctx, 2)
	require.NoError(t, err)
	assert.False(t, used)
}

func TestClassifyURLConflict(t *testing.T) {
	assert.ErrorIs(t, classifyURLConflict(&pgconn.PgError{Code: "23505", ConstraintName: "idx_urls_short_code"}), ErrShortCodeTaken)
	assert.ErrorIs(t, classifyURLConflict(&pgconn.PgError{Code: "23505", ConstraintName: "idx_urls_payment_id"}), ErrPaymentAlreadyUsed)
	assert.ErrorIs(t, classifyURLConflict(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})), ErrDuplicate)
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func TestURLRepository_ListActiveAndClicks(t *testing.T) {
	repo := NewURLRepository(testutil.NewDB(t))
	ctx := context.Background()

	first := newURL(1, 1, "first1")
	second := newURL(1, 2, "second")
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.Create(ctx, newURL(2, 3, "other1")))

	list, err := repo.ListByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].ShortCode)
	assert.Equal(t, "first1", list[1].ShortCode)

	require.NoError(t, repo.IncrementClicks(ctx, first.ID))
	require.NoError(t, repo.IncrementClicks(ctx, first.ID))
	assert.ErrorIs(t, repo.IncrementClicks(ctx, 999), ErrURLNotFound)

	require.NoError(t, repo.SetActive(ctx, first.ID, false))
	assert.ErrorIs(t, repo.SetActive(ctx, 999, false), ErrURLNotFound)

	got, err := repo.GetByCode(ctx, "first1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.TotalClicks)
	assert.False(t, got.Active)

	_, err = repo.GetByCode(ctx, "nope00")
	assert.ErrorIs(t, err, ErrURLNotFound)

	var codes []string
	require.NoError(t, repo.EachCode(ctx, func(code string) { codes = append(codes, code) }))
	assert.ElementsMatch(t, []string{"first1", "second", "other1"}, codes)
}

func TestClickEventRepository_RecordAndCounts(t *testing.T) {
	db := testutil.NewDB(t)
	urls := NewURLRepository(db)
	clicks := NewClickEventRepository(db)
	ctx := context.Background()

	mine := newURL(1, 1, "mine01")
	theirs := newURL(2, 2, "their1")
	require.NoError(t, urls.Create(ctx, mine))
	require.NoError(t, urls.Create(ctx, theirs))

	day := func(d, h int) time.Time { return time.Date(2026, 2, d, h, 0, 0, 0, time.UTC) }
	for _, ev := range []*model.ClickEvent{
		{URLID: mine.ID, ClickedAt: day(3, 9)},
		{URLID: mine.ID, ClickedAt: day(1, 23)},
		{URLID: mine.ID, ClickedAt: day(3, 0)},
		{URLID: theirs.ID, ClickedAt: day(1, 1)},
	} {
		require.NoError(t, clicks.Record(ctx, ev))
	}

	err := clicks.Record(ctx, &model.ClickEvent{URLID: 999, ClickedAt: day(4, 0)})
	require.ErrorIs(t, err, ErrURLNotFound)

	var orphans int64
	require.NoError(t, db.Model(&model.ClickEvent{}).Where("url_id = ?", 999).Count(&orphans).Error)
	assert.Zero(t, orphans, "failed record must roll back the event insert")

	total, err := clicks.CountByURL(ctx, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	got, err := urls.GetByID(ctx, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.TotalClicks)

	byURL, err := clicks.DailyCountsByURL(ctx, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, []DailyCount{{Day: "2026-02-01", Clicks: 1}, {Day: "2026-02-03", Clicks: 2}}, byURL)

	byUser, err := clicks.DailyCountsByUser(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []DailyCount{{Day: "2026-02-01", Clicks: 1}}, byUser)

	none, err := clicks.DailyCountsByUser(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestClickEventRepository_DaysAreUTC(t *testing.T) {
	db := testutil.NewDB(t)
	urls := NewURLRepository(db)
	clicks := NewClickEventRepository(db)
	ctx := context.Background()

	u := newURL(1, 1, "utcday")
	require.NoError(t, urls.Create(ctx, u))

	kolkata := time.FixedZone("IST", 5*3600+30*60)
	at := time.Date(2026, 3, 2, 1, 30, 0, 0, kolkata) // 2026-03-01T20:00Z
	ev := &model.ClickEvent{URLID: u.ID, ClickedAt: at}
	require.NoError(t, clicks.Record(ctx, ev))
	assert.Equal(t, time.UTC, ev.ClickedAt.Location())

	days, err := clicks.DailyCountsByURL(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []DailyCount{{Day: "2026-03-01", Clicks: 1}}, days)
}

func TestClickEventRepository_DuplicateEventID(t *testing.T) {
	db := testutil.NewDB(t)
	urls := NewURLRepository(db)
	clicks := NewClickEventRepository(db)
	ctx := context.Background()

	u := newURL(1, 1, "dedupe")
	require.NoError(t, urls.Create(ctx, u))

	require.NoError(t, clicks.Record(ctx, &model.ClickEvent{EventID: "evt-1", URLID: u.ID}))
	err := clicks.Record(ctx, &model.ClickEvent{EventID: "evt-1", URLID: u.ID})
	assert.ErrorIs(t, err, ErrClickAlreadyRecorded)

	// Events without an id get a generated one and never collide.
	require.NoError(t, clicks.Record(ctx, &model.ClickEvent{URLID: u.ID}))
	require.NoError(t, clicks.Record(ctx, &model.ClickEvent{URLID: u.ID}))

	total, err := clicks.CountByURL(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	got, err := urls.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.TotalClicks, "duplicate must not bump the counter")
}

func TestDayExpr(t *testing.T) {
	pg := &gorm.DB{Config: &gorm.Config{Dialector: postgres.New(postgres.Config{})}}
	assert.Equal(t, "DATE(c.clicked_at AT TIME ZONE 'UTC')", dayExpr(pg, "c.clicked_at"))

	assert.Equal(t, "DATE(clicked_at)", dayExpr(testutil.NewDB(t), "clicked_at"))
}

func TestNormalizeDays(t *testing.T) {
	rows := normalizeDays([]DailyCount{{Day: "2026-02-01T00:00:00Z", Clicks: 2}, {Day: "2026-02-02", Clicks: 1}})
	assert.Equal(t, "2026-02-01", rows[0].Day)
	assert.Equal(t, "2026-02-02", rows[1].Day)
}
