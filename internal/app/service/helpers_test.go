package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sifan077/PayLink/config"
	"github.com/sifan077/PayLink/internal/app/model"
	"github.com/sifan077/PayLink/internal/app/repository"
	"github.com/sifan077/PayLink/internal/testutil"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeTokens struct{}

func (fakeTokens) Issue(subject string) (string, error) { return "token:" + subject, nil }

func (fakeTokens) Subject(token string) (string, error) {
	if !strings.HasPrefix(token, "token:") {
		return "", errors.New("bad token")
	}
	return strings.TrimPrefix(token, "token:"), nil
}

type fakeQR struct {
	err      error
	rendered []string
}

func (f *fakeQR) Base64PNG(content string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.rendered = append(f.rendered, content)
	return "cG5n", nil
}

var testPaymentConfig = config.PaymentConfig{
	Amount:       100,
	Currency:     "INR",
	MerchantName: "Pay Link",
	UPIID:        "merchant@upi",
}

type testEnv struct {
	users     repository.UserRepository
	payments  repository.PaymentRepository
	urls      repository.URLRepository
	clicks    repository.ClickEventRepository
	auth      AuthService
	payment   PaymentService
	url       URLService
	analytics AnalyticsService
	qr        *fakeQR
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)

	env := &testEnv{
		users:    repository.NewUserRepository(db),
		payments: repository.NewPaymentRepository(db),
		urls:     repository.NewURLRepository(db),
		clicks:   repository.NewClickEventRepository(db),
		qr:       &fakeQR{},
	}
	auth := NewAuthService(env.users, fakeTokens{}).(*authService)
	auth.bcryptCost = bcrypt.MinCost
	env.auth = auth
	env.payment = NewPaymentService(env.payments, env.qr, testPaymentConfig)
	env.url = NewURLService(env.urls, env.payment, NewShortCodeGenerator(6, NewCodeFilter(1000)), nil, nil, URLOptions{BaseURL: "http://sho.rt/"})
	env.analytics = NewAnalyticsService(env.clicks, env.urls)
	return env
}

func (e *testEnv) signup(t *testing.T, name, email string) *model.User {
	t.Helper()
	res, err := e.auth.Signup(context.Background(), SignupInput{Name: name, Email: email, Password: "pw"})
	require.NoError(t, err)
	return res.User
}

// confirmedPayment issues and confirms a payment for user.
func (e *testEnv) confirmedPayment(t *testing.T, userID uint) string {
	t.Helper()
	ctx := context.Background()
	req, err := e.payment.GeneratePaymentRequest(ctx, userID)
	require.NoError(t, err)
	_, err = e.payment.ConfirmPayment(ctx, req.Reference, userID)
	require.NoError(t, err)
	return req.Reference
}
