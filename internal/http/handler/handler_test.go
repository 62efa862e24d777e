package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PayLink/config"
	"github.com/sifan077/PayLink/internal/app/repository"
	"github.com/sifan077/PayLink/internal/app/service"
	httpUtil "github.com/sifan077/PayLink/internal/http/util"
	"github.com/sifan077/PayLink/internal/infra/qrcode"
	"github.com/sifan077/PayLink/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const testBaseURL = "http://sho.rt"

type testApp struct {
	app  *fiber.App
	urls repository.URLRepository
}

func newTestApp(t *testing.T, checks map[string]HealthCheck) *testApp {
	t.Helper()
	db := testutil.NewDB(t)

	users := repository.NewUserRepository(db)
	payments := repository.NewPaymentRepository(db)
	urls := repository.NewURLRepository(db)
	clicks := repository.NewClickEventRepository(db)

	tokens := httpUtil.NewTokenSigner([]byte("test-secret"), time.Hour, "paylink")
	authSvc := service.NewAuthService(users, tokens)
	paymentSvc := service.NewPaymentService(payments, qrcode.NewEncoder(128), config.PaymentConfig{
		Amount:       100,
		Currency:     "INR",
		MerchantName: "PayLink",
		UPIID:        "merchant@upi",
	})
	urlSvc := service.NewURLService(urls, paymentSvc, service.NewShortCodeGenerator(6, nil), nil, nil, service.URLOptions{BaseURL: testBaseURL})
	analyticsSvc := service.NewAnalyticsService(clicks, urls)

	app := fiber.New()
	NewAPIHandler(APIDeps{
		Auth:      authSvc,
		Payments:  paymentSvc,
		URLs:      urlSvc,
		Analytics: analyticsSvc,
	}).Register(app)
	NewRedirectHandler(RedirectDeps{
		URLs:    urlSvc,
		Clicks:  analyticsSvc,
		BaseURL: testBaseURL,
		Checks:  checks,
	}).Register(app)

	return &testApp{app: app, urls: urls}
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}, headers ...string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (a *testApp) signup(t *testing.T, name, email string) AuthResponse {
	t.Helper()
	resp, body := a.do(t, fiber.MethodPost, "/api/auth/signup", "", fiber.Map{"name": name, "email": email, "password": "pw"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	var out AuthResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func (a *testApp) paidReference(t *testing.T, token string) string {
	t.Helper()
	resp, body := a.do(t, fiber.MethodPost, "/api/payment/generate-qr", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	var qr QRCodeResponse
	require.NoError(t, json.Unmarshal(body, &qr))

	resp, body = a.do(t, fiber.MethodPost, "/api/payment/confirm?paymentReferenceId="+qr.PaymentReferenceID, token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	return qr.PaymentReferenceID
}

func (a *testApp) shorten(t *testing.T, token, target, reference string) URLResponse {
	t.Helper()
	resp, body := a.do(t, fiber.MethodPost, "/api/url/shorten", token, fiber.Map{"originalUrl": target, "paymentReferenceId": reference})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	var out URLResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func errorMessage(t *testing.T, body []byte) string {
	t.Helper()
	var out struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out.Error
}

func TestEndToEndPaywalledShortLink(t *testing.T) {
	ta := newTestApp(t, nil)
	alice := ta.signup(t, "Alice", "a@x.com")
	require.NotEmpty(t, alice.Token)
	assert.Equal(t, "a@x.com", alice.Email)

	resp, body := ta.do(t, fiber.MethodPost, "/api/payment/generate-qr", alice.Token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var qr QRCodeResponse
	require.NoError(t, json.Unmarshal(body, &qr))
	assert.Regexp(t, `^PAY-[0-9A-F]{8}$`, qr.PaymentReferenceID)
	assert.Equal(t, 100, qr.Amount)
	assert.Equal(t, "merchant@upi", qr.UPIID)
	assert.NotEmpty(t, qr.QRCodeBase64)

	resp, body = ta.do(t, fiber.MethodPost, "/api/payment/confirm?paymentReferenceId="+qr.PaymentReferenceID, alice.Token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true,"message":"Payment confirmed successfully"}`, string(body))

	short := ta.shorten(t, alice.Token, "https://example.com", qr.PaymentReferenceID)
	assert.Len(t, short.ShortCode, 6)
	assert.Equal(t, testBaseURL+"/"+short.ShortCode, short.ShortURL)
	assert.Zero(t, short.TotalClicks)

	resp, _ = ta.do(t, fiber.MethodGet, "/"+short.ShortCode, "", nil, "X-Forwarded-For", "203.0.113.9, 10.0.0.1", "Referer", "https://ref.example")
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://example.com", resp.Header.Get(fiber.HeaderLocation))

	resp, body = ta.do(t, fiber.MethodGet, "/api/analytics/"+short.ShortCode, alice.Token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	var stats struct {
		URLID        uint             `json:"urlId"`
		ShortCode    string           `json:"shortCode"`
		TotalClicks  int64            `json:"totalClicks"`
		ClicksByDate map[string]int64 `json:"clicksByDate"`
	}
	require.NoError(t, json.Unmarshal(body, &stats))
	today := time.Now().UTC().Format("2006-01-02")
	assert.Equal(t, short.ID, stats.URLID)
	assert.Equal(t, int64(1), stats.TotalClicks)
	assert.Equal(t, map[string]int64{today: 1}, stats.ClicksByDate)

	resp, body = ta.do(t, fiber.MethodGet, "/api/analytics/user", alice.Token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"`+today+`":1}`, string(body))

	resp, body = ta.do(t, fiber.MethodGet, "/api/url/user", alice.Token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var list []URLResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), list[0].TotalClicks)
}

func TestAuthEndpoints(t *testing.T) {
	ta := newTestApp(t, nil)
	alice := ta.signup(t, "Alice", "a@x.com")

	resp, body := ta.do(t, fiber.MethodPost, "/api/auth/signup", "", fiber.Map{"name": "Again", "email": "a@x.com", "password": "pw"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "email already registered", errorMessage(t, body))

	resp, body = ta.do(t, fiber.MethodPost, "/api/auth/signup", "", fiber.Map{"name": "Bob", "email": "nope", "password": "pw"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "email must be a valid email address", errorMessage(t, body))

	resp, _ = ta.do(t, fiber.MethodPost, "/api/auth/login", "", fiber.Map{"email": "a@x.com", "password": "bad"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, body = ta.do(t, fiber.MethodPost, "/api/auth/login", "", fiber.Map{"email": "A@X.com", "password": "pw"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var login AuthResponse
	require.NoError(t, json.Unmarshal(body, &login))
	assert.Equal(t, alice.ID, login.ID)

	resp, body = ta.do(t, fiber.MethodGet, "/api/auth/me", login.Token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"email":"a@x.com","name":"Alice","id":`+jsonUint(alice.ID)+`}`, string(body))

	resp, _ = ta.do(t, fiber.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = ta.do(t, fiber.MethodGet, "/api/auth/me", "garbage", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestPaymentAndShortenErrors(t *testing.T) {
	ta := newTestApp(t, nil)
	alice := ta.signup(t, "Alice", "a@x.com")
	bob := ta.signup(t, "Bob", "b@x.com")

	resp, body := ta.do(t, fiber.MethodPost, "/api/payment/generate-qr", alice.Token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var pending QRCodeResponse
	require.NoError(t, json.Unmarshal(body, &pending))

	resp, _ = ta.do(t, fiber.MethodPost, "/api/payment/confirm?paymentReferenceId="+pending.PaymentReferenceID, bob.Token, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, _ = ta.do(t, fiber.MethodPost, "/api/payment/confirm", alice.Token, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = ta.do(t, fiber.MethodPost, "/api/payment/confirm?paymentReferenceId=PAY-00000000", alice.Token, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, body = ta.do(t, fiber.MethodGet, "/api/payment/"+pending.PaymentReferenceID, alice.Token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var payment PaymentResponse
	require.NoError(t, json.Unmarshal(body, &payment))
	assert.Equal(t, "PENDING", payment.Status)
	assert.Nil(t, payment.ConfirmedAt)

	resp, _ = ta.do(t, fiber.MethodGet, "/api/payment/"+pending.PaymentReferenceID, bob.Token, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = ta.do(t, fiber.MethodPost, "/api/url/shorten", alice.Token, fiber.Map{"originalUrl": "https://example.com", "paymentReferenceId": pending.PaymentReferenceID})
	assert.Equal(t, fiber.StatusPaymentRequired, resp.StatusCode)

	ref := ta.paidReference(t, alice.Token)

	resp, _ = ta.do(t, fiber.MethodPost, "/api/payment/confirm?paymentReferenceId="+ref, alice.Token, nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp, _ = ta.do(t, fiber.MethodPost, "/api/url/shorten", bob.Token, fiber.Map{"originalUrl": "https://example.com", "paymentReferenceId": ref})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, body = ta.do(t, fiber.MethodPost, "/api/url/shorten", alice.Token, fiber.Map{"originalUrl": "", "paymentReferenceId": ref})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "originalUrl is required", errorMessage(t, body))

	resp, body = ta.do(t, fiber.MethodPost, "/api/url/shorten", alice.Token, fiber.Map{"originalUrl": "   ", "paymentReferenceId": ref})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "originalUrl is required", errorMessage(t, body))

	bare := ta.shorten(t, alice.Token, " example.com/page ", ta.paidReference(t, alice.Token))
	assert.Equal(t, "example.com/page", bare.OriginalURL)

	ta.shorten(t, alice.Token, "https://example.com", ref)

	resp, _ = ta.do(t, fiber.MethodPost, "/api/url/shorten", alice.Token, fiber.Map{"originalUrl": "https://example.org", "paymentReferenceId": ref})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp, _ = ta.do(t, fiber.MethodPost, "/api/url/shorten", "", fiber.Map{"originalUrl": "https://example.org", "paymentReferenceId": ref})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRedirectUnknownAndDeactivated(t *testing.T) {
	ta := newTestApp(t, nil)
	alice := ta.signup(t, "Alice", "a@x.com")
	bob := ta.signup(t, "Bob", "b@x.com")
	short := ta.shorten(t, alice.Token, "https://example.com", ta.paidReference(t, alice.Token))

	resp, body := ta.do(t, fiber.MethodGet, "/zzzzzz", "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "short url not found", errorMessage(t, body))

	resp, _ = ta.do(t, fiber.MethodPost, "/api/url/"+short.ShortCode+"/deactivate", bob.Token, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = ta.do(t, fiber.MethodPost, "/api/url/"+short.ShortCode+"/deactivate", alice.Token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body = ta.do(t, fiber.MethodGet, "/"+short.ShortCode, "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "short url is no longer active", errorMessage(t, body))

	resp, body = ta.do(t, fiber.MethodGet, "/"+short.ShortCode, "", nil, "Accept", "text/html,application/xhtml+xml")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "text/html")
	assert.Contains(t, string(body), "Short url is no longer active.")

	stored, err := ta.urls.GetByCode(context.Background(), short.ShortCode)
	require.NoError(t, err)
	assert.Zero(t, stored.TotalClicks)
}

func TestAnalyticsOwnershipAndExport(t *testing.T) {
	ta := newTestApp(t, nil)
	alice := ta.signup(t, "Alice", "a@x.com")
	bob := ta.signup(t, "Bob", "b@x.com")
	short := ta.shorten(t, alice.Token, "https://example.com", ta.paidReference(t, alice.Token))

	resp, _ := ta.do(t, fiber.MethodGet, "/"+short.ShortCode, "", nil)
	require.Equal(t, fiber.StatusFound, resp.StatusCode)

	resp, _ = ta.do(t, fiber.MethodGet, "/api/analytics/"+short.ShortCode, bob.Token, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = ta.do(t, fiber.MethodGet, "/api/analytics/nope00", alice.Token, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, body := ta.do(t, fiber.MethodGet, "/api/analytics/user", bob.Token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{}`, string(body))

	resp, body = ta.do(t, fiber.MethodGet, "/api/analytics/user/export", alice.Token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, xlsxContentType, resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), ".xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("URLs")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, short.ShortCode, rows[1][0])
}

func TestHealth(t *testing.T) {
	ta := newTestApp(t, map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
	})
	resp, body := ta.do(t, fiber.MethodGet, "/health", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"database":"up"`)

	failing := newTestApp(t, map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	resp, body = failing.do(t, fiber.MethodGet, "/health", "", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, string(body), `"redis":"down"`)
}

func jsonUint(v uint) string {
	raw, _ := json.Marshal(v)
	return string(raw)
}
