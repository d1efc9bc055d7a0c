package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/captionly/metering/internal/core/domain/account"
	"github.com/captionly/metering/internal/core/domain/event"
	"github.com/captionly/metering/internal/core/domain/payment"
	metering_http "github.com/captionly/metering/internal/infrastructure/httpserver"
	"github.com/captionly/metering/test/mocks"
)

const serviceTokenSecret = "svc-secret"

func newTestServer(t *testing.T, deps metering_http.ServerDeps) *httptest.Server {
	t.Helper()
	srv := metering_http.NewServer(&metering_http.ServerConfig{
		Host: "127.0.0.1", Port: "0",
		ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second,
	}, serviceTokenSecret, logrus.New(), deps)

	ts := httptest.NewServer(srv.Echo())
	t.Cleanup(ts.Close)
	return ts
}

func serviceToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "extension-gateway",
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	signed, err := token.SignedString([]byte(serviceTokenSecret))
	if err != nil {
		t.Fatalf("failed to sign service token: %v", err)
	}
	return signed
}

func doJSON(t *testing.T, ts *httptest.Server, method, path string, body any, token string) (*http.Response, []byte) {
	t.Helper()
	var b []byte
	if body != nil {
		var err error
		b, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}
	req, _ := http.NewRequest(method, ts.URL+path, bytes.NewReader(b))
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	_, _ = out.ReadFrom(resp.Body)
	return resp, out.Bytes()
}

func TestCheckRateLimit_Throttled429(t *testing.T) {
	rl := &mocks.RateLimiterServiceMock{
		CheckRateLimitFn: func(ctx context.Context, customerID string) (*account.RateLimitDecision, error) {
			return nil, &account.ThrottledError{Tier: account.TierFree, RetryAfter: 180 * time.Millisecond}
		},
	}
	ts := newTestServer(t, metering_http.ServerDeps{
		RateLimiterService: rl,
		UsageService:       &mocks.UsageServiceMock{},
		PaymentLedger:      &mocks.PaymentLedgerServiceMock{},
		EventIngestor:      &mocks.EventIngestorServiceMock{},
		AuditTrailService:  &mocks.AuditTrailServiceMock{},
	})

	resp, body := doJSON(t, ts, http.MethodPost, "/api/v1/limits/check",
		map[string]string{"customer_id": "cus_1"}, serviceToken(t))
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", resp.StatusCode, body)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload["retry_after_ms"].(float64) != 180 {
		t.Fatalf("expected retry_after_ms 180, got %v", payload["retry_after_ms"])
	}
}

func TestCheckRateLimit_Allowed200(t *testing.T) {
	rl := &mocks.RateLimiterServiceMock{
		CheckRateLimitFn: func(ctx context.Context, customerID string) (*account.RateLimitDecision, error) {
			return &account.RateLimitDecision{Allowed: true, Tier: account.TierPro}, nil
		},
	}
	ts := newTestServer(t, metering_http.ServerDeps{
		RateLimiterService: rl,
		UsageService:       &mocks.UsageServiceMock{},
		PaymentLedger:      &mocks.PaymentLedgerServiceMock{},
		EventIngestor:      &mocks.EventIngestorServiceMock{},
		AuditTrailService:  &mocks.AuditTrailServiceMock{},
	})

	resp, body := doJSON(t, ts, http.MethodPost, "/api/v1/limits/check",
		map[string]string{"customer_id": "cus_1"}, serviceToken(t))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var decision account.RateLimitDecision
	if err := json.Unmarshal(body, &decision); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if !decision.Allowed || decision.Tier != account.TierPro {
		t.Fatalf("unexpected decision: %+v", decision)
	}
}

func TestCheckRateLimit_MissingToken401(t *testing.T) {
	ts := newTestServer(t, metering_http.ServerDeps{
		RateLimiterService: &mocks.RateLimiterServiceMock{},
		UsageService:       &mocks.UsageServiceMock{},
		PaymentLedger:      &mocks.PaymentLedgerServiceMock{},
		EventIngestor:      &mocks.EventIngestorServiceMock{},
		AuditTrailService:  &mocks.AuditTrailServiceMock{},
	})

	resp, _ := doJSON(t, ts, http.MethodPost, "/api/v1/limits/check",
		map[string]string{"customer_id": "cus_1"}, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestRecordUsage_QuotaExceeded402(t *testing.T) {
	usage := &mocks.UsageServiceMock{
		RecordUsageFn: func(ctx context.Context, req *account.RecordUsageRequest) (*account.UsageCounters, error) {
			return nil, &account.QuotaExceededError{Tier: account.TierFree, Limit: 5}
		},
	}
	ts := newTestServer(t, metering_http.ServerDeps{
		RateLimiterService: &mocks.RateLimiterServiceMock{},
		UsageService:       usage,
		PaymentLedger:      &mocks.PaymentLedgerServiceMock{},
		EventIngestor:      &mocks.EventIngestorServiceMock{},
		AuditTrailService:  &mocks.AuditTrailServiceMock{},
	})

	resp, body := doJSON(t, ts, http.MethodPost, "/api/v1/usage",
		map[string]any{"customer_id": "cus_1", "requests": 1}, serviceToken(t))
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d: %s", resp.StatusCode, body)
	}
	if !bytes.Contains(body, []byte("Usage limit reached. Please upgrade to continue.")) {
		t.Fatalf("expected upgrade message, got %s", body)
	}
}

func TestGetUsage_UnknownCustomer404(t *testing.T) {
	usage := &mocks.UsageServiceMock{
		GetUsageFn: func(ctx context.Context, customerID string) (*account.UsageCounters, error) {
			return nil, account.ErrNotFound
		},
	}
	ts := newTestServer(t, metering_http.ServerDeps{
		RateLimiterService: &mocks.RateLimiterServiceMock{},
		UsageService:       usage,
		PaymentLedger:      &mocks.PaymentLedgerServiceMock{},
		EventIngestor:      &mocks.EventIngestorServiceMock{},
		AuditTrailService:  &mocks.AuditTrailServiceMock{},
	})

	resp, _ := doJSON(t, ts, http.MethodGet, "/api/v1/accounts/cus_ghost/usage", nil, serviceToken(t))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGetPayment_Found200(t *testing.T) {
	ledger := &mocks.PaymentLedgerServiceMock{
		GetPaymentFn: func(ctx context.Context, paymentIntentID string) (*payment.Payment, error) {
			return &payment.Payment{PaymentIntentID: paymentIntentID, Status: payment.StatusSucceeded, Amount: 1999}, nil
		},
	}
	ts := newTestServer(t, metering_http.ServerDeps{
		RateLimiterService: &mocks.RateLimiterServiceMock{},
		UsageService:       &mocks.UsageServiceMock{},
		PaymentLedger:      ledger,
		EventIngestor:      &mocks.EventIngestorServiceMock{},
		AuditTrailService:  &mocks.AuditTrailServiceMock{},
	})

	resp, body := doJSON(t, ts, http.MethodGet, "/api/v1/payments/pi_1", nil, serviceToken(t))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var p payment.Payment
	if err := json.Unmarshal(body, &p); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if p.PaymentIntentID != "pi_1" || p.Status != payment.StatusSucceeded {
		t.Fatalf("unexpected payment: %+v", p)
	}
}

func TestGetAuditEntries_FiltersForwarded(t *testing.T) {
	trail := &mocks.AuditTrailServiceMock{
		GetEntriesFn: func(ctx context.Context, filter *event.AuditFilter) ([]*event.AuditEntry, int, error) {
			if filter.Status == nil || *filter.Status != event.StatusError {
				t.Fatalf("expected status filter from query, got %+v", filter)
			}
			if filter.Limit != 50 {
				t.Fatalf("expected default limit 50, got %d", filter.Limit)
			}
			return []*event.AuditEntry{{EventID: "evt_1", Status: event.StatusError}}, 1, nil
		},
	}
	ts := newTestServer(t, metering_http.ServerDeps{
		RateLimiterService: &mocks.RateLimiterServiceMock{},
		UsageService:       &mocks.UsageServiceMock{},
		PaymentLedger:      &mocks.PaymentLedgerServiceMock{},
		EventIngestor:      &mocks.EventIngestorServiceMock{},
		AuditTrailService:  trail,
	})

	resp, body := doJSON(t, ts, http.MethodGet, "/api/v1/audit/events?status=error", nil, serviceToken(t))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var payload struct {
		Entries []*event.AuditEntry `json:"entries"`
		Total   int                 `json:"total"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload.Total != 1 || len(payload.Entries) != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}
