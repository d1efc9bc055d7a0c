package httpserver_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	metering_http "github.com/captionly/metering/internal/infrastructure/httpserver"

	"github.com/captionly/metering/internal/core/domain/event"
	"github.com/captionly/metering/test/mocks"
)

func webhookServer(t *testing.T, ingestor *mocks.EventIngestorServiceMock) *httptest.Server {
	return newTestServer(t, metering_http.ServerDeps{
		RateLimiterService: &mocks.RateLimiterServiceMock{},
		UsageService:       &mocks.UsageServiceMock{},
		PaymentLedger:      &mocks.PaymentLedgerServiceMock{},
		EventIngestor:      ingestor,
		AuditTrailService:  &mocks.AuditTrailServiceMock{},
	})
}

func postWebhook(t *testing.T, ts *httptest.Server, body, signature string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(event.SignatureHeader, signature)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	return resp
}

func TestWebhook_InvalidSignature400(t *testing.T) {
	ingestor := &mocks.EventIngestorServiceMock{
		ProcessFn: func(ctx context.Context, body []byte, signature string) (*event.Outcome, error) {
			return nil, event.ErrInvalidSignature
		},
	}
	ts := webhookServer(t, ingestor)

	resp := postWebhook(t, ts, `{"id":"evt_1"}`, "sha256=bad")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestWebhook_AcceptedDelivery200(t *testing.T) {
	var gotSignature string
	ingestor := &mocks.EventIngestorServiceMock{
		ProcessFn: func(ctx context.Context, body []byte, signature string) (*event.Outcome, error) {
			gotSignature = signature
			return &event.Outcome{EventID: "evt_1", Type: event.TypeSubscriptionUpdated, Status: event.StatusAccepted}, nil
		},
	}
	ts := webhookServer(t, ingestor)

	resp := postWebhook(t, ts, `{"id":"evt_1","type":"customer.subscription.updated"}`, "sha256=aabb")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if gotSignature != "sha256=aabb" {
		t.Fatalf("expected the signature header forwarded, got %q", gotSignature)
	}
}

func TestWebhook_DownstreamFailureStillAcknowledged(t *testing.T) {
	ingestor := &mocks.EventIngestorServiceMock{
		ProcessFn: func(ctx context.Context, body []byte, signature string) (*event.Outcome, error) {
			return &event.Outcome{EventID: "evt_1", Type: event.TypePaymentSucceeded, Status: event.StatusError}, nil
		},
	}
	ts := webhookServer(t, ingestor)

	resp := postWebhook(t, ts, `{"id":"evt_1"}`, "sha256=aabb")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("a processing failure must still acknowledge the delivery, got %d", resp.StatusCode)
	}
}
