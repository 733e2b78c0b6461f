package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/alicebob/miniredis/v2"
	"github.com/danribes/mystic-ecom-sub011/api/middleware"
	"github.com/danribes/mystic-ecom-sub011/api/weberr"
	"github.com/danribes/mystic-ecom-sub011/config"
	"github.com/danribes/mystic-ecom-sub011/core/webhook"
	"github.com/danribes/mystic-ecom-sub011/rate"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	log, _ := test.NewNullLogger()

	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rdb.Close() })

	limiter := rate.NewLimiter(1, time.Minute, rate.Every(time.Hour))
	t.Cleanup(limiter.Stop)

	mux := APIMux(APIConfig{
		CorsOrigin: "https://shop.example.com",
		Log:        log,
		Session:    scs.New(),
		StripeCfg:  config.Stripe{WebhookSecret: "whsec_test"},
		Pipeline:   webhook.NewPipeline(webhook.PipelineConfig{Log: log}),
		Guard:      webhook.NewGuard(rdb, log),
		Limiter:    limiter,
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (*http.Response, weberr.ErrorResponse) {
	t.Helper()

	r, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}

	w, err := srv.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	var er weberr.ErrorResponse
	if w.StatusCode >= http.StatusBadRequest {
		if err := json.NewDecoder(w.Body).Decode(&er); err != nil {
			t.Fatalf("decoding error body: %v", err)
		}
	}
	return w, er
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	srv := newServer(t)

	paths := []struct{ method, path string }{
		{http.MethodGet, "/orders"},
		{http.MethodGet, "/orders/order_1"},
		{http.MethodGet, "/cart"},
		{http.MethodGet, "/users/current"},
		{http.MethodPost, "/admin/orders/order_1/refund"},
		{http.MethodPost, "/orders/paypal/PP-1/capture"},
	}

	for _, p := range paths {
		w, er := do(t, srv, p.method, p.path, "")
		if w.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", p.method, p.path, w.StatusCode)
		}

		exp := weberr.ErrorResponse{Error: "not authorized to access resource"}
		if diff := cmp.Diff(exp, er); diff != "" {
			t.Errorf("%s %s: unexpected body (-want +got):\n%s", p.method, p.path, diff)
		}

		if w.Header.Get(middleware.RequestIDHeader) == "" {
			t.Errorf("%s %s: missing request id", p.method, p.path)
		}
	}
}

func TestStripeWebhookRequiresSignature(t *testing.T) {
	srv := newServer(t)

	w, _ := do(t, srv, http.MethodPost, "/webhooks/stripe", `{"id":"evt_1"}`)
	if w.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.StatusCode)
	}
}

func TestLoginIsRateLimited(t *testing.T) {
	srv := newServer(t)

	w, _ := do(t, srv, http.MethodPost, "/auth/login", "{")
	if w.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.StatusCode)
	}

	w, er := do(t, srv, http.MethodPost, "/auth/login", "{")
	if w.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.StatusCode)
	}
	if er.Error != "rate limit exceeded, retry later" {
		t.Fatalf("unexpected error message %q", er.Error)
	}
}

func TestCorsPreflight(t *testing.T) {
	srv := newServer(t)

	w, _ := do(t, srv, http.MethodOptions, "/orders/stripe", "")
	if w.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.StatusCode)
	}
	if got := w.Header.Get("Access-Control-Allow-Origin"); got != "https://shop.example.com" {
		t.Fatalf("unexpected allowed origin %q", got)
	}
}
