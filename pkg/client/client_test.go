package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/wellness-sync/internal/testutil"
	"github.com/Sternrassler/wellness-sync/pkg/auth"
	"github.com/rs/zerolog"
)

type redirectCounter struct {
	count atomic.Int32
}

func (r *redirectCounter) RedirectToLogin(string) {
	r.count.Add(1)
}

func newTestClient(t *testing.T, baseURL string) (*Client, *auth.StaticToken, *redirectCounter) {
	t.Helper()

	tokens := auth.NewStaticToken("test-token")
	redirects := &redirectCounter{}
	guard := auth.NewGuard(tokens, redirects)
	guard.SetLogger(zerolog.Nop())

	logger := zerolog.Nop()
	cfg := DefaultConfig(baseURL, guard)
	cfg.Retry = RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond}
	cfg.RateLimit = 0
	cfg.Logger = &logger

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, tokens, redirects
}

func TestNew_Validation(t *testing.T) {
	guard := auth.NewGuard(auth.NewStaticToken("t"), nil)

	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing base url", mutate: func(c *Config) { c.BaseURL = "" }, errorMsg: "base url is required"},
		{name: "empty user agent", mutate: func(c *Config) { c.UserAgent = "" }, errorMsg: "user-agent is required"},
		{name: "nil auth", mutate: func(c *Config) { c.Auth = nil }, errorMsg: "authenticator is required"},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, errorMsg: "timeout must be > 0 (got 0s)"},
		{name: "negative retries", mutate: func(c *Config) { c.Retry.MaxRetries = -1 }, errorMsg: "max_retries must be >= 0 (got -1)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("http://localhost:8000", guard)
			tt.mutate(&cfg)

			c, err := New(cfg)
			if tt.errorMsg != "" {
				if err == nil {
					t.Fatal("Expected error but got nil")
				}
				if err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}
			if err != nil || c == nil {
				t.Fatalf("Unexpected error: %v", err)
			}
		})
	}
}

func TestClient_Get_SendsHeaders(t *testing.T) {
	mock := testutil.NewMockBackend()
	defer mock.Close()
	mock.SetResponse("/api/v1/profile", testutil.NewJSONResponse(`{"id": "u1"}`))

	c, _, _ := newTestClient(t, mock.URL())

	resp, err := c.Get(context.Background(), "/api/v1/profile")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	var profile struct {
		ID string `json:"id"`
	}
	if err := resp.Decode(&profile); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if profile.ID != "u1" {
		t.Errorf("profile.ID = %q, want u1", profile.ID)
	}

	h := mock.GetLastRequestHeader()
	if got := h.Get("Authorization"); got != "Bearer test-token" {
		t.Errorf("Authorization = %q", got)
	}
	if h.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
	if h.Get("User-Agent") == "" {
		t.Error("User-Agent header missing")
	}
}

func TestClient_Get_Query(t *testing.T) {
	mock := testutil.NewMockBackend()
	defer mock.Close()

	var gotQuery url.Values
	mock.SetHandler("/api/v1/specialist/slots", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`[]`))
	})

	c, _, _ := newTestClient(t, mock.URL())
	q := url.Values{"status": {"available"}, "date_from": {"2026-10-01"}}
	if _, err := c.Get(context.Background(), "/api/v1/specialist/slots", WithQuery(q)); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if gotQuery.Get("status") != "available" || gotQuery.Get("date_from") != "2026-10-01" {
		t.Errorf("query = %v", gotQuery)
	}
}

func TestClient_ServerErrorRetriedToBound(t *testing.T) {
	mock := testutil.NewMockBackend()
	defer mock.Close()
	mock.SetResponse("/api/v1/specialist/dashboard/overview", testutil.NewServerErrorResponse())

	c, _, _ := newTestClient(t, mock.URL())

	_, err := c.Get(context.Background(), "/api/v1/specialist/dashboard/overview")
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("expected ErrRetryExhausted, got %v", err)
	}
	if got := mock.GetPathCount("/api/v1/specialist/dashboard/overview"); got != 4 {
		t.Errorf("server saw %d attempts, want 4", got)
	}

	apiErr := AsAPIError(err)
	if apiErr.ErrorClass != ErrorClassServer || apiErr.StatusCode != 500 {
		t.Errorf("error = %+v", apiErr)
	}
	if apiErr.Message != "Internal server error" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestClient_RecoversAfterTransientError(t *testing.T) {
	mock := testutil.NewMockBackend()
	defer mock.Close()
	mock.SetSequence("/api/v1/forum/questions",
		testutil.NewServerErrorResponse(),
		testutil.NewJSONResponse(`[]`),
	)

	c, _, _ := newTestClient(t, mock.URL())
	resp, err := c.Get(context.Background(), "/api/v1/forum/questions")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", resp.Attempts)
	}
}

func TestClient_ClientErrorNotRetried(t *testing.T) {
	mock := testutil.NewMockBackend()
	defer mock.Close()
	mock.SetResponse("/api/v1/forum/questions/q1", testutil.NewClientErrorResponse(http.StatusForbidden, "Not your question"))

	c, _, redirects := newTestClient(t, mock.URL())

	_, err := c.Get(context.Background(), "/api/v1/forum/questions/q1")
	apiErr := AsAPIError(err)
	if apiErr.ErrorClass != ErrorClassClient || apiErr.StatusCode != 403 {
		t.Fatalf("error = %+v", apiErr)
	}
	if apiErr.Message != "Not your question" {
		t.Errorf("message = %q", apiErr.Message)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("requests = %d, want 1", mock.GetRequestCount())
	}
	if redirects.count.Load() != 0 {
		t.Error("403 must not redirect to login")
	}
}

func TestClient_UnauthorizedClearsAndRedirectsOnce(t *testing.T) {
	mock := testutil.NewMockBackend()
	defer mock.Close()
	mock.SetResponse("/api/v1/specialist/dashboard/overview", testutil.NewUnauthorizedResponse())

	c, tokens, redirects := newTestClient(t, mock.URL())
	ctx := context.Background()

	_, err := c.Get(ctx, "/api/v1/specialist/dashboard/overview")
	if ClassOf(err) != ErrorClassAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("401 was retried: %d requests", mock.GetRequestCount())
	}
	if _, err := tokens.Token(ctx); !errors.Is(err, auth.ErrNoToken) {
		t.Error("credentials were not cleared")
	}

	// A follow-up call has no token any more: no request, no second redirect.
	_, err = c.Get(ctx, "/api/v1/specialist/dashboard/overview")
	if ClassOf(err) != ErrorClassAuth || !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("expected not-authenticated error, got %v", err)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("request sent without token")
	}
	if got := redirects.count.Load(); got != 1 {
		t.Errorf("redirects = %d, want exactly 1", got)
	}
}

func TestClient_TimeoutIsNetworkError(t *testing.T) {
	mock := testutil.NewMockBackend()
	defer mock.Close()
	mock.SetResponse("/api/v1/specialist/slots/summary", testutil.MockResponse{
		StatusCode: 200,
		Body:       `{}`,
		Delay:      200 * time.Millisecond,
	})

	c, _, _ := newTestClient(t, mock.URL())

	_, err := c.Get(context.Background(), "/api/v1/specialist/slots/summary",
		WithTimeout(20*time.Millisecond), WithRetry(RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond}))
	if ClassOf(err) != ErrorClassNetwork {
		t.Fatalf("expected network error, got %v", err)
	}
	if AsAPIError(err).Message != "request timed out" {
		t.Errorf("message = %q", AsAPIError(err).Message)
	}
	if got := mock.GetRequestCount(); got != 2 {
		t.Errorf("timeouts should be retried: %d requests, want 2", got)
	}
}

func TestClient_CallerCancellation(t *testing.T) {
	mock := testutil.NewMockBackend()
	defer mock.Close()
	mock.SetResponse("/api/v1/appointments", testutil.MockResponse{
		StatusCode: 200,
		Body:       `[]`,
		Delay:      500 * time.Millisecond,
	})

	c, _, _ := newTestClient(t, mock.URL())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.Get(ctx, "/api/v1/appointments")
	if !IsCancelled(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("cancelled request was retried")
	}
}

func TestClient_MutationsNotRetriedByDefault(t *testing.T) {
	mock := testutil.NewMockBackend()
	defer mock.Close()
	mock.SetResponse("/api/v1/forum/questions", testutil.NewServerErrorResponse())

	c, _, _ := newTestClient(t, mock.URL())

	_, err := c.Post(context.Background(), "/api/v1/forum/questions", map[string]string{"title": "t"})
	if ClassOf(err) != ErrorClassServer {
		t.Fatalf("expected server error, got %v", err)
	}
	if got := mock.GetRequestCount(); got != 1 {
		t.Errorf("POST attempted %d times, want 1", got)
	}
}

func TestClient_ConditionalGet(t *testing.T) {
	mock := testutil.NewMockBackend()
	defer mock.Close()
	mock.SetHandler("/api/v1/specialist/dashboard/overview",
		testutil.NewETagHandler(`"v1"`, `{"total_patients": 7}`))

	c, _, _ := newTestClient(t, mock.URL())
	ctx := context.Background()

	first, err := c.Get(ctx, "/api/v1/specialist/dashboard/overview")
	if err != nil {
		t.Fatalf("first Get() error = %v", err)
	}
	if first.NotModified {
		t.Error("first response cannot be 304")
	}

	second, err := c.Get(ctx, "/api/v1/specialist/dashboard/overview")
	if err != nil {
		t.Fatalf("second Get() error = %v", err)
	}
	if !second.NotModified {
		t.Error("second response should be answered by 304")
	}
	if string(second.Data) != `{"total_patients": 7}` {
		t.Errorf("cached body = %s", second.Data)
	}
	if mock.GetConditionalCount() != 1 {
		t.Errorf("conditional requests = %d, want 1", mock.GetConditionalCount())
	}
}

func TestClient_RetryAfterRecorded(t *testing.T) {
	mock := testutil.NewMockBackend()
	defer mock.Close()
	mock.SetResponse("/api/v1/forum/questions", testutil.NewRateLimitResponse("30"))

	c, _, _ := newTestClient(t, mock.URL())

	_, err := c.Post(context.Background(), "/api/v1/forum/questions", map[string]string{})
	if ClassOf(err) != ErrorClassRateLimit {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if !c.Limiter().State().Blocked() {
		t.Error("limiter should be blocked by Retry-After")
	}
}
