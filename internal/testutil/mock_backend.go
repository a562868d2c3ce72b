// Package testutil provides testing utilities for the wellness backend client.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockBackend is a configurable mock of the platform REST backend.
type MockBackend struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	PathCounts        map[string]int
	ConditionalCount  int
	LastRequestHeader http.Header
}

// NewMockBackend creates a new mock backend server.
func NewMockBackend() *MockBackend {
	mock := &MockBackend{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		PathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.PathCounts[r.URL.Path]++
		mock.LastRequestHeader = r.Header.Clone()
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			mock.ConditionalCount++
		}
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail": "Not found"}`))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockBackend) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockBackend) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockBackend) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ConditionalCount = 0
	m.PathCounts = make(map[string]int)
	m.LastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockBackend) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockBackend) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, r, resp)
	})
}

// SetSequence answers successive requests to path with resps in order;
// the last response repeats once the sequence is used up.
func (m *MockBackend) SetSequence(path string, resps ...MockResponse) {
	var mu sync.Mutex
	next := 0
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := resps[next]
		if next < len(resps)-1 {
			next++
		}
		mu.Unlock()
		writeResponse(w, r, resp)
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockBackend) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetPathCount returns the number of requests made to path.
func (m *MockBackend) GetPathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PathCounts[path]
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockBackend) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ConditionalCount
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockBackend) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

func writeResponse(w http.ResponseWriter, r *http.Request, resp MockResponse) {
	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewJSONResponse creates a 200 OK JSON response.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"detail": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewUnauthorizedResponse creates a 401 Unauthorized response.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"detail": "Could not validate credentials"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewClientErrorResponse creates a 4xx response carrying {"message": msg}.
func NewClientErrorResponse(status int, msg string) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body:       `{"message": "` + msg + `"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewRateLimitResponse creates a 429 response with a Retry-After hint.
func NewRateLimitResponse(retryAfter string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"detail": "Too many requests"}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Retry-After":  retryAfter,
		},
	}
}

// NewETagHandler answers 304 when If-None-Match equals etag, else 200 with data.
func NewETagHandler(etag string, data string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(data))
	}
}
