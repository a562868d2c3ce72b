package cache

import (
	"net/http"
	"sync"
	"time"
)

// Validator remembers the ETag/Last-Modified of a GET response together
// with its body, so a later 304 can be answered locally.
type Validator struct {
	ETag         string
	LastModified time.Time
	Body         []byte
	StoredAt     time.Time
}

// ValidatorFromResponse builds a Validator from a 200 response and its
// already-read body. It returns nil when the response carries neither
// header.
func ValidatorFromResponse(resp *http.Response, body []byte) *Validator {
	if resp == nil || resp.StatusCode != http.StatusOK {
		return nil
	}
	v := &Validator{
		ETag:     resp.Header.Get("ETag"),
		Body:     body,
		StoredAt: time.Now(),
	}
	if lastModStr := resp.Header.Get("Last-Modified"); lastModStr != "" {
		if lastMod, err := http.ParseTime(lastModStr); err == nil {
			v.LastModified = lastMod
		}
	}
	if v.ETag == "" && v.LastModified.IsZero() {
		return nil
	}
	return v
}

// AddConditionalHeaders sets If-None-Match (preferred) or If-Modified-Since.
func AddConditionalHeaders(req *http.Request, v *Validator) {
	if v == nil || req == nil {
		return
	}
	if v.ETag != "" {
		req.Header.Set("If-None-Match", v.ETag)
	} else if !v.LastModified.IsZero() {
		req.Header.Set("If-Modified-Since", v.LastModified.Format(http.TimeFormat))
	}
	ConditionalRequestsSent.Inc()
}

// Validators is a concurrency-safe map of request URL to Validator.
type Validators struct {
	mu    sync.RWMutex
	items map[string]*Validator
}

// NewValidators creates an empty validator set.
func NewValidators() *Validators {
	return &Validators{items: make(map[string]*Validator)}
}

// Get returns the validator stored for key.
func (v *Validators) Get(key string) *Validator {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.items[key]
}

// Set stores val for key; nil removes it.
func (v *Validators) Set(key string, val *Validator) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if val == nil {
		delete(v.items, key)
		return
	}
	v.items[key] = val
}

// Reset drops every validator.
func (v *Validators) Reset() {
	v.mu.Lock()
	v.items = make(map[string]*Validator)
	v.mu.Unlock()
}
