package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/zalando/go-keyring"
)

const serviceName = "wellness-sync"

// Credentials holds the session token and its metadata.
type Credentials struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	Role        string `json:"role,omitempty"` // "patient" or "specialist"
}

// Expired reports whether the credentials carry an expiry in the past.
func (c *Credentials) Expired(now time.Time) bool {
	return c.ExpiresAt > 0 && now.Unix() >= c.ExpiresAt
}

// Store keeps credentials for one backend origin, preferring the system
// keychain and falling back to a locked JSON file.
type Store struct {
	origin      string
	useKeyring  bool
	fallbackDir string
}

// NewStore creates a credential store for origin. When useKeyring is set
// the keychain is probed and the file fallback is used if it is absent.
func NewStore(origin, fallbackDir string, useKeyring bool) *Store {
	s := &Store{origin: origin, fallbackDir: fallbackDir}
	if !useKeyring || os.Getenv("WELLNESS_NO_KEYRING") != "" {
		return s
	}

	testKey := serviceName + "::probe"
	if err := keyring.Set(serviceName, testKey, "probe"); err == nil {
		_ = keyring.Delete(serviceName, testKey)
		s.useKeyring = true
	} else {
		fmt.Fprintf(os.Stderr, "warning: system keyring unavailable, credentials stored in plaintext at %s\n",
			s.credentialsPath())
	}
	return s
}

func (s *Store) key() string {
	return fmt.Sprintf("%s::%s", serviceName, s.origin)
}

// Token implements TokenProvider.
func (s *Store) Token(_ context.Context) (string, error) {
	creds, err := s.Load()
	if err != nil {
		return "", err
	}
	if creds.AccessToken == "" || creds.Expired(time.Now()) {
		return "", ErrNoToken
	}
	return creds.AccessToken, nil
}

// Clear implements TokenProvider.
func (s *Store) Clear(_ context.Context) error {
	return s.Delete()
}

// Load retrieves the stored credentials. Missing credentials yield ErrNoToken.
func (s *Store) Load() (*Credentials, error) {
	if s.useKeyring {
		data, err := keyring.Get(serviceName, s.key())
		if err != nil {
			if errors.Is(err, keyring.ErrNotFound) {
				return nil, ErrNoToken
			}
			return nil, fmt.Errorf("read keyring: %w", err)
		}
		var creds Credentials
		if err := json.Unmarshal([]byte(data), &creds); err != nil {
			return nil, fmt.Errorf("invalid credentials: %w", err)
		}
		return &creds, nil
	}

	var creds *Credentials
	err := s.withLock(func(all map[string]*Credentials) (bool, error) {
		creds = all[s.origin]
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	if creds == nil {
		return nil, ErrNoToken
	}
	return creds, nil
}

// Save stores creds for the origin.
func (s *Store) Save(creds *Credentials) error {
	if creds == nil {
		return fmt.Errorf("credentials cannot be nil")
	}
	if s.useKeyring {
		data, err := json.Marshal(creds)
		if err != nil {
			return err
		}
		return keyring.Set(serviceName, s.key(), string(data))
	}
	return s.withLock(func(all map[string]*Credentials) (bool, error) {
		all[s.origin] = creds
		return true, nil
	})
}

// Delete removes the credentials for the origin. Deleting nothing is not an error.
func (s *Store) Delete() error {
	if s.useKeyring {
		err := keyring.Delete(serviceName, s.key())
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return err
		}
		return nil
	}
	return s.withLock(func(all map[string]*Credentials) (bool, error) {
		if _, ok := all[s.origin]; !ok {
			return false, nil
		}
		delete(all, s.origin)
		return true, nil
	})
}

func (s *Store) credentialsPath() string {
	return filepath.Join(s.fallbackDir, "credentials.json")
}

// withLock loads the credentials file under an exclusive file lock, runs fn
// and writes the map back when fn reports a change.
func (s *Store) withLock(fn func(all map[string]*Credentials) (bool, error)) error {
	if err := os.MkdirAll(s.fallbackDir, 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}

	lock := flock.New(filepath.Join(s.fallbackDir, ".credentials.lock"))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock credentials: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	all := make(map[string]*Credentials)
	data, err := os.ReadFile(s.credentialsPath())
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &all); err != nil {
			return fmt.Errorf("invalid credentials file: %w", err)
		}
	case !os.IsNotExist(err):
		return fmt.Errorf("read credentials: %w", err)
	}

	changed, err := fn(all)
	if err != nil || !changed {
		return err
	}

	out, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.fallbackDir, "credentials-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, s.credentialsPath()); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
