package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileStore(t *testing.T, origin string, dir string) *Store {
	t.Helper()
	t.Setenv("WELLNESS_NO_KEYRING", "1")
	return NewStore(origin, dir, true)
}

func TestStore_SaveLoadDelete(t *testing.T) {
	dir := t.TempDir()
	s := newFileStore(t, "https://api.example.com", dir)

	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, s.Save(&Credentials{AccessToken: "tok", UserID: "7", Role: "specialist"}))

	creds, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok", creds.AccessToken)
	assert.Equal(t, "specialist", creds.Role)

	info, err := os.Stat(filepath.Join(dir, "credentials.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, s.Delete())
	_, err = s.Load()
	assert.ErrorIs(t, err, ErrNoToken)

	// deleting twice is fine
	assert.NoError(t, s.Delete())
}

func TestStore_OriginsAreSeparate(t *testing.T) {
	dir := t.TempDir()
	prod := newFileStore(t, "https://api.example.com", dir)
	staging := newFileStore(t, "https://staging.example.com", dir)

	require.NoError(t, prod.Save(&Credentials{AccessToken: "prod"}))
	require.NoError(t, staging.Save(&Credentials{AccessToken: "staging"}))
	require.NoError(t, staging.Delete())

	creds, err := prod.Load()
	require.NoError(t, err)
	assert.Equal(t, "prod", creds.AccessToken)
}

func TestStore_TokenProvider(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t, "https://api.example.com", t.TempDir())

	_, err := s.Token(ctx)
	assert.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, s.Save(&Credentials{AccessToken: "old", ExpiresAt: time.Now().Add(-time.Hour).Unix()}))
	_, err = s.Token(ctx)
	assert.ErrorIs(t, err, ErrNoToken, "expired token is not handed out")

	require.NoError(t, s.Save(&Credentials{AccessToken: "new", ExpiresAt: time.Now().Add(time.Hour).Unix()}))
	tok, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", tok)

	require.NoError(t, s.Clear(ctx))
	_, err = s.Token(ctx)
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestStore_SaveNil(t *testing.T) {
	s := newFileStore(t, "o", t.TempDir())
	assert.Error(t, s.Save(nil))
}

func TestStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "credentials.json"), []byte("{"), 0o600))

	s := newFileStore(t, "o", dir)
	_, err := s.Load()
	assert.ErrorContains(t, err, "invalid credentials file")
}

func TestCredentials_Expired(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	assert.False(t, (&Credentials{}).Expired(now), "no expiry never expires")
	assert.False(t, (&Credentials{ExpiresAt: now.Add(time.Minute).Unix()}).Expired(now))
	assert.True(t, (&Credentials{ExpiresAt: now.Unix()}).Expired(now))
}

func TestStore_GuardIntegration(t *testing.T) {
	s := newFileStore(t, "o", t.TempDir())
	require.NoError(t, s.Save(&Credentials{AccessToken: "tok"}))

	g, count, _ := newTestGuard(s)
	g.Unauthorized(context.Background(), "401")

	assert.Equal(t, int32(1), count.Load())
	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNoToken, "guard wipes persisted credentials")
}
