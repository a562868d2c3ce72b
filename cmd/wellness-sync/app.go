package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Sternrassler/wellness-sync/pkg/api"
	"github.com/Sternrassler/wellness-sync/pkg/auth"
	"github.com/Sternrassler/wellness-sync/pkg/client"
	"github.com/Sternrassler/wellness-sync/pkg/config"
	"github.com/Sternrassler/wellness-sync/pkg/logging"
	"github.com/Sternrassler/wellness-sync/pkg/resource"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// globalFlags override the loaded configuration.
type globalFlags struct {
	ConfigPath string
	BaseURL    string
	LogLevel   string
	Pretty     bool
}

// app holds everything a command needs. It is built once per invocation
// in the root command's PersistentPreRunE.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	out    io.Writer
	errOut io.Writer

	store  *auth.Store
	tokens auth.TokenProvider
	guard  *auth.Guard
	client *client.Client
	api    *api.API
	redis  *redis.Client
}

type appKey struct{}

func withApp(ctx context.Context, a *app) context.Context {
	return context.WithValue(ctx, appKey{}, a)
}

func appFrom(cmd *cobra.Command) (*app, error) {
	a, ok := cmd.Context().Value(appKey{}).(*app)
	if !ok || a == nil {
		return nil, errors.New("application not initialized")
	}
	return a, nil
}

// newApp wires configuration, logging, credentials and the backend client.
func newApp(cfg *config.Config, out, errOut io.Writer) (*app, error) {
	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
		Output: errOut,
	}).With().Str("component", logging.ComponentCLI).Logger()

	a := &app{
		cfg:    cfg,
		logger: logger,
		out:    out,
		errOut: errOut,
		store:  auth.NewStore(cfg.Origin(), cfg.Auth.FallbackDir, cfg.Auth.Keyring),
	}

	a.tokens = a.store
	if cfg.Auth.Token != "" {
		a.tokens = auth.NewStaticToken(cfg.Auth.Token)
	}
	a.guard = auth.NewGuard(a.tokens, auth.RedirectFunc(func(reason string) {
		fmt.Fprintf(errOut, "Session ended (%s). Run `wellness-sync login` to sign in again.\n", reason)
	}))

	c, err := client.New(client.Config{
		BaseURL:   cfg.API.BaseURL,
		UserAgent: cfg.API.UserAgent,
		Auth:      a.guard,
		Timeout:   cfg.API.Timeout,
		Retry: client.RetryPolicy{
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  cfg.Retry.BaseDelay,
			MaxBackoff: cfg.Retry.MaxBackoff,
		},
		RateLimit:           cfg.RateLimit.RPS,
		RateBurst:           cfg.RateLimit.Burst,
		ConditionalRequests: cfg.API.Conditional,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	a.client = c
	a.api = api.New(c)

	if cfg.Cache.Backend == config.CacheRedis {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			DB:       cfg.Cache.RedisDB,
			Password: cfg.Cache.RedisPassword,
		})
	}
	return a, nil
}

// options returns resource options with the given cache TTL. The cache
// scope is the signed-in user so cached data never crosses accounts.
func (a *app) options(ttl time.Duration) resource.Options {
	opts := resource.Options{TTL: ttl}
	if a.redis != nil {
		opts.Redis = a.redis
	}
	if a.cfg.Auth.Token == "" {
		if creds, err := a.store.Load(); err == nil {
			opts.Scope = creds.UserID
		}
	}
	return opts
}

func (a *app) listOptions() resource.Options {
	return a.options(a.cfg.Cache.ListTTL)
}

// ping checks the Redis backend, if one is configured.
func (a *app) ping(ctx context.Context) error {
	if a.redis == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := a.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s: %w", a.cfg.Cache.RedisAddr, err)
	}
	return nil
}

func (a *app) Close() {
	if a.client != nil {
		a.client.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}

// print writes v to the command output.
func (a *app) print(v any) error {
	return writeJSON(a.out, v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// stateError turns a failed state into a command error. A failure that
// still has data from an earlier fetch is only logged.
func stateError[T any](a *app, name string, st resource.State[T]) error {
	if st.Err == nil {
		return nil
	}
	if st.HasData {
		a.logger.Warn().Err(st.Err).Str("resource", name).Msg("Showing previous data")
		return nil
	}
	return st.Err
}
