package pagination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel page requests.
	// Keep it below the client's rate limit burst.
	MaxConcurrency int
	// Timeout per page fetch
	Timeout time.Duration
	// PageSize is the limit sent with every page request
	PageSize int
}

// DefaultConfig returns safe default configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
		PageSize:       50,
	}
}

// PageFetcher fetches one page of an offset-paginated list and reports the
// total item count.
type PageFetcher[T any] interface {
	FetchPage(ctx context.Context, offset, limit int) (items []T, total int, err error)
}

// PageFetchFunc adapts a function to PageFetcher.
type PageFetchFunc[T any] func(ctx context.Context, offset, limit int) ([]T, int, error)

// FetchPage calls f.
func (f PageFetchFunc[T]) FetchPage(ctx context.Context, offset, limit int) ([]T, int, error) {
	return f(ctx, offset, limit)
}

// BatchFetcher fetches every page of a list in parallel
type BatchFetcher[T any] struct {
	fetcher PageFetcher[T]
	config  Config
	logger  zerolog.Logger
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher[T any](fetcher PageFetcher[T], config Config) *BatchFetcher[T] {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if config.PageSize <= 0 {
		config.PageSize = 50
	}

	return &BatchFetcher[T]{
		fetcher: fetcher,
		config:  config,
		logger:  log.With().Str("component", "batch-fetcher").Logger(),
	}
}

// FetchAll fetches the first page to learn the total, then the remaining
// pages with at most MaxConcurrency requests in flight. Items are returned
// in list order. When a page fails, the items of the pages fetched so far
// are returned together with the error.
func (bf *BatchFetcher[T]) FetchAll(ctx context.Context, name string) ([]T, error) {
	start := time.Now()
	size := bf.config.PageSize

	first, total, err := bf.fetchPage(ctx, 0, size)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}

	state := State{Page: 1, PageSize: size}.WithTotal(total)
	totalPages := state.TotalPages()

	bf.logger.Info().
		Str("resource", name).
		Int("total", total).
		Int("total_pages", totalPages).
		Msg("Starting parallel page fetch")

	// Single page optimization
	if !state.HasMore {
		bf.logger.Info().
			Str("resource", name).
			Int("pages", 1).
			Dur("duration", time.Since(start)).
			Msg("Fetch complete (single page)")
		return first, nil
	}

	pages := make([][]T, totalPages)
	pages[0] = first

	var (
		mu      sync.Mutex
		fetched = 1
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bf.config.MaxConcurrency)

	for page := 2; page <= totalPages; page++ {
		g.Go(func() error {
			items, _, err := bf.fetchPage(gctx, (page-1)*size, size)
			if err != nil {
				bf.logger.Warn().
					Err(err).
					Str("resource", name).
					Int("page", page).
					Msg("Page fetch failed")
				return fmt.Errorf("page %d: %w", page, err)
			}

			mu.Lock()
			pages[page-1] = items
			fetched++
			progress := fetched
			mu.Unlock()

			if progress%10 == 0 {
				bf.logger.Debug().
					Int("fetched", progress).
					Int("total", totalPages).
					Float64("progress_pct", float64(progress)/float64(totalPages)*100).
					Msg("Fetch progress")
			}
			return nil
		})
	}

	waitErr := g.Wait()

	results := make([]T, 0, total)
	for _, items := range pages {
		results = append(results, items...)
	}

	if waitErr != nil {
		bf.logger.Warn().
			Err(waitErr).
			Int("fetched_pages", fetched).
			Int("total_pages", totalPages).
			Msg("Worker error - returning partial results")
		return results, fmt.Errorf("partial data (%d/%d pages): %w", fetched, totalPages, waitErr)
	}

	bf.logger.Info().
		Str("resource", name).
		Int("pages", fetched).
		Int("items", len(results)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return results, nil
}

func (bf *BatchFetcher[T]) fetchPage(ctx context.Context, offset, limit int) ([]T, int, error) {
	pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
	defer cancel()
	return bf.fetcher.FetchPage(pageCtx, offset, limit)
}
