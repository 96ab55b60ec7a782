package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/churnboard/churnboard/internal/churnapi"
)

// Upstream exposes the remote analytics API calls the service relies on.
type Upstream interface {
	ChurnRate(ctx context.Context) (churnapi.ChurnRateResponse, error)
	SegmentAnalysis(ctx context.Context, segmentBy string) (churnapi.SegmentAnalysisResponse, error)
	Predict(ctx context.Context, input map[string]any) (churnapi.PredictionResponse, error)
}

// ErrUnknownDimension is returned when a segment dimension is not allowed.
var ErrUnknownDimension = errors.New("analytics: unknown segment dimension")

// Service coordinates upstream analytics calls with the cache layer.
type Service struct {
	upstream    Upstream
	cache       *Cache
	dimensions  []string
	group       singleflight.Group
	loadTimeout time.Duration
}

// defaultLoadTimeout bounds shared loads unless SetLoadTimeout overrides it.
const defaultLoadTimeout = 30 * time.Second

// NewService wires an Upstream with a Cache helper. cache may be nil.
func NewService(upstream Upstream, cache *Cache, dimensions []string) *Service {
	return &Service{
		upstream:    upstream,
		cache:       cache,
		dimensions:  append([]string(nil), dimensions...),
		loadTimeout: defaultLoadTimeout,
	}
}

// SetLoadTimeout bounds upstream loads shared by concurrent callers.
// Non-positive values are ignored.
func (s *Service) SetLoadTimeout(d time.Duration) {
	if d > 0 {
		s.loadTimeout = d
	}
}

// Dimensions lists the segment dimensions the dashboard may request.
func (s *Service) Dimensions() []string {
	return append([]string(nil), s.dimensions...)
}

// ValidDimension reports whether dim is one of the configured dimensions.
func (s *Service) ValidDimension(dim string) bool {
	for _, candidate := range s.dimensions {
		if candidate == dim {
			return true
		}
	}
	return false
}

// Invalidate bumps the cache version so every cached payload is refetched.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// Refresh reloads the churn summary and every configured segment breakdown
// straight from upstream and overwrites the cached copies.
func (s *Service) Refresh(ctx context.Context) (int, error) {
	refreshed := 0
	summary, err := s.loadSummary(ctx)
	if err != nil {
		return refreshed, fmt.Errorf("refresh churn summary: %w", err)
	}
	if err := s.store(ctx, keyChurnSummary(), summary); err != nil {
		return refreshed, err
	}
	refreshed++
	for _, dim := range s.dimensions {
		analysis, err := s.loadSegments(ctx, dim)
		if err != nil {
			return refreshed, fmt.Errorf("refresh segments %s: %w", dim, err)
		}
		if err := s.store(ctx, keySegments(dim), analysis); err != nil {
			return refreshed, err
		}
		refreshed++
	}
	return refreshed, nil
}

// cached resolves keyBase through the versioned cache, collapsing
// concurrent misses for the same key into one loader call.
func (s *Service) cached(ctx context.Context, keyBase string, dest any, loader func(context.Context) (any, error)) error {
	shared := func(ctx context.Context) (any, error) {
		// The load outlives any single caller; each caller still stops
		// waiting when its own context ends.
		ch := s.group.DoChan(keyBase, func() (any, error) {
			loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadTimeout)
			defer cancel()
			return loader(loadCtx)
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			return res.Val, res.Err
		}
	}
	if s.cache == nil {
		return s.cache.FetchJSON(ctx, keyBase, dest, shared)
	}
	key, err := s.cache.BuildKey(ctx, keyBase)
	if err != nil {
		// Redis unavailable: serve straight from upstream.
		return (*Cache)(nil).FetchJSON(ctx, keyBase, dest, shared)
	}
	return s.cache.FetchJSON(ctx, key, dest, shared)
}

func (s *Service) store(ctx context.Context, keyBase string, value any) error {
	if s.cache == nil {
		return nil
	}
	key, err := s.cache.BuildKey(ctx, keyBase)
	if err != nil {
		return err
	}
	return s.cache.StoreJSON(ctx, key, value)
}
