package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aruna-bi/aruna/internal/domain"
	"github.com/aruna-bi/aruna/internal/domain/business"
	"github.com/aruna-bi/aruna/internal/port/cache"
)

// BusinessGetter is the store capability the resolver needs.
type BusinessGetter interface {
	GetBusiness(ctx context.Context, id string) (*business.Business, error)
}

// BusinessResolver looks up businesses by ID through an optional cache.
type BusinessResolver struct {
	store BusinessGetter
	cache cache.Cache
	ttl   time.Duration
}

// NewBusinessResolver creates a resolver. c may be nil to disable caching.
func NewBusinessResolver(store BusinessGetter, c cache.Cache, ttl time.Duration) *BusinessResolver {
	return &BusinessResolver{store: store, cache: c, ttl: ttl}
}

func businessCacheKey(id string) string { return "business." + id }

// Resolve returns the business with the given ID. A missing business yields
// an error wrapping domain.ErrNotFound; any other store failure wraps
// domain.ErrDataAccess.
func (r *BusinessResolver) Resolve(ctx context.Context, id string) (*business.Business, error) {
	key := businessCacheKey(id)
	if r.cache != nil {
		b, ok, err := cache.GetJSON[business.Business](ctx, r.cache, key)
		if err != nil {
			slog.Warn("business cache read failed", "business_id", id, "error", err)
		}
		if ok {
			return b, nil
		}
	}

	b, err := r.store.GetBusiness(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("business %s: %w", id, domain.ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("get business %s: %w: %w", id, domain.ErrDataAccess, err)
	case b == nil:
		return nil, fmt.Errorf("business %s: %w", id, domain.ErrNotFound)
	}

	if r.cache != nil {
		if err := cache.SetJSON(ctx, r.cache, key, b, r.ttl); err != nil {
			slog.Warn("business cache write failed", "business_id", id, "error", err)
		}
	}
	return b, nil
}
