package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	cfhttp "github.com/aruna-bi/aruna/internal/adapter/http"
	cfnats "github.com/aruna-bi/aruna/internal/adapter/nats"
	"github.com/aruna-bi/aruna/internal/adapter/natskv"
	"github.com/aruna-bi/aruna/internal/adapter/postgres"
	"github.com/aruna-bi/aruna/internal/adapter/ristretto"
	"github.com/aruna-bi/aruna/internal/adapter/tiered"
	"github.com/aruna-bi/aruna/internal/config"
	"github.com/aruna-bi/aruna/internal/port/cache"
	"github.com/aruna-bi/aruna/internal/resilience"
)

// newBusinessCache builds the business snapshot cache: an in-process L1,
// backed by a NATS KV L2 when a queue is connected.
func newBusinessCache(ctx context.Context, cfg config.Cache, q *cfnats.Queue) (cache.Cache, func(), error) {
	l1, err := ristretto.New(cfg.L1MaxSizeMB<<20, cfg.L1TTL)
	if err != nil {
		return nil, nil, fmt.Errorf("l1: %w", err)
	}
	closeL1 := func() {
		st := l1.Stats()
		slog.Info("business cache closed", "l1_hits", st.Hits, "l1_misses", st.Misses, "l1_hit_ratio", st.Ratio)
		l1.Close()
	}
	if q == nil {
		return l1, closeL1, nil
	}

	kv, err := q.KeyValue(ctx, cfg.L2Bucket, cfg.L2TTL)
	if err != nil {
		l1.Close()
		return nil, nil, fmt.Errorf("l2: %w", err)
	}
	slog.Info("business cache tiered", "l2_bucket", cfg.L2Bucket)
	return tiered.New(l1, natskv.New(kv), cfg.L1TTL), closeL1, nil
}

// healthChecks lists the dependency probes behind GET /health.
func healthChecks(store *postgres.Store, q *cfnats.Queue, breaker *resilience.Breaker) []cfhttp.HealthCheck {
	checks := []cfhttp.HealthCheck{
		{Name: "postgres", Check: store.Ping},
		{
			Name:     "openrouter",
			Optional: true,
			Check: func(context.Context) error {
				if breaker.State() == "open" {
					return errors.New("circuit breaker open")
				}
				return nil
			},
		},
	}
	if q != nil {
		checks = append(checks, cfhttp.HealthCheck{Name: "nats", Check: q.Ping, Optional: true})
	}
	return checks
}
