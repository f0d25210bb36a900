package pricing

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/benithors/resellerkit/internal/metrics"
	"github.com/benithors/resellerkit/internal/registrar"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a fetched set of tables is served before refetching.
const DefaultTTL = 5 * time.Minute

// Tables is one consistent snapshot of the three registrar price tables.
type Tables struct {
	Customer registrar.PriceTable
	Reseller registrar.PriceTable
	Promo    registrar.PromoTable
}

// FetchFunc loads a fresh snapshot. It must fail as a whole if any table fails.
type FetchFunc func(ctx context.Context) (Tables, error)

// GatewayFetcher fetches the three tables from src concurrently.
func GatewayFetcher(src registrar.PriceSource) FetchFunc {
	return func(ctx context.Context) (Tables, error) {
		var t Tables
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			tbl, err := src.CustomerPrices(ctx)
			if err != nil {
				return fmt.Errorf("customer prices: %w", err)
			}
			t.Customer = tbl
			return nil
		})
		g.Go(func() error {
			tbl, err := src.ResellerPrices(ctx)
			if err != nil {
				return fmt.Errorf("reseller prices: %w", err)
			}
			t.Reseller = tbl
			return nil
		})
		g.Go(func() error {
			tbl, err := src.Promotions(ctx)
			if err != nil {
				return fmt.Errorf("promotions: %w", err)
			}
			t.Promo = tbl
			return nil
		})
		if err := g.Wait(); err != nil {
			return Tables{}, err
		}
		return t, nil
	}
}

type CacheOptions struct {
	TTL     time.Duration
	Now     func() time.Time
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

type entry struct {
	tables    Tables
	fetchedAt time.Time
	ttl       time.Duration
}

func (e *entry) stale(now time.Time) bool {
	return now.Sub(e.fetchedAt) >= e.ttl
}

// Cache holds the last fetched Tables. The entry is only ever replaced as a
// whole; readers never observe a partially refreshed snapshot.
type Cache struct {
	fetch FetchFunc
	ttl   time.Duration
	now   func() time.Time
	log   *zap.Logger
	m     *metrics.Metrics

	cur   atomic.Pointer[entry]
	group singleflight.Group
}

func NewCache(fetch FetchFunc, opts CacheOptions) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Cache{
		fetch: fetch,
		ttl:   opts.TTL,
		now:   opts.Now,
		log:   opts.Logger.Named("pricing.cache"),
		m:     opts.Metrics,
	}
}

// CombinedTables returns the cached snapshot while it is live, otherwise
// refetches. A failed refresh is returned as an error; the stale snapshot is
// not served because outdated promotions would misprice orders.
func (c *Cache) CombinedTables(ctx context.Context) (Tables, error) {
	if e := c.cur.Load(); e != nil && !e.stale(c.now()) {
		c.m.CacheHit()
		return e.tables, nil
	}
	c.m.CacheMiss()

	// Concurrent misses share one refresh. The refresh is detached from the
	// first caller's cancellation; the HTTP client timeout bounds it.
	ch := c.group.DoChan("tables", func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return Tables{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Tables{}, res.Err
		}
		return res.Val.(*entry).tables, nil
	}
}

func (c *Cache) refresh(ctx context.Context) (*entry, error) {
	if e := c.cur.Load(); e != nil && !e.stale(c.now()) {
		return e, nil
	}

	start := time.Now()
	tables, err := c.fetch(ctx)
	took := time.Since(start)
	c.m.ObserveRefresh(took, err)
	if err != nil {
		c.log.Warn("pricing refresh failed", zap.Error(err), zap.Duration("took", took))
		return nil, fmt.Errorf("pricing: refresh tables: %w", err)
	}

	e := &entry{tables: tables, fetchedAt: c.now(), ttl: c.ttl}
	c.cur.Store(e)
	c.log.Debug("pricing tables refreshed",
		zap.Int("customer_keys", len(tables.Customer)),
		zap.Int("reseller_keys", len(tables.Reseller)),
		zap.Int("promotions", len(tables.Promo)),
		zap.Duration("took", took),
	)
	return e, nil
}

// Purge drops the cached snapshot; the next read refetches.
func (c *Cache) Purge() {
	c.cur.Store(nil)
	c.group.Forget("tables")
	c.log.Info("pricing cache purged")
}

// FetchedAt reports when the current snapshot was fetched, or the zero time
// when nothing is cached.
func (c *Cache) FetchedAt() time.Time {
	if e := c.cur.Load(); e != nil {
		return e.fetchedAt
	}
	return time.Time{}
}
