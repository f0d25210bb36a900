package pricing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benithors/resellerkit/internal/registrar"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: epoch} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeSource counts calls per table.
type fakeSource struct {
	customer, reseller registrar.PriceTable
	promo              registrar.PromoTable
	promoErr           error

	customerCalls, resellerCalls, promoCalls atomic.Int32
}

func (f *fakeSource) CustomerPrices(context.Context) (registrar.PriceTable, error) {
	f.customerCalls.Add(1)
	return f.customer, nil
}

func (f *fakeSource) ResellerPrices(context.Context) (registrar.PriceTable, error) {
	f.resellerCalls.Add(1)
	return f.reseller, nil
}

func (f *fakeSource) Promotions(context.Context) (registrar.PromoTable, error) {
	f.promoCalls.Add(1)
	if f.promoErr != nil {
		return nil, f.promoErr
	}
	return f.promo, nil
}

func (f *fakeSource) calls() int {
	return int(f.customerCalls.Load() + f.resellerCalls.Load() + f.promoCalls.Load())
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dotcomSource() *fakeSource {
	return &fakeSource{
		customer: registrar.PriceTable{
			"dotcom": {
				registrar.OpAddNewDomain:      {"1": dec("999"), "2": dec("1998")},
				registrar.OpRenewDomain:       {"1": dec("1099"), "3": dec("3297"), "2": dec("2198")},
				registrar.OpAddTransferDomain: {"1": dec("949")},
			},
			".net": {
				registrar.OpAddNewDomain: {"1": dec("1199")},
			},
			"dotai": {
				registrar.OpAddNewDomain: {"2": dec("12000")},
			},
		},
		reseller: registrar.PriceTable{
			"dotcom": {registrar.OpAddNewDomain: {"1": dec("850")}},
		},
		promo: registrar.PromoTable{},
	}
}

func activePromo(id, key, price string) registrar.Promotion {
	return registrar.Promotion{
		ID:            id,
		ProductKey:    key,
		CustomerPrice: dec(price),
		ResellerPrice: dec("400"),
		StartTime:     registrar.Epoch{Time: epoch.Add(-24 * time.Hour)},
		EndTime:       registrar.Epoch{Time: epoch.Add(24 * time.Hour)},
		IsActive:      true,
		Period:        "1",
		ActionType:    registrar.OpAddNewDomain,
	}
}

func newTestService(src *fakeSource, clock *fakeClock) *Service {
	cache := NewCache(GatewayFetcher(src), CacheOptions{Now: clock.Now})
	return NewService(cache, Options{Now: clock.Now})
}

func TestTLDPricing_NoPromotion(t *testing.T) {
	t.Parallel()

	svc := newTestService(dotcomSource(), newFakeClock())

	got, err := svc.TLDPricing(context.Background(), []string{"com"}, true)
	require.NoError(t, err)
	require.Contains(t, got, "com")

	r := got["com"]
	assert.True(t, r.Price.Equal(dec("999")))
	assert.True(t, r.OriginalPrice.Equal(dec("999")))
	assert.True(t, r.ResellerPrice.Equal(dec("850")))
	assert.False(t, r.IsPromotional)
	assert.Nil(t, r.Promotion)
	assert.Equal(t, "INR", r.Currency)
}

func TestTLDPricing_ActivePromotion(t *testing.T) {
	t.Parallel()

	src := dotcomSource()
	src.promo = registrar.PromoTable{"5001": activePromo("5001", "dotcom", "499")}
	svc := newTestService(src, newFakeClock())

	got, err := svc.TLDPricing(context.Background(), []string{"com"}, true)
	require.NoError(t, err)

	r := got["com"]
	assert.True(t, r.IsPromotional)
	assert.True(t, r.Price.Equal(dec("499")))
	assert.True(t, r.OriginalPrice.Equal(dec("999")))
	require.NotNil(t, r.Promotion)
	assert.Equal(t, "5001", r.Promotion.PromotionID)
	assert.True(t, r.Promotion.Discount.Equal(dec("500")))
	assert.Equal(t, epoch.Add(24*time.Hour), r.Promotion.EndsAt)
}

func TestTLDPricing_RenewPromotionLeavesRegisterPrice(t *testing.T) {
	t.Parallel()

	renew := activePromo("9", "dotcom", "199")
	renew.ActionType = registrar.OpRenewDomain
	src := dotcomSource()
	src.promo = registrar.PromoTable{"9": renew}
	svc := newTestService(src, newFakeClock())

	got, err := svc.TLDPricing(context.Background(), []string{"com"}, true)
	require.NoError(t, err)

	r := got["com"]
	assert.False(t, r.IsPromotional)
	assert.True(t, r.Price.Equal(dec("999")))
	assert.Nil(t, r.Promotion)
}

func TestTLDPricing_PromotionsDisabled(t *testing.T) {
	t.Parallel()

	src := dotcomSource()
	src.promo = registrar.PromoTable{"5001": activePromo("5001", "dotcom", "499")}
	svc := newTestService(src, newFakeClock())

	got, err := svc.TLDPricing(context.Background(), []string{"com"}, false)
	require.NoError(t, err)

	r := got["com"]
	assert.False(t, r.IsPromotional)
	assert.True(t, r.Price.Equal(dec("999")))
	assert.True(t, r.Price.Equal(r.OriginalPrice))
}

func TestTLDPricing_OmitsUnpriced(t *testing.T) {
	t.Parallel()

	svc := newTestService(dotcomSource(), newFakeClock())

	got, err := svc.TLDPricing(context.Background(), []string{".COM", "net", "xyz", "ai", "", "com"}, true)
	require.NoError(t, err)

	assert.Len(t, got, 2)
	assert.Contains(t, got, "com")
	assert.Contains(t, got, "net")
	assert.NotContains(t, got, "xyz")
	assert.NotContains(t, got, "ai", "no one-year price means no headline price")
	assert.True(t, got["net"].ResellerPrice.IsZero())
}

func TestTLDPricing_Idempotent(t *testing.T) {
	t.Parallel()

	src := dotcomSource()
	src.promo = registrar.PromoTable{"5001": activePromo("5001", "dotcom", "499")}
	svc := newTestService(src, newFakeClock())
	ctx := context.Background()

	first, err := svc.TLDPricing(ctx, []string{"com"}, true)
	require.NoError(t, err)
	second, err := svc.TLDPricing(ctx, []string{"com"}, true)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestService_FetchedAt(t *testing.T) {
	t.Parallel()

	svc := newTestService(dotcomSource(), newFakeClock())
	assert.True(t, svc.FetchedAt().IsZero())

	_, err := svc.TLDPricing(context.Background(), []string{"com"}, true)
	require.NoError(t, err)
	assert.Equal(t, epoch, svc.FetchedAt())

	svc.Purge()
	assert.True(t, svc.FetchedAt().IsZero())
}

func TestCache_TTL(t *testing.T) {
	t.Parallel()

	src := dotcomSource()
	clock := newFakeClock()
	svc := newTestService(src, clock)
	ctx := context.Background()

	_, err := svc.TLDPricing(ctx, []string{"com"}, true)
	require.NoError(t, err)
	assert.Equal(t, 3, src.calls(), "first call fetches all three tables")

	clock.Advance(DefaultTTL - time.Second)
	_, err = svc.TLDPricing(ctx, []string{"com"}, true)
	require.NoError(t, err)
	assert.Equal(t, 3, src.calls(), "live entry must not refetch")

	clock.Advance(time.Second)
	_, err = svc.TLDPricing(ctx, []string{"com"}, true)
	require.NoError(t, err)
	assert.Equal(t, 6, src.calls(), "entry is stale at exactly the ttl")
	assert.Equal(t, int32(2), src.customerCalls.Load())
	assert.Equal(t, int32(2), src.resellerCalls.Load())
	assert.Equal(t, int32(2), src.promoCalls.Load())
}

func TestCache_Purge(t *testing.T) {
	t.Parallel()

	src := dotcomSource()
	clock := newFakeClock()
	cache := NewCache(GatewayFetcher(src), CacheOptions{Now: clock.Now})
	ctx := context.Background()

	assert.True(t, cache.FetchedAt().IsZero())
	_, err := cache.CombinedTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, epoch, cache.FetchedAt())

	cache.Purge()
	assert.True(t, cache.FetchedAt().IsZero())

	_, err = cache.CombinedTables(ctx)
	require.NoError(t, err)
	_, err = cache.CombinedTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, src.calls())
}

func TestCache_FailedRefreshDoesNotServeStale(t *testing.T) {
	t.Parallel()

	src := dotcomSource()
	clock := newFakeClock()
	svc := newTestService(src, clock)
	ctx := context.Background()

	_, err := svc.TLDPricing(ctx, []string{"com"}, true)
	require.NoError(t, err)

	upstream := errors.New("registrar timeout")
	src.promoErr = upstream
	clock.Advance(DefaultTTL)

	got, err := svc.TLDPricing(ctx, []string{"com"}, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream)
	assert.Nil(t, got)

	_, err = svc.OperationPrice(ctx, "com", OpRegister, 1)
	assert.ErrorIs(t, err, upstream)
}

func TestCache_ConcurrentMissesShareOneFetch(t *testing.T) {
	t.Parallel()

	var fetches atomic.Int32
	release := make(chan struct{})
	cache := NewCache(func(ctx context.Context) (Tables, error) {
		fetches.Add(1)
		<-release
		return Tables{Customer: registrar.PriceTable{}}, nil
	}, CacheOptions{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.CombinedTables(context.Background())
			assert.NoError(t, err)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), fetches.Load())
}

func TestOperationPrice(t *testing.T) {
	t.Parallel()

	svc := newTestService(dotcomSource(), newFakeClock())
	ctx := context.Background()

	q, err := svc.OperationPrice(ctx, "com", OpRenew, 3)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.True(t, q.Price.Equal(dec("3297")))
	assert.Equal(t, "INR", q.Currency)
	assert.Equal(t, OpRenew, q.Operation)

	q, err = svc.OperationPrice(ctx, "com", OpTransfer, 2)
	require.NoError(t, err)
	assert.Nil(t, q, "unpriced duration is nil, not an error")

	q, err = svc.OperationPrice(ctx, "xyz", OpRegister, 1)
	require.NoError(t, err)
	assert.Nil(t, q)

	q, err = svc.OperationPrice(ctx, "ai", OpRegister, 2)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.True(t, q.Price.Equal(dec("12000")))

	_, err = svc.OperationPrice(ctx, "com", Operation("restore"), 1)
	assert.ErrorIs(t, err, ErrUnknownOperation)

	_, err = svc.OperationPrice(ctx, "com", OpRegister, 0)
	assert.ErrorIs(t, err, ErrInvalidYears)
}

func TestPriceList(t *testing.T) {
	t.Parallel()

	svc := newTestService(dotcomSource(), newFakeClock())

	rows, err := svc.PriceList(context.Background(), "com")
	require.NoError(t, err)
	require.Len(t, rows, 6)

	type row struct {
		op    Operation
		years int
	}
	var got []row
	for _, q := range rows {
		got = append(got, row{q.Operation, q.Years})
	}
	assert.Equal(t, []row{
		{OpRegister, 1}, {OpRegister, 2},
		{OpRenew, 1}, {OpRenew, 2}, {OpRenew, 3},
		{OpTransfer, 1},
	}, got)

	rows, err = svc.PriceList(context.Background(), "xyz")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParseOperation(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Operation{
		"register":          OpRegister,
		" Renew ":           OpRenew,
		"addtransferdomain": OpTransfer,
	} {
		got, err := ParseOperation(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseOperation("restore")
	assert.ErrorIs(t, err, ErrUnknownOperation)
}
