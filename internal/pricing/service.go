// Package pricing answers storefront price questions from the registrar's
// customer, reseller and promotional price tables.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/benithors/resellerkit/internal/metrics"
	"github.com/benithors/resellerkit/internal/registrar"
	"github.com/benithors/resellerkit/internal/tldkey"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultCurrency is the registrar's reporting currency for this account.
const DefaultCurrency = "INR"

var (
	ErrUnknownOperation = errors.New("pricing: unknown operation")
	ErrInvalidYears     = errors.New("pricing: years must be at least 1")
)

// Operation is a storefront action that has a price.
type Operation string

const (
	OpRegister Operation = "register"
	OpRenew    Operation = "renew"
	OpTransfer Operation = "transfer"
)

var operationKeys = map[Operation]string{
	OpRegister: registrar.OpAddNewDomain,
	OpRenew:    registrar.OpRenewDomain,
	OpTransfer: registrar.OpAddTransferDomain,
}

// Operations in display order.
var Operations = []Operation{OpRegister, OpRenew, OpTransfer}

// ParseOperation accepts the storefront names and the registrar's own keys.
func ParseOperation(s string) (Operation, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for op, key := range operationKeys {
		if s == string(op) || s == key {
			return op, nil
		}
	}
	return "", fmt.Errorf("%w: %q (use register|renew|transfer)", ErrUnknownOperation, s)
}

// Quote is the customer price for one operation and duration.
type Quote struct {
	TLD       string          `json:"tld"`
	Operation Operation       `json:"operation"`
	Years     int             `json:"years"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
}

type Options struct {
	Promo    *PromoResolver
	Currency string
	Now      func() time.Time
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// Service is the pricing entry point used by search and checkout.
type Service struct {
	cache    *Cache
	promo    *PromoResolver
	currency string
	now      func() time.Time
	log      *zap.Logger
	m        *metrics.Metrics
}

func NewService(cache *Cache, opts Options) *Service {
	if opts.Currency == "" {
		opts.Currency = DefaultCurrency
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Promo == nil {
		opts.Promo = NewPromoResolver(PromoOptions{Currency: opts.Currency, Logger: opts.Logger})
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		cache:    cache,
		promo:    opts.Promo,
		currency: opts.Currency,
		now:      opts.Now,
		log:      opts.Logger.Named("pricing"),
		m:        opts.Metrics,
	}
}

// TLDPricing resolves the one-year registration price of each TLD. TLDs
// without a customer price are left out of the map rather than reported as
// zero. promoEnabled is the operator's promotional pricing switch.
func (s *Service) TLDPricing(ctx context.Context, tlds []string, promoEnabled bool) (map[string]Resolved, error) {
	tables, err := s.cache.CombinedTables(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()

	out := make(map[string]Resolved, len(tlds))
	for _, raw := range tlds {
		tld := tldkey.Canonical(raw)
		if tld == "" {
			continue
		}
		if _, done := out[tld]; done {
			continue
		}
		r, ok := s.resolve(tables, tld, promoEnabled, now)
		if !ok {
			continue
		}
		out[tld] = r
	}
	return out, nil
}

func (s *Service) resolve(tables Tables, tld string, promoEnabled bool, now time.Time) (Resolved, bool) {
	key, rec, ok := tldkey.Resolve(tables.Customer, tld)
	if !ok {
		s.log.Debug("no customer pricing for tld", zap.String("tld", tld))
		return Resolved{}, false
	}
	base, ok := rec.Price(registrar.OpAddNewDomain, 1)
	if !ok {
		s.log.Debug("no one-year registration price", zap.String("tld", tld), zap.String("key", key))
		return Resolved{}, false
	}

	var reseller decimal.Decimal
	if _, rrec, ok := tldkey.Resolve(tables.Reseller, tld); ok {
		reseller, _ = rrec.Price(registrar.OpAddNewDomain, 1)
	}

	r := s.promo.Resolve(tld, base, reseller, tables.Promo, promoEnabled, now)
	if r.IsPromotional {
		s.m.PromotionApplied()
	}
	return r, true
}

// OperationPrice returns the customer price for op over years. It returns
// nil without error when the TLD, or just that duration, is not priced.
func (s *Service) OperationPrice(ctx context.Context, tld string, op Operation, years int) (*Quote, error) {
	key, ok := operationKeys[op]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
	if years < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidYears, years)
	}

	tables, err := s.cache.CombinedTables(ctx)
	if err != nil {
		return nil, err
	}
	tld = tldkey.Canonical(tld)
	_, rec, ok := tldkey.Resolve(tables.Customer, tld)
	if !ok {
		return nil, nil
	}
	price, ok := rec.Price(key, years)
	if !ok {
		return nil, nil
	}
	return &Quote{TLD: tld, Operation: op, Years: years, Price: price, Currency: s.currency}, nil
}

// PriceList returns every priced operation and duration for tld, ordered by
// operation then years. An unpriced TLD yields an empty list.
func (s *Service) PriceList(ctx context.Context, tld string) ([]Quote, error) {
	tables, err := s.cache.CombinedTables(ctx)
	if err != nil {
		return nil, err
	}
	tld = tldkey.Canonical(tld)
	_, rec, ok := tldkey.Resolve(tables.Customer, tld)
	if !ok {
		return nil, nil
	}

	var out []Quote
	for _, op := range Operations {
		durations := rec[operationKeys[op]]
		start := len(out)
		for y, price := range durations {
			years, err := strconv.Atoi(y)
			if err != nil || years < 1 {
				continue
			}
			out = append(out, Quote{TLD: tld, Operation: op, Years: years, Price: price, Currency: s.currency})
		}
		rows := out[start:]
		sort.Slice(rows, func(i, j int) bool { return rows[i].Years < rows[j].Years })
	}
	return out, nil
}

// Purge forces the next lookup to refetch the registrar tables.
func (s *Service) Purge() {
	s.cache.Purge()
}

// FetchedAt reports when the cached tables were fetched, or the zero time when
// nothing is cached.
func (s *Service) FetchedAt() time.Time {
	return s.cache.FetchedAt()
}
