package pricing

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/benithors/resellerkit/internal/registrar"
	"github.com/benithors/resellerkit/internal/tldkey"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Resolved is the promo-aware price for one TLD.
type Resolved struct {
	TLD           string          `json:"tld"`
	Price         decimal.Decimal `json:"price"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	ResellerPrice decimal.Decimal `json:"reseller_price"`
	Currency      string          `json:"currency"`
	IsPromotional bool            `json:"is_promotional"`
	Promotion     *PromoDetails   `json:"promotional_details,omitempty"`
}

// PromoDetails records which promotion produced a price, for audit.
type PromoDetails struct {
	PromotionID      string          `json:"promotion_id"`
	ProductKey       string          `json:"product_key"`
	OriginalPrice    decimal.Decimal `json:"original_price"`
	PromotionalPrice decimal.Decimal `json:"promotional_price"`
	ResellerPrice    decimal.Decimal `json:"reseller_price"`
	Discount         decimal.Decimal `json:"discount"`
	StartsAt         time.Time       `json:"starts_at"`
	EndsAt           time.Time       `json:"ends_at"`
	ActionType       string          `json:"action_type,omitempty"`
	Period           string          `json:"period,omitempty"`
}

// Matcher decides whether a promotion applies to a TLD.
type Matcher interface {
	Match(p registrar.Promotion, tld string) bool
}

// LooseMatcher accepts an active promotion whose product key contains the TLD
// or is one of its vendor-prefixed spellings. The registrar has no canonical
// product key format, so "dotcom", "com" and "domcno.com" style keys all occur.
// Substring matching can over-match ("com" in "dotcomau"); a stricter Matcher
// can be swapped in through PromoOptions.
type LooseMatcher struct{}

func (LooseMatcher) Match(p registrar.Promotion, tld string) bool {
	if !bool(p.IsActive) || tld == "" {
		return false
	}
	key := strings.ToLower(strings.TrimSpace(p.ProductKey))
	tld = strings.ToLower(tld)
	return strings.Contains(key, tld) ||
		key == tldkey.DotWord(tld) ||
		key == tldkey.CentralNicZA(tld)
}

type PromoOptions struct {
	Matcher  Matcher
	Currency string
	Logger   *zap.Logger
}

type PromoResolver struct {
	matcher  Matcher
	currency string
	log      *zap.Logger
}

func NewPromoResolver(opts PromoOptions) *PromoResolver {
	if opts.Matcher == nil {
		opts.Matcher = LooseMatcher{}
	}
	if opts.Currency == "" {
		opts.Currency = DefaultCurrency
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &PromoResolver{
		matcher:  opts.Matcher,
		currency: opts.Currency,
		log:      opts.Logger.Named("pricing.promo"),
	}
}

// Resolve applies the best live promotion for a one-year registration of tld
// to base. With enabled false the promo table is ignored entirely.
func (r *PromoResolver) Resolve(tld string, base, reseller decimal.Decimal, promos registrar.PromoTable, enabled bool, now time.Time) Resolved {
	return r.ResolveFor(tld, registrar.OpAddNewDomain, 1, base, reseller, promos, enabled, now)
}

// ResolveFor applies the best live promotion for op over years. A promotion
// naming another action type or period does not apply.
//
// When several promotions are live for the same TLD, one keyed by an exact
// spelling of the TLD beats a substring match; after that the latest start
// time wins, ties going to the lowest promotion id. A promotion priced above
// base is skipped so a promotional price never exceeds the original.
func (r *PromoResolver) ResolveFor(tld, op string, years int, base, reseller decimal.Decimal, promos registrar.PromoTable, enabled bool, now time.Time) Resolved {
	out := Resolved{
		TLD:           tld,
		Price:         base,
		OriginalPrice: base,
		ResellerPrice: reseller,
		Currency:      r.currency,
	}
	if !enabled || len(promos) == 0 {
		return out
	}

	var live []registrar.Promotion
	for _, p := range promos {
		if !r.matcher.Match(p, tld) {
			continue
		}
		if !appliesTo(p, op, years) {
			r.log.Debug("promotion is for another action or period",
				zap.String("tld", tld),
				zap.String("promotion_id", p.ID),
				zap.String("action_type", p.ActionType),
				zap.String("period", p.Period),
			)
			continue
		}
		if !inWindow(p, now) {
			r.log.Debug("promotion outside its window",
				zap.String("tld", tld),
				zap.String("promotion_id", p.ID),
				zap.Time("starts_at", p.StartTime.Time),
				zap.Time("ends_at", p.EndTime.Time),
			)
			continue
		}
		live = append(live, p)
	}
	if len(live) == 0 {
		return out
	}

	sort.Slice(live, func(i, j int) bool {
		ei, ej := exactKey(live[i], tld), exactKey(live[j], tld)
		if ei != ej {
			return ei
		}
		if !live[i].StartTime.Equal(live[j].StartTime.Time) {
			return live[i].StartTime.After(live[j].StartTime.Time)
		}
		return lessID(live[i].ID, live[j].ID)
	})
	if len(live) > 1 {
		ids := make([]string, len(live))
		for i, p := range live {
			ids[i] = p.ID
		}
		r.log.Info("multiple promotions match tld",
			zap.String("tld", tld),
			zap.Strings("promotion_ids", ids),
		)
	}

	for _, p := range live {
		if p.CustomerPrice.IsNegative() || p.CustomerPrice.GreaterThan(base) {
			r.log.Warn("promotion price not below base price, ignoring",
				zap.String("tld", tld),
				zap.String("promotion_id", p.ID),
				zap.String("promo_price", p.CustomerPrice.String()),
				zap.String("base_price", base.String()),
			)
			continue
		}
		out.Price = p.CustomerPrice
		out.IsPromotional = true
		out.Promotion = &PromoDetails{
			PromotionID:      p.ID,
			ProductKey:       p.ProductKey,
			OriginalPrice:    base,
			PromotionalPrice: p.CustomerPrice,
			ResellerPrice:    p.ResellerPrice,
			Discount:         base.Sub(p.CustomerPrice),
			StartsAt:         p.StartTime.Time,
			EndsAt:           p.EndTime.Time,
			ActionType:       p.ActionType,
			Period:           p.Period,
		}
		return out
	}
	return out
}

// appliesTo reports whether p covers op over years. An empty action type or
// period means the promotion does not restrict it.
func appliesTo(p registrar.Promotion, op string, years int) bool {
	if a := strings.ToLower(strings.TrimSpace(p.ActionType)); a != "" && a != op {
		return false
	}
	if n, err := strconv.Atoi(strings.TrimSpace(p.Period)); err == nil && n != years {
		return false
	}
	return true
}

// exactKey reports whether p's product key is one of the registrar spellings
// of tld rather than a substring hit.
func exactKey(p registrar.Promotion, tld string) bool {
	key := strings.ToLower(strings.TrimSpace(p.ProductKey))
	for _, c := range tldkey.Candidates(strings.ToLower(tld)) {
		if key == strings.ToLower(c) {
			return true
		}
	}
	return false
}

func inWindow(p registrar.Promotion, now time.Time) bool {
	return !now.Before(p.StartTime.Time) && !now.After(p.EndTime.Time)
}

// lessID orders numeric ids numerically and everything else lexically.
func lessID(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
