package registrar

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Registrar operation keys inside a price record.
const (
	OpAddNewDomain      = "addnewdomain"
	OpRenewDomain       = "renewdomain"
	OpAddTransferDomain = "addtransferdomain"
)

// PriceTable maps a registrar key (com, .com, COM, dotcom, centralniczaco.za, ...)
// to its per-operation prices.
type PriceTable map[string]OperationPrices

// OperationPrices maps an operation key to prices by duration.
type OperationPrices map[string]DurationPrices

// DurationPrices maps a stringified year count ("1", "2", ...) to a price.
type DurationPrices map[string]decimal.Decimal

// UnmarshalJSON skips entries that are not price records. The registrar mixes
// metadata scalars into the same objects.
func (t *PriceTable) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(PriceTable, len(raw))
	for key, v := range raw {
		if !isObject(v) {
			continue
		}
		var rec OperationPrices
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		if len(rec) == 0 {
			continue
		}
		out[key] = rec
	}
	*t = out
	return nil
}

func (o *OperationPrices) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(OperationPrices, len(raw))
	for op, v := range raw {
		if !isObject(v) {
			continue
		}
		var d DurationPrices
		if err := json.Unmarshal(v, &d); err != nil {
			return err
		}
		if len(d) == 0 {
			continue
		}
		out[op] = d
	}
	*o = out
	return nil
}

func (d *DurationPrices) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(DurationPrices, len(raw))
	for years, v := range raw {
		price, ok := parseDecimal(v)
		if !ok {
			continue
		}
		out[strings.TrimSpace(years)] = price
	}
	*d = out
	return nil
}

// Price returns the price for op and a duration in years.
func (o OperationPrices) Price(op string, years int) (decimal.Decimal, bool) {
	d, ok := o[op]
	if !ok {
		return decimal.Decimal{}, false
	}
	p, ok := d[strconv.Itoa(years)]
	return p, ok
}

// PromoTable is the promo-details feed keyed by promotion id.
type PromoTable map[string]Promotion

type Promotion struct {
	ID            string          `json:"-"`
	ProductKey    string          `json:"productkey"`
	CustomerPrice decimal.Decimal `json:"customerprice"`
	ResellerPrice decimal.Decimal `json:"resellerprice"`
	StartTime     Epoch           `json:"starttime"`
	EndTime       Epoch           `json:"endtime"`
	IsActive      Flag            `json:"isactive"`
	Period        string          `json:"period"`
	ActionType    string          `json:"actiontype"`
}

// UnmarshalJSON copies each map key into Promotion.ID.
func (t *PromoTable) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(PromoTable, len(raw))
	for id, v := range raw {
		if !isObject(v) {
			continue
		}
		var p promotionJSON
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		promo := Promotion{
			ID:         id,
			ProductKey: strings.TrimSpace(p.ProductKey),
			StartTime:  p.StartTime,
			EndTime:    p.EndTime,
			IsActive:   p.IsActive,
			Period:     strings.TrimSpace(string(p.Period)),
			ActionType: strings.TrimSpace(p.ActionType),
		}
		var ok bool
		if promo.CustomerPrice, ok = parseDecimal(p.CustomerPrice); !ok {
			continue
		}
		promo.ResellerPrice, _ = parseDecimal(p.ResellerPrice)
		out[id] = promo
	}
	*t = out
	return nil
}

type promotionJSON struct {
	ProductKey    string          `json:"productkey"`
	CustomerPrice json.RawMessage `json:"customerprice"`
	ResellerPrice json.RawMessage `json:"resellerprice"`
	StartTime     Epoch           `json:"starttime"`
	EndTime       Epoch           `json:"endtime"`
	IsActive      Flag            `json:"isactive"`
	Period        looseString     `json:"period"`
	ActionType    string          `json:"actiontype"`
}

// Epoch is a registrar timestamp sent as epoch seconds, either as a JSON
// number or a numeric string.
type Epoch struct {
	time.Time
}

func (e *Epoch) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		e.Time = time.Time{}
		return nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	e.Time = time.Unix(int64(secs), 0).UTC()
	return nil
}

func (e Epoch) MarshalJSON() ([]byte, error) {
	if e.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(e.Unix(), 10)), nil
}

// Flag decodes true/false from a JSON bool or a "true"/"yes"/"1" string.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	s := strings.ToLower(strings.Trim(strings.TrimSpace(string(b)), `"`))
	switch s {
	case "true", "yes", "1", "y":
		*f = true
	default:
		*f = false
	}
	return nil
}

type looseString string

func (l *looseString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*l = ""
		return nil
	}
	*l = looseString(strings.Trim(s, `"`))
	return nil
}

// AvailabilityMap is keyed by the full domain name.
type AvailabilityMap map[string]AvailabilityEntry

type AvailabilityEntry struct {
	Status   string `json:"status"`
	ClassKey string `json:"classkey,omitempty"`
}

// Available reports whether the registrar would accept a new registration.
func (e AvailabilityEntry) Available() bool {
	return strings.EqualFold(strings.TrimSpace(e.Status), "available")
}

// Registered reports whether the name is held by anyone, including us.
func (e AvailabilityEntry) Registered() bool {
	switch strings.ToLower(strings.TrimSpace(e.Status)) {
	case "taken", "regthroughus", "regthroughothers", "registered":
		return true
	default:
		return false
	}
}

func isObject(b json.RawMessage) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{'
}

func parseDecimal(b json.RawMessage) (decimal.Decimal, bool) {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
