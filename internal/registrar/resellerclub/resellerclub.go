package resellerclub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benithors/resellerkit/internal/registrar"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://httpapi.com/api"

type Options struct {
	AuthUserID string
	APIKey     string
	BaseURL    string
	Timeout    time.Duration

	// Client-side pacing to stay under the reseller account's request quota.
	MinDelay      time.Duration
	MaxConcurrent int
	UserAgent     string

	Logger *zap.Logger
}

type Client struct {
	opts Options
	http *http.Client
	log  *zap.Logger

	sem chan struct{}

	mu            sync.Mutex
	nextRequestAt time.Time
}

// APIError is returned for non-2xx responses and for ERROR envelopes.
type APIError struct {
	Endpoint   string
	HTTPStatus int
	Message    string
}

func (e *APIError) Error() string {
	if e.HTTPStatus != 0 && e.HTTPStatus != http.StatusOK {
		return fmt.Sprintf("resellerclub: %s: http %d: %s", e.Endpoint, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("resellerclub: %s: %s", e.Endpoint, e.Message)
}

func NewClient(opts Options) (*Client, error) {
	opts.AuthUserID = strings.TrimSpace(opts.AuthUserID)
	opts.APIKey = strings.TrimSpace(opts.APIKey)
	if opts.AuthUserID == "" || opts.APIKey == "" {
		return nil, fmt.Errorf("resellerclub: %w (set RESELLERKIT_AUTH_USERID and RESELLERKIT_API_KEY)", registrar.ErrMissingCredentials)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MinDelay < 0 {
		opts.MinDelay = 0
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 8
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "resellerkit/registrar-resellerclub"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Client{
		opts: opts,
		http: &http.Client{Timeout: opts.Timeout},
		log:  opts.Logger.Named("resellerclub"),
		sem:  make(chan struct{}, opts.MaxConcurrent),
	}, nil
}

func (c *Client) Name() string { return "resellerclub" }

func (c *Client) CustomerPrices(ctx context.Context) (registrar.PriceTable, error) {
	var t registrar.PriceTable
	if err := c.get(ctx, "products/customer-price.json", nil, &t); err != nil {
		return nil, err
	}
	return t, nil
}

func (c *Client) ResellerPrices(ctx context.Context) (registrar.PriceTable, error) {
	var t registrar.PriceTable
	if err := c.get(ctx, "products/reseller-price.json", nil, &t); err != nil {
		return nil, err
	}
	return t, nil
}

func (c *Client) Promotions(ctx context.Context) (registrar.PromoTable, error) {
	var t registrar.PromoTable
	if err := c.get(ctx, "products/promo-details.json", nil, &t); err != nil {
		return nil, err
	}
	return t, nil
}

func (c *Client) Availability(ctx context.Context, labels, tlds []string) (registrar.AvailabilityMap, error) {
	if len(labels) == 0 || len(tlds) == 0 {
		return nil, fmt.Errorf("resellerclub: availability needs at least one label and one tld")
	}
	q := url.Values{}
	for _, l := range labels {
		q.Add("domain-name", strings.TrimSpace(l))
	}
	for _, t := range tlds {
		q.Add("tlds", strings.TrimPrefix(strings.TrimSpace(t), "."))
	}
	var raw map[string]json.RawMessage
	if err := c.get(ctx, "domains/available.json", q, &raw); err != nil {
		return nil, err
	}
	out := make(registrar.AvailabilityMap, len(raw))
	for name, v := range raw {
		var e registrar.AvailabilityEntry
		if err := json.Unmarshal(v, &e); err != nil {
			// Non-object members (e.g. a top-level status) are not domains.
			continue
		}
		out[name] = e
	}
	return out, nil
}

func (c *Client) Register(ctx context.Context, req registrar.RegisterRequest) (registrar.Ack, error) {
	if strings.TrimSpace(req.Domain) == "" {
		return registrar.Ack{}, fmt.Errorf("resellerclub: empty domain")
	}
	q := url.Values{}
	q.Set("domain-name", strings.TrimSpace(req.Domain))
	q.Set("years", strconv.Itoa(max(1, req.Years)))
	q.Set("customer-id", strconv.FormatInt(req.CustomerID, 10))
	addContacts(q, req.Contacts)
	addNameServers(q, req.NameServers)
	q.Set("invoice-option", invoiceOption(req.InvoiceOption))
	if req.Privacy {
		q.Set("purchase-privacy", "true")
		q.Set("protect-privacy", "true")
	}
	return c.action(ctx, "domains/register.json", q)
}

func (c *Client) Renew(ctx context.Context, req registrar.RenewRequest) (registrar.Ack, error) {
	q := url.Values{}
	q.Set("order-id", strconv.FormatInt(req.OrderID, 10))
	q.Set("years", strconv.Itoa(max(1, req.Years)))
	q.Set("exp-date", strconv.FormatInt(req.ExpiresAt, 10))
	q.Set("invoice-option", invoiceOption(req.InvoiceOption))
	return c.action(ctx, "domains/renew.json", q)
}

func (c *Client) Transfer(ctx context.Context, req registrar.TransferRequest) (registrar.Ack, error) {
	if strings.TrimSpace(req.Domain) == "" {
		return registrar.Ack{}, fmt.Errorf("resellerclub: empty domain")
	}
	q := url.Values{}
	q.Set("domain-name", strings.TrimSpace(req.Domain))
	if req.AuthCode != "" {
		q.Set("auth-code", req.AuthCode)
	}
	q.Set("customer-id", strconv.FormatInt(req.CustomerID, 10))
	addContacts(q, req.Contacts)
	addNameServers(q, req.NameServers)
	q.Set("invoice-option", invoiceOption(req.InvoiceOption))
	return c.action(ctx, "domains/transfer.json", q)
}

func (c *Client) action(ctx context.Context, endpoint string, q url.Values) (registrar.Ack, error) {
	var ack registrar.Ack
	if err := c.do(ctx, http.MethodPost, endpoint, q, &ack); err != nil {
		return registrar.Ack{}, err
	}
	c.log.Info("registrar action accepted",
		zap.String("endpoint", endpoint),
		zap.String("domain", q.Get("domain-name")),
		zap.String("entity_id", ack.EntityID),
		zap.String("action_status", ack.ActionStatus),
	)
	return ack, nil
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values, into any) error {
	return c.do(ctx, http.MethodGet, endpoint, q, into)
}

func (c *Client) do(ctx context.Context, method, endpoint string, q url.Values, into any) error {
	// Limit in-flight requests.
	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := c.throttle(ctx); err != nil {
		return err
	}

	if q == nil {
		q = url.Values{}
	}
	q.Set("auth-userid", c.opts.AuthUserID)
	q.Set("api-key", c.opts.APIKey)
	u := strings.TrimRight(c.opts.BaseURL, "/") + "/" + endpoint + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("user-agent", c.opts.UserAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("resellerclub: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("resellerclub: %s: read body: %w", endpoint, err)
	}
	c.log.Debug("registrar response",
		zap.String("endpoint", endpoint),
		zap.Int("http_status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Endpoint: endpoint, HTTPStatus: resp.StatusCode, Message: errorMessage(b)}
	}
	if msg, isErr := errorEnvelope(b); isErr {
		return &APIError{Endpoint: endpoint, HTTPStatus: resp.StatusCode, Message: msg}
	}
	if err := json.Unmarshal(b, into); err != nil {
		return fmt.Errorf("resellerclub: %s: decode error: %w", endpoint, err)
	}
	return nil
}

func (c *Client) throttle(ctx context.Context) error {
	if c.opts.MinDelay <= 0 {
		return nil
	}
	c.mu.Lock()
	now := time.Now()
	scheduled := now
	if scheduled.Before(c.nextRequestAt) {
		scheduled = c.nextRequestAt
	}
	c.nextRequestAt = scheduled.Add(c.opts.MinDelay)
	c.mu.Unlock()

	wait := time.Until(scheduled)
	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// errorEnvelope detects {"status":"ERROR","message":"..."} bodies, which the
// registrar sends with HTTP 200 for some failures.
func errorEnvelope(b []byte) (string, bool) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return "", false
	}
	if !strings.EqualFold(strings.TrimSpace(env.Status), "error") {
		return "", false
	}
	return firstNonEmpty(env.Message, env.Error, "unknown error"), true
}

func errorMessage(b []byte) string {
	var env envelope
	if err := json.Unmarshal(b, &env); err == nil {
		if msg := firstNonEmpty(env.Message, env.Error); msg != "" {
			return msg
		}
	}
	s := strings.TrimSpace(string(b))
	if len(s) > 512 {
		s = s[:512]
	}
	return s
}

func addContacts(q url.Values, c registrar.Contacts) {
	q.Set("reg-contact-id", strconv.FormatInt(c.Registrant, 10))
	q.Set("admin-contact-id", strconv.FormatInt(c.Admin, 10))
	q.Set("tech-contact-id", strconv.FormatInt(c.Tech, 10))
	q.Set("billing-contact-id", strconv.FormatInt(c.Billing, 10))
}

func addNameServers(q url.Values, ns []string) {
	for _, n := range ns {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		q.Add("ns", n)
	}
}

func invoiceOption(s string) string {
	switch strings.TrimSpace(s) {
	case "PayInvoice", "KeepInvoice", "OnlyAdd":
		return s
	default:
		return "NoInvoice"
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
