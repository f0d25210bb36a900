// Package verify infers whether a paid registration actually went through.
//
// The registrar acknowledges register calls with a success envelope even when
// the charge against the reseller balance failed. The only observable symptom
// is that the domain is still available afterwards, so the verifier re-queries
// availability and classifies the attempt from that.
package verify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/benithors/resellerkit/internal/domain"
	"github.com/benithors/resellerkit/internal/metrics"
	"github.com/benithors/resellerkit/internal/registrar"
	"go.uber.org/zap"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusPending Status = "pending"
	StatusFailed  Status = "failed"
)

const (
	ReasonStillAvailable = "still available: registration likely failed due to insufficient funds"
	ReasonRegistered     = "domain is registered"
	ReasonNotReported    = "domain missing from availability response: needs manual verification"
)

// Result is the outcome of one verification. It is built once and not
// modified afterwards.
type Result struct {
	Domain     string    `json:"domain"`
	Available  bool      `json:"is_available"`
	Status     Status    `json:"registration_status"`
	Reason     string    `json:"reason"`
	MatchedKey string    `json:"matched_key,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

type Options struct {
	Client registrar.AvailabilityChecker

	// BatchSize is the number of availability queries in flight at once.
	BatchSize int
	// StaggerDelay spaces out the starts of queries within a batch.
	StaggerDelay time.Duration
	// BatchDelay is the pause between batches.
	BatchDelay time.Duration
	// SettleDelay is waited after a register call before re-checking.
	SettleDelay time.Duration

	Now     func() time.Time
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

type Verifier struct {
	client       registrar.AvailabilityChecker
	batchSize    int
	staggerDelay time.Duration
	batchDelay   time.Duration
	settleDelay  time.Duration
	now          func() time.Time
	log          *zap.Logger
	m            *metrics.Metrics
}

const maxBatchSize = 5

func New(opts Options) *Verifier {
	// The registrar rejects more than five concurrent availability queries.
	if opts.BatchSize <= 0 || opts.BatchSize > maxBatchSize {
		opts.BatchSize = maxBatchSize
	}
	if opts.StaggerDelay <= 0 {
		opts.StaggerDelay = 100 * time.Millisecond
	}
	if opts.BatchDelay <= 0 {
		opts.BatchDelay = time.Second
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = 3 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Verifier{
		client:       opts.Client,
		batchSize:    opts.BatchSize,
		staggerDelay: opts.StaggerDelay,
		batchDelay:   opts.BatchDelay,
		settleDelay:  opts.SettleDelay,
		now:          opts.Now,
		log:          opts.Logger.Named("verify"),
		m:            opts.Metrics,
	}
}

// Verify re-queries availability for name and classifies the registration:
// still available means pending (likely insufficient funds), registered means
// success, a failed query means failed. A name the registrar does not report
// is pending, never success.
func (v *Verifier) Verify(ctx context.Context, name string) Result {
	ascii, err := domain.Normalize(name)
	if err != nil {
		return v.finish(Result{Domain: name, Status: StatusFailed, Reason: "invalid domain: " + err.Error()})
	}
	label, tld, err := domain.Split(ascii)
	if err != nil {
		return v.finish(Result{Domain: name, Status: StatusFailed, Reason: err.Error()})
	}

	avail, err := v.client.Availability(ctx, []string{label}, []string{tld})
	if err != nil {
		return v.finish(Result{Domain: name, Status: StatusFailed, Reason: "availability check failed: " + err.Error()})
	}

	key, entry, ok := lookup(avail, ascii)
	if !ok {
		return v.finish(Result{Domain: name, Status: StatusPending, Reason: ReasonNotReported})
	}

	r := Result{Domain: name}
	if key != ascii {
		r.MatchedKey = key
	}
	switch {
	case entry.Available():
		r.Available = true
		r.Status = StatusPending
		r.Reason = ReasonStillAvailable
	case entry.Registered():
		r.Status = StatusSuccess
		r.Reason = ReasonRegistered
	default:
		r.Status = StatusPending
		r.Reason = fmt.Sprintf("registrar reported status %q: needs manual verification", entry.Status)
	}
	return v.finish(r)
}

func (v *Verifier) finish(r Result) Result {
	r.CheckedAt = v.now().UTC()
	v.m.Verification(string(r.Status))
	if r.Status != StatusSuccess {
		v.log.Warn("registration needs follow-up",
			zap.String("domain", r.Domain),
			zap.String("status", string(r.Status)),
			zap.String("reason", r.Reason),
		)
	} else {
		v.log.Debug("registration confirmed", zap.String("domain", r.Domain))
	}
	return r
}

// lookup finds name in the response, first exactly and then by substring in
// either direction, because the registrar sometimes echoes a variant of the
// queried name.
func lookup(avail registrar.AvailabilityMap, name string) (string, registrar.AvailabilityEntry, bool) {
	keys := make([]string, 0, len(avail))
	for k := range avail {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if strings.EqualFold(strings.TrimSuffix(k, "."), name) {
			return k, avail[k], true
		}
	}
	for _, k := range keys {
		lk := strings.ToLower(strings.TrimSpace(k))
		if lk == "" {
			continue
		}
		if strings.Contains(lk, name) || strings.Contains(name, lk) {
			return k, avail[k], true
		}
	}
	return "", registrar.AvailabilityEntry{}, false
}

// VerifyMany verifies names in batches of BatchSize. Results come back in
// input order and each carries its domain. If ctx ends, names not yet started
// are reported as failed.
func (v *Verifier) VerifyMany(ctx context.Context, names []string) []Result {
	results := make([]Result, len(names))

	for start := 0; start < len(names); start += v.batchSize {
		if start > 0 {
			if err := sleep(ctx, v.batchDelay); err != nil {
				for i := start; i < len(names); i++ {
					results[i] = v.notAttempted(names[i], err)
				}
				break
			}
		}
		end := min(start+v.batchSize, len(names))

		var wg sync.WaitGroup
		wg.Add(end - start)
		for i := start; i < end; i++ {
			go func(i int, wait time.Duration) {
				defer wg.Done()
				if err := sleep(ctx, wait); err != nil {
					results[i] = v.notAttempted(names[i], err)
					return
				}
				results[i] = v.Verify(ctx, names[i])
			}(i, time.Duration(i-start)*v.staggerDelay)
		}
		wg.Wait()
	}
	return results
}

func (v *Verifier) notAttempted(name string, err error) Result {
	return v.finish(Result{Domain: name, Status: StatusFailed, Reason: "verification not attempted: " + err.Error()})
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
