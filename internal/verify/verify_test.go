package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benithors/resellerkit/internal/registrar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var checkedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type checkerFunc func(ctx context.Context, labels, tlds []string) (registrar.AvailabilityMap, error)

func (f checkerFunc) Availability(ctx context.Context, labels, tlds []string) (registrar.AvailabilityMap, error) {
	return f(ctx, labels, tlds)
}

func respond(m registrar.AvailabilityMap) checkerFunc {
	return func(context.Context, []string, []string) (registrar.AvailabilityMap, error) {
		return m, nil
	}
}

func newTestVerifier(c registrar.AvailabilityChecker) *Verifier {
	return New(Options{
		Client:       c,
		StaggerDelay: time.Nanosecond,
		BatchDelay:   time.Nanosecond,
		SettleDelay:  time.Nanosecond,
		Now:          func() time.Time { return checkedAt },
	})
}

func TestVerify_StillAvailableIsPending(t *testing.T) {
	t.Parallel()

	v := newTestVerifier(respond(registrar.AvailabilityMap{
		"example.com": {Status: "available", ClassKey: "domcno"},
	}))

	r := v.Verify(context.Background(), "example.com")
	assert.Equal(t, StatusPending, r.Status)
	assert.True(t, r.Available)
	assert.Contains(t, r.Reason, "insufficient funds")
	assert.Equal(t, "example.com", r.Domain)
	assert.Equal(t, checkedAt, r.CheckedAt)
}

func TestVerify_TakenIsSuccess(t *testing.T) {
	t.Parallel()

	for _, status := range []string{"taken", "regthroughus", "regthroughothers"} {
		v := newTestVerifier(respond(registrar.AvailabilityMap{"example.com": {Status: status}}))
		r := v.Verify(context.Background(), "example.com")
		assert.Equal(t, StatusSuccess, r.Status, status)
		assert.False(t, r.Available, status)
	}
}

func TestVerify_QueryErrorIsFailed(t *testing.T) {
	t.Parallel()

	v := newTestVerifier(checkerFunc(func(context.Context, []string, []string) (registrar.AvailabilityMap, error) {
		return nil, errors.New("connection reset by peer")
	}))

	r := v.Verify(context.Background(), "example.com")
	assert.Equal(t, StatusFailed, r.Status)
	assert.Contains(t, r.Reason, "connection reset by peer")
}

func TestVerify_MissingIsPendingNeverSuccess(t *testing.T) {
	t.Parallel()

	v := newTestVerifier(respond(registrar.AvailabilityMap{
		"other.net": {Status: "regthroughothers"},
	}))

	r := v.Verify(context.Background(), "example.com")
	assert.Equal(t, StatusPending, r.Status)
	assert.Contains(t, r.Reason, "manual verification")
	assert.Empty(t, r.MatchedKey)

	v = newTestVerifier(respond(registrar.AvailabilityMap{}))
	r = v.Verify(context.Background(), "example.com")
	assert.Equal(t, StatusPending, r.Status)
}

func TestVerify_PartialMatch(t *testing.T) {
	t.Parallel()

	v := newTestVerifier(respond(registrar.AvailabilityMap{
		"EXAMPLE.COM.": {Status: "regthroughus"},
	}))
	r := v.Verify(context.Background(), "example.com")
	assert.Equal(t, StatusSuccess, r.Status)
	assert.Equal(t, "EXAMPLE.COM.", r.MatchedKey)

	v = newTestVerifier(respond(registrar.AvailabilityMap{
		"www.example.com": {Status: "available"},
	}))
	r = v.Verify(context.Background(), "example.com")
	assert.Equal(t, StatusPending, r.Status)
	assert.True(t, r.Available)
	assert.Equal(t, "www.example.com", r.MatchedKey)
}

func TestVerify_UnknownStatusIsPending(t *testing.T) {
	t.Parallel()

	v := newTestVerifier(respond(registrar.AvailabilityMap{"example.com": {Status: "error"}}))
	r := v.Verify(context.Background(), "example.com")
	assert.Equal(t, StatusPending, r.Status)
	assert.Contains(t, r.Reason, "manual verification")
}

func TestVerify_SplitsLabelAndTLD(t *testing.T) {
	t.Parallel()

	var gotLabels, gotTLDs []string
	v := newTestVerifier(checkerFunc(func(_ context.Context, labels, tlds []string) (registrar.AvailabilityMap, error) {
		gotLabels, gotTLDs = labels, tlds
		return registrar.AvailabilityMap{"shop.co.in": {Status: "regthroughus"}}, nil
	}))

	r := v.Verify(context.Background(), " Shop.CO.in ")
	assert.Equal(t, StatusSuccess, r.Status)
	assert.Equal(t, []string{"shop"}, gotLabels)
	assert.Equal(t, []string{"co.in"}, gotTLDs)
	assert.Equal(t, " Shop.CO.in ", r.Domain, "result keeps the caller's spelling")
}

func TestVerify_InvalidDomainIsFailed(t *testing.T) {
	t.Parallel()

	called := false
	v := newTestVerifier(checkerFunc(func(context.Context, []string, []string) (registrar.AvailabilityMap, error) {
		called = true
		return nil, nil
	}))

	r := v.Verify(context.Background(), "localhost")
	assert.Equal(t, StatusFailed, r.Status)
	assert.False(t, called)
}

func TestVerifyMany_BatchesAndOrder(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	var mu sync.Mutex
	calls := 0

	v := newTestVerifier(checkerFunc(func(_ context.Context, labels, tlds []string) (registrar.AvailabilityMap, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		mu.Lock()
		calls++
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)

		name := labels[0] + "." + tlds[0]
		if strings.HasSuffix(labels[0], "7") {
			return nil, errors.New("boom")
		}
		status := "regthroughus"
		if strings.HasSuffix(labels[0], "3") {
			status = "available"
		}
		return registrar.AvailabilityMap{name: {Status: status}}, nil
	}))

	var names []string
	for i := 0; i < 12; i++ {
		names = append(names, fmt.Sprintf("shop%d.com", i))
	}

	results := v.VerifyMany(context.Background(), names)
	require.Len(t, results, len(names))
	for i, r := range results {
		assert.Equal(t, names[i], r.Domain)
	}
	assert.LessOrEqual(t, peak.Load(), int32(5))
	assert.Equal(t, 12, calls)

	s := Summarize(results)
	assert.Equal(t, 12, s.Total)
	assert.Equal(t, 10, s.Success)
	assert.Equal(t, 1, s.Pending)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, []string{"shop3.com"}, s.PendingDomains)
	assert.Equal(t, []string{"shop7.com"}, s.FailedDomains)
	assert.True(t, s.NeedsFollowUp())
}

func TestVerifyMany_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v := newTestVerifier(respond(registrar.AvailabilityMap{}))
	results := v.VerifyMany(ctx, []string{"a.com", "b.com", "c.com", "d.com", "e.com", "f.com"})

	require.Len(t, results, 6)
	for _, r := range results {
		assert.Equal(t, StatusFailed, r.Status, r.Domain)
		assert.Contains(t, r.Reason, "context canceled")
	}
}

func TestSummarize_Empty(t *testing.T) {
	t.Parallel()

	s := Summarize(nil)
	assert.Equal(t, 0, s.Total)
	assert.NotNil(t, s.PendingDomains)
	assert.False(t, s.NeedsFollowUp())
}

type fakeOrders struct {
	ack registrar.Ack
	err error
}

func (f fakeOrders) Register(context.Context, registrar.RegisterRequest) (registrar.Ack, error) {
	return f.ack, f.err
}

func (f fakeOrders) Renew(context.Context, registrar.RenewRequest) (registrar.Ack, error) {
	return f.ack, f.err
}

func (f fakeOrders) Transfer(context.Context, registrar.TransferRequest) (registrar.Ack, error) {
	return f.ack, f.err
}

func TestRegister_AckDoesNotDecideOutcome(t *testing.T) {
	t.Parallel()

	v := newTestVerifier(respond(registrar.AvailabilityMap{"example.com": {Status: "available"}}))
	ack, r := v.Register(context.Background(),
		fakeOrders{ack: registrar.Ack{Status: "Success", EntityID: "1"}},
		registrar.RegisterRequest{Domain: "example.com", Years: 1},
	)
	assert.Equal(t, "1", ack.EntityID)
	assert.Equal(t, StatusPending, r.Status)
	assert.Contains(t, r.Reason, "insufficient funds")
}

func TestRegister_CallError(t *testing.T) {
	t.Parallel()

	v := newTestVerifier(respond(registrar.AvailabilityMap{"example.com": {Status: "regthroughus"}}))
	_, r := v.Register(context.Background(),
		fakeOrders{err: errors.New("invalid contact")},
		registrar.RegisterRequest{Domain: "example.com", Years: 1},
	)
	assert.Equal(t, StatusFailed, r.Status)
	assert.Contains(t, r.Reason, "invalid contact")
}

func TestNew_BatchSizeCeiling(t *testing.T) {
	t.Parallel()

	for in, want := range map[int]int{0: 5, -1: 5, 3: 3, 5: 5, 6: 5, 50: 5} {
		v := New(Options{BatchSize: in})
		assert.Equal(t, want, v.batchSize, "BatchSize=%d", in)
	}
}
