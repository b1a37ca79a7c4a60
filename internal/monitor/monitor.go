// Package monitor runs one fetch → diff → notify → persist cycle.
//
// A listing is written to the store only after a notification attempt,
// and it is written whether or not that attempt succeeded. A crash
// between the two steps re-notifies on the next run; nothing is ever
// stored without having been surfaced first.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/erkineren/listing-monitor/internal/diff"
	"github.com/erkineren/listing-monitor/internal/models"
	"github.com/erkineren/listing-monitor/internal/notify"
	"github.com/erkineren/listing-monitor/internal/scraper"
	"github.com/erkineren/listing-monitor/internal/store"
)

// persistTimeout bounds the persist phase, which keeps running after
// the cycle context is cancelled so notified listings are still recorded.
const persistTimeout = 30 * time.Second

type Notifier interface {
	Notify(ctx context.Context, listing models.Listing) notify.Outcome
}

type Options struct {
	// NotifyAttempts is the number of tries per listing; below 1 means 1.
	NotifyAttempts int
	// NotifyBackoff is the wait before the first retry, doubled after each.
	NotifyBackoff time.Duration
}

type Monitor struct {
	fetcher  scraper.Fetcher
	open     store.Opener
	notifier Notifier
	opts     Options
	sleep    func(ctx context.Context, d time.Duration) error
}

func New(fetcher scraper.Fetcher, open store.Opener, notifier Notifier, opts Options) *Monitor {
	if opts.NotifyAttempts < 1 {
		opts.NotifyAttempts = 1
	}
	return &Monitor{
		fetcher:  fetcher,
		open:     open,
		notifier: notifier,
		opts:     opts,
		sleep:    sleepContext,
	}
}

// RunCycle never panics and never returns nil. The store is opened at
// the start of the cycle and closed on every path out of it.
func (m *Monitor) RunCycle(ctx context.Context) (res *Result) {
	res = &Result{
		CycleID: uuid.NewString(),
		State:   Idle,
		Started: time.Now(),
	}
	logf := func(format string, args ...any) {
		log.Printf("[cycle %s] "+format, append([]any{res.CycleID[:8]}, args...)...)
	}

	defer func() {
		if r := recover(); r != nil {
			res.abort(fmt.Errorf("unexpected panic: %v", r))
		}
		res.Finished = time.Now()
		if res.Aborted() {
			logf("Cycle aborted while %s after %v: %v", res.AbortedIn, res.Duration(), res.Err)
			return
		}
		logf("Cycle completed in %v: %d fetched, %d new, %d undelivered", res.Duration(), res.Fetched, len(res.New), len(res.Undelivered()))
	}()

	res.State = Fetching
	logf("Opening listing store...")
	st, err := m.open(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrUnavailable) {
			err = fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}
		res.abort(err)
		return res
	}
	defer func() {
		if err := st.Close(); err != nil {
			logf("Error closing listing store: %v", err)
		}
	}()

	logf("Fetching listings...")
	batch, err := m.fetcher.Fetch(ctx)
	if err != nil {
		var fetchErr *scraper.FetchError
		if !errors.As(err, &fetchErr) {
			err = &scraper.FetchError{Reason: scraper.ReasonTransport, Err: err}
		}
		res.abort(err)
		return res
	}
	if len(batch) == 0 {
		res.abort(&scraper.FetchError{Reason: scraper.ReasonNoMatchingElements, Err: errors.New("fetcher returned an empty batch")})
		return res
	}
	res.Fetched = len(batch)
	logf("Fetched %d listings", len(batch))

	res.State = Diffing
	stored, err := st.LoadAll(ctx)
	if err != nil {
		res.abort(err)
		return res
	}
	res.Known = len(stored)
	fresh := diff.ComputeNew(batch, diff.Known(stored))
	logf("Found %d new listings (%d already known)", len(fresh), len(stored))

	if len(fresh) == 0 {
		res.State = Done
		return res
	}

	res.State = Notifying
	res.New = make([]ListingOutcome, 0, len(fresh))
	for _, l := range fresh {
		if ctx.Err() != nil {
			break
		}
		out, attempts := m.notifyWithRetry(ctx, l, logf)
		// A failure caused by cancellation never reached the channel, so the
		// listing is left for the next cycle instead of being stored.
		if !out.Delivered() && ctx.Err() != nil {
			break
		}
		res.New = append(res.New, ListingOutcome{Listing: l, Notify: out, Attempts: attempts})
		if !out.Delivered() {
			logf("Error sending notification for %s: %v", l.Link, out.Err)
		}
	}
	if res.Deferred = len(fresh) - len(res.New); res.Deferred > 0 {
		logf("Cycle cancelled, %d listings left for the next run: %v", res.Deferred, ctx.Err())
	}

	res.State = Persisting
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	for i := range res.New {
		o := &res.New[i]
		inserted, err := st.InsertIfAbsent(persistCtx, o.Listing)
		if err != nil {
			res.abort(err)
			return res
		}
		o.Persisted = true
		o.Inserted = inserted
		if !inserted {
			logf("Listing %s was already stored by another cycle", o.Listing.Link)
		}
	}

	res.State = Done
	return res
}

func (m *Monitor) notifyWithRetry(ctx context.Context, l models.Listing, logf func(string, ...any)) (notify.Outcome, int) {
	backoff := m.opts.NotifyBackoff
	for attempt := 1; ; attempt++ {
		out := m.notifier.Notify(ctx, l)
		if out.Delivered() || attempt >= m.opts.NotifyAttempts {
			return out, attempt
		}

		logf("Attempt %d/%d for %s failed: %v, retrying in %v", attempt, m.opts.NotifyAttempts, l.Link, out.Err, backoff)
		if err := m.sleep(ctx, backoff); err != nil {
			return out, attempt
		}
		backoff *= 2
	}
}

func (r *Result) abort(err error) {
	r.AbortedIn = r.State
	r.State = Aborted
	r.Err = err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
