package monitor

import (
	"fmt"
	"io"
	"time"

	"github.com/erkineren/listing-monitor/internal/models"
	"github.com/erkineren/listing-monitor/internal/notify"
)

type State int

const (
	Idle State = iota
	Fetching
	Diffing
	Notifying
	Persisting
	Done
	Aborted
)

var stateNames = map[State]string{
	Idle:       "idle",
	Fetching:   "fetching",
	Diffing:    "diffing",
	Notifying:  "notifying",
	Persisting: "persisting",
	Done:       "done",
	Aborted:    "aborted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ListingOutcome is what happened to one new listing during a cycle.
type ListingOutcome struct {
	Listing  models.Listing
	Notify   notify.Outcome
	Attempts int
	// Persisted is true once InsertIfAbsent returned without error.
	Persisted bool
	// Inserted is false when another cycle stored the link first.
	Inserted bool
}

// Result is returned from every cycle, successful or not.
type Result struct {
	CycleID string
	State   State
	// AbortedIn is the state the cycle was in when it aborted.
	AbortedIn State
	Fetched   int
	Known     int
	New       []ListingOutcome
	// Deferred counts new listings not notified because the cycle was
	// cancelled. They are not stored and come up again next run.
	Deferred int
	Err      error
	Started  time.Time
	Finished time.Time
}

func (r *Result) Aborted() bool {
	return r.State == Aborted
}

// Undelivered returns the new listings whose notification failed.
func (r *Result) Undelivered() []ListingOutcome {
	var failed []ListingOutcome
	for _, o := range r.New {
		if !o.Notify.Delivered() {
			failed = append(failed, o)
		}
	}
	return failed
}

func (r *Result) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Report writes the human-readable cycle summary.
func (r *Result) Report(w io.Writer) {
	if r.Aborted() {
		fmt.Fprintf(w, "Cycle %s aborted while %s: %v\n", r.CycleID, r.AbortedIn, r.Err)
	}

	if r.Deferred > 0 {
		fmt.Fprintf(w, "%d new listings deferred to the next run\n", r.Deferred)
	}

	if len(r.New) == 0 {
		if !r.Aborted() && r.Deferred == 0 {
			fmt.Fprintln(w, "No new listings found.")
		}
		return
	}

	for _, o := range r.New {
		l := o.Listing
		status := o.Notify.Status.String()
		if o.Notify.Err != nil {
			status = fmt.Sprintf("%s: %v", status, o.Notify.Err)
		}
		fmt.Fprintf(w, "New Listing: %s - %s - %s - %s [%s]\n", l.Heading, l.Price, l.Area, l.Link, status)
	}

	if failed := len(r.Undelivered()); failed > 0 {
		fmt.Fprintf(w, "%d of %d notifications failed\n", failed, len(r.New))
	}
}
