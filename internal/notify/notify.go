// Package notify turns a listing into a chat message and reports whether
// it reached the channel. It never retries and never returns an error:
// failures are part of the Outcome so the caller decides what they mean.
package notify

import (
	"context"
	"fmt"

	"github.com/erkineren/listing-monitor/internal/models"
)

// Sender delivers a text message to the external channel.
type Sender interface {
	Send(ctx context.Context, text string) error
}

type Status int

const (
	Delivered Status = iota
	Failed
)

func (s Status) String() string {
	switch s {
	case Delivered:
		return "delivered"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Outcome is the delivery result for one listing. Err is set iff Status
// is Failed.
type Outcome struct {
	Status Status
	Err    error
}

func (o Outcome) Delivered() bool {
	return o.Status == Delivered
}

// Notifier formats listings and hands them to a Sender.
type Notifier struct {
	sender Sender
}

func New(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

func (n *Notifier) Notify(ctx context.Context, listing models.Listing) Outcome {
	if err := n.sender.Send(ctx, FormatMessage(listing)); err != nil {
		return Outcome{Status: Failed, Err: err}
	}
	return Outcome{Status: Delivered}
}

// FormatMessage renders all four listing fields, one per line.
func FormatMessage(l models.Listing) string {
	return fmt.Sprintf("New Listing:\n%s\nPrice: %s\nArea: %s\nLink: %s", l.Heading, l.Price, l.Area, l.Link)
}
