/*
notify.go - Handoff to the notification dispatcher

PURPOSE:
  On publish (plan) or finalize (counter), the finalized assignment set is
  handed to the dispatcher exactly once, together with a channel selection.
  Delivery and retry semantics are the dispatcher's concern, not the
  engine's.

SEE ALSO:
  - notify/log.go: Logging dispatcher
  - notify/webhook.go: HTTP dispatcher for external alerts
*/
package engine

import (
	"context"
	"time"
)

// ChannelSelection picks delivery channels for one notification.
type ChannelSelection struct {
	InGame               bool
	ExternalAlert        bool
	CreateDiscussionRoom bool
}

// Any reports whether at least one channel is selected.
func (c ChannelSelection) Any() bool {
	return c.InGame || c.ExternalAlert || c.CreateDiscussionRoom
}

// Notification is one finalized assignment set plus channel selection.
// Exactly one of PlanID/CounterID is set.
type Notification struct {
	PlanID    *PlanID
	CounterID *CounterID

	Subject     string
	Assignments []Assignment
	Channels    ChannelSelection
	SentAt      time.Time
}

// Dispatcher accepts finalized assignment sets and delivers asynchronously.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}
