// Package broadcast is a publish/subscribe channel scoped to one browsing context.
// A message posted on an endpoint reaches every other endpoint of the same name that is
// open at that moment. There is no replay for endpoints opened later.
package broadcast

import (
	"context"

	"github.com/jrsteele09/go-auth-client/internal/errors"
)

// Event is the payload carried on a channel.
type Event string

// EventSignOut tells every other tab to drop its session.
const EventSignOut Event = "signOut"

var ErrClosed = errors.ErrChannelClosed

// Channel is one tab's endpoint on a named channel.
type Channel interface {
	Name() string

	// Post delivers ev to every other open endpoint; the sender does not receive it
	Post(ctx context.Context, ev Event) error

	// Listen sets the handler for events posted by other endpoints. Events are
	// handled one at a time in arrival order.
	Listen(handler func(Event))

	Close() error
}

// Opener opens endpoints on named channels.
type Opener interface {
	Open(ctx context.Context, name string) (Channel, error)
}
