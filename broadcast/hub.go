package broadcast

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const inboxSize = 16

var _ Opener = (*Hub)(nil)

// Hub is the in-process Opener: every tab of the browsing context opens its endpoint on the same Hub.
type Hub struct {
	log zerolog.Logger

	mu       sync.RWMutex
	channels map[string]map[string]*endpoint // name -> endpoint id -> endpoint
}

func NewHub() *Hub {
	return &Hub{
		log:      log.Logger,
		channels: make(map[string]map[string]*endpoint),
	}
}

func (h *Hub) Open(_ context.Context, name string) (Channel, error) {
	ep := &endpoint{
		hub:   h,
		name:  name,
		id:    uuid.New().String(),
		inbox: make(chan Event, inboxSize),
		done:  make(chan struct{}),
	}

	h.mu.Lock()
	if _, ok := h.channels[name]; !ok {
		h.channels[name] = make(map[string]*endpoint)
	}
	h.channels[name][ep.id] = ep
	h.mu.Unlock()

	go ep.dispatch()
	return ep, nil
}

func (h *Hub) post(from *endpoint, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ep := range h.channels[from.name] {
		if id == from.id {
			continue
		}
		select {
		case ep.inbox <- ev:
		default:
			// Drop rather than block the sender.
			h.log.Warn().Str("channel", from.name).Str("event", string(ev)).Msg("Broadcast: inbox full, event dropped")
		}
	}
}

func (h *Hub) leave(ep *endpoint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.channels[ep.name], ep.id)
	if len(h.channels[ep.name]) == 0 {
		delete(h.channels, ep.name)
	}
}

type endpoint struct {
	hub   *Hub
	name  string
	id    string
	inbox chan Event

	mu      sync.RWMutex
	handler func(Event)

	closeOnce sync.Once
	done      chan struct{}
}

func (e *endpoint) Name() string {
	return e.name
}

func (e *endpoint) Post(_ context.Context, ev Event) error {
	select {
	case <-e.done:
		return ErrClosed
	default:
	}
	e.hub.post(e, ev)
	return nil
}

func (e *endpoint) Listen(handler func(Event)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = handler
}

func (e *endpoint) Close() error {
	e.closeOnce.Do(func() {
		e.hub.leave(e)
		close(e.done)
	})
	return nil
}

func (e *endpoint) dispatch() {
	for {
		select {
		case <-e.done:
			return
		case ev := <-e.inbox:
			e.mu.RLock()
			handler := e.handler
			e.mu.RUnlock()
			if handler != nil {
				handler(ev)
			}
		}
	}
}
