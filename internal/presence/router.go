package presence

import (
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Tyrowin/pairchat/internal/event"
)

// Router delivers domain events to every live handle of every recipient.
//
// Delivery is best effort: a handle that refuses a payload (closed, or its buffer is
// full) is skipped and the others still receive it. Payloads reach one handle in the
// order Deliver was called for it.
type Router struct {
	registry *Registry
	log      *zap.Logger
}

// NewRouter creates a Router over registry.
func NewRouter(registry *Registry, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{registry: registry, log: log}
}

// Deliver fans evt out and returns how many handles accepted it.
func (rt *Router) Deliver(evt event.DomainEvent) int {
	payload, err := event.Encode(evt)
	if err != nil {
		rt.log.Error("encode event", zap.String("type", string(evt.Type())), zap.Error(err))
		return 0
	}

	delivered := 0
	for _, identity := range lo.Uniq(evt.Recipients()) {
		for _, h := range rt.registry.HandlesFor(identity) {
			if rt.DeliverTo(h, payload) {
				delivered++
			}
		}
	}

	rt.log.Debug("event delivered",
		zap.String("type", string(evt.Type())),
		zap.Int("handles", delivered),
	)
	return delivered
}

// DeliverTo pushes an already encoded payload to a single handle.
func (rt *Router) DeliverTo(h Handle, payload []byte) bool {
	if h.Send(payload) {
		return true
	}
	rt.log.Debug("dropped payload for handle", zap.String("conn", h.ID()))
	return false
}
