// Package dispatch maps inbound envelope types to their handlers. The table
// is built once at startup and read-only afterwards.
package dispatch

import (
	"context"
	"log/slog"

	"chat-relay/contract"
	"chat-relay/protocol"
)

type Handler func(ctx context.Context, conn contract.Sender, env protocol.Envelope)

type Dispatcher struct {
	handlers map[protocol.MsgType]Handler
	log      *slog.Logger
}

func NewDispatcher(log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[protocol.MsgType]Handler),
		log:      log,
	}
}

func (d *Dispatcher) Register(t protocol.MsgType, h Handler) {
	d.handlers[t] = h
}

// Resolve returns the handler for a type. Unknown types get a fallback that
// logs and does nothing: a client sending garbage ids must never crash the
// instance or provoke a response.
func (d *Dispatcher) Resolve(t protocol.MsgType) Handler {
	if h, ok := d.handlers[t]; ok {
		return h
	}
	return func(ctx context.Context, conn contract.Sender, env protocol.Envelope) {
		d.log.Error("no handler registered for msgid", "msgid", int(env.MsgID))
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, conn contract.Sender, env protocol.Envelope) {
	d.Resolve(env.MsgID)(ctx, conn, env)
}
