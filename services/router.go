package services

import (
	"context"
	"log/slog"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/observability"
)

// DeliveryRouter applies the three-tier delivery policy shared by every
// outbound chat path: local connection, bus publish, durable offline queue.
type DeliveryRouter struct {
	registry contract.IRegistry
	users    contract.IUserRepository
	bus      contract.IBus
	offline  contract.IOfflineQueue
	metrics  *observability.Metrics
	log      *slog.Logger
}

func NewDeliveryRouter(
	registry contract.IRegistry,
	users contract.IUserRepository,
	bus contract.IBus,
	offline contract.IOfflineQueue,
	metrics *observability.Metrics,
	log *slog.Logger,
) *DeliveryRouter {
	return &DeliveryRouter{
		registry: registry,
		users:    users,
		bus:      bus,
		offline:  offline,
		metrics:  metrics,
		log:      log,
	}
}

// Route delivers a serialized envelope to one target. The policy is
// best-effort: a target logging out between the session check and the send
// can still race us, but every failure biases toward the offline queue so
// the message survives rather than disappearing.
func (r *DeliveryRouter) Route(ctx context.Context, target domain.UserID, payload []byte) (contract.DeliveryOutcome, error) {
	// Tier 1: the target is connected to this instance. The registry copies
	// the handle out under its lock; the send happens outside it.
	if conn, ok := r.registry.Lookup(target); ok {
		sendErr := conn.Send(payload)
		if sendErr == nil {
			r.metrics.DeliveredLocal()
			return contract.DeliveredLocal, nil
		}
		r.log.Warn("local send failed, queuing offline", "target", target, "error", sendErr)
		return r.queue(target, payload)
	}

	// Tier 2: the store says the target is online elsewhere. A store error
	// here reads as "offline" and falls through to the queue.
	user, err := r.users.GetUser(target)
	if err != nil {
		r.log.Warn("presence lookup failed, queuing offline", "target", target, "error", err)
		return r.queue(target, payload)
	}
	if user.State == domain.Online {
		pubErr := r.bus.Publish(ctx, target, payload)
		if pubErr == nil {
			r.metrics.DeliveredRemote()
			return contract.DeliveredRemote, nil
		}
		r.metrics.PublishFailure()
		r.log.Warn("bus publish failed, queuing offline", "target", target, "error", pubErr)
	}

	// Tier 3: durable offline queue.
	return r.queue(target, payload)
}

func (r *DeliveryRouter) queue(target domain.UserID, payload []byte) (contract.DeliveryOutcome, error) {
	if err := r.offline.EnqueueOffline(target, payload); err != nil {
		r.log.Error("offline enqueue failed, message lost", "target", target, "error", err)
		return contract.Queued, err
	}
	r.metrics.QueuedOffline()
	return contract.Queued, nil
}
