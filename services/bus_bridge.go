package services

import (
	"log/slog"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/observability"
)

// BusBridge is the inbound half of the bus: another instance routed a
// message to a user we were subscribed for. The subscription does not prove
// the session still exists, so the local/offline decision is re-applied.
type BusBridge struct {
	registry contract.IRegistry
	offline  contract.IOfflineQueue
	metrics  *observability.Metrics
	log      *slog.Logger
}

func NewBusBridge(registry contract.IRegistry, offline contract.IOfflineQueue, metrics *observability.Metrics, log *slog.Logger) *BusBridge {
	return &BusBridge{registry: registry, offline: offline, metrics: metrics, log: log}
}

// Handle delivers one bus message locally, or queues it offline if the
// session ended between the remote publish and this delivery.
func (b *BusBridge) Handle(userID domain.UserID, payload []byte) {
	if conn, ok := b.registry.Lookup(userID); ok {
		if err := conn.Send(payload); err == nil {
			b.metrics.DeliveredLocal()
			return
		}
		b.log.Warn("bus-delivered send failed, queuing offline", "user", userID)
	}
	if err := b.offline.EnqueueOffline(userID, payload); err != nil {
		b.log.Error("offline enqueue of bus message failed, message lost", "user", userID, "error", err)
		return
	}
	b.metrics.QueuedOffline()
}
