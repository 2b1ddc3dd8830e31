package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesSent counts messages accepted by Send.
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marianchat_messages_sent_total",
		Help: "Total messages sent.",
	})

	// MessagesEdited counts successful in-window edits.
	MessagesEdited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marianchat_messages_edited_total",
		Help: "Total messages edited.",
	})

	// MessagesDeleted counts permanent deletions.
	MessagesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marianchat_messages_deleted_total",
		Help: "Total messages deleted.",
	})

	// MessagesSeen counts seen transitions (false to true).
	MessagesSeen = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marianchat_messages_seen_total",
		Help: "Total messages marked seen.",
	})

	// ActiveSubscriptions tracks live snapshot subscriptions.
	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marianchat_active_subscriptions",
		Help: "Currently active snapshot subscriptions.",
	})

	// SnapshotsDelivered counts snapshots handed to subscribers.
	SnapshotsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marianchat_snapshots_delivered_total",
		Help: "Total snapshots delivered to subscribers.",
	})

	// EditRejections counts edits refused for window or ownership reasons.
	EditRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marianchat_edit_rejections_total",
		Help: "Edits rejected, by reason.",
	}, []string{"reason"})
)
