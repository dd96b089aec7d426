package services

import (
	"context"
	"encoding/json"

	"github.com/havenhub/apiserver/internal/mq"
	"github.com/havenhub/apiserver/types"
	"go.uber.org/zap"
)

// NotificationChannel is the bus channel role and approval events are
// published on. The notification layer (email etc.) consumes it.
const NotificationChannel = "havenhub.notifications"

// Notifier publishes workflow outcomes for the notification layer.
// Publishing is best-effort: a broker failure never fails the workflow.
type Notifier interface {
	RoleChanged(ctx context.Context, event types.RoleChangedEvent)
	PropertyDecided(ctx context.Context, event types.PropertyDecidedEvent)
	TenantAssigned(ctx context.Context, event types.TenantAssignedEvent)
	LeaseEnded(ctx context.Context, event types.LeaseEndedEvent)
	PaymentRecorded(ctx context.Context, event types.PaymentRecordedEvent)
}

// BusNotifier publishes events to the message bus as JSON.
type BusNotifier struct {
	bus    *mq.MQ
	logger *zap.Logger
}

func NewBusNotifier(bus *mq.MQ, logger *zap.Logger) *BusNotifier {
	return &BusNotifier{bus: bus, logger: logger}
}

func (n *BusNotifier) RoleChanged(ctx context.Context, event types.RoleChangedEvent) {
	n.publish(ctx, types.EventRoleChanged, event)
}

func (n *BusNotifier) PropertyDecided(ctx context.Context, event types.PropertyDecidedEvent) {
	n.publish(ctx, types.EventPropertyDecided, event)
}

func (n *BusNotifier) TenantAssigned(ctx context.Context, event types.TenantAssignedEvent) {
	n.publish(ctx, types.EventTenantAssigned, event)
}

func (n *BusNotifier) LeaseEnded(ctx context.Context, event types.LeaseEndedEvent) {
	n.publish(ctx, types.EventLeaseEnded, event)
}

func (n *BusNotifier) PaymentRecorded(ctx context.Context, event types.PaymentRecordedEvent) {
	n.publish(ctx, types.EventPaymentRecorded, event)
}

func (n *BusNotifier) publish(ctx context.Context, kind string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("marshal notification event", zap.String("kind", kind), zap.Error(err))
		return
	}
	attrs := map[string]string{"event": kind}
	if _, err := n.bus.Publish(ctx, NotificationChannel, data, attrs); err != nil {
		n.logger.Warn("publish notification event", zap.String("kind", kind), zap.Error(err))
	}
}

// NopNotifier discards events. Used when no broker is configured.
type NopNotifier struct{}

func (NopNotifier) RoleChanged(context.Context, types.RoleChangedEvent)         {}
func (NopNotifier) PropertyDecided(context.Context, types.PropertyDecidedEvent) {}
func (NopNotifier) TenantAssigned(context.Context, types.TenantAssignedEvent)   {}
func (NopNotifier) LeaseEnded(context.Context, types.LeaseEndedEvent)           {}
func (NopNotifier) PaymentRecorded(context.Context, types.PaymentRecordedEvent) {}
