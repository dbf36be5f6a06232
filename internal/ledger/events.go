package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kislikjeka/grandlivre/pkg/logger"
)

// EventType names a ledger domain event
type EventType string

const (
	EventEntryPosted       EventType = "entry.posted"
	EventEntryCancelled    EventType = "entry.cancelled"
	EventLinesReconciled   EventType = "lines.reconciled"
	EventSettlementRemoved EventType = "settlement.removed"
)

// Event is emitted once the transaction that produced it has committed
type Event struct {
	ID         uuid.UUID              `json:"id"`
	Type       EventType              `json:"type"`
	CompanyID  uuid.UUID              `json:"company_id"`
	UserID     uuid.UUID              `json:"user_id"`
	EntityID   uuid.UUID              `json:"entity_id"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

func newEvent(scope Scope, typ EventType, entityID uuid.UUID, at time.Time, data map[string]interface{}) Event {
	return Event{
		ID:         uuid.New(),
		Type:       typ,
		CompanyID:  scope.CompanyID,
		UserID:     scope.UserID,
		EntityID:   entityID,
		OccurredAt: at,
		Data:       data,
	}
}

// publish queues event until the enclosing transaction commits. A delivery
// failure is logged and never fails the operation.
func publish(ctx context.Context, pub EventPublisher, log *logger.Logger, event Event) {
	if pub == nil {
		return
	}
	afterCommit(ctx, func(ctx context.Context) {
		if err := pub.Publish(ctx, event); err != nil {
			log.Warn("failed to publish ledger event",
				"type", event.Type,
				"entity_id", event.EntityID,
				"error", err,
			)
		}
	})
}

// Clock returns the current time
type Clock func() time.Time
