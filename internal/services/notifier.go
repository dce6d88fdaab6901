package services

import (
	"context"

	"membership-service/internal/models"
)

// Notifier receives group events after the transaction that produced them
// has committed.
type Notifier interface {
	Notify(ctx context.Context, event models.GroupEvent)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, models.GroupEvent) {}

func orNoop(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

func memberJoined(m models.Membership, count int) models.GroupEvent {
	return models.GroupEvent{Type: models.EventMemberJoined, GroupID: m.GroupID, Membership: &m, MemberCount: &count}
}

func memberRemoved(m models.Membership, count int) models.GroupEvent {
	return models.GroupEvent{Type: models.EventMemberRemoved, GroupID: m.GroupID, Membership: &m, MemberCount: &count}
}
