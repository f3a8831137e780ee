package usecase

import "github.com/taskstream/backend/domain"

// EventPublisher abstracts the fanout router so use cases stay
// transport-agnostic. Implementations must never fail or block the
// originating mutation.
type EventPublisher interface {
	Publish(event domain.Event)
	Notify(n domain.Notification)
}
