package events

import (
	"clan-backend/internal/authz"
)

const AccessChangedEventName = "access.changed"

// AccessChangedEvent: изменились права, роли, назначения или филиалы.
// После него закешированные снимки модели доступа недействительны.
type AccessChangedEvent struct {
	Resource authz.ResourceType
	ObjectID string
	ActorID  uint64
	Action   string
}

func (e AccessChangedEvent) Name() string {
	return AccessChangedEventName
}
