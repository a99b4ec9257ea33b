package listeners

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"clan-backend/internal/events"
	"clan-backend/pkg/eventbus"
)

// AccessInvalidator сбрасывает закешированные снимки модели доступа.
type AccessInvalidator interface {
	Invalidate(ctx context.Context) error
}

type AccessCacheListener struct {
	cache  AccessInvalidator
	logger *zap.Logger
}

func NewAccessCacheListener(cache AccessInvalidator, logger *zap.Logger) *AccessCacheListener {
	return &AccessCacheListener{cache: cache, logger: logger}
}

func (l *AccessCacheListener) Register(bus *eventbus.Bus) {
	bus.Subscribe(events.AccessChangedEventName, l.handleAccessChanged)
}

func (l *AccessCacheListener) handleAccessChanged(ctx context.Context, event eventbus.Event) error {
	e, ok := event.(events.AccessChangedEvent)
	if !ok {
		return fmt.Errorf("неожиданный тип события %T", event)
	}
	if err := l.cache.Invalidate(ctx); err != nil {
		return fmt.Errorf("сброс кеша доступа: %w", err)
	}
	l.logger.Debug("кеш доступа сброшен",
		zap.String("resource", string(e.Resource)),
		zap.String("object_id", e.ObjectID),
		zap.String("action", e.Action),
		zap.Uint64("actor_id", e.ActorID),
	)
	return nil
}
