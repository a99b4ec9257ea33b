package listeners

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"clan-backend/internal/authz"
	"clan-backend/internal/events"
	"clan-backend/pkg/eventbus"
)

type countingInvalidator struct {
	calls int
	err   error
}

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return c.err
}

type otherEvent struct{}

func (otherEvent) Name() string { return events.AccessChangedEventName }

func TestAccessCacheListener(t *testing.T) {
	cache := &countingInvalidator{}
	bus := eventbus.New(zap.NewNop())
	NewAccessCacheListener(cache, zap.NewNop()).Register(bus)

	event := events.AccessChangedEvent{Resource: authz.ResourceRoles, ObjectID: "3", ActorID: 1, Action: "update"}
	assert.NoError(t, bus.PublishSync(context.Background(), event))
	assert.Equal(t, 1, cache.calls)

	cache.err = errors.New("redis down")
	assert.ErrorIs(t, bus.PublishSync(context.Background(), event), cache.err)

	assert.Error(t, bus.PublishSync(context.Background(), otherEvent{}))
	assert.Equal(t, 2, cache.calls)
}
