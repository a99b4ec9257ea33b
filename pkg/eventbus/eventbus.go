package eventbus

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event — любое событие в системе.
type Event interface {
	Name() string
}

// Listener — обработчик события.
type Listener func(ctx context.Context, event Event) error

// Bus — шина событий внутри процесса.
type Bus struct {
	listeners map[string][]Listener
	mu        sync.RWMutex
	logger    *zap.Logger
	timeout   time.Duration
}

func New(logger *zap.Logger) *Bus {
	return &Bus{
		listeners: make(map[string][]Listener),
		logger:    logger,
		timeout:   time.Minute,
	}
}

func (b *Bus) Subscribe(eventName string, listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[eventName] = append(b.listeners[eventName], listener)
}

func (b *Bus) snapshot(eventName string) []Listener {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Listener(nil), b.listeners[eventName]...)
}

// Publish вызывает подписчиков асинхронно; ошибки только логируются.
func (b *Bus) Publish(ctx context.Context, event Event) {
	eventName := event.Name()
	for _, listener := range b.snapshot(eventName) {
		go func(l Listener) {
			// контекст запроса к этому моменту может быть уже отменён
			ctxWithTimeout, cancel := context.WithTimeout(context.Background(), b.timeout)
			defer cancel()

			if err := l(ctxWithTimeout, event); err != nil {
				b.logger.Error("Ошибка в обработчике события",
					zap.String("event", eventName),
					zap.Error(err),
				)
			}
		}(listener)
	}
}

// PublishSync вызывает подписчиков по очереди в текущей горутине и возвращает их ошибки.
// Нужен там, где следующий запрос обязан увидеть результат обработки.
func (b *Bus) PublishSync(ctx context.Context, event Event) error {
	eventName := event.Name()
	var errs []error
	for _, l := range b.snapshot(eventName) {
		if err := l(ctx, event); err != nil {
			b.logger.Error("Ошибка в обработчике события",
				zap.String("event", eventName),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
