package service

import (
	"context"

	"survey-assistant-be/internal/pkg/logger"
	"survey-assistant-be/pkg/events"
)

// EventSubscriber is the consuming side of the in-process bus.
type EventSubscriber interface {
	Subscribe(ctx context.Context, handler events.Handler) error
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService records every survey event and forwards it to an external
// publisher (NATS JetStream) when one is configured.
type consumerService struct {
	bus     EventSubscriber
	forward events.Publisher
	logger  logger.ILogger
}

func NewConsumerService(bus EventSubscriber, forward events.Publisher, logger logger.ILogger) IConsumerService {
	return &consumerService{bus: bus, forward: forward, logger: logger}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	return cs.bus.Subscribe(ctx, cs.handle)
}

func (cs *consumerService) handle(ctx context.Context, evt events.Event) {
	cs.logger.Info("EVENTS", "Survey event", map[string]interface{}{
		"type":    evt.EventType(),
		"payload": evt.Payload(),
	})

	if cs.forward == nil {
		return
	}
	if err := cs.forward.Publish(ctx, evt); err != nil {
		cs.logger.Warn("EVENTS", "Failed to forward event", map[string]interface{}{
			"type":  evt.EventType(),
			"error": err.Error(),
		})
	}
}
