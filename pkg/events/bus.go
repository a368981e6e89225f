package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Topic carries every survey event on the in-process bus.
const Topic = "survey.events"

// Handler consumes one event. Delivery is at most once; there is no redelivery.
type Handler func(ctx context.Context, event Event)

// Publisher is what the services need from the bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Bus is an in-process pub/sub backed by a watermill go channel.
type Bus struct {
	pubSub *gochannel.GoChannel
}

func NewBus(logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &Bus{pubSub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)}
}

func (b *Bus) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(BaseEvent{
		Type:       event.EventType(),
		Data:       event.Payload(),
		OccurredAt: event.Timestamp(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event_type", event.EventType())
	msg.SetContext(ctx)
	return b.pubSub.Publish(Topic, msg)
}

// Subscribe runs handler for every event until ctx is done. Messages that fail to
// decode are dropped.
func (b *Bus) Subscribe(ctx context.Context, handler Handler) error {
	messages, err := b.pubSub.Subscribe(ctx, Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			var evt BaseEvent
			if err := json.Unmarshal(msg.Payload, &evt); err == nil {
				handler(ctx, evt)
			}
			msg.Ack()
		}
	}()
	return nil
}

func (b *Bus) Close() error {
	return b.pubSub.Close()
}
