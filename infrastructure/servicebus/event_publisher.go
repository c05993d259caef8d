package servicebus

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	"social-publisher/domain/model"
	"social-publisher/domain/repository"
	"social-publisher/infrastructure/logger"
)

const DefaultQueue = "publish-events"

type messageSender interface {
	SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error
	Close(ctx context.Context) error
}

// EventPublisher sends publish lifecycle events to a Service Bus queue.
type EventPublisher struct {
	sender messageSender
	queue  string
}

var _ repository.IEventPublisher = (*EventPublisher)(nil)

func NewEventPublisher(client *azservicebus.Client, queue string) (*EventPublisher, error) {
	if client == nil {
		return nil, errors.New("service bus client not configured")
	}
	if queue == "" {
		queue = DefaultQueue
	}
	sender, err := client.NewSender(queue, nil)
	if err != nil {
		logger.GetLogger().
			WithField("error", err).
			Error("Error while making new sender service bus.")
		return nil, err
	}
	return &EventPublisher{sender: sender, queue: queue}, nil
}

func (p *EventPublisher) Publish(ctx context.Context, event *model.PublishEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	contentType := "application/json"
	subject := event.Type
	msg := &azservicebus.Message{
		Body:        body,
		ContentType: &contentType,
		Subject:     &subject,
		ApplicationProperties: map[string]any{
			"platform": event.Platform,
			"state":    string(event.State),
		},
	}
	if event.AttemptID != "" {
		id := event.AttemptID + ":" + string(event.State)
		msg.MessageID = &id
	}
	if err := p.sender.SendMessage(ctx, msg, nil); err != nil {
		logger.GetLogger().WithField("error", err).WithField("queue", p.queue).Error("Error while sending message.")
		return err
	}
	return nil
}

func (p *EventPublisher) Close(ctx context.Context) error {
	return p.sender.Close(ctx)
}
