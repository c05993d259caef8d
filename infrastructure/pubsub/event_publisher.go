package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"cloud.google.com/go/pubsub"

	"social-publisher/domain/model"
	"social-publisher/domain/repository"
	"social-publisher/infrastructure/logger"
)

const DefaultTopic = "publish-events"

// EventPublisher sends publish lifecycle events to a Pub/Sub topic.
type EventPublisher struct {
	client    *pubsub.Client
	topicName string

	mu    sync.Mutex
	topic *pubsub.Topic
}

var _ repository.IEventPublisher = (*EventPublisher)(nil)

func NewEventPublisher(client *pubsub.Client, topicName string) *EventPublisher {
	if topicName == "" {
		topicName = DefaultTopic
	}
	return &EventPublisher{client: client, topicName: topicName}
}

// ensureTopic creates the topic if it doesn't exist and caches the handle.
func (p *EventPublisher) ensureTopic(ctx context.Context) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topic != nil {
		return p.topic, nil
	}
	topic := p.client.Topic(p.topicName)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		logger.GetLogger().WithField("topic", p.topicName).Info("Topic doesn't exist - creating it")
		if topic, err = p.client.CreateTopic(ctx, p.topicName); err != nil {
			return nil, err
		}
	}
	p.topic = topic
	return topic, nil
}

func (p *EventPublisher) Publish(ctx context.Context, event *model.PublishEvent) error {
	if p == nil || p.client == nil {
		return errors.New("pubsub client not configured")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	topic, err := p.ensureTopic(ctx)
	if err != nil {
		return err
	}
	msg := &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"type":     event.Type,
			"platform": event.Platform,
			"state":    string(event.State),
		},
	}
	serverID, err := topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return err
	}
	logger.GetLogger().WithField("server ID", serverID).WithField("attempt_id", event.AttemptID).Info("Publish event sent")
	return nil
}

// Stop flushes pending messages.
func (p *EventPublisher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topic != nil {
		p.topic.Stop()
	}
}
