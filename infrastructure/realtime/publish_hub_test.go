package realtime

import (
	"testing"

	"social-publisher/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_BroadcastReachesOnlyOwner(t *testing.T) {
	h := NewPublishHub()
	mine := make(chan model.PublishEvent, 1)
	other := make(chan model.PublishEvent, 1)
	h.addSubscriber("u1", mine)
	h.addSubscriber("u2", other)

	h.BroadcastPublishStatus(&model.PublishEvent{UserID: "u1", State: model.StatePublished, PublishedID: "p1"})

	require.Len(t, mine, 1)
	evt := <-mine
	assert.Equal(t, "p1", evt.PublishedID)
	assert.Len(t, other, 0)
}

func TestHub_FullSubscriberDoesNotBlock(t *testing.T) {
	h := NewPublishHub()
	ch := make(chan model.PublishEvent) // unbuffered, never read
	h.addSubscriber("u1", ch)
	h.BroadcastPublishStatus(&model.PublishEvent{UserID: "u1"})
	h.BroadcastPublishStatus(nil)

	assert.Equal(t, 1, h.Subscribers("u1"))
	h.removeSubscriber("u1", ch)
	assert.Equal(t, 0, h.Subscribers("u1"))
}
