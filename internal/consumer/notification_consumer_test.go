package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wisefido-sleepstage/internal/models"
	mqttcommon "wisefido-sleepstage/owl-common/mqtt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSubscriber struct {
	mu           sync.Mutex
	handler      mqttcommon.MessageHandler
	topic        string
	unsubscribed []string
	subscribed   chan struct{}
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{subscribed: make(chan struct{})}
}

func (f *fakeSubscriber) Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error {
	f.mu.Lock()
	f.topic, f.handler = topic, handler
	f.mu.Unlock()
	close(f.subscribed)
	return nil
}

func (f *fakeSubscriber) Unsubscribe(topics ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, topics...)
	return nil
}

const minioPayload = `{
  "EventName": "s3:ObjectCreated:Put",
  "Key": "bucket-a/users/subj1/20260102_184054/heartrate/chunk_001.npy",
  "Records": [{
    "eventName": "s3:ObjectCreated:Put",
    "s3": {
      "bucket": {"name": "bucket-a"},
      "object": {"key": "users%2Fsubj1%2F20260102_184054%2Fheartrate%2Fchunk_001.npy"}
    }
  }]
}`

func TestNotificationConsumer_DeliversEvents(t *testing.T) {
	sub := newFakeSubscriber()
	got := make(chan []models.ObjectEvent, 1)
	c := NewNotificationConsumer(sub, "sleepstage/bucket-events", 1, func(ctx context.Context, events []models.ObjectEvent) error {
		got <- events
		return nil
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	<-sub.subscribed
	assert.Equal(t, "sleepstage/bucket-events", sub.topic)
	require.NoError(t, sub.handler("sleepstage/bucket-events", []byte(minioPayload)))

	select {
	case events := <-got:
		require.Len(t, events, 1)
		assert.Equal(t, "bucket-a", events[0].Bucket)
		assert.Equal(t, "users/subj1/20260102_184054/heartrate/chunk_001.npy", events[0].ObjectKey)
	case <-time.After(2 * time.Second):
		t.Fatal("events not delivered")
	}

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, c.Stop(context.Background()))
	assert.Equal(t, []string{"sleepstage/bucket-events"}, sub.unsubscribed)
}

func TestNotificationConsumer_MalformedPayload(t *testing.T) {
	c := NewNotificationConsumer(newFakeSubscriber(), "t", 0, func(ctx context.Context, events []models.ObjectEvent) error {
		t.Fatal("handler must not be called")
		return nil
	}, zap.NewNop())

	assert.Error(t, c.handleMessage("t", []byte("{oops")))
	assert.NoError(t, c.handleMessage("t", []byte(`{"Records":[]}`)))
	assert.Empty(t, c.queue)
}

func TestNotificationConsumer_HandlerErrorsAreSwallowed(t *testing.T) {
	calls := 0
	c := NewNotificationConsumer(newFakeSubscriber(), "t", 0, func(ctx context.Context, events []models.ObjectEvent) error {
		calls++
		if calls == 1 {
			return models.ErrInvalidEvent
		}
		return errors.New("boom")
	}, zap.NewNop())

	c.process(context.Background(), []models.ObjectEvent{{Bucket: "b", ObjectKey: "k"}})
	c.process(context.Background(), []models.ObjectEvent{{Bucket: "b", ObjectKey: "k"}})
	assert.Equal(t, 2, calls)
}
