package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"memoriqr-service/internal/util"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func testConsumer(attempts int) *Consumer {
	return &Consumer{
		handleAttempts: attempts,
		retryDelay:     time.Millisecond,
		logger:         util.Component("kafka.consumer"),
	}
}

func TestHandle_RetriesUntilSuccess(t *testing.T) {
	c := testConsumer(5)
	calls := 0
	handler := func(ctx context.Context, msg kafka.Message) error {
		calls++
		if calls < 3 {
			return errors.New("smtp unavailable")
		}
		return nil
	}

	err := c.handle(context.Background(), handler, kafka.Message{Offset: 7})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestHandle_GivesUpAfterAttempts(t *testing.T) {
	c := testConsumer(3)
	calls := 0
	handler := func(ctx context.Context, msg kafka.Message) error {
		calls++
		return errors.New("smtp unavailable")
	}

	err := c.handle(context.Background(), handler, kafka.Message{})
	assert.EqualError(t, err, "smtp unavailable")
	assert.Equal(t, 3, calls)
}

func TestHandle_StopsWhenContextDone(t *testing.T) {
	c := testConsumer(5)
	c.retryDelay = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	handler := func(ctx context.Context, msg kafka.Message) error {
		calls++
		cancel()
		return errors.New("smtp unavailable")
	}

	err := c.handle(ctx, handler, kafka.Message{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
