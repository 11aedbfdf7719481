package main

import (
	"context"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_BrokerClosedChannelStops(t *testing.T) {
	msgs := make(chan amqp.Delivery, 1)
	jobs := make(chan amqp.Delivery, 1)
	msgs <- amqp.Delivery{Body: []byte(`{}`)}
	close(msgs)

	done := make(chan error, 1)
	go func() { done <- dispatch(context.Background(), msgs, jobs) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errDeliveriesClosed)
	case <-time.After(time.Second):
		t.Fatalf("dispatch kept running after the delivery channel closed")
	}
	require.Len(t, jobs, 1, "deliveries before the close still reach the pool")
}

func TestDispatch_ShutdownIsClean(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, dispatch(ctx, make(chan amqp.Delivery), make(chan amqp.Delivery)))
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 2*time.Second, retryDelay(1))
	assert.Equal(t, 4*time.Second, retryDelay(2))
}

func TestWorkerConcurrency(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "")
	assert.Equal(t, 2, workerConcurrency())
	t.Setenv("WORKER_CONCURRENCY", "500")
	assert.Equal(t, 50, workerConcurrency())
	t.Setenv("WORKER_CONCURRENCY", "nope")
	assert.Equal(t, 2, workerConcurrency())
}
