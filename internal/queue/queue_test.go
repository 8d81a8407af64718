package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryPublishConsume(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	q := NewInMemory(4)
	require.NoError(t, q.Publish(ctx, Message{Type: TypeAbsence, Body: []byte("abs-1")}))
	require.NoError(t, q.Publish(ctx, Message{Type: TypeJustification, Body: []byte("jus-1")}))

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)

	got := <-msgs
	assert.Equal(t, TypeAbsence, got.Type)
	assert.Equal(t, "abs-1", string(got.Body))

	got = <-msgs
	assert.Equal(t, TypeJustification, got.Type)
}

func TestInMemoryPublishCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := NewInMemory(0)
	err := q.Publish(ctx, Message{Type: TypeAbsence})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSerializeRoundTrip(t *testing.T) {
	msg := Message{Type: TypeAbsence, Body: []byte("id-with-|-pipe")}
	got, err := deserialize(serialize(msg))
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestDeserializeWithoutType(t *testing.T) {
	got, err := deserialize("bare-body")
	require.NoError(t, err)
	assert.Empty(t, got.Type)
	assert.Equal(t, "bare-body", string(got.Body))
}
