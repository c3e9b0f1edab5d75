package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}

	ev, err := New(EventTypeSongPlayed, 7, SongPlayedPayload{SongID: 42})
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), ev))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.NotEmpty(t, msg.Key)
	assert.Equal(t, "song.played", string(msg.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, EventTypeSongPlayed, decoded.Type)
	assert.Equal(t, int64(7), decoded.UserID)

	var payload SongPlayedPayload
	require.NoError(t, json.Unmarshal(decoded.Payload, &payload))
	assert.Equal(t, int64(42), payload.SongID)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &fakeWriter{err: errors.New("broker down")}}
	ev, err := New(EventTypeSongUploaded, 1, SongUploadedPayload{SongID: 1})
	require.NoError(t, err)

	err = p.Publish(context.Background(), ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestNewPublisher(t *testing.T) {
	_, ok := NewPublisher(nil, "topic").(NopPublisher)
	assert.True(t, ok)

	kp, ok := NewPublisher([]string{"localhost:9092"}, "topic").(*KafkaPublisher)
	require.True(t, ok)
	assert.NoError(t, kp.Close())
}
