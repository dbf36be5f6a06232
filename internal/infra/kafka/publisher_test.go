package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	kafkapub "github.com/kislikjeka/grandlivre/internal/infra/kafka"
	"github.com/kislikjeka/grandlivre/internal/ledger"
	"github.com/kislikjeka/grandlivre/pkg/logger"
)

// MockWriter is a mock implementation of kafka.MessageWriter
type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockWriter) Close() error {
	return m.Called().Error(0)
}

func testEvent() ledger.Event {
	return ledger.Event{
		ID:         uuid.New(),
		Type:       ledger.EventEntryPosted,
		CompanyID:  uuid.New(),
		UserID:     uuid.New(),
		EntityID:   uuid.New(),
		OccurredAt: time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC),
		Data:       map[string]interface{}{"name": "VTE/2024/0001"},
	}
}

func TestMessage_KeyedByCompany(t *testing.T) {
	event := testEvent()

	msg, err := kafkapub.Message(event)
	require.NoError(t, err)

	assert.Equal(t, event.CompanyID.String(), string(msg.Key))
	assert.Equal(t, event.OccurredAt, msg.Time)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, "entry.posted", string(msg.Headers[0].Value))

	var decoded ledger.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.EntityID, decoded.EntityID)
	assert.Equal(t, "VTE/2024/0001", decoded.Data["name"])
}

func TestPublisher_Publish(t *testing.T) {
	writer := new(MockWriter)
	event := testEvent()
	writer.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		return len(msgs) == 1 && string(msgs[0].Key) == event.CompanyID.String()
	})).Return(nil)

	pub := kafkapub.NewPublisher(writer, logger.Nop())
	require.NoError(t, pub.Publish(context.Background(), event))
	writer.AssertExpectations(t)
}

func TestPublisher_PublishError(t *testing.T) {
	writer := new(MockWriter)
	writer.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	pub := kafkapub.NewPublisher(writer, logger.Nop())
	err := pub.Publish(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestPublisher_Close(t *testing.T) {
	writer := new(MockWriter)
	writer.On("Close").Return(nil)

	pub := kafkapub.NewPublisher(writer, logger.Nop())
	assert.NoError(t, pub.Close())
	writer.AssertExpectations(t)
}

func TestNewWriter_DefaultTopic(t *testing.T) {
	w := kafkapub.NewWriter([]string{"localhost:9092"}, "")
	assert.Equal(t, kafkapub.DefaultTopic, w.Topic)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
}
