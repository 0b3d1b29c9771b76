package durable

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/mharkness/go-chatrelay/internal/store"
	"github.com/mharkness/go-chatrelay/internal/testutil"
	"github.com/mharkness/go-chatrelay/internal/types"
)

type fakeStreamMsg struct {
	data       []byte
	deliveries uint64
	acked      bool
	naks       []time.Duration
}

func (m *fakeStreamMsg) Data() []byte {
	return m.data
}

func (m *fakeStreamMsg) Deliveries() uint64 {
	return m.deliveries
}

func (m *fakeStreamMsg) Ack() error {
	m.acked = true
	return nil
}

func (m *fakeStreamMsg) NakWithDelay(delay time.Duration) error {
	m.naks = append(m.naks, delay)
	return nil
}

type dlqRecorder struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (r *dlqRecorder) publish(subject string, data []byte) error {
	if r.err != nil {
		return r.err
	}
	r.subjects = append(r.subjects, subject)
	r.payloads = append(r.payloads, data)
	return nil
}

func newTestLog(t *testing.T, db store.Repository, dlq *dlqRecorder) *JetStreamLog {
	return &JetStreamLog{
		cfg: JetStreamConfig{
			Topic:         "MESSAGES",
			ConsumerGroup: "default",
			RetryBackoff:  5 * time.Second,
			MaxDeliver:    5,
		},
		writer:  newTestWriter(t, db),
		log:     testutil.TestLogger(t),
		publish: dlq.publish,
	}
}

func validPayload(t *testing.T) []byte {
	payload, err := json.Marshal(types.Envelope{
		Id:       "e1",
		GroupId:  "g1",
		SenderId: "u1",
		Content:  "hi",
	})
	assert.NoError(t, err)
	return payload
}

func Test_process(t *testing.T) {
	t.Run("successful persist acks", func(t *testing.T) {
		db := &store.MockRepository{}
		db.On("CreateMessage", mock.Anything).Return(store.Message{Id: 1}, nil).Once()

		dlq := &dlqRecorder{}
		msg := &fakeStreamMsg{data: validPayload(t), deliveries: 1}
		newTestLog(t, db, dlq).process(msg)

		assert.True(t, msg.acked, "expected the message to be acked")
		assert.Empty(t, msg.naks, "expected no nak")
		assert.Empty(t, dlq.subjects, "expected no dead-letter publish")
	})

	t.Run("retryable failure naks with base delay on first delivery", func(t *testing.T) {
		db := &store.MockRepository{}
		db.On("CreateMessage", mock.Anything).Return(store.Message{}, errors.New("db down"))

		dlq := &dlqRecorder{}
		msg := &fakeStreamMsg{data: validPayload(t), deliveries: 1}
		newTestLog(t, db, dlq).process(msg)

		assert.False(t, msg.acked, "expected the message to stay unacked")
		assert.Equal(t, []time.Duration{5 * time.Second}, msg.naks, "expected exactly one nak at the base delay")
		assert.Empty(t, dlq.subjects, "expected no dead-letter publish")
	})

	t.Run("retryable failure backs off per delivery", func(t *testing.T) {
		db := &store.MockRepository{}
		db.On("CreateMessage", mock.Anything).Return(store.Message{}, errors.New("db down"))

		dlq := &dlqRecorder{}
		msg := &fakeStreamMsg{data: validPayload(t), deliveries: 3}
		newTestLog(t, db, dlq).process(msg)

		assert.Equal(t, []time.Duration{20 * time.Second}, msg.naks, "expected the third attempt to wait 20s")
	})

	t.Run("retries exhaust at the delivery limit", func(t *testing.T) {
		db := &store.MockRepository{}
		db.On("CreateMessage", mock.Anything).Return(store.Message{}, errors.New("db down"))

		dlq := &dlqRecorder{}
		payload := validPayload(t)
		msg := &fakeStreamMsg{data: payload, deliveries: 5}
		newTestLog(t, db, dlq).process(msg)

		assert.Equal(t, []string{"MESSAGES.dlq"}, dlq.subjects, "expected a dead-letter publish")
		assert.Equal(t, payload, dlq.payloads[0], "expected the raw payload to be dead-lettered")
		assert.True(t, msg.acked, "expected an ack after the dead-letter publish")
		assert.Empty(t, msg.naks, "expected no further retry")
	})

	t.Run("permanent failure dead-letters immediately", func(t *testing.T) {
		payload, err := json.Marshal(types.Envelope{Id: "e1", GroupId: "g1", SenderId: "u1"})
		assert.NoError(t, err)

		db := &store.MockRepository{}
		dlq := &dlqRecorder{}
		msg := &fakeStreamMsg{data: payload, deliveries: 1}
		newTestLog(t, db, dlq).process(msg)

		assert.Equal(t, []string{"MESSAGES.dlq"}, dlq.subjects, "expected a dead-letter publish on first delivery")
		assert.True(t, msg.acked, "expected an ack after the dead-letter publish")
		assert.Empty(t, msg.naks, "expected no retry for an envelope that can never persist")
		db.AssertNotCalled(t, "CreateMessage", mock.Anything)
	})

	t.Run("undecodable payload dead-letters", func(t *testing.T) {
		db := &store.MockRepository{}
		dlq := &dlqRecorder{}
		msg := &fakeStreamMsg{data: []byte("not json"), deliveries: 1}
		newTestLog(t, db, dlq).process(msg)

		assert.Equal(t, []string{"MESSAGES.dlq"}, dlq.subjects, "expected a dead-letter publish")
		assert.True(t, msg.acked, "expected an ack after the dead-letter publish")
		db.AssertNotCalled(t, "CreateMessage", mock.Anything)
	})

	t.Run("failed dead-letter publish leaves the message unacked", func(t *testing.T) {
		db := &store.MockRepository{}
		db.On("CreateMessage", mock.Anything).Return(store.Message{}, errors.New("db down"))

		dlq := &dlqRecorder{err: errors.New("stream down")}
		msg := &fakeStreamMsg{data: validPayload(t), deliveries: 5}
		newTestLog(t, db, dlq).process(msg)

		assert.False(t, msg.acked, "expected the message to stay unacked for redelivery")
		assert.Empty(t, msg.naks, "expected no nak")
	})
}
