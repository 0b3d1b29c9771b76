package durable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mharkness/go-chatrelay/internal/types"
)

const (
	ackWait    = 30 * time.Second
	maxBackoff = 60 * time.Second
)

type JetStreamConfig struct {
	URL           string
	Topic         string
	ConsumerGroup string
	RetryBackoff  time.Duration
	MaxDeliver    int
}

// streamMsg is the slice of a delivered stream message the consumer's
// ack/nak decisions need.
type streamMsg interface {
	Data() []byte
	Deliveries() uint64
	Ack() error
	NakWithDelay(delay time.Duration) error
}

type natsStreamMsg struct {
	msg *nats.Msg
}

func (m natsStreamMsg) Data() []byte {
	return m.msg.Data
}

func (m natsStreamMsg) Deliveries() uint64 {
	meta, err := m.msg.Metadata()
	if err != nil {
		return 1
	}
	return meta.NumDelivered
}

func (m natsStreamMsg) Ack() error {
	return m.msg.Ack()
}

func (m natsStreamMsg) NakWithDelay(delay time.Duration) error {
	return m.msg.NakWithDelay(delay)
}

// JetStreamLog is the ordered, replayable queue between message ingestion
// and persistence. Appends are durable once acknowledged by the stream; a
// durable consumer group drains them into the Writer.
type JetStreamLog struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	cfg     JetStreamConfig
	writer  *Writer
	log     *log.Logger
	sub     *nats.Subscription
	publish func(subject string, data []byte) error
}

func NewJetStreamLog(cfg JetStreamConfig, writer *Writer, logger *log.Logger) (*JetStreamLog, error) {
	nc, err := nats.Connect(cfg.URL, nats.MaxReconnects(-1), nats.ReconnectWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("init jetstream: %w", err)
	}

	l := &JetStreamLog{
		conn:   nc,
		js:     js,
		cfg:    cfg,
		writer: writer,
		log:    logger,
	}
	l.publish = func(subject string, data []byte) error {
		_, err := l.js.Publish(subject, data)
		return err
	}

	if err := l.ensureStream(); err != nil {
		nc.Close()
		return nil, err
	}

	return l, nil
}

func (l *JetStreamLog) ensureStream() error {
	_, err := l.js.StreamInfo(l.cfg.Topic)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info: %w", err)
	}

	l.log.Printf("creating stream %q", l.cfg.Topic)
	_, err = l.js.AddStream(&nats.StreamConfig{
		Name:      l.cfg.Topic,
		Subjects:  []string{l.cfg.Topic, l.deadLetterSubject()},
		Retention: nats.LimitsPolicy,
		Storage:   nats.FileStorage,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream: %w", err)
	}

	return nil
}

func (l *JetStreamLog) deadLetterSubject() string {
	return l.cfg.Topic + ".dlq"
}

// Submit appends the envelope to the stream. The envelope is durable once
// this returns nil.
func (l *JetStreamLog) Submit(ctx context.Context, env types.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if _, err := l.js.Publish(l.cfg.Topic, payload, nats.Context(ctx)); err != nil {
		return fmt.Errorf("append to %q: %w", l.cfg.Topic, err)
	}

	return nil
}

// Run starts the consumer group and blocks until ctx is cancelled. The
// subscription runs with MaxAckPending set to one so a failed persist stops
// the subject from advancing: later messages are not skipped, which keeps
// per-group order across retries.
func (l *JetStreamLog) Run(ctx context.Context) error {
	sub, err := l.js.Subscribe(l.cfg.Topic, l.handleMsg,
		nats.Durable(l.cfg.ConsumerGroup),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.AckWait(ackWait),
		nats.MaxAckPending(1),
		nats.MaxDeliver(l.cfg.MaxDeliver+1),
		nats.DeliverAll(),
	)
	if err != nil {
		return fmt.Errorf("subscribe to %q: %w", l.cfg.Topic, err)
	}
	l.sub = sub

	l.log.Printf("consumer %q subscribed to %q", l.cfg.ConsumerGroup, l.cfg.Topic)

	<-ctx.Done()
	return ctx.Err()
}

func (l *JetStreamLog) handleMsg(msg *nats.Msg) {
	l.process(natsStreamMsg{msg: msg})
}

// process decides the fate of one delivered message: ack on success,
// dead-letter what can never succeed or has exhausted its retries, and nak
// the rest with a delay so the subject pauses instead of dropping it.
func (l *JetStreamLog) process(msg streamMsg) {
	var env types.Envelope
	if err := json.Unmarshal(msg.Data(), &env); err != nil {
		l.log.Println("undecodable log entry:", err)
		l.deadLetter(msg)
		return
	}

	err := l.writer.Persist(env)
	if err == nil {
		if err := msg.Ack(); err != nil {
			l.log.Println("ack failed:", err)
		}
		return
	}

	var perm *PermanentError
	if errors.As(err, &perm) {
		l.log.Println("dead-lettering malformed envelope:", err)
		l.deadLetter(msg)
		return
	}

	deliveries := msg.Deliveries()
	if deliveries >= uint64(l.cfg.MaxDeliver) {
		l.log.Printf("persist failed after %d attempts, dead-lettering: %v", deliveries, err)
		l.deadLetter(msg)
		return
	}

	delay := l.backoff(deliveries)
	l.writer.recorder.Incr(MetricPersistRetry)
	l.log.Printf("persist failed (attempt %d), retrying in %s: %v", deliveries, delay, err)
	if err := msg.NakWithDelay(delay); err != nil {
		l.log.Println("nak failed:", err)
	}
}

// backoff doubles from the configured base per delivery, capped at one
// minute to match the original relay's fixed retry delay.
func (l *JetStreamLog) backoff(deliveries uint64) time.Duration {
	delay := l.cfg.RetryBackoff
	for i := uint64(1); i < deliveries; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// deadLetter republishes the raw payload on the dead-letter subject, then
// acks the original so the stream can advance. The original stays unacked
// if the dead-letter publish fails, so it is redelivered after AckWait
// rather than lost.
func (l *JetStreamLog) deadLetter(msg streamMsg) {
	if err := l.publish(l.deadLetterSubject(), msg.Data()); err != nil {
		l.log.Println("dead-letter publish failed:", err)
		return
	}

	l.writer.recorder.Incr(MetricDeadLettered)
	if err := msg.Ack(); err != nil {
		l.log.Println("ack after dead-letter failed:", err)
	}
}

func (l *JetStreamLog) Close() error {
	if l.sub != nil {
		if err := l.sub.Drain(); err != nil {
			l.log.Println("drain subscription:", err)
		}
	}
	l.conn.Close()
	return nil
}
