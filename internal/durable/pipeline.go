package durable

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mharkness/go-chatrelay/internal/stats"
	"github.com/mharkness/go-chatrelay/internal/store"
	"github.com/mharkness/go-chatrelay/internal/types"
)

const (
	MetricPersisted    = "messages_persisted_total"
	MetricPersistRetry = "persist_retries_total"
	MetricDeadLettered = "messages_dead_lettered_total"
)

// Pipeline accepts an envelope for persistence. Exactly one instance, the
// one that accepted the send, submits each envelope.
type Pipeline interface {
	Submit(ctx context.Context, env types.Envelope) error
	Close() error
}

// Writer persists envelopes to the system of record. It is shared by both
// pipeline modes.
type Writer struct {
	db       store.Repository
	validate *validator.Validate
	log      *log.Logger
	recorder stats.Recorder
}

func NewWriter(db store.Repository, logger *log.Logger, recorder stats.Recorder) *Writer {
	recorder.RegisterCounter(MetricPersisted, "Messages written to the system of record.")
	recorder.RegisterCounter(MetricPersistRetry, "Persistence attempts that will be retried.")
	recorder.RegisterCounter(MetricDeadLettered, "Envelopes routed to the dead-letter subject.")

	return &Writer{
		db:       db,
		validate: validator.New(),
		log:      logger,
		recorder: recorder,
	}
}

// Persist validates the envelope and writes it. A validation failure is
// permanent: retrying a malformed envelope can never succeed, so the caller
// should dead-letter it rather than block the log.
func (w *Writer) Persist(env types.Envelope) error {
	if err := w.validate.Struct(env); err != nil {
		return &PermanentError{Err: fmt.Errorf("invalid envelope: %w", err)}
	}

	createdAt := env.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	msg, err := w.db.CreateMessage(store.CreateMessageParams{
		GroupId:   env.GroupId,
		SenderId:  env.SenderId,
		Content:   env.Content,
		CreatedAt: createdAt,
	})
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}

	w.recorder.Incr(MetricPersisted)
	w.log.Printf("persisted message %d for group %q", msg.Id, msg.GroupId)
	return nil
}

// PermanentError marks a persistence failure that no retry can fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}
