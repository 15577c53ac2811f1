// Package broker wraps the NATS JetStream connection used for the durable
// event queue and the conversation-event fan-out.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kairon-labs/kairon-backend/internal/events"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

const (
	eventStream   = "KAIRON_EVENTS"
	trackerStream = "KAIRON_TRACKER"

	eventSubjects   = "events.>"
	trackerSubjects = "tracker.>"
)

// Broker owns the NATS connection and its JetStream context. It implements
// events.Publisher for the queue side and tracker.Stream for the
// conversation-event fan-out.
type Broker struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	log  *logger.Logger
}

func Connect(url string, baseLog *logger.Logger) (*Broker, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindProvider, "Failed to connect to message broker", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, apperr.Wrap(apperr.KindProvider, "Failed to open JetStream context", err)
	}
	b := &Broker{conn: conn, js: js, log: baseLog.With("component", "Broker")}
	if err := b.ensureStreams(); err != nil {
		conn.Close()
		return nil, err
	}
	return b, nil
}

func (b *Broker) ensureStreams() error {
	streams := []*nats.StreamConfig{
		{
			Name:     eventStream,
			Subjects: []string{eventSubjects},
			Storage:  nats.FileStorage,
			MaxAge:   7 * 24 * time.Hour,
		},
		{
			Name:     trackerStream,
			Subjects: []string{trackerSubjects},
			Storage:  nats.FileStorage,
			MaxAge:   30 * 24 * time.Hour,
		},
	}
	for _, cfg := range streams {
		if _, err := b.js.AddStream(cfg); err != nil && err != nats.ErrStreamNameAlreadyInUse {
			return apperr.Wrap(apperr.KindProvider, "Failed to create stream "+cfg.Name, err)
		}
	}
	return nil
}

// PublishJob enqueues one serialized job and returns the broker message id.
func (b *Broker) PublishJob(subject string, payload []byte) (string, error) {
	ack, err := b.js.Publish(subject, payload)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", ack.Stream, ack.Sequence), nil
}

// Publish sends one fire-and-forget message. Used for the tracker fan-out
// where delivery failures are tolerated by the caller.
func (b *Broker) Publish(subject string, payload []byte) error {
	_, err := b.js.Publish(subject, payload)
	return err
}

// ConsumeJobs subscribes the worker to the event queue and runs each job
// through the manager. Jobs that fail to decode are acked and dropped; jobs
// whose run fails are redelivered with backoff.
func (b *Broker) ConsumeJobs(ctx context.Context, manager *events.Manager, durable string) (*nats.Subscription, error) {
	sub, err := b.js.Subscribe(eventSubjects, func(msg *nats.Msg) {
		var job events.Job
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			b.log.Error("Dropping undecodable job", "subject", msg.Subject, "error", err)
			_ = msg.Ack()
			return
		}
		if err := manager.Run(ctx, &job); err != nil {
			b.log.Error("Job run failed", "executor_log_id", job.ExecutorLogID, "error", err)
			_ = msg.NakWithDelay(30 * time.Second)
			return
		}
		_ = msg.Ack()
	}, nats.Durable(durable), nats.ManualAck())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindProvider, "Failed to subscribe to event queue", err)
	}
	b.log.Info("Event consumer started", "subject", eventSubjects, "durable", durable)
	return sub, nil
}

func (b *Broker) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}
