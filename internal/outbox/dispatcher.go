// Package outbox drains persisted quest events and delivers them to Kafka.
package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type publisher interface {
	Publish(context.Context, string, ...kafka.Message) error
}

// Event is one undelivered row from the outbox table.
type Event struct {
	EventID   int64
	SessionID string
	EventType string
	Topic     string
	Payload   []byte
}

// Dispatcher polls the outbox table and publishes pending events. Rows stay
// unpublished on delivery failure and are retried on the next tick.
type Dispatcher struct {
	pool         *pgxpool.Pool
	producer     publisher
	logger       *zap.Logger
	pollInterval time.Duration
	batchSize    int
	done         chan struct{}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(pool *pgxpool.Pool, producer publisher, logger *zap.Logger, pollInterval time.Duration, batchSize int) *Dispatcher {
	return &Dispatcher{
		pool:         pool,
		producer:     producer,
		logger:       logger,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		done:         make(chan struct{}),
	}
}

// Start runs the polling loop until ctx is canceled. Call it in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer func() {
		ticker.Stop()
		close(d.done)
	}()

	for {
		if err := d.drainOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Warn("outbox drain failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until the polling loop has exited.
func (d *Dispatcher) Wait() {
	<-d.done
}

func (d *Dispatcher) drainOnce(ctx context.Context) error {
	start := time.Now()

	events, err := d.fetchPending(ctx)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	if err := d.deliver(ctx, events); err != nil {
		failedCounter.Add(float64(len(events)))
		return err
	}

	deliveredCounter.Add(float64(len(events)))
	return d.markPublished(ctx, events)
}

func (d *Dispatcher) fetchPending(ctx context.Context) ([]Event, error) {
	rows, err := d.pool.Query(ctx, `SELECT event_id, session_id, event_type, topic, payload
        FROM outbox
        WHERE published_at IS NULL
        ORDER BY event_id
        LIMIT $1`, d.batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.EventID, &ev.SessionID, &ev.EventType, &ev.Topic, &ev.Payload); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (d *Dispatcher) deliver(ctx context.Context, events []Event) error {
	batches := make(map[string][]kafka.Message)
	for _, ev := range events {
		batches[ev.Topic] = append(batches[ev.Topic], kafka.Message{
			Key:   []byte(ev.SessionID),
			Value: ev.Payload,
			Time:  time.Now().UTC(),
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(ev.EventType)},
			},
		})
	}

	for topic, msgs := range batches {
		if err := d.producer.Publish(ctx, topic, msgs...); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) markPublished(ctx context.Context, events []Event) error {
	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.EventID)
	}

	_, err := d.pool.Exec(ctx, `UPDATE outbox SET published_at = NOW() WHERE event_id = ANY($1)`, ids)
	return err
}
