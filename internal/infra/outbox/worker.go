package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// topicByStream routes each event family onto its own versioned topic, keyed
// by the prefix of the event name. Booking lifecycle and payout settlement
// have different consumers; mixing them on one topic would force every
// consumer to filter the other family.
var topicByStream = map[string]string{
	"booking": "booking.events.v1",
	"payout":  "payout.events.v1",
}

// Worker drains the outbox onto Kafka as CloudEvents. Rows are claimed one at
// a time; a publish failure schedules a retry with backoff, and a row that
// exhausts MaxAttempts is parked DEAD rather than retried forever.
type Worker struct {
	Store       *Store
	Producer    Producer
	Logger      *slog.Logger
	Interval    time.Duration
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	MaxAttempts int
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.processOnce(ctx); err != nil {
				return err
			}
		}
	}
}

func (w *Worker) processOnce(ctx context.Context) error {
	doc, err := w.Store.Claim(ctx, w.workerID())
	if err != nil || doc == nil {
		return err
	}
	payload, headers, err := w.formatPayload(doc)
	if err != nil {
		// Undecodable payloads never publish; retrying them is pointless.
		w.logFailure(doc, "payload rejected", err)
		return w.Store.MarkDead(ctx, doc.ID, err.Error())
	}
	topic := w.topicFor(doc.Name)
	if err := w.Producer.Publish(ctx, topic, doc.Aggregate, payload, headers); err != nil {
		if w.exhausted(doc.Attempts) {
			w.logFailure(doc, "retries exhausted", err)
			return w.Store.MarkDead(ctx, doc.ID, err.Error())
		}
		w.logFailure(doc, "publish failed", err)
		return w.Store.MarkFailed(ctx, doc.ID, w.nextRetry(doc.Attempts), err.Error())
	}
	if w.Logger != nil {
		w.Logger.Debug("outbox event relayed", "event", doc.Name, "aggregate", doc.Aggregate, "topic", topic)
	}
	return w.Store.MarkSent(ctx, doc.ID)
}

func (w *Worker) formatPayload(doc *EventDocument) ([]byte, map[string]string, error) {
	if doc.Headers == nil {
		doc.Headers = map[string]string{}
	}
	data := map[string]any{}
	if err := json.Unmarshal(doc.Payload, &data); err != nil {
		return nil, nil, err
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              uuid.NewString(),
		"type":            doc.Name + ".v1",
		"source":          w.source(),
		"subject":         doc.Aggregate,
		"time":            doc.OccurredAt,
		"datacontenttype": "application/json",
		"data":            data,
	}
	if trace, ok := doc.Headers["traceparent"]; ok {
		evt["traceparent"] = trace
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
	}
	for k, v := range doc.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

func (w *Worker) topicFor(name string) string {
	stream := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		stream = name[:idx]
	}
	topic, ok := topicByStream[stream]
	if !ok {
		topic = stream + ".events.v1"
	}
	if w.TopicPrefix != "" {
		topic = w.TopicPrefix + topic
	}
	return topic
}

func (w *Worker) workerID() string {
	if w.ID != "" {
		return w.ID
	}
	return uuid.NewString()
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

// exhausted reports whether the row has no retry budget left. With no
// explicit cap the backoff schedule's length is the budget.
func (w *Worker) exhausted(attempts int) bool {
	budget := w.MaxAttempts
	if budget <= 0 {
		budget = len(w.Backoff)
	}
	return budget > 0 && attempts+1 >= budget
}

func (w *Worker) nextRetry(attempts int) time.Time {
	if attempts < len(w.Backoff) {
		return time.Now().Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return time.Now().Add(w.Backoff[len(w.Backoff)-1])
	}
	return time.Now().Add(5 * time.Second)
}

func (w *Worker) logFailure(doc *EventDocument, msg string, err error) {
	if w.Logger == nil {
		return
	}
	w.Logger.Warn("outbox "+msg, "event", doc.Name, "aggregate", doc.Aggregate, "attempts", doc.Attempts, "error", err)
}

func (w *Worker) source() string {
	if w.Source != "" {
		return w.Source
	}
	return "app://staybook"
}

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")
