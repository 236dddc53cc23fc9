package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	domain "github.com/bryanwahyu/feedback-ai/internal/domain/submissions"
)

type captureWriter struct {
	msgs []kafka.Message
}

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func (c *captureWriter) Close() error { return nil }

func TestPublishKeysBySubmission(t *testing.T) {
	w := &captureWriter{}
	p := &KafkaPublisher{writer: w, topic: "feedback.submissions"}
	s, _ := domain.New(4, "good", time.Now())

	if err := p.Publish(context.Background(), domain.NewEvent(domain.EventCreated, s, time.Now())); err != nil {
		t.Fatal(err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(w.msgs))
	}
	m := w.msgs[0]
	if string(m.Key) != string(s.ID) {
		t.Fatalf("unexpected key %s", m.Key)
	}
	var e domain.Event
	if err := json.Unmarshal(m.Value, &e); err != nil {
		t.Fatal(err)
	}
	if e.Type != domain.EventCreated || e.Rating != 4 || e.Status != domain.StatusProcessing {
		t.Fatalf("unexpected payload %+v", e)
	}
	if len(m.Headers) != 1 || string(m.Headers[0].Value) != string(domain.EventCreated) {
		t.Fatal("missing event-type header")
	}
}
