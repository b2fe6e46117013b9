package outbox

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
)

type stubPublisher struct {
	byTopic map[string][]kafka.Message
	err     error
}

func (s *stubPublisher) Publish(_ context.Context, topic string, msgs ...kafka.Message) error {
	if s.err != nil {
		return s.err
	}
	if s.byTopic == nil {
		s.byTopic = make(map[string][]kafka.Message)
	}
	s.byTopic[topic] = append(s.byTopic[topic], msgs...)
	return nil
}

func TestDeliverBatchesByTopic(t *testing.T) {
	pub := &stubPublisher{}
	d := &Dispatcher{producer: pub}

	events := []Event{
		{EventID: 1, SessionID: "sess-a", EventType: "session.started", Topic: "quest_events", Payload: []byte(`{"n":1}`)},
		{EventID: 2, SessionID: "sess-a", EventType: "progress.updated", Topic: "quest_events", Payload: []byte(`{"n":2}`)},
		{EventID: 3, SessionID: "sess-b", EventType: "proof.scored", Topic: "quest_audit", Payload: []byte(`{"n":3}`)},
	}
	if err := d.deliver(context.Background(), events); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	if got := len(pub.byTopic["quest_events"]); got != 2 {
		t.Fatalf("quest_events batch size = %d, want 2", got)
	}
	if got := len(pub.byTopic["quest_audit"]); got != 1 {
		t.Fatalf("quest_audit batch size = %d, want 1", got)
	}

	msg := pub.byTopic["quest_events"][0]
	if string(msg.Key) != "sess-a" {
		t.Fatalf("message key = %q, want session id", msg.Key)
	}
	if len(msg.Headers) != 1 || msg.Headers[0].Key != "event_type" || string(msg.Headers[0].Value) != "session.started" {
		t.Fatalf("unexpected headers: %+v", msg.Headers)
	}
}
