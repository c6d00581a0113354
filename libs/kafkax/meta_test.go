package kafkax

import (
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestEventMetaRoundTrip(t *testing.T) {
	meta := EventMeta{
		EventID:       "6f1f4c2a-2b6e-4c21-9a57-0f3a5f4f9b11",
		EventType:     "order.placed",
		AggregateType: "order",
		AggregateID:   "0b9a7d3e-8c44-4f02-b1d5-9e2f6a7c8d90",
		Version:       3,
	}

	msg := kafka.Message{Headers: EventHeaders(meta)}
	got := ExtractEventMeta(msg)
	if got != meta {
		t.Fatalf("round trip changed metadata:\n want %+v\n got  %+v", meta, got)
	}
}

func TestExtractEventMetaFallbacks(t *testing.T) {
	msg := kafka.Message{
		Topic: "order.events",
		Key:   []byte("0b9a7d3e-8c44-4f02-b1d5-9e2f6a7c8d90"),
	}
	got := ExtractEventMeta(msg)
	if got.AggregateID != string(msg.Key) {
		t.Fatalf("expected key fallback for aggregate id, got %q", got.AggregateID)
	}
	if got.EventType != msg.Topic {
		t.Fatalf("expected topic fallback for event type, got %q", got.EventType)
	}
	if got.Version != 0 {
		t.Fatalf("expected zero version without header, got %d", got.Version)
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka-1:9092, kafka-2:9092 ,,kafka-3:9092")
	want := []string{"kafka-1:9092", "kafka-2:9092", "kafka-3:9092"}
	if len(got) != len(want) {
		t.Fatalf("expected %d brokers, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("broker %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
