package consumer

import (
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/orderflow/libs/events"
	"github.com/md-rashed-zaman/orderflow/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

func testMessage(meta kafkax.EventMeta, payload []byte) kafka.Message {
	return kafka.Message{
		Topic:   "order.events",
		Key:     []byte(meta.AggregateID),
		Value:   payload,
		Headers: kafkax.EventHeaders(meta),
	}
}

func TestDecodeWellFormedMessage(t *testing.T) {
	c := &Consumer{logger: slog.New(slog.DiscardHandler)}
	eventID := uuid.New()
	orderID := uuid.New()

	msg := testMessage(kafkax.EventMeta{
		EventID:       eventID.String(),
		EventType:     string(events.TypeOrderConfirmed),
		AggregateType: events.AggregateOrder,
		AggregateID:   orderID.String(),
		Version:       2,
	}, []byte(`{"confirmed_at":"2025-06-01T10:00:00Z"}`))

	evt, ok := c.decode(msg)
	if !ok {
		t.Fatal("well-formed message dropped")
	}
	if evt.EventID != eventID || evt.OrderID != orderID {
		t.Fatalf("ids not decoded: %+v", evt)
	}
	if evt.Type != events.TypeOrderConfirmed || evt.Version != 2 {
		t.Fatalf("metadata not decoded: %+v", evt)
	}
	if string(evt.Payload) != `{"confirmed_at":"2025-06-01T10:00:00Z"}` {
		t.Fatalf("payload not carried through: %s", evt.Payload)
	}
}

func TestDecodeDropsMalformedMessages(t *testing.T) {
	c := &Consumer{logger: slog.New(slog.DiscardHandler)}
	valid := uuid.New().String()

	cases := []struct {
		name string
		meta kafkax.EventMeta
	}{
		{"bad event id", kafkax.EventMeta{EventID: "garbage", AggregateID: valid, Version: 1}},
		{"bad aggregate id", kafkax.EventMeta{EventID: valid, AggregateID: "garbage", Version: 1}},
		{"missing version", kafkax.EventMeta{EventID: valid, AggregateID: valid}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := c.decode(testMessage(tc.meta, nil)); ok {
				t.Fatal("malformed message must be dropped")
			}
		})
	}
}
