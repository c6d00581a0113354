package kafkax

import (
	"strconv"
	"strings"

	"github.com/segmentio/kafka-go"
)

// EventMeta is the canonical metadata carried on Kafka messages across services.
// The message key is the aggregate id so that one aggregate's events always land
// on one partition, preserving per-aggregate order.
type EventMeta struct {
	EventID       string
	EventType     string
	AggregateType string
	AggregateID   string
	Version       int64
}

func ExtractEventMeta(msg kafka.Message) EventMeta {
	meta := EventMeta{
		EventID:       HeaderValue(msg.Headers, "event_id"),
		EventType:     HeaderValue(msg.Headers, "event_type"),
		AggregateType: HeaderValue(msg.Headers, "aggregate_type"),
		AggregateID:   HeaderValue(msg.Headers, "aggregate_id"),
	}
	if v := HeaderValue(msg.Headers, "version"); v != "" {
		meta.Version, _ = strconv.ParseInt(v, 10, 64)
	}
	if meta.AggregateID == "" {
		meta.AggregateID = string(msg.Key)
	}
	if meta.EventType == "" {
		meta.EventType = msg.Topic
	}
	return meta
}

func EventHeaders(meta EventMeta) []kafka.Header {
	return []kafka.Header{
		{Key: "event_id", Value: []byte(meta.EventID)},
		{Key: "event_type", Value: []byte(meta.EventType)},
		{Key: "aggregate_type", Value: []byte(meta.AggregateType)},
		{Key: "aggregate_id", Value: []byte(meta.AggregateID)},
		{Key: "version", Value: []byte(strconv.FormatInt(meta.Version, 10))},
	}
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
