// Package kafka carries catalog reload requests and analytics events over
// segmentio/kafka-go. Values travel as JSON; the event type rides in a
// header so consumers can route without decoding the body twice.
package kafka

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
)

const (
	headerContentType = "content-type"
	headerEventType   = "event-type"
	headerRequestID   = "request-id"
)

// Event is one message to publish. Key selects the partition; Value is
// JSON encoded.
type Event struct {
	Key       string
	Type      string
	RequestID string
	Value     any
}

// Message is a received record as seen by a MessageHandler.
type Message struct {
	Key       []byte
	Value     []byte
	Type      string
	RequestID string
	Partition int
	Offset    int64
}

func encode(event Event) (kafka.Message, error) {
	value, err := json.Marshal(event.Value)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshaling event value: %w", err)
	}
	headers := []kafka.Header{{Key: headerContentType, Value: []byte("application/json")}}
	if event.Type != "" {
		headers = append(headers, kafka.Header{Key: headerEventType, Value: []byte(event.Type)})
	}
	if event.RequestID != "" {
		headers = append(headers, kafka.Header{Key: headerRequestID, Value: []byte(event.RequestID)})
	}
	return kafka.Message{
		Key:     []byte(event.Key),
		Value:   value,
		Headers: headers,
	}, nil
}

func decode(msg kafka.Message) Message {
	out := Message{
		Key:       msg.Key,
		Value:     msg.Value,
		Partition: msg.Partition,
		Offset:    msg.Offset,
	}
	for _, h := range msg.Headers {
		switch h.Key {
		case headerEventType:
			out.Type = string(h.Value)
		case headerRequestID:
			out.RequestID = string(h.Value)
		}
	}
	return out
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
