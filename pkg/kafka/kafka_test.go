package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/resilience"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[sample]([]byte(`{"id":"e1","count":3}`))
	require.NoError(t, err)
	assert.Equal(t, sample{ID: "e1", Count: 3}, got)

	_, err = DecodeJSON[sample]([]byte(`{"id":`))
	assert.ErrorContains(t, err, "decoding kafka message")
}

func TestEncodeHeaders(t *testing.T) {
	raw, err := encode(Event{Key: "k", Type: "query", RequestID: "req-1", Value: sample{ID: "e2", Count: 1}})
	require.NoError(t, err)
	assert.Equal(t, []byte("k"), raw.Key)
	assert.JSONEq(t, `{"id":"e2","count":1}`, string(raw.Value))

	msg := decode(raw)
	assert.Equal(t, "query", msg.Type)
	assert.Equal(t, "req-1", msg.RequestID)

	raw, err = encode(Event{Key: "k", Value: 1})
	require.NoError(t, err)
	assert.Len(t, raw.Headers, 1, "only content-type when type and request id are empty")
}

type fakeWriter struct {
	written []kafka.Message
	err     error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.written = append(f.written, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestProducerPublishBatch(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "events")

	require.NoError(t, p.PublishBatch(context.Background(), nil))
	require.NoError(t, p.PublishBatch(context.Background(), []Event{
		{Key: "a", Value: sample{ID: "1"}},
		{Key: "b", Value: sample{ID: "2"}},
	}))
	require.NoError(t, p.Publish(context.Background(), Event{Key: "c", Value: sample{ID: "3"}}))
	assert.Len(t, w.written, 3)

	err := p.PublishBatch(context.Background(), []Event{{Key: "ok", Value: 1}, {Key: "bad", Value: make(chan int)}})
	assert.ErrorContains(t, err, `key "bad"`)
	assert.Len(t, w.written, 3, "nothing written when any event fails to encode")

	w.err = errors.New("broker down")
	err = p.Publish(context.Background(), Event{Key: "d", Value: 1})
	assert.ErrorContains(t, err, "publishing 1 message(s) to events")
}

// fakeReader serves queued messages, then blocks until the context ends.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	fetchErrs int
	committed []int64
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if f.fetchErrs > 0 {
		f.fetchErrs--
		f.mu.Unlock()
		return kafka.Message{}, errors.New("leader not available")
	}
	if len(f.queue) > 0 {
		msg := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeReader) commits() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.committed...)
}

func TestConsumerDispatch(t *testing.T) {
	ok, err := encode(Event{Key: "a", Type: "reload", RequestID: "req-9", Value: sample{ID: "1"}})
	require.NoError(t, err)
	ok.Offset = 1
	poison := kafka.Message{Key: []byte("b"), Value: []byte("{"), Offset: 2}
	flaky := kafka.Message{Key: []byte("c"), Value: []byte(`{"id":"3"}`), Offset: 3}

	r := &fakeReader{queue: []kafka.Message{ok, poison, flaky}, fetchErrs: 1}

	var mu sync.Mutex
	var seen []string
	var requestIDs []string
	flakyCalls := 0
	handler := func(ctx context.Context, msg Message) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, string(msg.Key))
		requestIDs = append(requestIDs, logger.RequestID(ctx))
		if _, err := DecodeJSON[sample](msg.Value); err != nil {
			return resilience.Permanent(err)
		}
		if string(msg.Key) == "c" {
			flakyCalls++
			if flakyCalls == 1 {
				return errors.New("transient")
			}
		}
		return nil
	}

	c := newConsumer(r, handler, ConsumerOptions{HandlerAttempts: 2, MaxFetchBackoff: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return len(r.commits()) == 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{1, 2, 3}, r.commits())
	assert.True(t, r.closed)
	assert.Equal(t, ConsumerStats{Processed: 2, Skipped: 1, FetchErrors: 1}, c.Stats())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c", "c"}, seen, "permanent errors are not retried")
	assert.Equal(t, "req-9", requestIDs[0])
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, nextBackoff(0, time.Second))
	assert.Equal(t, 400*time.Millisecond, nextBackoff(200*time.Millisecond, time.Second))
	assert.Equal(t, time.Second, nextBackoff(800*time.Millisecond, time.Second))
}
