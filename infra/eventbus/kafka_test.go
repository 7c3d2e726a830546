package eventbus

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amirasaad/checkoutflow/pkg/checkout"
	"github.com/amirasaad/checkoutflow/pkg/config"
	"github.com/amirasaad/checkoutflow/pkg/eventbus"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testcontainerskafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

type recordingWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

// newOfflineKafkaBus builds a bus whose topics are already known so that no
// broker is dialled.
func newOfflineKafkaBus(w messageWriter) *KafkaEventBus {
	cfg := &config.Kafka{GroupID: "test", TopicPrefix: "test.events"}
	bus := newKafkaBus([]string{"localhost:0"}, w, &kafka.Dialer{}, cfg, checkout.LifecycleEventTypes(), discardLogger())
	for eventType := range checkout.LifecycleEventTypes() {
		bus.topics[topicNameFor(cfg.TopicPrefix, eventType)] = struct{}{}
		bus.topics[dlqTopicNameFor(cfg.TopicPrefix, eventType)] = struct{}{}
	}
	return bus
}

func TestTopicNames(t *testing.T) {
	assert.Equal(t, "test.events.checkout.succeeded", topicNameFor("test.events", "checkout.succeeded"))
	assert.Equal(t, "checkoutflow.events.checkout.failed", topicNameFor("  ", "Checkout.Failed"))
	assert.Equal(t, "test.events.dlq.checkout.failed", dlqTopicNameFor("test.events", "checkout.failed"))
	assert.Equal(t, "s-DLQ", dlqStreamName("s"))
}

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, parseBrokers(" a:9092, ,b:9092 "))
	assert.Empty(t, parseBrokers(""))
}

func TestBuildKafkaSASLMechanism(t *testing.T) {
	m, err := buildKafkaSASLMechanism(&config.Kafka{})
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = buildKafkaSASLMechanism(&config.Kafka{SASLUsername: "u", SASLPassword: "p"})
	require.NoError(t, err)
	assert.Equal(t, "PLAIN", m.Name())

	_, err = buildKafkaSASLMechanism(&config.Kafka{SASLUsername: "u"})
	require.Error(t, err)
}

func TestNewWithKafka_RequiresBrokers(t *testing.T) {
	_, err := NewWithKafka(&config.Kafka{Brokers: " , "}, nil, discardLogger())
	require.Error(t, err)
	_, err = NewWithKafka(nil, nil, discardLogger())
	require.Error(t, err)
}

func TestKafkaEventBus_EmitWritesEnvelope(t *testing.T) {
	w := &recordingWriter{}
	bus := newOfflineKafkaBus(w)

	require.NoError(t, bus.Emit(context.Background(), &checkout.LifecycleEvent{
		EventType: checkout.EventTypeStarted,
		SessionID: "s1",
	}))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "test.events.checkout.started", w.msgs[0].Topic)
	assert.Equal(t, []byte(checkout.EventTypeStarted), w.msgs[0].Key)

	evt, err := decodeEnvelope(w.msgs[0].Value, checkout.LifecycleEventTypes())
	require.NoError(t, err)
	assert.Equal(t, "s1", evt.(*checkout.LifecycleEvent).SessionID)
}

func TestKafkaEventBus_ProcessMessage(t *testing.T) {
	payload, err := encodeEnvelope(&checkout.LifecycleEvent{EventType: checkout.EventTypeFailed, SessionID: "s1"})
	require.NoError(t, err)

	tests := []struct {
		name       string
		value      []byte
		handlerErr error
		register   bool
		writerErr  error
		wantCommit bool
		wantErr    bool
		wantDLQ    int
	}{
		{name: "handled", value: payload, register: true, wantCommit: true},
		{name: "garbage is dropped", value: []byte("nope"), register: true, wantCommit: true},
		{name: "no handlers", value: payload, wantCommit: true},
		{name: "failure goes to DLQ", value: payload, register: true, handlerErr: errors.New("boom"), wantCommit: true, wantDLQ: 1},
		{
			name: "DLQ failure retries", value: payload, register: true,
			handlerErr: errors.New("boom"), writerErr: errors.New("down"), wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &recordingWriter{err: tt.writerErr}
			bus := newOfflineKafkaBus(w)
			if tt.register {
				bus.handlersMtx.Lock()
				bus.handlers[checkout.EventTypeFailed] = []eventbus.HandlerFunc{
					func(context.Context, eventbus.Event) error { return tt.handlerErr },
				}
				bus.handlersMtx.Unlock()
			}

			commit, err := bus.processMessage(context.Background(), checkout.EventTypeFailed, kafka.Message{Value: tt.value})
			assert.Equal(t, tt.wantCommit, commit)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Len(t, w.msgs, tt.wantDLQ)
			if tt.wantDLQ > 0 {
				assert.Equal(t, "test.events.dlq.checkout.failed", w.msgs[0].Topic)
			}
		})
	}
}

func dockerIsReachable() bool {
	host := os.Getenv("DOCKER_HOST")
	if strings.HasPrefix(host, "unix://") {
		return canDialUnix(strings.TrimPrefix(host, "unix://"))
	}
	if host != "" {
		return true
	}
	return canDialUnix("/var/run/docker.sock")
}

func canDialUnix(path string) bool {
	conn, err := net.DialTimeout("unix", path, 300*time.Millisecond)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func TestKafkaEventBus_Integration(t *testing.T) {
	if testing.Short() || !dockerIsReachable() {
		t.Skip("docker is not reachable")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	container, err := testcontainerskafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	if err != nil {
		t.Skipf("failed to start kafka container: %v", err)
	}
	defer func() { _ = container.Terminate(context.Background()) }()

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	bus, err := NewWithKafka(&config.Kafka{
		Brokers:     strings.Join(brokers, ","),
		GroupID:     "it",
		TopicPrefix: "it.events",
	}, checkout.LifecycleEventTypes(), discardLogger())
	require.NoError(t, err)
	defer func() { _ = bus.Close() }()

	received := make(chan string, 1)
	bus.Register(checkout.EventTypeSucceeded, func(ctx context.Context, e eventbus.Event) error {
		received <- e.(*checkout.LifecycleEvent).ConfirmationID
		return nil
	})

	require.NoError(t, bus.Emit(ctx, &checkout.LifecycleEvent{
		EventType:      checkout.EventTypeSucceeded,
		SessionID:      "s1",
		ConfirmationID: "conf-1",
	}))

	select {
	case id := <-received:
		assert.Equal(t, "conf-1", id)
	case <-time.After(20 * time.Second):
		t.Fatal("handler did not receive event in time")
	}
}
