package eventbus

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/amirasaad/checkoutflow/pkg/config"
	"github.com/amirasaad/checkoutflow/pkg/eventbus"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEventBus publishes each event type to its own Kafka topic.
type KafkaEventBus struct {
	brokers []string
	writer  messageWriter
	dialer  *kafka.Dialer
	types   eventbus.TypeRegistry
	ctx     context.Context

	handlers    map[string][]eventbus.HandlerFunc
	handlersMtx sync.RWMutex

	readers    map[string]*kafka.Reader
	readersMtx sync.Mutex
	topicsMtx  sync.Mutex
	topics     map[string]struct{}

	logger *slog.Logger
	config *config.Kafka

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWithKafka creates a Kafka-backed event bus and checks the first broker
// is reachable.
func NewWithKafka(
	cfg *config.Kafka,
	types eventbus.TypeRegistry,
	logger *slog.Logger,
) (*KafkaEventBus, error) {
	if cfg == nil {
		return nil, fmt.Errorf("kafka event bus: config is required")
	}
	parsedBrokers := parseBrokers(cfg.Brokers)
	if len(parsedBrokers) == 0 {
		return nil, fmt.Errorf("kafka event bus: brokers are required")
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "checkoutflow"
	}
	if logger == nil {
		logger = slog.Default()
	}

	dialer, transport, err := newKafkaDialer(cfg)
	if err != nil {
		return nil, err
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(parsedBrokers...),
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           cfg.WriteTimeout,
	}
	if transport != nil {
		writer.Transport = transport
	}

	bus := newKafkaBus(parsedBrokers, writer, dialer, cfg, types, logger)
	if err := bus.ping(bus.ctx); err != nil {
		_ = bus.Close()
		return nil, err
	}

	logger.Info("🚀 Kafka event bus initialized",
		"group_id", cfg.GroupID,
		"brokers", parsedBrokers,
		"topic_prefix", topicPrefix(cfg.TopicPrefix),
		"tls_enabled", dialer.TLS != nil,
		"sasl_enabled", dialer.SASLMechanism != nil,
	)
	return bus, nil
}

func newKafkaBus(
	brokers []string,
	writer messageWriter,
	dialer *kafka.Dialer,
	cfg *config.Kafka,
	types eventbus.TypeRegistry,
	logger *slog.Logger,
) *KafkaEventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &KafkaEventBus{
		brokers:  brokers,
		writer:   writer,
		dialer:   dialer,
		types:    types,
		ctx:      ctx,
		handlers: make(map[string][]eventbus.HandlerFunc),
		readers:  make(map[string]*kafka.Reader),
		topics:   make(map[string]struct{}),
		logger:   logger.With("bus", "kafka"),
		config:   cfg,
		cancel:   cancel,
	}
}

// Close stops background goroutines and closes network resources.
func (b *KafkaEventBus) Close() error {
	if b == nil {
		return nil
	}
	if b.cancel != nil {
		b.cancel()
	}

	b.readersMtx.Lock()
	for _, r := range b.readers {
		_ = r.Close()
	}
	b.readersMtx.Unlock()

	b.wg.Wait()

	if b.writer != nil {
		return b.writer.Close()
	}
	return nil
}

// Register registers an event handler and starts a consumer for its topic.
func (b *KafkaEventBus) Register(eventType string, handler eventbus.HandlerFunc) {
	b.handlersMtx.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.handlersMtx.Unlock()

	b.ensureConsumer(eventType)
}

// Emit publishes an event to its topic, keyed by event type.
func (b *KafkaEventBus) Emit(ctx context.Context, event eventbus.Event) error {
	if b == nil || b.writer == nil {
		return fmt.Errorf("kafka event bus: writer not initialized")
	}

	envBytes, err := encodeEnvelope(event)
	if err != nil {
		return fmt.Errorf("kafka event bus: %w", err)
	}

	topic := topicNameFor(b.config.TopicPrefix, event.Type())
	if err := b.ensureTopic(ctx, topic); err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(event.Type()),
		Value: envBytes,
		Time:  time.Now(),
	}
	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka event bus: publish failed: %w", err)
	}
	return nil
}

func (b *KafkaEventBus) ping(ctx context.Context) error {
	conn, err := b.dialer.DialContext(ctx, "tcp", b.brokers[0])
	if err != nil {
		return fmt.Errorf("kafka event bus: connection failed: %w", err)
	}
	_ = conn.Close()
	return nil
}

func (b *KafkaEventBus) ensureConsumer(eventType string) {
	b.readersMtx.Lock()
	defer b.readersMtx.Unlock()

	if _, exists := b.readers[eventType]; exists {
		return
	}

	topic := topicNameFor(b.config.TopicPrefix, eventType)
	if err := b.ensureTopic(b.ctx, topic); err != nil {
		b.logger.Error("kafka ensure topic error", "error", err, "event_type", eventType)
		return
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     b.brokers,
		GroupID:     b.config.GroupID,
		Topic:       topic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     1 * time.Second,
		Dialer:      b.dialer,
	})
	b.readers[eventType] = reader

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.consumeLoop(b.ctx, eventType, reader)
	}()
}

func (b *KafkaEventBus) consumeLoop(ctx context.Context, eventType string, reader *kafka.Reader) {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			b.logger.Error("kafka consume error", "error", err, "event_type", eventType)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		commit, processingErr := b.processMessage(ctx, eventType, msg)
		if commit {
			if err := reader.CommitMessages(ctx, msg); err != nil {
				b.logger.Error("kafka commit error", "error", err, "topic", msg.Topic, "offset", msg.Offset)
			}
		} else if processingErr != nil {
			b.logger.Error("kafka message processing failed; will retry",
				"error", processingErr, "topic", msg.Topic, "offset", msg.Offset)
			time.Sleep(500 * time.Millisecond)
		}
	}
}

// processMessage decodes msg and runs the handlers registered for its type.
// Undecodable messages are committed and dropped. Failed handlers send the
// raw message to the DLQ topic; the offset is only committed once that succeeds.
func (b *KafkaEventBus) processMessage(
	ctx context.Context,
	expectedType string,
	msg kafka.Message,
) (commit bool, processingErr error) {
	evt, err := decodeEnvelope(msg.Value, b.types)
	if err != nil {
		b.logger.Error("failed to decode event", "error", err, "topic", msg.Topic, "offset", msg.Offset)
		return true, nil
	}
	if expectedType != "" && evt.Type() != expectedType {
		b.logger.Warn("envelope type mismatch for topic",
			"expected", expectedType, "actual", evt.Type(), "topic", msg.Topic)
	}

	handlers := b.getHandlers(evt.Type())
	if len(handlers) == 0 {
		b.logger.Warn("no handlers registered for event type", "event_type", evt.Type(), "topic", msg.Topic)
		return true, nil
	}

	if executeHandlers(ctx, b.logger, evt, handlers, fmt.Sprintf("%d", msg.Offset)) {
		return true, nil
	}

	if err := b.publishToDLQ(ctx, evt.Type(), msg.Value); err != nil {
		return false, err
	}
	return true, nil
}

func (b *KafkaEventBus) publishToDLQ(ctx context.Context, eventType string, raw []byte) error {
	dlqTopic := dlqTopicNameFor(b.config.TopicPrefix, eventType)
	if err := b.ensureTopic(ctx, dlqTopic); err != nil {
		return err
	}
	msg := kafka.Message{
		Topic: dlqTopic,
		Key:   []byte(eventType),
		Value: raw,
		Time:  time.Now(),
	}
	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka event bus: dlq publish failed: %w", err)
	}
	b.logger.Warn("message sent to DLQ", "event_type", eventType, "dlq_topic", dlqTopic)
	return nil
}

func newKafkaDialer(cfg *config.Kafka) (*kafka.Dialer, *kafka.Transport, error) {
	var tlsConfig *tls.Config
	if cfg.TLSEnabled {
		tlsConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: cfg.TLSSkipVerify, //nolint:gosec
		}
	}
	saslMechanism, err := buildKafkaSASLMechanism(cfg)
	if err != nil {
		return nil, nil, err
	}

	dialer := &kafka.Dialer{
		Timeout:       5 * time.Second,
		TLS:           tlsConfig,
		SASLMechanism: saslMechanism,
	}
	if tlsConfig == nil && saslMechanism == nil {
		return dialer, nil, nil
	}
	return dialer, &kafka.Transport{TLS: tlsConfig, SASL: saslMechanism}, nil
}

func buildKafkaSASLMechanism(cfg *config.Kafka) (sasl.Mechanism, error) {
	username := strings.TrimSpace(cfg.SASLUsername)
	password := strings.TrimSpace(cfg.SASLPassword)
	if username == "" && password == "" {
		return nil, nil
	}
	if username == "" || password == "" {
		return nil, fmt.Errorf("kafka event bus: sasl username and password are required")
	}
	return plain.Mechanism{Username: username, Password: password}, nil
}

func (b *KafkaEventBus) ensureTopic(ctx context.Context, topic string) error {
	if topic == "" {
		return fmt.Errorf("kafka event bus: topic is required")
	}

	b.topicsMtx.Lock()
	_, exists := b.topics[topic]
	b.topicsMtx.Unlock()
	if exists {
		return nil
	}

	conn, err := b.dialer.DialContext(ctx, "tcp", b.brokers[0])
	if err != nil {
		return fmt.Errorf("kafka event bus: dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil && !isTopicAlreadyExists(err) {
		return fmt.Errorf("kafka event bus: create topic failed: %w", err)
	}

	b.topicsMtx.Lock()
	b.topics[topic] = struct{}{}
	b.topicsMtx.Unlock()
	return nil
}

func isTopicAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, kafka.TopicAlreadyExists) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "TOPIC_ALREADY_EXISTS") ||
		strings.Contains(msg, "Topic with this name already exists")
}

func (b *KafkaEventBus) getHandlers(eventType string) []eventbus.HandlerFunc {
	b.handlersMtx.RLock()
	defer b.handlersMtx.RUnlock()
	return append([]eventbus.HandlerFunc(nil), b.handlers[eventType]...)
}

func executeHandlers(
	ctx context.Context,
	logger *slog.Logger,
	evt eventbus.Event,
	handlers []eventbus.HandlerFunc,
	msgID string,
) bool {
	var wg sync.WaitGroup
	var mu sync.Mutex
	success := true

	for _, handler := range handlers {
		wg.Add(1)
		go func(h eventbus.HandlerFunc) {
			defer wg.Done()
			if err := h(ctx, evt); err != nil {
				mu.Lock()
				success = false
				mu.Unlock()
				logger.Error("handler error", "error", err, "event_type", evt.Type(), "msg_id", msgID)
			}
		}(handler)
	}

	wg.Wait()
	return success
}

var _ eventbus.Bus = (*KafkaEventBus)(nil)
