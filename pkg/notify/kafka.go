package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"aidr-hq/bastion/pkg/config"
)

// messageWriter is the subset of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes events to a Kafka topic.
type KafkaSink struct {
	writer messageWriter
	topic  string
}

// NewKafka creates a Kafka sink. The writer connects lazily on first publish.
func NewKafka(cfg config.KafkaConfig) (*KafkaSink, error) {
	if len(cfg.BootstrapServers) == 0 {
		return nil, fmt.Errorf("kafka bootstrap servers are required")
	}
	transport, err := newTransport(cfg)
	if err != nil {
		return nil, err
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.BootstrapServers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: cfg.WriteTimeout,
		BatchTimeout: 10 * time.Millisecond,
		Transport:    transport,
	}
	return &KafkaSink{writer: w, topic: cfg.Topic}, nil
}

func newTransport(cfg config.KafkaConfig) (*kafka.Transport, error) {
	protocol := strings.ToUpper(cfg.SecurityProtocol)
	t := &kafka.Transport{}

	switch protocol {
	case "", "PLAINTEXT":
		return t, nil
	case "SSL":
		t.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
		return t, nil
	case "SASL_PLAINTEXT", "SASL_SSL":
		mech, err := saslMechanism(cfg)
		if err != nil {
			return nil, err
		}
		t.SASL = mech
		if protocol == "SASL_SSL" {
			t.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported kafka security protocol %q", cfg.SecurityProtocol)
	}
}

func saslMechanism(cfg config.KafkaConfig) (sasl.Mechanism, error) {
	switch strings.ToUpper(cfg.SASLMechanism) {
	case "", "PLAIN":
		return plain.Mechanism{Username: cfg.SASLUsername, Password: cfg.SASLPassword}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, cfg.SASLUsername, cfg.SASLPassword)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, cfg.SASLUsername, cfg.SASLPassword)
	default:
		return nil, fmt.Errorf("unsupported kafka sasl mechanism %q", cfg.SASLMechanism)
	}
}

// Name returns "kafka".
func (s *KafkaSink) Name() string { return "kafka" }

// Deliver publishes ev as JSON keyed by task ID.
func (s *KafkaSink) Deliver(ctx context.Context, ev *Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.TaskID),
		Value: value,
		Time:  ev.Timestamp,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish to topic %q: %w", s.topic, err)
	}
	return nil
}

// Close flushes pending messages and closes connections.
func (s *KafkaSink) Close(context.Context) error {
	return s.writer.Close()
}
