package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// KafkaMailer publishes OTP mails to a topic consumed by the mail relay.
type KafkaMailer struct {
	writer *kafka.Writer
	log    *zerolog.Logger
}

// NewKafkaMailer creates a synchronous producer for topic.
func NewKafkaMailer(brokers []string, topic string, logger *zerolog.Logger) *KafkaMailer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &KafkaMailer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{}, // same recipient, same partition
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 5 * time.Second,
		},
		log: logger,
	}
}

// SendOTP publishes the verification mail keyed by recipient.
func (m *KafkaMailer) SendOTP(ctx context.Context, email, name, otp string) error {
	msg, err := buildMessage(NewOTPMessage(email, name, otp))
	if err != nil {
		return err
	}
	if err := m.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish otp mail: %w", err)
	}
	m.log.Debug().Str("to", email).Str("topic", m.writer.Topic).Msg("otp mail published")
	return nil
}

// Close flushes and closes the producer.
func (m *KafkaMailer) Close() error {
	return m.writer.Close()
}

func buildMessage(mail Message) (kafka.Message, error) {
	value, err := json.Marshal(mail)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal mail: %w", err)
	}
	return kafka.Message{
		Key:   []byte(mail.To),
		Value: value,
		Time:  time.Now(),
	}, nil
}
