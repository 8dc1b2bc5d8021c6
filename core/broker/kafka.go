package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/balizero/agentcore/core/message"
)

const kafkaReadBufferSize = 64 * 1024

type KafkaConfig struct {
	Address      string        `yaml:"Address"`
	Topic        string        `yaml:"Topic"`
	Partition    int           `yaml:"Partition"`
	WriteTimeout time.Duration `yaml:"WriteTimeout"`
	ReadTimeout  time.Duration `yaml:"ReadTimeout"`
}

// Kafka adapts segmentio/kafka-go's single-partition Conn to the Broker
// contract. Ack and Nack are both no-ops: plain Conn consumption has no
// consumer-group offset to commit and no redelivery mechanism — a failed
// message is simply skipped and logged by the caller.
type Kafka struct {
	conf *KafkaConfig
	conn *kafka.Conn
}

func NewKafka(conf *KafkaConfig) (Broker, error) {
	conn, err := kafka.DialLeader(context.Background(), "tcp", conf.Address, conf.Topic, conf.Partition)
	if err != nil {
		return nil, fmt.Errorf("broker: failed to dial kafka: %w", err)
	}
	if conf.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(conf.WriteTimeout))
	}
	return &Kafka{conf: conf, conn: conn}, nil
}

func (k *Kafka) Produce(ctx context.Context, msgs ...*message.Msg) error {
	if k.conf.WriteTimeout > 0 {
		_ = k.conn.SetWriteDeadline(time.Now().Add(k.conf.WriteTimeout))
	}
	errs := make([]error, 0, len(msgs))
	for _, m := range msgs {
		_, err := k.conn.Write(m.Payload())
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (k *Kafka) Consume(ctx context.Context) (*message.Msg, message.ID, error) {
	if k.conf.ReadTimeout > 0 {
		_ = k.conn.SetReadDeadline(time.Now().Add(k.conf.ReadTimeout))
	}
	buf := make([]byte, kafkaReadBufferSize)
	n, err := k.conn.Read(buf)
	if err != nil {
		return nil, nil, fmt.Errorf("broker: kafka read failed: %w", err)
	}
	offset := k.conn.Offset()
	return message.New(buf[:n]), message.ID(offset), nil
}

// Ack is a no-op: Conn-level consumption has no consumer-group offset to
// commit explicitly, unlike the reader/writer group API.
func (k *Kafka) Ack(ctx context.Context, id message.ID) error {
	return nil
}

func (k *Kafka) Nack(ctx context.Context, id message.ID) error {
	return nil
}

func (k *Kafka) Close() error {
	return k.conn.Close()
}
