package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/apache/pulsar-client-go/pulsar"

	"github.com/balizero/agentcore/core/message"
)

type PulsarConfig struct {
	URL   string `yaml:"URL"`
	Topic string `yaml:"Topic"`
}

func NewPulsar(conf *PulsarConfig) (Broker, error) {
	client, err := pulsar.NewClient(pulsar.ClientOptions{URL: conf.URL})
	if err != nil {
		return nil, fmt.Errorf("broker: create pulsar client failed: %w", err)
	}
	consumer, err := client.Subscribe(pulsar.ConsumerOptions{
		Topic:            conf.Topic,
		SubscriptionName: conf.Topic + "-sub",
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("broker: create pulsar consumer failed: %w", err)
	}
	producer, err := client.CreateProducer(pulsar.ProducerOptions{Topic: conf.Topic})
	if err != nil {
		consumer.Close()
		client.Close()
		return nil, fmt.Errorf("broker: create pulsar producer failed: %w", err)
	}
	return &Pulsar{client: client, producer: producer, consumer: consumer}, nil
}

// Pulsar adapts apache/pulsar-client-go to the Broker contract: a
// single-topic producer/consumer pair, message.Msg/message.ID carrying the
// payload and pulsar.MessageID respectively.
type Pulsar struct {
	mu       sync.Mutex
	client   pulsar.Client
	producer pulsar.Producer
	consumer pulsar.Consumer
}

func (p *Pulsar) Produce(ctx context.Context, msgs ...*message.Msg) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, m := range msgs {
		if _, err := p.producer.Send(ctx, &pulsar.ProducerMessage{Payload: m.Payload()}); err != nil {
			return fmt.Errorf("broker: pulsar send failed: %w", err)
		}
	}
	return nil
}

func (p *Pulsar) Consume(ctx context.Context) (*message.Msg, message.ID, error) {
	pmsg, err := p.consumer.Receive(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("broker: pulsar receive failed: %w", err)
	}
	return message.New(pmsg.Payload()), message.ID(pmsg.ID()), nil
}

func (p *Pulsar) Ack(ctx context.Context, id message.ID) error {
	mid, ok := id.(pulsar.MessageID)
	if !ok {
		return fmt.Errorf("broker: ack id is not a pulsar.MessageID: %T", id)
	}
	return p.consumer.AckID(mid)
}

func (p *Pulsar) Nack(ctx context.Context, id message.ID) error {
	mid, ok := id.(pulsar.MessageID)
	if !ok {
		return fmt.Errorf("broker: nack id is not a pulsar.MessageID: %T", id)
	}
	p.consumer.NackID(mid)
	return nil
}

func (p *Pulsar) Close() error {
	p.producer.Close()
	p.consumer.Close()
	p.client.Close()
	return nil
}
