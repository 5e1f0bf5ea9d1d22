package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"
	"github.com/amirphl/fuel-pricing-config/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Domain event names
const (
	EventConfigurationCreated  = "configuration.created"
	EventConfigurationUpdated  = "configuration.updated"
	EventConfigurationDeleted  = "configuration.deleted"
	EventPriceBuildupCreated   = "price-buildup.created"
	EventPriceBuildupUpdated   = "price-buildup.updated"
	EventPriceBuildupApproved  = "price-buildup.approved"
	EventPriceBuildupPublished = "price-buildup.published"
)

const publishTimeout = 3 * time.Second

// Event is the envelope written to every sink.
type Event struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload"`
}

// NewEvent stamps a payload with an id and time.
func NewEvent(name string, payload map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Name:       name,
		OccurredAt: utils.UTCNow(),
		Payload:    payload,
	}
}

// EventPublisher emits named notifications. Publish never blocks the caller on delivery
// and never reports failure; sinks log and count errors themselves.
type EventPublisher interface {
	Publish(ctx context.Context, name string, payload map[string]any)
}

// NoopEventPublisher discards events.
type NoopEventPublisher struct{}

func (NoopEventPublisher) Publish(context.Context, string, map[string]any) {}

// LogEventPublisher writes events to a logger.
type LogEventPublisher struct {
	logger *log.Logger
}

func NewLogEventPublisher(logger *log.Logger) *LogEventPublisher {
	if logger == nil {
		logger = log.Default()
	}
	return &LogEventPublisher{logger: logger}
}

func (p *LogEventPublisher) Publish(_ context.Context, name string, payload map[string]any) {
	bs, err := json.Marshal(NewEvent(name, payload))
	if err != nil {
		observeEvent("log", "error")
		p.logger.Printf("event %s: marshal failed: %v", name, err)
		return
	}
	observeEvent("log", "ok")
	p.logger.Printf("event %s", bs)
}

// RedisEventPublisher PUBLISHes events on "{prefix}{event name}".
type RedisEventPublisher struct {
	rc     *redis.Client
	prefix string
	logger *log.Logger
}

func NewRedisEventPublisher(rc *redis.Client, channelPrefix string, logger *log.Logger) *RedisEventPublisher {
	if logger == nil {
		logger = log.Default()
	}
	return &RedisEventPublisher{rc: rc, prefix: channelPrefix, logger: logger}
}

func (p *RedisEventPublisher) Publish(ctx context.Context, name string, payload map[string]any) {
	bs, err := json.Marshal(NewEvent(name, payload))
	if err != nil {
		observeEvent("redis", "error")
		p.logger.Printf("event %s: marshal failed: %v", name, err)
		return
	}
	channel := p.prefix + name
	go func() {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := p.rc.Publish(pctx, channel, bs).Err(); err != nil {
			observeEvent("redis", "error")
			p.logger.Printf("event %s: redis publish failed: %v", name, err)
			return
		}
		observeEvent("redis", "ok")
	}()
}

// KafkaEventPublisher sends events through a sarama async producer keyed by event name.
type KafkaEventPublisher struct {
	producer sarama.AsyncProducer
	topic    string
	logger   *log.Logger
	done     chan struct{}
}

// NewKafkaEventPublisher connects an async producer to brokers.
func NewKafkaEventPublisher(brokers []string, topic, clientID string, logger *log.Logger) (*KafkaEventPublisher, error) {
	cfg := sarama.NewConfig()
	if clientID != "" {
		cfg.ClientID = clientID
	}
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = false
	cfg.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer failed: %w", err)
	}
	return newKafkaEventPublisher(producer, topic, logger), nil
}

func newKafkaEventPublisher(producer sarama.AsyncProducer, topic string, logger *log.Logger) *KafkaEventPublisher {
	if logger == nil {
		logger = log.Default()
	}
	p := &KafkaEventPublisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go p.errorLoop()
	return p
}

func (p *KafkaEventPublisher) errorLoop() {
	defer close(p.done)
	for perr := range p.producer.Errors() {
		observeEvent("kafka", "error")
		p.logger.Printf("event publish to kafka topic %s failed: %v", perr.Msg.Topic, perr.Err)
	}
}

func (p *KafkaEventPublisher) Publish(_ context.Context, name string, payload map[string]any) {
	evt := NewEvent(name, payload)
	bs, err := json.Marshal(evt)
	if err != nil {
		observeEvent("kafka", "error")
		p.logger.Printf("event %s: marshal failed: %v", name, err)
		return
	}
	msg := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(name),
		Value:     sarama.ByteEncoder(bs),
		Timestamp: evt.OccurredAt,
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_id"), Value: []byte(evt.ID)},
		},
	}
	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()
	select {
	case p.producer.Input() <- msg:
		observeEvent("kafka", "ok")
	case <-timer.C:
		observeEvent("kafka", "dropped")
		p.logger.Printf("event %s: kafka producer not accepting messages, dropped", name)
	}
}

// Close flushes buffered messages and stops the producer.
func (p *KafkaEventPublisher) Close() error {
	p.producer.AsyncClose()
	<-p.done
	return nil
}
