package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/cartsmash/resolver/internal/domain"
)

// KafkaSink publishes resolution events as JSON to a Kafka topic.
// Publishing never blocks the resolution path: when the producer input is
// full the event is dropped, and delivery errors are logged asynchronously.
type KafkaSink struct {
	producer sarama.AsyncProducer
	topic    string
	logger   zerolog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewKafkaProducer creates an asynchronous producer for the given brokers
func NewKafkaProducer(brokers []string) (sarama.AsyncProducer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.ClientID = "cartsmash-resolver"
	saramaConfig.Producer.Return.Successes = false
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Timeout = 2 * time.Second
	saramaConfig.Producer.Retry.Max = 2

	return sarama.NewAsyncProducer(brokers, saramaConfig)
}

// NewKafkaSink wraps a producer and starts draining its error channel
func NewKafkaSink(producer sarama.AsyncProducer, topic string, logger zerolog.Logger) *KafkaSink {
	s := &KafkaSink{
		producer: producer,
		topic:    topic,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go s.drainErrors()
	return s
}

func (s *KafkaSink) drainErrors() {
	defer close(s.done)
	for perr := range s.producer.Errors() {
		evt := s.logger.Warn().Err(perr.Err)
		if perr.Msg != nil {
			evt = evt.Str("topic", perr.Msg.Topic)
		}
		evt.Msg("failed to publish event")
	}
}

// OnResolutionEvent implements domain.EventSink. Publish failures are logged only.
func (s *KafkaSink) OnResolutionEvent(_ context.Context, event domain.ResolutionEvent) {
	value, err := json.Marshal(event)
	if err != nil {
		s.logger.Error().Err(err).Str("event", string(event.Type)).Msg("failed to encode event")
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}
	if key := eventKey(event); key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.producer.Input() <- msg:
	default:
		s.logger.Warn().Str("event", string(event.Type)).Msg("event dropped, producer queue full")
	}
}

// Close flushes the producer and waits for pending delivery errors to be logged
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.producer.Close()
	<-s.done
	return err
}

// eventKey keeps events of one item on one partition
func eventKey(event domain.ResolutionEvent) string {
	if event.CacheKey != "" {
		return event.CacheKey
	}
	return event.BatchID
}
