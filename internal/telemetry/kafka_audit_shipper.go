package telemetry

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	cfg "github.com/ComUnity/signup-risk-gate/internal/config"
	"github.com/ComUnity/signup-risk-gate/internal/util/logger"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaAuditShipper publishes decision audit events to a Kafka topic from a
// single background goroutine. Publish never blocks: events are dropped when
// the queue is full.
type KafkaAuditShipper struct {
	cfg     cfg.KafkaAuditConfig
	w       messageWriter
	ch      chan DecisionAuditEvent
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	dropped atomic.Uint64
}

func NewKafkaAuditShipper(cfgIn cfg.KafkaAuditConfig) (*KafkaAuditShipper, error) {
	c := cfgIn
	if !c.Enabled {
		return newShipper(c, nil), nil
	}
	if len(c.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	c = withDefaults(c)

	tr := &kafka.Transport{
		DialTimeout: c.DialTimeout,
	}
	if c.TLS {
		tr.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Topic:                  c.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Transport:              tr,
		AllowAutoTopicCreation: false,
		Async:                  true,
		BatchTimeout:           c.FlushEvery,
		BatchSize:              c.BatchSize,
		WriteTimeout:           c.WriteTimeout,
	}
	return newShipper(c, w), nil
}

func withDefaults(c cfg.KafkaAuditConfig) cfg.KafkaAuditConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	if c.FlushEvery <= 0 {
		c.FlushEvery = 2 * time.Second
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = c.BatchSize * 4
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	return c
}

func newShipper(c cfg.KafkaAuditConfig, w messageWriter) *KafkaAuditShipper {
	capacity := 0
	if c.Enabled {
		c = withDefaults(c)
		capacity = c.QueueCapacity
	}
	return &KafkaAuditShipper{
		cfg:  c,
		w:    w,
		ch:   make(chan DecisionAuditEvent, capacity),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Enabled reports whether events are actually shipped.
func (s *KafkaAuditShipper) Enabled() bool {
	return s.cfg.Enabled && s.w != nil
}

// Dropped returns the number of events discarded on backpressure.
func (s *KafkaAuditShipper) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *KafkaAuditShipper) Start() {
	if !s.Enabled() {
		return
	}
	go s.loop()
}

// Stop drains queued events and closes the writer. Safe to call more than once.
func (s *KafkaAuditShipper) Stop(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	s.once.Do(func() {
		close(s.stop)
		select {
		case <-s.done:
		case <-ctx.Done():
			logger.Warnf("[AuditShipper] shutdown deadline hit before queue drained")
		}
		if err := s.w.Close(); err != nil {
			logger.Errorf("[AuditShipper] closing kafka writer: %v", err)
		}
	})
}

func (s *KafkaAuditShipper) Publish(ev DecisionAuditEvent) {
	if !s.Enabled() {
		return
	}
	select {
	case s.ch <- ev:
	default:
		s.dropped.Add(1)
	}
}

func (s *KafkaAuditShipper) loop() {
	defer close(s.done)
	for {
		select {
		case ev := <-s.ch:
			s.dispatch(ev)
		case <-s.stop:
			for {
				select {
				case ev := <-s.ch:
					s.dispatch(ev)
				default:
					return
				}
			}
		}
	}
}

func (s *KafkaAuditShipper) dispatch(ev DecisionAuditEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.Errorf("[AuditShipper] marshal audit event: %v", err)
		return
	}

	// Keyed by client so one tenant's decisions stay ordered on a partition.
	var key []byte
	if ev.ClientID != "" {
		key = []byte(ev.ClientID)
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
	defer cancel()
	if err := s.w.WriteMessages(ctx, kafka.Message{Key: key, Value: payload, Time: ev.Timestamp}); err != nil {
		logger.Errorf("[AuditShipper] write audit event %s: %v", ev.EventID, err)
	}
}
