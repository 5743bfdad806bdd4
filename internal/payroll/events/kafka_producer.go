// Package events publishes payroll state transitions to Kafka and consumes
// them back for auditing.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gartstein/payroll/internal/payroll/metrics"
	"github.com/gartstein/payroll/internal/payroll/models"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var jsonMarshal = json.Marshal

type EventType string

const (
	CompanyCreated        EventType = "company_created"
	EmployeeAdded         EventType = "employee_added"
	EmployeeSalaryUpdated EventType = "employee_salary_updated"
	EmployeeRemoved       EventType = "employee_removed"
	PaymentProcessed      EventType = "payment_processed"
	PaymentProofRecorded  EventType = "payment_proof_recorded"
)

const defaultQueueSize = 1000

// Event is one committed payroll transition. Salary ciphertext is carried
// as stored; plaintext amounts never are.
type Event struct {
	ID               uuid.UUID            `json:"id"`
	Type             EventType            `json:"type"`
	OccurredAt       int64                `json:"occurred_at"`
	Company          *models.Company      `json:"company,omitempty"`
	Employee         *models.Employee     `json:"employee,omitempty"`
	PaymentProof     *models.PaymentProof `json:"payment_proof,omitempty"`
	AmountCommitment *models.Hash         `json:"amount_commitment,omitempty"`
}

// NewEvent builds an event with a fresh ID.
func NewEvent(eventType EventType, occurredAt int64, company *models.Company) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: occurredAt,
		Company:    company,
	}
}

// Key partitions events by company so one company's events stay ordered.
func (e Event) Key() string {
	if e.Company == nil {
		return ""
	}
	return e.Company.Address.String()
}

type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer    KafkaWriter
	events    chan Event
	logger    *zap.Logger
	metrics   *metrics.PayrollMetrics
	closeChan chan struct{}
	done      chan struct{}
}

func NewProducer(brokers []string, logger *zap.Logger, topic string) (*Producer, error) {
	// Create topic if it doesn't exist
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	topicConfigs := []kafka.TopicConfig{
		{
			Topic:             topic,
			NumPartitions:     3,
			ReplicationFactor: 1,
		},
	}

	err = conn.CreateTopics(topicConfigs...)
	if err != nil {
		logger.Warn("failed to create topic (may already exist)", zap.Error(err))
	}
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.Hash{},
		Topic:    topic,
	}
	return newProducer(writer, logger, defaultQueueSize), nil
}

func newProducer(writer KafkaWriter, logger *zap.Logger, queueSize int) *Producer {
	p := &Producer{
		writer:    writer,
		events:    make(chan Event, queueSize),
		logger:    logger.Named("kafka_producer"),
		metrics:   metrics.Payroll(),
		closeChan: make(chan struct{}),
		done:      make(chan struct{}),
	}
	go p.eventLoop()
	return p
}

// Produce queues event without blocking. A full queue drops the event.
func (p *Producer) Produce(event Event) {
	select {
	case p.events <- event:
	default:
		p.metrics.ObserveEventDropped(string(event.Type))
		p.logger.Warn("Kafka producer queue full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID.String()),
			zap.String("company", event.Key()),
		)
	}
}

func (p *Producer) eventLoop() {
	defer close(p.done)
	for {
		select {
		case event := <-p.events:
			p.sendEvent(context.Background(), event)
		case <-p.closeChan:
			p.drain()
			return
		}
	}
}

func (p *Producer) drain() {
	for {
		select {
		case event := <-p.events:
			p.sendEvent(context.Background(), event)
		default:
			return
		}
	}
}

func (p *Producer) sendEvent(ctx context.Context, event Event) {
	value, err := jsonMarshal(event)
	if err != nil {
		p.logger.Error("Failed to serialize event",
			zap.Error(err),
			zap.String("event_id", event.ID.String()),
		)
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Key()),
		Value: value,
		Time:  time.Unix(event.OccurredAt, 0),
	})
	if err != nil {
		p.logger.Error("Failed to produce event",
			zap.Error(err),
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID.String()),
		)
		return
	}
}

// Close flushes queued events and closes the writer.
func (p *Producer) Close() {
	close(p.closeChan)
	<-p.done
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Failed to close Kafka writer", zap.Error(err))
	}
}

// NopProducer discards events. It is used when no brokers are configured.
type NopProducer struct{}

func (NopProducer) Produce(Event) {}

func (NopProducer) Close() {}
