// Package events publishes committed shift transitions to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/fieldops/internal/shift"
)

// DefaultTopic receives shift events when no topic is configured.
const DefaultTopic = "fieldops.shifts"

// ShiftEvent is the JSON payload written for every shift transition.
type ShiftEvent struct {
	Type            string    `json:"type"`
	ShiftID         string    `json:"shift_id"`
	WorkerID        string    `json:"worker_id"`
	WorkerKind      string    `json:"worker_kind"`
	ClientID        string    `json:"client_id"`
	ScheduleID      *string   `json:"schedule_id,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	DistanceMiles   float64   `json:"distance_miles"`
	RadiusMiles     float64   `json:"radius_miles"`
	WithinGeofence  bool      `json:"within_geofence"`
	PinOverrideUsed bool      `json:"pin_override_used"`
}

// FromShift converts a lifecycle event to its wire form.
func FromShift(event shift.Event) ShiftEvent {
	rec := event.Record
	location := rec.CheckInLocation
	if event.Type == shift.EventCheckedOut && rec.CheckOutLocation != nil {
		location = *rec.CheckOutLocation
	}
	return ShiftEvent{
		Type:            string(event.Type),
		ShiftID:         rec.ID,
		WorkerID:        rec.WorkerID,
		WorkerKind:      string(rec.WorkerKind),
		ClientID:        rec.ClientID,
		ScheduleID:      rec.ScheduleID,
		OccurredAt:      event.OccurredAt.UTC(),
		Latitude:        location.Latitude,
		Longitude:       location.Longitude,
		DistanceMiles:   event.Verdict.DistanceMiles,
		RadiusMiles:     event.Verdict.RadiusMiles,
		WithinGeofence:  event.Verdict.Allowed,
		PinOverrideUsed: rec.PinOverrideUsed,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes shift events to a single topic. Messages are keyed by
// worker so that each worker's events stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	logger *slog.Logger
}

// NewKafkaPublisher creates a synchronous publisher for topic.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
	return newKafkaPublisher(writer, logger)
}

func newKafkaPublisher(writer messageWriter, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &KafkaPublisher{writer: writer, logger: logger.With("component", "kafka_publisher")}
}

// Publish implements shift.Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, event shift.Event) error {
	payload := FromShift(event)
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("events: encode %s: %w", payload.Type, err)
	}

	msg := kafka.Message{
		Key:   []byte(payload.WorkerKind + ":" + payload.WorkerID),
		Value: value,
		Time:  payload.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(payload.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events: write %s for shift %s: %w", payload.Type, payload.ShiftID, err)
	}
	p.logger.DebugContext(ctx, "shift event published", "event_type", payload.Type, "shift_id", payload.ShiftID)
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher discards events. It is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, shift.Event) error { return nil }
func (NopPublisher) Close() error                               { return nil }
