package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/fieldops/internal/geo"
	"github.com/example/fieldops/internal/shift"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func checkedOutEvent() shift.Event {
	checkIn := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	checkOut := checkIn.Add(8 * time.Hour)
	scheduleID := "sched-1"
	return shift.Event{
		Type: shift.EventCheckedOut,
		Record: shift.Record{
			ID:               "shift-1",
			WorkerID:         "alice",
			WorkerKind:       shift.WorkerKindStaff,
			ClientID:         "client-1",
			ScheduleID:       &scheduleID,
			CheckInAt:        checkIn,
			CheckOutAt:       &checkOut,
			CheckInLocation:  geo.Coordinate{Latitude: 40, Longitude: -73},
			CheckOutLocation: &geo.Coordinate{Latitude: 41, Longitude: -74},
			PinOverrideUsed:  true,
		},
		Verdict:    geo.Verdict{Allowed: false, DistanceMiles: 3.2, RadiusMiles: 1},
		OccurredAt: checkOut,
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	writer := &recordingWriter{}
	publisher := newKafkaPublisher(writer, nil)

	require.NoError(t, publisher.Publish(context.Background(), checkedOutEvent()))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "staff:alice", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "shift.checked_out", string(msg.Headers[0].Value))

	var payload ShiftEvent
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, "shift-1", payload.ShiftID)
	assert.Equal(t, 41.0, payload.Latitude, "check-out events carry the check-out location")
	assert.False(t, payload.WithinGeofence)
	assert.True(t, payload.PinOverrideUsed)
	require.NotNil(t, payload.ScheduleID)
	assert.Equal(t, "sched-1", *payload.ScheduleID)

	require.NoError(t, publisher.Close())
	assert.True(t, writer.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	writer := &recordingWriter{err: errors.New("broker unavailable")}
	publisher := newKafkaPublisher(writer, nil)

	err := publisher.Publish(context.Background(), checkedOutEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shift-1")
	assert.ErrorIs(t, err, writer.err)
}

func TestFromShift_CheckInUsesCheckInLocation(t *testing.T) {
	event := checkedOutEvent()
	event.Type = shift.EventCheckedIn

	payload := FromShift(event)
	assert.Equal(t, 40.0, payload.Latitude)
	assert.Equal(t, -73.0, payload.Longitude)
}

func TestNopPublisher(t *testing.T) {
	var p NopPublisher
	assert.NoError(t, p.Publish(context.Background(), checkedOutEvent()))
	assert.NoError(t, p.Close())
}
