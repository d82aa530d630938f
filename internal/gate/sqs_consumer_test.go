package gate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanjhg/SmartParking/internal/repository/memory"
	"github.com/tuanjhg/SmartParking/internal/service"
)

func newTestConsumer(t *testing.T) (*SQSConsumer, *service.ParkingService) {
	t.Helper()
	ps, err := service.NewParkingService(context.Background(), memory.NewStore(), 2, "A")
	require.NoError(t, err)
	return &SQSConsumer{parkingService: ps}, ps
}

func TestHandleGateEventVehicleExited(t *testing.T) {
	ctx := context.Background()
	consumer, ps := newTestConsumer(t)

	_, err := ps.CheckIn(ctx, "51A-1234", "")
	require.NoError(t, err)

	err = consumer.handleGateEvent(ctx, `{"event_type":"vehicle_exited","slot_id":"A1"}`)
	require.NoError(t, err)

	status, err := ps.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, status.OccupiedSlots)
}

func TestHandleGateEventEmptySlotIsDropped(t *testing.T) {
	ctx := context.Background()
	consumer, _ := newTestConsumer(t)

	// Xe đã check-out qua API trước đó: không redeliver message
	err := consumer.handleGateEvent(ctx, `{"event_type":"vehicle_exited","slot_id":"A1"}`)
	assert.NoError(t, err)
}

func TestHandleGateEventMalformedAndUnknown(t *testing.T) {
	ctx := context.Background()
	consumer, _ := newTestConsumer(t)

	assert.NoError(t, consumer.handleGateEvent(ctx, `khong-phai-json`))
	assert.NoError(t, consumer.handleGateEvent(ctx, `{"event_type":"vehicle_entered","slot_id":"A1"}`))
	assert.NoError(t, consumer.handleGateEvent(ctx, `{"event_type":"vehicle_exited"}`))
}
