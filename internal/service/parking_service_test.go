package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanjhg/SmartParking/internal/repository"
	"github.com/tuanjhg/SmartParking/internal/repository/memory"
)

func newTestService(t *testing.T, capacity int) *ParkingService {
	t.Helper()
	svc, err := NewParkingService(context.Background(), memory.NewStore(), capacity, "A")
	require.NoError(t, err)
	return svc
}

func TestNewParkingServiceRejectsBadCapacity(t *testing.T) {
	_, err := NewParkingService(context.Background(), memory.NewStore(), 0, "A")
	assert.Error(t, err)
}

func TestParkingLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 2)

	// Xe đầu tiên nhận chỗ nhỏ nhất
	stay, err := svc.CheckIn(ctx, "51A-1234", "")
	require.NoError(t, err)
	assert.Equal(t, "A1", stay.SlotID)

	// Cùng biển số vào lần nữa khi đang đỗ
	_, err = svc.CheckIn(ctx, "51A-1234", "")
	assert.ErrorIs(t, err, ErrAlreadyParked)

	stay, err = svc.CheckIn(ctx, "51B-5678", "")
	require.NoError(t, err)
	assert.Equal(t, "A2", stay.SlotID)

	// Bãi đầy
	_, err = svc.CheckIn(ctx, "51C-0000", "")
	assert.ErrorIs(t, err, ErrFacilityFull)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.TotalSlots)
	assert.Equal(t, 2, status.OccupiedSlots)
	assert.Equal(t, 0, status.FreeSlots)
	assert.Equal(t, "full", status.Status)
	assert.Equal(t, 100.0, status.OccupancyRate)

	closed, err := svc.CheckOut(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, "51A-1234", closed.LicensePlate)
	assert.True(t, closed.DepartureTime.Valid)

	status, err = svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.OccupiedSlots)
	assert.Equal(t, 1, status.FreeSlots)
	assert.Equal(t, "available", status.Status)
	assert.Equal(t, 50.0, status.OccupancyRate)

	// Check-out lần hai trên cùng chỗ
	_, err = svc.CheckOut(ctx, "A1")
	assert.ErrorIs(t, err, ErrSlotNotOccupied)
}

func TestCheckInFillsSlotsInOrder(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 5)

	for i := 1; i <= 5; i++ {
		stay, err := svc.CheckIn(ctx, fmt.Sprintf("51A-%04d", i), "")
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("A%d", i), stay.SlotID)
	}

	_, err := svc.CheckIn(ctx, "51B-9999", "")
	assert.ErrorIs(t, err, ErrFacilityFull)
}

func TestCheckInReusesReleasedSlot(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 3)

	for i := 1; i <= 3; i++ {
		_, err := svc.CheckIn(ctx, fmt.Sprintf("51A-%04d", i), "")
		require.NoError(t, err)
	}

	_, err := svc.CheckOut(ctx, "A2")
	require.NoError(t, err)

	stay, err := svc.CheckIn(ctx, "51B-7777", "")
	require.NoError(t, err)
	assert.Equal(t, "A2", stay.SlotID)
}

func TestCheckOutUnknownSlot(t *testing.T) {
	svc := newTestService(t, 2)
	_, err := svc.CheckOut(context.Background(), "A9")
	assert.ErrorIs(t, err, ErrSlotNotOccupied)
}

func TestStatusOccupancyRate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 3)

	_, err := svc.CheckIn(ctx, "51A-1234", "")
	require.NoError(t, err)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 33.33, status.OccupancyRate)
	assert.Equal(t, status.TotalSlots, status.OccupiedSlots+status.FreeSlots)
}

func TestListActiveVehicles(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 3)

	_, err := svc.CheckIn(ctx, "51A-1111", "uploads/a.jpg")
	require.NoError(t, err)
	_, err = svc.CheckIn(ctx, "51B-2222", "")
	require.NoError(t, err)

	vehicles, err := svc.ListActiveVehicles(ctx)
	require.NoError(t, err)
	require.Len(t, vehicles, 2)
	assert.Equal(t, "51A-1111", vehicles[0].LicensePlate)
	assert.Equal(t, "A1", vehicles[0].SlotID)
	assert.Equal(t, "uploads/a.jpg", vehicles[0].ImageURL.String)
	assert.Equal(t, "51B-2222", vehicles[1].LicensePlate)
}

func TestFindByPlate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 2)

	_, err := svc.CheckIn(ctx, "51A-1234", "")
	require.NoError(t, err)

	info, err := svc.FindByPlate(ctx, "51A-1234")
	require.NoError(t, err)
	assert.Equal(t, "A1", info.SlotID)

	_, err = svc.FindByPlate(ctx, "51B-5678")
	assert.ErrorIs(t, err, repository.ErrStayNotFound)
}

func TestConcurrentCheckIns(t *testing.T) {
	ctx := context.Background()
	const capacity = 10
	const callers = 32
	svc := newTestService(t, capacity)

	var wg sync.WaitGroup
	results := make([]error, callers)
	slots := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stay, err := svc.CheckIn(ctx, fmt.Sprintf("51A-%04d", i+1), "")
			results[i] = err
			if err == nil {
				slots[i] = stay.SlotID
			}
		}(i)
	}
	wg.Wait()

	successes := 0
	seen := make(map[string]bool)
	for i, err := range results {
		if err == nil {
			successes++
			assert.False(t, seen[slots[i]], "chỗ đỗ %s bị gán hai lần", slots[i])
			seen[slots[i]] = true
			continue
		}
		assert.ErrorIs(t, err, ErrFacilityFull)
	}
	assert.Equal(t, capacity, successes)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, capacity, status.OccupiedSlots)
	assert.Equal(t, 0, status.FreeSlots)
}

func TestConcurrentCheckInsSamePlate(t *testing.T) {
	ctx := context.Background()
	const callers = 8
	svc := newTestService(t, 5)

	var wg sync.WaitGroup
	results := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.CheckIn(ctx, "51A-1234", "")
			results[i] = err
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyParked)
	}
	assert.Equal(t, 1, successes)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.OccupiedSlots)
}

func TestConcurrentCheckOutsSameSlot(t *testing.T) {
	ctx := context.Background()
	const callers = 4
	svc := newTestService(t, 2)

	_, err := svc.CheckIn(ctx, "51A-1234", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.CheckOut(ctx, "A1")
			results[i] = err
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, ErrSlotNotOccupied)
	}
	assert.Equal(t, 1, successes)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, status.OccupiedSlots)
	assert.Equal(t, 2, status.FreeSlots)
}
