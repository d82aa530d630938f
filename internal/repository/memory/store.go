// Package memory là backend trong tiến trình: toàn bộ trạng thái nằm
// trong map, mọi thao tác đi qua một mutex duy nhất của Store nên cặp
// ghi slot + stay trong Atomic là nguyên tử đối với mọi goroutine.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gopkg.in/guregu/null.v4"

	"github.com/tuanjhg/SmartParking/internal/domain"
	"github.com/tuanjhg/SmartParking/internal/repository"
)

type facility struct {
	slots     map[string]*domain.ParkingSlot
	slotOrder []string // slot_id theo số thứ tự tăng dần

	stays         map[int]*domain.Stay
	activeByPlate map[string]int // biển số -> stay ID đang hoạt động
	activeBySlot  map[string]int
	nextStayID    int
}

func newFacility() *facility {
	return &facility{
		slots:         make(map[string]*domain.ParkingSlot),
		stays:         make(map[int]*domain.Stay),
		activeByPlate: make(map[string]int),
		activeBySlot:  make(map[string]int),
		nextStayID:    1,
	}
}

// --- SlotRepository ---

func (f *facility) Initialize(_ context.Context, capacity int, prefix string) error {
	if len(f.slots) > 0 {
		return nil // đã khởi tạo, không ghi đè
	}
	if capacity < 1 {
		return fmt.Errorf("sức chứa bãi đỗ phải >= 1, nhận được %d", capacity)
	}
	now := time.Now().UTC()
	for i := 1; i <= capacity; i++ {
		slotID := fmt.Sprintf("%s%d", prefix, i)
		f.slots[slotID] = &domain.ParkingSlot{
			SlotID:      slotID,
			SlotNumber:  i,
			Status:      domain.StatusAvailable,
			LastUpdated: now,
		}
		f.slotOrder = append(f.slotOrder, slotID)
	}
	return nil
}

func (f *facility) FindByID(_ context.Context, slotID string) (*domain.ParkingSlot, error) {
	slot, ok := f.slots[slotID]
	if !ok {
		return nil, repository.ErrSlotNotFound
	}
	return cloneSlot(slot), nil
}

func (f *facility) FindFirstAvailable(_ context.Context) (*domain.ParkingSlot, error) {
	for _, slotID := range f.slotOrder {
		if slot := f.slots[slotID]; slot.Status == domain.StatusAvailable {
			return cloneSlot(slot), nil
		}
	}
	return nil, repository.ErrSlotNotFound
}

func (f *facility) MarkOccupied(_ context.Context, slotID string, licensePlate string, at time.Time) error {
	slot, ok := f.slots[slotID]
	if !ok {
		return repository.ErrSlotNotFound
	}
	if slot.Status != domain.StatusAvailable {
		return fmt.Errorf("%w: chỗ đỗ %s", repository.ErrSlotAlreadyOccupied, slotID)
	}
	slot.Status = domain.StatusOccupied
	slot.VehicleLicensePlate = null.StringFrom(licensePlate)
	slot.LastUpdated = at.UTC()
	return nil
}

func (f *facility) MarkAvailable(_ context.Context, slotID string, at time.Time) error {
	slot, ok := f.slots[slotID]
	if !ok {
		return repository.ErrSlotNotFound
	}
	if slot.Status == domain.StatusAvailable {
		return nil // idempotent, cho phép retry
	}
	slot.Status = domain.StatusAvailable
	slot.VehicleLicensePlate = null.String{}
	slot.LastUpdated = at.UTC()
	return nil
}

func (f *facility) CountByStatus(_ context.Context) (int, int, error) {
	var available, occupied int
	for _, slot := range f.slots {
		if slot.Status == domain.StatusAvailable {
			available++
		} else {
			occupied++
		}
	}
	return available, occupied, nil
}

// --- StayRepository ---

func (f *facility) FindActiveByPlate(_ context.Context, licensePlate string) (*domain.Stay, error) {
	stayID, ok := f.activeByPlate[licensePlate]
	if !ok {
		return nil, repository.ErrStayNotFound
	}
	return cloneStay(f.stays[stayID]), nil
}

func (f *facility) FindActiveBySlot(_ context.Context, slotID string) (*domain.Stay, error) {
	stayID, ok := f.activeBySlot[slotID]
	if !ok {
		return nil, repository.ErrStayNotFound
	}
	return cloneStay(f.stays[stayID]), nil
}

func (f *facility) Create(_ context.Context, stay *domain.Stay) (*domain.Stay, error) {
	if _, ok := f.activeByPlate[stay.LicensePlate]; ok {
		return nil, fmt.Errorf("%w: biển số %s", repository.ErrDuplicateActiveStay, stay.LicensePlate)
	}
	if _, ok := f.activeBySlot[stay.SlotID]; ok {
		return nil, fmt.Errorf("%w: chỗ đỗ %s", repository.ErrSlotAlreadyOccupied, stay.SlotID)
	}
	now := time.Now().UTC()
	created := cloneStay(stay)
	created.ID = f.nextStayID
	created.Status = domain.StayActive
	created.DepartureTime = null.Time{}
	created.CreatedAt = now
	created.UpdatedAt = now
	f.nextStayID++

	f.stays[created.ID] = created
	f.activeByPlate[created.LicensePlate] = created.ID
	f.activeBySlot[created.SlotID] = created.ID
	return cloneStay(created), nil
}

func (f *facility) Close(_ context.Context, stayID int, departureTime time.Time) (*domain.Stay, error) {
	stay, ok := f.stays[stayID]
	if !ok {
		return nil, repository.ErrStayNotFound
	}
	if stay.DepartureTime.Valid {
		return nil, fmt.Errorf("%w: lượt đỗ %d", repository.ErrStayAlreadyClosed, stayID)
	}
	stay.DepartureTime = null.TimeFrom(departureTime.UTC())
	stay.Status = domain.StayCompleted
	stay.UpdatedAt = time.Now().UTC()
	delete(f.activeByPlate, stay.LicensePlate)
	delete(f.activeBySlot, stay.SlotID)
	return cloneStay(stay), nil
}

func (f *facility) ListActive(_ context.Context) ([]domain.Stay, error) {
	result := make([]domain.Stay, 0, len(f.activeByPlate))
	for _, stayID := range f.activeByPlate {
		result = append(result, *cloneStay(f.stays[stayID]))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ArrivalTime.Equal(result[j].ArrivalTime) {
			return result[i].ID < result[j].ID
		}
		return result[i].ArrivalTime.Before(result[j].ArrivalTime)
	})
	return result, nil
}

func (f *facility) clone() *facility {
	c := &facility{
		slots:         make(map[string]*domain.ParkingSlot, len(f.slots)),
		slotOrder:     append([]string(nil), f.slotOrder...),
		stays:         make(map[int]*domain.Stay, len(f.stays)),
		activeByPlate: make(map[string]int, len(f.activeByPlate)),
		activeBySlot:  make(map[string]int, len(f.activeBySlot)),
		nextStayID:    f.nextStayID,
	}
	for id, slot := range f.slots {
		c.slots[id] = cloneSlot(slot)
	}
	for id, stay := range f.stays {
		c.stays[id] = cloneStay(stay)
	}
	for plate, id := range f.activeByPlate {
		c.activeByPlate[plate] = id
	}
	for slotID, id := range f.activeBySlot {
		c.activeBySlot[slotID] = id
	}
	return c
}

func cloneSlot(s *domain.ParkingSlot) *domain.ParkingSlot {
	c := *s
	return &c
}

func cloneStay(s *domain.Stay) *domain.Stay {
	c := *s
	return &c
}

// Store bọc facility bằng một mutex duy nhất cho cả hai repository.
type Store struct {
	mu sync.Mutex
	f  *facility
}

func NewStore() *Store {
	return &Store{f: newFacility()}
}

func (s *Store) Slots() repository.SlotRepository { return &lockedSlots{s} }
func (s *Store) Stays() repository.StayRepository { return &lockedStays{s} }

// Atomic giữ mutex trong suốt fn; fn nhận các repository không khóa lại
// nên cặp ghi slot + stay không thể bị xen giữa bởi goroutine khác.
// Trạng thái được chụp lại trước khi chạy fn và khôi phục nếu fn trả
// lỗi: một nửa cặp ghi đã áp dụng không được phép còn hiệu lực.
func (s *Store) Atomic(ctx context.Context, fn func(repository.SlotRepository, repository.StayRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.f.clone()
	if err := fn(s.f, s.f); err != nil {
		s.f = snapshot
		return err
	}
	return nil
}

type lockedSlots struct{ s *Store }

func (l *lockedSlots) Initialize(ctx context.Context, capacity int, prefix string) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.s.f.Initialize(ctx, capacity, prefix)
}

func (l *lockedSlots) FindByID(ctx context.Context, slotID string) (*domain.ParkingSlot, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.s.f.FindByID(ctx, slotID)
}

func (l *lockedSlots) FindFirstAvailable(ctx context.Context) (*domain.ParkingSlot, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.s.f.FindFirstAvailable(ctx)
}

func (l *lockedSlots) MarkOccupied(ctx context.Context, slotID string, licensePlate string, at time.Time) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.s.f.MarkOccupied(ctx, slotID, licensePlate, at)
}

func (l *lockedSlots) MarkAvailable(ctx context.Context, slotID string, at time.Time) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.s.f.MarkAvailable(ctx, slotID, at)
}

func (l *lockedSlots) CountByStatus(ctx context.Context) (int, int, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.s.f.CountByStatus(ctx)
}

type lockedStays struct{ s *Store }

func (l *lockedStays) FindActiveByPlate(ctx context.Context, licensePlate string) (*domain.Stay, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.s.f.FindActiveByPlate(ctx, licensePlate)
}

func (l *lockedStays) FindActiveBySlot(ctx context.Context, slotID string) (*domain.Stay, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.s.f.FindActiveBySlot(ctx, slotID)
}

func (l *lockedStays) Create(ctx context.Context, stay *domain.Stay) (*domain.Stay, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.s.f.Create(ctx, stay)
}

func (l *lockedStays) Close(ctx context.Context, stayID int, departureTime time.Time) (*domain.Stay, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.s.f.Close(ctx, stayID, departureTime)
}

func (l *lockedStays) ListActive(ctx context.Context) ([]domain.Stay, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.s.f.ListActive(ctx)
}
