package repository

import (
	"context"
	"errors"
	"time"

	"github.com/tuanjhg/SmartParking/internal/domain"
)

var ErrSlotNotFound = errors.New("không tìm thấy chỗ đỗ")
var ErrSlotAlreadyOccupied = errors.New("chỗ đỗ đã có xe")
var ErrStayNotFound = errors.New("không tìm thấy lượt đỗ")
var ErrStayAlreadyClosed = errors.New("lượt đỗ đã kết thúc")
var ErrDuplicateActiveStay = errors.New("biển số này đã có lượt đỗ đang hoạt động")
var ErrBackendUnavailable = errors.New("không thể kết nối tới kho dữ liệu")

// SlotRepository quản lý trạng thái các chỗ đỗ.
type SlotRepository interface {
	// Initialize tạo capacity chỗ đỗ đặt tên prefix+1..prefix+capacity,
	// tất cả ở trạng thái available. Idempotent: nếu đã có chỗ đỗ thì
	// không ghi đè.
	Initialize(ctx context.Context, capacity int, prefix string) error
	FindByID(ctx context.Context, slotID string) (*domain.ParkingSlot, error)
	// FindFirstAvailable trả về chỗ trống có số thứ tự nhỏ nhất,
	// hoặc ErrSlotNotFound nếu bãi đầy. Thứ tự ổn định để kết quả
	// gán chỗ có thể dự đoán được.
	FindFirstAvailable(ctx context.Context) (*domain.ParkingSlot, error)
	// MarkOccupied chỉ thành công khi chỗ đang available; nếu không
	// trả ErrSlotAlreadyOccupied. Đây là chốt chặn chống gán trùng.
	MarkOccupied(ctx context.Context, slotID string, licensePlate string, at time.Time) error
	// MarkAvailable idempotent: gọi trên chỗ đang trống không phải lỗi.
	MarkAvailable(ctx context.Context, slotID string, at time.Time) error
	CountByStatus(ctx context.Context) (available int, occupied int, err error)
}

// StayRepository quản lý các lượt đỗ (lịch sử append-only).
type StayRepository interface {
	FindActiveByPlate(ctx context.Context, licensePlate string) (*domain.Stay, error)
	FindActiveBySlot(ctx context.Context, slotID string) (*domain.Stay, error)
	// Create trả ErrDuplicateActiveStay nếu biển số đã có lượt đỗ chưa
	// kết thúc. Service cũng kiểm tra trước, nhưng ledger là nơi quyết định.
	Create(ctx context.Context, stay *domain.Stay) (*domain.Stay, error)
	Close(ctx context.Context, stayID int, departureTime time.Time) (*domain.Stay, error)
	// ListActive trả về các lượt đỗ đang hoạt động, sắp theo ArrivalTime tăng dần.
	ListActive(ctx context.Context) ([]domain.Stay, error)
}

// Store gom hai repository của một backend và cung cấp Atomic: cặp ghi
// slot + stay phải cùng thành công hoặc cùng không có hiệu lực.
// Backend bộ nhớ giữ mutex của store trong suốt fn; backend postgres
// chạy fn trong một transaction.
type Store interface {
	Slots() SlotRepository
	Stays() StayRepository
	Atomic(ctx context.Context, fn func(slots SlotRepository, stays StayRepository) error) error
}
