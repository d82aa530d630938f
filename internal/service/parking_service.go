package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"gopkg.in/guregu/null.v4"

	"github.com/tuanjhg/SmartParking/internal/domain"
	"github.com/tuanjhg/SmartParking/internal/metrics"
	"github.com/tuanjhg/SmartParking/internal/repository"
)

var ErrAlreadyParked = errors.New("xe đã ở trong bãi")
var ErrFacilityFull = errors.New("bãi xe đã đầy")
var ErrSlotNotOccupied = errors.New("không có xe đang đỗ tại chỗ này")

// ParkingService là nơi duy nhất được ghi vào SlotRepository và
// StayRepository: trạng thái chỗ đỗ và sự tồn tại của lượt đỗ đang hoạt
// động tham chiếu chỗ đó luôn được giữ nhất quán qua Store.Atomic.
type ParkingService struct {
	store      repository.Store
	totalSlots int
	slotPrefix string
}

// NewParkingService khởi tạo bãi đỗ (idempotent) rồi trả về service.
// Sức chứa và prefix cố định từ lúc khởi động, không đổi khi đang chạy.
func NewParkingService(ctx context.Context, store repository.Store, totalSlots int, slotPrefix string) (*ParkingService, error) {
	if totalSlots < 1 {
		return nil, fmt.Errorf("sức chứa bãi đỗ phải >= 1, nhận được %d", totalSlots)
	}
	if err := store.Slots().Initialize(ctx, totalSlots, slotPrefix); err != nil {
		return nil, fmt.Errorf("lỗi khởi tạo chỗ đỗ: %w", err)
	}
	log.Printf("Đã khởi tạo bãi đỗ: %d chỗ, prefix '%s'", totalSlots, slotPrefix)
	return &ParkingService{store: store, totalSlots: totalSlots, slotPrefix: slotPrefix}, nil
}

// CheckIn gán chỗ trống đầu tiên cho xe và tạo lượt đỗ mới trong cùng
// một đơn vị nguyên tử. Khi primitive của store báo thua race
// (ErrSlotAlreadyOccupied), vòng đọc-quyết định-ghi được chạy lại với
// trạng thái mới; caller chỉ nhận về kết quả nghiệp vụ: lượt đỗ mới,
// ErrAlreadyParked hoặc ErrFacilityFull.
func (s *ParkingService) CheckIn(ctx context.Context, licensePlate string, imageURL string) (*domain.Stay, error) {
	_, err := s.store.Stays().FindActiveByPlate(ctx, licensePlate)
	if err == nil {
		metrics.CheckInsTotal.WithLabelValues("already_parked").Inc()
		return nil, fmt.Errorf("%w: xe %s", ErrAlreadyParked, licensePlate)
	}
	if !errors.Is(err, repository.ErrStayNotFound) {
		return nil, fmt.Errorf("lỗi kiểm tra lượt đỗ đang hoạt động: %w", err)
	}

	for {
		slot, err := s.store.Slots().FindFirstAvailable(ctx)
		if err != nil {
			if errors.Is(err, repository.ErrSlotNotFound) {
				metrics.CheckInsTotal.WithLabelValues("facility_full").Inc()
				return nil, ErrFacilityFull
			}
			return nil, fmt.Errorf("lỗi tìm chỗ đỗ trống: %w", err)
		}

		now := time.Now().UTC()
		var created *domain.Stay
		err = s.store.Atomic(ctx, func(slots repository.SlotRepository, stays repository.StayRepository) error {
			if err := slots.MarkOccupied(ctx, slot.SlotID, licensePlate, now); err != nil {
				return err
			}
			stay := &domain.Stay{
				LicensePlate: licensePlate,
				SlotID:       slot.SlotID,
				ArrivalTime:  now,
			}
			if imageURL != "" {
				stay.ImageURL = null.StringFrom(imageURL)
			}
			createdStay, err := stays.Create(ctx, stay)
			if err != nil {
				return err
			}
			created = createdStay
			return nil
		})
		if err == nil {
			log.Printf("Đã gán chỗ đỗ %s cho xe %s", created.SlotID, licensePlate)
			metrics.CheckInsTotal.WithLabelValues("ok").Inc()
			return created, nil
		}
		if errors.Is(err, repository.ErrDuplicateActiveStay) {
			// Một check-in khác cho cùng biển số thắng race; caller thấy
			// trạng thái sau của người thắng.
			metrics.CheckInsTotal.WithLabelValues("already_parked").Inc()
			return nil, fmt.Errorf("%w: xe %s", ErrAlreadyParked, licensePlate)
		}
		if errors.Is(err, repository.ErrSlotAlreadyOccupied) {
			log.Printf("Chỗ đỗ %s bị chiếm trước khi gán cho xe %s, đang thử lại", slot.SlotID, licensePlate)
			continue
		}
		return nil, fmt.Errorf("lỗi gán chỗ đỗ cho xe %s: %w", licensePlate, err)
	}
}

// CheckOut kết thúc lượt đỗ đang giữ chỗ này và giải phóng chỗ trong
// cùng một đơn vị nguyên tử. Gọi lại lần nữa sau khi đã thành công trả
// ErrSlotNotOccupied, trạng thái không đổi.
func (s *ParkingService) CheckOut(ctx context.Context, slotID string) (*domain.Stay, error) {
	for attempt := 0; ; attempt++ {
		stay, err := s.store.Stays().FindActiveBySlot(ctx, slotID)
		if err != nil {
			if errors.Is(err, repository.ErrStayNotFound) {
				metrics.CheckOutsTotal.WithLabelValues("not_occupied").Inc()
				return nil, fmt.Errorf("%w: chỗ đỗ %s", ErrSlotNotOccupied, slotID)
			}
			return nil, fmt.Errorf("lỗi tìm lượt đỗ đang hoạt động: %w", err)
		}

		now := time.Now().UTC()
		if now.Before(stay.ArrivalTime) {
			now = stay.ArrivalTime
		}

		var closed *domain.Stay
		err = s.store.Atomic(ctx, func(slots repository.SlotRepository, stays repository.StayRepository) error {
			closedStay, err := stays.Close(ctx, stay.ID, now)
			if err != nil {
				return err
			}
			closed = closedStay
			return slots.MarkAvailable(ctx, slotID, now)
		})
		if err == nil {
			log.Printf("Xe %s đã rời chỗ đỗ %s, thời gian đỗ: %s",
				closed.LicensePlate, slotID, now.Sub(closed.ArrivalTime).Round(time.Second))
			metrics.CheckOutsTotal.WithLabelValues("ok").Inc()
			return closed, nil
		}
		if (errors.Is(err, repository.ErrStayAlreadyClosed) || errors.Is(err, repository.ErrStayNotFound)) && attempt == 0 {
			// Một check-out khác thắng race; đọc lại để trả kết quả
			// theo trạng thái hiện tại.
			continue
		}
		return nil, fmt.Errorf("lỗi giải phóng chỗ đỗ %s: %w", slotID, err)
	}
}

func (s *ParkingService) Status(ctx context.Context) (*domain.ParkingStatus, error) {
	available, occupied, err := s.store.Slots().CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("lỗi đếm trạng thái chỗ đỗ: %w", err)
	}
	total := available + occupied

	status := "available"
	if available == 0 {
		status = "full"
	}

	var rate float64
	if total > 0 {
		rate = math.Round(float64(occupied)/float64(total)*100*100) / 100
	}

	metrics.AvailableSlots.Set(float64(available))
	metrics.OccupiedSlots.Set(float64(occupied))

	return &domain.ParkingStatus{
		TotalSlots:    total,
		OccupiedSlots: occupied,
		FreeSlots:     available,
		Status:        status,
		OccupancyRate: rate,
	}, nil
}

func (s *ParkingService) ListActiveVehicles(ctx context.Context) ([]domain.VehicleInfo, error) {
	stays, err := s.store.Stays().ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("lỗi lấy danh sách xe trong bãi: %w", err)
	}
	vehicles := make([]domain.VehicleInfo, 0, len(stays))
	for _, stay := range stays {
		vehicles = append(vehicles, domain.VehicleInfo{
			LicensePlate: stay.LicensePlate,
			SlotID:       stay.SlotID,
			ArrivalTime:  stay.ArrivalTime,
			ImageURL:     stay.ImageURL,
		})
	}
	return vehicles, nil
}

// FindByPlate trả repository.ErrStayNotFound nếu xe không ở trong bãi.
func (s *ParkingService) FindByPlate(ctx context.Context, licensePlate string) (*domain.VehicleInfo, error) {
	stay, err := s.store.Stays().FindActiveByPlate(ctx, licensePlate)
	if err != nil {
		return nil, err
	}
	return &domain.VehicleInfo{
		LicensePlate: stay.LicensePlate,
		SlotID:       stay.SlotID,
		ArrivalTime:  stay.ArrivalTime,
		ImageURL:     stay.ImageURL,
	}, nil
}
