package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tuanjhg/SmartParking/internal/domain"
	"github.com/tuanjhg/SmartParking/internal/repository"
)

type pgSlotRepository struct {
	q querier
}

func (r *pgSlotRepository) Initialize(ctx context.Context, capacity int, prefix string) error {
	if capacity < 1 {
		return fmt.Errorf("sức chứa bãi đỗ phải >= 1, nhận được %d", capacity)
	}

	var exists bool
	err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM parking_slots)`).Scan(&exists)
	if err != nil {
		return wrapErr("SlotRepository.Initialize (kiểm tra tồn tại)", err)
	}
	if exists {
		return nil // đã khởi tạo, không ghi đè
	}

	query := `INSERT INTO parking_slots (slot_id, slot_number, status, last_updated)
	           SELECT $1 || i::text, i, $2, CURRENT_TIMESTAMP
	           FROM generate_series(1, $3) AS i
	           ON CONFLICT (slot_id) DO NOTHING`
	_, err = r.q.ExecContext(ctx, query, prefix, domain.StatusAvailable, capacity)
	if err != nil {
		return wrapErr("SlotRepository.Initialize", err)
	}
	return nil
}

func (r *pgSlotRepository) FindByID(ctx context.Context, slotID string) (*domain.ParkingSlot, error) {
	query := `SELECT slot_id, slot_number, status, vehicle_license_plate, last_updated
	           FROM parking_slots WHERE slot_id = $1`
	return r.scanSlot(r.q.QueryRowContext(ctx, query, slotID), "SlotRepository.FindByID")
}

func (r *pgSlotRepository) FindFirstAvailable(ctx context.Context) (*domain.ParkingSlot, error) {
	query := `SELECT slot_id, slot_number, status, vehicle_license_plate, last_updated
	           FROM parking_slots
	           WHERE status = $1
	           ORDER BY slot_number ASC LIMIT 1`
	return r.scanSlot(r.q.QueryRowContext(ctx, query, domain.StatusAvailable), "SlotRepository.FindFirstAvailable")
}

func (r *pgSlotRepository) scanSlot(row *sql.Row, op string) (*domain.ParkingSlot, error) {
	slot := &domain.ParkingSlot{}
	err := row.Scan(&slot.SlotID, &slot.SlotNumber, &slot.Status, &slot.VehicleLicensePlate, &slot.LastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrSlotNotFound
		}
		return nil, wrapErr(op, err)
	}
	slot.LastUpdated = slot.LastUpdated.In(time.UTC)
	return slot, nil
}

// MarkOccupied là một conditional update: chỉ ghi khi chỗ còn trống.
// 0 hàng bị ảnh hưởng nghĩa là hoặc chỗ không tồn tại hoặc đã có xe,
// đọc lại để phân biệt hai trường hợp.
func (r *pgSlotRepository) MarkOccupied(ctx context.Context, slotID string, licensePlate string, at time.Time) error {
	query := `UPDATE parking_slots
	           SET status = $1, vehicle_license_plate = $2, last_updated = $3
	           WHERE slot_id = $4 AND status = $5`
	result, err := r.q.ExecContext(ctx, query, domain.StatusOccupied, licensePlate, at.UTC(), slotID, domain.StatusAvailable)
	if err != nil {
		return wrapErr("SlotRepository.MarkOccupied", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return wrapErr("SlotRepository.MarkOccupied (rows affected)", err)
	}
	if rowsAffected == 0 {
		if _, findErr := r.FindByID(ctx, slotID); errors.Is(findErr, repository.ErrSlotNotFound) {
			return repository.ErrSlotNotFound
		}
		return fmt.Errorf("%w: chỗ đỗ %s", repository.ErrSlotAlreadyOccupied, slotID)
	}
	return nil
}

func (r *pgSlotRepository) MarkAvailable(ctx context.Context, slotID string, at time.Time) error {
	query := `UPDATE parking_slots
	           SET status = $1, vehicle_license_plate = NULL, last_updated = $2
	           WHERE slot_id = $3`
	result, err := r.q.ExecContext(ctx, query, domain.StatusAvailable, at.UTC(), slotID)
	if err != nil {
		return wrapErr("SlotRepository.MarkAvailable", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return wrapErr("SlotRepository.MarkAvailable (rows affected)", err)
	}
	if rowsAffected == 0 {
		return repository.ErrSlotNotFound
	}
	return nil
}

func (r *pgSlotRepository) CountByStatus(ctx context.Context) (int, int, error) {
	query := `SELECT
	            COUNT(*) FILTER (WHERE status = $1),
	            COUNT(*) FILTER (WHERE status = $2)
	           FROM parking_slots`
	var available, occupied int
	err := r.q.QueryRowContext(ctx, query, domain.StatusAvailable, domain.StatusOccupied).Scan(&available, &occupied)
	if err != nil {
		return 0, 0, wrapErr("SlotRepository.CountByStatus", err)
	}
	return available, occupied, nil
}
