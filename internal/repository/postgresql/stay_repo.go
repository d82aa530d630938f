package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tuanjhg/SmartParking/internal/domain"
	"github.com/tuanjhg/SmartParking/internal/repository"
)

type pgStayRepository struct {
	q querier
}

const stayColumns = `id, license_plate, slot_id, arrival_time, departure_time, image_url, status, created_at, updated_at`

func (r *pgStayRepository) FindActiveByPlate(ctx context.Context, licensePlate string) (*domain.Stay, error) {
	query := `SELECT ` + stayColumns + ` FROM stays
	           WHERE license_plate = $1 AND departure_time IS NULL`
	return r.scanStay(r.q.QueryRowContext(ctx, query, licensePlate), "StayRepository.FindActiveByPlate")
}

func (r *pgStayRepository) FindActiveBySlot(ctx context.Context, slotID string) (*domain.Stay, error) {
	query := `SELECT ` + stayColumns + ` FROM stays
	           WHERE slot_id = $1 AND departure_time IS NULL`
	return r.scanStay(r.q.QueryRowContext(ctx, query, slotID), "StayRepository.FindActiveBySlot")
}

func (r *pgStayRepository) Create(ctx context.Context, stay *domain.Stay) (*domain.Stay, error) {
	query := `INSERT INTO stays (license_plate, slot_id, arrival_time, image_url, status, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	           RETURNING id, created_at, updated_at`
	created := *stay
	created.Status = domain.StayActive
	err := r.q.QueryRowContext(ctx, query,
		created.LicensePlate, created.SlotID, created.ArrivalTime.UTC(), created.ImageURL, created.Status,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Partial unique index trên (license_plate) WHERE departure_time IS NULL
			// là nơi quyết định: một biển số không thể có hai lượt đỗ đang hoạt động.
			if pgErr.ConstraintName == "stays_active_plate_key" {
				return nil, fmt.Errorf("%w: biển số %s", repository.ErrDuplicateActiveStay, created.LicensePlate)
			}
			if pgErr.ConstraintName == "stays_active_slot_key" {
				return nil, fmt.Errorf("%w: chỗ đỗ %s", repository.ErrSlotAlreadyOccupied, created.SlotID)
			}
		}
		return nil, wrapErr("StayRepository.Create", err)
	}
	created.CreatedAt = created.CreatedAt.In(time.UTC)
	created.UpdatedAt = created.UpdatedAt.In(time.UTC)
	return &created, nil
}

func (r *pgStayRepository) Close(ctx context.Context, stayID int, departureTime time.Time) (*domain.Stay, error) {
	query := `UPDATE stays
	           SET departure_time = $1, status = $2, updated_at = CURRENT_TIMESTAMP
	           WHERE id = $3 AND departure_time IS NULL
	           RETURNING ` + stayColumns
	stay, err := r.scanStay(
		r.q.QueryRowContext(ctx, query, departureTime.UTC(), domain.StayCompleted, stayID),
		"StayRepository.Close",
	)
	if err != nil {
		if errors.Is(err, repository.ErrStayNotFound) {
			// 0 hàng: phân biệt "không tồn tại" với "đã kết thúc".
			var exists bool
			if exErr := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM stays WHERE id = $1)`, stayID).Scan(&exists); exErr != nil {
				return nil, wrapErr("StayRepository.Close (kiểm tra tồn tại)", exErr)
			}
			if exists {
				return nil, fmt.Errorf("%w: lượt đỗ %d", repository.ErrStayAlreadyClosed, stayID)
			}
			return nil, repository.ErrStayNotFound
		}
		return nil, err
	}
	return stay, nil
}

func (r *pgStayRepository) ListActive(ctx context.Context) ([]domain.Stay, error) {
	query := `SELECT ` + stayColumns + ` FROM stays
	           WHERE departure_time IS NULL
	           ORDER BY arrival_time ASC, id ASC`
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapErr("StayRepository.ListActive", err)
	}
	defer rows.Close()

	var stays []domain.Stay
	for rows.Next() {
		var stay domain.Stay
		if err := rows.Scan(
			&stay.ID, &stay.LicensePlate, &stay.SlotID, &stay.ArrivalTime, &stay.DepartureTime,
			&stay.ImageURL, &stay.Status, &stay.CreatedAt, &stay.UpdatedAt,
		); err != nil {
			return nil, wrapErr("StayRepository.ListActive (scanning row)", err)
		}
		normalizeStayTimes(&stay)
		stays = append(stays, stay)
	}
	if err = rows.Err(); err != nil {
		return nil, wrapErr("StayRepository.ListActive (rows error)", err)
	}
	return stays, nil
}

func (r *pgStayRepository) scanStay(row *sql.Row, op string) (*domain.Stay, error) {
	stay := &domain.Stay{}
	err := row.Scan(
		&stay.ID, &stay.LicensePlate, &stay.SlotID, &stay.ArrivalTime, &stay.DepartureTime,
		&stay.ImageURL, &stay.Status, &stay.CreatedAt, &stay.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrStayNotFound
		}
		return nil, wrapErr(op, err)
	}
	normalizeStayTimes(stay)
	return stay, nil
}

func normalizeStayTimes(stay *domain.Stay) {
	stay.ArrivalTime = stay.ArrivalTime.In(time.UTC)
	if stay.DepartureTime.Valid {
		stay.DepartureTime.Time = stay.DepartureTime.Time.In(time.UTC)
	}
	stay.CreatedAt = stay.CreatedAt.In(time.UTC)
	stay.UpdatedAt = stay.UpdatedAt.In(time.UTC)
}
