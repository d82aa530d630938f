package postgresql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tuanjhg/SmartParking/internal/repository"
)

// querier là phần giao của *sql.DB và *sql.Tx mà các repository cần,
// nhờ đó cùng một repository chạy được cả ngoài lẫn trong transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db    *sql.DB
	slots *pgSlotRepository
	stays *pgStayRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:    db,
		slots: &pgSlotRepository{q: db},
		stays: &pgStayRepository{q: db},
	}
}

func (s *Store) Slots() repository.SlotRepository { return s.slots }
func (s *Store) Stays() repository.StayRepository { return s.stays }

// Atomic chạy fn trong một transaction: cặp ghi slot + stay cùng commit
// hoặc cùng rollback. Ràng buộc trong schema (UPDATE có điều kiện trạng
// thái, partial unique index trên biển số đang hoạt động) bắt các race
// mà nhiều tiến trình cùng ghi có thể gây ra.
func (s *Store) Atomic(ctx context.Context, fn func(repository.SlotRepository, repository.StayRepository) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr("Store.Atomic (begin)", err)
	}
	err = fn(&pgSlotRepository{q: tx}, &pgStayRepository{q: tx})
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("lỗi rollback (%v) sau lỗi: %w", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapErr("Store.Atomic (commit)", err)
	}
	return nil
}
