package postgresql

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tuanjhg/SmartParking/internal/config"
	"github.com/tuanjhg/SmartParking/internal/repository"
)

func NewDB(cfg *config.Config) (*sql.DB, error) {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSslMode)

	db, err := sql.Open("pgx", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("lỗi mở kết nối database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: lỗi ping database: %v", repository.ErrBackendUnavailable, err)
	}
	return db, nil
}

// wrapErr quy các lỗi mất kết nối về ErrBackendUnavailable để tầng HTTP
// trả 503 thay vì 500; các lỗi khác giữ nguyên và gắn tên thao tác.
func wrapErr(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %s: %v", repository.ErrBackendUnavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
