package domain

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

type StayStatus string

const (
	StayActive    StayStatus = "active"
	StayCompleted StayStatus = "completed"
)

// Stay là một lượt đỗ của xe, từ lúc vào bãi đến lúc rời bãi.
// DepartureTime không có giá trị nghĩa là xe vẫn đang ở trong bãi;
// mỗi biển số chỉ được phép có tối đa một Stay như vậy tại một thời điểm.
// Bản ghi không bao giờ bị xóa (lịch sử append-only).
type Stay struct {
	ID             int         `json:"id"`
	LicensePlate   string      `json:"license_plate"`
	SlotID         string      `json:"slot_id"`
	ArrivalTime    time.Time   `json:"arrival_time"`
	DepartureTime  null.Time   `json:"departure_time"`
	ImageURL       null.String `json:"image_url,omitempty"`
	Status         StayStatus  `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

func (s *Stay) IsActive() bool {
	return !s.DepartureTime.Valid
}
