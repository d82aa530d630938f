package domain

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

type SlotStatus string

const (
	StatusAvailable SlotStatus = "available"
	StatusOccupied  SlotStatus = "occupied"
)

// ParkingSlot là một chỗ đỗ vật lý trong bãi. SlotID được tạo một lần
// khi khởi tạo bãi (prefix + số thứ tự) và không bao giờ thay đổi.
// VehicleLicensePlate chỉ có giá trị khi Status = occupied.
type ParkingSlot struct {
	SlotID              string      `json:"slot_id"`
	SlotNumber          int         `json:"slot_number"`
	Status              SlotStatus  `json:"status"`
	VehicleLicensePlate null.String `json:"vehicle_license_plate"`
	LastUpdated         time.Time   `json:"last_updated"`
}

func (s *ParkingSlot) IsAvailable() bool {
	return s.Status == StatusAvailable
}
