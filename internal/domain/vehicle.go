package domain

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

// VehicleInfo là thông tin xe trả về cho API danh sách / tìm kiếm.
type VehicleInfo struct {
	LicensePlate string      `json:"license_plate"`
	SlotID       string      `json:"slot_id"`
	ArrivalTime  time.Time   `json:"arrival_time"`
	ImageURL     null.String `json:"image_url,omitempty"`
}

// CheckInResponse theo quy ước cũ của hệ thống: các trường hợp bãi đầy,
// không nhận diện được biển số, xe đã ở trong bãi đều trả HTTP 200 với
// status = "error" trong body.
type CheckInResponse struct {
	Status       string     `json:"status"`
	SlotID       string     `json:"slot_id,omitempty"`
	LicensePlate string     `json:"license_plate,omitempty"`
	ArrivalTime  *time.Time `json:"arrival_time,omitempty"`
	Message      string     `json:"message"`
}

type ParkingStatus struct {
	TotalSlots    int     `json:"total_slots"`
	OccupiedSlots int     `json:"occupied_slots"`
	FreeSlots     int     `json:"free_slots"`
	Status        string  `json:"status"` // "available" | "full"
	OccupancyRate float64 `json:"occupancy_rate"`
}

type VehicleListResponse struct {
	Total    int           `json:"total"`
	Vehicles []VehicleInfo `json:"vehicles"`
}

// ParkingUpdateNotification được đẩy qua WebSocket cho dashboard mỗi khi
// có xe vào/ra thành công.
type ParkingUpdateNotification struct {
	Event         string        `json:"event"` // "check_in" | "check_out"
	SlotID        string        `json:"slot_id"`
	LicensePlate  string        `json:"license_plate,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
	ParkingStatus ParkingStatus `json:"parking_status"`
}

type LPRResult struct {
	DetectedPlate string  `json:"detected_plate"`
	Confidence    float32 `json:"confidence,omitempty"`
	ErrorMessage  string  `json:"error_message,omitempty"`
}
