package handler

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tuanjhg/SmartParking/internal/domain"
	"github.com/tuanjhg/SmartParking/internal/repository"
	"github.com/tuanjhg/SmartParking/internal/service"
)

type VehicleHandler struct {
	parkingService *service.ParkingService
	recognizer     service.PlateRecognizer
	wsManager      *WebSocketManager
	uploadDir      string
	maxUploadBytes int64
}

func NewVehicleHandler(ps *service.ParkingService, recognizer service.PlateRecognizer,
	wsManager *WebSocketManager, uploadDir string, maxUploadMB int64) *VehicleHandler {
	return &VehicleHandler{
		parkingService: ps,
		recognizer:     recognizer,
		wsManager:      wsManager,
		uploadDir:      uploadDir,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}
}

// POST /api/v1/vehicles/checkin
//
// Theo quy ước cũ: bãi đầy, không nhận diện được biển số, biển số sai
// định dạng, xe đã trong bãi đều trả HTTP 200 với status = "error"
// trong body; chỉ lỗi hệ thống mới trả 5xx.
func (h *VehicleHandler) CheckIn(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Thiếu file ảnh trong request: " + err.Error()})
		return
	}
	if fileHeader.Size > h.maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Ảnh vượt quá kích thước cho phép (%d bytes)", h.maxUploadBytes)})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể đọc file ảnh", "details": err.Error()})
		return
	}
	defer file.Close()

	imageBytes, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể đọc file ảnh", "details": err.Error()})
		return
	}
	if len(imageBytes) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Dữ liệu ảnh rỗng"})
		return
	}

	// Kiểm tra bãi còn chỗ trước khi tốn một lần gọi nhận diện.
	status, err := h.parkingService.Status(c.Request.Context())
	if err != nil {
		h.internalError(c, "Lỗi khi kiểm tra trạng thái bãi", err)
		return
	}
	if status.FreeSlots == 0 {
		c.JSON(http.StatusOK, domain.CheckInResponse{
			Status:  "error",
			Message: "Bãi xe đã đầy! Vui lòng quay lại sau.",
		})
		return
	}

	imagePath, err := h.saveUpload(fileHeader.Filename, imageBytes)
	if err != nil {
		log.Printf("VehicleHandler: Lỗi lưu ảnh upload: %v", err)
		// Không chặn check-in chỉ vì không lưu được ảnh.
		imagePath = ""
	}

	plate, _, err := h.recognizer.RecognizePlate(c.Request.Context(), imageBytes)
	if err != nil {
		log.Printf("VehicleHandler: Lỗi nhận diện biển số: %v", err)
	}
	if err != nil || plate == "" {
		c.JSON(http.StatusOK, domain.CheckInResponse{
			Status:  "error",
			Message: "Không thể nhận diện biển số xe. Vui lòng thử lại với ảnh rõ hơn.",
		})
		return
	}

	plate = service.NormalizePlate(plate)
	if !service.ValidatePlate(plate) {
		c.JSON(http.StatusOK, domain.CheckInResponse{
			Status:       "error",
			LicensePlate: plate,
			Message:      fmt.Sprintf("Biển số nhận diện được không hợp lệ: %s", plate),
		})
		return
	}

	stay, err := h.parkingService.CheckIn(c.Request.Context(), plate, imagePath)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadyParked):
			resp := domain.CheckInResponse{
				Status:       "error",
				LicensePlate: plate,
				Message:      fmt.Sprintf("Xe %s đã có trong bãi", plate),
			}
			if existing, findErr := h.parkingService.FindByPlate(c.Request.Context(), plate); findErr == nil {
				resp.SlotID = existing.SlotID
				resp.Message = fmt.Sprintf("Xe %s đã có trong bãi tại slot %s", plate, existing.SlotID)
			}
			c.JSON(http.StatusOK, resp)
		case errors.Is(err, service.ErrFacilityFull):
			c.JSON(http.StatusOK, domain.CheckInResponse{
				Status:       "error",
				LicensePlate: plate,
				Message:      "Bãi xe đã đầy! Vui lòng quay lại sau.",
			})
		default:
			h.internalError(c, "Lỗi khi xử lý check-in", err)
		}
		return
	}

	h.notifyUpdate(c, "check_in", stay.SlotID, stay.LicensePlate)

	arrival := stay.ArrivalTime
	c.JSON(http.StatusOK, domain.CheckInResponse{
		Status:       "ok",
		SlotID:       stay.SlotID,
		LicensePlate: stay.LicensePlate,
		ArrivalTime:  &arrival,
		Message:      fmt.Sprintf("Đã gán slot %s cho xe %s", stay.SlotID, stay.LicensePlate),
	})
}

// POST /api/v1/vehicles/checkout/:slot_id
func (h *VehicleHandler) CheckOut(c *gin.Context) {
	slotID := c.Param("slot_id")

	stay, err := h.parkingService.CheckOut(c.Request.Context(), slotID)
	if err != nil {
		if errors.Is(err, service.ErrSlotNotOccupied) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Không tìm thấy xe tại slot %s", slotID)})
			return
		}
		h.internalError(c, "Lỗi khi xử lý check-out", err)
		return
	}

	h.notifyUpdate(c, "check_out", slotID, stay.LicensePlate)

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": fmt.Sprintf("Xe tại slot %s đã rời bãi", slotID),
	})
}

// GET /api/v1/vehicles/status
func (h *VehicleHandler) GetStatus(c *gin.Context) {
	status, err := h.parkingService.Status(c.Request.Context())
	if err != nil {
		h.internalError(c, "Lỗi khi lấy trạng thái bãi xe", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// GET /api/v1/vehicles/list
func (h *VehicleHandler) ListVehicles(c *gin.Context) {
	vehicles, err := h.parkingService.ListActiveVehicles(c.Request.Context())
	if err != nil {
		h.internalError(c, "Lỗi khi lấy danh sách xe trong bãi", err)
		return
	}
	c.JSON(http.StatusOK, domain.VehicleListResponse{
		Total:    len(vehicles),
		Vehicles: vehicles,
	})
}

func (h *VehicleHandler) saveUpload(originalName string, imageBytes []byte) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("lỗi tạo thư mục upload: %w", err)
	}
	ext := filepath.Ext(originalName)
	if ext == "" {
		ext = ".jpg"
	}
	filename := fmt.Sprintf("vehicle_%s_%s%s", time.Now().UTC().Format("20060102_150405"), uuid.New().String(), ext)
	path := filepath.Join(h.uploadDir, filename)
	if err := os.WriteFile(path, imageBytes, 0o644); err != nil {
		return "", fmt.Errorf("lỗi ghi file ảnh: %w", err)
	}
	return path, nil
}

func (h *VehicleHandler) notifyUpdate(c *gin.Context, event string, slotID string, licensePlate string) {
	if h.wsManager == nil {
		return
	}
	status, err := h.parkingService.Status(c.Request.Context())
	if err != nil {
		log.Printf("VehicleHandler: Lỗi lấy trạng thái bãi cho thông báo WebSocket: %v", err)
		return
	}
	h.wsManager.BroadcastParkingUpdate(domain.ParkingUpdateNotification{
		Event:         event,
		SlotID:        slotID,
		LicensePlate:  licensePlate,
		Timestamp:     time.Now().UTC(),
		ParkingStatus: *status,
	})
}

func (h *VehicleHandler) internalError(c *gin.Context, message string, err error) {
	if errors.Is(err, repository.ErrBackendUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Kho dữ liệu tạm thời không khả dụng"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": message, "details": err.Error()})
}
