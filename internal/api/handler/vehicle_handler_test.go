package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanjhg/SmartParking/internal/domain"
	"github.com/tuanjhg/SmartParking/internal/repository/memory"
	"github.com/tuanjhg/SmartParking/internal/service"
)

type stubRecognizer struct {
	plate      string
	confidence float32
	err        error
}

func (s *stubRecognizer) RecognizePlate(_ context.Context, _ []byte) (string, float32, error) {
	return s.plate, s.confidence, s.err
}

func newTestRouter(t *testing.T, capacity int, recognizer service.PlateRecognizer) (*gin.Engine, *service.ParkingService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ps, err := service.NewParkingService(context.Background(), memory.NewStore(), capacity, "A")
	require.NoError(t, err)

	h := NewVehicleHandler(ps, recognizer, nil, t.TempDir(), 5)

	r := gin.New()
	v1 := r.Group("/api/v1/vehicles")
	{
		v1.POST("/checkin", h.CheckIn)
		v1.POST("/checkout/:slot_id", h.CheckOut)
		v1.GET("/status", h.GetStatus)
		v1.GET("/list", h.ListVehicles)
	}
	return r, ps
}

func checkInRequest(t *testing.T) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "car.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("anh-xe-gia-lap"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/vehicles/checkin", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func doRequest(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCheckInSuccess(t *testing.T) {
	r, _ := newTestRouter(t, 2, &stubRecognizer{plate: "51A-1234", confidence: 95.0})

	w := doRequest(r, checkInRequest(t))
	require.Equal(t, http.StatusOK, w.Code)

	var resp domain.CheckInResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "A1", resp.SlotID)
	assert.Equal(t, "51A-1234", resp.LicensePlate)
	require.NotNil(t, resp.ArrivalTime)
}

func TestCheckInSavesUpload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	uploadDir := t.TempDir()

	ps, err := service.NewParkingService(context.Background(), memory.NewStore(), 2, "A")
	require.NoError(t, err)
	h := NewVehicleHandler(ps, &stubRecognizer{plate: "51A-1234"}, nil, uploadDir, 5)

	r := gin.New()
	r.POST("/api/v1/vehicles/checkin", h.CheckIn)

	w := doRequest(r, checkInRequest(t))
	require.Equal(t, http.StatusOK, w.Code)

	entries, err := os.ReadDir(uploadDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCheckInMissingFile(t *testing.T) {
	r, _ := newTestRouter(t, 2, &stubRecognizer{plate: "51A-1234"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/vehicles/checkin", nil)
	w := doRequest(r, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckInUnrecognizedPlate(t *testing.T) {
	r, _ := newTestRouter(t, 2, &stubRecognizer{plate: ""})

	w := doRequest(r, checkInRequest(t))
	require.Equal(t, http.StatusOK, w.Code)

	var resp domain.CheckInResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Message, "Không thể nhận diện biển số xe")
}

func TestCheckInRecognizerError(t *testing.T) {
	r, _ := newTestRouter(t, 2, &stubRecognizer{err: assert.AnError})

	w := doRequest(r, checkInRequest(t))
	require.Equal(t, http.StatusOK, w.Code)

	var resp domain.CheckInResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
}

func TestCheckInInvalidPlateFormat(t *testing.T) {
	r, _ := newTestRouter(t, 2, &stubRecognizer{plate: "ABC123"})

	w := doRequest(r, checkInRequest(t))
	require.Equal(t, http.StatusOK, w.Code)

	var resp domain.CheckInResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Message, "không hợp lệ")
}

func TestCheckInAlreadyParked(t *testing.T) {
	r, _ := newTestRouter(t, 2, &stubRecognizer{plate: "51A-1234"})

	w := doRequest(r, checkInRequest(t))
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, checkInRequest(t))
	require.Equal(t, http.StatusOK, w.Code)

	var resp domain.CheckInResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "A1", resp.SlotID)
	assert.Contains(t, resp.Message, "đã có trong bãi tại slot A1")
}

func TestCheckInFacilityFull(t *testing.T) {
	r, ps := newTestRouter(t, 1, &stubRecognizer{plate: "51B-5678"})

	_, err := ps.CheckIn(context.Background(), "51A-1234", "")
	require.NoError(t, err)

	w := doRequest(r, checkInRequest(t))
	require.Equal(t, http.StatusOK, w.Code)

	var resp domain.CheckInResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Message, "Bãi xe đã đầy")
}

func TestCheckOut(t *testing.T) {
	r, ps := newTestRouter(t, 2, &stubRecognizer{plate: "51A-1234"})

	_, err := ps.CheckIn(context.Background(), "51A-1234", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/vehicles/checkout/A1", nil)
	w := doRequest(r, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Contains(t, resp["message"], "Xe tại slot A1 đã rời bãi")

	// Chỗ đã trống, check-out lần nữa trả 404
	w = doRequest(r, httptest.NewRequest(http.MethodPost, "/api/v1/vehicles/checkout/A1", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	var errResp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Contains(t, errResp["error"], "Không tìm thấy xe tại slot A1")
}

func TestGetStatus(t *testing.T) {
	r, ps := newTestRouter(t, 4, &stubRecognizer{})

	_, err := ps.CheckIn(context.Background(), "51A-1234", "")
	require.NoError(t, err)

	w := doRequest(r, httptest.NewRequest(http.MethodGet, "/api/v1/vehicles/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var status domain.ParkingStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, 4, status.TotalSlots)
	assert.Equal(t, 1, status.OccupiedSlots)
	assert.Equal(t, 3, status.FreeSlots)
	assert.Equal(t, "available", status.Status)
	assert.Equal(t, 25.0, status.OccupancyRate)
}

func TestListVehicles(t *testing.T) {
	r, ps := newTestRouter(t, 3, &stubRecognizer{})

	_, err := ps.CheckIn(context.Background(), "51A-1111", "")
	require.NoError(t, err)
	_, err = ps.CheckIn(context.Background(), "51B-2222", "")
	require.NoError(t, err)

	w := doRequest(r, httptest.NewRequest(http.MethodGet, "/api/v1/vehicles/list", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp domain.VehicleListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Vehicles, 2)
	assert.Equal(t, "51A-1111", resp.Vehicles[0].LicensePlate)
	assert.Equal(t, "A1", resp.Vehicles[0].SlotID)
}
