package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePlate(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"51A-1234", "51A-1234"},
		{"51a-1234", "51A-1234"},
		{"51A 1234", "51A-1234"},
		{"51A1234", "51A-1234"},
		{"51A-123.45", "51A-12345"},
		{"29G112345", "29G1-12345"},
		{"29G1 123.45", "29G1-12345"},
		{"HONDA", "HONDA"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePlate(tt.raw), "raw=%q", tt.raw)
	}
}

func TestValidatePlate(t *testing.T) {
	valid := []string{"51A-1234", "51A-12345", "29G1-12345", "30F-9999"}
	for _, p := range valid {
		assert.True(t, ValidatePlate(p), "biển số %q phải hợp lệ", p)
	}

	invalid := []string{"", "51A-123", "51A1234", "5A-1234", "51AB-1234", "51a-1234", "HONDA"}
	for _, p := range invalid {
		assert.False(t, ValidatePlate(p), "biển số %q phải bị từ chối", p)
	}
}

func TestPickBestPlate(t *testing.T) {
	t.Run("chọn ứng viên khớp định dạng có độ tin cậy cao nhất", func(t *testing.T) {
		plate, confidence := PickBestPlate([]PlateCandidate{
			{Text: "HONDA", Confidence: 99.5},
			{Text: "51A 1234", Confidence: 88.0},
			{Text: "51B-9999", Confidence: 70.0},
		})
		assert.Equal(t, "51A-1234", plate)
		assert.Equal(t, float32(88.0), confidence)
	})

	t.Run("không có ứng viên nào khớp", func(t *testing.T) {
		plate, confidence := PickBestPlate([]PlateCandidate{
			{Text: "TOYOTA", Confidence: 95.0},
			{Text: "VIETNAM", Confidence: 90.0},
		})
		assert.Equal(t, "", plate)
		assert.Equal(t, float32(0), confidence)
	})

	t.Run("danh sách rỗng", func(t *testing.T) {
		plate, _ := PickBestPlate(nil)
		assert.Equal(t, "", plate)
	})
}
