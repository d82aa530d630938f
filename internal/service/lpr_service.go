package service

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/tuanjhg/SmartParking/internal/metrics"
)

// PlateRecognizer chuyển ảnh thành biển số. Kết quả rỗng / lỗi nhận
// diện khác với "biển số trả về nhưng sai định dạng": caller phải tự
// kiểm tra định dạng bằng ValidatePlate trước khi check-in.
type PlateRecognizer interface {
	RecognizePlate(ctx context.Context, imageBytes []byte) (string, float32, error)
}

// Biển số dân sự Việt Nam: 51A-1234, 51A-12345, 29G1-12345...
var plateFormatRegex = regexp.MustCompile(`^\d{2}[A-Z]-\d{4,5}$|^\d{2}[A-Z]\d-\d{4,5}$`)

// Dạng thô sau khi chuẩn hóa, dấu gạch ngang có thể thiếu.
var plateCandidateRegex = regexp.MustCompile(`^[0-9]{2}[A-Z][0-9]?-?[0-9]{4,5}$`)
var plateSplitRegex = regexp.MustCompile(`^([0-9]{2}[A-Z][0-9]?)-?([0-9]{4,5})$`)

// NormalizePlate viết hoa, bỏ khoảng trắng và dấu chấm, chèn lại dấu
// gạch ngang giữa phần seri và phần số để Rekognition trả "51A 1234"
// hay "51A-123.45" đều quy về cùng một dạng chuẩn.
func NormalizePlate(raw string) string {
	txt := strings.ToUpper(raw)
	txt = strings.ReplaceAll(txt, " ", "")
	txt = strings.ReplaceAll(txt, ".", "")
	if m := plateSplitRegex.FindStringSubmatch(txt); m != nil {
		return m[1] + "-" + m[2]
	}
	return txt
}

func ValidatePlate(plate string) bool {
	return plateFormatRegex.MatchString(plate)
}

type LPRService struct {
	rekognitionClient *rekognition.Client
}

func NewLPRService(rekClient *rekognition.Client) *LPRService {
	return &LPRService{rekognitionClient: rekClient}
}

// RecognizePlate gọi Rekognition DetectText rồi chọn khối văn bản khớp
// dạng biển số có độ tin cậy cao nhất.
func (s *LPRService) RecognizePlate(ctx context.Context, imageBytes []byte) (string, float32, error) {
	if s.rekognitionClient == nil {
		return "", 0, fmt.Errorf("Rekognition client chưa được khởi tạo")
	}

	input := &rekognition.DetectTextInput{
		Image: &types.Image{
			Bytes: imageBytes,
		},
	}

	result, err := s.rekognitionClient.DetectText(ctx, input)
	if err != nil {
		log.Printf("LPRService: Lỗi khi gọi Rekognition DetectText: %v", err)
		metrics.LPRRequestsTotal.WithLabelValues("error").Inc()
		return "", 0, fmt.Errorf("lỗi Rekognition: %w", err)
	}

	var candidates []PlateCandidate
	for _, textDetection := range result.TextDetections {
		if textDetection.Type != types.TextTypesLine && textDetection.Type != types.TextTypesWord {
			continue
		}
		if textDetection.DetectedText == nil || textDetection.Confidence == nil {
			continue
		}
		candidates = append(candidates, PlateCandidate{
			Text:       *textDetection.DetectedText,
			Confidence: *textDetection.Confidence,
		})
	}
	log.Printf("LPRService: Rekognition trả về %d khối văn bản.", len(result.TextDetections))

	plate, confidence := PickBestPlate(candidates)
	if plate == "" {
		log.Println("LPRService: Không tìm thấy biển số nào khớp định dạng từ văn bản nhận dạng.")
		metrics.LPRRequestsTotal.WithLabelValues("no_plate").Inc()
		return "", 0, nil
	}

	log.Printf("LPRService: Biển số được chọn: '%s' với độ tin cậy: %.2f", plate, confidence)
	metrics.LPRRequestsTotal.WithLabelValues("ok").Inc()
	return plate, confidence, nil
}

type PlateCandidate struct {
	Text       string
	Confidence float32
}

// PickBestPlate chuẩn hóa từng ứng viên, lọc theo dạng biển số và trả
// về ứng viên có độ tin cậy cao nhất, hoặc chuỗi rỗng nếu không có.
func PickBestPlate(candidates []PlateCandidate) (string, float32) {
	var bestPlate string
	var maxConfidence float32
	for _, c := range candidates {
		txt := NormalizePlate(c.Text)
		if !plateCandidateRegex.MatchString(txt) {
			continue
		}
		if c.Confidence > maxConfidence {
			maxConfidence = c.Confidence
			bestPlate = txt
		}
	}
	return bestPlate, maxConfidence
}
