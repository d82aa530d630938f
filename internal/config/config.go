package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	AppName    string
	AppVersion string
	ServerPort string

	// "memory" hoặc "postgres"
	StorageBackend string

	TotalParkingSlots int
	SlotPrefix        string

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string

	AWSRegion            string
	SQSGateEventQueueURL string

	UploadDir       string
	MaxUploadSizeMB int64

	CheckInRateLimitRPS   float64
	CheckInRateLimitBurst int
}

func Load() *Config {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Printf("Cảnh báo: Không thể tải file .env: %v", err)
	}

	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))

	totalSlots, err := strconv.Atoi(getEnv("TOTAL_PARKING_SLOTS", "50"))
	if err != nil || totalSlots < 1 {
		log.Printf("TOTAL_PARKING_SLOTS không hợp lệ, sử dụng giá trị mặc định 50")
		totalSlots = 50
	}

	maxUploadMB, err := strconv.ParseInt(getEnv("MAX_UPLOAD_SIZE_MB", "10"), 10, 64)
	if err != nil || maxUploadMB < 1 {
		maxUploadMB = 10
	}

	rateRPS, err := strconv.ParseFloat(getEnv("CHECKIN_RATE_LIMIT_RPS", "2"), 64)
	if err != nil || rateRPS <= 0 {
		rateRPS = 2
	}
	rateBurst, err := strconv.Atoi(getEnv("CHECKIN_RATE_LIMIT_BURST", "5"))
	if err != nil || rateBurst < 1 {
		rateBurst = 5
	}

	return &Config{
		AppName:    "Smart Parking System",
		AppVersion: "1.0.0",
		ServerPort: getEnv("SERVER_PORT", "8080"),

		StorageBackend: getEnv("STORAGE_BACKEND", "memory"),

		TotalParkingSlots: totalSlots,
		SlotPrefix:        getEnv("SLOT_PREFIX", "A"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "youruser"),         // << THAY THẾ
		DBPassword: getEnv("DB_PASSWORD", "yourpassword"), // << THAY THẾ
		DBName:     getEnv("DB_NAME", "parking_db"),
		DBSslMode:  getEnv("DB_SSLMODE", "disable"),

		AWSRegion:            getEnv("AWS_REGION", "ap-southeast-1"),
		SQSGateEventQueueURL: getEnv("SQS_GATE_EVENT_QUEUE_URL", ""), // << ĐIỀN URL SQS QUEUE nếu dùng cổng ra tự động

		UploadDir:       getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadSizeMB: maxUploadMB,

		CheckInRateLimitRPS:   rateRPS,
		CheckInRateLimitBurst: rateBurst,
	}
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Biến môi trường '%s' không được đặt, sử dụng giá trị mặc định: '%s'", key, fallback)
	return fallback
}
