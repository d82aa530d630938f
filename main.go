package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	awsgo_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/tuanjhg/SmartParking/internal/api"
	"github.com/tuanjhg/SmartParking/internal/api/handler"
	"github.com/tuanjhg/SmartParking/internal/config"
	"github.com/tuanjhg/SmartParking/internal/gate"
	"github.com/tuanjhg/SmartParking/internal/repository"
	"github.com/tuanjhg/SmartParking/internal/repository/memory"
	"github.com/tuanjhg/SmartParking/internal/repository/postgresql"
	"github.com/tuanjhg/SmartParking/internal/service"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	log.Println("Cấu hình đã được tải.")

	// 2. Chọn storage backend
	var store repository.Store
	switch cfg.StorageBackend {
	case "postgres":
		db, err := postgresql.NewDB(cfg)
		if err != nil {
			log.Fatalf("Không thể kết nối database: %v", err)
		}
		defer db.Close()
		store = postgresql.NewStore(db)
		log.Println("Đã kết nối database thành công! Sử dụng backend postgres.")
	case "memory":
		store = memory.NewStore()
		log.Println("Sử dụng backend bộ nhớ (dữ liệu mất khi tắt tiến trình).")
	default:
		log.Fatalf("STORAGE_BACKEND không hợp lệ: '%s' (chỉ hỗ trợ 'memory' hoặc 'postgres')", cfg.StorageBackend)
	}

	// 3. Khởi tạo AWS SDK Config và Rekognition client
	awsSDKCfg, err := awsgo_config.LoadDefaultConfig(context.TODO(), awsgo_config.WithRegion(cfg.AWSRegion))
	if err != nil {
		log.Fatalf("Không thể tải AWS SDK config: %v", err)
	}
	log.Println("Đã tải AWS SDK config thành công cho region:", cfg.AWSRegion)

	rekognitionClient := rekognition.NewFromConfig(awsSDKCfg)
	lprService := service.NewLPRService(rekognitionClient)

	// 4. Khởi tạo bãi đỗ và service
	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	parkingService, err := service.NewParkingService(initCtx, store, cfg.TotalParkingSlots, cfg.SlotPrefix)
	cancelInit()
	if err != nil {
		log.Fatalf("Không thể khởi tạo parking service: %v", err)
	}

	// 5. WebSocket manager cho dashboard
	webSocketManager := handler.NewWebSocketManager()
	go webSocketManager.Start()
	log.Println("WebSocket Manager đã được khởi động.")

	// 6. Gate Consumer (tùy chọn): check-out tự động từ sự kiện cổng ra
	var wg sync.WaitGroup
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())

	if cfg.SQSGateEventQueueURL == "" {
		log.Println("SQS_GATE_EVENT_QUEUE_URL chưa được cấu hình. Gate Consumer sẽ không chạy.")
	} else {
		sqsClient := sqs.NewFromConfig(awsSDKCfg)
		gateConsumer := gate.NewSQSConsumer(sqsClient, cfg, parkingService)
		wg.Add(1)
		go func() {
			defer wg.Done()
			gateConsumer.Start(consumerCtx)
			log.Println("Gate Consumer đã dừng.")
		}()
	}

	// 7. Setup HTTP Router
	router := api.SetupRouter(cfg, parkingService, lprService, webSocketManager)

	// 8. Start HTTP Server
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		log.Printf("Server đang chạy trên port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Lỗi ListenAndServe(): %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Đang tắt server...")

	cancelConsumer()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server buộc phải tắt: %v", err)
	}

	if cfg.SQSGateEventQueueURL != "" {
		log.Println("Đang chờ Gate Consumer dừng (tối đa 5 giây)...")
		c := make(chan struct{})
		go func() {
			defer close(c)
			wg.Wait()
		}()
		select {
		case <-c:
			log.Println("Gate Consumer đã dừng hoàn toàn.")
		case <-time.After(5 * time.Second):
			log.Println("Gate Consumer không dừng trong thời gian chờ.")
		}
	}

	log.Println("Server đã tắt.")
}
