// Package gate nhận sự kiện từ cổng ra tự động (camera/cảm biến đẩy
// message vào SQS) và chuyển thành check-out.
package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/tuanjhg/SmartParking/internal/config"
	"github.com/tuanjhg/SmartParking/internal/service"
)

type GateEvent struct {
	EventType string `json:"event_type"` // "vehicle_exited"
	SlotID    string `json:"slot_id"`
	Timestamp string `json:"timestamp,omitempty"`
}

type SQSConsumer struct {
	sqsClient      *sqs.Client
	queueURL       string
	parkingService *service.ParkingService
}

func NewSQSConsumer(client *sqs.Client, cfg *config.Config, ps *service.ParkingService) *SQSConsumer {
	return &SQSConsumer{
		sqsClient:      client,
		queueURL:       cfg.SQSGateEventQueueURL,
		parkingService: ps,
	}
}

func (c *SQSConsumer) Start(ctx context.Context) {
	log.Printf("Gate Consumer đang bắt đầu lắng nghe queue: %s", c.queueURL)
	for {
		select {
		case <-ctx.Done():
			log.Println("Gate Consumer: context cancelled, stopping.")
			return
		default:
			receiveInput := &sqs.ReceiveMessageInput{
				QueueUrl:            &c.queueURL,
				MaxNumberOfMessages: 10,
				WaitTimeSeconds:     20,
				VisibilityTimeout:   60,
			}

			result, err := c.sqsClient.ReceiveMessage(ctx, receiveInput)
			if err != nil {
				log.Printf("Gate Consumer: Lỗi khi nhận message: %v", err)
				select {
				case <-time.After(5 * time.Second):
				case <-ctx.Done():
					log.Println("Gate Consumer: context cancelled while waiting for retry.")
					return
				}
				continue
			}

			if len(result.Messages) == 0 {
				continue
			}

			for _, message := range result.Messages {
				if message.Body == nil {
					log.Println("Gate Consumer: Nhận được message với body rỗng. Đang xóa...")
					c.deleteMessage(ctx, message.ReceiptHandle)
					continue
				}

				processingErr := c.handleGateEvent(ctx, *message.Body)

				if processingErr == nil {
					c.deleteMessage(ctx, message.ReceiptHandle)
				} else {
					log.Printf("Gate Consumer: Lỗi khi xử lý message ID %s: %v. Message sẽ được xử lý lại sau visibility timeout.", *message.MessageId, processingErr)
				}
			}
		}
	}
}

// handleGateEvent trả nil khi message đã xử lý xong, kể cả kết quả
// nghiệp vụ "chỗ này không có xe" vì retry message đó không đổi được gì.
func (c *SQSConsumer) handleGateEvent(ctx context.Context, body string) error {
	var event GateEvent
	if err := json.Unmarshal([]byte(body), &event); err != nil {
		log.Printf("Gate Consumer: Message không đúng định dạng JSON, bỏ qua: %v", err)
		return nil
	}

	switch event.EventType {
	case "vehicle_exited":
		if event.SlotID == "" {
			log.Println("Gate Consumer: Sự kiện vehicle_exited thiếu slot_id, bỏ qua.")
			return nil
		}
		stay, err := c.parkingService.CheckOut(ctx, event.SlotID)
		if err != nil {
			if errors.Is(err, service.ErrSlotNotOccupied) {
				log.Printf("Gate Consumer: Không có xe tại slot %s (có thể đã check-out qua API).", event.SlotID)
				return nil
			}
			return fmt.Errorf("lỗi check-out từ sự kiện cổng ra: %w", err)
		}
		log.Printf("Gate Consumer: Xe %s đã rời slot %s theo sự kiện cổng ra.", stay.LicensePlate, event.SlotID)
		return nil
	default:
		log.Printf("Gate Consumer: Loại sự kiện không được hỗ trợ '%s', bỏ qua.", event.EventType)
		return nil
	}
}

func (c *SQSConsumer) deleteMessage(ctx context.Context, receiptHandle *string) {
	if receiptHandle == nil {
		log.Println("Gate Consumer: Receipt handle rỗng, không thể xóa message.")
		return
	}
	_, delErr := c.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      &c.queueURL,
		ReceiptHandle: receiptHandle,
	})
	if delErr != nil {
		log.Printf("Gate Consumer: Lỗi khi xóa message: %v", delErr)
	}
}
