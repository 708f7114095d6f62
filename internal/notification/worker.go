package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"coffee-machine-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Alert is the push payload delivered to subscribers.
type Alert struct {
	MachineID int64  `json:"machineId"`
	Title     string `json:"title"`
	Body      string `json:"body"`
}

// WorkerPool sends refill alerts for machines that need attention.
type WorkerPool struct {
	size    int
	jobs    chan int64
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
	log     *zap.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options, log *zap.Logger) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan int64, size*16),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     log.Named("notification"),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug("Worker started", zap.Int("worker", id))
	for {
		select {
		case machineID := <-wp.jobs:
			wp.log.Debug("Worker processing machine", zap.Int("worker", id), zap.Int64("machine_id", machineID))
			wp.sendAlertsForMachine(ctx, machineID)
		case <-ctx.Done():
			wp.log.Debug("Worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch queues a refill alert for machineID. When the queue is full the
// alert is dropped and false is returned.
func (wp *WorkerPool) Dispatch(machineID int64) bool {
	select {
	case wp.jobs <- machineID:
		return true
	default:
		wp.log.Warn("Alert queue full, dropping refill alert", zap.Int64("machine_id", machineID))
		return false
	}
}

func (wp *WorkerPool) sendAlertsForMachine(ctx context.Context, machineID int64) {
	var subscriptions []model.RefillSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_machine_mapping smm ON smm.refill_subscription_endpoint = refill_subscriptions.endpoint").
		Where("smm.machine_id = ?", machineID).
		Find(&subscriptions).Error
	if err != nil {
		wp.log.Error("Failed to fetch subscriptions", zap.Int64("machine_id", machineID), zap.Error(err))
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	var machine model.Machine
	machineLabel := fmt.Sprintf("%d", machineID)
	if err := wp.db.WithContext(ctx).First(&machine, machineID).Error; err != nil {
		wp.log.Warn("Failed to fetch machine", zap.Int64("machine_id", machineID), zap.Error(err))
	} else if machine.Name != "" {
		machineLabel = machine.Name
	}

	payload, err := json.Marshal(Alert{
		MachineID: machineID,
		Title:     "Coffee machine needs attention",
		Body:      fmt.Sprintf("%s %s", machineLabel, describe(machine)),
	})
	if err != nil {
		wp.log.Error("Failed to encode alert", zap.Error(err))
		return
	}

	wp.log.Info("Sending refill alerts",
		zap.Int64("machine_id", machineID),
		zap.Int("subscriptions", len(subscriptions)))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// describe names the first missing resource, in the same order brewing checks them.
func describe(m model.Machine) string {
	switch {
	case m.ID == 0:
		return "needs attention"
	case m.Water == 0:
		return "is out of water"
	case m.Cups == 0:
		return "is out of cups"
	case m.Beans == 0:
		return "is out of coffee beans"
	case !m.Powered:
		return "has no power"
	default:
		return "needs attention"
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.RefillSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Warn("Failed to send notification", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		wp.log.Info("Subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.db.WithContext(ctx).Select("Machines").Delete(&sub).Error; err != nil {
			wp.log.Error("Failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}
