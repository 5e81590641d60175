package services

import (
	"context"
	"log"
	"sync"
	"time"

	"habitPactAPI/internal/notification"
)

// PushNotificationProvider is the delivery sink. FCM in production; tests
// run without one or inject a fake.
type PushNotificationProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error
}

// NotificationDispatcher drains queued intents through a small worker pool.
// A full queue drops the intent with a log line; delivery is never allowed
// to block the caller.
type NotificationDispatcher struct {
	service      *NotificationService
	pushProvider PushNotificationProvider
	workers      int
	jobQueue     chan *notification.Notification
	stopChan     chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

func NewNotificationDispatcher(service *NotificationService) *NotificationDispatcher {
	dispatcher := &NotificationDispatcher{
		service:  service,
		workers:  5,
		jobQueue: make(chan *notification.Notification, 100),
		stopChan: make(chan struct{}),
	}

	dispatcher.startWorkers()
	return dispatcher
}

func (d *NotificationDispatcher) SetPushProvider(provider PushNotificationProvider) {
	d.pushProvider = provider
}

func (d *NotificationDispatcher) startWorkers() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

func (d *NotificationDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case notif := <-d.jobQueue:
			d.processJob(notif)
		case <-d.stopChan:
			return
		}
	}
}

func (d *NotificationDispatcher) processJob(notif *notification.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if d.pushProvider != nil {
		tokens, err := d.service.deviceTokens(ctx, notif.UserID)
		if err != nil {
			log.Printf("Dispatcher: failed to load device tokens for %s: %v", notif.UserID, err)
			d.markAsFailed(ctx, notif)
			return
		}

		if len(tokens) > 0 {
			if err := d.pushProvider.SendPush(ctx, tokens, notif.Title, notif.Body, notif.Data); err != nil {
				log.Printf("Dispatcher: push failed for user %s: %v", notif.UserID, err)
				d.markAsFailed(ctx, notif)
				return
			}
		}
	}

	d.markAsSent(ctx, notif)
}

// Dispatch queues one intent. Non-blocking.
func (d *NotificationDispatcher) Dispatch(notif *notification.Notification) {
	select {
	case d.jobQueue <- notif:
	default:
		log.Printf("Dispatcher: queue full, dropping notification %s", notif.ID)
	}
}

func (d *NotificationDispatcher) markAsSent(ctx context.Context, notif *notification.Notification) {
	_, err := d.service.db.Exec(ctx,
		`UPDATE notifications SET status = $2 WHERE id = $1`,
		notif.ID, notification.StatusSent,
	)
	if err != nil {
		log.Printf("Dispatcher: failed to mark notification %s as sent: %v", notif.ID, err)
	}
}

func (d *NotificationDispatcher) markAsFailed(ctx context.Context, notif *notification.Notification) {
	_, err := d.service.db.Exec(ctx,
		`UPDATE notifications SET status = $2 WHERE id = $1`,
		notif.ID, notification.StatusFailed,
	)
	if err != nil {
		log.Printf("Dispatcher: failed to mark notification %s as failed: %v", notif.ID, err)
	}
}

func (d *NotificationDispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopChan)
	})
	d.wg.Wait()
}
