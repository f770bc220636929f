// Package worker consumes preset notifications from the queue and stores them
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/UnendingLoop/PhotoRetouch/internal/model"
	"github.com/UnendingLoop/PhotoRetouch/internal/notify"
	kafkago "github.com/segmentio/kafka-go"
)

type NotificationService interface {
	SaveNotification(ctx context.Context, n *model.Notification) error
}

// Committer - то, что нужно воркеру от консьюмера
type Committer interface {
	Commit(ctx context.Context, msg kafkago.Message) error
}

type Worker struct {
	service  NotificationService
	queue    <-chan kafkago.Message
	consumer Committer
}

func NewWorkerInstance(svc NotificationService, q <-chan kafkago.Message, cons Committer) *Worker {
	return &Worker{service: svc, queue: q, consumer: cons}
}

func (w *Worker) StartWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-w.queue:
			if !ok {
				log.Println("Queue channel closed, stopping worker...")
				return
			}
			if err := w.handleMessage(ctx, msg); err != nil {
				log.Printf("Notification for session %q failed: %v", string(msg.Key), err)
				continue
			}
			if err := w.consumer.Commit(ctx, msg); err != nil {
				log.Printf("Failed to commit queue-message: %v", err)
			}
		}
	}
}

// handleMessage возвращает ошибку только если сообщение стоит перечитать
func (w *Worker) handleMessage(ctx context.Context, msg kafkago.Message) error {
	n, err := notify.Decode(msg.Value)
	if err != nil {
		// битое сообщение повторно не прочитается лучше - коммитим и идем дальше
		log.Printf("Skipping malformed notification at offset %d: %v", msg.Offset, err)
		return nil
	}
	if n.SessionID == "" {
		n.SessionID = string(msg.Key)
	}

	rec := &model.Notification{
		SessionUID:  n.SessionID,
		Kind:        n.Kind,
		Title:       n.Title,
		Description: n.Description,
		CreatedAt:   n.At,
	}

	// запись в базе идемпотентна, поэтому повторная доставка не создаст дубль
	if err := w.service.SaveNotification(ctx, rec); err != nil {
		if errors.Is(err, model.ErrIncorrectID) {
			log.Printf("Skipping notification with incorrect session UUID %q", n.SessionID)
			return nil
		}
		return fmt.Errorf("worker failed to save notification to DB: %w", err)
	}
	return nil
}
