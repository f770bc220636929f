package main

import (
	"context"

	"github.com/UnendingLoop/PhotoRetouch/internal/editor"
	"github.com/UnendingLoop/PhotoRetouch/internal/worker"
)

type NotificationWorkerService interface {
	worker.NotificationService
}

// NoopNotifier - ЗАГЛУШКА, воркер сам пресеты не запускает и в очередь ничего не пишет
type NoopNotifier struct{}

func (NoopNotifier) Notify(ctx context.Context, n editor.Notification) {}
