package main

import (
	"context"
	"time"

	"github.com/UnendingLoop/PhotoRetouch/internal/transport"
)

// SessionAPIService - все, что нужно API: хендлеры плюс фоновая уборка
type SessionAPIService interface {
	transport.SessionService
	ReviveOrphans(ctx context.Context, limit int)
	EvictIdle(ttl time.Duration) int
}
