// Package notify delivers preset-completion notifications to the message queue
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/UnendingLoop/PhotoRetouch/internal/editor"
	"github.com/UnendingLoop/PhotoRetouch/internal/mwlogger"
	"github.com/wb-go/wbf/retry"
)

// Publisher - контракт для работы с очередью
type Publisher interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, value []byte) error
}

// Стратегия ретрая отправки в очередь
var retryStrategy = retry.Strategy{
	Attempts: 3,
	Delay:    500 * time.Millisecond,
	Backoff:  2,
}

// KafkaNotifier publishes notifications keyed by session uid, so one session keeps its order
// within a partition.
type KafkaNotifier struct {
	pub     Publisher
	timeout time.Duration
}

func NewKafkaNotifier(pub Publisher, timeout time.Duration) *KafkaNotifier {
	return &KafkaNotifier{pub: pub, timeout: timeout}
}

// Notify never returns an error: a lost notification is logged and dropped.
func (k *KafkaNotifier) Notify(ctx context.Context, n editor.Notification) {
	logger := mwlogger.LoggerFromContext(ctx)

	payload, err := json.Marshal(n)
	if err != nil {
		logger.Error().Err(err).Str("session_uid", n.SessionID).Msg("Failed to marshal notification")
		return
	}

	if k.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.timeout)
		defer cancel()
	}

	if err := k.pub.SendWithRetry(ctx, retryStrategy, []byte(n.SessionID), payload); err != nil {
		logger.Error().Err(err).Str("session_uid", n.SessionID).Str("kind", string(n.Kind)).Msg("Failed to publish notification")
		return
	}
	logger.Info().Str("session_uid", n.SessionID).Str("kind", string(n.Kind)).Msg("Notification published")
}

// Decode parses a queue payload produced by Notify.
func Decode(payload []byte) (editor.Notification, error) {
	var n editor.Notification
	err := json.Unmarshal(payload, &n)
	return n, err
}
