package transport

import (
	"net/http"
	"time"

	"github.com/UnendingLoop/PhotoRetouch/internal/mwlogger"
	"github.com/gorilla/websocket"
	"github.com/wb-go/wbf/ginext"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Events streams state changes and preset notifications of one session over a websocket.
// The first message is always the current state.
func (h SessionHandler) Events(ctx *ginext.Context) {
	id := ctx.Param("id")
	reqCtx := ctx.Request.Context()

	events, cancel, err := h.service.Subscribe(reqCtx, id)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}
	defer cancel()

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		// Upgrade сам ответил клиенту
		return
	}
	defer conn.Close()

	logger := mwlogger.LoggerFromContext(reqCtx)

	// читаем только для того, чтобы заметить закрытие соединения и получать pong
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				logger.Warn().Err(err).Str("session_uid", id).Msg("Failed to push event to client")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
