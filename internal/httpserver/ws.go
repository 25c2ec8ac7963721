package httpserver

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/ddanilin/storefront/internal/events"
	"github.com/ddanilin/storefront/internal/logging"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type RefreshWS struct {
	Hub *events.Hub
}

// Stream pushes catalog refresh signals to an open view until it goes
// away. The subscription is cancelled on disconnect so no signal is
// delivered to a torn-down view.
func (h *RefreshWS) Stream(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "ws.catalog")

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		l.Warn("ws_upgrade_failed", "error", err)
		return err
	}
	defer conn.Close()

	signals, cancel := h.Hub.Subscribe()
	defer cancel()

	// Reader goroutine only notices the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
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
		case <-done:
			return nil
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(sig); err != nil {
				l.Warn("ws_write_failed", "error", err)
				return nil
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}
