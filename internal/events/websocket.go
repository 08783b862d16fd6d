package events

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const writeTimeout = 5 * time.Second

// Handler returns the websocket endpoint. allowedOrigin "*" or "" accepts any
// origin. A client may pass ?after=<event id> to replay buffered events it
// missed while disconnected.
func (h *Hub) Handler(allowedOrigin string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origins := []string{"*"}
		if allowedOrigin != "" && allowedOrigin != "*" {
			origins = []string{allowedOrigin}
		}
		ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: origins})
		if err != nil {
			h.logger.Error("Failed to accept WebSocket", "error", err)
			return
		}

		after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		c := h.register()
		defer h.unregister(c)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Reads only detect client close; the feed is one-way.
		ctx = ws.CloseRead(ctx)

		last := after
		for _, e := range h.history.after(after) {
			if err := h.write(ctx, ws, e); err != nil {
				return
			}
			last = e.ID
		}

		for {
			select {
			case <-ctx.Done():
				_ = ws.Close(websocket.StatusNormalClosure, "client gone")
				return
			case <-c.done:
				_ = ws.Close(websocket.StatusGoingAway, "event feed closed")
				return
			case e := <-c.send:
				if e.ID <= last {
					continue
				}
				if err := h.write(ctx, ws, e); err != nil {
					return
				}
				last = e.ID
			}
		}
	})
}

func (h *Hub) write(ctx context.Context, ws *websocket.Conn, e Event) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(wctx, ws, e); err != nil {
		if ctx.Err() == nil {
			h.logger.Debug("WebSocket write error", "error", err)
		}
		return err
	}
	return nil
}
