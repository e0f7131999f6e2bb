package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/sipstreak/internal/metrics"
	"github.com/jason-s-yu/sipstreak/internal/middleware"
	"github.com/jason-s-yu/sipstreak/internal/models"
)

const (
	wsSubprotocol = "friends"
	wsWriteWait   = 10 * time.Second
	wsPingPeriod  = 30 * time.Second
)

// FriendEventsWSHandler streams the caller's friend change events as JSON
// frames. Events only signal that something changed; clients re-fetch the
// request and friend lists on receipt, and after reconnecting.
func (s *APIServer) FriendEventsWSHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}

	// subscribe before the handshake completes so nothing published after
	// the client sees the upgrade is missed
	sub := s.Bus.Subscribe(userID)
	defer sub.Close()

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{wsSubprotocol},
		OriginPatterns: s.OriginPatterns,
	})
	if err != nil {
		s.Logger.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != wsSubprotocol {
		c.Close(BadSubprotocolError, "client must speak the friends subprotocol")
		return
	}

	middleware.LogWebSocketConnect(s.Logger, r.RemoteAddr, r.URL.Path)
	metrics.WebsocketConnected(1)
	defer metrics.WebsocketConnected(-1)

	// the client never sends anything meaningful; CloseRead handles control
	// frames and cancels ctx once the peer goes away
	ctx := c.CloseRead(r.Context())

	err = s.pumpEvents(ctx, c, sub.Events())
	middleware.LogWebSocketDisconnect(s.Logger, r.RemoteAddr, r.URL.Path, err)
	if err == nil {
		c.Close(websocket.StatusNormalClosure, "")
	}
}

func (s *APIServer) pumpEvents(ctx context.Context, c *websocket.Conn, events <-chan models.Event) error {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			wctx, cancel := context.WithTimeout(ctx, wsWriteWait)
			err := wsjson.Write(wctx, c, ev)
			cancel()
			if err != nil {
				return err
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, wsWriteWait)
			err := c.Ping(pctx)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
