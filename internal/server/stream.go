package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"adline/internal/app"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
)

type streamHello struct {
	Type     string         `json:"type"`
	Snapshot ReviewResponse `json:"snapshot"`
}

type streamTransition struct {
	Type string `json:"type"`
	TransitionMessage
}

// reviewStream upgrades to a websocket that receives the current review
// snapshot followed by every review transition.
func reviewStream(a *app.App, logger *zap.Logger) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Debug("review stream upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		transitions, stop := a.Feed.Subscribe(32)
		defer stop()

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			conn.SetReadLimit(512)
			_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(streamPongWait))
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(streamHello{Type: "snapshot", Snapshot: reviewResponse(a.Review.Snapshot())}); err != nil {
			return
		}
		ping := time.NewTicker(streamPingPeriod)
		defer ping.Stop()
		for {
			select {
			case <-closed:
				return
			case <-r.Context().Done():
				return
			case t, ok := <-transitions:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
				if err := conn.WriteJSON(streamTransition{Type: "transition", TransitionMessage: transitionMessage(t)}); err != nil {
					logger.Debug("review stream write failed", zap.Error(err))
					return
				}
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}
