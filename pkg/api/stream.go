package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/xid"

	"github.com/vjranagit/thermotrack/pkg/controller"
)

const (
	streamWriteWait = 10 * time.Second
	streamPingEvery = 30 * time.Second
	streamBuffer    = 16
)

// handleStream pushes every controller update to a websocket client,
// starting with the current one. Slow clients miss updates rather than
// stall the controller.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	id := xid.New().String()
	log := s.log.With("subscriber", id)

	updates := make(chan controller.Update, streamBuffer)
	cancel := s.deps.Controller.Subscribe(func(u controller.Update) {
		select {
		case updates <- u:
		default:
			log.Debug("stream subscriber lagging, update dropped")
		}
	})
	defer cancel()

	log.Info("stream subscriber connected", "remote", r.RemoteAddr)
	defer log.Info("stream subscriber disconnected")

	// the read loop only exists to notice the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingEvery)
	defer ping.Stop()

	if err := s.send(conn, s.deps.Controller.Current()); err != nil {
		return
	}

	for {
		select {
		case u := <-updates:
			if err := s.send(conn, u); err != nil {
				log.Debug("stream write failed", "err", err)
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(streamWriteWait)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) send(conn *websocket.Conn, u controller.Update) error {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(u)
}
