package api

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const streamWriteTimeout = 5 * time.Second

// handleEvents streams a session's presentation signals over a websocket.
// The first frame is a snapshot so late joiners can draw the current state.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if s.opts.Hub == nil {
		s.errorHandler.HandleError(w, r, NewError(ErrTypeServiceUnavailable, "signal stream disabled").Build())
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns(),
	})
	if err != nil {
		s.logger.Warn("websocket accept error", "session", sess.ID(), "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	signals, cancel := s.opts.Hub.Subscribe(sess.ID())
	defer cancel()

	// Clients only listen; CloseRead handles their control frames and
	// cancels ctx when they go away.
	ctx := conn.CloseRead(r.Context())
	log := s.logger.With("session", sess.ID(), "remote", r.RemoteAddr)
	log.Info("stream connected")

	if err := writeFrame(ctx, conn, StreamMessage{Type: "snapshot", Snapshot: sess.Snapshot()}); err != nil {
		log.Debug("stream write error", "error", err)
		return
	}
	for {
		select {
		case <-ctx.Done():
			log.Info("stream disconnected")
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			if err := writeFrame(ctx, conn, sig); err != nil {
				log.Debug("stream write error", "error", err)
				return
			}
		}
	}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}
