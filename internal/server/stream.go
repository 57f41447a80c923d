package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/claude/repcoach/internal/pose"
	"github.com/claude/repcoach/internal/session"
)

const streamWriteTimeout = 5 * time.Second

// streamMessage is one inbound websocket message: a landmark frame, or a
// heart rate sample when BPM is set.
type streamMessage struct {
	Landmarks []pose.Landmark `json:"landmarks,omitempty"`
	BPM       int             `json:"bpm,omitempty"`
}

// streamEvent is one outbound websocket message.
type streamEvent struct {
	Type   string          `json:"type"`
	Update *session.Update `json:"update,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// handleStream runs a live session over a websocket. Frames go through a
// keep-latest pipeline so a slow analyzer never backs up the camera; every
// processed frame yields an "update" event.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Error("websocket accept", "session_id", sess.ID, "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			s.log.Debug("websocket close", "session_id", sess.ID, "error", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	pipeline := session.NewPipeline(sess)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = pipeline.Run(ctx, func(u session.Update, err error) {
			s.observe(sess, u, err)
			ev := streamEvent{Type: "update", Update: &u}
			if err != nil {
				ev = streamEvent{Type: "error", Error: err.Error()}
			}
			s.writeEvent(ctx, ws, ev)
		})
	}()
	defer func() {
		pipeline.Close()
		<-done
	}()

	s.log.Info("stream opened", "session_id", sess.ID)
	for {
		var msg streamMessage
		if err := wsjson.Read(ctx, ws, &msg); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && !errors.Is(err, context.Canceled) {
				s.log.Debug("stream read", "session_id", sess.ID, "error", err)
			}
			break
		}
		if msg.BPM > 0 {
			sess.RecordHeartRate(msg.BPM, s.now())
			continue
		}
		if pipeline.Submit(pose.Frame{Landmarks: msg.Landmarks}) && s.metrics != nil {
			s.metrics.CounterFramesDropped.Inc()
		}
	}
	s.log.Info("stream closed", "session_id", sess.ID, "dropped", pipeline.Dropped())
}

func (s *Server) writeEvent(ctx context.Context, ws *websocket.Conn, ev streamEvent) {
	wctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	if err := wsjson.Write(wctx, ws, ev); err != nil {
		s.log.Debug("stream write", "error", err)
	}
}
