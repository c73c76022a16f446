package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"

	"github.com/edubot/edubot/internal/flow"
)

// wsTurn is an inbound WebSocket frame carrying one learner utterance.
type wsTurn struct {
	Message string `json:"message"`
}

// wsError is sent when a turn fails without tearing the connection down.
type wsError struct {
	Error string `json:"error"`
}

// wsSummary is the terminal frame sent once the session completes.
type wsSummary struct {
	Summary string `json:"summary"`
}

// handleSessionSocket streams a session over WebSocket: each inbound frame is
// one turn, each outbound frame the turn's result. Frames are processed in
// arrival order. The server closes the socket after the session completes.
func (s *Server) handleSessionSocket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.ctrl.Get(r.Context(), id); err != nil {
		if errors.Is(err, flow.ErrSessionNotFound) {
			s.writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.logger.Error("loading session for socket failed", "session_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not load session")
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "session_id", id, "error", err)
		return
	}
	defer ws.Close(websocket.StatusInternalError, "session stream ended")

	s.logger.Info("session stream opened", "session_id", id, "remote", r.RemoteAddr)
	ctx := r.Context()

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				s.logger.Warn("websocket read failed", "session_id", id, "error", err)
			}
			return
		}

		var turn wsTurn
		if err := json.Unmarshal(data, &turn); err != nil {
			if err := s.writeWS(ctx, ws, wsError{Error: "invalid frame, expected {\"message\": ...}"}); err != nil {
				return
			}
			continue
		}

		res, err := s.ctrl.Continue(ctx, id, turn.Message)
		if err != nil {
			if errors.Is(err, flow.ErrSessionBusy) {
				if err := s.writeWS(ctx, ws, wsError{Error: "session is processing another turn"}); err != nil {
					return
				}
				continue
			}
			s.logger.Error("socket turn failed", "session_id", id, "error", err)
			ws.Close(websocket.StatusInternalError, "turn failed")
			return
		}

		if err := s.writeWS(ctx, ws, res); err != nil {
			s.logger.Warn("websocket write failed", "session_id", id, "error", err)
			return
		}

		if res.IsComplete {
			if err := s.writeWS(ctx, ws, wsSummary{Summary: res.Summary}); err != nil {
				s.logger.Warn("websocket summary write failed", "session_id", id, "error", err)
				return
			}
			s.logger.Info("session stream complete", "session_id", id, "interactions", res.Interactions)
			ws.Close(websocket.StatusNormalClosure, "session complete")
			return
		}
	}
}

func (s *Server) writeWS(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
