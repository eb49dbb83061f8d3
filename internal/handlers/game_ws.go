// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/auth"
	"github.com/jason-s-yu/tycoon/internal/game"
	"github.com/jason-s-yu/tycoon/internal/middleware"
	"github.com/jason-s-yu/tycoon/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// GameMessage is an incoming frame on the game stream.
//
//	{"type":"ping"}
//	{"type":"action","action_type":"buy_property","payload":{"property_id":1}}
type GameMessage struct {
	Type       string                 `json:"type"`
	ActionType string                 `json:"action_type,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

const (
	wsWriteTimeout = 5 * time.Second
	wsEventBuffer  = 64
)

// GameWSHandler streams a game's events. Participants may also send actions over the
// same connection; anonymous callers and spectators only receive.
func (gs *GameServer) GameWSHandler(w http.ResponseWriter, r *http.Request) {
	gameID, err := uuid.Parse(chi.URLParam(r, "gameID"))
	if err != nil {
		http.Error(w, "invalid game_id format", http.StatusBadRequest)
		return
	}
	sess, err := gs.session(r.Context(), gameID)
	if err != nil {
		writeError(w, err)
		return
	}
	if st := sess.Snapshot().Record.Game.Status; st == models.StatusFinished || st == models.StatusCancelled {
		http.Error(w, "game has already ended", http.StatusGone)
		return
	}
	logger := gs.Logger

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{"game"},
		OriginPatterns: gs.OriginPatterns,
	})
	if err != nil {
		logger.Warnf("websocket accept error for game %s: %v", gameID, err)
		return
	}
	defer c.CloseNow()

	if c.Subprotocol() != "game" {
		logger.Warnf("client for game %s connected with invalid subprotocol %q", gameID, c.Subprotocol())
		c.Close(websocket.StatusCode(BadSubprotocolError), "client must use the 'game' subprotocol")
		return
	}

	actor, err := wsParticipant(r, sess)
	if err != nil {
		c.Close(websocket.StatusCode(InvalidAuthTokenError), "invalid auth token")
		return
	}
	middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)
	defer middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, nil)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, unsubscribe := sess.Subscribe(wsEventBuffer)
	defer unsubscribe()

	sendWsMessage(ctx, c, map[string]interface{}{"type": "state", "state": sess.State(actor)})

	go func() {
		forwardEvents(ctx, c, sess, actor, events, logger)
		cancel()
	}()

	readGameMessages(ctx, c, sess, actor, logger)
	c.Close(websocket.StatusNormalClosure, "")
}

// wsParticipant resolves the caller from a header, cookie or token query parameter.
// No credentials at all means a spectator; bad credentials are an error.
func wsParticipant(r *http.Request, sess *game.Session) (uuid.UUID, error) {
	userID, err := auth.FromRequest(r)
	if errors.Is(err, auth.ErrNoToken) {
		tok := r.URL.Query().Get("token")
		if tok == "" {
			return uuid.Nil, nil
		}
		userID, err = auth.AuthenticateJWT(tok)
	}
	if err != nil {
		return uuid.Nil, err
	}
	if p, ok := sess.Snapshot().PlayerByUser(userID); ok && userID != uuid.Nil {
		return p.ID, nil
	}
	return uuid.Nil, nil
}

// forwardEvents relays session events, following each burst with a fresh projection.
// The session never blocks on this connection; a slow client misses events, not state.
func forwardEvents(ctx context.Context, c *websocket.Conn, sess *game.Session, actor uuid.UUID, events <-chan game.GameEvent, logger *logrus.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				c.Close(websocket.StatusCode(GameOverError), "game closed")
				return
			}
			if err := writeWs(c, map[string]interface{}{"type": "event", "event": ev}); err != nil {
				logger.Debugf("stopping event stream for game %s: %v", sess.ID, err)
				return
			}
			if len(events) > 0 {
				continue
			}
			st := sess.State(actor)
			if err := writeWs(c, map[string]interface{}{"type": "state", "state": st}); err != nil {
				return
			}
			if st.Status == models.StatusFinished || st.Status == models.StatusCancelled {
				c.Close(websocket.StatusCode(GameOverError), string(st.Status))
				return
			}
		}
	}
}

// readGameMessages reads client frames until the connection closes. Inbound frames are
// rate limited per connection.
func readGameMessages(ctx context.Context, c *websocket.Conn, sess *game.Session, actor uuid.UUID, logger *logrus.Logger) {
	l := rate.NewLimiter(rate.Every(100*time.Millisecond), 10)
	for {
		if err := l.Wait(ctx); err != nil {
			return
		}
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				logger.Debugf("websocket closed for %s in game %s", actor, sess.ID)
			} else {
				logger.Warnf("error reading from websocket for %s in game %s: %v (status %d)", actor, sess.ID, err, status)
			}
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg GameMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			sendWsError(ctx, c, "bad_request", "invalid JSON format")
			continue
		}

		switch msg.Type {
		case "ping":
			sendWsMessage(ctx, c, map[string]string{"type": "pong"})
		case "action":
			if actor == uuid.Nil {
				sendWsError(ctx, c, "forbidden", "spectators cannot act")
				continue
			}
			res, err := dispatch(ctx, sess, actor, models.GameAction{ActionType: msg.ActionType, Payload: msg.Payload})
			if err != nil {
				kind := string(game.KindOf(err))
				if kind == "" {
					kind = "bad_request"
				}
				sendWsError(ctx, c, kind, err.Error())
				continue
			}
			sendWsMessage(ctx, c, map[string]interface{}{"type": "result", "action_type": msg.ActionType, "result": res})
		default:
			sendWsError(ctx, c, "bad_request", fmt.Sprintf("unknown message type: %s", msg.Type))
		}
	}
}

func writeWs(c *websocket.Conn, message interface{}) error {
	msgBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
	defer cancel()
	return c.Write(writeCtx, websocket.MessageText, msgBytes)
}

// sendWsMessage writes a message, logging failures other than a closed connection.
func sendWsMessage(_ context.Context, c *websocket.Conn, message interface{}) {
	err := writeWs(c, message)
	if err == nil {
		return
	}
	status := websocket.CloseStatus(err)
	if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !strings.Contains(err.Error(), "closed") {
		logrus.Warnf("error writing websocket message: %v", err)
	}
}

func sendWsError(ctx context.Context, c *websocket.Conn, kind, msg string) {
	sendWsMessage(ctx, c, map[string]interface{}{
		"type":    "error",
		"error":   kind,
		"message": msg,
	})
}
