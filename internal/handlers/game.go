// internal/handlers/game.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/auth"
	"github.com/jason-s-yu/tycoon/internal/game"
	"github.com/jason-s-yu/tycoon/internal/middleware"
	"github.com/jason-s-yu/tycoon/internal/models"
)

// Routes mounts the game API on r.
func (gs *GameServer) Routes(r chi.Router) {
	r.Post("/auth/guest", gs.handleGuestToken)

	r.Route("/games", func(r chi.Router) {
		r.Get("/", gs.handleListGames)
		r.With(middleware.RequireUser).Post("/", gs.handleCreateGame)

		r.Route("/{gameID}", func(r chi.Router) {
			r.Get("/", gs.handleGetState)
			r.Get("/ownership", gs.handleOwnership)
			r.Get("/history", gs.handleHistory)
			r.Get("/players/{playerID}/net-worth", gs.handleNetWorth)
			r.Get("/players/{playerID}/monopoly/{group}", gs.handleMonopoly)
			r.Get("/trades/{offerID}/favorability", gs.handleFavorability)
			r.Get("/ws", gs.GameWSHandler)
			r.Post("/tick", gs.handleTick)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireUser)
				r.Post("/join", gs.handleJoin)
				r.Post("/agents", gs.handleAddAgent)
				r.Post("/start", gs.handleStart)
				r.Post("/cancel", gs.handleCancel)
				r.Post("/actions", gs.handleAction)
				r.Post("/actions/{action}", gs.handleAction)
			})
		})
	})
}

type createGameRequest struct {
	Rules map[string]interface{} `json:"rules"`
}

type gameSummary struct {
	GameID  uuid.UUID         `json:"game_id"`
	Status  models.GameStatus `json:"status"`
	Players int               `json:"players"`
}

func (gs *GameServer) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	rules, err := models.ParseRules(req.Rules, models.DefaultRules())
	if err != nil {
		writeError(w, badRequestf("%v", err))
		return
	}
	sess, err := gs.GameStore.CreateGame(rules)
	if err != nil {
		writeError(w, err)
		return
	}
	gs.Logger.WithField("game_id", sess.ID).Info("game created")
	writeJSON(w, http.StatusCreated, sess.State(uuid.Nil))
}

func (gs *GameServer) handleListGames(w http.ResponseWriter, r *http.Request) {
	out := []gameSummary{}
	for _, sess := range gs.GameStore.List() {
		rec := sess.Snapshot().Record
		out = append(out, gameSummary{GameID: sess.ID, Status: rec.Game.Status, Players: len(rec.Players)})
	}
	writeJSON(w, http.StatusOK, out)
}

// sessionFor resolves the {gameID} path parameter.
func (gs *GameServer) sessionFor(w http.ResponseWriter, r *http.Request) (*game.Session, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "gameID"))
	if err != nil {
		writeError(w, badRequestf("invalid game id"))
		return nil, false
	}
	sess, err := gs.session(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return sess, true
}

// viewer is the caller's participant id, or uuid.Nil for spectators and anonymous callers.
func viewer(r *http.Request, sess *game.Session) uuid.UUID {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		var err error
		if userID, err = auth.FromRequest(r); err != nil {
			return uuid.Nil
		}
	}
	if userID == uuid.Nil {
		return uuid.Nil
	}
	if p, ok := sess.Snapshot().PlayerByUser(userID); ok {
		return p.ID
	}
	return uuid.Nil
}

// participant resolves the authenticated caller to a seat, writing 403 when they have none.
func participant(w http.ResponseWriter, r *http.Request, sess *game.Session) (uuid.UUID, bool) {
	id := viewer(r, sess)
	if id == uuid.Nil {
		http.Error(w, "not a participant of this game", http.StatusForbidden)
		return uuid.Nil, false
	}
	return id, true
}

type joinRequest struct {
	Name string `json:"name"`
}

func (gs *GameServer) handleJoin(w http.ResponseWriter, r *http.Request) {
	sess, ok := gs.sessionFor(w, r)
	if !ok {
		return
	}
	userID, _ := middleware.UserID(r.Context())
	var req joinRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" {
		req.Name = "Player"
	}
	p, err := sess.Join(r.Context(), userID, req.Name, models.KindHuman)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// handleAddAgent seats a policy-driven participant and starts its driver.
func (gs *GameServer) handleAddAgent(w http.ResponseWriter, r *http.Request) {
	sess, ok := gs.sessionFor(w, r)
	if !ok {
		return
	}
	if _, ok := participant(w, r, sess); !ok {
		return
	}
	var req joinRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" {
		req.Name = "Agent"
	}
	p, err := sess.Join(r.Context(), uuid.Nil, req.Name, models.KindAgent)
	if err != nil {
		writeError(w, err)
		return
	}
	gs.LaunchAgent(sess, p.ID)
	writeJSON(w, http.StatusCreated, p)
}

func (gs *GameServer) handleStart(w http.ResponseWriter, r *http.Request) {
	sess, ok := gs.sessionFor(w, r)
	if !ok {
		return
	}
	actor, ok := participant(w, r, sess)
	if !ok {
		return
	}
	snap, err := sess.Start(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.ProjectFor(actor))
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (gs *GameServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	sess, ok := gs.sessionFor(w, r)
	if !ok {
		return
	}
	actor, ok := participant(w, r, sess)
	if !ok {
		return
	}
	var req cancelRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Reason == "" {
		req.Reason = "cancelled by participant"
	}
	snap, err := sess.Cancel(r.Context(), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.ProjectFor(actor))
}

// handleAction runs one command. The action type comes from the path when present,
// otherwise from the body envelope; with a path type the body is the bare payload.
func (gs *GameServer) handleAction(w http.ResponseWriter, r *http.Request) {
	sess, ok := gs.sessionFor(w, r)
	if !ok {
		return
	}
	actor, ok := participant(w, r, sess)
	if !ok {
		return
	}
	var action models.GameAction
	if name := chi.URLParam(r, "action"); name != "" {
		action.ActionType = strings.ReplaceAll(name, "-", "_")
		if err := decodeBody(r, &action.Payload); err != nil {
			writeError(w, err)
			return
		}
	} else if err := decodeBody(r, &action); err != nil {
		writeError(w, err)
		return
	}
	res, err := dispatch(r.Context(), sess, actor, action)
	if err != nil {
		gs.Logger.WithField("game_id", sess.ID).Debugf("action %s by %s rejected: %v", action.ActionType, actor, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (gs *GameServer) handleTick(w http.ResponseWriter, r *http.Request) {
	sess, ok := gs.sessionFor(w, r)
	if !ok {
		return
	}
	snap, err := sess.Tick(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.ProjectFor(viewer(r, sess)))
}

func (gs *GameServer) handleGetState(w http.ResponseWriter, r *http.Request) {
	sess, ok := gs.sessionFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.State(viewer(r, sess)))
}

func (gs *GameServer) handleOwnership(w http.ResponseWriter, r *http.Request) {
	sess, ok := gs.sessionFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.OwnershipOf())
}

func pathUUID(r *http.Request, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, key))
	if err != nil {
		return uuid.Nil, badRequestf("invalid %s", key)
	}
	return id, nil
}

func (gs *GameServer) handleNetWorth(w http.ResponseWriter, r *http.Request) {
	sess, ok := gs.sessionFor(w, r)
	if !ok {
		return
	}
	pid, err := pathUUID(r, "playerID")
	if err != nil {
		writeError(w, err)
		return
	}
	nw, err := sess.NetWorth(pid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"player_id": pid, "net_worth": nw})
}

func (gs *GameServer) handleMonopoly(w http.ResponseWriter, r *http.Request) {
	sess, ok := gs.sessionFor(w, r)
	if !ok {
		return
	}
	pid, err := pathUUID(r, "playerID")
	if err != nil {
		writeError(w, err)
		return
	}
	group := chi.URLParam(r, "group")
	if _, ok := sess.Snapshot().Board.Group(group); !ok {
		writeError(w, badRequestf("unknown group %q", group))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"player_id": pid,
		"group":     group,
		"monopoly":  sess.HasMonopoly(pid, group),
	})
}

func (gs *GameServer) handleFavorability(w http.ResponseWriter, r *http.Request) {
	sess, ok := gs.sessionFor(w, r)
	if !ok {
		return
	}
	offerID, err := pathUUID(r, "offerID")
	if err != nil {
		writeError(w, err)
		return
	}
	perspective := viewer(r, sess)
	if q := r.URL.Query().Get("perspective"); q != "" {
		if perspective, err = uuid.Parse(q); err != nil {
			writeError(w, badRequestf("invalid perspective"))
			return
		}
	}
	score, err := sess.Favorability(offerID, perspective)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"offer_id":     offerID,
		"perspective":  perspective,
		"favorability": score,
	})
}

func (gs *GameServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "gameID")
	if err != nil {
		writeError(w, err)
		return
	}
	if gs.History == nil {
		http.Error(w, "history is not configured", http.StatusNotImplemented)
		return
	}
	entries, err := gs.History.History(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
