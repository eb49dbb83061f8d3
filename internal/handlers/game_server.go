// internal/handlers/game_server.go
package handlers

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/agent"
	"github.com/jason-s-yu/tycoon/internal/game"
	"github.com/jason-s-yu/tycoon/internal/models"
	"github.com/sirupsen/logrus"
)

// HistoryReader reads the recorded actions of a game.
type HistoryReader interface {
	History(ctx context.Context, gameID uuid.UUID) ([]models.HistoryEntry, error)
}

// GameServer holds the live sessions and the agent drivers playing in them.
type GameServer struct {
	GameStore *game.GameStore
	History   HistoryReader // optional
	Logger    *logrus.Logger

	// OriginPatterns are the hosts allowed to open the game stream cross-origin.
	OriginPatterns []string

	// NewPolicy picks the decision policy for each agent seat.
	NewPolicy func() agent.Policy

	ctx     context.Context
	mu      sync.Mutex
	drivers map[uuid.UUID]context.CancelFunc // by participant id
	wg      sync.WaitGroup
}

// NewGameServer serves store. Agent drivers live until ctx is cancelled.
func NewGameServer(ctx context.Context, store *game.GameStore, history HistoryReader, logger *logrus.Logger) *GameServer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &GameServer{
		GameStore: store,
		History:   history,
		Logger:    logger,
		NewPolicy: func() agent.Policy { return agent.NewHeuristicPolicy(rand.New(rand.NewSource(time.Now().UnixNano()))) },
		ctx:       ctx,
		drivers:   make(map[uuid.UUID]context.CancelFunc),
	}
}

// LaunchAgent starts a driver for an agent participant unless one already runs.
func (gs *GameServer) LaunchAgent(sess *game.Session, participant uuid.UUID) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	if _, ok := gs.drivers[participant]; ok {
		return
	}
	ctx, cancel := context.WithCancel(gs.ctx)
	gs.drivers[participant] = cancel
	d := agent.NewDriver(sess, participant, gs.NewPolicy(), gs.Logger)

	gs.wg.Add(1)
	go func() {
		defer gs.wg.Done()
		if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			gs.Logger.Warnf("agent %s in game %s stopped: %v", participant, sess.ID, err)
		}
		gs.mu.Lock()
		delete(gs.drivers, participant)
		gs.mu.Unlock()
		cancel()
	}()
}

// LaunchAgents starts drivers for every agent seat of a session, e.g. after a restart.
func (gs *GameServer) LaunchAgents(sess *game.Session) int {
	n := 0
	for _, p := range sess.Snapshot().Record.Players {
		if p.IsAgent() && !p.Bankrupt {
			gs.LaunchAgent(sess, p.ID)
			n++
		}
	}
	return n
}

// Agents reports how many drivers are running.
func (gs *GameServer) Agents() int {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return len(gs.drivers)
}

// Wait blocks until every driver has returned.
func (gs *GameServer) Wait() { gs.wg.Wait() }

// session resolves a game id, loading it from persistence when it is not live.
func (gs *GameServer) session(ctx context.Context, id uuid.UUID) (*game.Session, error) {
	if sess, ok := gs.GameStore.GetSession(id); ok {
		return sess, nil
	}
	sess, err := gs.GameStore.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	gs.LaunchAgents(sess)
	return sess, nil
}
