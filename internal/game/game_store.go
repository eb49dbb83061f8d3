// internal/game/game_store.go
package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/board"
	"github.com/jason-s-yu/tycoon/internal/models"
	"github.com/sirupsen/logrus"
)

// GameStore tracks the live sessions of this process.
type GameStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session

	boards board.Provider
	deps   SessionDeps

	// NewOptions builds per-game collaborators (dice, draws, clock). Nil uses defaults.
	NewOptions func() Options
}

func NewGameStore(boards board.Provider, deps SessionDeps) *GameStore {
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	return &GameStore{
		sessions: make(map[uuid.UUID]*Session),
		boards:   boards,
		deps:     deps,
	}
}

func (s *GameStore) options() Options {
	var o Options
	if s.NewOptions != nil {
		o = s.NewOptions()
	}
	if o.Logger == nil {
		o.Logger = s.deps.Logger
	}
	return o
}

// CreateGame starts a Pending session with rules on the configured board.
func (s *GameStore) CreateGame(rules models.Rules) (*Session, error) {
	b, err := s.boards.Board()
	if err != nil {
		return nil, fmt.Errorf("load board: %w", err)
	}
	sess := NewSession(NewTycoonGame(b, rules, s.options()), s.deps)
	s.AddSession(sess)
	return sess, nil
}

func (s *GameStore) AddSession(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

func (s *GameStore) GetSession(id uuid.UUID) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, exists := s.sessions[id]
	return sess, exists
}

// DeleteSession stops and forgets a session.
func (s *GameStore) DeleteSession(id uuid.UUID) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		sess.Close()
	}
}

// List returns the live sessions.
func (s *GameStore) List() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// Load returns a live session, resuming it from persistence if needed. A corrupt record
// is marked Cancelled and the session is not resumed.
func (s *GameStore) Load(ctx context.Context, id uuid.UUID) (*Session, error) {
	if sess, ok := s.GetSession(id); ok {
		return sess, nil
	}
	if s.deps.Store == nil {
		return nil, newError(KindNotFound, "game %s", id)
	}
	rec, err := s.deps.Store.LoadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	b, err := s.boards.Board()
	if err != nil {
		return nil, fmt.Errorf("load board: %w", err)
	}
	if verr := ValidateRecord(b, rec); verr != nil {
		if rec.Game.Status != models.StatusCancelled {
			rec.Game.Status = models.StatusCancelled
			if err := s.deps.Store.SaveSession(ctx, rec); err != nil {
				return nil, fmt.Errorf("abort corrupt session: %w", err)
			}
		}
		return nil, verr
	}
	sess := NewSession(restoreTycoonGame(b, rec, s.options()), s.deps)
	s.mu.Lock()
	if existing, ok := s.sessions[id]; ok {
		s.mu.Unlock()
		sess.Close()
		return existing, nil
	}
	s.sessions[id] = sess
	s.mu.Unlock()
	return sess, nil
}

// ReapIdle cancels and drops sessions that received no command for longer than idle.
// Finished and cancelled sessions are only dropped. It returns how many were removed.
func (s *GameStore) ReapIdle(ctx context.Context, idle time.Duration, now time.Time) int {
	n := 0
	for _, sess := range s.List() {
		if now.Sub(sess.IdleSince()) <= idle {
			continue
		}
		st := sess.Snapshot().Record.Game.Status
		if st == models.StatusPending || st == models.StatusRunning {
			if _, err := sess.Cancel(ctx, "abandoned"); err != nil {
				s.deps.Logger.WithError(err).WithField("game_id", sess.ID).Warn("failed to abandon idle game")
				continue
			}
			s.deps.Logger.WithField("game_id", sess.ID).Info("marked idle game as abandoned")
		}
		s.DeleteSession(sess.ID)
		n++
	}
	return n
}

// TickTimed evaluates the time limit of every running session that has one and returns
// how many of them finished.
func (s *GameStore) TickTimed(ctx context.Context) int {
	n := 0
	for _, sess := range s.List() {
		g := sess.Snapshot().Record.Game
		if g.Status != models.StatusRunning || g.Rules.TimeLimitSec <= 0 {
			continue
		}
		snap, err := sess.Tick(ctx)
		if err != nil {
			s.deps.Logger.WithError(err).WithField("game_id", sess.ID).Warn("failed to evaluate time limit")
			continue
		}
		if snap.Record.Game.Status == models.StatusFinished {
			n++
		}
	}
	return n
}

// RunReaper sweeps idle sessions and evaluates time limits every interval until ctx is done.
func (s *GameStore) RunReaper(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.TickTimed(ctx)
			s.ReapIdle(ctx, idle, now)
		}
	}
}

// CloseAll stops every live session.
func (s *GameStore) CloseAll() {
	for _, sess := range s.List() {
		s.DeleteSession(sess.ID)
	}
}
