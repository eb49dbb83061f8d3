// cmd/simulate plays a headless game between heuristic agents and reports the outcome.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/agent"
	"github.com/jason-s-yu/tycoon/internal/board"
	"github.com/jason-s-yu/tycoon/internal/config"
	"github.com/jason-s-yu/tycoon/internal/database"
	"github.com/jason-s-yu/tycoon/internal/game"
	"github.com/jason-s-yu/tycoon/internal/models"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		players  = flag.Int("players", 4, "number of agent participants (2-8)")
		maxTurns = flag.Int("turns", 400, "cancel the game after this many turns")
		limit    = flag.Duration("limit", 0, "game time limit; 0 for none")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		auction  = flag.Bool("auction", true, "auction declined purchases")
		dbPath   = flag.String("db", "", "persist the game to this SQLite file")
	)
	flag.Parse()

	logger := logrus.New()
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)
	if *players < 2 || *players > 8 {
		logger.Fatalf("players must be between 2 and 8, got %d", *players)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	deps := game.SessionDeps{Logger: logger}
	if *dbPath != "" {
		store, err := database.Open(ctx, database.Options{Dialect: database.DialectSQLite, SQLitePath: *dbPath}, logger)
		if err != nil {
			logger.Fatalf("database: %v", err)
		}
		defer store.Close()
		deps.Store = store
	}

	rng := rand.New(rand.NewSource(*seed))
	games := game.NewGameStore(board.ProviderFromPath(cfg.BoardFile), deps)
	games.NewOptions = func() game.Options { return game.Options{Rand: rand.New(rand.NewSource(rng.Int63()))} }
	defer games.CloseAll()

	rules := models.DefaultRules()
	rules.AuctionEnabled = *auction
	rules.TimeLimitSec = int(limit.Seconds())
	sess, err := games.CreateGame(rules)
	if err != nil {
		logger.Fatalf("create game: %v", err)
	}

	var seats []models.Player
	for i := 0; i < *players; i++ {
		p, err := sess.Join(ctx, uuid.Nil, fmt.Sprintf("agent-%d", i+1), models.KindAgent)
		if err != nil {
			logger.Fatalf("join: %v", err)
		}
		seats = append(seats, *p)
	}
	if _, err := sess.Start(ctx); err != nil {
		logger.Fatalf("start: %v", err)
	}
	logger.WithFields(logrus.Fields{"game_id": sess.ID, "seed": *seed, "players": *players}).Info("simulation started")

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	for _, p := range seats {
		d := agent.NewDriver(sess, p.ID, agent.NewHeuristicPolicy(rand.New(rand.NewSource(rng.Int63()))), logger)
		d.AuctionWindow = 10 * time.Millisecond
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Run(runCtx)
		}()
	}

	watch(runCtx, sess, *maxTurns, logger)
	cancel()
	wg.Wait()
	report(sess.Snapshot(), *seed)
}

// watch waits for the game to end, ticking its time limit and enforcing the turn cap.
func watch(ctx context.Context, sess *game.Session, maxTurns int, logger *logrus.Logger) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		snap, err := sess.Tick(ctx)
		if err != nil {
			logger.Warnf("tick: %v", err)
			return
		}
		g := snap.Record.Game
		if g.Status == models.StatusFinished || g.Status == models.StatusCancelled {
			return
		}
		if g.TurnCount >= maxTurns {
			if _, err := sess.Cancel(ctx, fmt.Sprintf("turn cap %d reached", maxTurns)); err != nil {
				logger.Warnf("cancel: %v", err)
			}
			return
		}
	}
}

func report(snap *game.Snapshot, seed int64) {
	g := snap.Record.Game
	fmt.Printf("game %s (seed %d): %s after %d turns\n", g.ID, seed, g.Status, g.TurnCount)
	if g.Status == models.StatusFinished {
		fmt.Printf("winner %s, valid win: %v\n", g.WinnerID, g.ValidWin)
	}

	players := append([]models.Player(nil), snap.Record.Players...)
	worth := make(map[uuid.UUID]int, len(players))
	for _, p := range players {
		worth[p.ID], _ = snap.NetWorth(p.ID)
	}
	sort.SliceStable(players, func(i, j int) bool {
		pi, pj := players[i].Placement, players[j].Placement
		if pi != 0 && pj != 0 && pi != pj {
			return pi < pj
		}
		return worth[players[i].ID] > worth[players[j].ID]
	})
	for _, p := range players {
		status := "active"
		if p.Bankrupt {
			status = "bankrupt"
		}
		fmt.Printf("  %-10s place=%d cash=%5d net_worth=%5d properties=%2d %s\n",
			p.Name, p.Placement, p.Cash, worth[p.ID], len(snap.OwnedBy(p.ID)), status)
	}

	accounted := g.MoneyReturned
	for _, p := range snap.Record.Players {
		if p.Bankrupt {
			continue
		}
		accounted += p.Cash
		if p.Debt != nil {
			accounted += p.Debt.Amount
		}
	}
	fmt.Printf("money issued %d, accounted %d\n", g.MoneyIssued, accounted)
}
