package agent

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/board"
	"github.com/jason-s-yu/tycoon/internal/game"
	"github.com/jason-s-yu/tycoon/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// alwaysBuy buys everything and never builds or trades.
type alwaysBuy struct{}

func (alwaysBuy) DecidePurchase(context.Context, View, int) (PurchaseDecision, error) {
	return PurchaseDecision{Buy: true}, nil
}

func (alwaysBuy) DecideTrade(context.Context, View, models.TradeOffer) (TradeDecision, error) {
	return TradeDecision{Action: TradeDecline}, nil
}

func (alwaysBuy) DecideBuilding(context.Context, View) (BuildDecision, error) {
	return BuildDecision{}, nil
}

func startSession(t *testing.T, opts game.Options, n int) (*game.Session, []uuid.UUID) {
	t.Helper()
	opts.Logger = quietLogger()
	g := game.NewTycoonGame(board.Classic(), models.DefaultRules(), opts)
	s := game.NewSession(g, game.SessionDeps{Logger: opts.Logger})
	t.Cleanup(s.Close)

	ctx := context.Background()
	var ids []uuid.UUID
	for i := 0; i < n; i++ {
		p, err := s.Join(ctx, uuid.New(), "bot", models.KindAgent)
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}
	_, err := s.Start(ctx)
	require.NoError(t, err)
	return s, ids
}

func TestDriverPlaysOneTurn(t *testing.T) {
	s, ids := startSession(t, game.Options{
		Dice:  &game.FixedDice{Rolls: [][2]int{{2, 3}, {1, 2}}},
		Draws: &game.FixedDraws{},
		Rand:  rand.New(rand.NewSource(3)),
	}, 2)
	first := ids[0]
	cur, ok := s.Snapshot().Current()
	require.True(t, ok)
	require.Equal(t, first, cur.ID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := NewDriver(s, first, alwaysBuy{}, quietLogger())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool {
		cur, ok := s.Snapshot().Current()
		return ok && cur.ID == ids[1]
	}, 2*time.Second, 5*time.Millisecond, "driver ends its turn")

	snap := s.Snapshot()
	o, ok := snap.Ownership(5)
	require.True(t, ok)
	assert.Equal(t, first, o.Owner, "bought the railroad it landed on")
	p, _ := snap.Player(first)
	assert.Equal(t, 1300, p.Cash)
	assert.Equal(t, 1, p.TurnCount)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("driver did not stop")
	}
}

func TestDriverStopsWhenSessionCloses(t *testing.T) {
	s, ids := startSession(t, game.Options{Rand: rand.New(rand.NewSource(5))}, 2)
	d := NewDriver(s, ids[1], alwaysBuy{}, quietLogger())
	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	s.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("driver did not stop")
	}
}

func TestHeuristicAgentsPlayAGame(t *testing.T) {
	s, ids := startSession(t, game.Options{Rand: rand.New(rand.NewSource(11))}, 3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	for i, id := range ids {
		d := NewDriver(s, id, NewHeuristicPolicy(rand.New(rand.NewSource(int64(i)))), quietLogger())
		d.AuctionWindow = 5 * time.Millisecond
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Run(ctx)
		}()
	}

	assert.Eventually(t, func() bool {
		g := s.Snapshot().Record.Game
		return g.TurnCount >= 60 || g.Status == models.StatusFinished
	}, 10*time.Second, 10*time.Millisecond)
	cancel()
	wg.Wait()

	rec := s.Snapshot().Record
	accounted := rec.Game.MoneyReturned
	for _, p := range rec.Players {
		if p.Bankrupt {
			continue
		}
		accounted += p.Cash
		if p.Debt != nil {
			accounted += p.Debt.Amount
		}
	}
	assert.Equal(t, rec.Game.MoneyIssued, accounted, "money is conserved")

	owners := map[uuid.UUID]bool{}
	for _, o := range rec.Ownership {
		if o.Owned() {
			owners[o.Owner] = true
		}
	}
	assert.NotEmpty(t, owners, "agents bought something")
}
