// internal/game/game_test.go
package game

import (
	"errors"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/board"
	"github.com/jason-s-yu/tycoon/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// setupTestGame starts a classic game with numPlayers participants, scripted dice and no card
// effects unless draws are given.
func setupTestGame(t *testing.T, numPlayers int, rules *models.Rules, rolls ...[2]int) (*TycoonGame, []*models.Player, *fakeClock, *FixedDraws) {
	t.Helper()
	r := models.DefaultRules()
	if rules != nil {
		r = *rules
	}
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	draws := &FixedDraws{}
	g := NewTycoonGame(board.Classic(), r, Options{
		Dice:   &FixedDice{Rolls: rolls},
		Draws:  draws,
		Clock:  clock.Now,
		Rand:   rand.New(rand.NewSource(1)),
		Logger: quietLogger(),
	})
	players := make([]*models.Player, numPlayers)
	for i := 0; i < numPlayers; i++ {
		p, err := g.Join(uuid.New(), string(rune('A'+i)), models.KindHuman)
		require.NoError(t, err)
		players[i] = p
	}
	require.NoError(t, g.Start())
	g.drainEvents()
	return g, players, clock, draws
}

// give hands properties to owner without moving money.
func give(g *TycoonGame, owner *models.Player, ids ...int) {
	for _, id := range ids {
		g.Ownership[id].Owner = owner.ID
	}
}

// setCash overrides a balance while keeping the bank's books balanced.
func setCash(g *TycoonGame, p *models.Player, cash int) {
	g.MoneyIssued += cash - p.Cash
	p.Cash = cash
}

func assertMoneyConserved(t *testing.T, g *TycoonGame) {
	t.Helper()
	issued, accounted := g.MoneyInPlay()
	assert.Equal(t, issued, accounted, "money issued must equal cash + debt + returned")
}

func hasEvent(events []GameEvent, typ GameEventType) bool {
	for _, ev := range events {
		if ev.Type == typ {
			return true
		}
	}
	return false
}

func TestBuyUnownedProperty(t *testing.T) {
	g, players, _, _ := setupTestGame(t, 2, nil, [2]int{2, 3})
	p := players[0]

	require.NoError(t, g.Roll(p.ID))
	assert.Equal(t, 5, p.Position)
	assert.Equal(t, models.PhaseAwaitingPurchase, g.Phase)
	assert.Equal(t, 5, g.PendingProperty)

	require.NoError(t, g.BuyProperty(p.ID, 5))
	assert.Equal(t, 1300, p.Cash)
	assert.Equal(t, p.ID, g.Ownership[5].Owner)
	assert.Equal(t, models.PhasePostLanding, g.Phase)

	err := g.BuyProperty(p.ID, 5)
	assert.True(t, errors.Is(err, ErrInvalidState))
	assertMoneyConserved(t, g)
}

func TestBuyWithoutFunds(t *testing.T) {
	g, players, _, _ := setupTestGame(t, 2, nil, [2]int{2, 3})
	p := players[0]
	setCash(g, p, 100)

	require.NoError(t, g.Roll(p.ID))
	err := g.BuyProperty(p.ID, 5)
	assert.True(t, errors.Is(err, ErrInsufficientFunds))
	assert.Equal(t, 100, p.Cash)
	assert.False(t, g.Ownership[5].Owned())
}

func TestTradeCompletesMonopoly(t *testing.T) {
	g, players, _, _ := setupTestGame(t, 2, nil)
	p, q := players[0], players[1]
	give(g, p, 1, 6)
	give(g, q, 3)
	require.False(t, g.HasMonopoly(p.ID, board.GroupBrown))

	offer, err := g.ProposeTrade(p.ID, q.ID, models.TradeTerms{
		OfferedProperties:   []int{6},
		OfferedCash:         100,
		RequestedProperties: []int{3},
	})
	require.NoError(t, err)

	fav, err := g.TradeFavorability(offer.ID, q.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, fav)
	fav, err = g.TradeFavorability(offer.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, -70, fav)

	require.NoError(t, g.AcceptTrade(q.ID, offer.ID))
	assert.True(t, g.HasMonopoly(p.ID, board.GroupBrown))
	assert.Equal(t, q.ID, g.Ownership[6].Owner)
	assert.Equal(t, 1400, p.Cash)
	assert.Equal(t, 1600, q.Cash)
	assert.Equal(t, models.TradeAccepted, g.Trades[offer.ID].Status)
	assertMoneyConserved(t, g)
}

func TestLiquidationRecoversParticipant(t *testing.T) {
	g, players, _, _ := setupTestGame(t, 2, nil, [2]int{2, 3})
	p, q := players[0], players[1]
	give(g, p, 31, 32, 34)
	g.Ownership[31].Development = 1
	give(g, q, 5, 15, 25, 35)
	setCash(g, p, 50)

	require.NoError(t, g.Roll(p.ID))
	events := g.drainEvents()

	assert.True(t, hasEvent(events, EventLiquidationStarted))
	assert.True(t, hasEvent(events, EventPlayerRecovered))
	assert.Equal(t, 0, g.Ownership[31].Development, "the house is sold first")
	assert.True(t, g.Ownership[34].Mortgaged, "the priciest undeveloped property is mortgaged")
	assert.False(t, g.Ownership[32].Mortgaged)
	assert.Equal(t, 110, p.Cash)
	assert.Nil(t, p.Debt)
	assert.False(t, p.Bankrupt)
	assert.Equal(t, 1700, q.Cash, "creditor is paid in full")
	assert.Equal(t, models.PhasePostLanding, g.Phase)
	assertMoneyConserved(t, g)
}

func TestBankruptcyTransfersToCreditor(t *testing.T) {
	rules := models.DefaultRules()
	rules.MortgageEnabled = false
	g, players, _, _ := setupTestGame(t, 3, &rules, [2]int{2, 3})
	p, q, r := players[0], players[1], players[2]
	give(g, p, 1)
	give(g, q, 5, 15, 25, 35)
	p.JailCards = 1
	setCash(g, p, 50)

	require.NoError(t, g.Roll(p.ID))

	assert.True(t, p.Bankrupt)
	assert.Equal(t, 0, p.Cash)
	assert.Equal(t, q.ID, g.Ownership[1].Owner)
	assert.Equal(t, 1, q.JailCards)
	assert.Equal(t, 1550, q.Cash)
	assert.Equal(t, []uuid.UUID{q.ID, r.ID}, g.PlayerOrder)
	assert.Equal(t, []uuid.UUID{p.ID}, g.Eliminated)
	assert.Equal(t, models.StatusRunning, g.Status)
	assert.Equal(t, q.ID, g.current().ID)
	assert.Equal(t, models.PhaseAwaitingRoll, g.Phase)
	assertMoneyConserved(t, g)

	err := g.Roll(p.ID)
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestLiquidationSellsHighestRentFirstWhenUneven(t *testing.T) {
	rules := models.DefaultRules()
	rules.EvenBuild = false
	g, players, _, _ := setupTestGame(t, 2, &rules, [2]int{2, 3})
	p, q := players[0], players[1]
	give(g, p, 37, 39)
	g.Ownership[37].Development = 3
	g.Ownership[39].Development = 1
	give(g, q, 5, 15, 25, 35)
	setCash(g, p, 0)

	require.NoError(t, g.Roll(p.ID))

	assert.Equal(t, 0, g.Ownership[39].Development, "Boardwalk has the higher hotel rent")
	assert.Equal(t, 2, g.Ownership[37].Development)
	assert.Equal(t, 0, p.Cash)
	assert.False(t, p.Bankrupt)
	assertMoneyConserved(t, g)
}

func TestBankruptcyToBankClearsProperties(t *testing.T) {
	rules := models.DefaultRules()
	rules.MortgageEnabled = false
	g, players, _, _ := setupTestGame(t, 3, &rules, [2]int{1, 3})
	p := players[0]
	give(g, p, 1, 3)
	g.Ownership[1].Development = 1
	g.Ownership[3].Mortgaged = true
	setCash(g, p, 0)

	require.NoError(t, g.Roll(p.ID))

	assert.True(t, p.Bankrupt)
	for _, id := range []int{1, 3} {
		o := g.Ownership[id]
		assert.False(t, o.Owned(), "property %d returns to the bank", id)
		assert.False(t, o.Mortgaged)
		assert.Equal(t, 0, o.Development)
	}
	assertMoneyConserved(t, g)
}

func TestBankruptcyOfSecondToLastFinishesGame(t *testing.T) {
	rules := models.DefaultRules()
	rules.MortgageEnabled = false
	rules.MinTurnsForValidWin = 0
	g, players, _, _ := setupTestGame(t, 2, &rules, [2]int{2, 3})
	p, q := players[0], players[1]
	give(g, q, 5, 15, 25, 35)
	setCash(g, p, 50)

	require.NoError(t, g.Roll(p.ID))

	assert.Equal(t, models.StatusFinished, g.Status)
	assert.Equal(t, q.ID, g.WinnerID)
	assert.True(t, g.ValidWin)
	assert.Equal(t, 1, q.Placement)
	assert.Equal(t, 2, p.Placement)
	assertMoneyConserved(t, g)
}

func TestWinBelowMinimumTurnsIsNotValid(t *testing.T) {
	rules := models.DefaultRules()
	rules.MortgageEnabled = false
	g, players, _, _ := setupTestGame(t, 2, &rules, [2]int{2, 3})
	give(g, players[1], 5, 15, 25, 35)
	setCash(g, players[0], 50)

	require.NoError(t, g.Roll(players[0].ID))
	assert.Equal(t, models.StatusFinished, g.Status)
	assert.False(t, g.ValidWin)
}

func TestZeroBalanceIsSolvent(t *testing.T) {
	g, players, _, _ := setupTestGame(t, 2, nil, [2]int{2, 3})
	p, q := players[0], players[1]
	give(g, q, 5, 15, 25, 35)
	setCash(g, p, 200)

	require.NoError(t, g.Roll(p.ID))
	events := g.drainEvents()

	assert.Equal(t, 0, p.Cash)
	assert.False(t, p.Bankrupt)
	assert.Nil(t, p.Debt)
	assert.False(t, hasEvent(events, EventLiquidationStarted))
	assertMoneyConserved(t, g)
}

func TestRentFor(t *testing.T) {
	b := board.Classic()
	owner := uuid.New()
	own := map[int]*models.PropertyOwnership{}
	for _, id := range b.Properties() {
		own[id] = &models.PropertyOwnership{PropertyID: id}
	}
	lookup := func(id int) *models.PropertyOwnership { return own[id] }

	own[1].Owner = owner
	assert.Equal(t, 2, RentFor(b, lookup, 1, 7))
	own[3].Owner = owner
	assert.Equal(t, 4, RentFor(b, lookup, 1, 7), "undeveloped monopoly doubles site rent")
	own[1].Development = 2
	assert.Equal(t, 30, RentFor(b, lookup, 1, 7))
	own[3].Mortgaged = true
	assert.Equal(t, 0, RentFor(b, lookup, 3, 7))

	own[5].Owner = owner
	own[15].Owner = owner
	assert.Equal(t, 50, RentFor(b, lookup, 5, 7))

	own[12].Owner = owner
	assert.Equal(t, 28, RentFor(b, lookup, 12, 7))
	own[28].Owner = owner
	assert.Equal(t, 70, RentFor(b, lookup, 12, 7))

	assert.Equal(t, 0, RentFor(b, lookup, 39, 7), "bank-held")
}

func TestDevelopRequiresMonopolyAndEvenBuild(t *testing.T) {
	g, players, _, _ := setupTestGame(t, 2, nil)
	p := players[0]
	give(g, p, 1)

	err := g.DevelopProperty(p.ID, 1)
	assert.True(t, errors.Is(err, ErrMonopolyRequired))

	give(g, p, 3)
	require.NoError(t, g.DevelopProperty(p.ID, 1))
	assert.Equal(t, 1, g.Ownership[1].Development)
	assert.Equal(t, 1450, p.Cash)

	err = g.DevelopProperty(p.ID, 1)
	assert.True(t, errors.Is(err, ErrUnevenBuild))
	assert.Equal(t, 1, g.Ownership[1].Development)

	require.NoError(t, g.DevelopProperty(p.ID, 3))
	require.NoError(t, g.UndevelopProperty(p.ID, 1))
	assert.Equal(t, 0, g.Ownership[1].Development)
	assert.Equal(t, 1425, p.Cash)

	err = g.MortgageProperty(p.ID, 3)
	assert.True(t, errors.Is(err, ErrInvalidState), "developed property cannot be mortgaged")

	err = g.DevelopProperty(players[1].ID, 1)
	assert.True(t, errors.Is(err, ErrInvalidState), "only on your own turn")
	assertMoneyConserved(t, g)
}

func TestUnevenBuildAllowedWhenRuleOff(t *testing.T) {
	rules := models.DefaultRules()
	rules.EvenBuild = false
	g, players, _, _ := setupTestGame(t, 2, &rules)
	p := players[0]
	give(g, p, 1, 3)

	require.NoError(t, g.DevelopProperty(p.ID, 1))
	require.NoError(t, g.DevelopProperty(p.ID, 1))
	assert.Equal(t, 2, g.Ownership[1].Development)
}

func TestMortgagedGroupBlocksBuilding(t *testing.T) {
	g, players, _, _ := setupTestGame(t, 2, nil)
	p := players[0]
	give(g, p, 1, 3)

	require.NoError(t, g.MortgageProperty(p.ID, 3))
	assert.Equal(t, 1530, p.Cash)
	err := g.DevelopProperty(p.ID, 1)
	assert.True(t, errors.Is(err, ErrInvalidState))

	require.NoError(t, g.UnmortgageProperty(p.ID, 3))
	assert.Equal(t, 1530-UnmortgageCost(60, 10), p.Cash)
	require.NoError(t, g.DevelopProperty(p.ID, 1))
	assertMoneyConserved(t, g)
}

func TestUnmortgageCost(t *testing.T) {
	assert.Equal(t, 33, UnmortgageCost(60, 10))
	assert.Equal(t, 220, UnmortgageCost(400, 10))
	assert.Equal(t, 200, UnmortgageCost(400, 0))
}

func TestFavorability(t *testing.T) {
	assert.Equal(t, 100, Favorability(500, 0), "nothing given")
	assert.Equal(t, 50, Favorability(300, 200))
	assert.Equal(t, -50, Favorability(100, 200))
	assert.Equal(t, 100, Favorability(1000, 100))
	assert.Equal(t, -100, Favorability(0, 100))
	assert.Equal(t, 0, Favorability(200, 200))
	assert.Equal(t, 33, Favorability(400, 300))
	assert.Equal(t, Favorability(400, 300), Favorability(400, 300))
}

func TestCounterOfferRoundTrip(t *testing.T) {
	g, players, _, _ := setupTestGame(t, 2, nil)
	p, q := players[0], players[1]
	give(g, p, 6)
	give(g, q, 8)

	offer, err := g.ProposeTrade(p.ID, q.ID, models.TradeTerms{OfferedCash: 50, RequestedProperties: []int{8}})
	require.NoError(t, err)

	counter, err := g.CounterTrade(q.ID, offer.ID, models.TradeTerms{OfferedProperties: []int{8}, RequestedCash: 150})
	require.NoError(t, err)
	assert.Equal(t, models.TradeCountered, g.Trades[offer.ID].Status)
	assert.Equal(t, offer.ID, counter.ParentID)
	assert.Equal(t, q.ID, counter.ProposerID)
	assert.Equal(t, p.ID, counter.TargetID)

	err = g.AcceptTrade(q.ID, offer.ID)
	assert.True(t, errors.Is(err, ErrInvalidState), "countered offer is terminal")

	require.NoError(t, g.AcceptTrade(p.ID, counter.ID))
	assert.Equal(t, p.ID, g.Ownership[8].Owner)
	assert.Equal(t, 1350, p.Cash)
	assert.Equal(t, 1650, q.Cash)
	assertMoneyConserved(t, g)
}

func TestAcceptStaleOfferConflicts(t *testing.T) {
	g, players, _, _ := setupTestGame(t, 3, nil)
	p, q, r := players[0], players[1], players[2]
	give(g, p, 6)

	offer, err := g.ProposeTrade(p.ID, q.ID, models.TradeTerms{OfferedProperties: []int{6}, RequestedCash: 100})
	require.NoError(t, err)
	require.NoError(t, g.Transfer(6, r.ID))

	err = g.AcceptTrade(q.ID, offer.ID)
	assert.True(t, errors.Is(err, ErrTransferConflict))
	assert.Equal(t, models.TradeDeclined, g.Trades[offer.ID].Status)
	assert.Equal(t, r.ID, g.Ownership[6].Owner)
	assert.Equal(t, 1500, q.Cash)
}

func TestInvalidOffers(t *testing.T) {
	g, players, _, _ := setupTestGame(t, 2, nil)
	p, q := players[0], players[1]
	give(g, p, 1, 3)
	g.Ownership[1].Development = 1

	cases := map[string]models.TradeTerms{
		"empty":            {},
		"negative cash":    {OfferedCash: -5},
		"not owned":        {OfferedProperties: []int{6}},
		"developed":        {OfferedProperties: []int{1}},
		"listed twice":     {OfferedProperties: []int{3, 3}},
		"over balance":     {OfferedCash: 2000},
		"target too poor":  {RequestedCash: 2000},
		"not ownable":      {OfferedProperties: []int{0}},
		"wrong owner side": {RequestedProperties: []int{3}},
	}
	for name, terms := range cases {
		_, err := g.ProposeTrade(p.ID, q.ID, terms)
		assert.Truef(t, errors.Is(err, ErrInvalidOffer), "%s: got %v", name, err)
	}
	_, err := g.ProposeTrade(p.ID, p.ID, models.TradeTerms{OfferedCash: 10})
	assert.True(t, errors.Is(err, ErrInvalidOffer))
	assert.Empty(t, g.Trades)
}

func TestCancelTrade(t *testing.T) {
	g, players, _, _ := setupTestGame(t, 2, nil)
	p, q := players[0], players[1]
	offer, err := g.ProposeTrade(p.ID, q.ID, models.TradeTerms{OfferedCash: 10})
	require.NoError(t, err)

	err = g.CancelTrade(q.ID, offer.ID)
	assert.True(t, errors.Is(err, ErrInvalidState), "only the proposer withdraws")
	require.NoError(t, g.CancelTrade(p.ID, offer.ID))
	assert.Equal(t, models.TradeExpired, g.Trades[offer.ID].Status)
	assert.True(t, errors.Is(g.DeclineTrade(q.ID, offer.ID), ErrInvalidState))
}

func TestPassingGoCreditsOnce(t *testing.T) {
	g, players, _, _ := setupTestGame(t, 2, nil, [2]int{1, 2})
	p := players[0]
	p.Position = 38

	require.NoError(t, g.Roll(p.ID))
	assert.Equal(t, 1, p.Position)
	assert.Equal(t, 1700, p.Cash)
	assert.Equal(t, models.PhaseAwaitingPurchase, g.Phase)
	assertMoneyConserved(t, g)
}

func TestGoToJailSquare(t *testing.T) {
	g, players, _, _ := setupTestGame(t, 2, nil, [2]int{2, 3})
	p := players[0]
	p.Position = 25

	require.NoError(t, g.Roll(p.ID))
	assert.True(t, p.InJail)
	assert.Equal(t, 10, p.Position)
	assert.Equal(t, 1500, p.Cash)
	assert.Equal(t, models.PhasePostLanding, g.Phase)
	require.NoError(t, g.EndTurn(p.ID))
	assert.Equal(t, players[1].ID, g.current().ID)
}

func TestThreeDoublesGoesToJail(t *testing.T) {
	g, players, _, _ := setupTestGame(t, 2, nil, [2]int{1, 1})
	p := players[0]

	require.NoError(t, g.Roll(p.ID))
	assert.True(t, g.ExtraRoll)
	assert.Equal(t, models.PhaseAwaitingRoll, g.Phase)
	err := g.EndTurn(p.ID)
	assert.True(t, errors.Is(err, ErrInvalidState), "extra roll pending")

	require.NoError(t, g.Roll(p.ID))
	assert.Equal(t, 4, p.Position)
	assert.Equal(t, 1300, p.Cash, "income tax")

	require.NoError(t, g.Roll(p.ID))
	assert.True(t, p.InJail)
	assert.Equal(t, 10, p.Position)
	assert.False(t, g.ExtraRoll)
	assert.Equal(t, models.PhasePostLanding, g.Phase)
	assertMoneyConserved(t, g)
}

func TestJailFineAfterMaxRolls(t *testing.T) {
	g, players, _, _ := setupTestGame(t, 2, nil, [2]int{1, 2})
	p := players[0]
	p.Position = 10
	p.InJail = true
	p.JailRolls = 2

	require.NoError(t, g.Roll(p.ID))
	assert.False(t, p.InJail)
	assert.Equal(t, 13, p.Position)
	assert.Equal(t, 1450, p.Cash)
	assert.Equal(t, models.PhaseAwaitingPurchase, g.Phase)
	assertMoneyConserved(t, g)
}

func TestJailRollFailsAndStays(t *testing.T) {
	g, players, _, _ := setupTestGame(t, 2, nil, [2]int{1, 2})
	p := players[0]
	p.Position = 10
	p.InJail = true

	require.NoError(t, g.Roll(p.ID))
	assert.True(t, p.InJail)
	assert.Equal(t, 1, p.JailRolls)
	assert.Equal(t, 10, p.Position)
	assert.Equal(t, models.PhasePostLanding, g.Phase)
}

func TestPayJailFineAndUseCard(t *testing.T) {
	g, players, _, _ := setupTestGame(t, 2, nil)
	p := players[0]
	p.Position = 10
	p.InJail = true

	err := g.UseJailCard(p.ID)
	assert.True(t, errors.Is(err, ErrInvalidState))

	require.NoError(t, g.PayJailFine(p.ID))
	assert.False(t, p.InJail)
	assert.Equal(t, 1450, p.Cash)

	p.InJail = true
	p.JailCards = 1
	require.NoError(t, g.UseJailCard(p.ID))
	assert.False(t, p.InJail)
	assert.Equal(t, 0, p.JailCards)
	assertMoneyConserved(t, g)
}

func TestAuction(t *testing.T) {
	rules := models.DefaultRules()
	rules.AuctionEnabled = true
	g, players, _, _ := setupTestGame(t, 3, &rules, [2]int{2, 3})
	p, q, r := players[0], players[1], players[2]

	require.NoError(t, g.Roll(p.ID))
	require.NoError(t, g.DeclinePurchase(p.ID, 5))
	assert.Equal(t, models.PhaseAuction, g.Phase)

	require.NoError(t, g.Bid(q.ID, 150))
	assert.True(t, errors.Is(g.Bid(r.ID, 100), ErrInvalidState))
	assert.True(t, errors.Is(g.Bid(r.ID, 5000), ErrInsufficientFunds))

	require.NoError(t, g.CloseAuction(p.ID))
	assert.Equal(t, q.ID, g.Ownership[5].Owner)
	assert.Equal(t, 1350, q.Cash)
	assert.Equal(t, models.PhasePostLanding, g.Phase)
	assertMoneyConserved(t, g)
}

func TestEndTurnDuringAuctionKeepsExtraRoll(t *testing.T) {
	rules := models.DefaultRules()
	rules.AuctionEnabled = true
	g, players, _, _ := setupTestGame(t, 2, &rules, [2]int{3, 3}, [2]int{1, 2})
	p, q := players[0], players[1]

	require.NoError(t, g.Roll(p.ID))
	require.NoError(t, g.DeclinePurchase(p.ID, 6))
	require.Equal(t, models.PhaseAuction, g.Phase)
	require.NoError(t, g.Bid(q.ID, 50))

	require.NoError(t, g.EndTurn(p.ID))
	assert.Equal(t, q.ID, g.Ownership[6].Owner, "the auction still closes")
	assert.Equal(t, p.ID, g.current().ID, "doubles keep the turn")
	assert.Equal(t, models.PhaseAwaitingRoll, g.Phase)

	require.NoError(t, g.Roll(p.ID))
	assert.Equal(t, 9, p.Position)
	assertMoneyConserved(t, g)
}

func TestDeclineWithoutAuction(t *testing.T) {
	g, players, _, _ := setupTestGame(t, 2, nil, [2]int{2, 3})
	p := players[0]

	require.NoError(t, g.Roll(p.ID))
	err := g.EndTurn(p.ID)
	assert.True(t, errors.Is(err, ErrInvalidState), "purchase decision pending")
	require.NoError(t, g.DeclinePurchase(p.ID, 5))
	assert.Equal(t, models.PhasePostLanding, g.Phase)
	assert.False(t, g.Ownership[5].Owned())
	require.NoError(t, g.EndTurn(p.ID))
}

func TestTurnOrderAndGating(t *testing.T) {
	g, players, _, _ := setupTestGame(t, 2, nil, [2]int{1, 2})
	p, q := players[0], players[1]

	assert.True(t, errors.Is(g.Roll(q.ID), ErrInvalidState))
	assert.True(t, errors.Is(g.EndTurn(p.ID), ErrInvalidState), "must roll first")

	require.NoError(t, g.Roll(p.ID))
	require.NoError(t, g.DeclinePurchase(p.ID, 3))
	require.NoError(t, g.EndTurn(p.ID))
	assert.Equal(t, 1, p.TurnCount)
	assert.Equal(t, q.ID, g.current().ID)
	assert.Equal(t, models.PhaseAwaitingRoll, g.Phase)
}

func TestStartAndJoinRules(t *testing.T) {
	g := NewTycoonGame(board.Classic(), models.DefaultRules(), Options{Logger: quietLogger()})
	user := uuid.New()
	_, err := g.Join(user, "solo", models.KindHuman)
	require.NoError(t, err)

	_, err = g.Join(user, "again", models.KindHuman)
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.True(t, errors.Is(g.Start(), ErrInvalidState), "needs two participants")

	_, err = g.Join(uuid.New(), "bot", models.KindAgent)
	require.NoError(t, err)
	require.NoError(t, g.Start())
	assert.Equal(t, models.StatusRunning, g.Status)

	_, err = g.Join(uuid.New(), "late", models.KindHuman)
	assert.True(t, errors.Is(err, ErrInvalidState))

	require.NoError(t, g.Cancel("test"))
	assert.True(t, errors.Is(g.Cancel("again"), ErrInvalidState))
}

func TestShieldAndDoubleRent(t *testing.T) {
	g, players, _, _ := setupTestGame(t, 2, nil, [2]int{2, 3})
	p, q := players[0], players[1]
	give(g, q, 5)

	shield, err := g.GrantPerk(models.PerkEffect{Kind: models.PerkShield, OwnerID: p.ID})
	require.NoError(t, err)
	assert.True(t, shield.Armed)
	_, err = g.GrantPerk(models.PerkEffect{Kind: models.PerkDoubleRent, OwnerID: q.ID})
	require.NoError(t, err)

	require.NoError(t, g.Roll(p.ID))
	assert.Equal(t, 1500, p.Cash, "shield absorbs the rent")
	assert.Len(t, g.Perks, 1)

	p.Position = 0
	g.Phase = models.PhaseAwaitingRoll
	require.NoError(t, g.Roll(p.ID))
	assert.Equal(t, 1450, p.Cash, "owner collects double")
	assert.Equal(t, 1550, q.Cash)
	assert.Empty(t, g.Perks)
	assertMoneyConserved(t, g)
}

func TestExactRollPerk(t *testing.T) {
	g, players, _, _ := setupTestGame(t, 2, nil, [2]int{1, 1})
	p := players[0]
	pk, err := g.GrantPerk(models.PerkEffect{Kind: models.PerkExactRoll, OwnerID: p.ID, Strength: 2})
	require.NoError(t, err)

	err = g.ActivatePerk(p.ID, pk.ID, PerkParams{Total: 13})
	assert.True(t, errors.Is(err, ErrInvalidState))
	require.NoError(t, g.ActivatePerk(p.ID, pk.ID, PerkParams{Total: 7}))

	require.NoError(t, g.Roll(p.ID))
	assert.Equal(t, 7, p.Position)
	assert.False(t, g.ExtraRoll, "an exact roll never counts as doubles")
	assert.Equal(t, models.PhasePostLanding, g.Phase)
	assert.Empty(t, g.Perks)
}

func TestTeleportPassGo(t *testing.T) {
	g, players, _, _ := setupTestGame(t, 2, nil)
	p := players[0]
	p.Position = 5

	back, err := g.GrantPerk(models.PerkEffect{Kind: models.PerkTeleport, OwnerID: p.ID})
	require.NoError(t, err)
	require.NoError(t, g.ActivatePerk(p.ID, back.ID, PerkParams{Target: 35, Backward: true}))
	assert.Equal(t, 35, p.Position)
	assert.Equal(t, 1500, p.Cash, "backward teleport earns nothing by default")

	g.Phase = models.PhaseAwaitingRoll
	fwd, err := g.GrantPerk(models.PerkEffect{Kind: models.PerkTeleport, OwnerID: p.ID})
	require.NoError(t, err)
	require.NoError(t, g.ActivatePerk(p.ID, fwd.ID, PerkParams{Target: 1}))
	assert.Equal(t, 1, p.Position)
	assert.Equal(t, 1700, p.Cash)
	assert.Equal(t, models.PhaseAwaitingPurchase, g.Phase)
	assertMoneyConserved(t, g)
}

func TestTeleportBackwardRule(t *testing.T) {
	rules := models.DefaultRules()
	rules.PassGoOnBackwardTeleport = true
	g, players, _, _ := setupTestGame(t, 2, &rules)
	p := players[0]
	p.Position = 5

	pk, err := g.GrantPerk(models.PerkEffect{Kind: models.PerkTeleport, OwnerID: p.ID})
	require.NoError(t, err)
	require.NoError(t, g.ActivatePerk(p.ID, pk.ID, PerkParams{Target: 35, Backward: true}))
	assert.Equal(t, 1700, p.Cash)
}

func TestCashPerksAndPassiveActivation(t *testing.T) {
	g, players, _, _ := setupTestGame(t, 2, nil)
	p, q := players[0], players[1]

	cash, err := g.GrantPerk(models.PerkEffect{Kind: models.PerkCashTiered, OwnerID: q.ID, Strength: 3})
	require.NoError(t, err)
	require.NoError(t, g.ActivatePerk(q.ID, cash.ID, PerkParams{}), "not turn-gated")
	assert.Equal(t, 1550, q.Cash)

	refund, err := g.GrantPerk(models.PerkEffect{Kind: models.PerkTaxRefund, OwnerID: p.ID, Strength: 9})
	require.NoError(t, err)
	assert.Equal(t, 5, refund.Strength)
	require.NoError(t, g.ActivatePerk(p.ID, refund.ID, PerkParams{}))
	assert.Equal(t, 1700, p.Cash)

	shield, err := g.GrantPerk(models.PerkEffect{Kind: models.PerkShield, OwnerID: p.ID})
	require.NoError(t, err)
	assert.True(t, errors.Is(g.ActivatePerk(p.ID, shield.ID, PerkParams{}), ErrInvalidState))
	assert.True(t, errors.Is(g.ActivatePerk(q.ID, shield.ID, PerkParams{}), ErrInvalidState))
	assert.True(t, errors.Is(g.ActivatePerk(p.ID, uuid.New(), PerkParams{}), ErrNotFound))
	assertMoneyConserved(t, g)
}

func TestExtraTurnPerk(t *testing.T) {
	g, players, _, _ := setupTestGame(t, 2, nil, [2]int{1, 2})
	p, q := players[0], players[1]

	pk, err := g.GrantPerk(models.PerkEffect{Kind: models.PerkExtraTurn, OwnerID: q.ID})
	require.NoError(t, err)
	assert.True(t, errors.Is(g.ActivatePerk(q.ID, pk.ID, PerkParams{}), ErrInvalidState))

	mine, err := g.GrantPerk(models.PerkEffect{Kind: models.PerkExtraTurn, OwnerID: p.ID})
	require.NoError(t, err)
	require.NoError(t, g.ActivatePerk(p.ID, mine.ID, PerkParams{}))
	require.NoError(t, g.Roll(p.ID))
	require.NoError(t, g.DeclinePurchase(p.ID, 3))
	require.NoError(t, g.EndTurn(p.ID))

	assert.Equal(t, p.ID, g.current().ID)
	assert.Equal(t, 1, p.TurnCount)
	assert.Equal(t, models.PhaseAwaitingRoll, g.Phase)
}

func TestCardEffects(t *testing.T) {
	g, players, _, draws := setupTestGame(t, 3, nil, [2]int{1, 1}, [2]int{2, 3})
	p, q, r := players[0], players[1], players[2]
	draws.Effects = []Effect{
		{Kind: EffectCollectFromEach, Amount: 50},
		{Kind: EffectAdvanceTo, Target: 0},
	}

	require.NoError(t, g.Roll(p.ID)) // community chest at 2
	assert.Equal(t, 1600, p.Cash)
	assert.Equal(t, 1450, q.Cash)
	assert.Equal(t, 1450, r.Cash)

	require.NoError(t, g.Roll(p.ID)) // chance at 7, advance to go
	assert.Equal(t, 0, p.Position)
	assert.Equal(t, 1800, p.Cash)
	assertMoneyConserved(t, g)
}

func TestTimeLimitFinishesByNetWorth(t *testing.T) {
	rules := models.DefaultRules()
	rules.TimeLimitSec = 60
	g, players, clock, _ := setupTestGame(t, 3, &rules)
	give(g, players[1], 39)

	assert.False(t, g.Tick())
	clock.Advance(61 * time.Second)
	assert.True(t, g.Tick())

	assert.Equal(t, models.StatusFinished, g.Status)
	assert.Equal(t, players[1].ID, g.WinnerID)
	assert.False(t, g.ValidWin)
	assert.Equal(t, 1, players[1].Placement)
	assert.Equal(t, 2, players[0].Placement, "ties keep turn order")
	assert.Equal(t, 3, players[2].Placement)
	assert.False(t, g.Tick())
}

func TestRecordRestoreRoundTrip(t *testing.T) {
	g, players, _, _ := setupTestGame(t, 2, nil, [2]int{2, 3})
	give(g, players[1], 6, 8)
	require.NoError(t, g.Roll(players[0].ID))
	require.NoError(t, g.BuyProperty(players[0].ID, 5))
	_, err := g.ProposeTrade(players[0].ID, players[1].ID, models.TradeTerms{OfferedCash: 10, RequestedProperties: []int{8}})
	require.NoError(t, err)
	_, err = g.GrantPerk(models.PerkEffect{Kind: models.PerkShield, OwnerID: players[1].ID})
	require.NoError(t, err)

	rec := g.Record()
	require.NoError(t, ValidateRecord(g.Board, rec))
	restored := restoreTycoonGame(g.Board, rec, Options{Logger: quietLogger()})
	assert.Equal(t, rec, restored.Record())
}

func TestValidateRecordRejectsCorruption(t *testing.T) {
	g, players, _, _ := setupTestGame(t, 2, nil)
	give(g, players[0], 1)

	rec := g.Record()
	rec.Players[0].Position = 99
	err := ValidateRecord(g.Board, rec)
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.Contains(t, err.Error(), "corrupt session state")

	rec = g.Record()
	rec.Ownership[0].Owner = uuid.New()
	assert.Error(t, ValidateRecord(g.Board, rec))

	rec = g.Record()
	rec.Ownership[0].Development = 9
	assert.Error(t, ValidateRecord(g.Board, rec))
}

// TestSimulatedGameConservesMoney plays random turns and checks the books after every command.
func TestSimulatedGameConservesMoney(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		rng := rand.New(rand.NewSource(seed))
		g := NewTycoonGame(board.Classic(), models.DefaultRules(), Options{Rand: rng, Logger: quietLogger()})
		for i := 0; i < 4; i++ {
			_, err := g.Join(uuid.New(), string(rune('A'+i)), models.KindAgent)
			require.NoError(t, err)
		}
		require.NoError(t, g.Start())

		for step := 0; step < 4000 && g.Status == models.StatusRunning; step++ {
			cur := g.current()
			require.NotNil(t, cur)
			switch g.Phase {
			case models.PhaseAwaitingRoll:
				require.NoError(t, g.Roll(cur.ID))
			case models.PhaseAwaitingPurchase:
				if err := g.BuyProperty(cur.ID, g.PendingProperty); err != nil {
					require.NoError(t, g.DeclinePurchase(cur.ID, g.PendingProperty))
				}
			case models.PhasePostLanding:
				require.NoError(t, g.EndTurn(cur.ID))
			default:
				t.Fatalf("seed %d: unexpected phase %s", seed, g.Phase)
			}
			g.drainEvents()
			issued, accounted := g.MoneyInPlay()
			require.Equalf(t, issued, accounted, "seed %d step %d", seed, step)
		}
		require.NoError(t, ValidateRecord(g.Board, g.Record()))
	}
}
