package agent

import (
	"context"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/board"
	"github.com/jason-s-yu/tycoon/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuyScore(t *testing.T) {
	tb := newTable(1500, 1500)
	assert.Equal(t, 70, BuyScore(tb.view(), 1), "rich, cheap, rarely landed")
	assert.Equal(t, 98, BuyScore(tb.view(), 39), "score is capped")
	assert.Equal(t, 0, BuyScore(tb.view(), 0), "go cannot be bought")

	tb.own(tb.other, 3)
	assert.Equal(t, 98, BuyScore(tb.view(), 1), "blocking an opponent's pair")

	poor := newTable(70, 1500)
	assert.Equal(t, 5, BuyScore(poor.view(), 1))
}

func TestBuyScoreRewardsCompletingGroup(t *testing.T) {
	base := BuyScore(newTable(1500, 1500).view(), 18)
	withPair := newTable(1500, 1500)
	withPair.own(withPair.self, 16, 19)
	assert.Greater(t, BuyScore(withPair.view(), 18), base)
}

func TestHeuristicDecidePurchase(t *testing.T) {
	ctx := context.Background()
	h := NewHeuristicPolicy(rand.New(rand.NewSource(1)))

	tb := newTable(1500, 1500)
	dec, err := h.DecidePurchase(ctx, tb.view(), 1)
	require.NoError(t, err)
	assert.False(t, dec.Buy, "score below threshold")

	tb.own(tb.other, 3)
	dec, err = h.DecidePurchase(ctx, tb.view(), 1)
	require.NoError(t, err)
	assert.True(t, dec.Buy)

	// Score is high but the cash margin is too thin.
	thin := newTable(700, 1500)
	dec, err = h.DecidePurchase(ctx, thin.view(), 39)
	require.NoError(t, err)
	assert.False(t, dec.Buy)

	dec, err = h.DecidePurchase(ctx, tb.view(), 99)
	require.NoError(t, err)
	assert.Equal(t, FallbackPurchase, dec)
}

func TestHeuristicDecideTrade(t *testing.T) {
	ctx := context.Background()
	h := NewHeuristicPolicy(rand.New(rand.NewSource(1)))
	tb := newTable(1500, 1500)

	dec, err := h.DecideTrade(ctx, tb.view(), tb.offerFromOther(models.TradeTerms{OfferedCash: 200, RequestedCash: 100}))
	require.NoError(t, err)
	assert.Equal(t, TradeAccept, dec.Action)

	dec, err = h.DecideTrade(ctx, tb.view(), tb.offerFromOther(models.TradeTerms{OfferedCash: 10, RequestedCash: 100}))
	require.NoError(t, err)
	assert.Equal(t, TradeDecline, dec.Action)

	for i := 0; i < 10; i++ {
		dec, err = h.DecideTrade(ctx, tb.view(), tb.offerFromOther(models.TradeTerms{OfferedCash: 115, RequestedCash: 100}))
		require.NoError(t, err)
		assert.Contains(t, []TradeAction{TradeAccept, TradeDecline}, dec.Action)
	}
}

func TestHeuristicCountersSlightlyUnfavorableOffer(t *testing.T) {
	ctx := context.Background()
	h := NewHeuristicPolicy(rand.New(rand.NewSource(1)))
	tb := newTable(1500, 1500)
	tb.own(tb.other, 1)

	// Mediterranean (60) for 70 cash scores -14 for self.
	offer := tb.offerFromOther(models.TradeTerms{OfferedProperties: []int{1}, RequestedCash: 70})
	dec, err := h.DecideTrade(ctx, tb.view(), offer)
	require.NoError(t, err)
	require.Equal(t, TradeCounter, dec.Action)
	require.NotNil(t, dec.Counter)
	assert.Equal(t, []int{1}, dec.Counter.RequestedProperties)
	assert.Empty(t, dec.Counter.OfferedProperties)
	assert.Equal(t, 53, dec.Counter.OfferedCash)
	assert.Zero(t, dec.Counter.RequestedCash)

	broke := newTable(10, 1500)
	broke.own(broke.other, 1)
	dec, err = h.DecideTrade(ctx, broke.view(), broke.offerFromOther(models.TradeTerms{OfferedProperties: []int{1}, RequestedCash: 70}))
	require.NoError(t, err)
	assert.Equal(t, TradeDecline, dec.Action, "cannot pay for the counter")
}

func TestHeuristicDecideBuilding(t *testing.T) {
	ctx := context.Background()
	h := NewHeuristicPolicy(rand.New(rand.NewSource(1)))

	tb := newTable(1500, 1500)
	tb.own(tb.self, 1, 3, 16, 18, 19)
	dec, err := h.DecideBuilding(ctx, tb.view())
	require.NoError(t, err)
	require.True(t, dec.Build)
	assert.Equal(t, 16, dec.PropertyID, "orange before brown")

	tb.develop(1, 16)
	dec, err = h.DecideBuilding(ctx, tb.view())
	require.NoError(t, err)
	assert.Equal(t, 18, dec.PropertyID, "builds evenly")

	tb.develop(board.MaxDevelopment, 16, 18, 19)
	dec, err = h.DecideBuilding(ctx, tb.view())
	require.NoError(t, err)
	assert.Equal(t, 1, dec.PropertyID, "hotels everywhere in orange")

	reserve := newTable(550, 1500)
	reserve.own(reserve.self, 16, 18, 19)
	dec, err = h.DecideBuilding(ctx, reserve.view())
	require.NoError(t, err)
	assert.False(t, dec.Build, "keeps the cash reserve")

	mortgaged := newTable(1500, 1500)
	mortgaged.own(mortgaged.self, 16, 18, 19).mortgage(18)
	dec, err = h.DecideBuilding(ctx, mortgaged.view())
	require.NoError(t, err)
	assert.False(t, dec.Build)
}

func TestHeuristicPlanTrade(t *testing.T) {
	h := NewHeuristicPolicy(rand.New(rand.NewSource(1)))

	tb := newTable(1500, 1500)
	tb.own(tb.self, 16, 18).own(tb.other, 19)
	target, terms, ok := h.PlanTrade(tb.view())
	require.True(t, ok)
	assert.Equal(t, tb.other, target)
	assert.Equal(t, []int{19}, terms.RequestedProperties)
	assert.Equal(t, 320, terms.OfferedCash)

	poor := newTable(700, 1500)
	poor.own(poor.self, 16, 18).own(poor.other, 19)
	_, _, ok = h.PlanTrade(poor.view())
	assert.False(t, ok)

	nothing := newTable(1500, 1500)
	nothing.own(nothing.self, 16)
	_, _, ok = h.PlanTrade(nothing.view())
	assert.False(t, ok)
}

func TestHeuristicNeverCountersACounter(t *testing.T) {
	h := NewHeuristicPolicy(rand.New(rand.NewSource(1)))
	tb := newTable(1500, 1500)
	tb.own(tb.other, 1)
	offer := tb.offerFromOther(models.TradeTerms{OfferedProperties: []int{1}, RequestedCash: 70})
	offer.ParentID = uuid.New()

	dec, err := h.DecideTrade(context.Background(), tb.view(), offer)
	require.NoError(t, err)
	assert.Equal(t, TradeDecline, dec.Action)
}
