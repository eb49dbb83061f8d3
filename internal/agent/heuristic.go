package agent

import (
	"context"
	"math/rand"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/board"
	"github.com/jason-s-yu/tycoon/internal/game"
	"github.com/jason-s-yu/tycoon/internal/models"
)

const (
	// DefaultReserve is the cash a heuristic agent keeps back when building or trading.
	DefaultReserve = 500

	buyScoreThreshold = 72
	buyCashFactor     = 1.8

	acceptAlways   = 30
	acceptLikely   = 10
	acceptMaybe    = 0
	counterFloor   = -30
	counterMargin  = 110 // percent of what is given the counter asks to receive
	completeFactor = 1.6
)

// HeuristicPolicy is a rule-based policy. Borderline trade decisions draw from its random
// source, which is safe for concurrent use.
type HeuristicPolicy struct {
	Reserve int

	mu  sync.Mutex
	rng *rand.Rand
}

func NewHeuristicPolicy(rng *rand.Rand) *HeuristicPolicy {
	return &HeuristicPolicy{Reserve: DefaultReserve, rng: rng}
}

func (h *HeuristicPolicy) chance(p float64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rng.Float64() < p
}

// DecidePurchase buys when the buy score is high and the price leaves a comfortable margin.
func (h *HeuristicPolicy) DecidePurchase(_ context.Context, v View, propertyID int) (PurchaseDecision, error) {
	sq, ok := v.Board().Square(propertyID)
	if !ok {
		return FallbackPurchase, nil
	}
	score := BuyScore(v, propertyID)
	buy := score >= buyScoreThreshold && float64(v.Me().Cash) > float64(sq.Price)*buyCashFactor
	return PurchaseDecision{Buy: buy}, nil
}

// DecideTrade accepts clearly favorable offers and gambles on marginal ones. A slightly
// unfavorable original offer gets one counter; counters are never countered again.
func (h *HeuristicPolicy) DecideTrade(_ context.Context, v View, offer models.TradeOffer) (TradeDecision, error) {
	fav, err := game.OfferFavorability(v.Board(), &offer, v.Self)
	if err != nil {
		return FallbackTrade, err
	}
	switch {
	case fav >= acceptAlways:
		return TradeDecision{Action: TradeAccept}, nil
	case fav >= acceptLikely:
		if h.chance(0.7) {
			return TradeDecision{Action: TradeAccept}, nil
		}
		return TradeDecision{Action: TradeDecline}, nil
	case fav >= acceptMaybe:
		if h.chance(0.3) {
			return TradeDecision{Action: TradeAccept}, nil
		}
		return TradeDecision{Action: TradeDecline}, nil
	case fav >= counterFloor && offer.ParentID == uuid.Nil:
		received := game.TermsValue(v.Board(), offer.OfferedProperties, offer.OfferedCash)
		given := game.TermsValue(v.Board(), offer.RequestedProperties, offer.RequestedCash)
		extra := (given*counterMargin+99)/100 - received
		terms := counterTerms(offer, extra)
		if affordableCounter(v, offer, terms) {
			return TradeDecision{Action: TradeCounter, Counter: &terms}, nil
		}
	}
	return TradeDecision{Action: TradeDecline}, nil
}

// DecideBuilding adds a house on the least developed property of the best buildable group,
// as long as the whole round of houses is affordable and the reserve is kept.
func (h *HeuristicPolicy) DecideBuilding(_ context.Context, v View) (BuildDecision, error) {
	cash := v.Me().Cash
	for _, grp := range buildableGroups(v) {
		minLevel, maxLevel := board.MaxDevelopment, 0
		for _, id := range grp.Members {
			o, _ := v.Snap.Ownership(id)
			if o.Development < minLevel {
				minLevel = o.Development
			}
			if o.Development > maxLevel {
				maxLevel = o.Development
			}
		}
		if minLevel >= board.MaxDevelopment || maxLevel > minLevel+1 {
			continue
		}
		first, _ := v.Board().Square(grp.Members[0])
		cost := first.HouseCost
		if cost <= 0 || cash/cost < len(grp.Members) || cash-cost < h.Reserve {
			continue
		}
		for _, id := range grp.Members {
			if o, _ := v.Snap.Ownership(id); o.Development == minLevel {
				return BuildDecision{Build: true, PropertyID: id}, nil
			}
		}
	}
	return BuildDecision{}, nil
}

// PlanTrade looks for a colour group missing exactly one property held by an opponent and
// offers cash for it.
func (h *HeuristicPolicy) PlanTrade(v View) (uuid.UUID, models.TradeTerms, bool) {
	me := v.Me()
	type want struct {
		group  string
		id     int
		owner  uuid.UUID
		amount int
	}
	var wants []want
	for _, gid := range v.Board().Groups() {
		grp, _ := v.Board().Group(gid)
		if len(grp.Members) < 2 {
			continue
		}
		first, _ := v.Board().Square(grp.Members[0])
		if !first.Developable() || v.Snap.CountOwnedInGroup(v.Self, gid) != len(grp.Members)-1 {
			continue
		}
		for _, id := range grp.Members {
			o, _ := v.Snap.Ownership(id)
			if o.Owner == v.Self || o.Owner == uuid.Nil || o.Development > 0 {
				continue
			}
			sq, _ := v.Board().Square(id)
			wants = append(wants, want{group: gid, id: id, owner: o.Owner, amount: int(float64(sq.Price) * completeFactor)})
		}
	}
	sort.SliceStable(wants, func(i, j int) bool { return priorityOf(wants[i].group) < priorityOf(wants[j].group) })
	for _, w := range wants {
		if me.Cash-w.amount < h.Reserve {
			continue
		}
		return w.owner, models.TradeTerms{OfferedCash: w.amount, RequestedProperties: []int{w.id}}, true
	}
	return uuid.Nil, models.TradeTerms{}, false
}
