// internal/game/trade.go
package game

import (
	"math"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/board"
	"github.com/jason-s-yu/tycoon/internal/models"
)

// Favorability scores how advantageous a trade is: round(clamp((received-given)/given*100)).
// An empty given side is maximally favorable.
func Favorability(received, given int) int {
	if given == 0 {
		return 100
	}
	pct := float64(received-given) / float64(given) * 100
	pct = math.Max(-100, math.Min(100, pct))
	return int(math.Floor(pct + 0.5))
}

// TermsValue sums the market value of each side: property price plus cash.
func TermsValue(b *board.Board, props []int, cash int) int {
	total := cash
	for _, id := range props {
		if sq, ok := b.Square(id); ok {
			total += sq.Price
		}
	}
	return total
}

// OfferFavorability scores offer from perspective, which must be the proposer or the target.
func OfferFavorability(b *board.Board, offer *models.TradeOffer, perspective uuid.UUID) (int, error) {
	offered := TermsValue(b, offer.OfferedProperties, offer.OfferedCash)
	requested := TermsValue(b, offer.RequestedProperties, offer.RequestedCash)
	switch perspective {
	case offer.TargetID:
		return Favorability(offered, requested), nil
	case offer.ProposerID:
		return Favorability(requested, offered), nil
	}
	return 0, newError(KindInvalidState, "participant %s is not party to offer %s", perspective, offer.ID)
}

// validateTerms checks every property and cash amount against current state.
func (g *TycoonGame) validateTerms(proposer, target uuid.UUID, t models.TradeTerms) error {
	if proposer == target {
		return newError(KindInvalidOffer, "cannot trade with yourself")
	}
	from, err := g.activePlayer(proposer)
	if err != nil {
		return newError(KindInvalidOffer, "proposer: %v", err)
	}
	to, err := g.activePlayer(target)
	if err != nil {
		return newError(KindInvalidOffer, "target: %v", err)
	}
	if t.OfferedCash < 0 || t.RequestedCash < 0 {
		return newError(KindInvalidOffer, "cash amounts must not be negative")
	}
	if t.IsEmpty() {
		return newError(KindInvalidOffer, "empty trade")
	}
	seen := map[int]bool{}
	check := func(ids []int, owner uuid.UUID) error {
		for _, id := range ids {
			if seen[id] {
				return newError(KindInvalidOffer, "property %d listed twice", id)
			}
			seen[id] = true
			o, ok := g.Ownership[id]
			if !ok {
				return newError(KindInvalidOffer, "property %d is not ownable", id)
			}
			if o.Owner != owner {
				return newError(KindInvalidOffer, "property %d is not owned by %s", id, owner)
			}
			if o.Development > 0 {
				return newError(KindInvalidOffer, "property %d is developed", id)
			}
		}
		return nil
	}
	if err := check(t.OfferedProperties, proposer); err != nil {
		return err
	}
	if err := check(t.RequestedProperties, target); err != nil {
		return err
	}
	if t.OfferedCash > from.Cash {
		return newError(KindInvalidOffer, "offered cash %d exceeds balance %d", t.OfferedCash, from.Cash)
	}
	if t.RequestedCash > to.Cash {
		return newError(KindInvalidOffer, "requested cash %d exceeds balance %d", t.RequestedCash, to.Cash)
	}
	return nil
}

func (g *TycoonGame) trade(id uuid.UUID) (*models.TradeOffer, error) {
	t, ok := g.Trades[id]
	if !ok {
		return nil, newError(KindNotFound, "trade offer %s", id)
	}
	return t, nil
}

// ProposeTrade creates a Pending offer. Trades are not turn-gated.
func (g *TycoonGame) ProposeTrade(proposer, target uuid.UUID, terms models.TradeTerms) (*models.TradeOffer, error) {
	if err := g.requireRunning(); err != nil {
		return nil, err
	}
	return g.newOffer(proposer, target, terms, uuid.Nil)
}

func (g *TycoonGame) newOffer(proposer, target uuid.UUID, terms models.TradeTerms, parent uuid.UUID) (*models.TradeOffer, error) {
	if err := g.validateTerms(proposer, target, terms); err != nil {
		return nil, err
	}
	now := g.Clock()
	offer := &models.TradeOffer{
		ID:         uuid.New(),
		ParentID:   parent,
		ProposerID: proposer,
		TargetID:   target,
		TradeTerms: models.TradeTerms{
			OfferedProperties:   append([]int(nil), terms.OfferedProperties...),
			OfferedCash:         terms.OfferedCash,
			RequestedProperties: append([]int(nil), terms.RequestedProperties...),
			RequestedCash:       terms.RequestedCash,
		},
		Status:    models.TradePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	g.Trades[offer.ID] = offer
	g.emit(EventTradeProposed, proposer, map[string]interface{}{
		"offer_id":  offer.ID,
		"target":    target,
		"parent_id": parent,
	})
	return offer, nil
}

// pendingFor finds a Pending offer addressed to actor.
func (g *TycoonGame) pendingFor(actor, offerID uuid.UUID) (*models.TradeOffer, error) {
	if err := g.requireRunning(); err != nil {
		return nil, err
	}
	t, err := g.trade(offerID)
	if err != nil {
		return nil, err
	}
	if t.TargetID != actor {
		return nil, newError(KindInvalidState, "offer %s is not addressed to %s", offerID, actor)
	}
	if t.Terminal() {
		return nil, newError(KindInvalidState, "offer %s is %s", offerID, t.Status)
	}
	return t, nil
}

// AcceptTrade re-validates the offer and swaps everything atomically. If state moved on since
// the proposal the offer is declined and TransferConflict returned.
func (g *TycoonGame) AcceptTrade(actor, offerID uuid.UUID) error {
	t, err := g.pendingFor(actor, offerID)
	if err != nil {
		return err
	}
	if err := g.validateTerms(t.ProposerID, t.TargetID, t.TradeTerms); err != nil {
		g.setTradeStatus(t, models.TradeDeclined, EventTradeDeclined, uuid.Nil)
		return newError(KindTransferConflict, "offer %s no longer valid: %v", offerID, err)
	}
	from, _ := g.player(t.ProposerID)
	to, _ := g.player(t.TargetID)
	for _, id := range t.OfferedProperties {
		if err := g.Transfer(id, to.ID); err != nil {
			return err
		}
	}
	for _, id := range t.RequestedProperties {
		if err := g.Transfer(id, from.ID); err != nil {
			return err
		}
	}
	g.payPlayer(from, to, t.OfferedCash)
	g.payPlayer(to, from, t.RequestedCash)
	g.setTradeStatus(t, models.TradeAccepted, EventTradeAccepted, actor)
	return nil
}

// DeclineTrade rejects an offer addressed to actor.
func (g *TycoonGame) DeclineTrade(actor, offerID uuid.UUID) error {
	t, err := g.pendingFor(actor, offerID)
	if err != nil {
		return err
	}
	g.setTradeStatus(t, models.TradeDeclined, EventTradeDeclined, actor)
	return nil
}

// CounterTrade replaces an offer addressed to actor with new terms from actor's side.
// The original becomes Countered and the new offer links back to it.
func (g *TycoonGame) CounterTrade(actor, offerID uuid.UUID, terms models.TradeTerms) (*models.TradeOffer, error) {
	t, err := g.pendingFor(actor, offerID)
	if err != nil {
		return nil, err
	}
	if err := g.validateTerms(actor, t.ProposerID, terms); err != nil {
		return nil, err
	}
	g.setTradeStatus(t, models.TradeCountered, EventTradeCountered, actor)
	return g.newOffer(actor, t.ProposerID, terms, t.ID)
}

// CancelTrade expires a Pending offer. The proposer may withdraw it; uuid.Nil stands for an
// external expiry.
func (g *TycoonGame) CancelTrade(actor, offerID uuid.UUID) error {
	t, err := g.trade(offerID)
	if err != nil {
		return err
	}
	if actor != uuid.Nil && t.ProposerID != actor {
		return newError(KindInvalidState, "only the proposer may cancel offer %s", offerID)
	}
	if t.Terminal() {
		return newError(KindInvalidState, "offer %s is %s", offerID, t.Status)
	}
	g.setTradeStatus(t, models.TradeExpired, EventTradeExpired, actor)
	return nil
}

func (g *TycoonGame) setTradeStatus(t *models.TradeOffer, status models.TradeStatus, ev GameEventType, actor uuid.UUID) {
	t.Status = status
	t.UpdatedAt = g.Clock()
	g.emit(ev, actor, map[string]interface{}{
		"offer_id": t.ID,
		"proposer": t.ProposerID,
		"target":   t.TargetID,
	})
}

// expireTradesOf expires every Pending offer id is party to.
func (g *TycoonGame) expireTradesOf(id uuid.UUID) {
	for _, t := range g.Trades {
		if t.Status == models.TradePending && (t.ProposerID == id || t.TargetID == id) {
			g.setTradeStatus(t, models.TradeExpired, EventTradeExpired, uuid.Nil)
		}
	}
}

// TradeFavorability scores a live offer from perspective.
func (g *TycoonGame) TradeFavorability(offerID, perspective uuid.UUID) (int, error) {
	t, err := g.trade(offerID)
	if err != nil {
		return 0, err
	}
	return OfferFavorability(g.Board, t, perspective)
}
