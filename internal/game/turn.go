// internal/game/turn.go
package game

import (
	"sort"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/board"
	"github.com/jason-s-yu/tycoon/internal/models"
	"github.com/sirupsen/logrus"
)

// Join adds a participant while the game is Pending.
func (g *TycoonGame) Join(userID uuid.UUID, name string, kind models.ParticipantKind) (*models.Player, error) {
	if g.Status != models.StatusPending {
		return nil, newError(KindInvalidState, "cannot join a %s game", g.Status)
	}
	if kind != models.KindHuman && kind != models.KindAgent {
		return nil, newError(KindInvalidState, "unknown participant kind %q", kind)
	}
	for _, p := range g.Players {
		if userID != uuid.Nil && p.UserID == userID {
			return nil, newError(KindInvalidState, "user %s already joined", userID)
		}
	}
	p := &models.Player{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		Kind:      kind,
		TurnOrder: len(g.Players),
	}
	g.Players = append(g.Players, p)
	g.emit(EventPlayerJoined, p.ID, map[string]interface{}{"name": name, "kind": kind})
	return p, nil
}

// Start deals starting cash, fixes turn order and hands the first turn out.
func (g *TycoonGame) Start() error {
	if g.Status != models.StatusPending {
		return newError(KindInvalidState, "cannot start a %s game", g.Status)
	}
	if len(g.Players) < 2 {
		return newError(KindInvalidState, "need at least 2 participants, have %d", len(g.Players))
	}
	order := make([]*models.Player, len(g.Players))
	copy(order, g.Players)
	if g.Rules.RandomizePlayOrder {
		g.Rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	g.PlayerOrder = g.PlayerOrder[:0]
	for i, p := range order {
		p.TurnOrder = i
		g.PlayerOrder = append(g.PlayerOrder, p.ID)
	}
	g.Status = models.StatusRunning
	g.StartedAt = g.Clock()
	for _, p := range order {
		g.credit(p, g.Rules.StartingCash, "starting_cash")
	}
	g.ActiveIndex = 0
	g.emit(EventGameStarted, uuid.Nil, map[string]interface{}{"order": g.PlayerOrder})
	g.startTurn()
	return nil
}

// Cancel aborts a Pending or Running game.
func (g *TycoonGame) Cancel(reason string) error {
	if g.Status == models.StatusFinished || g.Status == models.StatusCancelled {
		return newError(KindInvalidState, "game already %s", g.Status)
	}
	g.Status = models.StatusCancelled
	g.EndedAt = g.Clock()
	for _, t := range g.Trades {
		if t.Status == models.TradePending {
			t.Status = models.TradeExpired
		}
	}
	g.emit(EventGameCancelled, uuid.Nil, map[string]interface{}{"reason": reason})
	return nil
}

// startTurn resets per-turn state for the participant at ActiveIndex.
func (g *TycoonGame) startTurn() {
	g.Phase = models.PhaseAwaitingRoll
	g.ExtraRoll = false
	g.PendingProperty = -1
	g.Auction = nil
	cur := g.current()
	if cur == nil {
		return
	}
	cur.Doubles = 0
	g.emit(EventPlayerTurn, cur.ID, map[string]interface{}{"turn": g.TurnCount})
}

// afterLanding is where a roll cycle suspends once its square is resolved.
func (g *TycoonGame) afterLanding() {
	if g.ExtraRoll {
		g.Phase = models.PhaseAwaitingRoll
	} else {
		g.Phase = models.PhasePostLanding
	}
}

// turnPassed reports whether p lost the turn mid-command (bankrupt or game over).
func (g *TycoonGame) turnPassed(p *models.Player) bool {
	return p.Bankrupt || g.Status != models.StatusRunning
}

// Roll rolls the dice (or consumes an exact-roll perk), moves and resolves the landing square.
func (g *TycoonGame) Roll(actor uuid.UUID) error {
	p, err := g.requireTurn(actor)
	if err != nil {
		return err
	}
	if g.Phase != models.PhaseAwaitingRoll {
		return newError(KindInvalidState, "cannot roll during %s", g.Phase)
	}
	g.ExtraRoll = false

	d1, d2 := g.Dice.Roll()
	doubles := d1 == d2
	if pk := g.armedPerk(p.ID, models.PerkExactRoll); pk != nil {
		d1 = pk.Value / 2
		d2 = pk.Value - d1
		doubles = false
		g.consumePerk(pk)
	}
	total := d1 + d2
	if pk := g.armedPerk(p.ID, models.PerkRollBoost); pk != nil {
		total += g.Rules.RollBoostBonus
		g.consumePerk(pk)
	}
	g.LastRoll = [2]int{d1, d2}
	g.emit(EventPlayerRolled, p.ID, map[string]interface{}{"dice": []int{d1, d2}, "total": total, "doubles": doubles})
	g.log.WithFields(logrus.Fields{"player": p.ID, "dice": g.LastRoll, "total": total}).Debug("rolled")

	if p.InJail {
		return g.rollInJail(p, total, doubles)
	}

	if doubles {
		p.Doubles++
		if g.Rules.ThreeDoublesToJail && p.Doubles >= 3 {
			g.sendToJail(p, "three_doubles")
			g.afterLanding()
			return nil
		}
	}
	g.moveBy(p, total, true)
	if g.turnPassed(p) {
		return nil
	}
	if doubles && !p.InJail {
		g.ExtraRoll = true
	}
	if g.Phase != models.PhaseAwaitingPurchase {
		g.afterLanding()
	}
	return nil
}

func (g *TycoonGame) rollInJail(p *models.Player, total int, doubles bool) error {
	if doubles {
		g.release(p, "doubles")
	} else {
		p.JailRolls++
		if p.JailRolls < g.Rules.MaxJailRolls {
			g.afterLanding()
			return nil
		}
		g.release(p, "fine")
		g.charge(p, uuid.Nil, g.Rules.JailFine)
		if g.turnPassed(p) {
			return nil
		}
	}
	g.moveBy(p, total, true)
	if g.turnPassed(p) {
		return nil
	}
	if g.Phase != models.PhaseAwaitingPurchase {
		g.afterLanding()
	}
	return nil
}

func (g *TycoonGame) sendToJail(p *models.Player, reason string) {
	jail := g.Board.JailPosition()
	if jail < 0 {
		return
	}
	p.Position = jail
	p.InJail = true
	p.JailRolls = 0
	p.Doubles = 0
	g.ExtraRoll = false
	g.emit(EventJailed, p.ID, map[string]interface{}{"reason": reason})
}

func (g *TycoonGame) release(p *models.Player, how string) {
	p.InJail = false
	p.JailRolls = 0
	g.emit(EventReleasedFromJail, p.ID, map[string]interface{}{"how": how})
}

// moveBy advances p by steps. Forward laps across go credit the pass-go amount exactly once
// per lap; backward moves never do.
func (g *TycoonGame) moveBy(p *models.Player, steps int, resolve bool) {
	size := g.Board.Size()
	from := p.Position
	raw := from + steps
	if steps > 0 {
		for laps := raw / size; laps > 0; laps-- {
			g.passGo(p)
		}
	}
	p.Position = ((raw % size) + size) % size
	g.emit(EventPlayerMoved, p.ID, map[string]interface{}{"from": from, "to": p.Position})
	if resolve {
		g.resolveSquare(p, rentModifier{})
	}
}

// moveTo sets p's position directly; crossesGo decides the lap credit.
func (g *TycoonGame) moveTo(p *models.Player, target int, crossesGo bool, mod rentModifier) {
	from := p.Position
	if crossesGo {
		g.passGo(p)
	}
	p.Position = target
	g.emit(EventPlayerMoved, p.ID, map[string]interface{}{"from": from, "to": target})
	g.resolveSquare(p, mod)
}

func (g *TycoonGame) passGo(p *models.Player) {
	g.emit(EventPassedGo, p.ID, nil)
	g.credit(p, g.Rules.PassGoAmount, "pass_go")
}

// resolveSquare dispatches on the square p landed on.
func (g *TycoonGame) resolveSquare(p *models.Player, mod rentModifier) {
	sq := g.Board.At(p.Position)
	switch {
	case sq.Ownable():
		o := g.Ownership[sq.ID]
		if !o.Owned() {
			g.Phase = models.PhaseAwaitingPurchase
			g.PendingProperty = sq.ID
			g.emit(EventPurchasePending, p.ID, map[string]interface{}{"property_id": sq.ID, "price": sq.Price})
			return
		}
		g.chargeRent(p, sq.ID, mod)
	case sq.Type == board.TypeTax:
		g.payTax(p, sq.Tax)
	case sq.Type == board.TypeChance || sq.Type == board.TypeCommunity:
		g.applyEffect(p, g.Draws.Draw(sq.Type))
	case sq.Corner == board.CornerGoToJail:
		g.sendToJail(p, "go_to_jail")
	}
}

// applyEffect carries out a drawn card.
func (g *TycoonGame) applyEffect(p *models.Player, e Effect) {
	g.emit(EventCardDrawn, p.ID, map[string]interface{}{"kind": e.Kind, "text": e.Text})
	switch e.Kind {
	case EffectCash:
		if e.Amount > 0 {
			g.credit(p, e.Amount, "card")
		} else {
			g.charge(p, uuid.Nil, -e.Amount)
		}
	case EffectCollectFromEach:
		for _, other := range g.othersInOrder(p.ID) {
			g.charge(other, p.ID, e.Amount)
			if g.Status != models.StatusRunning {
				return
			}
		}
	case EffectPayEach:
		for _, other := range g.othersInOrder(p.ID) {
			if p.Bankrupt {
				return
			}
			g.charge(p, other.ID, e.Amount)
		}
	case EffectAdvanceTo:
		g.moveTo(p, e.Target, e.Target <= p.Position, rentModifier{})
	case EffectMoveBy:
		g.moveBy(p, e.Steps, true)
	case EffectGoToJail:
		g.sendToJail(p, "card")
	case EffectJailCard:
		p.JailCards++
	case EffectRepairs:
		houses, hotels := 0, 0
		for _, id := range g.ownedBy(p.ID) {
			lvl := g.Ownership[id].Development
			if lvl == board.MaxDevelopment {
				hotels++
			} else {
				houses += lvl
			}
		}
		g.charge(p, uuid.Nil, houses*e.PerHouse+hotels*e.PerHotel)
	case EffectNearestRailroad, EffectNearestUtility:
		t := board.TypeRailroad
		mod := rentModifier{multiplier: e.Multiplier}
		if e.Kind == EffectNearestUtility {
			t = board.TypeUtility
			mod = rentModifier{diceMultiplier: e.Multiplier}
		}
		sq, ok := g.Board.Nearest(p.Position, t)
		if !ok {
			return
		}
		g.moveTo(p, sq.Position, sq.Position < p.Position, mod)
	}
}

// othersInOrder lists the other active participants in turn order.
func (g *TycoonGame) othersInOrder(id uuid.UUID) []*models.Player {
	var out []*models.Player
	for _, pid := range g.PlayerOrder {
		if pid == id {
			continue
		}
		if p, err := g.player(pid); err == nil {
			out = append(out, p)
		}
	}
	return out
}

// BuyProperty buys the property the active participant just landed on.
func (g *TycoonGame) BuyProperty(actor uuid.UUID, propertyID int) error {
	p, err := g.requireTurn(actor)
	if err != nil {
		return err
	}
	if g.Phase != models.PhaseAwaitingPurchase || g.PendingProperty != propertyID {
		return newError(KindInvalidState, "no purchase pending for property %d", propertyID)
	}
	_, sq, err := g.property(propertyID)
	if err != nil {
		return err
	}
	price := sq.Price
	discount := g.armedPerk(p.ID, models.PerkPropertyDiscount)
	if discount != nil {
		pct := models.Tier(g.Rules.DiscountTierPercents, discount.Strength)
		price -= price * pct / 100
	}
	if err := g.purchase(p, propertyID, price); err != nil {
		return err
	}
	if discount != nil {
		g.consumePerk(discount)
	}
	g.PendingProperty = -1
	g.afterLanding()
	return nil
}

// DeclinePurchase passes on the pending property, opening an auction when enabled.
func (g *TycoonGame) DeclinePurchase(actor uuid.UUID, propertyID int) error {
	p, err := g.requireTurn(actor)
	if err != nil {
		return err
	}
	if g.Phase != models.PhaseAwaitingPurchase || g.PendingProperty != propertyID {
		return newError(KindInvalidState, "no purchase pending for property %d", propertyID)
	}
	g.PendingProperty = -1
	g.emit(EventPurchaseDeclined, p.ID, map[string]interface{}{"property_id": propertyID})
	if g.Rules.AuctionEnabled {
		g.Phase = models.PhaseAuction
		g.Auction = &models.Auction{PropertyID: propertyID}
		g.emit(EventAuctionStarted, p.ID, map[string]interface{}{"property_id": propertyID})
		return nil
	}
	g.afterLanding()
	return nil
}

// Bid places a bid in the open auction. Any active participant may bid.
func (g *TycoonGame) Bid(actor uuid.UUID, amount int) error {
	if err := g.requireRunning(); err != nil {
		return err
	}
	p, err := g.activePlayer(actor)
	if err != nil {
		return err
	}
	if g.Phase != models.PhaseAuction || g.Auction == nil {
		return newError(KindInvalidState, "no auction open")
	}
	if amount <= g.Auction.HighBid {
		return newError(KindInvalidState, "bid %d must exceed %d", amount, g.Auction.HighBid)
	}
	if amount > p.Cash {
		return newError(KindInsufficientFunds, "bid %d exceeds cash %d", amount, p.Cash)
	}
	g.Auction.HighBid = amount
	g.Auction.HighBidder = p.ID
	g.emit(EventAuctionBid, p.ID, map[string]interface{}{"property_id": g.Auction.PropertyID, "amount": amount})
	return nil
}

// CloseAuction settles the open auction. Without bids the property stays with the bank.
func (g *TycoonGame) CloseAuction(actor uuid.UUID) error {
	if _, err := g.requireTurn(actor); err != nil {
		return err
	}
	if g.Phase != models.PhaseAuction || g.Auction == nil {
		return newError(KindInvalidState, "no auction open")
	}
	g.closeAuction()
	return nil
}

func (g *TycoonGame) closeAuction() {
	a := g.Auction
	g.Auction = nil
	winner := uuid.Nil
	if a.HighBidder != uuid.Nil {
		if bidder, err := g.activePlayer(a.HighBidder); err == nil {
			if err := g.purchase(bidder, a.PropertyID, a.HighBid); err == nil {
				winner = bidder.ID
			} else {
				g.log.WithError(err).Warn("auction winner could not pay")
			}
		}
	}
	g.emit(EventAuctionClosed, winner, map[string]interface{}{"property_id": a.PropertyID, "amount": a.HighBid})
	g.afterLanding()
}

// PayJailFine releases the active participant before rolling.
func (g *TycoonGame) PayJailFine(actor uuid.UUID) error {
	p, err := g.requireTurn(actor)
	if err != nil {
		return err
	}
	if !p.InJail || g.Phase != models.PhaseAwaitingRoll {
		return newError(KindInvalidState, "participant is not waiting in jail")
	}
	if p.Cash < g.Rules.JailFine {
		return newError(KindInsufficientFunds, "fine %d exceeds cash %d", g.Rules.JailFine, p.Cash)
	}
	g.payBank(p, g.Rules.JailFine)
	g.release(p, "fine")
	return nil
}

// UseJailCard spends a held get-out-of-jail token.
func (g *TycoonGame) UseJailCard(actor uuid.UUID) error {
	p, err := g.requireTurn(actor)
	if err != nil {
		return err
	}
	if !p.InJail {
		return newError(KindInvalidState, "participant is not in jail")
	}
	if p.JailCards == 0 {
		return newError(KindInvalidState, "no jail card held")
	}
	p.JailCards--
	g.release(p, "card")
	return nil
}

// EndTurn closes the active participant's turn and hands the next turn out.
func (g *TycoonGame) EndTurn(actor uuid.UUID) error {
	p, err := g.requireTurn(actor)
	if err != nil {
		return err
	}
	switch g.Phase {
	case models.PhaseAwaitingPurchase:
		return newError(KindInvalidState, "purchase decision pending")
	case models.PhaseAwaitingRoll:
		if g.ExtraRoll {
			return newError(KindInvalidState, "extra roll pending")
		}
		return newError(KindInvalidState, "must roll before ending the turn")
	case models.PhaseAuction:
		g.closeAuction()
		if g.ExtraRoll {
			// doubles still owe the participant another roll
			return nil
		}
	}

	g.Phase = models.PhaseTurnEnded
	p.TurnCount++
	g.TurnCount++
	g.emit(EventTurnEnded, p.ID, map[string]interface{}{"turn_count": p.TurnCount})

	if g.checkTimeLimit() {
		return nil
	}
	if pk := g.armedPerk(p.ID, models.PerkExtraTurn); pk != nil {
		g.consumePerk(pk)
		g.startTurn()
		return nil
	}
	g.ActiveIndex = (g.ActiveIndex + 1) % len(g.PlayerOrder)
	g.startTurn()
	return nil
}

// Tick finishes the game if its time limit has elapsed. It reports whether it did.
func (g *TycoonGame) Tick() bool {
	if g.Status != models.StatusRunning {
		return false
	}
	return g.checkTimeLimit()
}

func (g *TycoonGame) checkTimeLimit() bool {
	if g.Rules.TimeLimitSec <= 0 || g.StartedAt.IsZero() {
		return false
	}
	if g.Clock().Sub(g.StartedAt).Seconds() < float64(g.Rules.TimeLimitSec) {
		return false
	}
	ranked := g.rankByNetWorth()
	g.finish(ranked[0].ID)
	return true
}

// rankByNetWorth orders active participants by net worth, turn order breaking ties.
func (g *TycoonGame) rankByNetWorth() []*models.Player {
	var active []*models.Player
	for _, id := range g.PlayerOrder {
		if p, err := g.player(id); err == nil {
			active = append(active, p)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return NetWorth(g.Board, g.lookup, active[i]) > NetWorth(g.Board, g.lookup, active[j])
	})
	return active
}

// finish ends the game with winner and assigns placements: survivors by net worth, then the
// eliminated in reverse elimination order.
func (g *TycoonGame) finish(winner uuid.UUID) {
	if g.Status != models.StatusRunning {
		return
	}
	g.Status = models.StatusFinished
	g.EndedAt = g.Clock()
	g.WinnerID = winner
	g.Phase = models.PhaseTurnEnded
	g.Auction = nil
	g.PendingProperty = -1

	place := 1
	if w, err := g.player(winner); err == nil {
		w.Placement = place
		place++
		g.ValidWin = w.TurnCount >= g.Rules.MinTurnsForValidWin
	}
	for _, p := range g.rankByNetWorth() {
		if p.ID == winner {
			continue
		}
		p.Placement = place
		place++
	}
	for i := len(g.Eliminated) - 1; i >= 0; i-- {
		if p, err := g.player(g.Eliminated[i]); err == nil {
			p.Placement = place
			place++
		}
	}
	for _, t := range g.Trades {
		if t.Status == models.TradePending {
			t.Status = models.TradeExpired
		}
	}
	g.emit(EventGameFinished, winner, map[string]interface{}{"valid_win": g.ValidWin, "turn_count": g.TurnCount})
	g.log.WithFields(logrus.Fields{"winner": winner, "valid_win": g.ValidWin}).Info("game finished")
}
