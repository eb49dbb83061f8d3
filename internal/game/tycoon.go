// internal/game/tycoon.go
package game

import (
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/board"
	"github.com/jason-s-yu/tycoon/internal/models"
	"github.com/sirupsen/logrus"
)

// GameEventType names a state change broadcast to subscribers and recorded in history.
type GameEventType string

const (
	EventPlayerJoined        GameEventType = "player_joined"
	EventGameStarted         GameEventType = "game_started"
	EventPlayerTurn          GameEventType = "player_turn"
	EventPlayerRolled        GameEventType = "player_rolled"
	EventPlayerMoved         GameEventType = "player_moved"
	EventPassedGo            GameEventType = "passed_go"
	EventPurchasePending     GameEventType = "purchase_pending"
	EventPropertyPurchased   GameEventType = "property_purchased"
	EventPurchaseDeclined    GameEventType = "purchase_declined"
	EventAuctionStarted      GameEventType = "auction_started"
	EventAuctionBid          GameEventType = "auction_bid"
	EventAuctionClosed       GameEventType = "auction_closed"
	EventRentPaid            GameEventType = "rent_paid"
	EventTaxPaid             GameEventType = "tax_paid"
	EventChargeShielded      GameEventType = "charge_shielded"
	EventCardDrawn           GameEventType = "card_drawn"
	EventCashCredited        GameEventType = "cash_credited"
	EventJailed              GameEventType = "jailed"
	EventReleasedFromJail    GameEventType = "released_from_jail"
	EventPropertyDeveloped   GameEventType = "property_developed"
	EventPropertyUndeveloped GameEventType = "property_undeveloped"
	EventPropertyMortgaged   GameEventType = "property_mortgaged"
	EventPropertyUnmortgaged GameEventType = "property_unmortgaged"
	EventLiquidationStarted  GameEventType = "liquidation_started"
	EventPlayerRecovered     GameEventType = "player_recovered"
	EventPlayerBankrupt      GameEventType = "player_bankrupt"
	EventDebtSettled         GameEventType = "debt_settled"
	EventTradeProposed       GameEventType = "trade_proposed"
	EventTradeAccepted       GameEventType = "trade_accepted"
	EventTradeDeclined       GameEventType = "trade_declined"
	EventTradeCountered      GameEventType = "trade_countered"
	EventTradeExpired        GameEventType = "trade_expired"
	EventPerkRedeemed        GameEventType = "perk_redeemed"
	EventPerkActivated       GameEventType = "perk_activated"
	EventPerkConsumed        GameEventType = "perk_consumed"
	EventTurnEnded           GameEventType = "turn_ended"
	EventGameFinished        GameEventType = "game_finished"
	EventGameCancelled       GameEventType = "game_cancelled"
)

// GameEvent is one broadcastable state change. Actor is uuid.Nil for the bank or the engine.
type GameEvent struct {
	GameID  uuid.UUID              `json:"game_id"`
	Index   int                    `json:"index"`
	Type    GameEventType          `json:"type"`
	Actor   uuid.UUID              `json:"actor,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// TycoonGame is the in-memory state machine of one session. It is not safe for concurrent
// use; a Session owns it and serializes every command.
type TycoonGame struct {
	models.Game

	Board     *board.Board
	Players   []*models.Player // join order, bankrupt participants included
	Ownership map[int]*models.PropertyOwnership
	Trades    map[uuid.UUID]*models.TradeOffer
	Perks     map[uuid.UUID]*models.PerkEffect

	Dice  Dice
	Draws DrawProvider
	Clock Clock
	Rand  *rand.Rand

	log     *logrus.Entry
	pending []GameEvent
}

// Options are the collaborators a game needs. Zero values get sensible defaults.
type Options struct {
	Dice   Dice
	Draws  DrawProvider
	Clock  Clock
	Rand   *rand.Rand
	Logger *logrus.Logger
}

func (o *Options) fill() {
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if o.Dice == nil {
		o.Dice = RandomDice{R: o.Rand}
	}
	if o.Draws == nil {
		o.Draws = NewDeckProvider(o.Rand)
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
}

// NewTycoonGame creates a Pending game on b with every ownable square held by the bank.
func NewTycoonGame(b *board.Board, rules models.Rules, opts Options) *TycoonGame {
	opts.fill()
	id, _ := uuid.NewRandom()
	g := &TycoonGame{
		Game: models.Game{
			ID:              id,
			Status:          models.StatusPending,
			Rules:           rules,
			Phase:           models.PhaseAwaitingRoll,
			PendingProperty: -1,
			CreatedAt:       opts.Clock(),
		},
		Board:     b,
		Ownership: make(map[int]*models.PropertyOwnership),
		Trades:    make(map[uuid.UUID]*models.TradeOffer),
		Perks:     make(map[uuid.UUID]*models.PerkEffect),
		Dice:      opts.Dice,
		Draws:     opts.Draws,
		Clock:     opts.Clock,
		Rand:      opts.Rand,
	}
	for _, pid := range b.Properties() {
		g.Ownership[pid] = &models.PropertyOwnership{PropertyID: pid}
	}
	g.log = opts.Logger.WithField("game_id", id)
	return g
}

// restoreTycoonGame rebuilds a game from a persisted record. The record must already be validated.
func restoreTycoonGame(b *board.Board, rec *models.SessionRecord, opts Options) *TycoonGame {
	opts.fill()
	g := &TycoonGame{
		Game:      rec.Game,
		Board:     b,
		Ownership: make(map[int]*models.PropertyOwnership),
		Trades:    make(map[uuid.UUID]*models.TradeOffer),
		Perks:     make(map[uuid.UUID]*models.PerkEffect),
		Dice:      opts.Dice,
		Draws:     opts.Draws,
		Clock:     opts.Clock,
		Rand:      opts.Rand,
	}
	g.Game.PlayerOrder = append([]uuid.UUID(nil), rec.Game.PlayerOrder...)
	for i := range rec.Players {
		p := rec.Players[i]
		if p.Debt != nil {
			d := *p.Debt
			p.Debt = &d
		}
		g.Players = append(g.Players, &p)
	}
	for _, pid := range b.Properties() {
		g.Ownership[pid] = &models.PropertyOwnership{PropertyID: pid}
	}
	for _, o := range rec.Ownership {
		o := o
		g.Ownership[o.PropertyID] = &o
	}
	for _, t := range rec.Trades {
		t := t
		g.Trades[t.ID] = &t
	}
	for _, pk := range rec.Perks {
		pk := pk
		g.Perks[pk.ID] = &pk
	}
	g.log = opts.Logger.WithField("game_id", g.ID)
	return g
}

// player looks up a participant by id, bankrupt ones included.
func (g *TycoonGame) player(id uuid.UUID) (*models.Player, error) {
	for _, p := range g.Players {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, newError(KindNotFound, "participant %s", id)
}

// activePlayer looks up a participant that is still in the turn order.
func (g *TycoonGame) activePlayer(id uuid.UUID) (*models.Player, error) {
	p, err := g.player(id)
	if err != nil {
		return nil, err
	}
	if p.Bankrupt {
		return nil, newError(KindInvalidState, "participant %s is bankrupt", id)
	}
	return p, nil
}

// current is the participant whose turn it is, or nil when no one is playing.
func (g *TycoonGame) current() *models.Player {
	if len(g.PlayerOrder) == 0 {
		return nil
	}
	p, _ := g.player(g.PlayerOrder[g.ActiveIndex])
	return p
}

func (g *TycoonGame) requireRunning() error {
	if g.Status != models.StatusRunning {
		return newError(KindInvalidState, "game is %s", g.Status)
	}
	return nil
}

// requireTurn checks the game is running and it is actor's turn.
func (g *TycoonGame) requireTurn(actor uuid.UUID) (*models.Player, error) {
	if err := g.requireRunning(); err != nil {
		return nil, err
	}
	p, err := g.activePlayer(actor)
	if err != nil {
		return nil, err
	}
	if cur := g.current(); cur == nil || cur.ID != actor {
		return nil, newError(KindInvalidState, "not participant %s's turn", actor)
	}
	return p, nil
}

// emit records an event for broadcast and history. Events are flushed by the owning Session.
func (g *TycoonGame) emit(t GameEventType, actor uuid.UUID, payload map[string]interface{}) {
	g.ActionIndex++
	if payload == nil {
		payload = map[string]interface{}{}
	}
	g.pending = append(g.pending, GameEvent{
		GameID:  g.ID,
		Index:   g.ActionIndex,
		Type:    t,
		Actor:   actor,
		Payload: payload,
	})
}

// drainEvents hands the buffered events to the caller and resets the buffer.
func (g *TycoonGame) drainEvents() []GameEvent {
	ev := g.pending
	g.pending = nil
	return ev
}

// Record returns a deep copy of the game as a persistence record.
func (g *TycoonGame) Record() *models.SessionRecord {
	rec := &models.SessionRecord{Game: g.Game}
	rec.Game.PlayerOrder = append([]uuid.UUID(nil), g.PlayerOrder...)
	rec.Game.Eliminated = append([]uuid.UUID(nil), g.Eliminated...)
	rec.Game.Rules.CashTierValues = append([]int(nil), g.Rules.CashTierValues...)
	rec.Game.Rules.TaxRefundTierValues = append([]int(nil), g.Rules.TaxRefundTierValues...)
	rec.Game.Rules.DiscountTierPercents = append([]int(nil), g.Rules.DiscountTierPercents...)
	if g.Auction != nil {
		a := *g.Auction
		rec.Game.Auction = &a
	}
	for _, p := range g.Players {
		cp := *p
		if p.Debt != nil {
			d := *p.Debt
			cp.Debt = &d
		}
		rec.Players = append(rec.Players, cp)
	}
	for _, pid := range g.Board.Properties() {
		if o, ok := g.Ownership[pid]; ok {
			rec.Ownership = append(rec.Ownership, *o)
		}
	}
	for _, t := range g.Trades {
		cp := *t
		cp.OfferedProperties = append([]int(nil), t.OfferedProperties...)
		cp.RequestedProperties = append([]int(nil), t.RequestedProperties...)
		rec.Trades = append(rec.Trades, cp)
	}
	sort.Slice(rec.Trades, func(i, j int) bool {
		if rec.Trades[i].CreatedAt.Equal(rec.Trades[j].CreatedAt) {
			return rec.Trades[i].ID.String() < rec.Trades[j].ID.String()
		}
		return rec.Trades[i].CreatedAt.Before(rec.Trades[j].CreatedAt)
	})
	for _, pk := range g.Perks {
		rec.Perks = append(rec.Perks, *pk)
	}
	sort.Slice(rec.Perks, func(i, j int) bool { return rec.Perks[i].ID.String() < rec.Perks[j].ID.String() })
	return rec
}
