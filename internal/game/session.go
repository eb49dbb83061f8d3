// internal/game/session.go
package game

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/board"
	"github.com/jason-s-yu/tycoon/internal/models"
	"github.com/sirupsen/logrus"
)

// SessionDeps are the collaborators shared by every session of a store.
type SessionDeps struct {
	Store        Persistence         // optional
	Actions      ActionLog           // optional
	Collectibles CollectibleProvider // optional
	Logger       *logrus.Logger
}

type commandResult struct {
	value interface{}
	err   error
}

type command struct {
	name  string
	fn    func(g *TycoonGame) (interface{}, error)
	reply chan commandResult
}

// Session serializes every state-mutating command of one game through a single goroutine.
// Queries read the latest immutable Snapshot and never wait on the command loop.
type Session struct {
	ID uuid.UUID

	board *board.Board
	game  *TycoonGame // owned by loop
	cmds  chan command
	done  chan struct{}
	once  sync.Once
	snap  atomic.Pointer[Snapshot]
	deps  SessionDeps
	log   *logrus.Entry

	subMu  sync.Mutex
	subs   map[int]chan GameEvent
	nextID int

	actions chan []GameEvent // drained by publishLoop

	lastActive atomic.Int64 // unix nanos of the last command
}

// NewSession wraps g in a running command loop and persists its initial state.
func NewSession(g *TycoonGame, deps SessionDeps) *Session {
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	s := &Session{
		ID:    g.ID,
		board: g.Board,
		game:  g,
		cmds:  make(chan command),
		done:  make(chan struct{}),
		deps:  deps,
		log:   deps.Logger.WithField("game_id", g.ID),
		subs:  make(map[int]chan GameEvent),
	}
	g.log = s.log
	s.lastActive.Store(time.Now().UnixNano())
	rec := g.Record()
	s.persist(rec)
	s.snap.Store(NewSnapshot(g.Board, rec))
	if deps.Actions != nil {
		s.actions = make(chan []GameEvent, actionQueueSize)
		go s.publishLoop()
	}
	go s.loop()
	return s
}

func (s *Session) loop() {
	for {
		select {
		case cmd := <-s.cmds:
			s.run(cmd)
		case <-s.done:
			return
		}
	}
}

func (s *Session) run(cmd command) {
	s.lastActive.Store(time.Now().UnixNano())
	v, err := cmd.fn(s.game)
	events := s.game.drainEvents()
	if len(events) > 0 {
		rec := s.game.Record()
		s.persist(rec)
		s.snap.Store(NewSnapshot(s.board, rec))
		s.broadcast(events)
		s.logActions(events)
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{"command": cmd.name, "error": err}).Debug("command rejected")
	}
	cmd.reply <- commandResult{value: v, err: err}
}

func (s *Session) persist(rec *models.SessionRecord) {
	if s.deps.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.deps.Store.SaveSession(ctx, rec); err != nil {
		s.log.WithError(err).Error("failed to persist session")
	}
}

const actionQueueSize = 256

// logActions queues history entries for publishLoop without blocking the command loop. A full
// queue drops the batch.
func (s *Session) logActions(events []GameEvent) {
	if s.actions == nil {
		return
	}
	select {
	case s.actions <- events:
	default:
		s.log.Warnf("action queue full, dropping %d history entries", len(events))
	}
}

// publishLoop is the only writer to the action log, so entries leave in command order.
// Batches still queued when the session closes are flushed before it returns.
func (s *Session) publishLoop() {
	for {
		select {
		case evs := <-s.actions:
			s.publish(evs)
		case <-s.done:
			for {
				select {
				case evs := <-s.actions:
					s.publish(evs)
				default:
					return
				}
			}
		}
	}
}

func (s *Session) publish(events []GameEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, ev := range events {
		entry := models.HistoryEntry{
			GameID:      ev.GameID,
			ActionIndex: ev.Index,
			ActorID:     ev.Actor,
			ActionType:  string(ev.Type),
			Payload:     ev.Payload,
			Timestamp:   time.Now().UnixMilli(),
		}
		if err := s.deps.Actions.PublishAction(ctx, entry); err != nil {
			s.log.WithError(err).Warnf("failed to publish action %d", ev.Index)
		}
	}
}

// broadcast hands events to subscribers without blocking; a full subscriber misses events.
func (s *Session) broadcast(events []GameEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		for _, ev := range events {
			select {
			case ch <- ev:
			default:
				s.log.Warnf("subscriber %d is full, dropping %s", id, ev.Type)
			}
		}
	}
}

// Subscribe returns a channel of events and a function that stops delivery.
func (s *Session) Subscribe(buffer int) (<-chan GameEvent, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan GameEvent, buffer)
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Close stops the command loop and ends every subscription.
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.done)
		s.subMu.Lock()
		for id, ch := range s.subs {
			delete(s.subs, id)
			close(ch)
		}
		s.subMu.Unlock()
	})
}

// IdleSince is when the session last received a command.
func (s *Session) IdleSince() time.Time { return time.Unix(0, s.lastActive.Load()) }

// Done is closed once the session stops.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) do(ctx context.Context, name string, fn func(g *TycoonGame) (interface{}, error)) (interface{}, error) {
	cmd := command{name: name, fn: fn, reply: make(chan commandResult, 1)}
	select {
	case s.cmds <- cmd:
	case <-s.done:
		return nil, newError(KindInvalidState, "session closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-cmd.reply:
		return res.value, res.err
	case <-s.done:
		return nil, newError(KindInvalidState, "session closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// exec runs a command that only reports an error and returns the resulting snapshot.
func (s *Session) exec(ctx context.Context, name string, fn func(g *TycoonGame) error) (*Snapshot, error) {
	_, err := s.do(ctx, name, func(g *TycoonGame) (interface{}, error) {
		return nil, fn(g)
	})
	if err != nil {
		return nil, err
	}
	return s.Snapshot(), nil
}

// Snapshot is the state after the most recent command.
func (s *Session) Snapshot() *Snapshot { return s.snap.Load() }

// State projects the latest snapshot for viewer.
func (s *Session) State(viewer uuid.UUID) ObfGameState { return s.Snapshot().ProjectFor(viewer) }

// OwnershipOf lists every ownable property's ownership record.
func (s *Session) OwnershipOf() []models.PropertyOwnership {
	return s.Snapshot().Record.Ownership
}

// Favorability scores a trade offer from perspective.
func (s *Session) Favorability(offerID, perspective uuid.UUID) (int, error) {
	return s.Snapshot().Favorability(offerID, perspective)
}

// HasMonopoly reports whether participant holds every property of group.
func (s *Session) HasMonopoly(participant uuid.UUID, group string) bool {
	return s.Snapshot().HasMonopoly(participant, group)
}

// NetWorth values a participant.
func (s *Session) NetWorth(participant uuid.UUID) (int, error) {
	return s.Snapshot().NetWorth(participant)
}

func (s *Session) Join(ctx context.Context, userID uuid.UUID, name string, kind models.ParticipantKind) (*models.Player, error) {
	v, err := s.do(ctx, "join", func(g *TycoonGame) (interface{}, error) {
		p, err := g.Join(userID, name, kind)
		if err != nil {
			return nil, err
		}
		cp := *p
		return &cp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Player), nil
}

func (s *Session) Start(ctx context.Context) (*Snapshot, error) {
	return s.exec(ctx, "start", func(g *TycoonGame) error { return g.Start() })
}

func (s *Session) Cancel(ctx context.Context, reason string) (*Snapshot, error) {
	return s.exec(ctx, "cancel", func(g *TycoonGame) error { return g.Cancel(reason) })
}

func (s *Session) Roll(ctx context.Context, actor uuid.UUID) (*Snapshot, error) {
	return s.exec(ctx, "roll", func(g *TycoonGame) error { return g.Roll(actor) })
}

func (s *Session) BuyProperty(ctx context.Context, actor uuid.UUID, propertyID int) (*Snapshot, error) {
	return s.exec(ctx, "buy_property", func(g *TycoonGame) error { return g.BuyProperty(actor, propertyID) })
}

func (s *Session) DeclinePurchase(ctx context.Context, actor uuid.UUID, propertyID int) (*Snapshot, error) {
	return s.exec(ctx, "decline_purchase", func(g *TycoonGame) error { return g.DeclinePurchase(actor, propertyID) })
}

func (s *Session) Bid(ctx context.Context, actor uuid.UUID, amount int) (*Snapshot, error) {
	return s.exec(ctx, "bid", func(g *TycoonGame) error { return g.Bid(actor, amount) })
}

func (s *Session) CloseAuction(ctx context.Context, actor uuid.UUID) (*Snapshot, error) {
	return s.exec(ctx, "close_auction", func(g *TycoonGame) error { return g.CloseAuction(actor) })
}

func (s *Session) PayJailFine(ctx context.Context, actor uuid.UUID) (*Snapshot, error) {
	return s.exec(ctx, "pay_jail_fine", func(g *TycoonGame) error { return g.PayJailFine(actor) })
}

func (s *Session) UseJailCard(ctx context.Context, actor uuid.UUID) (*Snapshot, error) {
	return s.exec(ctx, "use_jail_card", func(g *TycoonGame) error { return g.UseJailCard(actor) })
}

func (s *Session) Develop(ctx context.Context, actor uuid.UUID, propertyID int) (*Snapshot, error) {
	return s.exec(ctx, "develop", func(g *TycoonGame) error { return g.DevelopProperty(actor, propertyID) })
}

func (s *Session) Undevelop(ctx context.Context, actor uuid.UUID, propertyID int) (*Snapshot, error) {
	return s.exec(ctx, "undevelop", func(g *TycoonGame) error { return g.UndevelopProperty(actor, propertyID) })
}

func (s *Session) Mortgage(ctx context.Context, actor uuid.UUID, propertyID int) (*Snapshot, error) {
	return s.exec(ctx, "mortgage", func(g *TycoonGame) error { return g.MortgageProperty(actor, propertyID) })
}

func (s *Session) Unmortgage(ctx context.Context, actor uuid.UUID, propertyID int) (*Snapshot, error) {
	return s.exec(ctx, "unmortgage", func(g *TycoonGame) error { return g.UnmortgageProperty(actor, propertyID) })
}

func (s *Session) EndTurn(ctx context.Context, actor uuid.UUID) (*Snapshot, error) {
	return s.exec(ctx, "end_turn", func(g *TycoonGame) error { return g.EndTurn(actor) })
}

// Tick evaluates the time limit.
func (s *Session) Tick(ctx context.Context) (*Snapshot, error) {
	return s.exec(ctx, "tick", func(g *TycoonGame) error {
		g.Tick()
		return nil
	})
}

func (s *Session) offerCommand(ctx context.Context, name string, fn func(g *TycoonGame) (*models.TradeOffer, error)) (*models.TradeOffer, error) {
	v, err := s.do(ctx, name, func(g *TycoonGame) (interface{}, error) {
		t, err := fn(g)
		if err != nil {
			return nil, err
		}
		cp := *t
		cp.OfferedProperties = append([]int(nil), t.OfferedProperties...)
		cp.RequestedProperties = append([]int(nil), t.RequestedProperties...)
		return &cp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.TradeOffer), nil
}

func (s *Session) ProposeTrade(ctx context.Context, proposer, target uuid.UUID, terms models.TradeTerms) (*models.TradeOffer, error) {
	return s.offerCommand(ctx, "propose_trade", func(g *TycoonGame) (*models.TradeOffer, error) {
		return g.ProposeTrade(proposer, target, terms)
	})
}

func (s *Session) CounterTrade(ctx context.Context, actor, offerID uuid.UUID, terms models.TradeTerms) (*models.TradeOffer, error) {
	return s.offerCommand(ctx, "counter_trade", func(g *TycoonGame) (*models.TradeOffer, error) {
		return g.CounterTrade(actor, offerID, terms)
	})
}

func (s *Session) AcceptTrade(ctx context.Context, actor, offerID uuid.UUID) (*Snapshot, error) {
	return s.exec(ctx, "accept_trade", func(g *TycoonGame) error { return g.AcceptTrade(actor, offerID) })
}

func (s *Session) DeclineTrade(ctx context.Context, actor, offerID uuid.UUID) (*Snapshot, error) {
	return s.exec(ctx, "decline_trade", func(g *TycoonGame) error { return g.DeclineTrade(actor, offerID) })
}

// CancelTrade withdraws an offer. actor uuid.Nil is an external expiry.
func (s *Session) CancelTrade(ctx context.Context, actor, offerID uuid.UUID) (*Snapshot, error) {
	return s.exec(ctx, "cancel_trade", func(g *TycoonGame) error { return g.CancelTrade(actor, offerID) })
}

func (s *Session) ActivatePerk(ctx context.Context, actor, perkID uuid.UUID, params PerkParams) (*Snapshot, error) {
	return s.exec(ctx, "activate_perk", func(g *TycoonGame) error { return g.ActivatePerk(actor, perkID, params) })
}

// GrantPerk adds an already-redeemed perk.
func (s *Session) GrantPerk(ctx context.Context, pk models.PerkEffect) (*models.PerkEffect, error) {
	v, err := s.do(ctx, "grant_perk", func(g *TycoonGame) (interface{}, error) {
		got, err := g.GrantPerk(pk)
		if err != nil {
			return nil, err
		}
		cp := *got
		return &cp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.PerkEffect), nil
}

// RedeemCollectible converts a voucher through the collectible provider, outside the command
// loop, then grants the resulting perk.
func (s *Session) RedeemCollectible(ctx context.Context, owner uuid.UUID, voucher string) (*models.PerkEffect, error) {
	if s.deps.Collectibles == nil {
		return nil, newError(KindInvalidState, "collectible redemption is not configured")
	}
	pk, err := s.deps.Collectibles.Redeem(ctx, voucher, owner)
	if err != nil {
		return nil, err
	}
	pk.OwnerID = owner
	pk.Source = voucher
	return s.GrantPerk(ctx, pk)
}
