package agent

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/game"
	"github.com/jason-s-yu/tycoon/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	maxStepsPerWake = 64
	bidStep         = 10
)

type auctionKey struct {
	turn, property int
}

// Driver plays one participant. It wakes on session events, issues commands until it has
// nothing left to do and goes back to waiting. The session never waits on it.
type Driver struct {
	Session *game.Session
	Self    uuid.UUID
	Policy  Policy

	// AuctionWindow is how long the active participant lets others bid before closing.
	AuctionWindow time.Duration
	// MaxBuilds caps development purchases per turn.
	MaxBuilds int

	log *logrus.Entry

	turn        int // game turn count the per-turn counters belong to
	builds      int
	traded      bool
	auction     auctionKey
	wantsLot    bool
	auctionWait bool
}

func NewDriver(s *game.Session, self uuid.UUID, p Policy, logger *logrus.Logger) *Driver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Driver{
		Session:       s,
		Self:          self,
		Policy:        p,
		AuctionWindow: 200 * time.Millisecond,
		MaxBuilds:     3,
		log:           logger.WithFields(logrus.Fields{"game_id": s.ID, "agent": self}),
		turn:          -1,
	}
}

// Run plays until the game ends, the participant is eliminated, the session closes or ctx
// is cancelled.
func (d *Driver) Run(ctx context.Context) error {
	events, unsubscribe := d.Session.Subscribe(256)
	defer unsubscribe()

	if d.act(ctx) {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				return nil
			}
		drain:
			for {
				select {
				case _, ok := <-events:
					if !ok {
						return nil
					}
				default:
					break drain
				}
			}
			if d.act(ctx) {
				return nil
			}
		}
	}
}

// act issues commands until idle. It reports whether the driver is finished for good.
func (d *Driver) act(ctx context.Context) bool {
	for i := 0; i < maxStepsPerWake; i++ {
		if ctx.Err() != nil {
			return true
		}
		v := View{Snap: d.Session.Snapshot(), Self: d.Self}
		g := v.Snap.Record.Game
		if g.Status == models.StatusFinished || g.Status == models.StatusCancelled {
			return true
		}
		if v.Me().Bankrupt {
			return true
		}
		if g.Status != models.StatusRunning {
			return false
		}
		acted, err := d.step(ctx, v)
		if err != nil {
			d.log.WithError(err).Warn("agent command failed")
			return false
		}
		if !acted {
			return false
		}
	}
	return false
}

func (d *Driver) step(ctx context.Context, v View) (bool, error) {
	g := v.Snap.Record.Game
	if g.TurnCount != d.turn {
		d.turn = g.TurnCount
		d.builds = 0
		d.traded = false
	}

	if acted, err := d.answerOffers(ctx, v); acted || err != nil {
		return acted, err
	}
	if g.Phase == models.PhaseAuction && g.Auction != nil {
		return d.handleAuction(ctx, v)
	}

	cur, ok := v.Snap.Current()
	if !ok || cur.ID != d.Self {
		return false, nil
	}

	switch g.Phase {
	case models.PhaseAwaitingPurchase:
		return true, d.resolvePurchase(ctx, v, g.PendingProperty)
	case models.PhaseAwaitingRoll, models.PhasePostLanding:
		if acted, err := d.manage(ctx, v); acted || err != nil {
			return acted, err
		}
		if g.Phase == models.PhasePostLanding {
			_, err := d.Session.EndTurn(ctx, d.Self)
			return true, err
		}
		return true, d.roll(ctx, v)
	}
	return false, nil
}

func (d *Driver) answerOffers(ctx context.Context, v View) (bool, error) {
	for _, offer := range v.Snap.PendingTradesFor(d.Self) {
		dec, err := d.Policy.DecideTrade(ctx, v, offer)
		if err != nil {
			d.log.WithError(err).Warn("trade decision failed")
		}
		switch dec.Action {
		case TradeAccept:
			if _, err = d.Session.AcceptTrade(ctx, d.Self, offer.ID); err != nil && !errors.Is(err, game.ErrTransferConflict) {
				d.log.WithError(err).Debug("accept rejected, declining")
				_, err = d.Session.DeclineTrade(ctx, d.Self, offer.ID)
			}
		case TradeCounter:
			if dec.Counter == nil {
				_, err = d.Session.DeclineTrade(ctx, d.Self, offer.ID)
				break
			}
			_, err = d.Session.CounterTrade(ctx, d.Self, offer.ID, *dec.Counter)
			if errors.Is(err, game.ErrInvalidOffer) {
				_, err = d.Session.DeclineTrade(ctx, d.Self, offer.ID)
			}
		default:
			_, err = d.Session.DeclineTrade(ctx, d.Self, offer.ID)
		}
		return true, err
	}
	return false, nil
}

func (d *Driver) handleAuction(ctx context.Context, v View) (bool, error) {
	a := v.Snap.Record.Game.Auction
	key := auctionKey{turn: v.Snap.Record.Game.TurnCount, property: a.PropertyID}
	if d.auction != key {
		d.auction = key
		d.auctionWait = false
		dec, err := d.Policy.DecidePurchase(ctx, v, a.PropertyID)
		if err != nil {
			d.log.WithError(err).Warn("purchase decision failed")
		}
		d.wantsLot = dec.Buy
	}

	if d.wantsLot && a.HighBidder != d.Self {
		sq, _ := v.Board().Square(a.PropertyID)
		next := a.HighBid + bidStep
		if next <= sq.Price && next <= v.Me().Cash {
			_, err := d.Session.Bid(ctx, d.Self, next)
			if errors.Is(err, game.ErrInvalidState) || errors.Is(err, game.ErrInsufficientFunds) {
				return false, nil
			}
			return true, err
		}
	}

	cur, ok := v.Snap.Current()
	if !ok || cur.ID != d.Self {
		return false, nil
	}
	if !d.auctionWait {
		d.auctionWait = true
		select {
		case <-time.After(d.AuctionWindow):
		case <-ctx.Done():
			return false, ctx.Err()
		}
		return true, nil
	}
	_, err := d.Session.CloseAuction(ctx, d.Self)
	return true, err
}

func (d *Driver) resolvePurchase(ctx context.Context, v View, propertyID int) error {
	dec, err := d.Policy.DecidePurchase(ctx, v, propertyID)
	if err != nil {
		d.log.WithError(err).Warn("purchase decision failed")
	}
	if dec.Buy {
		_, err = d.Session.BuyProperty(ctx, d.Self, propertyID)
		if err == nil || !errors.Is(err, game.ErrInsufficientFunds) {
			return err
		}
	}
	_, err = d.Session.DeclinePurchase(ctx, d.Self, propertyID)
	return err
}

// manage runs the optional between-roll actions: unmortgage, build, propose a trade.
func (d *Driver) manage(ctx context.Context, v View) (bool, error) {
	me := v.Me()
	rules := v.Snap.Record.Game.Rules

	for _, o := range v.Snap.OwnedBy(d.Self) {
		if !o.Mortgaged {
			continue
		}
		sq, _ := v.Board().Square(o.PropertyID)
		cost := game.UnmortgageCost(sq.Price, rules.UnmortgageInterestPct)
		if me.Cash-cost >= 2*DefaultReserve {
			_, err := d.Session.Unmortgage(ctx, d.Self, o.PropertyID)
			return true, err
		}
	}

	if d.builds < d.MaxBuilds {
		dec, err := d.Policy.DecideBuilding(ctx, v)
		if err != nil {
			d.log.WithError(err).Warn("build decision failed")
		}
		if dec.Build {
			d.builds++
			if _, err := d.Session.Develop(ctx, d.Self, dec.PropertyID); err != nil {
				d.log.WithError(err).Debug("build rejected")
				d.builds = d.MaxBuilds
			}
			return true, nil
		}
		d.builds = d.MaxBuilds
	}

	if planner, ok := d.Policy.(TradePlanner); ok && !d.traded {
		d.traded = true
		if target, terms, ok := planner.PlanTrade(v); ok {
			if _, err := d.Session.ProposeTrade(ctx, d.Self, target, terms); err != nil {
				d.log.WithError(err).Debug("trade proposal rejected")
			}
			return true, nil
		}
	}
	return false, nil
}

func (d *Driver) roll(ctx context.Context, v View) error {
	me := v.Me()
	rules := v.Snap.Record.Game.Rules
	if me.InJail {
		if me.JailCards > 0 {
			_, err := d.Session.UseJailCard(ctx, d.Self)
			return err
		}
		if me.Cash >= rules.JailFine+DefaultReserve {
			_, err := d.Session.PayJailFine(ctx, d.Self)
			return err
		}
	}
	_, err := d.Session.Roll(ctx, d.Self)
	return err
}
