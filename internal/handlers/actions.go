package handlers

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/game"
	"github.com/jason-s-yu/tycoon/internal/models"
)

// Action types accepted over HTTP and the game WebSocket.
const (
	ActionRoll         = "roll"
	ActionBuy          = "buy_property"
	ActionDecline      = "decline_purchase"
	ActionBid          = "bid"
	ActionCloseAuction = "close_auction"
	ActionPayFine      = "pay_jail_fine"
	ActionUseCard      = "use_jail_card"
	ActionDevelop      = "develop"
	ActionUndevelop    = "undevelop"
	ActionMortgage     = "mortgage"
	ActionUnmortgage   = "unmortgage"
	ActionEndTurn      = "end_turn"
	ActionPropose      = "propose_trade"
	ActionCounter      = "counter_trade"
	ActionAccept       = "accept_trade"
	ActionDeclineTrade = "decline_trade"
	ActionCancelTrade  = "cancel_trade"
	ActionActivatePerk = "activate_perk"
	ActionRedeem       = "redeem_collectible"
)

// ActionResult is the reply to a command: the caller's projection plus the offer or perk
// the command produced, if any.
type ActionResult struct {
	State game.ObfGameState  `json:"state"`
	Offer *models.TradeOffer `json:"offer,omitempty"`
	Perk  *models.PerkEffect `json:"perk,omitempty"`
}

func termsFrom(payload map[string]interface{}) (models.TradeTerms, error) {
	var t models.TradeTerms
	var err error
	if t.OfferedProperties, err = intList(payload, "offered_properties"); err != nil {
		return t, err
	}
	if t.RequestedProperties, err = intList(payload, "requested_properties"); err != nil {
		return t, err
	}
	if t.OfferedCash, err = optionalInt(payload, "offered_cash"); err != nil {
		return t, err
	}
	if t.RequestedCash, err = optionalInt(payload, "requested_cash"); err != nil {
		return t, err
	}
	return t, nil
}

// dispatch routes one action for the participant actor. Human and agent callers go through
// the same Session methods.
func dispatch(ctx context.Context, sess *game.Session, actor uuid.UUID, action models.GameAction) (*ActionResult, error) {
	p := action.Payload
	if p == nil {
		p = map[string]interface{}{}
	}
	withProperty := func(fn func(context.Context, uuid.UUID, int) (*game.Snapshot, error)) (*game.Snapshot, error) {
		id, err := intField(p, "property_id")
		if err != nil {
			return nil, err
		}
		return fn(ctx, actor, id)
	}
	withOffer := func(fn func(context.Context, uuid.UUID, uuid.UUID) (*game.Snapshot, error)) (*game.Snapshot, error) {
		id, err := uuidField(p, "offer_id")
		if err != nil {
			return nil, err
		}
		return fn(ctx, actor, id)
	}

	var (
		snap  *game.Snapshot
		offer *models.TradeOffer
		perk  *models.PerkEffect
		err   error
	)
	switch action.ActionType {
	case ActionRoll:
		snap, err = sess.Roll(ctx, actor)
	case ActionBuy:
		snap, err = withProperty(sess.BuyProperty)
	case ActionDecline:
		snap, err = withProperty(sess.DeclinePurchase)
	case ActionBid:
		var amount int
		if amount, err = intField(p, "amount"); err == nil {
			snap, err = sess.Bid(ctx, actor, amount)
		}
	case ActionCloseAuction:
		snap, err = sess.CloseAuction(ctx, actor)
	case ActionPayFine:
		snap, err = sess.PayJailFine(ctx, actor)
	case ActionUseCard:
		snap, err = sess.UseJailCard(ctx, actor)
	case ActionDevelop:
		snap, err = withProperty(sess.Develop)
	case ActionUndevelop:
		snap, err = withProperty(sess.Undevelop)
	case ActionMortgage:
		snap, err = withProperty(sess.Mortgage)
	case ActionUnmortgage:
		snap, err = withProperty(sess.Unmortgage)
	case ActionEndTurn:
		snap, err = sess.EndTurn(ctx, actor)
	case ActionPropose:
		var target uuid.UUID
		var terms models.TradeTerms
		if target, err = uuidField(p, "target_id"); err != nil {
			break
		}
		if terms, err = termsFrom(p); err != nil {
			break
		}
		offer, err = sess.ProposeTrade(ctx, actor, target, terms)
	case ActionCounter:
		var id uuid.UUID
		var terms models.TradeTerms
		if id, err = uuidField(p, "offer_id"); err != nil {
			break
		}
		if terms, err = termsFrom(p); err != nil {
			break
		}
		offer, err = sess.CounterTrade(ctx, actor, id, terms)
	case ActionAccept:
		snap, err = withOffer(sess.AcceptTrade)
	case ActionDeclineTrade:
		snap, err = withOffer(sess.DeclineTrade)
	case ActionCancelTrade:
		snap, err = withOffer(sess.CancelTrade)
	case ActionActivatePerk:
		var id uuid.UUID
		if id, err = uuidField(p, "perk_id"); err != nil {
			break
		}
		var params game.PerkParams
		if params.Target, err = optionalInt(p, "target"); err != nil {
			break
		}
		if params.Total, err = optionalInt(p, "total"); err != nil {
			break
		}
		params.Backward, _ = p["backward"].(bool)
		snap, err = sess.ActivatePerk(ctx, actor, id, params)
	case ActionRedeem:
		voucher, _ := p["voucher"].(string)
		if voucher == "" {
			err = badRequestf("missing voucher")
			break
		}
		perk, err = sess.RedeemCollectible(ctx, actor, voucher)
	default:
		err = badRequestf("unknown action type %q", action.ActionType)
	}
	if err != nil {
		return nil, err
	}
	if snap == nil {
		snap = sess.Snapshot()
	}
	return &ActionResult{State: snap.ProjectFor(actor), Offer: offer, Perk: perk}, nil
}
