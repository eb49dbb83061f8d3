// Package agent drives non-human participants through the same session commands a human
// client uses.
package agent

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/board"
	"github.com/jason-s-yu/tycoon/internal/game"
	"github.com/jason-s-yu/tycoon/internal/models"
)

// PurchaseDecision answers a pending purchase.
type PurchaseDecision struct {
	Buy    bool   `json:"buy"`
	Reason string `json:"reason,omitempty"`
}

// TradeAction is the response to an offer.
type TradeAction string

const (
	TradeAccept  TradeAction = "accept"
	TradeDecline TradeAction = "decline"
	TradeCounter TradeAction = "counter"
)

// TradeDecision answers an offer. Counter is set only for TradeCounter and is expressed from
// the deciding participant's side.
type TradeDecision struct {
	Action  TradeAction        `json:"action"`
	Counter *models.TradeTerms `json:"counter,omitempty"`
	Reason  string             `json:"reason,omitempty"`
}

// BuildDecision says whether to add one development unit now, and where.
type BuildDecision struct {
	Build      bool   `json:"build"`
	PropertyID int    `json:"property_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Policy decides for one participant. Implementations must always return a usable decision,
// even alongside an error.
type Policy interface {
	DecidePurchase(ctx context.Context, v View, propertyID int) (PurchaseDecision, error)
	DecideTrade(ctx context.Context, v View, offer models.TradeOffer) (TradeDecision, error)
	DecideBuilding(ctx context.Context, v View) (BuildDecision, error)
}

// TradePlanner is implemented by policies that also initiate trades.
type TradePlanner interface {
	PlanTrade(v View) (target uuid.UUID, terms models.TradeTerms, ok bool)
}

// Deterministic fallbacks for a backend that produced nothing usable.
var (
	FallbackPurchase = PurchaseDecision{Buy: false, Reason: "fallback"}
	FallbackTrade    = TradeDecision{Action: TradeDecline, Reason: "fallback"}
	FallbackBuild    = BuildDecision{Build: false, Reason: "fallback"}
)

// View is what a policy sees: the latest snapshot and the participant it plays.
type View struct {
	Snap *game.Snapshot
	Self uuid.UUID
}

func (v View) Board() *board.Board { return v.Snap.Board }

// Me returns the participant being played; a zero player if it is gone.
func (v View) Me() models.Player {
	if p, ok := v.Snap.Player(v.Self); ok {
		return *p
	}
	return models.Player{ID: v.Self}
}

// Opponents lists the other participants still in play.
func (v View) Opponents() []models.Player {
	var out []models.Player
	for _, p := range v.Snap.Record.Players {
		if p.ID != v.Self && !p.Bankrupt {
			out = append(out, p)
		}
	}
	return out
}

func (v View) owner(propertyID int) uuid.UUID {
	o, _ := v.Snap.Ownership(propertyID)
	return o.Owner
}
