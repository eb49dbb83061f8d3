// internal/game/assets.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/models"
)

// requireManage checks actor may build or mortgage now: their turn, outside a pending
// purchase or auction.
func (g *TycoonGame) requireManage(actor uuid.UUID) (*models.Player, error) {
	p, err := g.requireTurn(actor)
	if err != nil {
		return nil, err
	}
	if g.Phase != models.PhaseAwaitingRoll && g.Phase != models.PhasePostLanding {
		return nil, newError(KindInvalidState, "cannot manage property during %s", g.Phase)
	}
	return p, nil
}

// DevelopProperty buys one house (or the hotel) on propertyID.
func (g *TycoonGame) DevelopProperty(actor uuid.UUID, propertyID int) error {
	p, err := g.requireManage(actor)
	if err != nil {
		return err
	}
	o, sq, err := g.property(propertyID)
	if err != nil {
		return err
	}
	if o.Owner != actor {
		return newError(KindInvalidState, "property %d is not owned by %s", propertyID, actor)
	}
	if p.Cash < sq.HouseCost {
		return newError(KindInsufficientFunds, "house cost %d exceeds cash %d", sq.HouseCost, p.Cash)
	}
	if err := g.Develop(propertyID, actor, 1); err != nil {
		return err
	}
	g.payBank(p, sq.HouseCost)
	g.emit(EventPropertyDeveloped, p.ID, map[string]interface{}{"property_id": propertyID, "level": o.Development})
	return nil
}

// UndevelopProperty sells one development unit back to the bank for half the house cost.
func (g *TycoonGame) UndevelopProperty(actor uuid.UUID, propertyID int) error {
	p, err := g.requireManage(actor)
	if err != nil {
		return err
	}
	o, sq, err := g.property(propertyID)
	if err != nil {
		return err
	}
	if err := g.Develop(propertyID, actor, -1); err != nil {
		return err
	}
	g.credit(p, sq.HouseCost/2, "house_sale")
	g.emit(EventPropertyUndeveloped, p.ID, map[string]interface{}{"property_id": propertyID, "level": o.Development})
	return nil
}

// MortgageProperty borrows half the price against an undeveloped property.
func (g *TycoonGame) MortgageProperty(actor uuid.UUID, propertyID int) error {
	p, err := g.requireManage(actor)
	if err != nil {
		return err
	}
	if !g.Rules.MortgageEnabled {
		return newError(KindInvalidState, "mortgages are disabled")
	}
	o, sq, err := g.property(propertyID)
	if err != nil {
		return err
	}
	if o.Owner != actor {
		return newError(KindInvalidState, "property %d is not owned by %s", propertyID, actor)
	}
	if err := g.SetMortgaged(propertyID, true); err != nil {
		return err
	}
	g.credit(p, sq.MortgageValue(), "mortgage")
	g.emit(EventPropertyMortgaged, p.ID, map[string]interface{}{"property_id": propertyID})
	return nil
}

// UnmortgageCost is the mortgage value plus interest, rounded down.
func UnmortgageCost(price, interestPct int) int {
	return (price / 2) * (100 + interestPct) / 100
}

// UnmortgageProperty repays the mortgage with interest.
func (g *TycoonGame) UnmortgageProperty(actor uuid.UUID, propertyID int) error {
	p, err := g.requireManage(actor)
	if err != nil {
		return err
	}
	o, sq, err := g.property(propertyID)
	if err != nil {
		return err
	}
	if o.Owner != actor {
		return newError(KindInvalidState, "property %d is not owned by %s", propertyID, actor)
	}
	if !o.Mortgaged {
		return newError(KindInvalidState, "property %d is not mortgaged", propertyID)
	}
	cost := UnmortgageCost(sq.Price, g.Rules.UnmortgageInterestPct)
	if p.Cash < cost {
		return newError(KindInsufficientFunds, "unmortgage cost %d exceeds cash %d", cost, p.Cash)
	}
	if err := g.SetMortgaged(propertyID, false); err != nil {
		return err
	}
	g.payBank(p, cost)
	g.emit(EventPropertyUnmortgaged, p.ID, map[string]interface{}{"property_id": propertyID, "cost": cost})
	return nil
}
