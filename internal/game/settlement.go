// internal/game/settlement.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/board"
	"github.com/jason-s-yu/tycoon/internal/models"
)

// credit pays amount from the bank to p.
func (g *TycoonGame) credit(p *models.Player, amount int, reason string) {
	if amount <= 0 {
		return
	}
	p.Cash += amount
	g.MoneyIssued += amount
	g.emit(EventCashCredited, p.ID, map[string]interface{}{"amount": amount, "reason": reason})
}

// payBank debits an amount p is known to cover.
func (g *TycoonGame) payBank(p *models.Player, amount int) {
	p.Cash -= amount
	g.MoneyReturned += amount
}

// payPlayer moves an amount from is known to cover.
func (g *TycoonGame) payPlayer(from, to *models.Player, amount int) {
	from.Cash -= amount
	to.Cash += amount
}

// charge debits amount from payer on behalf of creditor (uuid.Nil is the bank). Whatever the
// payer can cover is delivered now; the rest is recorded as debt and the payer is liquidated.
// A balance of exactly zero is solvent.
func (g *TycoonGame) charge(payer *models.Player, creditor uuid.UUID, amount int) {
	if amount <= 0 || payer.Bankrupt {
		return
	}
	delivered := amount
	if payer.Cash < amount {
		delivered = payer.Cash
		if delivered < 0 {
			delivered = 0
		}
	}
	payer.Cash -= amount
	g.deliver(creditor, delivered)
	if owed := amount - delivered; owed > 0 {
		if payer.Debt == nil {
			payer.Debt = &models.Debt{Creditor: creditor}
		}
		payer.Debt.Amount += owed
	}
	if payer.Cash < 0 {
		g.liquidate(payer)
	}
}

// deliver credits creditor with money already taken from a payer.
func (g *TycoonGame) deliver(creditor uuid.UUID, amount int) {
	if amount <= 0 {
		return
	}
	if creditor == uuid.Nil {
		g.MoneyReturned += amount
		return
	}
	if c, err := g.player(creditor); err == nil && !c.Bankrupt {
		c.Cash += amount
		return
	}
	// creditor left the game; the bank absorbs it
	g.MoneyReturned += amount
}

// RentFor computes the rent due on a property for a visitor, given the dice total of the
// visiting roll. Mortgaged and bank-held properties charge nothing.
func RentFor(b *board.Board, own OwnershipLookup, propertyID int, diceTotal int) int {
	sq, ok := b.Square(propertyID)
	o := own(propertyID)
	if !ok || o == nil || !o.Owned() || o.Mortgaged {
		return 0
	}
	switch sq.Type {
	case board.TypeProperty:
		if o.Development == 0 && HasMonopoly(b, own, o.Owner, sq.Group) {
			return sq.Rent[0] * 2
		}
		return sq.Rent[o.Development]
	case board.TypeRailroad, board.TypeUtility:
		n := CountOwnedInGroup(b, own, o.Owner, sq.Group)
		if n > len(sq.Rent) {
			n = len(sq.Rent)
		}
		if n == 0 {
			return 0
		}
		if sq.Type == board.TypeUtility {
			return sq.Rent[n-1] * diceTotal
		}
		return sq.Rent[n-1]
	}
	return 0
}

// rentModifier adjusts rent for card effects that send the visitor to a railroad or utility.
type rentModifier struct {
	multiplier     int // railroad rent multiplier
	diceMultiplier int // utility rent is dice times this instead of the table value
}

// chargeRent settles rent owed by payer for landing on propertyID.
func (g *TycoonGame) chargeRent(payer *models.Player, propertyID int, mod rentModifier) {
	o, sq, err := g.property(propertyID)
	if err != nil || !o.Owned() || o.Owner == payer.ID {
		return
	}
	owner, err := g.activePlayer(o.Owner)
	if err != nil {
		return
	}
	if owner.InJail && !g.Rules.RentInJail {
		return
	}
	dice := g.LastRoll[0] + g.LastRoll[1]
	rent := RentFor(g.Board, g.lookup, propertyID, dice)
	if mod.diceMultiplier > 0 && sq.Type == board.TypeUtility && !o.Mortgaged {
		rent = dice * mod.diceMultiplier
	}
	if mod.multiplier > 1 {
		rent *= mod.multiplier
	}
	if rent <= 0 {
		return
	}
	if g.consumePassive(payer.ID, models.PerkShield) {
		g.emit(EventChargeShielded, payer.ID, map[string]interface{}{"property_id": propertyID, "amount": rent})
		return
	}
	if g.consumePassive(owner.ID, models.PerkDoubleRent) {
		rent *= 2
	}
	g.emit(EventRentPaid, payer.ID, map[string]interface{}{
		"property_id": propertyID,
		"owner":       owner.ID,
		"amount":      rent,
	})
	g.charge(payer, owner.ID, rent)
}

// payTax charges a flat tax to the bank, honoring a shield.
func (g *TycoonGame) payTax(payer *models.Player, amount int) {
	if amount <= 0 {
		return
	}
	if g.consumePassive(payer.ID, models.PerkShield) {
		g.emit(EventChargeShielded, payer.ID, map[string]interface{}{"amount": amount, "tax": true})
		return
	}
	g.emit(EventTaxPaid, payer.ID, map[string]interface{}{"amount": amount})
	g.charge(payer, uuid.Nil, amount)
}

// purchase buys a bank-held property at price. There are no partial purchases.
func (g *TycoonGame) purchase(buyer *models.Player, propertyID int, price int) error {
	o, _, err := g.property(propertyID)
	if err != nil {
		return err
	}
	if o.Owned() {
		return newError(KindAlreadyOwned, "property %d is owned by %s", propertyID, o.Owner)
	}
	if buyer.Cash < price {
		return newError(KindInsufficientFunds, "price %d exceeds cash %d", price, buyer.Cash)
	}
	if err := g.Acquire(propertyID, buyer.ID); err != nil {
		return err
	}
	g.payBank(buyer, price)
	g.emit(EventPropertyPurchased, buyer.ID, map[string]interface{}{"property_id": propertyID, "price": price})
	return nil
}

// NetWorth values a participant at cash plus property price (mortgage value when mortgaged)
// plus the house cost of every development level.
func NetWorth(b *board.Board, own OwnershipLookup, p *models.Player) int {
	total := p.Cash
	for _, id := range b.Properties() {
		o := own(id)
		if o == nil || o.Owner != p.ID {
			continue
		}
		sq, _ := b.Square(id)
		if o.Mortgaged {
			total += sq.MortgageValue()
		} else {
			total += sq.Price
		}
		total += o.Development * sq.HouseCost
	}
	return total
}

// MoneyInPlay is the accounting identity that must always hold:
// issued == active cash + outstanding debt + returned. It returns both sides.
func (g *TycoonGame) MoneyInPlay() (issued, accounted int) {
	accounted = g.MoneyReturned
	for _, p := range g.Players {
		if p.Bankrupt {
			continue
		}
		accounted += p.Cash
		if p.Debt != nil {
			accounted += p.Debt.Amount
		}
	}
	return g.MoneyIssued, accounted
}
