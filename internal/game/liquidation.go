// internal/game/liquidation.go
package game

import (
	"sort"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/board"
	"github.com/jason-s-yu/tycoon/internal/models"
	"github.com/sirupsen/logrus"
)

// liquidate runs synchronously whenever p's balance is negative. Houses are sold one unit at a
// time, highest hotel rent first, for half the house cost. Then undeveloped properties are
// mortgaged, highest price first, for half the price. Balance is re-checked after every step.
// If both pools run dry while still negative, p goes bankrupt.
func (g *TycoonGame) liquidate(p *models.Player) {
	if p.Cash >= 0 {
		g.settleDebt(p)
		return
	}
	g.emit(EventLiquidationStarted, p.ID, map[string]interface{}{"shortfall": -p.Cash})
	g.log.WithFields(logrus.Fields{"player": p.ID, "shortfall": -p.Cash}).Debug("liquidating")

	for p.Cash < 0 {
		if g.sellOneHouse(p) {
			continue
		}
		if g.Rules.MortgageEnabled && g.mortgageOne(p) {
			continue
		}
		break
	}

	if p.Cash >= 0 {
		g.settleDebt(p)
		g.emit(EventPlayerRecovered, p.ID, map[string]interface{}{"cash": p.Cash})
		return
	}
	g.bankrupt(p)
}

// sellOneHouse sells a single development unit. With even building on, only properties at
// their group's highest level are candidates so the group stays even.
func (g *TycoonGame) sellOneHouse(p *models.Player) bool {
	var candidates []*board.Square
	for _, id := range g.ownedBy(p.ID) {
		o := g.Ownership[id]
		if o.Development == 0 {
			continue
		}
		sq, _ := g.Board.Square(id)
		if g.Rules.EvenBuild && o.Development < g.groupMaxLevel(sq.Group) {
			continue
		}
		candidates = append(candidates, sq)
	}
	if len(candidates) == 0 {
		return false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Rent[board.MaxDevelopment] > candidates[j].Rent[board.MaxDevelopment]
	})
	for _, sq := range candidates {
		if err := g.Develop(sq.ID, p.ID, -1); err != nil {
			g.log.WithError(err).Warnf("cannot sell house on %d", sq.ID)
			continue
		}
		g.credit(p, sq.HouseCost/2, "house_sale")
		g.emit(EventPropertyUndeveloped, p.ID, map[string]interface{}{
			"property_id": sq.ID,
			"level":       g.Ownership[sq.ID].Development,
			"forced":      true,
		})
		return true
	}
	return false
}

func (g *TycoonGame) groupMaxLevel(group string) int {
	grp, ok := g.Board.Group(group)
	if !ok {
		return 0
	}
	max := 0
	for _, id := range grp.Members {
		if l := g.Ownership[id].Development; l > max {
			max = l
		}
	}
	return max
}

// mortgageOne mortgages the most valuable unmortgaged, undeveloped property of p.
func (g *TycoonGame) mortgageOne(p *models.Player) bool {
	var best *board.Square
	for _, id := range g.ownedBy(p.ID) {
		o := g.Ownership[id]
		if o.Mortgaged || o.Development > 0 {
			continue
		}
		sq, _ := g.Board.Square(id)
		if best == nil || sq.Price > best.Price {
			best = sq
		}
	}
	if best == nil {
		return false
	}
	if err := g.SetMortgaged(best.ID, true); err != nil {
		g.log.WithError(err).Warnf("cannot mortgage %d", best.ID)
		return false
	}
	g.credit(p, best.MortgageValue(), "mortgage")
	g.emit(EventPropertyMortgaged, p.ID, map[string]interface{}{"property_id": best.ID, "forced": true})
	return true
}

// settleDebt pays an outstanding debt in full once p is solvent again.
func (g *TycoonGame) settleDebt(p *models.Player) {
	if p.Debt == nil {
		return
	}
	d := p.Debt
	p.Debt = nil
	g.deliver(d.Creditor, d.Amount)
	g.emit(EventDebtSettled, p.ID, map[string]interface{}{"creditor": d.Creditor, "amount": d.Amount})
}

// bankrupt eliminates p. The creditor receives what liquidation raised toward the debt and
// p's properties; a bank creditor gets the properties back unencumbered.
func (g *TycoonGame) bankrupt(p *models.Player) {
	creditor := uuid.Nil
	if p.Debt != nil {
		creditor = p.Debt.Creditor
		if raised := p.Debt.Amount + p.Cash; raised > 0 {
			g.deliver(creditor, raised)
		}
	}
	if creditor != uuid.Nil {
		if c, err := g.player(creditor); err != nil || c.Bankrupt {
			creditor = uuid.Nil
		}
	}
	p.Cash = 0
	p.Debt = nil
	p.Bankrupt = true
	p.InJail = false

	transferred := []int{}
	for _, id := range g.ownedBy(p.ID) {
		// houses go back to the bank with the estate
		g.Ownership[id].Development = 0
		if err := g.Transfer(id, creditor); err != nil {
			g.log.WithError(err).Warnf("cannot transfer %d", id)
			continue
		}
		transferred = append(transferred, id)
	}
	if creditor != uuid.Nil && p.JailCards > 0 {
		if c, err := g.player(creditor); err == nil {
			c.JailCards += p.JailCards
		}
	}
	p.JailCards = 0

	g.expireTradesOf(p.ID)
	for id, pk := range g.Perks {
		if pk.OwnerID == p.ID {
			delete(g.Perks, id)
		}
	}

	g.Eliminated = append(g.Eliminated, p.ID)
	g.emit(EventPlayerBankrupt, p.ID, map[string]interface{}{
		"creditor":   creditor,
		"properties": transferred,
	})
	g.log.WithFields(logrus.Fields{"player": p.ID, "creditor": creditor}).Info("participant bankrupt")

	g.removeFromTurnOrder(p.ID)
}

// removeFromTurnOrder drops id from play. If it was id's turn, the next participant starts a
// fresh turn. One survivor finishes the game.
func (g *TycoonGame) removeFromTurnOrder(id uuid.UUID) {
	idx := -1
	for i, pid := range g.PlayerOrder {
		if pid == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	wasActive := idx == g.ActiveIndex
	g.PlayerOrder = append(g.PlayerOrder[:idx], g.PlayerOrder[idx+1:]...)
	if idx < g.ActiveIndex {
		g.ActiveIndex--
	}
	if len(g.PlayerOrder) == 0 {
		g.ActiveIndex = 0
		return
	}
	if g.ActiveIndex >= len(g.PlayerOrder) {
		g.ActiveIndex = 0
	}
	if len(g.PlayerOrder) == 1 {
		g.finish(g.PlayerOrder[0])
		return
	}
	if wasActive {
		g.startTurn()
	}
}
