// internal/game/perks.go
package game

import (
	"sort"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/models"
)

// PerkParams carries activation arguments. Target and Backward apply to teleport, Total to
// exact roll.
type PerkParams struct {
	Target   int  `json:"target"`
	Backward bool `json:"backward"`
	Total    int  `json:"total"`
}

const (
	minStrength = 1
	maxStrength = 5
)

// GrantPerk hands a redeemed perk to its owner. Passive perks are armed immediately.
func (g *TycoonGame) GrantPerk(pk models.PerkEffect) (*models.PerkEffect, error) {
	if err := g.requireRunning(); err != nil {
		return nil, err
	}
	if _, err := g.activePlayer(pk.OwnerID); err != nil {
		return nil, err
	}
	if !pk.Kind.Valid() {
		return nil, newError(KindInvalidState, "unknown perk kind %d", pk.Kind)
	}
	if pk.ID == uuid.Nil {
		pk.ID = uuid.New()
	}
	if _, dup := g.Perks[pk.ID]; dup {
		return nil, newError(KindInvalidState, "perk %s already redeemed", pk.ID)
	}
	if pk.Strength < minStrength {
		pk.Strength = minStrength
	}
	if pk.Strength > maxStrength {
		pk.Strength = maxStrength
	}
	pk.RemainingUses = 1
	pk.Armed = pk.Kind.Passive()
	pk.Value = 0
	g.Perks[pk.ID] = &pk
	g.emit(EventPerkRedeemed, pk.OwnerID, map[string]interface{}{"perk_id": pk.ID, "kind": pk.Kind.String(), "strength": pk.Strength})
	return &pk, nil
}

// ActivatePerk applies or arms an explicit perk on behalf of its owner.
func (g *TycoonGame) ActivatePerk(actor, perkID uuid.UUID, params PerkParams) error {
	if err := g.requireRunning(); err != nil {
		return err
	}
	pk, ok := g.Perks[perkID]
	if !ok {
		return newError(KindNotFound, "perk %s", perkID)
	}
	if pk.OwnerID != actor {
		return newError(KindInvalidState, "perk %s is not owned by %s", perkID, actor)
	}
	if pk.Kind.Passive() {
		return newError(KindInvalidState, "%s applies automatically", pk.Kind)
	}
	if pk.Armed {
		return newError(KindInvalidState, "perk %s is already active", perkID)
	}
	p, err := g.activePlayer(actor)
	if err != nil {
		return err
	}

	switch pk.Kind {
	case models.PerkCashTiered:
		g.consumePerk(pk)
		g.credit(p, models.Tier(g.Rules.CashTierValues, pk.Strength), "perk_cash")
		return nil
	case models.PerkTaxRefund:
		g.consumePerk(pk)
		g.credit(p, models.Tier(g.Rules.TaxRefundTierValues, pk.Strength), "perk_tax_refund")
		return nil
	case models.PerkJailFree:
		if !p.InJail {
			return newError(KindInvalidState, "participant is not in jail")
		}
		g.consumePerk(pk)
		g.release(p, "perk")
		return nil
	case models.PerkTeleport:
		return g.teleport(p, pk, params)
	case models.PerkExactRoll:
		if params.Total < 2 || params.Total > 12 {
			return newError(KindInvalidState, "exact roll total %d must be 2-12", params.Total)
		}
		pk.Value = params.Total
	case models.PerkExtraTurn:
		if cur := g.current(); cur == nil || cur.ID != actor {
			return newError(KindInvalidState, "extra turn can only be activated on your turn")
		}
	}
	pk.Armed = true
	g.emit(EventPerkActivated, actor, map[string]interface{}{"perk_id": pk.ID, "kind": pk.Kind.String(), "value": pk.Value})
	return nil
}

// teleport replaces this turn's roll with a direct move to params.Target.
func (g *TycoonGame) teleport(p *models.Player, pk *models.PerkEffect, params PerkParams) error {
	if cur := g.current(); cur == nil || cur.ID != p.ID {
		return newError(KindInvalidState, "teleport is only allowed on your turn")
	}
	if g.Phase != models.PhaseAwaitingRoll {
		return newError(KindInvalidState, "teleport replaces a roll; phase is %s", g.Phase)
	}
	if p.InJail {
		return newError(KindInvalidState, "cannot teleport out of jail")
	}
	if params.Target < 0 || params.Target >= g.Board.Size() {
		return newError(KindInvalidState, "teleport target %d off the board", params.Target)
	}
	var crosses bool
	if params.Backward {
		crosses = g.Rules.PassGoOnBackwardTeleport && params.Target > p.Position
	} else {
		crosses = params.Target < p.Position
	}
	g.consumePerk(pk)
	g.emit(EventPerkActivated, p.ID, map[string]interface{}{"perk_id": pk.ID, "kind": pk.Kind.String(), "target": params.Target})
	g.ExtraRoll = false
	g.moveTo(p, params.Target, crosses, rentModifier{})
	if g.turnPassed(p) {
		return nil
	}
	if g.Phase != models.PhaseAwaitingPurchase {
		g.afterLanding()
	}
	return nil
}

// armedPerk finds an armed perk of kind owned by owner, oldest id first for determinism.
func (g *TycoonGame) armedPerk(owner uuid.UUID, kind models.PerkKind) *models.PerkEffect {
	var found []*models.PerkEffect
	for _, pk := range g.Perks {
		if pk.OwnerID == owner && pk.Kind == kind && pk.Armed && pk.RemainingUses > 0 {
			found = append(found, pk)
		}
	}
	if len(found) == 0 {
		return nil
	}
	sort.Slice(found, func(i, j int) bool { return found[i].ID.String() < found[j].ID.String() })
	return found[0]
}

// consumePassive uses up one armed passive perk of kind, reporting whether one applied.
func (g *TycoonGame) consumePassive(owner uuid.UUID, kind models.PerkKind) bool {
	pk := g.armedPerk(owner, kind)
	if pk == nil {
		return false
	}
	g.consumePerk(pk)
	return true
}

func (g *TycoonGame) consumePerk(pk *models.PerkEffect) {
	pk.RemainingUses--
	if pk.RemainingUses <= 0 {
		delete(g.Perks, pk.ID)
	}
	g.emit(EventPerkConsumed, pk.OwnerID, map[string]interface{}{"perk_id": pk.ID, "kind": pk.Kind.String()})
}
