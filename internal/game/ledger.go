// internal/game/ledger.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/board"
	"github.com/jason-s-yu/tycoon/internal/models"
)

// OwnershipLookup returns the ownership record of a property, or nil if it is not ownable.
type OwnershipLookup func(propertyID int) *models.PropertyOwnership

// HasMonopoly reports whether owner holds every property of group.
func HasMonopoly(b *board.Board, own OwnershipLookup, owner uuid.UUID, group string) bool {
	if owner == uuid.Nil {
		return false
	}
	g, ok := b.Group(group)
	if !ok {
		return false
	}
	for _, id := range g.Members {
		o := own(id)
		if o == nil || o.Owner != owner {
			return false
		}
	}
	return true
}

// CountOwnedInGroup counts group members held by owner.
func CountOwnedInGroup(b *board.Board, own OwnershipLookup, owner uuid.UUID, group string) int {
	g, ok := b.Group(group)
	if !ok {
		return 0
	}
	n := 0
	for _, id := range g.Members {
		if o := own(id); o != nil && o.Owner == owner {
			n++
		}
	}
	return n
}

func (g *TycoonGame) lookup(id int) *models.PropertyOwnership {
	return g.Ownership[id]
}

// property resolves an ownable square and its ownership record.
func (g *TycoonGame) property(id int) (*models.PropertyOwnership, *board.Square, error) {
	sq, ok := g.Board.Square(id)
	if !ok {
		return nil, nil, newError(KindNotFound, "property %d", id)
	}
	o, ok := g.Ownership[id]
	if !ok || !sq.Ownable() {
		return nil, nil, newError(KindNotFound, "square %d is not ownable", id)
	}
	return o, sq, nil
}

// HasMonopoly is the live-state form of the package-level query.
func (g *TycoonGame) HasMonopoly(owner uuid.UUID, group string) bool {
	return HasMonopoly(g.Board, g.lookup, owner, group)
}

// Acquire gives a bank-held property to owner. No money moves.
func (g *TycoonGame) Acquire(propertyID int, owner uuid.UUID) error {
	o, _, err := g.property(propertyID)
	if err != nil {
		return err
	}
	if o.Owned() {
		return newError(KindAlreadyOwned, "property %d is owned by %s", propertyID, o.Owner)
	}
	o.Owner = owner
	o.Mortgaged = false
	o.Development = 0
	return nil
}

// Transfer hands a property to newOwner without moving money. Passing uuid.Nil returns it to
// the bank, which clears mortgage and development.
func (g *TycoonGame) Transfer(propertyID int, newOwner uuid.UUID) error {
	o, _, err := g.property(propertyID)
	if err != nil {
		return err
	}
	if o.Development > 0 {
		return newError(KindInvalidState, "property %d is developed", propertyID)
	}
	o.Owner = newOwner
	if newOwner == uuid.Nil {
		o.Mortgaged = false
	}
	return nil
}

// SetMortgaged flips the mortgage flag. No money moves.
func (g *TycoonGame) SetMortgaged(propertyID int, mortgaged bool) error {
	o, _, err := g.property(propertyID)
	if err != nil {
		return err
	}
	if !o.Owned() {
		return newError(KindInvalidState, "property %d is held by the bank", propertyID)
	}
	if mortgaged && o.Development > 0 {
		return newError(KindInvalidState, "property %d has development level %d", propertyID, o.Development)
	}
	if o.Mortgaged == mortgaged {
		return newError(KindInvalidState, "property %d mortgaged is already %v", propertyID, mortgaged)
	}
	o.Mortgaged = mortgaged
	return nil
}

// Develop changes the development level of a property by delta (+1 build, -1 sell) on behalf
// of owner. No money moves.
func (g *TycoonGame) Develop(propertyID int, owner uuid.UUID, delta int) error {
	o, sq, err := g.property(propertyID)
	if err != nil {
		return err
	}
	if !sq.Developable() {
		return newError(KindInvalidState, "%s cannot be developed", sq.Name)
	}
	if o.Owner != owner {
		return newError(KindInvalidState, "property %d is not owned by %s", propertyID, owner)
	}
	if !g.HasMonopoly(owner, sq.Group) {
		return newError(KindMonopolyRequired, "%s requires the whole %s group", sq.Name, sq.Group)
	}
	level := o.Development + delta
	if level < 0 || level > board.MaxDevelopment {
		return newError(KindInvalidState, "development level %d out of range", level)
	}
	grp, _ := g.Board.Group(sq.Group)
	minLevel, maxLevel := board.MaxDevelopment, 0
	for _, id := range grp.Members {
		m := g.Ownership[id]
		if delta > 0 && m.Mortgaged {
			return newError(KindInvalidState, "group %s has a mortgaged property", sq.Group)
		}
		lvl := m.Development
		if id == propertyID {
			lvl = level
		}
		if lvl < minLevel {
			minLevel = lvl
		}
		if lvl > maxLevel {
			maxLevel = lvl
		}
	}
	if g.Rules.EvenBuild && maxLevel-minLevel > 1 {
		return newError(KindUnevenBuild, "%s would be %d while the group ranges %d-%d", sq.Name, level, minLevel, maxLevel)
	}
	o.Development = level
	return nil
}

// ownedBy lists property ids held by owner, ascending.
func (g *TycoonGame) ownedBy(owner uuid.UUID) []int {
	var out []int
	for _, id := range g.Board.Properties() {
		if g.Ownership[id].Owner == owner {
			out = append(out, id)
		}
	}
	return out
}
