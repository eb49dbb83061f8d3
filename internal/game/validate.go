// internal/game/validate.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/board"
	"github.com/jason-s-yu/tycoon/internal/models"
)

// ValidateRecord checks a persisted record against the board before it is resumed. Any
// failure means the state is corrupt and the session must be aborted.
func ValidateRecord(b *board.Board, rec *models.SessionRecord) error {
	corrupt := func(format string, args ...interface{}) error {
		e := newError(KindInvalidState, format, args...)
		e.Msg = "corrupt session state: " + e.Msg
		return e
	}
	players := make(map[uuid.UUID]*models.Player, len(rec.Players))
	for i := range rec.Players {
		p := &rec.Players[i]
		if _, dup := players[p.ID]; dup {
			return corrupt("duplicate participant %s", p.ID)
		}
		players[p.ID] = p
		if p.Position < 0 || p.Position >= b.Size() {
			return corrupt("participant %s at position %d", p.ID, p.Position)
		}
	}
	seen := map[int]bool{}
	for _, o := range rec.Ownership {
		sq, ok := b.Square(o.PropertyID)
		if !ok || !sq.Ownable() {
			return corrupt("ownership of unknown property %d", o.PropertyID)
		}
		if _, ok := b.Group(sq.Group); !ok {
			return corrupt("property %d references missing group %q", o.PropertyID, sq.Group)
		}
		if seen[o.PropertyID] {
			return corrupt("property %d has two owners", o.PropertyID)
		}
		seen[o.PropertyID] = true
		if o.Owned() {
			if _, ok := players[o.Owner]; !ok {
				return corrupt("property %d owned by unknown participant %s", o.PropertyID, o.Owner)
			}
		}
		if o.Development < 0 || o.Development > board.MaxDevelopment {
			return corrupt("property %d development level %d", o.PropertyID, o.Development)
		}
		if o.Development > 0 && (!o.Owned() || o.Mortgaged || !sq.Developable()) {
			return corrupt("property %d developed while unowned or mortgaged", o.PropertyID)
		}
	}
	g := rec.Game
	for _, id := range g.PlayerOrder {
		p, ok := players[id]
		if !ok {
			return corrupt("turn order references unknown participant %s", id)
		}
		if p.Bankrupt {
			return corrupt("bankrupt participant %s still in turn order", id)
		}
	}
	if g.Status == models.StatusRunning && (g.ActiveIndex < 0 || g.ActiveIndex >= len(g.PlayerOrder)) {
		return corrupt("active index %d out of range", g.ActiveIndex)
	}
	for _, t := range rec.Trades {
		if _, ok := players[t.ProposerID]; !ok {
			return corrupt("trade %s from unknown participant", t.ID)
		}
		if _, ok := players[t.TargetID]; !ok {
			return corrupt("trade %s to unknown participant", t.ID)
		}
	}
	for _, pk := range rec.Perks {
		if !pk.Kind.Valid() {
			return corrupt("perk %s has unknown kind %d", pk.ID, pk.Kind)
		}
		if _, ok := players[pk.OwnerID]; !ok {
			return corrupt("perk %s owned by unknown participant", pk.ID)
		}
	}
	return nil
}
