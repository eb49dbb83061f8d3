package agent

import (
	"sort"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/board"
	"github.com/jason-s-yu/tycoon/internal/models"
)

// landingRank orders classic positions by how often they are landed on; 1 is the most visited.
var landingRank = map[int]int{
	5: 1, 6: 2, 7: 3, 8: 4, 9: 5, 11: 6, 13: 7, 14: 8, 16: 9, 18: 10,
	19: 11, 21: 12, 23: 13, 24: 14, 26: 15, 27: 16, 29: 17, 31: 18, 32: 19, 34: 20, 37: 21, 39: 22,
	1: 30, 2: 25, 3: 29, 4: 35, 12: 32, 17: 28, 22: 26, 28: 33, 33: 27, 36: 24, 38: 23,
}

const defaultLandingRank = 25

// buildPriority ranks colour groups by return on development.
var buildPriority = []string{
	board.GroupOrange, board.GroupRed, board.GroupYellow, board.GroupPink,
	board.GroupLightBlue, board.GroupGreen, board.GroupBrown, board.GroupDarkBlue,
}

func priorityOf(group string) int {
	for i, g := range buildPriority {
		if g == group {
			return i
		}
	}
	return len(buildPriority)
}

// BuyScore rates buying propertyID for the viewing participant on a 5..98 scale.
func BuyScore(v View, propertyID int) int {
	b := v.Board()
	sq, ok := b.Square(propertyID)
	if !ok || !sq.Ownable() || sq.Price <= 0 {
		return 0
	}
	me := v.Me()
	price := sq.Price
	score := 50

	switch {
	case float64(me.Cash) < float64(price)*1.3:
		score -= 70
	case me.Cash > price*3:
		score += 20
	case me.Cash > price*2:
		score += 10
	}

	grp, hasGroup := b.Group(sq.Group)
	owned := v.Snap.CountOwnedInGroup(v.Self, sq.Group)
	switch sq.Type {
	case board.TypeProperty:
		if hasGroup && owned == len(grp.Members)-1 {
			score += 90
		} else if owned >= 1 {
			score += 35
		}
		roi := float64(sq.Rent[0]) / float64(price)
		if roi > 0.12 {
			score += 25
		} else if roi > 0.08 {
			score += 12
		}
	case board.TypeRailroad:
		score += owned * 28
	case board.TypeUtility:
		score += owned * 35
	}

	rank, ok := landingRank[sq.Position]
	if !ok {
		rank = defaultLandingRank
	}
	score += 30 - rank

	if hasGroup && len(grp.Members) <= 3 {
		for _, id := range grp.Members {
			if o := v.owner(id); o != uuid.Nil && o != v.Self {
				score += 30
				break
			}
		}
	}

	if score < 5 {
		return 5
	}
	if score > 98 {
		return 98
	}
	return score
}

// buildableGroups lists colour groups the participant fully owns with nothing mortgaged,
// best build priority first.
func buildableGroups(v View) []*board.Group {
	var out []*board.Group
	for _, id := range v.Board().Groups() {
		grp, ok := v.Board().Group(id)
		if !ok || len(grp.Members) == 0 {
			continue
		}
		first, _ := v.Board().Square(grp.Members[0])
		if !first.Developable() || !v.Snap.HasMonopoly(v.Self, grp.ID) {
			continue
		}
		clean := true
		for _, id := range grp.Members {
			if o, _ := v.Snap.Ownership(id); o.Mortgaged {
				clean = false
				break
			}
		}
		if clean {
			out = append(out, grp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return priorityOf(out[i].ID) < priorityOf(out[j].ID) })
	return out
}

// counterTerms answers offer from its target's side, swapping both sides and asking for extra
// cash on top. Cash flows are netted.
func counterTerms(offer models.TradeOffer, extra int) models.TradeTerms {
	t := models.TradeTerms{
		OfferedProperties:   append([]int(nil), offer.RequestedProperties...),
		RequestedProperties: append([]int(nil), offer.OfferedProperties...),
	}
	net := offer.OfferedCash + extra - offer.RequestedCash
	if net >= 0 {
		t.RequestedCash = net
	} else {
		t.OfferedCash = -net
	}
	return t
}

// affordableCounter checks both parties could honour counter terms right now.
func affordableCounter(v View, offer models.TradeOffer, t models.TradeTerms) bool {
	proposer, ok := v.Snap.Player(offer.ProposerID)
	if !ok || proposer.Bankrupt {
		return false
	}
	if t.IsEmpty() {
		return false
	}
	return t.RequestedCash <= proposer.Cash && t.OfferedCash <= v.Me().Cash
}

func ownedIDs(v View) []int {
	var out []int
	for _, o := range v.Snap.OwnedBy(v.Self) {
		out = append(out, o.PropertyID)
	}
	return out
}
