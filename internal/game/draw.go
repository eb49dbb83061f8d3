// internal/game/draw.go
package game

import (
	"math/rand"

	"github.com/jason-s-yu/tycoon/internal/board"
)

// EffectKind is what a drawn card does.
type EffectKind string

const (
	EffectCash            EffectKind = "cash"              // Amount > 0 credit, < 0 charge
	EffectCollectFromEach EffectKind = "collect_from_each" // every other participant pays Amount
	EffectPayEach         EffectKind = "pay_each"          // pay Amount to every other participant
	EffectAdvanceTo       EffectKind = "advance_to"        // move forward to Target
	EffectMoveBy          EffectKind = "move_by"           // move Steps, negative is backward
	EffectGoToJail        EffectKind = "go_to_jail"
	EffectJailCard        EffectKind = "jail_card"
	EffectRepairs         EffectKind = "repairs"          // PerHouse per house, PerHotel per hotel
	EffectNearestRailroad EffectKind = "nearest_railroad" // rent times Multiplier if owned
	EffectNearestUtility  EffectKind = "nearest_utility"  // dice times Multiplier if owned
)

// Effect is a drawn chance or community card.
type Effect struct {
	Kind       EffectKind `json:"kind"`
	Text       string     `json:"text"`
	Amount     int        `json:"amount,omitempty"`
	Target     int        `json:"target,omitempty"`
	Steps      int        `json:"steps,omitempty"`
	PerHouse   int        `json:"per_house,omitempty"`
	PerHotel   int        `json:"per_hotel,omitempty"`
	Multiplier int        `json:"multiplier,omitempty"`
}

// DrawProvider yields the outcome of drawing from the chance or community pile.
type DrawProvider interface {
	Draw(kind board.SquareType) Effect
}

var chanceCards = []Effect{
	{Kind: EffectAdvanceTo, Text: "Advance to Go (Collect $200)", Target: 0},
	{Kind: EffectAdvanceTo, Text: "Advance to Illinois Avenue - If you pass Go, collect $200", Target: 24},
	{Kind: EffectAdvanceTo, Text: "Advance to St. Charles Place - If you pass Go, collect $200", Target: 11},
	{Kind: EffectNearestUtility, Text: "Advance token to nearest Utility. Pay 10x dice.", Multiplier: 10},
	{Kind: EffectNearestRailroad, Text: "Advance token to nearest Railroad. Pay 2x rent.", Multiplier: 2},
	{Kind: EffectCash, Text: "Bank pays you dividend of $50", Amount: 50},
	{Kind: EffectJailCard, Text: "Get out of Jail Free"},
	{Kind: EffectMoveBy, Text: "Go Back 3 Spaces", Steps: -3},
	{Kind: EffectGoToJail, Text: "Go to Jail directly, do not pass Go, do not collect $200"},
	{Kind: EffectRepairs, Text: "Make general repairs - $25 house, $100 hotel", PerHouse: 25, PerHotel: 100},
	{Kind: EffectCash, Text: "Pay poor tax of $15", Amount: -15},
	{Kind: EffectAdvanceTo, Text: "Take a trip to Reading Railroad", Target: 5},
	{Kind: EffectAdvanceTo, Text: "Take a walk on the Boardwalk", Target: 39},
	{Kind: EffectCash, Text: "Speeding fine $200", Amount: -200},
	{Kind: EffectCash, Text: "Building loan matures - collect $150", Amount: 150},
}

var communityCards = []Effect{
	{Kind: EffectAdvanceTo, Text: "Advance to Go (Collect $200)", Target: 0},
	{Kind: EffectCash, Text: "Bank error in your favor - Collect $200", Amount: 200},
	{Kind: EffectCash, Text: "Doctor fee - Pay $50", Amount: -50},
	{Kind: EffectCash, Text: "From sale of stock - Collect $50", Amount: 50},
	{Kind: EffectJailCard, Text: "Get Out of Jail Free"},
	{Kind: EffectGoToJail, Text: "Go to Jail"},
	{Kind: EffectCollectFromEach, Text: "Grand Opera Night - collect $50 from every player", Amount: 50},
	{Kind: EffectCash, Text: "Holiday Fund matures - Receive $100", Amount: 100},
	{Kind: EffectCash, Text: "Income tax refund - Collect $20", Amount: 20},
	{Kind: EffectCash, Text: "Life insurance matures - Collect $100", Amount: 100},
	{Kind: EffectCash, Text: "Pay hospital fees of $100", Amount: -100},
	{Kind: EffectCash, Text: "Pay school fees of $150", Amount: -150},
	{Kind: EffectCash, Text: "Receive $25 consultancy fee", Amount: 25},
	{Kind: EffectRepairs, Text: "Street repairs - $40 per house, $115 per hotel", PerHouse: 40, PerHotel: 115},
	{Kind: EffectCash, Text: "Won second prize in beauty contest - Collect $10", Amount: 10},
	{Kind: EffectCash, Text: "You inherit $100", Amount: 100},
}

// DeckProvider deals from shuffled chance and community piles, reshuffling when a pile runs out.
type DeckProvider struct {
	rng       *rand.Rand
	chance    []Effect
	community []Effect
	ci, ki    int
}

// NewDeckProvider returns the standard decks shuffled with rng.
func NewDeckProvider(rng *rand.Rand) *DeckProvider {
	d := &DeckProvider{
		rng:       rng,
		chance:    append([]Effect(nil), chanceCards...),
		community: append([]Effect(nil), communityCards...),
	}
	d.shuffle(d.chance)
	d.shuffle(d.community)
	return d
}

func (d *DeckProvider) shuffle(cards []Effect) {
	d.rng.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
}

func (d *DeckProvider) Draw(kind board.SquareType) Effect {
	if kind == board.TypeChance {
		if d.ci >= len(d.chance) {
			d.shuffle(d.chance)
			d.ci = 0
		}
		c := d.chance[d.ci]
		d.ci++
		return c
	}
	if d.ki >= len(d.community) {
		d.shuffle(d.community)
		d.ki = 0
	}
	c := d.community[d.ki]
	d.ki++
	return c
}

// FixedDraws returns scripted effects in order; once exhausted it returns a zero cash effect.
type FixedDraws struct {
	Effects []Effect
	next    int
}

func (f *FixedDraws) Draw(board.SquareType) Effect {
	if f.next >= len(f.Effects) {
		return Effect{Kind: EffectCash, Text: "Nothing happens"}
	}
	e := f.Effects[f.next]
	f.next++
	return e
}
