// internal/board/board.go
package board

import (
	"fmt"
	"sort"
)

// SquareType classifies a board square.
type SquareType string

const (
	TypeProperty  SquareType = "property"
	TypeRailroad  SquareType = "railroad"
	TypeUtility   SquareType = "utility"
	TypeTax       SquareType = "tax"
	TypeChance    SquareType = "chance"
	TypeCommunity SquareType = "community"
	TypeCorner    SquareType = "corner"
)

// CornerKind distinguishes the four corner squares.
type CornerKind string

const (
	CornerGo          CornerKind = "go"
	CornerJail        CornerKind = "jail"
	CornerFreeParking CornerKind = "free_parking"
	CornerGoToJail    CornerKind = "go_to_jail"
)

// MaxDevelopment is a hotel; levels 1-4 are houses.
const MaxDevelopment = 5

// PropertyRentTableSize is the rent table length for developable properties.
const PropertyRentTableSize = MaxDevelopment + 1

// Square is a single static board square. Ownable squares (property, railroad, utility)
// carry a price and a rent table:
//   - property: [site, 1 house, 2 houses, 3 houses, 4 houses, hotel]
//   - railroad: rent indexed by railroads held by the owner minus one
//   - utility: dice multiplier indexed by utilities held by the owner minus one
type Square struct {
	ID        int        `json:"id" yaml:"id"`
	Name      string     `json:"name" yaml:"name"`
	Type      SquareType `json:"type" yaml:"type"`
	Corner    CornerKind `json:"corner,omitempty" yaml:"corner,omitempty"`
	Group     string     `json:"group,omitempty" yaml:"group,omitempty"`
	Price     int        `json:"price,omitempty" yaml:"price,omitempty"`
	Rent      []int      `json:"rent,omitempty" yaml:"rent,omitempty"`
	HouseCost int        `json:"house_cost,omitempty" yaml:"house_cost,omitempty"`
	Tax       int        `json:"tax,omitempty" yaml:"tax,omitempty"`
	Position  int        `json:"position" yaml:"position"`
}

// Ownable reports whether the square can be bought.
func (s *Square) Ownable() bool {
	return s.Type == TypeProperty || s.Type == TypeRailroad || s.Type == TypeUtility
}

// Developable reports whether houses can be built on the square.
func (s *Square) Developable() bool {
	return s.Type == TypeProperty
}

// MortgageValue is the amount the bank lends against the square.
func (s *Square) MortgageValue() int {
	return s.Price / 2
}

// Group is a color group (or the railroad/utility sets).
type Group struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Members []int  `json:"members" yaml:"members"`
}

// Board is the immutable static definition shared by every game on it.
type Board struct {
	squares    []*Square // indexed by position
	byID       map[int]*Square
	groups     map[string]*Group
	jailPos    int
	goToJail   int
	properties []int
}

// Definition is the serialized form of a board, used by file loaders.
type Definition struct {
	Name    string   `json:"name" yaml:"name"`
	Squares []Square `json:"squares" yaml:"squares"`
	Groups  []Group  `json:"groups" yaml:"groups"`
}

// New builds and validates a board from its definition.
func New(def Definition) (*Board, error) {
	b := &Board{
		squares:  make([]*Square, len(def.Squares)),
		byID:     make(map[int]*Square, len(def.Squares)),
		groups:   make(map[string]*Group, len(def.Groups)),
		jailPos:  -1,
		goToJail: -1,
	}
	for i := range def.Squares {
		sq := def.Squares[i]
		if sq.Position < 0 || sq.Position >= len(def.Squares) {
			return nil, fmt.Errorf("square %d: position %d out of range", sq.ID, sq.Position)
		}
		if b.squares[sq.Position] != nil {
			return nil, fmt.Errorf("square %d: duplicate position %d", sq.ID, sq.Position)
		}
		if _, dup := b.byID[sq.ID]; dup {
			return nil, fmt.Errorf("duplicate square id %d", sq.ID)
		}
		b.squares[sq.Position] = &sq
		b.byID[sq.ID] = &sq
	}
	for i := range def.Groups {
		g := def.Groups[i]
		if _, dup := b.groups[g.ID]; dup {
			return nil, fmt.Errorf("duplicate group id %q", g.ID)
		}
		b.groups[g.ID] = &g
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks referential integrity between squares and groups.
func (b *Board) Validate() error {
	if len(b.squares) == 0 {
		return fmt.Errorf("board has no squares")
	}
	hasGo := false
	b.properties = b.properties[:0]
	for pos, sq := range b.squares {
		if sq == nil {
			return fmt.Errorf("no square at position %d", pos)
		}
		switch sq.Corner {
		case CornerGo:
			if pos != 0 {
				return fmt.Errorf("go square must be at position 0, found at %d", pos)
			}
			hasGo = true
		case CornerJail:
			b.jailPos = pos
		case CornerGoToJail:
			b.goToJail = pos
		}
		if !sq.Ownable() {
			continue
		}
		if sq.Price <= 0 {
			return fmt.Errorf("square %d (%s): ownable square needs a positive price", sq.ID, sq.Name)
		}
		g, ok := b.groups[sq.Group]
		if !ok {
			return fmt.Errorf("square %d (%s): references missing group %q", sq.ID, sq.Name, sq.Group)
		}
		if !containsInt(g.Members, sq.ID) {
			return fmt.Errorf("square %d (%s): not listed as member of group %q", sq.ID, sq.Name, sq.Group)
		}
		if sq.Developable() && len(sq.Rent) != PropertyRentTableSize {
			return fmt.Errorf("square %d (%s): rent table needs %d entries, got %d", sq.ID, sq.Name, PropertyRentTableSize, len(sq.Rent))
		}
		if len(sq.Rent) == 0 {
			return fmt.Errorf("square %d (%s): missing rent table", sq.ID, sq.Name)
		}
		b.properties = append(b.properties, sq.ID)
	}
	if !hasGo {
		return fmt.Errorf("board has no go square")
	}
	if b.goToJail >= 0 && b.jailPos < 0 {
		return fmt.Errorf("board has a go-to-jail square but no jail")
	}
	for _, g := range b.groups {
		if len(g.Members) == 0 {
			return fmt.Errorf("group %q has no members", g.ID)
		}
		for _, id := range g.Members {
			sq, ok := b.byID[id]
			if !ok {
				return fmt.Errorf("group %q references missing square %d", g.ID, id)
			}
			if sq.Group != g.ID {
				return fmt.Errorf("group %q lists square %d which belongs to %q", g.ID, id, sq.Group)
			}
		}
	}
	sort.Ints(b.properties)
	return nil
}

// Size is the number of squares on the board.
func (b *Board) Size() int { return len(b.squares) }

// At returns the square at a board position. Positions wrap.
func (b *Board) At(pos int) *Square {
	n := len(b.squares)
	return b.squares[((pos%n)+n)%n]
}

// Square looks up a square by id.
func (b *Board) Square(id int) (*Square, bool) {
	sq, ok := b.byID[id]
	return sq, ok
}

// Group looks up a group by id.
func (b *Board) Group(id string) (*Group, bool) {
	g, ok := b.groups[id]
	return g, ok
}

// Groups returns all group ids in a stable order.
func (b *Board) Groups() []string {
	ids := make([]string, 0, len(b.groups))
	for id := range b.groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Properties returns the ids of every ownable square, ascending.
func (b *Board) Properties() []int {
	out := make([]int, len(b.properties))
	copy(out, b.properties)
	return out
}

// JailPosition returns the jail square position, or -1 if the board has none.
func (b *Board) JailPosition() int { return b.jailPos }

// Nearest finds the first square of the given type strictly ahead of pos, wrapping.
func (b *Board) Nearest(pos int, t SquareType) (*Square, bool) {
	n := len(b.squares)
	for step := 1; step <= n; step++ {
		sq := b.At(pos + step)
		if sq.Type == t {
			return sq, true
		}
	}
	return nil, false
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
