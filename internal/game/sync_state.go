// internal/game/sync_state.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/board"
	"github.com/jason-s-yu/tycoon/internal/models"
)

// ObfPerk is a perk as seen by a viewer. Other participants' unarmed perks only show their kind.
type ObfPerk struct {
	ID       uuid.UUID `json:"id,omitempty"`
	Kind     string    `json:"kind"`
	Strength int       `json:"strength,omitempty"`
	Armed    bool      `json:"armed"`
}

// ObfPlayerState is one participant from the perspective of a viewer.
type ObfPlayerState struct {
	PlayerID      uuid.UUID              `json:"player_id"`
	Name          string                 `json:"name"`
	Kind          models.ParticipantKind `json:"kind"`
	Cash          int                    `json:"cash"`
	NetWorth      int                    `json:"net_worth"`
	Position      int                    `json:"position"`
	InJail        bool                   `json:"in_jail"`
	JailCards     int                    `json:"jail_cards"`
	TurnCount     int                    `json:"turn_count"`
	Bankrupt      bool                   `json:"bankrupt"`
	Placement     int                    `json:"placement,omitempty"`
	IsCurrentTurn bool                   `json:"is_current_turn"`
	Perks         []ObfPerk              `json:"perks,omitempty"`
}

// ObfGameState is the state projection returned by every command and query.
type ObfGameState struct {
	GameID          uuid.UUID                  `json:"game_id"`
	Status          models.GameStatus          `json:"status"`
	Phase           models.TurnPhase           `json:"phase"`
	CurrentPlayerID uuid.UUID                  `json:"current_player_id,omitempty"`
	PendingProperty int                        `json:"pending_property"`
	Auction         *models.Auction            `json:"auction,omitempty"`
	ExtraRoll       bool                       `json:"extra_roll"`
	LastRoll        [2]int                     `json:"last_roll"`
	TurnCount       int                        `json:"turn_count"`
	WinnerID        uuid.UUID                  `json:"winner_id,omitempty"`
	ValidWin        bool                       `json:"valid_win"`
	Rules           models.Rules               `json:"rules"`
	Players         []ObfPlayerState           `json:"players"`
	Ownership       []models.PropertyOwnership `json:"ownership"`
	Trades          []models.TradeOffer        `json:"trades"`
}

// Snapshot is an immutable copy of a session taken after a command. Queries read it
// concurrently with the serial command loop.
type Snapshot struct {
	Record *models.SessionRecord
	Board  *board.Board

	owned map[int]*models.PropertyOwnership
}

// NewSnapshot indexes a record for queries. rec must not be mutated afterwards.
func NewSnapshot(b *board.Board, rec *models.SessionRecord) *Snapshot {
	s := &Snapshot{Record: rec, Board: b, owned: make(map[int]*models.PropertyOwnership, len(rec.Ownership))}
	for i := range rec.Ownership {
		s.owned[rec.Ownership[i].PropertyID] = &rec.Ownership[i]
	}
	return s
}

func (s *Snapshot) lookup(id int) *models.PropertyOwnership { return s.owned[id] }

// Player returns a participant by id.
func (s *Snapshot) Player(id uuid.UUID) (*models.Player, bool) {
	for i := range s.Record.Players {
		if s.Record.Players[i].ID == id {
			return &s.Record.Players[i], true
		}
	}
	return nil, false
}

// PlayerByUser maps an account to its participant in this game.
func (s *Snapshot) PlayerByUser(userID uuid.UUID) (*models.Player, bool) {
	for i := range s.Record.Players {
		if s.Record.Players[i].UserID == userID {
			return &s.Record.Players[i], true
		}
	}
	return nil, false
}

// Current returns the participant whose turn it is.
func (s *Snapshot) Current() (*models.Player, bool) {
	g := s.Record.Game
	if g.Status != models.StatusRunning || len(g.PlayerOrder) == 0 {
		return nil, false
	}
	return s.Player(g.PlayerOrder[g.ActiveIndex])
}

// Ownership returns the ownership record of a property.
func (s *Snapshot) Ownership(propertyID int) (models.PropertyOwnership, bool) {
	o, ok := s.owned[propertyID]
	if !ok {
		return models.PropertyOwnership{}, false
	}
	return *o, true
}

// OwnedBy lists the properties a participant holds.
func (s *Snapshot) OwnedBy(owner uuid.UUID) []models.PropertyOwnership {
	var out []models.PropertyOwnership
	for _, o := range s.Record.Ownership {
		if o.Owner == owner {
			out = append(out, o)
		}
	}
	return out
}

// HasMonopoly reports whether owner holds the whole group.
func (s *Snapshot) HasMonopoly(owner uuid.UUID, group string) bool {
	return HasMonopoly(s.Board, s.lookup, owner, group)
}

// CountOwnedInGroup counts group members held by owner.
func (s *Snapshot) CountOwnedInGroup(owner uuid.UUID, group string) int {
	return CountOwnedInGroup(s.Board, s.lookup, owner, group)
}

// NetWorth values a participant.
func (s *Snapshot) NetWorth(id uuid.UUID) (int, error) {
	p, ok := s.Player(id)
	if !ok {
		return 0, newError(KindNotFound, "participant %s", id)
	}
	return NetWorth(s.Board, s.lookup, p), nil
}

// Trade returns an offer by id.
func (s *Snapshot) Trade(id uuid.UUID) (*models.TradeOffer, bool) {
	for i := range s.Record.Trades {
		if s.Record.Trades[i].ID == id {
			return &s.Record.Trades[i], true
		}
	}
	return nil, false
}

// PendingTradesFor lists Pending offers addressed to target.
func (s *Snapshot) PendingTradesFor(target uuid.UUID) []models.TradeOffer {
	var out []models.TradeOffer
	for _, t := range s.Record.Trades {
		if t.Status == models.TradePending && t.TargetID == target {
			out = append(out, t)
		}
	}
	return out
}

// PerksOf lists the perks a participant holds.
func (s *Snapshot) PerksOf(owner uuid.UUID) []models.PerkEffect {
	var out []models.PerkEffect
	for _, pk := range s.Record.Perks {
		if pk.OwnerID == owner {
			out = append(out, pk)
		}
	}
	return out
}

// Favorability scores an offer from perspective. Repeated calls on an unchanged offer agree.
func (s *Snapshot) Favorability(offerID, perspective uuid.UUID) (int, error) {
	t, ok := s.Trade(offerID)
	if !ok {
		return 0, newError(KindNotFound, "trade offer %s", offerID)
	}
	return OfferFavorability(s.Board, t, perspective)
}

// ProjectFor builds the state view for viewer. uuid.Nil views as a spectator.
func (s *Snapshot) ProjectFor(viewer uuid.UUID) ObfGameState {
	g := s.Record.Game
	obf := ObfGameState{
		GameID:          g.ID,
		Status:          g.Status,
		Phase:           g.Phase,
		PendingProperty: g.PendingProperty,
		Auction:         g.Auction,
		ExtraRoll:       g.ExtraRoll,
		LastRoll:        g.LastRoll,
		TurnCount:       g.TurnCount,
		WinnerID:        g.WinnerID,
		ValidWin:        g.ValidWin,
		Rules:           g.Rules,
		Ownership:       s.Record.Ownership,
		Trades:          s.Record.Trades,
	}
	cur, hasCur := s.Current()
	if hasCur {
		obf.CurrentPlayerID = cur.ID
	}
	for i := range s.Record.Players {
		pl := &s.Record.Players[i]
		ps := ObfPlayerState{
			PlayerID:      pl.ID,
			Name:          pl.Name,
			Kind:          pl.Kind,
			Cash:          pl.Cash,
			NetWorth:      NetWorth(s.Board, s.lookup, pl),
			Position:      pl.Position,
			InJail:        pl.InJail,
			JailCards:     pl.JailCards,
			TurnCount:     pl.TurnCount,
			Bankrupt:      pl.Bankrupt,
			Placement:     pl.Placement,
			IsCurrentTurn: hasCur && cur.ID == pl.ID,
		}
		for _, pk := range s.PerksOf(pl.ID) {
			if pl.ID == viewer || pk.Armed {
				ps.Perks = append(ps.Perks, ObfPerk{ID: pk.ID, Kind: pk.Kind.String(), Strength: pk.Strength, Armed: pk.Armed})
			} else {
				ps.Perks = append(ps.Perks, ObfPerk{Kind: pk.Kind.String()})
			}
		}
		obf.Players = append(obf.Players, ps)
	}
	return obf
}
