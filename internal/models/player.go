package models

import (
	"github.com/google/uuid"
)

// ParticipantKind is set at join time and never inferred from display names.
type ParticipantKind string

const (
	KindHuman ParticipantKind = "human"
	KindAgent ParticipantKind = "agent"
)

// Debt is the unpaid part of a rent or tax charge. Creditor uuid.Nil means the bank.
type Debt struct {
	Creditor uuid.UUID `json:"creditor"`
	Amount   int       `json:"amount"`
}

// Player is a participant in one game session.
type Player struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Name      string          `json:"name"`
	Kind      ParticipantKind `json:"kind"`
	Cash      int             `json:"cash"` // may be negative while liquidating
	Position  int             `json:"position"`
	InJail    bool            `json:"in_jail"`
	JailRolls int             `json:"jail_rolls"`
	JailCards int             `json:"jail_cards"`
	TurnOrder int             `json:"turn_order"`
	TurnCount int             `json:"turn_count"` // completed turns, gates win eligibility
	Doubles   int             `json:"doubles"`    // consecutive doubles this turn
	Bankrupt  bool            `json:"bankrupt"`
	Placement int             `json:"placement,omitempty"`
	Debt      *Debt           `json:"debt,omitempty"`
}

// IsAgent reports whether the participant is driven by a decision policy.
func (p *Player) IsAgent() bool {
	return p.Kind == KindAgent
}
