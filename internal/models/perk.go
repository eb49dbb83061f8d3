package models

import "github.com/google/uuid"

// PerkKind identifies a collectible effect. Values match the collectible catalogue ids.
type PerkKind int

const (
	PerkExtraTurn PerkKind = iota + 1
	PerkJailFree
	PerkDoubleRent
	PerkRollBoost
	PerkCashTiered
	PerkTeleport
	PerkShield
	PerkPropertyDiscount
	PerkTaxRefund
	PerkExactRoll
)

var perkNames = map[PerkKind]string{
	PerkExtraTurn:        "extra_turn",
	PerkJailFree:         "jail_free",
	PerkDoubleRent:       "double_rent",
	PerkRollBoost:        "roll_boost",
	PerkCashTiered:       "cash_tiered",
	PerkTeleport:         "teleport",
	PerkShield:           "shield",
	PerkPropertyDiscount: "property_discount",
	PerkTaxRefund:        "tax_refund",
	PerkExactRoll:        "exact_roll",
}

func (k PerkKind) String() string {
	if n, ok := perkNames[k]; ok {
		return n
	}
	return "unknown"
}

// Valid reports whether k is a known perk kind.
func (k PerkKind) Valid() bool {
	_, ok := perkNames[k]
	return ok
}

// Passive perks apply automatically at their trigger once redeemed.
func (k PerkKind) Passive() bool {
	return k == PerkShield || k == PerkDoubleRent
}

// ParsePerkKind maps a perk name back to its kind.
func ParsePerkKind(s string) (PerkKind, bool) {
	for k, n := range perkNames {
		if n == s {
			return k, true
		}
	}
	return 0, false
}

// PerkEffect is a redeemed perk held by a participant. Armed is set once an explicit perk has
// been activated and is waiting for its trigger (next roll, next purchase, end of turn).
type PerkEffect struct {
	ID            uuid.UUID `json:"id"`
	Kind          PerkKind  `json:"kind"`
	OwnerID       uuid.UUID `json:"owner_id"`
	Strength      int       `json:"strength"`
	RemainingUses int       `json:"remaining_uses"`
	Armed         bool      `json:"armed"`
	Value         int       `json:"value,omitempty"`  // requested total for an armed exact roll
	Source        string    `json:"source,omitempty"` // voucher reference
}
