package models

import "github.com/google/uuid"

// PropertyOwnership is the per-game state of one ownable square. Owner uuid.Nil means the bank.
type PropertyOwnership struct {
	PropertyID  int       `json:"property_id"`
	Owner       uuid.UUID `json:"owner"`
	Mortgaged   bool      `json:"mortgaged"`
	Development int       `json:"development"` // 0 none, 1-4 houses, 5 hotel
}

// Owned reports whether a participant holds the property.
func (o PropertyOwnership) Owned() bool {
	return o.Owner != uuid.Nil
}
