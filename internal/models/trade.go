package models

import (
	"time"

	"github.com/google/uuid"
)

type TradeStatus string

const (
	TradePending   TradeStatus = "pending"
	TradeAccepted  TradeStatus = "accepted"
	TradeDeclined  TradeStatus = "declined"
	TradeCountered TradeStatus = "countered"
	TradeExpired   TradeStatus = "expired"
)

// TradeTerms is what each side puts on the table.
type TradeTerms struct {
	OfferedProperties   []int `json:"offered_properties"`
	OfferedCash         int   `json:"offered_cash"`
	RequestedProperties []int `json:"requested_properties"`
	RequestedCash       int   `json:"requested_cash"`
}

// IsEmpty reports whether neither side offers anything.
func (t TradeTerms) IsEmpty() bool {
	return len(t.OfferedProperties) == 0 && len(t.RequestedProperties) == 0 && t.OfferedCash == 0 && t.RequestedCash == 0
}

// TradeOffer is a proposal from one participant to another. ParentID links a counter to
// the offer it replaced.
type TradeOffer struct {
	ID         uuid.UUID `json:"id"`
	ParentID   uuid.UUID `json:"parent_id,omitempty"`
	ProposerID uuid.UUID `json:"proposer_id"`
	TargetID   uuid.UUID `json:"target_id"`
	TradeTerms
	Status    TradeStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Terminal reports whether the offer can no longer change.
func (o *TradeOffer) Terminal() bool {
	return o.Status != TradePending
}
