package models

import (
	"time"

	"github.com/google/uuid"
)

type GameStatus string

const (
	StatusPending   GameStatus = "pending"
	StatusRunning   GameStatus = "running"
	StatusFinished  GameStatus = "finished"
	StatusCancelled GameStatus = "cancelled"
)

// TurnPhase is where the active participant's turn is suspended.
type TurnPhase string

const (
	PhaseAwaitingRoll     TurnPhase = "awaiting_roll"
	PhaseAwaitingPurchase TurnPhase = "awaiting_purchase"
	PhaseAuction          TurnPhase = "auction"
	PhasePostLanding      TurnPhase = "post_landing"
	PhaseTurnEnded        TurnPhase = "turn_ended"
)

// Auction is an open bidding round for a bank-held property.
type Auction struct {
	PropertyID int       `json:"property_id"`
	HighBidder uuid.UUID `json:"high_bidder,omitempty"`
	HighBid    int       `json:"high_bid"`
}

// Game is the persisted header of one session.
type Game struct {
	ID              uuid.UUID   `json:"id"`
	Status          GameStatus  `json:"status"`
	Rules           Rules       `json:"rules"`
	PlayerOrder     []uuid.UUID `json:"player_order"` // active, non-bankrupt participants
	ActiveIndex     int         `json:"active_index"`
	Phase           TurnPhase   `json:"phase"`
	PendingProperty int         `json:"pending_property"` // -1 when no purchase decision is pending
	Auction         *Auction    `json:"auction,omitempty"`
	ExtraRoll       bool        `json:"extra_roll"`
	LastRoll        [2]int      `json:"last_roll"`
	TurnCount       int         `json:"turn_count"`
	MoneyIssued     int         `json:"money_issued"`
	MoneyReturned   int         `json:"money_returned"`
	WinnerID        uuid.UUID   `json:"winner_id,omitempty"`
	ValidWin        bool        `json:"valid_win"`
	Eliminated      []uuid.UUID `json:"eliminated,omitempty"` // in elimination order
	ActionIndex     int         `json:"action_index"`
	CreatedAt       time.Time   `json:"created_at"`
	StartedAt       time.Time   `json:"started_at,omitempty"`
	EndedAt         time.Time   `json:"ended_at,omitempty"`
}

// SessionRecord is everything the persistence boundary stores for a game.
type SessionRecord struct {
	Game      Game                `json:"game"`
	Players   []Player            `json:"players"`
	Ownership []PropertyOwnership `json:"ownership"`
	Trades    []TradeOffer        `json:"trades"`
	Perks     []PerkEffect        `json:"perks"`
}
