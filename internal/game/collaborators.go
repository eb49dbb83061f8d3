package game

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/models"
)

// Persistence loads and saves whole session records. Implementations must give
// read-your-writes consistency for a single session.
type Persistence interface {
	SaveSession(ctx context.Context, rec *models.SessionRecord) error
	LoadSession(ctx context.Context, id uuid.UUID) (*models.SessionRecord, error)
}

// ActionLog receives every recorded action, in order, for the game history.
type ActionLog interface {
	PublishAction(ctx context.Context, entry models.HistoryEntry) error
}

// CollectibleProvider turns an external voucher into a perk for a participant.
type CollectibleProvider interface {
	Redeem(ctx context.Context, voucher string, owner uuid.UUID) (models.PerkEffect, error)
}

// Dice produces two die faces.
type Dice interface {
	Roll() (int, int)
}

// RandomDice rolls two six-sided dice from r.
type RandomDice struct {
	R *rand.Rand
}

func (d RandomDice) Roll() (int, int) {
	return d.R.Intn(6) + 1, d.R.Intn(6) + 1
}

// FixedDice replays a scripted sequence of rolls, then repeats the last one.
type FixedDice struct {
	Rolls [][2]int
	next  int
}

func (d *FixedDice) Roll() (int, int) {
	if len(d.Rolls) == 0 {
		return 1, 2
	}
	i := d.next
	if i >= len(d.Rolls) {
		i = len(d.Rolls) - 1
	} else {
		d.next++
	}
	return d.Rolls[i][0], d.Rolls[i][1]
}

// Clock returns the current time.
type Clock func() time.Time
