package agent

import (
	"io"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/board"
	"github.com/jason-s-yu/tycoon/internal/game"
	"github.com/jason-s-yu/tycoon/internal/models"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// table is a hand-built two-participant position for policy tests.
type table struct {
	self, other uuid.UUID
	rec         *models.SessionRecord
}

func newTable(selfCash, otherCash int) *table {
	self, other := uuid.New(), uuid.New()
	rec := &models.SessionRecord{
		Game: models.Game{
			ID:              uuid.New(),
			Status:          models.StatusRunning,
			Rules:           models.DefaultRules(),
			PlayerOrder:     []uuid.UUID{self, other},
			Phase:           models.PhaseAwaitingRoll,
			PendingProperty: -1,
		},
		Players: []models.Player{
			{ID: self, Name: "self", Kind: models.KindAgent, Cash: selfCash},
			{ID: other, Name: "other", Kind: models.KindAgent, Cash: otherCash, TurnOrder: 1},
		},
	}
	for _, pid := range board.Classic().Properties() {
		rec.Ownership = append(rec.Ownership, models.PropertyOwnership{PropertyID: pid})
	}
	return &table{self: self, other: other, rec: rec}
}

func (t *table) own(owner uuid.UUID, ids ...int) *table {
	for _, id := range ids {
		t.at(id).Owner = owner
	}
	return t
}

func (t *table) develop(level int, ids ...int) *table {
	for _, id := range ids {
		t.at(id).Development = level
	}
	return t
}

func (t *table) mortgage(ids ...int) *table {
	for _, id := range ids {
		t.at(id).Mortgaged = true
	}
	return t
}

func (t *table) at(id int) *models.PropertyOwnership {
	for i := range t.rec.Ownership {
		if t.rec.Ownership[i].PropertyID == id {
			return &t.rec.Ownership[i]
		}
	}
	panic("unknown property")
}

func (t *table) view() View {
	return View{Snap: game.NewSnapshot(board.Classic(), t.rec), Self: t.self}
}

// offerFromOther is an offer addressed to self.
func (t *table) offerFromOther(terms models.TradeTerms) models.TradeOffer {
	return models.TradeOffer{
		ID:         uuid.New(),
		ProposerID: t.other,
		TargetID:   t.self,
		TradeTerms: terms,
		Status:     models.TradePending,
	}
}
