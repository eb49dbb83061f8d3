package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jason-s-yu/tycoon/internal/board"
	"github.com/jason-s-yu/tycoon/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Completer sends a prompt to a text model and returns its raw reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// errMalformed marks a reply that could not be decoded or failed validation.
var errMalformed = errors.New("malformed model reply")

// LanguageModelPolicy asks a text model for each decision. Replies must be a single JSON
// object; anything else yields the fallback decision. Calls are throttled by Limiter.
type LanguageModelPolicy struct {
	Completer Completer
	Limiter   *rate.Limiter
	Log       *logrus.Entry
}

// NewLanguageModelPolicy allows perSecond model calls with no burst.
func NewLanguageModelPolicy(c Completer, perSecond float64, logger *logrus.Logger) *LanguageModelPolicy {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LanguageModelPolicy{
		Completer: c,
		Limiter:   rate.NewLimiter(rate.Limit(perSecond), 1),
		Log:       logger.WithField("policy", "language_model"),
	}
}

type purchaseReply struct {
	Action     string `json:"action"`
	Reasoning  string `json:"reasoning"`
	Confidence int    `json:"confidence"`
}

type counterReply struct {
	CashAdjustment int `json:"cashAdjustment"`
}

type tradeReply struct {
	Action       string        `json:"action"`
	Reasoning    string        `json:"reasoning"`
	CounterOffer *counterReply `json:"counterOffer"`
}

type buildReply struct {
	Action     string `json:"action"`
	PropertyID *int   `json:"propertyId"`
	Reasoning  string `json:"reasoning"`
}

// stripFences removes a surrounding markdown code fence.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = s[3:]
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && strings.EqualFold(strings.TrimSpace(s[:nl]), "json") {
			s = s[nl+1:]
		} else if strings.HasPrefix(strings.ToLower(s), "json") {
			s = s[4:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// decodeStrict decodes exactly one JSON object with no unknown fields.
func decodeStrict(text string, out interface{}) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(stripFences(text))))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", errMalformed)
	}
	return nil
}

// ask throttles, calls the model and decodes its reply into out.
func (l *LanguageModelPolicy) ask(ctx context.Context, prompt string, out interface{}) error {
	if l.Limiter != nil {
		if err := l.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}
	reply, err := l.Completer.Complete(ctx, prompt)
	if err != nil {
		return fmt.Errorf("completion: %w", err)
	}
	return decodeStrict(reply, out)
}

// settle turns a failed call into the fallback. Malformed output is not an error for the caller.
func (l *LanguageModelPolicy) settle(kind string, err error) error {
	if errors.Is(err, errMalformed) {
		l.Log.WithError(err).Warnf("falling back on %s decision", kind)
		return nil
	}
	return err
}

func (l *LanguageModelPolicy) DecidePurchase(ctx context.Context, v View, propertyID int) (PurchaseDecision, error) {
	if _, ok := v.Board().Square(propertyID); !ok {
		return FallbackPurchase, nil
	}
	var r purchaseReply
	if err := l.ask(ctx, purchasePrompt(v, propertyID), &r); err != nil {
		return FallbackPurchase, l.settle("purchase", err)
	}
	switch r.Action {
	case "buy":
		return PurchaseDecision{Buy: true, Reason: r.Reasoning}, nil
	case "skip":
		return PurchaseDecision{Buy: false, Reason: r.Reasoning}, nil
	}
	return FallbackPurchase, l.settle("purchase", fmt.Errorf("%w: action %q", errMalformed, r.Action))
}

func (l *LanguageModelPolicy) DecideTrade(ctx context.Context, v View, offer models.TradeOffer) (TradeDecision, error) {
	var r tradeReply
	if err := l.ask(ctx, tradePrompt(v, offer), &r); err != nil {
		return FallbackTrade, l.settle("trade", err)
	}
	switch r.Action {
	case "accept":
		return TradeDecision{Action: TradeAccept, Reason: r.Reasoning}, nil
	case "decline":
		return TradeDecision{Action: TradeDecline, Reason: r.Reasoning}, nil
	case "counter":
		if r.CounterOffer == nil || r.CounterOffer.CashAdjustment < 0 {
			break
		}
		terms := counterTerms(offer, r.CounterOffer.CashAdjustment)
		if !affordableCounter(v, offer, terms) {
			return TradeDecision{Action: TradeDecline, Reason: "counter not affordable"}, nil
		}
		return TradeDecision{Action: TradeCounter, Counter: &terms, Reason: r.Reasoning}, nil
	}
	return FallbackTrade, l.settle("trade", fmt.Errorf("%w: action %q", errMalformed, r.Action))
}

func (l *LanguageModelPolicy) DecideBuilding(ctx context.Context, v View) (BuildDecision, error) {
	var r buildReply
	if err := l.ask(ctx, buildPrompt(v), &r); err != nil {
		return FallbackBuild, l.settle("build", err)
	}
	switch r.Action {
	case "wait":
		return BuildDecision{Reason: r.Reasoning}, nil
	case "build":
		if r.PropertyID == nil || !canBuildOn(v, *r.PropertyID) {
			break
		}
		return BuildDecision{Build: true, PropertyID: *r.PropertyID, Reason: r.Reasoning}, nil
	}
	return FallbackBuild, l.settle("build", fmt.Errorf("%w: build reply %+v", errMalformed, r))
}

// canBuildOn checks the chosen property is in one of the participant's buildable groups.
func canBuildOn(v View, propertyID int) bool {
	sq, ok := v.Board().Square(propertyID)
	if !ok {
		return false
	}
	o, _ := v.Snap.Ownership(propertyID)
	if o.Development >= board.MaxDevelopment {
		return false
	}
	for _, grp := range buildableGroups(v) {
		if grp.ID == sq.Group {
			return true
		}
	}
	return false
}

func describeProperties(v View, ids []int) string {
	if len(ids) == 0 {
		return "None"
	}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		sq, ok := v.Board().Square(id)
		if !ok {
			continue
		}
		o, _ := v.Snap.Ownership(id)
		names = append(names, fmt.Sprintf("%s (#%d, %s, $%d, %d houses)", sq.Name, id, sq.Group, sq.Price, o.Development))
	}
	return strings.Join(names, ", ")
}

func describeMonopolies(v View) string {
	var out []string
	for _, grp := range buildableGroups(v) {
		out = append(out, grp.ID)
	}
	if len(out) == 0 {
		return "None"
	}
	return strings.Join(out, ", ")
}

func describeOpponents(v View) string {
	var sb strings.Builder
	for _, p := range v.Opponents() {
		fmt.Fprintf(&sb, "- %s: $%d\n", p.Name, p.Cash)
	}
	return sb.String()
}

func purchasePrompt(v View, propertyID int) string {
	sq, _ := v.Board().Square(propertyID)
	me := v.Me()
	rank, ok := landingRank[sq.Position]
	if !ok {
		rank = defaultLandingRank
	}
	grp, _ := v.Board().Group(sq.Group)
	completes := grp != nil && v.Snap.CountOwnedInGroup(v.Self, sq.Group) == len(grp.Members)-1
	return fmt.Sprintf(`You are playing a property trading board game. Decide whether to buy this property.

LANDED ON: %s
- Price: $%d
- Group: %s
- Landing frequency rank: #%d (lower is better)
- Would complete a monopoly: %v

YOUR STATUS:
- Balance: $%d
- After purchase: $%d
- Properties: %s

OPPONENTS:
%s
Respond ONLY with JSON:
{"action": "buy" | "skip", "reasoning": "max 60 words", "confidence": 0-100}`,
		sq.Name, sq.Price, sq.Group, rank, completes,
		me.Cash, me.Cash-sq.Price, describeProperties(v, ownedIDs(v)), describeOpponents(v))
}

func tradePrompt(v View, offer models.TradeOffer) string {
	me := v.Me()
	from := offer.ProposerID.String()
	if p, ok := v.Snap.Player(offer.ProposerID); ok {
		from = p.Name
	}
	return fmt.Sprintf(`Evaluate this trade offer.

RECEIVING:
- Cash: $%d
- Properties: %s

GIVING:
- Cash: $%d
- Properties: %s

FROM: %s

YOUR STATUS:
- Balance: $%d
- Properties: %s
- Monopolies: %s

Respond ONLY with JSON:
{"action": "accept" | "decline" | "counter", "reasoning": "max 60 words", "counterOffer": {"cashAdjustment": 200}}
Include counterOffer only when countering; cashAdjustment is the extra cash you want.`,
		offer.OfferedCash, describeProperties(v, offer.OfferedProperties),
		offer.RequestedCash, describeProperties(v, offer.RequestedProperties),
		from, me.Cash, describeProperties(v, ownedIDs(v)), describeMonopolies(v))
}

func buildPrompt(v View) string {
	me := v.Me()
	return fmt.Sprintf(`Decide whether to build one house or hotel now.

YOUR STATUS:
- Balance: $%d
- Properties: %s
- Monopolies: %s

OPPONENTS:
%s
Build evenly, keep a cash reserve of at least $%d.
Respond ONLY with JSON:
{"action": "build" | "wait", "propertyId": 16, "reasoning": "brief explanation"}`,
		me.Cash, describeProperties(v, ownedIDs(v)), describeMonopolies(v), describeOpponents(v), DefaultReserve)
}
