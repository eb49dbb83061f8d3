package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jason-s-yu/tycoon/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// scripted replies with a fixed text and records the last prompt.
type scripted struct {
	reply  string
	err    error
	prompt string
	calls  int
}

func (s *scripted) Complete(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	s.calls++
	return s.reply, s.err
}

func newModelPolicy(c Completer) *LanguageModelPolicy {
	return NewLanguageModelPolicy(c, 1000, quietLogger())
}

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"{\"a\":1}":                 "{\"a\":1}",
		"```json\n{\"a\":1}\n```":   "{\"a\":1}",
		"```\n{\"a\":1}\n```":       "{\"a\":1}",
		"  ```JSON\n{\"a\":1}```  ": "{\"a\":1}",
		"```json {\"a\":1} ```":     "{\"a\":1}",
	}
	for in, want := range cases {
		assert.Equal(t, want, stripFences(in), in)
	}
}

func TestDecodeStrict(t *testing.T) {
	var r purchaseReply
	require.NoError(t, decodeStrict(`{"action":"buy","reasoning":"cheap","confidence":80}`, &r))
	assert.Equal(t, "buy", r.Action)
	assert.Equal(t, 80, r.Confidence)

	assert.True(t, errors.Is(decodeStrict(`{"action":"buy","mood":"great"}`, &r), errMalformed))
	assert.True(t, errors.Is(decodeStrict(`{"action":"buy"} {"action":"skip"}`, &r), errMalformed))
	assert.True(t, errors.Is(decodeStrict(`I would buy it`, &r), errMalformed))
}

func TestLanguageModelDecidePurchase(t *testing.T) {
	ctx := context.Background()
	tb := newTable(1500, 1500)
	c := &scripted{reply: "```json\n{\"action\": \"buy\", \"reasoning\": \"good value\", \"confidence\": 90}\n```"}
	l := newModelPolicy(c)

	dec, err := l.DecidePurchase(ctx, tb.view(), 39)
	require.NoError(t, err)
	assert.True(t, dec.Buy)
	assert.Equal(t, "good value", dec.Reason)
	assert.Contains(t, c.prompt, "Boardwalk")
	assert.Contains(t, c.prompt, "Balance: $1500")

	c.reply = `{"action": "skip", "reasoning": "too dear"}`
	dec, err = l.DecidePurchase(ctx, tb.view(), 39)
	require.NoError(t, err)
	assert.False(t, dec.Buy)

	c.reply = `{"action": "maybe"}`
	dec, err = l.DecidePurchase(ctx, tb.view(), 39)
	require.NoError(t, err, "malformed output falls back silently")
	assert.Equal(t, FallbackPurchase, dec)

	c.reply = `{"action": "buy", "extra": true}`
	dec, err = l.DecidePurchase(ctx, tb.view(), 39)
	require.NoError(t, err)
	assert.Equal(t, FallbackPurchase, dec)

	calls := c.calls
	dec, err = l.DecidePurchase(ctx, tb.view(), 99)
	require.NoError(t, err)
	assert.Equal(t, FallbackPurchase, dec)
	assert.Equal(t, calls, c.calls, "unknown property is not sent to the model")
}

func TestLanguageModelBackendErrorFallsBack(t *testing.T) {
	ctx := context.Background()
	tb := newTable(1500, 1500)
	boom := errors.New("backend unavailable")
	l := newModelPolicy(CompleterFunc(func(context.Context, string) (string, error) { return "", boom }))

	dec, err := l.DecidePurchase(ctx, tb.view(), 39)
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, FallbackPurchase, dec)

	tdec, err := l.DecideTrade(ctx, tb.view(), tb.offerFromOther(models.TradeTerms{OfferedCash: 100}))
	assert.Error(t, err)
	assert.Equal(t, FallbackTrade, tdec)

	bdec, err := l.DecideBuilding(ctx, tb.view())
	assert.Error(t, err)
	assert.Equal(t, FallbackBuild, bdec)
}

func TestLanguageModelDecideTrade(t *testing.T) {
	ctx := context.Background()
	tb := newTable(1500, 1500)
	tb.own(tb.other, 1)
	offer := tb.offerFromOther(models.TradeTerms{OfferedProperties: []int{1}, RequestedCash: 70})
	c := &scripted{reply: `{"action": "accept", "reasoning": "fair"}`}
	l := newModelPolicy(c)

	dec, err := l.DecideTrade(ctx, tb.view(), offer)
	require.NoError(t, err)
	assert.Equal(t, TradeAccept, dec.Action)
	assert.Contains(t, c.prompt, "Mediterranean Avenue")
	assert.Contains(t, c.prompt, "FROM: other")

	c.reply = `{"action": "counter", "reasoning": "a bit more", "counterOffer": {"cashAdjustment": 17}}`
	dec, err = l.DecideTrade(ctx, tb.view(), offer)
	require.NoError(t, err)
	require.Equal(t, TradeCounter, dec.Action)
	assert.Equal(t, 53, dec.Counter.OfferedCash)
	assert.Equal(t, []int{1}, dec.Counter.RequestedProperties)

	c.reply = `{"action": "counter", "reasoning": "no terms"}`
	dec, err = l.DecideTrade(ctx, tb.view(), offer)
	require.NoError(t, err)
	assert.Equal(t, FallbackTrade, dec)

	c.reply = `{"action": "counter", "counterOffer": {"cashAdjustment": -5}}`
	dec, err = l.DecideTrade(ctx, tb.view(), offer)
	require.NoError(t, err)
	assert.Equal(t, FallbackTrade, dec)
}

func TestLanguageModelDecideBuilding(t *testing.T) {
	ctx := context.Background()
	tb := newTable(1500, 1500)
	tb.own(tb.self, 16, 18, 19)
	c := &scripted{reply: `{"action": "build", "propertyId": 18, "reasoning": "orange pays"}`}
	l := newModelPolicy(c)

	dec, err := l.DecideBuilding(ctx, tb.view())
	require.NoError(t, err)
	assert.True(t, dec.Build)
	assert.Equal(t, 18, dec.PropertyID)
	assert.Contains(t, c.prompt, "Monopolies: orange")

	c.reply = `{"action": "build", "propertyId": 39, "reasoning": "not mine"}`
	dec, err = l.DecideBuilding(ctx, tb.view())
	require.NoError(t, err)
	assert.Equal(t, FallbackBuild, dec)

	c.reply = `{"action": "build", "reasoning": "forgot which"}`
	dec, err = l.DecideBuilding(ctx, tb.view())
	require.NoError(t, err)
	assert.Equal(t, FallbackBuild, dec)

	c.reply = `{"action": "wait", "reasoning": "saving"}`
	dec, err = l.DecideBuilding(ctx, tb.view())
	require.NoError(t, err)
	assert.False(t, dec.Build)
	assert.Equal(t, "saving", dec.Reason)
}

func TestLanguageModelRespectsRateLimit(t *testing.T) {
	tb := newTable(1500, 1500)
	c := &scripted{reply: `{"action": "skip"}`}
	l := newModelPolicy(c)
	l.Limiter = rate.NewLimiter(rate.Every(time.Hour), 1)

	_, err := l.DecidePurchase(context.Background(), tb.view(), 39)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	dec, err := l.DecidePurchase(ctx, tb.view(), 39)
	assert.Error(t, err)
	assert.Equal(t, FallbackPurchase, dec)
	assert.Equal(t, 1, c.calls)
}
