package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRulesPartialUpdate(t *testing.T) {
	base := DefaultRules()
	got, err := ParseRules(map[string]interface{}{
		"auction":      true,
		"startingCash": float64(2000),
		"cashTierValues": []interface{}{
			float64(5), float64(15),
		},
	}, base)
	require.NoError(t, err)

	assert.True(t, got.AuctionEnabled)
	assert.Equal(t, 2000, got.StartingCash)
	assert.Equal(t, []int{5, 15}, got.CashTierValues)
	assert.Equal(t, base.JailFine, got.JailFine)
	// original untouched
	assert.False(t, base.AuctionEnabled)
	assert.Len(t, base.CashTierValues, 5)
}

func TestParseRulesRejectsBadValues(t *testing.T) {
	_, err := ParseRules(map[string]interface{}{"mortgage": "yes"}, DefaultRules())
	assert.Error(t, err)

	_, err = ParseRules(map[string]interface{}{"startingCash": float64(0)}, DefaultRules())
	assert.Error(t, err)

	_, err = ParseRules(map[string]interface{}{"discountTierPercents": []interface{}{float64(120)}}, DefaultRules())
	assert.Error(t, err)
}

func TestParseRulesRejectsFractionalNumbers(t *testing.T) {
	_, err := ParseRules(map[string]interface{}{"startingCash": 1500.5}, DefaultRules())
	assert.EqualError(t, err, "invalid type for startingCash")

	_, err = ParseRules(map[string]interface{}{"cashTierValues": []interface{}{50.0, 1.5}}, DefaultRules())
	assert.Error(t, err)

	r, err := ParseRules(map[string]interface{}{"startingCash": float64(2000)}, DefaultRules())
	require.NoError(t, err)
	assert.Equal(t, 2000, r.StartingCash)
}

func TestTierClamps(t *testing.T) {
	table := []int{10, 20, 30}
	assert.Equal(t, 10, Tier(table, 0))
	assert.Equal(t, 20, Tier(table, 2))
	assert.Equal(t, 30, Tier(table, 9))
	assert.Equal(t, 0, Tier(nil, 1))
}

func TestPerkKindNames(t *testing.T) {
	k, ok := ParsePerkKind("teleport")
	require.True(t, ok)
	assert.Equal(t, PerkTeleport, k)
	assert.Equal(t, 6, int(k))
	assert.True(t, PerkShield.Passive())
	assert.False(t, PerkExactRoll.Passive())
	assert.False(t, PerkKind(11).Valid())
}
