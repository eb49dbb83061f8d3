// internal/models/rules.go
package models

import (
	"fmt"
	"math"
)

// Rules holds the per-session rule flags chosen when a game is created.
type Rules struct {
	AuctionEnabled           bool  `json:"auction"`                  // a declined purchase opens an auction
	MortgageEnabled          bool  `json:"mortgage"`                 // properties may be mortgaged
	EvenBuild                bool  `json:"evenBuild"`                // group levels may differ by at most one
	RentInJail               bool  `json:"rentInJail"`               // jailed owners still collect rent
	RandomizePlayOrder       bool  `json:"randomizePlayOrder"`       // shuffle turn order at start
	ThreeDoublesToJail       bool  `json:"threeDoublesToJail"`       // third consecutive double jails the roller
	PassGoOnBackwardTeleport bool  `json:"passGoOnBackwardTeleport"` // backward teleports across go still pay the lap bonus
	StartingCash             int   `json:"startingCash"`
	TimeLimitSec             int   `json:"timeLimitSec"` // 0 => no limit
	PassGoAmount             int   `json:"passGoAmount"`
	JailFine                 int   `json:"jailFine"`
	MaxJailRolls             int   `json:"maxJailRolls"`
	MinTurnsForValidWin      int   `json:"minTurnsForValidWin"`
	RollBoostBonus           int   `json:"rollBoostBonus"`
	UnmortgageInterestPct    int   `json:"unmortgageInterestPct"`
	CashTierValues           []int `json:"cashTierValues"`       // indexed by strength tier - 1
	TaxRefundTierValues      []int `json:"taxRefundTierValues"`  // indexed by strength tier - 1
	DiscountTierPercents     []int `json:"discountTierPercents"` // indexed by strength tier - 1
}

// DefaultRules returns the standard rule set.
func DefaultRules() Rules {
	return Rules{
		AuctionEnabled:        false,
		MortgageEnabled:       true,
		EvenBuild:             true,
		RentInJail:            true,
		ThreeDoublesToJail:    true,
		StartingCash:          1500,
		PassGoAmount:          200,
		JailFine:              50,
		MaxJailRolls:          3,
		MinTurnsForValidWin:   20,
		RollBoostBonus:        2,
		UnmortgageInterestPct: 10,
		CashTierValues:        []int{10, 25, 50, 100, 250},
		TaxRefundTierValues:   []int{10, 25, 50, 100, 200},
		DiscountTierPercents:  []int{10, 20, 30, 40, 50},
	}
}

// Tier returns table[strength-1], clamping strength into the table.
func Tier(table []int, strength int) int {
	if len(table) == 0 {
		return 0
	}
	if strength < 1 {
		strength = 1
	}
	if strength > len(table) {
		strength = len(table)
	}
	return table[strength-1]
}

// Update will update the rules with the new values provided.
// If a rule is not set or defined, it will be ignored, and the old value will persist.
func (rules *Rules) Update(newRules map[string]interface{}) error {
	var ok bool
	var err error

	assignBool := func(field *bool, key string) error {
		if val, exists := newRules[key]; exists && val != nil {
			*field, ok = val.(bool)
			if !ok {
				return fmt.Errorf("invalid type for %s", key)
			}
		}
		return nil
	}

	assignInt := func(field *int, key string, minVal int) error {
		if val, exists := newRules[key]; exists && val != nil {
			v, ok := toInt(val)
			if !ok {
				return fmt.Errorf("invalid type for %s", key)
			}
			if v < minVal {
				return fmt.Errorf("%s must be at least %d", key, minVal)
			}
			*field = v
		}
		return nil
	}

	assignTiers := func(field *[]int, key string) error {
		if val, exists := newRules[key]; exists && val != nil {
			raw, ok := val.([]interface{})
			if !ok {
				return fmt.Errorf("invalid type for %s", key)
			}
			out := make([]int, 0, len(raw))
			for _, r := range raw {
				v, ok := toInt(r)
				if !ok || v < 0 {
					return fmt.Errorf("invalid tier value in %s", key)
				}
				out = append(out, v)
			}
			*field = out
		}
		return nil
	}

	bools := []struct {
		f   *bool
		key string
	}{
		{&rules.AuctionEnabled, "auction"},
		{&rules.MortgageEnabled, "mortgage"},
		{&rules.EvenBuild, "evenBuild"},
		{&rules.RentInJail, "rentInJail"},
		{&rules.RandomizePlayOrder, "randomizePlayOrder"},
		{&rules.ThreeDoublesToJail, "threeDoublesToJail"},
		{&rules.PassGoOnBackwardTeleport, "passGoOnBackwardTeleport"},
	}
	for _, b := range bools {
		if err = assignBool(b.f, b.key); err != nil {
			return err
		}
	}

	ints := []struct {
		f   *int
		key string
		min int
	}{
		{&rules.StartingCash, "startingCash", 1},
		{&rules.TimeLimitSec, "timeLimitSec", 0},
		{&rules.PassGoAmount, "passGoAmount", 0},
		{&rules.JailFine, "jailFine", 0},
		{&rules.MaxJailRolls, "maxJailRolls", 1},
		{&rules.MinTurnsForValidWin, "minTurnsForValidWin", 0},
		{&rules.RollBoostBonus, "rollBoostBonus", 0},
		{&rules.UnmortgageInterestPct, "unmortgageInterestPct", 0},
	}
	for _, i := range ints {
		if err = assignInt(i.f, i.key, i.min); err != nil {
			return err
		}
	}

	if err = assignTiers(&rules.CashTierValues, "cashTierValues"); err != nil {
		return err
	}
	if err = assignTiers(&rules.TaxRefundTierValues, "taxRefundTierValues"); err != nil {
		return err
	}
	if err = assignTiers(&rules.DiscountTierPercents, "discountTierPercents"); err != nil {
		return err
	}
	for _, p := range rules.DiscountTierPercents {
		if p > 100 {
			return fmt.Errorf("discountTierPercents values must not exceed 100")
		}
	}
	return nil
}

// ParseRules applies a map of rule overrides to a copy of current.
func ParseRules(rules map[string]interface{}, current Rules) (Rules, error) {
	out := current
	out.CashTierValues = append([]int(nil), current.CashTierValues...)
	out.TaxRefundTierValues = append([]int(nil), current.TaxRefundTierValues...)
	out.DiscountTierPercents = append([]int(nil), current.DiscountTierPercents...)
	err := out.Update(rules)
	return out, err
}

// JSON numbers decode as float64. Fractional values are rejected rather than truncated.
func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}
