package engine

import "github.com/OCAP2/combatsim/pkg/core"

// effectiveness holds damage multipliers indexed by [attacker][defender].
// Zero entries mean the pair is neutral.
var effectiveness = func() (t [core.NumUnitTypes][core.NumUnitTypes]float64) {
	t[core.Infantry][core.Armor] = 0.5
	t[core.Armor][core.Infantry] = 1.5
	t[core.Artillery][core.Infantry] = 2.0
	t[core.AirSupport][core.Armor] = 1.8
	t[core.Recon][core.Infantry] = 0.3
	return t
}()

// Multiplier returns the damage multiplier for an attacker of type a hitting
// a defender of type d. Pairs without an entry are neutral (1.0).
func Multiplier(a, d core.UnitType) float64 {
	if !a.Valid() || !d.Valid() {
		return 1.0
	}
	if m := effectiveness[a][d]; m > 0 {
		return m
	}
	return 1.0
}
