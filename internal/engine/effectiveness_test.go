package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/OCAP2/combatsim/pkg/core"
)

func TestMultiplier(t *testing.T) {
	tests := []struct {
		name     string
		attacker core.UnitType
		defender core.UnitType
		want     float64
	}{
		{"infantry vs armor", core.Infantry, core.Armor, 0.5},
		{"armor vs infantry", core.Armor, core.Infantry, 1.5},
		{"artillery vs infantry", core.Artillery, core.Infantry, 2.0},
		{"air support vs armor", core.AirSupport, core.Armor, 1.8},
		{"recon vs infantry", core.Recon, core.Infantry, 0.3},
		{"infantry vs recon is neutral", core.Infantry, core.Recon, 1.0},
		{"armor vs air support is neutral", core.Armor, core.AirSupport, 1.0},
		{"same type is neutral", core.Artillery, core.Artillery, 1.0},
		{"invalid attacker", core.UnitType(42), core.Infantry, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Multiplier(tt.attacker, tt.defender))
		})
	}
}

func TestMultiplier_Asymmetric(t *testing.T) {
	assert.Equal(t, 2.0, Multiplier(core.Artillery, core.Infantry))
	assert.Equal(t, 1.0, Multiplier(core.Infantry, core.Artillery))

	assert.Equal(t, 1.8, Multiplier(core.AirSupport, core.Armor))
	assert.Equal(t, 1.0, Multiplier(core.Armor, core.AirSupport))
}

func TestMultiplier_AllPairsPositive(t *testing.T) {
	for _, a := range core.AllUnitTypes() {
		for _, d := range core.AllUnitTypes() {
			assert.Greater(t, Multiplier(a, d), 0.0, "%s vs %s", a, d)
		}
	}
}
