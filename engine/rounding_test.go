package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cardfolio/reward-engine/engine"
)

func TestRound(t *testing.T) {
	tests := []struct {
		name     string
		strategy engine.RoundingStrategy
		value    string
		want     string
	}{
		{"floor", engine.RoundFloor, "97.9", "97"},
		{"floor negative", engine.RoundFloor, "-1.1", "-2"},
		{"ceiling", engine.RoundCeiling, "97.1", "98"},
		{"nearest down", engine.RoundNearest, "97.4", "97"},
		{"nearest up", engine.RoundNearest, "97.5", "98"},
		{"block of 5 mid", engine.RoundFloorBlock5, "97", "95"},
		{"block of 5 exact", engine.RoundFloorBlock5, "95", "95"},
		{"block of 5 below", engine.RoundFloorBlock5, "4.99", "0"},
		{"none identity", engine.RoundNone, "97.123", "97.123"},
		{"unknown treated as none", engine.RoundingStrategy("bankers"), "97.5", "97.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.Round(tt.strategy, dec(tt.value))
			assert.True(t, got.Equal(dec(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

func TestRound_TwoIndependentApplications(t *testing.T) {
	// Amount rounding then points rounding are separate steps: 97 floored
	// to a block of 5 gives 95; 95/5*1.5=28.5 points floor to 28.
	amount := engine.Round(engine.RoundFloorBlock5, dec("97"))
	points := engine.Round(engine.RoundFloor, amount.Div(dec("5")).Mul(dec("1.5")))
	assert.True(t, points.Equal(dec("28")))
}

func TestKnownRoundingStrategy(t *testing.T) {
	assert.True(t, engine.KnownRoundingStrategy(engine.RoundFloor))
	assert.True(t, engine.KnownRoundingStrategy(""))
	assert.False(t, engine.KnownRoundingStrategy("bankers"))
}
