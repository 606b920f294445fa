package proximity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		reading  Reading
		wantBand Band
		wantGoal bool
	}{
		{name: "positive reading means no signal", reading: 7, wantBand: NoSignal},
		{name: "zero means no signal", reading: 0, wantBand: NoSignal},
		{name: "just below zero is excellent", reading: -1, wantBand: Excellent, wantGoal: true},
		{name: "excellent lower bound", reading: -50, wantBand: Excellent, wantGoal: true},
		{name: "very good upper bound", reading: -51, wantBand: VeryGood},
		{name: "very good lower bound", reading: -60, wantBand: VeryGood},
		{name: "good upper bound", reading: -61, wantBand: Good},
		{name: "good lower bound", reading: -70, wantBand: Good},
		{name: "low upper bound", reading: -71, wantBand: Low},
		{name: "low lower bound", reading: -80, wantBand: Low},
		{name: "very low upper bound", reading: -81, wantBand: VeryLow},
		{name: "very weak signal is very low", reading: -127, wantBand: VeryLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			band, goal := Classify(tt.reading)

			assert.Equal(t, tt.wantBand, band)
			assert.Equal(t, tt.wantGoal, goal)
			assert.Equal(t, tt.wantGoal, IsGoal(tt.reading))
		})
	}
}

func TestClassify_TotalAndDeterministic(t *testing.T) {
	for r := Reading(-200); r <= 50; r++ {
		band, goal := Classify(r)
		again, goalAgain := Classify(r)

		assert.Equal(t, band, again, "reading %d", r)
		assert.Equal(t, goal, goalAgain, "reading %d", r)
		assert.NotEqual(t, Unclassified, band, "reading %d must map to a band", r)
		assert.Equal(t, r >= -50 && r < 0, goal, "goal predicate for reading %d", r)
	}
}

func TestBand_String(t *testing.T) {
	assert.Equal(t, "No signal", NoSignal.String())
	assert.Equal(t, "Excellent", Excellent.String())
	assert.Equal(t, "Very good", VeryGood.String())
	assert.Equal(t, "Good", Good.String())
	assert.Equal(t, "Low", Low.String())
	assert.Equal(t, "Very low", VeryLow.String())
	assert.Equal(t, "Unclassified", Unclassified.String())
	assert.Equal(t, "Unclassified", Band(42).String())
	assert.Equal(t, "Unclassified", Band(-1).String())
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "-45 (Excellent)", Describe(-45))
	assert.Equal(t, "-90 (Very low)", Describe(-90))
}
