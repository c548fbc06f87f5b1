package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhaseOrdering(t *testing.T) {
	assert.Less(t, PhaseIdeation.Ordinal(), PhaseVisualization.Ordinal())
	assert.Less(t, PhaseVisualization.Ordinal(), PhaseMaterialization.Ordinal())
	assert.Equal(t, 0, Phase("bogus").Ordinal())
}

func TestPhaseNext(t *testing.T) {
	assert.Equal(t, PhaseVisualization, PhaseIdeation.Next())
	assert.Equal(t, PhaseMaterialization, PhaseVisualization.Next())
	// Terminal phase does not advance.
	assert.Equal(t, PhaseMaterialization, PhaseMaterialization.Next())
}

func TestCognitiveMappingDefaults(t *testing.T) {
	var m CognitiveMapping
	assert.Equal(t, 0.5, m.Get(DimDeepThinking), "nil mapping reads as 0.5")

	m = CognitiveMapping{DimDeepThinking: 0.9}
	assert.Equal(t, 0.9, m.Get(DimDeepThinking))
	assert.Equal(t, 0.5, m.Get(DimMetacognition), "absent dimension reads as 0.5")
}

func TestCognitiveMappingClamp(t *testing.T) {
	m := CognitiveMapping{
		DimDeepThinking:   1.7,
		DimOffloadingPrev: -0.2,
		DimScaffolding:    0.4,
	}
	m.Clamp()
	assert.Equal(t, 1.0, m[DimDeepThinking])
	assert.Equal(t, 0.0, m[DimOffloadingPrev])
	assert.Equal(t, 0.4, m[DimScaffolding])
}

func TestAllDimensionsComplete(t *testing.T) {
	dims := AllDimensions()
	assert.Len(t, dims, 6)
	seen := make(map[Dimension]bool)
	for _, d := range dims {
		seen[d] = true
	}
	assert.Len(t, seen, 6, "no duplicate dimensions")
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-3))
	assert.Equal(t, 1.0, Clamp01(42))
	assert.Equal(t, 0.3, Clamp01(0.3))
}
