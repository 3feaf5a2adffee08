package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"PredictionRadar/pkg/config"
	"PredictionRadar/pkg/model"
)

func TestClassify(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name    string
		claimed float64
		actual  float64
		closed  bool
		want    model.Status
	}{
		{"close match after close", 25, 23, true, model.StatusHit},
		{"close match intraday", 25, 23, false, model.StatusHit},
		{"hit boundary", 25, 20, true, model.StatusHit},
		{"partial after close", 25, 17, true, model.StatusPartial},
		{"partial intraday stays pending", 25, 17, false, model.StatusPending},
		{"partial boundary", 25, 15, true, model.StatusPartial},
		{"far off after close", 25, 5, true, model.StatusMiss},
		{"far off intraday", 25, 5, false, model.StatusPending},
		{"wrong direction after close", 25, -23, true, model.StatusMiss},
		{"wrong direction intraday", 25, -23, false, model.StatusPending},
		{"down claim hit", -30, -27, true, model.StatusHit},
		{"down claim partial", -30, -22, true, model.StatusPartial},
		{"flat counts as down", -22, 0, true, model.StatusMiss},
		{"up claim against flat", 22, 0, true, model.StatusMiss},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.claimed, tt.actual, model.DirectionOf(tt.claimed), tt.closed, th)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyCustomThresholds(t *testing.T) {
	th := ThresholdsFrom(config.TrackerConfig{HitThreshold: 1, PartialThreshold: 2})
	assert.Equal(t, model.StatusPartial, Classify(25, 23, model.DirectionUp, true, th))
	assert.Equal(t, model.StatusMiss, Classify(25, 20, model.DirectionUp, true, th))
	assert.Equal(t, model.StatusHit, Classify(25, 24.5, model.DirectionUp, true, th))
}
