package engine

import (
	"math"

	"PredictionRadar/pkg/config"
	"PredictionRadar/pkg/model"
)

// Thresholds magnitude gaps, in percentage points, for HIT and PARTIAL
type Thresholds struct {
	Hit     float64
	Partial float64
}

// ThresholdsFrom reads the thresholds from tracker config
func ThresholdsFrom(cfg config.TrackerConfig) Thresholds {
	return Thresholds{Hit: cfg.HitThreshold, Partial: cfg.PartialThreshold}
}

// DefaultThresholds 5 points for HIT, 10 for PARTIAL
func DefaultThresholds() Thresholds {
	return Thresholds{Hit: 5, Partial: 10}
}

// Classify maps a claimed and an actual movement to a status.
// Direction is taken from the signs; the stored direction always agrees with the claimed sign.
func Classify(claimed, actual float64, _ model.Direction, marketClosed bool, th Thresholds) model.Status {
	sameDirection := model.DirectionOf(claimed) == model.DirectionOf(actual)

	if !sameDirection && marketClosed {
		return model.StatusMiss
	}

	gap := math.Abs(math.Abs(claimed) - math.Abs(actual))

	switch {
	case gap <= th.Hit && sameDirection:
		return model.StatusHit
	case gap <= th.Partial && sameDirection:
		if marketClosed {
			return model.StatusPartial
		}
		return model.StatusPending
	case marketClosed:
		return model.StatusMiss
	default:
		return model.StatusPending
	}
}
