package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validCandidate() Candidate {
	return NewCandidate(
		Claim{Ticker: "NVDA", Percentage: 25, Direction: DirectionUp},
		"yahoo_finance",
		"https://example.com/nvda",
		"NVDA surges 25% on earnings",
		time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
	)
}

func TestCandidateValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Candidate)
		wantErr bool
	}{
		{"valid", func(c *Candidate) {}, false},
		{"valid down", func(c *Candidate) { c.ClaimedPercentage = -30; c.Direction = DirectionDown }, false},
		{"lowercase ticker", func(c *Candidate) { c.Ticker = "nvda" }, true},
		{"long ticker", func(c *Candidate) { c.Ticker = "ABCDEF" }, true},
		{"digits in ticker", func(c *Candidate) { c.Ticker = "AB1" }, true},
		{"sign mismatch", func(c *Candidate) { c.ClaimedPercentage = -25 }, true},
		{"below minimum", func(c *Candidate) { c.ClaimedPercentage = 19.9 }, true},
		{"missing url", func(c *Candidate) { c.ArticleURL = "" }, true},
		{"bad direction", func(c *Candidate) { c.Direction = "sideways" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCandidate()
			tt.mutate(&c)
			err := c.Validate(20)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSignMismatchIsSentinel(t *testing.T) {
	c := validCandidate()
	c.Direction = DirectionDown
	assert.ErrorIs(t, c.Validate(20), ErrDirectionMismatch)
}

func TestScoring(t *testing.T) {
	assert.Equal(t, 0.0, HitRateOf(0, 0))
	assert.InDelta(t, 33.333, HitRateOf(1, 3), 0.001)
	assert.Equal(t, 0.0, MagnitudeAccuracy(140))
	assert.Equal(t, 92.5, MagnitudeAccuracy(7.5))
	assert.InDelta(t, 50*0.6+90*0.4, WeightedScore(50, 90), 1e-9)
	assert.True(t, StatusMiss.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.Equal(t, DirectionDown, DirectionOf(0))
}
