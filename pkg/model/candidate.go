package model

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Claim what the extractor found in a piece of text
type Claim struct {
	Ticker     string
	Percentage float64
	Direction  Direction
}

// Candidate an extracted claim plus article metadata, before persistence
type Candidate struct {
	Ticker            string    `validate:"required,min=1,max=5,alpha,uppercase"`
	ClaimedPercentage float64   `validate:"required"`
	Direction         Direction `validate:"required,oneof=up down"`
	ArticleTimestamp  time.Time
	SourceName        string `validate:"required"`
	ArticleURL        string `validate:"required,url"`
	Headline          string
}

// NewCandidate pairs a claim with the article it came from
func NewCandidate(claim Claim, source, url, headline string, published time.Time) Candidate {
	return Candidate{
		Ticker:            claim.Ticker,
		ClaimedPercentage: claim.Percentage,
		Direction:         claim.Direction,
		ArticleTimestamp:  published,
		SourceName:        source,
		ArticleURL:        url,
		Headline:          headline,
	}
}

// ErrDirectionMismatch claimed sign and direction disagree
var ErrDirectionMismatch = errors.New("claimed percentage sign does not match direction")

// Validate checks field constraints and that |percentage| reaches the minimum
func (c Candidate) Validate(minimumPercentage float64) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid candidate: %w", err)
	}
	if DirectionOf(c.ClaimedPercentage) != c.Direction {
		return ErrDirectionMismatch
	}
	if math.Abs(c.ClaimedPercentage) < minimumPercentage {
		return fmt.Errorf("claimed %.2f%% below minimum %.2f%%", c.ClaimedPercentage, minimumPercentage)
	}
	return nil
}
