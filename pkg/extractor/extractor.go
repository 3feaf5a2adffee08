// Package extractor pulls explicit stock-movement claims out of headline text.
package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"PredictionRadar/pkg/model"
)

// Templates in priority order. Ticker is group 1, percentage group 2.
var movementPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\b[A-Z]{2,5}\b)\s+(?:surges?|jumps?|soars?|rallies?|climbs?)\s+(\d+(?:\.\d+)?)\s*%`),
	regexp.MustCompile(`(?i)(\b[A-Z]{2,5}\b)\s+(?:plunges?|drops?|falls?|declines?|tumbles?)\s+(\d+(?:\.\d+)?)\s*%`),
	regexp.MustCompile(`(?i)\$([A-Z]{2,5})\s+(?:up|down)\s+(\d+(?:\.\d+)?)\s*%`),
	regexp.MustCompile(`(?i)(\b[A-Z]{2,5}\b)\s+(?:stock|shares)\s+(?:up|down)\s+(\d+(?:\.\d+)?)\s*%`),
}

// Hedging or stale-reference phrases, matched against lower-cased text.
var exclusionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`could\s+(?:surge|jump|rise|gain)`),
	regexp.MustCompile(`might\s+(?:surge|jump|rise|gain)`),
	regexp.MustCompile(`may\s+(?:surge|jump|rise|gain)`),
	regexp.MustCompile(`expected\s+to`),
	regexp.MustCompile(`projected\s+to`),
	regexp.MustCompile(`forecasted\s+to`),
	regexp.MustCompile(`\bif\s+`),
	regexp.MustCompile(`analysts?\s+predict`),
	regexp.MustCompile(`price\s+target`),
	regexp.MustCompile(`last\s+week`),
	regexp.MustCompile(`yesterday`),
	regexp.MustCompile(`last\s+month`),
	regexp.MustCompile(`last\s+quarter`),
	regexp.MustCompile(`surged\s+last`),
	regexp.MustCompile(`dropped\s+last`),
}

var downTokens = []string{"plunge", "drop", "fall", "decline", "tumble", "down"}

// Extractor applies the claim grammar with a fixed minimum magnitude
type Extractor struct {
	minimumPercentage float64
}

// New creates an extractor that ignores claims below minimumPercentage
func New(minimumPercentage float64) *Extractor {
	return &Extractor{minimumPercentage: minimumPercentage}
}

// Extract returns the first qualifying claim in text
func (e *Extractor) Extract(text string) (model.Claim, bool) {
	if IsExcluded(text) {
		return model.Claim{}, false
	}

	for _, pattern := range movementPatterns {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			pct, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				continue
			}
			if pct < e.minimumPercentage {
				continue
			}

			direction := model.DirectionUp
			if hasDownToken(strings.ToLower(m[0])) {
				direction = model.DirectionDown
				pct = -pct
			}

			return model.Claim{
				Ticker:     strings.ToUpper(m[1]),
				Percentage: pct,
				Direction:  direction,
			}, true
		}
	}

	return model.Claim{}, false
}

// ExtractFields runs Extract over a headline and its summary joined together
func (e *Extractor) ExtractFields(headline, summary string) (model.Claim, bool) {
	return e.Extract(strings.TrimSpace(headline + " " + summary))
}

// IsExcluded reports whether any hedge or stale-reference phrase occurs in text
func IsExcluded(text string) bool {
	lower := strings.ToLower(text)
	for _, pattern := range exclusionPatterns {
		if pattern.MatchString(lower) {
			return true
		}
	}
	return false
}

func hasDownToken(matched string) bool {
	for _, token := range downTokens {
		if strings.Contains(matched, token) {
			return true
		}
	}
	return false
}
