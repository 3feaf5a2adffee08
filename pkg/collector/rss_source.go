package collector

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"PredictionRadar/pkg/extractor"
	"PredictionRadar/pkg/market"
	"PredictionRadar/pkg/model"
)

const maxFeedEntries = 50

// RSSSource reads an RSS or Atom feed and keeps entries that carry a claim
type RSSSource struct {
	name      string
	url       string
	parser    *gofeed.Parser
	extractor *extractor.Extractor
	clock     *market.Clock
}

// NewRSSSource creates a feed source
func NewRSSSource(name, url string, ex *extractor.Extractor, clock *market.Clock) *RSSSource {
	return &RSSSource{
		name:      name,
		url:       url,
		parser:    gofeed.NewParser(),
		extractor: ex,
		clock:     clock,
	}
}

func (s *RSSSource) Name() string {
	return s.name
}

// FetchCandidates parses the feed; entries without a claim are dropped
func (s *RSSSource) FetchCandidates(ctx context.Context) ([]model.Candidate, error) {
	feed, err := s.parser.ParseURLWithContext(s.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", s.name, err)
	}

	items := feed.Items
	if len(items) > maxFeedEntries {
		items = items[:maxFeedEntries]
	}

	now := s.clock.Now()
	var candidates []model.Candidate
	for _, item := range items {
		published := now
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.In(s.clock.Location())
		} else if item.UpdatedParsed != nil {
			published = item.UpdatedParsed.In(s.clock.Location())
		}

		headline := strings.TrimSpace(item.Title)
		claim, ok := s.extractor.ExtractFields(headline, stripHTML(item.Description))
		if !ok {
			continue
		}
		candidates = append(candidates, model.NewCandidate(claim, s.name, item.Link, headline, published))
	}
	return candidates, nil
}

func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
