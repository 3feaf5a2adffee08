package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"PredictionRadar/pkg/extractor"
	"PredictionRadar/pkg/market"
	"PredictionRadar/pkg/model"
)

const (
	maxHTMLArticles = 30
	userAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

var (
	containerClass = regexp.MustCompile(`story|article|news`)
	headlineClass  = regexp.MustCompile(`title|headline`)
)

// HTMLSource scrapes a news listing page
type HTMLSource struct {
	name       string
	pageURL    string
	httpClient *http.Client
	extractor  *extractor.Extractor
	clock      *market.Clock
}

// NewHTMLSource creates a scraping source with the given request timeout
func NewHTMLSource(name, pageURL string, timeout time.Duration, ex *extractor.Extractor, clock *market.Clock) *HTMLSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTMLSource{
		name:       name,
		pageURL:    pageURL,
		httpClient: &http.Client{Timeout: timeout},
		extractor:  ex,
		clock:      clock,
	}
}

func (s *HTMLSource) Name() string {
	return s.name
}

// FetchCandidates downloads the page and extracts headlines from story containers
func (s *HTMLSource) FetchCandidates(ctx context.Context) ([]model.Candidate, error) {
	base, err := url.Parse(s.pageURL)
	if err != nil {
		return nil, fmt.Errorf("source %s: parse url: %w", s.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("source %s: create request: %w", s.name, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", s.name, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("source %s: parse html: %w", s.name, err)
	}

	now := s.clock.Now()
	var candidates []model.Candidate
	urls := make(map[string]bool)
	seen := 0
	doc.Find("article, div").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		class, _ := el.Attr("class")
		if !containerClass.MatchString(class) {
			return true
		}
		seen++
		if seen > maxHTMLArticles {
			return false
		}

		heading := el.Find("h2, h3, a").FilterFunction(func(_ int, h *goquery.Selection) bool {
			c, _ := h.Attr("class")
			return headlineClass.MatchString(c)
		}).First()
		if heading.Length() == 0 {
			return true
		}

		headline := strings.TrimSpace(heading.Text())
		claim, ok := s.extractor.Extract(headline)
		if !ok {
			return true
		}

		link := heading
		if goquery.NodeName(heading) != "a" {
			link = heading.Find("a").First()
		}
		href, _ := link.Attr("href")
		if href == "" {
			return true
		}

		articleURL := resolve(base, href)
		if urls[articleURL] {
			return true
		}
		urls[articleURL] = true

		candidates = append(candidates, model.NewCandidate(claim, s.name, articleURL, headline, now))
		return true
	})

	return candidates, nil
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
