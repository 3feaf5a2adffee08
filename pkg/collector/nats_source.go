package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/stan.go"
	"github.com/ternarybob/arbor"

	"PredictionRadar/pkg/config"
	"PredictionRadar/pkg/extractor"
	"PredictionRadar/pkg/market"
	"PredictionRadar/pkg/model"
)

const maxBufferedNews = 1000

// crawlerNews message published by an external crawler
type crawlerNews struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
	Content  string `json:"content"`
	Link     string `json:"link"`
	Date     string `json:"date"`
}

// NATSSource buffers crawler messages from a NATS Streaming subject
type NATSSource struct {
	name         string
	subject      string
	conn         stan.Conn
	subscription stan.Subscription
	extractor    *extractor.Extractor
	clock        *market.Clock
	logger       arbor.ILogger

	mu      sync.Mutex
	pending []model.Candidate
}

// ConnectSTAN opens a NATS Streaming connection
func ConnectSTAN(cfg config.NATSConfig, clientSuffix string) (stan.Conn, error) {
	conn, err := stan.Connect(
		cfg.ClusterID,
		cfg.ClientID+"-"+clientSuffix,
		stan.NatsURL(cfg.URL),
	)
	if err != nil {
		return nil, fmt.Errorf("connect NATS streaming: %w", err)
	}
	return conn, nil
}

// NewNATSSource creates the source; call Start to subscribe
func NewNATSSource(name, subject string, conn stan.Conn, ex *extractor.Extractor, clock *market.Clock, logger arbor.ILogger) *NATSSource {
	if logger == nil {
		logger = arbor.NewNoOpLogger()
	}
	return &NATSSource{
		name:      name,
		subject:   subject,
		conn:      conn,
		extractor: ex,
		clock:     clock,
		logger:    logger,
	}
}

func (s *NATSSource) Name() string {
	return s.name
}

// Start subscribes to the subject, resuming from the last received message
func (s *NATSSource) Start() error {
	sub, err := s.conn.Subscribe(
		s.subject,
		func(msg *stan.Msg) { s.handleMessage(msg.Data) },
		stan.StartWithLastReceived(),
	)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	s.subscription = sub
	s.logger.Info().Str("subject", s.subject).Msg("News subscription started")
	return nil
}

func (s *NATSSource) handleMessage(data []byte) {
	var news crawlerNews
	if err := json.Unmarshal(data, &news); err != nil {
		s.logger.Warn().Err(err).Str("subject", s.subject).Msg("Failed to decode news message")
		return
	}

	summary := news.Abstract
	if summary == "" {
		summary = news.Content
	}
	headline := strings.TrimSpace(news.Title)
	claim, ok := s.extractor.ExtractFields(headline, summary)
	if !ok {
		return
	}

	published, err := time.ParseInLocation("2006-01-02 15:04:05", news.Date, s.clock.Location())
	if err != nil {
		published = s.clock.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) >= maxBufferedNews {
		s.pending = s.pending[1:]
	}
	s.pending = append(s.pending, model.NewCandidate(claim, s.name, news.Link, headline, published))
}

// FetchCandidates drains what arrived since the previous call
func (s *NATSSource) FetchCandidates(ctx context.Context) ([]model.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	drained := s.pending
	s.pending = nil
	return drained, nil
}

// Stop unsubscribes and closes the connection
func (s *NATSSource) Stop() error {
	if s.subscription != nil {
		if err := s.subscription.Unsubscribe(); err != nil {
			return fmt.Errorf("unsubscribe %s: %w", s.subject, err)
		}
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
