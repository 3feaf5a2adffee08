package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/ternarybob/arbor"

	"PredictionRadar/pkg/model"
)

const (
	StreamName     = "PREDICTIONS"
	SubjectCreated = "predictions.created"
	SubjectStatus  = "predictions.status"
)

// streamPublisher subset of jetstream.JetStream used for publishing
type streamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// PredictionEvent payload on the predictions.* subjects
type PredictionEvent struct {
	Type              string               `json:"type"`
	ID                string               `json:"id"`
	Ticker            string               `json:"ticker"`
	ClaimedPercentage float64              `json:"claimed_percentage"`
	Direction         model.Direction      `json:"direction"`
	Status            model.Status         `json:"status"`
	SourceName        string               `json:"source_name"`
	ArticleURL        string               `json:"article_url"`
	CollectionDate    string               `json:"collection_date"`
	IsDuplicate       bool                 `json:"is_duplicate"`
	Snapshot          *model.PriceSnapshot `json:"snapshot,omitempty"`
	Timestamp         time.Time            `json:"timestamp"`
}

// EventPublisher JetStream publisher for prediction lifecycle events
type EventPublisher struct {
	conn      *nats.Conn
	jetStream streamPublisher
	logger    arbor.ILogger
	now       func() time.Time
}

// NewEventPublisher connects and makes sure the PREDICTIONS stream exists
func NewEventPublisher(ctx context.Context, natsURL string, logger arbor.ILogger) (*EventPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{"predictions.*"},
		Description: "Prediction lifecycle events",
		Retention:   jetstream.LimitsPolicy,
		MaxMsgs:     100000,
		MaxBytes:    100 * 1024 * 1024,
		MaxAge:      30 * 24 * time.Hour,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create stream %s: %w", StreamName, err)
	}

	logger.Info().Str("url", natsURL).Str("stream", StreamName).Msg("Event publisher ready")
	return newEventPublisher(nc, js, logger), nil
}

func newEventPublisher(conn *nats.Conn, js streamPublisher, logger arbor.ILogger) *EventPublisher {
	return &EventPublisher{conn: conn, jetStream: js, logger: logger, now: time.Now}
}

func (p *EventPublisher) PublishCreated(ctx context.Context, prediction *model.Prediction) error {
	return p.publish(ctx, SubjectCreated, p.event("created", prediction, nil))
}

func (p *EventPublisher) PublishStatus(ctx context.Context, prediction *model.Prediction, snapshot *model.PriceSnapshot) error {
	return p.publish(ctx, SubjectStatus, p.event("status", prediction, snapshot))
}

func (p *EventPublisher) event(kind string, prediction *model.Prediction, snapshot *model.PriceSnapshot) PredictionEvent {
	return PredictionEvent{
		Type:              kind,
		ID:                prediction.ID,
		Ticker:            prediction.Ticker,
		ClaimedPercentage: prediction.ClaimedPercentage,
		Direction:         prediction.Direction,
		Status:            prediction.Status,
		SourceName:        prediction.SourceName,
		ArticleURL:        prediction.ArticleURL,
		CollectionDate:    prediction.CollectionDate,
		IsDuplicate:       prediction.IsDuplicate,
		Snapshot:          snapshot,
		Timestamp:         p.now(),
	}
}

func (p *EventPublisher) publish(ctx context.Context, subject string, event PredictionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := p.jetStream.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	p.logger.Debug().Str("subject", subject).Str("id", event.ID).Int("bytes", len(payload)).Msg("Event published")
	return nil
}

// IsConnected reports the NATS connection state
func (p *EventPublisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

func (p *EventPublisher) Close() error {
	if p.conn != nil {
		if err := p.conn.Drain(); err != nil {
			p.conn.Close()
			return err
		}
	}
	return nil
}
