package collector

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"PredictionRadar/pkg/config"
	"PredictionRadar/pkg/extractor"
	"PredictionRadar/pkg/market"
)

// Sources built sources plus the connections that need closing
type Sources struct {
	List []Source
	nats []*NATSSource
}

// Close stops any streaming subscriptions
func (s *Sources) Close() {
	for _, src := range s.nats {
		_ = src.Stop()
	}
}

// BuildSources creates one Source per enabled entry in the config
func BuildSources(cfg *config.Config, ex *extractor.Extractor, clock *market.Clock, logger arbor.ILogger) (*Sources, error) {
	built := &Sources{}
	timeout := cfg.Price.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	for _, sc := range cfg.EnabledSources() {
		switch sc.Type {
		case config.SourceTypeRSS:
			built.List = append(built.List, NewRSSSource(sc.Name, sc.URL, ex, clock))
		case config.SourceTypeHTML:
			built.List = append(built.List, NewHTMLSource(sc.Name, sc.URL, timeout, ex, clock))
		case config.SourceTypeNATS:
			conn, err := ConnectSTAN(cfg.NATS, sc.Name)
			if err != nil {
				built.Close()
				return nil, fmt.Errorf("source %s: %w", sc.Name, err)
			}
			src := NewNATSSource(sc.Name, sc.Subject, conn, ex, clock, logger)
			if err := src.Start(); err != nil {
				_ = conn.Close()
				built.Close()
				return nil, fmt.Errorf("source %s: %w", sc.Name, err)
			}
			built.List = append(built.List, src)
			built.nats = append(built.nats, src)
		default:
			return nil, fmt.Errorf("source %s: unknown type %q", sc.Name, sc.Type)
		}
		logger.Debug().Str("source", sc.Name).Str("type", string(sc.Type)).Msg("News source configured")
	}
	return built, nil
}
