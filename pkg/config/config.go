package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Config application configuration
type Config struct {
	App struct {
		Name string `yaml:"name"`
		Env  string `yaml:"env"`
	} `yaml:"app"`

	Tracker   TrackerConfig   `yaml:"tracker"`
	Market    MarketConfig    `yaml:"market"`
	Sources   []SourceConfig  `yaml:"sources"`
	Price     PriceConfig     `yaml:"price"`
	Database  DatabaseConfig  `yaml:"database"`
	NATS      NATSConfig      `yaml:"nats"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// TrackerConfig thresholds shared by extraction, deduplication and classification
type TrackerConfig struct {
	MinimumPercentage            float64       `yaml:"minimum_percentage"`
	HitThreshold                 float64       `yaml:"hit_threshold"`
	PartialThreshold             float64       `yaml:"partial_threshold"`
	DuplicatePercentageTolerance float64       `yaml:"duplicate_percentage_tolerance"`
	DuplicateTimeWindow          time.Duration `yaml:"duplicate_time_window"`
	MaxTrackedPerCycle           int           `yaml:"max_tracked_per_cycle"`
}

// MarketConfig trading session definition
type MarketConfig struct {
	Timezone string `yaml:"timezone"`
	Open     string `yaml:"open"`
	Close    string `yaml:"close"`
}

// SourceType kind of news source
type SourceType string

const (
	SourceTypeRSS  SourceType = "rss"
	SourceTypeHTML SourceType = "html"
	SourceTypeNATS SourceType = "nats"
)

// SourceConfig a single news source
type SourceConfig struct {
	Name    string     `yaml:"name"`
	Type    SourceType `yaml:"type"`
	URL     string     `yaml:"url"`
	Subject string     `yaml:"subject"`
	Enabled bool       `yaml:"enabled"`
}

// PriceConfig market data provider
type PriceConfig struct {
	Provider          string          `yaml:"provider"`
	APIKey            string          `yaml:"api_key"`
	BaseURL           string          `yaml:"base_url"`
	Exchange          string          `yaml:"exchange"`
	Timeout           time.Duration   `yaml:"timeout"`
	RequestsPerSecond int             `yaml:"requests_per_second"`
	MaxRetries        int             `yaml:"max_retries"`
	RetryBackoff      []time.Duration `yaml:"retry_backoff"`
}

// DatabaseConfig storage backend
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// NATSConfig messaging connection
type NATSConfig struct {
	URL           string `yaml:"url"`
	ClusterID     string `yaml:"cluster_id"`
	ClientID      string `yaml:"client_id"`
	EventsEnabled bool   `yaml:"events_enabled"`
}

// SchedulerConfig recurring job timing
type SchedulerConfig struct {
	CollectInterval    time.Duration `yaml:"collect_interval"`
	RefreshInterval    time.Duration `yaml:"refresh_interval"`
	SummaryCron        string        `yaml:"summary_cron"`
	OperatingStartHour int           `yaml:"operating_start_hour"`
	OperatingEndHour   int           `yaml:"operating_end_hour"`
}

// LoggingConfig logger setup
type LoggingConfig struct {
	Level  string   `yaml:"level"`
	Output []string `yaml:"output"`
	File   string   `yaml:"file"`
}

// Default returns the configuration used when no file overrides a key
func Default() *Config {
	cfg := &Config{}
	cfg.App.Name = "prediction-radar"
	cfg.App.Env = "dev"

	cfg.Tracker = TrackerConfig{
		MinimumPercentage:            20.0,
		HitThreshold:                 5.0,
		PartialThreshold:             10.0,
		DuplicatePercentageTolerance: 3.0,
		DuplicateTimeWindow:          2 * time.Hour,
		MaxTrackedPerCycle:           100,
	}
	cfg.Market = MarketConfig{
		Timezone: "America/New_York",
		Open:     "09:30",
		Close:    "16:00",
	}
	cfg.Sources = []SourceConfig{
		{Name: "yahoo_finance", Type: SourceTypeRSS, URL: "https://finance.yahoo.com/news/rssindex", Enabled: true},
		{Name: "marketwatch", Type: SourceTypeRSS, URL: "https://www.marketwatch.com/rss/topstories", Enabled: true},
		{Name: "benzinga", Type: SourceTypeHTML, URL: "https://www.benzinga.com/news", Enabled: true},
		{Name: "seeking_alpha", Type: SourceTypeRSS, URL: "https://seekingalpha.com/market_currents.xml", Enabled: false},
		{Name: "business_insider", Type: SourceTypeHTML, URL: "https://markets.businessinsider.com/news", Enabled: false},
	}
	cfg.Price = PriceConfig{
		Provider:          "eodhd",
		BaseURL:           "https://eodhd.com/api",
		Exchange:          "US",
		Timeout:           10 * time.Second,
		RequestsPerSecond: 1,
		MaxRetries:        3,
		RetryBackoff:      []time.Duration{time.Second, 5 * time.Second, 15 * time.Second},
	}
	cfg.Database = DatabaseConfig{
		Driver:  "sqlite",
		Path:    "predictions.db",
		Port:    5432,
		SSLMode: "disable",
	}
	cfg.NATS = NATSConfig{
		URL:       "nats://localhost:4222",
		ClusterID: "test-cluster",
		ClientID:  "prediction-radar",
	}
	cfg.Scheduler = SchedulerConfig{
		CollectInterval:    30 * time.Minute,
		RefreshInterval:    30 * time.Minute,
		SummaryCron:        "0 5 16 * * 1-5",
		OperatingStartHour: 4,
		OperatingEndHour:   23,
	}
	cfg.Logging = LoggingConfig{
		Level:  "info",
		Output: []string{"console"},
	}
	return cfg
}

// LoadConfig loads configuration from a file on top of the defaults
func LoadConfig(path string) (*Config, error) {
	config := Default()

	// Read the file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	// Environment overrides
	overrideFromEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadOrDefault loads the file when it exists, otherwise uses defaults plus environment
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		config := Default()
		overrideFromEnv(config)
		if err := config.Validate(); err != nil {
			return nil, err
		}
		return config, nil
	}
	return LoadConfig(path)
}

// Validate rejects settings the tracker cannot run with
func (c *Config) Validate() error {
	t := c.Tracker
	if t.MinimumPercentage <= 0 {
		return fmt.Errorf("tracker.minimum_percentage must be positive, got %v", t.MinimumPercentage)
	}
	if t.HitThreshold <= 0 || t.PartialThreshold <= 0 {
		return fmt.Errorf("tracker thresholds must be positive (hit %v, partial %v)", t.HitThreshold, t.PartialThreshold)
	}
	if t.PartialThreshold < t.HitThreshold {
		return fmt.Errorf("tracker.partial_threshold %v is below hit_threshold %v", t.PartialThreshold, t.HitThreshold)
	}
	if t.DuplicatePercentageTolerance < 0 || t.DuplicateTimeWindow < 0 {
		return errors.New("tracker duplicate tolerances must not be negative")
	}
	if t.MaxTrackedPerCycle <= 0 {
		return fmt.Errorf("tracker.max_tracked_per_cycle must be positive, got %d", t.MaxTrackedPerCycle)
	}

	if _, err := time.LoadLocation(c.Market.Timezone); err != nil {
		return fmt.Errorf("market.timezone: %w", err)
	}
	open, err := ParseClock(c.Market.Open)
	if err != nil {
		return fmt.Errorf("market.open: %w", err)
	}
	closing, err := ParseClock(c.Market.Close)
	if err != nil {
		return fmt.Errorf("market.close: %w", err)
	}
	if closing <= open {
		return fmt.Errorf("market.close %s must be after market.open %s", c.Market.Close, c.Market.Open)
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	for _, src := range c.Sources {
		switch src.Type {
		case SourceTypeRSS, SourceTypeHTML, SourceTypeNATS:
		default:
			return fmt.Errorf("source %s: unknown type %q", src.Name, src.Type)
		}
	}

	s := c.Scheduler
	if s.OperatingStartHour < 0 || s.OperatingEndHour > 23 || s.OperatingStartHour > s.OperatingEndHour {
		return fmt.Errorf("scheduler operating hours %d-%d out of range", s.OperatingStartHour, s.OperatingEndHour)
	}
	return nil
}

// EnabledSources returns the sources switched on
func (c *Config) EnabledSources() []SourceConfig {
	var enabled []SourceConfig
	for _, src := range c.Sources {
		if src.Enabled {
			enabled = append(enabled, src)
		}
	}
	return enabled
}

// PostgresDSN builds the connection string from discrete fields unless DSN is set
func (d DatabaseConfig) PostgresDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// ParseClock converts "HH:MM" into minutes after midnight
func ParseClock(value string) (int, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock %q, want HH:MM", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hour*60 + minute, nil
}

// overrideFromEnv applies environment variables on top of file values
func overrideFromEnv(config *Config) {
	// Application
	if env := os.Getenv("APP_NAME"); env != "" {
		config.App.Name = env
	}
	if env := os.Getenv("APP_ENV"); env != "" {
		config.App.Env = env
	}

	// Tracker thresholds
	if v, ok := envFloat("MINIMUM_PERCENTAGE"); ok {
		config.Tracker.MinimumPercentage = v
	}
	if v, ok := envFloat("HIT_THRESHOLD"); ok {
		config.Tracker.HitThreshold = v
	}
	if v, ok := envFloat("PARTIAL_THRESHOLD"); ok {
		config.Tracker.PartialThreshold = v
	}
	if v, ok := envInt("MAX_TRACKED_STOCKS"); ok {
		config.Tracker.MaxTrackedPerCycle = v
	}

	// Price provider
	if env := os.Getenv("EODHD_API_KEY"); env != "" {
		config.Price.APIKey = env
	}
	if env := os.Getenv("PRICE_BASE_URL"); env != "" {
		config.Price.BaseURL = env
	}

	// Database
	if env := os.Getenv("DB_DRIVER"); env != "" {
		config.Database.Driver = env
	}
	if env := os.Getenv("DB_DSN"); env != "" {
		config.Database.DSN = env
	}
	if env := os.Getenv("DATABASE_PATH"); env != "" {
		config.Database.Path = env
	}
	if env := os.Getenv("DB_HOST"); env != "" {
		config.Database.Host = env
	}
	if v, ok := envInt("DB_PORT"); ok && v > 0 {
		config.Database.Port = v
	}
	if env := os.Getenv("DB_USER"); env != "" {
		config.Database.User = env
	}
	if env := os.Getenv("DB_PASSWORD"); env != "" {
		config.Database.Password = env
	}
	if env := os.Getenv("DB_NAME"); env != "" {
		config.Database.DBName = env
	}

	// NATS
	if env := os.Getenv("NATS_URL"); env != "" {
		config.NATS.URL = env
	}
	if env := os.Getenv("NATS_CLUSTER_ID"); env != "" {
		config.NATS.ClusterID = env
	}
	if env := os.Getenv("NATS_CLIENT_ID"); env != "" {
		config.NATS.ClientID = env
	}

	// Logging
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		config.Logging.Level = strings.ToLower(env)
	}
}

func envFloat(key string) (float64, bool) {
	env := os.Getenv(key)
	if env == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(env, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envInt(key string) (int, bool) {
	env := os.Getenv(key)
	if env == "" {
		return 0, false
	}
	v, err := strconv.Atoi(env)
	if err != nil {
		return 0, false
	}
	return v, true
}

// GetDefaultConfigPath returns the per-environment config file
func GetDefaultConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	return fmt.Sprintf("configs/%s/app.yaml", env)
}
