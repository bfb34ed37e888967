package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"stocktracker/internal/sentiment"
)

type Server struct {
	Port string `yaml:"port"`
	// LookbackDays is the date range used when a request names none.
	LookbackDays int `yaml:"lookback_days"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Market struct {
	AlphaVantageAPIKey string        `yaml:"alpha_vantage_api_key"`
	MaxAttempts        int           `yaml:"max_attempts"`
	BackoffBase        time.Duration `yaml:"backoff_base"`
	BackoffJitter      time.Duration `yaml:"backoff_jitter"`
	HTTPTimeout        time.Duration `yaml:"http_timeout"`
	// YahooMinInterval spaces calls to the keyless primary.
	YahooMinInterval time.Duration `yaml:"yahoo_min_interval"`
	// AlphaVantageMaxRPM is the free-tier budget shared by the fallback
	// and valuation endpoints.
	AlphaVantageMaxRPM int  `yaml:"alpha_vantage_max_rpm"`
	Valuation          bool `yaml:"valuation"`
	// Recommendations adds the Yahoo analyst trend to reports.
	Recommendations bool `yaml:"recommendations"`
}

type News struct {
	NewsAPIKey         string        `yaml:"news_api_key"`
	Count              int           `yaml:"count"`
	PageSize           int           `yaml:"page_size"`
	Language           string        `yaml:"language"`
	HTTPTimeout        time.Duration `yaml:"http_timeout"`
	ExtractText        bool          `yaml:"extract_text"`
	ExtractConcurrency int           `yaml:"extract_concurrency"`
	// Entities selects entity matching over plain substring matching.
	Entities          bool          `yaml:"entities"`
	NewsAPIMaxRPM     int           `yaml:"news_api_max_rpm"`
	ScrapeMinInterval time.Duration `yaml:"scrape_min_interval"`
}

type Cache struct {
	MarketTTL time.Duration `yaml:"market_ttl"`
	// NewsTTL covers articles and their aggregate sentiment together.
	NewsTTL            time.Duration `yaml:"news_ttl"`
	ValuationTTL       time.Duration `yaml:"valuation_ttl"`
	RecommendationsTTL time.Duration `yaml:"recommendations_ttl"`
	ProfileTTL         time.Duration `yaml:"profile_ttl"`
	MaxItems           int           `yaml:"max_items"`
}

type Sentiment struct {
	Thresholds sentiment.Thresholds `yaml:"thresholds"`
}

type Pipeline struct {
	// Timeout bounds a whole request; market and news share it.
	Timeout time.Duration `yaml:"timeout"`
}

type Prewarm struct {
	Enabled      bool     `yaml:"enabled"`
	Schedule     string   `yaml:"schedule"`
	Symbols      []string `yaml:"symbols"`
	LookbackDays int      `yaml:"lookback_days"`
}

type Config struct {
	Server    Server    `yaml:"server"`
	Log       Log       `yaml:"log"`
	Market    Market    `yaml:"market"`
	News      News      `yaml:"news"`
	Cache     Cache     `yaml:"cache"`
	Sentiment Sentiment `yaml:"sentiment"`
	Pipeline  Pipeline  `yaml:"pipeline"`
	Prewarm   Prewarm   `yaml:"prewarm"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", LookbackDays: 365},
		Log:    Log{Level: "info", Format: "text"},
		Market: Market{
			MaxAttempts:        3,
			BackoffBase:        time.Second,
			BackoffJitter:      time.Second,
			HTTPTimeout:        10 * time.Second,
			YahooMinInterval:   250 * time.Millisecond,
			AlphaVantageMaxRPM: 5,
			Valuation:          true,
			Recommendations:    true,
		},
		News: News{
			Count:              10,
			PageSize:           20,
			Language:           "en",
			HTTPTimeout:        10 * time.Second,
			ExtractText:        true,
			ExtractConcurrency: 4,
			Entities:           true,
			NewsAPIMaxRPM:      30,
			ScrapeMinInterval:  time.Second,
		},
		Cache: Cache{
			MarketTTL:          time.Hour,
			NewsTTL:            time.Hour,
			ValuationTTL:       time.Hour,
			RecommendationsTTL: time.Hour,
			ProfileTTL:         24 * time.Hour,
			MaxItems:           10000,
		},
		Sentiment: Sentiment{Thresholds: sentiment.DefaultThresholds()},
		Pipeline:  Pipeline{Timeout: 60 * time.Second},
		Prewarm: Prewarm{
			Enabled:      false,
			Schedule:     "0 0 * * * *",
			LookbackDays: 365,
		},
	}
}

// Load reads YAML config from path over the defaults. ${VAR} references
// are expanded first. If path is empty, config.yaml is used when present.
// Environment variables then override select fields, secrets included.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ALPHA_VANTAGE_API_KEY"); v != "" {
		cfg.Market.AlphaVantageAPIKey = v
	}
	if v := os.Getenv("NEWS_API_KEY"); v != "" {
		cfg.News.NewsAPIKey = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if x, ok := envInt("REQUEST_TIMEOUT_SEC"); ok && x > 0 {
		cfg.Pipeline.Timeout = time.Duration(x) * time.Second
	}
	if x, ok := envInt("MAX_ATTEMPTS"); ok && x > 0 {
		cfg.Market.MaxAttempts = x
	}
	if x, ok := envInt("NEWS_COUNT"); ok && x > 0 {
		cfg.News.Count = x
	}
	if x, ok := envInt("CACHE_TTL_SEC"); ok && x >= 0 {
		ttl := time.Duration(x) * time.Second
		cfg.Cache.MarketTTL = ttl
		cfg.Cache.NewsTTL = ttl
		cfg.Cache.ValuationTTL = ttl
		cfg.Cache.RecommendationsTTL = ttl
	}
	if x, ok := envInt("CACHE_MAX_ITEMS"); ok && x >= 0 {
		cfg.Cache.MaxItems = x
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("PREWARM_SYMBOLS"); v != "" {
		cfg.Prewarm.Symbols = splitCSV(v)
		cfg.Prewarm.Enabled = true
	}
	if v := os.Getenv("PREWARM_SCHEDULE"); v != "" {
		cfg.Prewarm.Schedule = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	x, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return x, true
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
