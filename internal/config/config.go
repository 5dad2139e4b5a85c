package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Vetting  VettingConfig  `yaml:"vetting" mapstructure:"vetting"`
	Scoring  ScoringConfig  `yaml:"scoring" mapstructure:"scoring"`
	Matching MatchingConfig `yaml:"matching" mapstructure:"matching"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`

	// ConnectAttempts and ConnectBackoffMs control retries when opening the
	// store at startup.
	ConnectAttempts  int `yaml:"connect_attempts" mapstructure:"connect_attempts"`
	ConnectBackoffMs int `yaml:"connect_backoff_ms" mapstructure:"connect_backoff_ms"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	RateLimitRPS       float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst     int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	CORSOrigins        []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// VettingConfig configures the onboarding vetting score.
type VettingConfig struct {
	YearsForMaxPoints float64 `yaml:"years_for_max_points" mapstructure:"years_for_max_points"`
}

// ScoringWeights are the component weights of the performance score. They
// must sum to 1.0.
type ScoringWeights struct {
	Review     float64 `yaml:"review" mapstructure:"review"`
	Completion float64 `yaml:"completion" mapstructure:"completion"`
	Acceptance float64 `yaml:"acceptance" mapstructure:"acceptance"`
	Volume     float64 `yaml:"volume" mapstructure:"volume"`
	Recency    float64 `yaml:"recency" mapstructure:"recency"`
}

// ReviewConfig controls how reviews are converted into the review component.
type ReviewConfig struct {
	MinReviewsForFullWeight int     `yaml:"min_reviews_for_full_weight" mapstructure:"min_reviews_for_full_weight"`
	HalfLifeDays            float64 `yaml:"half_life_days" mapstructure:"half_life_days"`
	NeutralScore            float64 `yaml:"neutral_score" mapstructure:"neutral_score"`
	SubRatingWeight         float64 `yaml:"sub_rating_weight" mapstructure:"sub_rating_weight"`
}

// PenaltyConfig holds per-event penalty points and the asymptotic ceiling.
type PenaltyConfig struct {
	NoShow             float64 `yaml:"no_show" mapstructure:"no_show"`
	DeclineAfterAccept float64 `yaml:"decline_after_accept" mapstructure:"decline_after_accept"`
	OneStar            float64 `yaml:"one_star" mapstructure:"one_star"`
	Max                float64 `yaml:"max" mapstructure:"max"`
}

// ScoringConfig configures the vendor performance score.
type ScoringConfig struct {
	Weights           ScoringWeights `yaml:"weights" mapstructure:"weights"`
	Review            ReviewConfig   `yaml:"review" mapstructure:"review"`
	VolumeScale       float64        `yaml:"volume_scale" mapstructure:"volume_scale"`
	RecencyWindowDays float64        `yaml:"recency_window_days" mapstructure:"recency_window_days"`
	Penalties         PenaltyConfig  `yaml:"penalties" mapstructure:"penalties"`
}

// MatchWeights are the factor weights of the match score. They must sum to 1.0.
type MatchWeights struct {
	Performance    float64 `yaml:"performance" mapstructure:"performance"`
	ServiceType    float64 `yaml:"service_type" mapstructure:"service_type"`
	Location       float64 `yaml:"location" mapstructure:"location"`
	Workload       float64 `yaml:"workload" mapstructure:"workload"`
	Responsiveness float64 `yaml:"responsiveness" mapstructure:"responsiveness"`
}

// LocationScores are the location-fit scores per kind of service-area match.
type LocationScores struct {
	Exact   float64 `yaml:"exact" mapstructure:"exact"`
	Prefix  float64 `yaml:"prefix" mapstructure:"prefix"`
	State   float64 `yaml:"state" mapstructure:"state"`
	Unknown float64 `yaml:"unknown" mapstructure:"unknown"`
}

// MatchingConfig configures request-vendor match scoring.
type MatchingConfig struct {
	Weights                   MatchWeights   `yaml:"weights" mapstructure:"weights"`
	UrgentWeights             MatchWeights   `yaml:"urgent_weights" mapstructure:"urgent_weights"`
	Location                  LocationScores `yaml:"location" mapstructure:"location"`
	NeutralScore              float64        `yaml:"neutral_score" mapstructure:"neutral_score"`
	BusyThreshold             int            `yaml:"busy_threshold" mapstructure:"busy_threshold"`
	OverloadThreshold         int            `yaml:"overload_threshold" mapstructure:"overload_threshold"`
	ResponseTargetHours       float64        `yaml:"response_target_hours" mapstructure:"response_target_hours"`
	UrgentResponseTargetHours float64        `yaml:"urgent_response_target_hours" mapstructure:"urgent_response_target_hours"`
	SlowResponseHours         float64        `yaml:"slow_response_hours" mapstructure:"slow_response_hours"`
	ScoringVersion            string         `yaml:"scoring_version" mapstructure:"scoring_version"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VENDORMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "vendormatch.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("store.connect_attempts", 5)
	v.SetDefault("store.connect_backoff_ms", 500)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_secs", 15)
	v.SetDefault("server.rate_limit_rps", 20)
	v.SetDefault("server.rate_limit_burst", 40)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("vetting.years_for_max_points", 5)

	v.SetDefault("scoring.weights.review", 0.45)
	v.SetDefault("scoring.weights.completion", 0.20)
	v.SetDefault("scoring.weights.acceptance", 0.10)
	v.SetDefault("scoring.weights.volume", 0.10)
	v.SetDefault("scoring.weights.recency", 0.15)
	v.SetDefault("scoring.review.min_reviews_for_full_weight", 5)
	v.SetDefault("scoring.review.half_life_days", 180)
	v.SetDefault("scoring.review.neutral_score", 50)
	v.SetDefault("scoring.review.sub_rating_weight", 0.5)
	v.SetDefault("scoring.volume_scale", 10)
	v.SetDefault("scoring.recency_window_days", 180)
	v.SetDefault("scoring.penalties.no_show", 10)
	v.SetDefault("scoring.penalties.decline_after_accept", 5)
	v.SetDefault("scoring.penalties.one_star", 2)
	v.SetDefault("scoring.penalties.max", 60)

	v.SetDefault("matching.weights.performance", 0.40)
	v.SetDefault("matching.weights.service_type", 0.15)
	v.SetDefault("matching.weights.location", 0.20)
	v.SetDefault("matching.weights.workload", 0.10)
	v.SetDefault("matching.weights.responsiveness", 0.15)
	v.SetDefault("matching.urgent_weights.performance", 0.35)
	v.SetDefault("matching.urgent_weights.service_type", 0.15)
	v.SetDefault("matching.urgent_weights.location", 0.15)
	v.SetDefault("matching.urgent_weights.workload", 0.10)
	v.SetDefault("matching.urgent_weights.responsiveness", 0.25)
	v.SetDefault("matching.location.exact", 100)
	v.SetDefault("matching.location.prefix", 75)
	v.SetDefault("matching.location.state", 60)
	v.SetDefault("matching.location.unknown", 50)
	v.SetDefault("matching.neutral_score", 50)
	v.SetDefault("matching.busy_threshold", 5)
	v.SetDefault("matching.overload_threshold", 10)
	v.SetDefault("matching.response_target_hours", 48)
	v.SetDefault("matching.urgent_response_target_hours", 24)
	v.SetDefault("matching.slow_response_hours", 12)
	v.SetDefault("matching.scoring_version", "2.0")
}

// Validate checks that the settings required by the given mode are present.
// Modes: "store" (commands that open the database) and "serve" (the API).
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "store":
		errs = append(errs, c.validateStore()...)
	case "serve":
		errs = append(errs, c.validateStore()...)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Server.RequestTimeoutSecs <= 0 {
			errs = append(errs, "server.request_timeout_secs must be > 0")
		}
		if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
			errs = append(errs, "server rate limits must be >= 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
