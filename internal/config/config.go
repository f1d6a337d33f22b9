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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Cluster    ClusterConfig    `yaml:"cluster" mapstructure:"cluster"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ClusterConfig configures the clustering runner and orchestrator.
type ClusterConfig struct {
	// QualityThreshold is the minimum silhouette score the primary
	// algorithm must reach before alternatives are tried.
	QualityThreshold float64 `yaml:"quality_threshold" mapstructure:"quality_threshold"`
	Seed             int64   `yaml:"seed" mapstructure:"seed"`
	NInit            int     `yaml:"n_init" mapstructure:"n_init"`
	MaxIter          int     `yaml:"max_iter" mapstructure:"max_iter"`
	MaxAlternatives  int     `yaml:"max_alternatives" mapstructure:"max_alternatives"`
	// CHNormalization scales the Calinski-Harabasz term inside the
	// combined score. Empirical and dataset-scale-dependent; recalibrate
	// per deployment rather than treating the default as a law.
	CHNormalization float64 `yaml:"ch_normalization" mapstructure:"ch_normalization"`
	// Concurrency bounds parallel course runs in batch clustering.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// MonitoringConfig configures quality thresholds and alert delivery.
type MonitoringConfig struct {
	SilhouetteMin     float64 `yaml:"silhouette_min" mapstructure:"silhouette_min"`
	CombinedMin       float64 `yaml:"combined_min" mapstructure:"combined_min"`
	ProcessingTimeMax float64 `yaml:"processing_time_max" mapstructure:"processing_time_max"`
	MemoryUsageMax    float64 `yaml:"memory_usage_max" mapstructure:"memory_usage_max"`
	WebhookURL        string  `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("EDUSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "edusight.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("cluster.quality_threshold", 0.3)
	v.SetDefault("cluster.seed", 42)
	v.SetDefault("cluster.n_init", 10)
	v.SetDefault("cluster.max_iter", 300)
	v.SetDefault("cluster.max_alternatives", 3)
	v.SetDefault("cluster.ch_normalization", 1000.0)
	v.SetDefault("cluster.concurrency", 1)
	v.SetDefault("monitoring.silhouette_min", 0.2)
	v.SetDefault("monitoring.combined_min", 0.3)
	v.SetDefault("monitoring.processing_time_max", 300.0)
	v.SetDefault("monitoring.memory_usage_max", 1000.0)

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
