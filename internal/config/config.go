package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/praxos/paperscout/internal/arxiv"
	"github.com/praxos/paperscout/internal/llm"
	"github.com/praxos/paperscout/internal/tracing"
)

// WorkflowConfig holds coordination knobs shared by both workflows.
type WorkflowConfig struct {
	// GateTimeout bounds the completion-gate wait so a silent handler
	// failure can never hang an invocation.
	GateTimeout time.Duration `mapstructure:"gate_timeout"`
	// KeywordCount is the number of sub-queries derived per reference
	// lookup; it is also the gate's required completion count.
	KeywordCount int `mapstructure:"keyword_count"`
	// ResultsPerKeyword is how many records each lookup handler requests.
	ResultsPerKeyword int `mapstructure:"results_per_keyword"`
	// MaxReferences is how many references synthesis is asked to keep.
	MaxReferences int `mapstructure:"max_references"`
	// PromptFile optionally overrides the compiled-in prompt templates.
	PromptFile string `mapstructure:"prompt_file"`
}

// RedisConfig enables the optional lookup cache when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggingConfig selects the zap profile.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ObservabilityConfig groups the ambient surfaces.
type ObservabilityConfig struct {
	Logging     LoggingConfig  `mapstructure:"logging"`
	MetricsAddr string         `mapstructure:"metrics_addr"`
	Tracing     tracing.Config `mapstructure:"tracing"`
}

// Config is the full runtime configuration.
type Config struct {
	LLM           llm.Config          `mapstructure:"llm"`
	Lookup        arxiv.Config        `mapstructure:"lookup"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Workflow      WorkflowConfig      `mapstructure:"workflow"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

func setDefaults(v *viper.Viper) {
	// Every key must be registered here, zero-valued ones included:
	// AutomaticEnv only reaches Unmarshal for keys viper already knows, so
	// an unregistered key would silently drop its PAPERSCOUT_ override.
	v.SetDefault("llm.url", "http://localhost:8000/v1/complete")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.timeout", "120s")

	v.SetDefault("lookup.endpoint", "")
	v.SetDefault("lookup.timeout", "30s")
	v.SetDefault("lookup.rate_interval", "3s")
	v.SetDefault("lookup.max_retries", 3)
	v.SetDefault("lookup.cache_ttl", "15m")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("workflow.gate_timeout", "120s")
	v.SetDefault("workflow.keyword_count", 3)
	v.SetDefault("workflow.results_per_keyword", 6)
	v.SetDefault("workflow.max_references", 5)
	v.SetDefault("workflow.prompt_file", "")

	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.metrics_addr", "")
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.service_name", "paperscout")
	v.SetDefault("observability.tracing.otlp_endpoint", "")
}

// Load reads paperscout.yaml from path (or CONFIG_PATH, or the working
// directory) with PAPERSCOUT_-prefixed env overrides. A missing file is not
// an error; defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PAPERSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("paperscout")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
