package config

import (
	"log"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone  = "UTC"
	configPathEnv    = "NEWSBOARD_CONFIG"
	databaseDSNEnv   = "DATABASE_DSN"
	contentAPIURLEnv = "CONTENT_API_URL"
	contentAPIKeyEnv = "CONTENT_API_KEY"
	chatGPTAPIKeyEnv = "CHATGPT_API_KEY"
	chatGPTModelEnv  = "CHATGPT_MODEL"
	mqttBrokerEnv    = "MQTT_BROKER"
	languageEnv      = "NEWSBOARD_LANGUAGE"
	logLevelEnv      = "LOG_LEVEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Board       BoardConfig       `yaml:"board"`
	Panels      []PanelConfig     `yaml:"panels"`
	ContentAPI  ContentAPIConfig  `yaml:"contentApi"`
	Database    DatabaseConfig    `yaml:"database"`
	ChatGPT     ChatGPTConfig     `yaml:"chatgpt"`
	Translation TranslationConfig `yaml:"translation"`
	Images      ImagesConfig      `yaml:"images"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// BoardConfig tunes the progressive panel load and reconciliation.
type BoardConfig struct {
	Surplus         int           `yaml:"surplus"`
	Target          int           `yaml:"target"`
	VisibleBatch    int           `yaml:"visibleBatch"`
	SettleDelay     time.Duration `yaml:"settleDelay"`
	BackgroundDelay time.Duration `yaml:"backgroundDelay"`
	Debounce        time.Duration `yaml:"debounce"`
	ReadyTimeout    time.Duration `yaml:"readyTimeout"`
	ImageTimeout    time.Duration `yaml:"imageTimeout"`
}

// Normalize replaces invalid values with the defaults.
func (b BoardConfig) Normalize() BoardConfig {
	def := defaultConfig().Board
	if b.Target <= 0 {
		b.Target = def.Target
	}
	if b.Surplus <= 0 {
		b.Surplus = def.Surplus
	}
	if b.Surplus < b.Target {
		b.Surplus = b.Target
	}
	if b.VisibleBatch <= 0 || b.VisibleBatch > b.Target {
		b.VisibleBatch = min(def.VisibleBatch, b.Target)
	}
	if b.SettleDelay < 0 {
		b.SettleDelay = def.SettleDelay
	}
	if b.BackgroundDelay < 0 {
		b.BackgroundDelay = def.BackgroundDelay
	}
	if b.Debounce <= 0 {
		b.Debounce = def.Debounce
	}
	if b.ReadyTimeout <= 0 {
		b.ReadyTimeout = def.ReadyTimeout
	}
	if b.ImageTimeout <= 0 {
		b.ImageTimeout = def.ImageTimeout
	}
	return b
}

// PanelConfig describes a single panel with its scanner strategy. Panels are
// ranked in file order; the first one has the highest priority.
type PanelConfig struct {
	Key     string            `yaml:"key"`
	Title   string            `yaml:"title"`
	Scanner string            `yaml:"scanner"`
	URL     string            `yaml:"url"`
	Options map[string]string `yaml:"options"`
}

// ContentAPIConfig points at the JSON content service.
type ContentAPIConfig struct {
	BaseURL string `yaml:"baseUrl"`
	APIKey  string `yaml:"apiKey"`
}

// DatabaseConfig describes Postgres connection details.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// ChatGPTConfig defines how to contact the ChatGPT API.
type ChatGPTConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// TranslationConfig selects the display language. Glossary maps a language
// tag to source -> translated headline pairs.
type TranslationConfig struct {
	Language string                       `yaml:"language"`
	Glossary map[string]map[string]string `yaml:"glossary"`
}

// ImagesConfig configures the title placeholder service.
type ImagesConfig struct {
	PlaceholderBase string `yaml:"placeholderBase"`
}

// MQTTConfig wires the optional frame publisher. An empty broker disables it.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"clientId"`
	TopicPrefix string `yaml:"topicPrefix"`
	QoS         byte   `yaml:"qos"`
}

// SchedulerConfig defines how often serve refreshes the board.
type SchedulerConfig struct {
	Interval time.Duration  `yaml:"interval"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// Load reads .env and YAML configuration (if present) and applies
// environment overrides.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: cannot read .env: %v", err)
	}

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if fileCfg, err := ReadFile(path); err != nil {
			log.Printf("config: %v (falling back to defaults)", err)
		} else {
			cfg = mergeConfig(cfg, fileCfg)
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()
	cfg.Board = cfg.Board.Normalize()

	if len(cfg.Panels) == 0 {
		cfg.Panels = defaultConfig().Panels
	}

	return cfg
}

// ReadFile parses a YAML config file without merging defaults.
func ReadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, &ParseError{Path: path, Err: err}
	}
	return cfg, nil
}

// ParseError reports a malformed config file.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string { return "cannot parse " + e.Path + ": " + e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(contentAPIURLEnv); v != "" {
		c.ContentAPI.BaseURL = v
	}

	if v := os.Getenv(contentAPIKeyEnv); v != "" {
		c.ContentAPI.APIKey = v
	}

	if v := os.Getenv(chatGPTAPIKeyEnv); v != "" {
		c.ChatGPT.APIKey = v
	}

	if v := os.Getenv(chatGPTModelEnv); v != "" {
		c.ChatGPT.Model = v
	}

	if v := os.Getenv(mqttBrokerEnv); v != "" {
		c.MQTT.Broker = v
	}

	if v := os.Getenv(languageEnv); v != "" {
		c.Translation.Language = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	base.Board = mergeBoard(base.Board, override.Board)

	if len(override.Panels) > 0 {
		base.Panels = override.Panels
	}

	if override.ContentAPI.BaseURL != "" {
		base.ContentAPI.BaseURL = override.ContentAPI.BaseURL
	}
	if override.ContentAPI.APIKey != "" {
		base.ContentAPI.APIKey = override.ContentAPI.APIKey
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.ChatGPT.Endpoint != "" {
		base.ChatGPT.Endpoint = override.ChatGPT.Endpoint
	}
	if override.ChatGPT.Model != "" {
		base.ChatGPT.Model = override.ChatGPT.Model
	}
	if override.ChatGPT.APIKey != "" {
		base.ChatGPT.APIKey = override.ChatGPT.APIKey
	}
	if override.ChatGPT.SystemPrompt != "" {
		base.ChatGPT.SystemPrompt = override.ChatGPT.SystemPrompt
	}

	if override.Translation.Language != "" {
		base.Translation.Language = override.Translation.Language
	}
	if len(override.Translation.Glossary) > 0 {
		base.Translation.Glossary = override.Translation.Glossary
	}

	if override.Images.PlaceholderBase != "" {
		base.Images.PlaceholderBase = override.Images.PlaceholderBase
	}

	if override.MQTT.Broker != "" {
		base.MQTT.Broker = override.MQTT.Broker
	}
	if override.MQTT.ClientID != "" {
		base.MQTT.ClientID = override.MQTT.ClientID
	}
	if override.MQTT.TopicPrefix != "" {
		base.MQTT.TopicPrefix = override.MQTT.TopicPrefix
	}
	if override.MQTT.QoS != 0 {
		base.MQTT.QoS = override.MQTT.QoS
	}

	if override.Scheduler.Interval != 0 {
		base.Scheduler.Interval = override.Scheduler.Interval
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	return base
}

func mergeBoard(base, override BoardConfig) BoardConfig {
	if override.Surplus != 0 {
		base.Surplus = override.Surplus
	}
	if override.Target != 0 {
		base.Target = override.Target
	}
	if override.VisibleBatch != 0 {
		base.VisibleBatch = override.VisibleBatch
	}
	if override.SettleDelay != 0 {
		base.SettleDelay = override.SettleDelay
	}
	if override.BackgroundDelay != 0 {
		base.BackgroundDelay = override.BackgroundDelay
	}
	if override.Debounce != 0 {
		base.Debounce = override.Debounce
	}
	if override.ReadyTimeout != 0 {
		base.ReadyTimeout = override.ReadyTimeout
	}
	if override.ImageTimeout != 0 {
		base.ImageTimeout = override.ImageTimeout
	}
	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Board: BoardConfig{
			Surplus:         70,
			Target:          50,
			VisibleBatch:    20,
			SettleDelay:     300 * time.Millisecond,
			BackgroundDelay: time.Second,
			Debounce:        200 * time.Millisecond,
			ReadyTimeout:    10 * time.Second,
			ImageTimeout:    5 * time.Second,
		},
		ContentAPI: ContentAPIConfig{BaseURL: "https://content.example.org/api"},
		Database:   DatabaseConfig{DSN: ""},
		ChatGPT: ChatGPTConfig{
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			Model:        "gpt-4o-mini",
			APIKey:       "",
			SystemPrompt: "You translate news headlines. Reply with the translated headline only.",
		},
		Translation: TranslationConfig{Language: "en"},
		Images:      ImagesConfig{PlaceholderBase: "https://placehold.example.org"},
		MQTT:        MQTTConfig{ClientID: "newsboard", TopicPrefix: "newsboard/panels", QoS: 1},
		Scheduler:   SchedulerConfig{Interval: 5 * time.Minute, Timezone: defaultTimezone, location: tz},
		Panels: []PanelConfig{
			{Key: "latest", Title: "Latest", Scanner: "api"},
			{Key: "india", Title: "India", Scanner: "api"},
			{Key: "world", Title: "World", Scanner: "api"},
			{Key: "business", Title: "Business", Scanner: "api"},
			{Key: "sports", Title: "Sports", Scanner: "api"},
		},
	}
}
