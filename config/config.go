package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ChainConfig points at the node used for heads, blocks and receipts.
type ChainConfig struct {
	WSURL          string `yaml:"ws_url"`
	HTTPURL        string `yaml:"http_url"`
	FetchTimeoutMS int    `yaml:"fetch_timeout_ms"`
}

// ContractsConfig holds the tracked contract addresses.
type ContractsConfig struct {
	Shares string `yaml:"shares"`
	Sniper string `yaml:"sniper"`
}

// WalletConfig holds signing key material. Only ever populated from the environment.
type WalletConfig struct {
	PrivateKey string `yaml:"-"`
}

// SequencerConfig controls the low-latency broadcast endpoint.
type SequencerConfig struct {
	URL       string `yaml:"url"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

// ReputationConfig points at the identity and follower-count collaborators.
type ReputationConfig struct {
	IdentityURL  string `yaml:"identity_url"`
	FollowersURL string `yaml:"followers_url"`
	TimeoutSec   int    `yaml:"timeout_sec"`
}

// SnipeConfig defines the competing transaction.
type SnipeConfig struct {
	Amount   uint64 `yaml:"amount"`
	GasLimit uint64 `yaml:"gas_limit"`
}

// PipelineConfig sizes the per-transaction fan-out.
type PipelineConfig struct {
	DedupCapacity    int  `yaml:"dedup_capacity"`
	Workers          int  `yaml:"workers"`
	QueueSize        int  `yaml:"queue_size"`
	PrewarmRelay     bool `yaml:"prewarm_relay"`
	PrewarmTransfers bool `yaml:"prewarm_transfers"`
}

// ListenerConfig controls subscription hardening.
type ListenerConfig struct {
	Reconnect     bool `yaml:"reconnect"`
	MaxReconnects int  `yaml:"max_reconnects"`
	BackoffMS     int  `yaml:"backoff_ms"`
	MaxBackoffMS  int  `yaml:"max_backoff_ms"`
	HandshakeMS   int  `yaml:"handshake_ms"`
}

// ServerConfig controls the status API.
type ServerConfig struct {
	Port              int `yaml:"port"`
	ReadTimeoutMS     int `yaml:"read_timeout_ms"`
	WriteTimeoutMS    int `yaml:"write_timeout_ms"`
	ShutdownTimeoutMS int `yaml:"shutdown_timeout_ms"`
}

// DataConfig selects the snipe audit backend: "sqlite" or "postgres".
type DataConfig struct {
	Backend string `yaml:"backend"`
	DBPath  string `yaml:"db_path"`
}

// RedisConfig enables the periodic stats snapshot. Empty Addr disables it.
type RedisConfig struct {
	Addr        string `yaml:"addr"`
	Password    string `yaml:"password"`
	DB          int    `yaml:"db"`
	SnapshotSec int    `yaml:"snapshot_sec"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

// Config aggregates all app configuration knobs.
type Config struct {
	Chain      ChainConfig      `yaml:"chain"`
	Contracts  ContractsConfig  `yaml:"contracts"`
	Wallet     WalletConfig     `yaml:"-"`
	Sequencer  SequencerConfig  `yaml:"sequencer"`
	Reputation ReputationConfig `yaml:"reputation"`
	Snipe      SnipeConfig      `yaml:"snipe"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Listener   ListenerConfig   `yaml:"listener"`
	Server     ServerConfig     `yaml:"server"`
	Data       DataConfig       `yaml:"data"`
	Redis      RedisConfig      `yaml:"redis"`
	Log        LogConfig        `yaml:"log"`
}

// Load reads configuration from disk, falling back to defaults, then applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	configPath := path
	if configPath == "" {
		configPath = filepath.Join("config", "default.yaml")
	}

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: unable to parse %s: %w", configPath, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("config: unable to read %s: %w", configPath, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

// Default returns baseline configuration values.
func Default() Config {
	return Config{
		Chain: ChainConfig{
			FetchTimeoutMS: 10000,
		},
		Contracts: ContractsConfig{
			Shares: "0xCF205808Ed36593aa40a44F10c7f7C2F67d4A4d4",
		},
		Sequencer: SequencerConfig{
			URL:       "https://mainnet-sequencer.base.org/",
			TimeoutMS: 5000,
		},
		Reputation: ReputationConfig{
			IdentityURL:  "https://prod-api.kosetto.com",
			FollowersURL: "http://127.0.0.1:8000",
			TimeoutSec:   60,
		},
		Snipe: SnipeConfig{
			Amount:   5,
			GasLimit: 1_000_000,
		},
		Pipeline: PipelineConfig{
			DedupCapacity: 10,
			Workers:       64,
			QueueSize:     1024,
			PrewarmRelay:  true,
		},
		Listener: ListenerConfig{
			MaxReconnects: 5,
			BackoffMS:     500,
			MaxBackoffMS:  10000,
			HandshakeMS:   10000,
		},
		Server: ServerConfig{
			Port:              8081,
			ReadTimeoutMS:     10000,
			WriteTimeoutMS:    10000,
			ShutdownTimeoutMS: 5000,
		},
		Data: DataConfig{
			Backend: "sqlite",
			DBPath:  "data/snipes.db",
		},
		Redis: RedisConfig{
			SnapshotSec: 30,
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "json",
		},
	}
}

func (c *Config) applyDefaults() {
	def := Default()

	if c.Chain.FetchTimeoutMS == 0 {
		c.Chain.FetchTimeoutMS = def.Chain.FetchTimeoutMS
	}
	if c.Contracts.Shares == "" {
		c.Contracts.Shares = def.Contracts.Shares
	}
	if c.Sequencer.URL == "" {
		c.Sequencer.URL = def.Sequencer.URL
	}
	if c.Sequencer.TimeoutMS == 0 {
		c.Sequencer.TimeoutMS = def.Sequencer.TimeoutMS
	}
	if c.Reputation.IdentityURL == "" {
		c.Reputation.IdentityURL = def.Reputation.IdentityURL
	}
	if c.Reputation.FollowersURL == "" {
		c.Reputation.FollowersURL = def.Reputation.FollowersURL
	}
	if c.Reputation.TimeoutSec == 0 {
		c.Reputation.TimeoutSec = def.Reputation.TimeoutSec
	}
	if c.Snipe.Amount == 0 {
		c.Snipe.Amount = def.Snipe.Amount
	}
	if c.Snipe.GasLimit == 0 {
		c.Snipe.GasLimit = def.Snipe.GasLimit
	}
	if c.Pipeline.DedupCapacity == 0 {
		c.Pipeline.DedupCapacity = def.Pipeline.DedupCapacity
	}
	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = def.Pipeline.Workers
	}
	if c.Pipeline.QueueSize == 0 {
		c.Pipeline.QueueSize = def.Pipeline.QueueSize
	}
	if c.Listener.MaxReconnects == 0 {
		c.Listener.MaxReconnects = def.Listener.MaxReconnects
	}
	if c.Listener.BackoffMS == 0 {
		c.Listener.BackoffMS = def.Listener.BackoffMS
	}
	if c.Listener.MaxBackoffMS == 0 {
		c.Listener.MaxBackoffMS = def.Listener.MaxBackoffMS
	}
	if c.Listener.HandshakeMS == 0 {
		c.Listener.HandshakeMS = def.Listener.HandshakeMS
	}
	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.ReadTimeoutMS == 0 {
		c.Server.ReadTimeoutMS = def.Server.ReadTimeoutMS
	}
	if c.Server.WriteTimeoutMS == 0 {
		c.Server.WriteTimeoutMS = def.Server.WriteTimeoutMS
	}
	if c.Server.ShutdownTimeoutMS == 0 {
		c.Server.ShutdownTimeoutMS = def.Server.ShutdownTimeoutMS
	}
	if c.Data.Backend == "" {
		c.Data.Backend = def.Data.Backend
	}
	if c.Data.DBPath == "" {
		c.Data.DBPath = def.Data.DBPath
	}
	if c.Redis.SnapshotSec == 0 {
		c.Redis.SnapshotSec = def.Redis.SnapshotSec
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Encoding == "" {
		c.Log.Encoding = def.Log.Encoding
	}
}

// applyEnv overlays the environment (and anything godotenv loaded into it).
func (c *Config) applyEnv() {
	setString(&c.Chain.WSURL, "BASE_WSS_URL")
	setString(&c.Chain.HTTPURL, "BASE_HTTP_URL")
	setString(&c.Wallet.PrivateKey, "PRIVATE_KEY")
	setString(&c.Contracts.Shares, "FT_ADDRESS")
	setString(&c.Contracts.Sniper, "SNIPER_ADDRESS")
	setString(&c.Sequencer.URL, "SEQUENCER_URL")
	setString(&c.Reputation.IdentityURL, "IDENTITY_URL")
	setString(&c.Reputation.FollowersURL, "FOLLOWERS_URL")
	setString(&c.Data.Backend, "DATA_BACKEND")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Encoding, "LOG_ENCODING")

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Server.Port = port
		}
	}

	// The HTTP endpoint defaults to the websocket host when only the latter is set.
	if c.Chain.HTTPURL == "" && c.Chain.WSURL != "" {
		c.Chain.HTTPURL = wsToHTTP(c.Chain.WSURL)
	}
}

// Validate checks that everything the pipeline cannot run without is present.
func (c *Config) Validate() error {
	var missing []string
	if c.Chain.WSURL == "" {
		missing = append(missing, "chain.ws_url (BASE_WSS_URL)")
	}
	if c.Chain.HTTPURL == "" {
		missing = append(missing, "chain.http_url (BASE_HTTP_URL)")
	}
	if c.Wallet.PrivateKey == "" {
		missing = append(missing, "PRIVATE_KEY")
	}
	if c.Contracts.Shares == "" {
		missing = append(missing, "contracts.shares (FT_ADDRESS)")
	}
	if c.Contracts.Sniper == "" {
		missing = append(missing, "contracts.sniper (SNIPER_ADDRESS)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing %s", strings.Join(missing, ", "))
	}

	switch c.Data.Backend {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown data backend %q", c.Data.Backend)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func wsToHTTP(url string) string {
	switch {
	case strings.HasPrefix(url, "wss://"):
		return "https://" + strings.TrimPrefix(url, "wss://")
	case strings.HasPrefix(url, "ws://"):
		return "http://" + strings.TrimPrefix(url, "ws://")
	}
	return url
}
