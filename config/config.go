package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tmmath "github.com/tendermint/ledgersync/libs/math"
)

const (
	// LogFormatPlain is a format for colored text
	LogFormatPlain = "plain"
	// LogFormatJSON is a format for json output
	LogFormatJSON = "json"

	// DefaultLogLevel defines a default log level as INFO.
	DefaultLogLevel = "info"

	// ModeValidator is for nodes that take part in consensus. State sync only
	// runs when consensus reports that it fell behind.
	ModeValidator = "validator"
	// ModeFollower is for nodes that only replicate the ledger.
	ModeFollower = "follower"

	// MaxChunkLimit is the largest number of transactions a chunk may carry.
	MaxChunkLimit = 5000
)

// NOTE: Most of the structs & relevant comments + the
// default configuration options were used to manually
// generate the config.toml. Please reflect any changes
// made here in the defaultConfigTemplate constant in
// config/toml.go
var (
	DefaultLedgerSyncDir = ".ledgersync"
	defaultConfigDir     = "config"
	defaultDataDir       = "data"

	defaultConfigFileName = "config.toml"
	defaultConfigFilePath = filepath.Join(defaultConfigDir, defaultConfigFileName)
)

// Config defines the top level configuration for a ledgersync node
type Config struct {
	// Top level options use an anonymous struct
	BaseConfig `mapstructure:",squash"`

	// Options for services
	StateSync       *StateSyncConfig       `mapstructure:"statesync"`
	Storage         *StorageConfig         `mapstructure:"storage"`
	Instrumentation *InstrumentationConfig `mapstructure:"instrumentation"`
}

// DefaultConfig returns a default configuration for a ledgersync node
func DefaultConfig() *Config {
	return &Config{
		BaseConfig:      DefaultBaseConfig(),
		StateSync:       DefaultStateSyncConfig(),
		Storage:         DefaultStorageConfig(),
		Instrumentation: DefaultInstrumentationConfig(),
	}
}

// TestConfig returns a configuration that can be used for testing
func TestConfig() *Config {
	return &Config{
		BaseConfig:      TestBaseConfig(),
		StateSync:       TestStateSyncConfig(),
		Storage:         TestStorageConfig(),
		Instrumentation: TestInstrumentationConfig(),
	}
}

// SetRoot sets the RootDir for all Config structs
func (cfg *Config) SetRoot(root string) *Config {
	cfg.BaseConfig.RootDir = root
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *Config) ValidateBasic() error {
	if err := cfg.BaseConfig.ValidateBasic(); err != nil {
		return err
	}
	if err := cfg.StateSync.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [statesync] section: %w", err)
	}
	if err := cfg.Storage.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [storage] section: %w", err)
	}
	if err := cfg.Instrumentation.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [instrumentation] section: %w", err)
	}
	return nil
}

//-----------------------------------------------------------------------------
// BaseConfig

// BaseConfig defines the base configuration for a ledgersync node
type BaseConfig struct {
	// The root directory for all data.
	// This should be set in viper so it can unmarshal into this struct
	RootDir string `mapstructure:"home"`

	// A custom human readable name for this node
	Moniker string `mapstructure:"moniker"`

	// Mode of Node: validator | follower
	// * validator: state sync is a fallback for consensus and only fetches
	//   history when consensus reports it fell behind
	// * follower: state sync pursues every newer ledger info it hears of
	Mode string `mapstructure:"mode"`

	// Database backend: goleveldb | memdb
	DBBackend string `mapstructure:"db_backend"`

	// Database directory
	DBPath string `mapstructure:"db_dir"`

	// Output level for logging
	LogLevel string `mapstructure:"log_level"`

	// Output format: 'plain' (colored text) or 'json'
	LogFormat string `mapstructure:"log_format"`
}

// DefaultBaseConfig returns a default base configuration for a ledgersync node
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		Moniker:   defaultMoniker,
		Mode:      ModeFollower,
		LogLevel:  DefaultLogLevel,
		LogFormat: LogFormatPlain,
		DBBackend: "goleveldb",
		DBPath:    defaultDataDir,
	}
}

// TestBaseConfig returns a base configuration for testing a ledgersync node
func TestBaseConfig() BaseConfig {
	cfg := DefaultBaseConfig()
	cfg.DBBackend = "memdb"
	return cfg
}

// DBDir returns the full path to the database directory
func (cfg BaseConfig) DBDir() string {
	return rootify(cfg.DBPath, cfg.RootDir)
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg BaseConfig) ValidateBasic() error {
	switch cfg.LogFormat {
	case LogFormatPlain, LogFormatJSON:
	default:
		return errors.New("unknown log_format (must be 'plain' or 'json')")
	}

	switch cfg.Mode {
	case ModeValidator, ModeFollower:
	case "":
		return errors.New("no mode has been set")
	default:
		return fmt.Errorf("unknown mode: %v", cfg.Mode)
	}

	if _, err := cfg.dbBackend(); err != nil {
		return err
	}
	return nil
}

//-----------------------------------------------------------------------------
// StateSyncConfig

// StateSyncConfig defines the configuration for chunk based state sync.
type StateSyncConfig struct {
	// Trusted starting point as "version:hash". Empty means the local ledger
	// is trusted as is.
	Waypoint string `mapstructure:"waypoint"`

	// Maximum number of transactions requested per chunk.
	ChunkLimit uint64 `mapstructure:"chunk_limit"`

	// Time to wait for a chunk response before trying another peer. Long-poll
	// requests wait this long on top of the long-poll timeout.
	ChunkRequestTimeout time.Duration `mapstructure:"chunk_request_timeout"`

	// How long a peer may hold a request open when it has nothing new. Only
	// followers issue long-poll requests. 0 disables long polling.
	LongPollTimeout time.Duration `mapstructure:"long_poll_timeout"`

	// Attempts at the same start version before waiting with backoff.
	MaxRetriesPerRange int `mapstructure:"max_retries_per_range"`

	// Backoff between attempts once MaxRetriesPerRange is exceeded, doubling
	// up to BackoffMax.
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	BackoffMax  time.Duration `mapstructure:"backoff_max"`

	// Consecutive failures after which a peer is put in cool-down.
	PeerFailureThreshold int `mapstructure:"peer_failure_threshold"`

	// How long a peer stays excluded from selection after failing
	// PeerFailureThreshold times in a row.
	PeerCooldown time.Duration `mapstructure:"peer_cooldown"`

	// Attempts at persisting a verified chunk after transient storage errors.
	ApplyRetries int `mapstructure:"apply_retries"`

	// Fraction of the total voting power that must be exceeded by the
	// signers of a ledger info.
	Quorum string `mapstructure:"quorum"`
}

// DefaultStateSyncConfig returns a default configuration for the state sync service
func DefaultStateSyncConfig() *StateSyncConfig {
	return &StateSyncConfig{
		ChunkLimit:           250,
		ChunkRequestTimeout:  10 * time.Second,
		LongPollTimeout:      30 * time.Second,
		MaxRetriesPerRange:   3,
		BackoffBase:          500 * time.Millisecond,
		BackoffMax:           30 * time.Second,
		PeerFailureThreshold: 3,
		PeerCooldown:         time.Minute,
		ApplyRetries:         5,
		Quorum:               "2/3",
	}
}

// TestStateSyncConfig returns a default configuration for the state sync service
func TestStateSyncConfig() *StateSyncConfig {
	cfg := DefaultStateSyncConfig()
	cfg.ChunkLimit = 50
	cfg.ChunkRequestTimeout = 200 * time.Millisecond
	cfg.LongPollTimeout = 0
	cfg.MaxRetriesPerRange = 2
	cfg.BackoffBase = 10 * time.Millisecond
	cfg.BackoffMax = 50 * time.Millisecond
	cfg.PeerFailureThreshold = 2
	cfg.PeerCooldown = time.Minute
	cfg.ApplyRetries = 3
	return cfg
}

// QuorumFraction parses Quorum.
func (cfg *StateSyncConfig) QuorumFraction() (tmmath.Fraction, error) {
	return tmmath.ParseFraction(cfg.Quorum)
}

// ValidateBasic performs basic validation.
func (cfg *StateSyncConfig) ValidateBasic() error {
	if cfg.ChunkLimit == 0 {
		return errors.New("chunk_limit must be positive")
	}
	if cfg.ChunkLimit > MaxChunkLimit {
		return fmt.Errorf("chunk_limit must not exceed %d", MaxChunkLimit)
	}
	if cfg.ChunkRequestTimeout <= 0 {
		return errors.New("chunk_request_timeout must be positive")
	}
	if cfg.LongPollTimeout < 0 {
		return errors.New("long_poll_timeout can't be negative")
	}
	if cfg.MaxRetriesPerRange <= 0 {
		return errors.New("max_retries_per_range must be positive")
	}
	if cfg.BackoffBase <= 0 {
		return errors.New("backoff_base must be positive")
	}
	if cfg.BackoffMax < cfg.BackoffBase {
		return errors.New("backoff_max must be at least backoff_base")
	}
	if cfg.PeerFailureThreshold <= 0 {
		return errors.New("peer_failure_threshold must be positive")
	}
	if cfg.PeerCooldown <= 0 {
		return errors.New("peer_cooldown must be positive")
	}
	if cfg.ApplyRetries < 0 {
		return errors.New("apply_retries can't be negative")
	}

	q, err := cfg.QuorumFraction()
	if err != nil {
		return fmt.Errorf("invalid quorum: %w", err)
	}
	if q.Numerator*2 < q.Denominator || q.Numerator >= q.Denominator {
		return fmt.Errorf("quorum must be within [1/2, 1), got %v", q)
	}
	return nil
}

//-----------------------------------------------------------------------------
// StorageConfig

// StorageConfig defines the configuration of the local ledger store.
type StorageConfig struct {
	// Size in MB of the cache for accumulator subtree hashes. 0 disables the
	// cache.
	CacheSizeMB int `mapstructure:"cache_size_mb"`
}

// DefaultStorageConfig returns a default configuration for the ledger store.
func DefaultStorageConfig() *StorageConfig {
	return &StorageConfig{CacheSizeMB: 64}
}

// TestStorageConfig returns a configuration for the ledger store in tests.
func TestStorageConfig() *StorageConfig {
	return &StorageConfig{CacheSizeMB: 1}
}

// ValidateBasic performs basic validation.
func (cfg *StorageConfig) ValidateBasic() error {
	if cfg.CacheSizeMB < 0 {
		return errors.New("cache_size_mb can't be negative")
	}
	return nil
}

//-----------------------------------------------------------------------------
// InstrumentationConfig

// InstrumentationConfig defines the configuration for metrics reporting.
type InstrumentationConfig struct {
	// When true, Prometheus metrics are served under /metrics on
	// PrometheusListenAddr.
	// Check out the documentation for the list of available metrics.
	Prometheus bool `mapstructure:"prometheus"`

	// Address to listen for Prometheus collector(s) connections.
	PrometheusListenAddr string `mapstructure:"prometheus_listen_addr"`

	// Instrumentation namespace.
	Namespace string `mapstructure:"namespace"`
}

// DefaultInstrumentationConfig returns a default configuration for metrics
// reporting.
func DefaultInstrumentationConfig() *InstrumentationConfig {
	return &InstrumentationConfig{
		Prometheus:           false,
		PrometheusListenAddr: ":26660",
		Namespace:            "ledgersync",
	}
}

// TestInstrumentationConfig returns a default configuration for metrics
// reporting.
func TestInstrumentationConfig() *InstrumentationConfig {
	return DefaultInstrumentationConfig()
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *InstrumentationConfig) ValidateBasic() error {
	if cfg.Prometheus && cfg.PrometheusListenAddr == "" {
		return errors.New("prometheus_listen_addr is required when prometheus is enabled")
	}
	return nil
}

//-----------------------------------------------------------------------------
// Utils

// helper function to make config creation independent of root dir
func rootify(path, root string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

//-----------------------------------------------------------------------------
// Moniker

var defaultMoniker = getDefaultMoniker()

// getDefaultMoniker returns a default moniker, which is the host name. If runtime
// fails to get the host name, "anonymous" will be returned.
func getDefaultMoniker() string {
	moniker, err := os.Hostname()
	if err != nil {
		moniker = "anonymous"
	}
	return moniker
}
