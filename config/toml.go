package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/creachadair/atomicfile"
)

// defaultDirPerm is the default permissions used when creating directories.
const defaultDirPerm = 0700

var configTemplate *template.Template

func init() {
	var err error
	tmpl := template.New("configFileTemplate")
	if configTemplate, err = tmpl.Parse(defaultConfigTemplate); err != nil {
		panic(err)
	}
}

/****** these are for production settings ***********/

// EnsureRoot creates the root, config, and data directories if they don't exist,
// and writes the default config file when there is none.
func EnsureRoot(rootDir string) error {
	for _, dir := range []string{
		rootDir,
		filepath.Join(rootDir, defaultConfigDir),
		filepath.Join(rootDir, defaultDataDir),
	} {
		if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
			return fmt.Errorf("could not create directory %q: %w", dir, err)
		}
	}

	configFilePath := filepath.Join(rootDir, defaultConfigFilePath)
	if _, err := os.Stat(configFilePath); os.IsNotExist(err) {
		return WriteConfigFile(rootDir, DefaultConfig())
	}
	return nil
}

// WriteConfigFile renders config using the template and writes it to
// configFilePath. This function is called by cmd/ledgersync init.
func WriteConfigFile(rootDir string, config *Config) error {
	return config.WriteToTemplate(filepath.Join(rootDir, defaultConfigFilePath))
}

// WriteToTemplate writes the config to the exact file specified by
// the path, in the default toml template and does not mangle the path
// or filename at all. The file is replaced atomically.
func (cfg *Config) WriteToTemplate(path string) error {
	var buffer bytes.Buffer

	if err := configTemplate.Execute(&buffer, cfg); err != nil {
		return err
	}

	_, err := atomicfile.WriteAll(path, &buffer, 0644)
	return err
}

// Note: any changes to the comments/variables/mapstructure
// must be reflected in the appropriate struct in config/config.go
const defaultConfigTemplate = `# This is a TOML config file.
# For more information, see https://github.com/toml-lang/toml

# NOTE: Any path below can be absolute (e.g. "/var/myawesomeapp/data") or
# relative to the home directory (e.g. "data"). The home directory is
# "$HOME/.ledgersync" by default, but could be changed via $LSHOME env variable
# or --home cmd flag.

#######################################################################
###                   Main Base Config Options                      ###
#######################################################################

# A custom human readable name for this node
moniker = "{{ .BaseConfig.Moniker }}"

# Mode of Node: validator | follower
# * validator: state sync only fetches history when consensus reports it
#   fell behind
# * follower: state sync pursues every newer ledger info it hears of
mode = "{{ .BaseConfig.Mode }}"

# Database backend: goleveldb | memdb
db_backend = "{{ .BaseConfig.DBBackend }}"

# Database directory
db_dir = "{{ .BaseConfig.DBPath }}"

# Output level for logging, including package level options
log_level = "{{ .BaseConfig.LogLevel }}"

# Output format: 'plain' (colored text) or 'json'
log_format = "{{ .BaseConfig.LogFormat }}"

#######################################################################
###                 State Sync Configuration Options                ###
#######################################################################
[statesync]

# Trusted starting point as "version:hash". Leave empty to trust the local
# ledger as is.
waypoint = "{{ .StateSync.Waypoint }}"

# Maximum number of transactions requested per chunk (at most 5000).
chunk_limit = {{ .StateSync.ChunkLimit }}

# Time to wait for a chunk response before trying another peer. Long-poll
# requests wait this long on top of long_poll_timeout.
chunk_request_timeout = "{{ .StateSync.ChunkRequestTimeout }}"

# How long a peer may hold a request open when it has nothing new. Only
# followers issue long-poll requests. "0s" disables long polling.
long_poll_timeout = "{{ .StateSync.LongPollTimeout }}"

# Attempts at the same start version before waiting with backoff.
max_retries_per_range = {{ .StateSync.MaxRetriesPerRange }}

# Exponential backoff between attempts once max_retries_per_range is
# exceeded.
backoff_base = "{{ .StateSync.BackoffBase }}"
backoff_max = "{{ .StateSync.BackoffMax }}"

# Consecutive failures after which a peer is put in cool-down, and how long
# the cool-down lasts.
peer_failure_threshold = {{ .StateSync.PeerFailureThreshold }}
peer_cooldown = "{{ .StateSync.PeerCooldown }}"

# Attempts at persisting a verified chunk after transient storage errors.
apply_retries = {{ .StateSync.ApplyRetries }}

# Fraction of the total voting power the signers of a ledger info must exceed.
quorum = "{{ .StateSync.Quorum }}"

#######################################################################
###                   Storage Configuration Options                 ###
#######################################################################
[storage]

# Size in MB of the accumulator subtree hash cache. 0 disables the cache.
cache_size_mb = {{ .Storage.CacheSizeMB }}

#######################################################################
###       Instrumentation Configuration Options                     ###
#######################################################################
[instrumentation]

# When true, Prometheus metrics are served under /metrics on
# PrometheusListenAddr.
# Check out the documentation for the list of available metrics.
prometheus = {{ .Instrumentation.Prometheus }}

# Address to listen for Prometheus collector(s) connections
prometheus_listen_addr = "{{ .Instrumentation.PrometheusListenAddr }}"

# Instrumentation namespace
namespace = "{{ .Instrumentation.Namespace }}"
`
