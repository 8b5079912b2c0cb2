package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that reads and writes Go duration strings.
type Duration struct {
	time.Duration
}

// UnmarshalText parses strings like "2s".
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText renders the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DaemonConfig holds daemon settings
type DaemonConfig struct {
	ServerName string   `toml:"server_name"`
	Channel    string   `toml:"channel"`
	Socket     string   `toml:"socket"`     // overrides the derived socket path
	IOTimeout  Duration `toml:"io_timeout"` // bound on one exchange
	LogFile    string   `toml:"log_file"`   // "-" logs to stderr
}

// ClientConfig holds client settings
type ClientConfig struct {
	ConnectTimeout Duration `toml:"connect_timeout"`
}

// StatusConfig holds status computation settings
type StatusConfig struct {
	Backend string `toml:"backend"` // "git" or "go-git"
}

// WatcherConfig holds filesystem watcher settings
type WatcherConfig struct {
	Ignore []string `toml:"ignore"` // directory base names
}

// PromptConfig holds the prompt fragment settings. Colors are ANSI color
// numbers ("0"-"255") or hex values ("#ff8800").
type PromptConfig struct {
	EnablePromptStatus bool `toml:"enable_prompt_status"`
	EnableFileStatus   bool `toml:"enable_file_status"`
	ShowStatusWhenZero bool `toml:"show_status_when_zero"`

	BeforeText      string `toml:"before_text"`
	BeforeIndexText string `toml:"before_index_text"`
	DelimText       string `toml:"delim_text"`
	AfterText       string `toml:"after_text"`

	BeforeColor               string `toml:"before_color"`
	BeforeIndexColor          string `toml:"before_index_color"`
	DelimColor                string `toml:"delim_color"`
	AfterColor                string `toml:"after_color"`
	BranchColor               string `toml:"branch_color"`
	BranchAheadColor          string `toml:"branch_ahead_color"`
	BranchBehindColor         string `toml:"branch_behind_color"`
	BranchBehindAndAheadColor string `toml:"branch_behind_and_ahead_color"`
	IndexColor                string `toml:"index_color"`
	WorkingColor              string `toml:"working_color"`
}

// Config holds the promptgit configuration
type Config struct {
	Daemon  DaemonConfig  `toml:"daemon"`
	Client  ClientConfig  `toml:"client"`
	Status  StatusConfig  `toml:"status"`
	Watcher WatcherConfig `toml:"watcher"`
	Prompt  PromptConfig  `toml:"prompt"`

	// PromptFromFile is true when the config file has a [prompt] table.
	PromptFromFile bool `toml:"-"`
}

// Defaults for settings that must never be empty.
const (
	DefaultServerName     = "promptgit"
	DefaultChannel        = "status"
	DefaultBackend        = "git"
	DefaultIOTimeout      = 5 * time.Second
	DefaultConnectTimeout = 2 * time.Second
)

// DefaultPrompt returns the built-in prompt settings.
func DefaultPrompt() PromptConfig {
	return PromptConfig{
		EnablePromptStatus: true,
		EnableFileStatus:   true,
		ShowStatusWhenZero: false,

		BeforeText:      " [",
		BeforeIndexText: "",
		DelimText:       " |",
		AfterText:       "]",

		BeforeColor:               "11",
		BeforeIndexColor:          "11",
		DelimColor:                "11",
		AfterColor:                "11",
		BranchColor:               "14",
		BranchAheadColor:          "10",
		BranchBehindColor:         "9",
		BranchBehindAndAheadColor: "11",
		IndexColor:                "2",
		WorkingColor:              "1",
	}
}

// Default returns the default configuration
func Default() Config {
	return Config{
		Daemon: DaemonConfig{
			ServerName: DefaultServerName,
			Channel:    DefaultChannel,
			IOTimeout:  Duration{DefaultIOTimeout},
			LogFile:    "~/.local/state/promptgit/daemon.log",
		},
		Client: ClientConfig{
			ConnectTimeout: Duration{DefaultConnectTimeout},
		},
		Status: StatusConfig{
			Backend: DefaultBackend,
		},
		Watcher: WatcherConfig{
			Ignore: []string{"node_modules"},
		},
		Prompt: DefaultPrompt(),
	}
}

// ValidatePath checks that the path is absolute or starts with ~
// Returns error if path is relative (like "." or "..")
func ValidatePath(path, fieldName string) error {
	if path == "" || path == "-" {
		return nil
	}
	if path[0] == '~' {
		return nil
	}
	if !filepath.IsAbs(path) {
		return fmt.Errorf("%s must be absolute or start with ~, got: %q", fieldName, path)
	}
	return nil
}

// expandPath expands ~ to the user's home directory
func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand ~: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	if path == "~" {
		return os.UserHomeDir()
	}
	return path, nil
}

// Path returns the path to the config file
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "promptgit", "config.toml"), nil
}

// Load reads config from ~/.config/promptgit/config.toml
// Returns Default() if file doesn't exist (no error)
// Returns error only if file exists but is invalid
func Load() (Config, error) {
	path, err := Path()
	if err != nil {
		cfg := Default()
		if err := finish(&cfg); err != nil {
			return fallback(), err
		}
		return cfg, nil
	}
	return LoadFile(path)
}

// LoadFile reads config from path. A missing file yields the defaults.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fallback(), fmt.Errorf("failed to read config file: %w", err)
	default:
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return fallback(), fmt.Errorf("failed to parse config file: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return fallback(), fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
		}
		cfg.PromptFromFile = md.IsDefined("prompt")
	}

	if err := finish(&cfg); err != nil {
		return fallback(), err
	}
	return cfg, nil
}

// fallback returns the defaults with paths expanded, for use after a
// config error.
func fallback() Config {
	cfg := Default()
	if p, err := expandPath(cfg.Daemon.LogFile); err == nil {
		cfg.Daemon.LogFile = p
	} else {
		cfg.Daemon.LogFile = "-"
	}
	return cfg
}

// finish applies env overrides, validates and expands paths.
func finish(cfg *Config) error {
	if err := applyEnvOverrides(cfg); err != nil {
		return err
	}
	if err := validate(cfg); err != nil {
		return err
	}

	for _, p := range []*string{&cfg.Daemon.Socket, &cfg.Daemon.LogFile} {
		expanded, err := expandPath(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// applyEnvOverrides applies PROMPTGIT_* environment variables.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PROMPTGIT_SOCKET"); v != "" {
		cfg.Daemon.Socket = v
	}
	if v := os.Getenv("PROMPTGIT_BACKEND"); v != "" {
		cfg.Status.Backend = v
	}
	return nil
}

// configKey is the context key for Config
type configKey struct{}

// WithConfig returns a new context with the config stored in it.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext returns the config from context.
// Returns nil if no config is stored.
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey{}).(*Config); ok {
		return cfg
	}
	return nil
}

// workDirKey is the context key for the working directory
type workDirKey struct{}

// WithWorkDir returns a new context carrying dir as the working directory.
func WithWorkDir(ctx context.Context, dir string) context.Context {
	return context.WithValue(ctx, workDirKey{}, dir)
}

// WorkDirFromContext returns the working directory from context, falling
// back to os.Getwd.
func WorkDirFromContext(ctx context.Context) string {
	if dir, ok := ctx.Value(workDirKey{}).(string); ok && dir != "" {
		return dir
	}
	wd, _ := os.Getwd()
	return wd
}

const defaultConfig = `# promptgit configuration

[daemon]
# Channel identity shared by the daemon and all clients. Processes using
# different identities never see each other.
server_name = "promptgit"
channel = "status"

# Explicit socket path. When empty, a per-user path under $XDG_RUNTIME_DIR
# (or the temp dir) is derived from the channel identity.
# Can also be set with PROMPTGIT_SOCKET.
# socket = "~/.cache/promptgit.sock"

# Upper bound for one request on the daemon side
io_timeout = "5s"

# Daemon log destination; "-" logs to stderr
log_file = "~/.local/state/promptgit/daemon.log"

[client]
# How long a client waits for the daemon before falling back to an empty result
connect_timeout = "2s"

[status]
# How status is computed: "git" runs the git binary, "go-git" reads the
# repository in process. Can also be set with PROMPTGIT_BACKEND.
backend = "git"

[watcher]
# Directory names that are never watched for changes
ignore = ["node_modules"]

# Prompt fragment printed by "promptgit status". Colors are ANSI numbers
# ("0"-"255") or hex values ("#ff8800").
#
# [prompt]
# enable_prompt_status = true
# enable_file_status = true
# show_status_when_zero = false
# before_text = " ["
# before_index_text = ""
# delim_text = " |"
# after_text = "]"
# before_color = "11"
# before_index_color = "11"
# delim_color = "11"
# after_color = "11"
# branch_color = "14"
# branch_ahead_color = "10"
# branch_behind_color = "9"
# branch_behind_and_ahead_color = "11"
# index_color = "2"
# working_color = "1"
`

// DefaultConfig returns the commented default config file.
func DefaultConfig() string {
	return defaultConfig
}

// Init creates a default config file at ~/.config/promptgit/config.toml
// If force is true, overwrites existing file
// Returns the path to the created file
func Init(force bool) (string, error) {
	path, err := Path()
	if err != nil {
		return "", err
	}
	return path, InitFile(path, force)
}

// InitFile writes the default config to path.
func InitFile(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return errors.New("config file already exists: " + path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(defaultConfig), 0644)
}
