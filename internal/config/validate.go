package config

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Valid enum values for configuration fields.
var (
	ValidBackends = []string{"git", "go-git"}
)

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// validate checks every field that has a restricted value set.
func validate(cfg *Config) error {
	if cfg.Daemon.ServerName == "" {
		return fmt.Errorf("daemon.server_name must not be empty")
	}
	if cfg.Daemon.Channel == "" {
		return fmt.Errorf("daemon.channel must not be empty")
	}
	if err := ValidatePath(cfg.Daemon.Socket, "daemon.socket"); err != nil {
		return err
	}
	if err := ValidatePath(cfg.Daemon.LogFile, "daemon.log_file"); err != nil {
		return err
	}
	if cfg.Daemon.IOTimeout.Duration < 0 {
		return fmt.Errorf("daemon.io_timeout must not be negative, got %s", cfg.Daemon.IOTimeout)
	}
	if cfg.Client.ConnectTimeout.Duration <= 0 {
		return fmt.Errorf("client.connect_timeout must be positive, got %s", cfg.Client.ConnectTimeout)
	}
	if err := validateEnum(cfg.Status.Backend, "status.backend", ValidBackends); err != nil {
		return err
	}
	for i, name := range cfg.Watcher.Ignore {
		if name == "" || strings.ContainsRune(name, '/') {
			return fmt.Errorf("invalid watcher.ignore[%d] %q: must be a directory name", i, name)
		}
	}

	p := cfg.Prompt
	for field, value := range map[string]string{
		"before_color":                  p.BeforeColor,
		"before_index_color":            p.BeforeIndexColor,
		"delim_color":                   p.DelimColor,
		"after_color":                   p.AfterColor,
		"branch_color":                  p.BranchColor,
		"branch_ahead_color":            p.BranchAheadColor,
		"branch_behind_color":           p.BranchBehindColor,
		"branch_behind_and_ahead_color": p.BranchBehindAndAheadColor,
		"index_color":                   p.IndexColor,
		"working_color":                 p.WorkingColor,
	} {
		if err := ValidateColor(value); err != nil {
			return fmt.Errorf("invalid prompt.%s: %w", field, err)
		}
	}
	return nil
}

// ValidateColor accepts "", an ANSI color number or a hex color.
func ValidateColor(s string) error {
	if s == "" || hexColor.MatchString(s) {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n <= 255 {
		return nil
	}
	return fmt.Errorf("%q is neither an ANSI color number (0-255) nor a hex color", s)
}

// validateEnum checks that value (if non-empty) is one of the allowed values.
// Returns a formatted error mentioning the field name and allowed options.
func validateEnum(value, field string, allowed []string) error {
	if value == "" {
		return nil
	}
	if !slices.Contains(allowed, value) {
		return fmt.Errorf("invalid %s %q: must be %s", field, value, formatOptions(allowed))
	}
	return nil
}

// formatOptions formats a list of allowed values for error messages.
// E.g., ["a", "b", "c"] -> `"a", "b", or "c"`
func formatOptions(opts []string) string {
	quoted := make([]string, len(opts))
	for i, o := range opts {
		quoted[i] = fmt.Sprintf("%q", o)
	}
	if len(quoted) <= 2 {
		return strings.Join(quoted, " or ")
	}
	return strings.Join(quoted[:len(quoted)-1], ", ") + ", or " + quoted[len(quoted)-1]
}
