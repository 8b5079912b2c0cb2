// Package prompt renders a repository status as a colored shell prompt
// fragment.
//
// Rendering never fails: a missing snapshot renders nothing and unknown
// colors render uncolored text.
package prompt

import "github.com/raphi011/promptgit/internal/config"

// SettingsSource supplies the prompt settings used by a Writer.
type SettingsSource interface {
	Settings() config.PromptConfig
}

// DefaultSettings supplies the built-in settings.
type DefaultSettings struct{}

// Settings returns config.DefaultPrompt().
func (DefaultSettings) Settings() config.PromptConfig {
	return config.DefaultPrompt()
}

// HostSettings supplies settings read from the user's config file.
type HostSettings struct {
	Prompt config.PromptConfig
}

// Settings returns the configured settings.
func (h HostSettings) Settings() config.PromptConfig {
	return h.Prompt
}

// SourceFor picks HostSettings when the config file carries a [prompt]
// table and DefaultSettings otherwise.
func SourceFor(cfg *config.Config) SettingsSource {
	if cfg != nil && cfg.PromptFromFile {
		return HostSettings{Prompt: cfg.Prompt}
	}
	return DefaultSettings{}
}
