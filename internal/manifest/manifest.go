// Package manifest describes the named collections the shelf CLI
// operates on.
package manifest

import (
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Manifest is the CLI configuration: a log level plus one entry per
// named collection.
type Manifest struct {
	LogLevel    string                `yaml:"log_level"`
	Collections map[string]Collection `yaml:"collections"`
}

// Collection describes one directory of records.
type Collection struct {
	Path      string `yaml:"path"`
	Format    string `yaml:"format"`
	BodyField string `yaml:"body_field"`
	Pattern   string `yaml:"pattern"`
	Recursive bool   `yaml:"recursive"`
	Strict    bool   `yaml:"strict"`
}

// Validate checks the manifest: at least one collection, a parseable
// log level, and a path on every entry.
func (m *Manifest) Validate() error {
	if err := validation.ValidateStruct(m,
		validation.Field(&m.Collections, validation.Required),
	); err != nil {
		return err
	}
	if _, err := m.Level(); err != nil {
		return err
	}
	for name, c := range m.Collections {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("collection %q: %w", name, err)
		}
	}
	return nil
}

// Validate checks one collection entry. Format is optional: the
// library infers it from the directory contents when unset.
func (c Collection) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Path, validation.Required),
	)
}

// Level parses log_level. Empty means info.
func (m *Manifest) Level() (slog.Level, error) {
	switch strings.ToLower(m.LogLevel) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log_level %q", m.LogLevel)
}
