// Package settings persists the generation settings between sessions.
package settings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"tma-generator/models"
)

// Store loads and saves settings. Load never fails on a missing or unreadable
// document; it falls back to models.DefaultSettings.
type Store interface {
	Load(ctx context.Context) (models.Settings, error)
	Save(ctx context.Context, s models.Settings) error
}

// FileStore keeps settings as a flat YAML key-value document.
type FileStore struct {
	fs   afero.Fs
	path string
	log  logrus.FieldLogger
}

// NewFileStore returns a store backed by path on fs.
func NewFileStore(fs afero.Fs, path string, log logrus.FieldLogger) *FileStore {
	return &FileStore{fs: fs, path: path, log: log}
}

// Path is the location of the settings document.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the document and merges its keys over the defaults.
func (s *FileStore) Load(_ context.Context) (models.Settings, error) {
	defaults := models.DefaultSettings()
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.WithError(err).Warn("Could not load settings file, using defaults")
		}
		return defaults, nil
	}
	var values map[string]string
	if err := yaml.Unmarshal(data, &values); err != nil {
		s.log.WithError(err).Warn("Could not parse settings file, using defaults")
		return defaults, nil
	}
	return models.MergeSettings(defaults, values), nil
}

// Save writes every key of settings to the document.
func (s *FileStore) Save(_ context.Context, settings models.Settings) error {
	data, err := yaml.Marshal(settings.ToMap())
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create settings directory: %w", err)
		}
	}
	if err := afero.WriteFile(s.fs, s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings file %s: %w", s.path, err)
	}
	return nil
}
