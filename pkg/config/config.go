// Package config loads taskcal settings from the persisted config file,
// the environment and an optional .env file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	xdgAppName = "taskcal"
	configFile = "config.json"

	DefaultCalendar = "primary"
	DefaultKeyword  = "meeting"
)

// File holds the defaults written by `taskcal set-calendar`.
type File struct {
	Calendar string `json:"calendar,omitempty"`
	TaskList string `json:"taskList,omitempty"`
	Keyword  string `json:"keyword,omitempty"`
}

// Dir returns ~/.config/taskcal, or TASKCAL_CONFIG_DIR when set.
func Dir() (string, error) {
	if dir := os.Getenv(namespace + "_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName), nil
}

func FilePath(dir string) string {
	return filepath.Join(dir, configFile)
}

// LoadFile reads the config file. A missing file yields empty defaults.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, err
	}
	defer f.Close()

	var cfg File
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

func SaveFile(path string, cfg *File) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open config file for writing: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(cfg)
}

// Merge overlays the non-empty fields of other onto f.
func (f *File) Merge(other File) {
	if other.Calendar != "" {
		f.Calendar = other.Calendar
	}
	if other.TaskList != "" {
		f.TaskList = other.TaskList
	}
	if other.Keyword != "" {
		f.Keyword = other.Keyword
	}
}
