package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BTreeMap/StreamAgent/internal/models"
	"gopkg.in/yaml.v3"
)

// Settings is the runtime configuration agents consult before every cycle.
// It is safe for concurrent use; Reload swaps values atomically.
type Settings struct {
	path string

	mu      sync.RWMutex
	mode    models.RunMode
	subject string
}

type settingsFile struct {
	Mode           string `yaml:"mode"`
	CurrentSubject string `yaml:"currentSubject"`
}

// NewSettings creates Settings backed by path and loads it once.
// A missing file is not an error: the agent runs in normal mode with no subject.
func NewSettings(path string) (*Settings, error) {
	s := &Settings{path: path, mode: models.RunModeNormal}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the settings file location.
func (s *Settings) Path() string { return s.path }

// Mode returns the configured run mode.
func (s *Settings) Mode() models.RunMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Subject returns the configured seed topic, possibly empty.
func (s *Settings) Subject() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subject
}

// Reload re-reads the settings file. On error the previous values are kept.
func (s *Settings) Reload() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("Settings.Reload: file not found, keeping current values", "path", s.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read settings %s: %w", s.path, err)
	}

	var f settingsFile
	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("parse settings %s: %w", s.path, err)
		}
	default:
		props := parseProperties(data)
		f.Mode = props["mode"]
		f.CurrentSubject = props["currentSubject"]
	}

	mode, err := models.ParseRunMode(f.Mode)
	if err != nil {
		return fmt.Errorf("settings %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.mode = mode
	s.subject = strings.TrimSpace(f.CurrentSubject)
	s.mu.Unlock()
	slog.Info("Settings.Reload: applied", "path", s.path, "mode", mode, "subject", f.CurrentSubject)
	return nil
}

// parseProperties reads key=value lines. Blank lines and lines starting
// with # are skipped; later keys win.
func parseProperties(data []byte) map[string]string {
	out := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(val)
	}
	return out
}
