package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BTreeMap/StreamAgent/internal/models"
	"gopkg.in/yaml.v3"
)

// ErrCharacterName is returned for a character file without a name.
var ErrCharacterName = errors.New("character has no name")

// LoadCharacter reads one character file. YAML is a superset of JSON, so
// both .yaml and .json files decode the same way.
func LoadCharacter(path string) (models.Character, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Character{}, fmt.Errorf("read character %s: %w", path, err)
	}
	var c models.Character
	if err := yaml.Unmarshal(data, &c); err != nil {
		return models.Character{}, fmt.Errorf("parse character %s: %w", path, err)
	}
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return models.Character{}, fmt.Errorf("%s: %w", path, ErrCharacterName)
	}
	return c, nil
}

// LoadCharacters loads every path, or the default character when none are given.
// Two characters resolving to the same agent id are rejected.
func LoadCharacters(paths []string) ([]models.Character, error) {
	if len(paths) == 0 {
		slog.Info("No character files configured, using default character")
		return []models.Character{models.DefaultCharacter()}, nil
	}
	seen := make(map[string]string, len(paths))
	out := make([]models.Character, 0, len(paths))
	for _, p := range paths {
		c, err := LoadCharacter(p)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[c.AgentID()]; dup {
			return nil, fmt.Errorf("characters %s and %s share agent id %s", prev, p, c.AgentID())
		}
		seen[c.AgentID()] = p
		slog.Debug("LoadCharacters: loaded", "path", p, "name", c.Name, "agent_id", c.AgentID())
		out = append(out, c)
	}
	return out, nil
}
