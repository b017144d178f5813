package models

import (
	"regexp"
	"strings"
)

// CharacterSettings holds per-character options.
type CharacterSettings struct {
	InChat          bool           `yaml:"inChat" json:"inChat"`
	TwitterUsername string         `yaml:"twitterUsername" json:"twitterUsername"`
	SceneConfigs    []any          `yaml:"sceneConfigs" json:"sceneConfigs"`
	Creator         map[string]any `yaml:"creator" json:"creator"`
}

// Character describes the persona an agent streams as.
type Character struct {
	Name       string            `yaml:"name" json:"name"`
	ID         string            `yaml:"id" json:"id"`
	Bio        []string          `yaml:"bio" json:"bio"`
	Lore       []string          `yaml:"lore" json:"lore"`
	Adjectives []string          `yaml:"adjectives" json:"adjectives"`
	Animations []string          `yaml:"animations" json:"animations"`
	Settings   CharacterSettings `yaml:"settings" json:"settings"`
}

// AgentID returns the configured id or a stable id derived from the name.
func (c Character) AgentID() string {
	if c.ID != "" {
		return c.ID
	}
	return StableID(c.Name)
}

// StreamRoomID is the memory room used for a character's stream chat.
func (c Character) StreamRoomID() string {
	return StableID("borp-stream-" + c.AgentID())
}

// AnimationCatalog returns the character's animations, or the default catalog.
func (c Character) AnimationCatalog() []string {
	if len(c.Animations) > 0 {
		return c.Animations
	}
	return DefaultAnimations()
}

var nonWord = regexp.MustCompile(`[^\w\s]`)

// Identifier is the lowercase, underscore-joined form of the name.
func (c Character) Identifier() string {
	s := nonWord.ReplaceAllString(strings.ToLower(c.Name), "")
	return strings.Join(strings.Fields(s), "_")
}

// DefaultCharacter is used when no character file is configured.
func DefaultCharacter() Character {
	return Character{
		Name: "Borp",
		Bio: []string{
			"An AI streamer who lives inside a 3D scene and talks with chat.",
			"Curious about everything viewers bring up.",
		},
		Lore: []string{
			"Once spent a whole stream trying to learn to juggle.",
			"Keeps a running list of the best questions chat has asked.",
		},
		Adjectives: []string{"curious", "playful", "warm"},
	}
}
