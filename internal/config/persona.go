package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Persona describes the simulated counterpart: its system prompt and the
// voice/sampling settings the conversation should use. Loaded from an
// optional YAML file; zero-valued fields leave the config untouched.
type Persona struct {
	Prompt         string  `yaml:"prompt"`
	Voice          string  `yaml:"voice"`
	Language       string  `yaml:"language"`
	Temperature    float64 `yaml:"temperature"`
	MaxReplyTokens int     `yaml:"max_reply_tokens"`
	Speed          float64 `yaml:"speed"`
	Apology        string  `yaml:"apology"`
}

// ApplyPersonaFile merges the persona file named by cfg.PersonaFile into cfg.
// A missing setting keeps the env/default value. No file configured is not
// an error.
func ApplyPersonaFile(cfg *Config) error {
	if cfg.PersonaFile == "" {
		return nil
	}

	data, err := os.ReadFile(cfg.PersonaFile)
	if err != nil {
		return fmt.Errorf("read persona file: %w", err)
	}

	var p Persona
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parse persona file: %w", err)
	}

	if p.Prompt != "" {
		cfg.Persona = p.Prompt
	}
	if p.Voice != "" {
		cfg.Voice = p.Voice
	}
	if p.Language != "" {
		cfg.Language = p.Language
	}
	if p.Temperature > 0 {
		cfg.Temperature = p.Temperature
	}
	if p.MaxReplyTokens > 0 {
		cfg.MaxReplyTokens = p.MaxReplyTokens
	}
	if p.Speed > 0 {
		cfg.SpeechSpeed = p.Speed
	}
	if p.Apology != "" {
		cfg.ApologyText = p.Apology
	}
	return nil
}
