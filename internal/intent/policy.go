package intent

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Policy declares, per language, which phrases in a message mean the
// sender wants the answer spoken back instead of typed.
type Policy struct {
	// Default language used when a rule set for the conversation
	// language does not exist.
	DefaultLanguage string              `yaml:"default_language"`
	VoiceRequest    map[string][]string `yaml:"voice_request"`
}

// DefaultPolicy covers the languages the assistant ships with.
func DefaultPolicy() Policy {
	return Policy{
		DefaultLanguage: "es",
		VoiceRequest: map[string][]string{
			"es": {
				"respondeme con audio",
				"respóndeme con audio",
				"contesta con audio",
				"mandame un audio",
				"mándame un audio",
				"en audio",
				"nota de voz",
				"mensaje de voz",
			},
			"en": {
				"reply with audio",
				"reply with a voice",
				"answer with audio",
				"send me a voice note",
				"voice message",
				"in audio",
			},
			"pt": {
				"responda com áudio",
				"responda em áudio",
				"manda um áudio",
				"mensagem de voz",
			},
		},
	}
}

// LoadPolicy reads a policy file. A missing path returns the built-in
// default policy.
func LoadPolicy(path string) (Policy, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPolicy(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultPolicy(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read intent policy: %w", err)
	}
	var p Policy
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Policy{}, fmt.Errorf("parse intent policy: %w", err)
	}
	if p.DefaultLanguage == "" {
		p.DefaultLanguage = "es"
	}
	if len(p.VoiceRequest) == 0 {
		p.VoiceRequest = DefaultPolicy().VoiceRequest
	}
	return p, nil
}
