package intent

import "strings"

// Classifier decides whether a message asks for a spoken reply.
type Classifier interface {
	WantsVoiceReply(text, language string) bool
}

// RuleClassifier matches messages against the phrase lists of a Policy.
// Matching is case insensitive on the whole message text.
type RuleClassifier struct {
	policy Policy
}

func NewRuleClassifier(policy Policy) *RuleClassifier {
	return &RuleClassifier{policy: policy}
}

func (c *RuleClassifier) WantsVoiceReply(text, language string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return false
	}
	phrases, ok := c.policy.VoiceRequest[language]
	if !ok {
		phrases = c.policy.VoiceRequest[c.policy.DefaultLanguage]
	}
	for _, phrase := range phrases {
		if phrase == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}
