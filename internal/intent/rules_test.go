package intent

import "testing"

func TestRuleClassifierWantsVoiceReply(t *testing.T) {
	t.Parallel()
	classifier := NewRuleClassifier(DefaultPolicy())

	cases := []struct {
		name     string
		text     string
		language string
		want     bool
	}{
		{name: "spanish voice request", text: "Respóndeme con audio por favor", language: "es", want: true},
		{name: "spanish voice note", text: "mandame una NOTA DE VOZ", language: "es", want: true},
		{name: "english voice request", text: "please reply with audio", language: "en", want: true},
		{name: "portuguese voice request", text: "responda com áudio", language: "pt", want: true},
		{name: "plain spanish text", text: "¿qué hora es?", language: "es", want: false},
		{name: "plain english text", text: "what's the weather", language: "en", want: false},
		{name: "empty text", text: "", language: "es", want: false},
		{name: "unknown language falls back to default", text: "en audio", language: "de", want: true},
	}
	for _, tc := range cases {
		if got := classifier.WantsVoiceReply(tc.text, tc.language); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}
