package report

import "testing"

func TestExtractDirective(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantPrompt  string
		wantRapport string
	}{
		{
			name:       "no tag passes through",
			raw:        "Explain quantum computing",
			wantPrompt: "Explain quantum computing",
		},
		{
			name:        "tag extracted and stripped",
			raw:         "Explain X\n<user>Meeting notes</user>",
			wantPrompt:  "Explain X",
			wantRapport: "Meeting notes",
		},
		{
			name:        "tag in the middle",
			raw:         "Before <user>aside</user> after",
			wantPrompt:  "Before  after",
			wantRapport: "aside",
		},
		{
			name:        "only first match extracted",
			raw:         "<user>first</user> mid <user>second</user>",
			wantPrompt:  "mid <user>second</user>",
			wantRapport: "first",
		},
		{
			name:       "unterminated tag left in place",
			raw:        "Explain X <user>dangling",
			wantPrompt: "Explain X <user>dangling",
		},
		{
			name:        "multiline content",
			raw:         "Q\n<user>line one\nline two</user>",
			wantPrompt:  "Q",
			wantRapport: "line one\nline two",
		},
		{
			name:        "empty tag",
			raw:         "Q <user></user>",
			wantPrompt:  "Q",
			wantRapport: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt, rapport := ExtractDirective(tt.raw)
			if prompt != tt.wantPrompt {
				t.Errorf("prompt = %q, want %q", prompt, tt.wantPrompt)
			}
			if rapport != tt.wantRapport {
				t.Errorf("rapport = %q, want %q", rapport, tt.wantRapport)
			}
		})
	}
}
