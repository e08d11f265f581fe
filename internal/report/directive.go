package report

import (
	"regexp"
	"strings"
)

// A prompt may carry one side-channel block of display-only text, delimited
// by <user>...</user>. The block is shown alongside the finished report but
// is never sent to any model.
var directiveRe = regexp.MustCompile(`(?s)<user>(.*?)</user>`)

// ExtractDirective splits the raw prompt into the text sent to every target
// and the display-only rapport text. Only the first well-formed match is
// extracted; later occurrences and unterminated tags are left in place. A
// prompt without the tag passes through unchanged.
func ExtractDirective(raw string) (prompt, rapportText string) {
	m := directiveRe.FindStringSubmatchIndex(raw)
	if m == nil {
		return raw, ""
	}
	rapportText = strings.TrimSpace(raw[m[2]:m[3]])
	prompt = strings.TrimSpace(raw[:m[0]] + raw[m[1]:])
	return prompt, rapportText
}
