package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"webinar2ebook/internal/services"
)

// fenceRe matches a markdown code fence block with an optional language tag
// and captures the content between the fences.
var fenceRe = regexp.MustCompile("(?s)^(?:`{3}|~{3})[^\\n]*\\n(.*?)(?:`{3}|~{3})\\s*$")

// openFenceRe matches only an opening fence line. Used to strip orphaned
// opening fences from truncated responses.
var openFenceRe = regexp.MustCompile("^(?:`{3}|~{3})[^\\n]*\\n")

// invalidJSONEscapeRe matches a backslash followed by a character that is not
// a valid JSON string escape. Models sometimes emit regex fragments like \d+
// unescaped inside JSON strings.
var invalidJSONEscapeRe = regexp.MustCompile(`\\([^"\\/bfnrtu])`)

// StripFences removes the markdown code fences models sometimes wrap around
// JSON output. A truncated response with only an opening fence has that line
// stripped so the content can still be parsed.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	if loc := openFenceRe.FindStringIndex(s); loc != nil {
		return strings.TrimSpace(s[loc[1]:])
	}
	return s
}

// DecodeJSON strips fences and unmarshals the response into dst. When the
// first parse fails on invalid escape sequences, one sanitization pass
// double-escapes them and retries before giving up. Parse failures are tagged
// transient so the caller's retry policy can ask the model again.
func DecodeJSON(raw string, dst any) error {
	cleaned := StripFences(raw)
	if err := json.Unmarshal([]byte(cleaned), dst); err != nil {
		fixed := invalidJSONEscapeRe.ReplaceAllString(cleaned, `\\$1`)
		if err2 := json.Unmarshal([]byte(fixed), dst); err2 != nil {
			return services.Wrap(services.ErrTransient, "llm", "decode", "response is not valid JSON", err)
		}
	}
	return nil
}
