package compose

import (
	"regexp"
)

// The bot mirrors the user's language. Detection is script-based: cheap and
// offline, good enough to pick a reply-language instruction. Latin-script
// languages all fall through to the prompt's default language.

type script struct {
	name    string
	pattern *regexp.Regexp
}

// Kana is listed before Han so Japanese text with Kanji is not read as Chinese.
var scripts = []script{
	{"Hebrew (עברית)", regexp.MustCompile(`[\x{0590}-\x{05FF}]`)},
	{"Arabic (العربية)", regexp.MustCompile(`[\x{0600}-\x{06FF}]`)},
	{"Russian (Русский)", regexp.MustCompile(`[\x{0400}-\x{04FF}]`)},
	{"Korean (한국어)", regexp.MustCompile(`[\x{AC00}-\x{D7AF}]`)},
	{"Japanese (日本語)", regexp.MustCompile(`[\x{3040}-\x{309F}\x{30A0}-\x{30FF}]`)},
	{"Chinese (中文)", regexp.MustCompile(`[\x{4E00}-\x{9FFF}]`)},
}

// Minimum share of runes in a script before it decides the reply language.
const scriptThreshold = 0.1

// languageInstruction returns a reply-language directive when the text is
// dominated by a non-Latin script, or "" to keep the default.
func languageInstruction(text string) string {
	total := len([]rune(text))
	if total == 0 {
		return ""
	}
	for _, s := range scripts {
		matched := len(s.pattern.FindAllString(text, -1))
		if float64(matched)/float64(total) >= scriptThreshold {
			return "Reply in " + s.name + "."
		}
	}
	return ""
}
