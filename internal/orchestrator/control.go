package orchestrator

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/zezere/email-bot/internal/database"
)

// Action is one recognized control directive: the phrase that triggers it,
// the lifecycle state it applies, and the confirmation sent back.
type Action struct {
	Phrase     string
	Status     database.UserStatus
	AckSubject string
	AckBody    string
}

// ControlTable matches inbound bodies against recognized control phrases.
// Which phrases map to which transition is configuration; the dispatch
// contract here is fixed.
type ControlTable struct {
	actions []Action
}

// NewControlTable builds the table from per-transition phrase lists. Phrases
// are normalized to lower case; empty entries are dropped.
func NewControlTable(unsubscribe, pause, resume []string) ControlTable {
	var table ControlTable
	add := func(phrases []string, status database.UserStatus, subject, body string) {
		for _, phrase := range phrases {
			phrase = strings.ToLower(strings.TrimSpace(phrase))
			if phrase == "" {
				continue
			}
			table.actions = append(table.actions, Action{
				Phrase:     phrase,
				Status:     status,
				AckSubject: subject,
				AckBody:    body,
			})
		}
	}
	add(unsubscribe, database.UserUnsubscribed,
		"You have been unsubscribed",
		"You will not receive further messages from your accountability partner. Reply \"resume\" if you change your mind.")
	add(pause, database.UserPaused,
		"Your check-ins are paused",
		"No more check-ins for now. Reply \"resume\" whenever you want to pick your goal back up.")
	add(resume, database.UserActive,
		"Welcome back",
		"Your accountability check-ins are active again.")
	return table
}

// Match reports the directive triggered by the body, if any. Detection is a
// case-insensitive exact or prefix match on the trimmed body; a prefix only
// counts when followed by a non-alphanumeric rune, so "pause" matches
// "Pause, please" but not "paused my project".
func (t ControlTable) Match(body string) (Action, bool) {
	text := strings.ToLower(strings.TrimSpace(body))
	for _, action := range t.actions {
		if text == action.Phrase {
			return action, true
		}
		if strings.HasPrefix(text, action.Phrase) {
			next, _ := utf8.DecodeRuneInString(text[len(action.Phrase):])
			if !unicode.IsLetter(next) && !unicode.IsDigit(next) {
				return action, true
			}
		}
	}
	return Action{}, false
}
