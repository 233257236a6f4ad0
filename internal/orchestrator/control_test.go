package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zezere/email-bot/internal/database"
)

func TestControlTable_Match(t *testing.T) {
	table := NewControlTable(
		[]string{"unsubscribe", "stop"},
		[]string{"pause"},
		[]string{"resume", "start again"},
	)

	tests := []struct {
		name       string
		body       string
		wantStatus database.UserStatus
		wantMatch  bool
	}{
		{name: "exact phrase", body: "unsubscribe", wantStatus: database.UserUnsubscribed, wantMatch: true},
		{name: "case insensitive", body: "STOP", wantStatus: database.UserUnsubscribed, wantMatch: true},
		{name: "surrounding whitespace", body: "  pause \n", wantStatus: database.UserPaused, wantMatch: true},
		{name: "phrase with trailing punctuation", body: "Pause, please", wantStatus: database.UserPaused, wantMatch: true},
		{name: "multi-word phrase", body: "start again", wantStatus: database.UserActive, wantMatch: true},
		{name: "phrase as word prefix", body: "paused my project for a week", wantMatch: false},
		{name: "phrase mid-sentence", body: "I want to pause", wantMatch: false},
		{name: "regular update", body: "Ran 5k today", wantMatch: false},
		{name: "empty body", body: "", wantMatch: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, ok := table.Match(tt.body)
			assert.Equal(t, tt.wantMatch, ok)
			if tt.wantMatch {
				assert.Equal(t, tt.wantStatus, action.Status)
				assert.NotEmpty(t, action.AckSubject)
				assert.NotEmpty(t, action.AckBody)
			}
		})
	}
}

func TestNewControlTable_DropsBlankPhrases(t *testing.T) {
	table := NewControlTable([]string{"", "  "}, nil, []string{"resume"})

	_, ok := table.Match("resume")
	assert.True(t, ok)
	_, ok = table.Match("")
	assert.False(t, ok)
}
