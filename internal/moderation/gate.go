// Package moderation maps raw classifier output to an allow/block/review
// verdict under a fixed policy threshold. The classifier's own labels never
// decide anything directly; policy does.
package moderation

import (
	"context"
	"fmt"

	"github.com/zezere/email-bot/internal/database"
)

// Classification is the opaque output of the external classifier: a severity
// score in [0,1] and a provider label.
type Classification struct {
	Score float64
	Label string
}

// Classifier is the external moderation collaborator.
type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

// Gate applies the policy thresholds. Scores below AllowBelow are allowed,
// scores at or above BlockAt are blocked, and the band in between goes to
// review for out-of-band handling.
type Gate struct {
	classifier Classifier
	allowBelow float64
	blockAt    float64
}

// NewGate validates the threshold band and builds a gate.
func NewGate(classifier Classifier, allowBelow, blockAt float64) (*Gate, error) {
	if classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if allowBelow < 0 || blockAt > 1 || allowBelow > blockAt {
		return nil, fmt.Errorf("invalid thresholds: allow below %v, block at %v", allowBelow, blockAt)
	}
	return &Gate{classifier: classifier, allowBelow: allowBelow, blockAt: blockAt}, nil
}

// Evaluate classifies the text and returns a verdict. On classifier failure
// the verdict is review, never allow, and the failure is also returned so the
// caller can account for degraded mode. The verdict is valid either way.
func (g *Gate) Evaluate(ctx context.Context, text string) (database.Verdict, error) {
	c, err := g.classifier.Classify(ctx, text)
	if err != nil {
		return database.Verdict{
			Decision: database.DecisionReview,
			Reason:   fmt.Sprintf("moderation unavailable: %v", err),
		}, fmt.Errorf("classify: %w", err)
	}

	verdict := database.Verdict{Score: c.Score}
	switch {
	case c.Score < g.allowBelow:
		verdict.Decision = database.DecisionAllow
		verdict.Reason = "below policy threshold"
	case c.Score >= g.blockAt:
		verdict.Decision = database.DecisionBlock
		verdict.Reason = fmt.Sprintf("flagged: %s", c.Label)
	default:
		verdict.Decision = database.DecisionReview
		verdict.Reason = fmt.Sprintf("within review band: %s", c.Label)
	}
	return verdict, nil
}
