// Package orchestrator drives one stateless invocation: fetch new inbound
// mail since the checkpoint, commit each message exactly once through the
// moderation gate and reply composer, and advance the checkpoint per fully
// committed message.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zezere/email-bot/internal/compose"
	"github.com/zezere/email-bot/internal/database"
	"github.com/zezere/email-bot/internal/mail"
	"github.com/zezere/email-bot/internal/moderation"
)

// Options tune a run without touching the processing contract.
type Options struct {
	// LockLease bounds how long a crashed invocation can wedge the system.
	LockLease time.Duration
	// CheckinInterval schedules the next expected user check-in after each
	// successful reply. Zero disables scheduling.
	CheckinInterval time.Duration
	// MaxReminders caps nudges per schedule. Zero disables the reminder pass.
	MaxReminders int
	// Controls maps recognized control phrases to lifecycle transitions.
	Controls ControlTable
}

// Orchestrator wires the store and the three collaborators into the run loop.
type Orchestrator struct {
	store    *database.Store
	mailbox  mail.Mailbox
	sender   mail.Sender
	gate     *moderation.Gate
	composer *compose.Composer
	logger   zerolog.Logger
	opts     Options
}

// Report summarizes one invocation for the logging boundary.
type Report struct {
	LockHeld   bool
	Halted     bool
	Fetched    int
	Processed  int
	Duplicates int
	Replies    int
	Blocked    int
	Review     int
	Suppressed int
	Controls   int
	Malformed  int
	Deferred   int
	Degraded   int
	Reminders  int
}

// New creates an orchestrator. All collaborators are required.
func New(store *database.Store, mailbox mail.Mailbox, sender mail.Sender,
	gate *moderation.Gate, composer *compose.Composer, logger zerolog.Logger, opts Options) (*Orchestrator, error) {
	if store == nil || mailbox == nil || sender == nil || gate == nil || composer == nil {
		return nil, fmt.Errorf("store, mailbox, sender, gate and composer are required")
	}
	if opts.LockLease <= 0 {
		opts.LockLease = 5 * time.Minute
	}
	return &Orchestrator{
		store:    store,
		mailbox:  mailbox,
		sender:   sender,
		gate:     gate,
		composer: composer,
		logger:   logger,
		opts:     opts,
	}, nil
}

// outcome classifies how far a single message got.
type outcome int

const (
	// outcomeCommitted: fully processed, checkpoint may advance past it.
	outcomeCommitted outcome = iota
	// outcomeHeld: not committed; later messages may still be processed but
	// the checkpoint must not advance past this one.
	outcomeHeld
	// outcomeHalt: not committed and the transport is failing; the run ends
	// here so the next invocation retries the send.
	outcomeHalt
)

// Run executes one deterministic pass. A held run lock is a clean skip, not
// an error. Store errors are fatal and abort without partial checkpoint
// advancement beyond the last committed message.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	holder := uuid.NewString()
	acquired, err := o.store.AcquireRunLock(ctx, holder, o.opts.LockLease)
	if err != nil {
		return report, fmt.Errorf("acquire run lock: %w", err)
	}
	if !acquired {
		report.LockHeld = true
		o.logger.Info().Msg("run lock held by another invocation, skipping")
		return report, nil
	}
	defer func() {
		if err := o.store.ReleaseRunLock(context.WithoutCancel(ctx), holder); err != nil {
			o.logger.Warn().Err(err).Msg("failed to release run lock")
		}
	}()

	cursor, err := o.store.Checkpoint(ctx)
	if err != nil {
		return report, err
	}
	inbound, err := o.mailbox.ListNew(ctx, cursor)
	if err != nil {
		return report, fmt.Errorf("list mailbox: %w", err)
	}
	report.Fetched = len(inbound)

	// Ascending timestamp, external id breaking ties, for determinism.
	sort.Slice(inbound, func(i, j int) bool {
		return inbound[i].Position().Before(inbound[j].Position())
	})

	advance := true
	for _, in := range inbound {
		result, err := o.process(ctx, in, report)
		if err != nil {
			return report, err
		}
		switch result {
		case outcomeCommitted:
			report.Processed++
			if advance {
				if err := o.store.AdvanceCheckpoint(ctx, in.Position()); err != nil {
					return report, err
				}
			}
		case outcomeHeld:
			advance = false
		case outcomeHalt:
			report.Halted = true
			o.logger.Warn().Str("position", in.Position().String()).
				Msg("send failure halted the run; checkpoint held for retry")
			return report, nil
		}
	}

	o.runReminders(ctx, report)
	return report, nil
}

// process drives one message through RECORDED, MODERATED and REPLIED or
// SUPPRESSED. Re-seeing a partially processed message resumes at the exact
// missing step; re-seeing a committed one changes nothing.
func (o *Orchestrator) process(ctx context.Context, in mail.Inbound, report *Report) (outcome, error) {
	log := o.logger.With().Str("external_id", in.ExternalID).Logger()

	addr, err := mail.NormalizeAddress(in.Sender)
	if err != nil {
		// Surfaced every run until an operator intervenes; it must not
		// silently vanish behind an advancing checkpoint.
		report.Malformed++
		log.Error().Err(err).Str("sender", in.Sender).Msg("unresolvable sender, message held")
		return outcomeHeld, nil
	}

	conv, msg, duplicate, err := o.store.RecordInbound(ctx, database.InboundEmail{
		Address:     addr,
		DisplayName: in.SenderName,
		ExternalID:  in.ExternalID,
		Subject:     in.Subject,
		Body:        in.Body,
		ReceivedAt:  in.ReceivedAt,
	})
	if err != nil {
		return 0, fmt.Errorf("record inbound: %w", err)
	}
	if duplicate {
		report.Duplicates++
	}

	verdict := msg.Verdict()
	if verdict == nil {
		// Control directives preempt moderation and replies.
		if action, ok := o.opts.Controls.Match(msg.Body); ok {
			if err := o.store.SetUserStatus(ctx, addr, action.Status); err != nil {
				return 0, err
			}
			if duplicate {
				// Re-served at the inclusive cursor boundary. The transition
				// above is idempotent; the acknowledgement must not repeat.
				return outcomeCommitted, nil
			}
			report.Controls++
			log.Info().Str("user", addr).Str("status", string(action.Status)).
				Msg("control directive applied")
			o.sendAck(ctx, addr, action, log)
			return outcomeCommitted, nil
		}

		v, gateErr := o.gate.Evaluate(ctx, msg.Body)
		if gateErr != nil {
			report.Degraded++
			log.Warn().Err(gateErr).Msg("moderation degraded, failing safe to review")
		}
		if err := o.store.AttachVerdict(ctx, msg.ID, v); err != nil {
			return 0, fmt.Errorf("attach verdict: %w", err)
		}
		verdict = &v
	}

	switch verdict.Decision {
	case database.DecisionBlock:
		report.Blocked++
		return outcomeCommitted, nil
	case database.DecisionReview:
		report.Review++
		return outcomeCommitted, nil
	}

	user, err := o.store.GetUser(ctx, addr)
	if err != nil {
		return 0, err
	}
	if user.Status != database.UserActive {
		// Recorded for audit, never replied to.
		report.Suppressed++
		return outcomeCommitted, nil
	}

	reply, err := o.store.ReplyFor(ctx, conv.ID, msg.Seq)
	if err != nil {
		return 0, err
	}
	if reply == nil {
		convCtx, err := o.store.ContextFor(ctx, conv.ID)
		if err != nil {
			return 0, err
		}
		text, err := o.composer.Compose(ctx, convCtx)
		if err != nil {
			report.Deferred++
			log.Warn().Err(err).Msg("reply composition failed, deferred to next run")
			return outcomeHeld, nil
		}
		recorded, err := o.store.RecordOutbound(ctx, conv.ID, replySubject(msg.Subject), text, msg.Seq)
		if err != nil {
			return 0, err
		}
		reply = &recorded
	}

	if reply.DeliveryStatus == database.DeliveryPending {
		if err := o.sender.Send(ctx, addr, reply.Subject, reply.Body); err != nil {
			// Outcome unconfirmed: the reply stays pending and the next
			// invocation retries exactly the send step.
			log.Warn().Err(err).Str("message_id", reply.ID).Msg("send failed, reply stays pending")
			return outcomeHalt, nil
		}
		if err := o.store.MarkDelivery(ctx, reply.ID, database.DeliverySent); err != nil {
			return 0, err
		}
		report.Replies++

		if o.opts.CheckinInterval > 0 {
			if err := o.store.SetSchedule(ctx, conv.ID, time.Now().Add(o.opts.CheckinInterval)); err != nil {
				log.Warn().Err(err).Msg("failed to schedule next check-in")
			}
		}
	}
	return outcomeCommitted, nil
}

// sendAck confirms a lifecycle transition. Best effort: the transition itself
// is durable, and repeating the confirmation on a retried run would spam.
func (o *Orchestrator) sendAck(ctx context.Context, addr string, action Action, log zerolog.Logger) {
	if err := o.sender.Send(ctx, addr, action.AckSubject, action.AckBody); err != nil {
		log.Warn().Err(err).Str("user", addr).Msg("control acknowledgement send failed")
	}
}

// replySubject derives the outbound subject from the inbound one.
func replySubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "Your accountability check-in"
	}
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}
