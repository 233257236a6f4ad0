package orchestrator

import (
	"context"
	"time"

	"github.com/zezere/email-bot/internal/database"
)

const reminderSubject = "Checking in"

// runReminders nudges conversations whose agreed check-in time has passed.
// Reminder failures are logged and skipped; they never touch the mailbox
// checkpoint, and the reminder count is raised before sending so a crash
// cannot nudge the same user twice.
func (o *Orchestrator) runReminders(ctx context.Context, report *Report) {
	if o.opts.MaxReminders <= 0 {
		return
	}

	due, err := o.store.DueSchedules(ctx, time.Now(), o.opts.MaxReminders)
	if err != nil {
		o.logger.Warn().Err(err).Msg("failed to load due schedules")
		return
	}

	for _, schedule := range due {
		log := o.logger.With().Str("conversation_id", schedule.ConversationID).Logger()

		convCtx, err := o.store.ContextFor(ctx, schedule.ConversationID)
		if err != nil {
			log.Warn().Err(err).Msg("failed to load reminder context")
			continue
		}
		text, err := o.composer.ComposeReminder(ctx, convCtx)
		if err != nil {
			log.Warn().Err(err).Msg("reminder composition failed")
			continue
		}
		if err := o.store.MarkReminderSent(ctx, schedule.ConversationID); err != nil {
			log.Warn().Err(err).Msg("failed to count reminder")
			continue
		}
		out, err := o.store.RecordOutbound(ctx, schedule.ConversationID, reminderSubject, text, 0)
		if err != nil {
			log.Warn().Err(err).Msg("failed to record reminder")
			continue
		}
		if err := o.sender.Send(ctx, schedule.UserEmail, out.Subject, out.Body); err != nil {
			log.Warn().Err(err).Str("message_id", out.ID).Msg("reminder send failed, left pending")
			continue
		}
		if err := o.store.MarkDelivery(ctx, out.ID, database.DeliverySent); err != nil {
			log.Warn().Err(err).Msg("failed to mark reminder delivered")
			continue
		}
		report.Reminders++
	}
}
