package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"ticketline/internal/database/boltstore"
	"ticketline/internal/directory"
	"ticketline/internal/models"
	"ticketline/internal/moderation"
	"ticketline/internal/review"
	"ticketline/internal/tracing"
	"ticketline/internal/transport/telegram"
)

// staffCan gates a staff command. Unauthorized senders get no reply at
// all, so the command surface stays invisible to outsiders.
func (b *Bot) staffCan(c tele.Context, perm moderation.Permission) bool {
	return b.access.HasPermission(c.Sender().ID, perm)
}

// handleStaffMessage relays a plain staff reply from a support thread
// to the user behind it.
func (b *Bot) handleStaffMessage(c tele.Context) error {
	m := c.Message()
	content := telegram.Ingest(m)

	ctx, span := tracing.RelaySpan(b.ctx, "staff_to_user", content.Kind.String())
	err := b.router.RelayToUser(ctx, int64(m.ThreadID), content)
	tracing.EndWithError(span, err)
	span.End()

	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return c.Reply("No user is mapped to this thread.")
		}
		log.Error().Err(err).Int("thread_id", m.ThreadID).Msg("bot: relay to user failed")
		return c.Reply("Delivery failed. See the reaction marker.")
	}
	return nil
}

func (b *Bot) onWarn(c tele.Context) error {
	threadID, ok := b.inThread(c)
	if !ok || !b.staffCan(c, moderation.PermissionWarnUser) {
		return nil
	}
	reason := strings.TrimSpace(c.Message().Payload)

	out, err := b.mod.Warn(b.ctx, threadID, c.Sender().ID, reason)
	if err != nil {
		return b.replyModerationError(c, err)
	}

	reply := fmt.Sprintf("Warned %s (%d/%d).", out.User.AnonID, out.WarnCount, models.WarnThreshold)
	if out.AutoBanned {
		reply += " Warn limit reached: permanently banned."
	}
	return c.Reply(reply)
}

func (b *Bot) onBan(c tele.Context) error {
	threadID, ok := b.inThread(c)
	if !ok || !b.staffCan(c, moderation.PermissionBanUser) {
		return nil
	}
	args := c.Args()
	if len(args) == 0 {
		return c.Reply("Usage: /ban <duration|permanent> [reason]")
	}
	token := args[0]
	reason := strings.TrimSpace(strings.Join(args[1:], " "))

	out, err := b.mod.Ban(b.ctx, threadID, c.Sender().ID, token, reason)
	if err != nil {
		var invalid *moderation.InvalidDurationError
		if errors.As(err, &invalid) {
			return c.Reply("Bad duration. Use forms like 30m, 12h, 7d or \"permanent\".")
		}
		return b.replyModerationError(c, err)
	}

	if out.Permanent {
		return c.Reply(fmt.Sprintf("Banned %s permanently.", out.User.AnonID))
	}
	return c.Reply(fmt.Sprintf("Banned %s until %s.", out.User.AnonID, out.Until.Format("2006-01-02 15:04")))
}

func (b *Bot) onUnban(c tele.Context) error {
	threadID, ok := b.inThread(c)
	if !ok || !b.staffCan(c, moderation.PermissionUnbanUser) {
		return nil
	}
	out, err := b.mod.Unban(b.ctx, threadID, c.Sender().ID)
	if err != nil {
		return b.replyModerationError(c, err)
	}
	return c.Reply(fmt.Sprintf("Unbanned %s.", out.User.AnonID))
}

func (b *Bot) replyModerationError(c tele.Context, err error) error {
	if errors.Is(err, directory.ErrUserNotFound) {
		return c.Reply("No user is mapped to this thread.")
	}
	log.Error().Err(err).Msg("bot: moderation command failed")
	return c.Reply("Command failed, see logs.")
}

func (b *Bot) onStats(c tele.Context) error {
	if c.Chat().ID != b.cfg.AdminGroupID || !b.staffCan(c, moderation.PermissionViewStats) {
		return nil
	}
	stats, err := b.store.SystemStats(b.ctx, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("bot: failed to compute stats")
		return c.Reply("Stats unavailable, see logs.")
	}

	var sb strings.Builder
	sb.WriteString("System stats\n")
	sb.WriteString(fmt.Sprintf("Users: %d (%d active, %d banned, %d new today)\n",
		stats.TotalUsers, stats.ActiveUsers, stats.BannedUsers, stats.NewToday))
	sb.WriteString(fmt.Sprintf("Messages: %d (avg %.1f per user)\n", stats.TotalMessages, stats.AvgMessages))
	sb.WriteString(fmt.Sprintf("Warnings: %d\nReferrals: %d\n", stats.TotalWarns, stats.TotalReferrals))
	if len(stats.TopReferrers) > 0 {
		sb.WriteString("\nTop referrers:\n")
		for _, r := range stats.TopReferrers {
			sb.WriteString(fmt.Sprintf("  %s — %d\n", r.AnonID, r.Count))
		}
	}
	return c.Reply(sb.String())
}

func (b *Bot) onDeleteReview(c tele.Context) error {
	if c.Chat().ID != b.cfg.AdminGroupID || !b.staffCan(c, moderation.PermissionDeleteReview) {
		return nil
	}
	id, err := strconv.ParseUint(strings.TrimSpace(c.Message().Payload), 10, 32)
	if err != nil {
		return c.Reply("Usage: /delreview <id>")
	}
	if err := b.review.Delete(b.ctx, uint(id)); err != nil {
		if errors.Is(err, review.ErrNotFound) {
			return c.Reply("No such review.")
		}
		log.Error().Err(err).Uint64("review_id", id).Msg("bot: failed to delete review")
		return c.Reply("Command failed, see logs.")
	}
	return c.Reply("Review deleted.")
}

func (b *Bot) onReloadStaff(c tele.Context) error {
	if !b.access.IsOwner(c.Sender().ID) {
		return nil
	}
	if err := b.access.Reload(); err != nil {
		log.Error().Err(err).Msg("bot: failed to reload staff config")
		return c.Reply("Reload failed, see logs.")
	}
	return c.Reply("Staff config reloaded.")
}

// onBroadcastCommand starts the broadcast flow in the sender's private
// chat.
func (b *Bot) onBroadcastCommand(c tele.Context) error {
	if c.Chat().Type != tele.ChatPrivate || !b.staffCan(c, moderation.PermissionBroadcast) {
		return nil
	}
	conv := boltstore.Conversation{Step: boltstore.StepBroadcasting}
	if err := b.convs.Put(c.Sender().ID, conv); err != nil {
		log.Error().Err(err).Int64("user_id", c.Sender().ID).Msg("bot: failed to save conversation")
		return c.Send(fallbackErr)
	}
	return c.Send("Send the content to broadcast. Any message type works.")
}

// broadcastCollect captures the content to fan out and asks for
// confirmation with a preview.
func (b *Bot) broadcastCollect(c tele.Context, user *models.User) error {
	if !b.staffCan(c, moderation.PermissionBroadcast) {
		if err := b.convs.Clear(user.ID); err != nil {
			log.Warn().Err(err).Int64("user_id", user.ID).Msg("bot: failed to clear conversation")
		}
		return nil
	}
	content := telegram.Ingest(c.Message())
	conv := boltstore.Conversation{Step: boltstore.StepBroadcastConfirm, Broadcast: &content}
	if err := b.convs.Put(user.ID, conv); err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("bot: failed to save conversation")
		return c.Send(fallbackErr)
	}
	preview := content.Preview(200)
	return c.Send("Broadcast this to all active users?\n\n"+preview, broadcastConfirmMenu())
}

func (b *Bot) onBroadcastConfirm(c tele.Context) error {
	adminID := c.Sender().ID
	if !b.staffCan(c, moderation.PermissionBroadcast) {
		return nil
	}
	conv, err := b.convs.Get(adminID)
	if err != nil || conv.Step != boltstore.StepBroadcastConfirm || conv.Broadcast == nil {
		return c.Edit("Nothing pending. Start over with /broadcast.")
	}
	content := *conv.Broadcast
	if err := b.convs.Clear(adminID); err != nil {
		log.Warn().Err(err).Int64("user_id", adminID).Msg("bot: failed to clear conversation")
	}
	if err := c.Edit("Broadcast started."); err != nil {
		log.Warn().Err(err).Msg("bot: failed to ack broadcast start")
	}

	// The fan-out can run for minutes; it must not block the poller.
	go func() {
		progress := func(done, total int) {
			_, _ = b.tb.Send(tele.ChatID(adminID), fmt.Sprintf("Broadcast progress: %d/%d", done, total))
		}
		res, err := b.caster.Run(b.ctx, adminID, content, progress)
		if err != nil {
			log.Error().Err(err).Msg("bot: broadcast aborted")
			_, _ = b.tb.Send(tele.ChatID(adminID),
				fmt.Sprintf("Broadcast aborted after %d/%d deliveries.", res.Sent+res.Failed, res.Total))
			return
		}
		_, _ = b.tb.Send(tele.ChatID(adminID), fmt.Sprintf(
			"Broadcast finished.\nSent: %d\nFailed: %d\nElapsed: %s (%.1f msg/s)",
			res.Sent, res.Failed, res.Elapsed.Round(time.Second), res.Throughput()))
	}()
	return nil
}

func (b *Bot) onBroadcastAbort(c tele.Context) error {
	adminID := c.Sender().ID
	if err := b.convs.Clear(adminID); err != nil {
		log.Warn().Err(err).Int64("user_id", adminID).Msg("bot: failed to clear conversation")
	}
	return c.Edit("Broadcast cancelled.")
}
