package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"ticketline/internal/database/boltstore"
	"ticketline/internal/models"
	"ticketline/internal/review"
	"ticketline/internal/ticket"
	"ticketline/internal/tracing"
	"ticketline/internal/transport"
	"ticketline/internal/transport/telegram"
)

const (
	welcomeText = "Hi! This is the support bot. Pick an option below."
	menuPrompt  = "Pick an option below."
	fallbackErr = "Something went wrong. Please try again later."
)

// checkUser runs the ban gate for a private interaction. When the
// second return is false the interaction was already answered.
func (b *Bot) checkUser(c tele.Context, referrer *int64) (*models.User, bool) {
	dec, err := b.gate.Check(b.ctx, c.Sender().ID, referrer)
	if err != nil {
		log.Error().Err(err).Int64("user_id", c.Sender().ID).Msg("bot: gate check failed")
		_ = c.Send(fallbackErr)
		return nil, false
	}
	if !dec.Allow {
		_ = c.Send(dec.Notice)
		return nil, false
	}
	return dec.User, true
}

func (b *Bot) onStart(c tele.Context) error {
	if c.Chat().Type != tele.ChatPrivate {
		return nil
	}

	var referrer *int64
	if payload := strings.TrimSpace(c.Message().Payload); payload != "" {
		if id, err := strconv.ParseInt(payload, 10, 64); err == nil && id != c.Sender().ID {
			referrer = &id
		}
	}

	user, ok := b.checkUser(c, referrer)
	if !ok {
		return nil
	}
	if err := b.convs.Clear(user.ID); err != nil {
		log.Warn().Err(err).Int64("user_id", user.ID).Msg("bot: failed to clear conversation")
	}
	return c.Send(welcomeText, mainMenu())
}

func (b *Bot) onNewTicket(c tele.Context) error {
	user, ok := b.checkUser(c, nil)
	if !ok {
		return nil
	}
	conv := boltstore.Conversation{Step: boltstore.StepChoosingCategory}
	if err := b.convs.Put(user.ID, conv); err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("bot: failed to save conversation")
		return c.Send(fallbackErr)
	}
	return c.Edit("What is your request about?", categoryMenu())
}

func (b *Bot) onCategory(c tele.Context) error {
	user, ok := b.checkUser(c, nil)
	if !ok {
		return nil
	}
	category := c.Data()
	conv := boltstore.Conversation{Step: boltstore.StepWritingIssue, Category: category}
	if err := b.convs.Put(user.ID, conv); err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("bot: failed to save conversation")
		return c.Send(fallbackErr)
	}
	return c.Edit("Describe your request. You can send text, photos, files or voice messages.")
}

// onCancel aborts any multi-step flow and closes an open ticket.
func (b *Bot) onCancel(c tele.Context) error {
	if c.Chat().Type != tele.ChatPrivate {
		return nil
	}
	user, ok := b.checkUser(c, nil)
	if !ok {
		return nil
	}
	if err := b.convs.Clear(user.ID); err != nil {
		log.Warn().Err(err).Int64("user_id", user.ID).Msg("bot: failed to clear conversation")
	}
	if err := b.router.CancelTicket(b.ctx, user); err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("bot: failed to cancel ticket")
		return c.Send(fallbackErr)
	}
	return c.Send("Cancelled.", mainMenu())
}

func (b *Bot) onProfile(c tele.Context) error {
	user, ok := b.checkUser(c, nil)
	if !ok {
		return nil
	}
	referrals, err := b.dir.ReferralCount(b.ctx, user.ID)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", user.ID).Msg("bot: failed to count referrals")
	}
	link := "https://t.me/" + b.tb.Me.Username + "?start=" + strconv.FormatInt(user.ID, 10)
	card := fmt.Sprintf(
		"Your profile\n\nID: %s\nMember since: %s\nMessages sent: %d\nWarnings: %d/%d\nInvited users: %d",
		user.AnonID,
		user.CreatedAt.Format("2006-01-02"),
		user.MessageCount,
		user.WarnCount, models.WarnThreshold,
		referrals,
	)
	if user.WarnCount > 0 {
		warns, err := b.dir.RecentWarns(b.ctx, user.ID, 3)
		if err != nil {
			log.Warn().Err(err).Int64("user_id", user.ID).Msg("bot: failed to load warn history")
		}
		for _, w := range warns {
			if w.Reason != "" {
				card += "\n  ⚠ " + w.Reason
			}
		}
	}
	card += "\n\nInvite link:\n" + link
	return c.Send(card)
}

func (b *Bot) onReviewWall(c tele.Context) error {
	if _, ok := b.checkUser(c, nil); !ok {
		return nil
	}
	wall, err := b.review.Wall(b.ctx, 5)
	if err != nil {
		log.Error().Err(err).Msg("bot: failed to load review wall")
		return c.Send(fallbackErr)
	}
	return c.Send(formatWall(wall))
}

func (b *Bot) onLeaveReview(c tele.Context) error {
	user, ok := b.checkUser(c, nil)
	if !ok {
		return nil
	}
	conv := boltstore.Conversation{Step: boltstore.StepReviewAlias}
	if err := b.convs.Put(user.ID, conv); err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("bot: failed to save conversation")
		return c.Send(fallbackErr)
	}
	return c.Edit("Which staff member are you reviewing? Send their alias.")
}

// handleUserMessage dispatches a private message by the user's flow
// position. Users outside any flow with an open ticket relay straight
// to staff; everyone else gets the menu.
func (b *Bot) handleUserMessage(c tele.Context) error {
	user, ok := b.checkUser(c, nil)
	if !ok {
		return nil
	}

	conv, err := b.convs.Get(user.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("bot: failed to load conversation")
		return c.Send(fallbackErr)
	}

	switch conv.Step {
	case boltstore.StepWritingIssue:
		return b.openTicket(c, user, conv.Category)
	case boltstore.StepReviewAlias:
		return b.reviewAlias(c, user)
	case boltstore.StepReviewRating:
		return b.reviewRating(c, user, conv)
	case boltstore.StepReviewComment:
		return b.reviewComment(c, user, conv)
	case boltstore.StepBroadcasting:
		return b.broadcastCollect(c, user)
	case boltstore.StepChoosingCategory:
		return c.Send("Pick a category first.", categoryMenu())
	default:
		if user.HasOpenThread() {
			return b.relayToStaff(c, user)
		}
		return c.Send(menuPrompt, mainMenu())
	}
}

func (b *Bot) openTicket(c tele.Context, user *models.User, category string) error {
	content := telegram.Ingest(c.Message())
	if err := b.router.OpenTicket(b.ctx, user, category, content); err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("bot: failed to open ticket")
		var ce *ticket.CreationError
		if errors.As(err, &ce) {
			return c.Send("Could not create your ticket right now. Please try again later.")
		}
		return c.Send(fallbackErr)
	}
	if err := b.convs.Clear(user.ID); err != nil {
		log.Warn().Err(err).Int64("user_id", user.ID).Msg("bot: failed to clear conversation")
	}
	return c.Send("Ticket created. Staff will reply to you right here. Further messages go into the same ticket.")
}

func (b *Bot) relayToStaff(c tele.Context, user *models.User) error {
	content := telegram.Ingest(c.Message())
	ctx, span := tracing.RelaySpan(b.ctx, "user_to_staff", content.Kind.String())
	err := b.router.RelayToStaff(ctx, user, content)
	tracing.EndWithError(span, err)
	span.End()
	if err != nil {
		if errors.Is(err, ticket.ErrNoActiveTicket) {
			return c.Send(menuPrompt, mainMenu())
		}
		log.Error().Err(err).Int64("user_id", user.ID).Msg("bot: relay to staff failed")
		return c.Send("Could not deliver your message. Please try again.")
	}
	return nil
}

func (b *Bot) reviewAlias(c tele.Context, user *models.User) error {
	alias := strings.TrimSpace(c.Text())
	if alias == "" {
		return c.Send("Send the staff alias as text.")
	}
	conv := boltstore.Conversation{Step: boltstore.StepReviewRating, ReviewAlias: alias}
	if err := b.convs.Put(user.ID, conv); err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("bot: failed to save conversation")
		return c.Send(fallbackErr)
	}
	return c.Send(fmt.Sprintf("Rate %s from %d to %d.", alias, review.MinRating, review.MaxRating))
}

func (b *Bot) reviewRating(c tele.Context, user *models.User, conv boltstore.Conversation) error {
	rating, err := strconv.Atoi(strings.TrimSpace(c.Text()))
	if err != nil || rating < review.MinRating || rating > review.MaxRating {
		return c.Send(fmt.Sprintf("Send a number from %d to %d.", review.MinRating, review.MaxRating))
	}
	conv.Step = boltstore.StepReviewComment
	conv.ReviewRating = rating
	if err := b.convs.Put(user.ID, conv); err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("bot: failed to save conversation")
		return c.Send(fallbackErr)
	}
	return c.Send("Add a comment, or send \"-\" to skip.")
}

func (b *Bot) reviewComment(c tele.Context, user *models.User, conv boltstore.Conversation) error {
	comment := strings.TrimSpace(c.Text())
	if comment == "-" {
		comment = ""
	}
	rev, err := b.review.Submit(b.ctx, user.ID, conv.ReviewAlias, conv.ReviewRating, comment)
	if err != nil {
		var invalid *review.InvalidInputError
		if errors.As(err, &invalid) {
			return c.Send("That review was rejected: " + invalid.Reason + ". Start over with the menu.")
		}
		log.Error().Err(err).Int64("user_id", user.ID).Msg("bot: failed to submit review")
		return c.Send(fallbackErr)
	}
	b.announceReview(rev)
	if err := b.convs.Clear(user.ID); err != nil {
		log.Warn().Err(err).Int64("user_id", user.ID).Msg("bot: failed to clear conversation")
	}
	return c.Send("Thanks for your review!", mainMenu())
}

// announceReview posts a new-review card into the staff reviews thread
// so moderators see the id that /delreview takes. Best-effort; disabled
// when no reviews thread is configured.
func (b *Bot) announceReview(rev *models.Review) {
	if b.cfg.ReviewsThreadID == 0 {
		return
	}
	_, err := b.tr.CopyToThread(b.ctx, b.cfg.ReviewsThreadID, "", transport.TextContent(reviewCard(rev)))
	if err != nil {
		log.Warn().Err(err).Uint("review_id", rev.ID).Msg("bot: failed to announce review")
	}
}

func reviewCard(rev *models.Review) string {
	card := fmt.Sprintf("New review #%d\n\n%s %s", rev.ID, rev.Alias, strings.Repeat("⭐", rev.Rating))
	if rev.Comment != "" {
		card += "\n" + rev.Comment
	}
	card += fmt.Sprintf("\n\nRemove with /delreview %d", rev.ID)
	return card
}

func formatWall(wall *review.Wall) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Reviews: %d, average %.2f\n", wall.Stats.TotalCount, wall.Stats.AvgRating))
	if len(wall.Stats.TopAliases) > 0 {
		sb.WriteString("\nTop staff:\n")
		for _, a := range wall.Stats.TopAliases {
			sb.WriteString(fmt.Sprintf("  %s — %.2f (%d reviews)\n", a.Alias, a.AvgRating, a.Count))
		}
	}
	if len(wall.Latest) > 0 {
		sb.WriteString("\nLatest:\n")
		for _, r := range wall.Latest {
			sb.WriteString(fmt.Sprintf("  %s %s", r.Alias, strings.Repeat("⭐", r.Rating)))
			if r.Comment != "" {
				sb.WriteString(" — " + r.Comment)
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
