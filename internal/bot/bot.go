// Package bot wires the Telegram update stream to the relay core: user
// flows in private chats, staff commands and replies in the admin group.
package bot

import (
	"context"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"ticketline/internal/broadcast"
	"ticketline/internal/config"
	"ticketline/internal/database"
	"ticketline/internal/database/boltstore"
	"ticketline/internal/directory"
	"ticketline/internal/guard"
	"ticketline/internal/middleware"
	"ticketline/internal/moderation"
	"ticketline/internal/review"
	"ticketline/internal/ticket"
	"ticketline/internal/transport"
)

// Bot owns the handler surface over a connected telebot instance.
type Bot struct {
	tb     *tele.Bot
	cfg    *config.Config
	access *moderation.Access
	gate   *guard.Filter
	dir    *directory.Service
	router *ticket.Router
	mod    *moderation.Engine
	caster *broadcast.Engine
	review *review.Service
	convs  *boltstore.ConversationStore
	store  database.Store
	tr     transport.Transport

	// ctx bounds handler work; cancelled on shutdown.
	ctx context.Context
}

// Deps bundles the collaborators the bot dispatches into.
type Deps struct {
	Config        *config.Config
	Access        *moderation.Access
	Gate          *guard.Filter
	Directory     *directory.Service
	Router        *ticket.Router
	Moderation    *moderation.Engine
	Broadcast     *broadcast.Engine
	Reviews       *review.Service
	Conversations *boltstore.ConversationStore
	Store         database.Store
	Transport     transport.Transport
}

// New registers all handlers on the given telebot instance.
func New(ctx context.Context, tb *tele.Bot, deps Deps) *Bot {
	b := &Bot{
		tb:     tb,
		cfg:    deps.Config,
		access: deps.Access,
		gate:   deps.Gate,
		dir:    deps.Directory,
		router: deps.Router,
		mod:    deps.Moderation,
		caster: deps.Broadcast,
		review: deps.Reviews,
		convs:  deps.Conversations,
		store:  deps.Store,
		tr:     deps.Transport,
		ctx:    ctx,
	}
	b.register()
	return b
}

func (b *Bot) register() {
	b.tb.Use(middleware.Recover(log.Logger))
	b.tb.Use(middleware.Logging(log.Logger))

	b.tb.Handle("/start", b.onStart)
	b.tb.Handle("/cancel", b.onCancel)
	b.tb.Handle("/broadcast", b.onBroadcastCommand)

	b.tb.Handle("/warn", b.onWarn)
	b.tb.Handle("/ban", b.onBan)
	b.tb.Handle("/unban", b.onUnban)
	b.tb.Handle("/stats", b.onStats)
	b.tb.Handle("/delreview", b.onDeleteReview)
	b.tb.Handle("/reload_staff", b.onReloadStaff)

	b.tb.Handle(&btnNewTicket, b.onNewTicket)
	b.tb.Handle(&btnProfile, b.onProfile)
	b.tb.Handle(&btnReviewWall, b.onReviewWall)
	b.tb.Handle(&btnLeaveReview, b.onLeaveReview)
	b.tb.Handle(&btnCancel, b.onCancel)
	b.tb.Handle(&btnCategory, b.onCategory)
	b.tb.Handle(&btnBroadcastGo, b.onBroadcastConfirm)
	b.tb.Handle(&btnBroadcastAbort, b.onBroadcastAbort)

	// Every relayable content kind funnels through one dispatcher.
	for _, event := range []string{
		tele.OnText, tele.OnPhoto, tele.OnVideo, tele.OnDocument,
		tele.OnAudio, tele.OnVoice, tele.OnSticker, tele.OnAnimation,
		tele.OnVideoNote, tele.OnLocation, tele.OnContact, tele.OnPoll,
		tele.OnDice,
	} {
		b.tb.Handle(event, b.onMessage)
	}
}

// Start runs the long-poller until Stop is called. It announces itself
// to the owner first so a silent crash-loop is visible.
func (b *Bot) Start() {
	commands := []tele.Command{
		{Text: "start", Description: "Open the main menu"},
		{Text: "cancel", Description: "Cancel the current action"},
	}
	if err := b.tb.SetCommands(commands); err != nil {
		log.Warn().Err(err).Msg("bot: failed to register commands")
	}
	if _, err := b.tb.Send(tele.ChatID(b.cfg.OwnerID), "Bot started."); err != nil {
		log.Warn().Err(err).Msg("bot: failed to announce startup to owner")
	}
	log.Info().Str("username", b.tb.Me.Username).Msg("bot: polling")
	b.tb.Start()
}

// Stop terminates the long-poller.
func (b *Bot) Stop() {
	b.tb.Stop()
}

// onMessage routes inbound content by origin: private chats feed the
// user flows, admin-group threads feed the staff relay. Anything else
// is dropped.
func (b *Bot) onMessage(c tele.Context) error {
	m := c.Message()
	if m == nil {
		return nil
	}
	switch {
	case m.Chat.Type == tele.ChatPrivate:
		return b.handleUserMessage(c)
	case m.Chat.ID == b.cfg.AdminGroupID && m.ThreadID != 0:
		return b.handleStaffMessage(c)
	default:
		return nil
	}
}

// inThread reports whether a staff command was issued inside a support
// thread of the admin group.
func (b *Bot) inThread(c tele.Context) (int64, bool) {
	m := c.Message()
	if m == nil || m.Chat.ID != b.cfg.AdminGroupID || m.ThreadID == 0 {
		return 0, false
	}
	return int64(m.ThreadID), true
}
