// Package telegram implements the transport port on top of the
// Telegram Bot API, using forum topics in the staff group as support
// threads.
package telegram

import (
	"context"
	"errors"
	"time"

	tele "gopkg.in/telebot.v3"

	"ticketline/internal/transport"
)

// Adapter is the production transport. It is safe for concurrent use;
// telebot serializes API calls internally.
type Adapter struct {
	bot     *tele.Bot
	groupID int64
}

var _ transport.Transport = (*Adapter)(nil)

// New wraps a connected bot. adminGroupID is the forum-enabled staff
// group where threads are created.
func New(bot *tele.Bot, adminGroupID int64) *Adapter {
	return &Adapter{bot: bot, groupID: adminGroupID}
}

// CreateThread opens a forum topic in the staff group.
func (a *Adapter) CreateThread(ctx context.Context, title string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	topic, err := a.bot.CreateTopic(&tele.Chat{ID: a.groupID}, &tele.Topic{Name: title})
	if err != nil {
		return 0, wrapErr(err)
	}
	return int64(topic.ThreadID), nil
}

// CopyToThread copies content into a staff-group topic.
func (a *Adapter) CopyToThread(ctx context.Context, threadID int64, header string, content transport.Content) (transport.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return transport.MessageRef{}, err
	}
	opts := &tele.SendOptions{ThreadID: int(threadID)}
	return a.copy(tele.ChatID(a.groupID), header, content, opts)
}

// CopyToUser copies content into a user's private chat.
func (a *Adapter) CopyToUser(ctx context.Context, userID int64, content transport.Content) (transport.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return transport.MessageRef{}, err
	}
	return a.copy(tele.ChatID(userID), "", content, &tele.SendOptions{})
}

// Notify sends a plain text notice to a user.
func (a *Adapter) Notify(ctx context.Context, userID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := a.bot.Send(tele.ChatID(userID), text)
	return wrapErr(err)
}

// reactionParams mirrors the setMessageReaction request body. Telebot
// has no typed wrapper for reactions, so this goes through Bot.Raw.
type reactionParams struct {
	ChatID    int64           `json:"chat_id"`
	MessageID int             `json:"message_id"`
	Reaction  []reactionEmoji `json:"reaction"`
}

type reactionEmoji struct {
	Type  string `json:"type"`
	Emoji string `json:"emoji"`
}

// SetReaction attaches a sentiment emoji to a delivered message.
func (a *Adapter) SetReaction(ctx context.Context, ref transport.MessageRef, sentiment transport.Sentiment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := reactionParams{
		ChatID:    ref.ChatID,
		MessageID: ref.MessageID,
		Reaction: []reactionEmoji{{
			Type:  "emoji",
			Emoji: transport.ReactionEmoji(sentiment, ""),
		}},
	}
	_, err := a.bot.Raw("setMessageReaction", params)
	return wrapErr(err)
}

// copy renders content as the matching Telegram payload and sends it.
// An optional header is prepended to text and captions. Stickers cannot
// carry captions, so a non-empty header goes out as a separate line
// first.
func (a *Adapter) copy(to tele.Recipient, header string, content transport.Content, opts *tele.SendOptions) (transport.MessageRef, error) {
	text := withHeader(header, content.Text)

	var what interface{}
	switch content.Kind {
	case transport.KindText:
		what = text
	case transport.KindPhoto:
		what = &tele.Photo{File: tele.File{FileID: content.FileID}, Caption: text}
	case transport.KindVideo:
		what = &tele.Video{File: tele.File{FileID: content.FileID}, Caption: text}
	case transport.KindDocument:
		what = &tele.Document{File: tele.File{FileID: content.FileID}, Caption: text}
	case transport.KindAudio:
		what = &tele.Audio{File: tele.File{FileID: content.FileID}, Caption: text}
	case transport.KindVoice:
		what = &tele.Voice{File: tele.File{FileID: content.FileID}, Caption: text}
	case transport.KindAnimation:
		what = &tele.Animation{File: tele.File{FileID: content.FileID}, Caption: text}
	case transport.KindVideoNote:
		what = &tele.VideoNote{File: tele.File{FileID: content.FileID}}
	case transport.KindSticker:
		if header != "" {
			if _, err := a.bot.Send(to, header, opts); err != nil {
				return transport.MessageRef{}, wrapErr(err)
			}
		}
		what = &tele.Sticker{File: tele.File{FileID: content.FileID}}
	case transport.KindLocation:
		what = &tele.Location{Lat: content.Latitude, Lng: content.Longitude}
	case transport.KindContact:
		what = &tele.Contact{
			PhoneNumber: content.ContactPhone,
			FirstName:   content.ContactFirstName,
			LastName:    content.ContactLastName,
		}
	case transport.KindPoll:
		poll := &tele.Poll{
			Question:  content.Poll.Question,
			Anonymous: content.Poll.Anonymous,
			Type:      tele.PollType(content.Poll.Type),
		}
		poll.AddOptions(content.Poll.Options...)
		what = poll
	default:
		what = withHeader(header, "["+content.Descriptor+"]\n"+content.Text)
	}

	msg, err := a.bot.Send(to, what, opts)
	if err != nil {
		return transport.MessageRef{}, wrapErr(err)
	}
	return transport.MessageRef{ChatID: msg.Chat.ID, MessageID: msg.ID}, nil
}

func withHeader(header, text string) string {
	if header == "" {
		return text
	}
	if text == "" {
		return header
	}
	return header + "\n\n" + text
}

// wrapErr translates telebot errors into the transport error kinds the
// relay core keys its policy on.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}

	var flood tele.FloodError
	if errors.As(err, &flood) {
		return &transport.RateLimitedError{RetryAfter: time.Duration(flood.RetryAfter) * time.Second}
	}

	if errors.Is(err, tele.ErrBlockedByUser) || errors.Is(err, tele.ErrUserIsDeactivated) {
		return transport.ErrForbidden
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 403:
			return transport.ErrForbidden
		case 400:
			return transport.ErrBadRequest
		}
	}
	return &transport.NetworkError{Err: err}
}
