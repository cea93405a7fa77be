// Package middleware provides telebot middleware shared by all
// handlers.
package middleware

import (
	"strconv"
	"time"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v3"

	"ticketline/internal/metrics"
)

// chatID extracts the chat id when the update carries one. Poll-state
// and other chat-less updates return 0.
func chatID(c tele.Context) int64 {
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	return 0
}

// updateEvent names the update for logging and metric labels.
func updateEvent(c tele.Context) string {
	switch {
	case c.Callback() != nil:
		return "callback"
	case c.Message() == nil:
		return "other"
	case c.Message().Text != "" && c.Message().Text[0] == '/':
		return "command"
	default:
		return "message"
	}
}

// Logging returns a middleware that logs every processed update with
// structured fields and records the update metrics.
func Logging(logger zerolog.Logger) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			start := time.Now()
			event := updateEvent(c)

			err := next(c)
			duration := time.Since(start)

			var logEvent *zerolog.Event
			if err != nil {
				logEvent = logger.Error().Err(err)
			} else {
				logEvent = logger.Debug()
			}

			logEvent.
				Str("event", event).
				Int64("chat_id", chatID(c)).
				Dur("duration", duration)
			if sender := c.Sender(); sender != nil {
				logEvent.Int64("sender_id", sender.ID)
			}
			if m := c.Message(); m != nil && m.ThreadID != 0 {
				logEvent.Int("thread_id", m.ThreadID)
			}
			logEvent.Msg("Update processed")

			metrics.UpdatesTotal.WithLabelValues(event, strconv.FormatBool(err == nil)).Inc()
			metrics.UpdateDuration.WithLabelValues(event).Observe(duration.Seconds())
			return err
		}
	}
}

// Recover returns a middleware that converts handler panics into
// logged errors so one bad update cannot take down the poller.
func Recover(logger zerolog.Logger) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().Interface("panic", r).Int64("chat_id", chatID(c)).Msg("Handler panicked")
				}
			}()
			return next(c)
		}
	}
}
