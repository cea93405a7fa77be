package middleware

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
)

func newTestContext(t *testing.T, u tele.Update) tele.Context {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return b.NewContext(u)
}

func messageContext(t *testing.T, text string) tele.Context {
	t.Helper()
	return newTestContext(t, tele.Update{
		Message: &tele.Message{
			Text:   text,
			Chat:   &tele.Chat{ID: 42},
			Sender: &tele.User{ID: 7},
		},
	})
}

// Poll-state updates carry no message and no chat.
func pollContext(t *testing.T) tele.Context {
	t.Helper()
	return newTestContext(t, tele.Update{Poll: &tele.Poll{ID: "p1"}})
}

func TestUpdateEvent(t *testing.T) {
	assert.Equal(t, "command", updateEvent(messageContext(t, "/start")))
	assert.Equal(t, "message", updateEvent(messageContext(t, "hi")))
	assert.Equal(t, "other", updateEvent(pollContext(t)))
}

func TestChatID(t *testing.T) {
	assert.Equal(t, int64(42), chatID(messageContext(t, "hi")))
	assert.Equal(t, int64(0), chatID(pollContext(t)))
}

func TestLoggingPassesThrough(t *testing.T) {
	called := false
	wantErr := errors.New("handler failed")
	h := Logging(zerolog.Nop())(func(c tele.Context) error {
		called = true
		return wantErr
	})

	err := h(messageContext(t, "hi"))
	assert.True(t, called)
	assert.Equal(t, wantErr, err)
}

func TestLoggingHandlesChatlessUpdate(t *testing.T) {
	called := false
	h := Logging(zerolog.Nop())(func(c tele.Context) error {
		called = true
		return nil
	})

	assert.NotPanics(t, func() {
		assert.NoError(t, h(pollContext(t)))
	})
	assert.True(t, called)
}

func TestRecoverSwallowsPanic(t *testing.T) {
	h := Recover(zerolog.Nop())(func(c tele.Context) error {
		panic("boom")
	})

	assert.NotPanics(t, func() {
		assert.NoError(t, h(messageContext(t, "hi")))
	})
}

func TestRecoverSwallowsPanicWithoutChat(t *testing.T) {
	h := Recover(zerolog.Nop())(func(c tele.Context) error {
		panic("boom")
	})

	assert.NotPanics(t, func() {
		assert.NoError(t, h(pollContext(t)))
	})
}
