package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-bot/internal/bot"
)

type fakeAPI struct {
	updates chan tgbotapi.Update
	stopped chan struct{}
	once    sync.Once

	mu      sync.Mutex
	sent    []tgbotapi.MessageConfig
	sendErr error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 8), stopped: make(chan struct{})}
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.once.Do(func() { close(f.stopped) })
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.sendErr
}

func message(chatID int64, text string, loc *tgbotapi.Location) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: int(chatID),
		Message: &tgbotapi.Message{
			Chat:     &tgbotapi.Chat{ID: chatID},
			Text:     text,
			Location: loc,
			Date:     1760860800,
		},
	}
}

func TestEventsNormalizesUpdates(t *testing.T) {
	api := newFakeAPI()
	g := newGateway(api, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api.updates <- message(1, "/weather Moscow", nil)
	api.updates <- tgbotapi.Update{UpdateID: 99} // no message
	api.updates <- message(2, "", &tgbotapi.Location{Latitude: 43.58, Longitude: 39.72})
	api.updates <- message(3, "", nil) // sticker or similar

	events := g.Events(ctx)

	first := <-events
	assert.Equal(t, int64(1), first.ChatID)
	assert.Equal(t, "/weather Moscow", first.Text)
	assert.Nil(t, first.Location)
	assert.Equal(t, time.Unix(1760860800, 0).UTC(), first.ReceivedAt)

	second := <-events
	assert.Equal(t, int64(2), second.ChatID)
	assert.Empty(t, second.Text)
	require.NotNil(t, second.Location)
	assert.InDelta(t, 43.58, second.Location.Latitude, 1e-9)

	cancel()
	select {
	case <-api.stopped:
	case <-time.After(time.Second):
		t.Fatal("polling not stopped after cancel")
	}
	for range events {
		// drain until closed
	}
}

func TestSendAttachesKeyboard(t *testing.T) {
	api := newFakeAPI()
	g := newGateway(api, zerolog.Nop())

	require.NoError(t, g.Send(context.Background(), bot.OutboundReply{ChatID: 5, Text: "hi", Keyboard: bot.KeyboardMainMenu}))
	require.NoError(t, g.Send(context.Background(), bot.OutboundReply{ChatID: 5, Text: "where?", Keyboard: bot.KeyboardRequestLocation}))
	require.NoError(t, g.Send(context.Background(), bot.OutboundReply{ChatID: 5, Text: "plain"}))

	require.Len(t, api.sent, 3)

	menu, ok := api.sent[0].ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, menu.Keyboard, 1)
	assert.Equal(t, bot.ButtonCurrent, menu.Keyboard[0][0].Text)
	assert.Equal(t, bot.ButtonWeekly, menu.Keyboard[0][1].Text)

	loc, ok := api.sent[1].ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.True(t, loc.Keyboard[0][0].RequestLocation)
	assert.True(t, loc.OneTimeKeyboard)

	assert.Nil(t, api.sent[2].ReplyMarkup)
	assert.Equal(t, int64(5), api.sent[2].ChatID)
}

func TestSendMapsForbiddenToChatUnavailable(t *testing.T) {
	api := newFakeAPI()
	api.sendErr = &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}
	g := newGateway(api, zerolog.Nop())

	err := g.Send(context.Background(), bot.OutboundReply{ChatID: 5, Text: "hi"})
	assert.ErrorIs(t, err, bot.ErrChatUnavailable)

	api.sendErr = &tgbotapi.Error{Code: 400, Message: "Bad Request"}
	err = g.Send(context.Background(), bot.OutboundReply{ChatID: 5, Text: "hi"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, bot.ErrChatUnavailable))
}

func TestSendSkipsAfterCancel(t *testing.T) {
	api := newFakeAPI()
	g := newGateway(api, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, g.Send(ctx, bot.OutboundReply{ChatID: 5, Text: "hi"}), context.Canceled)
	assert.Empty(t, api.sent)
}
