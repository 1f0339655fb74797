package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-bot/internal/bot"
)

const pollTimeout = 60 // seconds

// botAPI is the subset of *tgbotapi.BotAPI used by the gateway.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Gateway adapts the Telegram Bot API to bot.EventSource and bot.ReplySender.
type Gateway struct {
	api botAPI
	log zerolog.Logger
}

// New connects to Telegram with token.
func New(token string, log zerolog.Logger) (*Gateway, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	log.Info().Str("bot", api.Self.UserName).Msg("authorized on telegram")
	return newGateway(api, log), nil
}

func newGateway(api botAPI, log zerolog.Logger) *Gateway {
	return &Gateway{api: api, log: log}
}

// Events long-polls Telegram and emits normalized events until ctx ends.
func (g *Gateway) Events(ctx context.Context) <-chan bot.InboundEvent {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := g.api.GetUpdatesChan(u)

	out := make(chan bot.InboundEvent)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				g.api.StopReceivingUpdates()
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				ev, ok := toInboundEvent(upd)
				if !ok {
					g.log.Debug().Int("update_id", upd.UpdateID).Msg("unsupported update skipped")
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					g.api.StopReceivingUpdates()
					return
				}
			}
		}
	}()
	return out
}

// Send delivers r. A 403 from Telegram is reported as bot.ErrChatUnavailable.
func (g *Gateway) Send(ctx context.Context, r bot.OutboundReply) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(r.ChatID, r.Text)
	if markup := keyboardMarkup(r.Keyboard); markup != nil {
		msg.ReplyMarkup = markup
	}

	if _, err := g.api.Send(msg); err != nil {
		if isForbidden(err) {
			return fmt.Errorf("telegram: chat %d: %w", r.ChatID, bot.ErrChatUnavailable)
		}
		return fmt.Errorf("telegram: send to chat %d: %w", r.ChatID, err)
	}
	return nil
}

// toInboundEvent keeps plain text and location messages; everything else is dropped.
func toInboundEvent(upd tgbotapi.Update) (bot.InboundEvent, bool) {
	m := upd.Message
	if m == nil || m.Chat == nil {
		return bot.InboundEvent{}, false
	}

	ev := bot.InboundEvent{
		ChatID:     m.Chat.ID,
		ReceivedAt: time.Unix(int64(m.Date), 0).UTC(),
	}
	switch {
	case m.Location != nil:
		ev.Location = &bot.Coordinates{Latitude: m.Location.Latitude, Longitude: m.Location.Longitude}
	case m.Text != "":
		ev.Text = m.Text
	default:
		return bot.InboundEvent{}, false
	}
	return ev, true
}

func keyboardMarkup(hint bot.KeyboardHint) any {
	switch hint {
	case bot.KeyboardMainMenu:
		return tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton(bot.ButtonCurrent),
				tgbotapi.NewKeyboardButton(bot.ButtonWeekly),
			),
		)
	case bot.KeyboardRequestLocation:
		kb := tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButtonLocation(bot.ButtonSendLocation),
			),
		)
		kb.OneTimeKeyboard = true
		return kb
	default:
		return nil
	}
}

func isForbidden(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusForbidden
	}
	var valErr tgbotapi.Error
	if errors.As(err, &valErr) {
		return valErr.Code == http.StatusForbidden
	}
	return false
}
