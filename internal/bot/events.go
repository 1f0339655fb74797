package bot

import (
	"context"
	"errors"
	"time"
)

// ErrChatUnavailable is returned by a ReplySender when the chat can no longer
// receive messages, e.g. the user blocked the bot.
var ErrChatUnavailable = errors.New("chat unavailable")

// Coordinates is a location shared by the user.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// InboundEvent is a normalized message from the bot gateway.
// Exactly one of Text and Location is set.
type InboundEvent struct {
	ID         string
	ChatID     int64
	Text       string
	Location   *Coordinates
	ReceivedAt time.Time
}

// KeyboardHint tells the gateway which reply keyboard to attach.
type KeyboardHint int

const (
	KeyboardNone KeyboardHint = iota
	KeyboardMainMenu
	KeyboardRequestLocation
)

// Labels of the reply keyboard buttons.
const (
	ButtonCurrent      = "Погода"
	ButtonWeekly       = "Погода на неделю"
	ButtonSendLocation = "📍 Отправить местоположение"
)

// OutboundReply is a normalized message for the bot gateway.
type OutboundReply struct {
	ChatID   int64
	Text     string
	Keyboard KeyboardHint
}

// EventSource delivers inbound events until ctx ends or the source closes the channel.
type EventSource interface {
	Events(ctx context.Context) <-chan InboundEvent
}

// ReplySender delivers outbound replies.
type ReplySender interface {
	Send(ctx context.Context, reply OutboundReply) error
}
