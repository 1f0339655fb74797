package bot

import (
	"fmt"
	"strings"

	"github.com/i474232898/weather-bot/internal/common"
)

// Action is what a text message asks the bot to do.
type Action int

const (
	ActionUnknown Action = iota
	ActionStart
	ActionHelp
	ActionCurrent
	ActionWeekly
)

// Command is a parsed text message. City is empty when none was given.
type Command struct {
	Action Action
	City   string
}

// Order matters: "Погода на неделю" must be tried before "Погода".
var commandPrefixes = []struct {
	prefix string
	action Action
}{
	{"/start", ActionStart},
	{"/help", ActionHelp},
	{"/week", ActionWeekly},
	{strings.ToLower(ButtonWeekly), ActionWeekly},
	{"/weather", ActionCurrent},
	{strings.ToLower(ButtonCurrent), ActionCurrent},
}

// ParseCommand recognises menu buttons and slash commands, optionally followed by a city.
func ParseCommand(text string) Command {
	text = strings.TrimSpace(stripBotMention(text))
	if text == "" {
		return Command{Action: ActionUnknown}
	}

	for _, c := range commandPrefixes {
		rest, ok := common.CutPrefixFold(text, c.prefix)
		if !ok {
			continue
		}
		switch c.action {
		case ActionCurrent, ActionWeekly:
			return Command{Action: c.action, City: rest}
		default:
			return Command{Action: c.action}
		}
	}
	return Command{Action: ActionUnknown}
}

// stripBotMention turns "/weather@SomeBot Moscow" into "/weather Moscow".
func stripBotMention(text string) string {
	if !strings.HasPrefix(text, "/") {
		return text
	}
	head, tail, _ := strings.Cut(text, " ")
	if at := strings.IndexByte(head, '@'); at > 0 {
		head = head[:at]
	}
	if tail == "" {
		return head
	}
	return head + " " + tail
}

// String returns the action name used in logs.
func (a Action) String() string {
	switch a {
	case ActionStart:
		return "start"
	case ActionHelp:
		return "help"
	case ActionCurrent:
		return "current"
	case ActionWeekly:
		return "weekly"
	}
	return fmt.Sprintf("unknown(%d)", int(a))
}
