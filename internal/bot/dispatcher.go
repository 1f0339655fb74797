package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-bot/internal/conversation"
	"github.com/i474232898/weather-bot/internal/weather"
)

// WeatherService is the part of weather.Service the dispatcher relies on.
type WeatherService interface {
	Lookup(ctx context.Context, city string, kind weather.Kind) (weather.Record, error)
	ResolveCity(ctx context.Context, lat, lon float64) (string, error)
}

// Dispatcher turns inbound events into replies. Events of one chat are
// handled strictly in arrival order; different chats run in parallel.
type Dispatcher struct {
	weather WeatherService
	tracker conversation.Tracker
	sender  ReplySender
	units   string
	log     zerolog.Logger

	mu     sync.Mutex
	queues map[int64]*chatQueue
	wg     sync.WaitGroup
}

type chatQueue struct {
	pending []InboundEvent
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithUnits sets the unit system used to label values in replies.
func WithUnits(units string) Option {
	return func(d *Dispatcher) { d.units = units }
}

func NewDispatcher(svc WeatherService, tracker conversation.Tracker, sender ReplySender, log zerolog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		weather: svc,
		tracker: tracker,
		sender:  sender,
		units:   "metric",
		log:     log,
		queues:  make(map[int64]*chatQueue),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run feeds events from src into the per-chat queues until ctx ends or src
// is exhausted, then waits for queued events to drain.
func (d *Dispatcher) Run(ctx context.Context, src EventSource) error {
	events := src.Events(ctx)
	for {
		select {
		case <-ctx.Done():
			d.Wait()
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				d.Wait()
				return nil
			}
			d.Submit(ctx, ev)
		}
	}
}

// Submit enqueues ev on its chat's queue, starting a worker if the chat has none.
func (d *Dispatcher) Submit(ctx context.Context, ev InboundEvent) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now().UTC()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	q, ok := d.queues[ev.ChatID]
	if !ok {
		q = &chatQueue{}
		d.queues[ev.ChatID] = q
		d.wg.Add(1)
		go d.drain(ctx, ev.ChatID, q)
	}
	q.pending = append(q.pending, ev)
}

// Wait blocks until every chat queue is empty.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// ActiveChats returns the number of chats with queued or running events.
func (d *Dispatcher) ActiveChats() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}

// drain handles the queue of one chat and removes it once empty.
func (d *Dispatcher) drain(ctx context.Context, chatID int64, q *chatQueue) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		if len(q.pending) == 0 {
			delete(d.queues, chatID)
			d.mu.Unlock()
			return
		}
		ev := q.pending[0]
		q.pending = q.pending[1:]
		d.mu.Unlock()

		d.handle(ctx, ev)
	}
}

func (d *Dispatcher) handle(ctx context.Context, ev InboundEvent) {
	log := d.log.With().Str("event_id", ev.ID).Int64("chat_id", ev.ChatID).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("event handler panicked")
		}
	}()

	switch {
	case ev.Location != nil:
		d.handleLocation(ctx, log, ev)
	case ev.Text != "":
		d.handleText(ctx, log, ev)
	default:
		log.Debug().Msg("event without text or location ignored")
	}
}

func (d *Dispatcher) handleText(ctx context.Context, log zerolog.Logger, ev InboundEvent) {
	cmd := ParseCommand(ev.Text)
	log.Debug().Stringer("action", cmd.Action).Str("city", cmd.City).Msg("text command")

	switch cmd.Action {
	case ActionStart:
		d.reply(ctx, log, OutboundReply{ChatID: ev.ChatID, Text: textWelcome, Keyboard: KeyboardMainMenu})

	case ActionCurrent, ActionWeekly:
		kind := weather.KindCurrent
		intent := conversation.IntentAwaitingLocationForCurrent
		if cmd.Action == ActionWeekly {
			kind = weather.KindWeekly
			intent = conversation.IntentAwaitingLocationForWeekly
		}

		if cmd.City != "" {
			// A direct city never touches the pending intent.
			d.respondWeather(ctx, log, ev.ChatID, cmd.City, kind)
			return
		}

		if err := d.tracker.SetPendingIntent(ctx, ev.ChatID, intent); err != nil {
			log.Error().Err(err).Str("intent", string(intent)).Msg("failed to record pending intent")
			d.reply(ctx, log, OutboundReply{ChatID: ev.ChatID, Text: textGenericError, Keyboard: KeyboardMainMenu})
			return
		}
		log.Debug().Str("intent", string(intent)).Msg("awaiting location")
		d.reply(ctx, log, OutboundReply{ChatID: ev.ChatID, Text: textAskLocation, Keyboard: KeyboardRequestLocation})

	default:
		d.reply(ctx, log, OutboundReply{ChatID: ev.ChatID, Text: textHelp, Keyboard: KeyboardMainMenu})
	}
}

func (d *Dispatcher) handleLocation(ctx context.Context, log zerolog.Logger, ev InboundEvent) {
	intent, err := d.tracker.PendingIntent(ctx, ev.ChatID)
	if err != nil {
		log.Error().Err(err).Msg("failed to read pending intent")
		d.reply(ctx, log, OutboundReply{ChatID: ev.ChatID, Text: textGenericError, Keyboard: KeyboardMainMenu})
		return
	}

	kind, ok := intentKind(intent)
	if !ok {
		log.Debug().Msg("location without pending request ignored")
		return
	}

	defer func() {
		// Always leave the chat in NONE, whatever happened below.
		if err := d.tracker.ClearPendingIntent(context.WithoutCancel(ctx), ev.ChatID); err != nil {
			log.Error().Err(err).Msg("failed to clear pending intent")
		}
	}()

	city, err := d.weather.ResolveCity(ctx, ev.Location.Latitude, ev.Location.Longitude)
	if err != nil {
		log.Warn().Err(err).
			Float64("lat", ev.Location.Latitude).
			Float64("lon", ev.Location.Longitude).
			Str("kind", string(kind)).
			Msg("city resolution failed")
		d.reply(ctx, log, OutboundReply{ChatID: ev.ChatID, Text: errorText(err, ""), Keyboard: KeyboardMainMenu})
		return
	}

	d.respondWeather(ctx, log, ev.ChatID, city, kind)
}

func (d *Dispatcher) respondWeather(ctx context.Context, log zerolog.Logger, chatID int64, city string, kind weather.Kind) {
	log = log.With().Str("city", city).Str("kind", string(kind)).Logger()

	rec, err := d.weather.Lookup(ctx, city, kind)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Debug().Msg("lookup abandoned")
			return
		}
		log.Warn().Err(err).Msg("weather lookup failed")
		d.reply(ctx, log, OutboundReply{ChatID: chatID, Text: errorText(err, city), Keyboard: KeyboardMainMenu})
		return
	}

	d.reply(ctx, log, OutboundReply{ChatID: chatID, Text: FormatRecord(rec, d.units), Keyboard: KeyboardMainMenu})
}

// reply sends r unless ctx is done. Send failures are logged, never returned.
func (d *Dispatcher) reply(ctx context.Context, log zerolog.Logger, r OutboundReply) {
	if ctx.Err() != nil {
		log.Debug().Msg("context done; reply skipped")
		return
	}
	if err := d.sender.Send(ctx, r); err != nil {
		if errors.Is(err, ErrChatUnavailable) {
			log.Info().Err(err).Msg("chat unavailable; reply dropped")
			return
		}
		log.Error().Err(err).Msg("failed to send reply")
	}
}

func intentKind(i conversation.Intent) (weather.Kind, bool) {
	switch i {
	case conversation.IntentAwaitingLocationForCurrent:
		return weather.KindCurrent, true
	case conversation.IntentAwaitingLocationForWeekly:
		return weather.KindWeekly, true
	}
	return "", false
}
