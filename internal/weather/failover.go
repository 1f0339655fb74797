package weather

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
)

// FailoverProvider asks its providers in order and moves on only when one is
// unavailable or answers with a malformed payload. A city-not-found answer is
// final: another upstream would not know the city either.
type FailoverProvider struct {
	providers []Provider
	log       zerolog.Logger
}

func NewFailoverProvider(log zerolog.Logger, primary Provider, fallbacks ...Provider) *FailoverProvider {
	return &FailoverProvider{
		providers: append([]Provider{primary}, fallbacks...),
		log:       log,
	}
}

func (f *FailoverProvider) Name() string {
	names := make([]string, 0, len(f.providers))
	for _, p := range f.providers {
		names = append(names, p.Name())
	}
	return strings.Join(names, ",")
}

func (f *FailoverProvider) FetchCurrent(ctx context.Context, city string) (Record, error) {
	return f.try(ctx, city, KindCurrent, func(p Provider) (Record, error) {
		return p.FetchCurrent(ctx, city)
	})
}

func (f *FailoverProvider) FetchWeekly(ctx context.Context, city string, days int) (Record, error) {
	return f.try(ctx, city, KindWeekly, func(p Provider) (Record, error) {
		return p.FetchWeekly(ctx, city, days)
	})
}

func (f *FailoverProvider) try(ctx context.Context, city string, kind Kind, call func(Provider) (Record, error)) (Record, error) {
	var lastErr error
	for i, p := range f.providers {
		rec, err := call(p)
		if err == nil {
			if i > 0 {
				f.log.Info().Str("provider", p.Name()).Str("city", city).Str("kind", string(kind)).Msg("served by fallback provider")
			}
			return rec, nil
		}
		lastErr = err
		if !errors.Is(err, ErrProviderUnavailable) && !errors.Is(err, ErrProviderMalformedResponse) {
			return Record{}, err
		}
		if ctx.Err() != nil {
			break
		}
		f.log.Warn().Err(err).Str("provider", p.Name()).Str("city", city).Str("kind", string(kind)).Msg("provider failed")
	}
	return Record{}, lastErr
}
