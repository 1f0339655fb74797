package providers

import (
	"strings"
	"time"
)

type options struct {
	baseURL string
	lang    string
	units   string
	backoff BackoffConfig
	now     func() time.Time
}

func newOptions(baseURL string, opts []Option) options {
	o := options{
		baseURL: baseURL,
		lang:    "ru",
		units:   "metric",
		backoff: DefaultBackoff,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures a provider.
type Option func(*options)

// WithBaseURL overrides the API root (scheme and host, no path).
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = strings.TrimRight(u, "/") }
}

// WithLanguage sets the language of condition descriptions.
func WithLanguage(lang string) Option {
	return func(o *options) { o.lang = lang }
}

// WithUnits sets the unit system of returned values: metric, imperial or standard.
func WithUnits(units string) Option {
	return func(o *options) { o.units = units }
}

// WithBackoff overrides the retry policy.
func WithBackoff(b BackoffConfig) Option {
	return func(o *options) { o.backoff = b }
}

// WithClock overrides the clock used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}
