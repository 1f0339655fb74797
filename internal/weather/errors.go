package weather

import "errors"

var (
	// ErrCityNotFound is returned when the provider has no match for the requested city.
	ErrCityNotFound = errors.New("city not found")
	// ErrLocationNotResolved is returned when reverse geocoding yields no city.
	ErrLocationNotResolved = errors.New("location not resolved")
	// ErrProviderUnavailable covers transport failures, non-2xx responses and timeouts.
	ErrProviderUnavailable = errors.New("weather provider unavailable")
	// ErrProviderMalformedResponse is returned when a payload cannot be parsed into a Record.
	ErrProviderMalformedResponse = errors.New("malformed weather provider response")
	// ErrCacheUnavailable wraps backing-store I/O failures. Callers treat it as a miss.
	ErrCacheUnavailable = errors.New("weather cache unavailable")
	// ErrCacheMiss means no fresh entry exists. It is not a failure.
	ErrCacheMiss = errors.New("no fresh weather data in cache")
)
