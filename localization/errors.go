package localization

import "errors"

var (
	// ErrUnsupportedLocale is returned when a locale is not one of the configured locales.
	ErrUnsupportedLocale = errors.New("localization: unsupported locale")
	// ErrFetchFailed wraps any failure of the remote string-delivery client.
	ErrFetchFailed = errors.New("localization: remote fetch failed")
	// ErrMalformedBundle is returned when a payload is not a non-empty mapping of strings.
	ErrMalformedBundle = errors.New("localization: malformed bundle")
	// ErrBundleNotFound is returned when no local bundle file exists for a locale.
	ErrBundleNotFound = errors.New("localization: bundle not found")
)
