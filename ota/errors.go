package ota

import "errors"

var (
	// ErrMissingDistributionHash is returned by NewClient for an empty hash.
	ErrMissingDistributionHash = errors.New("ota: distribution hash is required")
	// ErrLocaleNotInDistribution is returned when no manifest language matches a locale.
	ErrLocaleNotInDistribution = errors.New("ota: locale is not part of the distribution")
	// ErrFileNotInDistribution is returned when a file is not listed for the requested language.
	ErrFileNotInDistribution = errors.New("ota: file is not part of the distribution")
	// ErrUnexpectedStatus wraps any non-2xx response from the distribution host.
	ErrUnexpectedStatus = errors.New("ota: unexpected response status")
	// ErrMalformedManifest is returned when manifest.json does not decode or lists no content.
	ErrMalformedManifest = errors.New("ota: malformed manifest")
	// ErrMalformedContent is returned when a JSON file is not an object.
	ErrMalformedContent = errors.New("ota: malformed file content")
	// ErrStringNotFound is returned by StringByKey when the path holds no string.
	ErrStringNotFound = errors.New("ota: string not found")
)
