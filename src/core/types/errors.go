package types

import "errors"

// Failure taxonomy shared by services and the HTTP gateway. Services wrap
// these sentinels with fmt.Errorf("...: %w", ...) and the gateway maps them
// to status codes with errors.Is.
var (
	// ErrInvalidImage marks an upload that cannot be decoded as an image.
	ErrInvalidImage = errors.New("invalid image")

	// ErrModelUnavailable marks a missing artifact or unreachable
	// inference runtime. Fatal at startup, 500 per request.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrUpstream marks a failed LLM or network call.
	ErrUpstream = errors.New("upstream call failed")

	// ErrUpstreamFormat marks an LLM response that was expected to be
	// structured but could not be parsed. The wrapping error carries the
	// raw response text for operator diagnosis.
	ErrUpstreamFormat = errors.New("upstream returned unexpected format")
)
