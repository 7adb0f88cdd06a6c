package domain

import "errors"

// Sentinel errors for domain operations
var (
	// ErrStoryNotFound indicates the requested story does not exist
	ErrStoryNotFound = errors.New("story not found")

	// ErrItemNotFound indicates the requested recording or video does not exist
	ErrItemNotFound = errors.New("media item not found")

	// ErrBackendOffline indicates the hosted backend is unreachable
	ErrBackendOffline = errors.New("archive backend is unreachable")

	// ErrAuthFailed indicates the backend rejected the API key
	ErrAuthFailed = errors.New("backend api key is invalid")

	// ErrNotConfigured indicates neither a backend nor a local library is set
	ErrNotConfigured = errors.New("no backend url or library directory configured")

	// ErrNoAudio indicates a story has no narration audio attached
	ErrNoAudio = errors.New("story has no narration audio")

	// ErrPlaybackRejected indicates the audio output refused to start
	ErrPlaybackRejected = errors.New("playback was rejected")
)
