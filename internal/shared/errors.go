package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrDownloadFailed     = fmt.Errorf("download failed")

	// Catalog errors
	ErrPlaylistNotFound      = fmt.Errorf("playlist not found")
	ErrTrackNotFound         = fmt.Errorf("track not found")
	ErrAssociationNotFound   = fmt.Errorf("playlist track association not found")
	ErrTrackNotInAnyPlaylist = fmt.Errorf("track is not in any playlist")

	// Decision and execution errors
	ErrMissingField = fmt.Errorf("decision is missing a required field")
	ErrNoDecisions  = fmt.Errorf("no sync decisions were generated")
	ErrNotASymlink  = fmt.Errorf("path is not a symlink")

	// Input validation errors
	ErrInvalidFlag = fmt.Errorf("invalid flag value")
)
