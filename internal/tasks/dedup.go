package tasks

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"tidalsync/internal/models"
	"tidalsync/internal/shared"
)

// Strategy selects the primary playlist for a track that appears in more
// than one playlist.
type Strategy string

const (
	// FirstAlphabetically picks the playlist whose name sorts first.
	FirstAlphabetically Strategy = "first_alphabetically"
	// LargestPlaylist picks the playlist with the most tracks.
	LargestPlaylist Strategy = "largest_playlist"
	// PreferExisting keeps the current primary when one is already set,
	// falling back to alphabetical order otherwise.
	PreferExisting Strategy = "prefer_existing"
)

// ResolveStrategy maps a configured strategy name to a Strategy, defaulting
// to FirstAlphabetically for the empty string.
func ResolveStrategy(name string) (Strategy, error) {
	switch Strategy(name) {
	case FirstAlphabetically, LargestPlaylist, PreferExisting:
		return Strategy(name), nil
	case "":
		return FirstAlphabetically, nil
	default:
		return "", fmt.Errorf("%w: unknown dedup strategy %q", shared.ErrInvalidConfig, name)
	}
}

// PrimaryFileDecision is the resolved ownership for one track: which
// playlist holds the physical file and which get symlinks.
type PrimaryFileDecision struct {
	TrackID             string
	PrimaryPlaylistID   string
	PrimaryPlaylistName string
	SymlinkPlaylistIDs  []string
	Reason              string
}

// DedupResult is the outcome of a full deduplication analysis.
type DedupResult struct {
	TracksAnalyzed  int
	MultiPlaylist   int
	DecisionsMade   int
	AlreadyResolved int
	Decisions       []PrimaryFileDecision
	Errors          []string
}

// Summary returns the reporting structure for the dedup stage.
func (r *DedupResult) Summary() Summary {
	return Summary{
		Component: "dedup",
		Counts: map[string]int{
			"tracks_analyzed":  r.TracksAnalyzed,
			"multi_playlist":   r.MultiPlaylist,
			"decisions_made":   r.DecisionsMade,
			"already_resolved": r.AlreadyResolved,
			"errors":           len(r.Errors),
		},
		Errors: sampleErrors(r.Errors),
	}
}

// Deduplicator decides which playlist owns the physical file for each
// track, so that every track has exactly one primary membership and the
// rest are symlinks.
type Deduplicator struct {
	strategy       Strategy
	playlists      models.PlaylistRepository
	playlistTracks models.PlaylistTrackRepository
	logger         *log.Logger
}

// NewDeduplicator creates a Deduplicator using the given strategy.
func NewDeduplicator(
	strategy Strategy,
	playlists models.PlaylistRepository,
	playlistTracks models.PlaylistTrackRepository,
	logger *log.Logger,
) *Deduplicator {
	return &Deduplicator{
		strategy:       strategy,
		playlists:      playlists,
		playlistTracks: playlistTracks,
		logger:         logger,
	}
}

// AnalyzeTrackDistribution decides primary ownership for a single track.
// A track that belongs to no playlist is an error; a track in exactly one
// playlist trivially owns its file there.
func (d *Deduplicator) AnalyzeTrackDistribution(trackID string) (*PrimaryFileDecision, error) {
	memberships, err := d.playlistTracks.ListByTrack(trackID)
	if err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return nil, fmt.Errorf("%w: track %s", shared.ErrTrackNotInAnyPlaylist, trackID)
	}

	type candidate struct {
		membership *models.PlaylistTrack
		playlist   *models.Playlist
	}

	candidates := make([]candidate, 0, len(memberships))
	for _, m := range memberships {
		p, err := d.playlists.Get(m.PlaylistID)
		if err != nil {
			return nil, fmt.Errorf("playlist %s: %w", m.PlaylistID, err)
		}
		candidates = append(candidates, candidate{membership: m, playlist: p})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].playlist.Name < candidates[j].playlist.Name
	})

	winner := candidates[0]
	reason := "only playlist"

	if len(candidates) > 1 {
		switch d.strategy {
		case LargestPlaylist:
			for _, c := range candidates[1:] {
				if c.playlist.NumTracks > winner.playlist.NumTracks {
					winner = c
				}
			}
			reason = fmt.Sprintf("largest playlist (%d tracks)", winner.playlist.NumTracks)
		case PreferExisting:
			reason = "first alphabetically"
			for _, c := range candidates {
				if c.membership.IsPrimary {
					winner = c
					reason = "existing primary kept"
					break
				}
			}
		default:
			reason = "first alphabetically"
		}
	}

	decision := &PrimaryFileDecision{
		TrackID:             trackID,
		PrimaryPlaylistID:   winner.playlist.ID,
		PrimaryPlaylistName: winner.playlist.Name,
		Reason:              reason,
	}
	for _, c := range candidates {
		if c.playlist.ID != winner.playlist.ID {
			decision.SymlinkPlaylistIDs = append(decision.SymlinkPlaylistIDs, c.playlist.ID)
		}
	}

	return decision, nil
}

// AnalyzeAllTracks resolves primary ownership for every track that appears
// in more than one playlist. Tracks in a single playlist are counted as
// already resolved without generating a decision.
func (d *Deduplicator) AnalyzeAllTracks() (*DedupResult, error) {
	result := &DedupResult{}

	multi, err := d.playlistTracks.MultiPlaylistTrackIDs()
	if err != nil {
		return nil, fmt.Errorf("failed to list multi-playlist tracks: %w", err)
	}
	result.MultiPlaylist = len(multi)

	for _, trackID := range multi {
		result.TracksAnalyzed++
		decision, err := d.AnalyzeTrackDistribution(trackID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("track %s: %v", trackID, err))
			continue
		}
		result.Decisions = append(result.Decisions, *decision)
		result.DecisionsMade++
	}

	return result, nil
}

// ApplyDecisions writes the primary flags from a dedup analysis back into
// the catalog. Memberships already in the desired state are untouched.
func (d *Deduplicator) ApplyDecisions(result *DedupResult) error {
	for i := range result.Decisions {
		decision := &result.Decisions[i]

		memberships, err := d.playlistTracks.ListByTrack(decision.TrackID)
		if err != nil {
			return fmt.Errorf("track %s: %w", decision.TrackID, err)
		}

		changed := false
		for _, m := range memberships {
			wantPrimary := m.PlaylistID == decision.PrimaryPlaylistID
			if m.IsPrimary == wantPrimary {
				continue
			}
			m.IsPrimary = wantPrimary
			if err := d.playlistTracks.Update(m); err != nil {
				return fmt.Errorf("track %s in playlist %s: %w", decision.TrackID, m.PlaylistID, err)
			}
			changed = true
		}
		if !changed {
			result.AlreadyResolved++
		}

		d.logger.Debug("primary ownership applied",
			"track", decision.TrackID,
			"playlist", decision.PrimaryPlaylistName,
			"reason", decision.Reason)
	}

	return nil
}

// GetPrimaryPlaylistForTrack returns the playlist currently flagged as
// owning the track's physical file.
func (d *Deduplicator) GetPrimaryPlaylistForTrack(trackID string) (*models.Playlist, error) {
	memberships, err := d.playlistTracks.ListByTrack(trackID)
	if err != nil {
		return nil, err
	}
	for _, m := range memberships {
		if m.IsPrimary {
			return d.playlists.Get(m.PlaylistID)
		}
	}
	return nil, fmt.Errorf("%w: no primary membership for track %s", shared.ErrAssociationNotFound, trackID)
}

// ShouldBePrimary reports whether the given playlist should own the track's
// file under the configured strategy.
func (d *Deduplicator) ShouldBePrimary(trackID, playlistID string) (bool, error) {
	decision, err := d.AnalyzeTrackDistribution(trackID)
	if err != nil {
		return false, err
	}
	return decision.PrimaryPlaylistID == playlistID, nil
}

// GetSymlinkPlaylistsForTrack returns the playlists that should hold
// symlinks to the track's primary file.
func (d *Deduplicator) GetSymlinkPlaylistsForTrack(trackID string) ([]*models.Playlist, error) {
	decision, err := d.AnalyzeTrackDistribution(trackID)
	if err != nil {
		return nil, err
	}

	playlists := make([]*models.Playlist, 0, len(decision.SymlinkPlaylistIDs))
	for _, id := range decision.SymlinkPlaylistIDs {
		p, err := d.playlists.Get(id)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, p)
	}
	return playlists, nil
}
