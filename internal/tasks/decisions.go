package tasks

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"

	"tidalsync/internal/models"
)

// SyncAction is the kind of work a decision schedules.
type SyncAction int

const (
	NoAction SyncAction = iota
	DownloadTrack
	CreateSymlink
	UpdateSymlink
	RemoveSymlink
	RemoveFile
)

// String returns the snake_case name used in logs and reports.
func (a SyncAction) String() string {
	switch a {
	case NoAction:
		return "no_action"
	case DownloadTrack:
		return "download_track"
	case CreateSymlink:
		return "create_symlink"
	case UpdateSymlink:
		return "update_symlink"
	case RemoveSymlink:
		return "remove_symlink"
	case RemoveFile:
		return "remove_file"
	default:
		return "unknown"
	}
}

// Priorities order decisions so that downloads land before symlink work and
// removals before repairs. Higher runs first.
const (
	priorityDownloadNew     = 10
	priorityDownloadMissing = 8
	priorityDownloadRetry   = 5
	priorityRemoveFile      = 4
	priorityRemoveSymlink   = 3
	prioritySymlink         = 2
)

// DecisionResult is one scheduled unit of work for a track in a playlist.
type DecisionResult struct {
	Action     SyncAction
	Priority   int
	PlaylistID string
	TrackID    string
	SourcePath string
	TargetPath string
	Reason     string
}

// SyncDecisions collects every decision for a run plus the running
// counters the report surfaces. MetadataUpdates is carried for the report
// shape even though no decision currently produces one; metadata drift is
// reconciled during the fetch stage.
type SyncDecisions struct {
	Decisions []DecisionResult

	TracksToDownload int
	SymlinksToCreate int
	SymlinksToUpdate int
	SymlinksToRemove int
	FilesToRemove    int
	MetadataUpdates  int
	NoActionNeeded   int
	Conflicts        int
}

func (d *SyncDecisions) add(dec DecisionResult) {
	d.Decisions = append(d.Decisions, dec)
	switch dec.Action {
	case DownloadTrack:
		d.TracksToDownload++
	case CreateSymlink:
		d.SymlinksToCreate++
	case UpdateSymlink:
		d.SymlinksToUpdate++
	case RemoveSymlink:
		d.SymlinksToRemove++
	case RemoveFile:
		d.FilesToRemove++
	case NoAction:
		d.NoActionNeeded++
	}
}

// Summary returns the reporting structure for the decision stage.
func (d *SyncDecisions) Summary() Summary {
	return Summary{
		Component: "decide",
		Counts: map[string]int{
			"tracks_to_download": d.TracksToDownload,
			"symlinks_to_create": d.SymlinksToCreate,
			"symlinks_to_update": d.SymlinksToUpdate,
			"symlinks_to_remove": d.SymlinksToRemove,
			"files_to_remove":    d.FilesToRemove,
			"metadata_updates":   d.MetadataUpdates,
			"no_action_needed":   d.NoActionNeeded,
			"conflicts":          d.Conflicts,
		},
	}
}

// DecisionEngine compares catalog state against the derived desired state
// and emits the work needed to converge. It never touches the filesystem
// and never mutates the catalog; decisions describe work, the executor
// performs it.
type DecisionEngine struct {
	playlistsRoot  string
	audioFormat    string
	playlists      models.PlaylistRepository
	tracks         models.TrackRepository
	playlistTracks models.PlaylistTrackRepository
	logger         *log.Logger
}

// NewDecisionEngine creates a DecisionEngine. audioFormat is the extension
// (without dot) expected for downloaded files.
func NewDecisionEngine(
	playlistsRoot string,
	audioFormat string,
	playlists models.PlaylistRepository,
	tracks models.TrackRepository,
	playlistTracks models.PlaylistTrackRepository,
	logger *log.Logger,
) *DecisionEngine {
	return &DecisionEngine{
		playlistsRoot:  playlistsRoot,
		audioFormat:    audioFormat,
		playlists:      playlists,
		tracks:         tracks,
		playlistTracks: playlistTracks,
		logger:         logger,
	}
}

// AnalyzeAllPlaylists generates decisions for every playlist in the catalog.
func (e *DecisionEngine) AnalyzeAllPlaylists() (*SyncDecisions, error) {
	playlists, err := e.playlists.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}

	decisions := &SyncDecisions{}
	for _, p := range playlists {
		if err := e.analyzePlaylist(p, decisions); err != nil {
			return nil, fmt.Errorf("playlist %s: %w", p.Name, err)
		}
	}
	return decisions, nil
}

// AnalyzePlaylistSync generates decisions for a single playlist.
func (e *DecisionEngine) AnalyzePlaylistSync(playlistID string) (*SyncDecisions, error) {
	playlist, err := e.playlists.Get(playlistID)
	if err != nil {
		return nil, err
	}

	decisions := &SyncDecisions{}
	if err := e.analyzePlaylist(playlist, decisions); err != nil {
		return nil, fmt.Errorf("playlist %s: %w", playlist.Name, err)
	}
	return decisions, nil
}

func (e *DecisionEngine) analyzePlaylist(playlist *models.Playlist, decisions *SyncDecisions) error {
	memberships, err := e.playlistTracks.ListByPlaylist(playlist.ID)
	if err != nil {
		return err
	}

	for _, pt := range memberships {
		track, err := e.tracks.Get(pt.TrackID)
		if err != nil {
			return fmt.Errorf("track %s: %w", pt.TrackID, err)
		}

		dec, err := e.decideTrack(playlist, pt, track)
		if err != nil {
			return fmt.Errorf("track %s: %w", track.DisplayName(), err)
		}
		decisions.add(dec)
	}

	return nil
}

// decideTrack applies the state machine for one membership.
func (e *DecisionEngine) decideTrack(playlist *models.Playlist, pt *models.PlaylistTrack, track *models.Track) (DecisionResult, error) {
	base := DecisionResult{
		PlaylistID: playlist.ID,
		TrackID:    track.ID,
	}

	if !pt.InTidal {
		return e.decideRemoval(playlist, pt, track, base)
	}

	switch track.DownloadStatus {
	case models.Downloaded:
		// fall through to placement below
	case models.NotDownloaded:
		return e.downloadDecision(playlist, pt, track, base, priorityDownloadNew, "track not downloaded")
	case models.DownloadError:
		return e.downloadDecision(playlist, pt, track, base, priorityDownloadRetry,
			fmt.Sprintf("retry after error: %s", track.DownloadError))
	case models.Downloading:
		// A stale in-progress marker from an interrupted run.
		return e.downloadDecision(playlist, pt, track, base, priorityDownloadRetry, "incomplete download")
	default:
		return base, fmt.Errorf("unknown download status %q", track.DownloadStatus)
	}

	// Marked downloaded but the file is gone: re-download.
	if track.FilePath == "" || !fileExists(track.FilePath) {
		return e.downloadDecision(playlist, pt, track, base, priorityDownloadMissing,
			"catalog says downloaded but file is missing")
	}

	if pt.IsPrimary {
		// A primary membership holds the physical file; a leftover link
		// from before ownership moved here has to go.
		if pt.SymlinkPath != "" {
			base.Action = RemoveSymlink
			base.Priority = priorityRemoveSymlink
			base.SourcePath = pt.SymlinkPath
			base.Reason = "primary membership should not hold a symlink"
			return base, nil
		}
		base.Action = NoAction
		base.Reason = "primary file present"
		return base, nil
	}

	// Non-primary membership: the playlist should hold a symlink to the
	// primary file.
	wantLink := filepath.Join(e.playlistsRoot, playlist.Name, filepath.Base(track.FilePath))

	if pt.SymlinkPath == "" {
		base.Action = CreateSymlink
		base.Priority = prioritySymlink
		base.SourcePath = wantLink
		base.TargetPath = track.FilePath
		base.Reason = "no symlink recorded"
		return base, nil
	}

	if pt.SymlinkValid == nil || !*pt.SymlinkValid || pt.SymlinkPath != wantLink {
		base.Action = UpdateSymlink
		base.Priority = prioritySymlink
		base.SourcePath = pt.SymlinkPath
		base.TargetPath = track.FilePath
		base.Reason = "symlink broken or misplaced"
		return base, nil
	}

	base.Action = NoAction
	base.Reason = "symlink valid"
	return base, nil
}

// downloadDecision schedules a download into this playlist's directory,
// unless another playlist owns the track, in which case the download
// belongs to that membership and this one waits.
func (e *DecisionEngine) downloadDecision(playlist *models.Playlist, pt *models.PlaylistTrack, track *models.Track, base DecisionResult, priority int, reason string) (DecisionResult, error) {
	if !pt.IsPrimary {
		others, err := e.playlistTracks.ListByTrack(track.ID)
		if err != nil {
			return base, err
		}
		for _, other := range others {
			if other.PlaylistID != playlist.ID && other.IsPrimary && other.InTidal {
				base.Action = NoAction
				base.Reason = "download owned by primary playlist"
				return base, nil
			}
		}
	}

	base.Action = DownloadTrack
	base.Priority = priority
	base.TargetPath = e.primaryPath(playlist, track)
	base.Reason = reason
	return base, nil
}

// decideRemoval handles memberships no longer present in the remote
// playlist. Primary files are only removed once no other playlist still
// needs the track.
func (e *DecisionEngine) decideRemoval(playlist *models.Playlist, pt *models.PlaylistTrack, track *models.Track, base DecisionResult) (DecisionResult, error) {
	if !pt.IsPrimary {
		if pt.SymlinkPath == "" {
			base.Action = NoAction
			base.Reason = "removed membership has no symlink"
			return base, nil
		}
		base.Action = RemoveSymlink
		base.Priority = priorityRemoveSymlink
		base.SourcePath = pt.SymlinkPath
		base.Reason = "track removed from playlist"
		return base, nil
	}

	others, err := e.playlistTracks.ListByTrack(track.ID)
	if err != nil {
		return base, err
	}
	for _, other := range others {
		if other.PlaylistID != playlist.ID && other.InTidal {
			base.Action = NoAction
			base.Reason = "primary still referenced by another playlist"
			return base, nil
		}
	}

	if track.FilePath == "" {
		base.Action = NoAction
		base.Reason = "removed membership has no file"
		return base, nil
	}

	base.Action = RemoveFile
	base.Priority = priorityRemoveFile
	base.SourcePath = track.FilePath
	base.Reason = "track removed from its last playlist"
	return base, nil
}

// primaryPath is where a fresh download for this membership should land.
func (e *DecisionEngine) primaryPath(playlist *models.Playlist, track *models.Track) string {
	return filepath.Join(e.playlistsRoot, playlist.Name, track.TargetFilename(e.audioFormat))
}

// PrioritizedDecisions returns the decisions ordered highest priority
// first. The sort is stable so equal-priority work keeps generation order.
func (e *DecisionEngine) PrioritizedDecisions(decisions *SyncDecisions) []DecisionResult {
	out := make([]DecisionResult, len(decisions.Decisions))
	copy(out, decisions.Decisions)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

// FilterDecisionsByAction returns only the decisions with the given action.
func FilterDecisionsByAction(decisions []DecisionResult, action SyncAction) []DecisionResult {
	var out []DecisionResult
	for _, d := range decisions {
		if d.Action == action {
			out = append(out, d)
		}
	}
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
